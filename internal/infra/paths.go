package infra

import (
	"os"
	"os/user"
	"path/filepath"
	"runtime"
	"sort"
)

// Browser names a Chromium-family browser whose native messaging directory we know.
type Browser string

const (
	BrowserChrome   Browser = "chrome"
	BrowserChromium Browser = "chromium"
	BrowserBrave    Browser = "brave"
	BrowserEdge     Browser = "edge"
)

// Paths holds every on-disk location the host uses.
type Paths struct {
	Home       string
	DataDir    string // Encrypted store, key and config live here
	LogPath    string
	ConfigPath string
	// ManifestDirs maps each browser to its per-user NativeMessagingHosts directory.
	// Empty on platforms where manifests are registered elsewhere (Windows registry).
	ManifestDirs map[Browser]string
}

// DefaultPaths returns paths for the current user and platform.
func DefaultPaths() *Paths {
	return PathsFor(runtime.GOOS, GetRealUserHome())
}

// PathsFor returns paths for goos rooted at home.
func PathsFor(goos, home string) *Paths {
	dataDir := filepath.Join(home, ".focusguard")
	p := &Paths{
		Home:         home,
		DataDir:      dataDir,
		LogPath:      filepath.Join(dataDir, "logs", "focusguard.log"),
		ConfigPath:   filepath.Join(dataDir, "config.yaml"),
		ManifestDirs: map[Browser]string{},
	}

	switch goos {
	case "darwin":
		support := filepath.Join(home, "Library", "Application Support")
		p.ManifestDirs[BrowserChrome] = filepath.Join(support, "Google", "Chrome", "NativeMessagingHosts")
		p.ManifestDirs[BrowserChromium] = filepath.Join(support, "Chromium", "NativeMessagingHosts")
		p.ManifestDirs[BrowserBrave] = filepath.Join(support, "BraveSoftware", "Brave-Browser", "NativeMessagingHosts")
		p.ManifestDirs[BrowserEdge] = filepath.Join(support, "Microsoft Edge", "NativeMessagingHosts")
	case "linux":
		config := filepath.Join(home, ".config")
		p.ManifestDirs[BrowserChrome] = filepath.Join(config, "google-chrome", "NativeMessagingHosts")
		p.ManifestDirs[BrowserChromium] = filepath.Join(config, "chromium", "NativeMessagingHosts")
		p.ManifestDirs[BrowserBrave] = filepath.Join(config, "BraveSoftware", "Brave-Browser", "NativeMessagingHosts")
		p.ManifestDirs[BrowserEdge] = filepath.Join(config, "microsoft-edge", "NativeMessagingHosts")
	}
	return p
}

// WithDataDir returns a copy of p using dataDir for the store, logs and config.
func (p *Paths) WithDataDir(dataDir string) *Paths {
	cp := *p
	cp.DataDir = dataDir
	cp.LogPath = filepath.Join(dataDir, "logs", "focusguard.log")
	cp.ConfigPath = filepath.Join(dataDir, "config.yaml")
	return &cp
}

// Browsers returns the browsers with a known manifest directory, sorted.
func (p *Paths) Browsers() []Browser {
	out := make([]Browser, 0, len(p.ManifestDirs))
	for b := range p.ManifestDirs {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// GetRealUserHome returns the invoking user's home directory, even under sudo.
func GetRealUserHome() string {
	if sudoUser := os.Getenv("SUDO_USER"); sudoUser != "" {
		if u, err := user.Lookup(sudoUser); err == nil {
			return u.HomeDir
		}
	}
	home, _ := os.UserHomeDir()
	return home
}

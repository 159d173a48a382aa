package infra

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"text/template"
)

// HostName is the native messaging host name the extension connects to.
const HostName = "com.focusguard.host"

// Chrome native messaging host manifest.
const manifestTemplate = `{
  "name": "{{.Name}}",
  "description": "{{.Description}}",
  "path": {{.Path}},
  "type": "stdio",
  "allowed_origins": [{{range $i, $o := .Origins}}{{if $i}}, {{end}}"{{$o}}"{{end}}]
}
`

var extensionIDPattern = regexp.MustCompile(`^[a-p]{32}$`)

type manifestConfig struct {
	Name        string
	Description string
	Path        string // JSON-quoted
	Origins     []string
}

// ManifestInstaller writes the native messaging host manifest for one browser.
type ManifestInstaller struct {
	dir          string
	extensionIDs []string
}

// NewManifestInstaller creates an installer targeting dir that allows the given extensions.
func NewManifestInstaller(dir string, extensionIDs []string) *ManifestInstaller {
	return &ManifestInstaller{
		dir:          dir,
		extensionIDs: extensionIDs,
	}
}

// ManifestPath returns the manifest file path.
func (m *ManifestInstaller) ManifestPath() string {
	return filepath.Join(m.dir, HostName+".json")
}

// generate renders the manifest for execPath.
func (m *ManifestInstaller) generate(execPath string) ([]byte, error) {
	if !filepath.IsAbs(execPath) {
		return nil, fmt.Errorf("host path must be absolute: %s", execPath)
	}
	if len(m.extensionIDs) == 0 {
		return nil, fmt.Errorf("at least one extension id is required")
	}
	origins := make([]string, 0, len(m.extensionIDs))
	for _, id := range m.extensionIDs {
		if !extensionIDPattern.MatchString(id) {
			return nil, fmt.Errorf("invalid extension id: %q", id)
		}
		origins = append(origins, "chrome-extension://"+id+"/")
	}

	quoted, err := json.Marshal(execPath)
	if err != nil {
		return nil, err
	}

	tmpl, err := template.New("manifest").Parse(manifestTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse manifest template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, manifestConfig{
		Name:        HostName,
		Description: "focusguard focus decision engine",
		Path:        string(quoted),
		Origins:     origins,
	}); err != nil {
		return nil, fmt.Errorf("failed to execute manifest template: %w", err)
	}
	return buf.Bytes(), nil
}

// Install writes the manifest pointing at execPath.
func (m *ManifestInstaller) Install(execPath string) error {
	content, err := m.generate(execPath)
	if err != nil {
		return fmt.Errorf("failed to generate manifest: %w", err)
	}
	if err := os.MkdirAll(m.dir, 0755); err != nil {
		return err
	}
	return os.WriteFile(m.ManifestPath(), content, 0644)
}

// Uninstall removes the manifest. Missing is not an error.
func (m *ManifestInstaller) Uninstall() error {
	err := os.Remove(m.ManifestPath())
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// IsInstalled checks if the manifest exists.
func (m *ManifestInstaller) IsInstalled() bool {
	_, err := os.Stat(m.ManifestPath())
	return err == nil
}

// NeedsUpdate reports whether an installed manifest differs from what Install would write.
func (m *ManifestInstaller) NeedsUpdate(execPath string) bool {
	if !m.IsInstalled() {
		return false
	}
	current, err := os.ReadFile(m.ManifestPath())
	if err != nil {
		return true
	}
	expected, err := m.generate(execPath)
	if err != nil {
		return true
	}
	return !bytes.Equal(current, expected)
}

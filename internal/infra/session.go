// Package infra implements infrastructure concerns (storage, browser session, host integration).
package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/shirou/gopsutil/v3/process"
)

// browserProcessNames are matched case-insensitively against ancestor process names.
var browserProcessNames = []string{"chrome", "chromium", "msedge", "brave", "vivaldi", "opera"}

// maxAncestorDepth bounds the walk; Chrome may launch the host through a shell.
const maxAncestorDepth = 4

type procInfo struct {
	pid     int32
	ppid    int32
	name    string
	created int64 // ms since epoch
}

type procLookup func(pid int32) (procInfo, error)

// BrowserSession identifies the browser process that launched the host.
// The id changes whenever the browser restarts, which is what scopes
// session-blocked URLs.
type BrowserSession struct {
	lookup procLookup
	self   int32
}

// NewBrowserSession creates a BrowserSession for the current process.
func NewBrowserSession() *BrowserSession {
	return &BrowserSession{
		lookup: lookupProcess,
		self:   int32(os.Getpid()),
	}
}

// ID returns "<name>-<pid>-<createTime>" for the nearest browser ancestor,
// else the direct parent, else this process.
func (b *BrowserSession) ID() string {
	self, err := b.lookup(b.self)
	if err != nil {
		return fmt.Sprintf("host-%d", b.self)
	}

	var parent *procInfo
	cur := self
	for depth := 0; depth < maxAncestorDepth && cur.ppid > 0; depth++ {
		p, err := b.lookup(cur.ppid)
		if err != nil {
			break
		}
		if parent == nil {
			parent = &p
		}
		if isBrowserProcess(p.name) {
			return sessionID(p)
		}
		cur = p
	}

	if parent != nil {
		return sessionID(*parent)
	}
	return sessionID(self)
}

// Alive reports whether the process named by a session id is still the one
// that minted it. Ids that do not parse are never alive.
func (b *BrowserSession) Alive(id string) bool {
	if rest, ok := strings.CutPrefix(id, "host-"); ok {
		pid, err := strconv.ParseInt(rest, 10, 32)
		if err != nil {
			return false
		}
		_, err = b.lookup(int32(pid))
		return err == nil
	}

	i := strings.LastIndex(id, "-")
	if i <= 0 {
		return false
	}
	created, err := strconv.ParseInt(id[i+1:], 10, 64)
	if err != nil {
		return false
	}
	j := strings.LastIndex(id[:i], "-")
	if j < 0 {
		return false
	}
	pid, err := strconv.ParseInt(id[j+1:i], 10, 32)
	if err != nil {
		return false
	}
	p, err := b.lookup(int32(pid))
	return err == nil && p.created == created
}

func sessionID(p procInfo) string {
	name := strings.ToLower(strings.TrimSuffix(p.name, ".exe"))
	if name == "" {
		name = "proc"
	}
	return fmt.Sprintf("%s-%d-%d", name, p.pid, p.created)
}

func isBrowserProcess(name string) bool {
	lower := strings.ToLower(name)
	for _, b := range browserProcessNames {
		if strings.Contains(lower, b) {
			return true
		}
	}
	return false
}

// lookupProcess reads process metadata via gopsutil.
func lookupProcess(pid int32) (procInfo, error) {
	p, err := process.NewProcess(pid)
	if err != nil {
		return procInfo{}, err
	}
	created, err := p.CreateTime()
	if err != nil {
		return procInfo{}, err
	}
	// Name and parent may be unreadable for other users' processes.
	name, _ := p.Name()
	ppid, _ := p.Ppid()
	return procInfo{pid: pid, ppid: ppid, name: name, created: created}, nil
}

// Package hosts tracks domains that repeatedly fail to fetch. The
// tracker is constructed once per process and injected into the URL
// filter and fetcher; the set is backed by an append-only flat file so
// the denylist survives restarts.
package hosts

import (
	"bufio"
	"net/url"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Tracker is a concurrency-safe denylist of failing hosts.
type Tracker struct {
	mu      sync.Mutex
	path    string
	blocked map[string]struct{}
}

// Open loads the denylist from path. A missing or unreadable file is
// non-fatal: the tracker starts empty and the condition is logged.
func Open(path string) *Tracker {
	t := &Tracker{
		path:    path,
		blocked: make(map[string]struct{}),
	}

	f, err := os.Open(path)
	if err != nil {
		if !os.IsNotExist(err) {
			zap.L().Error("hosts: load denylist failed", zap.String("path", path), zap.Error(err))
		}
		return t
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		host := strings.TrimSpace(scanner.Text())
		if host != "" {
			t.blocked[host] = struct{}{}
		}
	}
	if err := scanner.Err(); err != nil {
		zap.L().Error("hosts: read denylist failed", zap.String("path", path), zap.Error(err))
	}

	zap.L().Info("hosts: loaded denylist",
		zap.String("path", path),
		zap.Int("hosts", len(t.blocked)),
	)
	return t
}

// Blocked reports whether the URL's host is on the denylist. Unparsable
// URLs are not blocked.
func (t *Tracker) Blocked(rawURL string) bool {
	host := hostOf(rawURL)
	if host == "" {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.blocked[host]
	return ok
}

// MarkFailed adds the URL's host to the denylist and appends it to the
// backing file. Append failures are logged, not returned: losing a
// denylist line only costs a future wasted fetch.
func (t *Tracker) MarkFailed(rawURL string) {
	host := hostOf(rawURL)
	if host == "" {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.blocked[host]; ok {
		return
	}
	t.blocked[host] = struct{}{}

	f, err := os.OpenFile(t.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		zap.L().Error("hosts: append to denylist failed", zap.String("host", host), zap.Error(err))
		return
	}
	defer f.Close()
	if _, err := f.WriteString(host + "\n"); err != nil {
		zap.L().Error("hosts: write denylist entry failed", zap.String("host", host), zap.Error(err))
		return
	}

	zap.L().Info("hosts: marked host as failing", zap.String("host", host))
}

// Len returns the number of blocked hosts.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.blocked)
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Host
}

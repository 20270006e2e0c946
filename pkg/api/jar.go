package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// persistentJar is a cookie jar whose cookies for the backend host
// survive process restarts. The refresh proof arrives as an httpOnly
// cookie on sign-in and renewal; without persisting it, a fresh
// process could never renew and every start would demand a password.
// The access token is never in here: the server sends it in the
// response body, not as a cookie.
type persistentJar struct {
	inner  *cookiejar.Jar
	path   string
	base   *url.URL
	logger *slog.Logger

	mu    sync.Mutex
	saved map[string]storedCookie
}

// storedCookie is the on-disk shape of one cookie. Only the fields
// needed to replay the cookie on a later start are kept.
type storedCookie struct {
	Name    string    `json:"name"`
	Value   string    `json:"value"`
	Path    string    `json:"path,omitempty"`
	Expires time.Time `json:"expires,omitempty"`
}

func (s storedCookie) expired(now time.Time) bool {
	return !s.Expires.IsZero() && !s.Expires.After(now)
}

// newPersistentJar builds a jar backed by the file at path, restoring
// any previously saved cookies for the backend. A missing or corrupt
// file starts an empty jar.
func newPersistentJar(path string, base *url.URL, logger *slog.Logger) (*persistentJar, error) {
	inner, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("api: create cookie jar: %w", err)
	}
	jar := &persistentJar{
		inner:  inner,
		path:   path,
		base:   base,
		logger: logger,
		saved:  make(map[string]storedCookie),
	}
	jar.restore()
	return jar, nil
}

func (j *persistentJar) restore() {
	data, err := os.ReadFile(j.path)
	if err != nil {
		if !os.IsNotExist(err) {
			j.logger.Warn("could not read cookie file", "path", j.path, "error", err)
		}
		return
	}
	var stored []storedCookie
	if err := json.Unmarshal(data, &stored); err != nil {
		j.logger.Warn("discarding corrupt cookie file", "path", j.path, "error", err)
		return
	}

	now := time.Now()
	restored := make([]*http.Cookie, 0, len(stored))
	for _, s := range stored {
		if s.expired(now) {
			continue
		}
		j.saved[s.Name] = s
		restored = append(restored, &http.Cookie{
			Name:    s.Name,
			Value:   s.Value,
			Path:    s.Path,
			Expires: s.Expires,
		})
	}
	if len(restored) > 0 {
		j.inner.SetCookies(j.base, restored)
	}
}

// SetCookies implements http.CookieJar. Cookies set by the backend are
// mirrored to disk so the next process start can present them again.
func (j *persistentJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.inner.SetCookies(u, cookies)
	if u.Host != j.base.Host {
		return
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	now := time.Now()
	for _, cookie := range cookies {
		if cookie.MaxAge < 0 || (!cookie.Expires.IsZero() && !cookie.Expires.After(now)) {
			delete(j.saved, cookie.Name)
			continue
		}
		expires := cookie.Expires
		if cookie.MaxAge > 0 {
			expires = now.Add(time.Duration(cookie.MaxAge) * time.Second)
		}
		j.saved[cookie.Name] = storedCookie{
			Name:    cookie.Name,
			Value:   cookie.Value,
			Path:    cookie.Path,
			Expires: expires,
		}
	}
	if err := j.writeLocked(); err != nil {
		j.logger.Warn("could not persist cookies", "path", j.path, "error", err)
	}
}

// Cookies implements http.CookieJar.
func (j *persistentJar) Cookies(u *url.URL) []*http.Cookie {
	return j.inner.Cookies(u)
}

// writeLocked saves the cookie set atomically (temp file + rename),
// readable by the owner only. Caller holds j.mu.
func (j *persistentJar) writeLocked() error {
	if len(j.saved) == 0 {
		if err := os.Remove(j.path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove cookie file: %w", err)
		}
		return nil
	}

	stored := make([]storedCookie, 0, len(j.saved))
	for _, s := range j.saved {
		stored = append(stored, s)
	}
	data, err := json.MarshalIndent(stored, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal cookie file: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(j.path), 0o755); err != nil {
		return fmt.Errorf("create cookie dir: %w", err)
	}
	tmp := j.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write cookie file: %w", err)
	}
	if err := os.Rename(tmp, j.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename cookie file: %w", err)
	}
	return nil
}

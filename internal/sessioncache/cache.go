// Package sessioncache persists both channels' authentication material (web
// cookies and app token) between runs, so a rerun can skip a login. The blob
// on disk is HMAC-signed and encrypted with gorilla/securecookie; a missing,
// tampered or expired cache simply means logging in again.
package sessioncache

import (
	"net/http"
	"os"
	"time"

	"github.com/gorilla/securecookie"
)

const cacheName = "whulib-session"

// maxAge bounds how long a persisted session is trusted. The platform's own
// sessions are shorter-lived than this; expiry here just avoids pointless
// replay of long-dead material.
const maxAge = 12 * time.Hour

// State is everything worth keeping across runs.
type State struct {
	Cookies []*http.Cookie `json:"cookies"`
	Token   string         `json:"token"`
}

type Cache struct {
	path string
	sc   *securecookie.SecureCookie
}

// New builds a cache at path. hashKey must be 32 bytes; blockKey 16/24/32.
func New(path string, hashKey, blockKey []byte) *Cache {
	sc := securecookie.New(hashKey, blockKey)
	sc.MaxAge(int(maxAge.Seconds()))
	sc.SetSerializer(securecookie.JSONEncoder{})
	return &Cache{path: path, sc: sc}
}

// Load decodes the persisted session. Any failure (absent file, bad MAC,
// expired) is returned as an error; callers treat it as "log in fresh".
func (c *Cache) Load() (State, error) {
	b, err := os.ReadFile(c.path)
	if err != nil {
		return State{}, err
	}
	var st State
	if err := c.sc.Decode(cacheName, string(b), &st); err != nil {
		return State{}, err
	}
	return st, nil
}

// Save encodes and writes the session with owner-only permissions.
func (c *Cache) Save(st State) error {
	enc, err := c.sc.Encode(cacheName, st)
	if err != nil {
		return err
	}
	return os.WriteFile(c.path, []byte(enc), 0o600)
}

// Clear removes the cache file. Absence is not an error.
func (c *Cache) Clear() error {
	err := os.Remove(c.path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

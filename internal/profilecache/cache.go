// Package profilecache keeps the per-user salt and epoch horizon between
// logins. It is an optional accelerator: the pipeline works without it and
// the derivation service remains the source of truth.
package profilecache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/SuiJapan/sui-zklogin-app/internal/sessionstore"
	"github.com/SuiJapan/sui-zklogin-app/pkg/models"
)

// Cache is an encrypted file-backed map from user identifier to profile.
// User identifiers are fingerprinted before use as keys so the document
// never stores raw subjects.
type Cache struct {
	mu         sync.Mutex
	path       string
	passphrase string
	profiles   map[string]models.Profile
}

func Open(path, passphrase string) (*Cache, error) {
	c := &Cache{
		path:       path,
		passphrase: passphrase,
		profiles:   make(map[string]models.Profile),
	}
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return c, nil
	}
	if err != nil {
		return nil, err
	}
	plaintext, err := sessionstore.Decrypt(passphrase, raw)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(plaintext, &c.profiles); err != nil {
		return nil, sessionstore.ErrInvalid
	}
	return c, nil
}

// GetOrCreate returns the cached profile for userID, or fills and stores a
// fresh one.
func (c *Cache) GetOrCreate(userID string, fill func() (models.Profile, error)) (models.Profile, error) {
	key := fingerprint(userID)

	c.mu.Lock()
	if profile, ok := c.profiles[key]; ok {
		c.mu.Unlock()
		return profile, nil
	}
	c.mu.Unlock()

	profile, err := fill()
	if err != nil {
		return models.Profile{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	// A concurrent fill may have won; the stored value stays authoritative.
	if existing, ok := c.profiles[key]; ok {
		return existing, nil
	}
	c.profiles[key] = profile
	if err := c.flushLocked(); err != nil {
		return models.Profile{}, err
	}
	return profile, nil
}

// Put overwrites the cached profile, used when a login refreshes maxEpoch.
func (c *Cache) Put(userID string, profile models.Profile) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.profiles[fingerprint(userID)] = profile
	return c.flushLocked()
}

func (c *Cache) flushLocked() error {
	plaintext, err := json.Marshal(c.profiles)
	if err != nil {
		return err
	}
	encrypted, err := sessionstore.Encrypt(c.passphrase, plaintext)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0o700); err != nil {
		return err
	}
	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, encrypted, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, c.path)
}

func fingerprint(userID string) string {
	sum := sha256.Sum256([]byte(userID))
	return hex.EncodeToString(sum[:16])
}

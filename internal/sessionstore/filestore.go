package sessionstore

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// FileStore persists the session entries as a single encrypted document, so
// a full process restart (the redirect round trip) reconstructs identical
// state from disk.
type FileStore struct {
	mu         sync.Mutex
	path       string
	passphrase string
	entries    map[string]string
}

// OpenFileStore loads the store at path, creating an empty one if the file
// does not exist yet. A wrong passphrase fails here, not on first Get.
func OpenFileStore(path, passphrase string) (*FileStore, error) {
	s := &FileStore{
		path:       path,
		passphrase: passphrase,
		entries:    make(map[string]string),
	}
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, err
	}
	plaintext, err := Decrypt(passphrase, raw)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(plaintext, &s.entries); err != nil {
		return nil, ErrInvalid
	}
	return s, nil
}

func (s *FileStore) Put(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = value
	return s.flushLocked()
}

func (s *FileStore) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.entries[key]
	return v, ok
}

func (s *FileStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]string)
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (s *FileStore) flushLocked() error {
	plaintext, err := json.Marshal(s.entries)
	if err != nil {
		return err
	}
	encrypted, err := Encrypt(s.passphrase, plaintext)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, encrypted, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

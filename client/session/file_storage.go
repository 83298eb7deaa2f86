package session

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
)

var _ Storage = (*FileStorage)(nil)

// storedSession is the on-disk layout: the three values live in one document
// so they can only ever be replaced together.
type storedSession struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	User         *User  `json:"user,omitempty"`
}

// FileStorage persists the session triple to a single JSON file, replaced
// atomically via temp-file rename. The file is a cache, not a source of
// truth; a corrupt or missing file just means no session.
type FileStorage struct {
	path string
	mu   sync.RWMutex
	cur  storedSession
}

func NewFileStorage(path string) (*FileStorage, error) {
	fs := &FileStorage{path: path}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fs, nil
		}
		return nil, errors.Wrap(err, "[NewFileStorage] ReadFile")
	}

	var stored storedSession
	if err := json.Unmarshal(data, &stored); err != nil {
		// Unreadable cache is treated as logged out.
		return fs, nil
	}
	fs.cur = stored

	return fs, nil
}

func (f *FileStorage) AccessToken() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.cur.AccessToken
}

func (f *FileStorage) RefreshToken() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.cur.RefreshToken
}

func (f *FileStorage) User() *User {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.cur.User
}

func (f *FileStorage) SetSession(accessToken, refreshToken string, user *User) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	next := storedSession{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         user,
	}

	if err := f.write(next); err != nil {
		return err
	}
	f.cur = next
	return nil
}

func (f *FileStorage) Clear() error {
	return f.SetSession("", "", nil)
}

func (f *FileStorage) write(stored storedSession) error {
	data, err := json.Marshal(stored)
	if err != nil {
		return errors.Wrap(err, "[FileStorage.write] Marshal")
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".session-*")
	if err != nil {
		return errors.Wrap(err, "[FileStorage.write] CreateTemp")
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return errors.Wrap(err, "[FileStorage.write] Write")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return errors.Wrap(err, "[FileStorage.write] Close")
	}

	if err := os.Rename(tmp.Name(), f.path); err != nil {
		os.Remove(tmp.Name())
		return errors.Wrap(err, "[FileStorage.write] Rename")
	}
	return nil
}

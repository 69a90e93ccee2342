package session

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// DefaultFileName is the cookie file name inside the temp directory.
const DefaultFileName = "twt_cookie.txt"

// ErrNoSession is returned by Load when no cookie has been saved.
var ErrNoSession = errors.New("no stored session")

// Store keeps the panel session cookie in a single plaintext file.
//
// There is no locking: one process owns the file for the duration of a run.
type Store struct {
	path string
}

// NewStore returns a Store backed by path. An empty path means
// $TMPDIR/twt_cookie.txt.
func NewStore(path string) *Store {
	if path == "" {
		path = DefaultPath()
	}
	return &Store{path: path}
}

// DefaultPath returns the cookie file location in the system temp directory.
func DefaultPath() string {
	return filepath.Join(os.TempDir(), DefaultFileName)
}

// Path returns the cookie file location.
func (s *Store) Path() string {
	return s.path
}

// Load returns the stored cookie. A missing or empty file yields
// ErrNoSession; any other failure is returned as a read error.
func (s *Store) Load() (string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", ErrNoSession
		}
		return "", fmt.Errorf("read session file: %w", err)
	}
	cookie := strings.TrimSpace(string(data))
	if cookie == "" {
		return "", ErrNoSession
	}
	return cookie, nil
}

// Save replaces the stored cookie.
func (s *Store) Save(cookie string) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("create session directory: %w", err)
	}
	if err := os.WriteFile(s.path, []byte(cookie), 0600); err != nil {
		return fmt.Errorf("write session file: %w", err)
	}
	return nil
}

// Invalidate removes the stored cookie. Removing an absent cookie is not an
// error.
func (s *Store) Invalidate() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove session file: %w", err)
	}
	return nil
}

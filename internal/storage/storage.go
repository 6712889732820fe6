// Package storage persists attachment bytes on local disk. Each file is
// addressed by an opaque storage key; metadata lives in the database.
package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"

	"github.com/google/uuid"
)

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9_.-]`)

// SafeName strips characters from a client-supplied filename that are not
// safe to embed in a storage key.
func SafeName(name string) string {
	s := unsafeChars.ReplaceAllString(name, "_")
	if s == "" {
		s = "file"
	}
	return s
}

// MakeKey builds a collision-resistant storage key for an upload. The key is
// relative to the store root: "<defectID>/<uuid>_<safeName>".
func MakeKey(defectID uint, filename string) string {
	return filepath.ToSlash(filepath.Join(fmt.Sprint(defectID), uuid.NewString()+"_"+SafeName(filename)))
}

type Store struct {
	root string
}

// New opens a store rooted at dir, creating it if needed.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage root: %w", err)
	}
	return &Store{root: dir}, nil
}

func (s *Store) path(key string) string {
	return filepath.Join(s.root, filepath.FromSlash(key))
}

// Save streams r into the file addressed by key and returns the byte count
// and hex SHA-256 checksum of the stored content.
func (s *Store) Save(key string, r io.Reader) (int64, string, error) {
	full := s.path(key)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return 0, "", err
	}
	f, err := os.Create(full)
	if err != nil {
		return 0, "", err
	}
	h := sha256.New()
	n, err := io.Copy(io.MultiWriter(f, h), r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(full)
		return 0, "", err
	}
	return n, hex.EncodeToString(h.Sum(nil)), nil
}

// Open returns a reader over the bytes stored under key. The caller closes
// it. A missing file surfaces as os.ErrNotExist.
func (s *Store) Open(key string) (io.ReadCloser, error) {
	return os.Open(s.path(key))
}

// Exists reports whether bytes are present under key.
func (s *Store) Exists(key string) bool {
	_, err := os.Stat(s.path(key))
	return err == nil
}

// Remove deletes the bytes under key. A file that is already gone counts as
// removed.
func (s *Store) Remove(key string) error {
	err := os.Remove(s.path(key))
	if err != nil && os.IsNotExist(err) {
		return nil
	}
	return err
}

// Package cas provides content-addressed storage for generated blobs.
// Blobs are stored by their BLAKE3 digest; named refs map stable keys such
// as a chapter key to the digest of their current content.
package cas

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/zeebo/blake3"
)

// osRename is a variable to allow testing of rename errors.
var osRename = os.Rename

// tempFileWrite is a function variable for writing to temp files (for testing).
var tempFileWrite = func(f *os.File, data []byte) (int, error) {
	return f.Write(data)
}

// tempFileClose is a function variable for closing temp files (for testing).
var tempFileClose = func(f io.Closer) error {
	return f.Close()
}

// ErrBlobNotFound is returned when a blob or ref does not exist.
var ErrBlobNotFound = errors.New("blob not found")

// ErrInvalidHash is returned when a hash string is not a valid BLAKE3 hex digest.
var ErrInvalidHash = errors.New("invalid hash format")

// ErrInvalidRef is returned for ref names that cannot be stored safely.
var ErrInvalidRef = errors.New("invalid ref name")

var hashPattern = regexp.MustCompile(`^[a-f0-9]{64}$`)

// Store is a directory of blobs and refs:
//
//	<root>/blobs/blake3/<first2>/<hash>
//	<root>/refs/<name>
type Store struct {
	root string
}

// NewStore creates a store at root. The directory structure is created if
// it doesn't exist.
func NewStore(root string) (*Store, error) {
	for _, dir := range []string{filepath.Join(root, "blobs", "blake3"), filepath.Join(root, "refs")} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
	}
	return &Store{root: root}, nil
}

// Hash computes the BLAKE3 digest of data as lowercase hex.
func Hash(data []byte) string {
	h := blake3.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Put stores data and returns its hash. Storing existing content is a no-op.
func (s *Store) Put(data []byte) (string, error) {
	hash := Hash(data)
	blobPath := s.pathForHash(hash)
	if _, err := os.Stat(blobPath); err == nil {
		return hash, nil
	}
	if err := writeAtomic(blobPath, data); err != nil {
		return "", fmt.Errorf("failed to write blob: %w", err)
	}
	return hash, nil
}

// Get returns the blob with the given hash.
func (s *Store) Get(hash string) ([]byte, error) {
	if !hashPattern.MatchString(hash) {
		return nil, ErrInvalidHash
	}
	data, err := os.ReadFile(s.pathForHash(hash))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrBlobNotFound
		}
		return nil, fmt.Errorf("failed to read blob: %w", err)
	}
	return data, nil
}

// Exists reports whether a blob with the given hash is stored.
func (s *Store) Exists(hash string) bool {
	if !hashPattern.MatchString(hash) {
		return false
	}
	_, err := os.Stat(s.pathForHash(hash))
	return err == nil
}

// Link points ref name at hash, replacing any previous target.
func (s *Store) Link(name, hash string) error {
	if !validRef(name) {
		return ErrInvalidRef
	}
	if !s.Exists(hash) {
		return ErrBlobNotFound
	}
	if err := writeAtomic(filepath.Join(s.root, "refs", name), []byte(hash)); err != nil {
		return fmt.Errorf("failed to write ref: %w", err)
	}
	return nil
}

// Resolve returns the hash ref name points at.
func (s *Store) Resolve(name string) (string, error) {
	if !validRef(name) {
		return "", ErrInvalidRef
	}
	data, err := os.ReadFile(filepath.Join(s.root, "refs", name))
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrBlobNotFound
		}
		return "", fmt.Errorf("failed to read ref: %w", err)
	}
	hash := strings.TrimSpace(string(data))
	if !hashPattern.MatchString(hash) {
		return "", ErrInvalidHash
	}
	return hash, nil
}

// Load resolves ref name and returns its blob.
func (s *Store) Load(name string) ([]byte, error) {
	hash, err := s.Resolve(name)
	if err != nil {
		return nil, err
	}
	return s.Get(hash)
}

// pathForHash returns <root>/blobs/blake3/<first2>/<hash>.
func (s *Store) pathForHash(hash string) string {
	return filepath.Join(s.root, "blobs", "blake3", hash[:2], hash)
}

// validRef accepts a single path element without separators or dot names.
func validRef(name string) bool {
	if name == "" || name == "." || name == ".." || strings.HasPrefix(name, ".") {
		return false
	}
	return !strings.ContainsAny(name, `/\`) && !strings.ContainsRune(name, 0)
}

// writeAtomic writes data via a temp file in the target directory and a rename.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	tempFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tempPath := tempFile.Name()

	if _, err := tempFileWrite(tempFile, data); err != nil {
		tempFileClose(tempFile)
		os.Remove(tempPath)
		return err
	}
	if err := tempFileClose(tempFile); err != nil {
		os.Remove(tempPath)
		return err
	}
	if err := osRename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return err
	}
	return nil
}

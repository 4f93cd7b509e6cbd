// Package blob implements the content-addressable raw artifact store:
// digest computation plus a write-once filesystem backend.
package blob

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/estado-transparente/transparencia-cli/internal/fault"
)

// Digest returns the content digest of a byte blob in the canonical
// "sha256:<hex>" form used as the dedup key in the artifact registry.
func Digest(data []byte) string {
	sum := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(sum[:])
}

// Store persists raw artifact bytes addressed by artifact id.
type Store interface {
	// Put writes the bytes for an artifact and returns its storage location.
	Put(id uuid.UUID, data []byte) (string, error)

	// Get reads the bytes back from a storage location.
	Get(location string) ([]byte, error)

	// Kind names the storage backend ("fs").
	Kind() string
}

// FSStore stores each artifact as <dir>/<artifact_id>.raw.
type FSStore struct {
	dir string
}

// NewFSStore creates a filesystem store rooted at dir. The directory is
// created on first Put.
func NewFSStore(dir string) *FSStore {
	return &FSStore{dir: dir}
}

func (s *FSStore) Kind() string { return "fs" }

func (s *FSStore) Put(id uuid.UUID, data []byte) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fault.Wrapf(fault.KindStorage, err, "blob: create dir %s", s.dir)
	}

	path := filepath.Join(s.dir, id.String()+".raw")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fault.Wrapf(fault.KindStorage, err, "blob: write %s", path)
	}

	return path, nil
}

func (s *FSStore) Get(location string) ([]byte, error) {
	data, err := os.ReadFile(location)
	if err != nil {
		return nil, fault.Wrapf(fault.KindStorage, err, "blob: read %s", location)
	}
	return data, nil
}

package content

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/datatrails/vaultledger/digest"
	"github.com/datatrails/vaultledger/vaulterr"
)

// LocalStore is a filesystem-backed Store, sharding blobs two hex
// characters deep the way git's object store does, so that a single
// directory never accumulates an unbounded number of entries.
type LocalStore struct {
	root string
	log  *zap.Logger
}

func NewLocalStore(root string, log *zap.Logger) (*LocalStore, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("%w: %v", vaulterr.ErrStorageError, err)
	}
	return &LocalStore{root: root, log: log}, nil
}

func (s *LocalStore) pathFor(d digest.Digest) string {
	hex := d.Hex()
	return filepath.Join(s.root, hex[:2], hex[2:])
}

// Put writes b under its content digest. Concurrent identical Puts
// collapse onto one winner via a temp-file-then-rename, which is atomic
// on the same filesystem; losers simply observe the file already exists.
func (s *LocalStore) Put(ctx context.Context, b []byte) (digest.CID, error) {
	cid := digest.Of(b)
	dest := s.pathFor(cid.Digest)

	if _, err := os.Stat(dest); err == nil {
		return cid, nil
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return digest.CID{}, fmt.Errorf("%w: %v", vaulterr.ErrStorageError, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), "put-*.tmp")
	if err != nil {
		return digest.CID{}, fmt.Errorf("%w: %v", vaulterr.ErrStorageError, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op once the rename below succeeds

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return digest.CID{}, fmt.Errorf("%w: %v", vaulterr.ErrStorageError, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return digest.CID{}, fmt.Errorf("%w: %v", vaulterr.ErrStorageError, err)
	}
	if err := tmp.Close(); err != nil {
		return digest.CID{}, fmt.Errorf("%w: %v", vaulterr.ErrStorageError, err)
	}

	if err := os.Rename(tmpName, dest); err != nil {
		// Another writer may have won the race; that's fine, the content
		// is identical because the destination name is the digest.
		if _, statErr := os.Stat(dest); statErr == nil {
			return cid, nil
		}
		return digest.CID{}, fmt.Errorf("%w: %v", vaulterr.ErrStorageError, err)
	}

	s.log.Debug("content put", zap.String("cid", cid.String()), zap.Int("bytes", len(b)))
	return cid, nil
}

// Get reads the bytes for cid. Returns ErrNotFound if absent.
func (s *LocalStore) Get(ctx context.Context, cid digest.CID) ([]byte, error) {
	f, err := os.Open(s.pathFor(cid.Digest))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, vaulterr.ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", vaulterr.ErrStorageError, err)
	}
	defer f.Close()
	b, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", vaulterr.ErrStorageError, err)
	}
	return b, nil
}

// Has reports whether cid is present without reading its bytes.
func (s *LocalStore) Has(ctx context.Context, cid digest.CID) (bool, error) {
	_, err := os.Stat(s.pathFor(cid.Digest))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("%w: %v", vaulterr.ErrStorageError, err)
}

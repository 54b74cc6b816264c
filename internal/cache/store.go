package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/DataDog/zstd"
	"github.com/pkg/errors"
)

// RestoreErrorKind classifies a cache-restore failure.
type RestoreErrorKind string

const (
	RestoreConnection     RestoreErrorKind = "Connection"
	RestoreTimeout        RestoreErrorKind = "Timeout"
	RestoreNotFound       RestoreErrorKind = "NotFound"
	RestoreDigestMismatch RestoreErrorKind = "DigestMismatch"
	RestoreOther          RestoreErrorKind = "Other"
)

// RestoreError wraps a classified cache-restore failure.
type RestoreError struct {
	Kind RestoreErrorKind
	Err  error
}

func (e *RestoreError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("cache restore failed (%s): %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("cache restore failed (%s)", e.Kind)
}

func (e *RestoreError) Unwrap() error { return e.Err }

// Store is the on-disk content-addressed blob + entry-metadata store, laid
// out as:
//
//	<cache_dir>/cas/<first-two-bytes-of-hash>/<remaining-hash>
//	<cache_dir>/entries/<fingerprint>.json
//
// Blobs are stored zstd-compressed, one blob per CAS hash rather than a
// full tar archive per task, since outputs are hashed and addressed
// independently here.
type Store struct {
	root string
}

// NewStore creates (if necessary) the cache directory tree rooted at dir.
func NewStore(dir string) (*Store, error) {
	s := &Store{root: dir}
	for _, sub := range []string{"cas", "entries"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o775); err != nil {
			return nil, errors.Wrapf(err, "creating cache directory %s", sub)
		}
	}
	return s, nil
}

func (s *Store) blobPath(hash string) string {
	if len(hash) < 2 {
		hash = hash + "00"
	}
	return filepath.Join(s.root, "cas", hash[:2], hash[2:])
}

func (s *Store) entryPath(fingerprint string) string {
	return filepath.Join(s.root, "entries", fingerprint+".json")
}

// PutBlob compresses and atomically writes content, addressed by its own
// SHA-256 hash, and returns that hash. Writing is temp-file-then-rename so a
// cancelled write never leaves a partial blob visible.
func (s *Store) PutBlob(content []byte) (string, error) {
	sum := sha256.Sum256(content)
	hash := hex.EncodeToString(sum[:])

	path := s.blobPath(hash)
	if _, err := os.Stat(path); err == nil {
		return hash, nil // already stored; CAS dedups for free
	}

	compressed, err := zstd.Compress(nil, content)
	if err != nil {
		return "", errors.Wrap(err, "compressing cache blob")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o775); err != nil {
		return "", err
	}
	return hash, atomicWrite(path, compressed)
}

// GetBlob reads and decompresses a previously stored blob.
func (s *Store) GetBlob(hash string) ([]byte, error) {
	path := s.blobPath(hash)
	compressed, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &RestoreError{Kind: RestoreNotFound, Err: err}
		}
		return nil, &RestoreError{Kind: RestoreOther, Err: err}
	}
	content, err := zstd.Decompress(nil, compressed)
	if err != nil {
		return nil, &RestoreError{Kind: RestoreDigestMismatch, Err: err}
	}
	return content, nil
}

// PutEntry atomically writes an entry's metadata JSON.
func (s *Store) PutEntry(e *Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return atomicWrite(s.entryPath(e.Fingerprint), data)
}

// GetEntry reads an entry by fingerprint. A missing entry is reported as
// RestoreNotFound so callers can distinguish a clean miss from a real
// error.
func (s *Store) GetEntry(fingerprint string) (*Entry, error) {
	data, err := os.ReadFile(s.entryPath(fingerprint))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &RestoreError{Kind: RestoreNotFound, Err: err}
		}
		return nil, &RestoreError{Kind: RestoreOther, Err: err}
	}
	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, &RestoreError{Kind: RestoreDigestMismatch, Err: err}
	}
	return &e, nil
}

// Exists reports whether an entry is present, without reading its blobs --
// used by dry-run to predict would-hit/would-miss.
func (s *Store) Exists(fingerprint string) bool {
	_, err := os.Stat(s.entryPath(fingerprint))
	return err == nil
}

func atomicWrite(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

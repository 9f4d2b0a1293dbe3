package patchlog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/tanishqk/syncd/internal/syncproto"
)

// lockTimeout bounds how long Append/Load wait for the cross-process file
// lock before proceeding unlocked. Failing open after a short wait keeps a
// single syncdemo invocation from hanging forever if another process holds
// the lock (e.g. it crashed mid-write), at the cost of an occasional race
// if two processes are both actively writing the same statefile.
const lockTimeout = 100 * time.Millisecond

// FileStore persists the patch log as a single JSON array on disk,
// rewritten atomically (write to a temp file, fsync, rename) on every
// Append. A sync.Mutex serializes access within one process; a
// gofrs/flock file lock serializes access across processes, since
// --statefile can name a path two independent `syncdemo run` invocations
// both point at. A full rewrite per append is wasteful for a very long
// log, but it keeps the on-disk file always well-formed even if the
// process is killed mid-write.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore returns a FileStore writing to path. The parent directory
// is created if it does not already exist.
func NewFileStore(path string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o775); err != nil {
		return nil, fmt.Errorf("patchlog: create parent directory: %w", err)
	}
	return &FileStore{path: path}, nil
}

func (s *FileStore) Append(patch syncproto.Patch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	unlock, err := s.acquireFileLock()
	if err != nil {
		return err
	}
	defer unlock()

	existing, err := s.loadLocked()
	if err != nil {
		return err
	}
	existing = append(existing, patch.Clone())
	return s.writeLocked(existing)
}

func (s *FileStore) Load() ([]syncproto.Patch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	unlock, err := s.acquireFileLock()
	if err != nil {
		return nil, err
	}
	defer unlock()

	return s.loadLocked()
}

// acquireFileLock takes the cross-process lock at path+".lock", failing
// open (a no-op unlock, nil error) if it cannot be acquired within
// lockTimeout — the same fail-open tradeoff basecamp-basecamp-cli's
// resilience.Store uses around gofrs/flock for its own disk-backed state.
func (s *FileStore) acquireFileLock() (unlock func(), err error) {
	fl := flock.New(s.path + ".lock")

	ctx, cancel := context.WithTimeout(context.Background(), lockTimeout)
	defer cancel()

	locked, err := fl.TryLockContext(ctx, 10*time.Millisecond)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return func() {}, nil
		}
		return nil, fmt.Errorf("patchlog: acquire lock: %w", err)
	}
	if !locked {
		return func() {}, nil
	}
	return func() { _ = fl.Unlock() }, nil
}

func (s *FileStore) loadLocked() ([]syncproto.Patch, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("patchlog: read %s: %w", s.path, err)
	}
	if len(data) == 0 {
		return nil, nil
	}
	var patches []syncproto.Patch
	if err := json.Unmarshal(data, &patches); err != nil {
		return nil, fmt.Errorf("patchlog: decode %s: %w", s.path, err)
	}
	return patches, nil
}

func (s *FileStore) writeLocked(patches []syncproto.Patch) error {
	data, err := json.Marshal(patches)
	if err != nil {
		return fmt.Errorf("patchlog: encode: %w", err)
	}

	tmp := fmt.Sprintf("%s.%d.tmp", s.path, os.Getpid())
	fp, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("patchlog: create temp file: %w", err)
	}
	if _, err := fp.Write(data); err != nil {
		fp.Close()
		os.Remove(tmp)
		return fmt.Errorf("patchlog: write temp file: %w", err)
	}
	if err := fp.Sync(); err != nil {
		fp.Close()
		os.Remove(tmp)
		return fmt.Errorf("patchlog: sync temp file: %w", err)
	}
	if err := fp.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("patchlog: close temp file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("patchlog: rename temp file: %w", err)
	}
	return nil
}

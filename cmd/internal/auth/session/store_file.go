package session

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// FileStore keeps the snapshot as a JSON document at <dir>/<key>.json.
//
// Writes go to a temp file in the same directory followed by a rename, so a
// concurrent reader sees either the old or the new document.
type FileStore struct {
	path  string
	codec codec
	log   *slog.Logger

	mu     sync.Mutex
	closed bool
}

// NewFileStore creates dir if needed and returns a store for key.
func NewFileStore(dir, key string, sealer Sealer, log *slog.Logger) (*FileStore, error) {
	if log == nil {
		log = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("session dir: %w", err)
	}
	return &FileStore{
		path:  filepath.Join(dir, key+".json"),
		codec: codec{sealer: sealer},
		log:   log,
	}, nil
}

// Path returns the document path.
func (s *FileStore) Path() string { return s.path }

func (s *FileStore) Get(_ context.Context) (Snapshot, bool) {
	b, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.log.Warn("session.read_failed", "path", s.path, "err", err)
		}
		return Snapshot{}, false
	}

	snap, err := s.codec.decode(b)
	if err != nil {
		s.log.Warn("session.decode_failed", "path", s.path, "err", err)
		return Snapshot{}, false
	}
	return snap, true
}

func (s *FileStore) Set(_ context.Context, snap Snapshot) error {
	if err := checkPair(snap); err != nil {
		return err
	}

	b, err := s.codec.encode(snap)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".session-*")
	if err != nil {
		return fmt.Errorf("session temp: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("session write: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("session chmod: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("session close: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("session rename: %w", err)
	}
	return nil
}

func (s *FileStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("session remove: %w", err)
	}
	return nil
}

func (s *FileStore) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

// Watch reports changes to the document made by any process, including this one.
func (s *FileStore) Watch(ctx context.Context) (<-chan struct{}, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	// Watch the directory: rename-over replaces the inode, which would drop a
	// watch placed on the file itself.
	if err := w.Add(filepath.Dir(s.path)); err != nil {
		_ = w.Close()
		return nil, err
	}

	out := make(chan struct{}, 1)
	go func() {
		defer close(out)
		defer func() { _ = w.Close() }()

		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != s.path {
					continue
				}
				if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
					continue
				}
				select {
				case out <- struct{}{}:
				default:
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				s.log.Warn("session.watch_error", "path", s.path, "err", err)
			}
		}
	}()
	return out, nil
}

package tokenstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/wrale/oauth2-device-client/internal/deviceflow"
)

// FileStore keeps the token in a JSON file readable only by the owner.
// Subscribers watch the file, so writes by other processes are observed.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore creates a store backed by the file at path
func NewFileStore(path string) *FileStore {
	return &FileStore{path: filepath.Clean(path)}
}

// Path returns the token file location
func (s *FileStore) Path() string {
	return s.path
}

// Save atomically replaces the token file
func (s *FileStore) Save(ctx context.Context, token deviceflow.DeviceTokenSuccess) error {
	data, err := encodeToken(token)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating token dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".token-*")
	if err != nil {
		return fmt.Errorf("creating temp token file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = os.Remove(tmpName)
	}()

	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("setting token file mode: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("writing token file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("syncing token file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing token file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replacing token file: %w", err)
	}
	return nil
}

// Current reads the token file, nil when it does not exist
func (s *FileStore) Current(ctx context.Context) (*deviceflow.DeviceTokenSuccess, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading token file: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}
	return decodeToken(data)
}

// Delete removes the token file
func (s *FileStore) Delete(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing token file: %w", err)
	}
	return nil
}

// Subscribe watches the token file's directory and emits the token whenever
// the file is created, written, renamed or removed
func (s *FileStore) Subscribe(ctx context.Context) (<-chan *deviceflow.DeviceTokenSuccess, error) {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("creating token dir: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("watching token dir: %w", err)
	}

	initial, err := s.Current(ctx)
	if err != nil {
		_ = watcher.Close()
		return nil, err
	}

	ch := make(chan *deviceflow.DeviceTokenSuccess, 1)
	ch <- initial
	go s.watchLoop(ctx, watcher, ch, initial)
	return ch, nil
}

func (s *FileStore) watchLoop(ctx context.Context, watcher *fsnotify.Watcher, ch chan *deviceflow.DeviceTokenSuccess, last *deviceflow.DeviceTokenSuccess) {
	defer close(ch)
	defer watcher.Close()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != s.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
				!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}

			token, err := s.Current(ctx)
			if err != nil {
				// Partially written file, the next event carries the final state
				continue
			}
			if sameToken(last, token) {
				continue
			}
			last = token
			offerLatest(ch, copyToken(token))

		case _, ok := <-watcher.Errors:
			if !ok {
				return
			}
		}
	}
}

// CheckHealth verifies the token directory is usable
func (s *FileStore) CheckHealth(ctx context.Context) error {
	info, err := os.Stat(filepath.Dir(s.path))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrStoreUnhealthy, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrStoreUnhealthy, filepath.Dir(s.path))
	}
	return nil
}

func sameToken(a, b *deviceflow.DeviceTokenSuccess) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

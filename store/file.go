package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

const (
	filePerm = 0o644
	dirPerm  = 0o755
)

// renameFile moves the synced temp file over the target. Tests replace it.
var renameFile = os.Rename

// fileLocks serializes read-modify-write cycles per absolute path across all
// FileStores in the process. Other processes are not excluded.
var fileLocks = struct {
	mu    sync.Mutex
	byKey map[string]*semaphore.Weighted
}{byKey: make(map[string]*semaphore.Weighted)}

func lockFor(path string) *semaphore.Weighted {
	key, err := filepath.Abs(path)
	if err != nil {
		key = filepath.Clean(path)
	}
	fileLocks.mu.Lock()
	defer fileLocks.mu.Unlock()
	sem, ok := fileLocks.byKey[key]
	if !ok {
		sem = semaphore.NewWeighted(1)
		fileLocks.byKey[key] = sem
	}
	return sem
}

// FileStore keeps the whole collection as one JSON array in a single file.
type FileStore struct {
	path string
	sem  *semaphore.Weighted
	opts options
}

// NewFileStore creates a FileStore backed by path. The file need not exist yet.
func NewFileStore(path string, opts ...Option) *FileStore {
	return &FileStore{
		path: path,
		sem:  lockFor(path),
		opts: buildOptions(opts),
	}
}

// Path returns the backing file path.
func (s *FileStore) Path() string {
	return s.path
}

// Load returns all texts in file order.
func (s *FileStore) Load(ctx context.Context) ([]TextItem, error) {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer s.sem.Release(1)
	return s.read()
}

// Add appends a new text with the next id and writes the file.
func (s *FileStore) Add(ctx context.Context, content string) (TextItem, error) {
	var created TextItem
	err := s.modify(ctx, func(c Collection) (Collection, bool, error) {
		next, item, err := c.add(content, s.opts.clock())
		created = item
		return next, err == nil, err
	})
	if err != nil {
		return TextItem{}, err
	}
	s.opts.logger.Debug("text added", zap.Uint64("id", created.ID), zap.String("path", s.path))
	return created, nil
}

// Update replaces the content of the text with id and writes the file.
// The file is left untouched when id is missing.
func (s *FileStore) Update(ctx context.Context, id uint64, content string) (TextItem, error) {
	var updated TextItem
	err := s.modify(ctx, func(c Collection) (Collection, bool, error) {
		next, item, err := c.update(id, content)
		updated = item
		return next, err == nil, err
	})
	if err != nil {
		return TextItem{}, err
	}
	s.opts.logger.Debug("text updated", zap.Uint64("id", id), zap.String("path", s.path))
	return updated, nil
}

// Delete removes every text with id. When nothing matches the file is not rewritten.
func (s *FileStore) Delete(ctx context.Context, id uint64) error {
	var removed bool
	err := s.modify(ctx, func(c Collection) (Collection, bool, error) {
		next, ok := c.remove(id)
		removed = ok
		return next, ok, nil
	})
	if err != nil {
		return err
	}
	s.opts.logger.Debug("text deleted", zap.Uint64("id", id), zap.Bool("removed", removed))
	return nil
}

// Close is a no-op; FileStore holds no open handles between calls.
func (s *FileStore) Close() error {
	return nil
}

// modify runs one locked read-modify-write cycle. fn reports whether the
// collection changed; unchanged collections are not written back.
func (s *FileStore) modify(ctx context.Context, fn func(Collection) (Collection, bool, error)) error {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer s.sem.Release(1)

	c, err := s.read()
	if err != nil {
		return err
	}
	next, changed, err := fn(c)
	if err != nil || !changed {
		return err
	}
	return s.write(next)
}

func (s *FileStore) read() (Collection, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Collection{}, nil
		}
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}
	return decodeCollection(data)
}

// write replaces the file atomically: the collection is fully serialized and
// synced to a sibling temp file before it is renamed over the target.
func (s *FileStore) write(c Collection) error {
	data, err := c.encode()
	if err != nil {
		return err
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	tmp := filepath.Join(dir, "."+filepath.Base(s.path)+"."+uuid.NewString()+".tmp")
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, filePerm)
	if err != nil {
		return fmt.Errorf("write %s: %w", s.path, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("write %s: %w", s.path, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("sync %s: %w", s.path, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("write %s: %w", s.path, err)
	}
	if err := renameFile(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace %s: %w", s.path, err)
	}
	return nil
}

// Watch reports changes to the backing file made by any writer, including
// other processes. The parent directory is watched because every write
// replaces the file. Bursts of events are coalesced into one callback.
func (s *FileStore) Watch(ctx context.Context, onChange func()) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	w, err := newDirWatcher(dir)
	if err != nil {
		return err
	}
	defer w.Close()

	name := filepath.Base(s.path)
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Base(ev.Name) != name || !isContentEvent(ev) {
				continue
			}
			fire = time.After(s.opts.debounce)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			s.opts.logger.Warn("file watch error", zap.String("path", s.path), zap.Error(err))
		case <-fire:
			fire = nil
			onChange()
		}
	}
}

package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

var testEpoch = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

// steppingClock returns start, start+step, start+2*step, ...
func steppingClock(start time.Time, step time.Duration) Clock {
	var mu sync.Mutex
	next := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now := next
		next = next.Add(step)
		return now
	}
}

func newTestFileStore(t *testing.T) *FileStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.json")
	return NewFileStore(path, WithClock(steppingClock(testEpoch, time.Second)))
}

func readFile(t *testing.T, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return data
}

func TestFileStore_LoadMissingFile(t *testing.T) {
	s := newTestFileStore(t)

	texts, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, texts)
	assert.Empty(t, texts)

	_, err = os.Stat(s.Path())
	assert.True(t, os.IsNotExist(err), "load must not create the file")
}

func TestFileStore_AddAssignsSequentialIDs(t *testing.T) {
	s := newTestFileStore(t)
	ctx := context.Background()

	for i, content := range []string{"a", "", "a", "long text with\nnewlines", "a"} {
		item, err := s.Add(ctx, content)
		require.NoError(t, err)
		assert.Equal(t, uint64(i+1), item.ID)
		assert.Equal(t, content, item.Content)
	}
}

func TestFileStore_AddThenLoadReturnsItemLast(t *testing.T) {
	s := newTestFileStore(t)
	ctx := context.Background()

	_, err := s.Add(ctx, "first")
	require.NoError(t, err)
	added, err := s.Add(ctx, "second")
	require.NoError(t, err)

	texts, err := s.Load(ctx)
	require.NoError(t, err)
	require.Len(t, texts, 2)
	assert.Equal(t, added, texts[len(texts)-1])
}

func TestFileStore_UpdateMissingLeavesFileUnchanged(t *testing.T) {
	s := newTestFileStore(t)
	ctx := context.Background()

	_, err := s.Add(ctx, "keep")
	require.NoError(t, err)
	before := readFile(t, s.Path())

	_, err = s.Update(ctx, 99, "nope")
	require.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, "text not found", err.Error())
	assert.Equal(t, before, readFile(t, s.Path()))
}

func TestFileStore_UpdateMissingFileDoesNotCreateIt(t *testing.T) {
	s := newTestFileStore(t)

	_, err := s.Update(context.Background(), 1, "x")
	require.ErrorIs(t, err, ErrNotFound)

	_, err = os.Stat(s.Path())
	assert.True(t, os.IsNotExist(err))
}

func TestFileStore_UpdateChangesOnlyContent(t *testing.T) {
	s := newTestFileStore(t)
	ctx := context.Background()

	orig, err := s.Add(ctx, "draft")
	require.NoError(t, err)
	_, err = s.Add(ctx, "other")
	require.NoError(t, err)

	updated, err := s.Update(ctx, orig.ID, "final")
	require.NoError(t, err)
	assert.Equal(t, orig.ID, updated.ID)
	assert.Equal(t, orig.CreatedAt, updated.CreatedAt)
	assert.Equal(t, "final", updated.Content)

	texts, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, updated, texts[0])
	assert.Equal(t, "other", texts[1].Content)
}

func TestFileStore_DeleteMissingIsNoop(t *testing.T) {
	s := newTestFileStore(t)
	ctx := context.Background()

	require.NoError(t, s.Delete(ctx, 5))
	_, err := os.Stat(s.Path())
	assert.True(t, os.IsNotExist(err), "no-op delete must not create the file")

	_, err = s.Add(ctx, "one")
	require.NoError(t, err)
	before := readFile(t, s.Path())

	require.NoError(t, s.Delete(ctx, 5))
	assert.Equal(t, before, readFile(t, s.Path()))
}

func TestFileStore_DeleteRemovesDuplicates(t *testing.T) {
	s := newTestFileStore(t)
	ctx := context.Background()
	require.NoError(t, os.WriteFile(s.Path(), []byte(`[
		{"id":1,"content":"a","created_at":"x"},
		{"id":2,"content":"b","created_at":"y"},
		{"id":1,"content":"c","created_at":"z"}
	]`), 0o644))

	require.NoError(t, s.Delete(ctx, 1))

	texts, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []TextItem{{ID: 2, Content: "b", CreatedAt: "y"}}, texts)
}

func TestFileStore_RoundTrip(t *testing.T) {
	s := newTestFileStore(t)
	want := Collection{
		{ID: 3, Content: "third", CreatedAt: "2024-05-01T10:00:00.123456789+00:00"},
		{ID: 1, Content: "first", CreatedAt: "2024-05-01T09:00:00Z"},
		{ID: 2, Content: "<b>&amp;</b> \"quoted\"", CreatedAt: "2024-05-01T09:30:00+02:00"},
	}
	require.NoError(t, s.write(want))

	got, err := s.Load(context.Background())
	require.NoError(t, err)
	if diff := cmp.Diff([]TextItem(want), got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestFileStore_AddUpdateDeleteSequence(t *testing.T) {
	s := newTestFileStore(t)
	ctx := context.Background()

	hello, err := s.Add(ctx, "hello")
	require.NoError(t, err)
	assert.Equal(t, TextItem{ID: 1, Content: "hello", CreatedAt: "2026-01-02T03:04:05Z"}, hello)

	world, err := s.Add(ctx, "world")
	require.NoError(t, err)
	assert.Equal(t, TextItem{ID: 2, Content: "world", CreatedAt: "2026-01-02T03:04:06Z"}, world)

	upd, err := s.Update(ctx, 1, "HELLO")
	require.NoError(t, err)
	assert.Equal(t, TextItem{ID: 1, Content: "HELLO", CreatedAt: hello.CreatedAt}, upd)

	require.NoError(t, s.Delete(ctx, 2))

	texts, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []TextItem{upd}, texts)

	// The next id follows the current maximum, so the deleted top id comes back.
	again, err := s.Add(ctx, "ünïcode")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), again.ID)

	g := goldie.New(t)
	g.Assert(t, "add_update_delete", readFile(t, s.Path()))
}

func TestFileStore_PreservesForeignTimestamps(t *testing.T) {
	s := newTestFileStore(t)
	ctx := context.Background()
	const ts = "2024-01-15T08:30:00.123456+00:00"
	require.NoError(t, os.WriteFile(s.Path(), []byte(`[{"id":4,"content":"old","created_at":"`+ts+`"}]`), 0o644))

	upd, err := s.Update(ctx, 4, "new")
	require.NoError(t, err)
	assert.Equal(t, ts, upd.CreatedAt)

	added, err := s.Add(ctx, "next")
	require.NoError(t, err)
	assert.Equal(t, uint64(5), added.ID)
}

func TestFileStore_CorruptFile(t *testing.T) {
	s := newTestFileStore(t)
	ctx := context.Background()
	corrupt := []byte(`[{"id":1,"content":"a"`)
	require.NoError(t, os.WriteFile(s.Path(), corrupt, 0o644))

	_, err := s.Load(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected end of JSON input")

	_, err = s.Add(ctx, "b")
	require.Error(t, err)
	_, err = s.Update(ctx, 1, "b")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
	require.Error(t, s.Delete(ctx, 1))

	assert.Equal(t, corrupt, readFile(t, s.Path()))
}

func TestFileStore_NullDocument(t *testing.T) {
	s := newTestFileStore(t)
	ctx := context.Background()
	require.NoError(t, os.WriteFile(s.Path(), []byte("null"), 0o644))

	texts, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, texts)

	item, err := s.Add(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), item.ID)
}

func TestFileStore_IDSpaceExhausted(t *testing.T) {
	s := newTestFileStore(t)
	doc := []byte(`[{"id":18446744073709551615,"content":"max","created_at":"x"}]`)
	require.NoError(t, os.WriteFile(s.Path(), doc, 0o644))

	_, err := s.Add(context.Background(), "overflow")
	require.ErrorIs(t, err, ErrIDSpaceExhausted)
	assert.Equal(t, doc, readFile(t, s.Path()))
}

func TestFileStore_LoadDirectoryFails(t *testing.T) {
	s := NewFileStore(t.TempDir())

	_, err := s.Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read ")
}

func TestFileStore_CreatesParentDirectories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "deeper", "data.json")
	s := NewFileStore(path)

	_, err := s.Add(context.Background(), "hi")
	require.NoError(t, err)
	assert.FileExists(t, path)
}

func TestFileStore_LeavesNoTempFiles(t *testing.T) {
	s := newTestFileStore(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_, err := s.Add(ctx, fmt.Sprintf("n%d", i))
		require.NoError(t, err)
	}
	require.NoError(t, s.Delete(ctx, 2))

	entries, err := os.ReadDir(filepath.Dir(s.Path()))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "data.json", entries[0].Name())
}

func TestFileStore_FailedWriteKeepsPreviousContent(t *testing.T) {
	s := newTestFileStore(t)
	ctx := context.Background()
	_, err := s.Add(ctx, "kept")
	require.NoError(t, err)
	before := readFile(t, s.Path())

	errDiskFull := errors.New("no space left on device")
	renameFile = func(string, string) error { return errDiskFull }
	t.Cleanup(func() { renameFile = os.Rename })

	_, err = s.Add(ctx, "lost")
	require.ErrorIs(t, err, errDiskFull)
	assert.Contains(t, err.Error(), "replace "+s.Path())

	_, err = s.Update(ctx, 1, "lost")
	require.ErrorIs(t, err, errDiskFull)
	require.ErrorIs(t, s.Delete(ctx, 1), errDiskFull)

	assert.Equal(t, before, readFile(t, s.Path()))
	entries, err := os.ReadDir(filepath.Dir(s.Path()))
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp files must be removed after a failed write")
	assert.Equal(t, "data.json", entries[0].Name())

	texts, err := s.Load(ctx)
	require.NoError(t, err)
	require.Len(t, texts, 1)
	assert.Equal(t, "kept", texts[0].Content)
}

func TestFileStore_ConcurrentAddsKeepEveryText(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")
	ctx := context.Background()
	const n = 40

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// A fresh store per goroutine still shares the per-path lock.
			_, err := NewFileStore(path).Add(ctx, fmt.Sprintf("text %d", i))
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	texts, err := NewFileStore(path).Load(ctx)
	require.NoError(t, err)
	require.Len(t, texts, n)
	seen := make(map[uint64]bool, n)
	for i, text := range texts {
		assert.Equal(t, uint64(i+1), text.ID)
		seen[text.ID] = true
	}
	assert.Len(t, seen, n)
}

func TestFileStore_LockRespectsContext(t *testing.T) {
	s := newTestFileStore(t)
	sem := lockFor(s.Path())
	require.NoError(t, sem.Acquire(context.Background(), 1))
	defer sem.Release(1)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := s.Add(ctx, "blocked")
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

// mutationLogs are the debug messages every backend writes for add, update and delete.
var mutationLogs = []string{"text added", "text updated", "text deleted"}

func messages(logs *observer.ObservedLogs) []string {
	var out []string
	for _, e := range logs.All() {
		out = append(out, e.Message)
	}
	return out
}

func TestFileStore_LogsMutations(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	s := NewFileStore(filepath.Join(t.TempDir(), "data.json"), WithLogger(zap.New(core)))
	ctx := context.Background()

	_, err := s.Add(ctx, "a")
	require.NoError(t, err)
	_, err = s.Update(ctx, 1, "b")
	require.NoError(t, err)
	require.NoError(t, s.Delete(ctx, 1))

	assert.Equal(t, mutationLogs, messages(logs))
}

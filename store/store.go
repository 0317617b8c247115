// Package store persists the ordered list of text notes.
//
// Every operation is a full read-modify-write round trip against the
// backing medium; no state is cached between calls.
package store

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Store is the persistence contract shared by all backends.
type Store interface {
	// Load returns every text in insertion order. A missing store yields an empty slice.
	Load(ctx context.Context) ([]TextItem, error)
	// Add appends a new text and returns it.
	Add(ctx context.Context, content string) (TextItem, error)
	// Update replaces the content of an existing text and returns it.
	Update(ctx context.Context, id uint64, content string) (TextItem, error)
	// Delete removes the text with id. Deleting a missing id is not an error.
	Delete(ctx context.Context, id uint64) error
	// Close releases resources held by the backend.
	Close() error
}

// Watcher is implemented by backends that can report changes made by any writer.
type Watcher interface {
	// Watch calls onChange after the stored collection changes. It blocks until ctx is done.
	Watch(ctx context.Context, onChange func()) error
}

// Clock returns the current time. It stamps CreatedAt on new texts.
type Clock func() time.Time

type options struct {
	clock    Clock
	logger   *zap.Logger
	debounce time.Duration
}

// Option configures a backend.
type Option func(*options)

// WithClock overrides the time source used for CreatedAt.
func WithClock(c Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithDebounce sets how long a watcher waits for a burst of file events to settle.
func WithDebounce(d time.Duration) Option {
	return func(o *options) { o.debounce = d }
}

func buildOptions(opts []Option) options {
	o := options{
		clock:    time.Now,
		logger:   zap.NewNop(),
		debounce: 100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

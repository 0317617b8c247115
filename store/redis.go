package store

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// DefaultRedisKey is the key holding the collection when none is configured.
const DefaultRedisKey = "textnotes:texts"

// maxTxRetries bounds optimistic transaction retries per operation.
const maxTxRetries = 8

// RedisStore keeps the whole collection as one JSON array under a single key.
// Mutations run as WATCH/MULTI transactions, so concurrent writers in other
// processes cannot lose each other's updates.
type RedisStore struct {
	client redis.UniversalClient
	key    string
	opts   options
}

// NewRedisStore creates a RedisStore. An empty key selects DefaultRedisKey.
func NewRedisStore(client redis.UniversalClient, key string, opts ...Option) *RedisStore {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisStore{client: client, key: key, opts: buildOptions(opts)}
}

// Key returns the key holding the collection.
func (s *RedisStore) Key() string {
	return s.key
}

func (s *RedisStore) channel() string {
	return s.key + ":changed"
}

// Load returns all texts in stored order.
func (s *RedisStore) Load(ctx context.Context) ([]TextItem, error) {
	return s.get(ctx, s.client)
}

// Add appends a new text with the next id.
func (s *RedisStore) Add(ctx context.Context, content string) (TextItem, error) {
	var created TextItem
	err := s.modify(ctx, func(c Collection) (Collection, bool, error) {
		next, item, err := c.add(content, s.opts.clock())
		created = item
		return next, err == nil, err
	})
	if err != nil {
		return TextItem{}, err
	}
	s.opts.logger.Debug("text added", zap.Uint64("id", created.ID), zap.String("key", s.key))
	return created, nil
}

// Update replaces the content of the text with id.
func (s *RedisStore) Update(ctx context.Context, id uint64, content string) (TextItem, error) {
	var updated TextItem
	err := s.modify(ctx, func(c Collection) (Collection, bool, error) {
		next, item, err := c.update(id, content)
		updated = item
		return next, err == nil, err
	})
	if err != nil {
		return TextItem{}, err
	}
	s.opts.logger.Debug("text updated", zap.Uint64("id", id), zap.String("key", s.key))
	return updated, nil
}

// Delete removes every text with id.
func (s *RedisStore) Delete(ctx context.Context, id uint64) error {
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

// Close closes the underlying client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Watch subscribes to change notices published by every RedisStore sharing the key.
func (s *RedisStore) Watch(ctx context.Context, onChange func()) error {
	sub := s.client.Subscribe(ctx, s.channel())
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", s.channel(), err)
	}
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-ch:
			if !ok {
				return nil
			}
			onChange()
		}
	}
}

// getter is satisfied by both the client and a transaction.
type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (s *RedisStore) get(ctx context.Context, c getter) (Collection, error) {
	data, err := c.Get(ctx, s.key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return Collection{}, nil
		}
		return nil, fmt.Errorf("get %s: %w", s.key, err)
	}
	return decodeCollection(data)
}

// modify runs fn inside an optimistic transaction on the collection key and
// publishes a change notice when the collection was rewritten.
func (s *RedisStore) modify(ctx context.Context, fn func(Collection) (Collection, bool, error)) error {
	txf := func(tx *redis.Tx) error {
		c, err := s.get(ctx, tx)
		if err != nil {
			return err
		}
		next, changed, err := fn(c)
		if err != nil || !changed {
			return err
		}
		data, err := next.encode()
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, s.key, data, 0)
			pipe.Publish(ctx, s.channel(), "changed")
			return nil
		})
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := s.client.Watch(ctx, txf, s.key)
		if err == redis.TxFailedErr {
			s.opts.logger.Debug("redis transaction conflict, retrying", zap.String("key", s.key), zap.Int("attempt", i+1))
			continue
		}
		return err
	}
	return ErrConflict
}

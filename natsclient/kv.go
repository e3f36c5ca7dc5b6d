package natsclient

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go/jetstream"
)

// KVEntry wraps a KV entry with its revision
type KVEntry struct {
	Key      string
	Value    []byte
	Revision uint64
}

// KVOptions configures KV operations behavior
type KVOptions struct {
	Timeout time.Duration // Operation timeout
}

// DefaultKVOptions returns the defaults: a 5-second per-operation timeout
func DefaultKVOptions() KVOptions {
	return KVOptions{
		Timeout: 5 * time.Second,
	}
}

// KVStore provides high-level KV operations over a JetStream bucket.
type KVStore struct {
	bucket  jetstream.KeyValue
	options KVOptions
	logger  Logger
}

// NewKVStore creates a new KV store with the given bucket
func (c *Client) NewKVStore(bucket jetstream.KeyValue, opts ...func(*KVOptions)) *KVStore {
	options := DefaultKVOptions()
	for _, opt := range opts {
		opt(&options)
	}

	return &KVStore{
		bucket:  bucket,
		options: options,
		logger:  c.logger,
	}
}

// applyTimeout applies the configured timeout to the context if set
func (kv *KVStore) applyTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if kv.options.Timeout > 0 {
		return context.WithTimeout(ctx, kv.options.Timeout)
	}
	return ctx, func() {} // no-op cancel
}

// Get retrieves a value with its revision
func (kv *KVStore) Get(ctx context.Context, key string) (*KVEntry, error) {
	ctx, cancel := kv.applyTimeout(ctx)
	defer cancel()

	entry, err := kv.bucket.Get(ctx, key)
	if err != nil {
		if IsKVNotFoundError(err) {
			return nil, ErrKVKeyNotFound
		}
		return nil, fmt.Errorf("kv get %s: %w", key, err)
	}

	return &KVEntry{
		Key:      key,
		Value:    entry.Value(),
		Revision: entry.Revision(),
	}, nil
}

// Put creates or updates a key without revision check (last writer wins)
func (kv *KVStore) Put(ctx context.Context, key string, value []byte) (uint64, error) {
	ctx, cancel := kv.applyTimeout(ctx)
	defer cancel()

	rev, err := kv.bucket.Put(ctx, key, value)
	if err != nil {
		return 0, fmt.Errorf("kv put %s: %w", key, err)
	}

	if kv.logger != nil {
		kv.logger.Printf("KV Put: key=%s, revision=%d", key, rev)
	}

	return rev, nil
}

// Delete removes a key from the bucket
func (kv *KVStore) Delete(ctx context.Context, key string) error {
	ctx, cancel := kv.applyTimeout(ctx)
	defer cancel()

	err := kv.bucket.Delete(ctx, key)
	if err != nil {
		if IsKVNotFoundError(err) {
			return ErrKVKeyNotFound
		}
		return fmt.Errorf("kv delete %s: %w", key, err)
	}

	if kv.logger != nil {
		kv.logger.Printf("KV Delete: key=%s", key)
	}

	return nil
}

// IsKVNotFoundError checks if error indicates key not found
func IsKVNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrKVKeyNotFound) {
		return true
	}
	errMsg := err.Error()
	return strings.Contains(errMsg, "key not found") ||
		strings.Contains(errMsg, "10037")
}

// ErrKVKeyNotFound is returned by Get/Delete when the key does not exist.
var ErrKVKeyNotFound = errors.New("kv: key not found")

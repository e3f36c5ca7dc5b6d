package txn

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/c360/webpa-gateway/errors"
	"github.com/c360/webpa-gateway/natsclient"
)

// SnapshotStore persists the pre-transaction values needed to roll an
// atomic transaction back on failure, keyed by transaction id.
type SnapshotStore interface {
	Save(ctx context.Context, txnID string, backup map[string]string) error
	Load(ctx context.Context, txnID string) (map[string]string, error)
	Delete(ctx context.Context, txnID string) error
}

// MemoryStore is the default SnapshotStore: an in-process map. Snapshots
// do not survive a process restart.
type MemoryStore struct {
	mu    sync.Mutex
	saved map[string]map[string]string
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{saved: make(map[string]map[string]string)}
}

func (s *MemoryStore) Save(ctx context.Context, txnID string, backup map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved[txnID] = backup
	return nil
}

func (s *MemoryStore) Load(ctx context.Context, txnID string) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	backup, ok := s.saved[txnID]
	if !ok {
		return nil, errors.WithKind(errors.KindNotFound, errors.ErrElementNotFound, "txn", "Load")
	}
	return backup, nil
}

func (s *MemoryStore) Delete(ctx context.Context, txnID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.saved, txnID)
	return nil
}

// JetStreamSnapshotStore persists rollback backups in a NATS JetStream KV
// bucket via natsclient.KVStore, so in-flight transaction state survives a
// process restart. It uses KVStore's plain last-writer-wins Put, Get and
// Delete; there is no revision check or retry.
type JetStreamSnapshotStore struct {
	kv *natsclient.KVStore
}

// NewJetStreamSnapshotStore wraps an already-bound KeyValue bucket,
// obtaining its KVStore wrapper through the owning client.
func NewJetStreamSnapshotStore(client *natsclient.Client, bucket jetstream.KeyValue) *JetStreamSnapshotStore {
	return &JetStreamSnapshotStore{kv: client.NewKVStore(bucket)}
}

func (s *JetStreamSnapshotStore) Save(ctx context.Context, txnID string, backup map[string]string) error {
	payload, err := json.Marshal(backup)
	if err != nil {
		return errors.WithKind(errors.KindInternal, err, "txn", "JetStreamSnapshotStore.Save")
	}
	if _, err := s.kv.Put(ctx, txnID, payload); err != nil {
		return errors.WithKind(errors.KindUnavailable, err, "txn", "JetStreamSnapshotStore.Save")
	}
	return nil
}

func (s *JetStreamSnapshotStore) Load(ctx context.Context, txnID string) (map[string]string, error) {
	entry, err := s.kv.Get(ctx, txnID)
	if err != nil {
		return nil, errors.WithKind(errors.KindNotFound, err, "txn", "JetStreamSnapshotStore.Load")
	}
	var backup map[string]string
	if err := json.Unmarshal(entry.Value, &backup); err != nil {
		return nil, errors.WithKind(errors.KindInternal, err, "txn", "JetStreamSnapshotStore.Load")
	}
	return backup, nil
}

func (s *JetStreamSnapshotStore) Delete(ctx context.Context, txnID string) error {
	if err := s.kv.Delete(ctx, txnID); err != nil {
		return errors.WithKind(errors.KindInternal, err, "txn", "JetStreamSnapshotStore.Delete")
	}
	return nil
}

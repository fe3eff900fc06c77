package snapshot

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Static errors for err113 compliance.
var (
	ErrSnapshotNotFound    = errors.New("snapshot not found")
	ErrInvalidName         = errors.New("invalid snapshot name")
	ErrNATSConfigRequired  = errors.New("NATS configuration required for NATS backend")
	ErrUnsupportedBackend  = errors.New("unsupported snapshot backend")
	ErrBulkClientRequired  = errors.New("bulk client required")
	ErrBucketRequired      = errors.New("bucket required")
	ErrEndpointRequired    = errors.New("endpoint required")
	ErrUnsupportedEncoding = errors.New("unsupported snapshot encoding")
)

// Bucket is a flat key-value namespace holding encoded snapshots. Get returns
// ErrSnapshotNotFound for unknown keys.
type Bucket interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context) ([]string, error)
}

// BackendType represents the type of snapshot backend.
type BackendType string

const (
	// BackendMemory keeps snapshots in process memory.
	BackendMemory BackendType = "memory"

	// BackendNATS keeps snapshots in a JetStream key-value bucket.
	BackendNATS BackendType = "nats"
)

// Config configures the snapshot backend.
type Config struct {
	// Backend is the backend type; memory when empty.
	Backend BackendType

	// NATS configures the JetStream bucket for BackendNATS.
	NATS *NATSConfig
}

// NewBucketFromConfig creates a bucket from configuration. The returned close
// function releases the backend's connection, if any.
func NewBucketFromConfig(ctx context.Context, config *Config) (Bucket, func(), error) {
	if config == nil {
		config = &Config{Backend: BackendMemory}
	}

	switch config.Backend {
	case BackendMemory, "":
		return NewMemoryBucket(), func() {}, nil

	case BackendNATS:
		if config.NATS == nil {
			return nil, nil, ErrNATSConfigRequired
		}

		bucket, err := OpenJetStream(ctx, config.NATS)
		if err != nil {
			return nil, nil, err
		}

		return bucket, bucket.Close, nil

	default:
		return nil, nil, fmt.Errorf("%w: %s", ErrUnsupportedBackend, config.Backend)
	}
}

// MemoryBucket is an in-process Bucket.
type MemoryBucket struct {
	mu    sync.RWMutex
	items map[string][]byte
}

// NewMemoryBucket creates an empty memory bucket.
func NewMemoryBucket() *MemoryBucket {
	return &MemoryBucket{
		items: make(map[string][]byte),
	}
}

// Get implements Bucket.
func (b *MemoryBucket) Get(_ context.Context, key string) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	value, ok := b.items[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSnapshotNotFound, key)
	}

	return append([]byte(nil), value...), nil
}

// Put implements Bucket.
func (b *MemoryBucket) Put(_ context.Context, key string, value []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.items[key] = append([]byte(nil), value...)

	return nil
}

// Delete implements Bucket.
func (b *MemoryBucket) Delete(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.items, key)

	return nil
}

// Keys implements Bucket. Keys are returned sorted.
func (b *MemoryBucket) Keys(_ context.Context) ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	keys := make([]string, 0, len(b.items))
	for key := range b.items {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	return keys, nil
}

package snapshot

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// DefaultBucketName is the key-value bucket used when NATSConfig.Bucket is empty.
const DefaultBucketName = "apisix_snapshots"

// NATSConfig configures the JetStream key-value backend.
type NATSConfig struct {
	// URL of the NATS server; nats.DefaultURL when empty.
	URL string
	// Bucket name; DefaultBucketName when empty.
	Bucket string
	// History is the number of revisions kept per snapshot name.
	History uint8
	// TTL expires snapshots; zero keeps them forever.
	TTL time.Duration
	// Replicas of the bucket stream.
	Replicas int
	// Options are passed to nats.Connect.
	Options []nats.Option
}

// keyValue is the part of jetstream.KeyValue the bucket uses.
type keyValue interface {
	Get(ctx context.Context, key string) (jetstream.KeyValueEntry, error)
	Put(ctx context.Context, key string, value []byte) (uint64, error)
	Delete(ctx context.Context, key string, opts ...jetstream.KVDeleteOpt) error
	ListKeys(ctx context.Context, opts ...jetstream.WatchOpt) (jetstream.KeyLister, error)
}

// JetStreamBucket is a Bucket backed by a JetStream key-value store.
type JetStreamBucket struct {
	kv   keyValue
	conn *nats.Conn
}

// OpenJetStream connects to NATS and creates or updates the configured bucket.
func OpenJetStream(ctx context.Context, config *NATSConfig) (*JetStreamBucket, error) {
	if config == nil {
		return nil, ErrNATSConfigRequired
	}

	url := config.URL
	if url == "" {
		url = nats.DefaultURL
	}

	conn, err := nats.Connect(url, append([]nats.Option{nats.Name("apisix-client-snapshots")}, config.Options...)...)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", url, err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()

		return nil, fmt.Errorf("creating JetStream context: %w", err)
	}

	name := config.Bucket
	if name == "" {
		name = DefaultBucketName
	}

	history := config.History
	if history == 0 {
		history = 1
	}

	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      name,
		Description: "APISIX configuration snapshots",
		History:     history,
		TTL:         config.TTL,
		Replicas:    config.Replicas,
	})
	if err != nil {
		conn.Close()

		return nil, fmt.Errorf("creating bucket %s: %w", name, err)
	}

	return &JetStreamBucket{kv: kv, conn: conn}, nil
}

// NewJetStreamBucket wraps an existing key-value bucket. The caller keeps
// ownership of the underlying connection.
func NewJetStreamBucket(kv jetstream.KeyValue) *JetStreamBucket {
	return &JetStreamBucket{kv: kv}
}

// Get implements Bucket.
func (b *JetStreamBucket) Get(ctx context.Context, key string) ([]byte, error) {
	entry, err := b.kv.Get(ctx, key)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) || errors.Is(err, jetstream.ErrKeyDeleted) {
			return nil, fmt.Errorf("%w: %s", ErrSnapshotNotFound, key)
		}

		return nil, fmt.Errorf("kv get %s: %w", key, err)
	}

	return entry.Value(), nil
}

// Put implements Bucket.
func (b *JetStreamBucket) Put(ctx context.Context, key string, value []byte) error {
	_, err := b.kv.Put(ctx, key, value)
	if err != nil {
		return fmt.Errorf("kv put %s: %w", key, err)
	}

	return nil
}

// Delete implements Bucket.
func (b *JetStreamBucket) Delete(ctx context.Context, key string) error {
	err := b.kv.Delete(ctx, key)
	if err != nil {
		return fmt.Errorf("kv delete %s: %w", key, err)
	}

	return nil
}

// Keys implements Bucket. Keys are returned sorted.
func (b *JetStreamBucket) Keys(ctx context.Context) ([]string, error) {
	lister, err := b.kv.ListKeys(ctx)
	if err != nil {
		if errors.Is(err, jetstream.ErrNoKeysFound) {
			return []string{}, nil
		}

		return nil, fmt.Errorf("kv list keys: %w", err)
	}

	defer func() { _ = lister.Stop() }()

	keys := []string{}
	for key := range lister.Keys() {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	return keys, nil
}

// Close drains the connection opened by OpenJetStream.
func (b *JetStreamBucket) Close() {
	if b.conn != nil {
		_ = b.conn.Drain()
	}
}

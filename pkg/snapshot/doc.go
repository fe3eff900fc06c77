// Package snapshot keeps named exports of gateway collections and replays
// them through the import engine.
//
// Snapshots live in a Bucket. Two backends are provided: an in-process
// MemoryBucket and a JetStreamBucket backed by a NATS JetStream key-value
// store, which keeps a configurable revision history per name.
//
//	bucket, closeFn, err := snapshot.NewBucketFromConfig(ctx, &snapshot.Config{
//		Backend: snapshot.BackendNATS,
//		NATS:    &snapshot.NATSConfig{URL: "nats://127.0.0.1:4222", History: 5},
//	})
//	if err != nil {
//		return err
//	}
//	defer closeFn()
//
//	store, _ := snapshot.NewStore(bucket, nil)
//	_, err = store.Backup(ctx, client, "/apisix/admin/routes", "routes.nightly", apisix.ExportFormatYAML)
//
// Restore imports a snapshot into the endpoint it was taken from, so a
// snapshot taken from a 3.x gateway can be replayed onto a 2.x one.
package snapshot

package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/fivetwenty-io/apisix-client/pkg/apisix"
)

// validName matches keys JetStream accepts: dot-separated tokens of
// letters, digits, dash, underscore, slash and equals.
var validName = regexp.MustCompile(`^[-/_=a-zA-Z0-9]+(\.[-/_=a-zA-Z0-9]+)*$`)

// Snapshot is one exported collection kept under a name.
type Snapshot struct {
	Name      string              `json:"name"`
	Endpoint  string              `json:"endpoint"`
	Format    apisix.ExportFormat `json:"format"`
	Records   int                 `json:"records"`
	CreatedAt time.Time           `json:"created_at"`
	Data      string              `json:"data"`
}

// Transferer is the part of apisix.BulkClient used for backup and restore.
type Transferer interface {
	ExportData(ctx context.Context, endpoint string, opts *apisix.ExportOptions) (string, error)
	ImportString(ctx context.Context, endpoint, data string, opts *apisix.ImportOptions) (*apisix.ImportResult, error)
}

// Store saves collection exports into a Bucket and replays them.
type Store struct {
	bucket Bucket
	logger apisix.Logger
	now    func() time.Time
}

// NewStore creates a store over bucket. A nil logger discards output.
func NewStore(bucket Bucket, logger apisix.Logger) (*Store, error) {
	if bucket == nil {
		return nil, ErrBucketRequired
	}

	if logger == nil {
		logger = apisix.NopLogger()
	}

	return &Store{
		bucket: bucket,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}, nil
}

// ValidateName reports whether name can be used as a snapshot key.
func ValidateName(name string) error {
	if !validName.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	return nil
}

// Save writes snap under snap.Name, replacing any previous revision.
func (s *Store) Save(ctx context.Context, snap *Snapshot) error {
	err := ValidateName(snap.Name)
	if err != nil {
		return err
	}

	encoded, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encoding snapshot %s: %w", snap.Name, err)
	}

	err = s.bucket.Put(ctx, snap.Name, encoded)
	if err != nil {
		return fmt.Errorf("saving snapshot %s: %w", snap.Name, err)
	}

	return nil
}

// Load reads the snapshot stored under name.
func (s *Store) Load(ctx context.Context, name string) (*Snapshot, error) {
	err := ValidateName(name)
	if err != nil {
		return nil, err
	}

	encoded, err := s.bucket.Get(ctx, name)
	if err != nil {
		return nil, err
	}

	var snap Snapshot

	err = json.Unmarshal(encoded, &snap)
	if err != nil {
		return nil, fmt.Errorf("decoding snapshot %s: %w", name, err)
	}

	return &snap, nil
}

// List returns every snapshot in the bucket ordered by name. Entries that
// fail to decode are logged and left out.
func (s *Store) List(ctx context.Context) ([]*Snapshot, error) {
	names, err := s.bucket.Keys(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}

	snapshots := make([]*Snapshot, 0, len(names))

	for _, name := range names {
		snap, err := s.Load(ctx, name)
		if err != nil {
			s.logger.Warn("skipping unreadable snapshot", map[string]interface{}{
				"name":  name,
				"error": err.Error(),
			})

			continue
		}

		snapshots = append(snapshots, snap)
	}

	return snapshots, nil
}

// Delete removes the snapshot stored under name.
func (s *Store) Delete(ctx context.Context, name string) error {
	err := ValidateName(name)
	if err != nil {
		return err
	}

	_, err = s.bucket.Get(ctx, name)
	if err != nil {
		return err
	}

	err = s.bucket.Delete(ctx, name)
	if err != nil {
		return fmt.Errorf("deleting snapshot %s: %w", name, err)
	}

	return nil
}

// Backup exports endpoint through client and saves the result as name.
func (s *Store) Backup(ctx context.Context, client Transferer, endpoint, name string, format apisix.ExportFormat) (*Snapshot, error) {
	if client == nil {
		return nil, ErrBulkClientRequired
	}

	if endpoint == "" {
		return nil, ErrEndpointRequired
	}

	err := ValidateName(name)
	if err != nil {
		return nil, err
	}

	if format == "" {
		format = apisix.ExportFormatJSON
	}

	if format != apisix.ExportFormatJSON && format != apisix.ExportFormatYAML {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedEncoding, format)
	}

	data, err := client.ExportData(ctx, endpoint, &apisix.ExportOptions{Format: format})
	if err != nil {
		return nil, fmt.Errorf("exporting %s: %w", endpoint, err)
	}

	records, _, _ := apisix.ParseRecords(data, format)

	snap := &Snapshot{
		Name:      name,
		Endpoint:  endpoint,
		Format:    format,
		Records:   len(records),
		CreatedAt: s.now(),
		Data:      data,
	}

	err = s.Save(ctx, snap)
	if err != nil {
		return nil, err
	}

	s.logger.Info("snapshot saved", map[string]interface{}{
		"name":     name,
		"endpoint": endpoint,
		"records":  snap.Records,
	})

	return snap, nil
}

// Restore imports the snapshot stored under name into the endpoint it was
// taken from. The snapshot format overrides opts.Format.
func (s *Store) Restore(ctx context.Context, client Transferer, name string, opts *apisix.ImportOptions) (*apisix.ImportResult, error) {
	if client == nil {
		return nil, ErrBulkClientRequired
	}

	snap, err := s.Load(ctx, name)
	if err != nil {
		return nil, err
	}

	importOpts := apisix.ImportOptions{}
	if opts != nil {
		importOpts = *opts
	}

	importOpts.Format = snap.Format

	result, err := client.ImportString(ctx, snap.Endpoint, snap.Data, &importOpts)
	if err != nil {
		return result, fmt.Errorf("restoring snapshot %s: %w", name, err)
	}

	s.logger.Info("snapshot restored", map[string]interface{}{
		"name":    name,
		"created": result.Created,
		"updated": result.Updated,
		"skipped": result.Skipped,
		"errors":  len(result.Errors),
	})

	return result, nil
}

package apisix

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/fivetwenty-io/apisix-client/internal/constants"
)

// Static errors for err113 compliance.
var (
	ErrRecordNotObject    = errors.New("record is not an object")
	ErrPayloadNotSequence = errors.New("payload is not a list of records")
)

// ExportFormat is a textual serialization of a record set.
type ExportFormat string

const (
	ExportFormatJSON ExportFormat = "json"
	ExportFormatYAML ExportFormat = "yaml"
)

// ExportOptions configures ExportData.
type ExportOptions struct {
	Format ExportFormat
	// Include keeps only the listed top-level fields (the identity field is always kept).
	Include []string
	// Exclude drops the listed top-level fields.
	Exclude []string
	// Pretty indents JSON output.
	Pretty bool
}

// ConflictStrategy governs how an import handles an id that already exists.
type ConflictStrategy string

const (
	// StrategyReplace overwrites the existing entity unconditionally.
	StrategyReplace ConflictStrategy = "replace"
	// StrategyMerge shallow-merges the record over the existing entity.
	StrategyMerge ConflictStrategy = "merge"
	// StrategySkipExisting leaves existing entities untouched.
	StrategySkipExisting ConflictStrategy = "skip_existing"
)

// ImportOptions configures ImportData.
type ImportOptions struct {
	Strategy ConflictStrategy
	// Validate runs the entity profile pre-flight check on every record.
	Validate bool
	// DryRun resolves every record but performs no writes.
	DryRun bool
	// Format of a string payload; detected from the first character when empty.
	Format ExportFormat
}

// ImportError identifies one failed import record.
type ImportError struct {
	Index   int    `json:"index"   yaml:"index"`
	ID      string `json:"id"      yaml:"id"`
	Message string `json:"message" yaml:"message"`
	Err     error  `json:"-"       yaml:"-"`
}

// ImportResult is the ledger of an import run.
type ImportResult struct {
	Total   int           `json:"total"   yaml:"total"`
	Created int           `json:"created" yaml:"created"`
	Updated int           `json:"updated" yaml:"updated"`
	Skipped int           `json:"skipped" yaml:"skipped"`
	Errors  []ImportError `json:"errors"  yaml:"errors"`
	DryRun  bool          `json:"dry_run" yaml:"dry_run"`
}

func (r *ImportResult) addError(index int, id string, err error) {
	r.Errors = append(r.Errors, ImportError{Index: index, ID: id, Message: err.Error(), Err: err})
}

// TransferEngine exports collections and imports them back.
type TransferEngine struct {
	provider ResourceProvider
	logger   Logger
}

// NewTransferEngine creates a new import/export engine.
func NewTransferEngine(provider ResourceProvider, logger Logger) *TransferEngine {
	if logger == nil {
		logger = NopLogger()
	}

	return &TransferEngine{
		provider: provider,
		logger:   logger,
	}
}

// ExportData fetches the complete collection at endpoint and serializes it.
// Pagination is never applied to an export.
func (t *TransferEngine) ExportData(ctx context.Context, endpoint string, opts *ExportOptions) (string, error) {
	if opts == nil {
		opts = &ExportOptions{}
	}

	format := opts.Format
	if format == "" {
		format = ExportFormatJSON
	}

	if format != ExportFormatJSON && format != ExportFormatYAML {
		return "", &ValidationError{Field: "format", Reason: fmt.Sprintf("%v: %q", ErrUnsupportedFormat, format)}
	}

	items, err := t.provider.Resource(endpoint).List(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("exporting %s: %w", endpoint, err)
	}

	identity := constants.ProfileFor(endpoint).IdentityField
	records := make([]Entity, 0, len(items))

	for _, item := range items {
		records = append(records, project(item, identity, opts.Include, opts.Exclude))
	}

	out, err := Marshal(records, format, opts.Pretty)
	if err != nil {
		return "", fmt.Errorf("exporting %s: %w", endpoint, err)
	}

	t.logger.Info("export completed", map[string]interface{}{
		"endpoint": endpoint,
		"format":   string(format),
		"records":  len(records),
	})

	return out, nil
}

// Marshal serializes records in the given format.
func Marshal(records []Entity, format ExportFormat, pretty bool) (string, error) {
	if records == nil {
		records = []Entity{}
	}

	switch format {
	case ExportFormatJSON, "":
		var (
			data []byte
			err  error
		)

		if pretty {
			data, err = json.MarshalIndent(records, "", "  ")
		} else {
			data, err = json.Marshal(records)
		}

		if err != nil {
			return "", fmt.Errorf("encoding json: %w", err)
		}

		return string(data), nil
	case ExportFormatYAML:
		var buffer bytes.Buffer

		encoder := yaml.NewEncoder(&buffer)
		encoder.SetIndent(2)

		err := encoder.Encode(records)
		if err != nil {
			return "", fmt.Errorf("encoding yaml: %w", err)
		}

		err = encoder.Close()
		if err != nil {
			return "", fmt.Errorf("encoding yaml: %w", err)
		}

		return buffer.String(), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

func project(item Entity, identity string, include, exclude []string) Entity {
	if len(include) == 0 && len(exclude) == 0 {
		return item
	}

	out := item.Copy()

	if len(include) > 0 {
		keep := map[string]bool{identity: true}
		for _, field := range include {
			keep[field] = true
		}

		for field := range out {
			if !keep[field] {
				delete(out, field)
			}
		}
	}

	for _, field := range exclude {
		delete(out, field)
	}

	return out
}

// ParseRecords decodes an import payload. A payload that cannot be decoded at
// all yields a single ParseError with index -1. Individual elements that are
// not objects yield per-record ParseErrors and are left out of the returned
// records; their positions are kept in the returned index slice.
func ParseRecords(data string, format ExportFormat) ([]Entity, []int, []error) {
	if format == "" {
		format = detectFormat(data)
	}

	var decoded interface{}

	switch format {
	case ExportFormatJSON:
		err := json.Unmarshal([]byte(data), &decoded)
		if err != nil {
			return nil, nil, []error{&ParseError{Format: string(format), Index: -1, Err: err}}
		}
	case ExportFormatYAML:
		err := yaml.Unmarshal([]byte(data), &decoded)
		if err != nil {
			return nil, nil, []error{&ParseError{Format: string(format), Index: -1, Err: err}}
		}
	default:
		return nil, nil, []error{&ParseError{Format: string(format), Index: -1, Err: ErrUnsupportedFormat}}
	}

	elements, ok := recordSequence(decoded)
	if !ok {
		return nil, nil, []error{&ParseError{Format: string(format), Index: -1, Err: ErrPayloadNotSequence}}
	}

	records := make([]Entity, 0, len(elements))
	indexes := make([]int, 0, len(elements))

	var errs []error

	for index, element := range elements {
		object, ok := element.(map[string]interface{})
		if !ok {
			errs = append(errs, &ParseError{Format: string(format), Index: index, Err: ErrRecordNotObject})

			continue
		}

		records = append(records, Entity(object))
		indexes = append(indexes, index)
	}

	return records, indexes, errs
}

// recordSequence accepts a bare list or a document holding one under items or list.
func recordSequence(decoded interface{}) ([]interface{}, bool) {
	switch value := decoded.(type) {
	case []interface{}:
		return value, true
	case map[string]interface{}:
		for _, key := range []string{"items", "list"} {
			if list, ok := value[key].([]interface{}); ok {
				return list, true
			}
		}
	case nil:
		return []interface{}{}, true
	}

	return nil, false
}

func detectFormat(data string) ExportFormat {
	trimmed := strings.TrimSpace(data)
	if strings.HasPrefix(trimmed, "[") || strings.HasPrefix(trimmed, "{") {
		return ExportFormatJSON
	}

	return ExportFormatYAML
}

// ImportString parses data and imports the records. Parse failures are
// reported in the result rather than returned.
func (t *TransferEngine) ImportString(ctx context.Context, endpoint, data string, opts *ImportOptions) (*ImportResult, error) {
	if opts == nil {
		opts = &ImportOptions{}
	}

	err := validateStrategy(opts.Strategy)
	if err != nil {
		return nil, err
	}

	records, indexes, parseErrs := ParseRecords(data, opts.Format)

	result, err := t.importRecords(ctx, endpoint, records, indexes, opts)
	if err != nil {
		return nil, err
	}

	for _, parseErr := range parseErrs {
		index := -1

		parsed := &ParseError{}
		if errors.As(parseErr, &parsed) {
			index = parsed.Index
		}

		if index >= 0 {
			result.Total++
		}

		result.addError(index, "", parseErr)
	}

	return result, nil
}

// ImportData imports typed records into endpoint.
func (t *TransferEngine) ImportData(ctx context.Context, endpoint string, records []Entity, opts *ImportOptions) (*ImportResult, error) {
	if opts == nil {
		opts = &ImportOptions{}
	}

	err := validateStrategy(opts.Strategy)
	if err != nil {
		return nil, err
	}

	indexes := make([]int, len(records))
	for index := range records {
		indexes[index] = index
	}

	return t.importRecords(ctx, endpoint, records, indexes, opts)
}

func validateStrategy(strategy ConflictStrategy) error {
	switch strategy {
	case "", StrategyReplace, StrategyMerge, StrategySkipExisting:
		return nil
	default:
		return &ValidationError{Field: "strategy", Reason: fmt.Sprintf("%v: %q", ErrUnsupportedStrategy, strategy)}
	}
}

// importRecords resolves records one at a time: one existence check per
// record, then a single write unless the run is a dry run.
func (t *TransferEngine) importRecords(ctx context.Context, endpoint string, records []Entity, indexes []int, opts *ImportOptions) (*ImportResult, error) {
	strategy := opts.Strategy
	if strategy == "" {
		strategy = StrategyReplace
	}

	profile := constants.ProfileFor(endpoint)
	resource := t.provider.Resource(endpoint)
	result := &ImportResult{
		Total:  len(records),
		Errors: []ImportError{},
		DryRun: opts.DryRun,
	}

	for position, record := range records {
		index := indexes[position]
		id := record.IdentityValue(profile.IdentityField)

		err := t.importRecord(ctx, resource, endpoint, strategy, record, id, opts, result)
		if err != nil {
			t.logger.Warn("import record failed", map[string]interface{}{
				"endpoint": endpoint,
				"index":    index,
				"id":       id,
				"error":    err.Error(),
			})
			result.addError(index, id, err)
		}
	}

	t.logger.Info("import completed", map[string]interface{}{
		"endpoint": endpoint,
		"strategy": string(strategy),
		"dry_run":  opts.DryRun,
		"total":    result.Total,
		"created":  result.Created,
		"updated":  result.Updated,
		"skipped":  result.Skipped,
		"errors":   len(result.Errors),
	})

	return result, nil
}

func (t *TransferEngine) importRecord(
	ctx context.Context,
	resource ResourceClient,
	endpoint string,
	strategy ConflictStrategy,
	record Entity,
	id string,
	opts *ImportOptions,
	result *ImportResult,
) error {
	if opts.Validate {
		err := ValidateEntity(endpoint, record)
		if err != nil {
			return err
		}
	}

	payload := record.Without(constants.FieldCreateTime, constants.FieldUpdateTime)

	if id == "" {
		return t.write(ctx, resource, "", payload, false, opts.DryRun, result)
	}

	existing, err := resource.Get(ctx, id)
	if err != nil && !IsNotFound(err) {
		return fmt.Errorf("checking existing %s: %w", id, err)
	}

	exists := err == nil

	if exists {
		switch strategy {
		case StrategySkipExisting:
			result.Skipped++

			return nil
		case StrategyMerge:
			payload = existing.Without(constants.FieldCreateTime, constants.FieldUpdateTime).Merge(payload)
		case StrategyReplace:
		}
	}

	return t.write(ctx, resource, id, payload, exists, opts.DryRun, result)
}

func (t *TransferEngine) write(ctx context.Context, resource ResourceClient, id string, payload Entity, exists, dryRun bool, result *ImportResult) error {
	if dryRun {
		if exists {
			result.Updated++
		} else {
			result.Created++
		}

		return nil
	}

	if exists {
		_, err := resource.Update(ctx, id, payload)
		if err != nil {
			return fmt.Errorf("updating %s: %w", id, err)
		}

		result.Updated++

		return nil
	}

	_, err := resource.Create(ctx, id, payload)
	if err != nil {
		return fmt.Errorf("creating %s: %w", id, err)
	}

	result.Created++

	return nil
}

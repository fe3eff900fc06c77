package apisix

import (
	"context"
	"fmt"
	"time"
)

// OperationType is the kind of write a batch operation performs.
type OperationType string

const (
	OperationCreate OperationType = "create"
	OperationUpdate OperationType = "update"
	OperationDelete OperationType = "delete"
)

// BatchOperation represents a single operation in a batch. ID is required for
// update and delete, optional for create.
type BatchOperation struct {
	Operation OperationType `json:"operation"      yaml:"operation"`
	ID        string        `json:"id,omitempty"   yaml:"id,omitempty"`
	Data      Entity        `json:"data,omitempty" yaml:"data,omitempty"`
}

// Validate checks the descriptor shape without touching the network.
func (o BatchOperation) Validate() error {
	switch o.Operation {
	case OperationCreate:
		if len(o.Data) == 0 {
			return &ValidationError{Field: "data", Reason: "is required for create"}
		}
	case OperationUpdate:
		if o.ID == "" {
			return &ValidationError{Field: "id", Reason: "is required for update"}
		}

		if len(o.Data) == 0 {
			return &ValidationError{Field: "data", Reason: "is required for update"}
		}
	case OperationDelete:
		if o.ID == "" {
			return &ValidationError{Field: "id", Reason: "is required for delete"}
		}
	default:
		return &ValidationError{Field: "operation", Reason: fmt.Sprintf("%v: %q", ErrUnsupportedOperation, o.Operation)}
	}

	return nil
}

// BatchResult represents the result of one attempted operation.
type BatchResult struct {
	Index     int
	Operation OperationType
	Success   bool
	ID        string
	Data      Entity
	Error     error
	Duration  time.Duration
}

// BatchOptions configures a batch run.
type BatchOptions struct {
	// ContinueOnError keeps going after a failed operation. When false the
	// batch stops at the first failure and returns it as an error.
	ContinueOnError bool
	// ValidateBeforeExecution checks every descriptor, and every payload
	// against its entity profile, before the first request is sent.
	ValidateBeforeExecution bool
	// OnResult is called after each recorded operation.
	OnResult func(result BatchResult)
}

// DefaultBatchOptions returns the default batch options.
func DefaultBatchOptions() *BatchOptions {
	return &BatchOptions{
		ContinueOnError: true,
	}
}

// BatchSummary is the ledger of a batch run. Successful and Failed only count
// attempted operations.
type BatchSummary struct {
	Total      int
	Successful int
	Failed     int
	Results    []BatchResult
}

// BatchExecutor applies ordered operations against one entity collection.
// Operations run strictly in order, one at a time: later operations may refer
// to ids created by earlier ones.
type BatchExecutor struct {
	provider ResourceProvider
	logger   Logger
}

// NewBatchExecutor creates a new batch executor.
func NewBatchExecutor(provider ResourceProvider, logger Logger) *BatchExecutor {
	if logger == nil {
		logger = NopLogger()
	}

	return &BatchExecutor{
		provider: provider,
		logger:   logger,
	}
}

// Execute runs operations against endpoint. Per-operation failures are
// recorded in the summary. When ContinueOnError is false the first failure
// stops the batch: operations after it are not attempted, the failure itself
// is returned as an error wrapping ErrBatchAborted, and Results only holds the
// operations that succeeded before it.
func (b *BatchExecutor) Execute(ctx context.Context, endpoint string, operations []BatchOperation, opts *BatchOptions) (*BatchSummary, error) {
	if opts == nil {
		opts = DefaultBatchOptions()
	}

	if opts.ValidateBeforeExecution {
		err := validateOperations(endpoint, operations)
		if err != nil {
			return nil, err
		}
	}

	resource := b.provider.Resource(endpoint)
	summary := &BatchSummary{
		Total:   len(operations),
		Results: make([]BatchResult, 0, len(operations)),
	}

	for index, operation := range operations {
		start := time.Now()
		result := b.executeOperation(ctx, resource, operation)
		result.Index = index
		result.Duration = time.Since(start)

		if !result.Success {
			summary.Failed++

			b.logger.Warn("batch operation failed", map[string]interface{}{
				"endpoint":  endpoint,
				"index":     index,
				"operation": string(operation.Operation),
				"id":        result.ID,
				"error":     result.Error.Error(),
			})

			if !opts.ContinueOnError {
				b.logSummary(endpoint, summary)

				return summary, fmt.Errorf("%w at operation %d (%s %s): %w",
					ErrBatchAborted, index, operation.Operation, result.ID, result.Error)
			}
		} else {
			summary.Successful++
		}

		summary.Results = append(summary.Results, *result)

		if opts.OnResult != nil {
			opts.OnResult(*result)
		}
	}

	b.logSummary(endpoint, summary)

	return summary, nil
}

func (b *BatchExecutor) logSummary(endpoint string, summary *BatchSummary) {
	b.logger.Info("batch completed", map[string]interface{}{
		"endpoint":   endpoint,
		"total":      summary.Total,
		"successful": summary.Successful,
		"failed":     summary.Failed,
	})
}

// executeOperation dispatches one descriptor to the resource client.
func (b *BatchExecutor) executeOperation(ctx context.Context, resource ResourceClient, operation BatchOperation) *BatchResult {
	result := &BatchResult{
		Operation: operation.Operation,
		ID:        operation.ID,
	}

	err := operation.Validate()
	if err != nil {
		result.Error = err

		return result
	}

	switch operation.Operation {
	case OperationCreate:
		data, err := resource.Create(ctx, operation.ID, operation.Data)
		result.recordWrite(data, err)
	case OperationUpdate:
		data, err := resource.Update(ctx, operation.ID, operation.Data)
		result.recordWrite(data, err)
	case OperationDelete:
		err := resource.Delete(ctx, operation.ID)
		result.Success = err == nil
		result.Error = err
	}

	return result
}

func (r *BatchResult) recordWrite(data Entity, err error) {
	if err != nil {
		r.Error = err

		return
	}

	r.Success = true
	r.Data = data

	if r.ID == "" && data != nil {
		r.ID = data.ID()
	}
}

func validateOperations(endpoint string, operations []BatchOperation) error {
	for index, operation := range operations {
		err := operation.Validate()
		if err == nil && operation.Operation != OperationDelete && RequiresValidation(endpoint) {
			err = ValidateEntity(endpoint, operation.Data)
		}

		if err != nil {
			return fmt.Errorf("operation %d: %w", index, err)
		}
	}

	return nil
}

// BatchBuilder helps build batch operations.
type BatchBuilder struct {
	operations []BatchOperation
}

// NewBatchBuilder creates a new batch builder.
func NewBatchBuilder() *BatchBuilder {
	return &BatchBuilder{
		operations: make([]BatchOperation, 0),
	}
}

// AddCreate adds a create operation. id may be empty for a server-assigned id.
func (b *BatchBuilder) AddCreate(id string, data Entity) *BatchBuilder {
	b.operations = append(b.operations, BatchOperation{Operation: OperationCreate, ID: id, Data: data})

	return b
}

// AddUpdate adds an update operation.
func (b *BatchBuilder) AddUpdate(id string, data Entity) *BatchBuilder {
	b.operations = append(b.operations, BatchOperation{Operation: OperationUpdate, ID: id, Data: data})

	return b
}

// AddDelete adds a delete operation.
func (b *BatchBuilder) AddDelete(id string) *BatchBuilder {
	b.operations = append(b.operations, BatchOperation{Operation: OperationDelete, ID: id})

	return b
}

// AddOperation adds a custom operation.
func (b *BatchBuilder) AddOperation(operation BatchOperation) *BatchBuilder {
	b.operations = append(b.operations, operation)

	return b
}

// Build returns the built operations.
func (b *BatchBuilder) Build() []BatchOperation {
	return b.operations
}

package apisix

import (
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
)

// WriteBatchReport renders a batch summary as a table followed by its totals.
func WriteBatchReport(w io.Writer, summary *BatchSummary) error {
	if summary == nil {
		return nil
	}

	table := tablewriter.NewWriter(w)
	table.Header("Index", "Operation", "ID", "Status", "Duration", "Error")

	for _, result := range summary.Results {
		status := "ok"
		message := ""

		if !result.Success {
			status = "failed"

			if result.Error != nil {
				message = result.Error.Error()
			}
		}

		_ = table.Append(
			strconv.Itoa(result.Index),
			string(result.Operation),
			result.ID,
			status,
			result.Duration.String(),
			message,
		)
	}

	err := table.Render()
	if err != nil {
		return fmt.Errorf("rendering batch report: %w", err)
	}

	_, err = fmt.Fprintf(w, "total: %d, successful: %d, failed: %d\n", summary.Total, summary.Successful, summary.Failed)
	if err != nil {
		return fmt.Errorf("writing batch report: %w", err)
	}

	return nil
}

// WriteImportReport renders an import result: the counters, then one row per error.
func WriteImportReport(w io.Writer, result *ImportResult) error {
	if result == nil {
		return nil
	}

	counters := tablewriter.NewWriter(w)
	counters.Header("Total", "Created", "Updated", "Skipped", "Errors", "Dry Run")

	_ = counters.Append(
		strconv.Itoa(result.Total),
		strconv.Itoa(result.Created),
		strconv.Itoa(result.Updated),
		strconv.Itoa(result.Skipped),
		strconv.Itoa(len(result.Errors)),
		strconv.FormatBool(result.DryRun),
	)

	err := counters.Render()
	if err != nil {
		return fmt.Errorf("rendering import report: %w", err)
	}

	if len(result.Errors) == 0 {
		return nil
	}

	errorsTable := tablewriter.NewWriter(w)
	errorsTable.Header("Index", "ID", "Error")

	for _, importErr := range result.Errors {
		_ = errorsTable.Append(strconv.Itoa(importErr.Index), importErr.ID, importErr.Message)
	}

	err = errorsTable.Render()
	if err != nil {
		return fmt.Errorf("rendering import errors: %w", err)
	}

	return nil
}

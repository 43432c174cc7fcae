package pipeline

import (
	"encoding/csv"
	"fmt"
	"os"
)

var errorReportHeader = []string{"upsert_key", "upsert_key_value", "salesforce_object", "code", "message"}

// writeErrorReport writes every error group to a new CSV in dir and returns
// its path and the number of error rows. The header is always written.
func writeErrorReport(dir string, groups [][]RowError) (string, int, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", 0, fmt.Errorf("failed to create report dir %s: %w", dir, err)
	}

	out, err := os.CreateTemp(dir, "error-report-*.csv")
	if err != nil {
		return "", 0, fmt.Errorf("failed to create error report: %w", err)
	}
	defer out.Close()

	w := csv.NewWriter(out)
	if err := w.Write(errorReportHeader); err != nil {
		return "", 0, fmt.Errorf("failed to write error report header: %w", err)
	}

	count := 0
	for _, group := range groups {
		for _, e := range group {
			record := []string{e.UpsertKey, e.UpsertKeyValue, e.Object, e.Code, e.Message}
			if err := w.Write(record); err != nil {
				return "", 0, fmt.Errorf("failed to write error report row: %w", err)
			}
			count++
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return "", 0, fmt.Errorf("failed to flush error report: %w", err)
	}

	return out.Name(), count, nil
}

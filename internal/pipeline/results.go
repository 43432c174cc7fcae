package pipeline

import (
	"fmt"

	"github.com/andresuchdata/s3csv2sfdc/internal/salesforce"
	"github.com/rs/zerolog/log"
)

// ParseBulkUpsertResults pairs each bulk result with the row at the same
// position in data. Rows past the shorter of the two slices are ignored.
func ParseBulkUpsertResults(results []salesforce.BulkResult, data []salesforce.Record, object, upsertKey string) ([]Success, []RowError) {
	if len(results) != len(data) {
		log.Warn().
			Str("object", object).
			Int("results", len(results)).
			Int("rows", len(data)).
			Msg("bulk results and source rows differ in length")
	}

	n := len(results)
	if len(data) < n {
		n = len(data)
	}

	successes := make([]Success, 0, n)
	rowErrors := make([]RowError, 0)
	for i := 0; i < n; i++ {
		result, row := results[i], data[i]

		if result.Success {
			successes = append(successes, Success{
				Object:  object,
				ID:      result.ID,
				Created: result.Created,
				Row:     row,
			})
			continue
		}

		keyValue := upsertKeyValue(row, upsertKey)
		for _, e := range result.Errors {
			rowErrors = append(rowErrors, RowError{
				UpsertKey:      upsertKey,
				UpsertKeyValue: keyValue,
				Object:         object,
				Code:           e.StatusCode,
				Message:        e.Message,
			})
		}
	}

	return successes, rowErrors
}

func upsertKeyValue(row salesforce.Record, upsertKey string) string {
	v, ok := row[upsertKey]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

package mapping

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/andresuchdata/s3csv2sfdc/internal/pipeline"
	"github.com/andresuchdata/s3csv2sfdc/internal/salesforce"
	"github.com/rs/zerolog/log"
)

// DefaultChunkRows bounds how many rows are held in memory per bulk push.
const DefaultChunkRows = 50000

var (
	ErrObjectNotSet      = errors.New("sync object is not set")
	ErrExternalIDNotSet  = errors.New("external id field is not set")
	ErrCRMNotConfigured  = errors.New("orchestrator has no salesforce client")
	ErrExternalIDMissing = errors.New("external id field is not in the mapped columns")
)

// CSVUpsertStep upserts every row of the downloaded CSV into Object, matched
// on ExternalID.
type CSVUpsertStep struct {
	Object     string
	ExternalID string
	// FieldMap renames source columns to Salesforce fields.
	FieldMap map[string]string
	// Strict drops columns FieldMap does not name.
	Strict    bool
	BatchSize int
	// ChunkRows defaults to DefaultChunkRows.
	ChunkRows int
}

// Name implements pipeline.Step.
func (s *CSVUpsertStep) Name() string {
	return "csv-upsert:" + s.Object
}

// Run implements pipeline.Step.
func (s *CSVUpsertStep) Run(ctx context.Context, o *pipeline.Orchestrator) error {
	if s.Object == "" {
		return ErrObjectNotSet
	}
	if s.ExternalID == "" {
		return ErrExternalIDNotSet
	}
	crm := o.CRM()
	if crm == nil {
		return ErrCRMNotConfigured
	}

	file, err := os.Open(o.DownloadedFile())
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", o.DownloadedFile(), err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return fmt.Errorf("failed to read CSV header: %w", err)
	}
	fields := s.fieldNames(header)

	hasExternalID := false
	for _, f := range fields {
		if f == s.ExternalID {
			hasExternalID = true
			break
		}
	}
	if !hasExternalID {
		return fmt.Errorf("%w: %s", ErrExternalIDMissing, s.ExternalID)
	}

	chunkRows := s.ChunkRows
	if chunkRows <= 0 {
		chunkRows = DefaultChunkRows
	}

	chunk := make([]salesforce.Record, 0, chunkRows)
	pushed := 0
	flush := func() error {
		if len(chunk) == 0 {
			return nil
		}
		results, err := crm.BulkUpsert(ctx, s.Object, chunk, s.ExternalID, salesforce.BulkOptions{BatchSize: s.BatchSize})
		if err != nil {
			return fmt.Errorf("upsert %s: %w", s.Object, err)
		}
		o.LogBatch(results, chunk, s.Object, s.ExternalID)
		pushed += len(chunk)
		chunk = make([]salesforce.Record, 0, chunkRows)
		return nil
	}

	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read CSV record: %w", err)
		}

		chunk = append(chunk, toRecord(fields, row))
		if len(chunk) >= chunkRows {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := flush(); err != nil {
		return err
	}

	log.Info().
		Str("object", s.Object).
		Str("external_id", s.ExternalID).
		Int("rows", pushed).
		Msg("upserted csv rows")
	return nil
}

// fieldNames maps each header column to its Salesforce field; "" skips the column.
func (s *CSVUpsertStep) fieldNames(header []string) []string {
	fields := make([]string, len(header))
	for i, col := range header {
		col = strings.TrimSpace(col)
		if i == 0 {
			col = strings.TrimPrefix(col, "\ufeff")
		}
		if mapped, ok := s.FieldMap[col]; ok {
			fields[i] = mapped
			continue
		}
		if !s.Strict {
			fields[i] = col
		}
	}
	return fields
}

// toRecord builds a record from a row. Empty cells are left out so an
// upsert never blanks an existing value.
func toRecord(fields, row []string) salesforce.Record {
	record := make(salesforce.Record, len(fields))
	for i, field := range fields {
		if field == "" || i >= len(row) {
			continue
		}
		value := strings.TrimSpace(row[i])
		if value == "" {
			continue
		}
		record[field] = value
	}
	return record
}

// ParseFieldMap parses "col=Field__c,col2=Field2__c".
func ParseFieldMap(s string) (map[string]string, error) {
	fieldMap := make(map[string]string)
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		col, field, ok := strings.Cut(pair, "=")
		col, field = strings.TrimSpace(col), strings.TrimSpace(field)
		if !ok || col == "" || field == "" {
			return nil, fmt.Errorf("invalid field mapping %q, want column=Field", pair)
		}
		fieldMap[col] = field
	}
	return fieldMap, nil
}

var _ pipeline.Step = (*CSVUpsertStep)(nil)

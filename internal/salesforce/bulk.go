package salesforce

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	// DefaultBatchSize is the number of records per bulk batch.
	DefaultBatchSize = 10000
	// BatchSizeDecrement is how much a batch shrinks after a payload-too-large error.
	BatchSizeDecrement = 1000
)

// BulkType runs Bulk API 1.0 jobs against one sObject.
type BulkType struct {
	client *Client
	object string
}

// Bulk returns the bulk handler for an sObject, e.g. client.Bulk("Contact").
func (c *Client) Bulk(object string) *BulkType {
	return &BulkType{client: c, object: object}
}

// Object is the sObject API name this handler writes to.
func (b *BulkType) Object() string {
	return b.object
}

// Upsert inserts or updates records matched on externalIDField.
func (b *BulkType) Upsert(ctx context.Context, records []Record, externalIDField string, opts BulkOptions) ([]BulkResult, error) {
	if externalIDField == "" {
		return nil, fmt.Errorf("upsert into %s requires an external id field", b.object)
	}
	return b.operation(ctx, "upsert", records, externalIDField, opts)
}

// Insert creates records.
func (b *BulkType) Insert(ctx context.Context, records []Record, opts BulkOptions) ([]BulkResult, error) {
	return b.operation(ctx, "insert", records, "", opts)
}

// Update updates records by Id.
func (b *BulkType) Update(ctx context.Context, records []Record, opts BulkOptions) ([]BulkResult, error) {
	return b.operation(ctx, "update", records, "", opts)
}

// operation runs the job once and, if Salesforce rejects a batch as too
// large, runs it exactly once more with a smaller batch size.
func (b *BulkType) operation(ctx context.Context, op string, records []Record, externalIDField string, opts BulkOptions) ([]BulkResult, error) {
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	results, err := b.runJob(ctx, op, records, externalIDField, batchSize)
	if err == nil {
		return results, nil
	}
	if !IsPayloadTooLarge(err) {
		return nil, err
	}

	newBatchSize := batchSize - BatchSizeDecrement
	if newBatchSize <= 0 {
		return nil, fmt.Errorf("%w: %d -> %d", ErrBatchSizeTooLow, batchSize, newBatchSize)
	}

	log.Warn().
		Str("object", b.object).
		Int("batch_size", batchSize).
		Int("new_batch_size", newBatchSize).
		Msg("payload too large, retrying with a lower batch size")

	return b.runJob(ctx, op, records, externalIDField, newBatchSize)
}

func (b *BulkType) runJob(ctx context.Context, op string, records []Record, externalIDField string, batchSize int) ([]BulkResult, error) {
	if len(records) == 0 {
		return []BulkResult{}, nil
	}

	job, err := b.createJob(ctx, op, externalIDField)
	if err != nil {
		return nil, err
	}

	batches := make([]batchInfo, 0, (len(records)+batchSize-1)/batchSize)
	for start := 0; start < len(records); start += batchSize {
		end := start + batchSize
		if end > len(records) {
			end = len(records)
		}

		batch, err := b.addBatch(ctx, job.ID, records[start:end])
		if err != nil {
			b.abortJob(ctx, job.ID)
			return nil, err
		}
		batches = append(batches, batch)
	}

	if err := b.setJobState(ctx, job.ID, jobStateClosed); err != nil {
		return nil, err
	}

	log.Debug().
		Str("object", b.object).
		Str("operation", op).
		Str("job_id", job.ID).
		Int("records", len(records)).
		Int("batches", len(batches)).
		Msg("bulk job submitted")

	results := make([]BulkResult, 0, len(records))
	for _, batch := range batches {
		if err := b.waitForBatch(ctx, job.ID, batch.ID); err != nil {
			if errors.Is(err, ErrBatchWaitExceeded) {
				b.abortJob(ctx, job.ID)
			}
			return nil, err
		}

		var batchResults []BulkResult
		if err := b.client.do(ctx, http.MethodGet, b.client.bulkURL("job", job.ID, "batch", batch.ID, "result"), nil, &batchResults); err != nil {
			return nil, fmt.Errorf("fetch results for batch %s: %w", batch.ID, err)
		}
		results = append(results, batchResults...)
	}

	return results, nil
}

func (b *BulkType) createJob(ctx context.Context, op, externalIDField string) (*jobInfo, error) {
	req := jobRequest{
		Operation:           op,
		Object:              b.object,
		ContentType:         "JSON",
		ExternalIDFieldName: externalIDField,
	}

	var job jobInfo
	if err := b.client.do(ctx, http.MethodPost, b.client.bulkURL("job"), req, &job); err != nil {
		return nil, err
	}
	if job.ID == "" {
		return nil, fmt.Errorf("bulk job for %s was created without an id", b.object)
	}
	return &job, nil
}

func (b *BulkType) addBatch(ctx context.Context, jobID string, records []Record) (batchInfo, error) {
	var batch batchInfo
	err := b.client.do(ctx, http.MethodPost, b.client.bulkURL("job", jobID, "batch"), records, &batch)
	return batch, err
}

func (b *BulkType) setJobState(ctx context.Context, jobID, state string) error {
	return b.client.do(ctx, http.MethodPost, b.client.bulkURL("job", jobID), jobStateRequest{State: state}, nil)
}

func (b *BulkType) abortJob(ctx context.Context, jobID string) {
	if err := b.setJobState(ctx, jobID, jobStateAborted); err != nil {
		log.Warn().Err(err).Str("job_id", jobID).Msg("failed to abort bulk job")
	}
}

func (b *BulkType) waitForBatch(ctx context.Context, jobID, batchID string) error {
	deadline := time.Now().Add(b.client.maxBatchWait)
	for {
		var batch batchInfo
		if err := b.client.do(ctx, http.MethodGet, b.client.bulkURL("job", jobID, "batch", batchID), nil, &batch); err != nil {
			return fmt.Errorf("poll batch %s: %w", batchID, err)
		}

		switch batch.State {
		case batchStateCompleted:
			return nil
		case batchStateFailed, batchStateNotProcessed:
			return &BatchFailedError{JobID: jobID, BatchID: batchID, State: batch.State, Message: batch.StateMessage}
		case batchStateQueued, batchStateInProgress:
		default:
			log.Debug().Str("batch_id", batchID).Str("state", batch.State).Msg("unexpected bulk batch state")
		}

		if time.Now().After(deadline) {
			return fmt.Errorf("%w: batch %s of job %s still %s after %s",
				ErrBatchWaitExceeded, batchID, jobID, batch.State, b.client.maxBatchWait)
		}

		timer := time.NewTimer(b.client.pollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// BulkUpsert is shorthand for c.Bulk(object).Upsert.
func (c *Client) BulkUpsert(ctx context.Context, object string, records []Record, externalIDField string, opts BulkOptions) ([]BulkResult, error) {
	return c.Bulk(object).Upsert(ctx, records, externalIDField, opts)
}

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/andresuchdata/s3csv2sfdc/internal/salesforce"
	"github.com/andresuchdata/s3csv2sfdc/internal/storage"
	"github.com/rs/zerolog/log"
)

const (
	defaultArchiveFolder = "archive"
	defaultErrorFolder   = "errors"
	errorReportName      = "error-report.csv"
)

var (
	ErrErrorReportNotGenerated = errors.New("error report has not been generated")
	ErrCRMNotSet               = errors.New("salesforce client is not set")
	ErrExecutionObjectNotSet   = errors.New("execution object name is not set")
)

// Orchestrator carries one object from storage through Salesforce and back:
//
//  1. the object named by a storage event is downloaded (NewOrchestrator)
//  2. a Step transforms it, pushes it and calls LogBatch after every push
//  3. FinishUp parses the logged results, writes an error report CSV,
//     archives the original, uploads the report and records an execution
//     object in Salesforce
type Orchestrator struct {
	store  storage.ObjectStorage
	key    string
	bucket string
	opts   Options

	sourceFile     string
	downloadedFile string

	errorReportPath string
	errorCount      int
	errorCodes      []string
	reportGenerated bool

	batches     []Batch
	timestamp   string
	executionID string
}

// NewOrchestrator downloads bucket/key into opts.TempDir. Spreadsheets are
// converted to CSV so steps only ever read CSV.
func NewOrchestrator(ctx context.Context, store storage.ObjectStorage, key, bucket string, opts Options) (*Orchestrator, error) {
	if opts.TempDir == "" {
		opts.TempDir = os.TempDir()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	o := &Orchestrator{
		store:  store,
		key:    key,
		bucket: bucket,
		opts:   opts,
	}

	if err := o.downloadFile(ctx); err != nil {
		o.Cleanup()
		return nil, err
	}
	return o, nil
}

func (o *Orchestrator) downloadFile(ctx context.Context) error {
	local, err := storage.DownloadToTemp(ctx, o.store, o.opts.TempDir, o.bucket, o.key)
	if err != nil {
		return err
	}
	o.sourceFile = local
	o.downloadedFile = local

	if strings.EqualFold(filepath.Ext(local), ".xlsx") {
		csvPath := strings.TrimSuffix(local, filepath.Ext(local)) + ".csv"
		if err := convertXLSXToCSV(local, csvPath); err != nil {
			if rmErr := os.Remove(csvPath); rmErr != nil && !os.IsNotExist(rmErr) {
				log.Warn().Err(rmErr).Str("path", csvPath).Msg("failed to remove temp file")
			}
			return err
		}
		o.downloadedFile = csvPath
	}

	log.Info().
		Str("bucket", o.bucket).
		Str("key", o.key).
		Str("path", o.downloadedFile).
		Msg("downloaded source file")
	return nil
}

// Key is the object key being processed.
func (o *Orchestrator) Key() string { return o.key }

// Bucket is the bucket the object lives in.
func (o *Orchestrator) Bucket() string { return o.bucket }

// DownloadedFile is the local CSV path of the object.
func (o *Orchestrator) DownloadedFile() string { return o.downloadedFile }

// CRM returns the Salesforce client, which may be nil.
func (o *Orchestrator) CRM() CRM { return o.opts.CRM }

// SetCRM sets the Salesforce client used for the execution object.
func (o *Orchestrator) SetCRM(crm CRM) { o.opts.CRM = crm }

// LogBatch records a bulk push. Call it after every push with the API results
// and the rows sent, in the same order.
func (o *Orchestrator) LogBatch(results []salesforce.BulkResult, data []salesforce.Record, object, upsertKey string) {
	rows := make([]salesforce.Record, len(data))
	copy(rows, data)

	o.batches = append(o.batches, Batch{
		Results:   results,
		Data:      rows,
		Object:    object,
		UpsertKey: upsertKey,
	})
}

// Batches returns the batches logged so far.
func (o *Orchestrator) Batches() []Batch { return o.batches }

// FinishUp generates the error report and reports the run.
func (o *Orchestrator) FinishUp(ctx context.Context) error {
	if err := o.GenerateErrorReport(); err != nil {
		return err
	}
	return o.Report(ctx)
}

// ErrorGroups returns the row errors of each logged batch.
func (o *Orchestrator) ErrorGroups() [][]RowError {
	groups := make([][]RowError, 0, len(o.batches))
	for _, b := range o.batches {
		_, errs := ParseBulkUpsertResults(b.Results, b.Data, b.Object, b.UpsertKey)
		groups = append(groups, errs)
	}
	return groups
}

// GenerateErrorReport writes the error report CSV to the temp dir.
func (o *Orchestrator) GenerateErrorReport() error {
	groups := o.ErrorGroups()

	reportPath, count, err := writeErrorReport(o.opts.TempDir, groups)
	if err != nil {
		return err
	}

	o.errorReportPath = reportPath
	o.errorCount = count
	o.errorCodes = distinctCodes(groups)
	o.reportGenerated = true

	log.Info().
		Str("key", o.key).
		Int("batches", len(o.batches)).
		Int("errors", count).
		Str("path", reportPath).
		Msg("generated error report")
	return nil
}

// ErrorReportPath is the local error report, empty until GenerateErrorReport.
func (o *Orchestrator) ErrorReportPath() string { return o.errorReportPath }

// ErrorCount is the number of error rows in the report.
func (o *Orchestrator) ErrorCount() int { return o.errorCount }

// Report archives the source object, uploads the error report and records
// the execution object, stopping at the first failure.
func (o *Orchestrator) Report(ctx context.Context) error {
	if err := o.ArchiveFile(ctx); err != nil {
		return err
	}
	if err := o.UploadErrorReport(ctx); err != nil {
		return err
	}
	if _, err := o.CreateExecutionObject(ctx); err != nil {
		return err
	}
	return nil
}

// ArchiveFile moves the source object to ArchiveKey in the same bucket.
func (o *Orchestrator) ArchiveFile(ctx context.Context) error {
	archiveKey := o.ArchiveKey()
	if err := storage.Move(ctx, o.store, o.key, archiveKey, o.bucket, storage.MoveOptions{}); err != nil {
		return fmt.Errorf("archive %s: %w", o.key, err)
	}
	log.Info().Str("key", o.key).Str("archive_key", archiveKey).Msg("archived source file")
	return nil
}

// UploadErrorReport uploads the generated report to ErrorKey.
func (o *Orchestrator) UploadErrorReport(ctx context.Context) error {
	if !o.reportGenerated || o.errorReportPath == "" {
		return ErrErrorReportNotGenerated
	}

	errorKey := o.ErrorKey()
	if err := o.store.Upload(ctx, o.bucket, errorKey, o.errorReportPath, storage.UploadOptions{}); err != nil {
		return fmt.Errorf("upload error report: %w", err)
	}
	log.Info().Str("error_key", errorKey).Int("errors", o.errorCount).Msg("uploaded error report")
	return nil
}

// SetTimestamp fixes the stamp used in archive and error keys. An empty
// timestamp means today's ISO date.
func (o *Orchestrator) SetTimestamp(timestamp string) {
	if timestamp == "" {
		timestamp = storage.ISODate(o.opts.Now())
	}
	o.timestamp = timestamp
}

// Timestamp returns the fixed timestamp, or today's ISO date when none is set.
func (o *Orchestrator) Timestamp() string {
	if o.timestamp != "" {
		return o.timestamp
	}
	return storage.ISODate(o.opts.Now())
}

// ArchiveKey is where the source object is moved: <archive folder>/<name>-<ts>.<ext>.
func (o *Orchestrator) ArchiveKey() string {
	folder := o.opts.ArchiveFolder
	if folder == "" {
		folder = defaultArchiveFolder
	}
	return path.Join(folder, storage.TimestampKey(o.key, o.Timestamp(), false))
}

// ErrorKey is where the error report is uploaded: <error folder>/error-report-<ts>.csv.
func (o *Orchestrator) ErrorKey() string {
	folder := o.opts.ErrorFolder
	if folder == "" {
		folder = defaultErrorFolder
	}
	return path.Join(folder, storage.TimestampKey(errorReportName, o.Timestamp(), false))
}

// CreateExecutionObject writes ExecutionFields to the configured execution object.
func (o *Orchestrator) CreateExecutionObject(ctx context.Context) (*salesforce.CreateResponse, error) {
	if o.opts.CRM == nil {
		return nil, ErrCRMNotSet
	}
	if o.opts.ExecutionObject == "" {
		return nil, ErrExecutionObjectNotSet
	}

	resp, err := o.opts.CRM.CreateRecord(ctx, o.opts.ExecutionObject, o.ExecutionFields())
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", o.opts.ExecutionObject, err)
	}
	o.executionID = resp.ID

	log.Info().
		Str("object", o.opts.ExecutionObject).
		Str("id", resp.ID).
		Msg("recorded execution in salesforce")
	return resp, nil
}

// ExecutionFields is the record written to the execution object.
func (o *Orchestrator) ExecutionFields() salesforce.Record {
	if o.opts.ExecutionFields != nil {
		return o.opts.ExecutionFields(o)
	}
	return DefaultExecutionFields(o)
}

// DefaultExecutionFields records the origin, archive and error paths and the error count.
func DefaultExecutionFields(o *Orchestrator) salesforce.Record {
	return salesforce.Record{
		"Origin_Path__c":  o.key,
		"Archive_Path__c": o.ArchiveKey(),
		"Errors_Path__c":  o.ErrorKey(),
		"Errors_Count__c": o.errorCount,
	}
}

// Summary reports what the run did so far.
func (o *Orchestrator) Summary() Summary {
	s := Summary{
		ObjectKey:   o.key,
		Bucket:      o.bucket,
		ArchiveKey:  o.ArchiveKey(),
		ErrorKey:    o.ErrorKey(),
		Batches:     len(o.batches),
		ErrorCount:  o.errorCount,
		ErrorCodes:  o.errorCodes,
		ExecutionID: o.executionID,
	}
	for _, b := range o.batches {
		s.Rows += len(b.Data)
		for _, r := range b.Results {
			if r.Success {
				s.Successes++
			}
		}
	}
	return s
}

// Cleanup removes the local download and error report.
func (o *Orchestrator) Cleanup() {
	for _, p := range []string{o.sourceFile, o.downloadedFile, o.errorReportPath} {
		if p == "" {
			continue
		}
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			log.Warn().Err(err).Str("path", p).Msg("failed to remove temp file")
		}
	}
}

func distinctCodes(groups [][]RowError) []string {
	seen := make(map[string]struct{})
	for _, group := range groups {
		for _, e := range group {
			if e.Code != "" {
				seen[e.Code] = struct{}{}
			}
		}
	}

	codes := make([]string, 0, len(seen))
	for code := range seen {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

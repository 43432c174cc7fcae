package pipeline

import (
	"context"
	"time"

	"github.com/andresuchdata/s3csv2sfdc/internal/salesforce"
	"github.com/lib/pq"
)

// Step is the caller-supplied part of a sync: read the downloaded file,
// transform rows, push them to Salesforce and LogBatch every push.
type Step interface {
	// Name returns the unique identifier for this step
	Name() string

	// Run transforms o.DownloadedFile() and pushes it, calling o.LogBatch after each push.
	Run(ctx context.Context, o *Orchestrator) error
}

// CRM is the part of the Salesforce client a sync needs.
type CRM interface {
	BulkUpsert(ctx context.Context, object string, records []salesforce.Record, externalIDField string, opts salesforce.BulkOptions) ([]salesforce.BulkResult, error)
	CreateRecord(ctx context.Context, object string, fields salesforce.Record) (*salesforce.CreateResponse, error)
}

// Batch is one logged bulk push: the API results and the rows that produced them.
type Batch struct {
	Results   []salesforce.BulkResult
	Data      []salesforce.Record
	Object    string
	UpsertKey string
}

// Success is a row Salesforce accepted.
type Success struct {
	Object  string
	ID      string
	Created bool
	Row     salesforce.Record
}

// RowError is one error line of the error report.
type RowError struct {
	UpsertKey      string
	UpsertKeyValue string
	Object         string
	Code           string
	Message        string
}

// ExecutionFieldsFunc builds the summary record written to the execution object.
type ExecutionFieldsFunc func(o *Orchestrator) salesforce.Record

// Options configures an Orchestrator.
type Options struct {
	// TempDir receives the downloaded file and the error report.
	TempDir string
	// ArchiveFolder defaults to "archive".
	ArchiveFolder string
	// ErrorFolder defaults to "errors".
	ErrorFolder string
	// ExecutionObject is the sObject the run summary is written to.
	ExecutionObject string
	CRM             CRM
	ExecutionFields ExecutionFieldsFunc
	// Now is used for timestamps; defaults to time.Now.
	Now func() time.Time
}

// Summary describes a finished (or failed) sync for logs and the run ledger.
type Summary struct {
	ObjectKey   string   `json:"object_key"`
	Bucket      string   `json:"bucket"`
	ArchiveKey  string   `json:"archive_key"`
	ErrorKey    string   `json:"error_key"`
	Batches     int      `json:"batches"`
	Rows        int      `json:"rows"`
	Successes   int      `json:"successes"`
	ErrorCount  int      `json:"error_count"`
	ErrorCodes  []string `json:"error_codes"`
	ExecutionID string   `json:"execution_id,omitempty"`
}

// ExecutionStatus represents the current state of a sync run
type ExecutionStatus string

const (
	StatusPending    ExecutionStatus = "pending"
	StatusProcessing ExecutionStatus = "processing"
	StatusCompleted  ExecutionStatus = "completed"
	StatusFailed     ExecutionStatus = "failed"
)

// Execution tracks a single sync of one object in the run ledger
type Execution struct {
	ID              int64           `db:"id" json:"id"`
	StepName        string          `db:"step_name" json:"step_name"`
	Bucket          string          `db:"bucket" json:"bucket"`
	ObjectKey       string          `db:"object_key" json:"object_key"`
	Status          ExecutionStatus `db:"status" json:"status"`
	ArchiveKey      string          `db:"archive_key" json:"archive_key"`
	ErrorKey        string          `db:"error_key" json:"error_key"`
	TotalRows       int             `db:"total_rows" json:"total_rows"`
	ErrorCount      int             `db:"error_count" json:"error_count"`
	ErrorCodes      pq.StringArray  `db:"error_codes" json:"error_codes"`
	SFDCExecutionID string          `db:"sfdc_execution_id" json:"sfdc_execution_id"`
	StartedAt       time.Time       `db:"started_at" json:"started_at"`
	CompletedAt     *time.Time      `db:"completed_at" json:"completed_at,omitempty"`
	ErrorMessage    string          `db:"error_message" json:"error_message,omitempty"`
}

// ExecutionRepository persists Executions.
type ExecutionRepository interface {
	CreateExecution(ctx context.Context, exec *Execution) error
	UpdateExecution(ctx context.Context, exec *Execution) error
	ListRecentExecutions(ctx context.Context, limit int) ([]*Execution, error)
}

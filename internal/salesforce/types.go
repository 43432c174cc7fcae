package salesforce

// Record is a single row sent to or read from Salesforce, keyed by field API name.
type Record map[string]interface{}

// BulkError is one failure reported for a row of a bulk job.
type BulkError struct {
	StatusCode string   `json:"statusCode"`
	Message    string   `json:"message"`
	Fields     []string `json:"fields"`
}

// BulkResult is the per-row outcome of a bulk job. Results come back in the
// same order as the records that were submitted.
type BulkResult struct {
	ID      string      `json:"id"`
	Success bool        `json:"success"`
	Created bool        `json:"created"`
	Errors  []BulkError `json:"errors"`
}

// CreateResponse is the response from Salesforce for a post/create request.
type CreateResponse struct {
	ID      string          `json:"id"`
	Success bool            `json:"success"`
	Errors  []CreateFailure `json:"errors"`
}

// CreateFailure is a REST API error entry.
type CreateFailure struct {
	StatusCode string   `json:"statusCode"`
	Message    string   `json:"message"`
	Fields     []string `json:"fields"`
}

// BulkOptions tunes a bulk operation.
type BulkOptions struct {
	// BatchSize is the number of records per bulk batch. Zero means DefaultBatchSize.
	BatchSize int
}

type jobRequest struct {
	Operation           string `json:"operation"`
	Object              string `json:"object"`
	ContentType         string `json:"contentType"`
	ExternalIDFieldName string `json:"externalIdFieldName,omitempty"`
}

type jobInfo struct {
	ID    string `json:"id"`
	State string `json:"state"`
}

type jobStateRequest struct {
	State string `json:"state"`
}

type batchInfo struct {
	ID           string `json:"id"`
	JobID        string `json:"jobId"`
	State        string `json:"state"`
	StateMessage string `json:"stateMessage"`
}

const (
	batchStateQueued       = "Queued"
	batchStateInProgress   = "InProgress"
	batchStateCompleted    = "Completed"
	batchStateFailed       = "Failed"
	batchStateNotProcessed = "NotProcessed"

	jobStateClosed  = "Closed"
	jobStateAborted = "Aborted"
)

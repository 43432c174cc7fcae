package salesforce

import (
	"errors"
	"fmt"
	"strings"
)

// payloadTooLargeMessage is what Salesforce puts in the 400 body when a bulk
// batch exceeds the request size limit.
const payloadTooLargeMessage = "Exceeded max size limit"

var (
	// ErrBatchSizeTooLow is returned when shrinking the batch size after a
	// payload-too-large error would leave nothing to send.
	ErrBatchSizeTooLow = errors.New("batch size too low")

	// ErrNotAuthenticated is returned when a request is made before login.
	ErrNotAuthenticated = errors.New("salesforce client is not authenticated")

	// ErrBatchWaitExceeded is returned when a bulk batch does not finish within MaxBatchWait.
	ErrBatchWaitExceeded = errors.New("bulk batch did not finish in time")
)

// MalformedRequestError is an HTTP 400 from the Salesforce API.
type MalformedRequestError struct {
	URL     string
	Status  int
	Content string
}

func (e *MalformedRequestError) Error() string {
	return fmt.Sprintf("malformed request %s. Response content: %s", e.URL, e.Content)
}

// APIError is any other non-2xx response.
type APIError struct {
	URL     string
	Status  int
	Content string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("salesforce request %s failed with status %d: %s", e.URL, e.Status, e.Content)
}

// BatchFailedError reports a bulk batch that Salesforce could not process.
type BatchFailedError struct {
	JobID   string
	BatchID string
	State   string
	Message string
}

func (e *BatchFailedError) Error() string {
	return fmt.Sprintf("bulk batch %s of job %s %s: %s", e.BatchID, e.JobID, strings.ToLower(e.State), e.Message)
}

// IsPayloadTooLarge reports whether err is the malformed-request error Salesforce
// returns for an oversized bulk batch.
func IsPayloadTooLarge(err error) bool {
	var malformed *MalformedRequestError
	if !errors.As(err, &malformed) {
		return false
	}
	return strings.Contains(malformed.Error(), payloadTooLargeMessage)
}

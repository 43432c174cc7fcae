package salesforce

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

// fakeOrg emulates the parts of the Salesforce login, Bulk 1.0 and REST APIs
// the client talks to.
type fakeOrg struct {
	t      *testing.T
	server *httptest.Server

	mu sync.Mutex
	// maxRecordsPerBatch rejects larger batches with the size-limit error; zero disables.
	maxRecordsPerBatch int
	// alwaysTooLarge rejects every batch with the size-limit error.
	alwaysTooLarge bool
	// batchStatus overrides the HTTP status for add-batch calls.
	batchStatus int
	// failBatchState makes every batch end in this state.
	failBatchState string
	// stuckQueued keeps every batch Queued forever.
	stuckQueued bool

	logins    int
	jobs      []jobRequest
	jobStates map[string]string
	batches   map[string][]Record
	polls     map[string]int
	created   []Record
}

func newFakeOrg(t *testing.T) *fakeOrg {
	f := &fakeOrg{
		t:         t,
		jobStates: make(map[string]string),
		batches:   make(map[string][]Record),
		polls:     make(map[string]int),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /services/oauth2/token", f.token)
	mux.HandleFunc("POST /services/async/59.0/job", f.createJob)
	mux.HandleFunc("POST /services/async/59.0/job/{job}", f.setJobState)
	mux.HandleFunc("POST /services/async/59.0/job/{job}/batch", f.addBatch)
	mux.HandleFunc("GET /services/async/59.0/job/{job}/batch/{batch}", f.batchStatusHandler)
	mux.HandleFunc("GET /services/async/59.0/job/{job}/batch/{batch}/result", f.batchResult)
	mux.HandleFunc("POST /services/data/v59.0/sobjects/{object}/", f.createRecord)

	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeOrg) config() Config {
	return Config{
		Username:      "integration@example.com",
		Password:      "hunter2",
		SecurityToken: "tok",
		ClientID:      "client",
		ClientSecret:  "secret",
		APIVersion:    "59.0",
		PollInterval:  time.Millisecond,
		LoginURL:      f.server.URL,
	}
}

func (f *fakeOrg) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		f.t.Errorf("encode fake response: %v", err)
	}
}

func (f *fakeOrg) token(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.logins++
	f.mu.Unlock()

	if err := r.ParseForm(); err != nil || r.Form.Get("grant_type") != "password" {
		f.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unsupported_grant_type"})
		return
	}
	if r.Form.Get("password") != "hunter2tok" {
		f.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_grant"})
		return
	}

	f.writeJSON(w, http.StatusOK, map[string]string{
		"access_token": "session-id",
		"instance_url": f.server.URL,
		"token_type":   "Bearer",
	})
}

func (f *fakeOrg) createJob(w http.ResponseWriter, r *http.Request) {
	var req jobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		f.writeJSON(w, http.StatusBadRequest, map[string]string{"exceptionMessage": err.Error()})
		return
	}

	f.mu.Lock()
	f.jobs = append(f.jobs, req)
	id := fmt.Sprintf("job%d", len(f.jobs))
	f.jobStates[id] = "Open"
	f.mu.Unlock()

	f.writeJSON(w, http.StatusCreated, jobInfo{ID: id, State: "Open"})
}

func (f *fakeOrg) setJobState(w http.ResponseWriter, r *http.Request) {
	var req jobStateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		f.writeJSON(w, http.StatusBadRequest, map[string]string{"exceptionMessage": err.Error()})
		return
	}

	f.mu.Lock()
	f.jobStates[r.PathValue("job")] = req.State
	f.mu.Unlock()

	f.writeJSON(w, http.StatusOK, jobInfo{ID: r.PathValue("job"), State: req.State})
}

func (f *fakeOrg) addBatch(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("X-SFDC-Session") != "session-id" {
		f.writeJSON(w, http.StatusUnauthorized, map[string]string{"exceptionCode": "InvalidSessionId"})
		return
	}

	var records []Record
	if err := json.NewDecoder(r.Body).Decode(&records); err != nil {
		f.writeJSON(w, http.StatusBadRequest, map[string]string{"exceptionMessage": err.Error()})
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.batchStatus != 0 {
		f.writeJSON(w, f.batchStatus, map[string]string{"exceptionCode": "ServerUnavailable", "exceptionMessage": "try later"})
		return
	}
	if f.alwaysTooLarge || (f.maxRecordsPerBatch > 0 && len(records) > f.maxRecordsPerBatch) {
		f.writeJSON(w, http.StatusBadRequest, map[string]string{
			"exceptionCode":    "InvalidBatch",
			"exceptionMessage": "Exceeded max size limit of 10000000",
		})
		return
	}

	id := fmt.Sprintf("batch%d", len(f.batches)+1)
	f.batches[id] = records
	f.writeJSON(w, http.StatusCreated, batchInfo{ID: id, JobID: r.PathValue("job"), State: batchStateQueued})
}

func (f *fakeOrg) batchStatusHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("batch")

	f.mu.Lock()
	f.polls[id]++
	polls := f.polls[id]
	failState := f.failBatchState
	stuck := f.stuckQueued
	f.mu.Unlock()

	state := batchStateInProgress
	message := ""
	switch {
	case stuck:
		state = batchStateQueued
	case failState != "":
		state = failState
		message = "InvalidBatch : Field name not found : Bogus__c"
	case polls > 1:
		state = batchStateCompleted
	}

	f.writeJSON(w, http.StatusOK, batchInfo{ID: id, JobID: r.PathValue("job"), State: state, StateMessage: message})
}

func (f *fakeOrg) batchResult(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	records := f.batches[r.PathValue("batch")]
	f.mu.Unlock()

	results := make([]BulkResult, 0, len(records))
	for i, record := range records {
		if record["Email"] == "bad" {
			results = append(results, BulkResult{
				Success: false,
				Errors:  []BulkError{{StatusCode: "INVALID_EMAIL_ADDRESS", Message: "Email: invalid email address: bad", Fields: []string{"Email"}}},
			})
			continue
		}
		results = append(results, BulkResult{
			ID:      fmt.Sprintf("003%s%05d", r.PathValue("batch"), i),
			Success: true,
			Created: true,
			Errors:  []BulkError{},
		})
	}

	f.writeJSON(w, http.StatusOK, results)
}

func (f *fakeOrg) createRecord(w http.ResponseWriter, r *http.Request) {
	var record Record
	if err := json.NewDecoder(r.Body).Decode(&record); err != nil {
		f.writeJSON(w, http.StatusBadRequest, []map[string]string{{"errorCode": "JSON_PARSER_ERROR", "message": err.Error()}})
		return
	}

	f.mu.Lock()
	f.created = append(f.created, record)
	f.mu.Unlock()

	f.writeJSON(w, http.StatusCreated, CreateResponse{ID: "a01000000000001", Success: true, Errors: []CreateFailure{}})
}

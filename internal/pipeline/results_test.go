package pipeline

import (
	"testing"

	"github.com/andresuchdata/s3csv2sfdc/internal/salesforce"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBulkUpsertResults(t *testing.T) {
	data := []salesforce.Record{
		{"ID": "1", "Name": "first"},
		{"ID": "2", "Name": "second"},
		{"ID": "3", "Name": "third"},
	}
	results := []salesforce.BulkResult{
		{ID: "003A", Success: true, Created: true},
		{Success: false, Errors: []salesforce.BulkError{
			{StatusCode: "DIDNT_WORK", Message: "it broke"},
			{StatusCode: "REQUIRED_FIELD_MISSING", Message: "LastName"},
		}},
		{ID: "003C", Success: true},
	}

	successes, errs := ParseBulkUpsertResults(results, data, "Contact", "ID")

	require.Len(t, successes, 2)
	assert.Equal(t, Success{Object: "Contact", ID: "003A", Created: true, Row: data[0]}, successes[0])
	assert.Equal(t, "003C", successes[1].ID)
	assert.False(t, successes[1].Created)

	require.Len(t, errs, 2)
	assert.Equal(t, RowError{UpsertKey: "ID", UpsertKeyValue: "2", Object: "Contact", Code: "DIDNT_WORK", Message: "it broke"}, errs[0])
	assert.Equal(t, "REQUIRED_FIELD_MISSING", errs[1].Code)
	assert.Equal(t, "2", errs[1].UpsertKeyValue)
}

func TestParseBulkUpsertResults_TruncatesToShorter(t *testing.T) {
	data := []salesforce.Record{{"ID": "1"}}
	results := []salesforce.BulkResult{
		{Success: false, Errors: []salesforce.BulkError{{StatusCode: "A"}}},
		{Success: false, Errors: []salesforce.BulkError{{StatusCode: "B"}}},
	}

	_, errs := ParseBulkUpsertResults(results, data, "Contact", "ID")

	require.Len(t, errs, 1)
	assert.Equal(t, "A", errs[0].Code)
}

func TestParseBulkUpsertResults_NonStringKeyValues(t *testing.T) {
	data := []salesforce.Record{{"Ext__c": 42}, {"Other": "x"}}
	results := []salesforce.BulkResult{
		{Errors: []salesforce.BulkError{{StatusCode: "X"}}},
		{Errors: []salesforce.BulkError{{StatusCode: "Y"}}},
	}

	_, errs := ParseBulkUpsertResults(results, data, "Account", "Ext__c")

	require.Len(t, errs, 2)
	assert.Equal(t, "42", errs[0].UpsertKeyValue)
	assert.Equal(t, "", errs[1].UpsertKeyValue)
}

func TestParseBulkUpsertResults_FailedRowWithoutErrors(t *testing.T) {
	successes, errs := ParseBulkUpsertResults(
		[]salesforce.BulkResult{{Success: false}},
		[]salesforce.Record{{"ID": "1"}},
		"Contact", "ID",
	)

	assert.Empty(t, successes)
	assert.Empty(t, errs)
}

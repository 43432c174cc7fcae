package salesforce

import (
	"context"
	"fmt"
	"net/http"
)

// SObjectType exposes the REST operations for one sObject.
type SObjectType struct {
	client *Client
	name   string
}

// SObject returns the REST handler for an sObject, e.g. client.SObject("Sync_Execution__c").
func (c *Client) SObject(name string) *SObjectType {
	return &SObjectType{client: c, name: name}
}

// Create inserts a single record.
func (s *SObjectType) Create(ctx context.Context, fields Record) (*CreateResponse, error) {
	var resp CreateResponse
	if err := s.client.do(ctx, http.MethodPost, s.client.restURL("sobjects", s.name)+"/", fields, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return &resp, fmt.Errorf("create %s was not successful: %+v", s.name, resp.Errors)
	}
	return &resp, nil
}

// CreateRecord is shorthand for c.SObject(object).Create.
func (c *Client) CreateRecord(ctx context.Context, object string, fields Record) (*CreateResponse, error) {
	return c.SObject(object).Create(ctx, fields)
}

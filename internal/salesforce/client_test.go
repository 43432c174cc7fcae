package salesforce

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func TestMain(m *testing.M) {
	zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	m.Run()
}

// MockSessionStore is a mock implementation of SessionStore for testing
type MockSessionStore struct {
	mock.Mock
}

func (m *MockSessionStore) GetSession(ctx context.Context, username string) (*oauth2.Token, bool, error) {
	args := m.Called(ctx, username)
	token, _ := args.Get(0).(*oauth2.Token)
	return token, args.Bool(1), args.Error(2)
}

func (m *MockSessionStore) SetSession(ctx context.Context, username string, token *oauth2.Token) error {
	args := m.Called(ctx, username, token)
	return args.Error(0)
}

func newTestClient(t *testing.T, org *fakeOrg) *Client {
	t.Helper()
	client, err := NewClient(context.Background(), org.config(), nil)
	require.NoError(t, err)
	return client
}

func makeRecords(n int) []Record {
	records := make([]Record, n)
	for i := range records {
		records[i] = Record{"Email": fmt.Sprintf("person%d@example.com", i), "LastName": "Doe"}
	}
	return records
}

func TestLoginURL(t *testing.T) {
	assert.Equal(t, "https://login.salesforce.com", LoginURL("na"))
	assert.Equal(t, "https://login.salesforce.com", LoginURL("NA"))
	assert.Equal(t, "https://login.salesforce.com", LoginURL(""))
	assert.Equal(t, "https://test.salesforce.com", LoginURL("test"))
}

func TestNewClient_LogsInWithSecurityToken(t *testing.T) {
	org := newFakeOrg(t)

	client := newTestClient(t, org)

	assert.Equal(t, org.server.URL, client.InstanceURL())
	assert.Equal(t, 1, org.logins)
}

func TestNewClient_BadPassword(t *testing.T) {
	org := newFakeOrg(t)
	cfg := org.config()
	cfg.SecurityToken = "wrong"

	_, err := NewClient(context.Background(), cfg, nil)

	assert.Error(t, err)
}

func TestNewClient_MissingCredentials(t *testing.T) {
	_, err := NewClient(context.Background(), Config{}, nil)

	assert.Error(t, err)
}

func TestNewClient_ReusesCachedSession(t *testing.T) {
	org := newFakeOrg(t)
	store := new(MockSessionStore)
	cached := (&oauth2.Token{
		AccessToken: "session-id",
		Expiry:      time.Now().Add(time.Hour),
	}).WithExtra(map[string]interface{}{"instance_url": org.server.URL})
	store.On("GetSession", mock.Anything, "integration@example.com").Return(cached, true, nil)

	client, err := NewClient(context.Background(), org.config(), store)

	require.NoError(t, err)
	assert.Equal(t, org.server.URL, client.InstanceURL())
	assert.Equal(t, 0, org.logins)
	store.AssertNotCalled(t, "SetSession", mock.Anything, mock.Anything, mock.Anything)
}

func TestNewClient_CachesFreshSession(t *testing.T) {
	org := newFakeOrg(t)
	store := new(MockSessionStore)
	store.On("GetSession", mock.Anything, "integration@example.com").Return(nil, false, nil)
	store.On("SetSession", mock.Anything, "integration@example.com", mock.AnythingOfType("*oauth2.Token")).Return(nil)

	_, err := NewClient(context.Background(), org.config(), store)

	require.NoError(t, err)
	assert.Equal(t, 1, org.logins)
	store.AssertExpectations(t)
}

func TestNewClient_CacheErrorFallsBackToLogin(t *testing.T) {
	org := newFakeOrg(t)
	store := new(MockSessionStore)
	store.On("GetSession", mock.Anything, mock.Anything).Return(nil, false, errors.New("redis down"))
	store.On("SetSession", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("redis down"))

	_, err := NewClient(context.Background(), org.config(), store)

	require.NoError(t, err)
	assert.Equal(t, 1, org.logins)
}

func TestSObjectCreate(t *testing.T) {
	org := newFakeOrg(t)
	client := newTestClient(t, org)

	resp, err := client.SObject("Sync_Execution__c").Create(context.Background(), Record{
		"Origin_Path__c":  "junk.csv",
		"Errors_Count__c": 1,
	})

	require.NoError(t, err)
	assert.Equal(t, "a01000000000001", resp.ID)
	require.Len(t, org.created, 1)
	assert.Equal(t, "junk.csv", org.created[0]["Origin_Path__c"])
}

func TestDo_RequiresLogin(t *testing.T) {
	client := &Client{}

	_, err := client.Bulk("Contact").Insert(context.Background(), makeRecords(1), BulkOptions{})

	assert.ErrorIs(t, err, ErrNotAuthenticated)
}

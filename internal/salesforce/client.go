package salesforce

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

const (
	defaultAPIVersion   = "59.0"
	defaultSessionTTL   = time.Hour
	defaultPollInterval = 2 * time.Second
	defaultMaxBatchWait = time.Hour
)

// Config holds the credentials and tuning for a Client.
type Config struct {
	Username      string
	Password      string
	SecurityToken string
	// Domain is the login subdomain ("login", "test", a My Domain prefix).
	// "na" or empty means the production login host.
	Domain       string
	ClientID     string
	ClientSecret string
	APIVersion   string
	SessionTTL   time.Duration
	PollInterval time.Duration
	// MaxBatchWait bounds how long one bulk batch is polled; defaults to an hour.
	MaxBatchWait time.Duration
	// LoginURL overrides the host derived from Domain.
	LoginURL   string
	HTTPClient *http.Client
}

// SessionStore persists sessions across invocations. See cache.SessionCache.
type SessionStore interface {
	GetSession(ctx context.Context, username string) (*oauth2.Token, bool, error)
	SetSession(ctx context.Context, username string, token *oauth2.Token) error
}

// Client is an authenticated Salesforce REST and Bulk API client.
type Client struct {
	httpClient   *http.Client
	token        *oauth2.Token
	instanceURL  string
	apiVersion   string
	pollInterval time.Duration
	maxBatchWait time.Duration
}

// LoginURL returns the login host for a configured domain.
func LoginURL(domain string) string {
	domain = strings.TrimSpace(domain)
	if domain == "" || strings.EqualFold(domain, "na") {
		domain = "login"
	}
	return fmt.Sprintf("https://%s.salesforce.com", domain)
}

// NewClient logs in with the OAuth2 username-password flow, reusing a cached
// session from sessions when one is available. sessions may be nil.
func NewClient(ctx context.Context, cfg Config, sessions SessionStore) (*Client, error) {
	if cfg.Username == "" || cfg.Password == "" {
		return nil, fmt.Errorf("salesforce username and password must be provided")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Minute}
	}

	apiVersion := strings.TrimPrefix(cfg.APIVersion, "v")
	if apiVersion == "" {
		apiVersion = defaultAPIVersion
	}

	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}

	maxBatchWait := cfg.MaxBatchWait
	if maxBatchWait <= 0 {
		maxBatchWait = defaultMaxBatchWait
	}

	c := &Client{
		httpClient:   httpClient,
		apiVersion:   apiVersion,
		pollInterval: pollInterval,
		maxBatchWait: maxBatchWait,
	}

	if sessions != nil {
		token, ok, err := sessions.GetSession(ctx, cfg.Username)
		if err != nil {
			log.Warn().Err(err).Msg("session cache lookup failed, logging in")
		} else if ok && token.Valid() {
			if err := c.setToken(token); err == nil {
				log.Debug().Str("username", cfg.Username).Msg("reusing cached salesforce session")
				return c, nil
			}
		}
	}

	token, err := c.login(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := c.setToken(token); err != nil {
		return nil, err
	}

	if sessions != nil {
		if err := sessions.SetSession(ctx, cfg.Username, token); err != nil {
			log.Warn().Err(err).Msg("failed to cache salesforce session")
		}
	}

	log.Info().Str("username", cfg.Username).Str("instance_url", c.instanceURL).Msg("logged in to salesforce")
	return c, nil
}

func (c *Client) login(ctx context.Context, cfg Config) (*oauth2.Token, error) {
	loginURL := cfg.LoginURL
	if loginURL == "" {
		loginURL = LoginURL(cfg.Domain)
	}

	oauthCfg := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint: oauth2.Endpoint{
			TokenURL:  strings.TrimSuffix(loginURL, "/") + "/services/oauth2/token",
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	token, err := oauthCfg.PasswordCredentialsToken(ctx, cfg.Username, cfg.Password+cfg.SecurityToken)
	if err != nil {
		return nil, fmt.Errorf("salesforce login failed: %w", err)
	}

	// Salesforce does not send expires_in; sessions live until the org's timeout.
	ttl := cfg.SessionTTL
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	if token.Expiry.IsZero() {
		token.Expiry = time.Now().Add(ttl)
	}

	return token, nil
}

func (c *Client) setToken(token *oauth2.Token) error {
	instanceURL, _ := token.Extra("instance_url").(string)
	if instanceURL == "" {
		return fmt.Errorf("salesforce token response has no instance_url")
	}
	c.token = token
	c.instanceURL = strings.TrimSuffix(instanceURL, "/")
	return nil
}

// InstanceURL is the org base URL returned at login.
func (c *Client) InstanceURL() string {
	return c.instanceURL
}

func (c *Client) bulkURL(parts ...string) string {
	return fmt.Sprintf("%s/services/async/%s/%s", c.instanceURL, c.apiVersion, strings.Join(parts, "/"))
}

func (c *Client) restURL(parts ...string) string {
	return fmt.Sprintf("%s/services/data/v%s/%s", c.instanceURL, c.apiVersion, strings.Join(parts, "/"))
}

// do sends body as JSON and decodes a 2xx response into out when out is non-nil.
func (c *Client) do(ctx context.Context, method, url string, body, out interface{}) error {
	if c.token == nil {
		return ErrNotAuthenticated
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token.AccessToken)
	// Bulk API 1.0 authenticates with the session header.
	req.Header.Set("X-SFDC-Session", c.token.AccessToken)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json; charset=UTF-8")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, url, err)
	}
	defer resp.Body.Close()

	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response from %s: %w", url, err)
	}

	switch {
	case resp.StatusCode == http.StatusBadRequest:
		return &MalformedRequestError{URL: url, Status: resp.StatusCode, Content: string(content)}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return &APIError{URL: url, Status: resp.StatusCode, Content: string(content)}
	}

	if out == nil || len(content) == 0 {
		return nil
	}
	if err := json.Unmarshal(content, out); err != nil {
		return fmt.Errorf("decode response from %s: %w", url, err)
	}
	return nil
}

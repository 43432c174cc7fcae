package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/andresuchdata/s3csv2sfdc/internal/config"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

const sessionKeyPrefix = "sfdc:session:"

// SessionCache stores CRM sessions between invocations so every S3 event
// does not trigger a fresh login.
type SessionCache interface {
	GetSession(ctx context.Context, username string) (*oauth2.Token, bool, error)
	SetSession(ctx context.Context, username string, token *oauth2.Token) error
	InvalidateAll(ctx context.Context) error
}

type redisSessionCache struct {
	client *redis.Client
}

type noopSessionCache struct{}

// cachedSession is the persisted form of a token. oauth2.Token keeps the
// instance URL in an unexported field, so it is carried separately.
type cachedSession struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	InstanceURL string    `json:"instance_url"`
	Expiry      time.Time `json:"expiry"`
}

func NewSessionCache(cfg config.CacheConfig) (SessionCache, error) {
	if !cfg.Enabled {
		return &noopSessionCache{}, nil
	}

	client, err := newRedisClient(cfg)
	if err != nil {
		return nil, err
	}

	return &redisSessionCache{client: client}, nil
}

func NewNoopSessionCache() SessionCache {
	return &noopSessionCache{}
}

func (c *redisSessionCache) GetSession(ctx context.Context, username string) (*oauth2.Token, bool, error) {
	payload, err := c.client.Get(ctx, sessionKeyPrefix+username).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get failed: %w", err)
	}

	var session cachedSession
	if err := json.Unmarshal(payload, &session); err != nil {
		log.Warn().Err(err).Str("username", username).Msg("discarding unreadable cached session")
		return nil, false, nil
	}

	token := (&oauth2.Token{
		AccessToken: session.AccessToken,
		TokenType:   session.TokenType,
		Expiry:      session.Expiry,
	}).WithExtra(map[string]interface{}{"instance_url": session.InstanceURL})

	return token, true, nil
}

func (c *redisSessionCache) SetSession(ctx context.Context, username string, token *oauth2.Token) error {
	ttl := time.Until(token.Expiry)
	if token.Expiry.IsZero() || ttl <= 0 {
		return nil
	}

	instanceURL, _ := token.Extra("instance_url").(string)
	payload, err := json.Marshal(cachedSession{
		AccessToken: token.AccessToken,
		TokenType:   token.TokenType,
		InstanceURL: instanceURL,
		Expiry:      token.Expiry,
	})
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	if err := c.client.Set(ctx, sessionKeyPrefix+username, payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (c *redisSessionCache) InvalidateAll(ctx context.Context) error {
	return deleteKeysWithPrefix(ctx, c.client, sessionKeyPrefix, scanBatchSize)
}

func (c *noopSessionCache) GetSession(context.Context, string) (*oauth2.Token, bool, error) {
	return nil, false, nil
}

func (c *noopSessionCache) SetSession(context.Context, string, *oauth2.Token) error {
	return nil
}

func (c *noopSessionCache) InvalidateAll(context.Context) error {
	return nil
}

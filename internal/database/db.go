package database

import (
	"fmt"
	"sync"
	"time"

	"github.com/andresuchdata/s3csv2sfdc/internal/config"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

type DB struct {
	*sqlx.DB
}

var (
	dbInstance *DB
	mu         sync.Mutex
)

// DSN returns DATABASE_URL when set, otherwise a key/value string built
// from the DB_* settings.
func DSN(cfg *config.DatabaseConfig) string {
	if cfg.URL != "" {
		return cfg.URL
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)
}

// NewDB returns the shared run ledger connection pool, connecting on first
// use. A failed connect is not remembered; the next call tries again.
func NewDB(cfg *config.DatabaseConfig) (*DB, error) {
	mu.Lock()
	defer mu.Unlock()

	if dbInstance != nil {
		return dbInstance, nil
	}

	db, err := sqlx.Connect("postgres", DSN(cfg))
	if err != nil {
		return nil, err
	}

	// Configure connection pool
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	dbInstance = &DB{DB: db}
	return dbInstance, nil
}

// Close closes the pool and forgets it so a later NewDB reconnects.
func (db *DB) Close() error {
	mu.Lock()
	if dbInstance == db {
		dbInstance = nil
	}
	mu.Unlock()
	return db.DB.Close()
}

package app

import (
	"context"
	"fmt"
	"time"

	"github.com/andresuchdata/s3csv2sfdc/internal/cache"
	"github.com/andresuchdata/s3csv2sfdc/internal/config"
	"github.com/andresuchdata/s3csv2sfdc/internal/database"
	"github.com/andresuchdata/s3csv2sfdc/internal/mapping"
	"github.com/andresuchdata/s3csv2sfdc/internal/pipeline"
	"github.com/andresuchdata/s3csv2sfdc/internal/salesforce"
	"github.com/andresuchdata/s3csv2sfdc/internal/storage"
	"github.com/andresuchdata/s3csv2sfdc/pkg/logger"
	"github.com/rs/zerolog/log"
)

// App holds the wired dependencies of a sync process.
type App struct {
	Worker *pipeline.Worker
	// Ledger is nil when no database is configured.
	Ledger *pipeline.Repository

	db *database.DB
}

// ConfigureLogging applies LOG_LEVEL and LOG_JSON.
func ConfigureLogging(cfg *config.Config) {
	if cfg.App.LogJSON {
		logger.UseJSON()
	}
	logger.SetLevel(cfg.App.LogLevel)
}

// New connects to object storage, Salesforce and, when configured, the run
// ledger database, and builds the sync worker.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	store, err := storage.NewMinioClient(storage.MinioConfig{
		Endpoint:  cfg.Storage.Endpoint,
		AccessKey: cfg.Storage.AccessKey,
		SecretKey: cfg.Storage.SecretKey,
		Region:    cfg.Storage.Region,
		UseSSL:    cfg.Storage.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize object storage: %w", err)
	}

	sessions, err := cache.NewSessionCache(cfg.Cache)
	if err != nil {
		log.Warn().Err(err).Msg("session cache unavailable, every run logs in")
		sessions = cache.NewNoopSessionCache()
	}

	crm, err := salesforce.NewClient(ctx, SalesforceConfig(cfg.Salesforce), sessions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to salesforce: %w", err)
	}

	step, err := NewStep(cfg.Sync, cfg.App.BatchSize)
	if err != nil {
		return nil, err
	}

	a := &App{}
	var repo pipeline.ExecutionRepository
	if cfg.Database.Enabled() {
		a.db, a.Ledger = openLedger(&cfg.Database)
		if a.Ledger != nil {
			repo = a.Ledger
		}
	}

	a.Worker = pipeline.NewWorker(step, store, pipeline.Options{
		TempDir:         cfg.App.TempDir,
		ArchiveFolder:   cfg.App.ArchiveFolder,
		ErrorFolder:     cfg.App.ErrorFolder,
		ExecutionObject: cfg.App.ExecutionObject,
		CRM:             crm,
	}, repo)

	return a, nil
}

// openLedger connects the run ledger. A database outage only costs the
// ledger rows, so the sync runs on without one.
func openLedger(cfg *config.DatabaseConfig) (*database.DB, *pipeline.Repository) {
	db, err := database.NewDB(cfg)
	if err != nil {
		log.Warn().Err(err).Msg("run ledger unavailable, executions will not be recorded")
		return nil, nil
	}
	return db, pipeline.NewRepository(db.DB)
}

// Close releases the database pool.
func (a *App) Close() {
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close database")
		}
	}
}

// SalesforceConfig maps SFDC_* settings to a client config.
func SalesforceConfig(cfg config.SalesforceConfig) salesforce.Config {
	return salesforce.Config{
		Username:      cfg.Username,
		Password:      cfg.Password,
		SecurityToken: cfg.SecurityToken,
		Domain:        cfg.Domain,
		ClientID:      cfg.ClientID,
		ClientSecret:  cfg.ClientSecret,
		APIVersion:    cfg.APIVersion,
		SessionTTL:    time.Duration(cfg.SessionTTLSeconds) * time.Second,
		MaxBatchWait:  time.Duration(cfg.MaxBatchWaitSecs) * time.Second,
	}
}

// NewStep builds the CSV upsert step from SYNC_* settings.
func NewStep(cfg config.SyncConfig, batchSize int) (*mapping.CSVUpsertStep, error) {
	if cfg.Object == "" || cfg.ExternalID == "" {
		return nil, fmt.Errorf("SYNC_OBJECT and SYNC_EXTERNAL_ID must be set")
	}

	fieldMap, err := mapping.ParseFieldMap(cfg.FieldMap)
	if err != nil {
		return nil, fmt.Errorf("invalid SYNC_FIELD_MAP: %w", err)
	}

	return &mapping.CSVUpsertStep{
		Object:     cfg.Object,
		ExternalID: cfg.ExternalID,
		FieldMap:   fieldMap,
		Strict:     cfg.Strict,
		BatchSize:  batchSize,
	}, nil
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/andresuchdata/s3csv2sfdc/internal/app"
	"github.com/andresuchdata/s3csv2sfdc/internal/cache"
	"github.com/andresuchdata/s3csv2sfdc/internal/config"
	"github.com/andresuchdata/s3csv2sfdc/internal/database"
	"github.com/andresuchdata/s3csv2sfdc/internal/storage"
	"github.com/aws/aws-lambda-go/events"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

func newDBURLFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "db-url",
		Usage:   "Run ledger database connection string",
		EnvVars: []string{"DATABASE_URL"},
	}
}

func main() {
	cfg := config.Load()
	app.ConfigureLogging(cfg)

	cliApp := &cli.App{
		Name:  "sync",
		Usage: "Sync CSV objects from S3-compatible storage into Salesforce",
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "Sync a single object",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "key",
						Usage:    "Object key to sync",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "bucket",
						Usage:    "Bucket holding the object",
						Required: true,
						EnvVars:  []string{"S3_BUCKET"},
					},
				},
				Action: func(c *cli.Context) error {
					return runSync(c, cfg, c.String("key"), c.String("bucket"))
				},
			},
			{
				Name:  "event",
				Usage: "Sync every object named in an S3 event notification file",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "file",
						Usage:    "Path to the event JSON",
						Required: true,
					},
				},
				Action: func(c *cli.Context) error {
					return runEvent(c, cfg, c.String("file"))
				},
			},
			{
				Name:  "migrate",
				Usage: "Create or update the run ledger schema",
				Flags: []cli.Flag{newDBURLFlag()},
				Action: func(c *cli.Context) error {
					dsn := c.String("db-url")
					if dsn == "" {
						dsn = database.DSN(&cfg.Database)
					}
					db, err := database.Open(c.Context, dsn)
					if err != nil {
						return err
					}
					defer db.Close()

					applied, err := database.Migrate(c.Context, db)
					if err != nil {
						return err
					}
					log.Info().Int("applied", applied).Msg("migrations complete")
					return nil
				},
			},
			{
				Name:  "flush-sessions",
				Usage: "Drop cached Salesforce sessions so the next run logs in again",
				Action: func(c *cli.Context) error {
					sessions, err := cache.NewSessionCache(cfg.Cache)
					if err != nil {
						return fmt.Errorf("failed to connect to session cache: %w", err)
					}
					if err := sessions.InvalidateAll(c.Context); err != nil {
						return fmt.Errorf("failed to flush sessions: %w", err)
					}
					log.Info().Msg("cached sessions flushed")
					return nil
				},
			},
		},
	}

	if err := cliApp.Run(os.Args); err != nil {
		log.Fatal().Err(err).Msg("sync failed")
	}
}

func runSync(c *cli.Context, cfg *config.Config, key, bucket string) error {
	a, err := app.New(c.Context, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	summary, err := a.Worker.Process(c.Context, key, bucket)
	if err != nil {
		return err
	}
	return printJSON(summary)
}

func runEvent(c *cli.Context, cfg *config.Config, path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read event file: %w", err)
	}

	var event events.S3Event
	if err := json.Unmarshal(content, &event); err != nil {
		return fmt.Errorf("failed to parse event file: %w", err)
	}

	a, err := app.New(c.Context, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	return storage.RespondToEvent(c.Context, event, func(ctx context.Context, key, bucket string) error {
		summary, err := a.Worker.Process(ctx, key, bucket)
		if err != nil {
			return err
		}
		return printJSON(summary)
	})
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

package main

import (
	"context"

	"github.com/andresuchdata/s3csv2sfdc/internal/app"
	"github.com/andresuchdata/s3csv2sfdc/internal/config"
	"github.com/andresuchdata/s3csv2sfdc/internal/storage"
	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/rs/zerolog/log"
)

func handler(cfg *config.Config) func(ctx context.Context, event events.S3Event) error {
	return func(ctx context.Context, event events.S3Event) error {
		// Not closed: the ledger pool is shared by warm invocations.
		a, err := app.New(ctx, cfg)
		if err != nil {
			return err
		}

		return storage.RespondToEvent(ctx, event, func(ctx context.Context, key, bucket string) error {
			summary, err := a.Worker.Process(ctx, key, bucket)
			if err != nil {
				return err
			}
			log.Info().
				Str("key", summary.ObjectKey).
				Int("rows", summary.Rows).
				Int("errors", summary.ErrorCount).
				Msg("object synced")
			return nil
		})
	}
}

func main() {
	cfg := config.Load()
	cfg.App.LogJSON = true
	app.ConfigureLogging(cfg)

	lambda.Start(handler(cfg))
}

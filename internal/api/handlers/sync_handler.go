package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/andresuchdata/s3csv2sfdc/internal/pipeline"
	"github.com/andresuchdata/s3csv2sfdc/internal/storage"
	"github.com/aws/aws-lambda-go/events"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"
)

// Processor syncs a single object.
type Processor interface {
	Process(ctx context.Context, key, bucket string) (*pipeline.Summary, error)
}

// Ledger is the read side of the run ledger.
type Ledger interface {
	ListRecentExecutions(ctx context.Context, limit int) ([]*pipeline.Execution, error)
	CountFailedSince(ctx context.Context, since time.Time) (int, error)
}

type SyncHandler struct {
	processor Processor
	ledger    Ledger
	timeout   time.Duration
	sem       *semaphore.Weighted
}

// NewSyncHandler creates the webhook handler. ledger may be nil; a zero
// timeout lets a sync run until it finishes.
func NewSyncHandler(processor Processor, ledger Ledger, timeout time.Duration) *SyncHandler {
	return &SyncHandler{
		processor: processor,
		ledger:    ledger,
		timeout:   timeout,
		sem:       semaphore.NewWeighted(1),
	}
}

// HandleS3Event syncs every object named in an S3 or MinIO notification.
// Only one notification is processed at a time. Once started, a sync is
// not cancelled when the caller goes away; it is bounded by the handler
// timeout instead.
func (h *SyncHandler) HandleS3Event(c *gin.Context) {
	var event events.S3Event
	if err := c.ShouldBindJSON(&event); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event payload"})
		return
	}
	if len(event.Records) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "event has no records"})
		return
	}

	ctx := c.Request.Context()
	if err := h.sem.Acquire(ctx, 1); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "request cancelled while waiting for a running sync"})
		return
	}
	defer h.sem.Release(1)

	runCtx, cancel := h.syncContext(ctx)
	defer cancel()

	processed := make([]*pipeline.Summary, 0, len(event.Records))
	err := storage.RespondToEvent(runCtx, event, func(ctx context.Context, key, bucket string) error {
		summary, err := h.processor.Process(ctx, key, bucket)
		if err != nil {
			return err
		}
		processed = append(processed, summary)
		return nil
	})
	if err != nil {
		log.Error().Err(err).Int("processed", len(processed)).Msg("failed to process storage event")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":     err.Error(),
			"processed": processed,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"processed": processed})
}

func (h *SyncHandler) syncContext(ctx context.Context) (context.Context, context.CancelFunc) {
	detached := context.WithoutCancel(ctx)
	if h.timeout <= 0 {
		return context.WithCancel(detached)
	}
	return context.WithTimeout(detached, h.timeout)
}

// ListExecutions returns the most recent sync runs
func (h *SyncHandler) ListExecutions(c *gin.Context) {
	if h.ledger == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "run ledger is not configured"})
		return
	}

	limit := 50
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > 500 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 500"})
			return
		}
		limit = parsed
	}

	ctx := c.Request.Context()
	execs, err := h.ledger.ListRecentExecutions(ctx, limit)
	if err != nil {
		log.Error().Err(err).Msg("failed to list executions")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch executions"})
		return
	}

	failed, err := h.ledger.CountFailedSince(ctx, time.Now().Add(-24*time.Hour))
	if err != nil {
		log.Error().Err(err).Msg("failed to count failed executions")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch executions"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":            execs,
		"failed_last_24h": failed,
	})
}

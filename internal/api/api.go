package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/andresuchdata/s3csv2sfdc/internal/api/handlers"
	"github.com/andresuchdata/s3csv2sfdc/internal/api/middleware"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

type Services struct {
	Processor handlers.Processor
	// Ledger is optional; without it the executions route answers 404.
	Ledger handlers.Ledger
	// WebhookToken, when set, is required as a bearer token on /api/v1.
	WebhookToken string
	// SyncTimeout bounds one webhook sync; zero means no bound.
	SyncTimeout time.Duration
}

func NewRouter(services *Services, allowedOrigins []string) *gin.Engine {
	router := gin.New()

	router.Use(middleware.Logger("/health"))
	router.Use(middleware.Recovery())
	if corsConfig, ok := newCORSConfig(allowedOrigins); ok {
		router.Use(cors.New(corsConfig))
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	apiGroup := router.Group("/api/v1")

	if services != nil && services.Processor != nil {
		if services.WebhookToken != "" {
			apiGroup.Use(middleware.BearerToken(services.WebhookToken))
		}
		syncHandler := handlers.NewSyncHandler(services.Processor, services.Ledger, services.SyncTimeout)
		apiGroup.POST("/events/s3", syncHandler.HandleS3Event)
		apiGroup.GET("/executions", syncHandler.ListExecutions)
	}

	return router
}

// newCORSConfig returns false when no origin is allowed, in which case no
// CORS headers are sent at all. "*" allows any origin without credentials.
func newCORSConfig(allowedOrigins []string) (cors.Config, bool) {
	origins, allowAll := normalizeAllowedOrigins(allowedOrigins)
	corsConfig := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	switch {
	case allowAll:
		corsConfig.AllowAllOrigins = true
	case len(origins) > 0:
		corsConfig.AllowOrigins = origins
		corsConfig.AllowCredentials = true
	default:
		return cors.Config{}, false
	}
	return corsConfig, true
}

func normalizeAllowedOrigins(origins []string) ([]string, bool) {
	var (
		parsed   []string
		allowAll bool
	)
	for _, origin := range origins {
		for _, part := range strings.Split(origin, ",") {
			trimmed := strings.TrimSpace(part)
			if trimmed == "" {
				continue
			}
			if trimmed == "*" {
				allowAll = true
				continue
			}
			parsed = append(parsed, trimmed)
		}
	}
	return parsed, allowAll
}

package main

import (
	"context"
	_ "embed"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/Sternrassler/inscription-grid/pkg/batch"
	"github.com/Sternrassler/inscription-grid/pkg/metrics"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

//go:embed web/index.html
var indexPage []byte

// batchHandler is implemented by *batch.Orchestrator.
type batchHandler interface {
	Handle(ctx context.Context, rawAddresses, fromDate, toDate string) (batch.Result, error)
}

type fetchRequest struct {
	Addresses string `json:"addresses" form:"addresses"`
	FromDate  string `json:"from_date" form:"from_date"`
	ToDate    string `json:"to_date" form:"to_date"`
}

func newRouter(h batchHandler, allowOrigins []string, logger zerolog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.CustomRecoveryWithWriter(io.Discard, recoverPanic(logger)), requestLogger(logger))
	r.Use(cors.New(corsConfig(allowOrigins)))

	r.GET("/", indexHandler)
	r.GET("/health", healthHandler)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(metrics.Gatherer, promhttp.HandlerOpts{})))
	r.POST("/fetch_inscriptions", fetchInscriptionsHandler(h))

	return r
}

func corsConfig(allowOrigins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{"Origin", "Content-Length", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}
	if len(allowOrigins) == 0 || (len(allowOrigins) == 1 && allowOrigins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = allowOrigins
	}
	return cfg
}

// indexHandler serves the form page that posts to /fetch_inscriptions.
func indexHandler(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", indexPage)
}

func healthHandler(c *gin.Context) {
	c.String(http.StatusOK, "OK")
}

// fetchInscriptionsHandler binds a JSON or form body. A bad date yields 400
// with {"error": ...}; everything else is reported per address inside a 200.
func fetchInscriptionsHandler(h batchHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req fetchRequest
		if err := c.ShouldBind(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
			return
		}

		result, err := h.Handle(c.Request.Context(), req.Addresses, req.FromDate, req.ToDate)
		if err != nil {
			var ve *batch.ValidationError
			if errors.As(err, &ve) {
				c.JSON(http.StatusBadRequest, gin.H{"error": ve.Error()})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, result)
	}
}

// recoverPanic logs the panic through zerolog instead of gin's stderr writer
// and answers 500.
func recoverPanic(logger zerolog.Logger) gin.RecoveryFunc {
	return func(c *gin.Context, recovered any) {
		logger.Error().
			Interface("panic", recovered).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Msg("Handler panicked")
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

func requestLogger(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		evt := logger.Info()
		if status >= http.StatusInternalServerError {
			evt = logger.Error()
		} else if status >= http.StatusBadRequest {
			evt = logger.Warn()
		}
		evt.
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", status).
			Dur("duration", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Msg("Request handled")
	}
}

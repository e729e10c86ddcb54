package main

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/bsm/redislock"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/mmdatafocus/freight_backend/config"
	"github.com/mmdatafocus/freight_backend/models"
	"github.com/mmdatafocus/freight_backend/utils"
	"github.com/mmdatafocus/freight_backend/workflow"
	"github.com/sirupsen/logrus"
)

const defaultPort = "8080"

type PubSubMessage struct {
	Message struct {
		Data []byte `json:"data,omitempty"`
		ID   string `json:"id"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

func jobPubSubHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var msg PubSubMessage
		logger := config.GetLogger()

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			config.LogError(logger, "server.go", "jobPubSubHandler", "io.ReadAll", nil, err)
			// Malformed request body: ack/drop to avoid infinite retries.
			c.Status(http.StatusNoContent)
			return
		}
		// byte slice unmarshalling handles base64 decoding.
		if err := json.Unmarshal(body, &msg); err != nil {
			config.LogError(logger, "server.go", "jobPubSubHandler", "Unmarshal body", body, err)
			c.Status(http.StatusNoContent)
			return
		}
		var m config.PubSubMessage
		if err := json.Unmarshal(msg.Message.Data, &m); err != nil {
			config.LogError(logger, "server.go", "jobPubSubHandler", "Unmarshal pubsub message", msg.Message.Data, err)
			c.Status(http.StatusNoContent)
			return
		}
		if m.ReferenceType == "" || m.ReferenceId <= 0 {
			config.LogError(logger, "server.go", "jobPubSubHandler", "Invalid pubsub message (missing required fields)", m, errors.New("reference_type/reference_id required"))
			c.Status(http.StatusNoContent)
			return
		}

		// Prefer payload correlation_id; fall back to Pub/Sub message ID.
		correlationID := m.CorrelationId
		if correlationID == "" {
			correlationID = msg.Message.ID
		}
		fields := logrus.Fields{
			"field":          "jobPubSubHandler",
			"reference_type": m.ReferenceType,
			"reference_id":   m.ReferenceId,
			"message_id":     msg.Message.ID,
			"correlation_id": correlationID,
		}

		// Redis lock is best-effort; ProcessMessage serializes through MySQL advisory locks too.
		var lock *redislock.Lock
		if redisLock := config.GetRedisLock(); redisLock != nil {
			lock, err = redisLock.Obtain(c.Request.Context(), fmt.Sprintf("lock:job:%s:%d", m.ReferenceType, m.ReferenceId), 30*time.Second, nil)
			if err != nil {
				logger.WithFields(fields).Warn("could not obtain redis lock; proceeding without redis lock: " + err.Error())
				lock = nil
			}
		}
		defer func() {
			if lock == nil {
				return
			}
			if releaseErr := lock.Release(c.Request.Context()); releaseErr != nil {
				logger.WithFields(fields).Warn("failed to release redis lock: " + releaseErr.Error())
			}
		}()

		ctx := utils.SystemContext(c.Request.Context(), correlationID)
		if err := HandleJob(ctx, logger, m); err != nil {
			logger.WithFields(fields).Error("pubsub processing failed: " + err.Error())
			// Non-2xx tells Pub/Sub to retry.
			c.Status(http.StatusInternalServerError)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// internalTokenRequired guards the ops endpoints with INTERNAL_API_TOKEN.
// Without a configured token the endpoints are closed.
func internalTokenRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		want := os.Getenv("INTERNAL_API_TOKEN")
		got := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		if got == "" {
			got = c.GetHeader("token")
		}
		if want == "" || subtle.ConstantTimeCompare([]byte(got), []byte(want)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}

func outboxDeadHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, _ := strconv.Atoi(c.Query("limit"))
		records, err := workflow.DeadOutboxRecords(c.Request.Context(), config.GetDB(), limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"records": records})
	}
}

type outboxReplayRequest struct {
	RecordIds []int `json:"record_ids" binding:"required,min=1"`
}

func outboxReplayHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req outboxReplayRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "record_ids are required"})
			return
		}
		replayed, err := workflow.ReplayOutboxRecords(c.Request.Context(), config.GetDB(), req.RecordIds)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		cid, _ := utils.GetCorrelationIdFromContext(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{
			"replayed":       replayed,
			"record_ids":     req.RecordIds,
			"correlation_id": cid,
		})
	}
}

func customNotFoundHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
}

func newRouter(logger *logrus.Logger) *gin.Engine {
	r := gin.New()
	r.Use(func(c *gin.Context) {
		cid := c.GetHeader("x-correlation-id")
		if cid == "" {
			cid = uuid.NewString()
		}
		c.Request = c.Request.WithContext(utils.SetCorrelationIdInContext(c.Request.Context(), cid))
		c.Next()
	})
	r.Use(func(c *gin.Context) {
		// Always allow the startup probe.
		if c.Request.URL.Path == "/healthz" {
			c.Status(http.StatusNoContent)
			c.Abort()
			return
		}
		if config.GetDB() == nil {
			c.AbortWithStatus(http.StatusServiceUnavailable)
			return
		}
		c.Next()
	})
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	corsConfig := cors.DefaultConfig()
	// In production CORS needs an explicit allowlist; elsewhere all origins are allowed.
	allowedOrigins := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if config.IsProduction() {
		corsConfig.AllowOrigins = splitAndTrim(allowedOrigins)
		if len(corsConfig.AllowOrigins) == 0 {
			corsConfig.AllowOriginFunc = func(string) bool { return false }
		}
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AddAllowMethods("GET", "POST", "OPTIONS")
	corsConfig.AddAllowHeaders("token", "Origin", "Content-Type", "Authorization", "x-correlation-id")
	corsConfig.AddExposeHeaders("Content-Length")
	r.Use(cors.New(corsConfig))

	r.Use(customErrorLogger(logger))
	r.Use(gin.Recovery())
	r.POST("/pubsub", jobPubSubHandler())
	ops := r.Group("/internal/ops", internalTokenRequired())
	ops.GET("/outbox/dead", outboxDeadHandler())
	ops.POST("/outbox/replay", outboxReplayHandler())
	r.NoRoute(customNotFoundHandler)
	return r
}

func main() {
	port := os.Getenv("API_PORT")
	if port == "" {
		// Cloud Run standard env var.
		port = os.Getenv("PORT")
	}
	if port == "" {
		port = defaultPort
	}

	logger := config.GetLogger()

	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	// Listen before dependencies are up; app endpoints answer 503 until the DB is ready.
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: newRouter(logger),
	}
	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- srv.ListenAndServe()
	}()

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()

	db := config.GetDB()
	sqlDB, _ := db.DB()
	defer func() {
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	}()
	// AutoMigrate can block tables; SKIP_MIGRATIONS leaves it to `freightctl migrate`.
	if !strings.EqualFold(strings.TrimSpace(os.Getenv("SKIP_MIGRATIONS")), "true") {
		if err := models.MigrateTable(db); err != nil {
			logger.WithFields(logrus.Fields{"field": "migrations"}).Error("AutoMigrate failed: " + err.Error())
		}
	} else {
		logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
	}

	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()
	if config.PubSubConfigured() {
		go workflow.NewOutboxDispatcher(db, logger).Run(workerCtx)
		if os.Getenv("PUBSUB_SUBSCRIPTION") != "" {
			if err := RunJobWorker(workerCtx, logger); err != nil {
				config.LogError(logger, "server.go", "main", "RunJobWorker", nil, err)
			}
		}
	}
	if config.RunDirectOutboxProcessor() {
		go NewOutboxDirectProcessor(db, logger).Run(workerCtx)
	}

	logger.WithFields(logrus.Fields{"field": "http"}).Info("listening on :" + port)
	log.Println("Server started successfully")

	select {
	case <-sigCtx.Done():
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "http"}).Error("server stopped unexpectedly: " + err.Error())
		}
	}

	// Stop background workers before draining requests.
	cancelWorkers()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "http"}).Error("graceful shutdown failed: " + err.Error())
	}
	if rdb := config.GetRedisDB(); rdb != nil {
		_ = rdb.Close()
	}
}

// customErrorLogger logs only requests that recorded errors.
func customErrorLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		if len(c.Errors) > 0 {
			logger.Error(c.Errors.String())
		}
	}
}

func splitAndTrim(csv string) []string {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

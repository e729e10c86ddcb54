package main

import (
	"context"
	"os"
	"strconv"
	"time"

	"github.com/mmdatafocus/freight_backend/config"
	"github.com/mmdatafocus/freight_backend/models"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type outboxProcessRetryConfig struct {
	maxAttempts int
	baseBackoff time.Duration
	maxBackoff  time.Duration
}

func positiveEnv(key string) (int, bool) {
	n, err := strconv.Atoi(os.Getenv(key))
	return n, err == nil && n > 0
}

// getOutboxProcessRetryConfig reads OUTBOX_PROCESS_MAX_ATTEMPTS,
// OUTBOX_PROCESS_BASE_BACKOFF_SECONDS and OUTBOX_PROCESS_MAX_BACKOFF_SECONDS.
func getOutboxProcessRetryConfig() outboxProcessRetryConfig {
	cfg := outboxProcessRetryConfig{
		maxAttempts: 10,
		baseBackoff: 5 * time.Second,
		maxBackoff:  10 * time.Minute,
	}
	if n, ok := positiveEnv("OUTBOX_PROCESS_MAX_ATTEMPTS"); ok {
		cfg.maxAttempts = n
	}
	if n, ok := positiveEnv("OUTBOX_PROCESS_BASE_BACKOFF_SECONDS"); ok {
		cfg.baseBackoff = time.Duration(n) * time.Second
	}
	if n, ok := positiveEnv("OUTBOX_PROCESS_MAX_BACKOFF_SECONDS"); ok {
		cfg.maxBackoff = time.Duration(n) * time.Second
	}
	return cfg
}

// outboxProcessBackoff doubles from baseBackoff per attempt, capped at maxBackoff.
func outboxProcessBackoff(attempt int, cfg outboxProcessRetryConfig) time.Duration {
	delay := cfg.baseBackoff
	for i := 1; i < attempt && delay < cfg.maxBackoff; i++ {
		delay *= 2
	}
	if delay > cfg.maxBackoff {
		return cfg.maxBackoff
	}
	return delay
}

func markOutboxProcessing(ctx context.Context, id int) {
	if id <= 0 {
		return
	}
	_ = config.GetDB().WithContext(ctx).
		Model(&models.PubSubMessageRecord{}).
		Where("id = ? AND processing_status <> ?", id, models.OutboxProcessStatusDead).
		Update("processing_status", models.OutboxProcessStatusProcessing).Error
}

// markOutboxProcessFailure counts a failed attempt and schedules the next one.
// It reports true once the record has run out of attempts and is DEAD.
func markOutboxProcessFailure(ctx context.Context, logger *logrus.Logger, m config.PubSubMessage, cause error) bool {
	if m.ID <= 0 {
		return false
	}
	cfg := getOutboxProcessRetryConfig()
	errMsg := ""
	if cause != nil {
		errMsg = cause.Error()
	}

	var rec models.PubSubMessageRecord
	err := config.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id", "reference_type", "reference_id", "process_attempts").
			First(&rec, m.ID).Error; err != nil {
			return err
		}

		rec.ProcessAttempts++
		rec.ProcessingStatus = models.OutboxProcessStatusFailed
		var next *time.Time
		if rec.ProcessAttempts >= cfg.maxAttempts {
			rec.ProcessingStatus = models.OutboxProcessStatusDead
		} else {
			at := time.Now().UTC().Add(outboxProcessBackoff(rec.ProcessAttempts, cfg))
			next = &at
		}
		return tx.Model(&models.PubSubMessageRecord{}).
			Where("id = ?", rec.ID).
			Updates(map[string]interface{}{
				"last_process_error":      &errMsg,
				"process_attempts":        rec.ProcessAttempts,
				"next_process_attempt_at": next,
				"processing_status":       rec.ProcessingStatus,
				"is_processed":            rec.ProcessingStatus == models.OutboxProcessStatusDead,
				"locked_at":               nil,
				"locked_by":               nil,
			}).Error
	})
	if err != nil {
		config.LogError(logger, "outbox_processing_retry.go", "markOutboxProcessFailure", "recording failed attempt", m, err)
		return false
	}

	if logger != nil {
		logger.WithFields(logrus.Fields{
			"field":             "OutboxProcessing",
			"reference_type":    rec.ReferenceType,
			"reference_id":      rec.ReferenceId,
			"record_id":         rec.ID,
			"processing_status": rec.ProcessingStatus,
			"process_attempts":  rec.ProcessAttempts,
		}).Error("outbox processing failed: " + errMsg)
	}
	return rec.ProcessingStatus == models.OutboxProcessStatusDead
}

func markOutboxProcessSuccess(ctx context.Context, logger *logrus.Logger, m config.PubSubMessage) {
	if m.ID <= 0 {
		return
	}
	now := time.Now().UTC()
	// DEAD rows stay DEAD until replayed.
	_ = config.GetDB().WithContext(ctx).Model(&models.PubSubMessageRecord{}).
		Where("id = ? AND processing_status <> ?", m.ID, models.OutboxProcessStatusDead).
		Updates(map[string]interface{}{
			"processing_status":       models.OutboxProcessStatusSucceeded,
			"is_processed":            true,
			"processed_at":            &now,
			"next_process_attempt_at": nil,
			"last_process_error":      nil,
			"locked_at":               nil,
			"locked_by":               nil,
		}).Error

	if logger != nil {
		logger.WithFields(logrus.Fields{
			"field":          "OutboxProcessing",
			"reference_type": m.ReferenceType,
			"reference_id":   m.ReferenceId,
			"record_id":      m.ID,
			"correlation_id": m.CorrelationId,
		}).Info("outbox job done")
	}
}

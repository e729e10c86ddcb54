package workflow

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/mmdatafocus/freight_backend/config"
	"github.com/mmdatafocus/freight_backend/models"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// OutboxDispatcher publishes pending outbox rows to Pub/Sub after their
// transaction has committed.
type OutboxDispatcher struct {
	DB           *gorm.DB
	Logger       *logrus.Logger
	DispatcherID string

	BatchSize      int
	PollInterval   time.Duration
	LockTimeout    time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
}

// NewOutboxDispatcher honours OUTBOX_PUBLISH_MAX_ATTEMPTS when set.
func NewOutboxDispatcher(db *gorm.DB, logger *logrus.Logger) *OutboxDispatcher {
	maxAttempts := 20
	if n, err := strconv.Atoi(os.Getenv("OUTBOX_PUBLISH_MAX_ATTEMPTS")); err == nil && n > 0 {
		maxAttempts = n
	}
	return &OutboxDispatcher{
		DB:             db,
		Logger:         logger,
		DispatcherID:   "dispatch-" + uuid.NewString(),
		BatchSize:      50,
		PollInterval:   500 * time.Millisecond,
		LockTimeout:    30 * time.Second,
		MaxAttempts:    maxAttempts,
		InitialBackoff: 5 * time.Second,
	}
}

func (d *OutboxDispatcher) Run(ctx context.Context) {
	if d == nil || d.DB == nil {
		return
	}
	ticker := time.NewTicker(d.PollInterval)
	defer ticker.Stop()
	for {
		d.dispatchOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (d *OutboxDispatcher) exhausted(attempts int) bool {
	return d.MaxAttempts > 0 && attempts >= d.MaxAttempts
}

// claim locks a batch of due rows for this dispatcher. Rows already over the
// attempt limit are marked DEAD instead of being returned.
func (d *OutboxDispatcher) claim(ctx context.Context, now time.Time) ([]models.PubSubMessageRecord, error) {
	staleBefore := now.Add(-d.LockTimeout)
	var due, claimed []models.PubSubMessageRecord
	err := d.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.
			Where("is_processed = 0").
			Where("(publish_status IN ? AND (next_attempt_at IS NULL OR next_attempt_at <= ?)) OR (publish_status = ? AND locked_at <= ?)",
				[]string{models.OutboxPublishStatusPending, models.OutboxPublishStatusFailed}, now,
				models.OutboxPublishStatusProcessing, staleBefore).
			Order("id ASC").
			Limit(d.BatchSize).
			Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Find(&due).Error
		if err != nil {
			return err
		}
		for _, rec := range due {
			if d.exhausted(rec.PublishAttempts) {
				msg := fmt.Sprintf("max publish attempts exceeded (%d)", d.MaxAttempts)
				if err := release(tx, rec.ID, map[string]interface{}{
					"publish_status":     models.OutboxPublishStatusDead,
					"last_publish_error": &msg,
				}); err != nil {
					return err
				}
				continue
			}
			rec.PublishAttempts++
			if err := tx.Model(&models.PubSubMessageRecord{}).Where("id = ?", rec.ID).Updates(map[string]interface{}{
				"publish_status":     models.OutboxPublishStatusProcessing,
				"locked_at":          &now,
				"locked_by":          d.DispatcherID,
				"publish_attempts":   rec.PublishAttempts,
				"last_publish_error": nil,
				"next_attempt_at":    nil,
			}).Error; err != nil {
				return err
			}
			claimed = append(claimed, rec)
		}
		return nil
	})
	return claimed, err
}

func (d *OutboxDispatcher) dispatchOnce(ctx context.Context) {
	now := time.Now().UTC()
	claimed, err := d.claim(ctx, now)
	if err != nil {
		config.LogError(d.Logger, "outboxDispatcher.go", "dispatchOnce", "claiming outbox rows", nil, err)
		return
	}
	for _, rec := range claimed {
		pubID, pubErr := config.PublishJobWithResult(ctx, models.ConvertToPubSubMessage(rec))
		if pubErr != nil {
			d.markPublishFailed(ctx, rec, pubErr)
			continue
		}
		_ = release(d.DB.WithContext(ctx), rec.ID, map[string]interface{}{
			"publish_status":     models.OutboxPublishStatusSent,
			"published_at":       &now,
			"pub_sub_message_id": &pubID,
		})
	}
}

func (d *OutboxDispatcher) markPublishFailed(ctx context.Context, rec models.PubSubMessageRecord, err error) {
	msg := err.Error()
	fields := logrus.Fields{
		"field":          "OutboxDispatcher",
		"reference_type": rec.ReferenceType,
		"reference_id":   rec.ReferenceId,
		"record_id":      rec.ID,
		"attempt":        rec.PublishAttempts,
	}
	update := map[string]interface{}{
		"publish_status":     models.OutboxPublishStatusDead,
		"last_publish_error": &msg,
	}
	if !d.exhausted(rec.PublishAttempts) {
		next := time.Now().UTC().Add(PublishBackoff(d.InitialBackoff, rec.PublishAttempts))
		update["publish_status"] = models.OutboxPublishStatusFailed
		update["next_attempt_at"] = &next
		fields["next_attempt_at"] = next.Format(time.RFC3339Nano)
	}
	_ = release(d.DB.WithContext(ctx), rec.ID, update)

	if d.Logger != nil {
		d.Logger.WithFields(fields).Error(fmt.Sprintf("outbox publish %s: %v", update["publish_status"], err))
	}
}

// release unlocks a claimed row while applying the outcome columns.
func release(db *gorm.DB, id int, outcome map[string]interface{}) error {
	update := map[string]interface{}{
		"locked_at":       nil,
		"locked_by":       nil,
		"next_attempt_at": nil,
	}
	for k, v := range outcome {
		update[k] = v
	}
	return db.Model(&models.PubSubMessageRecord{}).Where("id = ?", id).Updates(update).Error
}

// PublishBackoff doubles initial per attempt, capped at ten minutes.
func PublishBackoff(initial time.Duration, attempt int) time.Duration {
	backoff := initial
	for i := 1; i < attempt; i++ {
		backoff *= 2
		if backoff > maxPublishBackoff {
			return maxPublishBackoff
		}
	}
	return backoff
}

const maxPublishBackoff = 10 * time.Minute

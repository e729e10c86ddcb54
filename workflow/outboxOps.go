package workflow

import (
	"context"
	"errors"

	"github.com/mmdatafocus/freight_backend/models"
	"github.com/samber/lo"
	"gorm.io/gorm"
)

const defaultDeadLimit = 100

// DeadOutboxRecords lists jobs that gave up, newest first.
func DeadOutboxRecords(ctx context.Context, db *gorm.DB, limit int) ([]models.OutboxStatus, error) {
	if limit <= 0 {
		limit = defaultDeadLimit
	}
	var records []models.PubSubMessageRecord
	err := db.WithContext(ctx).
		Where("processing_status = ? OR publish_status = ?", models.OutboxProcessStatusDead, models.OutboxPublishStatusDead).
		Order("id DESC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return lo.Map(records, func(rec models.PubSubMessageRecord, _ int) models.OutboxStatus { return rec.Status() }), nil
}

// ReplayOutboxRecords puts dead jobs back in the queue with fresh attempt counters.
// Rows that are not dead are left alone.
func ReplayOutboxRecords(ctx context.Context, db *gorm.DB, ids []int) (int64, error) {
	if len(ids) == 0 {
		return 0, errors.New("no outbox record ids to replay")
	}
	res := db.WithContext(ctx).Model(&models.PubSubMessageRecord{}).
		Where("id IN ?", lo.Uniq(ids)).
		Where("processing_status = ? OR publish_status = ?", models.OutboxProcessStatusDead, models.OutboxPublishStatusDead).
		Updates(map[string]interface{}{
			"is_processed":            false,
			"processing_status":       models.OutboxProcessStatusPending,
			"process_attempts":        0,
			"next_process_attempt_at": nil,
			"last_process_error":      nil,
			"processed_at":            nil,
			"publish_status":          models.OutboxPublishStatusPending,
			"publish_attempts":        0,
			"next_attempt_at":         nil,
			"last_publish_error":      nil,
			"locked_at":               nil,
			"locked_by":               nil,
		})
	return res.RowsAffected, res.Error
}

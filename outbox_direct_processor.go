package main

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/mmdatafocus/freight_backend/models"
	"github.com/mmdatafocus/freight_backend/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// OutboxDirectProcessor runs unhandled outbox jobs in-process, without Pub/Sub.
type OutboxDirectProcessor struct {
	DB        *gorm.DB
	Logger    *logrus.Logger
	WorkerID  string
	BatchSize int
	Interval  time.Duration
	LockTTL   time.Duration
}

func NewOutboxDirectProcessor(db *gorm.DB, logger *logrus.Logger) *OutboxDirectProcessor {
	return &OutboxDirectProcessor{
		DB:        db,
		Logger:    logger,
		WorkerID:  "direct-" + uuid.NewString(),
		BatchSize: 50,
		Interval:  2 * time.Second,
		LockTTL:   30 * time.Second,
	}
}

func (p *OutboxDirectProcessor) Run(ctx context.Context) {
	if p == nil || p.DB == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		p.processOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-time.After(p.Interval):
		}
	}
}

func (p *OutboxDirectProcessor) processOnce(ctx context.Context) {
	now := time.Now().UTC()
	staleBefore := now.Add(-p.LockTTL)

	var claimed []models.PubSubMessageRecord
	err := p.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.
			Where("is_processed = 0").
			Where("processing_status <> ?", models.OutboxProcessStatusDead).
			Where("(next_process_attempt_at IS NULL OR next_process_attempt_at <= ?)", now).
			Where("(locked_at IS NULL OR locked_at <= ?)", staleBefore).
			Order("id ASC").
			Limit(p.BatchSize).
			Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
		if err := q.Find(&claimed).Error; err != nil {
			return err
		}
		if len(claimed) == 0 {
			return nil
		}
		for i := range claimed {
			claimed[i].LockedAt = &now
			claimed[i].LockedBy = &p.WorkerID
			if err := tx.Model(&models.PubSubMessageRecord{}).
				Where("id = ?", claimed[i].ID).
				Updates(map[string]interface{}{
					"locked_at": claimed[i].LockedAt,
					"locked_by": claimed[i].LockedBy,
				}).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil || len(claimed) == 0 {
		return
	}

	for _, rec := range claimed {
		msg := models.ConvertToPubSubMessage(rec)
		procCtx := utils.SystemContext(ctx, rec.CorrelationId)
		if err := HandleJob(procCtx, p.Logger, msg); err != nil && p.Logger != nil {
			p.Logger.WithFields(logrus.Fields{
				"field":          "OutboxDirectProcessor",
				"reference_type": rec.ReferenceType,
				"reference_id":   rec.ReferenceId,
				"record_id":      rec.ID,
			}).Error("direct processing failed: " + err.Error())
		}
	}
}

package main

import (
	"context"
	"encoding/json"
	"os"
	"strconv"

	"cloud.google.com/go/pubsub"
	"github.com/mmdatafocus/freight_backend/config"
	"github.com/mmdatafocus/freight_backend/storage/mysql"
	"github.com/mmdatafocus/freight_backend/utils"
	"github.com/mmdatafocus/freight_backend/workflow"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// RunJobWorker pulls deferred jobs from the subscription until ctx ends.
func RunJobWorker(ctx context.Context, logger *logrus.Logger) error {
	client, err := config.GetClient(ctx)
	if err != nil {
		return err
	}
	topic, err := config.CreateTopicIfNotExists(ctx, client, os.Getenv("PUBSUB_TOPIC"))
	if err != nil {
		return err
	}
	sub, err := config.CreateSubscriptionIfNotExists(ctx, client, os.Getenv("PUBSUB_SUBSCRIPTION"), topic)
	if err != nil {
		return err
	}
	sub.ReceiveSettings.MaxOutstandingMessages = 10

	callback := func(ctx context.Context, msg *pubsub.Message) {
		m := config.PubSubMessage{}
		if err := json.Unmarshal(msg.Data, &m); err != nil {
			config.LogError(logger, "jobWorkflow.go", "RunJobWorker", "Unmarshaling pubsub message", msg.Data, err)
			msg.Ack()
			return
		}
		correlationID := m.CorrelationId
		if correlationID == "" {
			correlationID = msg.ID
		}
		if err := HandleJob(utils.SystemContext(ctx, correlationID), logger, m); err != nil {
			logger.WithFields(logrus.Fields{
				"field":          "JobWorker",
				"reference_type": m.ReferenceType,
				"reference_id":   m.ReferenceId,
				"message_id":     msg.ID,
			}).Error("pubsub processing failed: " + err.Error())
			msg.Nack()
			return
		}
		msg.Ack()
	}

	go func() {
		if err := sub.Receive(ctx, callback); err != nil {
			config.LogError(logger, "jobWorkflow.go", "RunJobWorker", "Failed to receive messages", nil, err)
		}
	}()
	return nil
}

// HandleJob processes one job and records the outcome on its outbox row.
// A job that has exhausted its attempts is reported as handled so the queue drops it.
func HandleJob(ctx context.Context, logger *logrus.Logger, m config.PubSubMessage) error {
	markOutboxProcessing(ctx, m.ID)
	if err := ProcessMessage(ctx, logger, m); err != nil {
		if dead := markOutboxProcessFailure(ctx, logger, m, err); dead {
			return nil
		}
		return err
	}
	markOutboxProcessSuccess(ctx, logger, m)
	return nil
}

// ProcessMessage runs the job handler in one transaction, serialized per document
// and deduplicated by message id.
func ProcessMessage(ctx context.Context, logger *logrus.Logger, m config.PubSubMessage) error {
	db := config.GetDB()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := workflow.AcquireJobLock(tx, m.ReferenceType, m.ReferenceId); err != nil {
			return err
		}
		defer workflow.ReleaseJobLock(tx, m.ReferenceType, m.ReferenceId)

		handlerName := m.ReferenceType
		messageId := strconv.Itoa(m.ID)
		skip, err := workflow.BeginIdempotency(tx, handlerName, messageId)
		if err != nil {
			return err
		}
		if skip {
			return nil
		}

		if err := workflow.ProcessJob(ctx, mysql.New(tx), logger, m); err != nil {
			_ = workflow.MarkIdempotencyFailed(tx, handlerName, messageId, err)
			return err
		}
		return workflow.MarkIdempotencySucceeded(tx, handlerName, messageId)
	})
}

package workflow

import (
	"context"

	"github.com/mmdatafocus/freight_backend/config"
	"github.com/mmdatafocus/freight_backend/models"
	"github.com/mmdatafocus/freight_backend/storage"
	"github.com/sirupsen/logrus"
)

// ProcessOperationLogsWorkflow writes the "Operation" shipping log of a loading
// operation submitted with deferred logs. Cancelled operations and operations
// already logged are skipped without error.
func ProcessOperationLogsWorkflow(ctx context.Context, store storage.Store, logger *logrus.Logger, msg config.PubSubMessage) error {
	fields := logrus.Fields{
		"field":          "ProcessOperationLogsWorkflow",
		"reference_type": msg.ReferenceType,
		"reference_id":   msg.ReferenceId,
		"message_id":     msg.ID,
	}
	if msg.CorrelationId != "" {
		fields["correlation_id"] = msg.CorrelationId
	}

	return store.RunInTx(ctx, func(tx storage.Store) error {
		op, err := tx.GetLoadingOperation(ctx, msg.ReferenceId, true)
		if err != nil {
			config.LogError(logger, "operationLogsWorkflow.go", "ProcessOperationLogsWorkflow", "GetLoadingOperation", msg, err)
			return err
		}
		if op.DocStatus != models.DocStatusSubmitted {
			logger.WithFields(fields).Info("loading operation is not submitted; skipping")
			return nil
		}

		existing, err := tx.FindShippingLogs(ctx, models.ShippingLogFilter{
			LoadingOperationId: op.ID,
			Activity:           models.ShippingLogActivityOperation,
		})
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			return nil
		}

		if err := tx.InsertShippingLog(ctx, op.OperationLog()); err != nil {
			config.LogError(logger, "operationLogsWorkflow.go", "ProcessOperationLogsWorkflow", "InsertShippingLog", op.ID, err)
			return err
		}
		logger.WithFields(fields).Info("operation shipping log written")
		return nil
	})
}

// ProcessJob routes a deferred job to its handler. Unknown reference types are
// acknowledged and dropped.
func ProcessJob(ctx context.Context, store storage.Store, logger *logrus.Logger, msg config.PubSubMessage) error {
	switch msg.ReferenceType {
	case models.OutboxReferenceOperationLogs:
		return ProcessOperationLogsWorkflow(ctx, store, logger, msg)
	}
	logger.WithFields(logrus.Fields{
		"field":          "ProcessJob",
		"reference_type": msg.ReferenceType,
		"reference_id":   msg.ReferenceId,
	}).Warn("no handler for job")
	return nil
}

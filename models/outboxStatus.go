package models

import "time"

// OutboxStatus is the operator view of an outbox row.
type OutboxStatus struct {
	RecordId             int        `json:"record_id"`
	ReferenceType        string     `json:"reference_type"`
	ReferenceId          int        `json:"reference_id"`
	PublishStatus        string     `json:"publish_status"`
	ProcessingStatus     string     `json:"processing_status"`
	IsProcessed          bool       `json:"is_processed"`
	PublishAttempts      int        `json:"publish_attempts"`
	ProcessAttempts      int        `json:"process_attempts"`
	NextProcessAttemptAt *time.Time `json:"next_process_attempt_at"`
	LastPublishError     *string    `json:"last_publish_error"`
	LastProcessError     *string    `json:"last_process_error"`
	CorrelationId        string     `json:"correlation_id"`
	CreatedAt            time.Time  `json:"created_at"`
	ProcessedAt          *time.Time `json:"processed_at"`
}

func (rec PubSubMessageRecord) Status() OutboxStatus {
	processing := rec.ProcessingStatus
	if processing == "" {
		if rec.IsProcessed {
			processing = OutboxProcessStatusSucceeded
		} else {
			processing = OutboxProcessStatusPending
		}
	}
	return OutboxStatus{
		RecordId:             rec.ID,
		ReferenceType:        rec.ReferenceType,
		ReferenceId:          rec.ReferenceId,
		PublishStatus:        rec.PublishStatus,
		ProcessingStatus:     processing,
		IsProcessed:          rec.IsProcessed,
		PublishAttempts:      rec.PublishAttempts,
		ProcessAttempts:      rec.ProcessAttempts,
		NextProcessAttemptAt: rec.NextProcessAttemptAt,
		LastPublishError:     rec.LastPublishError,
		LastProcessError:     rec.LastProcessError,
		CorrelationId:        rec.CorrelationId,
		CreatedAt:            rec.CreatedAt,
		ProcessedAt:          rec.ProcessedAt,
	}
}

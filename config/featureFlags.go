package config

import (
	"os"
	"strings"
)

func envBool(key string) (bool, bool) {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch v {
	case "1", "true", "yes", "y":
		return true, true
	case "0", "false", "no", "n":
		return false, true
	}
	return false, false
}

// DeferOperationLogs moves shipping-log fan-out of loading operations to the worker queue.
//
// Set via env:
// - DEFER_OPERATION_LOGS=true
func DeferOperationLogs() bool {
	v, _ := envBool("DEFER_OPERATION_LOGS")
	return v
}

// RunDirectOutboxProcessor processes outbox rows in-process, without Pub/Sub.
// Defaults to on when Pub/Sub is not configured.
//
// Set via env:
// - OUTBOX_DIRECT_PROCESSING=true|false
func RunDirectOutboxProcessor() bool {
	if v, ok := envBool("OUTBOX_DIRECT_PROCESSING"); ok {
		return v
	}
	return !PubSubConfigured()
}

// IsProduction is true when GO_ENV=production.
func IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production")
}

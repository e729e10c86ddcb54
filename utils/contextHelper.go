package utils

import (
	"context"

	"github.com/mmdatafocus/freight_backend/appctx"
)

var (
	ContextKeyUserId        = appctx.ContextKeyUserId
	ContextKeyUserName      = appctx.ContextKeyUserName
	ContextKeyCorrelationId = appctx.ContextKeyCorrelationId
	ContextKeyElevated      = appctx.ContextKeyElevated
)

func GetUserIdFromContext(ctx context.Context) (int, bool) {
	return appctx.GetInt(ctx, ContextKeyUserId)
}

func GetUserNameFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyUserName)
}

func GetCorrelationIdFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyCorrelationId)
}

func SetUserIdInContext(ctx context.Context, userId int) context.Context {
	return appctx.Set(ctx, ContextKeyUserId, userId)
}

func SetUserNameInContext(ctx context.Context, userName string) context.Context {
	return appctx.Set(ctx, ContextKeyUserName, userName)
}

func SetCorrelationIdInContext(ctx context.Context, correlationId string) context.Context {
	return appctx.Set(ctx, ContextKeyCorrelationId, correlationId)
}

// IsElevated reports whether the caller may bypass payment guards.
func IsElevated(ctx context.Context) bool {
	v, ok := appctx.GetBool(ctx, ContextKeyElevated)
	return ok && v
}

func SetElevatedInContext(ctx context.Context, elevated bool) context.Context {
	return appctx.Set(ctx, ContextKeyElevated, elevated)
}

// SystemContext is used by background workers acting on behalf of no user.
func SystemContext(ctx context.Context, correlationId string) context.Context {
	ctx = SetUserIdInContext(ctx, 0)
	ctx = SetUserNameInContext(ctx, "System")
	if correlationId != "" {
		ctx = SetCorrelationIdInContext(ctx, correlationId)
	}
	return ctx
}

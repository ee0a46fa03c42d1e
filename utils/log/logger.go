package log

import (
	"context"
	"os"

	"go.uber.org/zap"
)

type ctxKey string

const (
	UserIDKey    ctxKey = "user_id"
	ChatIDKey    ctxKey = "chat_id"
	RequestIDKey ctxKey = "request_id"
)

var logger *zap.Logger

func init() {
	if os.Getenv("DEBUG") == "true" {
		logger, _ = zap.NewDevelopment()
	} else {
		logger, _ = zap.NewProduction()
	}
}

// ContextWith stores a logging field on the context.
func ContextWith(ctx context.Context, key ctxKey, value any) context.Context {
	return context.WithValue(ctx, key, value)
}

func WithCtx(ctx context.Context) *zap.Logger {
	fields := []zap.Field{}

	if v := ctx.Value(RequestIDKey); v != nil {
		fields = append(fields, zap.Any("request_id", v))
	}
	if v := ctx.Value(UserIDKey); v != nil {
		fields = append(fields, zap.Any("user_id", v))
	}
	if v := ctx.Value(ChatIDKey); v != nil {
		fields = append(fields, zap.Any("chat_id", v))
	}

	return logger.With(fields...)
}

func With(fields ...zap.Field) *zap.Logger {
	return logger.With(fields...)
}

// Sync flushes buffered entries; call before exit.
func Sync() {
	_ = logger.Sync()
}

package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"go.opentelemetry.io/otel/trace"
)

type contextKey string

const (
	correlationIDKey contextKey = "correlation_id"
	shopperKeyKey    contextKey = "shopper_key"
	orderNoKey       contextKey = "order_no"
	loggerKey        contextKey = "logger"
)

// New creates a JSON logger for the given service writing to stdout.
func New(serviceName, level string) *slog.Logger {
	return NewWithWriter(serviceName, level, os.Stdout)
}

// NewWithWriter creates a JSON logger writing to w.
func NewWithWriter(serviceName, level string, w io.Writer) *slog.Logger {
	lvl := ParseLevel(level)

	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:     lvl,
		AddSource: lvl == slog.LevelDebug,
	})

	return slog.New(handler).With(
		slog.String("service", serviceName),
	)
}

// ParseLevel maps a textual level to slog.Level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithCorrelationID returns a new context with the correlation ID set.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey, id)
}

// CorrelationIDFromContext extracts the correlation ID from the context.
func CorrelationIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(correlationIDKey).(string); ok {
		return id
	}
	return ""
}

// WithShopperKey tags the context with the shopper/cart key driving the request.
func WithShopperKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, shopperKeyKey, key)
}

// ShopperKeyFromContext returns the shopper key stored by WithShopperKey.
func ShopperKeyFromContext(ctx context.Context) string {
	if key, ok := ctx.Value(shopperKeyKey).(string); ok {
		return key
	}
	return ""
}

// WithOrderNo tags the context with the merchant order number.
func WithOrderNo(ctx context.Context, orderNo string) context.Context {
	return context.WithValue(ctx, orderNoKey, orderNo)
}

// OrderNoFromContext returns the order number stored by WithOrderNo.
func OrderNoFromContext(ctx context.Context) string {
	if no, ok := ctx.Value(orderNoKey).(string); ok {
		return no
	}
	return ""
}

// NewContext returns a new context with the given logger stored in it.
func NewContext(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// FromContext returns the request-scoped logger stored in context.
// Returns slog.Default() if no logger is stored.
func FromContext(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey).(*slog.Logger); ok {
		return l
	}
	return slog.Default()
}

// WithContext returns a logger carrying the context-derived fields
// (correlation_id, shopper_key, order_no, trace_id, span_id).
func WithContext(ctx context.Context, l *slog.Logger) *slog.Logger {
	if id := CorrelationIDFromContext(ctx); id != "" {
		l = l.With(slog.String("correlation_id", id))
	}
	if key := ShopperKeyFromContext(ctx); key != "" {
		l = l.With(slog.String("shopper_key", key))
	}
	if no := OrderNoFromContext(ctx); no != "" {
		l = l.With(slog.String("order_no", no))
	}

	if spanCtx := trace.SpanFromContext(ctx).SpanContext(); spanCtx.IsValid() {
		l = l.With(
			slog.String("trace_id", spanCtx.TraceID().String()),
			slog.String("span_id", spanCtx.SpanID().String()),
		)
	}

	return l
}

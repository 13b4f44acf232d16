package logging

import (
	"context"
	"log/slog"
	"os"
	"sync"
)

type loggerContextKey struct{}

var fallbackLogger = sync.OnceValue(func() *slog.Logger {
	return slog.New(NewTracingLogHandler(slog.NewJSONHandler(os.Stdout, nil))).With(
		slog.String("logger", "fallback"),
	)
})

// FromContext returns the logger stored in ctx, or a stdout JSON logger tagged
// as the fallback when there is none
func FromContext(ctx context.Context) *slog.Logger {
	logger, ok := ctx.Value(loggerContextKey{}).(*slog.Logger)
	if !ok || logger == nil {
		return fallbackLogger()
	}
	return logger
}

func AddToContext(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerContextKey{}, logger)
}

// AddMetaToContext stores a child of the current logger with attrs attached
func AddMetaToContext(ctx context.Context, attrs ...slog.Attr) context.Context {
	args := make([]any, 0, len(attrs))
	for _, attr := range attrs {
		args = append(args, attr)
	}

	return AddToContext(ctx, FromContext(ctx).With(args...))
}

package observability

import (
	"context"
	"log/slog"
	"time"
)

type diagnosisIDKey struct{}

// Enabled reports whether prometheus collection has been toggled on.
func Enabled() bool {
	_, cfg := currentLogger()
	return cfg.Enabled
}

// WithDiagnosisID tags ctx so spans started below it carry the diagnosis id.
func WithDiagnosisID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, diagnosisIDKey{}, id)
}

// DiagnosisID returns the id set by WithDiagnosisID, or "".
func DiagnosisID(ctx context.Context) string {
	id, _ := ctx.Value(diagnosisIDKey{}).(string)
	return id
}

// StartSpan logs the start and end of a pipeline, oracle or advisor operation.
// The returned func must be called with the operation's error.
func StartSpan(ctx context.Context, component, operation string, attrs ...slog.Attr) (context.Context, func(error)) {
	logger, _ := currentLogger()
	if logger == nil {
		return ctx, func(error) {}
	}

	base := make([]slog.Attr, 0, len(attrs)+3)
	base = append(base, slog.String("component", component), slog.String("operation", operation))
	if id := DiagnosisID(ctx); id != "" {
		base = append(base, slog.String("diagnosis_id", id))
	}
	base = append(base, attrs...)

	start := time.Now()
	logger.LogAttrs(ctx, slog.LevelDebug, "span start", base...)

	return ctx, func(err error) {
		level := slog.LevelDebug
		end := append(base[:len(base):len(base)], slog.Duration("duration", time.Since(start)))
		if err != nil {
			level = slog.LevelError
			end = append(end, slog.Any("error", err))
		}
		logger.LogAttrs(ctx, level, "span end", end...)
	}
}

// datapoint mirrors a collector update into the debug log, registry or not.
func datapoint(name string, value float64, labels ...string) {
	logger, _ := currentLogger()
	if logger == nil {
		return
	}

	attrs := []slog.Attr{
		slog.String("metric", namespace+"_"+name),
		slog.Float64("value", value),
	}
	for i := 0; i+1 < len(labels); i += 2 {
		attrs = append(attrs, slog.String(labels[i], labels[i+1]))
	}
	logger.LogAttrs(context.Background(), slog.LevelDebug, "metric", attrs...)
}

package observability

import (
	"context"
	"log/slog"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Config captures observability toggles.
type Config struct {
	Enabled     bool
	MetricsPath string
}

// ShutdownFunc allows callers to tear down any observability exporters.
type ShutdownFunc func(context.Context) error

var (
	loggerMu             sync.RWMutex
	instrumentationLog   *slog.Logger
	instrumentationState Config
	registry             *prometheus.Registry
)

func currentLogger() (*slog.Logger, Config) {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	return instrumentationLog, instrumentationState
}

// Registry returns the registry created by Setup, nil before Setup or when disabled.
func Registry() *prometheus.Registry {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	return registry
}

// Setup installs the span logger and, when enabled, a fresh prometheus registry.
func Setup(ctx context.Context, cfg Config, logger *slog.Logger) (ShutdownFunc, error) {
	var reg *prometheus.Registry
	if cfg.Enabled {
		reg = prometheus.NewRegistry()
		if err := registerCollectors(reg); err != nil {
			return nil, err
		}
	}

	loggerMu.Lock()
	instrumentationLog = logger
	instrumentationState = cfg
	registry = reg
	loggerMu.Unlock()

	if logger != nil {
		if cfg.Enabled {
			logger.InfoContext(ctx, "[OBSERVABILITY][SETUP] metrics enabled", slog.String("path", cfg.MetricsPath))
		} else {
			logger.InfoContext(ctx, "[OBSERVABILITY][SETUP] disabled")
		}
	}

	return func(context.Context) error {
		loggerMu.Lock()
		registry = nil
		loggerMu.Unlock()
		return nil
	}, nil
}

func registerCollectors(reg *prometheus.Registry) error {
	for _, c := range []prometheus.Collector{
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		pipelineOutcomes,
		oracleCalls,
		oracleLatency,
		advisorFallbacks,
		httpRequests,
		httpLatency,
	} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

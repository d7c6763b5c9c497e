// Package oracle wraps the pre-trained models the pipeline treats as black boxes.
// Implementations are built once at startup and shared read-only across requests.
package oracle

import (
	"context"
	"log/slog"
	"time"

	"leaf-diagnosis-server/internal/platform/errors"
	"leaf-diagnosis-server/internal/platform/logging"
	"leaf-diagnosis-server/internal/platform/observability"
)

// Predictor runs one model on one input tensor.
type Predictor interface {
	Name() string
	Predict(ctx context.Context, input Tensor) (Tensor, error)
}

// Func adapts a function to Predictor; handy for stubs and local models.
type Func struct {
	ModelName string
	Fn        func(ctx context.Context, input Tensor) (Tensor, error)
}

func (f Func) Name() string { return f.ModelName }

func (f Func) Predict(ctx context.Context, input Tensor) (Tensor, error) {
	return f.Fn(ctx, input)
}

// Guarded bounds every call with a timeout and records it in logs and metrics.
type Guarded struct {
	inner   Predictor
	timeout time.Duration
	logger  *logging.Logger
}

func WithTimeout(p Predictor, timeout time.Duration, logger *logging.Logger) *Guarded {
	if logger == nil {
		logger = logging.NewDiscard()
	}
	return &Guarded{inner: p, timeout: timeout, logger: logger}
}

func (g *Guarded) Name() string { return g.inner.Name() }

func (g *Guarded) Predict(ctx context.Context, input Tensor) (Tensor, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	ctx, end := observability.StartSpan(ctx, "oracle", "predict", slog.String("model", g.inner.Name()))
	start := time.Now()
	out, err := g.inner.Predict(ctx, input)
	elapsed := time.Since(start)
	end(err)
	observability.ObserveOracle(g.inner.Name(), err, elapsed)

	if err != nil {
		g.logger.WarnTag("ORACLE", "model %s failed after %s: %v", g.inner.Name(), elapsed, err)
		return Tensor{}, errors.Reclassify(errors.KindInference, "oracle.predict", "Model inference failed", err)
	}
	g.logger.DebugTag("ORACLE", "model %s answered shape=%v in %s", g.inner.Name(), out.Shape, elapsed)
	return out, nil
}

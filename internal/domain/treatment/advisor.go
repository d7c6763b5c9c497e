// Package treatment turns a (disease, severity) pair into grower-facing advice.
package treatment

import (
	"context"
	stderrors "errors"
	"time"

	"leaf-diagnosis-server/internal/domain/treatment/cache"
	"leaf-diagnosis-server/internal/platform/errors"
	"leaf-diagnosis-server/internal/platform/logging"
	"leaf-diagnosis-server/internal/platform/observability"
)

// FallbackAdvice is returned whenever text generation fails. It never varies.
const FallbackAdvice = "Treatment recommendations are unavailable right now. " +
	"Please consult your local agricultural extension service or a qualified plant " +
	"health specialist for advice on managing this disease."

const (
	defaultTimeout = 30 * time.Second
	defaultSpecies = "tea"
)

// Advisor never fails: generation problems are logged and answered with FallbackAdvice.
type Advisor struct {
	species   string
	generator TextGenerator
	cache     cache.Store
	timeout   time.Duration
	logger    *logging.Logger
}

type Options struct {
	// Species names the crop in the prompt; it should match the subject gate's target.
	Species   string
	// Generator may be nil when no API key is configured; every call then falls back.
	Generator TextGenerator
	Cache     cache.Store
	Timeout   time.Duration
	Logger    *logging.Logger
}

func NewAdvisor(opts Options) *Advisor {
	if opts.Species == "" {
		opts.Species = defaultSpecies
	}
	if opts.Cache == nil {
		opts.Cache = cache.NewNone()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewDiscard()
	}
	return &Advisor{
		species:   opts.Species,
		generator: opts.Generator,
		cache:     opts.Cache,
		timeout:   opts.Timeout,
		logger:    opts.Logger,
	}
}

func (a *Advisor) Recommend(ctx context.Context, disease, severity string) string {
	key := cache.Key(disease, severity)
	if advice, ok, err := a.cache.Get(ctx, key); err != nil {
		a.logger.WarnTag("ADVISOR", "cache lookup failed for %s: %v", key, err)
	} else if ok {
		a.logger.DebugTag("ADVISOR", "cache hit for %s", key)
		return advice
	}

	if a.generator == nil {
		return a.fallback("unconfigured", errors.New(errors.KindAdvisoryUnavailable, "treatment.recommend", "no text generator configured"))
	}

	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	ctxSpan, end := observability.StartSpan(callCtx, "advisor", "generate")
	advice, err := a.generator.Generate(ctxSpan, BuildPrompt(a.species, disease, severity))
	end(err)
	if err != nil {
		reason := "error"
		if stderrors.Is(err, context.DeadlineExceeded) || stderrors.Is(callCtx.Err(), context.DeadlineExceeded) {
			reason = "timeout"
		}
		return a.fallback(reason, err)
	}
	if advice == "" {
		return a.fallback("empty", errors.New(errors.KindAdvisoryUnavailable, "treatment.recommend", "empty advice"))
	}

	if err := a.cache.Set(ctx, key, advice); err != nil {
		a.logger.WarnTag("ADVISOR", "cache store failed for %s: %v", key, err)
	}
	return advice
}

func (a *Advisor) fallback(reason string, err error) string {
	wrapped := errors.Reclassify(errors.KindAdvisoryUnavailable, "treatment.recommend", "text generation unavailable", err)
	a.logger.WarnTag("ADVISOR", "using fallback advice (%s): %v", reason, wrapped)
	observability.ObserveAdvisorFallback(reason)
	return FallbackAdvice
}

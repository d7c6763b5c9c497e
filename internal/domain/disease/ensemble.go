package disease

import (
	"context"

	"leaf-diagnosis-server/internal/platform/logging"
)

// Detector is one disease-identification strategy.
type Detector interface {
	Detect(ctx context.Context, sample Sample) (Candidate, error)
}

// Reconcile keeps the model-based candidate only when it is strictly more confident.
func Reconcile(model, region Candidate) Candidate {
	if model.Confidence > region.Confidence {
		return model
	}
	return region
}

// Ensemble runs both strategies in turn and reconciles them.
type Ensemble struct {
	model  Detector
	region Detector
	logger *logging.Logger
}

func NewEnsemble(model, region Detector, logger *logging.Logger) *Ensemble {
	if logger == nil {
		logger = logging.NewDiscard()
	}
	return &Ensemble{model: model, region: region, logger: logger}
}

func (e *Ensemble) Detect(ctx context.Context, sample Sample) (Candidate, error) {
	byModel, err := e.model.Detect(ctx, sample)
	if err != nil {
		return Candidate{}, err
	}
	byRegion, err := e.region.Detect(ctx, sample)
	if err != nil {
		return Candidate{}, err
	}

	chosen := Reconcile(byModel, byRegion)
	e.logger.InfoTag("PIPELINE", "ensemble chose %s: %s %.2f (model %s %.2f, region %s %.2f)",
		chosen.Method, chosen.Label, chosen.Confidence,
		byModel.Label, byModel.Confidence, byRegion.Label, byRegion.Confidence)
	return chosen, nil
}

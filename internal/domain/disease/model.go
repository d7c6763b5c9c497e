package disease

import (
	"context"
	"fmt"

	"leaf-diagnosis-server/internal/domain/oracle"
	"leaf-diagnosis-server/internal/platform/errors"
)

// ModelStrategy takes the classifier's argmax over the five labels.
type ModelStrategy struct {
	classifier oracle.Predictor
}

func NewModelStrategy(classifier oracle.Predictor) *ModelStrategy {
	return &ModelStrategy{classifier: classifier}
}

func (s *ModelStrategy) Detect(ctx context.Context, sample Sample) (Candidate, error) {
	out, err := s.classifier.Predict(ctx, sample.Input)
	if err != nil {
		return Candidate{}, errors.Reclassify(errors.KindInference, "disease.model", "Disease classification failed", err)
	}

	scores, err := out.Scores()
	if err != nil || len(scores) != len(Labels) {
		return Candidate{}, errors.New(errors.KindInference, "disease.model",
			fmt.Sprintf("Disease classifier returned shape %v, expected %d scores", out.Shape, len(Labels)))
	}

	idx, score := oracle.ArgMax(scores)
	return Candidate{
		Label:      Labels[idx],
		Confidence: round2(score * 100),
		Method:     MethodModel,
	}, nil
}

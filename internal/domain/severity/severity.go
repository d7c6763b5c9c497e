package severity

import (
	"context"
	"fmt"

	"leaf-diagnosis-server/internal/domain/oracle"
	"leaf-diagnosis-server/internal/platform/errors"
)

type Level string

const (
	Mild     Level = "Mild"
	Moderate Level = "Moderate"
	Severe   Level = "Severe"
)

// Levels is ordered and indexed by model class index.
var Levels = []Level{Mild, Moderate, Severe}

// Classifier buckets disease severity from the dedicated severity model alone.
type Classifier struct {
	model oracle.Predictor
}

func NewClassifier(model oracle.Predictor) *Classifier {
	return &Classifier{model: model}
}

func (c *Classifier) Classify(ctx context.Context, input oracle.Tensor) (Level, error) {
	out, err := c.model.Predict(ctx, input)
	if err != nil {
		return "", errors.Reclassify(errors.KindInference, "severity.classify", "Severity classification failed", err)
	}

	scores, err := out.Scores()
	if err != nil || len(scores) != len(Levels) {
		return "", errors.New(errors.KindInference, "severity.classify",
			fmt.Sprintf("Severity model returned shape %v, expected %d scores", out.Shape, len(Levels)))
	}

	idx, _ := oracle.ArgMax(scores)
	return Levels[idx], nil
}

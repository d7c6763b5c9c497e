// Package disease identifies which disease an unhealthy leaf shows by reconciling a
// classifier and a segmentation-based colour analysis.
package disease

import (
	"math"

	"leaf-diagnosis-server/internal/domain/image"
	"leaf-diagnosis-server/internal/domain/oracle"
)

type Label string

const (
	AlgalLeafSpot Label = "Algal Leaf Spot"
	GreyBlight    Label = "Grey Blight Disease"
	BrownBlight   Label = "Brown Blight"
	RedLeafSpot   Label = "Red Leaf Spot"
	WhiteSpot     Label = "White Spot"
)

// Labels is indexed by model class index.
var Labels = []Label{AlgalLeafSpot, GreyBlight, BrownBlight, RedLeafSpot, WhiteSpot}

// Method names the strategy a candidate came from.
type Method string

const (
	MethodModel  Method = "model-based"
	MethodRegion Method = "region-analysis"
)

// Candidate is one strategy's verdict. Confidence is a percentage.
type Candidate struct {
	Label      Label   `json:"disease"`
	Confidence float64 `json:"accuracy"`
	Method     Method  `json:"method"`
}

// Sample carries what both strategies look at: the decoded upload and the
// normalised model input built from it.
type Sample struct {
	Original *image.Image
	Input    oracle.Tensor
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

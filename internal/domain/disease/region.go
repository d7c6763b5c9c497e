package disease

import (
	"context"
	"fmt"

	"leaf-diagnosis-server/internal/domain/colorprofile"
	"leaf-diagnosis-server/internal/domain/image"
	"leaf-diagnosis-server/internal/domain/oracle"
	"leaf-diagnosis-server/internal/platform/errors"
)

const (
	foregroundThreshold = 0.5

	// EmptyRegionConfidence goes with BrownBlight when the mask selects nothing.
	EmptyRegionConfidence = 75.0
)

// colourRule is one row of the region colour table: base confidence plus up to spread.
type colourRule struct {
	label  Label
	base   float64
	spread float64
}

var (
	ruleRedHighSat    = colourRule{RedLeafSpot, 85, 10}
	ruleRedLowSat     = colourRule{AlgalLeafSpot, 80, 15}
	ruleOrangeDark    = colourRule{BrownBlight, 88, 10}
	ruleOrangeBright  = colourRule{AlgalLeafSpot, 82, 12}
	ruleDarkNeutral   = colourRule{GreyBlight, 86, 10}
	ruleBrightNeutral = colourRule{WhiteSpot, 84, 12}
)

// RegionStrategy reads the segmentation model either as per-label maps or as a
// single foreground map whose selected pixels are classified by colour.
type RegionStrategy struct {
	segmenter oracle.Predictor
	jitter    JitterSource
}

func NewRegionStrategy(segmenter oracle.Predictor, jitter JitterSource) *RegionStrategy {
	if jitter == nil {
		jitter = ConstantJitter(0)
	}
	return &RegionStrategy{segmenter: segmenter, jitter: jitter}
}

func (s *RegionStrategy) Detect(ctx context.Context, sample Sample) (Candidate, error) {
	out, err := s.segmenter.Predict(ctx, sample.Input)
	if err != nil {
		return Candidate{}, errors.Reclassify(errors.KindInference, "disease.region", "Disease segmentation failed", err)
	}

	t := out.DropBatch()
	if err := t.Validate(); err != nil {
		return Candidate{}, errors.Reclassify(errors.KindInference, "disease.region", "Segmentation output is malformed", err)
	}

	switch {
	case t.Rank() == 3 && t.Shape[2] == len(Labels):
		return s.perLabel(t)
	case t.Rank() == 3:
		return s.foreground(sample.Original, channel0(t), t.Shape[0], t.Shape[1]), nil
	case t.Rank() == 2:
		return s.foreground(sample.Original, t.Data, t.Shape[0], t.Shape[1]), nil
	default:
		return Candidate{}, errors.New(errors.KindInference, "disease.region",
			fmt.Sprintf("Segmentation output has unsupported shape %v", out.Shape))
	}
}

func (s *RegionStrategy) perLabel(t oracle.Tensor) (Candidate, error) {
	means, err := oracle.ChannelMeans(t)
	if err != nil {
		return Candidate{}, errors.Reclassify(errors.KindInference, "disease.region", "Segmentation output is malformed", err)
	}
	idx, mean := oracle.ArgMax(means)
	return Candidate{
		Label:      Labels[idx],
		Confidence: round2(mean * 100),
		Method:     MethodRegion,
	}, nil
}

func channel0(t oracle.Tensor) []float32 {
	channels := t.Shape[2]
	out := make([]float32, t.Shape[0]*t.Shape[1])
	for i := range out {
		out[i] = t.Data[i*channels]
	}
	return out
}

func (s *RegionStrategy) foreground(img *image.Image, probs []float32, mapH, mapW int) Candidate {
	mask := ScaleMask(probs, mapW, mapH, img.Width, img.Height)
	h, sat, v, ok := colorprofile.MeanHSV(img, mask)
	if !ok {
		return Candidate{Label: BrownBlight, Confidence: EmptyRegionConfidence, Method: MethodRegion}
	}

	rule := classifyColour(h, sat, v)
	return Candidate{
		Label:      rule.label,
		Confidence: round2(rule.base + rule.spread*s.jitter.Float64()),
		Method:     MethodRegion,
	}
}

func classifyColour(h, s, v float64) colourRule {
	switch {
	case h < 15 || h > 165:
		if s > 100 {
			return ruleRedHighSat
		}
		return ruleRedLowSat
	case h < 30:
		if v < 100 {
			return ruleOrangeDark
		}
		return ruleOrangeBright
	case v < 80:
		return ruleDarkNeutral
	default:
		return ruleBrightNeutral
	}
}

// ScaleMask thresholds a mapW x mapH probability map and maps it onto a w x h image
// with nearest-neighbour sampling. The result is row-major over the image.
func ScaleMask(probs []float32, mapW, mapH, w, h int) []bool {
	mask := make([]bool, w*h)
	if mapW <= 0 || mapH <= 0 || len(probs) < mapW*mapH {
		return mask
	}
	for y := 0; y < h; y++ {
		my := y * mapH / h
		for x := 0; x < w; x++ {
			mx := x * mapW / w
			mask[y*w+x] = probs[my*mapW+mx] > foregroundThreshold
		}
	}
	return mask
}

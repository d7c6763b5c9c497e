// Package colorprofile derives the hue/saturation/value statistics every gate and the
// region-analysis strategy read from. All thresholds live here.
package colorprofile

import (
	"leaf-diagnosis-server/internal/domain/image"
	"leaf-diagnosis-server/internal/platform/errors"
)

// Profile summarises one image. It is computed fresh per call and never mutated.
type Profile struct {
	MeanHue        float64 `json:"meanHue"`
	MeanSaturation float64 `json:"meanSaturation"`
	MeanValue      float64 `json:"meanValue"`

	BrownRatio  float64 `json:"brownRatio"`
	YellowRatio float64 `json:"yellowRatio"`
	DarkRatio   float64 `json:"darkRatio"`
	// RedRatio is reported for observability only; it takes no part in any gate.
	RedRatio float64 `json:"redRatio"`

	// DiseaseRatio sums brown, yellow and dark counts; a pixel in two bands counts twice.
	DiseaseRatio float64 `json:"diseaseRatio"`
	GreenRatio   float64 `json:"greenRatio"`
	Pixels       int     `json:"pixels"`
}

func isBrown(p HSV) bool  { return p.H >= 10 && p.H <= 20 && p.S > 50 }
func isYellow(p HSV) bool { return p.H >= 20 && p.H <= 30 && p.S > 50 }
func isDark(p HSV) bool   { return p.V < 50 }
func isRed(p HSV) bool    { return p.H <= 10 && p.S >= 50 && p.V >= 50 }
func isGreen(p HSV) bool  { return p.H > 30 }

// Analyzer is the ColorProfileAnalyzer; it holds no state.
type Analyzer struct{}

func NewAnalyzer() Analyzer { return Analyzer{} }

// Analyze computes the profile of img. A zero-dimension image is InvalidImage.
func (Analyzer) Analyze(img *image.Image) (Profile, error) {
	if img.Empty() {
		return Profile{}, errors.New(errors.KindInvalidImage, "colorprofile.analyze", "Image has zero dimensions")
	}

	var sumH, sumS, sumV float64
	var brown, yellow, dark, red, green, total int
	for i := 0; i+2 < len(img.Pix) && total < img.PixelCount(); i += 3 {
		p := RGBToHSV(img.Pix[i], img.Pix[i+1], img.Pix[i+2])
		sumH += float64(p.H)
		sumS += float64(p.S)
		sumV += float64(p.V)
		if isBrown(p) {
			brown++
		}
		if isYellow(p) {
			yellow++
		}
		if isDark(p) {
			dark++
		}
		if isRed(p) {
			red++
		}
		if isGreen(p) {
			green++
		}
		total++
	}

	n := float64(total)
	return Profile{
		MeanHue:        sumH / n,
		MeanSaturation: sumS / n,
		MeanValue:      sumV / n,
		BrownRatio:     float64(brown) / n,
		YellowRatio:    float64(yellow) / n,
		DarkRatio:      float64(dark) / n,
		RedRatio:       float64(red) / n,
		DiseaseRatio:   float64(brown+yellow+dark) / n,
		GreenRatio:     float64(green) / n,
		Pixels:         total,
	}, nil
}

// MeanHSV averages the pixels of img where mask is set. mask is row-major over img.
// ok is false when no pixel is selected.
func MeanHSV(img *image.Image, mask []bool) (h, s, v float64, ok bool) {
	var count int
	for idx, on := range mask {
		if !on || idx >= img.PixelCount() {
			continue
		}
		p := RGBToHSV(img.Pix[idx*3], img.Pix[idx*3+1], img.Pix[idx*3+2])
		h += float64(p.H)
		s += float64(p.S)
		v += float64(p.V)
		count++
	}
	if count == 0 {
		return 0, 0, 0, false
	}
	n := float64(count)
	return h / n, s / n, v / n, true
}

package colorprofile

import (
	"math"
	"testing"

	"leaf-diagnosis-server/internal/domain/image"
	"leaf-diagnosis-server/internal/platform/errors"
)

func solid(w, h int, r, g, b uint8) *image.Image {
	pix := make([]uint8, w*h*3)
	for i := 0; i < len(pix); i += 3 {
		pix[i], pix[i+1], pix[i+2] = r, g, b
	}
	return &image.Image{Width: w, Height: h, Pix: pix}
}

func TestRGBToHSV(t *testing.T) {
	tests := []struct {
		name    string
		r, g, b uint8
		want    HSV
	}{
		{"black", 0, 0, 0, HSV{0, 0, 0}},
		{"white", 255, 255, 255, HSV{0, 0, 255}},
		{"pure red", 255, 0, 0, HSV{0, 255, 255}},
		{"pure green", 0, 255, 0, HSV{60, 255, 255}},
		{"pure blue", 0, 0, 255, HSV{120, 255, 255}},
		{"leaf green", 60, 140, 50, HSV{57, 164, 140}},
		{"brown", 150, 90, 40, HSV{14, 187, 150}},
		{"magenta wraps below 180", 255, 0, 1, HSV{0, 255, 255}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RGBToHSV(tt.r, tt.g, tt.b); got != tt.want {
				t.Errorf("RGBToHSV(%d,%d,%d) = %+v, want %+v", tt.r, tt.g, tt.b, got, tt.want)
			}
		})
	}
}

func TestAnalyze_ZeroDimension(t *testing.T) {
	_, err := NewAnalyzer().Analyze(&image.Image{})
	if !errors.IsKind(err, errors.KindInvalidImage) {
		t.Fatalf("expected invalid image, got %v", err)
	}
}

func TestAnalyze_HealthyGreenLeaf(t *testing.T) {
	p, err := NewAnalyzer().Analyze(solid(4, 4, 60, 140, 50))
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if p.MeanHue != 57 || p.MeanSaturation != 164 || p.MeanValue != 140 {
		t.Fatalf("unexpected means %+v", p)
	}
	if p.GreenRatio != 1 || p.DiseaseRatio != 0 {
		t.Fatalf("unexpected ratios %+v", p)
	}
	if p.Pixels != 16 {
		t.Fatalf("expected 16 pixels, got %d", p.Pixels)
	}
}

func TestAnalyze_OverlappingBandsCountTwice(t *testing.T) {
	// hue 20 sits in both brown [10,20] and yellow [20,30]; V=40 is also dark.
	// RGB (40, 27, 0) -> H=round(40.5/2)=20, S=255, V=40.
	p, err := NewAnalyzer().Analyze(solid(2, 2, 40, 27, 0))
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if p.BrownRatio != 1 || p.YellowRatio != 1 || p.DarkRatio != 1 {
		t.Fatalf("expected all bands set, got %+v", p)
	}
	if p.DiseaseRatio != 3 {
		t.Fatalf("expected disease ratio 3, got %v", p.DiseaseRatio)
	}
}

func TestAnalyze_MixedImageRatios(t *testing.T) {
	img := solid(10, 1, 60, 140, 50)
	// one dark pixel, one brown pixel
	copy(img.Pix[0:3], []uint8{10, 10, 10})
	copy(img.Pix[3:6], []uint8{150, 90, 40})

	p, err := NewAnalyzer().Analyze(img)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if math.Abs(p.DiseaseRatio-0.2) > 1e-9 {
		t.Fatalf("expected disease ratio 0.2, got %v", p.DiseaseRatio)
	}
	if math.Abs(p.GreenRatio-0.8) > 1e-9 {
		t.Fatalf("expected green ratio 0.8, got %v", p.GreenRatio)
	}
	if math.Abs(p.BrownRatio-0.1) > 1e-9 || math.Abs(p.DarkRatio-0.1) > 1e-9 {
		t.Fatalf("unexpected band ratios %+v", p)
	}
}

func TestMeanHSV(t *testing.T) {
	img := solid(2, 1, 0, 255, 0)
	copy(img.Pix[3:6], []uint8{0, 0, 255})

	h, s, v, ok := MeanHSV(img, []bool{true, true})
	if !ok || h != 90 || s != 255 || v != 255 {
		t.Fatalf("unexpected mean %v %v %v %v", h, s, v, ok)
	}

	if _, _, _, ok := MeanHSV(img, []bool{false, false}); ok {
		t.Fatal("expected empty selection")
	}
}

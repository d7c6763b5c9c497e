package disease

import (
	"context"
	stderrors "errors"
	"testing"

	"leaf-diagnosis-server/internal/domain/image"
	"leaf-diagnosis-server/internal/domain/oracle"
	"leaf-diagnosis-server/internal/platform/errors"
)

func solid(w, h int, r, g, b uint8) *image.Image {
	pix := make([]uint8, w*h*3)
	for i := 0; i < len(pix); i += 3 {
		pix[i], pix[i+1], pix[i+2] = r, g, b
	}
	return &image.Image{Width: w, Height: h, Pix: pix}
}

func fixed(name string, shape []int, data []float32) oracle.Predictor {
	return oracle.Func{ModelName: name, Fn: func(context.Context, oracle.Tensor) (oracle.Tensor, error) {
		return oracle.Tensor{Shape: shape, Data: data}, nil
	}}
}

func failing(name string) oracle.Predictor {
	return oracle.Func{ModelName: name, Fn: func(context.Context, oracle.Tensor) (oracle.Tensor, error) {
		return oracle.Tensor{}, stderrors.New("connection refused")
	}}
}

func filled(n int, v float32) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestReconcile(t *testing.T) {
	tests := []struct {
		name   string
		model  float64
		region float64
		want   Method
	}{
		{"tie goes to region analysis", 90, 90, MethodRegion},
		{"model strictly greater", 91, 90, MethodModel},
		{"region greater", 80, 92, MethodRegion},
		{"scenario model 92 vs region 80", 92, 80, MethodModel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Reconcile(
				Candidate{Label: RedLeafSpot, Confidence: tt.model, Method: MethodModel},
				Candidate{Label: WhiteSpot, Confidence: tt.region, Method: MethodRegion},
			)
			if got.Method != tt.want {
				t.Fatalf("Reconcile chose %s, want %s", got.Method, tt.want)
			}
		})
	}
}

func TestModelStrategy(t *testing.T) {
	s := NewModelStrategy(fixed("clf", []int{1, 5}, []float32{0.01, 0.02, 0.9234, 0.03, 0.0166}))
	got, err := s.Detect(context.Background(), Sample{})
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if got.Label != BrownBlight || got.Confidence != 92.34 || got.Method != MethodModel {
		t.Fatalf("unexpected candidate %+v", got)
	}
}

func TestModelStrategy_Failures(t *testing.T) {
	tests := []struct {
		name string
		p    oracle.Predictor
	}{
		{"oracle error", failing("clf")},
		{"wrong score count", fixed("clf", []int{1, 3}, []float32{0.2, 0.3, 0.5})},
		{"not a vector", fixed("clf", []int{1, 2, 5}, make([]float32, 10))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewModelStrategy(tt.p).Detect(context.Background(), Sample{})
			if !errors.IsKind(err, errors.KindInference) {
				t.Fatalf("expected inference failure, got %v", err)
			}
		})
	}
}

func TestRegionStrategy_PerLabelChannels(t *testing.T) {
	data := []float32{
		0.1, 0.2, 0.6, 0.05, 0.05,
		0.1, 0.2, 0.8, 0.0, 0.0,
	}
	s := NewRegionStrategy(fixed("seg", []int{1, 1, 2, 5}, data), ConstantJitter(0.9))
	got, err := s.Detect(context.Background(), Sample{Original: solid(4, 4, 0, 0, 0)})
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if got.Label != BrownBlight || got.Confidence != 70 {
		t.Fatalf("unexpected candidate %+v", got)
	}
}

func TestRegionStrategy_EmptyMaskSentinel(t *testing.T) {
	s := NewRegionStrategy(fixed("seg", []int{1, 2, 2, 1}, filled(4, 0.1)), ConstantJitter(0.9))
	got, err := s.Detect(context.Background(), Sample{Original: solid(4, 4, 200, 20, 20)})
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if got.Label != BrownBlight || got.Confidence != 75.0 || got.Method != MethodRegion {
		t.Fatalf("unexpected sentinel %+v", got)
	}
}

func TestRegionStrategy_ColourRules(t *testing.T) {
	tests := []struct {
		name    string
		r, g, b uint8
		label   Label
		conf    float64
	}{
		{"red hue high saturation", 200, 20, 20, RedLeafSpot, 90},
		{"red hue low saturation", 200, 150, 150, AlgalLeafSpot, 87.5},
		{"orange hue dark", 90, 60, 20, BrownBlight, 93},
		{"orange hue bright", 220, 150, 50, AlgalLeafSpot, 88},
		{"dark other hue", 20, 60, 20, GreyBlight, 91},
		{"bright other hue", 60, 140, 50, WhiteSpot, 90},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewRegionStrategy(fixed("seg", []int{1, 2, 2}, filled(4, 0.9)), ConstantJitter(0.5))
			got, err := s.Detect(context.Background(), Sample{Original: solid(4, 4, tt.r, tt.g, tt.b)})
			if err != nil {
				t.Fatalf("detect: %v", err)
			}
			if got.Label != tt.label || got.Confidence != tt.conf {
				t.Fatalf("got %s %.2f, want %s %.2f", got.Label, got.Confidence, tt.label, tt.conf)
			}
		})
	}
}

func TestRegionStrategy_JitterBounds(t *testing.T) {
	for _, j := range []float64{0, 0.999999} {
		s := NewRegionStrategy(fixed("seg", []int{2, 2}, filled(4, 0.9)), ConstantJitter(j))
		got, err := s.Detect(context.Background(), Sample{Original: solid(2, 2, 200, 20, 20)})
		if err != nil {
			t.Fatalf("detect: %v", err)
		}
		if got.Confidence < 85 || got.Confidence > 95 {
			t.Fatalf("confidence %v outside [85,95]", got.Confidence)
		}
	}
}

func TestRegionStrategy_Failures(t *testing.T) {
	tests := []struct {
		name string
		p    oracle.Predictor
	}{
		{"oracle error", failing("seg")},
		{"rank one", fixed("seg", []int{4}, filled(4, 0.9))},
		{"rank four", fixed("seg", []int{2, 2, 2, 2}, filled(16, 0.9))},
		{"shape does not match data", fixed("seg", []int{1, 4, 4}, filled(3, 0.9))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRegionStrategy(tt.p, nil).Detect(context.Background(), Sample{Original: solid(2, 2, 0, 0, 0)})
			if !errors.IsKind(err, errors.KindInference) {
				t.Fatalf("expected inference failure, got %v", err)
			}
		})
	}
}

func TestScaleMask(t *testing.T) {
	mask := ScaleMask([]float32{0.9, 0.1, 0.1, 0.5}, 2, 2, 4, 4)
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			want := x < 2 && y < 2
			if mask[y*4+x] != want {
				t.Fatalf("mask(%d,%d) = %v, want %v", x, y, mask[y*4+x], want)
			}
		}
	}
}

func TestEnsemble_Detect(t *testing.T) {
	model := NewModelStrategy(fixed("clf", []int{1, 5}, []float32{0.92, 0.02, 0.02, 0.02, 0.02}))
	region := NewRegionStrategy(fixed("seg", []int{2, 2}, filled(4, 0.1)), nil)

	got, err := NewEnsemble(model, region, nil).Detect(context.Background(), Sample{Original: solid(2, 2, 0, 0, 0)})
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if got.Method != MethodModel || got.Label != AlgalLeafSpot || got.Confidence != 92 {
		t.Fatalf("unexpected choice %+v", got)
	}
}

func TestEnsemble_PropagatesFailure(t *testing.T) {
	model := NewModelStrategy(fixed("clf", []int{1, 5}, []float32{0.92, 0.02, 0.02, 0.02, 0.02}))
	region := NewRegionStrategy(failing("seg"), nil)

	_, err := NewEnsemble(model, region, nil).Detect(context.Background(), Sample{Original: solid(2, 2, 0, 0, 0)})
	if !errors.IsKind(err, errors.KindInference) {
		t.Fatalf("expected inference failure, got %v", err)
	}
}

func TestSeededJitterRange(t *testing.T) {
	j := NewSeededJitter(42)
	for i := 0; i < 100; i++ {
		if v := j.Float64(); v < 0 || v >= 1 {
			t.Fatalf("jitter %v outside [0,1)", v)
		}
	}
}

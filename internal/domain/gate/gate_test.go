package gate

import (
	"testing"

	"leaf-diagnosis-server/internal/domain/colorprofile"
	"leaf-diagnosis-server/internal/domain/image"
)

func TestSubject_Classify(t *testing.T) {
	tests := []struct {
		name    string
		profile colorprofile.Profile
		want    LeafType
	}{
		{"typical leaf", colorprofile.Profile{MeanHue: 50, MeanSaturation: 60, GreenRatio: 0.5}, TargetSpecies},
		{"hue lower bound inclusive", colorprofile.Profile{MeanHue: 30, MeanSaturation: 60, GreenRatio: 0.5}, TargetSpecies},
		{"hue upper bound inclusive", colorprofile.Profile{MeanHue: 80, MeanSaturation: 60, GreenRatio: 0.5}, TargetSpecies},
		{"hue too high", colorprofile.Profile{MeanHue: 150, MeanSaturation: 60, GreenRatio: 0.5}, NotTargetSpecies},
		{"hue too low", colorprofile.Profile{MeanHue: 29.9, MeanSaturation: 60, GreenRatio: 0.5}, NotTargetSpecies},
		{"saturation boundary exclusive", colorprofile.Profile{MeanHue: 50, MeanSaturation: 30, GreenRatio: 0.5}, NotTargetSpecies},
		{"green ratio boundary exclusive", colorprofile.Profile{MeanHue: 50, MeanSaturation: 60, GreenRatio: 0.3}, NotTargetSpecies},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := (Subject{}).Classify(tt.profile); got != tt.want {
				t.Errorf("Classify() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestHealth_Classify(t *testing.T) {
	tests := []struct {
		ratio float64
		want  bool
	}{
		{0, true},
		{0.02, true},
		{0.0999, true},
		{0.1, true},
		{0.1001, false},
		{0.35, false},
		{2.5, false},
	}

	for _, tt := range tests {
		if got := (Health{}).Classify(colorprofile.Profile{DiseaseRatio: tt.ratio}); got != tt.want {
			t.Errorf("Classify(diseaseRatio=%v) = %v, want %v", tt.ratio, got, tt.want)
		}
	}
}

func TestHealth_BoundaryFromAnalyzedImage(t *testing.T) {
	// nine leaf-green pixels and one black (dark) pixel: disease ratio is exactly 0.1
	img := &image.Image{Width: 10, Height: 1, Pix: make([]uint8, 0, 30)}
	for i := 0; i < 9; i++ {
		img.Pix = append(img.Pix, 60, 160, 40)
	}
	img.Pix = append(img.Pix, 0, 0, 0)

	profile, err := colorprofile.NewAnalyzer().Analyze(img)
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if profile.DiseaseRatio != 0.1 {
		t.Fatalf("DiseaseRatio = %v, want 0.1", profile.DiseaseRatio)
	}
	if got := (Subject{}).Classify(profile); got != TargetSpecies {
		t.Fatalf("Subject = %s, want %s", got, TargetSpecies)
	}
	if !(Health{}).Classify(profile) {
		t.Fatal("a disease ratio of exactly 0.1 must be healthy")
	}
}

// Package gate holds the two deterministic early-exit decisions of the pipeline.
package gate

import "leaf-diagnosis-server/internal/domain/colorprofile"

// LeafType is the SubjectGate verdict, serialised as-is in responses.
type LeafType string

const (
	TargetSpecies    LeafType = "target_species"
	NotTargetSpecies LeafType = "not_target_species"
)

const (
	minSubjectHue        = 30.0
	maxSubjectHue        = 80.0
	minSubjectSaturation = 30.0
	minGreenRatio        = 0.3

	maxHealthyDiseaseRatio = 0.1
)

// Subject decides whether a profile plausibly shows the target plant.
type Subject struct{}

func (Subject) Classify(p colorprofile.Profile) LeafType {
	if p.MeanHue >= minSubjectHue && p.MeanHue <= maxSubjectHue &&
		p.MeanSaturation > minSubjectSaturation &&
		p.GreenRatio > minGreenRatio {
		return TargetSpecies
	}
	return NotTargetSpecies
}

// Health reports true (healthy) unless the disease ratio exceeds 0.1; exactly 0.1 is healthy.
type Health struct{}

func (Health) Classify(p colorprofile.Profile) bool {
	return p.DiseaseRatio <= maxHealthyDiseaseRatio
}

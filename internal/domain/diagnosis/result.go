package diagnosis

import (
	"leaf-diagnosis-server/internal/domain/disease"
	"leaf-diagnosis-server/internal/domain/gate"
	"leaf-diagnosis-server/internal/domain/severity"
)

// Outcome names the terminal state a run ended in.
type Outcome string

const (
	OutcomeNotTargetSpecies Outcome = "not_target_species"
	OutcomeHealthy          Outcome = "healthy"
	OutcomeFullDiagnosis    Outcome = "full_diagnosis"
	OutcomeFailed           Outcome = "failed"
)

// Stage is a pipeline state; each one gates entry to the next.
type Stage string

const (
	StageSubjectCheck         Stage = "subject_check"
	StageHealthCheck          Stage = "health_check"
	StageDiseaseDetection     Stage = "disease_detection"
	StageSeverityAndTreatment Stage = "severity_and_treatment"
)

// Result is the response body. Which fields are set depends on Outcome.
type Result struct {
	LeafType  gate.LeafType  `json:"leafType"`
	Message   string         `json:"message,omitempty"`
	IsHealthy *bool          `json:"isHealthy,omitempty"`
	Method    disease.Method `json:"method,omitempty"`
	Disease   disease.Label  `json:"disease,omitempty"`
	Accuracy  *float64       `json:"accuracy,omitempty"`
	Severity  severity.Level `json:"severity,omitempty"`
	Treatment string         `json:"treatment,omitempty"`

	ID      string  `json:"-"`
	Outcome Outcome `json:"-"`
}

func notTarget(message string) *Result {
	return &Result{
		LeafType: gate.NotTargetSpecies,
		Message:  message,
		Outcome:  OutcomeNotTargetSpecies,
	}
}

func healthy() *Result {
	ok := true
	return &Result{
		LeafType:  gate.TargetSpecies,
		IsHealthy: &ok,
		Outcome:   OutcomeHealthy,
	}
}

func fullDiagnosis(c disease.Candidate, level severity.Level, treatment string) *Result {
	unhealthy := false
	accuracy := c.Confidence
	return &Result{
		LeafType:  gate.TargetSpecies,
		IsHealthy: &unhealthy,
		Method:    c.Method,
		Disease:   c.Label,
		Accuracy:  &accuracy,
		Severity:  level,
		Treatment: treatment,
		Outcome:   OutcomeFullDiagnosis,
	}
}

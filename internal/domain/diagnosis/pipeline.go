// Package diagnosis runs the staged leaf diagnosis: subject gate, health gate,
// disease ensemble, then severity and treatment.
package diagnosis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"leaf-diagnosis-server/internal/domain/colorprofile"
	"leaf-diagnosis-server/internal/domain/disease"
	"leaf-diagnosis-server/internal/domain/eventbus"
	"leaf-diagnosis-server/internal/domain/gate"
	"leaf-diagnosis-server/internal/domain/image"
	"leaf-diagnosis-server/internal/domain/oracle"
	"leaf-diagnosis-server/internal/domain/severity"
	"leaf-diagnosis-server/internal/platform/errors"
	"leaf-diagnosis-server/internal/platform/logging"
	"leaf-diagnosis-server/internal/platform/observability"
)

const (
	defaultSpecies   = "tea"
	defaultInputSize = 224
)

type ProfileAnalyzer interface {
	Analyze(img *image.Image) (colorprofile.Profile, error)
}

type SubjectGate interface {
	Classify(p colorprofile.Profile) gate.LeafType
}

type HealthGate interface {
	Classify(p colorprofile.Profile) bool
}

type SeverityClassifier interface {
	Classify(ctx context.Context, input oracle.Tensor) (severity.Level, error)
}

type TreatmentAdvisor interface {
	Recommend(ctx context.Context, disease, severity string) string
}

// Options wires the stages. Analyzer and the gates default to the colour heuristics;
// Detector, Severity and Advisor are required.
type Options struct {
	Species   string
	InputSize int

	Analyzer ProfileAnalyzer
	Subject  SubjectGate
	Health   HealthGate
	Detector disease.Detector
	Severity SeverityClassifier
	Advisor  TreatmentAdvisor

	// Bus receives one event per run; nil disables publishing.
	Bus    *eventbus.Bus
	Logger *logging.Logger
}

// Meta describes where an image came from; it is only used for logs and history.
type Meta struct {
	Filename string
}

type Pipeline struct {
	species   string
	inputSize int
	analyzer  ProfileAnalyzer
	subject   SubjectGate
	health    HealthGate
	detector  disease.Detector
	severity  SeverityClassifier
	advisor   TreatmentAdvisor
	bus       *eventbus.Bus
	logger    *logging.Logger
}

func New(opts Options) (*Pipeline, error) {
	if opts.Detector == nil || opts.Severity == nil || opts.Advisor == nil {
		return nil, errors.New(errors.KindConfig, "diagnosis.new", "detector, severity classifier and advisor are required")
	}
	if opts.Species == "" {
		opts.Species = defaultSpecies
	}
	if opts.InputSize <= 0 {
		opts.InputSize = defaultInputSize
	}
	if opts.Analyzer == nil {
		opts.Analyzer = colorprofile.NewAnalyzer()
	}
	if opts.Subject == nil {
		opts.Subject = gate.Subject{}
	}
	if opts.Health == nil {
		opts.Health = gate.Health{}
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewDiscard()
	}

	return &Pipeline{
		species:   opts.Species,
		inputSize: opts.InputSize,
		analyzer:  opts.Analyzer,
		subject:   opts.Subject,
		health:    opts.Health,
		detector:  opts.Detector,
		severity:  opts.Severity,
		advisor:   opts.Advisor,
		bus:       opts.Bus,
		logger:    opts.Logger,
	}, nil
}

// NotTargetMessage is the explanation returned when the subject gate rejects an image.
func NotTargetMessage(species string) string {
	return fmt.Sprintf("This pipeline only processes %s leaves. The uploaded image does not look like a %s leaf.", species, species)
}

// Run takes a decoded image through the stages. On error no partial result is returned.
func (p *Pipeline) Run(ctx context.Context, img *image.Image, meta Meta) (*Result, error) {
	id := uuid.NewString()
	start := time.Now()

	ctx, end := observability.StartSpan(observability.WithDiagnosisID(ctx, id), "pipeline", "run")
	result, err := p.run(ctx, id, img)
	end(err)
	if err != nil {
		p.fail(id, meta, start, err)
		return nil, err
	}

	result.ID = id
	p.finish(result, meta, start)
	return result, nil
}

func (p *Pipeline) run(ctx context.Context, id string, img *image.Image) (*Result, error) {
	if img == nil || img.Empty() {
		return nil, errors.New(errors.KindInvalidImage, "diagnosis.run", "Image has zero dimensions")
	}

	p.logger.DebugTag("PIPELINE", "[%s] %s on %dx%d image", id, StageSubjectCheck, img.Width, img.Height)
	profile, err := p.analyzer.Analyze(img)
	if err != nil {
		return nil, errors.Wrap(errors.KindInvalidImage, "diagnosis.profile", "Could not analyse image colours", err)
	}
	if leafType := p.subject.Classify(profile); leafType != gate.TargetSpecies {
		p.logger.InfoTag("PIPELINE", "[%s] not %s: hue %.1f sat %.1f green %.3f", id, p.species, profile.MeanHue, profile.MeanSaturation, profile.GreenRatio)
		return notTarget(NotTargetMessage(p.species)), nil
	}

	p.logger.DebugTag("PIPELINE", "[%s] %s", id, StageHealthCheck)
	if p.health.Classify(profile) {
		p.logger.InfoTag("PIPELINE", "[%s] healthy: disease ratio %.3f", id, profile.DiseaseRatio)
		return healthy(), nil
	}

	p.logger.DebugTag("PIPELINE", "[%s] %s: disease ratio %.3f", id, StageDiseaseDetection, profile.DiseaseRatio)
	input := oracle.NewImageTensor(img.Resize(p.inputSize, p.inputSize))
	candidate, err := p.detector.Detect(ctx, disease.Sample{Original: img, Input: input})
	if err != nil {
		return nil, errors.Wrap(errors.KindInference, "diagnosis.detect", "Disease detection failed", err)
	}

	p.logger.DebugTag("PIPELINE", "[%s] %s for %s", id, StageSeverityAndTreatment, candidate.Label)
	level, err := p.severity.Classify(ctx, input)
	if err != nil {
		return nil, errors.Wrap(errors.KindInference, "diagnosis.severity", "Severity classification failed", err)
	}
	treatment := p.advisor.Recommend(ctx, string(candidate.Label), string(level))

	return fullDiagnosis(candidate, level, treatment), nil
}

func (p *Pipeline) finish(result *Result, meta Meta, start time.Time) {
	elapsed := time.Since(start)
	observability.ObservePipeline(string(result.Outcome))
	p.logger.InfoTag("PIPELINE", "[%s] %s in %s", result.ID, result.Outcome, elapsed.Round(time.Millisecond))

	if p.bus == nil {
		return
	}
	ev := eventbus.DiagnosisEvent{
		ID:         result.ID,
		Outcome:    string(result.Outcome),
		LeafType:   string(result.LeafType),
		IsHealthy:  result.IsHealthy,
		Disease:    string(result.Disease),
		Method:     string(result.Method),
		Severity:   string(result.Severity),
		Filename:   meta.Filename,
		Duration:   elapsed,
		Result:     result,
		OccurredAt: time.Now(),
	}
	if result.Accuracy != nil {
		ev.Accuracy = *result.Accuracy
	}
	p.bus.PublishAsync(eventbus.TopicDiagnosisCompleted, ev)
}

func (p *Pipeline) fail(id string, meta Meta, start time.Time, err error) {
	kind := errors.KindOf(err)
	observability.ObservePipeline(string(kind))
	p.logger.WarnTag("PIPELINE", "[%s] failed (%s): %v", id, kind, err)

	if p.bus == nil {
		return
	}
	p.bus.PublishAsync(eventbus.TopicDiagnosisFailed, eventbus.DiagnosisEvent{
		ID:         id,
		Outcome:    string(OutcomeFailed),
		Filename:   meta.Filename,
		Duration:   time.Since(start),
		ErrorKind:  string(kind),
		Error:      errors.Message(err),
		OccurredAt: time.Now(),
	})
}

package diagnosis

import (
	"context"
	stderrors "errors"
	"sync/atomic"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leaf-diagnosis-server/internal/domain/colorprofile"
	"leaf-diagnosis-server/internal/domain/disease"
	"leaf-diagnosis-server/internal/domain/eventbus"
	"leaf-diagnosis-server/internal/domain/gate"
	"leaf-diagnosis-server/internal/domain/image"
	"leaf-diagnosis-server/internal/domain/oracle"
	"leaf-diagnosis-server/internal/domain/severity"
	"leaf-diagnosis-server/internal/platform/errors"
)

type fixedProfile struct{ p colorprofile.Profile }

func (f fixedProfile) Analyze(*image.Image) (colorprofile.Profile, error) { return f.p, nil }

type countingHealth struct{ calls atomic.Int32 }

func (c *countingHealth) Classify(p colorprofile.Profile) bool {
	c.calls.Add(1)
	return gate.Health{}.Classify(p)
}

type countingDetector struct {
	calls atomic.Int32
	inner disease.Detector
}

func (c *countingDetector) Detect(ctx context.Context, s disease.Sample) (disease.Candidate, error) {
	c.calls.Add(1)
	return c.inner.Detect(ctx, s)
}

type countingSeverity struct {
	calls atomic.Int32
	level severity.Level
	err   error
}

func (c *countingSeverity) Classify(context.Context, oracle.Tensor) (severity.Level, error) {
	c.calls.Add(1)
	return c.level, c.err
}

type countingAdvisor struct{ calls atomic.Int32 }

func (c *countingAdvisor) Recommend(_ context.Context, d, s string) string {
	c.calls.Add(1)
	return "Treat " + d + " (" + s + ")"
}

type stages struct {
	health   *countingHealth
	detector *countingDetector
	severity *countingSeverity
	advisor  *countingAdvisor
}

func scores(name string, shape []int, data []float32) oracle.Predictor {
	return oracle.Func{ModelName: name, Fn: func(context.Context, oracle.Tensor) (oracle.Tensor, error) {
		return oracle.Tensor{Shape: shape, Data: data}, nil
	}}
}

// perLabelMap repeats one 5-channel pixel over a 2x2 map.
func perLabelMap(pixel []float32) oracle.Predictor {
	data := make([]float32, 0, 20)
	for i := 0; i < 4; i++ {
		data = append(data, pixel...)
	}
	return scores("segmentation", []int{1, 2, 2, 5}, data)
}

func newStages(classifier, segmenter oracle.Predictor) *stages {
	return &stages{
		health: &countingHealth{},
		detector: &countingDetector{inner: disease.NewEnsemble(
			disease.NewModelStrategy(classifier),
			disease.NewRegionStrategy(segmenter, disease.ConstantJitter(0)),
			nil,
		)},
		severity: &countingSeverity{level: severity.Moderate},
		advisor:  &countingAdvisor{},
	}
}

func newPipeline(t *testing.T, analyzer ProfileAnalyzer, s *stages, bus *eventbus.Bus) *Pipeline {
	t.Helper()
	p, err := New(Options{
		InputSize: 8,
		Analyzer:  analyzer,
		Health:    s.health,
		Detector:  s.detector,
		Severity:  s.severity,
		Advisor:   s.advisor,
		Bus:       bus,
	})
	require.NoError(t, err)
	return p
}

func solid(w, h int, r, g, b uint8) *image.Image {
	pix := make([]uint8, 0, w*h*3)
	for i := 0; i < w*h; i++ {
		pix = append(pix, r, g, b)
	}
	return &image.Image{Width: w, Height: h, Pix: pix}
}

// spotted is a 10x10 leaf whose first three rows are brown.
func spotted() *image.Image {
	img := solid(10, 10, 60, 160, 40)
	for i := 0; i < 30; i++ {
		img.Pix[i*3], img.Pix[i*3+1], img.Pix[i*3+2] = 150, 90, 40
	}
	return img
}

var (
	brownBlight92 = scores("classifier", []int{1, 5}, []float32{0.02, 0.03, 0.92, 0.02, 0.01})
	greyBlight80  = perLabelMap([]float32{0.1, 0.8, 0.05, 0.03, 0.02})
)

func TestNewRequiresOracleStages(t *testing.T) {
	_, err := New(Options{})
	assert.True(t, errors.IsKind(err, errors.KindConfig))
}

func TestNotTargetSkipsLaterStages(t *testing.T) {
	s := newStages(brownBlight92, greyBlight80)
	p := newPipeline(t, fixedProfile{colorprofile.Profile{MeanHue: 150, MeanSaturation: 60, GreenRatio: 0.9, DiseaseRatio: 0.5}}, s, nil)

	res, err := p.Run(context.Background(), solid(4, 4, 0, 0, 255), Meta{})
	require.NoError(t, err)

	assert.Equal(t, gate.NotTargetSpecies, res.LeafType)
	assert.Equal(t, NotTargetMessage("tea"), res.Message)
	assert.Equal(t, OutcomeNotTargetSpecies, res.Outcome)
	assert.Zero(t, s.health.calls.Load())
	assert.Zero(t, s.detector.calls.Load())
	assert.Zero(t, s.severity.calls.Load())
	assert.Zero(t, s.advisor.calls.Load())

	body, err := sonic.Marshal(res)
	require.NoError(t, err)
	assert.JSONEq(t, `{"leafType":"not_target_species","message":"`+NotTargetMessage("tea")+`"}`, string(body))
}

func TestHealthyLeaf(t *testing.T) {
	s := newStages(brownBlight92, greyBlight80)
	p := newPipeline(t, fixedProfile{colorprofile.Profile{MeanHue: 50, MeanSaturation: 60, GreenRatio: 0.5, DiseaseRatio: 0.02}}, s, nil)

	res, err := p.Run(context.Background(), solid(4, 4, 60, 160, 40), Meta{})
	require.NoError(t, err)

	body, err := sonic.Marshal(res)
	require.NoError(t, err)
	assert.JSONEq(t, `{"leafType":"target_species","isHealthy":true}`, string(body))
	assert.EqualValues(t, 1, s.health.calls.Load())
	assert.Zero(t, s.detector.calls.Load())
	assert.Zero(t, s.advisor.calls.Load())
}

func TestFullDiagnosisModelWins(t *testing.T) {
	s := newStages(brownBlight92, greyBlight80)
	p := newPipeline(t, nil, s, nil)

	res, err := p.Run(context.Background(), spotted(), Meta{Filename: "leaf.jpg"})
	require.NoError(t, err)

	require.NotNil(t, res.IsHealthy)
	assert.False(t, *res.IsHealthy)
	assert.Equal(t, disease.MethodModel, res.Method)
	assert.Equal(t, disease.BrownBlight, res.Disease)
	require.NotNil(t, res.Accuracy)
	assert.InDelta(t, 92.0, *res.Accuracy, 1e-9)
	assert.Contains(t, severity.Levels, res.Severity)
	assert.NotEmpty(t, res.Treatment)
	assert.Equal(t, OutcomeFullDiagnosis, res.Outcome)
	assert.NotEmpty(t, res.ID)
}

func TestFullDiagnosisTieGoesToRegion(t *testing.T) {
	model80 := scores("classifier", []int{1, 5}, []float32{0.8, 0.1, 0.05, 0.03, 0.02})
	s := newStages(model80, greyBlight80)
	p := newPipeline(t, nil, s, nil)

	res, err := p.Run(context.Background(), spotted(), Meta{})
	require.NoError(t, err)
	assert.Equal(t, disease.MethodRegion, res.Method)
	assert.Equal(t, disease.GreyBlight, res.Disease)
}

func TestRealProfileGates(t *testing.T) {
	s := newStages(brownBlight92, greyBlight80)
	p := newPipeline(t, nil, s, nil)

	res, err := p.Run(context.Background(), solid(6, 6, 40, 60, 200), Meta{})
	require.NoError(t, err)
	assert.Equal(t, OutcomeNotTargetSpecies, res.Outcome)

	res, err = p.Run(context.Background(), solid(6, 6, 60, 160, 40), Meta{})
	require.NoError(t, err)
	assert.Equal(t, OutcomeHealthy, res.Outcome)
	assert.Zero(t, s.detector.calls.Load())
}

func TestDiseaseRatioAtBoundaryIsHealthy(t *testing.T) {
	s := newStages(brownBlight92, greyBlight80)
	p := newPipeline(t, nil, s, nil)

	img := solid(10, 1, 60, 160, 40)
	copy(img.Pix[27:], []uint8{0, 0, 0})

	res, err := p.Run(context.Background(), img, Meta{})
	require.NoError(t, err)

	body, err := sonic.Marshal(res)
	require.NoError(t, err)
	assert.JSONEq(t, `{"leafType":"target_species","isHealthy":true}`, string(body))
	assert.Zero(t, s.detector.calls.Load())
}

func TestInferenceFailuresAbort(t *testing.T) {
	broken := oracle.Func{ModelName: "classifier", Fn: func(context.Context, oracle.Tensor) (oracle.Tensor, error) {
		return oracle.Tensor{}, stderrors.New("connection refused")
	}}

	t.Run("disease stage", func(t *testing.T) {
		s := newStages(broken, greyBlight80)
		p := newPipeline(t, nil, s, nil)

		res, err := p.Run(context.Background(), spotted(), Meta{})
		assert.Nil(t, res)
		assert.True(t, errors.IsKind(err, errors.KindInference))
		assert.Zero(t, s.severity.calls.Load())
		assert.Zero(t, s.advisor.calls.Load())
	})

	t.Run("severity stage", func(t *testing.T) {
		s := newStages(brownBlight92, greyBlight80)
		s.severity.err = errors.New(errors.KindInference, "severity.classify", "Severity classification failed")
		p := newPipeline(t, nil, s, nil)

		res, err := p.Run(context.Background(), spotted(), Meta{})
		assert.Nil(t, res)
		assert.True(t, errors.IsKind(err, errors.KindInference))
		assert.Zero(t, s.advisor.calls.Load())
	})
}

func TestEmptyImageIsInvalid(t *testing.T) {
	p := newPipeline(t, nil, newStages(brownBlight92, greyBlight80), nil)
	_, err := p.Run(context.Background(), &image.Image{}, Meta{})
	assert.True(t, errors.IsKind(err, errors.KindInvalidImage))
}

func TestEventsPublished(t *testing.T) {
	bus := eventbus.New(eventbus.Options{Workers: 1})
	bus.Start()
	defer bus.Stop()

	var completed, failed []eventbus.DiagnosisEvent
	require.NoError(t, bus.Subscribe(eventbus.TopicDiagnosisCompleted, func(ev eventbus.DiagnosisEvent) { completed = append(completed, ev) }))
	require.NoError(t, bus.Subscribe(eventbus.TopicDiagnosisFailed, func(ev eventbus.DiagnosisEvent) { failed = append(failed, ev) }))

	p := newPipeline(t, nil, newStages(brownBlight92, greyBlight80), bus)
	res, err := p.Run(context.Background(), spotted(), Meta{Filename: "leaf.png"})
	require.NoError(t, err)
	_, err = p.Run(context.Background(), &image.Image{}, Meta{Filename: "empty.png"})
	require.Error(t, err)
	bus.Drain()

	require.Len(t, completed, 1)
	assert.Equal(t, res.ID, completed[0].ID)
	assert.Equal(t, "full_diagnosis", completed[0].Outcome)
	assert.Equal(t, "leaf.png", completed[0].Filename)
	assert.InDelta(t, 92.0, completed[0].Accuracy, 1e-9)

	require.Len(t, failed, 1)
	assert.Equal(t, "invalid_image", failed[0].ErrorKind)
}

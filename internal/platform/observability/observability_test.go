package observability

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestSetupDisabledHasNoRegistry(t *testing.T) {
	shutdown, err := Setup(context.Background(), Config{Enabled: false}, nil)
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	defer shutdown(context.Background())

	if Registry() != nil {
		t.Fatal("expected nil registry when disabled")
	}
	if Enabled() {
		t.Fatal("expected disabled")
	}
	// must not panic
	ObservePipeline("full_diagnosis")
}

func TestMetricsRecordedWhenEnabled(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	shutdown, err := Setup(context.Background(), Config{Enabled: true, MetricsPath: "/metrics"}, logger)
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	defer func() {
		shutdown(context.Background())
		Setup(context.Background(), Config{}, nil)
	}()

	reg := Registry()
	if reg == nil {
		t.Fatal("expected registry")
	}

	before := counterValue(t, reg, "leaf_diagnosis_pipeline_outcomes_total", "outcome", "healthy")
	ObservePipeline("healthy")
	if got := counterValue(t, reg, "leaf_diagnosis_pipeline_outcomes_total", "outcome", "healthy"); got != before+1 {
		t.Fatalf("expected counter %v, got %v", before+1, got)
	}

	errBefore := counterValue(t, reg, "leaf_diagnosis_oracle_calls_total", "result", "error")
	ObserveOracle("severity", errors.New("boom"), 10*time.Millisecond)
	if got := counterValue(t, reg, "leaf_diagnosis_oracle_calls_total", "result", "error"); got != errBefore+1 {
		t.Fatalf("expected oracle error counter %v, got %v", errBefore+1, got)
	}
}

func counterValue(t *testing.T, reg *prometheus.Registry, name, label, value string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	total := 0.0
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if lp.GetName() == label && lp.GetValue() == value {
					total += m.GetCounter().GetValue()
				}
			}
		}
	}
	return total
}

func TestStatusClass(t *testing.T) {
	cases := map[int]string{200: "2xx", 302: "3xx", 400: "4xx", 502: "5xx"}
	for status, want := range cases {
		if got := statusClass(status); got != want {
			t.Errorf("statusClass(%d) = %s, want %s", status, got, want)
		}
	}
}

func TestStartSpanWithoutLogger(t *testing.T) {
	Setup(context.Background(), Config{}, nil)
	_, end := StartSpan(context.Background(), "pipeline", "run")
	end(nil)
}

func captureDebug(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	if _, err := Setup(context.Background(), Config{}, logger); err != nil {
		t.Fatalf("setup: %v", err)
	}
	t.Cleanup(func() { Setup(context.Background(), Config{}, nil) })
	buf.Reset()
	return &buf
}

func TestStartSpanCarriesDiagnosisID(t *testing.T) {
	buf := captureDebug(t)

	ctx := WithDiagnosisID(context.Background(), "diag-42")
	if got := DiagnosisID(ctx); got != "diag-42" {
		t.Fatalf("DiagnosisID() = %q", got)
	}
	_, end := StartSpan(ctx, "oracle", "predict", slog.String("model", "tea_severity"))
	end(errors.New("deadline exceeded"))

	out := buf.String()
	for _, want := range []string{`"diagnosis_id":"diag-42"`, `"model":"tea_severity"`, `"msg":"span end"`, `"level":"ERROR"`, `"error":"deadline exceeded"`} {
		if !strings.Contains(out, want) {
			t.Errorf("span log missing %s:\n%s", want, out)
		}
	}
}

func TestStartSpanWithoutDiagnosisID(t *testing.T) {
	buf := captureDebug(t)

	_, end := StartSpan(context.Background(), "advisor", "generate")
	end(nil)

	if strings.Contains(buf.String(), "diagnosis_id") {
		t.Fatalf("unexpected diagnosis_id in %s", buf.String())
	}
	if got := DiagnosisID(WithDiagnosisID(context.Background(), "")); got != "" {
		t.Fatalf("empty id should not be stored, got %q", got)
	}
}

func TestObserveLogsDatapointWhenRegistryDisabled(t *testing.T) {
	buf := captureDebug(t)

	ObservePipeline("not_target_species")
	ObserveAdvisorFallback("timeout")
	ObserveOracle("tea_disease_classifier", nil, 5*time.Millisecond)

	out := buf.String()
	for _, want := range []string{
		`"metric":"leaf_diagnosis_pipeline_outcomes_total"`,
		`"outcome":"not_target_species"`,
		`"metric":"leaf_diagnosis_advisor_fallbacks_total"`,
		`"reason":"timeout"`,
		`"metric":"leaf_diagnosis_oracle_call_seconds"`,
		`"result":"ok"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("datapoint log missing %s:\n%s", want, out)
		}
	}
}

package testing

import (
	"bytes"
	stdimage "image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/bytedance/sonic"
	"gopkg.in/yaml.v3"

	"leaf-diagnosis-server/internal/platform/config"
	"leaf-diagnosis-server/internal/platform/logging"
)

// SetupTestConfig returns defaults rooted in a per-test temp dir with history on,
// jitter off and no advisor key.
func SetupTestConfig(t *testing.T) *config.Config {
	t.Helper()

	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Server.IP = "127.0.0.1"
	cfg.Log.Level = "debug"
	cfg.Log.Dir = filepath.Join(dir, "logs")
	cfg.Log.File = "test.log"
	cfg.Web.StaticDir = ""
	cfg.Web.UploadDir = filepath.Join(dir, "uploads")
	cfg.Storage.Path = filepath.Join(dir, "history.db")
	cfg.Storage.HistoryEnabled = true
	cfg.Pipeline.Region.Jitter = false
	cfg.Advisor.APIKey = ""
	cfg.Advisor.Cache.Driver = "memory"
	cfg.Observability.Enabled = false
	return cfg
}

// WriteConfig serialises cfg to a config.yaml inside a temp dir and returns its path.
func WriteConfig(t *testing.T, cfg *config.Config) string {
	t.Helper()

	data, err := yaml.Marshal(cfg)
	AssertNoError(t, err)
	path := filepath.Join(t.TempDir(), "config.yaml")
	AssertNoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func SetupTestLogger(t *testing.T) *logging.Logger {
	t.Helper()

	logger, err := logging.New(logging.Config{
		Level:    "debug",
		Dir:      t.TempDir(),
		Filename: "test.log",
		Console:  &bytes.Buffer{},
	})
	if err != nil {
		t.Fatalf("failed to create test logger: %v", err)
	}
	t.Cleanup(func() { logger.Close() })
	return logger
}

// ModelServer fakes a TF-Serving REST endpoint. Predictions maps model name to the
// "predictions" payload it answers with; unknown models get 404.
type ModelServer struct {
	*httptest.Server

	mu    sync.Mutex
	calls map[string]int
}

func NewModelServer(t *testing.T, predictions map[string]interface{}) *ModelServer {
	t.Helper()

	ms := &ModelServer{calls: make(map[string]int)}
	ms.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimPrefix(r.URL.Path, "/v1/models/")
		predict := strings.HasSuffix(name, ":predict")
		name = strings.TrimSuffix(name, ":predict")

		payload, ok := predictions[name]
		w.Header().Set("Content-Type", "application/json")
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"Servable not found for request: Latest(` + name + `)"}`))
			return
		}
		if !predict {
			_, _ = w.Write([]byte(`{"model_version_status":[{"version":"1","state":"AVAILABLE"}]}`))
			return
		}

		ms.mu.Lock()
		ms.calls[name]++
		ms.mu.Unlock()

		body, err := sonic.Marshal(map[string]interface{}{"predictions": payload})
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write(body)
	}))
	t.Cleanup(ms.Close)
	return ms
}

// Calls reports how many predict requests a model received.
func (m *ModelServer) Calls(model string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[model]
}

// PointOracles aims every oracle in cfg at the fake server.
func (m *ModelServer) PointOracles(cfg *config.Config) {
	cfg.Oracles.Disease.URL = m.URL
	cfg.Oracles.Segmentation.URL = m.URL
	cfg.Oracles.Severity.URL = m.URL
}

// EncodePNG renders a w x h image whose pixel colour is chosen by fill.
func EncodePNG(t *testing.T, w, h int, fill func(x, y int) color.RGBA) []byte {
	t.Helper()

	img := stdimage.NewRGBA(stdimage.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, fill(x, y))
		}
	}
	var buf bytes.Buffer
	AssertNoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error but got nil")
	}
}

func AssertEqual(t *testing.T, expected, actual interface{}) {
	t.Helper()
	if expected != actual {
		t.Fatalf("expected %v, got %v", expected, actual)
	}
}

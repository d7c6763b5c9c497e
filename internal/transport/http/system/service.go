package system

import (
	"context"
	"net/http"
	"os"
	"runtime"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"

	"leaf-diagnosis-server/internal/platform/logging"
	"leaf-diagnosis-server/internal/platform/storage"
	httptransport "leaf-diagnosis-server/internal/transport/http"
)

const probeTimeout = 3 * time.Second

// HistoryLister reads recorded diagnoses.
type HistoryLister interface {
	ListRecent(ctx context.Context, limit int) ([]storage.DiagnosisRecord, error)
}

// ModelProbe reports whether a model behind the model server can serve requests.
type ModelProbe interface {
	Name() string
	Ready(ctx context.Context) error
}

type Options struct {
	ServiceName string
	// History may be nil when history recording is disabled.
	History HistoryLister
	Models  []ModelProbe
	Logger  *logging.Logger
}

type Service struct {
	serviceName string
	history     HistoryLister
	models      []ModelProbe
	logger      *logging.Logger
	startedAt   time.Time
}

func NewService(opts Options) *Service {
	if opts.ServiceName == "" {
		opts.ServiceName = "tea-disease-pipeline"
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewDiscard()
	}
	return &Service{
		serviceName: opts.ServiceName,
		history:     opts.History,
		models:      opts.Models,
		logger:      opts.Logger,
		startedAt:   time.Now(),
	}
}

func (s *Service) Register(api *gin.RouterGroup, root gin.IRouter) {
	root.GET("/health", s.handleHealth)
	api.GET("/history", s.handleHistory)
	api.GET("/system", s.handleSystem)
}

// handleHealth
// @Summary Service identity
// @Tags System
// @Produce json
// @Router /health [get]
func (s *Service) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": s.serviceName})
}

// handleHistory
// @Summary List recent diagnoses
// @Tags System
// @Produce json
// @Param limit query int false "Maximum records (1-200)"
// @Router /api/history [get]
func (s *Service) handleHistory(c *gin.Context) {
	if s.history == nil {
		httptransport.RespondError(c, http.StatusNotFound, "Diagnosis history is disabled")
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			httptransport.RespondError(c, http.StatusBadRequest, "limit must be an integer")
			return
		}
		limit = n
	}

	records, err := s.history.ListRecent(c.Request.Context(), limit)
	if err != nil {
		s.logger.ErrorTag("STORAGE", "history query failed: %v", err)
		httptransport.RespondFailure(c, err)
		return
	}
	if records == nil {
		records = []storage.DiagnosisRecord{}
	}
	c.JSON(http.StatusOK, records)
}

type modelStatus struct {
	Name  string `json:"name"`
	Ready bool   `json:"ready"`
	Error string `json:"error,omitempty"`
}

// handleSystem
// @Summary Host and model server status
// @Tags System
// @Produce json
// @Router /api/system [get]
func (s *Service) handleSystem(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), probeTimeout)
	defer cancel()

	host := gin.H{
		"goroutines": runtime.NumGoroutine(),
		"cpus":       runtime.NumCPU(),
	}
	if pct, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(pct) > 0 {
		host["cpu_percent"] = pct[0]
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		host["memory_total"] = vm.Total
		host["memory_used_percent"] = vm.UsedPercent
	}
	if proc, err := process.NewProcessWithContext(ctx, int32(os.Getpid())); err == nil {
		if info, err := proc.MemoryInfoWithContext(ctx); err == nil {
			host["process_rss"] = info.RSS
		}
	}

	models := make([]modelStatus, 0, len(s.models))
	for _, m := range s.models {
		st := modelStatus{Name: m.Name(), Ready: true}
		if err := m.Ready(ctx); err != nil {
			st.Ready = false
			st.Error = err.Error()
		}
		models = append(models, st)
	}

	c.JSON(http.StatusOK, gin.H{
		"service":        s.serviceName,
		"uptime_seconds": int64(time.Since(s.startedAt).Seconds()),
		"host":           host,
		"models":         models,
	})
}

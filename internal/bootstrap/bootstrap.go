package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	_ "leaf-diagnosis-server/internal/docs"
	"leaf-diagnosis-server/internal/domain/diagnosis"
	"leaf-diagnosis-server/internal/domain/disease"
	"leaf-diagnosis-server/internal/domain/eventbus"
	"leaf-diagnosis-server/internal/domain/history"
	domainimage "leaf-diagnosis-server/internal/domain/image"
	"leaf-diagnosis-server/internal/domain/oracle"
	"leaf-diagnosis-server/internal/domain/severity"
	"leaf-diagnosis-server/internal/domain/treatment"
	"leaf-diagnosis-server/internal/domain/treatment/cache"
	platformconfig "leaf-diagnosis-server/internal/platform/config"
	platformerrors "leaf-diagnosis-server/internal/platform/errors"
	platformlogging "leaf-diagnosis-server/internal/platform/logging"
	platformobservability "leaf-diagnosis-server/internal/platform/observability"
	platformstorage "leaf-diagnosis-server/internal/platform/storage"
	httptransport "leaf-diagnosis-server/internal/transport/http"
	"leaf-diagnosis-server/internal/transport/http/diagnose"
	"leaf-diagnosis-server/internal/transport/http/system"
)

// Options tweaks how the graph is built for a given entry point.
type Options struct {
	// ConfigPath pins the config file; empty means LEAF_CONFIG or config.yaml.
	ConfigPath string
	// Port overrides server.port when positive.
	Port int
	// Console receives human-readable logs; nil means stdout.
	Console io.Writer
	// SkipDotEnv disables .env loading.
	SkipDotEnv bool
}

type stepFn func(context.Context, *appState) error

type initStep struct {
	ID        string
	Title     string
	DependsOn []string
	Kind      platformerrors.Kind
	Execute   stepFn
}

type appState struct {
	opts                  Options
	config                *platformconfig.Config
	configPath            string
	logger                *platformlogging.Logger
	observabilityShutdown platformobservability.ShutdownFunc
	db                    *gorm.DB
	history               *platformstorage.DiagnosisRepository
	bus                   *eventbus.Bus
	adviceCache           cache.Store
	models                []*oracle.RemoteModel
	images                *domainimage.Pipeline
	pipeline              *diagnosis.Pipeline
}

// App is a fully wired pipeline plus the resources backing it.
type App struct {
	Config   *platformconfig.Config
	Logger   *platformlogging.Logger
	Images   *domainimage.Pipeline
	Pipeline *diagnosis.Pipeline

	state *appState
}

// Assemble runs the init graph and returns the wired application. Call Close when done.
func Assemble(ctx context.Context, opts Options) (*App, error) {
	state := &appState{opts: opts}
	steps := InitGraph()
	if err := executeInitSteps(ctx, steps, state); err != nil {
		state.close()
		return nil, err
	}
	logBootstrapGraph(steps, state.logger)

	return &App{
		Config:   state.config,
		Logger:   state.logger,
		Images:   state.images,
		Pipeline: state.pipeline,
		state:    state,
	}, nil
}

// Close flushes pending history events and releases every resource in reverse order.
func (a *App) Close() {
	if a != nil && a.state != nil {
		a.state.close()
	}
}

// Run starts the HTTP server and blocks until ctx ends or SIGINT/SIGTERM arrives.
func Run(ctx context.Context, opts Options) error {
	app, err := Assemble(ctx, opts)
	if err != nil {
		return err
	}
	defer app.Close()

	rootCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	signalCtx, stop := signal.NotifyContext(rootCtx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(rootCtx)
	if _, err := startHTTPServer(app.state, group, groupCtx); err != nil {
		cancel()
		return err
	}

	go func() {
		// a failed listener ends the group; wake the waiter
		<-groupCtx.Done()
		cancel()
	}()

	return waitForShutdown(signalCtx, cancel, app.state.config.Server.ShutdownTimeout, app.Logger, group)
}

func logBootstrapGraph(steps []initStep, logger *platformlogging.Logger) {
	if logger == nil {
		return
	}
	logger.InfoTag("BOOT", "init graph:")
	for _, step := range steps {
		if len(step.DependsOn) == 0 {
			logger.InfoTag("BOOT", "  %s (%s)", step.ID, step.Title)
			continue
		}
		logger.InfoTag("BOOT", "  %s (%s) <- %s", step.ID, step.Title, strings.Join(step.DependsOn, ", "))
	}
}

func executeInitSteps(ctx context.Context, steps []initStep, state *appState) error {
	if state == nil {
		return platformerrors.New(
			platformerrors.KindBootstrap,
			"execute init steps",
			"nil bootstrap state",
		)
	}

	completed := make(map[string]struct{}, len(steps))
	for _, step := range steps {
		for _, dep := range step.DependsOn {
			if _, ok := completed[dep]; !ok {
				return platformerrors.New(
					platformerrors.KindBootstrap,
					step.ID,
					fmt.Sprintf("dependency %s not satisfied", dep),
				)
			}
		}
		if step.Execute == nil {
			return platformerrors.New(
				platformerrors.KindBootstrap,
				step.ID,
				"missing execute function",
			)
		}
		if err := step.Execute(ctx, state); err != nil {
			var typed *platformerrors.Error
			if errors.As(err, &typed) {
				return err
			}

			kind := step.Kind
			if kind == "" {
				kind = platformerrors.KindBootstrap
			}
			return platformerrors.Wrap(kind, step.ID, "bootstrap step failed", err)
		}
		completed[step.ID] = struct{}{}
	}
	return nil
}

func InitGraph() []initStep {
	return []initStep{
		{
			ID:      "config:load",
			Title:   "Load configuration",
			Kind:    platformerrors.KindConfig,
			Execute: loadConfigStep,
		},
		{
			ID:        "logging:init-provider",
			Title:     "Initialise logging provider",
			DependsOn: []string{"config:load"},
			Execute:   initLoggingStep,
		},
		{
			ID:        "observability:setup-hooks",
			Title:     "Setup observability hooks",
			DependsOn: []string{"logging:init-provider"},
			Execute:   setupObservabilityStep,
		},
		{
			ID:        "storage:init-database",
			Title:     "Open diagnosis history database",
			DependsOn: []string{"logging:init-provider"},
			Kind:      platformerrors.KindStorage,
			Execute:   initDatabaseStep,
		},
		{
			ID:        "events:init-bus",
			Title:     "Start event bus and history recorder",
			DependsOn: []string{"storage:init-database"},
			Execute:   initEventBusStep,
		},
		{
			ID:        "oracles:init-clients",
			Title:     "Connect model server clients",
			DependsOn: []string{"observability:setup-hooks"},
			Execute:   initOraclesStep,
		},
		{
			ID:        "advisor:init",
			Title:     "Initialise treatment advisor",
			DependsOn: []string{"observability:setup-hooks"},
			Execute:   initAdvisorCacheStep,
		},
		{
			ID:        "pipeline:assemble",
			Title:     "Assemble diagnosis pipeline",
			DependsOn: []string{"events:init-bus", "oracles:init-clients", "advisor:init"},
			Execute:   assemblePipelineStep,
		},
	}
}

func loadConfigStep(_ context.Context, state *appState) error {
	result, err := platformconfig.NewLoader().
		WithDotEnv(!state.opts.SkipDotEnv).
		WithPath(state.opts.ConfigPath).
		Load()
	if err != nil {
		return err
	}
	if state.opts.Port > 0 {
		result.Config.Server.Port = state.opts.Port
	}

	state.config = result.Config
	state.configPath = result.Path
	if state.configPath == "" {
		state.configPath = "defaults"
	}
	return nil
}

func initLoggingStep(_ context.Context, state *appState) error {
	if state.config == nil {
		return platformerrors.New(
			platformerrors.KindBootstrap,
			"logging:init-provider",
			"config not loaded",
		)
	}

	logger, err := platformlogging.New(platformlogging.Config{
		Level:    state.config.Log.Level,
		Dir:      state.config.Log.Dir,
		Filename: state.config.Log.File,
		Console:  state.opts.Console,
	})
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindBootstrap, "logging:init-provider", "failed to initialize logging provider", err)
	}

	state.logger = logger
	logger.InfoTag("BOOT", "logging ready [%s] config=%s", state.config.Log.Level, state.configPath)
	return nil
}

func setupObservabilityStep(ctx context.Context, state *appState) error {
	cfg := platformobservability.Config{
		Enabled:     state.config.Observability.Enabled,
		MetricsPath: state.config.Observability.MetricsPath,
	}

	shutdown, err := platformobservability.Setup(ctx, cfg, state.logger.Slog())
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindBootstrap, "observability:setup-hooks", "failed to setup observability hooks", err)
	}
	state.observabilityShutdown = shutdown
	return nil
}

func initDatabaseStep(_ context.Context, state *appState) error {
	if !state.config.Storage.HistoryEnabled {
		state.logger.InfoTag("STORAGE", "diagnosis history disabled")
		return nil
	}

	db, err := platformstorage.Open(state.config.Storage.Path)
	if err != nil {
		return err
	}
	state.db = db
	state.history = platformstorage.NewDiagnosisRepository(db)
	state.logger.InfoTag("STORAGE", "diagnosis history at %s", state.config.Storage.Path)
	return nil
}

func initEventBusStep(_ context.Context, state *appState) error {
	bus := eventbus.New(eventbus.Options{Logger: state.logger})
	if state.history != nil {
		if err := history.NewRecorder(state.history, state.logger).Attach(bus); err != nil {
			return platformerrors.Wrap(platformerrors.KindBootstrap, "events:init-bus", "failed to attach history recorder", err)
		}
	}
	bus.Start()
	state.bus = bus
	return nil
}

func initOraclesStep(ctx context.Context, state *appState) error {
	cfg := state.config.Oracles
	state.models = []*oracle.RemoteModel{
		oracle.NewRemoteModel(cfg.Disease.URL, cfg.Disease.ModelName),
		oracle.NewRemoteModel(cfg.Segmentation.URL, cfg.Segmentation.ModelName),
		oracle.NewRemoteModel(cfg.Severity.URL, cfg.Severity.ModelName),
	}

	for _, m := range state.models {
		if err := m.Ready(ctx); err != nil {
			// the model server may come up after us; requests will fail with 502 until it does
			state.logger.WarnTag("ORACLE", "model %s not ready: %v", m.Name(), err)
			continue
		}
		state.logger.InfoTag("ORACLE", "model %s ready", m.Name())
	}
	return nil
}

func initAdvisorCacheStep(_ context.Context, state *appState) error {
	cfg := state.config.Advisor.Cache
	store, err := cache.New(cache.Config{
		Driver: cfg.Driver,
		TTL:    cfg.TTL,
		Redis: &cache.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Username: cfg.Redis.Username,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
		},
	})
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindBootstrap, "advisor:init", "failed to create advice cache", err)
	}
	state.adviceCache = store
	state.logger.InfoTag("ADVISOR", "advice cache driver=%s", cfg.Driver)
	return nil
}

func newAdvisor(state *appState) *treatment.Advisor {
	cfg := state.config.Advisor
	var generator treatment.TextGenerator
	if strings.TrimSpace(cfg.APIKey) != "" {
		generator = treatment.NewOpenAIGenerator(treatment.OpenAIConfig{
			APIKey:      cfg.APIKey,
			BaseURL:     cfg.BaseURL,
			Model:       cfg.ModelName,
			MaxTokens:   cfg.MaxTokens,
			Temperature: cfg.Temperature,
		})
	} else {
		state.logger.WarnTag("ADVISOR", "no API key configured, treatment advice will use the fallback text")
	}

	return treatment.NewAdvisor(treatment.Options{
		Species:   state.config.Pipeline.TargetSpecies,
		Generator: generator,
		Cache:     state.adviceCache,
		Timeout:   cfg.Timeout,
		Logger:    state.logger,
	})
}

func newJitter(cfg platformconfig.RegionConfig) disease.JitterSource {
	if !cfg.Jitter {
		return disease.ConstantJitter(0)
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return disease.NewSeededJitter(seed)
}

func assemblePipelineStep(_ context.Context, state *appState) error {
	cfg := state.config
	timeout := cfg.Oracles.Timeout
	guard := func(m *oracle.RemoteModel) oracle.Predictor {
		return oracle.WithTimeout(m, timeout, state.logger)
	}
	classifier, segmenter, severityModel := guard(state.models[0]), guard(state.models[1]), guard(state.models[2])

	ensemble := disease.NewEnsemble(
		disease.NewModelStrategy(classifier),
		disease.NewRegionStrategy(segmenter, newJitter(cfg.Pipeline.Region)),
		state.logger,
	)

	pipeline, err := diagnosis.New(diagnosis.Options{
		Species:   cfg.Pipeline.TargetSpecies,
		InputSize: cfg.Pipeline.InputSize,
		Detector:  ensemble,
		Severity:  severity.NewClassifier(severityModel),
		Advisor:   newAdvisor(state),
		Bus:       state.bus,
		Logger:    state.logger,
	})
	if err != nil {
		return err
	}

	state.pipeline = pipeline
	state.images = domainimage.NewPipeline(domainimage.Options{
		Security:    cfg.Web.Security,
		MaxFileSize: cfg.Web.MaxUploadSize,
		Logger:      state.logger,
	})
	return nil
}

func (s *appState) close() {
	if s.bus != nil {
		s.bus.Stop()
	}
	if s.adviceCache != nil {
		if err := s.adviceCache.Close(context.Background()); err != nil && s.logger != nil {
			s.logger.WarnTag("ADVISOR", "advice cache close failed: %v", err)
		}
	}
	if s.db != nil {
		if err := platformstorage.Close(s.db); err != nil && s.logger != nil {
			s.logger.WarnTag("STORAGE", "database close failed: %v", err)
		}
	}
	if s.observabilityShutdown != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := s.observabilityShutdown(shutdownCtx); err != nil && s.logger != nil {
			s.logger.WarnTag("BOOT", "observability did not shut down cleanly: %v", err)
		}
		cancel()
	}
	if s.logger != nil {
		s.logger.Close()
	}
}

func buildRouter(state *appState) (*gin.Engine, error) {
	cfg := state.config
	httpRouter, err := httptransport.Build(httptransport.Options{
		Config: cfg,
		Logger: state.logger,
	})
	if err != nil {
		return nil, err
	}
	router := httpRouter.Engine

	router.NoRoute(func(c *gin.Context) {
		httptransport.RespondError(c, http.StatusNotFound, "Not found")
	})

	diagnoseService, err := diagnose.NewService(diagnose.Options{
		Images:        state.images,
		Pipeline:      state.pipeline,
		UploadDir:     cfg.Web.UploadDir,
		MaxUploadSize: cfg.Web.MaxUploadSize,
		Logger:        state.logger,
	})
	if err != nil {
		return nil, err
	}
	diagnoseService.Register(httpRouter.API, router)

	probes := make([]system.ModelProbe, 0, len(state.models))
	for _, m := range state.models {
		probes = append(probes, m)
	}
	sysOpts := system.Options{
		ServiceName: cfg.Server.ServiceName,
		Models:      probes,
		Logger:      state.logger,
	}
	if state.history != nil {
		sysOpts.History = state.history
	}
	system.NewService(sysOpts).Register(httpRouter.API, router)

	return router, nil
}

func startHTTPServer(state *appState, g *errgroup.Group, groupCtx context.Context) (*http.Server, error) {
	router, err := buildRouter(state)
	if err != nil {
		return nil, platformerrors.Wrap(platformerrors.KindTransport, "http:build-router", "failed to build router", err)
	}

	cfg := state.config
	logger := state.logger
	httpServer := &http.Server{
		Addr:              cfg.Server.IP + ":" + strconv.Itoa(cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.Go(func() error {
		logger.InfoTag("HTTP", "listening on http://%s", httpServer.Addr)
		logger.InfoTag("HTTP", "API docs at http://localhost:%d/docs", cfg.Server.Port)

		go func() {
			<-groupCtx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()

			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				logger.ErrorTag("HTTP", "HTTP server shutdown failed: %v", err)
			} else {
				logger.InfoTag("HTTP", "HTTP server stopped")
			}
		}()

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.ErrorTag("HTTP", "HTTP server failed: %v", err)
			return platformerrors.Wrap(platformerrors.KindTransport, "http:listen", "HTTP server failed", err)
		}
		return nil
	})

	return httpServer, nil
}

func waitForShutdown(
	ctx context.Context,
	cancel context.CancelFunc,
	timeout time.Duration,
	logger *platformlogging.Logger,
	g *errgroup.Group,
) error {
	<-ctx.Done()
	logger.InfoTag("BOOT", "shutting down: %v", context.Cause(ctx))

	cancel()
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	done := make(chan error, 1)
	go func() {
		done <- g.Wait()
	}()

	select {
	case err := <-done:
		if err != nil {
			logger.ErrorTag("BOOT", "error during shutdown: %v", err)
			return err
		}
		logger.InfoTag("BOOT", "all services stopped")
	case <-time.After(timeout + 5*time.Second):
		logger.ErrorTag("BOOT", "shutdown timed out")
		return errors.New("shutdown timed out")
	}
	return nil
}

package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"

	"github.com/gorilla/mux"
	"golang.org/x/sync/errgroup"

	"video-cleaner/internal/handlers"
	"video-cleaner/internal/logging"
	"video-cleaner/internal/memory"
	"video-cleaner/internal/metrics"
	"video-cleaner/internal/middleware"
	"video-cleaner/internal/scratch"
	"video-cleaner/internal/startup"
	"video-cleaner/internal/transcoder"
	"video-cleaner/internal/upload"
)

const (
	shutdownTimeout   = 30 * time.Second
	metricsInterval   = 15 * time.Second
	readHeaderTimeout = 10 * time.Second
	idleTimeout       = 60 * time.Second
)

func main() {
	startTime := time.Now()

	// Apply GOMEMLIMIT before anything allocates heavily
	startup.LogMemoryConfig(memory.ConfigureFromEnv())

	config, err := startup.LoadConfig()
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}

	var reader memory.Reader
	if pr, err := memory.NewProcReader(); err != nil {
		logging.Warn("System memory statistics unavailable: %v", err)
	} else {
		reader = pr
	}

	if config.SwapEnabled {
		memory.ProvisionSwap(context.Background(), memory.SwapConfig{
			Path: config.SwapFile,
			Size: config.SwapSize,
		}, reader)
	}

	store, err := scratch.New(config.UploadDir, config.OutputDir)
	if err != nil {
		startup.LogFatal("Failed to initialize scratch storage: %v", err)
	}
	startup.LogScratchDirs(store.InputDir(), store.OutputDir())
	startup.LogScratchInit(store.Purge())

	trans := transcoder.New(transcoder.Options{
		FFmpegPath:    config.FFmpegPath,
		Timeout:       config.TranscodeTimeout,
		MaxConcurrent: config.MaxConcurrentJobs,
	})
	startup.LogTranscoderInit(trans)

	monitorConfig := memory.DefaultConfig()
	monitorConfig.CriticalAvailableBytes = config.MemoryCriticalAvailable
	monitorConfig.RecoverAvailableBytes = 0
	monitor := memory.NewMonitor(monitorConfig, reader)
	monitor.Start()

	metrics.InitializeMetrics()
	info := startup.GetBuildInfo()
	metrics.SetAppInfo(info.Version, info.Commit, runtime.Version())
	collector := metrics.NewCollector(store, monitor, metricsInterval)
	collector.Start()

	uploadOpts := upload.DefaultOptions()
	uploadOpts.MaxBytes = config.MaxUploadBytes
	h := handlers.New(store, upload.NewReceiver(store, uploadOpts), trans, monitor)

	router := setupRouter(h)
	startup.LogHTTPRoutes(router, config.LogHealthChecks)

	srv := &http.Server{
		Addr:              ":" + config.Port,
		Handler:           wrapRouter(router, config),
		ReadHeaderTimeout: readHeaderTimeout,
		// Uploads and attachments are bounded by the transcoder and the
		// streaming writer, not by whole-request deadlines.
		ReadTimeout:  0,
		WriteTimeout: 0,
		IdleTimeout:  idleTimeout,
	}

	var metricsSrv *http.Server
	if config.MetricsEnabled {
		metricsSrv = newMetricsServer(config.MetricsPort, h)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return serve(srv)
	})
	if metricsSrv != nil {
		g.Go(func() error {
			return serve(metricsSrv)
		})
	}

	startup.LogServerStarted(startup.ServerConfig{
		Port:            config.Port,
		MetricsPort:     config.MetricsPort,
		MetricsEnabled:  config.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})

	g.Go(func() error {
		<-gctx.Done()
		reason := "server error"
		if ctx.Err() != nil {
			reason = "signal"
		}
		shutdown(reason, srv, metricsSrv, trans, monitor, collector, store)
		return nil
	})

	if err := g.Wait(); err != nil {
		startup.LogFatal("Server error: %v", err)
	}
}

func serve(srv *http.Server) error {
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func setupRouter(h *handlers.Handlers) *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/process-video", h.ProcessVideo).Methods(http.MethodPost)

	// Probes answer HEAD as well so load balancers can use either
	r.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/healthz", h.HealthCheck).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/livez", h.LivenessCheck).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/version", h.GetVersion).Methods(http.MethodGet)

	r.Use(middleware.Metrics(middleware.DefaultMetricsConfig()))

	return r
}

// wrapRouter applies the outer middleware. Recover is outermost so it also
// catches panics in logging and CORS.
func wrapRouter(router http.Handler, config *startup.Config) http.Handler {
	corsConfig := middleware.DefaultCORSConfig()
	if len(config.CORSAllowedOrigins) > 0 {
		corsConfig.AllowedOrigins = config.CORSAllowedOrigins
	}
	handler := middleware.CORS(corsConfig)(router)

	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogHealthChecks = config.LogHealthChecks
	handler = middleware.Logger(loggingConfig)(handler)

	return middleware.Recover()(handler)
}

func newMetricsServer(port string, h *handlers.Handlers) *http.Server {
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", h.MetricsHandler())
	metricsMux.HandleFunc("/health", h.LivenessCheck)

	return &http.Server{
		Addr:              ":" + port,
		Handler:           metricsMux,
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       idleTimeout,
	}
}

func shutdown(
	reason string,
	srv, metricsSrv *http.Server,
	trans *transcoder.Transcoder,
	monitor *memory.Monitor,
	collector *metrics.Collector,
	store *scratch.Store,
) {
	startup.LogShutdownInitiated(reason)

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// Aborting jobs first lets in-flight requests answer and clean up
	// before the server waits on them.
	startup.LogShutdownStep("Aborting transcode jobs")
	trans.Cleanup()
	startup.LogShutdownStepComplete("Transcode jobs aborted")

	startup.LogShutdownStep("Shutting down HTTP server")
	if err := srv.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}

	if metricsSrv != nil {
		startup.LogShutdownStep("Shutting down metrics server")
		if err := metricsSrv.Shutdown(ctx); err != nil {
			logging.Warn("Metrics server shutdown error: %v", err)
		} else {
			startup.LogShutdownStepComplete("Metrics server stopped")
		}
	}

	collector.Stop()
	monitor.Stop()
	startup.LogShutdownStepComplete("Background monitors stopped")

	startup.LogShutdownStep("Purging scratch directories")
	if freed, err := store.Purge(); err != nil {
		logging.Warn("Scratch purge incomplete: %v", err)
	} else {
		startup.LogShutdownStepComplete("Scratch purged (" + memory.FormatBytes(uint64(freed)) + ")")
	}

	startup.LogShutdownComplete()
}

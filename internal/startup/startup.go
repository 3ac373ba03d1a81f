package startup

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"video-cleaner/internal/logging"
	"video-cleaner/internal/memory"
	"video-cleaner/internal/middleware"
	"video-cleaner/internal/transcoder"
	"video-cleaner/internal/upload"
	"video-cleaner/internal/workers"
)

// Build-time variables (injected via -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

// BuildInfo contains version and build information
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// GetBuildInfo returns the current build information
func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

// RouteInfo contains information about a registered route
type RouteInfo struct {
	Method string
	Path   string
	Name   string
}

// Deploy modes select scratch directory defaults.
const (
	DeployLocal   = "local"
	DeployRailway = "railway"
)

// ErrInvalidConfig wraps every configuration value that cannot be used.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds all application configuration
type Config struct {
	Port           string
	MetricsPort    string
	MetricsEnabled bool
	DeployMode     string

	UploadDir string
	OutputDir string

	MaxUploadBytes    int64
	FFmpegPath        string
	TranscodeTimeout  time.Duration
	MaxConcurrentJobs int

	SwapEnabled bool
	SwapFile    string
	SwapSize    uint64

	CORSAllowedOrigins      []string
	LogHealthChecks         bool
	MemoryCriticalAvailable uint64
}

// Defaults for values that are not simple literals.
const (
	defaultPort             = "3000"
	defaultMetricsPort      = "9090"
	defaultTranscodeTimeout = "10m"
	defaultSwapSize         = "1GiB"
	defaultCriticalMem      = "64MiB"
)

// LoadConfig loads and validates configuration from environment variables
func LoadConfig() (*Config, error) {
	printBanner()
	logSystemInfo()

	logging.Info("------------------------------------------------------------")
	logging.Info("CONFIGURATION")
	logging.Info("------------------------------------------------------------")

	config, err := configFromEnv()
	if err != nil {
		return nil, err
	}
	logConfig(config)

	for _, d := range []struct {
		path *string
		name string
	}{
		{&config.UploadDir, "upload"},
		{&config.OutputDir, "output"},
	} {
		abs, err := filepath.Abs(*d.path)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %s directory path: %w", d.name, err)
		}
		*d.path = abs
	}

	return config, nil
}

// configFromEnv reads every variable without touching the filesystem.
func configFromEnv() (*Config, error) {
	mode, err := deployMode()
	if err != nil {
		return nil, err
	}

	uploadDefault, outputDefault := "./uploads", "./outputs"
	if mode == DeployRailway {
		uploadDefault, outputDefault = "/tmp/uploads", "/tmp/outputs"
	}

	maxUpload, err := getEnvBytes("MAX_UPLOAD_BYTES", strconv.FormatInt(upload.DefaultMaxBytes, 10))
	if err != nil {
		return nil, err
	}
	if maxUpload <= 0 {
		return nil, fmt.Errorf("%w: MAX_UPLOAD_BYTES must be positive", ErrInvalidConfig)
	}

	timeout, err := getEnvDuration("TRANSCODE_TIMEOUT", defaultTranscodeTimeout)
	if err != nil {
		return nil, err
	}
	if timeout < 0 {
		return nil, fmt.Errorf("%w: TRANSCODE_TIMEOUT must not be negative", ErrInvalidConfig)
	}

	jobs, err := workers.ParseLimit(os.Getenv("MAX_CONCURRENT_JOBS"), 0)
	if err != nil {
		return nil, fmt.Errorf("%w: MAX_CONCURRENT_JOBS: %w", ErrInvalidConfig, err)
	}

	swapSize, err := getEnvBytes("SWAP_SIZE", defaultSwapSize)
	if err != nil {
		return nil, err
	}

	critical, err := getEnvBytes("MEMORY_CRITICAL_AVAILABLE", defaultCriticalMem)
	if err != nil {
		return nil, err
	}

	return &Config{
		Port:                    getEnv("PORT", defaultPort),
		MetricsPort:             getEnv("METRICS_PORT", defaultMetricsPort),
		MetricsEnabled:          getEnvBool("METRICS_ENABLED", true),
		DeployMode:              mode,
		UploadDir:               getEnv("UPLOAD_DIR", uploadDefault),
		OutputDir:               getEnv("OUTPUT_DIR", outputDefault),
		MaxUploadBytes:          maxUpload,
		FFmpegPath:              getEnv("FFMPEG_PATH", transcoder.DefaultFFmpegPath),
		TranscodeTimeout:        timeout,
		MaxConcurrentJobs:       jobs,
		SwapEnabled:             getEnvBool("SWAP_ENABLED", mode == DeployRailway),
		SwapFile:                getEnv("SWAP_FILE", memory.DefaultSwapConfig().Path),
		SwapSize:                uint64(max(swapSize, 0)),
		CORSAllowedOrigins:      middleware.ParseOrigins(getEnv("CORS_ALLOWED_ORIGINS", "*")),
		LogHealthChecks:         getEnvBool("LOG_HEALTH_CHECKS", true),
		MemoryCriticalAvailable: uint64(max(critical, 0)),
	}, nil
}

func deployMode() (string, error) {
	mode := strings.ToLower(strings.TrimSpace(os.Getenv("DEPLOY_MODE")))
	switch mode {
	case DeployLocal, DeployRailway:
		return mode, nil
	case "":
		if os.Getenv("RAILWAY_ENVIRONMENT") != "" {
			return DeployRailway, nil
		}
		return DeployLocal, nil
	default:
		return "", fmt.Errorf("%w: DEPLOY_MODE %q (want %s or %s)", ErrInvalidConfig, mode, DeployLocal, DeployRailway)
	}
}

func logConfig(c *Config) {
	timeout := c.TranscodeTimeout.String()
	if c.TranscodeTimeout == 0 {
		timeout = "none"
	}
	jobs := strconv.Itoa(c.MaxConcurrentJobs)
	if c.MaxConcurrentJobs == 0 {
		jobs = "unlimited"
	}

	logging.Info("  DEPLOY_MODE:               %s", c.DeployMode)
	logging.Info("  PORT:                      %s", c.Port)
	logging.Info("  METRICS_PORT:              %s", c.MetricsPort)
	logging.Info("  METRICS_ENABLED:           %v", c.MetricsEnabled)
	logging.Info("  UPLOAD_DIR:                %s", c.UploadDir)
	logging.Info("  OUTPUT_DIR:                %s", c.OutputDir)
	logging.Info("  MAX_UPLOAD_BYTES:          %s", memory.FormatBytes(uint64(c.MaxUploadBytes)))
	logging.Info("  FFMPEG_PATH:               %s", c.FFmpegPath)
	logging.Info("  TRANSCODE_TIMEOUT:         %s", timeout)
	logging.Info("  MAX_CONCURRENT_JOBS:       %s", jobs)
	logging.Info("  SWAP_ENABLED:              %v", c.SwapEnabled)
	if c.SwapEnabled {
		logging.Info("  SWAP_FILE:                 %s", c.SwapFile)
		logging.Info("  SWAP_SIZE:                 %s", memory.FormatBytes(c.SwapSize))
	}
	logging.Info("  CORS_ALLOWED_ORIGINS:      %s", strings.Join(c.CORSAllowedOrigins, ","))
	logging.Info("  MEMORY_CRITICAL_AVAILABLE: %s", memory.FormatBytes(c.MemoryCriticalAvailable))
	logging.Info("  LOG_HEALTH_CHECKS:         %v", c.LogHealthChecks)
	logging.Info("  LOG_LEVEL:                 %s", logging.GetLevel())
}

// LogMemoryConfig logs the outcome of memory.ConfigureFromEnv.
func LogMemoryConfig(result memory.ConfigResult) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("MEMORY CONFIGURATION")
	logging.Info("------------------------------------------------------------")

	switch result.Source {
	case memory.SourceGoMemLimit:
		logging.Info("  GOMEMLIMIT:      %s (from environment)", memory.FormatBytes(uint64(max(result.GoMemLimit, 0))))
	case memory.SourceMemoryLimit, memory.SourceCgroup:
		logging.Info("  Container limit: %s (%s)", memory.FormatBytes(uint64(max(result.ContainerLimit, 0))), result.Source)
		logging.Info("  GOMEMLIMIT:      %s (%.0f%%)", memory.FormatBytes(uint64(max(result.GoMemLimit, 0))), result.Ratio*100)
	default:
		logging.Info("  GOMEMLIMIT:      not configured (set MEMORY_LIMIT to enable)")
	}
}

// LogTranscoderInit logs transcoder settings and reports whether ffmpeg runs.
func LogTranscoderInit(t *transcoder.Transcoder) bool {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("TRANSCODER INITIALIZATION")
	logging.Info("------------------------------------------------------------")
	logging.Debug("  Profile: %s", t.Profile().Filter())

	if err := checkFFmpeg(t.FFmpegPath()); err != nil {
		logging.Critical("  FFmpeg check failed: %v", err)
		logging.Critical("  Every job will fail until ffmpeg is installed")
		return false
	}
	logging.Info("  [OK] FFmpeg is available")
	return true
}

// LogScratchDirs logs the scratch directories once the store has created
// them and checked write access.
func LogScratchDirs(inputDir, outputDir string) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DIRECTORY SETUP")
	logging.Info("------------------------------------------------------------")
	logging.Info("  upload directory (absolute): %s", inputDir)
	logging.Info("  output directory (absolute): %s", outputDir)
	logging.Info("  [OK] scratch directories are writable")
}

// LogScratchInit logs the result of the startup scratch sweep.
func LogScratchInit(freed int64, err error) {
	if err != nil {
		logging.Warn("  Scratch sweep incomplete: %v", err)
	}
	if freed > 0 {
		logging.Info("  Removed %s of leftover scratch files", memory.FormatBytes(uint64(freed)))
	}
}

// GetRoutes extracts all registered routes from a mux.Router
func GetRoutes(router *mux.Router) ([]RouteInfo, error) {
	var routes []RouteInfo

	err := router.Walk(func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		pathTemplate, err := route.GetPathTemplate()
		if err != nil {
			return err
		}

		methods, err := route.GetMethods()
		if err != nil {
			methods = []string{"*"}
		}

		for _, method := range methods {
			routes = append(routes, RouteInfo{
				Method: method,
				Path:   pathTemplate,
				Name:   route.GetName(),
			})
		}

		return nil
	})

	return routes, err
}

// LogHTTPRoutes logs all registered HTTP routes
func LogHTTPRoutes(router *mux.Router, logHealthChecks bool) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("HTTP SERVER SETUP")
	logging.Info("------------------------------------------------------------")

	routes, err := GetRoutes(router)
	if err != nil {
		logging.Warn("error walking routes: %v", err)
	}
	sort.Slice(routes, func(i, j int) bool {
		if routes[i].Path != routes[j].Path {
			return routes[i].Path < routes[j].Path
		}
		return routes[i].Method < routes[j].Method
	})

	logging.Info("  Registered routes (%d total):", len(routes))
	for _, route := range routes {
		logging.Info("    %-6s %s", route.Method, route.Path)
	}

	logging.Info("")
	logging.Info("  HTTP logging enabled")
	if logHealthChecks {
		logging.Info("    Health check logging: ON")
	} else {
		logging.Info("    Health check logging: OFF (set LOG_HEALTH_CHECKS=true to enable)")
	}
}

// ServerConfig holds configuration for the server startup log
type ServerConfig struct {
	Port            string
	MetricsPort     string
	MetricsEnabled  bool
	StartupDuration time.Duration
}

// LogServerStarted logs successful server start with all endpoint information
func LogServerStarted(config ServerConfig) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SERVER STARTED")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Startup time:    %v", config.StartupDuration)
	logging.Info("")
	logging.Info("  Endpoints:")
	logging.Info("    Upload:        POST http://0.0.0.0:%s/process-video", config.Port)
	logging.Info("    Health:        http://0.0.0.0:%s/health", config.Port)
	if config.MetricsEnabled {
		logging.Info("    Metrics:       http://0.0.0.0:%s/metrics", config.MetricsPort)
	} else {
		logging.Info("    Metrics:       DISABLED")
	}
	logging.Info("")
	logging.Info("  Press Ctrl+C to stop the server")
	logging.Info("------------------------------------------------------------")
	logging.Info("")
}

// LogShutdownInitiated logs shutdown start
func LogShutdownInitiated(signal string) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SHUTDOWN INITIATED (received %s)", signal)
	logging.Info("------------------------------------------------------------")
}

// LogShutdownStep logs a shutdown step
func LogShutdownStep(step string) {
	logging.Debug("  %s...", step)
}

// LogShutdownStepComplete logs a completed shutdown step
func LogShutdownStepComplete(step string) {
	logging.Info("  [OK] %s", step)
}

// LogShutdownComplete logs shutdown completion
func LogShutdownComplete() {
	logging.Info("  [OK] Shutdown complete")
}

// LogFatal logs a fatal error and exits
func LogFatal(format string, args ...interface{}) {
	logging.Fatal(format, args...)
}

// Helper functions

func printBanner() {
	banner := `
------------------------------------------------------------
         _     _                    _
  __   _(_) __| | ___  ___    ___| | ___  __ _ _ __   ___ _ __
  \ \ / / |/ _' |/ _ \/ _ \  / __| |/ _ \/ _' | '_ \ / _ \ '__|
   \ V /| | (_| |  __/ (_) || (__| |  __/ (_| | | | |  __/ |
    \_/ |_|\__,_|\___|\___/  \___|_|\___|\__,_|_| |_|\___|_|

------------------------------------------------------------`
	fmt.Println(banner)
	logging.Info("  Version:    %s", Version)
	logging.Info("  Commit:     %s", Commit)
	logging.Info("  Build Time: %s", BuildTime)
	logging.Info("  Started:    %s", time.Now().Format(time.RFC1123))
	logging.Info("")
}

func logSystemInfo() {
	logging.Info("------------------------------------------------------------")
	logging.Info("SYSTEM INFORMATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Go version:      %s", runtime.Version())
	logging.Info("  OS/Arch:         %s/%s", runtime.GOOS, runtime.GOARCH)
	logging.Info("  CPUs available:  %d", runtime.NumCPU())
	logging.Info("  GOMAXPROCS:      %d", runtime.GOMAXPROCS(0))

	if runtime.GOMAXPROCS(0) < runtime.NumCPU() {
		logging.Info("  (Container CPU limit detected)")
	}

	if logging.IsDebugEnabled() {
		if wd, err := os.Getwd(); err == nil {
			logging.Debug("  Working dir:     %s", wd)
		}
		if hostname, err := os.Hostname(); err == nil {
			logging.Debug("  Hostname:        %s", hostname)
		}
	}

	logging.Info("")
}

// checkFFmpeg resolves ffmpegPath and runs "-version".
func checkFFmpeg(ffmpegPath string) error {
	path, err := exec.LookPath(ffmpegPath)
	if err != nil {
		return fmt.Errorf("%s not found: %w", ffmpegPath, err)
	}
	logging.Debug("  FFmpeg path: %s", path)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	output, err := exec.CommandContext(ctx, path, "-version").Output()
	if err != nil {
		return fmt.Errorf("failed to get ffmpeg version: %w", err)
	}

	if first, _, _ := strings.Cut(string(output), "\n"); first != "" {
		logging.Info("  FFmpeg version: %s", strings.TrimSpace(first))
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		logging.Warn("Invalid boolean value for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

// getEnvDuration accepts Go durations ("90s") and bare seconds ("600").
func getEnvDuration(key, defaultValue string) (time.Duration, error) {
	value := getEnv(key, defaultValue)
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %q: %w", ErrInvalidConfig, key, value, err)
	}
	return d, nil
}

// getEnvBytes accepts plain byte counts and humanized sizes ("50MiB").
func getEnvBytes(key, defaultValue string) (int64, error) {
	value := getEnv(key, defaultValue)
	n, err := memory.ParseBytes(value)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %q: %w", ErrInvalidConfig, key, value, err)
	}
	return n, nil
}

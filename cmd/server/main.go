package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourusername/ytrelay-go/api"
	"github.com/yourusername/ytrelay-go/api/handlers"
	"github.com/yourusername/ytrelay-go/internal/app"
	"github.com/yourusername/ytrelay-go/internal/domain"
	"github.com/yourusername/ytrelay-go/internal/infrastructure"
	"github.com/yourusername/ytrelay-go/pkg/logger"
	"github.com/yourusername/ytrelay-go/pkg/procutil"
)

const shutdownTimeout = 30 * time.Second

var (
	configPath = flag.String("config", "", "Path to config file")
	daemon     = flag.Bool("daemon", false, "Detach and run the server in the background")
)

func main() {
	flag.Parse()

	if *daemon {
		startAsDaemon()
		return
	}

	if err := runServer(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

// startAsDaemon re-executes the binary without -daemon in a new session and
// exits.
func startAsDaemon() {
	execPath, err := os.Executable()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to get executable path: %v\n", err)
		os.Exit(1)
	}

	cwd, err := os.Getwd()
	if err != nil {
		cwd = "/"
	}

	var args []string
	if *configPath != "" {
		args = append(args, "-config", *configPath)
	}

	cmd := exec.Command(execPath, args...)
	cmd.Dir = cwd
	cmd.Env = os.Environ()
	procutil.Detach(cmd)

	devNull, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open %s: %v\n", os.DevNull, err)
		os.Exit(1)
	}
	cmd.Stdin = devNull
	cmd.Stdout = devNull
	cmd.Stderr = devNull

	if err := cmd.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start daemon: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Server started as daemon (PID: %d)\n", cmd.Process.Pid)
}

func runServer() error {
	config, err := app.LoadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	general, err := logger.New(logger.Config{
		Level:      config.Logging.Level,
		Format:     config.Logging.Format,
		OutputPath: config.Logging.OutputPath,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer general.Sync()

	logAdapter, closeLogs, err := newLogAdapter(config, general)
	if err != nil {
		return err
	}
	defer closeLogs()

	log := logAdapter.General()
	log.Info("Starting ytrelay server",
		zap.String("version", handlers.Version),
		zap.String("host", config.Server.Host),
		zap.Int("port", config.Server.Port),
		zap.String("download_dir", config.Download.Dir),
		zap.Int("concurrent_limit", config.Download.ConcurrentLimit))

	if err := os.MkdirAll(config.Download.Dir, 0755); err != nil {
		return fmt.Errorf("failed to create download directory: %w", err)
	}

	preflight := infrastructure.NewPreflight(&config.YTDLP)
	if err := preflight.CheckReady(context.Background()); err != nil {
		// downloads fail until the tools are installed; the server still runs
		log.Warn("Extraction engine not ready", zap.Error(err))
	}

	ytdlp := infrastructure.NewYTDLPClient(&config.YTDLP, log)
	notifier := infrastructure.NewNotificationService(&config.Notification, log)
	hub := app.NewProgressHub(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	orchestrator := app.NewTaskOrchestrator(ctx, ytdlp, preflight, hub, notifier, config, logAdapter)

	gin.SetMode(gin.ReleaseMode)
	router := api.SetupRouter(api.Services{
		Media:        app.NewMediaService(ytdlp, config.YTDLP.AudioExt, log),
		Orchestrator: orchestrator,
		Hub:          hub,
		Relay:        infrastructure.NewStreamRelay(&config.YTDLP, &config.Stream, logAdapter.Stream()),
		Files:        app.NewFileServer(config.Download.Dir, log),
		Checker:      preflight,
		AudioExt:     config.YTDLP.AudioExt,
		LogsDir:      config.Logging.LogsDir,
	}, logAdapter)

	addr := fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		log.Info("Received shutdown signal")
	case err := <-serveErr:
		log.Error("HTTP server failed", zap.Error(err))
		return err
	}

	log.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	if err := orchestrator.Shutdown(shutdownCtx); err != nil {
		log.Warn("Background tasks did not stop in time",
			zap.Int("active", orchestrator.Active()),
			zap.Error(err))
	}

	log.Info("Server exited")
	return nil
}

// newLogAdapter enables the categorized file logs when logging.logs_dir is set
func newLogAdapter(config *domain.Config, general *zap.Logger) (*logger.LoggerAdapter, func(), error) {
	if config.Logging.LogsDir == "" {
		return logger.NewSingleLoggerAdapter(general), func() {}, nil
	}

	multiLog, err := logger.NewMultiLogger(logger.MultiLoggerConfig{
		Level:   config.Logging.Level,
		LogsDir: config.Logging.LogsDir,
	}, general)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize category logs: %w", err)
	}

	return logger.NewLoggerAdapter(multiLog), func() { multiLog.Close() }, nil
}

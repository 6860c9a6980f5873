package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/yourusername/tunepack-go/api"
	"github.com/yourusername/tunepack-go/internal/app"
	"github.com/yourusername/tunepack-go/internal/domain"
	"github.com/yourusername/tunepack-go/internal/infrastructure"
	"github.com/yourusername/tunepack-go/pkg/logger"
)

var (
	serverMode = flag.Bool("server-mode", false, "Internal flag: run in server mode (called by daemon)")
	configPath = flag.String("config", "", "Path to config file")
)

func main() {
	flag.Parse()

	// If not in server mode, run as daemon
	if !*serverMode {
		startAsDaemon()
		return
	}

	// Run as server (called by daemon)
	runServer()
}

// startAsDaemon forks the current process and runs the server in background
func startAsDaemon() {
	// Get the executable path
	execPath, err := os.Executable()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to get executable path: %v\n", err)
		os.Exit(1)
	}

	// Get current working directory
	cwd, err := os.Getwd()
	if err != nil {
		cwd = "/"
	}

	// Fork the process
	args := []string{"-server-mode"}
	if *configPath != "" {
		args = append(args, "-config", *configPath)
	}
	cmd := exec.Command(execPath, args...)
	cmd.Dir = cwd
	cmd.Env = os.Environ()

	// Detach from parent process
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid: true, // Create new session
	}

	// Redirect output to /dev/null
	devNull, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open /dev/null: %v\n", err)
		os.Exit(1)
	}
	cmd.Stdin = devNull
	cmd.Stdout = devNull
	cmd.Stderr = devNull

	// Start the child process
	if err := cmd.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start daemon: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Server started as daemon (PID: %d)\n", cmd.Process.Pid)
	os.Exit(0)
}

func runServer() {
	config, err := app.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:      config.Logging.Level,
		Format:     config.Logging.Format,
		OutputPath: config.Logging.OutputPath,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	events, err := logger.NewEventLogger(logger.EventLoggerConfig{
		Level:   config.Logging.Level,
		LogsDir: config.Logging.LogsDir,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize event logger: %v\n", err)
		os.Exit(1)
	}
	defer events.Sync()

	log.Info("Starting TunePack server",
		zap.String("version", "1.0.0"),
		zap.String("host", config.Server.Host),
		zap.Int("port", config.Server.Port),
		zap.String("upstream", config.Upstream.BaseURL))

	if err := os.MkdirAll(config.Download.OutputDir, 0755); err != nil {
		log.Fatal("Failed to create output directory", zap.Error(err))
	}

	// Upstream clients
	cache, err := infrastructure.NewSQLitePlaylistCache(config.Cache.DatabasePath)
	if err != nil {
		log.Fatal("Failed to initialize playlist cache", zap.Error(err))
	}

	playlists := infrastructure.NewPlaylistClient(config.Upstream.BaseURL, config.Upstream.Timeout, log).
		WithCache(cache, config.Cache.TTL)

	auth := infrastructure.NewAuthClient(config.Upstream.BaseURL, config.Auth, config.Upstream.Timeout, log)
	auth.OnQR = func(qrURL, qrImage string) {
		log.Info("Scan the QR code to log in", zap.String("url", qrURL))
	}

	resolver := infrastructure.NewSongURLClient(config.Upstream.BaseURL, config.Upstream.Timeout, config.Download.ChunkSize, log)
	collector := infrastructure.NewCollector(config.Download.FetchTimeout, config.Download.UserAgent, log)
	notifier := infrastructure.NewNotificationService(&config.Notification, log)

	// Orchestrator
	orchestrator := app.NewOrchestrator(
		resolver,
		auth,
		collector,
		func() domain.Archiver { return infrastructure.NewZipArchive() },
		&config.Download,
		log,
	)
	// unattended server, VIP tracks fall back to previews
	orchestrator.SetDecider(domain.VipPolicy(domain.DecisionProceed))
	orchestrator.SetNotifier(notifier)
	orchestrator.SetEventLogger(events)

	// Setup HTTP router
	router, progressHandler, batchHandler := api.SetupRouter(api.Dependencies{
		Orchestrator: orchestrator,
		Playlists:    playlists,
		Auth:         auth,
		Logger:       log,
		LogsDir:      config.Logging.LogsDir,
	})

	orchestrator.SetProgressCallback(progressHandler.BroadcastProgress)
	orchestrator.SetCompleteCallback(func(summary *domain.Summary) {
		batchHandler.RecordSummary(summary)
		progressHandler.BroadcastSummary(summary)
	})

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port)
	server := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		log.Info("HTTP server listening", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited")
}

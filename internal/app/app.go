package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fallwatch/internal/config"
	"fallwatch/internal/logger"
	"fallwatch/internal/metrics"
	"fallwatch/internal/route"
	"fallwatch/internal/service"
	"fallwatch/internal/service/ai"
	"fallwatch/internal/service/camera"
	"fallwatch/internal/service/notify"
	"fallwatch/internal/service/storage"
	"fallwatch/internal/service/websocket"
)

type App struct {
	config          *config.Config
	logger          *logger.Logger
	metrics         *metrics.Metrics
	detectorService *ai.DetectorService
	hubService      *websocket.HubService
	notifier        *notify.MQTTNotifier
	manager         *service.Manager
}

// NewApp wires the pipeline. It fails if the model cannot be loaded.
func NewApp() (*App, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	log := logger.NewLogger(cfg)
	m := metrics.New()

	source, err := camera.NewSource(cfg, log)
	if err != nil {
		log.Close()
		return nil, err
	}

	detector, err := ai.NewDetectorService(cfg, log)
	if err != nil {
		log.Error("Failed to load model %s: %v", cfg.ModelPath, err)
		log.Close()
		return nil, err
	}

	publisher, err := storage.NewPublisher(cfg, log)
	if err != nil {
		detector.Close()
		log.Close()
		return nil, err
	}

	report, err := storage.NewReportWriter(cfg.ReportFile)
	if err != nil {
		detector.Close()
		log.Close()
		return nil, err
	}

	hub := websocket.NewHubService(log)
	opts := []service.Option{
		service.WithReporter(report),
		service.WithBroadcaster(hub),
	}

	var notifier *notify.MQTTNotifier
	if cfg.MQTTEnabled() {
		notifier = notify.NewMQTTNotifier(cfg, log)
		opts = append(opts, service.WithNotifier(notifier))
	}

	return &App{
		config:          cfg,
		logger:          log,
		metrics:         m,
		detectorService: detector,
		hubService:      hub,
		notifier:        notifier,
		manager:         service.NewManager(source, detector, publisher, m, log, opts...),
	}, nil
}

// Run serves HTTP until SIGINT or SIGTERM, then drains in-flight requests.
func (a *App) Run() error {
	defer a.close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go a.hubService.Run(ctx)
	if a.config.WatchInterval > 0 {
		go a.manager.Watch(ctx, a.config.WatchInterval)
	}

	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", a.config.Port))
	if err != nil {
		return err
	}

	fmt.Printf("🚀 Fall Detection Server\n")
	fmt.Printf("📍 URL: http://localhost:%d\n", a.config.Port)
	fmt.Printf("📷 Camera: %s\n", a.config.CameraURL)
	fmt.Printf("🤖 AI Model: %s (%s)\n", a.config.ModelPath, a.config.DetectorBackend)
	fmt.Printf("📁 Processed: %s\n", a.config.ProcessedDirectory)

	server := newServer(ctx, route.SetupRoutes(a.manager, a.hubService, a.metrics, a.config, a.logger))
	return serve(ctx, server, listener, a.config.ShutdownTimeout, a.logger)
}

// newServer derives every request context from ctx, so cancelling it ends
// long-lived handlers such as the live feed.
func newServer(ctx context.Context, handler http.Handler) *http.Server {
	return &http.Server{
		Handler:     handler,
		BaseContext: func(net.Listener) context.Context { return ctx },
	}
}

// serve runs server on listener until ctx ends. Connections still open after
// timeout are closed.
func serve(ctx context.Context, server *http.Server, listener net.Listener, timeout time.Duration, logger *logger.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Serve(listener)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("🛑 Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warning("Graceful shutdown incomplete, closing connections: %v", err)
		server.Close()
	}
	return nil
}

func (a *App) close() {
	if err := a.detectorService.Close(); err != nil {
		a.logger.Warning("Detector close: %v", err)
	}
	if a.notifier != nil {
		a.notifier.Close()
	}
	a.logger.Close()
}

package route

import (
	"net/http"

	"fallwatch/internal/config"
	"fallwatch/internal/handler"
	"fallwatch/internal/logger"
	"fallwatch/internal/metrics"
	"fallwatch/internal/middleware"
	hub "fallwatch/internal/service/websocket"
)

// SetupRoutes registers the pages, the detection endpoints, the viewer
// socket and the operational endpoints, and tags every request with an ID.
func SetupRoutes(pipeline handler.Pipeline, hubService *hub.HubService, metrics *metrics.Metrics,
	cfg *config.Config, logger *logger.Logger) http.Handler {
	mux := http.NewServeMux()

	// Pages
	mux.HandleFunc("GET /{$}", handler.PageHandler("index.html"))
	mux.HandleFunc("GET /live", handler.PageHandler("live.html"))

	// Detection
	mux.HandleFunc("GET /process", handler.ProcessHandler(pipeline, cfg, logger))
	mux.HandleFunc("GET /processed/{filename}", handler.ProcessedImageHandler(cfg))
	mux.HandleFunc("GET /live_feed", handler.LiveFeedHandler(pipeline, cfg, metrics, logger))
	mux.HandleFunc("GET /ws", handler.EventsWebsocketHandler(hubService, logger))

	// Operations
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET /logs/{level}", handler.ShowLogsHandler(logger))
	mux.HandleFunc("POST /logs/{level}/clear", handler.ClearLogsHandler(logger))

	return middleware.RequestID(logger, mux)
}

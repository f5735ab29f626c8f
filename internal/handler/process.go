package handler

import (
	"context"
	"net/http"
	"net/url"

	"fallwatch/internal/config"
	"fallwatch/internal/dto"
	"fallwatch/internal/logger"
	"fallwatch/internal/middleware"
	"fallwatch/internal/model"
)

// Pipeline is the part of the service manager the HTTP layer drives.
type Pipeline interface {
	Process(ctx context.Context) (*model.DetectionResult, error)
	StreamFrame(ctx context.Context) ([]byte, error)
}

// ProcessHandler captures one frame, runs detection and returns the verdict
// with an absolute URL of the annotated image.
func ProcessHandler(pipeline Pipeline, cfg *config.Config, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID := middleware.RequestIDFromContext(r.Context())

		result, err := pipeline.Process(r.Context())
		if err != nil {
			status, message := errorStatus(err)
			logger.Error("[%s] Processing failed: %v", requestID, err)
			writeError(w, status, message)
			return
		}

		writeJSON(w, http.StatusOK, dto.ProcessResponse{
			FallDetected:   result.FallDetected,
			Confidence:     result.Confidence,
			ProcessedImage: absoluteURL(r, cfg.PublicURL, "/processed/"+url.PathEscape(result.ProcessedImage)),
		})
	}
}

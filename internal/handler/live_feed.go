package handler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"fallwatch/internal/config"
	"fallwatch/internal/logger"
	"fallwatch/internal/metrics"
	"fallwatch/internal/middleware"
)

const frameBoundary = "frame"

// LiveFeedHandler streams annotated frames as multipart/x-mixed-replace until
// the client disconnects. A failed tick is skipped, the stream stays open.
func LiveFeedHandler(pipeline Pipeline, cfg *config.Config, metrics *metrics.Metrics, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "Streaming not supported", http.StatusInternalServerError)
			return
		}

		ctx := r.Context()
		requestID := middleware.RequestIDFromContext(ctx)

		w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary="+frameBoundary)
		w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
		w.Header().Set("Pragma", "no-cache")
		w.WriteHeader(http.StatusOK)
		flusher.Flush()

		metrics.StreamClients.Add(1)
		defer metrics.StreamClients.Add(-1)

		logger.Info("📺 Live feed client connected [%s]", requestID)
		defer logger.Info("📺 Live feed client disconnected [%s]", requestID)

		for {
			if ctx.Err() != nil {
				return
			}

			frame, err := pipeline.StreamFrame(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				metrics.StreamSkipped.Add(1)
				logger.Warning("[%s] Live feed frame skipped: %v", requestID, err)
				if !sleepContext(ctx, cfg.StreamRetryDelay) {
					return
				}
				continue
			}

			if err := writeFramePart(w, frame); err != nil {
				return
			}
			flusher.Flush()
			metrics.StreamFrames.Add(1)
		}
	}
}

// writeFramePart writes one JPEG as a multipart part.
func writeFramePart(w io.Writer, jpeg []byte) error {
	if _, err := fmt.Fprintf(w, "--%s\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", frameBoundary, len(jpeg)); err != nil {
		return err
	}
	if _, err := w.Write(jpeg); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\r\n")
	return err
}

// sleepContext waits for d and reports false if ctx ended first.
func sleepContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

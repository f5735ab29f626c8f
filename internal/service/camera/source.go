package camera

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"fallwatch/internal/config"
	"fallwatch/internal/logger"
	"fallwatch/internal/model"
	"fallwatch/internal/service/storage"
)

// maxFrameSize caps a single camera response.
const maxFrameSize = 16 << 20

// Source pulls still frames from the camera's capture endpoint.
type Source struct {
	url    string
	client *http.Client
	namer  *storage.Namer
	logger *logger.Logger
}

// NewSource creates a Source that persists captures under the uploads directory.
func NewSource(config *config.Config, logger *logger.Logger) (*Source, error) {
	namer, err := storage.NewNamer(config.UploadDirectory, "frame")
	if err != nil {
		return nil, err
	}

	return &Source{
		url:    config.CameraURL,
		client: &http.Client{Timeout: config.CaptureTimeout},
		namer:  namer,
		logger: logger,
	}, nil
}

// Fetch downloads one frame into memory.
// Every failure is reported as model.ErrCaptureFailed.
func (s *Source) Fetch(ctx context.Context) (*model.Frame, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrCaptureFailed, err)
	}

	start := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrCaptureFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%w: camera responded %s", model.ErrCaptureFailed, resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFrameSize+1))
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %v", model.ErrCaptureFailed, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: camera returned an empty body", model.ErrCaptureFailed)
	}
	if len(data) > maxFrameSize {
		return nil, fmt.Errorf("%w: frame exceeds %d bytes", model.ErrCaptureFailed, maxFrameSize)
	}

	s.logger.Info("📷 Fetched %d bytes from camera in %v", len(data), time.Since(start).Round(time.Millisecond))
	return &model.Frame{Data: data, CapturedAt: start}, nil
}

// Capture fetches a frame and writes it under the uploads directory.
// Nothing is written when the fetch fails.
func (s *Source) Capture(ctx context.Context) (*model.Frame, error) {
	frame, err := s.Fetch(ctx)
	if err != nil {
		return nil, err
	}

	name, path := s.namer.Next()
	if err := os.WriteFile(path, frame.Data, 0644); err != nil {
		return nil, fmt.Errorf("%w: saving %s: %v", model.ErrCaptureFailed, name, err)
	}

	frame.Name = name
	frame.Path = path
	return frame, nil
}

package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"fallwatch/internal/dto"
	"fallwatch/internal/logger"
	"fallwatch/internal/metrics"
	"fallwatch/internal/model"
	"fallwatch/internal/service/classifier"
	"fallwatch/internal/service/notify"
	"fallwatch/internal/service/storage"
)

// FrameSource fetches frames from the camera.
type FrameSource interface {
	Fetch(ctx context.Context) (*model.Frame, error)
	Capture(ctx context.Context) (*model.Frame, error)
}

// Detector runs the fall model.
type Detector interface {
	DetectFromPath(ctx context.Context, path string) (*model.Inference, error)
	DetectFromBuffer(ctx context.Context, frame []byte) (*model.AnnotatedFrame, error)
}

// Publisher moves an annotated output into the processed directory.
type Publisher interface {
	Publish(src string) (string, error)
}

type Reporter interface {
	Record(result model.DetectionResult) error
}

type Broadcaster interface {
	Broadcast(message []byte)
}

type Notifier interface {
	Notify(event dto.FallEvent) error
}

// Manager runs the capture, detect, classify, publish pipeline.
type Manager struct {
	source    FrameSource
	detector  Detector
	publisher Publisher
	reporter  Reporter
	hub       Broadcaster
	notifier  Notifier
	metrics   *metrics.Metrics
	logger    *logger.Logger
}

// Option wires an optional collaborator into the Manager.
type Option func(*Manager)

func WithReporter(r Reporter) Option       { return func(m *Manager) { m.reporter = r } }
func WithBroadcaster(b Broadcaster) Option { return func(m *Manager) { m.hub = b } }
func WithNotifier(n Notifier) Option       { return func(m *Manager) { m.notifier = n } }

func NewManager(source FrameSource, detector Detector, publisher Publisher, metrics *metrics.Metrics, logger *logger.Logger, opts ...Option) *Manager {
	m := &Manager{
		source:    source,
		detector:  detector,
		publisher: publisher,
		metrics:   metrics,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Process runs one single-shot pipeline: capture to disk, detect from the
// saved file, classify and publish the annotated copy. The processed image
// exists on disk when Process returns successfully.
func (m *Manager) Process(ctx context.Context) (*model.DetectionResult, error) {
	return m.process(ctx, dto.SourceSnapshot)
}

func (m *Manager) process(ctx context.Context, source string) (*model.DetectionResult, error) {
	frame, err := m.source.Capture(ctx)
	if err != nil {
		m.metrics.CaptureFailures.Add(1)
		return nil, err
	}
	m.metrics.Captures.Add(1)

	start := time.Now()
	inference, err := m.detector.DetectFromPath(ctx, frame.Path)
	if err != nil {
		m.countDetectFailure(err)
		return nil, fmt.Errorf("detecting %s: %w", frame.Name, err)
	}
	m.metrics.ObserveInference(time.Since(start))

	fallDetected, confidence := classifier.Classify(inference.Detections)

	processed, err := m.publisher.Publish(inference.OutputPath)
	if err != nil {
		m.metrics.PublishFailures.Add(1)
		return nil, err
	}
	m.metrics.Published.Add(1)

	result := &model.DetectionResult{
		FallDetected:   fallDetected,
		Confidence:     confidence,
		ProcessedImage: processed,
		SourceImage:    frame.Name,
		CapturedAt:     frame.CapturedAt,
		Detections:     len(inference.Detections),
	}

	if fallDetected {
		m.metrics.FallsDetected.Add(1)
		m.logger.Warning("⚠️  Fall detected in %s (%.2f%%)", frame.Name, confidence)
	}

	if m.reporter != nil {
		if err := m.reporter.Record(*result); err != nil {
			m.logger.Error("Failed to write report: %v", err)
		}
	}

	m.emit(dto.FallEvent{
		Source:         source,
		FallDetected:   fallDetected,
		Confidence:     confidence,
		ProcessedImage: processed,
		Timestamp:      frame.CapturedAt,
	})

	return result, nil
}

// StreamFrame runs one live-feed tick: fetch into memory, detect, draw and
// re-encode. Nothing is written to disk.
func (m *Manager) StreamFrame(ctx context.Context) ([]byte, error) {
	frame, err := m.source.Fetch(ctx)
	if err != nil {
		m.metrics.CaptureFailures.Add(1)
		return nil, err
	}
	m.metrics.Captures.Add(1)

	start := time.Now()
	annotated, err := m.detector.DetectFromBuffer(ctx, frame.Data)
	if err != nil {
		m.countDetectFailure(err)
		return nil, err
	}
	m.metrics.ObserveInference(time.Since(start))

	if fallDetected, confidence := classifier.Classify(annotated.Detections); fallDetected {
		m.metrics.FallsDetected.Add(1)
		m.emit(dto.FallEvent{
			Source:       dto.SourceLive,
			FallDetected: true,
			Confidence:   confidence,
			Timestamp:    frame.CapturedAt,
		})
	}

	return annotated.JPEG, nil
}

// Watch runs the single-shot pipeline every interval until ctx is cancelled.
func (m *Manager) Watch(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	m.logger.Info("👀 Watching camera every %v", interval)
	for {
		select {
		case <-ctx.Done():
			m.logger.Info("🛑 Watcher stopped")
			return
		case <-ticker.C:
			result, err := m.process(ctx, dto.SourceWatch)
			if err != nil {
				if ctx.Err() == nil {
					m.logger.Warning("Watch cycle failed: %v", err)
				}
				continue
			}
			m.logger.Info("%s -> %s", result.SourceImage, storage.Describe(*result))
		}
	}
}

func (m *Manager) countDetectFailure(err error) {
	if errors.Is(err, context.Canceled) {
		return
	}
	if errors.Is(err, model.ErrFrameDecode) {
		m.metrics.DecodeFailures.Add(1)
		return
	}
	if errors.Is(err, model.ErrPublishFailed) {
		m.metrics.PublishFailures.Add(1)
		return
	}
	m.metrics.InferenceFailures.Add(1)
}

// emit pushes an event to viewers and, for falls, to the alert channel.
func (m *Manager) emit(event dto.FallEvent) {
	if m.hub != nil {
		if payload, err := json.Marshal(event); err == nil {
			m.hub.Broadcast(payload)
		}
	}

	if m.notifier == nil || !event.FallDetected {
		return
	}
	// The broker round trip must not hold up the request.
	go func() {
		err := m.notifier.Notify(event)
		switch {
		case err == nil:
			m.metrics.AlertsSent.Add(1)
		case errors.Is(err, notify.ErrCoolingDown):
		default:
			m.metrics.AlertsFailed.Add(1)
			m.logger.Warning("Fall alert not delivered: %v", err)
		}
	}()
}

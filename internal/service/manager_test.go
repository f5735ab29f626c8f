package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"fallwatch/internal/config"
	"fallwatch/internal/dto"
	"fallwatch/internal/logger"
	"fallwatch/internal/metrics"
	"fallwatch/internal/model"
	"fallwatch/internal/service/storage"
)

// ========================================
// Fakes
// ========================================

type fakeSource struct {
	dir      string
	err      error
	captures int
}

func (f *fakeSource) Fetch(ctx context.Context) (*model.Frame, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &model.Frame{Data: []byte("jpeg"), CapturedAt: time.Now()}, nil
}

func (f *fakeSource) Capture(ctx context.Context) (*model.Frame, error) {
	frame, err := f.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	f.captures++
	frame.Name = fmt.Sprintf("frame_%d.jpg", f.captures)
	frame.Path = filepath.Join(f.dir, frame.Name)
	if err := os.WriteFile(frame.Path, frame.Data, 0644); err != nil {
		return nil, err
	}
	return frame, nil
}

// fakeDetector writes its "annotated" copy into a run directory, like the real one.
type fakeDetector struct {
	outputDir  string
	detections []model.Detection
	err        error
	skipOutput bool
	runs       int
}

func (f *fakeDetector) DetectFromPath(ctx context.Context, path string) (*model.Inference, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.runs++
	runDir := filepath.Join(f.outputDir, fmt.Sprintf("predict%d", f.runs))
	out := filepath.Join(runDir, filepath.Base(path))
	if !f.skipOutput {
		if err := os.MkdirAll(runDir, 0755); err != nil {
			return nil, err
		}
		if err := os.WriteFile(out, []byte("annotated"), 0644); err != nil {
			return nil, err
		}
	}
	return &model.Inference{Detections: f.detections, OutputPath: out}, nil
}

func (f *fakeDetector) DetectFromBuffer(ctx context.Context, frame []byte) (*model.AnnotatedFrame, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &model.AnnotatedFrame{Detections: f.detections, JPEG: append([]byte("annotated:"), frame...)}, nil
}

type fakeReporter struct {
	results []model.DetectionResult
}

func (f *fakeReporter) Record(result model.DetectionResult) error {
	f.results = append(f.results, result)
	return nil
}

type fakeHub struct {
	mu       sync.Mutex
	messages [][]byte
}

func (f *fakeHub) Broadcast(message []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, message)
}

func (f *fakeHub) events(t *testing.T) []dto.FallEvent {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()

	var events []dto.FallEvent
	for _, m := range f.messages {
		var e dto.FallEvent
		if err := json.Unmarshal(m, &e); err != nil {
			t.Fatalf("broadcast is not a FallEvent: %v", err)
		}
		events = append(events, e)
	}
	return events
}

type fakeNotifier struct {
	sent chan dto.FallEvent
}

func (f *fakeNotifier) Notify(event dto.FallEvent) error {
	f.sent <- event
	return nil
}

// ========================================
// Test Setup Helpers
// ========================================

type testPipeline struct {
	manager   *Manager
	source    *fakeSource
	detector  *fakeDetector
	reporter  *fakeReporter
	hub       *fakeHub
	notifier  *fakeNotifier
	metrics   *metrics.Metrics
	processed string
}

func setupTestPipeline(t *testing.T) *testPipeline {
	t.Helper()

	root := t.TempDir()
	cfg := &config.Config{
		UploadDirectory:         filepath.Join(root, "uploads"),
		ProcessedDirectory:      filepath.Join(root, "processed"),
		DetectorOutputDirectory: filepath.Join(root, "runs", "detect"),
		LogDirectory:            filepath.Join(root, "logs"),
	}
	os.MkdirAll(cfg.UploadDirectory, 0755)

	log := logger.NewLogger(cfg)
	t.Cleanup(func() { log.Close() })

	publisher, err := storage.NewPublisher(cfg, log)
	if err != nil {
		t.Fatalf("Failed to create publisher: %v", err)
	}

	p := &testPipeline{
		source:    &fakeSource{dir: cfg.UploadDirectory},
		detector:  &fakeDetector{outputDir: cfg.DetectorOutputDirectory},
		reporter:  &fakeReporter{},
		hub:       &fakeHub{},
		notifier:  &fakeNotifier{sent: make(chan dto.FallEvent, 10)},
		metrics:   metrics.New(),
		processed: cfg.ProcessedDirectory,
	}
	p.manager = NewManager(p.source, p.detector, publisher, p.metrics, log,
		WithReporter(p.reporter),
		WithBroadcaster(p.hub),
		WithNotifier(p.notifier),
	)
	return p
}

func fall(confidence float64) model.Detection {
	return model.Detection{ClassID: model.FallClassID, Confidence: confidence, Box: image.Rect(10, 10, 50, 50)}
}

// ========================================
// Process Tests
// ========================================

func TestProcess_FallDetected(t *testing.T) {
	p := setupTestPipeline(t)
	p.detector.detections = []model.Detection{fall(0.91), {ClassID: 1, Confidence: 0.99}}

	result, err := p.manager.Process(context.Background())
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	if !result.FallDetected || result.Confidence != 91.0 {
		t.Errorf("result = (%v, %v), expected (true, 91.0)", result.FallDetected, result.Confidence)
	}
	if _, err := os.Stat(filepath.Join(p.processed, result.ProcessedImage)); err != nil {
		t.Errorf("processed image must exist when Process returns: %v", err)
	}
	if result.SourceImage != "frame_1.jpg" {
		t.Errorf("SourceImage = %q", result.SourceImage)
	}
	if len(p.reporter.results) != 1 {
		t.Errorf("report entries = %d, expected 1", len(p.reporter.results))
	}

	events := p.hub.events(t)
	if len(events) != 1 || events[0].Source != dto.SourceSnapshot || !events[0].FallDetected {
		t.Errorf("unexpected broadcast %+v", events)
	}

	select {
	case alert := <-p.notifier.sent:
		if alert.Confidence != 91.0 {
			t.Errorf("alert confidence = %v", alert.Confidence)
		}
	case <-time.After(2 * time.Second):
		t.Error("expected a fall alert")
	}

	if p.metrics.FallsDetected.Load() != 1 || p.metrics.Published.Load() != 1 {
		t.Error("metrics not updated")
	}
}

func TestProcess_NoFall(t *testing.T) {
	p := setupTestPipeline(t)
	p.detector.detections = []model.Detection{{ClassID: 1, Confidence: 0.8}}

	result, err := p.manager.Process(context.Background())
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if result.FallDetected || result.Confidence != 0 {
		t.Errorf("result = (%v, %v), expected (false, 0)", result.FallDetected, result.Confidence)
	}

	events := p.hub.events(t)
	if len(events) != 1 || events[0].FallDetected {
		t.Errorf("viewers should still receive the result, got %+v", events)
	}

	select {
	case alert := <-p.notifier.sent:
		t.Errorf("no alert expected, got %+v", alert)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestProcess_TwoRunsPublishDistinctFiles(t *testing.T) {
	p := setupTestPipeline(t)

	first, err := p.manager.Process(context.Background())
	if err != nil {
		t.Fatalf("first Process failed: %v", err)
	}
	second, err := p.manager.Process(context.Background())
	if err != nil {
		t.Fatalf("second Process failed: %v", err)
	}

	if first.ProcessedImage == second.ProcessedImage {
		t.Fatalf("both runs returned %s", first.ProcessedImage)
	}
	for _, name := range []string{first.ProcessedImage, second.ProcessedImage} {
		if _, err := os.Stat(filepath.Join(p.processed, name)); err != nil {
			t.Errorf("%s missing: %v", name, err)
		}
	}
}

func TestProcess_CaptureFailure(t *testing.T) {
	p := setupTestPipeline(t)
	p.source.err = fmt.Errorf("%w: camera responded 404 Not Found", model.ErrCaptureFailed)

	_, err := p.manager.Process(context.Background())
	if !errors.Is(err, model.ErrCaptureFailed) {
		t.Errorf("error = %v, expected ErrCaptureFailed", err)
	}
	if p.detector.runs != 0 {
		t.Error("detector must not run after a failed capture")
	}
	if p.metrics.CaptureFailures.Load() != 1 {
		t.Error("capture failure not counted")
	}
}

func TestProcess_MissingOutputIsPublishFailure(t *testing.T) {
	p := setupTestPipeline(t)
	p.detector.skipOutput = true

	_, err := p.manager.Process(context.Background())
	if !errors.Is(err, model.ErrPublishFailed) {
		t.Errorf("error = %v, expected ErrPublishFailed", err)
	}
	if len(p.reporter.results) != 0 {
		t.Error("failed runs must not be reported")
	}
}

func TestProcess_DecodeFailure(t *testing.T) {
	p := setupTestPipeline(t)
	p.detector.err = fmt.Errorf("%w: frame_1.jpg", model.ErrFrameDecode)

	_, err := p.manager.Process(context.Background())
	if !errors.Is(err, model.ErrFrameDecode) {
		t.Errorf("error = %v, expected ErrFrameDecode", err)
	}
	if p.metrics.DecodeFailures.Load() != 1 {
		t.Error("decode failure not counted")
	}
}

// ========================================
// StreamFrame Tests
// ========================================

func TestStreamFrame_ReturnsAnnotatedBytes(t *testing.T) {
	p := setupTestPipeline(t)
	p.detector.detections = []model.Detection{fall(0.7)}

	data, err := p.manager.StreamFrame(context.Background())
	if err != nil {
		t.Fatalf("StreamFrame failed: %v", err)
	}
	if string(data) != "annotated:jpeg" {
		t.Errorf("StreamFrame = %q", data)
	}

	entries, _ := os.ReadDir(p.processed)
	if len(entries) != 0 {
		t.Error("stream frames must not be published")
	}

	events := p.hub.events(t)
	if len(events) != 1 || events[0].Source != dto.SourceLive {
		t.Errorf("expected one live fall event, got %+v", events)
	}
}

func TestStreamFrame_PropagatesCaptureFailure(t *testing.T) {
	p := setupTestPipeline(t)
	p.source.err = fmt.Errorf("%w: timeout", model.ErrCaptureFailed)

	if _, err := p.manager.StreamFrame(context.Background()); !errors.Is(err, model.ErrCaptureFailed) {
		t.Errorf("error = %v, expected ErrCaptureFailed", err)
	}
}

// ========================================
// Watch Tests
// ========================================

func TestWatch_RunsUntilCancelled(t *testing.T) {
	p := setupTestPipeline(t)
	p.detector.detections = []model.Detection{fall(0.5)}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.manager.Watch(ctx, 20*time.Millisecond)
		close(done)
	}()

	select {
	case <-p.notifier.sent:
	case <-time.After(2 * time.Second):
		t.Fatal("watcher never produced an alert")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop after cancel")
	}

	for _, e := range p.hub.events(t) {
		if e.Source != dto.SourceWatch {
			t.Errorf("event source = %q, expected %q", e.Source, dto.SourceWatch)
		}
	}
}

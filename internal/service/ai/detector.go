package ai

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"fallwatch/internal/config"
	"fallwatch/internal/logger"
	"fallwatch/internal/model"
	"fallwatch/internal/service/ai/postprocess"

	"gocv.io/x/gocv"
)

// DetectorService owns a fixed pool of inference engines loaded once at startup.
// Each engine runs one inference at a time; callers wait for a free engine.
type DetectorService struct {
	engines    chan Engine
	all        []Engine
	backend    string
	classNames []string
	threshold  float64
	iou        float64
	size       int
	outputDir  string
	logger     *logger.Logger
}

// NewDetectorService loads config.DetectorWorkers copies of the weights.
// Any load failure is returned; the service must not start without a model.
func NewDetectorService(config *config.Config, logger *logger.Logger) (*DetectorService, error) {
	if _, err := os.Stat(config.ModelPath); err != nil {
		return nil, fmt.Errorf("%w: model file %s: %v", model.ErrModelUnavailable, config.ModelPath, err)
	}
	if err := os.MkdirAll(config.DetectorOutputDirectory, 0755); err != nil {
		return nil, fmt.Errorf("failed to create detector output directory: %w", err)
	}

	service := &DetectorService{
		engines:    make(chan Engine, config.DetectorWorkers),
		backend:    config.DetectorBackend,
		classNames: config.ClassNames,
		threshold:  config.ConfidenceThreshold,
		iou:        config.IoUThreshold,
		size:       config.InferenceSize,
		outputDir:  config.DetectorOutputDirectory,
		logger:     logger,
	}

	for i := 0; i < config.DetectorWorkers; i++ {
		engine, err := newEngine(config)
		if err != nil {
			service.Close()
			return nil, err
		}
		service.all = append(service.all, engine)
		service.engines <- engine
	}

	logger.Info("🤖 Loaded %s with %s backend (%d worker(s), input %dpx, threshold %.2f)",
		config.ModelPath, config.DetectorBackend, config.DetectorWorkers, config.InferenceSize, config.ConfidenceThreshold)
	return service, nil
}

// DetectFromPath runs the model over an image file and writes an annotated copy
// into a fresh run directory under the detector output root.
// The returned Inference carries the path of that copy.
func (s *DetectorService) DetectFromPath(ctx context.Context, path string) (*model.Inference, error) {
	mat := gocv.IMRead(path, gocv.IMReadColor)
	defer mat.Close()

	if mat.Empty() {
		return nil, fmt.Errorf("%w: %s", model.ErrFrameDecode, filepath.Base(path))
	}

	detections, err := s.detect(ctx, mat)
	if err != nil {
		return nil, err
	}

	if err := Annotate(&mat, detections, s.classNames); err != nil {
		s.logger.Warning("Failed to annotate %s: %v", filepath.Base(path), err)
	}

	outputPath, err := s.save(path, mat)
	if err != nil {
		return nil, err
	}

	return &model.Inference{Detections: detections, OutputPath: outputPath}, nil
}

// DetectFromBuffer decodes an in-memory JPEG, runs the model, draws the
// detections and re-encodes the frame. Nothing is written to disk.
func (s *DetectorService) DetectFromBuffer(ctx context.Context, frame []byte) (*model.AnnotatedFrame, error) {
	mat, err := gocv.IMDecode(frame, gocv.IMReadColor)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrFrameDecode, err)
	}
	defer mat.Close()

	if mat.Empty() {
		return nil, fmt.Errorf("%w: decoded image is empty", model.ErrFrameDecode)
	}

	detections, err := s.detect(ctx, mat)
	if err != nil {
		return nil, err
	}

	if err := Annotate(&mat, detections, s.classNames); err != nil {
		return nil, err
	}

	encoded, err := EncodeJPEG(mat)
	if err != nil {
		return nil, err
	}

	return &model.AnnotatedFrame{Detections: detections, JPEG: encoded}, nil
}

// detect borrows an engine from the pool for one forward pass.
func (s *DetectorService) detect(ctx context.Context, mat gocv.Mat) ([]model.Detection, error) {
	var engine Engine
	select {
	case engine = <-s.engines:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { s.engines <- engine }()

	start := time.Now()
	output, err := engine.Infer(mat)
	if err != nil {
		return nil, err
	}

	detections := postprocess.Decode(output, postprocess.Options{
		ConfidenceThreshold: s.threshold,
		IoUThreshold:        s.iou,
		InputSize:           s.size,
		FrameWidth:          mat.Cols(),
		FrameHeight:         mat.Rows(),
	})

	s.logger.Info("🔍 %d detection(s) in %v", len(detections), time.Since(start).Round(time.Millisecond))
	return detections, nil
}

// save writes mat as <outputDir>/predict[N]/<base name of source>.
func (s *DetectorService) save(source string, mat gocv.Mat) (string, error) {
	runDir, err := s.nextRunDir()
	if err != nil {
		return "", fmt.Errorf("%w: %v", model.ErrPublishFailed, err)
	}

	outputPath := filepath.Join(runDir, filepath.Base(source))
	if !gocv.IMWrite(outputPath, mat) {
		os.Remove(runDir)
		return "", fmt.Errorf("%w: failed to write %s", model.ErrPublishFailed, outputPath)
	}
	return outputPath, nil
}

// nextRunDir creates the first free run directory: predict, predict2, predict3, ...
func (s *DetectorService) nextRunDir() (string, error) {
	for n := 1; ; n++ {
		name := "predict"
		if n > 1 {
			name = fmt.Sprintf("predict%d", n)
		}

		dir := filepath.Join(s.outputDir, name)
		err := os.Mkdir(dir, 0755)
		if err == nil {
			return dir, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return "", err
		}
	}
}

// Close waits for in-flight inferences to hand their engines back, then
// releases every engine. Later detections wait until their context ends.
func (s *DetectorService) Close() error {
	var firstErr error
	for range s.all {
		engine := <-s.engines
		if err := engine.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.all = nil

	if s.backend == config.BackendONNXRuntime {
		destroyONNXRuntime()
	}
	return firstErr
}

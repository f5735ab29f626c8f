package ai

import (
	"fmt"

	"fallwatch/internal/config"
	"fallwatch/internal/service/ai/postprocess"

	"gocv.io/x/gocv"
)

// Engine runs one forward pass of the YOLO weights over a BGR frame.
// An Engine is not safe for concurrent use.
type Engine interface {
	Infer(frame gocv.Mat) (postprocess.Output, error)
	Close() error
}

func newEngine(cfg *config.Config) (Engine, error) {
	switch cfg.DetectorBackend {
	case "", config.BackendOpenCV:
		return newOpenCVEngine(cfg.ModelPath, cfg.InferenceSize)
	case config.BackendONNXRuntime:
		return newONNXEngine(cfg)
	default:
		return nil, fmt.Errorf("unknown detector backend %q", cfg.DetectorBackend)
	}
}

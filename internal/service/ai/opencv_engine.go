package ai

import (
	"fmt"
	"image"

	"fallwatch/internal/model"
	"fallwatch/internal/service/ai/postprocess"

	"gocv.io/x/gocv"
)

// openCVEngine runs the ONNX export through OpenCV's DNN module.
type openCVEngine struct {
	net  gocv.Net
	size int
}

func newOpenCVEngine(modelPath string, size int) (*openCVEngine, error) {
	net := gocv.ReadNetFromONNX(modelPath)
	if net.Empty() {
		return nil, fmt.Errorf("%w: failed to load network from %s", model.ErrModelUnavailable, modelPath)
	}

	errBackend := net.SetPreferableBackend(gocv.NetBackendDefault)
	errTarget := net.SetPreferableTarget(gocv.NetTargetCPU)
	if errBackend != nil || errTarget != nil {
		net.Close()
		return nil, fmt.Errorf("%w: failed to set preferable backend or target", model.ErrModelUnavailable)
	}

	return &openCVEngine{net: net, size: size}, nil
}

func (e *openCVEngine) Infer(frame gocv.Mat) (postprocess.Output, error) {
	// YOLOv8 expects RGB scaled to [0,1] at a square input.
	blob := gocv.BlobFromImage(frame, 1.0/255.0, image.Pt(e.size, e.size), gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	e.net.SetInput(blob, "")

	output := e.net.Forward("")
	defer output.Close()

	if output.Empty() {
		return postprocess.Output{}, fmt.Errorf("%w: network returned no output", model.ErrModelUnavailable)
	}

	data, err := output.DataPtrFloat32()
	if err != nil {
		return postprocess.Output{}, fmt.Errorf("%w: reading output: %v", model.ErrModelUnavailable, err)
	}

	// The Mat owns data; copy before it is closed.
	values := make([]float32, len(data))
	copy(values, data)

	return postprocess.FromShape(values, output.Size())
}

func (e *openCVEngine) Close() error {
	return e.net.Close()
}

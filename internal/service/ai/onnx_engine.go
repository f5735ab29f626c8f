package ai

import (
	"fmt"
	"sync"

	"fallwatch/internal/config"
	"fallwatch/internal/model"
	"fallwatch/internal/service/ai/postprocess"

	"github.com/nfnt/resize"
	ort "github.com/yalue/onnxruntime_go"
	"gocv.io/x/gocv"
)

var ortEnvironment struct {
	once sync.Once
	err  error
}

// initONNXRuntime initializes the process-wide onnxruntime environment once.
func initONNXRuntime(libraryPath string) error {
	ortEnvironment.once.Do(func() {
		if libraryPath != "" {
			ort.SetSharedLibraryPath(libraryPath)
		}
		ortEnvironment.err = ort.InitializeEnvironment()
	})
	return ortEnvironment.err
}

// onnxEngine runs the ONNX export through onnxruntime with preallocated tensors.
type onnxEngine struct {
	session     *ort.AdvancedSession
	input       *ort.Tensor[float32]
	output      *ort.Tensor[float32]
	outputShape []int
	size        int
}

func newONNXEngine(cfg *config.Config) (*onnxEngine, error) {
	if err := initONNXRuntime(cfg.ONNXRuntimeLibrary); err != nil {
		return nil, fmt.Errorf("%w: failed to initialize onnxruntime: %v", model.ErrModelUnavailable, err)
	}

	size := cfg.InferenceSize
	outputShape, err := modelOutputShape(cfg)
	if err != nil {
		return nil, err
	}

	input, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 3, int64(size), int64(size)))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create input tensor: %v", model.ErrModelUnavailable, err)
	}

	output, err := ort.NewEmptyTensor[float32](ort.NewShape(int64(outputShape[0]), int64(outputShape[1]), int64(outputShape[2])))
	if err != nil {
		input.Destroy()
		return nil, fmt.Errorf("%w: failed to create output tensor: %v", model.ErrModelUnavailable, err)
	}

	session, err := ort.NewAdvancedSession(cfg.ModelPath,
		[]string{cfg.ModelInputName}, []string{cfg.ModelOutputName},
		[]ort.ArbitraryTensor{input}, []ort.ArbitraryTensor{output}, nil)
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, fmt.Errorf("%w: failed to create session: %v", model.ErrModelUnavailable, err)
	}

	return &onnxEngine{
		session:     session,
		input:       input,
		output:      output,
		outputShape: outputShape,
		size:        size,
	}, nil
}

// modelOutputShape reads the output dimensions recorded in the weights file,
// so models with more classes than CLASS_NAMES lists still load.
func modelOutputShape(cfg *config.Config) ([]int, error) {
	_, outputs, err := ort.GetInputOutputInfo(cfg.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read model outputs: %v", model.ErrModelUnavailable, err)
	}

	for _, output := range outputs {
		if output.Name == cfg.ModelOutputName {
			return resolveOutputShape(output.Dimensions, len(cfg.ClassNames), cfg.InferenceSize), nil
		}
	}
	return nil, fmt.Errorf("%w: model has no output named %q", model.ErrModelUnavailable, cfg.ModelOutputName)
}

// resolveOutputShape fills dynamic (non-positive) dimensions from the
// channel-first YOLOv8 layout [1, 4+classes, anchors].
func resolveOutputShape(dims ort.Shape, classes, size int) []int {
	fallback := []int{1, 4 + classes, postprocess.AnchorCount(size)}
	if len(dims) != len(fallback) {
		return fallback
	}

	shape := make([]int, len(dims))
	for i, d := range dims {
		if d > 0 {
			shape[i] = int(d)
		} else {
			shape[i] = fallback[i]
		}
	}
	return shape
}

func (e *onnxEngine) Infer(frame gocv.Mat) (postprocess.Output, error) {
	img, err := frame.ToImage()
	if err != nil {
		return postprocess.Output{}, fmt.Errorf("%w: %v", model.ErrFrameDecode, err)
	}

	resized := resize.Resize(uint(e.size), uint(e.size), img, resize.Bilinear)
	bounds := resized.Bounds()

	// CHW, RGB, scaled to [0,1].
	data := e.input.GetData()
	plane := e.size * e.size
	for y := 0; y < e.size; y++ {
		for x := 0; x < e.size; x++ {
			r, g, b, _ := resized.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			i := y*e.size + x
			data[i] = float32(r>>8) / 255.0
			data[plane+i] = float32(g>>8) / 255.0
			data[2*plane+i] = float32(b>>8) / 255.0
		}
	}

	if err := e.session.Run(); err != nil {
		return postprocess.Output{}, fmt.Errorf("%w: inference failed: %v", model.ErrModelUnavailable, err)
	}

	raw := e.output.GetData()
	values := make([]float32, len(raw))
	copy(values, raw)

	return postprocess.FromShape(values, e.outputShape)
}

func (e *onnxEngine) Close() error {
	err := e.session.Destroy()
	e.input.Destroy()
	e.output.Destroy()
	return err
}

func destroyONNXRuntime() {
	if ort.IsInitialized() {
		ort.DestroyEnvironment()
	}
}

// Package postprocess turns raw YOLOv8 detection head tensors into detections.
package postprocess

import (
	"fmt"
	"image"
	"math"
	"sort"

	"fallwatch/internal/model"
)

// DefaultMaxDetections bounds the detections kept per frame.
const DefaultMaxDetections = 300

// Output is a YOLOv8 detection head: per anchor four box values
// (cx, cy, w, h in model input pixels) followed by one score per class.
type Output struct {
	Data       []float32
	Channels   int
	Anchors    int
	Transposed bool // [anchor][channel] instead of [channel][anchor]
}

// Classes returns the number of class scores per anchor.
func (o Output) Classes() int {
	return o.Channels - 4
}

func (o Output) at(channel, anchor int) float64 {
	if o.Transposed {
		return float64(o.Data[anchor*o.Channels+channel])
	}
	return float64(o.Data[channel*o.Anchors+anchor])
}

// FromShape wraps a flat tensor given its shape, e.g. [1 5 8400] or [1 8400 5].
// The smaller of the two trailing dimensions is taken as the channel axis.
func FromShape(data []float32, shape []int) (Output, error) {
	dims := make([]int, 0, len(shape))
	for i, d := range shape {
		if d == 1 && len(shape)-i > 2 {
			continue
		}
		dims = append(dims, d)
	}
	if len(dims) != 2 {
		return Output{}, fmt.Errorf("unexpected output shape %v", shape)
	}

	out := Output{Data: data, Channels: dims[0], Anchors: dims[1]}
	if dims[0] > dims[1] {
		out = Output{Data: data, Channels: dims[1], Anchors: dims[0], Transposed: true}
	}

	if out.Channels < 5 {
		return Output{}, fmt.Errorf("output shape %v has no class scores", shape)
	}
	if len(data) != out.Channels*out.Anchors {
		return Output{}, fmt.Errorf("output holds %d values, shape %v needs %d", len(data), shape, out.Channels*out.Anchors)
	}
	return out, nil
}

// AnchorCount returns the number of anchors YOLOv8 emits for a square input.
func AnchorCount(inputSize int) int {
	total := 0
	for _, stride := range []int{8, 16, 32} {
		side := inputSize / stride
		total += side * side
	}
	return total
}

type Options struct {
	ConfidenceThreshold float64
	IoUThreshold        float64
	InputSize           int
	FrameWidth          int
	FrameHeight         int
	MaxDetections       int
}

// Decode keeps anchors whose best class score exceeds the threshold, maps their
// boxes back to frame pixels and suppresses overlaps within each class.
// The result is ordered by descending confidence.
func Decode(out Output, opts Options) []model.Detection {
	if opts.InputSize <= 0 || opts.FrameWidth <= 0 || opts.FrameHeight <= 0 {
		return nil
	}

	scaleX := float64(opts.FrameWidth) / float64(opts.InputSize)
	scaleY := float64(opts.FrameHeight) / float64(opts.InputSize)
	bounds := image.Rect(0, 0, opts.FrameWidth, opts.FrameHeight)

	var candidates []model.Detection
	for i := 0; i < out.Anchors; i++ {
		classID, score := -1, 0.0
		for c := 0; c < out.Classes(); c++ {
			if s := out.at(4+c, i); s > score {
				classID, score = c, s
			}
		}
		if classID < 0 || score <= opts.ConfidenceThreshold {
			continue
		}

		cx, cy := out.at(0, i), out.at(1, i)
		w, h := out.at(2, i), out.at(3, i)

		box := image.Rect(
			int(math.Round((cx-w/2)*scaleX)),
			int(math.Round((cy-h/2)*scaleY)),
			int(math.Round((cx+w/2)*scaleX)),
			int(math.Round((cy+h/2)*scaleY)),
		).Intersect(bounds)
		if box.Empty() {
			continue
		}

		candidates = append(candidates, model.Detection{
			ClassID:    classID,
			Confidence: score,
			Box:        box,
		})
	}

	kept := NMS(candidates, opts.IoUThreshold)

	limit := opts.MaxDetections
	if limit <= 0 {
		limit = DefaultMaxDetections
	}
	if len(kept) > limit {
		kept = kept[:limit]
	}
	return kept
}

// NMS performs class-aware non-maximum suppression.
func NMS(detections []model.Detection, iouThreshold float64) []model.Detection {
	sorted := append([]model.Detection(nil), detections...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Confidence > sorted[j].Confidence
	})

	kept := make([]model.Detection, 0, len(sorted))
	for _, candidate := range sorted {
		suppressed := false
		for _, k := range kept {
			if k.ClassID == candidate.ClassID && IoU(k.Box, candidate.Box) > iouThreshold {
				suppressed = true
				break
			}
		}
		if !suppressed {
			kept = append(kept, candidate)
		}
	}
	return kept
}

// IoU returns the intersection over union of two boxes.
func IoU(a, b image.Rectangle) float64 {
	inter := a.Intersect(b)
	if inter.Empty() {
		return 0
	}
	interArea := float64(inter.Dx() * inter.Dy())
	union := float64(a.Dx()*a.Dy()+b.Dx()*b.Dy()) - interArea
	if union <= 0 {
		return 0
	}
	return interArea / union
}

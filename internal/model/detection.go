package model

import (
	"image"
	"time"
)

// FallClassID is the class index the trained weights use for a fallen person.
// It is metadata of the weights file and cannot be derived from the model output.
const FallClassID = 0

// Detection is one object instance found in a frame.
type Detection struct {
	ClassID    int
	Confidence float64 // in [0, 1]
	Box        image.Rectangle
}

// IsFall reports whether the detection belongs to the fall class.
func (d Detection) IsFall() bool {
	return d.ClassID == FallClassID
}

// Inference is the outcome of running the detector over a file on disk.
// OutputPath points at the annotated copy the detector wrote.
type Inference struct {
	Detections []Detection
	OutputPath string
}

// AnnotatedFrame is the outcome of running the detector over an in-memory frame.
type AnnotatedFrame struct {
	Detections []Detection
	JPEG       []byte
}

// DetectionResult is the classified, published outcome of one single-shot run.
type DetectionResult struct {
	FallDetected   bool
	Confidence     float64 // percent, two decimals
	ProcessedImage string  // file name under the processed directory
	SourceImage    string  // file name under the uploads directory
	CapturedAt     time.Time
	Detections     int
}

package ai

import (
	"fmt"
	"image"
	"image/color"

	"fallwatch/internal/model"
	"fallwatch/internal/service/ai/postprocess"

	"gocv.io/x/gocv"
)

var (
	fallColor  = color.RGBA{R: 255, G: 0, B: 0, A: 0}
	otherColor = color.RGBA{R: 0, G: 255, B: 0, A: 0}
)

// Annotate draws a box and a "<class> <confidence>%" label for every detection.
// Falls are red, everything else green.
func Annotate(mat *gocv.Mat, detections []model.Detection, classNames []string) error {
	for _, detection := range detections {
		c := otherColor
		if detection.IsFall() {
			c = fallColor
		}

		if err := gocv.Rectangle(mat, detection.Box, c, 2); err != nil {
			return fmt.Errorf("failed to draw rectangle: %v", err)
		}

		pt := image.Pt(detection.Box.Min.X, detection.Box.Min.Y-10)
		if err := gocv.PutText(mat, postprocess.Label(classNames, detection), pt, gocv.FontHersheySimplex, 0.6, c, 2); err != nil {
			return fmt.Errorf("failed to draw text: %v", err)
		}
	}
	return nil
}

// EncodeJPEG re-encodes mat and returns bytes owned by the caller.
func EncodeJPEG(mat gocv.Mat) ([]byte, error) {
	buf, err := gocv.IMEncode(".jpg", mat)
	if err != nil {
		return nil, fmt.Errorf("failed to encode image: %v", err)
	}
	defer buf.Close()

	encoded := make([]byte, len(buf.GetBytes()))
	copy(encoded, buf.GetBytes())
	return encoded, nil
}

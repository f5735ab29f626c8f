// Package classifier reduces a batch of detections to the fall verdict.
package classifier

import (
	"math"

	"fallwatch/internal/model"
)

// Classify reports whether any detection belongs to the fall class and the
// highest fall confidence as a percentage rounded to two decimals.
// Without a fall detection the confidence is 0.
func Classify(detections []model.Detection) (bool, float64) {
	fallDetected := false
	best := 0.0

	for _, d := range detections {
		if !d.IsFall() {
			continue
		}
		fallDetected = true
		if d.Confidence > best {
			best = d.Confidence
		}
	}

	return fallDetected, Percent(best)
}

// Percent converts a [0,1] confidence into a percentage with two decimals.
func Percent(confidence float64) float64 {
	return math.Round(confidence*100*100) / 100
}

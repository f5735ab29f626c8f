package classifier

import (
	"image"
	"math/rand"
	"testing"

	"fallwatch/internal/model"
)

func det(classID int, confidence float64) model.Detection {
	return model.Detection{ClassID: classID, Confidence: confidence, Box: image.Rect(10, 10, 50, 50)}
}

func TestClassify_Scenarios(t *testing.T) {
	tests := []struct {
		name         string
		detections   []model.Detection
		expectedFall bool
		expectedConf float64
	}{
		{"single fall", []model.Detection{det(0, 0.91)}, true, 91.0},
		{"empty", []model.Detection{}, false, 0.0},
		{"nil", nil, false, 0.0},
		{"other class only", []model.Detection{det(1, 0.8)}, false, 0.0},
		{"max over falls", []model.Detection{det(0, 0.42), det(0, 0.77), det(0, 0.5)}, true, 77.0},
		{"other class ignored for max", []model.Detection{det(1, 0.99), det(0, 0.3)}, true, 30.0},
		{"rounded to two decimals", []model.Detection{det(0, 0.123456)}, true, 12.35},
	}

	for _, tt := range tests {
		fall, conf := Classify(tt.detections)
		if fall != tt.expectedFall || conf != tt.expectedConf {
			t.Errorf("%s: Classify = (%v, %v), expected (%v, %v)", tt.name, fall, conf, tt.expectedFall, tt.expectedConf)
		}
	}
}

func TestClassify_OrderIndependent(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for round := 0; round < 50; round++ {
		detections := make([]model.Detection, rng.Intn(8))
		for i := range detections {
			detections[i] = det(rng.Intn(3), rng.Float64())
		}

		wantFall, wantConf := Classify(detections)

		shuffled := append([]model.Detection(nil), detections...)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

		gotFall, gotConf := Classify(shuffled)
		if gotFall != wantFall || gotConf != wantConf {
			t.Fatalf("round %d: shuffled result (%v, %v) differs from (%v, %v)", round, gotFall, gotConf, wantFall, wantConf)
		}

		anyFall := false
		for _, d := range detections {
			if d.ClassID == model.FallClassID {
				anyFall = true
			}
		}
		if gotFall != anyFall {
			t.Fatalf("round %d: fall_detected = %v, expected %v", round, gotFall, anyFall)
		}
	}
}

func TestPercent(t *testing.T) {
	tests := []struct {
		input    float64
		expected float64
	}{
		{0, 0},
		{1, 100},
		{0.91, 91},
		{0.5, 50},
		{0.87654, 87.65},
	}

	for _, tt := range tests {
		if got := Percent(tt.input); got != tt.expected {
			t.Errorf("Percent(%v) = %v, expected %v", tt.input, got, tt.expected)
		}
	}
}

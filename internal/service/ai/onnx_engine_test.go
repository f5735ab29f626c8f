package ai

import (
	"reflect"
	"testing"

	ort "github.com/yalue/onnxruntime_go"
)

func TestResolveOutputShape(t *testing.T) {
	tests := []struct {
		name     string
		dims     ort.Shape
		classes  int
		expected []int
	}{
		{"model with more classes than configured", ort.NewShape(1, 6, 8400), 1, []int{1, 6, 8400}},
		{"transposed export", ort.NewShape(1, 8400, 5), 1, []int{1, 8400, 5}},
		{"dynamic anchors", ort.NewShape(1, 5, -1), 1, []int{1, 5, 8400}},
		{"dynamic batch and channels", ort.NewShape(-1, -1, 8400), 2, []int{1, 6, 8400}},
		{"unexpected rank", ort.NewShape(1, 5), 1, []int{1, 5, 8400}},
	}

	for _, tt := range tests {
		if got := resolveOutputShape(tt.dims, tt.classes, 640); !reflect.DeepEqual(got, tt.expected) {
			t.Errorf("%s: shape = %v, expected %v", tt.name, got, tt.expected)
		}
	}
}

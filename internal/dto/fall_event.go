package dto

import "time"

// Event sources.
const (
	SourceSnapshot = "snapshot"
	SourceLive     = "live"
	SourceWatch    = "watch"
)

// FallEvent is pushed to WebSocket viewers and published to MQTT.
type FallEvent struct {
	Source         string    `json:"source"`
	FallDetected   bool      `json:"fall_detected"`
	Confidence     float64   `json:"confidence"`
	ProcessedImage string    `json:"processed_image,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

package model

import "time"

// Frame is one raw image fetched from the camera.
// Path and Name are empty until the frame has been persisted under the uploads directory.
type Frame struct {
	Data       []byte
	Name       string
	Path       string
	CapturedAt time.Time
}


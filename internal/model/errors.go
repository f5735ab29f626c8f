package model

import "errors"

var (
	// ErrCaptureFailed covers timeouts, transport faults and non-200 camera responses.
	ErrCaptureFailed = errors.New("capture failed")
	// ErrFrameDecode is returned when frame bytes are not a decodable image.
	ErrFrameDecode = errors.New("frame decode failed")
	// ErrPublishFailed is returned when the annotated output cannot be moved into place.
	ErrPublishFailed = errors.New("publish failed")
	// ErrModelUnavailable is returned when the weights cannot be loaded or run.
	ErrModelUnavailable = errors.New("model unavailable")
)

package dto

// ProcessResponse is the JSON body of a successful single-shot run.
type ProcessResponse struct {
	FallDetected   bool    `json:"fall_detected"`
	Confidence     float64 `json:"confidence"`
	ProcessedImage string  `json:"processed_image"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

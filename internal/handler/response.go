package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"fallwatch/internal/dto"
	"fallwatch/internal/model"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, dto.ErrorResponse{Error: message})
}

// errorStatus maps pipeline failures onto an HTTP status and a client-facing message.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, model.ErrCaptureFailed), errors.Is(err, model.ErrFrameDecode):
		return http.StatusInternalServerError, "Failed to capture image from camera"
	case errors.Is(err, model.ErrPublishFailed):
		return http.StatusInternalServerError, "Failed to publish processed image"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "Request cancelled"
	default:
		return http.StatusInternalServerError, "Detection failed"
	}
}

// absoluteURL builds a client-reachable URL for path, preferring the configured
// public base and falling back to the request's scheme and host.
func absoluteURL(r *http.Request, publicURL, path string) string {
	if publicURL != "" {
		return publicURL + path
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = strings.TrimSpace(strings.Split(proto, ",")[0])
	}

	host := r.Host
	if forwarded := r.Header.Get("X-Forwarded-Host"); forwarded != "" {
		host = strings.TrimSpace(strings.Split(forwarded, ",")[0])
	}

	return scheme + "://" + host + path
}

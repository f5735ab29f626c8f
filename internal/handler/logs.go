package handler

import (
	"net/http"
	"os"
	"path/filepath"

	"fallwatch/internal/logger"
)

// ShowLogsHandler serves info.log, warning.log or error.log as text/plain.
func ShowLogsHandler(log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filename := r.PathValue("level") + ".log"
		if !logger.IsLevelFile(filename) {
			http.NotFound(w, r)
			return
		}

		filePath := filepath.Join(log.Dir(), filename)
		if _, err := os.Stat(filePath); os.IsNotExist(err) {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte("Log file not found: " + filename))
			return
		}

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")
		http.ServeFile(w, r, filePath)
	}
}

// ClearLogsHandler truncates one level file.
func ClearLogsHandler(log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filename := r.PathValue("level") + ".log"
		if !logger.IsLevelFile(filename) {
			http.NotFound(w, r)
			return
		}

		if err := log.CleanLogs(filename); err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to clear "+filename)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

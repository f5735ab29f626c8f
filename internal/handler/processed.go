package handler

import (
	"net/http"
	"os"

	"fallwatch/internal/config"
	"fallwatch/internal/service/storage"
)

// ProcessedImageHandler serves a published image by file name.
func ProcessedImageHandler(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path, ok := storage.ResolveName(cfg.ProcessedDirectory, r.PathValue("filename"))
		if !ok {
			http.NotFound(w, r)
			return
		}

		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			http.NotFound(w, r)
			return
		}

		http.ServeFile(w, r, path)
	}
}

package handler

import (
	"embed"
	"net/http"
)

//go:embed static/*.html
var pages embed.FS

// PageHandler serves one embedded HTML page.
func PageHandler(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		content, err := pages.ReadFile("static/" + name)
		if err != nil {
			http.NotFound(w, r)
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(content)
	}
}

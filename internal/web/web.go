// Package web serves the embed and login pages with their static assets.
package web

import (
	"embed"
	"io/fs"
	"net/http"

	"github.com/go-chi/chi/v5"
)

//go:embed static
var assets embed.FS

// Handler serves the bundled pages.
type Handler struct {
	static fs.FS
}

func New() *Handler {
	sub, err := fs.Sub(assets, "static")
	if err != nil {
		panic(err)
	}
	return &Handler{static: sub}
}

// Register registers the page and asset routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/", h.page("index.html"))
	r.Get("/login", h.page("login.html"))
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServerFS(h.static)))
}

func (h *Handler) page(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := fs.ReadFile(h.static, name)
		if err != nil {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(body)
	}
}

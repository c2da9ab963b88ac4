package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// File serves /file=<path> for paths inside the store. The prediction
// backend fetches uploads through this route.
func (a *App) File(w http.ResponseWriter, r *http.Request) {
	ref := chi.URLParam(r, "*")
	if a.Store == nil || ref == "" {
		a.error(w, http.StatusNotFound, "not_found", "file not found")
		return
	}
	path, err := a.Store.Resolve(ref)
	if err != nil {
		a.error(w, http.StatusNotFound, "not_found", "file not found")
		return
	}
	w.Header().Set("Cache-Control", "private, max-age=3600")
	http.ServeFile(w, r, path)
}

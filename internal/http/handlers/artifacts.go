package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"perfumevisual/internal/storage"
)

// Image serves a generated image, falling back to the source folder.
func (a *App) Image(w http.ResponseWriter, r *http.Request) {
	a.serve(w, r, chi.URLParam(r, "name"), a.Generated, a.Sources)
}

// Video serves a rendered clip.
func (a *App) Video(w http.ResponseWriter, r *http.Request) {
	a.serve(w, r, chi.URLParam(r, "name"), a.Videos)
}

func (a *App) serve(w http.ResponseWriter, r *http.Request, name string, stores ...*storage.FileStore) {
	for _, store := range stores {
		if store == nil || !store.Exists(name) {
			continue
		}
		path, err := store.Path(name)
		if err != nil {
			break
		}
		http.ServeFile(w, r, path)
		return
	}
	a.error(w, http.StatusNotFound, "not_found", "file not found")
}

package handlers

import (
	"context"
	"net/http"

	"perfumevisual/internal/imagesearch"
)

// ImageSearcher looks up product photos.
type ImageSearcher interface {
	HasCredentials() bool
	Search(ctx context.Context, brand, name string) (*imagesearch.Result, error)
}

type searchImageRequest struct {
	Brand       string `json:"brand"`
	PerfumeName string `json:"perfume_name"`
}

// SearchImage finds the best product photo for a perfume.
func (a *App) SearchImage(w http.ResponseWriter, r *http.Request) {
	var req searchImageRequest
	if err := a.decode(w, r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	if a.Search == nil {
		a.error(w, http.StatusInternalServerError, "not_configured", "image search is not configured")
		return
	}
	res, err := a.Search.Search(r.Context(), req.Brand, req.PerfumeName)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{
		"success":     true,
		"image_url":   res.ImageURL,
		"thumbnail":   res.Thumbnail,
		"title":       res.Title,
		"source":      res.Source,
		"total_found": res.TotalFound,
		"score":       res.Score,
	})
}

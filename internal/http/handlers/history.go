package handlers

import (
	"fmt"
	"net/http"
	"path/filepath"

	"github.com/go-chi/chi/v5"

	"perfumevisual/internal/domain"
	"perfumevisual/internal/pipeline"
	"perfumevisual/pkg/zip"
)

// ListHistory returns every generation record, newest last.
func (a *App) ListHistory(w http.ResponseWriter, r *http.Request) {
	records, err := a.History.List(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if records == nil {
		records = []domain.GenerationRecord{}
	}
	a.json(w, http.StatusOK, records)
}

// HistoryBundle streams a zip with the source and generated images of one run.
func (a *App) HistoryBundle(w http.ResponseWriter, r *http.Request) {
	ts := chi.URLParam(r, "timestamp")
	rec, err := a.History.Get(r.Context(), ts)
	if err != nil {
		a.fail(w, r, err)
		return
	}

	var assets []zip.Asset
	add := func(data []byte, err error, name string) {
		if err != nil || len(data) == 0 {
			return
		}
		assets = append(assets, zip.Asset{Filename: name, MIME: http.DetectContentType(data), Data: data})
	}
	if rec.OriginalImage != "" {
		data, err := a.Sources.Read(rec.OriginalImage)
		add(data, err, rec.OriginalImage)
	}
	if rec.FinalImage != "" {
		nobg := pipeline.NobgNameFor(rec.FinalImage)
		data, err := a.Generated.Read(nobg)
		add(data, err, nobg)
		data, err = a.Generated.Read(rec.FinalImage)
		add(data, err, rec.FinalImage)
	}
	if len(assets) == 0 {
		a.fail(w, r, fmt.Errorf("%w: no stored images for %s", domain.ErrArtifactNotFound, ts))
		return
	}

	archive, err := zip.ArchiveAssets(assets)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	name := "generation_" + filepath.Base(ts) + ".zip"
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(archive)
}

package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"perfumevisual/internal/domain"
	"perfumevisual/internal/infra"
	"perfumevisual/internal/pipeline"
	"perfumevisual/internal/storage"
)

const maxBodyBytes = 1 << 20

// App carries the collaborators shared by every handler.
type App struct {
	Pipeline  *pipeline.Pipeline
	Products  domain.ProductRepository
	Settings  domain.SettingsRepository
	History   domain.HistoryStore
	Sources   *storage.FileStore
	Generated *storage.FileStore
	Videos    *storage.FileStore
	Search    ImageSearcher
	Config    *infra.Config
	Logger    *infra.Logger
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, errCode, message string) {
	a.json(w, code, map[string]any{
		"success": false,
		"error":   errCode,
		"message": message,
	})
}

// fail maps a pipeline error onto the response envelope.
func (a *App) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := domain.HTTPStatus(err)
	code := "internal"
	switch {
	case status == http.StatusBadRequest:
		code = "bad_request"
	case status == http.StatusNotFound:
		code = "not_found"
	case domain.IsNotConfigured(err):
		code = "not_configured"
	case status == http.StatusBadGateway:
		code = "upstream_failed"
	}
	log := infra.LoggerOrDiscard(a.Logger)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("path", r.URL.Path).Int("status", status).Msg("http: request failed")
	} else {
		log.Debug().Err(err).Str("path", r.URL.Path).Int("status", status).Msg("http: request rejected")
	}
	a.error(w, status, code, err.Error())
}

// decode reads a JSON body into v.
func (a *App) decode(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return fmt.Errorf("%w: body exceeds %d bytes", domain.ErrInvalidRequest, maxBodyBytes)
		}
		return fmt.Errorf("%w: invalid json payload", domain.ErrInvalidRequest)
	}
	return nil
}

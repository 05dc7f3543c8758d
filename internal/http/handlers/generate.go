package handlers

import (
	"net/http"

	"perfumevisual/internal/domain"
	"perfumevisual/internal/pipeline"
)

type generateRequest struct {
	Brand            string `json:"brand"`
	PerfumeName      string `json:"perfume_name"`
	Description      string `json:"description"`
	ImageURL         string `json:"image_url"`
	ImagePath        string `json:"image_path"`
	PromptBackground string `json:"prompt_background"`
	PromptStylize    string `json:"prompt_stylize"`
	ProductID        int64  `json:"product_id"`
}

// Generate runs the image pipeline synchronously.
func (a *App) Generate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := a.decode(w, r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	res, err := a.Pipeline.Generate(r.Context(), domain.GenerationRequest{
		Brand:            req.Brand,
		Name:             req.PerfumeName,
		Description:      req.Description,
		ImagePath:        req.ImagePath,
		ImageURL:         req.ImageURL,
		PromptBackground: req.PromptBackground,
		PromptStylize:    req.PromptStylize,
		ProductID:        req.ProductID,
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	message := "Image generated successfully"
	if res.RequiresManualProcessing {
		message = a.Pipeline.EditorName() + " image provider is not configured"
	}
	a.json(w, http.StatusOK, map[string]any{"success": true, "message": message, "data": res})
}

type completeRequest struct {
	Timestamp      string `json:"timestamp"`
	FinalImagePath string `json:"final_image_path"`
}

// CompleteGeneration records the result of a manually processed generation.
func (a *App) CompleteGeneration(w http.ResponseWriter, r *http.Request) {
	var req completeRequest
	if err := a.decode(w, r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	if err := a.Pipeline.CompleteGeneration(r.Context(), req.Timestamp, req.FinalImagePath); err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"success": true})
}

type saveMainImageRequest struct {
	ImageURL  string `json:"image_url"`
	ProductID int64  `json:"product_id"`
	Brand     string `json:"brand"`
	Name      string `json:"name"`
}

// SaveMainImage stores a catalog photo as the product's main image.
func (a *App) SaveMainImage(w http.ResponseWriter, r *http.Request) {
	var req saveMainImageRequest
	if err := a.decode(w, r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	name, err := a.Pipeline.SaveMainImage(r.Context(), pipeline.SaveMainImageRequest{
		ImageURL:  req.ImageURL,
		ProductID: req.ProductID,
		Brand:     req.Brand,
		Name:      req.Name,
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"success": true, "image_path": name, "message": "Main image saved successfully"})
}

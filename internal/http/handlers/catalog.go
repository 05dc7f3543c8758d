package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"perfumevisual/internal/domain"
)

// ListProducts returns the catalog, most recently parsed first.
func (a *App) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := a.Products.List(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if products == nil {
		products = []domain.Product{}
	}
	a.json(w, http.StatusOK, map[string]any{"success": true, "products": products, "count": len(products)})
}

// GetPrompts returns the stored prompt templates.
func (a *App) GetPrompts(w http.ResponseWriter, r *http.Request) {
	prompts, err := a.Settings.Prompts(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"success": true, "prompts": prompts})
}

type savePromptsRequest struct {
	PromptStylize string `json:"prompt_stylize"`
	PromptCaption string `json:"prompt_caption"`
}

// SavePrompts replaces both prompt templates.
func (a *App) SavePrompts(w http.ResponseWriter, r *http.Request) {
	var req savePromptsRequest
	if err := a.decode(w, r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	if strings.TrimSpace(req.PromptStylize) == "" || strings.TrimSpace(req.PromptCaption) == "" {
		a.fail(w, r, fmt.Errorf("%w: prompt_stylize and prompt_caption are required", domain.ErrInvalidRequest))
		return
	}
	prompts := domain.PromptTemplates{Stylize: req.PromptStylize, Caption: req.PromptCaption}
	if err := a.Settings.SavePrompts(r.Context(), prompts); err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"success": true, "message": "Prompts saved", "prompts": prompts})
}

package handlers

import (
	"net/http"

	"perfumevisual/internal/pipeline"
)

type videoRequest struct {
	ImageFilename string `json:"image_filename"`
	Brand         string `json:"brand"`
	PerfumeName   string `json:"perfume_name"`
	Description   string `json:"description"`
	ProductID     int64  `json:"product_id"`
}

// GenerateVideo animates a previously generated bottle.
func (a *App) GenerateVideo(w http.ResponseWriter, r *http.Request) {
	var req videoRequest
	if err := a.decode(w, r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	res, err := a.Pipeline.GenerateVideo(r.Context(), pipeline.VideoRequest{
		ImageFilename: req.ImageFilename,
		Brand:         req.Brand,
		Name:          req.PerfumeName,
		Description:   req.Description,
		ProductID:     req.ProductID,
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"success": true, "message": "Video generated successfully", "data": res})
}

type captionRequest struct {
	Brand       string `json:"brand"`
	PerfumeName string `json:"perfume_name"`
	Description string `json:"description"`
	Prompt      string `json:"prompt"`
}

// GenerateCaption writes a channel post for a product.
func (a *App) GenerateCaption(w http.ResponseWriter, r *http.Request) {
	var req captionRequest
	if err := a.decode(w, r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	caption, err := a.Pipeline.GenerateCaption(r.Context(), pipeline.CaptionRequest{
		Brand:       req.Brand,
		Name:        req.PerfumeName,
		Description: req.Description,
		Prompt:      req.Prompt,
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"success": true, "caption": caption})
}

type publishRequest struct {
	Brand       string `json:"brand"`
	PerfumeName string `json:"perfume_name"`
	Caption     string `json:"caption"`
	MediaFile   string `json:"media_file"`
	MediaType   string `json:"media_type"`
	ProductURL  string `json:"product_url"`
}

// PublishToTelegram posts a stored artifact to the channel.
func (a *App) PublishToTelegram(w http.ResponseWriter, r *http.Request) {
	var req publishRequest
	if err := a.decode(w, r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	res, err := a.Pipeline.Publish(r.Context(), pipeline.PublishRequest{
		Brand:      req.Brand,
		Name:       req.PerfumeName,
		Caption:    req.Caption,
		MediaFile:  req.MediaFile,
		MediaType:  req.MediaType,
		ProductURL: req.ProductURL,
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{
		"success":           true,
		"message":           "Published to Telegram successfully",
		"telegram_response": res.Raw,
	})
}

package handlers

import (
	"net/http"
)

func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Status reports which providers are configured and where artifacts live.
func (a *App) Status(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"status":              "ok",
		"image_provider":      a.Pipeline.EditorName(),
		"image_configured":    a.Pipeline.ImageConfigured(),
		"telegram_configured": a.Pipeline.PublishConfigured(),
		"upload_folder":       a.Sources.BasePath(),
		"generated_folder":    a.Generated.BasePath(),
		"video_folder":        a.Videos.BasePath(),
	}
	if a.Search != nil {
		resp["image_search_configured"] = a.Search.HasCredentials()
	}
	if a.Config != nil {
		resp["openai_configured"] = a.Config.OpenAIConfigured()
		resp["replicate_configured"] = a.Config.ReplicateConfigured()
	}
	a.json(w, http.StatusOK, resp)
}

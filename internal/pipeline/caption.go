package pipeline

import (
	"context"
	"fmt"
	"strings"

	"perfumevisual/internal/domain"
	"perfumevisual/internal/metrics"
	"perfumevisual/internal/stages"
)

// CaptionRequest asks for a channel post about a product.
type CaptionRequest struct {
	Brand       string
	Name        string
	Description string
	Prompt      string
}

// GenerateCaption writes a marketing caption. The template comes from the
// request, then the stored caption prompt, then the built-in default.
func (p *Pipeline) GenerateCaption(ctx context.Context, req CaptionRequest) (string, error) {
	brand := strings.TrimSpace(req.Brand)
	name := strings.TrimSpace(req.Name)
	description := strings.TrimSpace(req.Description)
	if brand == "" || name == "" || description == "" {
		return "", fmt.Errorf("%w: brand, perfume name and description are required", domain.ErrInvalidRequest)
	}
	if !p.captioner.HasCredentials() {
		return "", &domain.ConfigurationError{Stage: domain.StageCaption, Setting: "REPLICATE_API_TOKEN"}
	}
	template := strings.TrimSpace(req.Prompt)
	if template == "" {
		template = p.storedPrompts(ctx).Caption
	}
	caption, err := p.captioner.Generate(ctx, stages.CaptionInput{Brand: brand, Name: name, Description: description, Template: template})
	if err != nil {
		metrics.PipelineRuns.WithLabelValues("caption", "failed").Inc()
		return "", err
	}
	metrics.PipelineRuns.WithLabelValues("caption", "completed").Inc()
	return caption, nil
}

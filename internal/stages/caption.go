package stages

import (
	"context"
	"strings"

	"perfumevisual/internal/domain"
	"perfumevisual/internal/replicate"
)

// CaptionInput carries the product fields and an optional template.
type CaptionInput struct {
	Brand       string
	Name        string
	Description string
	Template    string
}

// Captioner writes marketing copy with the text model.
type Captioner struct {
	runner JobRunner
}

// NewCaptioner constructs the caption stage.
func NewCaptioner(runner JobRunner) *Captioner {
	return &Captioner{runner: runner}
}

// HasCredentials reports whether the job client has a token.
func (c *Captioner) HasCredentials() bool { return c.runner.HasCredentials() }

// Generate returns the trimmed caption text.
func (c *Captioner) Generate(ctx context.Context, in CaptionInput) (string, error) {
	out, err := c.runner.Run(ctx, replicate.Request{
		Stage: domain.StageCaption,
		Model: ModelClaude,
		Input: map[string]any{
			"prompt":     CaptionPrompt(in.Template, in.Brand, in.Name, in.Description),
			"max_tokens": 1024,
		},
	}, replicate.PollText)
	if err != nil {
		return "", err
	}
	caption := strings.TrimSpace(out.Text())
	if caption == "" {
		return "", &domain.JobFailedError{Stage: domain.StageCaption, Reason: "empty caption"}
	}
	return caption, nil
}

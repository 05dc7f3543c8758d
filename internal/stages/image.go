package stages

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"perfumevisual/internal/domain"
	"perfumevisual/internal/infra"
	"perfumevisual/internal/replicate"
	"perfumevisual/internal/transfer"
)

// ReplicateEditor removes backgrounds and stylizes images with the
// nano-banana model.
type ReplicateEditor struct {
	runner     JobRunner
	downloader Downloader
	logger     *infra.Logger
}

// NewReplicateEditor wires the editor to a job runner and a result downloader.
func NewReplicateEditor(runner JobRunner, downloader Downloader, logger *infra.Logger) *ReplicateEditor {
	return &ReplicateEditor{runner: runner, downloader: downloader, logger: infra.LoggerOrDiscard(logger)}
}

// Name identifies the provider in logs and status output.
func (e *ReplicateEditor) Name() string { return "replicate" }

// HasCredentials reports whether the underlying job client has a token.
func (e *ReplicateEditor) HasCredentials() bool { return e.runner.HasCredentials() }

// RemoveBackground keeps only the bottle and returns PNG bytes.
func (e *ReplicateEditor) RemoveBackground(ctx context.Context, in BackgroundInput) ([]byte, error) {
	prompt := strings.TrimSpace(in.Prompt)
	if prompt == "" {
		prompt = BackgroundRemovalPrompt
	}
	return e.edit(ctx, domain.StageBackgroundRemoval, prompt, in.Image, replicate.PollBackgroundRemoval)
}

// Stylize paints a new background behind the bottle.
func (e *ReplicateEditor) Stylize(ctx context.Context, in StylizeInput) ([]byte, error) {
	return e.edit(ctx, domain.StageStylize, StylizePrompt(in.Template, in.Description), in.Image, replicate.PollStylize)
}

func (e *ReplicateEditor) edit(ctx context.Context, stage domain.Stage, prompt string, img Image, policy replicate.PollPolicy) ([]byte, error) {
	if len(img.Data) == 0 {
		return nil, fmt.Errorf("%s: %w: empty input image", stage, domain.ErrInvalidRequest)
	}
	out, err := e.runner.Run(ctx, replicate.Request{
		Stage: stage,
		Model: ModelNanoBanana,
		Input: map[string]any{
			"prompt":        prompt,
			"image_input":   []string{transfer.ToDataURI(img.Data, img.MIME)},
			"aspect_ratio":  "3:4",
			"output_format": "png",
		},
	}, policy)
	if err != nil {
		return nil, err
	}
	resultURL := out.URL()
	if resultURL == "" {
		return nil, &domain.JobFailedError{Stage: stage, Reason: "empty output"}
	}
	data, err := e.downloader.FetchWithTimeout(ctx, resultURL, ImageResultTimeout)
	if err != nil {
		return nil, fmt.Errorf("%s: fetch result: %w", stage, err)
	}
	if len(data) == 0 {
		return nil, errors.New(string(stage) + ": empty result")
	}
	e.logger.Debug().Str("stage", string(stage)).Int("bytes", len(data)).Msg("stages: image edited")
	return data, nil
}

var _ ImageEditor = (*ReplicateEditor)(nil)

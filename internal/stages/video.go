package stages

import (
	"context"
	"fmt"
	"strings"

	"perfumevisual/internal/domain"
	"perfumevisual/internal/infra"
	"perfumevisual/internal/replicate"
	"perfumevisual/internal/transfer"
)

// Concept is the parsed reply of the concept call: a short human-readable
// idea and the technical prompt sent to the video model.
type Concept struct {
	Concept string `json:"concept"`
	Prompt  string `json:"prompt"`
	Raw     string `json:"-"`
}

// ParseConcept splits a "КОНЦЕПЦИЯ: ... ПРОМТ: ..." reply. When either label
// is missing the whole reply becomes the prompt and the concept is a fixed
// placeholder.
func ParseConcept(text string) Concept {
	if strings.Contains(text, conceptLabel) && strings.Contains(text, promptLabel) {
		parts := strings.Split(text, promptLabel)
		return Concept{
			Concept: strings.TrimSpace(strings.ReplaceAll(parts[0], conceptLabel, "")),
			Prompt:  strings.TrimSpace(parts[1]),
			Raw:     text,
		}
	}
	return Concept{Concept: ConceptPlaceholder, Prompt: strings.TrimSpace(text), Raw: text}
}

// VideoSettings is the fixed clip configuration.
type VideoSettings struct {
	Duration    int
	Resolution  string
	FPS         int
	AspectRatio string
	CameraFixed bool
}

// DefaultVideoSettings renders a 5s vertical 480p clip.
var DefaultVideoSettings = VideoSettings{Duration: 5, Resolution: "480p", FPS: 24, AspectRatio: "9:16", CameraFixed: false}

// VideoSynth animates a background-removed bottle.
type VideoSynth struct {
	runner     JobRunner
	downloader Downloader
	settings   VideoSettings
	logger     *infra.Logger
}

// NewVideoSynth constructs the two-step video stage.
func NewVideoSynth(runner JobRunner, downloader Downloader, logger *infra.Logger) *VideoSynth {
	return &VideoSynth{runner: runner, downloader: downloader, settings: DefaultVideoSettings, logger: infra.LoggerOrDiscard(logger)}
}

// HasCredentials reports whether the job client has a token.
func (v *VideoSynth) HasCredentials() bool { return v.runner.HasCredentials() }

// Concept asks the text model for a concept and a video prompt.
func (v *VideoSynth) Concept(ctx context.Context, brand, name, description string) (Concept, error) {
	out, err := v.runner.Run(ctx, replicate.Request{
		Stage: domain.StageVideoConcept,
		Model: ModelClaude,
		Input: map[string]any{
			"prompt":     ConceptPrompt(brand, name, description),
			"max_tokens": 1024,
		},
	}, replicate.PollText)
	if err != nil {
		return Concept{}, err
	}
	concept := ParseConcept(out.Text())
	if concept.Prompt == "" {
		return Concept{}, &domain.JobFailedError{Stage: domain.StageVideoConcept, Reason: "empty concept reply"}
	}
	v.logger.Info().Str("concept", TruncateRunes(concept.Concept, 100)).Msg("stages: video concept ready")
	return concept, nil
}

// Render turns the still image into a clip following prompt and returns MP4 bytes.
func (v *VideoSynth) Render(ctx context.Context, img Image, prompt string) ([]byte, error) {
	if len(img.Data) == 0 {
		return nil, fmt.Errorf("%s: %w: empty input image", domain.StageVideo, domain.ErrInvalidRequest)
	}
	if strings.TrimSpace(prompt) == "" {
		return nil, fmt.Errorf("%s: %w: empty prompt", domain.StageVideo, domain.ErrInvalidRequest)
	}
	out, err := v.runner.Run(ctx, replicate.Request{
		Stage: domain.StageVideo,
		Model: ModelSeedance,
		Input: map[string]any{
			"image":        transfer.ToDataURI(img.Data, img.MIME),
			"prompt":       prompt,
			"duration":     v.settings.Duration,
			"resolution":   v.settings.Resolution,
			"fps":          v.settings.FPS,
			"aspect_ratio": v.settings.AspectRatio,
			"camera_fixed": v.settings.CameraFixed,
		},
	}, replicate.PollVideo)
	if err != nil {
		return nil, err
	}
	videoURL := out.URL()
	if videoURL == "" {
		return nil, &domain.JobFailedError{Stage: domain.StageVideo, Reason: "empty output"}
	}
	data, err := v.downloader.FetchWithTimeout(ctx, videoURL, VideoResultTimeout)
	if err != nil {
		return nil, fmt.Errorf("%s: fetch result: %w", domain.StageVideo, err)
	}
	return data, nil
}

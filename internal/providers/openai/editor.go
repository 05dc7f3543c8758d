// Package openai edits product photos through the OpenAI image edit
// endpoint. It is the alternative to the nano-banana stages.
package openai

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"net/http"
	"os"
	"strings"
	"time"

	goopenai "github.com/sashabaranov/go-openai"
	"golang.org/x/image/draw"

	"perfumevisual/internal/domain"
	"perfumevisual/internal/infra"
	"perfumevisual/internal/stages"
)

// ErrMissingAPIKey indicates that the editor was configured without credentials.
var ErrMissingAPIKey = errors.New("openai: api key is required")

const (
	maxEdge        = 1024
	requestTimeout = 120 * time.Second

	backgroundPrompt = `Remove the background completely, leaving only the perfume bottle.
Make the background pure white or transparent.
Keep the perfume bottle sharp, detailed, and centered.
Preserve all text and labels on the bottle clearly.`

	stylizeDescriptionLimit = 350
)

// Options configures the editor.
type Options struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
	Downloader stages.Downloader
	Logger     *infra.Logger
}

// Editor implements stages.ImageEditor with image edits. The edits endpoint
// serves dall-e-2 when no model is named.
type Editor struct {
	apiKey     string
	client     *goopenai.Client
	downloader stages.Downloader
	logger     *infra.Logger
}

// NewEditor constructs an editor. A missing key is allowed; HasCredentials
// reports it and every call fails with a ConfigurationError.
func NewEditor(opts Options) (*Editor, error) {
	if opts.Downloader == nil {
		return nil, errors.New("openai: downloader is required")
	}
	apiKey := strings.TrimSpace(opts.APIKey)
	cfg := goopenai.DefaultConfig(apiKey)
	if baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/"); baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if opts.HTTPClient != nil {
		cfg.HTTPClient = opts.HTTPClient
	}
	return &Editor{
		apiKey:     apiKey,
		client:     goopenai.NewClientWithConfig(cfg),
		downloader: opts.Downloader,
		logger:     infra.LoggerOrDiscard(opts.Logger),
	}, nil
}

// Name identifies the provider.
func (e *Editor) Name() string { return "openai" }

// HasCredentials reports whether an API key is configured.
func (e *Editor) HasCredentials() bool { return e.apiKey != "" }

// RemoveBackground asks for a plain background behind the bottle.
func (e *Editor) RemoveBackground(ctx context.Context, in stages.BackgroundInput) ([]byte, error) {
	prompt := strings.TrimSpace(in.Prompt)
	if prompt == "" {
		prompt = backgroundPrompt
	}
	return e.edit(ctx, domain.StageBackgroundRemoval, prompt, in.Image)
}

// Stylize asks for an atmospheric background that matches the description.
func (e *Editor) Stylize(ctx context.Context, in stages.StylizeInput) ([]byte, error) {
	var prompt string
	if strings.TrimSpace(in.Template) != "" {
		prompt = stages.ApplyTemplate(in.Template, in.Description, stylizeDescriptionLimit)
	} else {
		prompt = fmt.Sprintf(`Add a beautiful, elegant background that captures the essence and mood of this perfume:

%s

Create sophisticated commercial photography with atmospheric colors and style matching the fragrance notes.
Keep the perfume bottle centered, sharp, and as the main focus. Professional advertising quality.`, stages.TruncateRunes(in.Description, stylizeDescriptionLimit))
	}
	return e.edit(ctx, domain.StageStylize, prompt, in.Image)
}

func (e *Editor) edit(ctx context.Context, stage domain.Stage, prompt string, img stages.Image) ([]byte, error) {
	if !e.HasCredentials() {
		return nil, &domain.ConfigurationError{Stage: stage, Setting: "OPENAI_API_KEY"}
	}
	pngData, err := PrepareImage(img.Data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", stage, domain.ErrInvalidRequest, err)
	}

	// The client library only accepts files for multipart uploads.
	tmp, err := os.CreateTemp("", "perfumevisual-edit-*.png")
	if err != nil {
		return nil, fmt.Errorf("openai: temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()
	if _, err := tmp.Write(pngData); err != nil {
		return nil, fmt.Errorf("openai: write temp file: %w", err)
	}
	if _, err := tmp.Seek(0, 0); err != nil {
		return nil, fmt.Errorf("openai: rewind temp file: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()
	resp, err := e.client.CreateEditImage(ctx, goopenai.ImageEditRequest{
		Image:          tmp,
		Prompt:         prompt,
		N:              1,
		Size:           goopenai.CreateImageSize1024x1024,
		ResponseFormat: goopenai.CreateImageResponseFormatURL,
	})
	if err != nil {
		return nil, classify(stage, err)
	}
	if len(resp.Data) == 0 || strings.TrimSpace(resp.Data[0].URL) == "" {
		return nil, &domain.JobFailedError{Stage: stage, Reason: "openai returned no image"}
	}
	data, err := e.downloader.FetchWithTimeout(ctx, resp.Data[0].URL, stages.ImageResultTimeout)
	if err != nil {
		return nil, fmt.Errorf("%s: fetch result: %w", stage, err)
	}
	e.logger.Debug().Str("stage", string(stage)).Int("bytes", len(data)).Msg("openai: image edited")
	return data, nil
}

func classify(stage domain.Stage, err error) error {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.HTTPStatusCode >= 500 {
			return &domain.TransientNetworkError{Stage: stage, Attempts: 1, StatusCode: apiErr.HTTPStatusCode, Err: err}
		}
		return &domain.PermanentRequestError{Stage: stage, StatusCode: apiErr.HTTPStatusCode, Detail: apiErr.Message}
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) {
		if reqErr.HTTPStatusCode >= 500 {
			return &domain.TransientNetworkError{Stage: stage, Attempts: 1, StatusCode: reqErr.HTTPStatusCode, Err: err}
		}
		return &domain.PermanentRequestError{Stage: stage, StatusCode: reqErr.HTTPStatusCode, Detail: err.Error()}
	}
	return &domain.TransientNetworkError{Stage: stage, Attempts: 1, Err: err}
}

// PrepareImage converts an uploaded photo into the RGBA PNG the edit
// endpoint requires, shrinking it to fit within 1024x1024.
func PrepareImage(data []byte) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w == 0 || h == 0 {
		return nil, errors.New("empty image")
	}
	if w > maxEdge || h > maxEdge {
		if w >= h {
			h = h * maxEdge / w
			w = maxEdge
		} else {
			w = w * maxEdge / h
			h = maxEdge
		}
		if w < 1 {
			w = 1
		}
		if h < 1 {
			h = 1
		}
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	if w == bounds.Dx() && h == bounds.Dy() {
		draw.Draw(dst, dst.Bounds(), src, bounds.Min, draw.Src)
	} else {
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Src, nil)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

var _ stages.ImageEditor = (*Editor)(nil)

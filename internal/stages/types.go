// Package stages implements the generation steps backed by remote AI jobs:
// background removal, stylization, video synthesis and caption writing.
package stages

import (
	"context"
	"time"

	"perfumevisual/internal/replicate"
)

// Model endpoints on the predictions API.
const (
	ModelNanoBanana = "google/nano-banana"
	ModelClaude     = "anthropic/claude-4.5-sonnet"
	ModelSeedance   = "bytedance/seedance-1-pro"
)

// Download timeouts for job results.
const (
	ImageResultTimeout = 60 * time.Second
	VideoResultTimeout = 180 * time.Second
)

// JobRunner submits a remote job and waits for its output.
type JobRunner interface {
	Run(ctx context.Context, req replicate.Request, policy replicate.PollPolicy) (replicate.Output, error)
	HasCredentials() bool
}

// Downloader fetches result artifacts.
type Downloader interface {
	FetchWithTimeout(ctx context.Context, rawURL string, timeout time.Duration) ([]byte, error)
}

// Image is an in-memory artifact handed between stages.
type Image struct {
	Data []byte
	MIME string
}

// BackgroundInput is the input of the background removal stage.
type BackgroundInput struct {
	Image Image
	// Prompt overrides the default instruction when non-empty.
	Prompt string
}

// StylizeInput is the input of the stylization stage.
type StylizeInput struct {
	Image       Image
	Description string
	// Template may contain {DESCRIPTION}; empty selects the default prompt.
	Template string
}

// ImageEditor is the contract implemented by every image provider.
type ImageEditor interface {
	Name() string
	HasCredentials() bool
	RemoveBackground(ctx context.Context, in BackgroundInput) ([]byte, error)
	Stylize(ctx context.Context, in StylizeInput) ([]byte, error)
}

// Package pipeline sequences the generation stages for one request: it
// acquires the source photo, runs the image editor with fallbacks, names and
// stores artifacts, and records the outcome.
package pipeline

import (
	"context"
	"errors"
	"time"

	"perfumevisual/internal/domain"
	"perfumevisual/internal/infra"
	"perfumevisual/internal/stages"
	"perfumevisual/internal/storage"
)

// SourceFetcher downloads source photos by URL.
type SourceFetcher interface {
	Fetch(ctx context.Context, rawURL string) ([]byte, error)
}

// SourceFinder looks up a product photo URL when the request carries none.
type SourceFinder interface {
	Find(ctx context.Context, brand, name string) (string, error)
}

// NoSourceFinder never finds anything.
type NoSourceFinder struct{}

// Find always returns an empty URL.
func (NoSourceFinder) Find(context.Context, string, string) (string, error) { return "", nil }

// VideoStage renders clips from the background-removed artifact.
type VideoStage interface {
	HasCredentials() bool
	Concept(ctx context.Context, brand, name, description string) (stages.Concept, error)
	Render(ctx context.Context, img stages.Image, prompt string) ([]byte, error)
}

// CaptionStage writes marketing copy.
type CaptionStage interface {
	HasCredentials() bool
	Generate(ctx context.Context, in stages.CaptionInput) (string, error)
}

// Options wires the pipeline collaborators.
type Options struct {
	Editor    stages.ImageEditor
	Video     VideoStage
	Captioner CaptionStage
	Publisher Publisher
	Fetcher   SourceFetcher
	Finder    SourceFinder

	Sources   *storage.FileStore
	Generated *storage.FileStore
	Videos    *storage.FileStore

	History  domain.HistoryStore
	Products domain.ProductRepository
	Settings domain.SettingsRepository

	Now    func() time.Time
	Logger *infra.Logger
}

// Pipeline runs the image, video and caption entry points.
type Pipeline struct {
	editor    stages.ImageEditor
	video     VideoStage
	captioner CaptionStage
	publisher Publisher
	fetcher   SourceFetcher
	finder    SourceFinder

	sources   *storage.FileStore
	generated *storage.FileStore
	videos    *storage.FileStore

	history  domain.HistoryStore
	products domain.ProductRepository
	settings domain.SettingsRepository

	now    func() time.Time
	logger *infra.Logger
}

// New validates opts and constructs a Pipeline.
func New(opts Options) (*Pipeline, error) {
	switch {
	case opts.Editor == nil:
		return nil, errors.New("pipeline: image editor is required")
	case opts.Video == nil:
		return nil, errors.New("pipeline: video stage is required")
	case opts.Captioner == nil:
		return nil, errors.New("pipeline: caption stage is required")
	case opts.Fetcher == nil:
		return nil, errors.New("pipeline: fetcher is required")
	case opts.Sources == nil || opts.Generated == nil || opts.Videos == nil:
		return nil, errors.New("pipeline: artifact stores are required")
	case opts.History == nil:
		return nil, errors.New("pipeline: history store is required")
	}
	finder := opts.Finder
	if finder == nil {
		finder = NoSourceFinder{}
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Pipeline{
		editor:    opts.Editor,
		video:     opts.Video,
		captioner: opts.Captioner,
		publisher: opts.Publisher,
		fetcher:   opts.Fetcher,
		finder:    finder,
		sources:   opts.Sources,
		generated: opts.Generated,
		videos:    opts.Videos,
		history:   opts.History,
		products:  opts.Products,
		settings:  opts.Settings,
		now:       now,
		logger:    infra.LoggerOrDiscard(opts.Logger),
	}, nil
}

// EditorName reports the active image provider.
func (p *Pipeline) EditorName() string { return p.editor.Name() }

// PublishConfigured reports whether the channel publisher has credentials.
func (p *Pipeline) PublishConfigured() bool {
	return p.publisher != nil && p.publisher.HasCredentials()
}

// ImageConfigured reports whether the active image provider has credentials.
func (p *Pipeline) ImageConfigured() bool { return p.editor.HasCredentials() }

// storedPrompts reads the settings store, treating failures as "no templates".
func (p *Pipeline) storedPrompts(ctx context.Context) domain.PromptTemplates {
	if p.settings == nil {
		return domain.PromptTemplates{}
	}
	prompts, err := p.settings.Prompts(ctx)
	if err != nil {
		p.logger.Warn().Err(err).Msg("pipeline: load stored prompts")
		return domain.PromptTemplates{}
	}
	return prompts
}

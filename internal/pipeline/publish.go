package pipeline

import (
	"context"
	"fmt"
	"strings"

	"perfumevisual/internal/domain"
	"perfumevisual/internal/publish/telegram"
	"perfumevisual/internal/storage"
)

// Publisher posts media to the channel.
type Publisher interface {
	HasCredentials() bool
	Publish(ctx context.Context, msg telegram.Message) (*telegram.Result, error)
}

// PublishRequest names a stored artifact and the caption to post with it.
type PublishRequest struct {
	Brand      string
	Name       string
	Caption    string
	MediaFile  string
	MediaType  string
	ProductURL string
}

// Publish sends a generated image or video to the channel.
func (p *Pipeline) Publish(ctx context.Context, req PublishRequest) (*telegram.Result, error) {
	if p.publisher == nil || !p.publisher.HasCredentials() {
		return nil, &domain.ConfigurationError{Stage: domain.StagePublish, Setting: "TELEGRAM_BOT_TOKEN/TELEGRAM_CHANNEL_ID"}
	}
	caption := strings.TrimSpace(req.Caption)
	file := strings.TrimSpace(req.MediaFile)
	if strings.TrimSpace(req.Brand) == "" || strings.TrimSpace(req.Name) == "" || caption == "" || file == "" {
		return nil, fmt.Errorf("%w: brand, perfume name, caption and media file are required", domain.ErrInvalidRequest)
	}

	kind := telegram.MediaImage
	candidates := []*storage.FileStore{p.generated, p.sources}
	if strings.EqualFold(strings.TrimSpace(req.MediaType), string(telegram.MediaVideo)) {
		kind = telegram.MediaVideo
		candidates = []*storage.FileStore{p.videos}
	}
	data, err := readFirst(candidates, file)
	if err != nil {
		return nil, err
	}

	return p.publisher.Publish(ctx, telegram.Message{
		Kind:       kind,
		FileName:   file,
		Data:       data,
		Caption:    caption,
		ProductURL: strings.TrimSpace(req.ProductURL),
	})
}

// readFirst returns the first stored copy of name among stores.
func readFirst(stores []*storage.FileStore, name string) ([]byte, error) {
	for _, store := range stores {
		if store.Exists(name) {
			return store.Read(name)
		}
	}
	return nil, fmt.Errorf("%w: media file %s", domain.ErrArtifactNotFound, name)
}

// Package bootstrap builds the service graph shared by the API and the
// catalog worker from a loaded Config.
package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"perfumevisual/internal/adapter/repo"
	"perfumevisual/internal/domain"
	"perfumevisual/internal/history"
	"perfumevisual/internal/imagesearch"
	"perfumevisual/internal/infra"
	"perfumevisual/internal/pipeline"
	"perfumevisual/internal/providers/openai"
	"perfumevisual/internal/publish/telegram"
	"perfumevisual/internal/replicate"
	"perfumevisual/internal/stages"
	"perfumevisual/internal/storage"
	"perfumevisual/internal/transfer"
)

// Services holds the long-lived collaborators.
type Services struct {
	Pipeline  *pipeline.Pipeline
	Products  domain.ProductRepository
	Settings  domain.SettingsRepository
	History   *history.SQLiteStore
	Sources   *storage.FileStore
	Generated *storage.FileStore
	Videos    *storage.FileStore
	Search    *imagesearch.Client

	pool *pgxpool.Pool
}

// Build connects to the stores and wires the pipeline.
func Build(ctx context.Context, cfg *infra.Config, logger *infra.Logger) (*Services, error) {
	log := infra.LoggerOrDiscard(logger)

	sources, err := openStore(cfg.UploadFolder)
	if err != nil {
		return nil, err
	}
	generated, err := openStore(cfg.GeneratedFolder)
	if err != nil {
		return nil, err
	}
	videos, err := openStore(cfg.VideoFolder)
	if err != nil {
		return nil, err
	}

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	runner := infra.NewSQLRunner(pool, *log)

	hist, err := history.NewSQLiteStore(cfg.HistoryDBPath)
	if err != nil {
		pool.Close()
		return nil, err
	}

	httpClient := &http.Client{Timeout: 5 * time.Minute}
	fetcher := transfer.NewFetcher(transfer.Options{HTTPClient: httpClient, Logger: log})
	jobs, err := replicate.NewClient(replicate.Options{
		Token:      cfg.ReplicateAPIToken,
		BaseURL:    cfg.ReplicateBaseURL,
		HTTPClient: httpClient,
		Logger:     log,
	})
	if err != nil {
		pool.Close()
		_ = hist.Close()
		return nil, err
	}

	var editor stages.ImageEditor = stages.NewReplicateEditor(jobs, fetcher, log)
	if cfg.ImageProvider == infra.ImageProviderOpenAI {
		editor, err = openai.NewEditor(openai.Options{
			APIKey:     cfg.OpenAIAPIKey,
			BaseURL:    cfg.OpenAIBaseURL,
			HTTPClient: httpClient,
			Downloader: fetcher,
			Logger:     log,
		})
		if err != nil {
			pool.Close()
			_ = hist.Close()
			return nil, err
		}
	}
	if !editor.HasCredentials() {
		log.Warn().Str("provider", editor.Name()).Msg("bootstrap: image provider credentials missing, generations will be recorded as pending")
	}

	search, err := imagesearch.NewClient(imagesearch.Options{
		APIKey:     cfg.GoogleAPIKey,
		CSEID:      cfg.GoogleCSEID,
		BaseURL:    cfg.GoogleSearchBaseURL,
		HTTPClient: httpClient,
		Logger:     log,
	})
	if err != nil {
		pool.Close()
		_ = hist.Close()
		return nil, err
	}

	products := repo.NewProductRepository(runner)
	settings := repo.NewSettingsRepository(runner)
	p, err := pipeline.New(pipeline.Options{
		Editor:    editor,
		Video:     stages.NewVideoSynth(jobs, fetcher, log),
		Captioner: stages.NewCaptioner(jobs),
		Publisher: telegram.NewClient(telegram.Options{
			Token:     cfg.TelegramBotToken,
			ChannelID: cfg.TelegramChannelID,
			BaseURL:   cfg.TelegramBaseURL,
			Logger:    log,
		}),
		Fetcher:   fetcher,
		Sources:   sources,
		Generated: generated,
		Videos:    videos,
		History:   hist,
		Products:  products,
		Settings:  settings,
		Logger:    log,
	})
	if err != nil {
		pool.Close()
		_ = hist.Close()
		return nil, err
	}

	return &Services{
		Pipeline:  p,
		Products:  products,
		Settings:  settings,
		History:   hist,
		Sources:   sources,
		Generated: generated,
		Videos:    videos,
		Search:    search,
		pool:      pool,
	}, nil
}

// Close releases the database handles.
func (s *Services) Close() {
	if s.History != nil {
		_ = s.History.Close()
	}
	if s.pool != nil {
		s.pool.Close()
	}
}

func openStore(dir string) (*storage.FileStore, error) {
	if !filepath.IsAbs(dir) {
		if abs, err := filepath.Abs(dir); err == nil {
			dir = abs
		}
	}
	store, err := storage.NewFileStore(dir)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: open store %s: %w", dir, err)
	}
	return store, nil
}

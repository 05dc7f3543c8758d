package domain

import "context"

// ProductRepository reads and updates the scraped product catalog.
type ProductRepository interface {
	List(ctx context.Context) ([]Product, error)
	Get(ctx context.Context, id int64) (*Product, error)
	ListPendingStyling(ctx context.Context, limit int, exclude []int64) ([]Product, error)
	UpdateImagePath(ctx context.Context, id int64, filename string) error
	UpdateStyledImagePath(ctx context.Context, id int64, filename string) error
	UpdateVideoPath(ctx context.Context, id int64, filename string) error
}

// SettingsRepository stores the global prompt templates.
type SettingsRepository interface {
	Prompts(ctx context.Context) (PromptTemplates, error)
	SavePrompts(ctx context.Context, prompts PromptTemplates) error
}

// HistoryStore is the append-only generation log.
type HistoryStore interface {
	Append(ctx context.Context, rec GenerationRecord) error
	List(ctx context.Context) ([]GenerationRecord, error)
	Get(ctx context.Context, timestamp string) (*GenerationRecord, error)
	Complete(ctx context.Context, timestamp, finalImagePath string) error
}

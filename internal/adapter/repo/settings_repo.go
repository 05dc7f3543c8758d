package repo

import (
	"context"
	"fmt"

	"perfumevisual/internal/domain"
	"perfumevisual/internal/infra"
	"perfumevisual/internal/sqlinline"
)

// SettingsRepositoryPG implements domain.SettingsRepository on global_settings.
type SettingsRepositoryPG struct {
	db infra.SQLExecutor
}

// NewSettingsRepository constructs a settings repository.
func NewSettingsRepository(db infra.SQLExecutor) *SettingsRepositoryPG {
	return &SettingsRepositoryPG{db: db}
}

// Prompts returns the stored templates. Missing keys come back empty.
func (r *SettingsRepositoryPG) Prompts(ctx context.Context) (domain.PromptTemplates, error) {
	var out domain.PromptTemplates
	rows, err := r.db.Query(ctx, sqlinline.QSelectSettings, []string{domain.SettingPromptStylize, domain.SettingPromptCaption})
	if err != nil {
		return out, fmt.Errorf("settings: select: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var value *string
		if err := rows.Scan(&key, &value); err != nil {
			return out, fmt.Errorf("settings: scan: %w", err)
		}
		if value == nil {
			continue
		}
		switch key {
		case domain.SettingPromptStylize:
			out.Stylize = *value
		case domain.SettingPromptCaption:
			out.Caption = *value
		}
	}
	if err := rows.Err(); err != nil {
		return out, fmt.Errorf("settings: iterate: %w", err)
	}
	return out, nil
}

// SavePrompts upserts both templates.
func (r *SettingsRepositoryPG) SavePrompts(ctx context.Context, prompts domain.PromptTemplates) error {
	for _, kv := range [][2]string{
		{domain.SettingPromptStylize, prompts.Stylize},
		{domain.SettingPromptCaption, prompts.Caption},
	} {
		if _, err := r.db.Exec(ctx, sqlinline.QUpsertSetting, kv[0], kv[1]); err != nil {
			return fmt.Errorf("settings: upsert %s: %w", kv[0], err)
		}
	}
	return nil
}

var _ domain.SettingsRepository = (*SettingsRepositoryPG)(nil)

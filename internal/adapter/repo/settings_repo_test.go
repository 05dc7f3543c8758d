package repo

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"perfumevisual/internal/domain"
)

func TestSettingsPrompts(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(regexp.QuoteMeta("from global_settings")).
		WithArgs([]string{domain.SettingPromptStylize, domain.SettingPromptCaption}).
		WillReturnRows(pgxmock.NewRows([]string{"key", "value"}).
			AddRow(domain.SettingPromptStylize, ptr("Scene: {DESCRIPTION}")).
			AddRow(domain.SettingPromptCaption, nil))

	prompts, err := NewSettingsRepository(mock).Prompts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Scene: {DESCRIPTION}", prompts.Stylize)
	assert.Empty(t, prompts.Caption)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSettingsSavePromptsUpsertsBoth(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(regexp.QuoteMeta("on conflict (key) do update")).
		WithArgs(domain.SettingPromptStylize, "s").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(regexp.QuoteMeta("on conflict (key) do update")).
		WithArgs(domain.SettingPromptCaption, "c").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = NewSettingsRepository(mock).SavePrompts(context.Background(), domain.PromptTemplates{Stylize: "s", Caption: "c"})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSettingsSavePromptsStopsOnError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	boom := errors.New("connection reset")
	mock.ExpectExec(regexp.QuoteMeta("on conflict (key) do update")).
		WithArgs(domain.SettingPromptStylize, "s").
		WillReturnError(boom)

	err = NewSettingsRepository(mock).SavePrompts(context.Background(), domain.PromptTemplates{Stylize: "s", Caption: "c"})
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

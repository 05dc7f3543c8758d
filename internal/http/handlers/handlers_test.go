package handlers

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"perfumevisual/internal/domain"
	"perfumevisual/internal/history"
	"perfumevisual/internal/imagesearch"
	"perfumevisual/internal/pipeline"
	"perfumevisual/internal/publish/telegram"
	"perfumevisual/internal/stages"
	"perfumevisual/internal/storage"
)

var fixedNow = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

const ts = "20240101_120000"

type stubEditor struct{ configured bool }

func (s *stubEditor) Name() string         { return "stub" }
func (s *stubEditor) HasCredentials() bool { return s.configured }
func (s *stubEditor) RemoveBackground(context.Context, stages.BackgroundInput) ([]byte, error) {
	return []byte("nobg"), nil
}
func (s *stubEditor) Stylize(context.Context, stages.StylizeInput) ([]byte, error) {
	return []byte("styled"), nil
}

type stubVideo struct{}

func (stubVideo) HasCredentials() bool { return true }
func (stubVideo) Concept(context.Context, string, string, string) (stages.Concept, error) {
	return stages.Concept{Concept: "idea", Prompt: "slow orbit"}, nil
}
func (stubVideo) Render(context.Context, stages.Image, string) ([]byte, error) {
	return []byte("mp4"), nil
}

type stubCaptioner struct {
	configured bool
	err        error
}

func (s *stubCaptioner) HasCredentials() bool { return s.configured }
func (s *stubCaptioner) Generate(_ context.Context, in stages.CaptionInput) (string, error) {
	return "<b>" + in.Brand + "</b>", s.err
}

type stubFetcher struct{ calls int }

func (s *stubFetcher) Fetch(context.Context, string) ([]byte, error) {
	s.calls++
	return []byte("source"), nil
}

type stubPublisher struct{ sent []telegram.Message }

func (s *stubPublisher) HasCredentials() bool { return true }
func (s *stubPublisher) Publish(_ context.Context, msg telegram.Message) (*telegram.Result, error) {
	s.sent = append(s.sent, msg)
	return &telegram.Result{MessageID: 7, Raw: json.RawMessage(`{"ok":true}`)}, nil
}

type stubProducts struct {
	domain.ProductRepository
	list []domain.Product
	err  error
}

func (s *stubProducts) List(context.Context) ([]domain.Product, error) { return s.list, s.err }
func (s *stubProducts) UpdateStyledImagePath(context.Context, int64, string) error {
	return nil
}
func (s *stubProducts) UpdateVideoPath(context.Context, int64, string) error { return nil }
func (s *stubProducts) UpdateImagePath(context.Context, int64, string) error { return nil }

type stubSearch struct {
	res   *imagesearch.Result
	err   error
	calls []string
}

func (s *stubSearch) HasCredentials() bool { return true }

func (s *stubSearch) Search(_ context.Context, brand, name string) (*imagesearch.Result, error) {
	s.calls = append(s.calls, brand+"|"+name)
	return s.res, s.err
}

type stubSettings struct {
	prompts domain.PromptTemplates
	saved   int
}

func (s *stubSettings) Prompts(context.Context) (domain.PromptTemplates, error) {
	return s.prompts, nil
}
func (s *stubSettings) SavePrompts(_ context.Context, p domain.PromptTemplates) error {
	s.saved++
	s.prompts = p
	return nil
}

type testEnv struct {
	app       *App
	router    http.Handler
	editor    *stubEditor
	captioner *stubCaptioner
	fetcher   *stubFetcher
	publisher *stubPublisher
	products  *stubProducts
	settings  *stubSettings
	search    *stubSearch
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	mkStore := func() *storage.FileStore {
		store, err := storage.NewFileStore(t.TempDir())
		require.NoError(t, err)
		return store
	}
	hist, err := history.NewSQLiteStore(t.TempDir() + "/history.db")
	require.NoError(t, err)
	t.Cleanup(func() { _ = hist.Close() })

	env := &testEnv{
		editor:    &stubEditor{configured: true},
		captioner: &stubCaptioner{configured: true},
		fetcher:   &stubFetcher{},
		publisher: &stubPublisher{},
		products:  &stubProducts{},
		settings:  &stubSettings{},
		search:    &stubSearch{},
	}
	sources, generated, videos := mkStore(), mkStore(), mkStore()
	p, err := pipeline.New(pipeline.Options{
		Editor:    env.editor,
		Video:     stubVideo{},
		Captioner: env.captioner,
		Publisher: env.publisher,
		Fetcher:   env.fetcher,
		Sources:   sources,
		Generated: generated,
		Videos:    videos,
		History:   hist,
		Products:  env.products,
		Settings:  env.settings,
		Now:       func() time.Time { return fixedNow },
	})
	require.NoError(t, err)

	env.app = &App{
		Pipeline:  p,
		Products:  env.products,
		Settings:  env.settings,
		History:   hist,
		Sources:   sources,
		Generated: generated,
		Videos:    videos,
		Search:    env.search,
	}
	r := chi.NewRouter()
	r.Get("/v1/healthz", env.app.Health)
	r.Get("/api/test", env.app.Status)
	r.Post("/api/generate", env.app.Generate)
	r.Post("/api/process-with-mcp", env.app.CompleteGeneration)
	r.Get("/api/history", env.app.ListHistory)
	r.Get("/api/history/{timestamp}/bundle", env.app.HistoryBundle)
	r.Post("/api/generate-video", env.app.GenerateVideo)
	r.Post("/api/generate-tg-caption", env.app.GenerateCaption)
	r.Post("/api/publish-to-telegram", env.app.PublishToTelegram)
	r.Get("/api/products", env.app.ListProducts)
	r.Get("/api/settings/prompts", env.app.GetPrompts)
	r.Post("/api/settings/prompts", env.app.SavePrompts)
	r.Post("/api/search-image", env.app.SearchImage)
	r.Get("/images/{name}", env.app.Image)
	r.Get("/videos/{name}", env.app.Video)
	env.router = r
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

var chanel = map[string]any{
	"brand":        "Chanel",
	"perfume_name": "No 5",
	"description":  "Aldehydic floral",
	"image_url":    "https://cdn.example/chanel.jpg",
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/v1/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestStatusReportsProviders(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/api/test", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "stub", body["image_provider"])
	assert.Equal(t, true, body["image_configured"])
	assert.Equal(t, true, body["telegram_configured"])
	assert.Equal(t, env.app.Generated.BasePath(), body["generated_folder"])
}

func TestGenerateHappyPathAndServing(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/generate", chanel)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])
	data := body["data"].(map[string]any)
	assert.Equal(t, "Chanel_No_5_styled_"+ts+".png", data["final_filename"])
	assert.Equal(t, "/images/Chanel_No_5_styled_"+ts+".png", data["image_url"])
	assert.Equal(t, false, data["requires_manual_processing"])

	img := env.do(t, http.MethodGet, "/images/Chanel_No_5_styled_"+ts+".png", nil)
	assert.Equal(t, http.StatusOK, img.Code)
	assert.Equal(t, "styled", img.Body.String())

	// Source photos are served from the upload folder as a fallback.
	orig := env.do(t, http.MethodGet, "/images/Chanel_No_5_original_"+ts+".jpg", nil)
	assert.Equal(t, http.StatusOK, orig.Code)
	assert.Equal(t, "source", orig.Body.String())

	hist := env.do(t, http.MethodGet, "/api/history", nil)
	require.Equal(t, http.StatusOK, hist.Code)
	var records []domain.GenerationRecord
	require.NoError(t, json.Unmarshal(hist.Body.Bytes(), &records))
	require.Len(t, records, 1)
	assert.Equal(t, domain.GenerationCompleted, records[0].Status)
}

func TestGenerateValidation(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/generate", map[string]any{"brand": "Chanel"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "bad_request", body["error"])

	rec = env.do(t, http.MethodPost, "/api/generate", "{not json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/generate", map[string]any{
		"brand": "Chanel", "perfume_name": "No 5", "description": "floral",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, env.fetcher.calls)
}

func TestGenerateWithoutCredentialsThenComplete(t *testing.T) {
	env := newTestEnv(t)
	env.editor.configured = false

	rec := env.do(t, http.MethodPost, "/api/generate", chanel)
	require.Equal(t, http.StatusOK, rec.Code)
	data := decodeBody(t, rec)["data"].(map[string]any)
	assert.Equal(t, true, data["requires_manual_processing"])
	assert.Equal(t, chanel["image_url"], data["image_url"])
	assert.Zero(t, env.fetcher.calls)

	rec = env.do(t, http.MethodPost, "/api/process-with-mcp", map[string]any{
		"timestamp": ts, "final_image_path": "/tmp/manual.png",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/process-with-mcp", map[string]any{
		"timestamp": "19990101_000000", "final_image_path": "x.png",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHistoryBundle(t *testing.T) {
	env := newTestEnv(t)
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/api/generate", chanel).Code)

	rec := env.do(t, http.MethodGet, "/api/history/"+ts+"/bundle", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/zip", rec.Header().Get("Content-Type"))

	zr, err := zip.NewReader(bytes.NewReader(rec.Body.Bytes()), int64(rec.Body.Len()))
	require.NoError(t, err)
	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	assert.ElementsMatch(t, []string{
		"Chanel_No_5_original_" + ts + ".jpg",
		"Chanel_No_5_nobg_" + ts + ".png",
		"Chanel_No_5_styled_" + ts + ".png",
	}, names)

	missing := env.do(t, http.MethodGet, "/api/history/19990101_000000/bundle", nil)
	assert.Equal(t, http.StatusNotFound, missing.Code)
}

func TestGenerateVideoAndServe(t *testing.T) {
	env := newTestEnv(t)
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/api/generate", chanel).Code)

	rec := env.do(t, http.MethodPost, "/api/generate-video", map[string]any{
		"image_filename": "Chanel_No_5_styled_" + ts + ".png",
		"brand":          "Chanel",
		"perfume_name":   "No 5",
		"description":    "floral",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	data := decodeBody(t, rec)["data"].(map[string]any)
	name := data["video_filename"].(string)
	assert.Equal(t, "Chanel_No_5_seedance_"+ts+".mp4", name)

	clip := env.do(t, http.MethodGet, "/videos/"+name, nil)
	assert.Equal(t, http.StatusOK, clip.Code)
	assert.Equal(t, "mp4", clip.Body.String())

	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/videos/nope.mp4", nil).Code)
}

func TestGenerateCaption(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/api/generate-tg-caption", map[string]any{
		"brand": "Chanel", "perfume_name": "No 5", "description": "floral",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "<b>Chanel</b>", decodeBody(t, rec)["caption"])

	env.captioner.configured = false
	rec = env.do(t, http.MethodPost, "/api/generate-tg-caption", map[string]any{
		"brand": "Chanel", "perfume_name": "No 5", "description": "floral",
	})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "not_configured", decodeBody(t, rec)["error"])
}

func TestGenerateCaptionUpstreamFailure(t *testing.T) {
	env := newTestEnv(t)
	env.captioner.err = &domain.JobFailedError{Stage: domain.StageCaption, Reason: "model error"}
	rec := env.do(t, http.MethodPost, "/api/generate-tg-caption", map[string]any{
		"brand": "Chanel", "perfume_name": "No 5", "description": "floral",
	})
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "upstream_failed", decodeBody(t, rec)["error"])
}

func TestPublishToTelegram(t *testing.T) {
	env := newTestEnv(t)
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/api/generate", chanel).Code)

	rec := env.do(t, http.MethodPost, "/api/publish-to-telegram", map[string]any{
		"brand":        "Chanel",
		"perfume_name": "No 5",
		"caption":      "hello",
		"media_file":   "Chanel_No_5_styled_" + ts + ".png",
		"media_type":   "image",
		"product_url":  "https://shop.example/no5",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	assert.Equal(t, map[string]any{"ok": true}, body["telegram_response"])
	require.Len(t, env.publisher.sent, 1)
	assert.Equal(t, []byte("styled"), env.publisher.sent[0].Data)

	rec = env.do(t, http.MethodPost, "/api/publish-to-telegram", map[string]any{
		"brand": "Chanel", "perfume_name": "No 5", "caption": "hello", "media_file": "missing.png",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListProducts(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/api/products", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"products":[],"count":0}`, rec.Body.String())

	brand := "Dior"
	env.products.list = []domain.Product{{ID: 3, Brand: &brand}}
	body := decodeBody(t, env.do(t, http.MethodGet, "/api/products", nil))
	assert.Equal(t, float64(1), body["count"])

	env.products.err = errors.New("db down")
	rec = env.do(t, http.MethodGet, "/api/products", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal", decodeBody(t, rec)["error"])
}

func TestPromptSettings(t *testing.T) {
	env := newTestEnv(t)
	env.settings.prompts = domain.PromptTemplates{Stylize: "s {DESCRIPTION}", Caption: "c"}

	rec := env.do(t, http.MethodGet, "/api/settings/prompts", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"prompts":{"stylize":"s {DESCRIPTION}","caption":"c"}}`, rec.Body.String())

	rec = env.do(t, http.MethodPost, "/api/settings/prompts", map[string]any{"prompt_stylize": "only one"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, env.settings.saved)

	rec = env.do(t, http.MethodPost, "/api/settings/prompts", map[string]any{
		"prompt_stylize": "new s", "prompt_caption": "new c",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.PromptTemplates{Stylize: "new s", Caption: "new c"}, env.settings.prompts)
}

func TestImageServingRejectsTraversal(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/images/..%2Fsecret", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSearchImage(t *testing.T) {
	env := newTestEnv(t)
	env.search.res = &imagesearch.Result{
		ImageURL:   "https://shop.example/no5.jpg",
		Thumbnail:  "https://shop.example/no5_t.jpg",
		Title:      "Chanel No 5",
		Source:     "Google Custom Search",
		TotalFound: 4,
		Score:      120,
	}

	rec := env.do(t, http.MethodPost, "/api/search-image", map[string]any{"brand": "Chanel", "perfume_name": "No 5"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{
		"success": true,
		"image_url": "https://shop.example/no5.jpg",
		"thumbnail": "https://shop.example/no5_t.jpg",
		"title": "Chanel No 5",
		"source": "Google Custom Search",
		"total_found": 4,
		"score": 120
	}`, rec.Body.String())
	assert.Equal(t, []string{"Chanel|No 5"}, env.search.calls)

	body := decodeBody(t, env.do(t, http.MethodGet, "/api/test", nil))
	assert.Equal(t, true, body["image_search_configured"])
}

func TestSearchImageErrors(t *testing.T) {
	env := newTestEnv(t)

	env.search.err = fmt.Errorf("%w: no images", domain.ErrNotFound)
	rec := env.do(t, http.MethodPost, "/api/search-image", map[string]any{"brand": "Chanel", "perfume_name": "No 5"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	env.search.err = &domain.ConfigurationError{Stage: domain.StageImageSearch, Setting: "GOOGLE_API_KEY/GOOGLE_CSE_ID"}
	rec = env.do(t, http.MethodPost, "/api/search-image", map[string]any{"brand": "Chanel", "perfume_name": "No 5"})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "not_configured", decodeBody(t, rec)["error"])

	env.search.err = &domain.PermanentRequestError{Stage: domain.StageImageSearch, StatusCode: 403, Detail: "quota"}
	rec = env.do(t, http.MethodPost, "/api/search-image", map[string]any{"brand": "Chanel", "perfume_name": "No 5"})
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

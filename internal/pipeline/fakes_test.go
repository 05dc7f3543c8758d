package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"perfumevisual/internal/domain"
	"perfumevisual/internal/publish/telegram"
	"perfumevisual/internal/stages"
	"perfumevisual/internal/storage"
)

var fixedNow = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

type fakeEditor struct {
	configured bool
	nobg       []byte
	nobgErr    error
	styled     []byte
	styledErr  error

	bgCalls      int
	stylizeCalls int
	bgInput      stages.BackgroundInput
	stylizeInput stages.StylizeInput
}

func (f *fakeEditor) Name() string         { return "fake" }
func (f *fakeEditor) HasCredentials() bool { return f.configured }

func (f *fakeEditor) RemoveBackground(_ context.Context, in stages.BackgroundInput) ([]byte, error) {
	f.bgCalls++
	f.bgInput = in
	return f.nobg, f.nobgErr
}

func (f *fakeEditor) Stylize(_ context.Context, in stages.StylizeInput) ([]byte, error) {
	f.stylizeCalls++
	f.stylizeInput = in
	return f.styled, f.styledErr
}

type fakeVideo struct {
	configured bool
	concept    stages.Concept
	conceptErr error
	clip       []byte
	renderErr  error
	rendered   stages.Image
	prompt     string
}

func (f *fakeVideo) HasCredentials() bool { return f.configured }

func (f *fakeVideo) Concept(context.Context, string, string, string) (stages.Concept, error) {
	return f.concept, f.conceptErr
}

func (f *fakeVideo) Render(_ context.Context, img stages.Image, prompt string) ([]byte, error) {
	f.rendered = img
	f.prompt = prompt
	return f.clip, f.renderErr
}

type fakeCaptioner struct {
	configured bool
	caption    string
	err        error
	input      stages.CaptionInput
}

func (f *fakeCaptioner) HasCredentials() bool { return f.configured }

func (f *fakeCaptioner) Generate(_ context.Context, in stages.CaptionInput) (string, error) {
	f.input = in
	return f.caption, f.err
}

type fakeFetcher struct {
	data  []byte
	err   error
	calls []string
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) ([]byte, error) {
	f.calls = append(f.calls, url)
	return f.data, f.err
}

type memHistory struct {
	mu      sync.Mutex
	records []domain.GenerationRecord
}

func (m *memHistory) Append(_ context.Context, rec domain.GenerationRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
	return nil
}

func (m *memHistory) List(context.Context) ([]domain.GenerationRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.GenerationRecord(nil), m.records...), nil
}

func (m *memHistory) Get(_ context.Context, ts string) (*domain.GenerationRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.records {
		if m.records[i].Timestamp == ts {
			rec := m.records[i]
			return &rec, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memHistory) Complete(_ context.Context, ts, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.records {
		if m.records[i].Timestamp == ts {
			m.records[i].Status = domain.GenerationCompleted
			m.records[i].FinalImagePath = path
			return nil
		}
	}
	return domain.ErrNotFound
}

type fakeProducts struct {
	domain.ProductRepository
	err     error
	styled  map[int64]string
	videos  map[int64]string
	images  map[int64]string
	updates int
}

func newFakeProducts() *fakeProducts {
	return &fakeProducts{styled: map[int64]string{}, videos: map[int64]string{}, images: map[int64]string{}}
}

func (f *fakeProducts) UpdateStyledImagePath(_ context.Context, id int64, name string) error {
	f.updates++
	if f.err != nil {
		return f.err
	}
	f.styled[id] = name
	return nil
}

func (f *fakeProducts) UpdateVideoPath(_ context.Context, id int64, name string) error {
	f.updates++
	if f.err != nil {
		return f.err
	}
	f.videos[id] = name
	return nil
}

func (f *fakeProducts) UpdateImagePath(_ context.Context, id int64, name string) error {
	f.updates++
	if f.err != nil {
		return f.err
	}
	f.images[id] = name
	return nil
}

type fakeSettings struct {
	prompts domain.PromptTemplates
	err     error
}

func (f *fakeSettings) Prompts(context.Context) (domain.PromptTemplates, error) {
	return f.prompts, f.err
}

func (f *fakeSettings) SavePrompts(_ context.Context, p domain.PromptTemplates) error {
	f.prompts = p
	return nil
}

type fakePublisher struct {
	configured bool
	sent       []telegram.Message
	err        error
}

func (f *fakePublisher) HasCredentials() bool { return f.configured }

func (f *fakePublisher) Publish(_ context.Context, msg telegram.Message) (*telegram.Result, error) {
	f.sent = append(f.sent, msg)
	if f.err != nil {
		return nil, f.err
	}
	return &telegram.Result{MessageID: 1}, nil
}

type harness struct {
	pipeline  *Pipeline
	editor    *fakeEditor
	video     *fakeVideo
	captioner *fakeCaptioner
	fetcher   *fakeFetcher
	history   *memHistory
	products  *fakeProducts
	settings  *fakeSettings
	publisher *fakePublisher
	sources   *storage.FileStore
	generated *storage.FileStore
	videos    *storage.FileStore
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	mkStore := func() *storage.FileStore {
		store, err := storage.NewFileStore(t.TempDir())
		if err != nil {
			t.Fatalf("NewFileStore: %v", err)
		}
		return store
	}
	h := &harness{
		editor:    &fakeEditor{configured: true, nobg: []byte("nobg-bytes"), styled: []byte("styled-bytes")},
		video:     &fakeVideo{configured: true, concept: stages.Concept{Concept: "idea", Prompt: "orbit shot"}, clip: []byte("mp4")},
		captioner: &fakeCaptioner{configured: true, caption: "Пост"},
		fetcher:   &fakeFetcher{data: []byte("downloaded")},
		history:   &memHistory{},
		products:  newFakeProducts(),
		settings:  &fakeSettings{},
		publisher: &fakePublisher{configured: true},
		sources:   mkStore(),
		generated: mkStore(),
		videos:    mkStore(),
	}
	p, err := New(Options{
		Editor:    h.editor,
		Video:     h.video,
		Captioner: h.captioner,
		Publisher: h.publisher,
		Fetcher:   h.fetcher,
		Sources:   h.sources,
		Generated: h.generated,
		Videos:    h.videos,
		History:   h.history,
		Products:  h.products,
		Settings:  h.settings,
		Now:       func() time.Time { return fixedNow },
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	h.pipeline = p
	return h
}

var errBoom = errors.New("boom")

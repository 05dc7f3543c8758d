package openai

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"perfumevisual/internal/domain"
	"perfumevisual/internal/stages"
)

type stubDownloader struct {
	mu      sync.Mutex
	urls    []string
	timeout time.Duration
	data    []byte
	err     error
}

func (d *stubDownloader) FetchWithTimeout(_ context.Context, url string, timeout time.Duration) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.urls = append(d.urls, url)
	d.timeout = timeout
	return d.data, d.err
}

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.NRGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestPrepareImageFitsWithinLimit(t *testing.T) {
	out, err := PrepareImage(encodePNG(t, 2048, 1024))
	require.NoError(t, err)

	img, format, err := image.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, "png", format)
	assert.Equal(t, 1024, img.Bounds().Dx())
	assert.Equal(t, 512, img.Bounds().Dy())
}

func TestPrepareImageKeepsSmallImages(t *testing.T) {
	out, err := PrepareImage(encodePNG(t, 300, 400))
	require.NoError(t, err)

	cfg, err := png.DecodeConfig(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, 300, cfg.Width)
	assert.Equal(t, 400, cfg.Height)
}

func TestPrepareImageRejectsGarbage(t *testing.T) {
	_, err := PrepareImage([]byte("not an image"))
	require.Error(t, err)
}

func TestEditorWithoutKeyMakesNoCalls(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer srv.Close()

	dl := &stubDownloader{}
	editor, err := NewEditor(Options{BaseURL: srv.URL, Downloader: dl})
	require.NoError(t, err)
	assert.False(t, editor.HasCredentials())

	_, err = editor.RemoveBackground(context.Background(), stages.BackgroundInput{Image: stages.Image{Data: encodePNG(t, 10, 10)}})
	var cfgErr *domain.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, domain.StageBackgroundRemoval, cfgErr.Stage)
	assert.Zero(t, calls)
	assert.Empty(t, dl.urls)
}

func TestEditorStylizeSendsEditAndDownloadsResult(t *testing.T) {
	var (
		gotPath   string
		gotAuth   string
		gotPrompt string
		gotModel  string
		gotN      string
		gotFormat string
		gotSize   string
		gotImage  int
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, r.ParseMultipartForm(8<<20))
		gotPrompt = r.FormValue("prompt")
		gotModel = r.FormValue("model")
		gotSize = r.FormValue("size")
		gotN = r.FormValue("n")
		gotFormat = r.FormValue("response_format")
		if f, _, err := r.FormFile("image"); err == nil {
			data, _ := io.ReadAll(f)
			gotImage = len(data)
			f.Close()
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"created":1,"data":[{"url":"https://cdn.example/result.png"}]}`)
	}))
	defer srv.Close()

	dl := &stubDownloader{data: []byte("styled")}
	editor, err := NewEditor(Options{APIKey: "sk-test", BaseURL: srv.URL, Downloader: dl})
	require.NoError(t, err)
	assert.Equal(t, "openai", editor.Name())

	out, err := editor.Stylize(context.Background(), stages.StylizeInput{
		Image:       stages.Image{Data: encodePNG(t, 64, 64), MIME: "image/png"},
		Description: "Aldehydes and jasmine",
		Template:    "Luxury scene: {DESCRIPTION}",
	})
	require.NoError(t, err)
	assert.Equal(t, []byte("styled"), out)

	assert.Equal(t, "/images/edits", gotPath)
	assert.Equal(t, "Bearer sk-test", gotAuth)
	assert.Equal(t, "Luxury scene: Aldehydes and jasmine", gotPrompt)
	assert.Empty(t, gotModel)
	assert.Equal(t, "1", gotN)
	assert.Equal(t, "url", gotFormat)
	assert.Equal(t, "1024x1024", gotSize)
	assert.Positive(t, gotImage)
	assert.Equal(t, []string{"https://cdn.example/result.png"}, dl.urls)
	assert.Equal(t, stages.ImageResultTimeout, dl.timeout)
}

func TestEditorDefaultBackgroundPrompt(t *testing.T) {
	var gotPrompt string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(8<<20))
		gotPrompt = r.FormValue("prompt")
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"data":[{"url":"https://cdn.example/nobg.png"}]}`)
	}))
	defer srv.Close()

	editor, err := NewEditor(Options{APIKey: "sk-test", BaseURL: srv.URL, Downloader: &stubDownloader{data: []byte("x")}})
	require.NoError(t, err)

	_, err = editor.RemoveBackground(context.Background(), stages.BackgroundInput{Image: stages.Image{Data: encodePNG(t, 8, 8)}})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(gotPrompt, "Remove the background completely"))
}

func TestEditorMapsServerErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":{"message":"bad image","type":"invalid_request_error"}}`)
	}))
	defer srv.Close()

	editor, err := NewEditor(Options{APIKey: "sk-test", BaseURL: srv.URL, Downloader: &stubDownloader{}})
	require.NoError(t, err)

	_, err = editor.Stylize(context.Background(), stages.StylizeInput{Image: stages.Image{Data: encodePNG(t, 8, 8)}, Description: "d"})
	var permanent *domain.PermanentRequestError
	require.True(t, errors.As(err, &permanent), "got %v", err)
	assert.Equal(t, http.StatusBadRequest, permanent.StatusCode)
}

func TestEditorEmptyResponseFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"data":[]}`)
	}))
	defer srv.Close()

	editor, err := NewEditor(Options{APIKey: "sk-test", BaseURL: srv.URL, Downloader: &stubDownloader{}})
	require.NoError(t, err)

	_, err = editor.Stylize(context.Background(), stages.StylizeInput{Image: stages.Image{Data: encodePNG(t, 8, 8)}, Description: "d"})
	var failed *domain.JobFailedError
	require.ErrorAs(t, err, &failed)
}

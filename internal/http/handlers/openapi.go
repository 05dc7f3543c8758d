package handlers

import (
	"bytes"
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"html/template"
	"net/http"
	"sync"
	"time"
)

//go:embed openapi.json
var openAPISpec []byte

// Redoc renders the embedded document client-side; the page carries only the
// title, version and the document URL.
var docsTemplate = template.Must(template.New("docs").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}} {{.Version}}</title>
<style>body{margin:0}redoc{display:block;height:100vh}</style>
</head>
<body>
<redoc spec-url="{{.SpecURL}}" hide-download-button></redoc>
<script src="https://cdn.jsdelivr.net/npm/redoc@2.2.0/bundles/redoc.standalone.js"></script>
</body>
</html>`))

const specURL = "/v1/openapi.json"

type apiDocs struct {
	spec    []byte
	etag    string
	page    []byte
	modTime time.Time
}

var (
	docsOnce sync.Once
	docs     apiDocs
	docsErr  error
)

// loadDocs derives the ETag and the rendered docs page from the embedded spec.
func loadDocs() (apiDocs, error) {
	docsOnce.Do(func() {
		var meta struct {
			Info struct {
				Title   string `json:"title"`
				Version string `json:"version"`
			} `json:"info"`
		}
		if docsErr = json.Unmarshal(openAPISpec, &meta); docsErr != nil {
			return
		}
		var page bytes.Buffer
		docsErr = docsTemplate.Execute(&page, map[string]string{
			"Title":   meta.Info.Title + " Docs",
			"Version": meta.Info.Version,
			"SpecURL": specURL,
		})
		if docsErr != nil {
			return
		}
		sum := sha256.Sum256(openAPISpec)
		docs = apiDocs{
			spec:    openAPISpec,
			etag:    `"` + hex.EncodeToString(sum[:8]) + `"`,
			page:    page.Bytes(),
			modTime: time.Now().UTC(),
		}
	})
	return docs, docsErr
}

// OpenAPIJSON serves the embedded OpenAPI document. Conditional requests are
// answered with 304 when the ETag matches.
func (a *App) OpenAPIJSON(w http.ResponseWriter, r *http.Request) {
	d, err := loadDocs()
	if err != nil {
		a.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("ETag", d.etag)
	w.Header().Set("Cache-Control", "public, max-age=300")
	http.ServeContent(w, r, "openapi.json", d.modTime, bytes.NewReader(d.spec))
}

func (a *App) OpenAPIDocs(w http.ResponseWriter, r *http.Request) {
	d, err := loadDocs()
	if err != nil {
		a.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(d.page)
}

// Package imagesearch finds product photos through the Google Custom Search
// JSON API and ranks the hits by how much they look like a clean bottle shot.
package imagesearch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"perfumevisual/internal/domain"
	"perfumevisual/internal/infra"
	"perfumevisual/internal/metrics"
)

const (
	defaultBaseURL = "https://www.googleapis.com/customsearch/v1"
	defaultTimeout = 15 * time.Second
	resultCount    = 10
	sourceLabel    = "Google Custom Search"
)

// Options configures the search client.
type Options struct {
	APIKey     string
	CSEID      string
	BaseURL    string
	HTTPClient *http.Client
	Timeout    time.Duration
	Logger     *infra.Logger
}

// Client queries the image search API.
type Client struct {
	apiKey     string
	cseID      string
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
	logger     *infra.Logger
}

// Result is the selected photo plus the size of the candidate pool.
type Result struct {
	ImageURL   string      `json:"image_url"`
	Thumbnail  string      `json:"thumbnail"`
	Title      string      `json:"title"`
	Source     string      `json:"source"`
	TotalFound int         `json:"total_found"`
	Score      int         `json:"score"`
	Candidates []Candidate `json:"-"`
}

type searchResponse struct {
	Items []struct {
		Link        string `json:"link"`
		Title       string `json:"title"`
		Snippet     string `json:"snippet"`
		DisplayLink string `json:"displayLink"`
		Image       struct {
			ThumbnailLink string `json:"thumbnailLink"`
			Width         int    `json:"width"`
			Height        int    `json:"height"`
		} `json:"image"`
	} `json:"items"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// NewClient constructs a client. Missing or placeholder credentials are
// allowed; HasCredentials reports them and Search fails without calling out.
func NewClient(opts Options) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		return nil, fmt.Errorf("imagesearch: invalid base url %q", opts.BaseURL)
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		apiKey:     strings.TrimSpace(opts.APIKey),
		cseID:      strings.TrimSpace(opts.CSEID),
		baseURL:    baseURL,
		httpClient: httpClient,
		timeout:    timeout,
		logger:     infra.LoggerOrDiscard(opts.Logger),
	}, nil
}

// HasCredentials reports whether a real key and engine id are configured.
func (c *Client) HasCredentials() bool {
	return usable(c.apiKey, "your_google_api_key_here") && usable(c.cseID, "your_google_cse_id_here")
}

func usable(value, placeholder string) bool {
	return value != "" && value != placeholder
}

// Query is the search phrase used for a product.
func Query(brand, name string) string {
	return fmt.Sprintf("%s %s perfume bottle front view white background", brand, name)
}

// Search returns the best-scoring photo for brand and name.
func (c *Client) Search(ctx context.Context, brand, name string) (*Result, error) {
	brand, name = strings.TrimSpace(brand), strings.TrimSpace(name)
	if brand == "" || name == "" {
		return nil, fmt.Errorf("%w: brand and perfume name are required", domain.ErrInvalidRequest)
	}
	if !c.HasCredentials() {
		return nil, &domain.ConfigurationError{Stage: domain.StageImageSearch, Setting: "GOOGLE_API_KEY/GOOGLE_CSE_ID"}
	}

	candidates, err := c.query(ctx, Query(brand, name))
	if err != nil {
		metrics.ImageSearches.WithLabelValues("error").Inc()
		return nil, err
	}
	if len(candidates) == 0 {
		metrics.ImageSearches.WithLabelValues("empty").Inc()
		return nil, fmt.Errorf("%w: no images for %s %s", domain.ErrNotFound, brand, name)
	}

	ranked := Rank(candidates, brand, name)
	best := ranked[0]
	metrics.ImageSearches.WithLabelValues("found").Inc()
	c.logger.Info().
		Str("brand", brand).
		Str("perfume", name).
		Int("candidates", len(ranked)).
		Int("score", best.Score).
		Str("url", best.URL).
		Msg("imagesearch: selected image")

	title := best.Title
	if title == "" {
		title = brand + " " + name
	}
	return &Result{
		ImageURL:   best.URL,
		Thumbnail:  best.Thumbnail,
		Title:      title,
		Source:     sourceLabel,
		TotalFound: len(ranked),
		Score:      best.Score,
		Candidates: ranked,
	}, nil
}

// Find implements the pipeline's source lookup.
func (c *Client) Find(ctx context.Context, brand, name string) (string, error) {
	res, err := c.Search(ctx, brand, name)
	if err != nil {
		return "", err
	}
	return res.ImageURL, nil
}

func (c *Client) query(ctx context.Context, q string) ([]Candidate, error) {
	params := url.Values{}
	params.Set("key", c.apiKey)
	params.Set("cx", c.cseID)
	params.Set("q", q)
	params.Set("searchType", "image")
	params.Set("num", fmt.Sprint(resultCount))
	params.Set("imgSize", "large")
	params.Set("imgType", "photo")
	params.Set("safe", "active")

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, &domain.PermanentRequestError{Stage: domain.StageImageSearch, Detail: "build request: " + c.redact(err).Error()}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &domain.TransientNetworkError{Stage: domain.StageImageSearch, Attempts: 1, Err: c.redact(err)}
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.TransientNetworkError{Stage: domain.StageImageSearch, Attempts: 1, StatusCode: resp.StatusCode, Err: err}
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, &domain.TransientNetworkError{Stage: domain.StageImageSearch, Attempts: 1, StatusCode: resp.StatusCode, Err: errors.New(apiMessage(raw))}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		// 400 means a bad key or engine id, 403 an exhausted quota or a disabled API.
		return nil, &domain.PermanentRequestError{Stage: domain.StageImageSearch, StatusCode: resp.StatusCode, Detail: apiMessage(raw)}
	}

	var decoded searchResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, &domain.PermanentRequestError{Stage: domain.StageImageSearch, StatusCode: resp.StatusCode, Detail: "decode response: " + err.Error()}
	}
	out := make([]Candidate, 0, len(decoded.Items))
	for _, item := range decoded.Items {
		if strings.TrimSpace(item.Link) == "" {
			continue
		}
		out = append(out, Candidate{
			URL:       item.Link,
			Title:     item.Title,
			Thumbnail: item.Image.ThumbnailLink,
			Context:   item.Snippet,
			Width:     item.Image.Width,
			Height:    item.Image.Height,
			Source:    item.DisplayLink,
		})
	}
	return out, nil
}

func apiMessage(raw []byte) string {
	var decoded errorResponse
	if err := json.Unmarshal(raw, &decoded); err == nil && decoded.Error.Message != "" {
		return decoded.Error.Message
	}
	msg := strings.TrimSpace(string(raw))
	if len(msg) > 300 {
		msg = msg[:300]
	}
	return msg
}

// redact keeps the api key, which travels in the query string, out of errors.
func (c *Client) redact(err error) error {
	if c.apiKey == "" || !strings.Contains(err.Error(), c.apiKey) {
		return err
	}
	return errors.New(strings.ReplaceAll(err.Error(), c.apiKey, "***"))
}

// Package transfer moves artifact bytes in and out of the service: downloads
// with retry and inline data URI encoding for job payloads.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"perfumevisual/internal/domain"
	"perfumevisual/internal/infra"
	"perfumevisual/internal/metrics"
	"perfumevisual/internal/retry"
)

const (
	defaultTimeout     = 30 * time.Second
	defaultMaxAttempts = 3
	nonTimeoutDelay    = 2 * time.Second
)

// Options configures a Fetcher.
type Options struct {
	HTTPClient  *http.Client
	Timeout     time.Duration
	MaxAttempts int
	Sleep       func(ctx context.Context, d time.Duration) error
	Logger      *infra.Logger
}

// Fetcher downloads remote artifacts.
type Fetcher struct {
	httpClient  *http.Client
	timeout     time.Duration
	maxAttempts int
	sleep       func(ctx context.Context, d time.Duration) error
	logger      *infra.Logger
}

// NewFetcher constructs a Fetcher with defaults for unset options.
func NewFetcher(opts Options) *Fetcher {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	maxAttempts := opts.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	return &Fetcher{
		httpClient:  httpClient,
		timeout:     timeout,
		maxAttempts: maxAttempts,
		sleep:       opts.Sleep,
		logger:      infra.LoggerOrDiscard(opts.Logger),
	}
}

// Fetch downloads rawURL with the default per-attempt timeout.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	return f.FetchWithTimeout(ctx, rawURL, f.timeout)
}

// FetchWithTimeout downloads rawURL, retrying failed attempts. Timeouts back
// off exponentially (1s, 2s, ...); other failures wait a fixed 2s.
func (f *Fetcher) FetchWithTimeout(ctx context.Context, rawURL string, timeout time.Duration) ([]byte, error) {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return nil, &domain.DownloadError{URL: rawURL, Attempts: 0, Err: fmt.Errorf("%w: invalid url", domain.ErrInvalidRequest)}
	}
	if timeout <= 0 {
		timeout = f.timeout
	}

	var data []byte
	attempts, err := retry.Do(ctx, retry.Policy{
		MaxAttempts: f.maxAttempts,
		Delay:       downloadDelay,
		Sleep:       f.sleep,
		OnRetry: func(attempt int, err error, wait time.Duration) {
			metrics.DownloadRetries.Inc()
			f.logger.Warn().
				Err(err).
				Int("attempt", attempt).
				Int("max_attempts", f.maxAttempts).
				Dur("wait", wait).
				Msg("transfer: download failed, retrying")
		},
	}, func(ctx context.Context, attempt int) error {
		body, err := f.get(ctx, parsed.String(), timeout)
		if err != nil {
			return err
		}
		data = body
		return nil
	})
	if err != nil {
		return nil, &domain.DownloadError{URL: rawURL, Attempts: attempts, Err: err}
	}
	f.logger.Debug().Int("bytes", len(data)).Int("attempts", attempts).Msg("transfer: downloaded")
	return data, nil
}

func (f *Fetcher) get(ctx context.Context, target string, timeout time.Duration) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, statusError(resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return data, nil
}

// statusError classifies a non-2xx download. Client errors other than 429
// are permanent; the retry loop still retries them.
func statusError(code int) error {
	if code >= 400 && code < 500 && code != http.StatusTooManyRequests {
		return &domain.PermanentRequestError{Stage: domain.StageDownload, StatusCode: code, Detail: http.StatusText(code)}
	}
	return &domain.TransientNetworkError{Stage: domain.StageDownload, Attempts: 1, StatusCode: code, Err: errors.New("unexpected status")}
}

func downloadDelay(attempt int, err error) time.Duration {
	if IsTimeout(err) {
		return retry.Exponential(time.Second)(attempt, err)
	}
	return nonTimeoutDelay
}

// IsTimeout reports whether err is a deadline or network timeout.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

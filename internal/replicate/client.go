// Package replicate wraps the asynchronous predictions API: create a job,
// poll it until it reaches a terminal state, fetch the result.
package replicate

import (
	"bytes"
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
	"perfumevisual/internal/retry"
)

// ErrMissingToken indicates that the client was configured without credentials.
var ErrMissingToken = errors.New("replicate: api token is required")

const (
	defaultBaseURL    = "https://api.replicate.com/v1"
	defaultTimeout    = 30 * time.Second
	defaultMaxRetries = 3
	defaultRetryAfter = 10 * time.Second
	maxErrorBody      = 2048
)

// PollPolicy bounds how long Await waits for a terminal state.
type PollPolicy struct {
	Interval    time.Duration
	MaxAttempts int
}

// Poll policies per stage.
var (
	PollBackgroundRemoval = PollPolicy{Interval: 2 * time.Second, MaxAttempts: 60}
	PollStylize           = PollPolicy{Interval: 3 * time.Second, MaxAttempts: 60}
	PollText              = PollPolicy{Interval: 2 * time.Second, MaxAttempts: 60}
	PollVideo             = PollPolicy{Interval: 3 * time.Second, MaxAttempts: 90}
)

// Options configures the predictions client.
type Options struct {
	Token      string
	BaseURL    string
	HTTPClient *http.Client
	// RequestTimeout bounds each create and poll call.
	RequestTimeout time.Duration
	// MaxRetries is the number of resubmissions after a 429.
	MaxRetries int
	// DefaultRetryAfter is used when a 429 carries no retry_after hint.
	DefaultRetryAfter time.Duration
	Sleep             func(ctx context.Context, d time.Duration) error
	Logger            *infra.Logger
}

// Client performs HTTP calls to the predictions API.
type Client struct {
	token             string
	baseURL           string
	httpClient        *http.Client
	timeout           time.Duration
	maxRetries        int
	defaultRetryAfter time.Duration
	sleep             func(ctx context.Context, d time.Duration) error
	logger            *infra.Logger
}

// Request describes one job submission.
type Request struct {
	Stage domain.Stage
	// Model is "owner/name".
	Model string
	Input map[string]any
}

type createRequest struct {
	Input map[string]any `json:"input"`
}

type rateLimitResponse struct {
	RetryAfter *float64 `json:"retry_after"`
	Detail     string   `json:"detail"`
}

type rateLimitedError struct {
	wait time.Duration
}

func (e *rateLimitedError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.wait)
}

func (e *rateLimitedError) RetryAfter() time.Duration { return e.wait }

var errStillRunning = errors.New("prediction still running")

// NewClient constructs a client with sane defaults and injected dependencies.
func NewClient(opts Options) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		return nil, fmt.Errorf("replicate: invalid base url %q", opts.BaseURL)
	}
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	maxRetries := opts.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	retryAfter := opts.DefaultRetryAfter
	if retryAfter <= 0 {
		retryAfter = defaultRetryAfter
	}
	sleep := opts.Sleep
	if sleep == nil {
		sleep = retry.SleepContext
	}
	return &Client{
		token:             strings.TrimSpace(opts.Token),
		baseURL:           baseURL,
		httpClient:        httpClient,
		timeout:           timeout,
		maxRetries:        maxRetries,
		defaultRetryAfter: retryAfter,
		sleep:             sleep,
		logger:            infra.LoggerOrDiscard(opts.Logger),
	}, nil
}

// HasCredentials reports whether the client can perform remote calls.
func (c *Client) HasCredentials() bool {
	return c.token != ""
}

// Run submits a job and waits for its output.
func (c *Client) Run(ctx context.Context, req Request, policy PollPolicy) (Output, error) {
	prediction, err := c.Submit(ctx, req)
	if err != nil {
		return Output{}, err
	}
	return c.Await(ctx, prediction, policy)
}

// Submit creates a prediction. A 429 is retried after the server supplied
// retry_after (or the default) up to MaxRetries times; any other non-2xx
// status fails immediately.
func (c *Client) Submit(ctx context.Context, req Request) (*Prediction, error) {
	if !c.HasCredentials() {
		return nil, &domain.ConfigurationError{Stage: req.Stage, Setting: "REPLICATE_API_TOKEN"}
	}
	owner, name, ok := strings.Cut(strings.TrimSpace(req.Model), "/")
	if !ok || owner == "" || name == "" {
		return nil, &domain.PermanentRequestError{Stage: req.Stage, Detail: fmt.Sprintf("invalid model %q", req.Model)}
	}
	body, err := json.Marshal(createRequest{Input: req.Input})
	if err != nil {
		return nil, &domain.PermanentRequestError{Stage: req.Stage, Detail: "encode input: " + err.Error()}
	}
	endpoint := fmt.Sprintf("%s/models/%s/%s/predictions", c.baseURL, owner, name)

	var prediction *Prediction
	attempts, err := retry.Do(ctx, retry.Policy{
		MaxAttempts: c.maxRetries + 1,
		Delay:       retry.HintOr(retry.Constant(c.defaultRetryAfter)),
		Retryable: func(err error) bool {
			var limited *rateLimitedError
			return errors.As(err, &limited)
		},
		Sleep: c.sleep,
		OnRetry: func(attempt int, err error, wait time.Duration) {
			c.logger.Warn().
				Str("stage", string(req.Stage)).
				Str("model", req.Model).
				Int("attempt", attempt).
				Dur("wait", wait).
				Msg("replicate: rate limited, resubmitting")
		},
	}, func(ctx context.Context, attempt int) error {
		p, err := c.create(ctx, req, endpoint, body)
		if err != nil {
			return err
		}
		prediction = p
		return nil
	})
	if err != nil {
		var limited *rateLimitedError
		if errors.As(err, &limited) {
			metrics.RemoteJobs.WithLabelValues(req.Model, "rejected").Inc()
			return nil, &domain.TransientNetworkError{Stage: req.Stage, Attempts: attempts, StatusCode: http.StatusTooManyRequests, Err: err}
		}
		var permanent *domain.PermanentRequestError
		if errors.As(err, &permanent) {
			metrics.RemoteJobs.WithLabelValues(req.Model, "rejected").Inc()
		}
		return nil, err
	}

	prediction.stage = req.Stage
	prediction.createdAt = time.Now()
	if prediction.Model == "" {
		prediction.Model = req.Model
	}
	c.logger.Info().
		Str("stage", string(req.Stage)).
		Str("model", req.Model).
		Str("prediction_id", prediction.ID).
		Int("attempts", attempts).
		Msg("replicate: prediction created")
	return prediction, nil
}

func (c *Client) create(ctx context.Context, req Request, endpoint string, body []byte) (*Prediction, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &domain.PermanentRequestError{Stage: req.Stage, Detail: "build request: " + err.Error()}
	}
	c.authorize(httpReq)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &domain.TransientNetworkError{Stage: req.Stage, Attempts: 1, Err: err}
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.TransientNetworkError{Stage: req.Stage, Attempts: 1, StatusCode: resp.StatusCode, Err: fmt.Errorf("read response: %w", err)}
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		metrics.RateLimited.WithLabelValues(req.Model).Inc()
		return nil, &rateLimitedError{wait: c.retryAfter(raw)}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, &domain.PermanentRequestError{Stage: req.Stage, StatusCode: resp.StatusCode, Detail: truncate(string(raw))}
	}

	var prediction Prediction
	if err := json.Unmarshal(raw, &prediction); err != nil {
		return nil, &domain.PermanentRequestError{Stage: req.Stage, StatusCode: resp.StatusCode, Detail: "decode prediction: " + err.Error()}
	}
	if prediction.ID == "" {
		return nil, &domain.PermanentRequestError{Stage: req.Stage, StatusCode: resp.StatusCode, Detail: "prediction id missing"}
	}
	return &prediction, nil
}

func (c *Client) retryAfter(raw []byte) time.Duration {
	var decoded rateLimitResponse
	if err := json.Unmarshal(raw, &decoded); err == nil && decoded.RetryAfter != nil && *decoded.RetryAfter > 0 {
		return time.Duration(*decoded.RetryAfter * float64(time.Second))
	}
	return c.defaultRetryAfter
}

// Await polls the prediction every Interval until it succeeds or fails. After
// MaxAttempts polls without a terminal state it returns a JobTimeoutError.
// Cancelling ctx stops polling; the remote job keeps running.
func (c *Client) Await(ctx context.Context, prediction *Prediction, policy PollPolicy) (Output, error) {
	if prediction == nil {
		return Output{}, errors.New("replicate: prediction is nil")
	}
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 1
	}
	stage := prediction.stage
	model := prediction.Model
	started := prediction.createdAt
	if started.IsZero() {
		started = time.Now()
	}

	current := prediction
	if out, done, err := c.settle(current); done {
		return out, err
	}

	if err := c.sleep(ctx, policy.Interval); err != nil {
		return Output{}, err
	}
	attempts, err := retry.Do(ctx, retry.Policy{
		MaxAttempts: policy.MaxAttempts,
		Delay:       retry.Constant(policy.Interval),
		Retryable: func(err error) bool {
			return errors.Is(err, errStillRunning) || domain.IsTransient(err)
		},
		Sleep: c.sleep,
	}, func(ctx context.Context, attempt int) error {
		polled, err := c.Get(ctx, stage, prediction.ID)
		if err != nil {
			c.logger.Warn().Err(err).Str("prediction_id", prediction.ID).Int("attempt", attempt).Msg("replicate: poll failed")
			return err
		}
		if polled.Model == "" {
			polled.Model = model
		}
		current = polled
		c.logger.Debug().
			Str("stage", string(stage)).
			Str("prediction_id", prediction.ID).
			Str("status", string(polled.Status)).
			Int("attempt", attempt).
			Int("max_attempts", policy.MaxAttempts).
			Msg("replicate: polled")
		if polled.Outcome().Kind == Pending {
			return errStillRunning
		}
		return nil
	})
	metrics.RemoteJobDuration.WithLabelValues(model).Observe(time.Since(started).Seconds())

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Output{}, ctxErr
		}
		if errors.Is(err, errStillRunning) || domain.IsTransient(err) {
			metrics.RemoteJobs.WithLabelValues(model, "timeout").Inc()
			c.logger.Error().Str("stage", string(stage)).Str("prediction_id", prediction.ID).Int("attempts", attempts).Msg("replicate: timed out waiting for prediction")
			return Output{}, &domain.JobTimeoutError{Stage: stage, JobID: prediction.ID, Attempts: attempts}
		}
		return Output{}, err
	}
	out, _, err := c.settle(current)
	return out, err
}

// settle converts a terminal prediction into its result; done is false while
// the job is still pending.
func (c *Client) settle(p *Prediction) (Output, bool, error) {
	outcome := p.Outcome()
	switch outcome.Kind {
	case Succeeded:
		metrics.RemoteJobs.WithLabelValues(p.Model, "succeeded").Inc()
		c.logger.Info().Str("stage", string(p.stage)).Str("prediction_id", p.ID).Msg("replicate: prediction succeeded")
		return outcome.Output, true, nil
	case Failed:
		metrics.RemoteJobs.WithLabelValues(p.Model, "failed").Inc()
		c.logger.Error().Str("stage", string(p.stage)).Str("prediction_id", p.ID).Str("reason", outcome.Reason).Msg("replicate: prediction failed")
		return Output{}, true, &domain.JobFailedError{Stage: p.stage, JobID: p.ID, Reason: outcome.Reason}
	default:
		return Output{}, false, nil
	}
}

// Get fetches the current state of a prediction.
func (c *Client) Get(ctx context.Context, stage domain.Stage, id string) (*Prediction, error) {
	if !c.HasCredentials() {
		return nil, &domain.ConfigurationError{Stage: stage, Setting: "REPLICATE_API_TOKEN"}
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/predictions/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, &domain.PermanentRequestError{Stage: stage, Detail: "build request: " + err.Error()}
	}
	c.authorize(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &domain.TransientNetworkError{Stage: stage, Attempts: 1, Err: err}
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.TransientNetworkError{Stage: stage, Attempts: 1, StatusCode: resp.StatusCode, Err: err}
	}
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return nil, &domain.TransientNetworkError{Stage: stage, Attempts: 1, StatusCode: resp.StatusCode, Err: errors.New(truncate(string(raw)))}
	}
	if resp.StatusCode >= 300 {
		return nil, &domain.PermanentRequestError{Stage: stage, StatusCode: resp.StatusCode, Detail: truncate(string(raw))}
	}

	var prediction Prediction
	if err := json.Unmarshal(raw, &prediction); err != nil {
		return nil, &domain.PermanentRequestError{Stage: stage, StatusCode: resp.StatusCode, Detail: "decode prediction: " + err.Error()}
	}
	prediction.stage = stage
	return &prediction, nil
}

func (c *Client) authorize(req *http.Request) {
	req.Header.Set("Authorization", "Token "+c.token)
}

func truncate(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > maxErrorBody {
		return s[:maxErrorBody]
	}
	return s
}

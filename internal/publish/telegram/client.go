// Package telegram publishes generated media to a Telegram channel through
// the Bot API.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"perfumevisual/internal/domain"
	"perfumevisual/internal/infra"
	"perfumevisual/internal/metrics"
)

const (
	defaultBaseURL = "https://api.telegram.org"
	defaultTimeout = 60 * time.Second

	// MaxCaptionRunes is the Bot API limit for media captions.
	MaxCaptionRunes = 1024
	ellipsis        = "…"

	buyButtonText = "🛒 Купить на Randewoo"
)

// MediaKind selects the Bot API method.
type MediaKind string

const (
	MediaImage MediaKind = "image"
	MediaVideo MediaKind = "video"
)

// Options configures the client.
type Options struct {
	Token      string
	ChannelID  string
	BaseURL    string
	HTTPClient *http.Client
	Timeout    time.Duration
	Logger     *infra.Logger
}

// Client posts photos and videos with captions.
type Client struct {
	token      string
	channelID  string
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
	logger     *infra.Logger
}

// Message is one media post.
type Message struct {
	Kind       MediaKind
	FileName   string
	Data       []byte
	Caption    string
	ProductURL string
}

// Result is the decoded Bot API reply.
type Result struct {
	MessageID int64           `json:"message_id"`
	Raw       json.RawMessage `json:"raw"`
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Description string          `json:"description"`
	ErrorCode   int             `json:"error_code"`
	Result      json.RawMessage `json:"result"`
}

// NewClient constructs a Telegram client. Missing credentials are allowed;
// Publish reports them.
func NewClient(opts Options) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
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
		token:      strings.TrimSpace(opts.Token),
		channelID:  strings.TrimSpace(opts.ChannelID),
		baseURL:    baseURL,
		httpClient: httpClient,
		timeout:    timeout,
		logger:     infra.LoggerOrDiscard(opts.Logger),
	}
}

// HasCredentials reports whether both token and channel are configured.
func (c *Client) HasCredentials() bool {
	return c.token != "" && c.channelID != ""
}

// Publish uploads the media with its caption and an optional buy button.
func (c *Client) Publish(ctx context.Context, msg Message) (*Result, error) {
	if !c.HasCredentials() {
		return nil, &domain.ConfigurationError{Stage: domain.StagePublish, Setting: "TELEGRAM_BOT_TOKEN/TELEGRAM_CHANNEL_ID"}
	}
	if len(msg.Data) == 0 {
		return nil, fmt.Errorf("telegram: %w: empty media", domain.ErrInvalidRequest)
	}

	method, field := "sendPhoto", "photo"
	kind := msg.Kind
	if kind == MediaVideo {
		method, field = "sendVideo", "video"
	} else {
		kind = MediaImage
	}

	body, contentType, err := c.encode(field, msg)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method), body)
	if err != nil {
		return nil, fmt.Errorf("telegram: build request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.TelegramPublishes.WithLabelValues(string(kind), "error").Inc()
		return nil, &domain.TransientNetworkError{Stage: domain.StagePublish, Attempts: 1, Err: redact(err, c.token)}
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.TelegramPublishes.WithLabelValues(string(kind), "error").Inc()
		return nil, &domain.TransientNetworkError{Stage: domain.StagePublish, Attempts: 1, StatusCode: resp.StatusCode, Err: err}
	}

	var decoded apiResponse
	_ = json.Unmarshal(raw, &decoded)
	if resp.StatusCode != http.StatusOK || !decoded.OK {
		metrics.TelegramPublishes.WithLabelValues(string(kind), "rejected").Inc()
		detail := decoded.Description
		if detail == "" {
			detail = strings.TrimSpace(string(raw))
		}
		c.logger.Warn().Int("status", resp.StatusCode).Str("detail", detail).Msg("telegram: publish rejected")
		return nil, fmt.Errorf("%w: %d %s", domain.ErrPublishRejected, resp.StatusCode, detail)
	}

	var message struct {
		MessageID int64 `json:"message_id"`
	}
	_ = json.Unmarshal(decoded.Result, &message)
	metrics.TelegramPublishes.WithLabelValues(string(kind), "ok").Inc()
	c.logger.Info().Str("media", string(kind)).Int64("message_id", message.MessageID).Msg("telegram: published")
	return &Result{MessageID: message.MessageID, Raw: raw}, nil
}

func (c *Client) encode(field string, msg Message) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	fields := map[string]string{
		"chat_id":    c.channelID,
		"caption":    TruncateCaption(msg.Caption),
		"parse_mode": "HTML",
	}
	if url := strings.TrimSpace(msg.ProductURL); url != "" {
		markup, err := json.Marshal(map[string]any{
			"inline_keyboard": [][]map[string]string{{{"text": buyButtonText, "url": url}}},
		})
		if err != nil {
			return nil, "", fmt.Errorf("telegram: encode reply markup: %w", err)
		}
		fields["reply_markup"] = string(markup)
	}
	for _, key := range []string{"chat_id", "caption", "parse_mode", "reply_markup"} {
		value, ok := fields[key]
		if !ok {
			continue
		}
		if err := w.WriteField(key, value); err != nil {
			return nil, "", fmt.Errorf("telegram: write field %s: %w", key, err)
		}
	}

	name := strings.TrimSpace(msg.FileName)
	if name == "" {
		name = field
	}
	part, err := w.CreateFormFile(field, name)
	if err != nil {
		return nil, "", fmt.Errorf("telegram: create file part: %w", err)
	}
	if _, err := part.Write(msg.Data); err != nil {
		return nil, "", fmt.Errorf("telegram: write file part: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("telegram: close multipart: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}

// TruncateCaption limits caption to MaxCaptionRunes characters, replacing the
// tail with an ellipsis when it is cut.
func TruncateCaption(caption string) string {
	if utf8.RuneCountInString(caption) <= MaxCaptionRunes {
		return caption
	}
	runes := []rune(caption)
	return string(runes[:MaxCaptionRunes-utf8.RuneCountInString(ellipsis)]) + ellipsis
}

// redact keeps the bot token out of logged transport errors.
func redact(err error, token string) error {
	if token == "" || !strings.Contains(err.Error(), token) {
		return err
	}
	return errors.New(strings.ReplaceAll(err.Error(), token, "***"))
}

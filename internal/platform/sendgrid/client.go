package sendgrid

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/yungbote/speakwell-backend/internal/platform/ctxutil"
	"github.com/yungbote/speakwell-backend/internal/platform/httpx"
	"github.com/yungbote/speakwell-backend/internal/platform/logger"
)

// Mailer sends transactional mail through the SendGrid v3 API.
type Mailer interface {
	Send(ctx context.Context, msg Message) (*Receipt, error)
}

type Config struct {
	APIKey           string
	BaseURL          string
	DefaultFromEmail string
	DefaultFromName  string
	Timeout          time.Duration
	MaxRetries       int
}

const mailSendPath = "/v3/mail/send"

type client struct {
	log         *logger.Logger
	apiKey      string
	endpoint    string
	defaultFrom Address
	httpClient  *http.Client
	maxRetries  int
}

func New(log *logger.Logger, cfg Config) (Mailer, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	key := strings.TrimSpace(cfg.APIKey)
	if key == "" {
		return nil, fmt.Errorf("missing sendgrid api key")
	}
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = "https://api.sendgrid.com"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	return &client{
		log:         log.With("client", "SendGrid"),
		apiKey:      key,
		endpoint:    base + mailSendPath,
		defaultFrom: Address{Email: strings.TrimSpace(cfg.DefaultFromEmail), Name: strings.TrimSpace(cfg.DefaultFromName)},
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		maxRetries:  cfg.MaxRetries,
	}, nil
}

func (c *client) Send(ctx context.Context, msg Message) (*Receipt, error) {
	p, err := msg.payload(c.defaultFrom)
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("sendgrid: encode payload: %w", err)
	}

	ctx = ctxutil.Default(ctx)
	backoff := time.Second
	for attempt := 0; ; attempt++ {
		resp, err := c.post(ctx, body)
		if err == nil {
			return &Receipt{
				StatusCode: resp.StatusCode,
				MessageID:  strings.TrimSpace(resp.Header.Get("X-Message-Id")),
			}, nil
		}
		if attempt >= c.maxRetries || !httpx.IsRetryableError(err) {
			return nil, err
		}
		wait := httpx.JitterSleep(httpx.RetryAfterDuration(resp, backoff, 10*time.Second))
		c.log.Warn("SendGrid send retrying", "attempt", attempt+1, "sleep", wait.String(), "error", err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
		backoff *= 2
	}
}

func (c *client) post(ctx context.Context, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
	if err != nil {
		return resp, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp, newHTTPError(resp.StatusCode, raw)
	}
	return resp, nil
}

// HTTPError is a non-2xx answer from SendGrid. httpx treats 429 and 5xx as
// retryable through HTTPStatusCode.
type HTTPError struct {
	StatusCode int
	Message    string
}

func newHTTPError(status int, raw []byte) *HTTPError {
	var body struct {
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	msg := strings.TrimSpace(string(raw))
	if json.Unmarshal(raw, &body) == nil && len(body.Errors) > 0 && body.Errors[0].Message != "" {
		msg = body.Errors[0].Message
	}
	if msg == "" {
		msg = http.StatusText(status)
	}
	return &HTTPError{StatusCode: status, Message: msg}
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("sendgrid http %d: %s", e.StatusCode, e.Message)
}

func (e *HTTPError) HTTPStatusCode() int { return e.StatusCode }

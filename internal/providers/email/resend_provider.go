package email

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/replenmobile/ordersend/internal/config"
)

// HTTPClient abstracts the http.Client Do method for easier testing.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// ResendOption customises the behaviour of the Resend email provider.
type ResendOption func(*ResendProvider)

// WithResendHTTPClient overrides the HTTP client used to talk to Resend.
func WithResendHTTPClient(client HTTPClient) ResendOption {
	return func(p *ResendProvider) {
		if client != nil {
			p.httpClient = client
		}
	}
}

// WithResendBaseURL sets the base Resend API URL. Useful for tests.
func WithResendBaseURL(baseURL string) ResendOption {
	return func(p *ResendProvider) {
		p.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithResendClock overrides the clock used for timestamps.
func WithResendClock(now func() time.Time) ResendOption {
	return func(p *ResendProvider) {
		if now != nil {
			p.now = now
		}
	}
}

// WithResendBodyLimit adjusts how many bytes are retained from the HTTP response body.
func WithResendBodyLimit(limit int64) ResendOption {
	return func(p *ResendProvider) {
		if limit > 0 {
			p.maxBodyBytes = limit
		}
	}
}

// ResendProvider implements the Provider interface using Resend's REST API.
type ResendProvider struct {
	logger       zerolog.Logger
	apiKey       string
	defaultFrom  string
	httpClient   HTTPClient
	baseURL      string
	now          func() time.Time
	maxBodyBytes int64
}

// NewResendProvider constructs a Resend-backed email provider.
func NewResendProvider(cfg config.ResendConfig, logger zerolog.Logger, opts ...ResendOption) (*ResendProvider, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("resend provider: api key is required")
	}
	if strings.TrimSpace(cfg.From) == "" {
		return nil, errors.New("resend provider: from address is required")
	}
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}

	provider := &ResendProvider{
		logger:       logger,
		apiKey:       strings.TrimSpace(cfg.APIKey),
		defaultFrom:  strings.TrimSpace(cfg.From),
		baseURL:      "https://api.resend.com",
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		now:          time.Now,
		maxBodyBytes: 16 * 1024,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(provider)
		}
	}

	if provider.httpClient == nil {
		provider.httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if provider.maxBodyBytes <= 0 {
		provider.maxBodyBytes = 16 * 1024
	}
	if provider.baseURL == "" {
		provider.baseURL = "https://api.resend.com"
	}

	return provider, nil
}

// Send delivers the email payload via Resend.
func (p *ResendProvider) Send(ctx context.Context, payload *Payload) (*RawResponse, error) {
	if payload == nil {
		return nil, errors.New("resend provider: payload is required")
	}
	if len(payload.To) == 0 {
		return nil, errors.New("resend provider: at least one recipient is required")
	}
	if strings.TrimSpace(payload.TextBody) == "" {
		return nil, errors.New("resend provider: text body is required")
	}

	from := strings.TrimSpace(payload.From)
	if from == "" {
		from = p.defaultFrom
	}

	request := map[string]any{
		"from":    from,
		"to":      payload.To,
		"subject": payload.Subject,
		"text":    payload.TextBody,
	}
	if strings.TrimSpace(payload.HTMLBody) != "" {
		request["html"] = payload.HTMLBody
	}

	encoded, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("resend provider: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/emails", bytes.NewReader(encoded))
	if err != nil {
		return nil, fmt.Errorf("resend provider: new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("resend provider: http do: %w", err)
	}
	defer resp.Body.Close()

	body, err := p.readBody(resp.Body)
	if err != nil {
		return nil, err
	}

	parsed := parseResendBody(body)
	raw := &RawResponse{
		ID:        parsed.ID,
		Code:      resp.StatusCode,
		Status:    parsed.Name,
		Body:      body,
		Timestamp: p.now(),
	}
	if raw.Status == "" {
		raw.Status = http.StatusText(resp.StatusCode)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if raw.ID == "" {
			raw.ID = payload.MessageID
		}
		return raw, nil
	}

	message := parsed.Message
	if message == "" {
		message = strings.TrimSpace(body)
	}
	if message == "" {
		message = http.StatusText(resp.StatusCode)
	}

	return raw, fmt.Errorf("resend provider: http %d: %s", resp.StatusCode, message)
}

func (p *ResendProvider) readBody(rc io.ReadCloser) (string, error) {
	if rc == nil {
		return "", nil
	}

	limit := p.maxBodyBytes
	if limit <= 0 {
		limit = 16 * 1024
	}

	reader := io.LimitReader(rc, limit)
	data, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("resend provider: read body: %w", err)
	}
	return string(data), nil
}

type resendBody struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Message string `json:"message"`
}

func parseResendBody(body string) resendBody {
	if strings.TrimSpace(body) == "" {
		return resendBody{}
	}

	var parsed resendBody
	if err := json.Unmarshal([]byte(body), &parsed); err != nil {
		return resendBody{}
	}
	return parsed
}

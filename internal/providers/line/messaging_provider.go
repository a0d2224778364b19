package line

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

// The push endpoint accepts at most five message objects per call.
const maxMessagesPerPush = 5

// MessagingOption customises the behaviour of the LINE messaging provider.
type MessagingOption func(*MessagingProvider)

// WithMessagingHTTPClient overrides the HTTP client used to talk to LINE.
func WithMessagingHTTPClient(client HTTPClient) MessagingOption {
	return func(p *MessagingProvider) {
		if client != nil {
			p.httpClient = client
		}
	}
}

// WithMessagingBaseURL sets the base LINE API URL. Useful for tests.
func WithMessagingBaseURL(baseURL string) MessagingOption {
	return func(p *MessagingProvider) {
		p.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithMessagingClock overrides the clock used for timestamps.
func WithMessagingClock(now func() time.Time) MessagingOption {
	return func(p *MessagingProvider) {
		if now != nil {
			p.now = now
		}
	}
}

// WithMessagingBodyLimit adjusts how many bytes are retained from the HTTP response body.
func WithMessagingBodyLimit(limit int64) MessagingOption {
	return func(p *MessagingProvider) {
		if limit > 0 {
			p.maxBodyBytes = limit
		}
	}
}

// MessagingProvider implements the Provider interface using the LINE
// Messaging API push endpoint.
type MessagingProvider struct {
	logger       zerolog.Logger
	channelToken string
	httpClient   HTTPClient
	baseURL      string
	now          func() time.Time
	maxBodyBytes int64
}

// NewMessagingProvider constructs a LINE-backed provider.
func NewMessagingProvider(cfg config.LineConfig, logger zerolog.Logger, opts ...MessagingOption) (*MessagingProvider, error) {
	if strings.TrimSpace(cfg.ChannelToken) == "" {
		return nil, errors.New("line provider: channel token is required")
	}
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}

	provider := &MessagingProvider{
		logger:       logger,
		channelToken: strings.TrimSpace(cfg.ChannelToken),
		baseURL:      "https://api.line.me",
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
		provider.baseURL = "https://api.line.me"
	}

	return provider, nil
}

// Send pushes the payload texts to the destination, batching five messages
// per request. A failed batch aborts the remainder and surfaces the last
// response alongside the error.
func (p *MessagingProvider) Send(ctx context.Context, payload *Payload) (*RawResponse, error) {
	if payload == nil {
		return nil, errors.New("line provider: payload is required")
	}
	if strings.TrimSpace(payload.To) == "" {
		return nil, errors.New("line provider: destination user id is required")
	}

	texts := make([]string, 0, len(payload.Messages))
	for _, message := range payload.Messages {
		if strings.TrimSpace(message) == "" {
			continue
		}
		texts = append(texts, message)
	}
	if len(texts) == 0 {
		return nil, errors.New("line provider: at least one message is required")
	}

	var requestIDs []string
	var lastCode int
	var lastStatus string
	var lastBody string

	for start := 0; start < len(texts); start += maxMessagesPerPush {
		end := start + maxMessagesPerPush
		if end > len(texts) {
			end = len(texts)
		}

		requestID, code, status, body, err := p.push(ctx, payload.To, texts[start:end])
		if requestID != "" {
			requestIDs = append(requestIDs, requestID)
		}
		lastCode = code
		lastStatus = status
		lastBody = body

		if err != nil {
			raw := &RawResponse{
				ID:        strings.Join(requestIDs, ","),
				Code:      lastCode,
				Status:    lastStatus,
				Body:      lastBody,
				Timestamp: p.now(),
			}
			return raw, err
		}
	}

	return &RawResponse{
		ID:        strings.Join(requestIDs, ","),
		Code:      lastCode,
		Status:    lastStatus,
		Body:      lastBody,
		Timestamp: p.now(),
	}, nil
}

func (p *MessagingProvider) push(ctx context.Context, to string, texts []string) (string, int, string, string, error) {
	messages := make([]map[string]string, 0, len(texts))
	for _, text := range texts {
		messages = append(messages, map[string]string{
			"type": "text",
			"text": text,
		})
	}

	request := map[string]any{
		"to":       to,
		"messages": messages,
	}
	encoded, err := json.Marshal(request)
	if err != nil {
		return "", 0, "", "", fmt.Errorf("line provider: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v2/bot/message/push", bytes.NewReader(encoded))
	if err != nil {
		return "", 0, "", "", fmt.Errorf("line provider: new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.channelToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", 0, "", "", fmt.Errorf("line provider: http do: %w", err)
	}
	defer resp.Body.Close()

	body, err := p.readBody(resp.Body)
	if err != nil {
		return "", 0, "", "", err
	}

	requestID := resp.Header.Get("X-Line-Request-Id")
	status := http.StatusText(resp.StatusCode)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return requestID, resp.StatusCode, status, body, nil
	}

	message := parseLineError(body)
	if message == "" {
		message = strings.TrimSpace(body)
	}
	if message == "" {
		message = status
	}

	return requestID, resp.StatusCode, status, body, fmt.Errorf("line provider: http %d: %s", resp.StatusCode, message)
}

func (p *MessagingProvider) readBody(rc io.ReadCloser) (string, error) {
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
		return "", fmt.Errorf("line provider: read body: %w", err)
	}
	return string(data), nil
}

func parseLineError(body string) string {
	if strings.TrimSpace(body) == "" {
		return ""
	}

	var parsed struct {
		Message string `json:"message"`
		Details []struct {
			Message  string `json:"message"`
			Property string `json:"property"`
		} `json:"details"`
	}
	if err := json.Unmarshal([]byte(body), &parsed); err != nil {
		return ""
	}

	if len(parsed.Details) > 0 && parsed.Details[0].Message != "" {
		detail := parsed.Details[0]
		if detail.Property != "" {
			return fmt.Sprintf("%s: %s (%s)", parsed.Message, detail.Message, detail.Property)
		}
		return fmt.Sprintf("%s: %s", parsed.Message, detail.Message)
	}
	return parsed.Message
}

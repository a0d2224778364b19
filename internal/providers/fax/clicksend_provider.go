package fax

import (
	"bytes"
	"context"
	"encoding/base64"
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

// ClickSendOption customises the behaviour of the ClickSend fax provider.
type ClickSendOption func(*ClickSendProvider)

// WithClickSendHTTPClient overrides the HTTP client used to talk to ClickSend.
func WithClickSendHTTPClient(client HTTPClient) ClickSendOption {
	return func(p *ClickSendProvider) {
		if client != nil {
			p.httpClient = client
		}
	}
}

// WithClickSendBaseURL sets the base ClickSend API URL. Useful for tests.
func WithClickSendBaseURL(baseURL string) ClickSendOption {
	return func(p *ClickSendProvider) {
		p.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithClickSendClock overrides the clock used for timestamps.
func WithClickSendClock(now func() time.Time) ClickSendOption {
	return func(p *ClickSendProvider) {
		if now != nil {
			p.now = now
		}
	}
}

// WithClickSendBodyLimit adjusts how many bytes are retained from the HTTP response body.
func WithClickSendBodyLimit(limit int64) ClickSendOption {
	return func(p *ClickSendProvider) {
		if limit > 0 {
			p.maxBodyBytes = limit
		}
	}
}

// ClickSendProvider implements the Provider interface using ClickSend's fax
// API. Delivery is a two-step exchange: the rendered document is uploaded
// first, then a send is queued against the returned file URL.
type ClickSendProvider struct {
	logger       zerolog.Logger
	username     string
	apiKey       string
	senderID     string
	httpClient   HTTPClient
	baseURL      string
	now          func() time.Time
	maxBodyBytes int64
}

// NewClickSendProvider constructs a ClickSend-backed fax provider.
func NewClickSendProvider(cfg config.ClickSendConfig, logger zerolog.Logger, opts ...ClickSendOption) (*ClickSendProvider, error) {
	if strings.TrimSpace(cfg.Username) == "" {
		return nil, errors.New("clicksend fax provider: username is required")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("clicksend fax provider: api key is required")
	}
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}

	provider := &ClickSendProvider{
		logger:       logger,
		username:     strings.TrimSpace(cfg.Username),
		apiKey:       strings.TrimSpace(cfg.APIKey),
		senderID:     strings.TrimSpace(cfg.SenderID),
		baseURL:      "https://rest.clicksend.com/v3",
		httpClient:   &http.Client{Timeout: 60 * time.Second},
		now:          time.Now,
		maxBodyBytes: 16 * 1024,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(provider)
		}
	}

	if provider.httpClient == nil {
		provider.httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	if provider.maxBodyBytes <= 0 {
		provider.maxBodyBytes = 16 * 1024
	}
	if provider.baseURL == "" {
		provider.baseURL = "https://rest.clicksend.com/v3"
	}

	return provider, nil
}

// Send uploads the document and queues the fax transmission.
func (p *ClickSendProvider) Send(ctx context.Context, payload *Payload) (*RawResponse, error) {
	if payload == nil {
		return nil, errors.New("clicksend fax provider: payload is required")
	}
	if strings.TrimSpace(payload.To) == "" {
		return nil, errors.New("clicksend fax provider: destination number is required")
	}
	if len(payload.Document) == 0 {
		return nil, errors.New("clicksend fax provider: document is required")
	}

	fileURL, raw, err := p.upload(ctx, payload)
	if err != nil {
		return raw, err
	}

	return p.queue(ctx, fileURL, payload)
}

func (p *ClickSendProvider) upload(ctx context.Context, payload *Payload) (string, *RawResponse, error) {
	request := map[string]string{
		"content": base64.StdEncoding.EncodeToString(payload.Document),
	}

	code, body, err := p.post(ctx, p.baseURL+"/uploads?convert=fax", request)
	if err != nil {
		return "", nil, err
	}

	raw := &RawResponse{
		Code:      code,
		Status:    http.StatusText(code),
		Body:      body,
		Timestamp: p.now(),
	}

	parsed := parseClickSendBody(body)
	if parsed.Status != "" {
		raw.Status = parsed.Status
	}

	if code < 200 || code >= 300 {
		return "", raw, fmt.Errorf("clicksend fax provider: upload http %d: %s", code, messageOr(parsed, body, code))
	}
	if parsed.UploadURL == "" {
		return "", raw, fmt.Errorf("clicksend fax provider: upload response carries no file url")
	}

	return parsed.UploadURL, raw, nil
}

func (p *ClickSendProvider) queue(ctx context.Context, fileURL string, payload *Payload) (*RawResponse, error) {
	message := map[string]any{
		"to":     payload.To,
		"source": "ordersend",
	}
	if p.senderID != "" {
		message["from"] = p.senderID
	}
	if strings.TrimSpace(payload.From) != "" {
		message["from"] = strings.TrimSpace(payload.From)
	}
	if payload.Reference != "" {
		message["custom_string"] = payload.Reference
	}

	request := map[string]any{
		"file_url": fileURL,
		"messages": []map[string]any{message},
	}

	code, body, err := p.post(ctx, p.baseURL+"/fax/send", request)
	if err != nil {
		return nil, err
	}

	parsed := parseClickSendBody(body)
	raw := &RawResponse{
		ID:        parsed.MessageID,
		Code:      code,
		Status:    parsed.Status,
		Body:      body,
		Timestamp: p.now(),
	}
	if raw.Status == "" {
		raw.Status = http.StatusText(code)
	}

	if code < 200 || code >= 300 {
		return raw, fmt.Errorf("clicksend fax provider: send http %d: %s", code, messageOr(parsed, body, code))
	}

	return raw, nil
}

func (p *ClickSendProvider) post(ctx context.Context, endpoint string, request any) (int, string, error) {
	encoded, err := json.Marshal(request)
	if err != nil {
		return 0, "", fmt.Errorf("clicksend fax provider: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(encoded))
	if err != nil {
		return 0, "", fmt.Errorf("clicksend fax provider: new request: %w", err)
	}
	req.SetBasicAuth(p.username, p.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return 0, "", fmt.Errorf("clicksend fax provider: http do: %w", err)
	}
	defer resp.Body.Close()

	body, err := p.readBody(resp.Body)
	if err != nil {
		return 0, "", err
	}
	return resp.StatusCode, body, nil
}

func (p *ClickSendProvider) readBody(rc io.ReadCloser) (string, error) {
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
		return "", fmt.Errorf("clicksend fax provider: read body: %w", err)
	}
	return string(data), nil
}

type clickSendBody struct {
	Status    string
	Message   string
	UploadURL string
	MessageID string
}

// parseClickSendBody tolerates both the upload and the send response shapes.
// ClickSend nests everything under data and mirrors HTTP status in
// response_code.
func parseClickSendBody(body string) clickSendBody {
	if strings.TrimSpace(body) == "" {
		return clickSendBody{}
	}

	var envelope struct {
		ResponseCode string          `json:"response_code"`
		ResponseMsg  string          `json:"response_msg"`
		Data         json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal([]byte(body), &envelope); err != nil {
		return clickSendBody{}
	}

	result := clickSendBody{
		Status:  envelope.ResponseCode,
		Message: envelope.ResponseMsg,
	}
	if len(envelope.Data) == 0 {
		return result
	}

	var data struct {
		URL      string `json:"_url"`
		Messages []struct {
			MessageID string `json:"message_id"`
			Status    string `json:"status"`
		} `json:"messages"`
	}
	if err := json.Unmarshal(envelope.Data, &data); err != nil {
		return result
	}

	result.UploadURL = data.URL
	if len(data.Messages) > 0 {
		result.MessageID = data.Messages[0].MessageID
		if data.Messages[0].Status != "" {
			result.Status = data.Messages[0].Status
		}
	}
	return result
}

func messageOr(parsed clickSendBody, body string, code int) string {
	if parsed.Message != "" {
		return parsed.Message
	}
	if trimmed := strings.TrimSpace(body); trimmed != "" {
		return trimmed
	}
	return http.StatusText(code)
}

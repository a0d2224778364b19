package vision

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"

	"github.com/replenmobile/ordersend/internal/config"
	"github.com/replenmobile/ordersend/internal/util"
)

// maxImageBytes matches the vision API's documented per-image payload cap.
const maxImageBytes = 20 << 20

const systemPrompt = `あなたは日本の請求書や納品書を読み取るAIアシスタントです。

画像から以下の情報を抽出してください：
1. 商品名（日本語）
2. 価格（数字のみ、円記号なし）
3. 商品コード（あれば）

注意事項:
- 価格は税込みで記載してください
- 読み取れない項目はスキップしてください
- 数量や単価ではなく、商品ごとの合計金額を抽出してください

必ず以下のJSON形式で返答してください：
[
  {"name": "商品名", "price": 1000, "product_code": "ABC123"},
  {"name": "別の商品", "price": 500, "product_code": null}
]

JSON以外のテキストは含めないでください。`

const extractionRequest = "この請求書から商品名と価格を抽出してJSON形式で返してください。"

type openAISettings struct {
	baseURL    string
	httpClient *http.Client
}

// OpenAIOption customises the parser during construction.
type OpenAIOption func(*openAISettings)

// WithOpenAIBaseURL overrides the API endpoint, primarily for tests.
func WithOpenAIBaseURL(baseURL string) OpenAIOption {
	return func(s *openAISettings) {
		if trimmed := strings.TrimSpace(baseURL); trimmed != "" {
			s.baseURL = trimmed
		}
	}
}

// WithOpenAIHTTPClient overrides the HTTP client used for API calls.
func WithOpenAIHTTPClient(client *http.Client) OpenAIOption {
	return func(s *openAISettings) {
		if client != nil {
			s.httpClient = client
		}
	}
}

// OpenAIParser reads invoices with a vision capable chat model.
type OpenAIParser struct {
	logger zerolog.Logger
	client *openai.Client
	model  string
}

// NewOpenAIParser constructs an invoice parser backed by the OpenAI API.
func NewOpenAIParser(cfg config.VisionConfig, logger zerolog.Logger, opts ...OpenAIOption) (*OpenAIParser, error) {
	if strings.TrimSpace(cfg.OpenAIKey) == "" {
		return nil, errors.New("openai vision: api key is required")
	}

	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}

	settings := &openAISettings{}
	for _, opt := range opts {
		if opt != nil {
			opt(settings)
		}
	}

	clientCfg := openai.DefaultConfig(strings.TrimSpace(cfg.OpenAIKey))
	if settings.baseURL != "" {
		clientCfg.BaseURL = settings.baseURL
	}
	if settings.httpClient != nil {
		clientCfg.HTTPClient = settings.httpClient
	}

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = openai.GPT4o
	}

	return &OpenAIParser{
		logger: logger,
		client: openai.NewClientWithConfig(clientCfg),
		model:  model,
	}, nil
}

// ParseInvoice extracts order lines from one invoice image. The model is
// asked for a bare JSON array; a markdown fenced answer is tolerated.
func (p *OpenAIParser) ParseInvoice(ctx context.Context, image []byte, mimeType string) ([]ScannedItem, error) {
	if len(image) == 0 {
		return nil, errors.New("openai vision: image data is required")
	}
	if err := util.EnsureMaxBytes("invoice image", image, maxImageBytes); err != nil {
		return nil, fmt.Errorf("openai vision: %w", err)
	}
	if strings.TrimSpace(mimeType) == "" {
		mimeType = "image/jpeg"
	}

	dataURL := fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(image))

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       p.model,
		MaxTokens:   2000,
		Temperature: 0.1,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: systemPrompt,
			},
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    dataURL,
							Detail: openai.ImageURLDetailHigh,
						},
					},
					{
						Type: openai.ChatMessagePartTypeText,
						Text: extractionRequest,
					},
				},
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("openai vision: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("openai vision: completion returned no choices")
	}

	items, err := decodeItems(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}

	p.logger.Debug().
		Int("items", len(items)).
		Str("model", p.model).
		Msg("invoice parsed")

	return items, nil
}

// decodeItems parses the model answer into scanned items. Entries with an
// unusable price are dropped rather than failing the whole scan.
func decodeItems(content string) ([]ScannedItem, error) {
	content = trimFence(strings.TrimSpace(content))

	var raw []map[string]any
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return nil, fmt.Errorf("openai vision: model answer is not a JSON item list: %w", err)
	}

	items := make([]ScannedItem, 0, len(raw))
	for _, entry := range raw {
		if item, ok := coerceItem(entry); ok {
			items = append(items, item)
		}
	}
	return items, nil
}

func coerceItem(entry map[string]any) (ScannedItem, bool) {
	item := ScannedItem{Name: "不明"}

	if name, ok := entry["name"].(string); ok && strings.TrimSpace(name) != "" {
		item.Name = strings.TrimSpace(name)
	}

	if raw, exists := entry["price"]; exists {
		switch price := raw.(type) {
		case float64:
			item.Price = int(price)
		case string:
			n, err := strconv.Atoi(strings.TrimSpace(price))
			if err != nil {
				return ScannedItem{}, false
			}
			item.Price = n
		default:
			return ScannedItem{}, false
		}
	}

	if code, ok := entry["product_code"].(string); ok {
		item.ProductCode = strings.TrimSpace(code)
	}

	return item, true
}

// trimFence unwraps a ```json fenced block, keeping only the fenced text.
func trimFence(content string) string {
	if !strings.HasPrefix(content, "```") {
		return content
	}
	content = content[3:]
	if idx := strings.Index(content, "```"); idx >= 0 {
		content = content[:idx]
	}
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "json")
	return strings.TrimSpace(content)
}

package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/replenmobile/ordersend/internal/config"
	"github.com/replenmobile/ordersend/internal/util"
)

const (
	defaultYahooBaseURL = "https://shopping.yahooapis.jp"
	itemSearchPath      = "/ShoppingWebService/V3/itemSearch"

	defaultYahooTimeout     = 10 * time.Second
	defaultYahooConcurrency = 4
	maxYahooBodyBytes       = 64 * 1024
)

// HTTPClient captures the minimal HTTP client behaviour required by the
// Yahoo shopping integration.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// YahooOption customises the Yahoo client during construction.
type YahooOption func(*YahooClient)

// WithYahooHTTPClient overrides the HTTP client used for API calls.
func WithYahooHTTPClient(client HTTPClient) YahooOption {
	return func(c *YahooClient) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithYahooBaseURL overrides the API endpoint, primarily for tests.
func WithYahooBaseURL(baseURL string) YahooOption {
	return func(c *YahooClient) {
		if trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/"); trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

// WithYahooConcurrency bounds how many lookups a batch runs in parallel.
func WithYahooConcurrency(n int64) YahooOption {
	return func(c *YahooClient) {
		if n > 0 {
			c.sem = semaphore.NewWeighted(n)
		}
	}
}

// YahooClient resolves barcodes through the Yahoo Japan shopping search API.
type YahooClient struct {
	logger     zerolog.Logger
	appID      string
	httpClient HTTPClient
	baseURL    string
	sem        *semaphore.Weighted
}

// NewYahooClient constructs a Yahoo shopping catalog client.
func NewYahooClient(cfg config.CatalogConfig, logger zerolog.Logger, opts ...YahooOption) (*YahooClient, error) {
	if strings.TrimSpace(cfg.YahooAppID) == "" {
		return nil, errors.New("yahoo catalog: app id is required")
	}

	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}

	c := &YahooClient{
		logger:     logger,
		appID:      strings.TrimSpace(cfg.YahooAppID),
		httpClient: &http.Client{Timeout: defaultYahooTimeout},
		baseURL:    defaultYahooBaseURL,
		sem:        semaphore.NewWeighted(defaultYahooConcurrency),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: defaultYahooTimeout}
	}

	return c, nil
}

// Lookup resolves a single barcode. Unknown barcodes return ErrNotFound.
func (c *YahooClient) Lookup(ctx context.Context, jan string) (*Product, error) {
	jan, err := util.NormalizeJAN(jan)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJAN, err)
	}

	query := url.Values{}
	query.Set("appid", c.appID)
	query.Set("jan_code", jan)
	query.Set("results", "1")
	query.Set("sort", "-score")

	endpoint := c.baseURL + itemSearchPath + "?" + query.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("yahoo catalog: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("yahoo catalog: request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxYahooBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("yahoo catalog: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("yahoo catalog: http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed yahooSearchBody
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("yahoo catalog: decode response: %w", err)
	}

	if parsed.TotalResultsAvailable == 0 || len(parsed.Hits) == 0 {
		return nil, fmt.Errorf("%w: jan %s", ErrNotFound, jan)
	}

	hit := parsed.Hits[0]
	product := &Product{
		JAN:      jan,
		Name:     hit.Name,
		Price:    hit.Price,
		ImageURL: firstNonEmpty(hit.Image.Medium, hit.Image.Small),
	}
	if hit.GenreCategory.Depth > 0 {
		product.Category = hit.GenreCategory.Name
	}

	c.logger.Debug().
		Str("jan", jan).
		Str("name", product.Name).
		Int("price", product.Price).
		Msg("catalog lookup hit")

	return product, nil
}

// LookupBatch resolves several barcodes concurrently, bounded by the client
// concurrency limit. Unknown barcodes are simply absent from the result;
// transport failures are joined into the returned error alongside whatever
// did resolve.
func (c *YahooClient) LookupBatch(ctx context.Context, jans []string) (map[string]*Product, error) {
	products := make(map[string]*Product, len(jans))

	var (
		mu   sync.Mutex
		wg   sync.WaitGroup
		errs []error
	)

	seen := make(map[string]bool, len(jans))
	for _, jan := range jans {
		jan = strings.TrimSpace(jan)
		if jan == "" || seen[jan] {
			continue
		}
		seen[jan] = true

		if err := c.sem.Acquire(ctx, 1); err != nil {
			errs = append(errs, err)
			break
		}

		wg.Add(1)
		go func(jan string) {
			defer wg.Done()
			defer c.sem.Release(1)

			product, err := c.Lookup(ctx, jan)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case errors.Is(err, ErrNotFound), errors.Is(err, ErrInvalidJAN):
			case err != nil:
				errs = append(errs, err)
			default:
				products[jan] = product
			}
		}(jan)
	}

	wg.Wait()

	if len(errs) > 0 {
		return products, errors.Join(errs...)
	}
	return products, nil
}

// yahooSearchBody mirrors the fields consumed from the item search response.
type yahooSearchBody struct {
	TotalResultsAvailable int        `json:"totalResultsAvailable"`
	Hits                  []yahooHit `json:"hits"`
}

type yahooHit struct {
	Name  string `json:"name"`
	Price int    `json:"price"`
	Image struct {
		Medium string `json:"medium"`
		Small  string `json:"small"`
	} `json:"image"`
	GenreCategory struct {
		Depth int    `json:"depth"`
		Name  string `json:"name"`
	} `json:"genreCategory"`
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

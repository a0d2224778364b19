package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/replenmobile/ordersend/internal/config"
)

func yahooConfig() config.CatalogConfig {
	return config.CatalogConfig{YahooAppID: "app-id"}
}

func searchHit(name string, price int, medium, small, category string) string {
	return fmt.Sprintf(`{
		"totalResultsAvailable": 1,
		"hits": [{
			"name": %q,
			"price": %d,
			"image": {"medium": %q, "small": %q},
			"genreCategory": {"depth": 2, "name": %q}
		}]
	}`, name, price, medium, small, category)
}

func TestLookupResolvesProduct(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ShoppingWebService/V3/itemSearch" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("appid") != "app-id" {
			t.Errorf("appid = %q", q.Get("appid"))
		}
		if q.Get("jan_code") != "4901201103742" {
			t.Errorf("jan_code = %q", q.Get("jan_code"))
		}
		if q.Get("results") != "1" || q.Get("sort") != "-score" {
			t.Errorf("results = %q sort = %q", q.Get("results"), q.Get("sort"))
		}
		fmt.Fprint(w, searchHit("アサヒ スーパードライ 350ml", 220, "https://img.example/m.jpg", "https://img.example/s.jpg", "ビール・発泡酒"))
	}))
	defer srv.Close()

	client, err := NewYahooClient(yahooConfig(), zerolog.Nop(), WithYahooBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("NewYahooClient: %v", err)
	}

	product, err := client.Lookup(context.Background(), "4901201103742")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if product.Name != "アサヒ スーパードライ 350ml" {
		t.Errorf("name = %q", product.Name)
	}
	if product.Price != 220 {
		t.Errorf("price = %d", product.Price)
	}
	if product.ImageURL != "https://img.example/m.jpg" {
		t.Errorf("image = %q, want the medium size", product.ImageURL)
	}
	if product.Category != "ビール・発泡酒" {
		t.Errorf("category = %q", product.Category)
	}
	if product.JAN != "4901201103742" {
		t.Errorf("jan = %q", product.JAN)
	}
}

func TestLookupFallsBackToSmallImage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, searchHit("烏龍茶", 130, "", "https://img.example/s.jpg", "お茶"))
	}))
	defer srv.Close()

	client, _ := NewYahooClient(yahooConfig(), zerolog.Nop(), WithYahooBaseURL(srv.URL))
	product, err := client.Lookup(context.Background(), "4901777254923")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if product.ImageURL != "https://img.example/s.jpg" {
		t.Errorf("image = %q", product.ImageURL)
	}
}

func TestLookupReturnsNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"totalResultsAvailable": 0, "hits": []}`)
	}))
	defer srv.Close()

	client, _ := NewYahooClient(yahooConfig(), zerolog.Nop(), WithYahooBaseURL(srv.URL))
	if _, err := client.Lookup(context.Background(), "4999999999999"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestLookupRejectsBadBarcodes(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer srv.Close()

	client, _ := NewYahooClient(yahooConfig(), zerolog.Nop(), WithYahooBaseURL(srv.URL))
	for _, jan := range []string{"", "abc", "4901 201", "４９０１"} {
		if _, err := client.Lookup(context.Background(), jan); !errors.Is(err, ErrInvalidJAN) {
			t.Errorf("Lookup(%q) err = %v, want ErrInvalidJAN", jan, err)
		}
	}
	if calls != 0 {
		t.Errorf("bad barcodes reached the API %d times", calls)
	}
}

func TestLookupSurfacesServerErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"error": "invalid appid"}`)
	}))
	defer srv.Close()

	client, _ := NewYahooClient(yahooConfig(), zerolog.Nop(), WithYahooBaseURL(srv.URL))
	_, err := client.Lookup(context.Background(), "4901201103742")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "http 403") {
		t.Errorf("err = %v, want the status code", err)
	}
}

func TestLookupBatchResolvesKnownBarcodes(t *testing.T) {
	var requests sync.Map
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		jan := r.URL.Query().Get("jan_code")
		count, _ := requests.LoadOrStore(jan, new(atomic.Int32))
		count.(*atomic.Int32).Add(1)

		switch jan {
		case "4901201103742":
			fmt.Fprint(w, searchHit("スーパードライ", 220, "", "", "ビール"))
		case "4902102112154":
			fmt.Fprint(w, searchHit("コカ・コーラ 500ml", 150, "", "", "炭酸飲料"))
		default:
			fmt.Fprint(w, `{"totalResultsAvailable": 0, "hits": []}`)
		}
	}))
	defer srv.Close()

	client, _ := NewYahooClient(yahooConfig(), zerolog.Nop(), WithYahooBaseURL(srv.URL))
	products, err := client.LookupBatch(context.Background(), []string{
		"4901201103742",
		"4902102112154",
		"4901201103742", // duplicate, looked up once
		"4999999999999", // unknown
		"not-a-barcode",
	})
	if err != nil {
		t.Fatalf("LookupBatch: %v", err)
	}

	if len(products) != 2 {
		t.Fatalf("resolved %d products, want 2: %v", len(products), products)
	}
	if products["4901201103742"].Name != "スーパードライ" {
		t.Errorf("product = %+v", products["4901201103742"])
	}
	if _, ok := products["4999999999999"]; ok {
		t.Error("unknown barcode resolved")
	}

	count, ok := requests.Load("4901201103742")
	if !ok || count.(*atomic.Int32).Load() != 1 {
		t.Error("duplicate barcode was looked up more than once")
	}
}

func TestLookupBatchBoundsConcurrency(t *testing.T) {
	var inFlight, peak atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		current := inFlight.Add(1)
		for {
			highest := peak.Load()
			if current <= highest || peak.CompareAndSwap(highest, current) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		inFlight.Add(-1)
		fmt.Fprint(w, `{"totalResultsAvailable": 0, "hits": []}`)
	}))
	defer srv.Close()

	client, _ := NewYahooClient(yahooConfig(), zerolog.Nop(), WithYahooBaseURL(srv.URL), WithYahooConcurrency(2))
	jans := []string{"4000000000001", "4000000000002", "4000000000003", "4000000000004", "4000000000005", "4000000000006"}
	if _, err := client.LookupBatch(context.Background(), jans); err != nil {
		t.Fatalf("LookupBatch: %v", err)
	}

	if got := peak.Load(); got > 2 {
		t.Errorf("peak concurrency = %d, want at most 2", got)
	}
}

func TestLookupBatchReportsTransportErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("jan_code") == "4000000000002" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, searchHit("ペン", 100, "", "", "文具"))
	}))
	defer srv.Close()

	client, _ := NewYahooClient(yahooConfig(), zerolog.Nop(), WithYahooBaseURL(srv.URL))
	products, err := client.LookupBatch(context.Background(), []string{"4000000000001", "4000000000002"})
	if err == nil {
		t.Fatal("expected error for the failed lookup")
	}
	if len(products) != 1 {
		t.Errorf("resolved %d products, want the healthy one", len(products))
	}
}

func TestNewYahooClientRequiresAppID(t *testing.T) {
	if _, err := NewYahooClient(config.CatalogConfig{}, zerolog.Nop()); err == nil {
		t.Fatal("expected error for missing app id")
	}
}

func TestDisabledCatalog(t *testing.T) {
	disabled := NewDisabled("yahoo app id not set")
	if _, err := disabled.Lookup(context.Background(), "4901201103742"); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("Lookup err = %v", err)
	}
	if _, err := disabled.LookupBatch(context.Background(), []string{"4901201103742"}); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("LookupBatch err = %v", err)
	}
}

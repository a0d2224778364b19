package config_test

import (
	"strings"
	"testing"

	"github.com/replenmobile/ordersend/internal/config"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.App.Port != 8080 {
		t.Fatalf("default port = %d", cfg.App.Port)
	}
	if cfg.Dispatch.SimulationMode {
		t.Fatal("simulation mode should default to off")
	}
	if cfg.Dispatch.FaxCountryPrefix != "+81" {
		t.Fatalf("default fax prefix = %q", cfg.Dispatch.FaxCountryPrefix)
	}
	if cfg.Render.RowsPerPage != 12 {
		t.Fatalf("default rows per page = %d", cfg.Render.RowsPerPage)
	}
	if cfg.Kafka.Enabled() {
		t.Fatal("kafka should be disabled without brokers")
	}
	if cfg.Kafka.DeliveryTopic != "order-delivery-reports" {
		t.Fatalf("default delivery topic = %q", cfg.Kafka.DeliveryTopic)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SIMULATION_MODE", "true")
	t.Setenv("ORDER_ROWS_PER_PAGE", "20")
	t.Setenv("KAFKA_BROKERS", "broker-a:9092, broker-b:9092")
	t.Setenv("CLICKSEND_USERNAME", "ops@example.co.jp")
	t.Setenv("CLICKSEND_API_KEY", "cs-key")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if !cfg.Dispatch.SimulationMode {
		t.Fatal("simulation mode override lost")
	}
	if cfg.Render.RowsPerPage != 20 {
		t.Fatalf("rows per page = %d", cfg.Render.RowsPerPage)
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[1] != "broker-b:9092" {
		t.Fatalf("brokers = %v", cfg.Kafka.Brokers)
	}
	if !cfg.Kafka.Enabled() {
		t.Fatal("kafka should be enabled with brokers")
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Setenv("APP_PORT", "70000")
	t.Setenv("EMAIL_BACKEND", "carrier-pigeon")

	_, err := config.Load()
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "APP_PORT") {
		t.Fatalf("error should mention APP_PORT: %v", err)
	}
	if !strings.Contains(err.Error(), "EMAIL_BACKEND") {
		t.Fatalf("error should mention EMAIL_BACKEND: %v", err)
	}
}

func TestResolveEmailBackendPrecedence(t *testing.T) {
	p := config.ProviderConfig{}
	if got := p.ResolveEmailBackend(); got != "" {
		t.Fatalf("unconfigured backend = %q", got)
	}

	p.SMTP.Host = "smtp.example.co.jp"
	if got := p.ResolveEmailBackend(); got != "smtp" {
		t.Fatalf("smtp-only backend = %q", got)
	}

	// Hosted API wins over SMTP when both are configured.
	p.Resend.APIKey = "re-key"
	if got := p.ResolveEmailBackend(); got != "resend" {
		t.Fatalf("both-configured backend = %q", got)
	}

	// An explicit setting beats availability.
	p.EmailBackend = "SMTP"
	if got := p.ResolveEmailBackend(); got != "smtp" {
		t.Fatalf("explicit backend = %q", got)
	}
}

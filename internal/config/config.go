package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config captures all runtime configuration for the order dispatch service.
// Channel credentials are optional on purpose: a channel without credentials
// stays registered and reports ConfigurationMissing at dispatch time instead
// of failing startup.
type Config struct {
	App       AppConfig
	Dispatch  DispatchConfig
	Render    RenderConfig
	Providers ProviderConfig
	Catalog   CatalogConfig
	Vision    VisionConfig
	Kafka     KafkaConfig
}

// AppConfig contains generic application level settings.
type AppConfig struct {
	Env      string
	Port     int
	LogLevel string
}

// DispatchConfig controls dispatch behaviour shared by all channels.
type DispatchConfig struct {
	SimulationMode         bool
	ProviderTimeoutSeconds int
	FaxCountryPrefix       string
}

// RenderConfig tunes the order document renderer.
type RenderConfig struct {
	FontPath    string
	RowsPerPage int
}

// ClickSendConfig stores fax gateway credentials.
type ClickSendConfig struct {
	Username string
	APIKey   string
	SenderID string
}

// SMTPConfig stores mail-relay credentials for email delivery.
type SMTPConfig struct {
	Host string
	Port int
	User string
	Pass string
	From string
}

// ResendConfig stores hosted email API credentials.
type ResendConfig struct {
	APIKey string
	From   string
}

// LineConfig stores messaging API credentials.
type LineConfig struct {
	ChannelToken string
}

// ProviderConfig wraps configuration for the delivery transports.
type ProviderConfig struct {
	EmailBackend string
	ClickSend    ClickSendConfig
	SMTP         SMTPConfig
	Resend       ResendConfig
	Line         LineConfig
}

// Recognised email backends.
const (
	EmailBackendSMTP   = "smtp"
	EmailBackendResend = "resend"
)

// ResolveEmailBackend returns the email backend to use. An explicit
// EMAIL_BACKEND setting always wins; otherwise the hosted API takes priority
// when its key is present, then SMTP when a host is configured. An empty
// result means email delivery is unconfigured.
func (p ProviderConfig) ResolveEmailBackend() string {
	if backend := strings.ToLower(strings.TrimSpace(p.EmailBackend)); backend != "" {
		return backend
	}
	if strings.TrimSpace(p.Resend.APIKey) != "" {
		return EmailBackendResend
	}
	if strings.TrimSpace(p.SMTP.Host) != "" {
		return EmailBackendSMTP
	}
	return ""
}

// CatalogConfig stores product lookup credentials.
type CatalogConfig struct {
	YahooAppID string
}

// VisionConfig stores invoice parsing credentials.
type VisionConfig struct {
	OpenAIKey string
	Model     string
}

// KafkaConfig defines the optional delivery analytics stream.
type KafkaConfig struct {
	Brokers       []string
	DeliveryTopic string
}

// Enabled reports whether analytics publishing is configured.
func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

// Load reads environment variables, applies defaults, validates values and
// returns a populated Config instance.
func Load() (*Config, error) {
	_ = godotenv.Load()

	ldr := &envLoader{}

	cfg := &Config{}
	cfg.App.Env = ldr.getString("APP_ENV", "development", false)
	cfg.App.Port = ldr.getInt("APP_PORT", 8080, false)
	cfg.App.LogLevel = ldr.getString("LOG_LEVEL", "info", false)

	cfg.Dispatch.SimulationMode = ldr.getBool("SIMULATION_MODE", false, false)
	cfg.Dispatch.ProviderTimeoutSeconds = ldr.getInt("PROVIDER_TIMEOUT_SECONDS", 30, false)
	cfg.Dispatch.FaxCountryPrefix = ldr.getString("FAX_COUNTRY_PREFIX", "+81", false)

	cfg.Render.FontPath = ldr.getString("ORDER_FONT_PATH", "", false)
	cfg.Render.RowsPerPage = ldr.getInt("ORDER_ROWS_PER_PAGE", 12, false)

	cfg.Providers.EmailBackend = ldr.getString("EMAIL_BACKEND", "", false)

	cfg.Providers.ClickSend.Username = ldr.getString("CLICKSEND_USERNAME", "", false)
	cfg.Providers.ClickSend.APIKey = ldr.getString("CLICKSEND_API_KEY", "", false)
	cfg.Providers.ClickSend.SenderID = ldr.getString("CLICKSEND_SENDER_ID", "ordersend", false)

	cfg.Providers.SMTP.Host = ldr.getString("SMTP_HOST", "", false)
	cfg.Providers.SMTP.Port = ldr.getInt("SMTP_PORT", 587, false)
	cfg.Providers.SMTP.User = ldr.getString("SMTP_USER", "", false)
	cfg.Providers.SMTP.Pass = ldr.getString("SMTP_PASS", "", false)
	cfg.Providers.SMTP.From = ldr.getString("SMTP_FROM", "", false)

	cfg.Providers.Resend.APIKey = ldr.getString("RESEND_API_KEY", "", false)
	cfg.Providers.Resend.From = ldr.getString("RESEND_FROM", "", false)

	cfg.Providers.Line.ChannelToken = ldr.getString("LINE_CHANNEL_TOKEN", "", false)

	cfg.Catalog.YahooAppID = ldr.getString("YAHOO_APP_ID", "", false)

	cfg.Vision.OpenAIKey = ldr.getString("OPENAI_API_KEY", "", false)
	cfg.Vision.Model = ldr.getString("OPENAI_MODEL", "gpt-4o", false)

	cfg.Kafka.Brokers = ldr.getStringSlice("KAFKA_BROKERS", false)
	cfg.Kafka.DeliveryTopic = ldr.getString("KAFKA_DELIVERY_TOPIC", "order-delivery-reports", false)

	if cfg.App.Port <= 0 || cfg.App.Port > 65535 {
		ldr.addError("APP_PORT must be between 1 and 65535")
	}
	if cfg.Dispatch.ProviderTimeoutSeconds < 1 {
		ldr.addError("PROVIDER_TIMEOUT_SECONDS must be at least 1")
	}
	if cfg.Render.RowsPerPage < 1 {
		ldr.addError("ORDER_ROWS_PER_PAGE must be at least 1")
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Providers.EmailBackend)) {
	case "", EmailBackendSMTP, EmailBackendResend:
	default:
		ldr.addError("EMAIL_BACKEND must be one of smtp, resend")
	}
	if prefix := cfg.Dispatch.FaxCountryPrefix; prefix != "" && !strings.HasPrefix(prefix, "+") {
		ldr.addError("FAX_COUNTRY_PREFIX must start with +")
	}

	if err := ldr.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

type envLoader struct {
	errs []string
}

func (l *envLoader) validate() error {
	if len(l.errs) == 0 {
		return nil
	}
	return fmt.Errorf("config validation failed: %s", strings.Join(l.errs, "; "))
}

func (l *envLoader) getString(key, def string, required bool) string {
	if val, ok := os.LookupEnv(key); ok {
		val = strings.TrimSpace(val)
		if val == "" {
			if required {
				l.addError(fmt.Sprintf("%s is required", key))
			}
			return def
		}
		return val
	}
	if required {
		l.addError(fmt.Sprintf("%s is required", key))
	}
	return def
}

func (l *envLoader) getInt(key string, def int, required bool) int {
	if val, ok := os.LookupEnv(key); ok {
		val = strings.TrimSpace(val)
		if val == "" {
			if required {
				l.addError(fmt.Sprintf("%s is required", key))
			}
			return def
		}
		i, err := strconv.Atoi(val)
		if err != nil {
			l.addError(fmt.Sprintf("%s must be a valid integer", key))
			return def
		}
		return i
	}
	if required {
		l.addError(fmt.Sprintf("%s is required", key))
	}
	return def
}

func (l *envLoader) getBool(key string, def bool, required bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		val = strings.TrimSpace(val)
		if val == "" {
			if required {
				l.addError(fmt.Sprintf("%s is required", key))
			}
			return def
		}
		parsed, err := strconv.ParseBool(val)
		if err != nil {
			l.addError(fmt.Sprintf("%s must be a valid boolean", key))
			return def
		}
		return parsed
	}
	if required {
		l.addError(fmt.Sprintf("%s is required", key))
	}
	return def
}

func (l *envLoader) getStringSlice(key string, required bool) []string {
	raw := l.getString(key, "", required)
	if raw == "" {
		if required {
			return nil
		}
		return []string{}
	}
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if required && len(out) == 0 {
		l.addError(fmt.Sprintf("%s must contain at least one entry", key))
	}
	return out
}

func (l *envLoader) addError(err string) {
	l.errs = append(l.errs, err)
}

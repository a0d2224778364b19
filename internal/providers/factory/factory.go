package factory

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/replenmobile/ordersend/internal/config"
	emailprovider "github.com/replenmobile/ordersend/internal/providers/email"
	faxprovider "github.com/replenmobile/ordersend/internal/providers/fax"
	lineprovider "github.com/replenmobile/ordersend/internal/providers/line"
)

// Fax constructs the fax provider for the current configuration. Missing
// credentials yield a disabled provider rather than a startup failure, so
// the other channels keep working.
func Fax(cfg config.ProviderConfig, logger zerolog.Logger) (faxprovider.Provider, error) {
	if strings.TrimSpace(cfg.ClickSend.Username) == "" || strings.TrimSpace(cfg.ClickSend.APIKey) == "" {
		logger.Warn().
			Str("backend", "disabled").
			Msg("fax provider disabled, clicksend credentials not set")
		return faxprovider.NewDisabled("clicksend credentials not set"), nil
	}

	provider, err := faxprovider.NewClickSendProvider(cfg.ClickSend, logger)
	if err != nil {
		return nil, fmt.Errorf("factory: clicksend fax provider init: %w", err)
	}
	logger.Info().
		Str("backend", "clicksend").
		Msg("fax provider initialised")
	return provider, nil
}

// Email constructs the email provider for the current configuration. An
// explicit EMAIL_BACKEND wins; otherwise Resend is preferred when its key is
// present, then SMTP, then a disabled provider.
func Email(cfg config.ProviderConfig, logger zerolog.Logger) (emailprovider.Provider, error) {
	switch backend := cfg.ResolveEmailBackend(); backend {
	case config.EmailBackendResend:
		provider, err := emailprovider.NewResendProvider(cfg.Resend, logger)
		if err != nil {
			return nil, fmt.Errorf("factory: resend provider init: %w", err)
		}
		logger.Info().
			Str("backend", "resend").
			Msg("email provider initialised")
		return provider, nil
	case config.EmailBackendSMTP:
		provider, err := emailprovider.NewSMTPProvider(cfg.SMTP, logger)
		if err != nil {
			return nil, fmt.Errorf("factory: smtp provider init: %w", err)
		}
		logger.Info().
			Str("backend", "smtp").
			Msg("email provider initialised")
		return provider, nil
	case "":
		logger.Warn().
			Str("backend", "disabled").
			Msg("email provider disabled, no backend configured")
		return emailprovider.NewDisabled("no email backend configured"), nil
	default:
		return nil, fmt.Errorf("factory: unsupported email backend %q", backend)
	}
}

// Line constructs the LINE provider for the current configuration. A missing
// channel token yields a disabled provider.
func Line(cfg config.ProviderConfig, logger zerolog.Logger) (lineprovider.Provider, error) {
	if strings.TrimSpace(cfg.Line.ChannelToken) == "" {
		logger.Warn().
			Str("backend", "disabled").
			Msg("line provider disabled, channel token not set")
		return lineprovider.NewDisabled("line channel token not set"), nil
	}

	provider, err := lineprovider.NewMessagingProvider(cfg.Line, logger)
	if err != nil {
		return nil, fmt.Errorf("factory: line provider init: %w", err)
	}
	logger.Info().
		Str("backend", "line").
		Msg("line provider initialised")
	return provider, nil
}

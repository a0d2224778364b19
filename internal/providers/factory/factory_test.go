package factory

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/replenmobile/ordersend/internal/config"
	emailprovider "github.com/replenmobile/ordersend/internal/providers/email"
	faxprovider "github.com/replenmobile/ordersend/internal/providers/fax"
	lineprovider "github.com/replenmobile/ordersend/internal/providers/line"
)

func TestFaxFallsBackToDisabled(t *testing.T) {
	provider, err := Fax(config.ProviderConfig{}, zerolog.Nop())
	if err != nil {
		t.Fatalf("Fax: %v", err)
	}
	if _, err := provider.Send(context.Background(), &faxprovider.Payload{To: "+81312345678", Document: []byte("x")}); !errors.Is(err, faxprovider.ErrNotConfigured) {
		t.Errorf("err = %v, want ErrNotConfigured", err)
	}
}

func TestFaxUsesClickSendWhenConfigured(t *testing.T) {
	cfg := config.ProviderConfig{
		ClickSend: config.ClickSendConfig{Username: "user", APIKey: "key"},
	}
	provider, err := Fax(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("Fax: %v", err)
	}
	if _, ok := provider.(*faxprovider.ClickSendProvider); !ok {
		t.Errorf("provider = %T, want *ClickSendProvider", provider)
	}
}

func TestEmailPrecedence(t *testing.T) {
	smtp := config.SMTPConfig{Host: "smtp.example.com", Port: 587, From: "orders@example.com"}
	resend := config.ResendConfig{APIKey: "re_key", From: "orders@example.com"}

	cases := []struct {
		name string
		cfg  config.ProviderConfig
		want string
	}{
		{
			name: "resend preferred when key present",
			cfg:  config.ProviderConfig{SMTP: smtp, Resend: resend},
			want: "*email.ResendProvider",
		},
		{
			name: "explicit smtp overrides resend key",
			cfg:  config.ProviderConfig{EmailBackend: "smtp", SMTP: smtp, Resend: resend},
			want: "*email.SMTPProvider",
		},
		{
			name: "smtp when only host configured",
			cfg:  config.ProviderConfig{SMTP: smtp},
			want: "*email.SMTPProvider",
		},
		{
			name: "disabled when nothing configured",
			cfg:  config.ProviderConfig{},
			want: "*email.Disabled",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			provider, err := Email(tc.cfg, zerolog.Nop())
			if err != nil {
				t.Fatalf("Email: %v", err)
			}

			var got string
			switch provider.(type) {
			case *emailprovider.ResendProvider:
				got = "*email.ResendProvider"
			case *emailprovider.SMTPProvider:
				got = "*email.SMTPProvider"
			case *emailprovider.Disabled:
				got = "*email.Disabled"
			default:
				got = "unknown"
			}
			if got != tc.want {
				t.Errorf("provider = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestEmailRejectsUnknownBackend(t *testing.T) {
	if _, err := Email(config.ProviderConfig{EmailBackend: "carrier-pigeon"}, zerolog.Nop()); err == nil {
		t.Fatal("unknown backend accepted")
	}
}

func TestLineFallsBackToDisabled(t *testing.T) {
	provider, err := Line(config.ProviderConfig{}, zerolog.Nop())
	if err != nil {
		t.Fatalf("Line: %v", err)
	}
	if _, err := provider.Send(context.Background(), &lineprovider.Payload{To: "U1234", Messages: []string{"x"}}); !errors.Is(err, lineprovider.ErrNotConfigured) {
		t.Errorf("err = %v, want ErrNotConfigured", err)
	}
}

func TestLineUsesMessagingAPIWhenConfigured(t *testing.T) {
	cfg := config.ProviderConfig{Line: config.LineConfig{ChannelToken: "token"}}
	provider, err := Line(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("Line: %v", err)
	}
	if _, ok := provider.(*lineprovider.MessagingProvider); !ok {
		t.Errorf("provider = %T, want *MessagingProvider", provider)
	}
}

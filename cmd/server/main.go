package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/replenmobile/ordersend/internal/adapters/common"
	emailadapter "github.com/replenmobile/ordersend/internal/adapters/email"
	faxadapter "github.com/replenmobile/ordersend/internal/adapters/fax"
	lineadapter "github.com/replenmobile/ordersend/internal/adapters/line"
	"github.com/replenmobile/ordersend/internal/analytics"
	"github.com/replenmobile/ordersend/internal/catalog"
	"github.com/replenmobile/ordersend/internal/config"
	"github.com/replenmobile/ordersend/internal/dispatch"
	"github.com/replenmobile/ordersend/internal/hanko"
	"github.com/replenmobile/ordersend/internal/logger"
	"github.com/replenmobile/ordersend/internal/metrics"
	"github.com/replenmobile/ordersend/internal/providers/factory"
	"github.com/replenmobile/ordersend/internal/render"
	"github.com/replenmobile/ordersend/internal/server"
	"github.com/replenmobile/ordersend/internal/vision"
)

const shutdownGrace = 10 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		fail("config load", err)
	}

	log, err := logger.New("ordersend", cfg.App.Env, cfg.App.LogLevel)
	if err != nil {
		fail("logger init", err)
	}

	// Rendering degrades instead of blocking startup: without a Japanese
	// glyph set the fax channel reports itself unavailable per order.
	var sealer render.Sealer
	var renderer render.Renderer
	font, err := render.LoadFont(render.FontCandidates(cfg.Render.FontPath)...)
	if err != nil {
		log.Warn().Err(err).Msg("order rendering disabled, japanese font not found")
		renderer = render.Unavailable(err)
	} else {
		log.Info().Str("font", font.Name).Str("path", font.Path).Msg("japanese font loaded")

		gen, err := hanko.New(font.Data, logger.Component(log, "hanko"))
		if err != nil {
			log.Warn().Err(err).Msg("seal generation disabled")
		} else {
			sealer = gen
		}

		renderOpts := []render.Option{render.WithRowsPerPage(cfg.Render.RowsPerPage)}
		if sealer != nil {
			renderOpts = append(renderOpts, render.WithSealer(sealer))
		}
		pdf, err := render.NewPDFRenderer(font, logger.Component(log, "renderer"), renderOpts...)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialise pdf renderer")
		}
		renderer = pdf
	}

	faxProvider, err := factory.Fax(cfg.Providers, logger.Component(log, "fax-provider"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialise fax provider")
	}
	faxAdapter, err := faxadapter.NewAdapter(faxProvider, renderer, logger.Component(log, "fax-adapter"),
		faxadapter.WithSimulation(cfg.Dispatch.SimulationMode),
		faxadapter.WithCountryPrefix(cfg.Dispatch.FaxCountryPrefix))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialise fax adapter")
	}

	emailProvider, err := factory.Email(cfg.Providers, logger.Component(log, "email-provider"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialise email provider")
	}
	emailAdapter, err := emailadapter.NewAdapter(emailProvider, logger.Component(log, "email-adapter"),
		emailadapter.WithSimulation(cfg.Dispatch.SimulationMode))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialise email adapter")
	}

	lineProvider, err := factory.Line(cfg.Providers, logger.Component(log, "line-provider"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialise line provider")
	}
	lineAdapter, err := lineadapter.NewAdapter(lineProvider, logger.Component(log, "line-adapter"),
		lineadapter.WithSimulation(cfg.Dispatch.SimulationMode))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialise line adapter")
	}

	dispatchMetrics := metrics.NewDispatchMetrics()
	dispatchOpts := []dispatch.Option{
		dispatch.WithTimeout(time.Duration(cfg.Dispatch.ProviderTimeoutSeconds) * time.Second),
		dispatch.WithObserver(dispatchMetrics),
	}

	if cfg.Kafka.Enabled() {
		prod, err := analytics.New(cfg.Kafka.Brokers, logger.Component(log, "analytics-producer"))
		if err != nil {
			log.Error().Err(err).Msg("analytics producer init failed, continuing without delivery records")
		} else {
			defer func() {
				if err := prod.Close(); err != nil {
					log.Error().Err(err).Msg("failed to close analytics producer")
				}
			}()
			recorder := analytics.NewKafkaRecorder(prod, cfg.Kafka.DeliveryTopic, logger.Component(log, "analytics-recorder"))
			if recorder != nil {
				dispatchOpts = append(dispatchOpts, dispatch.WithRecorder(recorder))
			}
		}
	}

	dispatcher, err := dispatch.New(
		[]common.Adapter{faxAdapter, emailAdapter, lineAdapter},
		logger.Component(log, "dispatcher"),
		dispatchOpts...)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialise dispatcher")
	}

	var catalogClient catalog.Client
	if strings.TrimSpace(cfg.Catalog.YahooAppID) != "" {
		client, err := catalog.NewYahooClient(cfg.Catalog, logger.Component(log, "catalog"))
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialise catalog client")
		}
		catalogClient = client
	} else {
		log.Warn().Msg("catalog lookup disabled, yahoo app id not set")
		catalogClient = catalog.NewDisabled("YAHOO_APP_ID not set")
	}

	var parser vision.Parser
	if strings.TrimSpace(cfg.Vision.OpenAIKey) != "" {
		p, err := vision.NewOpenAIParser(cfg.Vision, logger.Component(log, "vision"))
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialise invoice parser")
		}
		parser = p
	} else {
		log.Warn().Msg("invoice parsing disabled, openai key not set")
		parser = vision.NewDisabled("OPENAI_API_KEY not set")
	}

	srv, err := server.New(server.Config{
		Port:           cfg.App.Port,
		SimulationMode: cfg.Dispatch.SimulationMode,
		Services:       serviceReport(cfg),
	}, server.Dependencies{
		Dispatcher: dispatcher,
		Parser:     parser,
		Catalog:    catalogClient,
		Sealer:     sealer,
		Metrics:    dispatchMetrics.Handler(),
		Logger:     logger.Component(log, "http"),
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialise http server")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.Start)
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	log.Info().
		Int("port", cfg.App.Port).
		Bool("simulation", cfg.Dispatch.SimulationMode).
		Msg("order dispatch service started")

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("service terminated with error")
		return
	}
	log.Info().Msg("service stopped")
}

// serviceReport summarises which outbound integrations carry credentials,
// mirrored on the health endpoint for quick deployment checks.
func serviceReport(cfg *config.Config) map[string]bool {
	return map[string]bool{
		"clicksend":    strings.TrimSpace(cfg.Providers.ClickSend.Username) != "" && strings.TrimSpace(cfg.Providers.ClickSend.APIKey) != "",
		"email_smtp":   strings.TrimSpace(cfg.Providers.SMTP.Host) != "",
		"email_resend": strings.TrimSpace(cfg.Providers.Resend.APIKey) != "",
		"line":         strings.TrimSpace(cfg.Providers.Line.ChannelToken) != "",
		"yahoo":        strings.TrimSpace(cfg.Catalog.YahooAppID) != "",
		"openai":       strings.TrimSpace(cfg.Vision.OpenAIKey) != "",
		"kafka":        cfg.Kafka.Enabled(),
	}
}

func fail(stage string, err error) {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	logger.Fatal().Err(err).Str("stage", stage).Msg("order dispatch service init failed")
}

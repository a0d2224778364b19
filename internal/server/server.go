// Package server exposes the order dispatch engine over HTTP for the mobile
// client: order sending, invoice scanning, barcode lookup and seal previews.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"reflect"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/replenmobile/ordersend/internal/catalog"
	"github.com/replenmobile/ordersend/internal/dispatch"
	"github.com/replenmobile/ordersend/internal/render"
	"github.com/replenmobile/ordersend/internal/vision"
)

// Config carries the runtime settings for the HTTP layer.
type Config struct {
	Port           int
	SimulationMode bool
	// Services names each outbound integration and whether it carries
	// credentials, surfaced verbatim on the health endpoint.
	Services map[string]bool
}

// Dependencies collects the collaborators the HTTP layer serves. Dispatcher
// is mandatory; the rest degrade to service-unavailable responses when
// absent.
type Dependencies struct {
	Dispatcher *dispatch.Dispatcher
	Parser     vision.Parser
	Catalog    catalog.Client
	Sealer     render.Sealer
	Metrics    http.Handler
	Logger     zerolog.Logger
}

// Server is the HTTP front of the dispatch engine.
type Server struct {
	logger     zerolog.Logger
	echo       *echo.Echo
	port       int
	simulation bool
	services   map[string]bool

	dispatcher *dispatch.Dispatcher
	parser     vision.Parser
	catalog    catalog.Client
	sealer     render.Sealer
}

// New constructs the server and registers all routes.
func New(cfg Config, deps Dependencies) (*Server, error) {
	if deps.Dispatcher == nil {
		return nil, errors.New("server: dispatcher dependency is required")
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("server: invalid port %d", cfg.Port)
	}

	logger := deps.Logger
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}

	s := &Server{
		logger:     logger,
		port:       cfg.Port,
		simulation: cfg.SimulationMode,
		services:   cfg.Services,
		dispatcher: deps.Dispatcher,
		parser:     deps.Parser,
		catalog:    deps.Catalog,
		sealer:     deps.Sealer,
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.CORS())
	e.Use(requestLogger(logger))

	api := e.Group("/api")
	api.POST("/orders/send", s.sendOrder)
	api.POST("/invoices/parse", s.parseInvoice)
	api.GET("/products/:jan", s.lookupProduct)
	api.POST("/products/lookup", s.lookupProducts)
	api.GET("/hanko/:name", s.sealImage)

	e.GET("/healthz", s.healthz)
	if deps.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(deps.Metrics))
	}

	s.echo = e
	return s, nil
}

// Start begins serving and blocks until the listener stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)
	s.logger.Info().Str("addr", addr).Msg("http server listening")

	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: listen on %s: %w", addr, err)
	}
	return nil
}

// Shutdown drains in-flight requests and closes the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// ServeHTTP makes the server mountable and testable as a plain handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

func requestLogger(logger zerolog.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			event := logger.Info()
			switch {
			case v.Status >= http.StatusInternalServerError:
				event = logger.Error()
			case v.Status >= http.StatusBadRequest:
				event = logger.Warn()
			}
			event.
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("request_id", v.RequestID).
				Msg("http request")
			return nil
		},
	})
}

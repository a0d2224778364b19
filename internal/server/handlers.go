package server

import (
	"errors"
	"io"
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"

	"github.com/replenmobile/ordersend/internal/adapters/common"
	"github.com/replenmobile/ordersend/internal/catalog"
	"github.com/replenmobile/ordersend/internal/dispatch"
	"github.com/replenmobile/ordersend/internal/hanko"
	"github.com/replenmobile/ordersend/internal/order"
	"github.com/replenmobile/ordersend/internal/vision"
)

const (
	// maxInvoiceBytes caps uploaded invoice images at 8 MiB.
	maxInvoiceBytes = 8 << 20
	// maxBatchLookup caps how many barcodes one lookup call may resolve.
	maxBatchLookup = 50
)

// ErrorResponse is the uniform body for request failures outside the
// dispatch path; dispatch failures answer with the delivery result itself.
type ErrorResponse struct {
	Error string `json:"error"`
}

// InvoiceParseResponse lists the order lines recognised on one invoice image.
type InvoiceParseResponse struct {
	Items []vision.ScannedItem `json:"items"`
}

// ProductLookupRequest names the barcodes to resolve in one call.
type ProductLookupRequest struct {
	JANCodes []string `json:"jan_codes"`
}

// ProductLookupResponse maps each resolved barcode to its product. Barcodes
// that matched nothing are absent.
type ProductLookupResponse struct {
	Products map[string]*catalog.Product `json:"products"`
}

// HealthResponse reports liveness plus which integrations carry credentials.
type HealthResponse struct {
	Status     string          `json:"status"`
	Simulation bool            `json:"simulation,omitempty"`
	Services   map[string]bool `json:"services"`
}

func (s *Server) sendOrder(c echo.Context) error {
	var o order.Order
	if err := c.Bind(&o); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
	}

	result := s.dispatcher.SendOrder(c.Request().Context(), &o)
	return c.JSON(statusFor(result), result)
}

// statusFor maps a delivery outcome onto an HTTP status. Order problems are
// the caller's fault; provider refusals and outages are gateway conditions.
func statusFor(result *dispatch.Result) int {
	if result.Success {
		return http.StatusOK
	}
	switch result.Code {
	case common.CodeValidationFailed:
		return http.StatusUnprocessableEntity
	case common.CodeConfigurationMissing, common.CodeRenderingUnavailable:
		return http.StatusServiceUnavailable
	case common.CodeTransportRejected:
		return http.StatusBadGateway
	case common.CodeTransportUnreachable:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) parseInvoice(c echo.Context) error {
	if s.parser == nil {
		return c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "invoice parsing not configured"})
	}

	file, err := c.FormFile("image")
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "image file is required"})
	}
	if file.Size > maxInvoiceBytes {
		return c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{Error: "image exceeds the 8 MiB limit"})
	}

	src, err := file.Open()
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "image file is unreadable"})
	}
	defer src.Close()

	data, err := io.ReadAll(io.LimitReader(src, maxInvoiceBytes+1))
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "image file is unreadable"})
	}
	if len(data) > maxInvoiceBytes {
		return c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{Error: "image exceeds the 8 MiB limit"})
	}

	items, err := s.parser.ParseInvoice(c.Request().Context(), data, file.Header.Get("Content-Type"))
	if err != nil {
		if errors.Is(err, vision.ErrNotConfigured) {
			return c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: err.Error()})
		}
		return c.JSON(http.StatusBadGateway, ErrorResponse{Error: err.Error()})
	}
	return c.JSON(http.StatusOK, InvoiceParseResponse{Items: items})
}

func (s *Server) lookupProduct(c echo.Context) error {
	if s.catalog == nil {
		return c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "catalog lookup not configured"})
	}

	product, err := s.catalog.Lookup(c.Request().Context(), c.Param("jan"))
	switch {
	case err == nil:
		return c.JSON(http.StatusOK, product)
	case errors.Is(err, catalog.ErrInvalidJAN):
		return c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: err.Error()})
	case errors.Is(err, catalog.ErrNotFound):
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})
	case errors.Is(err, catalog.ErrNotConfigured):
		return c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: err.Error()})
	default:
		return c.JSON(http.StatusBadGateway, ErrorResponse{Error: err.Error()})
	}
}

func (s *Server) lookupProducts(c echo.Context) error {
	if s.catalog == nil {
		return c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "catalog lookup not configured"})
	}

	var req ProductLookupRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
	}
	if len(req.JANCodes) == 0 {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "at least one jan code is required"})
	}
	if len(req.JANCodes) > maxBatchLookup {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "too many jan codes in one request"})
	}

	products, err := s.catalog.LookupBatch(c.Request().Context(), req.JANCodes)
	if err != nil {
		if errors.Is(err, catalog.ErrNotConfigured) {
			return c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: err.Error()})
		}
		return c.JSON(http.StatusBadGateway, ErrorResponse{Error: err.Error()})
	}
	return c.JSON(http.StatusOK, ProductLookupResponse{Products: products})
}

func (s *Server) sealImage(c echo.Context) error {
	if s.sealer == nil {
		return c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "seal generation not configured"})
	}

	name := c.Param("name")
	if decoded, err := url.PathUnescape(name); err == nil {
		name = decoded
	}

	data, err := s.sealer.Seal(name)
	if err != nil {
		if errors.Is(err, hanko.ErrNameLength) {
			return c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: err.Error()})
		}
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
	}
	return c.Blob(http.StatusOK, "image/png", data)
}

func (s *Server) healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{
		Status:     "healthy",
		Simulation: s.simulation,
		Services:   s.services,
	})
}

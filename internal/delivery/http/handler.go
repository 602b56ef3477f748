package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/listcart/backend/internal/domain"
	"github.com/listcart/backend/internal/usecase"
)

// CartService is the pipeline the handlers drive
type CartService interface {
	IngestBulk(ctx context.Context, userID string, items []usecase.BulkItem) (*usecase.BulkReport, error)
	IngestImage(ctx context.Context, userID string, image []byte) (*usecase.ListReport, error)
	IngestLines(ctx context.Context, userID string, lines []string) (*usecase.ListReport, error)
	GetCart(ctx context.Context, userID string) (*domain.Cart, error)
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	service        CartService
	maxUploadBytes int64
	logger         *zap.Logger
}

// NewHandler creates a new HTTP handler. maxUploadBytes <= 0 means 10 MiB.
func NewHandler(service CartService, maxUploadBytes int64, logger *zap.Logger) *Handler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = 10 << 20
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		service:        service,
		maxUploadBytes: maxUploadBytes,
		logger:         logger,
	}
}

// bulkRequest is the body of POST /api/v1/cart/bulk
type bulkRequest struct {
	Products []bulkProduct `json:"products"`
}

// bulkProduct accepts quantity as either a string ("2 L") or a number (2)
type bulkProduct struct {
	Name     string          `json:"name"`
	Quantity json.RawMessage `json:"quantity"`
	Source   string          `json:"source"`
}

// linesRequest is the body of POST /api/v1/cart/lines
type linesRequest struct {
	Lines []string `json:"lines"`
}

// errorResponse is returned for every failed request
type errorResponse struct {
	Outcome domain.Outcome `json:"outcome"`
	Error   string         `json:"error"`
}

// HealthCheck returns the health status of the API
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "listcart-backend",
		"version": "1.0.0",
	})
}

// AddBulk handles structured product lists
func (h *Handler) AddBulk(c *gin.Context) {
	var req bulkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err))
		return
	}

	items := make([]usecase.BulkItem, 0, len(req.Products))
	for i, p := range req.Products {
		quantity, err := rawQuantity(p.Quantity)
		if err != nil {
			h.fail(c, fmt.Errorf("%w: product %d: %v", domain.ErrInvalidInput, i, err))
			return
		}
		items = append(items, usecase.BulkItem{
			Name:     p.Name,
			Quantity: quantity,
			Source:   domain.ParseSource(p.Source),
		})
	}

	report, err := h.service.IngestBulk(c.Request.Context(), userID(c), items)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, report)
}

// AddImage handles shopping list photos, sent either as the multipart field
// "image" or as the raw request body
func (h *Handler) AddImage(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)

	image, err := h.readImage(c)
	if err != nil {
		h.fail(c, err)
		return
	}

	report, err := h.service.IngestImage(c.Request.Context(), userID(c), image)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, report)
}

// AddLines handles lists already recognised on the client
func (h *Handler) AddLines(c *gin.Context) {
	var req linesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err))
		return
	}

	report, err := h.service.IngestLines(c.Request.Context(), userID(c), req.Lines)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, report)
}

// GetCart returns the caller's cart
func (h *Handler) GetCart(c *gin.Context) {
	cart, err := h.service.GetCart(c.Request.Context(), userID(c))
	if errors.Is(err, domain.ErrCartNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "cart not found"})
		return
	}
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, cart)
}

func (h *Handler) readImage(c *gin.Context) ([]byte, error) {
	if strings.HasPrefix(c.ContentType(), "multipart/form-data") {
		header, err := c.FormFile("image")
		if err != nil {
			return nil, fmt.Errorf("%w: multipart field \"image\" is required", domain.ErrInvalidInput)
		}
		f, err := header.Open()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
		}
		defer f.Close()
		return readAll(f)
	}
	return readAll(c.Request.Body)
}

func readAll(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, fmt.Errorf("%w: image exceeds %d bytes", domain.ErrInvalidInput, tooLarge.Limit)
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: image is empty", domain.ErrInvalidInput)
	}
	return data, nil
}

// rawQuantity renders a JSON string or number as the quantity text
func rawQuantity(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}

	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String(), nil
	}

	return "", fmt.Errorf("quantity must be a string or a number")
}

func (h *Handler) fail(c *gin.Context, err error) {
	status := statusForError(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.String("user_id", userID(c)),
			zap.Error(err))
	}

	c.JSON(status, errorResponse{
		Outcome: domain.OutcomeForError(err),
		Error:   err.Error(),
	})
}

// statusForError maps pipeline errors to HTTP status codes
func statusForError(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUpstreamTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, domain.ErrUpstreamFailure), errors.Is(err, domain.ErrCatalogUnavailable):
		return http.StatusBadGateway
	case errors.Is(err, domain.ErrCartRetriesExhausted), errors.Is(err, domain.ErrCartConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

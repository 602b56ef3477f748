package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/listcart/backend/internal/domain"
)

const (
	analyzePath     = "/vision/v3.2/read/analyze"
	subscriptionKey = "Ocp-Apim-Subscription-Key"
	maxSubmitTries  = 3
)

// Client talks to a Read-style OCR service: an image is POSTed for analysis,
// the service answers 202 with an Operation-Location URL, and that URL is
// polled until the status is succeeded or failed
type Client struct {
	httpClient  *http.Client
	apiKey      string
	baseURL     string
	rateLimiter *rate.Limiter
	logger      *zap.Logger
}

// ClientConfig holds the OCR service connection settings
type ClientConfig struct {
	BaseURL string
	APIKey  string
	// RequestsPerSecond caps submits and polls together; 0 means 10/s
	RequestsPerSecond float64
	Timeout           time.Duration
}

// NewClient creates a new OCR API client
func NewClient(config ClientConfig, logger *zap.Logger) *Client {
	rps := config.RequestsPerSecond
	if rps <= 0 {
		rps = 10
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		httpClient:  &http.Client{Timeout: timeout},
		apiKey:      config.APIKey,
		baseURL:     strings.TrimRight(config.BaseURL, "/"),
		rateLimiter: rate.NewLimiter(rate.Limit(rps), int(rps)+1),
		logger:      logger,
	}
}

// readResponse is the subset of the poll response we use
type readResponse struct {
	Status        string `json:"status"`
	AnalyzeResult *struct {
		ReadResults []struct {
			Page  int `json:"page"`
			Lines []struct {
				Text string `json:"text"`
			} `json:"lines"`
		} `json:"readResults"`
	} `json:"analyzeResult"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Submit uploads image for recognition and returns the operation URL.
// Transport errors, 429 and 5xx responses are retried with backoff.
func (c *Client) Submit(ctx context.Context, image []byte) (domain.OperationHandle, error) {
	endpoint := c.baseURL + analyzePath

	var lastErr error
	for attempt := 1; attempt <= maxSubmitTries; attempt++ {
		if attempt > 1 {
			if err := sleepContext(ctx, exponentialBackoff(attempt-1)); err != nil {
				return "", err
			}
		}

		handle, retry, err := c.submitOnce(ctx, endpoint, image)
		if err == nil {
			return handle, nil
		}
		lastErr = err
		if !retry {
			break
		}
		c.logger.Warn("ocr submit failed, retrying", zap.Int("attempt", attempt), zap.Error(err))
	}

	return "", lastErr
}

func (c *Client) submitOnce(ctx context.Context, endpoint string, image []byte) (domain.OperationHandle, bool, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return "", false, fmt.Errorf("rate limiter error: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(image))
	if err != nil {
		return "", false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set(subscriptionKey, c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", false, ctx.Err()
		}
		return "", true, fmt.Errorf("%w: %v", domain.ErrUpstreamFailure, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	if resp.StatusCode != http.StatusAccepted && resp.StatusCode != http.StatusOK {
		retry := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		return "", retry, fmt.Errorf("%w: submit status %d: %s", domain.ErrUpstreamFailure, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	location := resp.Header.Get("Operation-Location")
	if location == "" {
		return "", false, fmt.Errorf("%w: response has no Operation-Location", domain.ErrUpstreamFailure)
	}

	return domain.OperationHandle(location), false, nil
}

// Poll fetches the current state of an operation
func (c *Client) Poll(ctx context.Context, handle domain.OperationHandle) (domain.OCRStatus, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return domain.OCRStatus{}, fmt.Errorf("rate limiter error: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.operationURL(handle), nil)
	if err != nil {
		return domain.OCRStatus{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set(subscriptionKey, c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.OCRStatus{}, fmt.Errorf("%w: %v", domain.ErrUpstreamFailure, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return domain.OCRStatus{}, fmt.Errorf("%w: poll status %d: %s", domain.ErrUpstreamFailure, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var read readResponse
	if err := json.NewDecoder(resp.Body).Decode(&read); err != nil {
		return domain.OCRStatus{}, fmt.Errorf("failed to decode response: %w", err)
	}

	return toStatus(&read), nil
}

// operationURL accepts either the absolute Operation-Location or a bare operation id
func (c *Client) operationURL(handle domain.OperationHandle) string {
	h := string(handle)
	if strings.HasPrefix(h, "http://") || strings.HasPrefix(h, "https://") {
		return h
	}
	return c.baseURL + "/vision/v3.2/read/analyzeResults/" + h
}

func toStatus(read *readResponse) domain.OCRStatus {
	switch strings.ToLower(read.Status) {
	case "succeeded":
		var lines []string
		if read.AnalyzeResult != nil {
			for _, page := range read.AnalyzeResult.ReadResults {
				for _, line := range page.Lines {
					lines = append(lines, line.Text)
				}
			}
		}
		if lines == nil {
			lines = []string{}
		}
		return domain.OCRStatus{State: domain.OCRSucceeded, Lines: lines}
	case "failed":
		msg := "recognition failed"
		if read.Error != nil && read.Error.Message != "" {
			msg = read.Error.Message
		}
		return domain.OCRStatus{State: domain.OCRFailed, Message: msg}
	default:
		return domain.OCRStatus{State: domain.OCRPending}
	}
}

// exponentialBackoff returns 500ms, 1s, 2s, ... for attempt 1, 2, 3, ...
func exponentialBackoff(attempt int) time.Duration {
	return time.Duration(500*(1<<(attempt-1))) * time.Millisecond
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

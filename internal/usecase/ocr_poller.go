package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/listcart/backend/internal/domain"
)

// PollState is the state of one OCR poll loop
type PollState string

const (
	PollPending   PollState = "pending"
	PollSucceeded PollState = "succeeded"
	PollFailed    PollState = "failed"
	PollTimedOut  PollState = "timed_out"
)

// PollerConfig holds the fixed poll interval and attempt ceiling
type PollerConfig struct {
	Interval    time.Duration
	MaxAttempts int
}

// pollMachine is the retry state machine behind OCRPoller:
// Pending -> Succeeded | Failed | TimedOut. It has no notion of time; the
// caller decides how to wait between attempts.
type pollMachine struct {
	attempt     int
	maxAttempts int
	state       PollState
	lines       []string
	message     string
}

func newPollMachine(maxAttempts int) *pollMachine {
	return &pollMachine{maxAttempts: maxAttempts, state: PollPending}
}

// observe records one poll result and returns the new state
func (m *pollMachine) observe(status domain.OCRStatus) PollState {
	if m.state != PollPending {
		return m.state
	}
	m.attempt++

	switch status.State {
	case domain.OCRSucceeded:
		m.state = PollSucceeded
		m.lines = status.Lines
		return m.state
	case domain.OCRFailed:
		m.state = PollFailed
		m.message = status.Message
		return m.state
	}

	if m.attempt >= m.maxAttempts {
		m.state = PollTimedOut
	}
	return m.state
}

// OCRPoller submits an image to the OCR provider and polls for its lines
type OCRPoller struct {
	provider    domain.OCRProvider
	interval    time.Duration
	maxAttempts int
	logger      *zap.Logger
}

// NewOCRPoller creates a poller with defaults of a 1s interval and 10 attempts
func NewOCRPoller(provider domain.OCRProvider, config PollerConfig, logger *zap.Logger) *OCRPoller {
	interval := config.Interval
	if interval <= 0 {
		interval = time.Second
	}
	maxAttempts := config.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 10
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &OCRPoller{
		provider:    provider,
		interval:    interval,
		maxAttempts: maxAttempts,
		logger:      logger,
	}
}

// Recognize returns the recognised text lines of image in page order.
// A provider-reported failure returns ErrUpstreamFailure and running out of
// attempts returns ErrUpstreamTimeout. A poll that errors at transport level
// uses up an attempt and polling continues.
func (p *OCRPoller) Recognize(ctx context.Context, image []byte) ([]string, error) {
	if len(image) == 0 {
		return nil, fmt.Errorf("%w: image is empty", domain.ErrInvalidInput)
	}

	handle, err := p.provider.Submit(ctx, image)
	if err != nil {
		return nil, upstreamError(err)
	}
	p.logger.Debug("ocr submitted", zap.String("operation", string(handle)))

	machine := newPollMachine(p.maxAttempts)
	timer := time.NewTimer(p.interval)
	defer timer.Stop()

	for machine.state == PollPending {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}

		status, err := p.provider.Poll(ctx, handle)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			p.logger.Warn("ocr poll failed",
				zap.String("operation", string(handle)),
				zap.Int("attempt", machine.attempt+1),
				zap.Error(err),
			)
			status = domain.OCRStatus{State: domain.OCRPending}
		}

		if machine.observe(status) == PollPending {
			timer.Reset(p.interval)
		}
	}

	switch machine.state {
	case PollSucceeded:
		p.logger.Debug("ocr succeeded",
			zap.String("operation", string(handle)),
			zap.Int("attempts", machine.attempt),
			zap.Int("lines", len(machine.lines)),
		)
		return machine.lines, nil
	case PollFailed:
		return nil, fmt.Errorf("%w: %s", domain.ErrUpstreamFailure, machine.message)
	default:
		return nil, fmt.Errorf("%w: no result after %d attempts", domain.ErrUpstreamTimeout, machine.attempt)
	}
}

func upstreamError(err error) error {
	if errors.Is(err, domain.ErrUpstreamFailure) || errors.Is(err, domain.ErrUpstreamTimeout) ||
		errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %v", domain.ErrUpstreamFailure, err)
}

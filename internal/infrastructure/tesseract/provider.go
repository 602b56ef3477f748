// Package tesseract runs OCR locally through the Tesseract engine and
// exposes it with the same submit/poll contract as the remote OCR service.
//
// The gosseract binding is compiled only with the "ocr" build tag, which
// requires Tesseract to be installed:
//
//	apt-get install tesseract-ocr libtesseract-dev
//	go build -tags ocr ./...
package tesseract

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/listcart/backend/internal/domain"
)

// Engine turns image bytes into text
type Engine interface {
	Recognize(image []byte) (string, error)
}

// Config controls the local provider
type Config struct {
	// Workers bounds concurrent recognitions; 0 means 2
	Workers int64
	// Retention drops jobs nobody polled after this long; 0 means 10m
	Retention time.Duration
}

type job struct {
	status    domain.OCRStatus
	createdAt time.Time
}

// Provider runs recognitions in the background and reports them by handle
type Provider struct {
	engine    Engine
	workers   *semaphore.Weighted
	retention time.Duration
	logger    *zap.Logger
	now       func() time.Time

	mu   sync.Mutex
	jobs map[domain.OperationHandle]*job
	wg   sync.WaitGroup
}

// NewProvider creates a provider backed by engine
func NewProvider(engine Engine, config Config, logger *zap.Logger) *Provider {
	if config.Workers <= 0 {
		config.Workers = 2
	}
	if config.Retention <= 0 {
		config.Retention = 10 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Provider{
		engine:    engine,
		workers:   semaphore.NewWeighted(config.Workers),
		retention: config.Retention,
		logger:    logger,
		now:       time.Now,
		jobs:      make(map[domain.OperationHandle]*job),
	}
}

// Submit starts recognition of image and returns its handle immediately
func (p *Provider) Submit(ctx context.Context, image []byte) (domain.OperationHandle, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(image) == 0 {
		return "", fmt.Errorf("%w: empty image", domain.ErrInvalidInput)
	}

	handle := domain.OperationHandle(uuid.NewString())
	data := append([]byte(nil), image...)

	p.mu.Lock()
	p.expireLocked()
	p.jobs[handle] = &job{
		status:    domain.OCRStatus{State: domain.OCRPending},
		createdAt: p.now(),
	}
	p.mu.Unlock()

	p.wg.Add(1)
	go p.run(handle, data)

	return handle, nil
}

// Poll reports the state of handle. Terminal results are handed out once.
func (p *Provider) Poll(ctx context.Context, handle domain.OperationHandle) (domain.OCRStatus, error) {
	if err := ctx.Err(); err != nil {
		return domain.OCRStatus{}, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	j, ok := p.jobs[handle]
	if !ok {
		return domain.OCRStatus{}, fmt.Errorf("%w: unknown operation %q", domain.ErrUpstreamFailure, handle)
	}
	if j.status.State != domain.OCRPending {
		delete(p.jobs, handle)
	}

	return j.status, nil
}

// Wait blocks until all started recognitions have finished
func (p *Provider) Wait() {
	p.wg.Wait()
}

func (p *Provider) run(handle domain.OperationHandle, image []byte) {
	defer p.wg.Done()

	if err := p.workers.Acquire(context.Background(), 1); err != nil {
		p.finish(handle, domain.OCRStatus{State: domain.OCRFailed, Message: err.Error()})
		return
	}
	defer p.workers.Release(1)

	start := p.now()
	text, err := p.engine.Recognize(image)
	if err != nil {
		p.logger.Warn("tesseract recognition failed", zap.String("handle", string(handle)), zap.Error(err))
		p.finish(handle, domain.OCRStatus{State: domain.OCRFailed, Message: err.Error()})
		return
	}

	lines := splitLines(text)
	p.logger.Debug("tesseract recognition done",
		zap.String("handle", string(handle)),
		zap.Int("lines", len(lines)),
		zap.Duration("took", p.now().Sub(start)))
	p.finish(handle, domain.OCRStatus{State: domain.OCRSucceeded, Lines: lines})
}

func (p *Provider) finish(handle domain.OperationHandle, status domain.OCRStatus) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if j, ok := p.jobs[handle]; ok {
		j.status = status
	}
}

func (p *Provider) expireLocked() {
	cutoff := p.now().Add(-p.retention)
	for handle, j := range p.jobs {
		if j.createdAt.Before(cutoff) {
			delete(p.jobs, handle)
		}
	}
}

// splitLines breaks recognized text into its non-blank lines
func splitLines(text string) []string {
	lines := []string{}
	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, strings.TrimRight(line, " \t"))
	}
	return lines
}

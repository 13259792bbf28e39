package wiring

import (
	"fmt"
	"sync"
	"time"

	"github.com/liuwenjie/api-mock-server/internal/domain/trace"
	inboundhttp "github.com/liuwenjie/api-mock-server/internal/infrastructure/inbound/http"
	"github.com/liuwenjie/api-mock-server/internal/infrastructure/outbound/clock"
	"github.com/liuwenjie/api-mock-server/internal/infrastructure/outbound/filesystem"
	"github.com/liuwenjie/api-mock-server/internal/infrastructure/outbound/ratelimit"
	"github.com/liuwenjie/api-mock-server/internal/infrastructure/ports"
	"github.com/liuwenjie/api-mock-server/internal/infrastructure/services"
	"github.com/liuwenjie/api-mock-server/internal/infrastructure/usecases"
)

// Params holds the subset of configuration needed to construct infrastructure components.
type Params struct {
	ArchivePath    string
	Filter         string // expr predicate over archive entries, "" disables
	TraceSize      int
	RateLimit      float64 // tokens per second per client, <= 0 disables
	RateBurst      int
	RateLimiterTTL time.Duration
	Logger         ports.Logger
}

// Container owns the construction and lifecycle of all infrastructure components.
type Container struct {
	logger      ports.Logger
	server      *inboundhttp.Server
	archive     *filesystem.ArchiveFile
	loadUC      *usecases.LoadArchiveUseCase
	rateLimiter *ratelimit.ClientLimiter
	traceBuf    *trace.RingBuffer
	closeOnce   sync.Once
}

// New constructs all infrastructure components. Fallible operations (archive
// source, filter compilation) run before goroutine-starting operations (rate
// limiter store) to avoid goroutine leaks on early failure.
func New(p Params) (*Container, error) {
	archive, err := filesystem.NewArchiveFile(p.ArchivePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive source: %w", err)
	}

	var filter *services.EntryFilter
	if p.Filter != "" {
		filter, err = services.NewEntryFilter(p.Filter)
		if err != nil {
			return nil, fmt.Errorf("failed to compile entry filter: %w", err)
		}
	}

	// Start background goroutine only after all fallible ops succeed.
	var limiter *ratelimit.ClientLimiter
	var limiterPort ports.RateLimiter
	if p.RateLimit > 0 {
		limiter = ratelimit.NewClientLimiter(p.RateLimit, p.RateBurst, p.RateLimiterTTL)
		limiterPort = limiter
	}

	clk := clock.New()
	traceBuf := trace.NewRingBuffer(p.TraceSize)

	loadUC := usecases.NewLoadArchiveUseCase(archive, filter, p.Logger)
	handleReqUC := usecases.NewHandleRequestUseCase(clk, limiterPort, p.Logger, traceBuf)

	server := inboundhttp.NewServer(handleReqUC, loadUC, traceBuf, p.Logger)

	return &Container{
		logger:      p.Logger,
		server:      server,
		archive:     archive,
		loadUC:      loadUC,
		rateLimiter: limiter,
		traceBuf:    traceBuf,
	}, nil
}

// Close releases resources held by the container. It is idempotent.
func (c *Container) Close() {
	c.closeOnce.Do(func() {
		if c.rateLimiter != nil {
			c.rateLimiter.Stop()
		}
	})
}

// Logger returns the logger passed at construction time.
func (c *Container) Logger() ports.Logger {
	return c.logger
}

// Server returns the HTTP mock server.
func (c *Container) Server() *inboundhttp.Server {
	return c.server
}

// Archive returns the archive file source.
func (c *Container) Archive() *filesystem.ArchiveFile {
	return c.archive
}

// LoadArchiveUseCase returns the use case for loading the archive and building the index.
func (c *Container) LoadArchiveUseCase() *usecases.LoadArchiveUseCase {
	return c.loadUC
}

// TraceBuf returns the trace ring buffer.
func (c *Container) TraceBuf() *trace.RingBuffer {
	return c.traceBuf
}

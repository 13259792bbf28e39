package usecases

import (
	"context"

	"github.com/google/uuid"

	"github.com/liuwenjie/api-mock-server/internal/domain/match"
	"github.com/liuwenjie/api-mock-server/internal/domain/replay"
	"github.com/liuwenjie/api-mock-server/internal/domain/trace"
	"github.com/liuwenjie/api-mock-server/internal/infrastructure/ports"
	"github.com/liuwenjie/api-mock-server/internal/infrastructure/services"
)

// IncomingRequest represents a live request in domain terms, free of net/http.
// The transport layer is responsible for producing a single text
// representation of the body before calling in.
type IncomingRequest struct {
	Method   string
	Path     string
	RawQuery string
	Body     string
	ClientIP string
}

// HandleRequestResult is the outcome of processing one mock request.
type HandleRequestResult struct {
	Match       match.Result
	Replay      replay.Replay
	RateLimited bool
	TraceEntry  trace.Entry
}

// HandleRequestUseCase matches incoming requests against the index and
// materializes the response to replay.
type HandleRequestUseCase struct {
	clock       ports.Clock
	rateLimiter ports.RateLimiter
	logger      ports.Logger
	traceBuf    *trace.RingBuffer
}

// NewHandleRequestUseCase creates a new use case. rateLimiter may be nil
// when rate limiting is disabled.
func NewHandleRequestUseCase(
	clock ports.Clock,
	rateLimiter ports.RateLimiter,
	logger ports.Logger,
	traceBuf *trace.RingBuffer,
) *HandleRequestUseCase {
	return &HandleRequestUseCase{
		clock:       clock,
		rateLimiter: rateLimiter,
		logger:      logger,
		traceBuf:    traceBuf,
	}
}

// Execute resolves the request against idx and returns the replay to write.
func (uc *HandleRequestUseCase) Execute(ctx context.Context, req *IncomingRequest, idx *services.SignatureIndex) HandleRequestResult {
	entry := trace.Entry{
		ID:        uuid.NewString(),
		Timestamp: uc.clock.Now(),
		Method:    req.Method,
		Path:      req.Path,
		Query:     req.RawQuery,
		Ordinal:   -1,
	}

	if uc.rateLimiter != nil && !uc.rateLimiter.Allow(ctx, req.ClientIP) {
		uc.logger.Debug("request rate-limited", "method", req.Method, "path", req.Path, "client", req.ClientIP)
		entry.RateLimited = true
		entry.Status = 429
		uc.traceBuf.Add(entry)
		return HandleRequestResult{RateLimited: true, TraceEntry: entry}
	}

	res := match.Match(idx, req.Method, req.Path, req.RawQuery, req.Body)
	entry.Signature = res.Signature
	entry.Outcome = res.Outcome.String()

	var rep replay.Replay
	switch res.Outcome {
	case match.OutcomeMatched:
		rep = replay.Entry(res.Entry)
		entry.Ordinal = res.Entry.Ordinal
		for _, h := range rep.SkippedHeaders {
			uc.logger.Warn("skipping unreplayable recorded header",
				"ordinal", res.Entry.Ordinal, "header", h.Name)
		}
	case match.OutcomePathKnownNoVariant:
		rep = replay.Default(uc.clock.Now())
	default:
		rep = replay.NotFound(replay.Requested{
			Method: req.Method,
			Path:   req.Path,
			Query:  req.RawQuery,
		}, uc.clock.Now(), idx.Endpoints(10))
	}

	entry.Status = rep.Status
	uc.traceBuf.Add(entry)
	uc.logger.Debug("match outcome",
		"method", req.Method, "path", req.Path,
		"outcome", res.Outcome.String(), "signature", res.Signature, "status", rep.Status)

	return HandleRequestResult{
		Match:      res,
		Replay:     rep,
		TraceEntry: entry,
	}
}

package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/liuwenjie/api-mock-server/internal/infrastructure/ports"
)

var _ ports.Logger = (*NoopLogger)(nil)

// NoopLogger discards all log output.
type NoopLogger struct{}

func (l *NoopLogger) Info(string, ...any)  {}
func (l *NoopLogger) Warn(string, ...any)  {}
func (l *NoopLogger) Error(string, ...any) {}
func (l *NoopLogger) Debug(string, ...any) {}

var _ ports.Logger = (*CaptureLogger)(nil)

// CaptureLogger records log messages for assertions.
type CaptureLogger struct {
	mu       sync.Mutex
	Messages []string
}

func (l *CaptureLogger) record(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Messages = append(l.Messages, msg)
}

func (l *CaptureLogger) Info(msg string, _ ...any)  { l.record(msg) }
func (l *CaptureLogger) Warn(msg string, _ ...any)  { l.record(msg) }
func (l *CaptureLogger) Error(msg string, _ ...any) { l.record(msg) }
func (l *CaptureLogger) Debug(msg string, _ ...any) { l.record(msg) }

// Has reports whether a message was logged.
func (l *CaptureLogger) Has(msg string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, m := range l.Messages {
		if m == msg {
			return true
		}
	}
	return false
}

var _ ports.Clock = (*FixedClock)(nil)

// FixedClock returns a fixed time.
type FixedClock struct {
	T time.Time
}

func (c *FixedClock) Now() time.Time { return c.T }

var _ ports.RateLimiter = (*StubRateLimiter)(nil)

// StubRateLimiter returns a configurable Allow result.
type StubRateLimiter struct {
	AllowAll bool
}

func (r *StubRateLimiter) Allow(context.Context, string) bool {
	return r.AllowAll
}

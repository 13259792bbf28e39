package clock_test

import (
	"testing"
	"time"

	"github.com/liuwenjie/api-mock-server/internal/infrastructure/outbound/clock"
)

func TestRealClock_Now(t *testing.T) {
	clk := clock.New()
	before := time.Now()
	got := clk.Now()
	after := time.Now()

	if got.Before(before) || got.After(after) {
		t.Errorf("Now() = %v, want between %v and %v", got, before, after)
	}
}

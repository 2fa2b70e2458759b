package channel

import (
	"time"

	"github.com/benbjohnson/clock"
)

// Ticks is a reading of a free-running 32-bit microsecond timer.
// Differences must be taken with wrapping subtraction.
type Ticks uint32

// Sub returns t-u with wrapping, the elapsed ticks from u to t.
func (t Ticks) Sub(u Ticks) Ticks {
	return t - u
}

// Duration converts a tick count to a time.Duration.
func (t Ticks) Duration() time.Duration {
	return time.Duration(t) * time.Microsecond
}

// Clock is the monotonic time source read by edge handlers.
// Implementations must not block or allocate.
type Clock interface {
	Ticks() Ticks
}

// WallClock adapts a clock.Clock to microsecond ticks counted from the
// moment it was created. The tick value wraps roughly every 71 minutes.
type WallClock struct {
	clk   clock.Clock
	start time.Time
}

// NewClock returns a Clock driven by clk. Pass clock.New() in production
// and a *clock.Mock in tests.
func NewClock(clk clock.Clock) *WallClock {
	return &WallClock{clk: clk, start: clk.Now()}
}

// Ticks returns microseconds since the clock was created, truncated to 32 bits.
func (w *WallClock) Ticks() Ticks {
	return Ticks(uint32(w.clk.Since(w.start) / time.Microsecond))
}

// Package clock is the time seam for time window math, token expiry and
// debounced writes. Production code runs on the wall clock; tests drive a
// mock whose timers fire from Add and Set.
package clock

import (
	"time"

	"github.com/benbjohnson/clock"
)

type (
	Clock = clock.Clock
	Timer = clock.Timer
	Mock  = clock.Mock
)

func New() Clock {
	return clock.New()
}

// NewMock returns a mock clock positioned at now.
func NewMock(now time.Time) *Mock {
	mock := clock.NewMock()
	mock.Set(now)
	return mock
}

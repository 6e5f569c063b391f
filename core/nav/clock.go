package nav

import "time"

// Timer is a scheduled callback that can be stopped.
type Timer interface {
	Stop() bool
}

// Clock schedules delayed callbacks.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

// RealClock schedules on wall-clock time.
type RealClock struct{}

// AfterFunc calls time.AfterFunc.
func (RealClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Timing holds the delays of one page turn.
type Timing struct {
	// TransitionOut is how long the old spread animates out before the
	// new coordinate is committed.
	TransitionOut time.Duration

	// RenderSettle is how long the new spread gets to render before the
	// transition ends.
	RenderSettle time.Duration

	// NoticeDuration is how long an error notice stays visible.
	NoticeDuration time.Duration
}

// DefaultTiming returns the stock page-turn delays.
func DefaultTiming() Timing {
	return Timing{
		TransitionOut:  20 * time.Millisecond,
		RenderSettle:   800 * time.Millisecond,
		NoticeDuration: 2500 * time.Millisecond,
	}
}

// Package nav owns the reading position and sequences page turns.
//
// A Navigator is either idle or transitioning. A turn snapshots the old
// coordinate, cancels narration, clears the displayed illustration, commits
// the new coordinate after Timing.TransitionOut and returns to idle after a
// further Timing.RenderSettle. Requests that arrive while a turn is in
// flight are dropped.
package nav

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/FocuswithJustin/JuniperReader/core/corpus"
	apperrors "github.com/FocuswithJustin/JuniperReader/core/errors"
	"github.com/FocuswithJustin/JuniperReader/core/ref"
	"github.com/FocuswithJustin/JuniperReader/core/spread"
	"github.com/FocuswithJustin/JuniperReader/internal/logging"
)

// ErrLocatorNoMatch is returned by a Locator that has no answer.
var ErrLocatorNoMatch = errors.New("locator: no match")

// Narrator is the narration control the navigator needs.
// Cancel must not block.
type Narrator interface {
	Cancel()
}

// Display is the illustration surface reset on every turn.
type Display interface {
	Clear()
}

// Locator is a fallback that maps a query the local resolver cannot answer
// to a "Book Chapter" string.
type Locator interface {
	Locate(ctx context.Context, query string) (string, error)
}

// State is the navigation state.
type State struct {
	// Current is the left page of the displayed spread.
	Current corpus.Coordinate

	// Previous is the spread being animated out. It is set only while
	// transitioning.
	Previous *corpus.Coordinate

	Transitioning bool
	Direction     ref.Direction
}

// Snapshot is a consistent view of the navigator handed to observers.
type Snapshot struct {
	State

	// Spread is the spread for State.Current.
	Spread spread.Spread

	// PreviousSpread is the spread for State.Previous, if any.
	PreviousSpread *spread.Spread

	// Notice is the last navigation error while it is still visible.
	Notice error

	// Searching is true while a jump waits on the locator.
	Searching bool
}

// Config configures a Navigator. Calculator and Start are required.
type Config struct {
	Calculator *spread.Calculator
	Start      corpus.Coordinate
	Timing     Timing
	Clock      Clock
	Narrator   Narrator
	Display    Display
	Locator    Locator
	Logger     *slog.Logger
}

// Navigator is the page-turn state machine. It is safe for concurrent use.
type Navigator struct {
	calc     *spread.Calculator
	timing   Timing
	clock    Clock
	narrator Narrator
	display  Display
	locator  Locator
	log      *slog.Logger

	mu          sync.Mutex
	state       State
	notice      error
	noticeSeq   uint64
	noticeTimer Timer
	searching   bool
	observers   []func(Snapshot)
}

// New creates a navigator at cfg.Start. Start is not aligned; callers that
// seed it from user input should pass it through Calculator.Align first.
func New(cfg Config) (*Navigator, error) {
	if cfg.Calculator == nil {
		return nil, apperrors.NewValidation("calculator", "calculator is required")
	}
	if !cfg.Calculator.Resolver().Index().Contains(cfg.Start) {
		return nil, apperrors.NewValidation("start", "start coordinate is not in the corpus")
	}
	if cfg.Clock == nil {
		cfg.Clock = RealClock{}
	}
	if cfg.Timing == (Timing{}) {
		cfg.Timing = DefaultTiming()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Navigator{
		calc:     cfg.Calculator,
		timing:   cfg.Timing,
		clock:    cfg.Clock,
		narrator: cfg.Narrator,
		display:  cfg.Display,
		locator:  cfg.Locator,
		log:      cfg.Logger,
		state:    State{Current: cfg.Start},
	}, nil
}

// Subscribe registers fn to receive a snapshot after every state change.
// fn is called without the navigator lock held.
func (n *Navigator) Subscribe(fn func(Snapshot)) {
	n.mu.Lock()
	n.observers = append(n.observers, fn)
	n.mu.Unlock()
}

// Snapshot returns the current state.
func (n *Navigator) Snapshot() Snapshot {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.snapshotLocked()
}

// State returns the navigation state.
func (n *Navigator) State() State {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state
}

func (n *Navigator) snapshotLocked() Snapshot {
	s := Snapshot{
		State:     n.state,
		Notice:    n.notice,
		Searching: n.searching,
	}
	// Current and Previous always belong to the index, so Compute cannot
	// fail here.
	s.Spread, _ = n.calc.Compute(n.state.Current)
	if n.state.Previous != nil {
		prev, _ := n.calc.Compute(*n.state.Previous)
		s.PreviousSpread = &prev
	}
	return s
}

func (n *Navigator) notify() {
	n.mu.Lock()
	snap := n.snapshotLocked()
	observers := append([]func(Snapshot){}, n.observers...)
	n.mu.Unlock()

	for _, fn := range observers {
		fn(snap)
	}
}

// Navigate turns one spread in dir. It reports whether a turn started.
// While a turn is in flight the request is dropped and (false, nil) is
// returned. On failure the state is unchanged and the error is both
// returned and kept as a transient notice.
func (n *Navigator) Navigate(dir ref.Direction) (bool, error) {
	n.mu.Lock()
	if n.state.Transitioning {
		n.mu.Unlock()
		n.log.Debug("navigation dropped", "direction", dir.String(), "reason", "transitioning")
		return false, nil
	}

	target, err := n.target(dir)
	if err != nil {
		n.failLocked(err)
		n.mu.Unlock()
		n.log.Info("navigation failed", "direction", dir.String(), "error", err)
		n.notify()
		return false, err
	}

	n.beginLocked(target, dir)
	n.mu.Unlock()

	n.afterBegin(target)
	return true, nil
}

func (n *Navigator) target(dir ref.Direction) (corpus.Coordinate, error) {
	s, err := n.calc.Compute(n.state.Current)
	if err != nil {
		return corpus.Coordinate{}, err
	}
	return n.calc.Advance(s, dir)
}

// JumpTo resolves query and turns to the aligned result. Direction is
// always ref.Next. When the local search misses and a Locator is
// configured, the locator's answer is searched locally in turn.
func (n *Navigator) JumpTo(ctx context.Context, query string) (bool, error) {
	n.mu.Lock()
	if n.state.Transitioning {
		n.mu.Unlock()
		n.log.Debug("jump dropped", "query", query, "reason", "transitioning")
		return false, nil
	}
	n.mu.Unlock()

	target, err := n.resolve(ctx, query)

	n.mu.Lock()
	if err != nil {
		n.failLocked(err)
		n.mu.Unlock()
		n.log.Info("jump failed", "query", query, "error", err)
		n.notify()
		return false, err
	}
	// The locator call may have let another turn start.
	if n.state.Transitioning {
		n.mu.Unlock()
		n.log.Debug("jump dropped", "query", query, "reason", "transitioning")
		return false, nil
	}
	n.beginLocked(target, ref.Next)
	n.mu.Unlock()

	n.afterBegin(target)
	return true, nil
}

// Resolve maps query to an aligned coordinate without navigating.
func (n *Navigator) Resolve(ctx context.Context, query string) (corpus.Coordinate, error) {
	return n.resolve(ctx, query)
}

func (n *Navigator) resolve(ctx context.Context, query string) (corpus.Coordinate, error) {
	found, err := n.calc.Resolver().Search(query)
	if err == nil {
		return n.calc.Align(found)
	}
	if n.locator == nil || !apperrors.Is(err, apperrors.ErrNotFound) || strings.TrimSpace(query) == "" {
		return corpus.Coordinate{}, err
	}

	n.setSearching(true)
	answer, lerr := n.locator.Locate(ctx, query)
	n.setSearching(false)

	if lerr != nil {
		if errors.Is(lerr, ErrLocatorNoMatch) {
			return corpus.Coordinate{}, apperrors.NewNotFound("reference", query)
		}
		return corpus.Coordinate{}, lerr
	}

	found, err = n.calc.Resolver().Search(answer)
	if err != nil {
		n.log.Debug("locator answer not in corpus", "query", query, "answer", answer)
		return corpus.Coordinate{}, apperrors.NewNotFound("reference", query)
	}
	return n.calc.Align(found)
}

func (n *Navigator) setSearching(v bool) {
	n.mu.Lock()
	n.searching = v
	n.mu.Unlock()
	n.notify()
}

func (n *Navigator) beginLocked(target corpus.Coordinate, dir ref.Direction) {
	prev := n.state.Current
	n.state.Previous = &prev
	n.state.Transitioning = true
	n.state.Direction = dir
	n.clearNoticeLocked()
	logging.NavigationEvent(n.log, "start", prev.String(), target.String(), "direction", dir.String())
}

// afterBegin runs the side effects of a committed turn and schedules the
// two delayed phases. It is called without the lock.
func (n *Navigator) afterBegin(target corpus.Coordinate) {
	if n.narrator != nil {
		n.narrator.Cancel()
	}
	if n.display != nil {
		n.display.Clear()
	}
	n.notify()

	n.clock.AfterFunc(n.timing.TransitionOut, func() {
		n.mu.Lock()
		from := n.state.Current
		n.state.Current = target
		n.mu.Unlock()
		logging.NavigationEvent(n.log, "commit", from.String(), target.String())
		n.notify()

		n.clock.AfterFunc(n.timing.RenderSettle, n.settle)
	})
}

func (n *Navigator) settle() {
	n.mu.Lock()
	n.state.Transitioning = false
	n.state.Previous = nil
	n.state.Direction = ref.None
	n.mu.Unlock()
	n.notify()
}

func (n *Navigator) failLocked(err error) {
	n.clearNoticeLocked()
	n.notice = err
	seq := n.noticeSeq
	n.noticeTimer = n.clock.AfterFunc(n.timing.NoticeDuration, func() {
		n.mu.Lock()
		if n.noticeSeq != seq {
			n.mu.Unlock()
			return
		}
		n.notice = nil
		n.noticeTimer = nil
		n.mu.Unlock()
		n.notify()
	})
}

func (n *Navigator) clearNoticeLocked() {
	n.noticeSeq++
	n.notice = nil
	if n.noticeTimer != nil {
		n.noticeTimer.Stop()
		n.noticeTimer = nil
	}
}

// DismissNotice clears the current notice early.
func (n *Navigator) DismissNotice() {
	n.mu.Lock()
	had := n.notice != nil
	n.clearNoticeLocked()
	n.mu.Unlock()
	if had {
		n.notify()
	}
}

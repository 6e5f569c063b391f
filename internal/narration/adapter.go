// Package narration speaks chapter text through a pluggable speech engine
// with play, pause, resume and cancel controls.
//
// At most one session plays at a time. Every Speak call opens a new session
// identified by a UUID and cancels the previous one; lifecycle events from a
// cancelled session are ignored.
package narration

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	apperrors "github.com/FocuswithJustin/JuniperReader/core/errors"
	"github.com/FocuswithJustin/JuniperReader/internal/logging"
)

// State is the observable narration state.
type State struct {
	Speaking bool   `json:"speaking"`
	Paused   bool   `json:"paused"`
	Session  string `json:"session,omitempty"`
}

// Adapter wraps a Speaker.
type Adapter struct {
	speaker Speaker
	log     *slog.Logger

	mu        sync.Mutex
	session   string
	cancel    context.CancelFunc
	playback  Playback
	paused    bool
	resumed   chan struct{}
	observers []func(State)
}

// NewAdapter creates an adapter around speaker.
func NewAdapter(speaker Speaker, log *slog.Logger) *Adapter {
	if log == nil {
		log = logging.GetLogger()
	}
	return &Adapter{speaker: speaker, log: log}
}

// Subscribe registers fn to receive every state change.
func (a *Adapter) Subscribe(fn func(State)) {
	a.mu.Lock()
	a.observers = append(a.observers, fn)
	a.mu.Unlock()
}

// State returns the current state.
func (a *Adapter) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stateLocked()
}

func (a *Adapter) stateLocked() State {
	return State{Speaking: a.session != "", Paused: a.paused, Session: a.session}
}

func (a *Adapter) notify() {
	a.mu.Lock()
	st := a.stateLocked()
	observers := append([]func(State){}, a.observers...)
	a.mu.Unlock()
	for _, fn := range observers {
		fn(st)
	}
}

// Speak cancels any active narration and speaks text sentence by sentence.
// The first sentence is started before Speak returns so that engine
// failures surface as an *errors.ExternalError.
func (a *Adapter) Speak(text string) error {
	chunks := Split(text)
	if len(chunks) == 0 {
		return apperrors.NewValidation("text", "nothing to narrate")
	}

	if a.speaker == nil {
		return apperrors.NewExternal("speech", "start", ErrNoSpeaker)
	}

	ctx, cancel := context.WithCancel(context.Background())
	session := uuid.NewString()

	a.mu.Lock()
	prev, prevSession := a.playback, a.session
	if prevSession != "" {
		a.resetLocked()
	}
	a.session = session
	a.cancel = cancel
	a.mu.Unlock()

	if prev != nil {
		if err := prev.Stop(); err != nil {
			a.log.Debug("narration stop failed", "session", prevSession, "error", err)
		}
	}

	first, err := a.speaker.Start(ctx, Utterance{Session: session, Index: 0, Text: chunks[0]})
	if err != nil {
		a.finish(session)
		logging.ExternalCallFailed(a.log, "speech", "start", err, "session", session)
		return apperrors.NewExternal("speech", "start", err)
	}

	a.mu.Lock()
	if a.session != session {
		// Cancelled while starting.
		a.mu.Unlock()
		first.Stop()
		return nil
	}
	a.playback = first
	a.mu.Unlock()

	a.log.Debug("narration started", "session", session, "chunks", len(chunks))
	a.notify()

	go a.run(ctx, session, chunks, first)
	return nil
}

func (a *Adapter) run(ctx context.Context, session string, chunks []string, pb Playback) {
	for i := 0; ; i++ {
		select {
		case err := <-pb.Done():
			if err != nil && ctx.Err() == nil {
				logging.ExternalCallFailed(a.log, "speech", "play", err, "session", session, "chunk", i)
			}
		case <-ctx.Done():
			return
		}

		if i+1 >= len(chunks) || !a.waitWhilePaused(ctx, session) {
			a.finish(session)
			return
		}

		next, err := a.speaker.Start(ctx, Utterance{Session: session, Index: i + 1, Text: chunks[i+1]})
		if err != nil {
			if ctx.Err() == nil {
				logging.ExternalCallFailed(a.log, "speech", "start", err, "session", session, "chunk", i+1)
			}
			a.finish(session)
			return
		}

		a.mu.Lock()
		if a.session != session {
			a.mu.Unlock()
			next.Stop()
			return
		}
		a.playback = next
		a.mu.Unlock()
		pb = next
	}
}

// waitWhilePaused blocks between chunks while the session is paused. It
// reports whether the session is still active.
func (a *Adapter) waitWhilePaused(ctx context.Context, session string) bool {
	for {
		a.mu.Lock()
		if a.session != session {
			a.mu.Unlock()
			return false
		}
		if !a.paused {
			a.mu.Unlock()
			return true
		}
		if a.resumed == nil {
			a.resumed = make(chan struct{})
		}
		ch := a.resumed
		a.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return false
		}
	}
}

// finish ends session if it is still the active one.
func (a *Adapter) finish(session string) {
	a.mu.Lock()
	if a.session != session {
		a.mu.Unlock()
		return
	}
	a.resetLocked()
	a.mu.Unlock()
	a.notify()
}

func (a *Adapter) resetLocked() {
	if a.cancel != nil {
		a.cancel()
	}
	if a.resumed != nil {
		close(a.resumed)
	}
	a.session = ""
	a.cancel = nil
	a.playback = nil
	a.paused = false
	a.resumed = nil
}

// Pause pauses the active narration. It is a no-op when nothing is playing.
func (a *Adapter) Pause() error {
	a.mu.Lock()
	if a.session == "" || a.paused {
		a.mu.Unlock()
		return nil
	}
	if a.playback != nil {
		if err := a.playback.Pause(); err != nil {
			a.mu.Unlock()
			return apperrors.NewExternal("speech", "pause", err)
		}
	}
	a.paused = true
	a.mu.Unlock()
	a.notify()
	return nil
}

// Resume continues paused narration. It is a no-op unless paused.
func (a *Adapter) Resume() error {
	a.mu.Lock()
	if a.session == "" || !a.paused {
		a.mu.Unlock()
		return nil
	}
	if a.playback != nil {
		if err := a.playback.Resume(); err != nil {
			a.mu.Unlock()
			return apperrors.NewExternal("speech", "resume", err)
		}
	}
	a.paused = false
	if a.resumed != nil {
		close(a.resumed)
		a.resumed = nil
	}
	a.mu.Unlock()
	a.notify()
	return nil
}

// Cancel stops narration immediately. It never blocks and is safe to call
// at any time.
func (a *Adapter) Cancel() {
	a.mu.Lock()
	if a.session == "" {
		a.mu.Unlock()
		return
	}
	pb := a.playback
	session := a.session
	a.resetLocked()
	a.mu.Unlock()

	if pb != nil {
		if err := pb.Stop(); err != nil {
			a.log.Debug("narration stop failed", "session", session, "error", err)
		}
	}
	a.notify()
}

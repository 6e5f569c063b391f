package narration

import (
	"context"
	"errors"
)

// ErrPauseUnsupported is returned by playbacks that cannot pause.
var ErrPauseUnsupported = errors.New("narration: pause not supported on this platform")

// ErrNoSpeaker is reported when narration is requested without a speech engine.
var ErrNoSpeaker = errors.New("narration: no speech engine configured")

// Utterance is one chunk of speech.
type Utterance struct {
	// Session identifies the Speak call the chunk belongs to.
	Session string

	// Index is the chunk position within the session.
	Index int

	Text string
}

// Speaker starts speech. It is the port to the platform's speech engine.
type Speaker interface {
	Start(ctx context.Context, u Utterance) (Playback, error)
}

// Playback controls one utterance in progress.
type Playback interface {
	Pause() error
	Resume() error

	// Stop ends playback. It must not block.
	Stop() error

	// Done yields exactly one value once playback ends, nil when the
	// utterance completed.
	Done() <-chan error
}

package narration

import (
	"context"
	"fmt"
	"os/exec"
	"sync"
)

// CommandSpeaker speaks through an external program such as espeak-ng.
// The utterance text is passed as the final argument.
type CommandSpeaker struct {
	Command string
	Args    []string
}

// Start launches the command for u.
func (s *CommandSpeaker) Start(ctx context.Context, u Utterance) (Playback, error) {
	args := append(append([]string{}, s.Args...), u.Text)
	cmd := exec.CommandContext(ctx, s.Command, args...)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", s.Command, err)
	}

	p := &processPlayback{cmd: cmd, done: make(chan error, 1)}
	go func() {
		err := cmd.Wait()
		p.mu.Lock()
		stopped := p.stopped
		p.mu.Unlock()
		if stopped {
			err = nil
		}
		p.done <- err
	}()
	return p, nil
}

type processPlayback struct {
	cmd  *exec.Cmd
	done chan error

	mu      sync.Mutex
	stopped bool
}

func (p *processPlayback) Pause() error  { return pauseProcess(p.cmd.Process) }
func (p *processPlayback) Resume() error { return resumeProcess(p.cmd.Process) }

func (p *processPlayback) Stop() error {
	p.mu.Lock()
	p.stopped = true
	p.mu.Unlock()
	// A stopped (SIGSTOP) process still dies on SIGKILL.
	return p.cmd.Process.Kill()
}

func (p *processPlayback) Done() <-chan error { return p.done }

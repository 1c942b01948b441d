package invoke

import (
	"context"
	"path/filepath"
	"sync"
)

// Reply is one scripted response to an Invoke call.
type Reply struct {
	Result Result
	Err    error

	// Effect runs before the reply is returned, e.g. to create the files a
	// real tool would have produced.
	Effect func(Command) error
}

// Scripted implements Invoker with canned replies keyed by tool base name.
// It records every call and never starts a process. Tools without a queued
// reply get Default.
type Scripted struct {
	Default Reply

	mu      sync.Mutex
	replies map[string][]Reply
	calls   []Command
}

// NewScripted creates an empty Scripted invoker whose default reply is a
// zero exit.
func NewScripted() *Scripted {
	return &Scripted{replies: make(map[string][]Reply)}
}

// On queues replies for the named tool. Replies are consumed in order; the
// last one repeats once the queue would otherwise be empty.
func (s *Scripted) On(tool string, replies ...Reply) *Scripted {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replies[tool] = append(s.replies[tool], replies...)
	return s
}

func (s *Scripted) Invoke(ctx context.Context, c Command) (*Result, error) {
	s.mu.Lock()
	s.calls = append(s.calls, c)
	reply := s.Default
	tool := filepath.Base(c.Path)
	if queue := s.replies[tool]; len(queue) > 0 {
		reply = queue[0]
		if len(queue) > 1 {
			s.replies[tool] = queue[1:]
		}
	}
	s.mu.Unlock()

	if reply.Effect != nil {
		if err := reply.Effect(c); err != nil {
			return nil, &LaunchError{Tool: c.Path, Err: err}
		}
	}
	if reply.Err != nil {
		return nil, reply.Err
	}
	if err := ctx.Err(); err != nil {
		return &Result{ExitCode: -1, Interrupted: true}, nil
	}
	res := reply.Result
	return &res, nil
}

// Calls returns a copy of every command received so far.
func (s *Scripted) Calls() []Command {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Command, len(s.calls))
	copy(out, s.calls)
	return out
}

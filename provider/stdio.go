package provider

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/linanwx/surfbot/logger"
	"github.com/linanwx/surfbot/stream"
)

// Stdio is a line-delimited transport over an arbitrary reader/writer
// pair: one wire-format JSON event per inbound line, one envelope per
// outbound line. Used when surfbot fronts an assistant subprocess or in
// tests; not part of the configured transport registry.
type Stdio struct {
	r io.Reader
	w io.Writer

	wmu      sync.Mutex
	events   chan stream.Event
	stopOnce sync.Once
	stopped  chan struct{}
}

// NewStdio creates a stdio transport over r and w.
func NewStdio(r io.Reader, w io.Writer) *Stdio {
	return &Stdio{
		r:       r,
		w:       w,
		events:  make(chan stream.Event, 64),
		stopped: make(chan struct{}),
	}
}

func (t *Stdio) Start(ctx context.Context) (<-chan stream.Event, error) {
	go func() {
		defer close(t.events)

		scanner := bufio.NewScanner(t.r)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

		for scanner.Scan() {
			line := scanner.Bytes()
			if len(line) == 0 {
				continue
			}
			ev, err := stream.Parse(line)
			if err != nil {
				logger.Warn("malformed event line skipped", "err", err)
				continue
			}
			if ev == nil {
				continue
			}
			select {
			case t.events <- ev:
			case <-ctx.Done():
				return
			case <-t.stopped:
				return
			}
		}

		if err := scanner.Err(); err != nil && ctx.Err() == nil {
			select {
			case t.events <- stream.ErrorEvent{Err: fmt.Errorf("read stream: %w", err)}:
			case <-ctx.Done():
			case <-t.stopped:
			}
		}
	}()

	return t.events, nil
}

func (t *Stdio) Send(ctx context.Context, env stream.Envelope) error {
	t.wmu.Lock()
	defer t.wmu.Unlock()

	line := append(env.MarshalWire(), '\n')
	if _, err := t.w.Write(line); err != nil {
		return fmt.Errorf("write envelope: %w", err)
	}
	return nil
}

func (t *Stdio) Stop() error {
	t.stopOnce.Do(func() { close(t.stopped) })
	return nil
}

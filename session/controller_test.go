package session

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/linanwx/surfbot/stream"
	"github.com/linanwx/surfbot/track"
)

// fakeTransport records sends and lets tests script inbound events.
type fakeTransport struct {
	events chan stream.Event

	mu       sync.Mutex
	sent     []stream.Envelope
	onSend   func(env stream.Envelope)
	stopOnce sync.Once
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{events: make(chan stream.Event, 64)}
}

func (f *fakeTransport) Start(ctx context.Context) (<-chan stream.Event, error) {
	return f.events, nil
}

func (f *fakeTransport) Send(ctx context.Context, env stream.Envelope) error {
	f.mu.Lock()
	f.sent = append(f.sent, env)
	cb := f.onSend
	f.mu.Unlock()
	if cb != nil {
		cb(env)
	}
	return nil
}

func (f *fakeTransport) Stop() error {
	f.stopOnce.Do(func() { close(f.events) })
	return nil
}

func (f *fakeTransport) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func newTestController() (*Controller, *bytes.Buffer, *fakeTransport) {
	ft := newFakeTransport()
	out := &bytes.Buffer{}
	c := New(Options{
		Transport: ft,
		In:        strings.NewReader(""),
		Out:       out,
		Width:     func() int { return 80 },
		Markdown:  false,
		Name:      "surfbot",
	})
	return c, out, ft
}

// apply runs events through the decoder and flushes one frame.
func apply(c *Controller, events ...stream.Event) {
	for _, ev := range events {
		c.handleEvent(ev)
	}
	c.surf.Flush()
}

func TestTextStreamingFlow(t *testing.T) {
	c, out, _ := newTestController()

	apply(c,
		stream.InitEvent{SessionID: "sess-1"},
		stream.ContentBlockStartEvent{Block: stream.BlockText},
		stream.ContentBlockDeltaEvent{Delta: stream.DeltaText, Text: "Hello "},
		stream.ContentBlockDeltaEvent{Delta: stream.DeltaText, Text: "world"},
		stream.ContentBlockStopEvent{},
		stream.ResultEvent{TotalCostUSD: 0.0023, DurationMs: 1500},
	)

	if c.SessionID() != "sess-1" {
		t.Fatalf("SessionID() = %q, want %q", c.SessionID(), "sess-1")
	}
	frame := out.String()
	if !strings.Contains(frame, "Hello world") {
		t.Fatalf("frame missing prose: %q", frame)
	}
	if !strings.Contains(frame, "$0.0023") || !strings.Contains(frame, "1.5s") {
		t.Fatalf("frame missing summary: %q", frame)
	}
	if c.totalCost != 0.0023 {
		t.Fatalf("totalCost = %v, want 0.0023", c.totalCost)
	}
}

func TestToolLifecycle(t *testing.T) {
	c, out, _ := newTestController()

	apply(c,
		stream.ContentBlockStartEvent{Block: stream.BlockToolUse, ToolID: "t1", ToolName: "Read"},
		stream.ContentBlockDeltaEvent{Delta: stream.DeltaInputJSON, PartialJSON: `{"file_path":`},
		stream.ContentBlockDeltaEvent{Delta: stream.DeltaInputJSON, PartialJSON: `"a.ts"}`},
		stream.ContentBlockStopEvent{},
	)

	if !strings.Contains(out.String(), "Read: a.ts") {
		t.Fatalf("frame missing tool summary: %q", out.String())
	}
	if c.tracker.ActiveCount() != 0 {
		t.Fatalf("ActiveCount() = %d, want 0 after stop", c.tracker.ActiveCount())
	}
}

func TestNewBlockClosesRunningTools(t *testing.T) {
	c, _, _ := newTestController()

	apply(c, stream.ContentBlockStartEvent{Block: stream.BlockToolUse, ToolID: "t1", ToolName: "Read"})
	rec := c.tracker.Get("t1")
	if rec == nil {
		t.Fatal("tool t1 not tracked")
	}

	// No stop for t1; the next block supersedes it.
	apply(c, stream.ContentBlockStartEvent{Block: stream.BlockToolUse, ToolID: "t2", ToolName: "Grep"})

	if rec.State != track.StateDone {
		t.Fatalf("t1 state = %v, want done after supersession", rec.State)
	}
}

func TestToolProgressIdempotentWithStop(t *testing.T) {
	c, _, _ := newTestController()

	apply(c, stream.ContentBlockStartEvent{Block: stream.BlockToolUse, ToolID: "t1", ToolName: "Bash"})
	rec := c.tracker.Get("t1")

	// Error progress arrives before the block stop; stop must not
	// overwrite the error state.
	apply(c,
		stream.ToolProgressEvent{ToolID: "t1", IsError: true},
		stream.ContentBlockStopEvent{},
	)

	if rec.State != track.StateError {
		t.Fatalf("state = %v, want error preserved", rec.State)
	}
}

func TestMalformedToolInputContinues(t *testing.T) {
	c, out, _ := newTestController()

	apply(c,
		stream.ContentBlockStartEvent{Block: stream.BlockToolUse, ToolID: "t1", ToolName: "Read"},
		stream.ContentBlockDeltaEvent{Delta: stream.DeltaInputJSON, PartialJSON: `{"file_path": "tr`},
		stream.ContentBlockStopEvent{},
		stream.ContentBlockStartEvent{Block: stream.BlockText},
		stream.ContentBlockDeltaEvent{Delta: stream.DeltaText, Text: "still going"},
	)

	if !strings.Contains(out.String(), "still going") {
		t.Fatalf("session did not continue past malformed input: %q", out.String())
	}
	if c.failed {
		t.Fatal("malformed tool input must not fail the session")
	}
}

func TestLocalCommandsNeverQueued(t *testing.T) {
	c, _, _ := newTestController()

	c.submit("/help")
	if c.queue.Len() != 0 {
		t.Fatalf("queue.Len() = %d after /help, want 0", c.queue.Len())
	}

	c.submit("/exit")
	if c.queue.Len() != 0 {
		t.Fatalf("queue.Len() = %d after /exit, want 0", c.queue.Len())
	}
	if !c.stopped() {
		t.Fatal("/exit should stop the session")
	}
	if c.failed {
		t.Fatal("/exit is a successful outcome")
	}
}

func TestSubmitQueuesMessage(t *testing.T) {
	c, out, _ := newTestController()

	c.submit("hello there")
	c.surf.Flush()

	if c.queue.Len() != 1 {
		t.Fatalf("queue.Len() = %d, want 1", c.queue.Len())
	}
	if !strings.Contains(out.String(), "hello there") {
		t.Fatalf("frame missing echo: %q", out.String())
	}
	if c.loader == nil {
		t.Fatal("loader should appear after submit")
	}
}

func TestSubmitAfterInterruptDropped(t *testing.T) {
	c, _, _ := newTestController()

	c.Interrupt()
	c.Interrupt() // idempotent
	c.submit("too late")

	if c.queue.Len() != 0 {
		t.Fatalf("queue.Len() = %d, want 0 after interrupt", c.queue.Len())
	}
}

func TestEmptySubmitIgnored(t *testing.T) {
	c, _, _ := newTestController()
	c.submit("   ")
	if c.queue.Len() != 0 {
		t.Fatalf("queue.Len() = %d, want 0 for blank input", c.queue.Len())
	}
}

func TestErrorEventFailsSession(t *testing.T) {
	c, out, _ := newTestController()

	apply(c, stream.ErrorEvent{Err: errors.New("connection reset")})

	if !c.failed {
		t.Fatal("error event should mark the session failed")
	}
	if !strings.Contains(out.String(), "connection reset") {
		t.Fatalf("frame missing error: %q", out.String())
	}
}

func TestResultClosesOpenElements(t *testing.T) {
	c, _, _ := newTestController()

	apply(c,
		stream.ContentBlockStartEvent{Block: stream.BlockToolUse, ToolID: "t1", ToolName: "Read"},
	)
	rec := c.tracker.Get("t1")

	apply(c, stream.ResultEvent{TotalCostUSD: 0.001, DurationMs: 100})

	if rec.State != track.StateDone {
		t.Fatalf("open tool state = %v, want done at turn end", rec.State)
	}
	if c.loader != nil {
		t.Fatal("loader should be retired at turn end")
	}
}

func TestKeyEditingAndSubmit(t *testing.T) {
	c, _, _ := newTestController()

	for _, r := range "hey" {
		c.handleKey(r)
	}
	c.handleKey(0x7f) // backspace
	if c.input.Value() != "he" {
		t.Fatalf("input = %q, want %q", c.input.Value(), "he")
	}

	c.handleKey('\r')
	if c.input.Value() != "" {
		t.Fatalf("input = %q after enter, want empty", c.input.Value())
	}
	if c.queue.Len() != 1 {
		t.Fatalf("queue.Len() = %d, want 1", c.queue.Len())
	}
}

func TestStartEndToEnd(t *testing.T) {
	ft := newFakeTransport()
	out := &bytes.Buffer{}
	c := New(Options{
		Transport:       ft,
		In:              strings.NewReader(""),
		Out:             out,
		Width:           func() int { return 80 },
		SpinnerInterval: 10 * time.Millisecond,
	})

	// Each send answers with a canned turn.
	ft.onSend = func(env stream.Envelope) {
		ft.events <- stream.ContentBlockStartEvent{Block: stream.BlockText}
		ft.events <- stream.ContentBlockDeltaEvent{Delta: stream.DeltaText, Text: "pong"}
		ft.events <- stream.ContentBlockStopEvent{}
		ft.events <- stream.ResultEvent{TotalCostUSD: 0.002, DurationMs: 50}
	}
	ft.events <- stream.InitEvent{SessionID: "sess-e2e"}

	resCh := make(chan Result, 1)
	go func() {
		res, _ := c.Start(context.Background())
		resCh <- res
	}()

	c.Submit("ping")

	deadline := time.After(2 * time.Second)
	for ft.sentCount() == 0 {
		select {
		case <-deadline:
			t.Fatal("message never reached the transport")
		case <-time.After(5 * time.Millisecond):
		}
	}
	// Give the reply time to render before shutdown.
	time.Sleep(50 * time.Millisecond)
	c.Interrupt()

	select {
	case res := <-resCh:
		if res.SessionID != "sess-e2e" {
			t.Fatalf("SessionID = %q, want %q", res.SessionID, "sess-e2e")
		}
		if res.TotalCostUSD != 0.002 {
			t.Fatalf("TotalCostUSD = %v, want 0.002", res.TotalCostUSD)
		}
		if !res.Success {
			t.Fatal("interrupted session should still be successful")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after Interrupt")
	}

	if !strings.Contains(out.String(), "pong") {
		t.Fatalf("transcript missing reply: %q", out.String())
	}
}

func TestStreamClosedUnexpectedly(t *testing.T) {
	ft := newFakeTransport()
	c := New(Options{
		Transport: ft,
		In:        strings.NewReader(""),
		Out:       &bytes.Buffer{},
		Width:     func() int { return 80 },
	})

	resCh := make(chan Result, 1)
	go func() {
		res, _ := c.Start(context.Background())
		resCh <- res
	}()

	time.Sleep(20 * time.Millisecond)
	ft.Stop() // closes the event channel without an interrupt

	select {
	case res := <-resCh:
		if res.Success {
			t.Fatal("unexpected stream close should not be a success")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after stream close")
	}
}

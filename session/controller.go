// Package session runs one interactive terminal session: it owns the
// event loop that consumes the remote stream, drives the render surface,
// tracks tool activity, and feeds user input back out through the
// outbound queue.
//
// Concurrency model: a single loop goroutine owns all mutable UI state
// (transcript nodes, decoder phase, tracker writes). Feeder goroutines —
// key reader, transport stream, outbound pump, spinner ticker — only
// send on channels. Interrupt is safe from any goroutine, including a
// signal handler.
package session

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/linanwx/surfbot/logger"
	"github.com/linanwx/surfbot/queue"
	"github.com/linanwx/surfbot/stream"
	"github.com/linanwx/surfbot/surface"
	"github.com/linanwx/surfbot/track"
)

// phase is the stream decoder state.
type phase int

const (
	phaseIdle phase = iota
	phaseText
	phaseToolInput
)

// Options configures a session.
type Options struct {
	Transport stream.Transport
	In        io.Reader // raw-mode key input
	Out       io.Writer // terminal
	Width     func() int

	Markdown        bool
	SpinnerInterval time.Duration
	Name            string
	Tagline         string
	Prompt          string
}

// Result is the outcome of a finished session.
type Result struct {
	SessionID    string
	TotalCostUSD float64
	Success      bool
}

// Controller coordinates one session.
type Controller struct {
	opts Options

	queue   *queue.Queue
	tracker *track.Tracker
	surf    *surface.Surface
	input   *surface.InputNode

	// loop-owned state
	phase     phase
	curText   *surface.TextNode
	curToolID string
	loader    *surface.LoaderNode
	totalCost float64
	failed    bool

	mu        sync.Mutex
	sessionID string

	quit     chan struct{}
	stopOnce sync.Once
	submitCh chan string
	localEv  chan stream.Event
}

// New creates a controller. Start runs the session.
func New(opts Options) *Controller {
	if opts.Prompt == "" {
		opts.Prompt = "> "
	}
	if opts.SpinnerInterval <= 0 {
		opts.SpinnerInterval = 120 * time.Millisecond
	}
	return &Controller{
		opts:     opts,
		queue:    queue.New(),
		tracker:  track.NewTracker(),
		surf:     surface.New(opts.Out, opts.Width),
		input:    &surface.InputNode{Prompt: opts.Prompt},
		quit:     make(chan struct{}),
		submitCh: make(chan string, 8),
		localEv:  make(chan stream.Event, 8),
	}
}

// SessionID returns the remote session id, or "" before init arrives.
func (c *Controller) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

func (c *Controller) setSessionID(id string) {
	c.mu.Lock()
	c.sessionID = id
	c.mu.Unlock()
}

// Submit enqueues a message as if the user typed it and pressed enter.
// Safe from any goroutine. A no-op once the session is stopping.
func (c *Controller) Submit(text string) {
	select {
	case c.submitCh <- text:
	case <-c.quit:
	}
}

// Interrupt requests an orderly shutdown: the outbound queue closes so no
// further messages are sent, and the loop exits after the current
// iteration. Idempotent and async-signal safe.
func (c *Controller) Interrupt() {
	c.stopOnce.Do(func() {
		c.queue.Close()
		close(c.quit)
	})
}

func (c *Controller) stopped() bool {
	select {
	case <-c.quit:
		return true
	default:
		return false
	}
}

// Start runs the session until the user exits, the transport fails, or
// ctx is cancelled. The terminal is always left renderable: the final
// frame is flushed and the transport stopped on every path out.
func (c *Controller) Start(ctx context.Context) (Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	events, err := c.opts.Transport.Start(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("session: start transport: %w", err)
	}
	defer func() {
		if err := c.opts.Transport.Stop(); err != nil {
			logger.Warn("transport stop failed", "err", err)
		}
	}()

	// Stray log lines would corrupt the raw-mode frame.
	resume := logger.Suspend()
	defer resume()

	c.surf.Append(&surface.HeaderNode{Name: c.opts.Name, Tagline: c.opts.Tagline})
	c.surf.SetFooter(c.input)

	keyCh := make(chan rune, 32)
	go c.readKeys(keyCh)
	go c.pumpOutbound(ctx)

	ticker := time.NewTicker(c.opts.SpinnerInterval)
	defer ticker.Stop()

	c.surf.Flush()

loop:
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				if !c.stopped() {
					c.fail(errors.New("stream closed unexpectedly"))
					c.Interrupt()
				}
				break loop
			}
			c.handleEvent(ev)
			c.drainEvents(events)

		case ev := <-c.localEv:
			c.handleEvent(ev)

		case r := <-keyCh:
			c.handleKey(r)
			c.drainKeys(keyCh)

		case text := <-c.submitCh:
			c.submit(text)

		case <-ticker.C:
			if c.loader != nil {
				c.loader.Tick()
				c.surf.Invalidate()
			}

		case <-c.quit:
			break loop

		case <-ctx.Done():
			c.Interrupt()
			break loop
		}

		c.surf.Flush()
	}

	c.finishTurn()
	c.surf.Flush()

	res := Result{
		SessionID:    c.SessionID(),
		TotalCostUSD: c.totalCost,
		Success:      !c.failed,
	}
	return res, nil
}

// drainEvents applies already-buffered events so a burst renders in one
// frame instead of one flush per event.
func (c *Controller) drainEvents(events <-chan stream.Event) {
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			c.handleEvent(ev)
		default:
			return
		}
	}
}

func (c *Controller) drainKeys(keyCh <-chan rune) {
	for {
		select {
		case r := <-keyCh:
			c.handleKey(r)
		default:
			return
		}
	}
}

// handleEvent advances the decoder state machine for one inbound event.
func (c *Controller) handleEvent(ev stream.Event) {
	switch e := ev.(type) {
	case stream.InitEvent:
		c.setSessionID(e.SessionID)
		logger.Info("session established", "id", e.SessionID)

	case stream.ContentBlockStartEvent:
		c.retireLoader()
		c.finalizeText()
		switch e.Block {
		case stream.BlockText:
			// A new block supersedes any tools still marked running.
			c.closeRunningTools()
			c.curText = surface.NewTextNode(c.opts.Markdown)
			c.surf.Append(c.curText)
			c.phase = phaseText
		case stream.BlockToolUse:
			c.closeRunningTools()
			if rec := c.tracker.Start(e.ToolID, e.ToolName); rec != nil {
				c.surf.Append(&surface.ToolNode{Rec: rec})
			}
			c.curToolID = e.ToolID
			c.phase = phaseToolInput
		}
		c.surf.Invalidate()

	case stream.ContentBlockDeltaEvent:
		switch e.Delta {
		case stream.DeltaText:
			if c.curText != nil {
				c.curText.Append(e.Text)
				c.surf.Invalidate()
			}
		case stream.DeltaInputJSON:
			if c.curToolID != "" {
				c.tracker.AppendInput(c.curToolID, e.PartialJSON)
			}
		}

	case stream.ContentBlockStopEvent:
		switch c.phase {
		case phaseText:
			c.finalizeText()
		case phaseToolInput:
			c.tracker.Complete(c.curToolID, false)
			c.curToolID = ""
			c.surf.Invalidate()
		}
		c.phase = phaseIdle

	case stream.ToolProgressEvent:
		// Overlaps with stop-driven completion; Complete is idempotent.
		if c.tracker.Complete(e.ToolID, e.IsError) {
			c.surf.Invalidate()
		}

	case stream.ResultEvent:
		c.finishTurn()
		c.totalCost += e.TotalCostUSD
		c.surf.Append(&surface.SummaryNode{
			CostUSD:  e.TotalCostUSD,
			Duration: time.Duration(e.DurationMs) * time.Millisecond,
		})
		if e.IsError {
			logger.Warn("turn ended with error result")
		}

	case stream.ErrorEvent:
		c.fail(e.Err)
	}
}

// finishTurn closes every open element: streaming text, running tools,
// and the loader. Safe to call repeatedly.
func (c *Controller) finishTurn() {
	c.finalizeText()
	c.closeRunningTools()
	c.retireLoader()
	c.curToolID = ""
	c.phase = phaseIdle
}

func (c *Controller) finalizeText() {
	if c.curText != nil {
		c.curText.Finalize()
		c.curText = nil
		c.surf.Invalidate()
	}
}

func (c *Controller) closeRunningTools() {
	if n := c.tracker.MarkAllRunningDone(); n > 0 {
		logger.Debug("closed superseded tools", "count", n)
		c.surf.Invalidate()
	}
}

func (c *Controller) retireLoader() {
	if c.loader != nil {
		c.surf.Remove(c.loader)
		c.loader = nil
	}
}

func (c *Controller) ensureLoader() {
	if c.loader == nil {
		c.loader = &surface.LoaderNode{}
		c.surf.Append(c.loader)
	}
}

func (c *Controller) fail(err error) {
	c.retireLoader()
	c.surf.Append(&surface.ErrorNode{Err: err})
	c.failed = true
	logger.Error("session error", "err", err)
}

// handleKey processes one key from the raw-mode reader.
func (c *Controller) handleKey(r rune) {
	switch r {
	case '\r', '\n':
		c.submit(c.input.Take())
		c.surf.Invalidate()
	case 0x7f, 0x08: // backspace
		c.input.Backspace()
		c.surf.Invalidate()
	case 0x03: // ctrl-c
		c.Interrupt()
	case 0x04: // ctrl-d on an empty line ends the session
		if c.input.Value() == "" {
			c.Interrupt()
		}
	default:
		if r >= ' ' {
			c.input.Insert(r)
			c.surf.Invalidate()
		}
	}
}

// submit handles one line of user input: local commands run immediately
// and never reach the outbound queue; everything else is echoed and
// queued for the transport.
func (c *Controller) submit(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}

	switch text {
	case "/exit", "/quit", "/q":
		c.Interrupt()
		return
	case "/help", "/?":
		c.surf.Append(surface.HelpNode{})
		return
	}

	c.surf.Append(&surface.UserNode{Text: text})
	c.ensureLoader()
	if !c.queue.Push(text) {
		logger.Debug("submit after close dropped")
	}
}

// pumpOutbound drains the queue and sends each message over the
// transport, stamping the current session id at send time.
func (c *Controller) pumpOutbound(ctx context.Context) {
	for {
		text, ok := c.queue.Next(ctx)
		if !ok {
			return
		}
		env := stream.Envelope{SessionID: c.SessionID(), Text: text}
		if err := c.opts.Transport.Send(ctx, env); err != nil {
			logger.Error("send failed", "err", err)
			select {
			case c.localEv <- stream.ErrorEvent{Err: err}:
			case <-c.quit:
			}
			return
		}
	}
}

// readKeys reads runes from the raw-mode input, stripping escape
// sequences, and feeds them to the loop. Exits on read error or EOF.
func (c *Controller) readKeys(keyCh chan<- rune) {
	br := bufio.NewReader(c.opts.In)
	for {
		r, _, err := br.ReadRune()
		if err != nil {
			return
		}
		if r == 0x1b {
			skipEscape(br)
			continue
		}
		select {
		case keyCh <- r:
		case <-c.quit:
			return
		}
	}
}

// skipEscape consumes the remainder of an ANSI escape sequence.
func skipEscape(br *bufio.Reader) {
	b, err := br.ReadByte()
	if err != nil || b != '[' {
		return
	}
	for {
		b, err := br.ReadByte()
		if err != nil || (b >= 0x40 && b <= 0x7e) {
			return
		}
	}
}

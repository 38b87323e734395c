// Package stream defines the remote assistant event union and its wire codec.
//
// The remote side emits one event at a time, in order: a session init, then
// interleaved content blocks (prose or tool invocations) delivered as
// start/delta/stop triples, optional tool progress markers, and a terminal
// result per turn. Unknown event kinds are skipped so protocol additions
// never fail a session.
package stream

// Kind discriminates between event kinds.
type Kind int

const (
	// KindInit establishes session identity.
	KindInit Kind = iota
	// KindContentBlockStart opens a prose or tool-use block.
	KindContentBlockStart
	// KindContentBlockDelta carries an incremental block fragment.
	KindContentBlockDelta
	// KindContentBlockStop closes the open block.
	KindContentBlockStop
	// KindToolProgress reports explicit tool completion.
	KindToolProgress
	// KindResult terminates a turn with cost and duration.
	KindResult
	// KindError reports a transport failure. Emitted locally by
	// transports, never parsed off the wire.
	KindError
)

// Event is the interface for all inbound events.
type Event interface {
	Kind() Kind
}

// BlockKind identifies the kind of content block.
type BlockKind string

const (
	BlockText    BlockKind = "text"
	BlockToolUse BlockKind = "tool_use"
)

// DeltaKind identifies the kind of content block delta.
type DeltaKind string

const (
	DeltaText      DeltaKind = "text_delta"
	DeltaInputJSON DeltaKind = "input_json_delta"
)

// InitEvent establishes session identity.
type InitEvent struct {
	SessionID string
}

// Kind returns the event kind.
func (InitEvent) Kind() Kind { return KindInit }

// ContentBlockStartEvent opens a new content block. ToolID and ToolName
// are set only for tool-use blocks.
type ContentBlockStartEvent struct {
	Block    BlockKind
	ToolID   string
	ToolName string
}

// Kind returns the event kind.
func (ContentBlockStartEvent) Kind() Kind { return KindContentBlockStart }

// ContentBlockDeltaEvent carries an incremental fragment of the open block:
// Text for text deltas, PartialJSON for tool input deltas.
type ContentBlockDeltaEvent struct {
	Delta       DeltaKind
	Text        string
	PartialJSON string
}

// Kind returns the event kind.
func (ContentBlockDeltaEvent) Kind() Kind { return KindContentBlockDelta }

// ContentBlockStopEvent closes the open block.
type ContentBlockStopEvent struct{}

// Kind returns the event kind.
func (ContentBlockStopEvent) Kind() Kind { return KindContentBlockStop }

// ToolProgressEvent reports explicit completion of a tool invocation.
// It overlaps with stop-driven completion; both paths are idempotent.
type ToolProgressEvent struct {
	ToolID  string
	IsError bool
}

// Kind returns the event kind.
func (ToolProgressEvent) Kind() Kind { return KindToolProgress }

// ResultEvent terminates a turn.
type ResultEvent struct {
	TotalCostUSD float64
	DurationMs   int64
	IsError      bool
}

// Kind returns the event kind.
func (ResultEvent) Kind() Kind { return KindResult }

// ErrorEvent reports an unrecoverable transport failure.
type ErrorEvent struct {
	Err error
}

// Kind returns the event kind.
func (ErrorEvent) Kind() Kind { return KindError }

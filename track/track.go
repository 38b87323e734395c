// Package track maintains in-flight tool invocations and their display state.
//
// The remote protocol offers two completion signals for a tool — an explicit
// progress event and the implicit close of its content block — and some
// variants emit neither when a tool is superseded by a new block. All paths
// funnel into Complete, which is idempotent, and MarkAllRunningDone covers
// the superseded case.
package track

import (
	"strings"
	"sync"

	"github.com/mattn/go-runewidth"
	"github.com/tidwall/gjson"

	"github.com/linanwx/surfbot/logger"
)

// State is the lifecycle state of a tool invocation.
type State int

const (
	StateRunning State = iota
	StateDone
	StateError
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateDone:
		return "done"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// maxSummaryWidth caps the salient-field display width in terminal cells.
const maxSummaryWidth = 60

// Record is one tool invocation. Input accumulates as raw fragments until
// the invocation is finalized, then parses (or doesn't — malformed partial
// JSON leaves ParsedInput empty, which is not an error).
type Record struct {
	ID   string
	Name string

	State       State
	ParsedInput string // valid JSON once finalized, "" if absent/malformed

	raw strings.Builder
}

// RawInput returns the accumulated raw input payload.
func (r *Record) RawInput() string { return r.raw.String() }

// Summary renders the record for compact display: the tool name plus its
// salient input field, e.g. "Read: a.ts" or "Bash: ls -la".
func (r *Record) Summary() string {
	field := salientField(r.Name, r.ParsedInput)
	if field == "" {
		return r.Name
	}
	return runewidth.Truncate(r.Name+": "+field, maxSummaryWidth, "…")
}

// salientFields maps tool names to the input fields worth surfacing, in
// preference order.
var salientFields = map[string][]string{
	"Read":      {"file_path", "path"},
	"Write":     {"file_path", "path"},
	"Edit":      {"file_path", "path"},
	"Bash":      {"command"},
	"Grep":      {"pattern"},
	"Glob":      {"pattern"},
	"WebFetch":  {"url"},
	"WebSearch": {"query"},
}

// fallbackFields is tried for tools without a dedicated rule.
var fallbackFields = []string{"file_path", "path", "command", "pattern", "url", "query", "description"}

func salientField(name, parsed string) string {
	if parsed == "" {
		return ""
	}
	fields, ok := salientFields[name]
	if !ok {
		fields = fallbackFields
	}
	for _, f := range fields {
		if v := gjson.Get(parsed, f).String(); v != "" {
			return strings.ReplaceAll(v, "\n", " ")
		}
	}
	return ""
}

// Tracker maps invocation id to record for currently-open invocations.
// Finalized records leave the active set but remain valid objects — the
// transcript keeps rendering them.
type Tracker struct {
	mu     sync.Mutex
	active map[string]*Record
	order  []string // active ids in start order
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{active: make(map[string]*Record)}
}

// Start opens a new invocation record in state running. A duplicate id is
// a protocol anomaly, not a fatal error: the call is a no-op and returns nil.
func (t *Tracker) Start(id, name string) *Record {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.active[id]; ok {
		logger.Debug("duplicate tool start ignored", "id", id, "name", name)
		return nil
	}
	rec := &Record{ID: id, Name: name, State: StateRunning}
	t.active[id] = rec
	t.order = append(t.order, id)
	return rec
}

// AppendInput accumulates a raw input fragment. Unknown ids are ignored.
func (t *Tracker) AppendInput(id, fragment string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if rec, ok := t.active[id]; ok {
		rec.raw.WriteString(fragment)
	}
}

// Complete finalizes an invocation: the accumulated input is parsed if it
// is valid JSON, the state transitions to done or error, and the record
// leaves the active set. Unknown ids — already retired or never started —
// are a no-op, so completion events may race with defensive bulk closure.
func (t *Tracker) Complete(id string, isError bool) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.active[id]
	if !ok {
		return false
	}
	t.finalizeLocked(rec, isError)
	return true
}

// MarkAllRunningDone finalizes every running invocation as done. Used when
// a new content block begins, because some protocol variants omit explicit
// completion for superseded tools. Returns the number closed.
func (t *Tracker) MarkAllRunningDone() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	// finalizeLocked mutates t.order; iterate a snapshot.
	ids := append([]string(nil), t.order...)
	n := 0
	for _, id := range ids {
		if rec, ok := t.active[id]; ok {
			t.finalizeLocked(rec, false)
			n++
		}
	}
	return n
}

// finalizeLocked parses input, sets terminal state, and retires the record.
// Must be called with mu held.
func (t *Tracker) finalizeLocked(rec *Record, isError bool) {
	raw := rec.raw.String()
	if raw != "" && gjson.Valid(raw) {
		rec.ParsedInput = raw
	} else if raw != "" {
		logger.Debug("tool input not valid JSON, treating as absent", "id", rec.ID, "tool", rec.Name)
	}

	if isError {
		rec.State = StateError
	} else {
		rec.State = StateDone
	}

	delete(t.active, rec.ID)
	for i, id := range t.order {
		if id == rec.ID {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
}

// Get returns the active record for id, or nil.
func (t *Tracker) Get(id string) *Record {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active[id]
}

// ActiveCount returns the number of open invocations.
func (t *Tracker) ActiveCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.active)
}

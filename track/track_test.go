package track

import (
	"strings"
	"testing"
)

func TestStartAndComplete(t *testing.T) {
	tr := NewTracker()
	rec := tr.Start("t1", "Read")
	if rec == nil {
		t.Fatal("Start() returned nil")
	}
	if rec.State != StateRunning {
		t.Fatalf("State = %v, want running", rec.State)
	}

	tr.AppendInput("t1", `{"file_path":`)
	tr.AppendInput("t1", `"a.ts"}`)

	if !tr.Complete("t1", false) {
		t.Fatal("Complete() = false, want true")
	}
	if rec.State != StateDone {
		t.Fatalf("State = %v, want done", rec.State)
	}
	if rec.ParsedInput != `{"file_path":"a.ts"}` {
		t.Fatalf("ParsedInput = %q", rec.ParsedInput)
	}
	if got := rec.Summary(); got != "Read: a.ts" {
		t.Fatalf("Summary() = %q, want %q", got, "Read: a.ts")
	}
}

func TestDuplicateStartIgnored(t *testing.T) {
	tr := NewTracker()
	if tr.Start("t1", "Read") == nil {
		t.Fatal("first Start() returned nil")
	}
	if tr.Start("t1", "Write") != nil {
		t.Fatal("duplicate Start() should return nil")
	}
	if tr.ActiveCount() != 1 {
		t.Fatalf("ActiveCount() = %d, want 1", tr.ActiveCount())
	}
}

func TestCompleteUnknownNoop(t *testing.T) {
	tr := NewTracker()
	if tr.Complete("nope", false) {
		t.Fatal("Complete of unknown id should return false")
	}
}

func TestCompleteIdempotent(t *testing.T) {
	tr := NewTracker()
	rec := tr.Start("t1", "Bash")
	tr.Complete("t1", false)
	if tr.Complete("t1", true) {
		t.Fatal("second Complete should be a no-op")
	}
	if rec.State != StateDone {
		t.Fatalf("State = %v, want done (not overwritten)", rec.State)
	}
}

func TestCompleteError(t *testing.T) {
	tr := NewTracker()
	rec := tr.Start("t1", "Bash")
	tr.Complete("t1", true)
	if rec.State != StateError {
		t.Fatalf("State = %v, want error", rec.State)
	}
}

func TestMarkAllRunningDone(t *testing.T) {
	tr := NewTracker()
	a := tr.Start("t1", "Read")
	b := tr.Start("t2", "Grep")
	tr.Complete("t1", false)

	if n := tr.MarkAllRunningDone(); n != 1 {
		t.Fatalf("MarkAllRunningDone() = %d, want 1", n)
	}
	if a.State != StateDone || b.State != StateDone {
		t.Fatalf("states = %v, %v, want done, done", a.State, b.State)
	}
	if tr.ActiveCount() != 0 {
		t.Fatalf("ActiveCount() = %d, want 0", tr.ActiveCount())
	}
}

func TestMarkAllRunningDoneFinalizesEvery(t *testing.T) {
	tr := NewTracker()
	recs := []*Record{
		tr.Start("a", "Read"),
		tr.Start("b", "Grep"),
		tr.Start("c", "Bash"),
	}

	if n := tr.MarkAllRunningDone(); n != 3 {
		t.Fatalf("MarkAllRunningDone() = %d, want 3", n)
	}
	for _, rec := range recs {
		if rec.State != StateDone {
			t.Fatalf("%s state = %v, want done", rec.ID, rec.State)
		}
	}
	if tr.ActiveCount() != 0 {
		t.Fatalf("ActiveCount() = %d, want 0", tr.ActiveCount())
	}
}

func TestMalformedInputNotError(t *testing.T) {
	tr := NewTracker()
	rec := tr.Start("t1", "Read")
	tr.AppendInput("t1", `{"file_path": "a.`)
	tr.Complete("t1", false)

	if rec.State != StateDone {
		t.Fatalf("State = %v, want done", rec.State)
	}
	if rec.ParsedInput != "" {
		t.Fatalf("ParsedInput = %q, want empty for malformed input", rec.ParsedInput)
	}
	if got := rec.Summary(); got != "Read" {
		t.Fatalf("Summary() = %q, want bare tool name", got)
	}
}

func TestSummarySalientFields(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  string
	}{
		{"Bash", `{"command":"ls -la"}`, "Bash: ls -la"},
		{"Grep", `{"pattern":"func main"}`, "Grep: func main"},
		{"WebFetch", `{"url":"https://example.com"}`, "WebFetch: https://example.com"},
		{"CustomTool", `{"path":"/tmp/x"}`, "CustomTool: /tmp/x"},
		{"CustomTool", `{"weird":"field"}`, "CustomTool"},
	}
	for _, tc := range cases {
		tr := NewTracker()
		rec := tr.Start("t1", tc.name)
		tr.AppendInput("t1", tc.input)
		tr.Complete("t1", false)
		if got := rec.Summary(); got != tc.want {
			t.Fatalf("Summary(%s, %s) = %q, want %q", tc.name, tc.input, got, tc.want)
		}
	}
}

func TestSummaryTruncation(t *testing.T) {
	tr := NewTracker()
	rec := tr.Start("t1", "Bash")
	tr.AppendInput("t1", `{"command":"`+strings.Repeat("x", 200)+`"}`)
	tr.Complete("t1", false)

	got := rec.Summary()
	if !strings.HasSuffix(got, "…") {
		t.Fatalf("Summary() = %q, want truncated with ellipsis", got)
	}
	if len([]rune(got)) > 61 {
		t.Fatalf("Summary() too long: %d runes", len([]rune(got)))
	}
}

func TestSummaryNewlinesFlattened(t *testing.T) {
	tr := NewTracker()
	rec := tr.Start("t1", "Bash")
	tr.AppendInput("t1", `{"command":"ls\ncat x"}`)
	tr.Complete("t1", false)

	if got := rec.Summary(); strings.Contains(got, "\n") {
		t.Fatalf("Summary() = %q, contains newline", got)
	}
}

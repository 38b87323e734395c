package surface

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/linanwx/surfbot/mdterm"
	"github.com/linanwx/surfbot/track"
)

var (
	nameStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6"))
	taglineStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	userStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	runningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	doneStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	errStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// HeaderNode is the one-time session banner.
type HeaderNode struct {
	Name    string
	Tagline string
}

func (h *HeaderNode) Lines(width int) []string {
	return []string{
		nameStyle.Render(h.Name),
		taglineStyle.Render(h.Tagline),
		"",
	}
}

// UserNode echoes a submitted user message.
type UserNode struct {
	Text string
}

func (u *UserNode) Lines(width int) []string {
	var out []string
	for i, line := range strings.Split(u.Text, "\n") {
		if i == 0 {
			out = append(out, userStyle.Render("> ")+line)
		} else {
			out = append(out, "  "+line)
		}
	}
	out = append(out, "")
	return out
}

// TextNode accumulates streamed assistant prose. While streaming it renders
// raw; once finalized it renders through the Markdown pipeline (when
// enabled), so partial markup never hits the styling pass.
type TextNode struct {
	buf      strings.Builder
	final    bool
	markdown bool
}

// NewTextNode creates an empty streaming text node.
func NewTextNode(markdown bool) *TextNode {
	return &TextNode{markdown: markdown}
}

// Append adds a streamed fragment.
func (t *TextNode) Append(s string) {
	t.buf.WriteString(s)
}

// Finalize marks the node complete. Idempotent.
func (t *TextNode) Finalize() {
	t.final = true
}

// Finalized reports whether the node has been finalized.
func (t *TextNode) Finalized() bool { return t.final }

// Text returns the accumulated prose.
func (t *TextNode) Text() string { return t.buf.String() }

func (t *TextNode) Lines(width int) []string {
	text := t.buf.String()
	if text == "" {
		return nil
	}
	if t.final && t.markdown {
		text = mdterm.Render(text, width)
	}
	out := strings.Split(strings.TrimRight(text, "\n"), "\n")
	return append(out, "")
}

// ToolNode renders one tool invocation from its tracker record: a state
// glyph plus the salient-field summary.
type ToolNode struct {
	Rec *track.Record
}

func (t *ToolNode) Lines(width int) []string {
	var glyph string
	switch t.Rec.State {
	case track.StateRunning:
		glyph = runningStyle.Render("●")
	case track.StateDone:
		glyph = doneStyle.Render("✓")
	case track.StateError:
		glyph = errStyle.Render("✗")
	}
	return []string{glyph + " " + t.Rec.Summary()}
}

// loaderFrames is the braille spinner cycle.
var loaderFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// LoaderNode is the transient waiting indicator shown while the remote
// side has the floor.
type LoaderNode struct {
	frame int
}

// Tick advances the spinner one frame.
func (l *LoaderNode) Tick() {
	l.frame = (l.frame + 1) % len(loaderFrames)
}

func (l *LoaderNode) Lines(width int) []string {
	return []string{runningStyle.Render(loaderFrames[l.frame]) + dimStyle.Render(" thinking…")}
}

// SummaryNode shows turn cost and duration once a result arrives.
type SummaryNode struct {
	CostUSD  float64
	Duration time.Duration
}

func (s *SummaryNode) Lines(width int) []string {
	return []string{
		dimStyle.Render(fmt.Sprintf("$%.4f · %.1fs", s.CostUSD, s.Duration.Seconds())),
		"",
	}
}

// ErrorNode surfaces a session-level failure in the transcript.
type ErrorNode struct {
	Err error
}

func (e *ErrorNode) Lines(width int) []string {
	return []string{
		errStyle.Render(fmt.Sprintf("error: %v", e.Err)),
		"",
	}
}

// HelpNode lists the local commands.
type HelpNode struct{}

func (HelpNode) Lines(width int) []string {
	return []string{
		dimStyle.Render("commands:"),
		"  /help, /?          show this help",
		"  /exit, /quit, /q   end the session",
		"",
	}
}

// InputNode is the footer editing region: a prompt plus the line being
// composed.
type InputNode struct {
	Prompt string
	text   []rune
}

// Insert appends a rune to the buffer.
func (n *InputNode) Insert(r rune) {
	n.text = append(n.text, r)
}

// Backspace removes the last rune, if any.
func (n *InputNode) Backspace() {
	if len(n.text) > 0 {
		n.text = n.text[:len(n.text)-1]
	}
}

// Take returns the buffered text and clears the buffer.
func (n *InputNode) Take() string {
	s := string(n.text)
	n.text = n.text[:0]
	return s
}

// Value returns the buffered text without clearing.
func (n *InputNode) Value() string { return string(n.text) }

func (n *InputNode) Lines(width int) []string {
	return []string{userStyle.Render(n.Prompt) + string(n.text)}
}

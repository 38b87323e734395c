// Package surface owns the terminal transcript and its differential renderer.
//
// The surface keeps an ordered list of renderable nodes and the previous
// frame's rendered lines. A render request only marks the frame dirty;
// Flush recomputes every node, diffs against the previous frame, and
// rewrites just the changed rows in a single terminal write. The event
// loop calls Flush once per tick, so any number of render requests inside
// one tick coalesce into one write pass.
package surface

import (
	"bytes"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/muesli/termenv"

	"github.com/linanwx/surfbot/logger"
)

// Node is one renderable transcript entry. Lines returns the node's
// display lines for the given width; returned strings must not contain
// newlines (the surface wraps and splits itself).
type Node interface {
	Lines(width int) []string
}

// Surface maintains the transcript and writes frames to the terminal.
type Surface struct {
	out     io.Writer
	widthFn func() int

	nodes  []Node
	footer Node // rendered after the transcript (input region)

	prev  []string
	dirty bool
}

// New creates a surface writing to out. widthFn is re-queried on every
// flush so resizes are picked up on the next frame.
func New(out io.Writer, widthFn func() int) *Surface {
	return &Surface{out: out, widthFn: widthFn}
}

// Append adds a node to the end of the transcript. No immediate render.
func (s *Surface) Append(n Node) {
	s.nodes = append(s.nodes, n)
	s.dirty = true
}

// Remove deletes a node from the transcript (used to retire a transient
// loader). Subsequent renders omit it.
func (s *Surface) Remove(n Node) {
	for i, cur := range s.nodes {
		if cur == n {
			s.nodes = append(s.nodes[:i], s.nodes[i+1:]...)
			s.dirty = true
			return
		}
	}
}

// SetFooter installs the node rendered below the transcript.
func (s *Surface) SetFooter(n Node) {
	s.footer = n
	s.dirty = true
}

// Invalidate schedules a render. Safe to call any number of times within
// one tick; the frame is recomputed once, on the next Flush.
func (s *Surface) Invalidate() {
	s.dirty = true
}

// Dirty reports whether a flush is pending.
func (s *Surface) Dirty() bool {
	return s.dirty
}

// Flush recomputes the frame and writes the diff to the terminal in one
// write. A clean surface writes nothing.
func (s *Surface) Flush() {
	if !s.dirty {
		return
	}
	s.dirty = false

	width := s.widthFn()
	if width <= 0 {
		width = 80
	}

	next := s.renderFrame(width)

	var buf bytes.Buffer
	o := termenv.NewOutput(&buf)
	s.writeDiff(o, next)
	if buf.Len() > 0 {
		if _, err := s.out.Write(buf.Bytes()); err != nil {
			logger.Error("terminal write failed", "err", err)
		}
	}

	s.prev = next
}

// renderFrame computes the full frame: every node's lines, wrapped to
// width, with the footer last.
func (s *Surface) renderFrame(width int) []string {
	var lines []string
	for _, n := range s.nodes {
		lines = append(lines, renderNode(n, width)...)
	}
	if s.footer != nil {
		lines = append(lines, renderNode(s.footer, width)...)
	}
	return lines
}

// renderNode computes one node's wrapped lines. A panicking node renders
// as an empty region; the failure is recorded internally and never
// surfaced to the transcript.
func renderNode(n Node, width int) (out []string) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("node render failed", "panic", r)
			out = nil
		}
	}()

	for _, raw := range n.Lines(width) {
		for _, line := range strings.Split(raw, "\n") {
			out = append(out, wrapLine(line, width)...)
		}
	}
	return out
}

// writeDiff rewrites only the rows that changed since the previous frame.
// The cursor rests at column 0 of the line below the frame between
// flushes. Raw mode, so every downward move is an explicit "\r\n".
func (s *Surface) writeDiff(o *termenv.Output, next []string) {
	prev := s.prev

	if len(prev) > 0 {
		o.CursorUp(len(prev))
	}

	common := len(prev)
	if len(next) < common {
		common = len(next)
	}

	for i := 0; i < common; i++ {
		if next[i] == prev[i] {
			o.WriteString("\r\n")
			continue
		}
		o.WriteString("\r")
		o.ClearLine()
		o.WriteString(next[i])
		o.WriteString("\r\n")
	}

	// New rows beyond the previous frame.
	for i := common; i < len(next); i++ {
		o.WriteString("\r")
		o.ClearLine()
		o.WriteString(next[i])
		o.WriteString("\r\n")
	}

	// Frame shrank: blank the leftover rows, then rest below the new frame.
	if len(prev) > len(next) {
		extra := len(prev) - len(next)
		for i := 0; i < extra; i++ {
			o.WriteString("\r")
			o.ClearLine()
			o.WriteString("\r\n")
		}
		o.CursorUp(extra)
	}
}

// wrapLine wraps a single line to width display cells, preferring space
// boundaries and passing ANSI escape sequences through at zero width.
func wrapLine(line string, width int) []string {
	if width <= 0 || visibleWidth(line) <= width {
		return []string{line}
	}

	var out []string
	var cur strings.Builder
	cells := 0
	lastSpace := -1 // byte offset in cur of the last space
	spaceCells := 0

	flush := func() {
		out = append(out, cur.String())
		cur.Reset()
		cells = 0
		lastSpace = -1
	}

	runes := []rune(line)
	for i := 0; i < len(runes); i++ {
		r := runes[i]

		// Pass ANSI escape sequences through unsized.
		if r == 0x1b {
			j := i + 1
			if j < len(runes) && runes[j] == '[' {
				j++
				for j < len(runes) && (runes[j] < 0x40 || runes[j] > 0x7e) {
					j++
				}
				if j < len(runes) {
					j++
				}
			}
			cur.WriteString(string(runes[i:j]))
			i = j - 1
			continue
		}

		w := runewidth.RuneWidth(r)
		if cells+w > width {
			if r == ' ' {
				// The break lands exactly on a space: drop it.
				flush()
				continue
			}
			if lastSpace >= 0 {
				// Break at the last space boundary.
				full := cur.String()
				out = append(out, full[:lastSpace])
				rest := strings.TrimLeft(full[lastSpace:], " ")
				cur.Reset()
				cur.WriteString(rest)
				cells = cells - spaceCells
				lastSpace = -1
			} else {
				flush()
			}
		}

		if r == ' ' {
			lastSpace = cur.Len()
			spaceCells = cells + w
		}
		cur.WriteRune(r)
		cells += w
	}
	if cur.Len() > 0 {
		flush()
	}
	return out
}

// visibleWidth returns the display cell width of a line, ignoring ANSI
// escape sequences.
func visibleWidth(line string) int {
	cells := 0
	runes := []rune(line)
	for i := 0; i < len(runes); i++ {
		if runes[i] == 0x1b {
			j := i + 1
			if j < len(runes) && runes[j] == '[' {
				j++
				for j < len(runes) && (runes[j] < 0x40 || runes[j] > 0x7e) {
					j++
				}
				if j < len(runes) {
					j++
				}
			}
			i = j - 1
			continue
		}
		cells += runewidth.RuneWidth(runes[i])
	}
	return cells
}

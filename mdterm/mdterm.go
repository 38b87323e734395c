// Package mdterm renders Markdown as ANSI-styled terminal text.
//
// Assistant prose streams into the transcript as plain text and is
// re-rendered through this package once the block is finalized. The
// renderer targets a scrolling transcript, not a pager: output is a flat
// sequence of logical lines with inline styling.
//
// Unsupported Markdown features are mapped to approximations:
//   - Images become links
//   - Tables become readable list blocks
//   - Raw HTML is passed through as text
package mdterm

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

var (
	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6"))
	boldStyle    = lipgloss.NewStyle().Bold(true)
	italicStyle  = lipgloss.NewStyle().Italic(true)
	strikeStyle  = lipgloss.NewStyle().Strikethrough(true)
	codeStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	codeBlock    = lipgloss.NewStyle().Foreground(lipgloss.Color("7"))
	linkStyle    = lipgloss.NewStyle().Underline(true)
	urlStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	ruleStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// Render converts Markdown into ANSI-styled terminal text. Width bounds
// decorative elements (rules); prose wrapping is left to the caller.
func Render(markdown string, width int) string {
	source := []byte(markdown)
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	doc := md.Parser().Parse(text.NewReader(source))

	r := &renderer{source: source, width: width}
	r.walkBlock(doc)
	return strings.TrimRight(r.buf.String(), "\n ")
}

type renderer struct {
	source    []byte
	buf       bytes.Buffer
	width     int
	listDepth int
}

func (r *renderer) walkBlock(n ast.Node) {
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		r.block(c)
	}
}

func (r *renderer) block(node ast.Node) {
	switch n := node.(type) {
	case *ast.Document:
		r.walkBlock(n)

	case *ast.Heading:
		r.buf.WriteString(headingStyle.Render(r.textContent(n)))
		r.buf.WriteString("\n\n")

	case *ast.Paragraph:
		r.inlines(n)
		r.buf.WriteString("\n\n")

	case *ast.TextBlock:
		r.inlines(n)
		r.buf.WriteString("\n")

	case *ast.Blockquote:
		sub := &renderer{source: r.source, width: r.width}
		sub.walkBlock(n)
		for _, line := range strings.Split(strings.TrimRight(sub.buf.String(), "\n "), "\n") {
			r.buf.WriteString(ruleStyle.Render("│ "))
			r.buf.WriteString(line)
			r.buf.WriteByte('\n')
		}
		r.buf.WriteByte('\n')

	case *ast.List:
		r.list(n)

	case *ast.ListItem:
		// Handled inside list(); fallback.
		r.walkBlock(n)

	case *ast.FencedCodeBlock:
		r.codeLines(n)
		r.buf.WriteByte('\n')

	case *ast.CodeBlock:
		r.codeLines(n)
		r.buf.WriteByte('\n')

	case *ast.ThematicBreak:
		w := r.width
		if w <= 0 || w > 40 {
			w = 40
		}
		r.buf.WriteString(ruleStyle.Render(strings.Repeat("─", w)))
		r.buf.WriteString("\n\n")

	case *ast.HTMLBlock:
		r.rawLines(n)
		r.buf.WriteByte('\n')

	default:
		// GFM table
		if t, ok := node.(*east.Table); ok {
			r.table(t)
			return
		}
		if node.HasChildren() {
			r.walkBlock(node)
		}
	}
}

// codeLines writes the source lines of a code block, indented and styled.
func (r *renderer) codeLines(n ast.Node) {
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		line := strings.TrimRight(string(seg.Value(r.source)), "\n")
		r.buf.WriteString("  ")
		r.buf.WriteString(codeBlock.Render(line))
		r.buf.WriteByte('\n')
	}
}

// rawLines writes the source lines of a block node unstyled.
func (r *renderer) rawLines(n ast.Node) {
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		r.buf.Write(seg.Value(r.source))
	}
}

func (r *renderer) inlines(n ast.Node) {
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		r.inline(c)
	}
}

func (r *renderer) inline(node ast.Node) {
	switch n := node.(type) {
	case *ast.Text:
		r.buf.Write(n.Text(r.source))
		if n.SoftLineBreak() || n.HardLineBreak() {
			r.buf.WriteByte('\n')
		}

	case *ast.String:
		r.buf.Write(n.Value)

	case *ast.Emphasis:
		style := italicStyle
		if n.Level == 2 {
			style = boldStyle
		}
		r.buf.WriteString(style.Render(r.textContent(n)))

	case *ast.CodeSpan:
		var span strings.Builder
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			switch t := c.(type) {
			case *ast.Text:
				span.Write(t.Text(r.source))
			case *ast.String:
				span.Write(t.Value)
			}
		}
		r.buf.WriteString(codeStyle.Render(span.String()))

	case *ast.Link:
		r.buf.WriteString(linkStyle.Render(r.textContent(n)))
		r.buf.WriteString(urlStyle.Render(" (" + string(n.Destination) + ")"))

	case *ast.AutoLink:
		r.buf.WriteString(linkStyle.Render(string(n.URL(r.source))))

	case *ast.Image:
		alt := r.textContent(n)
		if alt == "" {
			alt = string(n.Destination)
		}
		r.buf.WriteString(linkStyle.Render(alt))
		r.buf.WriteString(urlStyle.Render(" (" + string(n.Destination) + ")"))

	case *ast.RawHTML:
		for i := 0; i < n.Segments.Len(); i++ {
			seg := n.Segments.At(i)
			r.buf.Write(seg.Value(r.source))
		}

	default:
		// GFM extensions
		switch v := node.(type) {
		case *east.Strikethrough:
			r.buf.WriteString(strikeStyle.Render(r.textContent(v)))
		case *east.TaskCheckBox:
			if v.IsChecked {
				r.buf.WriteString("[x] ")
			} else {
				r.buf.WriteString("[ ] ")
			}
		default:
			if node.HasChildren() {
				r.inlines(node)
			}
		}
	}
}

// textContent returns the plain-text content of a node tree.
func (r *renderer) textContent(n ast.Node) string {
	var buf bytes.Buffer
	r.collectText(n, &buf)
	return buf.String()
}

func (r *renderer) collectText(node ast.Node, buf *bytes.Buffer) {
	for c := node.FirstChild(); c != nil; c = c.NextSibling() {
		switch t := c.(type) {
		case *ast.Text:
			buf.Write(t.Text(r.source))
		case *ast.String:
			buf.Write(t.Value)
		default:
			r.collectText(c, buf)
		}
	}
}

func (r *renderer) list(n *ast.List) {
	idx := 0
	if n.Start > 0 {
		idx = int(n.Start) - 1
	}
	indent := strings.Repeat("  ", r.listDepth)

	for child := n.FirstChild(); child != nil; child = child.NextSibling() {
		item, ok := child.(*ast.ListItem)
		if !ok {
			continue
		}
		if n.IsOrdered() {
			idx++
			fmt.Fprintf(&r.buf, "%s%d. ", indent, idx)
		} else {
			r.buf.WriteString(indent)
			r.buf.WriteString("• ")
		}
		r.listItemContent(item)
		r.buf.WriteByte('\n')
	}
	if r.listDepth == 0 {
		r.buf.WriteByte('\n')
	}
}

func (r *renderer) listItemContent(item *ast.ListItem) {
	first := true
	for c := item.FirstChild(); c != nil; c = c.NextSibling() {
		switch n := c.(type) {
		case *ast.Paragraph:
			if !first {
				r.buf.WriteByte('\n')
				r.buf.WriteString(strings.Repeat("  ", r.listDepth+1))
			}
			r.inlines(n)
			first = false
		case *ast.TextBlock:
			if !first {
				r.buf.WriteByte('\n')
				r.buf.WriteString(strings.Repeat("  ", r.listDepth+1))
			}
			r.inlines(n)
			first = false
		case *ast.List:
			r.buf.WriteByte('\n')
			r.listDepth++
			r.list(n)
			r.listDepth--
		default:
			r.block(c)
			first = false
		}
	}
}

// table renders a GFM table as a list block: one line per cell, rows
// separated by blank lines. Proper column layout needs more width than a
// chat transcript reliably has.
func (r *renderer) table(t *east.Table) {
	var header []string
	for c := t.FirstChild(); c != nil; c = c.NextSibling() {
		switch row := c.(type) {
		case *east.TableHeader:
			for cell := row.FirstChild(); cell != nil; cell = cell.NextSibling() {
				header = append(header, r.textContent(cell))
			}
		case *east.TableRow:
			i := 0
			for cell := row.FirstChild(); cell != nil; cell = cell.NextSibling() {
				label := ""
				if i < len(header) {
					label = header[i]
				}
				value := r.textContent(cell)
				if label != "" {
					r.buf.WriteString(boldStyle.Render(label + ": "))
				}
				r.buf.WriteString(value)
				r.buf.WriteByte('\n')
				i++
			}
			r.buf.WriteByte('\n')
		}
	}
}

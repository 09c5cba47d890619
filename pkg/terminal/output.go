// Package terminal renders run progress and summaries for the uiverify CLI.
// Output is plain lines with optional color; there is no TUI.
package terminal

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// Tone selects the color of a badge or line.
type Tone int

const (
	TonePlain Tone = iota
	ToneOK
	ToneWarn
	ToneFail
	ToneInfo
	ToneDim
)

// Writer provides styled line output.
type Writer struct {
	out io.Writer
	mu  sync.Mutex

	tones       map[Tone]lipgloss.Style
	boldStyle   lipgloss.Style
	headerStyle lipgloss.Style
	badgeStyle  lipgloss.Style
}

// IsTerminal reports whether w is an interactive terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// New creates a Writer on stdout, colored when stdout is a terminal.
func New() *Writer {
	return NewWithOutput(os.Stdout, IsTerminal(os.Stdout))
}

// NewWithOutput creates a Writer on out. Without color every style renders
// as plain text.
func NewWithOutput(out io.Writer, color bool) *Writer {
	r := lipgloss.NewRenderer(out)
	if !color {
		r.SetColorProfile(termenv.Ascii)
	}
	fg := func(light, dark string) lipgloss.Style {
		return r.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: light, Dark: dark})
	}
	return &Writer{
		out: out,
		tones: map[Tone]lipgloss.Style{
			TonePlain: r.NewStyle(),
			ToneOK:    fg("#008000", "#55FF55"),
			ToneWarn:  fg("#B8860B", "#FFAA00"),
			ToneFail:  fg("#D00000", "#FF5555").Bold(true),
			ToneInfo:  fg("#0066CC", "#5599FF"),
			ToneDim:   fg("#666666", "#888888"),
		},
		boldStyle: r.NewStyle().Bold(true),
		headerStyle: r.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#333333", Dark: "#FFFFFF"}).
			Bold(true).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(lipgloss.AdaptiveColor{Light: "#CCCCCC", Dark: "#444444"}),
		badgeStyle: r.NewStyle().Bold(true).Width(6),
	}
}

// Println writes a formatted line.
func (w *Writer) Println(format string, args ...any) {
	w.mu.Lock()
	defer w.mu.Unlock()
	fmt.Fprintf(w.out, format+"\n", args...)
}

// Line writes a formatted line in tone.
func (w *Writer) Line(tone Tone, format string, args ...any) {
	w.mu.Lock()
	defer w.mu.Unlock()
	fmt.Fprintln(w.out, w.tones[tone].Render(fmt.Sprintf(format, args...)))
}

// Error prints an error message.
func (w *Writer) Error(format string, args ...any) {
	w.Line(ToneFail, "error: "+format, args...)
}

// Warn prints a warning message.
func (w *Writer) Warn(format string, args ...any) {
	w.Line(ToneWarn, "warning: "+format, args...)
}

// Success prints a success message.
func (w *Writer) Success(format string, args ...any) {
	w.Line(ToneOK, "✓ "+format, args...)
}

// Dim prints secondary text.
func (w *Writer) Dim(format string, args ...any) {
	w.Line(ToneDim, format, args...)
}

// Header prints a section header.
func (w *Writer) Header(title string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	fmt.Fprintln(w.out, w.headerStyle.Render(title))
}

// Divider prints a horizontal rule.
func (w *Writer) Divider() {
	w.Line(ToneDim, "%s", strings.Repeat("─", min(terminalWidth(w.out), 72)))
}

// Badge renders a fixed-width status label, e.g. PASS or FAIL.
func (w *Writer) Badge(label string, tone Tone) string {
	return w.badgeStyle.Inherit(w.tones[tone]).Render(label)
}

// Paint renders s in tone without writing it.
func (w *Writer) Paint(s string, tone Tone) string {
	return w.tones[tone].Render(s)
}

// Bold renders s in bold without writing it.
func (w *Writer) Bold(s string) string {
	return w.boldStyle.Render(s)
}

// List prints an indented bulleted list.
func (w *Writer) List(items []string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, item := range items {
		fmt.Fprintln(w.out, "    • "+item)
	}
}

// Columns prints rows with every column padded to its widest cell. Widths
// are measured after styling, so styled cells align too.
func (w *Writer) Columns(rows [][]string) {
	widths := map[int]int{}
	for _, row := range rows {
		for i, cell := range row {
			widths[i] = max(widths[i], lipgloss.Width(cell))
		}
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, row := range rows {
		var sb strings.Builder
		for i, cell := range row {
			sb.WriteString(cell)
			if i < len(row)-1 {
				sb.WriteString(strings.Repeat(" ", widths[i]-lipgloss.Width(cell)+2))
			}
		}
		fmt.Fprintln(w.out, strings.TrimRight(sb.String(), " "))
	}
}

// Fit shortens s to the terminal width less indent columns, ending it with
// an ellipsis when cut. Plain text only.
func (w *Writer) Fit(s string, indent int) string {
	width := terminalWidth(w.out) - indent
	if width < 20 {
		width = 20
	}
	return runewidth.Truncate(s, width, "…")
}

// terminalWidth returns the width of out when it is a terminal, else 80.
func terminalWidth(out io.Writer) int {
	f, ok := out.(*os.File)
	if !ok {
		return 80
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil || width == 0 {
		return 80
	}
	return width
}

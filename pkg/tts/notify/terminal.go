package notify

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/truncate"
	"github.com/muesli/reflow/wordwrap"
	"golang.org/x/term"

	"github.com/dgnsrekt/ttsbridge/pkg/tts"
)

const defaultWidth = 80

var (
	shortStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#656565", Dark: "#7D7D7D"})

	longStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#1C8760", Dark: "#89F0CB"}).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5F87"))
)

// TerminalNotifier prints notifications as single styled lines. Short
// notifications are truncated to the terminal width; long ones wrap.
type TerminalNotifier struct {
	w     io.Writer
	width int
	mu    sync.Mutex
}

// NewTerminalNotifier writes to w. A width of zero uses the terminal width
// when w is a terminal, and 80 columns otherwise.
func NewTerminalNotifier(w io.Writer, width int) *TerminalNotifier {
	if width <= 0 {
		width = terminalWidth(w)
	}
	return &TerminalNotifier{w: w, width: width}
}

func (n *TerminalNotifier) Notify(note tts.Notification) {
	if note.Text == "" {
		return
	}

	style := shortStyle
	switch {
	case note.Long:
		style = longStyle
	case note.Result != tts.ResultSuccess && note.Result != tts.ResultInterrupted:
		style = errorStyle
	}

	var text string
	if note.Long {
		text = wordwrap.String(note.Text, n.width)
	} else {
		text = truncate.StringWithTail(note.Text, uint(n.width), "…") //nolint:gosec
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	fmt.Fprintln(n.w, style.Render(text))
}

func terminalWidth(w io.Writer) int {
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) { //nolint:gosec
		return defaultWidth
	}
	width, _, err := term.GetSize(int(f.Fd())) //nolint:gosec
	if err != nil || width <= 0 {
		return defaultWidth
	}
	return width
}

package interaction

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/lipgloss"
)

var (
	questionStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	optionStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
	noticeStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11"))
)

// Terminal is the interactive Host used by the CLI: prompts are rendered to
// out and answers read line-wise from in. A blank line or EOF dismisses the
// prompt.
type Terminal struct {
	mu  sync.Mutex
	in  *bufio.Reader
	out io.Writer
}

func NewTerminal(in io.Reader, out io.Writer) *Terminal {
	return &Terminal{in: bufio.NewReader(in), out: out}
}

func (t *Terminal) Confirm(message string, options ...string) (string, bool) {
	return t.ask(questionStyle.Render(message), options)
}

func (t *Terminal) Notify(message string, actions ...string) (string, bool) {
	if len(actions) == 0 {
		t.mu.Lock()
		defer t.mu.Unlock()
		_, _ = fmt.Fprintln(t.out, noticeStyle.Render(message))
		return "", false
	}
	return t.ask(noticeStyle.Render(message), actions)
}

func (t *Terminal) ReadClipboard() (string, error) { return clipboard.ReadAll() }

func (t *Terminal) WriteClipboard(text string) error { return clipboard.WriteAll(text) }

// ask renders the numbered options and blocks until the human answers or
// dismisses. There is deliberately no timeout.
func (t *Terminal) ask(rendered string, options []string) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, _ = fmt.Fprintln(t.out, rendered)
	for i, opt := range options {
		_, _ = fmt.Fprintf(t.out, "  %s\n", optionStyle.Render(fmt.Sprintf("%d) %s", i+1, opt)))
	}
	_, _ = fmt.Fprint(t.out, "> ")
	line, err := t.in.ReadString('\n')
	if err != nil && line == "" {
		return "", false
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return "", false
	}
	if n, err := strconv.Atoi(line); err == nil && n >= 1 && n <= len(options) {
		return options[n-1], true
	}
	for _, opt := range options {
		if strings.EqualFold(opt, line) {
			return opt, true
		}
	}
	return "", false
}

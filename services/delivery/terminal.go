package delivery

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/upb/hms-audit/models"
)

const toastWidth = 60

var (
	warnColor  = lipgloss.Color("11")
	infoColor  = lipgloss.Color("12")
	dimColor   = lipgloss.Color("8")
	titleStyle = lipgloss.NewStyle().Bold(true)
	hintStyle  = lipgloss.NewStyle().Foreground(dimColor).Italic(true)
)

// RenderToast renders an alert as a bordered card
func RenderToast(a *models.Alert) string {
	color := infoColor
	if a.Severity == models.SeverityWarn {
		color = warnColor
	}
	badge := lipgloss.NewStyle().Foreground(color).Bold(true).Render(string(a.Severity))

	var b strings.Builder
	b.WriteString(badge + " " + titleStyle.Render(a.Title))
	if detail := a.DetailText(); detail != "" {
		b.WriteString("\n" + detail)
	}
	b.WriteString("\n" + hintStyle.Render(fmt.Sprintf("#%d  %s", a.ID, a.CreatedAt.Format("2006-01-02 15:04"))))
	b.WriteString("\n" + hintStyle.Render("[a] open  [d] dismiss"))

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(color).
		Padding(0, 1).
		Width(toastWidth).
		Render(b.String())
}

// TerminalPresenter prints toasts to a terminal and answers them from
// single-key lines read by ReadKeys. Every write to out goes through writeMu.
type TerminalPresenter struct {
	writeMu sync.Mutex
	out     io.Writer

	mu      sync.Mutex
	current *Ticket
}

// NewTerminalPresenter creates a presenter writing to out
func NewTerminalPresenter(out io.Writer) *TerminalPresenter {
	return &TerminalPresenter{out: out}
}

// Present prints the ticket's toast and makes it the target of key input
func (p *TerminalPresenter) Present(t *Ticket) {
	p.mu.Lock()
	p.current = t
	p.mu.Unlock()

	p.Println(RenderToast(t.Alert))
}

// Println writes a line to the presenter's output. It is safe to call from
// ticket callbacks, which run on the key reader goroutine.
func (p *TerminalPresenter) Println(s string) {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	fmt.Fprintln(p.out, s)
}

// ReadKeys reads lines from in until EOF or ctx is cancelled. "a" acknowledges
// and "d" dismisses the ticket on screen; other input is ignored.
func (p *TerminalPresenter) ReadKeys(ctx context.Context, in io.Reader) error {
	lines := make(chan string)
	errCh := make(chan error, 1)

	go func() {
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- strings.TrimSpace(scanner.Text()):
			case <-ctx.Done():
				return
			}
		}
		errCh <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errCh:
			return err
		case line := <-lines:
			p.answer(line)
		}
	}
}

func (p *TerminalPresenter) answer(key string) {
	p.mu.Lock()
	t := p.current
	p.mu.Unlock()
	if t == nil {
		return
	}

	switch strings.ToLower(key) {
	case "a":
		t.Acknowledge()
	case "d":
		t.Dismiss()
	}
}

package tui

import (
	"errors"
	"io"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// ErrCanceled is returned when the user quits a spinner before the work ends.
var ErrCanceled = errors.New("canceled")

// minSpin keeps fast submissions from flashing the spinner.
const minSpin = 100 * time.Millisecond

type workDone struct{ err error }

type spinModel struct {
	spin     spinner.Model
	label    string
	doneText string
	styles   *Styles
	finished bool
	canceled bool
	err      error
}

func (m spinModel) Init() tea.Cmd { return m.spin.Tick }

func (m spinModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if k := msg.String(); k == "q" || k == "ctrl+c" {
			m.canceled = true
			return m, tea.Quit
		}
	case workDone:
		m.finished, m.err = true, msg.err
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m spinModel) View() string {
	switch {
	case m.canceled:
		return ""
	case !m.finished:
		return m.spin.View() + " " + m.label + "\n"
	case m.err != nil:
		return m.styles.RenderStatus(false, m.err.Error()) + "\n"
	default:
		return m.styles.RenderStatus(true, m.doneText) + "\n"
	}
}

// Spinner animates a label while a submission runs.
type Spinner struct {
	label  string
	styles *Styles
	out    io.Writer
}

// NewSpinner returns a spinner labelled label. A nil styles uses the
// resolved user theme.
func NewSpinner(label string, styles *Styles) *Spinner {
	if styles == nil {
		styles = NewStylesWithTheme(ResolveTheme())
	}
	return &Spinner{label: label, styles: styles}
}

// WithOutput draws on w instead of stdout, keeping stdout machine-readable.
func (s *Spinner) WithOutput(w io.Writer) *Spinner {
	s.out = w
	return s
}

// RunSimple runs fn under the spinner and prints doneText on success or
// the error on failure. Quitting early returns ErrCanceled; fn keeps running.
func (s *Spinner) RunSimple(doneText string, fn func() error) error {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = s.styles.Bar

	var opts []tea.ProgramOption
	if s.out != nil {
		opts = append(opts, tea.WithOutput(s.out))
	}
	p := tea.NewProgram(spinModel{spin: sp, label: s.label, doneText: doneText, styles: s.styles}, opts...)

	go func() {
		start := time.Now()
		err := fn()
		time.Sleep(minSpin - time.Since(start))
		p.Send(workDone{err: err})
	}()

	final, err := p.Run()
	if err != nil {
		return err
	}
	m := final.(spinModel) //nolint:errcheck // the program only ever holds a spinModel
	if m.canceled {
		return ErrCanceled
	}
	return m.err
}

package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mohammad-safakhou/itturia/internal/agent/core"
)

// Asker runs one question, reporting steps to em as they happen.
type Asker interface {
	Ask(ctx context.Context, question string, em core.StepEmitter) (core.Result, error)
}

// AskerFunc adapts a function to Asker.
type AskerFunc func(ctx context.Context, question string, em core.StepEmitter) (core.Result, error)

func (f AskerFunc) Ask(ctx context.Context, question string, em core.StepEmitter) (core.Result, error) {
	return f(ctx, question, em)
}

type exchange struct {
	question string
	steps    []core.Step
	result   *core.Result
	err      error
}

type (
	stepMsg   core.Step
	resultMsg core.Result
	errMsg    struct{ err error }
	closedMsg struct{}
)

// Model is the Bubble Tea model of the chat screen.
type Model struct {
	asker     Asker
	ctx       context.Context
	summary   string
	input     textinput.Model
	viewport  viewport.Model
	spinner   spinner.Model
	exchanges []exchange
	events    <-chan core.Event
	errs      chan error
	cancel    context.CancelFunc
	busy      bool
	status    string
	width     int
	ready     bool
}

// New creates the chat model. Cancelling ctx aborts the running question.
func New(ctx context.Context, asker Asker, summary string) Model {
	ti := textinput.New()
	ti.Prompt = "? "
	ti.Placeholder = "שאלה, ואז Enter"
	ti.Focus()
	ti.CharLimit = 0
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	return Model{
		asker:    asker,
		ctx:      ctx,
		summary:  summary,
		input:    ti,
		viewport: viewport.New(0, 0),
		spinner:  sp,
		status:   "Ready. Esc cancels a running question, Ctrl+C quits.",
	}
}

func (m Model) Init() tea.Cmd { return textinput.Blink }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		m.width = msg.Width
		_, qh := inputBoxStyle.GetFrameSize()
		reserved := 2 + 1 + qh + 1 // header+summary, status, input frame, input line
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, msg.Height-reserved)
		m.refresh()
		return m, nil
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyCtrlD:
			if m.cancel != nil {
				m.cancel()
			}
			return m, tea.Quit
		case tea.KeyEsc:
			if m.busy && m.cancel != nil {
				m.cancel()
				m.status = "Cancelling…"
			}
			return m, nil
		case tea.KeyEnter:
			q := strings.TrimSpace(m.input.Value())
			if q == "" || m.busy {
				return m, nil
			}
			m.input.SetValue("")
			return m, m.start(q)
		case tea.KeyPgUp, tea.KeyPgDown:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	case stepMsg:
		cur := m.current()
		cur.steps = append(cur.steps, core.Step(msg))
		m.status = core.Step(msg).Action
		m.refresh()
		return m, waitForEvent(m.events, m.errs)
	case resultMsg:
		res := core.Result(msg)
		m.current().result = &res
		m.refresh()
		return m, waitForEvent(m.events, m.errs)
	case errMsg:
		m.current().err = msg.err
		m.finish("Error: " + msg.err.Error())
		return m, nil
	case closedMsg:
		m.finish("Done.")
		return m, nil
	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// start launches the question in the background and begins draining its events.
func (m *Model) start(q string) tea.Cmd {
	ctx, cancel := context.WithCancel(m.ctx)
	em := core.NewChannelEmitter()
	errs := make(chan error, 1)
	asker := m.asker
	go func() {
		if _, err := asker.Ask(ctx, q, em); err != nil {
			errs <- err
			em.Stop()
		}
	}()
	m.exchanges = append(m.exchanges, exchange{question: q})
	m.events, m.errs, m.cancel = em.Events(), errs, cancel
	m.busy = true
	m.status = "Thinking…"
	m.refresh()
	return tea.Batch(waitForEvent(m.events, m.errs), m.spinner.Tick)
}

func (m *Model) finish(status string) {
	if m.cancel != nil {
		m.cancel()
	}
	m.busy, m.cancel, m.events, m.errs = false, nil, nil, nil
	m.status = status
	m.refresh()
}

func (m *Model) current() *exchange { return &m.exchanges[len(m.exchanges)-1] }

func waitForEvent(events <-chan core.Event, errs <-chan error) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			select {
			case err := <-errs:
				return errMsg{err: err}
			default:
				return closedMsg{}
			}
		}
		if ev.Step != nil {
			return stepMsg(*ev.Step)
		}
		return resultMsg(*ev.Result)
	}
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.transcript())
	m.viewport.GotoBottom()
}

func (m Model) transcript() string {
	if len(m.exchanges) == 0 {
		return dimStyle.Render("No questions yet.")
	}
	parts := make([]string, 0, len(m.exchanges))
	for _, ex := range m.exchanges {
		var b strings.Builder
		b.WriteString(questionStyle.Render("? " + ex.question))
		for _, s := range ex.steps {
			b.WriteString("\n" + RenderStep(s))
		}
		if ex.result != nil {
			b.WriteString("\n" + RenderResult(*ex.result, m.width))
		}
		if ex.err != nil {
			b.WriteString("\n" + refineStyle.Render(ex.err.Error()))
		}
		parts = append(parts, b.String())
	}
	return strings.Join(parts, "\n\n")
}

func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("itturia")
	summary := dimStyle.Render(m.summary)
	status := m.status
	if m.busy {
		status = fmt.Sprintf("%s %s", m.spinner.View(), status)
	}
	return header + "\n" + summary + "\n" + m.viewport.View() + "\n" + inputBoxStyle.Render(m.input.View()) + "\n" + statusStyle.Render(status)
}

var (
	inputBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	statusStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
)

package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/elisa-itb/elisa/analysis"
	"github.com/elisa-itb/elisa/history"
	"github.com/elisa-itb/elisa/notebook"
)

const textinputPlaceholder = "Ask about campus electricity and press Enter..."

// sessionMsg reports that a session has a new snapshot.
type sessionMsg struct {
	id    string
	state analysis.State
}

// failureMsg carries a failure notification for the toast line.
type failureMsg struct {
	err error
}

// clearToastMsg hides the toast it was scheduled for.
type clearToastMsg struct {
	seq int
}

const toastDuration = 6 * time.Second

// watchSession waits for the next change of s and returns its snapshot.
func watchSession(s *analysis.Session) tea.Cmd {
	return func() tea.Msg {
		select {
		case <-s.Changed():
		case <-s.Done():
		}
		return sessionMsg{id: s.ID(), state: s.State()}
	}
}

type askTuiState struct {
	ctx      context.Context
	ctrl     *analysis.Controller
	hist     *history.Manager
	outliner *notebook.Outliner
	logger   *zap.Logger
	model    string

	spinner  spinner.Model
	progress progress.Model
	viewport viewport.Model
	textarea textarea.Model

	// current is the id of the session being displayed; state is its
	// latest snapshot, or a session loaded from history.
	current string
	state   *analysis.State

	suggestion   int
	showNotebook bool
	width        int

	toast    string
	toastSeq int

	inHistory   bool
	historyList list.Model
}

func initialAskModel(ctx context.Context, ctrl *analysis.Controller, hist *history.Manager, outliner *notebook.Outliner, logger *zap.Logger, model, initialPrompt string) askTuiState {
	ta := textarea.New()
	ta.Placeholder = textinputPlaceholder
	ta.Focus()
	ta.Prompt = "┃ "
	ta.CharLimit = 4000
	ta.MaxHeight = 6
	ta.SetHeight(2)
	ta.FocusedStyle.CursorLine = lipgloss.NewStyle()
	ta.ShowLineNumbers = false
	ta.KeyMap.InsertNewline.SetEnabled(false)
	ta.SetValue(initialPrompt)

	vp := viewport.New(80, 16)
	vp.MouseWheelEnabled = true

	sp := spinner.New()
	sp.Spinner = spinner.Pulse
	sp.Spinner.FPS = time.Second / 10
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("171"))

	pb := progress.New(progress.WithDefaultGradient())
	pb.Width = 40

	m := askTuiState{
		ctx:         ctx,
		ctrl:        ctrl,
		hist:        hist,
		outliner:    outliner,
		logger:      logger,
		model:       model,
		spinner:     sp,
		progress:    pb,
		viewport:    vp,
		textarea:    ta,
		width:       80,
		historyList: newHistoryList(nil),
	}
	m.refresh()
	return m
}

func (m askTuiState) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.spinner.Tick)
}

func (m askTuiState) streaming() bool {
	return m.state != nil && m.state.Status == analysis.StatusStreaming
}

// submit starts prompt, superseding whatever is streaming.
func (m askTuiState) submit(prompt string) (askTuiState, tea.Cmd) {
	s, err := m.ctrl.Start(m.ctx, analysis.Query{Prompt: prompt, Model: m.model})
	if err != nil {
		if errors.Is(err, analysis.ErrEmptyPrompt) {
			return m, nil
		}
		return m.showToast("Error: " + err.Error())
	}

	st := s.State()
	m.current = s.ID()
	m.state = &st
	m.showNotebook = false
	m.textarea.Reset()
	m.refresh()
	return m, watchSession(s)
}

func (m askTuiState) showToast(text string) (askTuiState, tea.Cmd) {
	m.toastSeq++
	m.toast = text
	seq := m.toastSeq
	return m, tea.Tick(toastDuration, func(time.Time) tea.Msg { return clearToastMsg{seq: seq} })
}

// finish records a terminal session once. Sessions that were cancelled
// before producing anything are not kept.
func (m askTuiState) finish(st analysis.State) {
	if m.hist == nil {
		return
	}
	if st.Status == analysis.StatusCancelled && len(st.Results) == 0 {
		return
	}
	if err := m.hist.Save(history.RecordFromState(st)); err != nil {
		m.logger.Warn("failed to save analysis history", zap.String("session", st.ID), zap.Error(err))
	}
}

func (m askTuiState) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.inHistory {
		return m.updateHistory(msg)
	}

	var (
		tiCmd tea.Cmd
		vpCmd tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC:
			m.ctrl.Reset()
			return m, tea.Quit

		case tea.KeyEsc:
			if m.streaming() {
				m.ctrl.Cancel()
				return m, nil
			}
			return m, tea.Quit

		case tea.KeyCtrlN:
			m.ctrl.Reset()
			m.current = ""
			m.state = nil
			m.showNotebook = false
			m.textarea.Reset()
			m.refresh()
			return m, nil

		case tea.KeyCtrlO:
			m.showNotebook = !m.showNotebook
			m.refresh()
			return m, nil

		case tea.KeyCtrlY:
			return m.copyCode()

		case tea.KeyCtrlR:
			return m.openHistory()

		case tea.KeyTab, tea.KeyShiftTab:
			if m.state == nil && strings.TrimSpace(m.textarea.Value()) == "" {
				n := len(visibleSuggestions(m.width))
				if msg.Type == tea.KeyTab {
					m.suggestion = (m.suggestion + 1) % n
				} else {
					m.suggestion = (m.suggestion + n - 1) % n
				}
				m.refresh()
				return m, nil
			}

		case tea.KeyEnter:
			if msg.Alt {
				m.textarea.SetValue(m.textarea.Value() + "\n")
				return m, nil
			}
			prompt := m.textarea.Value()
			if strings.TrimSpace(prompt) == "" && m.state == nil {
				prompt = suggestionQuery(visibleSuggestions(m.width)[m.suggestion])
			}
			return m.submit(prompt)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width - 2
		m.textarea.SetWidth(msg.Width - 2)
		m.viewport.Width = msg.Width - 2
		m.viewport.Height = max(3, msg.Height-m.textarea.Height()-3)
		m.progress.Width = min(60, max(10, msg.Width-30))
		m.historyList.SetSize(msg.Width, msg.Height)
		m.suggestion = min(m.suggestion, len(visibleSuggestions(m.width))-1)
		m.refresh()

	case sessionMsg:
		if msg.state.Status.Terminal() {
			m.finish(msg.state)
		}
		if msg.id != m.current {
			return m, nil
		}
		st := msg.state
		m.state = &st
		m.refresh()
		if st.Status.Terminal() {
			return m, nil
		}
		if s := m.ctrl.Active(); s != nil && s.ID() == msg.id {
			return m, watchSession(s)
		}
		return m, nil

	case failureMsg:
		return m.showToast("Error: " + msg.err.Error())

	case clearToastMsg:
		if msg.seq == m.toastSeq {
			m.toast = ""
		}
		return m, nil

	case spinner.TickMsg:
		var spCmd tea.Cmd
		m.spinner, spCmd = m.spinner.Update(msg)
		if m.streaming() {
			m.refresh()
		}
		return m, spCmd
	}

	m.textarea, tiCmd = m.textarea.Update(msg)
	m.viewport, vpCmd = m.viewport.Update(msg)
	return m, tea.Batch(tiCmd, vpCmd)
}

func (m askTuiState) copyCode() (tea.Model, tea.Cmd) {
	if m.state == nil {
		return m, nil
	}
	nb, err := notebook.Decode(m.state.Notebook)
	if err != nil {
		return m.showToast("Error: " + err.Error())
	}
	code := nb.Code()
	if code == "" {
		return m.showToast("No notebook code to copy.")
	}
	if err := clipboard.WriteAll(code); err != nil {
		return m.showToast("Error: " + err.Error())
	}
	return m.showToast(fmt.Sprintf("Copied %d code cells.", len(nb.CodeCells())))
}

func (m askTuiState) openHistory() (tea.Model, tea.Cmd) {
	if m.hist == nil {
		return m.showToast("History is unavailable.")
	}
	sessions, err := m.hist.ListRecent(50)
	if err != nil {
		return m.showToast("Error: " + err.Error())
	}
	items := make([]list.Item, len(sessions))
	for i, s := range sessions {
		items[i] = historyItem{summary: s}
	}
	m.historyList.SetItems(items)
	m.inHistory = true
	return m, nil
}

func (m askTuiState) updateHistory(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.historyList.FilterState() == list.Filtering {
			break
		}
		switch msg.Type {
		case tea.KeyEsc, tea.KeyCtrlC:
			m.inHistory = false
			return m, nil
		case tea.KeyEnter:
			m.inHistory = false
			i, ok := m.historyList.SelectedItem().(historyItem)
			if !ok {
				return m, nil
			}
			rec, err := m.hist.Get(i.summary.ID)
			if err != nil {
				return m.showToast("Error: " + err.Error())
			}
			if m.streaming() {
				m.ctrl.Cancel()
			}
			st := rec.State()
			m.current = st.ID
			m.state = &st
			m.showNotebook = false
			m.refresh()
			return m, nil
		}
	case tea.WindowSizeMsg:
		m.historyList.SetSize(msg.Width, msg.Height)
	}

	var cmd tea.Cmd
	m.historyList, cmd = m.historyList.Update(msg)
	return m, cmd
}

// refresh re-renders the viewport from the current state.
func (m *askTuiState) refresh() {
	r := newRenderer(m.width, true)

	var b strings.Builder
	switch {
	case m.state == nil:
		b.WriteString(r.style(titleStyle, "Try these queries:"))
		b.WriteString("\n")
		for i, s := range visibleSuggestions(m.width) {
			marker := "  "
			if i == m.suggestion {
				marker = r.style(labelStyle, "› ")
			}
			b.WriteString(marker + s + "\n")
		}
		b.WriteString(r.style(mutedStyle, "\nTab to choose, Enter to ask, Ctrl+R for history."))

	case m.showNotebook:
		out, err := r.renderNotebook(m.ctx, m.state.Notebook, m.outliner)
		if err != nil {
			out = r.style(errorStyle, "Error: "+err.Error())
		}
		b.WriteString(out)

	default:
		st := *m.state
		b.WriteString(r.style(labelStyle, "› "+st.Query.Prompt))
		b.WriteString("\n\n")
		if st.Status == analysis.StatusStreaming {
			fmt.Fprintf(&b, "%s %s %s\n", m.spinner.View(), m.progress.ViewAs(st.Progress.Progress), st.Progress.Message)
			b.WriteString(r.style(mutedStyle, fmt.Sprintf("%s elapsed, Esc to cancel", st.Elapsed().Round(time.Second))))
			b.WriteString("\n\n")
		}
		b.WriteString(r.renderState(st))
	}

	m.viewport.SetContent(b.String())
	if m.streaming() {
		m.viewport.GotoTop()
	}
}

func (m askTuiState) View() string {
	if m.inHistory {
		return m.historyList.View()
	}

	var status string
	switch {
	case strings.HasPrefix(m.toast, "Error"):
		status = errorStyle.Render(m.toast)
	case m.toast != "":
		status = labelStyle.Render(m.toast)
	default:
		status = mutedStyle.Render(fmt.Sprintf("model %s · Ctrl+O notebook · Ctrl+Y copy code · Ctrl+N new", m.model))
	}

	return fmt.Sprintf("%s\n%s\n%s", m.viewport.View(), status, m.textarea.View()) + "\n"
}

package ui

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/barclip/internal/models"
	"github.com/desertthunder/barclip/internal/shared"
	"github.com/desertthunder/barclip/internal/workflow"
	"github.com/dustin/go-humanize"
)

// Workflow is the part of [workflow.Workflow] the TUI renders and drives.
type Workflow interface {
	State() workflow.State
	Changes() <-chan workflow.State
	Principal() *models.Principal
	SelectFile(file *models.SelectedFile) error
	Start(ctx context.Context) error
	Retry(ctx context.Context) error
	Reset()
}

// Options wires a [Model].
type Options struct {
	Workflow Workflow
	// History loads recent attempts for the history view. Optional.
	History func(ctx context.Context) ([]*models.UploadAttempt, error)
	// OpenURL defaults to [shared.OpenBrowser].
	OpenURL func(url string) error
	// Copy defaults to [clipboard.WriteAll].
	Copy func(text string) error
	// Path prefills the file input.
	Path string
}

// ViewState represents the current view in the TUI.
type ViewState int

const (
	UploadView ViewState = iota
	HistoryView
)

// Model represents the TUI application state. It only renders workflow snapshots and forwards intents.
type Model struct {
	ctx     context.Context
	opts    Options
	view    ViewState
	state   workflow.State
	width   int
	height  int
	input   textinput.Model
	spinner spinner.Model
	history list.Model
	notice  string
	err     error
	help    help.Model
	keys    keyMap
}

// NewModel creates a new TUI model over the workflow in opts.
func NewModel(ctx context.Context, opts Options) *Model {
	if opts.OpenURL == nil {
		opts.OpenURL = shared.OpenBrowser
	}
	if opts.Copy == nil {
		opts.Copy = clipboard.WriteAll
	}

	input := textinput.New()
	input.Placeholder = "path/to/video.mp4"
	input.Prompt = "Video file: "
	input.SetValue(opts.Path)
	input.Focus()

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = styles.title.UnsetMarginBottom()

	history := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	history.Title = "Upload History"

	return &Model{
		ctx:     ctx,
		opts:    opts,
		view:    UploadView,
		state:   opts.Workflow.State(),
		input:   input,
		spinner: s,
		history: history,
		help:    help.New(),
		keys:    newKeyMap(),
	}
}

// Init starts the cursor and spinner and subscribes to workflow changes.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick, m.waitForChange())
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.Width = max(msg.Width-len(m.input.Prompt)-4, 10)
		m.history.SetSize(msg.Width-4, msg.Height-6)
		return m, nil

	case tea.KeyMsg:
		if m.view == HistoryView {
			return m.handleHistoryKeys(msg)
		}
		return m.handleUploadKeys(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case Msg:
		return m.handleMsg(msg)
	}

	return m, nil
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgStateChanged:
		m.state = msg.data.(workflow.State)
		if m.state.Phase == workflow.Idle {
			m.input.Focus()
		}
		return m, m.waitForChange()

	case MsgAttemptDone:
		err, _ := msg.data.(error)
		// Workflow errors are already part of the state.
		if _, ok := workflow.AsError(err); err != nil && !ok && !errors.Is(err, shared.ErrAttemptDiscarded) {
			m.err = err
		}
		m.state = m.opts.Workflow.State()
		return m, nil

	case MsgHistoryLoaded:
		data := msg.data.(struct {
			attempts []*models.UploadAttempt
			err      error
		})
		if data.err != nil {
			m.err = data.err
			m.view = UploadView
			return m, nil
		}
		items := make([]list.Item, len(data.attempts))
		for i, a := range data.attempts {
			items[i] = attemptItem{attempt: a}
		}
		return m, m.history.SetItems(items)

	case MsgActionDone:
		data := msg.data.(struct {
			notice string
			err    error
		})
		m.notice, m.err = data.notice, data.err
		return m, nil
	}
	return m, nil
}

func (m *Model) handleUploadKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}

	phase := m.state.Phase
	if phase == workflow.Idle || phase == workflow.FileSelected {
		return m.handleInputKeys(msg)
	}

	m.notice, m.err = "", nil
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.back) && phase.Busy():
		m.opts.Workflow.Reset()
		m.state = m.opts.Workflow.State()
		m.input.Focus()
		return m, nil
	case key.Matches(msg, m.keys.history) && phase.Settled():
		return m.showHistory()
	case key.Matches(msg, m.keys.another) && phase.Settled():
		m.opts.Workflow.Reset()
		m.state = m.opts.Workflow.State()
		m.input.SetValue("")
		m.input.Focus()
		return m, nil
	case key.Matches(msg, m.keys.retry) && phase == workflow.Failed:
		return m, m.retry()
	case key.Matches(msg, m.keys.copy) && phase == workflow.Completed:
		return m, m.copyResult()
	case key.Matches(msg, m.keys.open) && phase == workflow.Completed:
		return m, m.openResult()
	}
	return m, nil
}

// handleInputKeys edits the path while no attempt is running.
func (m *Model) handleInputKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.enter):
		m.notice, m.err = "", nil
		return m, m.submit()
	case key.Matches(msg, m.keys.back):
		if m.input.Value() == "" {
			return m, tea.Quit
		}
		m.input.SetValue("")
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) handleHistoryKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.history.FilterState() != list.Filtering {
		switch {
		case msg.String() == "ctrl+c", key.Matches(msg, m.keys.quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.back), key.Matches(msg, m.keys.history):
			m.view = UploadView
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.history, cmd = m.history.Update(msg)
	return m, cmd
}

// submit selects the typed file, or reuses the current selection, and starts an attempt.
func (m *Model) submit() tea.Cmd {
	path := strings.TrimSpace(m.input.Value())
	if path == "" && m.state.Phase != workflow.FileSelected {
		m.err = errors.New("please select a file first")
		return nil
	}

	if path != "" && (m.state.File == nil || m.state.File.Path() != filepath.Clean(path)) {
		file, err := models.OpenSelectedFile(filepath.Clean(path))
		if err != nil {
			m.err = err
			return nil
		}
		if err := m.opts.Workflow.SelectFile(file); err != nil {
			m.err = err
			return nil
		}
	}

	m.state = m.opts.Workflow.State()
	m.input.Blur()
	return tea.Batch(m.start(), m.spinner.Tick)
}

func (m *Model) start() tea.Cmd {
	wf := m.opts.Workflow
	return func() tea.Msg {
		return attemptDoneMsg(wf.Start(m.ctx))
	}
}

func (m *Model) retry() tea.Cmd {
	wf := m.opts.Workflow
	return tea.Batch(func() tea.Msg {
		return attemptDoneMsg(wf.Retry(m.ctx))
	}, m.spinner.Tick)
}

func (m *Model) copyResult() tea.Cmd {
	url, copyFn := m.state.ResultURL, m.opts.Copy
	return func() tea.Msg {
		if err := copyFn(url); err != nil {
			return actionDoneMsg("", fmt.Errorf("failed to copy link: %w", err))
		}
		return actionDoneMsg("Link copied to clipboard.", nil)
	}
}

func (m *Model) openResult() tea.Cmd {
	url, open := m.state.ResultURL, m.opts.OpenURL
	return func() tea.Msg {
		if err := open(url); err != nil {
			return actionDoneMsg("", fmt.Errorf("failed to open link: %w", err))
		}
		return actionDoneMsg("Opened in your browser.", nil)
	}
}

func (m *Model) showHistory() (tea.Model, tea.Cmd) {
	if m.opts.History == nil {
		m.err = errors.New("history is not available")
		return m, nil
	}
	m.view = HistoryView
	load := m.opts.History
	return m, func() tea.Msg {
		attempts, err := load(m.ctx)
		return historyLoadedMsg(attempts, err)
	}
}

// waitForChange delivers the next workflow snapshot as a message.
func (m *Model) waitForChange() tea.Cmd {
	changes := m.opts.Workflow.Changes()
	return func() tea.Msg {
		state, ok := <-changes
		if !ok {
			return nil
		}
		return stateChangedMsg(state)
	}
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	if m.view == HistoryView {
		helpView := m.help.ShortHelpView([]key.Binding{m.keys.back, m.keys.quit})
		return fmt.Sprintf("%s\n\n%s", m.history.View(), helpView)
	}

	var b strings.Builder
	b.WriteString(styles.title.Render("Bar Clip"))
	b.WriteString("\n")
	if p := m.opts.Workflow.Principal(); p != nil {
		b.WriteString(styles.help.Render("Signed in as " + p.String()))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	switch phase := m.state.Phase; {
	case phase == workflow.Idle || phase == workflow.FileSelected:
		b.WriteString(m.renderSelect())
	case phase.Busy():
		b.WriteString(m.renderProgress())
	case phase == workflow.Completed:
		b.WriteString(m.renderCompleted())
	case phase == workflow.Failed:
		b.WriteString(m.renderFailed())
	}

	if m.notice != "" {
		b.WriteString("\n" + styles.ok.Render(m.notice) + "\n")
	}
	if m.err != nil {
		b.WriteString("\n" + styles.err.Render("Error: "+m.err.Error()) + "\n")
	}

	b.WriteString("\n" + m.help.ShortHelpView(m.helpKeys()))
	return b.String()
}

func (m *Model) helpKeys() []key.Binding {
	switch phase := m.state.Phase; {
	case phase.Busy():
		return []key.Binding{m.keys.back, m.keys.quit}
	case phase == workflow.Completed:
		return []key.Binding{m.keys.copy, m.keys.open, m.keys.another, m.keys.history, m.keys.quit}
	case phase == workflow.Failed:
		return []key.Binding{m.keys.retry, m.keys.another, m.keys.history, m.keys.quit}
	default:
		return []key.Binding{m.keys.enter, key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "clear/quit"))}
	}
}

func (m *Model) renderSelect() string {
	var b strings.Builder
	b.WriteString(m.input.View())
	b.WriteString("\n")

	if f := m.state.File; f != nil {
		b.WriteString(fmt.Sprintf("\nSelected: %s (%s, %s)\n", f.Name, f.MIMEType, humanize.Bytes(uint64(f.Size))))
	}
	if m.state.Err != nil {
		style := styles.err
		if m.state.Err.Kind == workflow.NotAuthenticated {
			style = styles.warn
		}
		b.WriteString("\n" + style.Render(m.state.Err.Kind.Message()) + "\n")
	}
	if m.state.Message != "" && m.state.Phase == workflow.FileSelected {
		b.WriteString(styles.help.Render(m.state.Message) + "\n")
	}
	return b.String()
}

func (m *Model) renderProgress() string {
	step := map[workflow.Phase]int{
		workflow.RequestingCredential: 1,
		workflow.Uploading:            2,
		workflow.AwaitingCompletion:   3,
	}[m.state.Phase]

	name := ""
	if m.state.File != nil {
		name = m.state.File.Name
	}
	return styles.box.Render(fmt.Sprintf("%s %s\n\nStep %d/3 • %s", m.spinner.View(), m.state.Message, step, name)) + "\n"
}

func (m *Model) renderCompleted() string {
	title := styles.ok.Render("✓ " + m.state.Message)
	return fmt.Sprintf("%s\n\n%s\n", title, styles.link.Render(m.state.ResultURL))
}

func (m *Model) renderFailed() string {
	msg := m.state.Message
	if m.state.Err != nil {
		msg = m.state.Err.Error()
	}

	hint := "Press n to choose another file."
	if m.state.Err != nil && m.state.Err.Retryable() {
		hint = "Press r to retry or n to choose another file."
	}
	return fmt.Sprintf("%s\n\n%s\n", styles.err.Render("✗ "+msg), styles.help.Render(hint))
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"github.com/jeranaias/brainchat/internal/app"
	"github.com/jeranaias/brainchat/internal/chat"
	"github.com/jeranaias/brainchat/internal/lifecycle"
	"github.com/jeranaias/brainchat/internal/model"
)

// Core is the part of the app the TUI drives.
type Core interface {
	State() app.State
	Catalog() model.Catalog
	CreateSession() string
	DeleteSession(id string)
	TogglePin(id string)
	SetActive(id string)
	Send(ctx context.Context, text string) (model.Message, error)
	StartLoad(nameOrID string) error
}

// Options configure a Model.
type Options struct {
	// Markdown renders assistant replies with glamour.
	Markdown bool
	Theme    *Theme
}

type focus int

const (
	focusInput focus = iota
	focusSidebar
)

// Questions asked before destructive or slow actions.
const (
	confirmDeleteText = "Are you sure you want to delete this chat?"
	confirmSwitchText = "Switching models requires re-loading engine weights. Continue?"
)

// pendingAction is an action waiting for a y/n answer. Exactly one of
// sessionID and modelID is set.
type pendingAction struct {
	question  string
	sessionID string
	title     string
	modelID   string
	label     string
}

// sidebarWidth includes the border and padding.
const sidebarWidth = 30

// =============================================================================
// MESSAGES
// =============================================================================

// stateMsg signals that the core state may have changed.
type stateMsg struct{}

// coreClosedMsg is sent when the update channel closes.
type coreClosedMsg struct{}

// replyMsg carries the result of one Send.
type replyMsg struct {
	reply   model.Message
	err     error
	elapsed time.Duration
}

// waitForUpdate blocks on the core's notification channel.
func waitForUpdate(updates <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		if _, ok := <-updates; !ok {
			return coreClosedMsg{}
		}
		return stateMsg{}
	}
}

// sendCmd runs one turn off the update loop.
func sendCmd(ctx context.Context, core Core, text string) tea.Cmd {
	return func() tea.Msg {
		start := time.Now()
		reply, err := core.Send(ctx, text)
		return replyMsg{reply: reply, err: err, elapsed: time.Since(start)}
	}
}

// =============================================================================
// MODEL
// =============================================================================

// Model is the bubbletea model of the chat screen.
type Model struct {
	core    Core
	updates <-chan struct{}
	theme   *Theme
	keys    KeyMap

	state app.State

	viewport viewport.Model
	input    textinput.Model
	spinner  spinner.Model

	markdown bool
	md       *glamour.TermRenderer

	focus  focus
	cursor int

	sending bool
	cancel  context.CancelFunc

	// confirm is the action awaiting y/n, nil when none is
	confirm *pendingAction

	notice    string
	noticeErr bool

	width  int
	height int

	// lastActive and lastCount decide when to jump to the newest message
	lastActive string
	lastCount  int
}

// New creates the chat screen. updates is a channel from app.Subscribe.
func New(core Core, updates <-chan struct{}, opts Options) Model {
	theme := opts.Theme
	if theme == nil {
		theme = DefaultTheme()
	}

	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Type a message..."
	ti.CharLimit = 4096
	ti.Focus()

	vp := viewport.New(80, 20)
	vp.SetContent("")

	sp := spinner.New()
	sp.Spinner = spinner.Spinner{
		Frames: []string{"|", "/", "-", "\\"},
		FPS:    time.Second / 10,
	}

	m := Model{
		core:     core,
		updates:  updates,
		theme:    theme,
		keys:     DefaultKeyMap(),
		viewport: vp,
		input:    ti,
		spinner:  sp,
		markdown: opts.Markdown,
	}
	m.refresh()
	return m
}

// Init starts listening for core changes.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, waitForUpdate(m.updates), m.spinner.Tick)
}

// Update handles one message.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.handleResize(msg)

	case tea.KeyMsg:
		return m.handleKey(msg)

	case stateMsg:
		m.refresh()
		return m, waitForUpdate(m.updates)

	case coreClosedMsg:
		return m, tea.Quit

	case replyMsg:
		return m.handleReply(msg)

	case spinner.TickMsg:
		if !m.busy() {
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

// View renders the screen.
func (m Model) View() string {
	return m.renderScreen()
}

// =============================================================================
// HANDLERS
// =============================================================================

func (m Model) handleResize(msg tea.WindowSizeMsg) (tea.Model, tea.Cmd) {
	m.width = msg.Width
	m.height = msg.Height

	// header + separator + input + status
	const reserved = 4
	vpHeight := m.height - reserved
	if vpHeight < 1 {
		vpHeight = 1
	}
	vpWidth := m.width - sidebarWidth
	if vpWidth < 20 {
		vpWidth = 20
	}
	m.viewport.Width = vpWidth
	m.viewport.Height = vpHeight
	m.input.Width = vpWidth - len(m.input.Prompt) - 1

	if m.markdown {
		wrap := vpWidth - 4
		if wrap > 120 {
			wrap = 120
		}
		if r, err := glamour.NewTermRenderer(
			glamour.WithStylePath("dark"),
			glamour.WithWordWrap(wrap),
			glamour.WithEmoji(),
		); err == nil {
			m.md = r
		}
	}

	m.lastCount = -1
	m.refresh()
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		if m.cancel != nil {
			m.cancel()
		}
		return m, tea.Quit
	}
	if m.confirm != nil {
		return m.handleConfirmKey(msg)
	}
	if key.Matches(msg, m.keys.Focus) {
		if m.focus == focusInput {
			m.focus = focusSidebar
			m.input.Blur()
			m.cursor = m.activeIndex()
		} else {
			m.focus = focusInput
			m.input.Focus()
		}
		return m, nil
	}
	if m.focus == focusSidebar {
		return m.handleSidebarKey(msg)
	}
	return m.handleInputKey(msg)
}

func (m Model) handleInputKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Submit):
		return m.submit()

	case key.Matches(msg, m.keys.Cancel):
		if m.sending && m.cancel != nil {
			m.cancel()
		}
		return m, nil

	case key.Matches(msg, m.keys.NewChat):
		m.core.CreateSession()
		m.setNotice("New chat", false)
		m.refresh()
		return m, nil

	case key.Matches(msg, m.keys.CycleModel):
		return m.cycleModel()

	case key.Matches(msg, m.keys.ScrollUp):
		m.viewport.HalfViewUp()
		return m, nil

	case key.Matches(msg, m.keys.ScrollDown):
		m.viewport.HalfViewDown()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleSidebarKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	sessions := m.sidebarSessions()

	switch {
	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(sessions)-1 {
			m.cursor++
		}
	case key.Matches(msg, m.keys.Open):
		if len(sessions) > 0 {
			m.core.SetActive(sessions[m.cursor].ID)
		}
		m.focus = focusInput
		m.input.Focus()
	case key.Matches(msg, m.keys.Pin):
		if len(sessions) > 0 {
			id := sessions[m.cursor].ID
			m.core.TogglePin(id)
			m.refresh()
			m.cursor = m.indexOf(id)
			return m, nil
		}
	case key.Matches(msg, m.keys.Delete):
		if len(sessions) > 0 {
			s := sessions[m.cursor]
			m.confirm = &pendingAction{question: confirmDeleteText, sessionID: s.ID, title: s.Title}
			m.notice = ""
		}
	case key.Matches(msg, m.keys.SidebarNew):
		m.core.CreateSession()
		m.focus = focusInput
		m.input.Focus()
	case key.Matches(msg, m.keys.Cancel):
		m.focus = focusInput
		m.input.Focus()
	}

	m.refresh()
	return m, nil
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(m.input.Value())
	if text == "" {
		return m, nil
	}
	if m.sending {
		m.setNotice("Still generating, press Esc to cancel", true)
		return m, nil
	}
	if !m.state.Model.IsLoaded {
		m.setNotice("Model is not ready yet", true)
		return m, nil
	}

	m.input.Reset()
	ctx, cancel := context.WithCancel(context.Background())
	m.sending = true
	m.cancel = cancel
	m.notice = ""
	return m, tea.Batch(sendCmd(ctx, m.core, text), m.spinner.Tick)
}

func (m Model) handleReply(msg replyMsg) (tea.Model, tea.Cmd) {
	if m.cancel != nil {
		m.cancel()
	}
	m.sending = false
	m.cancel = nil

	if msg.err != nil {
		m.setNotice(errorText(msg.err), true)
	} else {
		m.setNotice(fmt.Sprintf("Replied in %.1fs", msg.elapsed.Seconds()), false)
	}
	m.refresh()
	return m, nil
}

// cycleModel asks to switch between the lite and pro tiers.
func (m Model) cycleModel() (tea.Model, tea.Cmd) {
	catalog := m.core.Catalog()
	models := catalog.Models()
	next := models[0]
	for i, info := range models {
		if info.ID == m.state.Model.CurrentModelID {
			next = models[(i+1)%len(models)]
			break
		}
	}
	m.confirm = &pendingAction{question: confirmSwitchText, modelID: next.ID, label: next.Label}
	m.notice = ""
	return m, nil
}

// handleConfirmKey answers the pending question. Other keys are ignored
// until it is answered.
func (m Model) handleConfirmKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	action := m.confirm
	switch {
	case key.Matches(msg, m.keys.Yes):
		m.confirm = nil
	case key.Matches(msg, m.keys.No):
		m.confirm = nil
		m.setNotice("Cancelled", false)
		return m, nil
	default:
		return m, nil
	}

	if action.sessionID != "" {
		m.core.DeleteSession(action.sessionID)
		m.setNotice("Deleted "+action.title, false)
		m.refresh()
		return m, nil
	}
	if err := m.core.StartLoad(action.modelID); err != nil {
		m.setNotice(err.Error(), true)
		return m, nil
	}
	m.setNotice("Loading "+action.label, false)
	m.refresh()
	return m, m.spinner.Tick
}

// =============================================================================
// STATE
// =============================================================================

// refresh pulls the current state from the core and rebuilds the viewport.
func (m *Model) refresh() {
	m.state = m.core.State()

	if n := len(m.sidebarSessions()); m.cursor >= n {
		m.cursor = n - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}

	m.viewport.SetContent(m.renderMessages())
	if m.state.ActiveID != m.lastActive || len(m.state.Messages) != m.lastCount {
		m.viewport.GotoBottom()
		m.lastActive = m.state.ActiveID
		m.lastCount = len(m.state.Messages)
	}
}

// busy reports whether the spinner should keep ticking.
func (m Model) busy() bool {
	return m.sending || loading(m.state.Model)
}

func loading(st lifecycle.State) bool {
	if st.IsLoaded {
		return false
	}
	return st.StatusText != lifecycle.StatusIdle && st.StatusText != lifecycle.StatusLoadFailed
}

// sidebarSessions returns pinned sessions first, then the rest.
func (m Model) sidebarSessions() []model.ChatSession {
	out := make([]model.ChatSession, 0, len(m.state.Sessions))
	for _, s := range m.state.Sessions {
		if s.IsPinned {
			out = append(out, s)
		}
	}
	for _, s := range m.state.Sessions {
		if !s.IsPinned {
			out = append(out, s)
		}
	}
	return out
}

func (m Model) indexOf(id string) int {
	for i, s := range m.sidebarSessions() {
		if s.ID == id {
			return i
		}
	}
	return 0
}

func (m Model) activeIndex() int {
	return m.indexOf(m.state.ActiveID)
}

func (m *Model) setNotice(text string, isErr bool) {
	m.notice = text
	m.noticeErr = isErr
}

// errorText describes a failed send.
func errorText(err error) string {
	var inf *chat.InferenceError
	switch {
	case errors.Is(err, context.Canceled):
		return "Cancelled"
	case errors.Is(err, chat.ErrModelNotReady):
		return "Model is not ready yet"
	case errors.Is(err, chat.ErrBusy):
		return "Still generating"
	case errors.Is(err, chat.ErrEmptyMessage):
		return "Message is empty"
	case errors.As(err, &inf):
		return fmt.Sprintf("Generation failed: %v", inf.Cause)
	default:
		return err.Error()
	}
}

package tui

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/filepicker"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"supportchat/internal/store"
	"supportchat/pkg/models"
)

type viewMode int

const (
	loginView viewMode = iota
	chatView
	pickerView
)

type focusArea int

const (
	focusInput focusArea = iota
	focusSidebar
)

const sidebarWidth = 28

type model struct {
	mode   viewMode
	client userValidator
	st     *store.Store
	logger *zap.Logger

	login loginForm
	user  models.User

	input    textinput.Model
	viewport viewport.Model
	picker   filepicker.Model
	renderer *glamour.TermRenderer
	typing   *TypingIndicator

	focus           focusArea
	sessionCursor   int
	loadingSessions bool
	lastMsgCount    int

	toast    string
	toastSeq int

	ready  bool
	width  int
	height int
}

func initialModel(client userValidator, st *store.Store, logger *zap.Logger) model {
	if logger == nil {
		logger = zap.NewNop()
	}

	input := textinput.New()
	input.Placeholder = "Message our AI support assistant..."
	input.CharLimit = 4096
	input.Prompt = "> "

	picker := filepicker.New()
	picker.AllowedTypes = []string{".pdf", ".doc", ".docx", ".txt", ".png", ".jpg", ".jpeg"}
	if wd, err := os.Getwd(); err == nil {
		picker.CurrentDirectory = wd
	}

	return model{
		mode:   loginView,
		client: client,
		st:     st,
		logger: logger,
		login:  newLoginForm(),
		input:  input,
		picker: picker,
		typing: NewTypingIndicator(),
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(tea.EnterAltScreen, textinput.Blink)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.applyLayout()
		m.refreshViewport(true)

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		switch m.mode {
		case loginView:
			return m.updateLogin(msg)
		case chatView:
			return m.updateChat(msg)
		case pickerView:
			if msg.String() == "esc" {
				m.mode = chatView
				return m, nil
			}
		}

	case UserValidatedMsg:
		m.login.submitting = false
		if msg.Error != nil {
			m.login.errText = msg.Error.Error()
			return m, nil
		}
		m.user = *msg.User
		m.mode = chatView
		m.loadingSessions = true
		m.input.Focus()
		m.refreshViewport(false)
		return m, loadSessionsCmd(m.st, m.user)

	case SessionsLoadedMsg:
		m.loadingSessions = false
		m.syncCursor()
		m.refreshViewport(true)

	case SessionCreatedMsg:
		if msg.Error != nil {
			return m, m.showToast("Could not create a new chat: " + msg.Error.Error())
		}
		m.syncCursor()
		m.refreshViewport(true)

	case SessionDeletedMsg:
		if msg.Error != nil {
			return m, m.showToast("Could not delete chat: " + msg.Error.Error())
		}
		m.syncCursor()
		m.refreshViewport(true)

	case ExchangeDoneMsg:
		m.refreshViewport(false)
		if msg.Error != nil {
			return m, m.showToast("Message could not be delivered: " + msg.Error.Error())
		}

	case TypingTickMsg:
		if m.st.Loading() {
			m.typing.Tick()
			cmds = append(cmds, typingTickCmd())
		}

	case ToastExpiredMsg:
		if msg.Seq == m.toastSeq {
			m.toast = ""
		}
	}

	switch m.mode {
	case loginView:
		cmds = append(cmds, m.login.update(msg))
	case chatView:
		var vpCmd, inCmd tea.Cmd
		m.viewport, vpCmd = m.viewport.Update(msg)
		m.input, inCmd = m.input.Update(msg)
		cmds = append(cmds, vpCmd, inCmd)
	case pickerView:
		var cmd tea.Cmd
		m.picker, cmd = m.picker.Update(msg)
		cmds = append(cmds, cmd)
		if ok, path := m.picker.DidSelectFile(msg); ok {
			m.st.AttachFiles([]string{filepath.Base(path)})
			m.mode = chatView
			m.refreshViewport(false)
		}
	}

	return m, tea.Batch(cmds...)
}

func (m model) updateLogin(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "tab", "down":
		return m, m.login.focusField((m.login.focused + 1) % fieldCount)
	case "shift+tab", "up":
		return m, m.login.focusField((m.login.focused + fieldCount - 1) % fieldCount)
	case "enter":
		if m.login.submitting || !m.login.complete() {
			return m, nil
		}
		m.login.submitting = true
		m.login.errText = ""
		name, email, phone := m.login.values()
		return m, validateUserCmd(m.client, name, email, phone)
	}
	return m, m.login.update(msg)
}

func (m model) updateChat(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.focus == focusSidebar {
		return m.updateSidebar(msg)
	}

	switch msg.String() {
	case "enter":
		// Silent no-op for blank input, missing session, or an exchange
		// already in flight, matching the disabled submit control.
		ex, ok := m.st.BeginExchange(m.input.Value())
		if !ok {
			return m, nil
		}
		m.input.Reset()
		m.refreshViewport(false)
		m.viewport.GotoBottom()
		return m, tea.Batch(finishExchangeCmd(m.st, ex), typingTickCmd())

	case "ctrl+n":
		return m, createSessionCmd(m.st)

	case "ctrl+d":
		if id := m.st.CurrentID(); id != "" {
			return m, deleteSessionCmd(m.st, id)
		}
		return m, nil

	case "ctrl+u":
		m.mode = pickerView
		return m, m.picker.Init()

	case "ctrl+x":
		// Removes the newest chip; its pseudo-message stays in the transcript.
		if n := len(m.st.Attachments()); n > 0 {
			m.st.RemoveAttachment(n - 1)
		}
		return m, nil

	case "tab":
		m.focus = focusSidebar
		m.input.Blur()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m model) updateSidebar(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	sessions := m.st.Sessions()

	switch msg.String() {
	case "up", "k":
		if m.sessionCursor > 0 {
			m.sessionCursor--
		}
	case "down", "j":
		if m.sessionCursor < len(sessions)-1 {
			m.sessionCursor++
		}
	case "enter":
		if m.sessionCursor < len(sessions) {
			m.st.SelectSession(sessions[m.sessionCursor].ID)
			m.refreshViewport(true)
		}
	case "n":
		return m, createSessionCmd(m.st)
	case "d":
		if m.sessionCursor < len(sessions) {
			return m, deleteSessionCmd(m.st, sessions[m.sessionCursor].ID)
		}
	case "tab", "esc":
		m.focus = focusInput
		return m, m.input.Focus()
	case "q":
		return m, tea.Quit
	}
	return m, nil
}

// applyLayout sizes the viewport, input and picker for the current terminal
func (m *model) applyLayout() {
	chatWidth := m.width - sidebarWidth - 1
	if chatWidth < 20 {
		chatWidth = 20
	}
	// header + footer + typing line + chips line + input line
	viewHeight := m.height - 5
	if viewHeight < 3 {
		viewHeight = 3
	}

	if !m.ready {
		m.viewport = viewport.New(chatWidth, viewHeight)
		m.ready = true
	} else {
		m.viewport.Width = chatWidth
		m.viewport.Height = viewHeight
	}

	m.input.Width = chatWidth - 4
	m.picker.Height = viewHeight

	wrap := chatWidth - 4
	if wrap < 20 {
		wrap = 20
	}
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(wrap),
	)
	if err != nil {
		m.logger.Warn("failed to build markdown renderer", zap.Error(err))
		renderer = nil
	}
	m.renderer = renderer
}

// syncCursor points the sidebar cursor at the current session
func (m *model) syncCursor() {
	m.sessionCursor = 0
	current := m.st.CurrentID()
	for i, sess := range m.st.Sessions() {
		if sess.ID == current {
			m.sessionCursor = i
			return
		}
	}
}

// refreshViewport rebuilds the transcript. The view auto-scrolls to the
// newest message whenever the message list grows.
func (m *model) refreshViewport(force bool) {
	if !m.ready {
		return
	}
	msgs := m.st.Messages()
	m.viewport.SetContent(m.renderTranscript(msgs))
	if force || len(msgs) != m.lastMsgCount {
		m.viewport.GotoBottom()
	}
	m.lastMsgCount = len(msgs)
}

func (m *model) showToast(text string) tea.Cmd {
	m.toast = text
	m.toastSeq++
	return expireToastCmd(m.toastSeq)
}

func (m model) renderTranscript(msgs []models.Message) string {
	if m.loadingSessions {
		return lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Render("Loading your conversations...")
	}

	if len(msgs) == 0 {
		emptyStyle := lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true)
		return emptyStyle.Render("Start a conversation\n\nAsk our AI assistant anything about your issues and we'll\nhelp resolve them quickly. You can also upload documents\nfor faster resolution.")
	}

	timeStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
	userStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("43")).Bold(true)
	botStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("252"))

	wrapWidth := m.viewport.Width - 4
	if wrapWidth < 20 {
		wrapWidth = 20
	}

	var s strings.Builder
	for i, msg := range msgs {
		stamp := timeStyle.Render(msg.Timestamp.Format("15:04"))
		if msg.Sender == models.SenderUser {
			s.WriteString(userStyle.Render("You") + " " + stamp + "\n")
			for _, line := range wrapText(msg.Text, wrapWidth) {
				s.WriteString(line + "\n")
			}
		} else {
			s.WriteString(botStyle.Render("Support") + " " + stamp + "\n")
			s.WriteString(m.renderBotText(msg.Text, wrapWidth))
		}
		if i < len(msgs)-1 {
			s.WriteString("\n")
		}
	}
	return s.String()
}

// renderBotText renders bot messages as markdown, falling back to wrapped
// plain text when the renderer is unavailable.
func (m model) renderBotText(text string, wrapWidth int) string {
	if m.renderer != nil {
		if out, err := m.renderer.Render(text); err == nil {
			return strings.Trim(out, "\n") + "\n"
		}
	}
	var s strings.Builder
	for _, line := range wrapText(text, wrapWidth) {
		s.WriteString(line + "\n")
	}
	return s.String()
}

func (m model) renderSidebar() string {
	sessions := m.st.Sessions()
	current := m.st.CurrentID()

	headerStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("229"))

	var s strings.Builder
	s.WriteString(headerStyle.Render("Chat History") + "\n")
	s.WriteString(strings.Repeat("─", sidebarWidth-2) + "\n")

	for i, sess := range sessions {
		cursor := "  "
		if m.focus == focusSidebar && i == m.sessionCursor {
			cursor = "> "
		}

		style := lipgloss.NewStyle()
		switch {
		case sess.ID == current:
			style = style.Foreground(lipgloss.Color("43")).Bold(true)
		case m.focus == focusSidebar && i == m.sessionCursor:
			style = style.Foreground(lipgloss.Color("212"))
		default:
			style = style.Foreground(lipgloss.Color("250"))
		}

		title := sess.Title
		if m.st.IsLocal(sess.ID) {
			title += " (offline)"
		}
		s.WriteString(style.Render(cursor+truncate(title, sidebarWidth-4)) + "\n")
	}

	return s.String()
}

func (m model) renderChips() string {
	chips := m.st.Attachments()
	if len(chips) == 0 {
		return ""
	}
	chipStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("30")).
		Background(lipgloss.Color("158")).
		Padding(0, 1)

	rendered := make([]string, len(chips))
	for i, chip := range chips {
		rendered[i] = chipStyle.Render("📎 " + truncate(chip, 24))
	}
	return strings.Join(rendered, " ")
}

func (m model) renderHeader() string {
	style := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("63")).
		Width(m.width)

	title := "Smart Customer Support"
	if m.mode != loginView && m.user.Name != "" {
		title = fmt.Sprintf("Smart Customer Support — Welcome, %s", m.user.Name)
	}
	return style.Render(" " + title)
}

func (m model) renderFooter() string {
	if m.toast != "" {
		return lipgloss.NewStyle().
			Foreground(lipgloss.Color("231")).
			Background(lipgloss.Color("160")).
			Padding(0, 1).
			Render(m.toast)
	}

	var info string
	switch {
	case m.mode == pickerView:
		info = "↑/↓: navigate • enter: attach • esc: back"
	case m.focus == focusSidebar:
		info = "↑/↓: navigate • enter: open • n: new chat • d: delete • tab: back • q: quit"
	default:
		info = "enter: send • ctrl+n: new chat • ctrl+d: delete chat • ctrl+u: upload • tab: history • ctrl+c: quit"
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Render(info)
}

func (m model) View() string {
	if !m.ready {
		return "\n  Initializing..."
	}

	switch m.mode {
	case loginView:
		body := lipgloss.NewStyle().
			Height(m.height - 2).
			Width(m.width).
			Align(lipgloss.Center, lipgloss.Center).
			Render(m.login.view(0))
		return fmt.Sprintf("%s\n%s\n%s", m.renderHeader(), body, m.renderFooter())

	case pickerView:
		return fmt.Sprintf("%s\n%s\n%s", m.renderHeader(), m.picker.View(), m.renderFooter())
	}

	typingLine := ""
	if m.st.Loading() {
		typingLine = m.typing.View()
	}

	chat := lipgloss.JoinVertical(lipgloss.Left,
		m.viewport.View(),
		typingLine,
		m.renderChips(),
		m.input.View(),
	)

	sidebar := lipgloss.NewStyle().
		Width(sidebarWidth).
		Height(m.height - 2).
		Render(m.renderSidebar())

	divider := strings.Builder{}
	for i := 0; i < m.height-2; i++ {
		divider.WriteString("│")
		if i < m.height-3 {
			divider.WriteString("\n")
		}
	}
	dividerStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("238"))

	body := lipgloss.JoinHorizontal(lipgloss.Top,
		sidebar,
		dividerStyle.Render(divider.String()),
		chat,
	)

	return fmt.Sprintf("%s\n%s\n%s", m.renderHeader(), body, m.renderFooter())
}

// wrapText wraps text to fit within the specified width
func wrapText(text string, width int) []string {
	if width <= 0 {
		return []string{text}
	}

	var lines []string
	words := strings.Fields(text)
	if len(words) == 0 {
		return []string{text}
	}

	currentLine := words[0]
	for _, word := range words[1:] {
		if len(currentLine)+1+len(word) > width {
			lines = append(lines, currentLine)
			currentLine = word
		} else {
			currentLine += " " + word
		}
	}
	if currentLine != "" {
		lines = append(lines, currentLine)
	}

	return lines
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

// Run starts the TUI: login gate first, then the chat interface.
func Run(client userValidator, st *store.Store, logger *zap.Logger) error {
	p := tea.NewProgram(
		initialModel(client, st, logger),
		tea.WithAltScreen(),
	)

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}

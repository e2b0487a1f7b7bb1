package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	fieldName = iota
	fieldEmail
	fieldPhone
	fieldCount
)

// loginForm is the login gate: name, email and phone number validated
// against the backend before the chat interface opens.
type loginForm struct {
	inputs     []textinput.Model
	focused    int
	submitting bool
	errText    string
}

func newLoginForm() loginForm {
	inputs := make([]textinput.Model, fieldCount)

	name := textinput.New()
	name.Placeholder = "Full name"
	name.CharLimit = 128
	name.Width = 40
	name.Focus()
	inputs[fieldName] = name

	email := textinput.New()
	email.Placeholder = "Email address"
	email.CharLimit = 128
	email.Width = 40
	inputs[fieldEmail] = email

	phone := textinput.New()
	phone.Placeholder = "Contact number"
	phone.CharLimit = 32
	phone.Width = 40
	inputs[fieldPhone] = phone

	return loginForm{inputs: inputs}
}

// complete reports whether every field has a non-blank value
func (f *loginForm) complete() bool {
	for i := range f.inputs {
		if strings.TrimSpace(f.inputs[i].Value()) == "" {
			return false
		}
	}
	return true
}

func (f *loginForm) values() (name, email, phone string) {
	return strings.TrimSpace(f.inputs[fieldName].Value()),
		strings.TrimSpace(f.inputs[fieldEmail].Value()),
		strings.TrimSpace(f.inputs[fieldPhone].Value())
}

func (f *loginForm) focusField(i int) tea.Cmd {
	f.focused = i
	var cmd tea.Cmd
	for j := range f.inputs {
		if j == i {
			cmd = f.inputs[j].Focus()
		} else {
			f.inputs[j].Blur()
		}
	}
	return cmd
}

func (f *loginForm) update(msg tea.Msg) tea.Cmd {
	var cmds []tea.Cmd
	for i := range f.inputs {
		var cmd tea.Cmd
		f.inputs[i], cmd = f.inputs[i].Update(msg)
		cmds = append(cmds, cmd)
	}
	return tea.Batch(cmds...)
}

func (f *loginForm) view(width int) string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("229"))

	labelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("250"))

	var s strings.Builder
	s.WriteString(titleStyle.Render("Smart Customer Support") + "\n\n")
	s.WriteString(labelStyle.Render("Sign in to start chatting with our AI support assistant.") + "\n\n")

	labels := []string{"Full Name", "Email Address", "Contact Number"}
	for i := range f.inputs {
		s.WriteString(labelStyle.Render(labels[i]) + "\n")
		s.WriteString(f.inputs[i].View() + "\n\n")
	}

	if f.submitting {
		s.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Render("Validating...") + "\n")
	} else if f.errText != "" {
		s.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Render(f.errText) + "\n")
	}

	s.WriteString("\n" + lipgloss.NewStyle().Foreground(lipgloss.Color("241")).
		Render("tab: next field • enter: sign in • ctrl+c: quit"))

	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("63")).
		Padding(1, 3).
		Render(s.String())

	if width > 0 {
		return lipgloss.NewStyle().Width(width).Align(lipgloss.Center).Render(box)
	}
	return box
}

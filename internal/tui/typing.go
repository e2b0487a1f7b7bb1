package tui

import (
	"github.com/charmbracelet/lipgloss"
)

// TypingIndicator renders the bouncing-dots animation shown while a reply
// is pending.
type TypingIndicator struct {
	frames []string
	frame  int
}

// NewTypingIndicator creates a new typing indicator
func NewTypingIndicator() *TypingIndicator {
	return &TypingIndicator{
		frames: []string{"●∙∙", "∙●∙", "∙∙●", "∙●∙"},
		frame:  0,
	}
}

// Tick advances the animation to the next frame
func (t *TypingIndicator) Tick() {
	t.frame = (t.frame + 1) % len(t.frames)
}

// View renders the current frame
func (t *TypingIndicator) View() string {
	dotStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("245"))

	return dotStyle.Render(t.frames[t.frame])
}

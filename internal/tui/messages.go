package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"supportchat/internal/store"
	"supportchat/pkg/models"
)

// Message types for async operations
type (
	// UserValidatedMsg carries the login result
	UserValidatedMsg struct {
		User  *models.User
		Error error
	}

	// SessionsLoadedMsg indicates the bulk session load finished. Load
	// failures recover inside the store, so there is no error here.
	SessionsLoadedMsg struct{}

	// SessionCreatedMsg indicates a "new chat" request finished
	SessionCreatedMsg struct {
		Error error
	}

	// SessionDeletedMsg indicates a delete request finished
	SessionDeletedMsg struct {
		Error error
	}

	// ExchangeDoneMsg indicates a send/reply cycle finished
	ExchangeDoneMsg struct {
		Error error
	}

	// ToastExpiredMsg clears a transient notification
	ToastExpiredMsg struct {
		Seq int
	}

	// TypingTickMsg drives the typing indicator animation
	TypingTickMsg time.Time
)

// userValidator is the slice of the backend client the login flow needs
type userValidator interface {
	ValidateUser(ctx context.Context, name, email, phone string) (*models.User, error)
}

// Commands for async operations. Backend calls carry no deadline beyond the
// HTTP client timeout; a hung request simply leaves the loading state up.

// validateUserCmd validates the login form against the backend
func validateUserCmd(c userValidator, name, email, phone string) tea.Cmd {
	return func() tea.Msg {
		user, err := c.ValidateUser(context.Background(), name, email, phone)
		return UserValidatedMsg{User: user, Error: err}
	}
}

// loadSessionsCmd performs the bulk session load for the logged-in user
func loadSessionsCmd(st *store.Store, user models.User) tea.Cmd {
	return func() tea.Msg {
		st.LoadSessions(context.Background(), user)
		return SessionsLoadedMsg{}
	}
}

// createSessionCmd requests a new session from the backend
func createSessionCmd(st *store.Store) tea.Cmd {
	return func() tea.Msg {
		return SessionCreatedMsg{Error: st.CreateSession(context.Background(), "")}
	}
}

// deleteSessionCmd requests deletion of a session
func deleteSessionCmd(st *store.Store, id string) tea.Cmd {
	return func() tea.Msg {
		return SessionDeletedMsg{Error: st.DeleteSession(context.Background(), id)}
	}
}

// finishExchangeCmd persists the user message and produces the reply
func finishExchangeCmd(st *store.Store, ex store.Exchange) tea.Cmd {
	return func() tea.Msg {
		return ExchangeDoneMsg{Error: st.FinishExchange(context.Background(), ex)}
	}
}

// expireToastCmd clears a notification after it has been shown for a while
func expireToastCmd(seq int) tea.Cmd {
	return tea.Tick(4*time.Second, func(time.Time) tea.Msg {
		return ToastExpiredMsg{Seq: seq}
	})
}

// typingTickCmd animates the typing indicator while a reply is pending
func typingTickCmd() tea.Cmd {
	return tea.Tick(250*time.Millisecond, func(t time.Time) tea.Msg {
		return TypingTickMsg(t)
	})
}

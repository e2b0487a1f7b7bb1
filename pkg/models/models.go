package models

import "time"

// Sender identifies which side of the conversation produced a message.
type Sender string

const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
)

// SenderFromRole maps a backend role to a sender. The backend speaks
// "user"/"assistant"; anything that is not "assistant" renders as the user.
func SenderFromRole(role string) Sender {
	if role == "assistant" {
		return SenderBot
	}
	return SenderUser
}

// Role maps a sender back to the backend role vocabulary.
func (s Sender) Role() string {
	if s == SenderBot {
		return "assistant"
	}
	return "user"
}

// User is the identity established at login
type User struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phone_number"`
}

// Message is a single chat message. Append-only: never edited or reordered.
type Message struct {
	ID        string
	Text      string
	Sender    Sender
	Timestamp time.Time
}

// Session is one conversation thread belonging to a user
type Session struct {
	ID           string
	Title        string
	CreatedAt    time.Time
	MessageCount int
	Messages     []Message // Loaded eagerly on session load
}

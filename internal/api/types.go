package api

// Wire types for the support backend. Field names follow the backend's JSON
// contract exactly; the client maps them to pkg/models shapes at the edges.

// ChatHistory is one conversation as returned by the list and create
// endpoints. Messages are fetched separately.
type ChatHistory struct {
	ID           int    `json:"id"`
	UserID       int    `json:"user_id"`
	Title        string `json:"title"`
	CreatedAt    string `json:"created_at"`
	MessageCount int    `json:"message_count"`
}

// ChatMessage is a persisted message
type ChatMessage struct {
	ID            int    `json:"id"`
	ChatHistoryID int    `json:"chat_history_id"`
	Role          string `json:"role"`
	Content       string `json:"content"`
	CreatedAt     string `json:"created_at"`
}

// ChatDetail is a conversation with its messages inlined
type ChatDetail struct {
	ID        int           `json:"id"`
	UserID    int           `json:"user_id"`
	Title     string        `json:"title"`
	CreatedAt string        `json:"created_at"`
	Messages  []ChatMessage `json:"messages"`
}

type validateUserRequest struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phone_number"`
}

type createChatHistoryRequest struct {
	UserID int    `json:"user_id"`
	Title  string `json:"title,omitempty"`
}

type addMessageRequest struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// validationError is the structured error body returned by /validate-users.
// Every other endpoint fails opaquely.
type validationError struct {
	Detail []string `json:"detail"`
}

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"supportchat/pkg/models"
)

// Client handles communication with the support backend
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a new backend client
func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// ValidateUser validates (or creates) a user from the login form fields.
// On failure the backend returns a structured body whose detail strings are
// surfaced in the error text.
func (c *Client) ValidateUser(ctx context.Context, name, email, phone string) (*models.User, error) {
	body := validateUserRequest{Name: name, Email: email, PhoneNumber: phone}

	resp, err := c.post(ctx, "/validate-users", body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if !is2xx(resp.StatusCode) {
		var ve validationError
		if err := json.NewDecoder(resp.Body).Decode(&ve); err == nil && len(ve.Detail) > 0 {
			return nil, fmt.Errorf("%s", strings.Join(ve.Detail, ", "))
		}
		return nil, fmt.Errorf("validation failed (status %d)", resp.StatusCode)
	}

	var user models.User
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, fmt.Errorf("failed to parse user: %w", err)
	}
	c.logger.Info("user validated", zap.Int("user_id", user.ID))
	return &user, nil
}

// ValidateTestCredentials checks the demo credentials endpoint.
func (c *Client) ValidateTestCredentials(ctx context.Context, name, email, phone string) error {
	body := validateUserRequest{Name: name, Email: email, PhoneNumber: phone}

	resp, err := c.post(ctx, "/test-credentials", body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if !is2xx(resp.StatusCode) {
		return fmt.Errorf("test credentials validation failed (status %d)", resp.StatusCode)
	}
	return nil
}

// ListChatHistories fetches the user's conversations, in the server's
// preferred order.
func (c *Client) ListChatHistories(ctx context.Context, userID int) ([]ChatHistory, error) {
	resp, err := c.get(ctx, fmt.Sprintf("/chat-histories/%d", userID))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if !is2xx(resp.StatusCode) {
		return nil, c.statusError("fetch chat histories", resp)
	}

	var histories []ChatHistory
	if err := json.NewDecoder(resp.Body).Decode(&histories); err != nil {
		return nil, fmt.Errorf("failed to parse chat histories: %w", err)
	}
	return histories, nil
}

// CreateChatHistory creates a new conversation for the user. An empty title
// is omitted so the backend can assign its default.
func (c *Client) CreateChatHistory(ctx context.Context, userID int, title string) (*ChatHistory, error) {
	body := createChatHistoryRequest{UserID: userID, Title: title}

	resp, err := c.post(ctx, "/chat-histories", body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if !is2xx(resp.StatusCode) {
		return nil, c.statusError("create chat history", resp)
	}

	var history ChatHistory
	if err := json.NewDecoder(resp.Body).Decode(&history); err != nil {
		return nil, fmt.Errorf("failed to parse chat history: %w", err)
	}
	return &history, nil
}

// DeleteChatHistory deletes a conversation.
func (c *Client) DeleteChatHistory(ctx context.Context, historyID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/chat-histories/"+historyID, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if !is2xx(resp.StatusCode) {
		return c.statusError("delete chat history", resp)
	}
	return nil
}

// GetChatMessages fetches a conversation with its messages.
func (c *Client) GetChatMessages(ctx context.Context, historyID string) (*ChatDetail, error) {
	resp, err := c.get(ctx, "/chat-histories/"+historyID+"/messages")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if !is2xx(resp.StatusCode) {
		return nil, c.statusError("fetch messages", resp)
	}

	var detail ChatDetail
	if err := json.NewDecoder(resp.Body).Decode(&detail); err != nil {
		return nil, fmt.Errorf("failed to parse messages: %w", err)
	}
	return &detail, nil
}

// AddMessage persists a message to a conversation.
func (c *Client) AddMessage(ctx context.Context, historyID, role, content string) (*ChatMessage, error) {
	body := addMessageRequest{Role: role, Content: content}

	resp, err := c.post(ctx, "/chat-histories/"+historyID+"/messages", body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if !is2xx(resp.StatusCode) {
		return nil, c.statusError("add message", resp)
	}

	var msg ChatMessage
	if err := json.NewDecoder(resp.Body).Decode(&msg); err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}
	return &msg, nil
}

func (c *Client) get(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	return resp, nil
}

func (c *Client) post(ctx context.Context, path string, body interface{}) (*http.Response, error) {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	return resp, nil
}

// statusError drains the body for the log but reports an opaque failure.
func (c *Client) statusError(op string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	c.logger.Warn("backend error",
		zap.String("op", op),
		zap.Int("status", resp.StatusCode),
		zap.ByteString("body", body))
	return fmt.Errorf("failed to %s (status %d)", op, resp.StatusCode)
}

func is2xx(status int) bool {
	return status >= 200 && status < 300
}

// Package store owns the client-side chat state: which sessions exist, in
// what order, with what messages, and which one is active. All reads and
// writes against the backend go through here; the TUI renders from snapshots
// and never mutates state directly.
package store

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"supportchat/internal/api"
	"supportchat/internal/bot"
	"supportchat/pkg/models"
)

// Store is the single source of truth for session and message state.
// bubbletea commands run in goroutines, so all state is mutex-guarded.
type Store struct {
	mu        sync.RWMutex
	client    *api.Client
	responder bot.Responder
	logger    *zap.Logger

	user        models.User
	sessions    []models.Session // most-recently-created first
	currentID   string           // empty only while sessions is empty
	messages    []models.Message // mirror of the current session's messages
	loading     bool             // an exchange is in flight
	attachments []string         // attachment chips (file names)
	localIDs    map[string]bool  // sessions that exist only client-side

	// rollbackOnFailure removes the locally appended user message when its
	// persistence fails. Off by default: the optimistic append stays visible
	// even when the backend rejected it.
	rollbackOnFailure bool
}

// Exchange binds one send/reply cycle to the session it started in, so a
// completion applies to that session even if the user switched mid-flight.
type Exchange struct {
	SessionID string
	UserMsg   models.Message
}

// New creates a store backed by the given client and reply producer.
func New(client *api.Client, responder bot.Responder, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		client:    client,
		responder: responder,
		logger:    logger,
		localIDs:  make(map[string]bool),
	}
}

// SetRollbackOnFailure toggles rollback of unpersisted user messages.
func (s *Store) SetRollbackOnFailure(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rollbackOnFailure = v
}

// LoadSessions fetches the user's chat histories and their messages,
// replacing the whole collection and selecting the most recent one. Any
// fetch failure falls back to a fresh session so the UI is never left
// without an active session; the failure is logged, not surfaced.
func (s *Store) LoadSessions(ctx context.Context, user models.User) {
	s.mu.Lock()
	s.user = user
	s.mu.Unlock()

	histories, err := s.client.ListChatHistories(ctx, user.ID)
	if err != nil {
		s.logger.Warn("failed to load chat histories, starting fresh", zap.Error(err))
		s.ensureSession(ctx)
		return
	}

	sessions := make([]models.Session, 0, len(histories))
	for _, h := range histories {
		sess := sessionFromHistory(h)
		detail, err := s.client.GetChatMessages(ctx, sess.ID)
		if err != nil {
			s.logger.Warn("failed to load messages, starting fresh",
				zap.String("session_id", sess.ID), zap.Error(err))
			s.ensureSession(ctx)
			return
		}
		for _, m := range detail.Messages {
			sess.Messages = append(sess.Messages, messageFromWire(m))
		}
		sessions = append(sessions, sess)
	}

	s.mu.Lock()
	s.sessions = sessions
	s.localIDs = make(map[string]bool)
	if len(sessions) > 0 {
		s.currentID = sessions[0].ID
		s.messages = append([]models.Message(nil), sessions[0].Messages...)
		s.mu.Unlock()
		return
	}
	s.currentID = ""
	s.messages = nil
	s.mu.Unlock()

	// A user with no history still gets an active session.
	s.ensureSession(ctx)
}

// CreateSession asks the backend for a new session and, on success, prepends
// it and makes it current. On failure the collection is left unchanged and
// the error is returned for a user-visible notification; there is no
// optimistic creation.
func (s *Store) CreateSession(ctx context.Context, title string) error {
	s.mu.RLock()
	userID := s.user.ID
	if title == "" {
		title = fmt.Sprintf("Chat %d", len(s.sessions)+1)
	}
	s.mu.RUnlock()

	h, err := s.client.CreateChatHistory(ctx, userID, title)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.prependLocked(sessionFromHistory(*h))
	return nil
}

// SelectSession makes the matching session current and mirrors its messages.
// Unknown ids are a no-op.
func (s *Store) SelectSession(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sess := range s.sessions {
		if sess.ID == id {
			s.currentID = id
			s.messages = append([]models.Message(nil), sess.Messages...)
			return
		}
	}
}

// DeleteSession removes a session, backend first. On backend failure nothing
// changes locally and the error is returned for notification. When the
// current session is deleted, the most recent remaining one is selected, or
// a fresh session is created so the UI keeps an active session.
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	s.mu.RLock()
	idx := s.indexOfLocked(id)
	isLocal := s.localIDs[id]
	s.mu.RUnlock()
	if idx < 0 {
		return nil
	}

	// Local-only sessions have no backend record to delete.
	if !isLocal {
		if err := s.client.DeleteChatHistory(ctx, id); err != nil {
			return err
		}
	}

	s.mu.Lock()
	idx = s.indexOfLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return nil
	}
	s.sessions = append(s.sessions[:idx], s.sessions[idx+1:]...)
	delete(s.localIDs, id)
	wasCurrent := s.currentID == id
	if wasCurrent {
		s.currentID = ""
		s.messages = nil
		if len(s.sessions) > 0 {
			s.currentID = s.sessions[0].ID
			s.messages = append([]models.Message(nil), s.sessions[0].Messages...)
			wasCurrent = false
		}
	}
	s.mu.Unlock()

	if wasCurrent {
		s.ensureSession(ctx)
	}
	return nil
}

// BeginExchange is the synchronous half of sending a message: it validates
// the input, appends the user message locally and raises the loading flag.
// Empty input, no current session, or an exchange already in flight are
// silent no-ops, matching the disabled submit control.
func (s *Store) BeginExchange(text string) (Exchange, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(text) == "" || s.currentID == "" || s.loading {
		return Exchange{}, false
	}

	msg := models.Message{
		ID:        uuid.New().String(),
		Text:      text,
		Sender:    models.SenderUser,
		Timestamp: time.Now(),
	}
	s.appendLocked(s.currentID, msg)
	s.loading = true
	return Exchange{SessionID: s.currentID, UserMsg: msg}, true
}

// FinishExchange persists the user message, produces the reply, appends and
// persists it. Any failure is returned for a single user-visible
// notification; persistence failures for the user message and the reply are
// not distinguished. The loading flag is cleared on every terminal path.
func (s *Store) FinishExchange(ctx context.Context, ex Exchange) error {
	defer func() {
		s.mu.Lock()
		s.loading = false
		s.mu.Unlock()
	}()

	s.mu.RLock()
	isLocal := s.localIDs[ex.SessionID]
	s.mu.RUnlock()

	if !isLocal {
		if _, err := s.client.AddMessage(ctx, ex.SessionID, ex.UserMsg.Sender.Role(), ex.UserMsg.Text); err != nil {
			s.mu.Lock()
			if s.rollbackOnFailure {
				s.removeLocked(ex.SessionID, ex.UserMsg.ID)
			}
			s.mu.Unlock()
			return fmt.Errorf("failed to send message: %w", err)
		}
	}

	s.mu.RLock()
	history := s.historyLocked(ex.SessionID)
	s.mu.RUnlock()

	reply, err := s.responder.Reply(ctx, history)
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}

	botMsg := models.Message{
		ID:        uuid.New().String(),
		Text:      reply,
		Sender:    models.SenderBot,
		Timestamp: time.Now(),
	}
	s.mu.Lock()
	s.appendLocked(ex.SessionID, botMsg)
	s.mu.Unlock()

	if !isLocal {
		if _, err := s.client.AddMessage(ctx, ex.SessionID, botMsg.Sender.Role(), botMsg.Text); err != nil {
			return fmt.Errorf("failed to send message: %w", err)
		}
	}
	return nil
}

// AttachFiles records each file name as an attachment chip and synthesizes a
// user-sender message embedding the name. File contents are never read or
// transmitted, and the synthesized messages are not persisted to the backend.
func (s *Store) AttachFiles(names []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, name := range names {
		s.attachments = append(s.attachments, name)
		if s.currentID == "" {
			continue
		}
		s.appendLocked(s.currentID, models.Message{
			ID:        uuid.New().String(),
			Text:      "📎 Document uploaded: " + name,
			Sender:    models.SenderUser,
			Timestamp: time.Now(),
		})
	}
}

// RemoveAttachment deletes a chip from the display list. The message it
// generated stays in the transcript.
func (s *Store) RemoveAttachment(i int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < 0 || i >= len(s.attachments) {
		return
	}
	s.attachments = append(s.attachments[:i], s.attachments[i+1:]...)
}

// User returns the logged-in user.
func (s *Store) User() models.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

// Sessions returns a snapshot of the session collection, most recent first.
func (s *Store) Sessions() []models.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Session(nil), s.sessions...)
}

// CurrentID returns the id of the current session, or "" when none exists.
func (s *Store) CurrentID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentID
}

// Messages returns a snapshot of the current session's messages.
func (s *Store) Messages() []models.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Message(nil), s.messages...)
}

// Loading reports whether an exchange is in flight.
func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// Attachments returns a snapshot of the attachment chips.
func (s *Store) Attachments() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.attachments...)
}

// IsLocal reports whether a session exists only client-side.
func (s *Store) IsLocal(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.localIDs[id]
}

// ensureSession guarantees an active session: backend create first, local
// session as the last resort when the backend is unreachable. Recovery path,
// so failures are logged rather than notified.
func (s *Store) ensureSession(ctx context.Context) {
	s.mu.RLock()
	userID := s.user.ID
	title := fmt.Sprintf("Chat %d", len(s.sessions)+1)
	s.mu.RUnlock()

	if h, err := s.client.CreateChatHistory(ctx, userID, title); err == nil {
		s.mu.Lock()
		s.prependLocked(sessionFromHistory(*h))
		s.mu.Unlock()
		return
	} else {
		s.logger.Warn("backend session create failed, using local session", zap.Error(err))
	}

	sess := models.Session{
		ID:        strconv.FormatInt(time.Now().UnixMilli(), 10),
		Title:     title,
		CreatedAt: time.Now(),
	}
	s.mu.Lock()
	s.localIDs[sess.ID] = true
	s.prependLocked(sess)
	s.mu.Unlock()
}

// prependLocked inserts a session at the front and makes it current.
func (s *Store) prependLocked(sess models.Session) {
	s.sessions = append([]models.Session{sess}, s.sessions...)
	s.currentID = sess.ID
	s.messages = append([]models.Message(nil), sess.Messages...)
}

// appendLocked adds a message to a session and, when that session is
// current, to the active mirror.
func (s *Store) appendLocked(sessionID string, msg models.Message) {
	for i := range s.sessions {
		if s.sessions[i].ID == sessionID {
			s.sessions[i].Messages = append(s.sessions[i].Messages, msg)
			s.sessions[i].MessageCount++
			break
		}
	}
	if sessionID == s.currentID {
		s.messages = append(s.messages, msg)
	}
}

func (s *Store) removeLocked(sessionID, msgID string) {
	for i := range s.sessions {
		if s.sessions[i].ID != sessionID {
			continue
		}
		msgs := s.sessions[i].Messages
		for j := range msgs {
			if msgs[j].ID == msgID {
				s.sessions[i].Messages = append(msgs[:j], msgs[j+1:]...)
				s.sessions[i].MessageCount--
				break
			}
		}
		break
	}
	if sessionID == s.currentID {
		for j := range s.messages {
			if s.messages[j].ID == msgID {
				s.messages = append(s.messages[:j], s.messages[j+1:]...)
				break
			}
		}
	}
}

func (s *Store) historyLocked(sessionID string) []models.Message {
	for i := range s.sessions {
		if s.sessions[i].ID == sessionID {
			return append([]models.Message(nil), s.sessions[i].Messages...)
		}
	}
	return nil
}

func (s *Store) indexOfLocked(id string) int {
	for i := range s.sessions {
		if s.sessions[i].ID == id {
			return i
		}
	}
	return -1
}

func sessionFromHistory(h api.ChatHistory) models.Session {
	return models.Session{
		ID:           strconv.Itoa(h.ID),
		Title:        h.Title,
		CreatedAt:    parseTime(h.CreatedAt),
		MessageCount: h.MessageCount,
	}
}

func messageFromWire(m api.ChatMessage) models.Message {
	return models.Message{
		ID:        strconv.Itoa(m.ID),
		Text:      m.Content,
		Sender:    models.SenderFromRole(m.Role),
		Timestamp: parseTime(m.CreatedAt),
	}
}

// parseTime accepts RFC3339 and the timezone-less variant some backends
// emit. A zero time is fine for display; ordering follows creation order.
func parseTime(s string) time.Time {
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02T15:04:05.999999"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

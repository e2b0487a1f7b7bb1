package store

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"supportchat/internal/api"
	"supportchat/internal/bot"
	"supportchat/pkg/models"
)

type stubResponder struct {
	reply string
	err   error
}

func (s stubResponder) Reply(ctx context.Context, history []models.Message) (string, error) {
	return s.reply, s.err
}

// fakeBackend implements the support backend's REST contract in memory.
type fakeBackend struct {
	mu        sync.Mutex
	nextID    int
	nextMsgID int
	histories []api.ChatHistory
	messages  map[int][]api.ChatMessage

	failList   bool
	failCreate bool
	failDelete bool
	failAdd    bool

	listCalls int
	addCalls  int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		nextID:    1,
		nextMsgID: 1,
		messages:  make(map[int][]api.ChatMessage),
	}
}

func (f *fakeBackend) seedHistory(title string, msgs ...api.ChatMessage) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	h := api.ChatHistory{
		ID:           f.nextID,
		UserID:       1,
		Title:        title,
		CreatedAt:    time.Now().UTC().Format(time.RFC3339),
		MessageCount: len(msgs),
	}
	f.nextID++
	f.histories = append([]api.ChatHistory{h}, f.histories...)
	f.messages[h.ID] = msgs
	return h.ID
}

func (f *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	switch {
	case r.Method == http.MethodPost && len(parts) == 1 && parts[0] == "chat-histories":
		if f.failCreate {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		var req struct {
			UserID int    `json:"user_id"`
			Title  string `json:"title"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		h := api.ChatHistory{
			ID:        f.nextID,
			UserID:    req.UserID,
			Title:     req.Title,
			CreatedAt: time.Now().UTC().Format(time.RFC3339),
		}
		f.nextID++
		f.histories = append([]api.ChatHistory{h}, f.histories...)
		f.messages[h.ID] = nil
		_ = json.NewEncoder(w).Encode(h)

	case r.Method == http.MethodGet && len(parts) == 2 && parts[0] == "chat-histories":
		f.listCalls++
		if f.failList {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(f.histories)

	case r.Method == http.MethodDelete && len(parts) == 2 && parts[0] == "chat-histories":
		if f.failDelete {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		id, _ := strconv.Atoi(parts[1])
		for i, h := range f.histories {
			if h.ID == id {
				f.histories = append(f.histories[:i], f.histories[i+1:]...)
				break
			}
		}
		w.WriteHeader(http.StatusNoContent)

	case r.Method == http.MethodGet && len(parts) == 3 && parts[2] == "messages":
		id, _ := strconv.Atoi(parts[1])
		_ = json.NewEncoder(w).Encode(api.ChatDetail{ID: id, Messages: f.messages[id]})

	case r.Method == http.MethodPost && len(parts) == 3 && parts[2] == "messages":
		f.addCalls++
		if f.failAdd {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		id, _ := strconv.Atoi(parts[1])
		var req struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		m := api.ChatMessage{
			ID:            f.nextMsgID,
			ChatHistoryID: id,
			Role:          req.Role,
			Content:       req.Content,
			CreatedAt:     time.Now().UTC().Format(time.RFC3339),
		}
		f.nextMsgID++
		f.messages[id] = append(f.messages[id], m)
		_ = json.NewEncoder(w).Encode(m)

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func newTestStore(t *testing.T, f *fakeBackend, r bot.Responder) *Store {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	client := api.NewClient(srv.URL, 2*time.Second, zap.NewNop())
	if r == nil {
		r = stubResponder{reply: "ack"}
	}
	return New(client, r, zap.NewNop())
}

func TestCreateSessionPrependsAndSelects(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t, newFakeBackend(), nil)

	require.NoError(t, st.CreateSession(ctx, ""))
	first := st.CurrentID()
	require.NoError(t, st.CreateSession(ctx, ""))

	sessions := st.Sessions()
	require.Len(t, sessions, 2)
	assert.Equal(t, sessions[0].ID, st.CurrentID(), "new session should be current")
	assert.NotEqual(t, first, st.CurrentID())
	assert.Equal(t, "Chat 2", sessions[0].Title)
	assert.Empty(t, st.Messages(), "new session starts with an empty message list")
}

func TestCreateSessionFailureLeavesCollectionUnchanged(t *testing.T) {
	ctx := context.Background()
	f := newFakeBackend()
	st := newTestStore(t, f, nil)
	require.NoError(t, st.CreateSession(ctx, ""))

	f.failCreate = true
	err := st.CreateSession(ctx, "")
	require.Error(t, err)
	assert.Len(t, st.Sessions(), 1, "no optimistic creation")
}

func TestSelectSession(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t, newFakeBackend(), nil)
	require.NoError(t, st.CreateSession(ctx, ""))
	older := st.CurrentID()
	require.NoError(t, st.CreateSession(ctx, ""))

	st.SelectSession("no-such-id")
	assert.Equal(t, st.Sessions()[0].ID, st.CurrentID(), "unknown id is a no-op")

	st.SelectSession(older)
	assert.Equal(t, older, st.CurrentID())
}

func TestDeleteCurrentSelectsMostRecentRemaining(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t, newFakeBackend(), nil)
	for i := 0; i < 3; i++ {
		require.NoError(t, st.CreateSession(ctx, ""))
	}

	require.NoError(t, st.DeleteSession(ctx, st.CurrentID()))

	sessions := st.Sessions()
	require.Len(t, sessions, 2)
	assert.Equal(t, sessions[0].ID, st.CurrentID(), "new current is the session now at index 0")
}

func TestDeleteLastSessionCreatesFreshOne(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t, newFakeBackend(), nil)
	require.NoError(t, st.CreateSession(ctx, ""))
	old := st.CurrentID()

	require.NoError(t, st.DeleteSession(ctx, old))

	sessions := st.Sessions()
	require.Len(t, sessions, 1, "UI is never left with zero sessions")
	assert.NotEqual(t, old, st.CurrentID())
	assert.Equal(t, sessions[0].ID, st.CurrentID())
	assert.Empty(t, st.Messages())
}

func TestDeleteFailureMakesNoLocalChange(t *testing.T) {
	ctx := context.Background()
	f := newFakeBackend()
	st := newTestStore(t, f, nil)
	require.NoError(t, st.CreateSession(ctx, ""))

	f.failDelete = true
	err := st.DeleteSession(ctx, st.CurrentID())
	require.Error(t, err)
	assert.Len(t, st.Sessions(), 1, "session is not removed when the server rejected the delete")
}

func TestDeleteUnknownSessionIsNoOp(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t, newFakeBackend(), nil)
	require.NoError(t, st.CreateSession(ctx, ""))

	require.NoError(t, st.DeleteSession(ctx, "999"))
	assert.Len(t, st.Sessions(), 1)
}

func TestBeginExchangePreconditions(t *testing.T) {
	ctx := context.Background()
	f := newFakeBackend()
	st := newTestStore(t, f, nil)

	// No current session yet.
	_, ok := st.BeginExchange("hello")
	assert.False(t, ok)

	require.NoError(t, st.CreateSession(ctx, ""))

	// Blank after trimming.
	_, ok = st.BeginExchange("   ")
	assert.False(t, ok)

	assert.Empty(t, st.Messages(), "no message appended")
	assert.Zero(t, f.addCalls, "no backend call made")
}

func TestBeginExchangeIgnoredWhileLoading(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t, newFakeBackend(), nil)
	require.NoError(t, st.CreateSession(ctx, ""))

	_, ok := st.BeginExchange("first")
	require.True(t, ok)
	_, ok = st.BeginExchange("second")
	assert.False(t, ok, "submit is disabled while an exchange is in flight")
	assert.Len(t, st.Messages(), 1)
}

func TestExchangeFlow(t *testing.T) {
	ctx := context.Background()
	f := newFakeBackend()
	st := newTestStore(t, f, nil)
	require.NoError(t, st.CreateSession(ctx, ""))

	ex, ok := st.BeginExchange("hello")
	require.True(t, ok)

	msgs := st.Messages()
	require.Len(t, msgs, 1, "user message appears immediately")
	assert.Equal(t, models.SenderUser, msgs[0].Sender)
	assert.Equal(t, "hello", msgs[0].Text)
	assert.True(t, st.Loading(), "loading is up between send and reply")

	require.NoError(t, st.FinishExchange(ctx, ex))

	msgs = st.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, models.SenderBot, msgs[1].Sender)
	assert.Equal(t, "ack", msgs[1].Text)
	assert.False(t, st.Loading())
	assert.Equal(t, 2, f.addCalls, "both sides of the exchange persisted")
	assert.False(t, msgs[1].Timestamp.Before(msgs[0].Timestamp), "timestamps follow creation order")
}

func TestExchangePersistFailureKeepsUserMessage(t *testing.T) {
	ctx := context.Background()
	f := newFakeBackend()
	st := newTestStore(t, f, nil)
	require.NoError(t, st.CreateSession(ctx, ""))

	f.failAdd = true
	ex, ok := st.BeginExchange("hello")
	require.True(t, ok)
	err := st.FinishExchange(ctx, ex)
	require.Error(t, err)

	msgs := st.Messages()
	require.Len(t, msgs, 1, "optimistic append is not rolled back")
	assert.Equal(t, models.SenderUser, msgs[0].Sender)
	assert.False(t, st.Loading(), "loading cleared on the failure path")
}

func TestExchangePersistFailureWithRollback(t *testing.T) {
	ctx := context.Background()
	f := newFakeBackend()
	st := newTestStore(t, f, nil)
	st.SetRollbackOnFailure(true)
	require.NoError(t, st.CreateSession(ctx, ""))

	f.failAdd = true
	ex, ok := st.BeginExchange("hello")
	require.True(t, ok)
	require.Error(t, st.FinishExchange(ctx, ex))

	assert.Empty(t, st.Messages(), "rollback policy removes the unpersisted message")
	assert.False(t, st.Loading())
}

func TestExchangeResponderFailure(t *testing.T) {
	ctx := context.Background()
	f := newFakeBackend()
	st := newTestStore(t, f, stubResponder{err: context.DeadlineExceeded})
	require.NoError(t, st.CreateSession(ctx, ""))

	ex, ok := st.BeginExchange("hello")
	require.True(t, ok)
	require.Error(t, st.FinishExchange(ctx, ex))

	msgs := st.Messages()
	require.Len(t, msgs, 1, "no bot message on reply failure")
	assert.False(t, st.Loading())
}

func TestExchangeBindsToOriginSession(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t, newFakeBackend(), nil)
	require.NoError(t, st.CreateSession(ctx, ""))
	origin := st.CurrentID()

	ex, ok := st.BeginExchange("hello")
	require.True(t, ok)

	require.NoError(t, st.CreateSession(ctx, ""))
	require.NoError(t, st.FinishExchange(ctx, ex))

	assert.Empty(t, st.Messages(), "reply lands in the origin session, not the new current one")
	for _, sess := range st.Sessions() {
		if sess.ID == origin {
			require.Len(t, sess.Messages, 2)
			assert.Equal(t, models.SenderBot, sess.Messages[1].Sender)
			return
		}
	}
	t.Fatalf("origin session %s not found", origin)
}

func TestLoadSessionsMapsRoles(t *testing.T) {
	ctx := context.Background()
	f := newFakeBackend()
	f.seedHistory("Chat 1",
		api.ChatMessage{ID: 1, Role: "user", Content: "hi", CreatedAt: "2024-05-01T10:00:00"},
		api.ChatMessage{ID: 2, Role: "assistant", Content: "hello", CreatedAt: "2024-05-01T10:00:01"},
		api.ChatMessage{ID: 3, Role: "system", Content: "note", CreatedAt: "2024-05-01T10:00:02"},
	)
	st := newTestStore(t, f, nil)

	st.LoadSessions(ctx, models.User{ID: 1, Name: "Ada"})

	msgs := st.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, models.SenderUser, msgs[0].Sender)
	assert.Equal(t, models.SenderBot, msgs[1].Sender)
	assert.Equal(t, models.SenderUser, msgs[2].Sender, "unknown roles render as the user")
}

func TestLoadSessionsSelectsMostRecent(t *testing.T) {
	ctx := context.Background()
	f := newFakeBackend()
	f.seedHistory("older")
	f.seedHistory("newer")
	st := newTestStore(t, f, nil)

	st.LoadSessions(ctx, models.User{ID: 1})

	sessions := st.Sessions()
	require.Len(t, sessions, 2)
	assert.Equal(t, "newer", sessions[0].Title, "server order is preserved")
	assert.Equal(t, sessions[0].ID, st.CurrentID())
}

func TestLoadSessionsFailureFallsBackToFreshSession(t *testing.T) {
	ctx := context.Background()
	f := newFakeBackend()
	f.failList = true
	st := newTestStore(t, f, nil)

	st.LoadSessions(ctx, models.User{ID: 1})

	sessions := st.Sessions()
	require.Len(t, sessions, 1, "exactly one fresh session")
	assert.Equal(t, sessions[0].ID, st.CurrentID())
	assert.Empty(t, st.Messages())
	assert.False(t, st.IsLocal(sessions[0].ID), "backend create still worked")
}

func TestLoadSessionsTotalOutageUsesLocalSession(t *testing.T) {
	ctx := context.Background()
	f := newFakeBackend()
	f.failList = true
	f.failCreate = true
	st := newTestStore(t, f, nil)

	st.LoadSessions(ctx, models.User{ID: 1})

	sessions := st.Sessions()
	require.Len(t, sessions, 1)
	assert.True(t, st.IsLocal(sessions[0].ID))
	_, err := strconv.ParseInt(sessions[0].ID, 10, 64)
	assert.NoError(t, err, "local ids are timestamp-derived tokens")

	// Exchanges still work, skipping persistence entirely.
	before := f.addCalls
	ex, ok := st.BeginExchange("hello")
	require.True(t, ok)
	require.NoError(t, st.FinishExchange(ctx, ex))
	assert.Len(t, st.Messages(), 2)
	assert.Equal(t, before, f.addCalls, "no persistence attempts for local sessions")
}

func TestLoadSessionsEmptyHistoryCreatesSession(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t, newFakeBackend(), nil)

	st.LoadSessions(ctx, models.User{ID: 1})

	sessions := st.Sessions()
	require.Len(t, sessions, 1, "a user with no history still gets an active session")
	assert.Equal(t, sessions[0].ID, st.CurrentID())
}

func TestAttachFiles(t *testing.T) {
	ctx := context.Background()
	f := newFakeBackend()
	st := newTestStore(t, f, nil)
	require.NoError(t, st.CreateSession(ctx, ""))

	st.AttachFiles([]string{"invoice.pdf", "photo.png"})

	assert.Equal(t, []string{"invoice.pdf", "photo.png"}, st.Attachments())
	msgs := st.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "📎 Document uploaded: invoice.pdf", msgs[0].Text)
	assert.Equal(t, models.SenderUser, msgs[0].Sender)
	assert.Zero(t, f.addCalls, "attachment messages are never persisted")
}

func TestRemoveAttachmentKeepsMessage(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t, newFakeBackend(), nil)
	require.NoError(t, st.CreateSession(ctx, ""))
	st.AttachFiles([]string{"a.txt", "b.txt"})

	st.RemoveAttachment(0)
	assert.Equal(t, []string{"b.txt"}, st.Attachments())
	assert.Len(t, st.Messages(), 2, "the pseudo-message is not retracted")

	st.RemoveAttachment(5) // out of range: no-op
	assert.Equal(t, []string{"b.txt"}, st.Attachments())
}

func TestParseTime(t *testing.T) {
	cases := []string{
		"2024-05-01T10:00:00Z",
		"2024-05-01T10:00:00",
		"2024-05-01T10:00:00.123456",
	}
	for _, c := range cases {
		if parseTime(c).IsZero() {
			t.Errorf("parseTime(%q) returned zero time", c)
		}
	}
	if !parseTime("garbage").IsZero() {
		t.Error("unparseable timestamps should yield zero time")
	}
}

package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/psds-microservice/voice-support/internal/errs"
	"github.com/psds-microservice/voice-support/internal/model"
	"github.com/psds-microservice/voice-support/internal/notify"
	"github.com/psds-microservice/voice-support/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() { gin.SetMode(gin.TestMode) }

func TestStatusFor(t *testing.T) {
	cases := map[error]int{
		errs.ErrEmptyText:                                  http.StatusBadRequest,
		errs.ErrInvalidSender:                              http.StatusBadRequest,
		errs.ErrUnauthorized:                               http.StatusUnauthorized,
		errs.ErrTicketNotFound:                             http.StatusNotFound,
		fmt.Errorf("x: %w", errs.ErrInvalidTransition):     http.StatusConflict,
		errs.ErrIdempotencyInFlight:                        http.StatusConflict,
		errs.ErrIdempotencyKeyReused:                       http.StatusUnprocessableEntity,
		fmt.Errorf("%w: db down", errs.ErrEscalationFailed): http.StatusServiceUnavailable,
		errs.ErrEmbeddingUnavailable:                       http.StatusServiceUnavailable,
		errors.New("boom"):                                 http.StatusInternalServerError,
	}
	for err, want := range cases {
		assert.Equal(t, want, statusFor(err), err.Error())
	}
}

type fakeAsker struct {
	got service.AskRequest
	d   *service.Decision
	err error
}

func (f *fakeAsker) Ask(_ context.Context, req service.AskRequest) (*service.Decision, error) {
	f.got = req
	return f.d, f.err
}

func serveVoice(a Asker, body, key string) *httptest.ResponseRecorder {
	r := gin.New()
	r.POST("/voice", NewVoiceHandler(a).Ask)
	req := httptest.NewRequest(http.MethodPost, "/voice", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set("Idempotency-Key", key)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestVoiceAnswered(t *testing.T) {
	a := &fakeAsker{d: &service.Decision{Matched: true, Answer: "Use the link.", Message: "Use the link.", Score: 0.9, FAQID: 4}}
	w := serveVoice(a, `{"text":"reset password","user_id":"u-1"}`, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true,"message":"Use the link.","faq_matched":true,"faq_id":4,"confidence":0.9}`, w.Body.String())
	assert.Equal(t, "u-1", a.got.UserID)
}

func TestVoiceEscalated(t *testing.T) {
	a := &fakeAsker{d: &service.Decision{
		TicketCreated: true, Ticket: &model.Ticket{ID: 8}, TicketURL: "/ticket/8", Message: service.EscalatedReply,
	}}
	w := serveVoice(a, `{"text":"help"}`, "k-1")
	require.Equal(t, http.StatusOK, w.Code)
	var resp voiceResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.TicketCreated)
	assert.Equal(t, uint64(8), resp.TicketID)
	assert.Equal(t, "/ticket/8", resp.TicketURL)
	assert.Equal(t, "k-1", a.got.IdempotencyKey)
}

func TestVoiceErrors(t *testing.T) {
	w := serveVoice(&fakeAsker{err: errs.ErrEmptyText}, `{"text":""}`, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"text is required"}`, w.Body.String())

	w = serveVoice(&fakeAsker{err: fmt.Errorf("%w: pq: connection refused", errs.ErrEscalationFailed)}, `{"text":"x"}`, "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.NotContains(t, w.Body.String(), "pq:")

	w = serveVoice(&fakeAsker{}, `not json`, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func readFrame(t *testing.T, conn *websocket.Conn) streamFrame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var f streamFrame
	require.NoError(t, conn.ReadJSON(&f))
	return f
}

func TestStream(t *testing.T) {
	hub := notify.NewHub(notify.Policy{}, 50, nil, nil)
	r := gin.New()
	r.GET("/stream", NewStreamHandler(hub, nil).Serve)
	srv := httptest.NewServer(r)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/stream", nil)
	require.NoError(t, err)
	defer conn.Close()

	state := readFrame(t, conn)
	assert.Equal(t, "state", state.Kind)
	assert.True(t, state.Sound)
	require.Eventually(t, func() bool { return hub.Sessions() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, hub.Handle(context.Background(),
		notify.MessageInserted(&model.Message{TicketID: 2, Sender: model.SenderUser, Content: "hello?"})))
	f := readFrame(t, conn)
	require.Equal(t, "notification", f.Kind)
	require.NotNil(t, f.Notification)
	assert.Equal(t, notify.TypeNewMessage, f.Notification.Type)
	assert.Equal(t, 1, f.Unread)

	require.NoError(t, conn.WriteJSON(streamAction{Action: ActionMarkRead, ID: f.Notification.ID}))
	f = readFrame(t, conn)
	assert.Equal(t, 0, f.Unread)
	assert.Empty(t, f.Error)

	require.NoError(t, conn.WriteJSON(streamAction{Action: ActionToggleSound}))
	f = readFrame(t, conn)
	assert.False(t, f.Sound)

	require.NoError(t, conn.WriteJSON(streamAction{Action: "explode"}))
	f = readFrame(t, conn)
	assert.Equal(t, "unknown action", f.Error)

	require.NoError(t, conn.WriteJSON(streamAction{Action: ActionClear}))
	f = readFrame(t, conn)
	assert.Empty(t, f.Items)

	_ = conn.Close()
	require.Eventually(t, func() bool { return hub.Sessions() == 0 }, time.Second, 5*time.Millisecond)
}

package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/psds-microservice/voice-support/internal/notify"
	"go.uber.org/zap"
)

const (
	streamWriteWait  = 10 * time.Second
	streamPongWait   = 60 * time.Second
	streamPingPeriod = (streamPongWait * 9) / 10
	streamReadLimit  = 4096
)

// Действия клиента над своим логом уведомлений.
const (
	ActionMarkRead    = "mark_read"
	ActionMarkAllRead = "mark_all_read"
	ActionClear       = "clear"
	ActionToggleSound = "toggle_sound"
	ActionList        = "list"
)

type streamAction struct {
	Action string `json:"action"`
	ID     string `json:"id,omitempty"`
}

type streamFrame struct {
	Kind         string                `json:"kind"`
	Notification *notify.Notification  `json:"notification,omitempty"`
	Items        []notify.Notification `json:"items,omitempty"`
	Unread       int                   `json:"unread"`
	Sound        bool                  `json:"sound"`
	Error        string                `json:"error,omitempty"`
}

// StreamHandler: websocket-поток уведомлений для админской панели.
type StreamHandler struct {
	hub      *notify.Hub
	upgrader websocket.Upgrader
	log      *zap.Logger
}

func NewStreamHandler(hub *notify.Hub, log *zap.Logger) *StreamHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &StreamHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
		log: log,
	}
}

func (h *StreamHandler) Serve(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Debug("stream: upgrade failed", zap.Error(err))
		return
	}
	s := h.hub.Open()
	replies := make(chan streamFrame, 8)
	done := make(chan struct{})
	go h.writeLoop(conn, s, replies, done)

	h.reply(replies, done, stateFrame(s))
	h.readLoop(conn, s, replies, done)

	h.hub.Close(s)
	<-done
	_ = conn.Close()
}

func (h *StreamHandler) readLoop(conn *websocket.Conn, s *notify.Session, replies chan<- streamFrame, done <-chan struct{}) {
	conn.SetReadLimit(streamReadLimit)
	_ = conn.SetReadDeadline(time.Now().Add(streamPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(streamPongWait))
	})
	for {
		var a streamAction
		if err := conn.ReadJSON(&a); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debug("stream: read", zap.String("session", s.ID), zap.Error(err))
			}
			return
		}
		var errText string
		switch a.Action {
		case ActionMarkRead:
			if !s.Log.MarkRead(a.ID) {
				errText = "notification not found"
			}
		case ActionMarkAllRead:
			s.Log.MarkAllRead()
		case ActionClear:
			s.Log.Clear()
		case ActionToggleSound:
			s.ToggleSound()
		case ActionList:
		default:
			errText = "unknown action"
		}
		f := stateFrame(s)
		f.Error = errText
		if !h.reply(replies, done, f) {
			return
		}
	}
}

func (h *StreamHandler) reply(replies chan<- streamFrame, done <-chan struct{}, f streamFrame) bool {
	select {
	case replies <- f:
		return true
	case <-done:
		return false
	}
}

func (h *StreamHandler) writeLoop(conn *websocket.Conn, s *notify.Session, replies <-chan streamFrame, done chan<- struct{}) {
	ticker := time.NewTicker(streamPingPeriod)
	defer func() {
		ticker.Stop()
		close(done)
	}()
	write := func(v interface{}) bool {
		_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
		if err := conn.WriteJSON(v); err != nil {
			h.log.Debug("stream: write", zap.String("session", s.ID), zap.Error(err))
			_ = conn.Close()
			return false
		}
		return true
	}
	for {
		select {
		case n, ok := <-s.Out():
			if !ok {
				_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if !write(streamFrame{Kind: "notification", Notification: &n, Unread: s.Log.Unread(), Sound: s.SoundEnabled()}) {
				return
			}
		case f := <-replies:
			if !write(f) {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = conn.Close()
				return
			}
		}
	}
}

func stateFrame(s *notify.Session) streamFrame {
	return streamFrame{
		Kind:   "state",
		Items:  s.Log.Items(),
		Unread: s.Log.Unread(),
		Sound:  s.SoundEnabled(),
	}
}

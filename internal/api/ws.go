package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"tiny-explorers/internal/cues"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// 前端与 API 同源部署；开发时由 Vite 代理
	CheckOrigin: func(r *http.Request) bool { return true },
}

const (
	writeWait   = 10 * time.Second
	pongWait    = 60 * time.Second
	pingPeriod  = pongWait * 9 / 10
	maxMessage  = 4096
	actionLimit = 5 * time.Second
)

// 文档注释：会话 websocket
// 背景：服务端推送状态变化（state）、语音与音效提示（cue）、点击结果（click）与错误（error）；
// 客户端可发送与 HTTP 相同的 Action（另支持 {"type":"music"}）。
// 约束：单写协程；读协程只把回复交给写协程。会话关闭时推送通道关闭，连接随之结束。
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("ws_upgrade_error", "session", sess.ID, "err", err)
		return
	}
	events, cancelEvents := sess.Subscribe()
	var cueCh <-chan cues.Cue
	cancelCues := func() {}
	if s.deps.Cues != nil {
		cueCh, cancelCues = s.deps.Cues.Subscribe(sess.ID)
	}
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		cancelEvents()
		cancelCues()
		_ = conn.Close()
		s.log.Debug("ws_closed", "session", sess.ID)
	}()
	s.log.Debug("ws_open", "session", sess.ID)

	replies := make(chan Event, 8)
	done := make(chan struct{})
	go s.wsRead(conn, sess, replies, done)

	write := func(ev Event) bool {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteJSON(ev) == nil
	}
	if snap, err := sess.Snapshot(r.Context()); err == nil {
		if !write(Event{Type: "state", State: &snap}) {
			return
		}
	}
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "session closed"), time.Now().Add(writeWait))
				return
			}
			if !write(ev) {
				return
			}
		case c, ok := <-cueCh:
			if !ok {
				cueCh = nil
				continue
			}
			if !write(Event{Type: "cue", Cue: &c}) {
				return
			}
		case ev := <-replies:
			if !write(ev) {
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

func (s *Server) wsRead(conn *websocket.Conn, sess *Session, replies chan<- Event, done chan<- struct{}) {
	defer close(done)
	conn.SetReadLimit(maxMessage)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error { return conn.SetReadDeadline(time.Now().Add(pongWait)) })
	reply := func(ev Event) {
		select {
		case replies <- ev:
		default:
		}
	}
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Debug("ws_read_error", "session", sess.ID, "err", err)
			}
			return
		}
		var a Action
		if err := json.Unmarshal(msg, &a); err != nil {
			reply(Event{Type: "error", Error: "invalid json message"})
			continue
		}
		if a.Type == "music" {
			if s.deps.Cues != nil {
				sess.touch()
				s.deps.Cues.ToggleMusic(sess.ID)
			}
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), actionLimit)
		res, err := sess.Apply(ctx, a)
		cancel()
		if err != nil {
			reply(Event{Type: "error", Error: err.Error()})
			continue
		}
		if res.Clicked != "" {
			reply(Event{Type: "click", Clicked: res.Clicked})
		}
	}
}

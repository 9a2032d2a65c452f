// 包 api：游戏会话 HTTP / websocket 接口。路由集中在此注册，主入口只负责挂载到 API 前缀
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"tiny-explorers/internal/cues"
	"tiny-explorers/internal/engine"
	"tiny-explorers/internal/eventloop"
	"tiny-explorers/internal/facts"
	"tiny-explorers/internal/game"
	"tiny-explorers/internal/geodata"
	"tiny-explorers/internal/locate"
	"tiny-explorers/internal/logger"
	"tiny-explorers/internal/metrics"
	"tiny-explorers/internal/middleware"
	"tiny-explorers/internal/render"
	"tiny-explorers/internal/store"
)

// RoundStore：可选的回合日志
type RoundStore interface {
	RecordRound(ctx context.Context, r store.Round) error
	GetTotals(ctx context.Context) (*store.Totals, error)
	SessionRounds(ctx context.Context, session string, limit int) ([]store.Round, error)
}

// 默认视口尺寸（创建会话未给出尺寸时）
const (
	DefaultWidth  = 800
	DefaultHeight = 600
)

// Deps：服务依赖；Rounds 与 Regions 可为空
type Deps struct {
	Loader       engine.Loader
	Renderer     *render.Renderer
	Cues         *cues.Service
	Facts        *facts.Table
	Targets      map[geodata.Region][]string
	Rounds       RoundStore
	Regions      *locate.Resolver
	Sources      func(geodata.Region) string
	Overscroll   float64
	FetchTimeout time.Duration
	SessionIdle  time.Duration
}

// 文档注释：会话服务
// 背景：会话表由读写锁保护；会话内部状态只在各自的事件循环上访问。
// 约束：超过空闲时长的会话由 Sweep 回收；回收与 DELETE 都会关闭 websocket 订阅。
type Server struct {
	deps Deps
	log  *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewServer(d Deps) *Server {
	if d.SessionIdle <= 0 {
		d.SessionIdle = 30 * time.Minute
	}
	return &Server{deps: d, log: logAPI(), sessions: map[string]*Session{}}
}

func logAPI() *slog.Logger { return logger.Component("api") }

// Routes：构建路由；路径不含 API 前缀
func (s *Server) Routes() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/regions", s.handleRegions).Methods(http.MethodGet)
	r.HandleFunc("/stats", s.handleStats).Methods(http.MethodGet)
	r.HandleFunc("/sessions", s.handleCreate).Methods(http.MethodPost)
	r.HandleFunc("/sessions/{id}", s.handleGet).Methods(http.MethodGet)
	r.HandleFunc("/sessions/{id}", s.handleDelete).Methods(http.MethodDelete)
	for _, action := range []string{"mode", "region", "resize", "zoom", "pan", "click", "reset-view", "reload"} {
		r.HandleFunc("/sessions/{id}/"+action, s.handleAction(action)).Methods(http.MethodPost)
	}
	r.HandleFunc("/sessions/{id}/music", s.handleMusic).Methods(http.MethodPost)
	r.HandleFunc("/sessions/{id}/map.svg", s.handleFrame("svg", "image/svg+xml")).Methods(http.MethodGet)
	r.HandleFunc("/sessions/{id}/map.png", s.handleFrame("png", "image/png")).Methods(http.MethodGet)
	r.HandleFunc("/sessions/{id}/rounds", s.handleRounds).Methods(http.MethodGet)
	r.HandleFunc("/sessions/{id}/ws", s.handleWS).Methods(http.MethodGet)
	return r
}

type createRequest struct {
	Region string  `json:"region"`
	Mode   string  `json:"mode"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// handleCreate：创建会话。未指定区域时按客户端 IP 推断
func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json body")
			return
		}
	}
	region := geodata.World
	if req.Region != "" {
		rg, err := geodata.ParseRegion(req.Region)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		region = rg
	} else {
		ci := middleware.FromContext(r.Context())
		region = s.deps.Regions.Region(ci.IP, ci.Country)
	}
	mode := game.Menu
	if req.Mode != "" {
		m, err := game.ParseMode(req.Mode)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		mode = m
	}
	if req.Width <= 0 || req.Height <= 0 {
		req.Width, req.Height = DefaultWidth, DefaultHeight
	}

	sess := s.open()
	res, err := sess.Apply(r.Context(), Action{Type: "resize", Width: req.Width, Height: req.Height})
	if err == nil {
		err = sess.do(r.Context(), func() {
			sess.game.SetRegion(region)
			if mode != game.Menu {
				sess.game.SetMode(mode)
			}
			res.State = sess.snapshot()
		})
	}
	if err != nil {
		s.remove(sess.ID)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.log.Info("session_created", "id", sess.ID, "region", region, "mode", mode)
	writeJSON(w, http.StatusCreated, res.State)
}

func (s *Server) open() *Session {
	id := uuid.NewString()
	var player cues.Player = silent{}
	if s.deps.Cues != nil {
		player = s.deps.Cues.For(id)
	}
	sess := newSession(id, sessionDeps{
		Loader:       s.deps.Loader,
		Renderer:     s.deps.Renderer,
		Player:       player,
		Options:      game.Options{Targets: s.deps.Targets, Facts: s.deps.Facts},
		Overscroll:   s.deps.Overscroll,
		FetchTimeout: s.deps.FetchTimeout,
		Rounds:       s.deps.Rounds,
	})
	s.mu.Lock()
	s.sessions[id] = sess
	n := len(s.sessions)
	s.mu.Unlock()
	metrics.SessionsActive.Set(float64(n))
	return sess
}

// Session：按 id 查找
func (s *Server) Session(id string) (*Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	return sess, ok
}

func (s *Server) remove(id string) bool {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	delete(s.sessions, id)
	n := len(s.sessions)
	s.mu.Unlock()
	if !ok {
		return false
	}
	sess.Close()
	if s.deps.Cues != nil {
		s.deps.Cues.Forget(id)
	}
	metrics.SessionsActive.Set(float64(n))
	return true
}

// Len：当前会话数
func (s *Server) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Sweep：回收空闲会话，返回回收数量
func (s *Server) Sweep(now time.Time) int {
	var idle []string
	s.mu.RLock()
	for id, sess := range s.sessions {
		if sess.Idle(now) > s.deps.SessionIdle {
			idle = append(idle, id)
		}
	}
	s.mu.RUnlock()
	n := 0
	for _, id := range idle {
		if s.remove(id) {
			n++
		}
	}
	if n > 0 {
		s.log.Info("session_sweep", "removed", n)
	}
	return n
}

// Run：周期回收空闲会话直到 ctx 取消，退出时关闭全部会话
func (s *Server) Run(ctx context.Context, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			s.closeAll()
			return
		case now := <-t.C:
			s.Sweep(now)
		}
	}
}

func (s *Server) closeAll() {
	s.mu.RLock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	s.mu.RUnlock()
	for _, id := range ids {
		s.remove(id)
	}
}

// lookup：解析路径中的会话；不存在时写 404
func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*Session, bool) {
	id := mux.Vars(r)["id"]
	sess, ok := s.Session(id)
	if !ok {
		writeError(w, http.StatusNotFound, "session not found")
	}
	return sess, ok
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	snap, err := sess.Snapshot(r.Context())
	if err != nil {
		writeLoopError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if !s.remove(mux.Vars(r)["id"]) {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleAction：POST /sessions/{id}/<action>，请求体为 Action 的参数部分（可为空）
func (s *Server) handleAction(kind string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := s.lookup(w, r)
		if !ok {
			return
		}
		var a Action
		if r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&a); err != nil {
				writeError(w, http.StatusBadRequest, "invalid json body")
				return
			}
		}
		a.Type = kind
		res, err := sess.Apply(r.Context(), a)
		if err != nil {
			writeLoopError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func (s *Server) handleMusic(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	if s.deps.Cues == nil {
		writeError(w, http.StatusServiceUnavailable, "cues disabled")
		return
	}
	sess.touch()
	writeJSON(w, http.StatusOK, map[string]bool{"music": s.deps.Cues.ToggleMusic(sess.ID)})
}

func (s *Server) handleFrame(format, contentType string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := s.lookup(w, r)
		if !ok {
			return
		}
		b, err := sess.Render(r.Context(), format)
		if err != nil {
			writeLoopError(w, err)
			return
		}
		w.Header().Set("content-type", contentType)
		w.Header().Set("cache-control", "no-store")
		_, _ = w.Write(b)
	}
}

func (s *Server) handleRounds(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	if s.deps.Rounds == nil {
		writeError(w, http.StatusServiceUnavailable, "round log disabled")
		return
	}
	rounds, err := s.deps.Rounds.SessionRounds(r.Context(), sess.ID, 20)
	if err != nil {
		s.log.Error("rounds_query_error", "session", sess.ID, "err", err)
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	if rounds == nil {
		rounds = []store.Round{}
	}
	writeJSON(w, http.StatusOK, rounds)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if s.deps.Rounds == nil {
		writeError(w, http.StatusServiceUnavailable, "round log disabled")
		return
	}
	t, err := s.deps.Rounds.GetTotals(r.Context())
	if err != nil {
		s.log.Error("stats_query_error", "err", err)
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rounds": t.Rounds, "found": t.Found, "today": t.Today, "sessions": s.Len()})
}

type regionInfo struct {
	ID      geodata.Region `json:"id"`
	Source  string         `json:"source,omitempty"`
	Targets []string       `json:"targets"`
}

func (s *Server) handleRegions(w http.ResponseWriter, r *http.Request) {
	targets := s.deps.Targets
	if targets == nil {
		targets = game.DefaultTargets
	}
	out := make([]regionInfo, 0, 3)
	for _, rg := range geodata.Regions() {
		info := regionInfo{ID: rg, Targets: append([]string{}, targets[rg]...)}
		sort.Strings(info.Targets)
		if s.deps.Sources != nil {
			info.Source = s.deps.Sources(rg)
		}
		out = append(out, info)
	}
	writeJSON(w, http.StatusOK, out)
}

// silent：未启用提示服务时的空实现
type silent struct{}

func (silent) Speak(string)    {}
func (silent) Play(cues.Sound) {}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("content-type", "application/json; charset=utf-8")
	w.Header().Set("cache-control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeLoopError：参数错误 400，会话已关闭 410，请求取消或超时 503
func writeLoopError(w http.ResponseWriter, err error) {
	var bad *errBadAction
	switch {
	case errors.As(err, &bad):
		writeError(w, http.StatusBadRequest, bad.msg)
	case errors.Is(err, eventloop.ErrClosed):
		writeError(w, http.StatusGone, "session closed")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

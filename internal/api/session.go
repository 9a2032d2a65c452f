package api

import (
	"bytes"
	"context"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"tiny-explorers/internal/cues"
	"tiny-explorers/internal/engine"
	"tiny-explorers/internal/eventloop"
	"tiny-explorers/internal/game"
	"tiny-explorers/internal/geodata"
	"tiny-explorers/internal/render"
	"tiny-explorers/internal/store"
)

// Snapshot：会话的可见状态，GET 与 websocket 推送共用
type Snapshot struct {
	ID        string     `json:"id"`
	Version   uint64     `json:"version"`
	Game      game.State `json:"game"`
	Loading   bool       `json:"loading"`
	Status    string     `json:"status,omitempty"`
	LoadError string     `json:"load_error,omitempty"`
	Width     float64    `json:"width"`
	Height    float64    `json:"height"`
	Transform string     `json:"transform"`
	Zoom      float64    `json:"zoom"`
	Hint      string     `json:"hint_state"`
	HintLit   bool       `json:"hint_lit,omitempty"`
	Features  int        `json:"features"`
}

// Event：websocket 推送
type Event struct {
	Type    string    `json:"type"`
	State   *Snapshot `json:"state,omitempty"`
	Cue     *cues.Cue `json:"cue,omitempty"`
	Clicked string    `json:"clicked,omitempty"`
	Error   string    `json:"error,omitempty"`
}

// 文档注释：一个游戏会话
// 背景：每个会话独占一个事件循环协程，引擎与游戏外壳只在该协程上运行；HTTP 与 websocket 处理器通过 Call 投递操作。
// 约束：回合日志在独立协程写入，不阻塞循环；订阅者缓冲满时丢弃状态推送（客户端可随时 GET 最新状态）。
type Session struct {
	ID      string
	Created time.Time

	loop   *eventloop.Loop
	stop   context.CancelFunc
	engine *engine.Engine
	game   *game.Game

	version  uint64
	lastSeen atomic.Int64

	mu     sync.Mutex
	subs   map[int]chan Event
	nextID int
	closed bool
}

type sessionDeps struct {
	Loader       engine.Loader
	Renderer     *render.Renderer
	Player       cues.Player
	Options      game.Options
	Overscroll   float64
	FetchTimeout time.Duration
	Rounds       RoundStore
}

func newSession(id string, d sessionDeps) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		ID:      id,
		Created: time.Now(),
		loop:    eventloop.New(256),
		stop:    cancel,
		subs:    map[int]chan Event{},
	}
	s.touch()
	go s.loop.Run(ctx)

	s.engine = engine.New(s.loop, d.Loader, d.Renderer, engine.Options{
		Overscroll:   d.Overscroll,
		FetchTimeout: d.FetchTimeout,
	})
	if d.Options.Rand == nil {
		d.Options.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	s.game = game.New(s.loop, d.Player, d.Options)
	s.engine.OnRegionClick = s.game.Click
	s.engine.OnChange = s.notify
	s.game.OnChange = func() {
		s.engine.SetProps(s.game.Props())
		s.notify()
	}
	if d.Rounds != nil {
		s.game.OnRound = func(r game.Round) {
			rec := store.Round{
				SessionID: id,
				Region:    string(r.Region),
				Target:    r.Target,
				Clicked:   r.Clicked,
				Correct:   r.Correct,
				Mistakes:  r.Mistakes,
			}
			go func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := d.Rounds.RecordRound(ctx, rec); err != nil {
					logAPI().Warn("round_record_error", "session", id, "err", err)
				}
			}()
		}
	}
	return s
}

// do：在会话循环上执行 f 并等待完成
func (s *Session) do(ctx context.Context, f func()) error {
	s.touch()
	return s.loop.Call(ctx, f)
}

func (s *Session) touch() { s.lastSeen.Store(time.Now().UnixNano()) }

// Idle：距上次操作的时长
func (s *Session) Idle(now time.Time) time.Duration {
	return now.Sub(time.Unix(0, s.lastSeen.Load()))
}

// snapshot：须在循环协程上调用
func (s *Session) snapshot() Snapshot {
	w, h := s.engine.View().Size()
	t := s.engine.View().Transform()
	snap := Snapshot{
		ID:        s.ID,
		Version:   s.version,
		Game:      s.game.State(),
		Loading:   s.engine.Loading(),
		Status:    s.engine.Status(),
		Width:     w,
		Height:    h,
		Transform: t.String(),
		Zoom:      t.K,
		Hint:      s.engine.HintState().String(),
		HintLit:   s.engine.HintLit(),
		Features:  s.engine.Collection().Len(),
	}
	if err := s.engine.LoadErr(); err != nil {
		snap.LoadError = err.Error()
	}
	return snap
}

// Snapshot：从任意协程读取状态
func (s *Session) Snapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	err := s.do(ctx, func() { snap = s.snapshot() })
	return snap, err
}

// notify：循环协程上的变化通知，推送给全部订阅者
func (s *Session) notify() {
	s.version++
	snap := s.snapshot()
	s.publish(Event{Type: "state", State: &snap})
}

func (s *Session) publish(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Subscribe：订阅状态推送；取消函数可重复调用
func (s *Session) Subscribe() (<-chan Event, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan Event, 32)
	if s.closed {
		close(ch)
		return ch, func() {}
	}
	s.nextID++
	id := s.nextID
	s.subs[id] = ch
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if c, ok := s.subs[id]; ok {
				close(c)
				delete(s.subs, id)
			}
		})
	}
}

// Render：在循环协程上按当前时刻编码一帧
func (s *Session) Render(ctx context.Context, format string) ([]byte, error) {
	var buf bytes.Buffer
	var rerr error
	err := s.do(ctx, func() {
		f := s.engine.Frame()
		now := s.loop.Now()
		switch format {
		case "svg":
			rerr = render.WriteSVG(&buf, f, now)
		case "png":
			rerr = render.RasterizePNG(&buf, f, now)
		default:
			rerr = fmt.Errorf("unknown frame format %q", format)
		}
	})
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), rerr
}

// Close：停止定时器与加载，关闭订阅并结束循环
func (s *Session) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	_ = s.loop.Call(ctx, func() {
		s.game.Close()
		s.engine.Close()
	})
	cancel()
	s.stop()
	s.mu.Lock()
	s.closed = true
	for id, ch := range s.subs {
		close(ch)
		delete(s.subs, id)
	}
	s.mu.Unlock()
}

// Action：HTTP 与 websocket 共用的操作
type Action struct {
	Type   string  `json:"type"`
	Mode   string  `json:"mode,omitempty"`
	Region string  `json:"region,omitempty"`
	Width  float64 `json:"width,omitempty"`
	Height float64 `json:"height,omitempty"`
	Factor float64 `json:"factor,omitempty"`
	X      float64 `json:"x,omitempty"`
	Y      float64 `json:"y,omitempty"`
	DX     float64 `json:"dx,omitempty"`
	DY     float64 `json:"dy,omitempty"`
}

// ActionResult：操作结果；Clicked 仅点击操作命中时非空
type ActionResult struct {
	Clicked string   `json:"clicked,omitempty"`
	State   Snapshot `json:"state"`
}

// errBadAction：参数错误，处理器映射为 400
type errBadAction struct{ msg string }

func (e *errBadAction) Error() string { return e.msg }

func badAction(format string, args ...any) error {
	return &errBadAction{msg: fmt.Sprintf(format, args...)}
}

// 文档注释：执行一次操作
// 背景：参数在进入循环前校验；循环内的操作按输入顺序串行生效。
// 约束：缩放倍率须为正数；尺寸非正时由视口忽略（与容器尺寸观察一致）。
func (s *Session) Apply(ctx context.Context, a Action) (ActionResult, error) {
	var op func(res *ActionResult)
	switch a.Type {
	case "mode":
		m, err := game.ParseMode(a.Mode)
		if err != nil {
			return ActionResult{}, badAction("%v", err)
		}
		op = func(*ActionResult) { s.game.SetMode(m) }
	case "region":
		r, err := geodata.ParseRegion(a.Region)
		if err != nil {
			return ActionResult{}, badAction("%v", err)
		}
		op = func(*ActionResult) { s.game.SetRegion(r) }
	case "resize":
		op = func(*ActionResult) { s.engine.Resize(a.Width, a.Height) }
	case "zoom":
		if !(a.Factor > 0) {
			return ActionResult{}, badAction("zoom factor must be positive")
		}
		op = func(*ActionResult) { s.engine.Zoom(a.Factor, a.X, a.Y) }
	case "pan":
		op = func(*ActionResult) { s.engine.Pan(a.DX, a.DY) }
	case "click":
		op = func(res *ActionResult) {
			if f := s.engine.Click(a.X, a.Y); f != nil {
				res.Clicked = f.Name
			}
		}
	case "reset-view":
		op = func(*ActionResult) { s.engine.ResetView() }
	case "reload":
		op = func(*ActionResult) { s.engine.Reload() }
	default:
		return ActionResult{}, badAction("unknown action %q", a.Type)
	}
	var res ActionResult
	err := s.do(ctx, func() {
		op(&res)
		res.State = s.snapshot()
	})
	return res, err
}

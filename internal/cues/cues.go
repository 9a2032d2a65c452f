// 包 cues：语音与音效提示服务。
// 服务端不发声，只把提示事件推送给会话的订阅者（浏览器端负责朗读与合成音效）。
package cues

import (
	"sync"
	"time"

	"tiny-explorers/internal/logger"
)

type Kind string

const (
	KindSpeech Kind = "speech"
	KindSound  Kind = "sound"
	KindMusic  Kind = "music"
)

// Sound：四种音效
type Sound string

const (
	Pop     Sound = "pop"
	Correct Sound = "correct"
	Wrong   Sound = "wrong"
	Win     Sound = "win"
)

// 朗读参数：稍慢、偏高的童声
const (
	SpeechRate  = 0.9
	SpeechPitch = 1.2
)

// Cue：推送给客户端的一条提示
type Cue struct {
	Session string    `json:"session"`
	Kind    Kind      `json:"kind"`
	Text    string    `json:"text,omitempty"`
	Sound   Sound     `json:"sound,omitempty"`
	Rate    float64   `json:"rate,omitempty"`
	Pitch   float64   `json:"pitch,omitempty"`
	Music   bool      `json:"music,omitempty"`
	At      time.Time `json:"at"`
}

// Player：游戏外壳依赖的最小接口
type Player interface {
	Speak(text string)
	Play(s Sound)
}

// 文档注释：提示服务
// 背景：进程级服务，显式 Start/Stop；停止期间的提示直接丢弃，不排队。
// 约束：订阅者缓冲满时丢弃该条提示，不阻塞游戏逻辑。
type Service struct {
	mu      sync.Mutex
	running bool
	buffer  int
	nextID  int
	subs    map[string]map[int]chan Cue
	music   map[string]bool
	now     func() time.Time
}

func NewService(buffer int) *Service {
	if buffer <= 0 {
		buffer = 16
	}
	return &Service{buffer: buffer, subs: map[string]map[int]chan Cue{}, music: map[string]bool{}, now: time.Now}
}

func (s *Service) Start() {
	s.mu.Lock()
	s.running = true
	s.mu.Unlock()
	logger.L().Info("cues_start")
}

// Stop：停止发布并关闭全部订阅
func (s *Service) Stop() {
	s.mu.Lock()
	s.running = false
	for sess, m := range s.subs {
		for id, ch := range m {
			close(ch)
			delete(m, id)
		}
		delete(s.subs, sess)
	}
	s.mu.Unlock()
	logger.L().Info("cues_stop")
}

func (s *Service) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Subscribe：订阅某会话的提示；返回的取消函数可重复调用
func (s *Service) Subscribe(session string) (<-chan Cue, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	id := s.nextID
	ch := make(chan Cue, s.buffer)
	if s.subs[session] == nil {
		s.subs[session] = map[int]chan Cue{}
	}
	s.subs[session][id] = ch
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if m, ok := s.subs[session]; ok {
				if c, ok := m[id]; ok {
					close(c)
					delete(m, id)
				}
				if len(m) == 0 {
					delete(s.subs, session)
				}
			}
		})
	}
}

func (s *Service) publish(c Cue) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	c.At = s.now()
	for _, ch := range s.subs[c.Session] {
		select {
		case ch <- c:
		default:
			logger.L().Debug("cue_dropped", "session", c.Session, "kind", c.Kind)
		}
	}
}

// Speak：朗读文本；客户端应先打断上一句
func (s *Service) Speak(session, text string) {
	if text == "" {
		return
	}
	s.publish(Cue{Session: session, Kind: KindSpeech, Text: text, Rate: SpeechRate, Pitch: SpeechPitch})
}

func (s *Service) Play(session string, snd Sound) {
	s.publish(Cue{Session: session, Kind: KindSound, Sound: snd})
}

// ToggleMusic：切换会话的背景音乐，返回切换后的状态
func (s *Service) ToggleMusic(session string) bool {
	s.mu.Lock()
	on := !s.music[session]
	s.music[session] = on
	s.mu.Unlock()
	s.publish(Cue{Session: session, Kind: KindMusic, Music: on})
	return on
}

// Forget：会话结束时清理状态
func (s *Service) Forget(session string) {
	s.mu.Lock()
	delete(s.music, session)
	s.mu.Unlock()
}

// For：绑定到会话的 Player
func (s *Service) For(session string) Player { return sessionPlayer{s: s, id: session} }

type sessionPlayer struct {
	s  *Service
	id string
}

func (p sessionPlayer) Speak(text string) { p.s.Speak(p.id, text) }
func (p sessionPlayer) Play(snd Sound)    { p.s.Play(p.id, snd) }

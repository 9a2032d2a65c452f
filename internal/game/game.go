// 包 game：游戏外壳。管理模式、区域、回合与得分，消费地图点击并产出地图的高亮状态。
// 地图引擎本身不含任何游戏逻辑。
package game

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"tiny-explorers/internal/cues"
	"tiny-explorers/internal/engine"
	"tiny-explorers/internal/eventloop"
	"tiny-explorers/internal/facts"
	"tiny-explorers/internal/geodata"
	"tiny-explorers/internal/metrics"
)

type Mode string

const (
	Menu  Mode = "MENU"
	Learn Mode = "LEARN"
	Find  Mode = "FIND"
)

// ParseMode：大小写不敏感
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToUpper(strings.TrimSpace(s))) {
	case Menu:
		return Menu, nil
	case Learn:
		return Learn, nil
	case Find:
		return Find, nil
	}
	return "", fmt.Errorf("unknown mode %q", s)
}

const (
	// 学习模式高亮保留时长
	CorrectHold = 3 * time.Second
	// 错误高亮保留时长
	ErrorHold = time.Second
	// 找到后进入下一回合的间隔
	NextRoundDelay = 3 * time.Second
	// 错误次数超过该值后开启闪烁提示
	HintAfterMistakes = 2

	HintLine = "Look for the flashing yellow shape!"
)

// 各区域的常见目标
var DefaultTargets = map[geodata.Region][]string{
	geodata.India: {"Maharashtra", "Delhi", "Tamil Nadu", "Rajasthan", "Kerala", "Gujarat", "West Bengal", "Karnataka", "Punjab", "Goa"},
	geodata.Asia:  {"India", "China", "Japan", "Thailand", "Vietnam", "Russia", "Indonesia", "Saudi Arabia", "Iran"},
	geodata.World: {"USA", "China", "Brazil", "Australia", "India", "Canada", "France", "Egypt", "United Kingdom", "Mexico", "Japan"},
}

// State：HUD 展示的状态
type State struct {
	Mode     Mode           `json:"mode"`
	Region   geodata.Region `json:"region"`
	Score    int            `json:"score"`
	Target   string         `json:"target,omitempty"`
	Message  string         `json:"message"`
	Emoji    string         `json:"emoji"`
	Confetti bool           `json:"confetti"`
	Mistakes int            `json:"mistakes"`
	Correct  string         `json:"correct,omitempty"`
	Error    string         `json:"error,omitempty"`
	HintLine string         `json:"hint_line,omitempty"`
}

// Round：寻找模式下一次点击的结果
type Round struct {
	Region   geodata.Region
	Target   string
	Clicked  string
	Correct  bool
	Mistakes int
}

type Options struct {
	Targets map[geodata.Region][]string
	Facts   *facts.Table
	Rand    *rand.Rand
}

// 文档注释：一局游戏
// 背景：所有方法与定时回调都在事件循环协程上执行；模式/区域切换或新回合会取消所有在途定时器，
// 旧回合的延时清除不会误伤新状态。
// 约束：找到目标后到下一回合开始之前的点击被忽略，避免同一回合重复得分。
type Game struct {
	clock   eventloop.Clock
	player  cues.Player
	facts   *facts.Table
	targets map[geodata.Region][]string
	rng     *rand.Rand

	mode     Mode
	region   geodata.Region
	score    int
	target   string
	message  string
	emoji    string
	confetti bool
	correct  string
	errName  string
	mistakes int
	solved   bool

	correctTimer eventloop.Timer
	errorTimer   eventloop.Timer
	roundTimer   eventloop.Timer

	// OnChange：状态变化后回调
	OnChange func()
	// OnRound：寻找模式每次判定后回调
	OnRound func(Round)
}

func New(clock eventloop.Clock, player cues.Player, opts Options) *Game {
	g := &Game{
		clock:   clock,
		player:  player,
		facts:   opts.Facts,
		targets: opts.Targets,
		rng:     opts.Rand,
		mode:    Menu,
		region:  geodata.World,
		message: "Tap to start!",
		emoji:   "🐻",
	}
	if g.facts == nil {
		g.facts = facts.Builtin()
	}
	if g.targets == nil {
		g.targets = DefaultTargets
	}
	if g.rng == nil {
		g.rng = rand.New(rand.NewSource(clock.Now().UnixNano()))
	}
	return g
}

func (g *Game) Mode() Mode             { return g.mode }
func (g *Game) Region() geodata.Region { return g.region }
func (g *Game) Score() int             { return g.score }
func (g *Game) Target() string         { return g.target }

// SetMode：切换模式并重置本局
func (g *Game) SetMode(m Mode) {
	if m == Learn || m == Find {
		g.player.Play(cues.Pop)
	}
	g.mode = m
	g.reset()
}

// SetRegion：切换区域并重置本局
func (g *Game) SetRegion(r geodata.Region) {
	g.region = r
	g.reset()
}

func (g *Game) reset() {
	g.stopTimers()
	g.score = 0
	g.correct = ""
	g.errName = ""
	g.mistakes = 0
	g.confetti = false
	g.solved = false
	g.target = ""
	if g.mode == Learn {
		g.message, g.emoji = "Tap any colorful shape!", "👀"
	} else {
		g.message, g.emoji = "Ready Set Go!", "🏁"
	}
	if g.mode == Find {
		g.nextRound()
		return
	}
	g.changed()
}

func (g *Game) nextRound() {
	g.stopTimers()
	g.confetti = false
	g.solved = false
	g.correct = ""
	g.errName = ""
	g.mistakes = 0
	list := g.targets[g.region]
	if len(list) == 0 {
		g.target = ""
		g.changed()
		return
	}
	g.target = list[g.rng.Intn(len(list))]
	g.message = fmt.Sprintf("Find %s", g.target)
	g.emoji = "🧐"
	g.player.Speak(fmt.Sprintf("Can you find %s?", g.target))
	g.changed()
}

// 文档注释：处理地图点击
// 背景：学习模式朗读名称与趣味知识；寻找模式按宽松规则判定（去空白、大小写不敏感、相等或任一方向包含）。
// 约束：无名称的要素、菜单模式、没有目标的寻找模式均忽略。
func (g *Game) Click(f *geodata.Feature) {
	if f == nil || f.Name == "" {
		return
	}
	name := f.Name
	switch g.mode {
	case Learn:
		g.player.Play(cues.Pop)
		g.correct = name
		g.player.Speak(name)
		fact := g.facts.Lookup(name)
		g.message, g.emoji = fact.Text, fact.Emoji
		g.player.Speak(fact.Text)
		stop(g.correctTimer)
		g.correctTimer = g.clock.AfterFunc(CorrectHold, func() {
			g.correct = ""
			g.changed()
		})
		g.changed()
	case Find:
		if g.target == "" || g.solved {
			return
		}
		if Matches(name, g.target) {
			g.score++
			g.solved = true
			g.correct = name
			g.message, g.emoji = fmt.Sprintf("Yay! You found %s!", name), "🤩"
			g.confetti = true
			g.player.Play(cues.Win)
			g.player.Speak(fmt.Sprintf("You found %s! You are smart!", name))
			g.round(name, true)
			g.roundTimer = g.clock.AfterFunc(NextRoundDelay, g.nextRound)
		} else {
			g.player.Play(cues.Wrong)
			g.errName = name
			g.mistakes++
			g.message, g.emoji = fmt.Sprintf("That is %s. Try again!", name), "🙈"
			g.player.Speak(fmt.Sprintf("Oops, that is %s.", name))
			g.round(name, false)
			stop(g.errorTimer)
			g.errorTimer = g.clock.AfterFunc(ErrorHold, func() {
				g.errName = ""
				g.changed()
			})
		}
		g.changed()
	}
}

func (g *Game) round(clicked string, ok bool) {
	result := "wrong"
	if ok {
		result = "found"
	}
	metrics.RoundsTotal.WithLabelValues(string(g.region), result).Inc()
	if g.OnRound != nil {
		g.OnRound(Round{Region: g.region, Target: g.target, Clicked: clicked, Correct: ok, Mistakes: g.mistakes})
	}
}

// Matches：寻找模式的判定规则
func Matches(clicked, target string) bool {
	c := strings.ToLower(strings.TrimSpace(clicked))
	t := strings.ToLower(strings.TrimSpace(target))
	if c == "" || t == "" {
		return false
	}
	return c == t || strings.Contains(c, t) || strings.Contains(t, c)
}

// Props：地图引擎的输入。本回合错误超过两次且尚未找到时提示当前目标；仅学习模式显示标签
func (g *Game) Props() engine.Props {
	p := engine.Props{
		Region:     g.region,
		Correct:    g.correct,
		Error:      g.errName,
		ShowLabels: g.mode == Learn,
	}
	if g.hinting() {
		p.Hint = g.target
	}
	return p
}

func (g *Game) State() State {
	s := State{
		Mode:     g.mode,
		Region:   g.region,
		Score:    g.score,
		Target:   g.target,
		Message:  g.message,
		Emoji:    g.emoji,
		Confetti: g.confetti,
		Mistakes: g.mistakes,
		Correct:  g.correct,
		Error:    g.errName,
	}
	if g.hinting() {
		s.HintLine = HintLine
	}
	return s
}

// hinting：本回合尚未找到且错误超过阈值
func (g *Game) hinting() bool {
	return g.mode == Find && g.target != "" && !g.solved && g.mistakes > HintAfterMistakes
}

// Close：取消在途定时器
func (g *Game) Close() { g.stopTimers() }

func (g *Game) stopTimers() {
	stop(g.correctTimer)
	stop(g.errorTimer)
	stop(g.roundTimer)
	g.correctTimer, g.errorTimer, g.roundTimer = nil, nil, nil
}

func stop(t eventloop.Timer) {
	if t != nil {
		t.Stop()
	}
}

func (g *Game) changed() {
	if g.OnChange != nil {
		g.OnChange()
	}
}

// 包 hint：提示脉冲动画。
// 两个状态 IDLE / PULSING；每个调度步骤先核对代际令牌再执行或续约，
// 停止或切换目标时令牌失效，旧循环即便有回调在途也不会再改动颜色。
package hint

import (
	"time"

	"tiny-explorers/internal/eventloop"
	"tiny-explorers/internal/logger"
	"tiny-explorers/internal/metrics"
	"tiny-explorers/internal/render"
)

// Phase：单次变色（到提示色或回到静止色）的时长
const Phase = 500 * time.Millisecond

type State int

const (
	Idle State = iota
	Pulsing
)

func (s State) String() string {
	if s == Pulsing {
		return "PULSING"
	}
	return "IDLE"
}

// 文档注释：提示动画器
// 背景：错误次数过多时游戏给出提示名称；名称按宽松规则可能命中多个形状，全部一起闪烁。
// 约束：须在事件循环协程上使用；Start 前总是先 Stop，不会出现两个循环争抢同一形状的填充色。
type Animator struct {
	clock  eventloop.Clock
	state  State
	token  uint64
	hint   string
	shapes []*render.Shape
	timer  eventloop.Timer
	lit    bool

	// OnStep：每个相位开始时回调（循环协程），用于向订阅者推送帧变化
	OnStep func(lit bool)
}

func New(clock eventloop.Clock) *Animator {
	return &Animator{clock: clock}
}

func (a *Animator) State() State { return a.state }

// Hint：当前闪烁的提示名称；IDLE 时为空
func (a *Animator) Hint() string { return a.hint }

// Lit：当前相位是否正过渡到提示色
func (a *Animator) Lit() bool { return a.lit }

// Targets：正在闪烁的形状
func (a *Animator) Targets() []*render.Shape { return a.shapes }

// Start：对场景中宽松匹配 hint 的形状开始闪烁；返回命中数量。
// hint 为空或无命中时保持 IDLE。
func (a *Animator) Start(scene *render.Scene, hint string) int {
	a.Stop()
	shapes := scene.Matching(hint)
	if len(shapes) == 0 {
		return 0
	}
	a.token++
	a.state = Pulsing
	a.hint = hint
	a.shapes = shapes
	metrics.HintStartsTotal.Inc()
	logger.L().Debug("hint_start", "hint", hint, "targets", len(shapes))
	a.step(a.token, true)
	return len(shapes)
}

func (a *Animator) step(tok uint64, toHint bool) {
	if tok != a.token || a.state != Pulsing {
		return
	}
	now := a.clock.Now()
	for _, sh := range a.shapes {
		if toHint {
			sh.Animate(render.HintColor, now, Phase)
		} else {
			sh.Animate(sh.Resting, now, Phase)
		}
	}
	a.lit = toHint
	a.timer = a.clock.AfterFunc(Phase, func() { a.step(tok, !toHint) })
	if a.OnStep != nil {
		a.OnStep(toHint)
	}
}

// Stop：令牌失效、取消在途定时器，并把命中形状立即恢复为静止色
func (a *Animator) Stop() {
	if a.state == Idle {
		return
	}
	a.token++
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	now := a.clock.Now()
	for _, sh := range a.shapes {
		sh.Animate(sh.Resting, now, 0)
	}
	logger.L().Debug("hint_stop", "hint", a.hint)
	a.shapes = nil
	a.hint = ""
	a.lit = false
	a.state = Idle
}

// Detach：场景已被全量绘制替换时调用；旧形状不再恢复颜色
func (a *Animator) Detach() {
	a.shapes = nil
	a.Stop()
}

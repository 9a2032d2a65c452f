// 包 engine：地图引擎。把数据集加载、投影、视口、渲染与提示动画串起来，
// 按输入变化决定走全量绘制还是快速重着色，并把点击解析为要素回调给游戏外壳。
package engine

import (
	"context"
	"log/slog"
	"time"

	"tiny-explorers/internal/eventloop"
	"tiny-explorers/internal/geodata"
	"tiny-explorers/internal/hint"
	"tiny-explorers/internal/logger"
	"tiny-explorers/internal/projection"
	"tiny-explorers/internal/render"
	"tiny-explorers/internal/viewport"
)

// LoadingText：数据加载中的覆盖层文字
const LoadingText = "Loading Map... 🌍"

// Props：游戏外壳每个渲染周期提供的状态
type Props struct {
	Region     geodata.Region
	Correct    string
	Error      string
	Hint       string
	ShowLabels bool
}

func (p Props) Highlight() render.Highlight {
	return render.Highlight{Correct: p.Correct, Error: p.Error, Hint: p.Hint, ShowLabels: p.ShowLabels}
}

// Inputs：全量绘制依赖的输入；Collection 按指针身份比较
type Inputs struct {
	Collection    *geodata.Collection
	Width, Height float64
}

// NeedsFullDraw：数据集身份或像素尺寸变化，且新输入可绘制
func NeedsFullDraw(prev, next Inputs) bool {
	if next.Collection == nil || !(next.Width > 0) || !(next.Height > 0) {
		return false
	}
	return prev.Collection != next.Collection || prev.Width != next.Width || prev.Height != next.Height
}

// NeedsRestyle：任一高亮字段变化
func NeedsRestyle(prev, next render.Highlight) bool { return prev != next }

// Loader：数据集来源，geodata.Provider 实现
type Loader interface {
	Collection(ctx context.Context, region geodata.Region) (*geodata.Collection, error)
}

type Options struct {
	Overscroll   float64
	FetchTimeout time.Duration
	// Async：启动加载协程；为空时使用 go 语句
	Async func(func())
}

// 文档注释：地图引擎
// 背景：单协程模型，所有方法须在事件循环协程上调用；数据加载在独立协程执行，完成后投递回循环。
// 约束：加载期间不绘制要素；被后续请求取代的加载结果按序号丢弃；全量绘制前先停止提示动画。
type Engine struct {
	sched    eventloop.Scheduler
	loader   Loader
	renderer *render.Renderer
	view     *viewport.Controller
	hint     *hint.Animator
	opts     Options
	log      *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mounted    bool
	props      Props
	loading    bool
	loadSeq    uint64
	loadErr    error
	collection *geodata.Collection
	drawn      Inputs
	scene      *render.Scene

	// OnRegionClick：点击命中要素时同步回调（循环协程）
	OnRegionClick func(*geodata.Feature)
	// OnChange：可见输出变化（绘制、重着色、视口、加载状态）
	OnChange func()
}

func New(sched eventloop.Scheduler, loader Loader, renderer *render.Renderer, opts Options) *Engine {
	if opts.Async == nil {
		opts.Async = func(f func()) { go f() }
	}
	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		sched:    sched,
		loader:   loader,
		renderer: renderer,
		view:     viewport.New(sched, opts.Overscroll),
		hint:     hint.New(sched),
		opts:     opts,
		log:      logger.Component("map_engine"),
		ctx:      ctx,
		cancel:   cancel,
	}
	e.view.OnResize = func(w, h float64) { e.redraw() }
	e.view.OnTransform = func(viewport.Transform) { e.changed() }
	e.hint.OnStep = func(bool) { e.changed() }
	return e
}

// Close：取消在途加载并停止动画
func (e *Engine) Close() {
	e.cancel()
	e.loadSeq++
	e.hint.Stop()
}

// SetProps：区域变化（或首次挂载）触发加载；仅高亮变化走快速重着色
func (e *Engine) SetProps(p Props) {
	prev := e.props
	e.props = p
	if !e.mounted || p.Region != prev.Region {
		e.mounted = true
		e.load(p.Region)
		return
	}
	if NeedsRestyle(prev.Highlight(), p.Highlight()) {
		e.restyle()
	}
}

func (e *Engine) Props() Props { return e.props }

// Reload：重新挂载当前区域（失败后的手动重试）
func (e *Engine) Reload() {
	if e.mounted {
		e.load(e.props.Region)
	}
}

func (e *Engine) load(region geodata.Region) {
	e.loadSeq++
	seq := e.loadSeq
	e.loading = true
	e.loadErr = nil
	e.collection = nil
	e.scene = nil
	e.drawn = Inputs{}
	e.hint.Detach()
	e.view.Reset()
	e.changed()

	ctx := e.ctx
	timeout := e.opts.FetchTimeout
	e.opts.Async(func() {
		lctx, cancel := ctx, context.CancelFunc(func() {})
		if timeout > 0 {
			lctx, cancel = context.WithTimeout(ctx, timeout)
		}
		c, err := e.loader.Collection(lctx, region)
		cancel()
		e.sched.Post(func() { e.loaded(seq, region, c, err) })
	})
}

func (e *Engine) loaded(seq uint64, region geodata.Region, c *geodata.Collection, err error) {
	if seq != e.loadSeq {
		e.log.Debug("map_load_discarded", "region", region, "seq", seq)
		return
	}
	e.loading = false
	if err != nil {
		e.loadErr = err
		e.log.Error("map_load_failed", "region", region, "err", err)
		e.changed()
		return
	}
	e.collection = c
	e.log.Info("map_loaded", "region", region, "features", c.Len())
	e.redraw()
	e.changed()
}

// redraw：满足 NeedsFullDraw 时重新拟合投影并全量绘制
func (e *Engine) redraw() {
	w, h := e.view.Size()
	next := Inputs{Collection: e.collection, Width: w, Height: h}
	if !NeedsFullDraw(e.drawn, next) {
		return
	}
	e.hint.Detach()
	e.drawn = next
	proj, err := projection.Fit(e.collection.Features, w, h)
	if err != nil {
		e.log.Warn("map_projection_failed", "region", e.collection.Region, "err", err)
		e.scene = nil
		e.changed()
		return
	}
	e.scene = e.renderer.Draw(e.collection, proj, e.props.Highlight(), e.sched.Now())
	e.hint.Start(e.scene, e.props.Hint)
	e.changed()
}

// restyle：只改颜色与标签；没有场景时为空操作
func (e *Engine) restyle() {
	if e.scene == nil {
		return
	}
	hl := e.props.Highlight()
	e.hint.Stop()
	e.scene.Restyle(hl, e.sched.Now())
	e.hint.Start(e.scene, hl.Hint)
	e.changed()
}

// Resize：容器尺寸通知（按帧合并）
func (e *Engine) Resize(w, h float64) { e.view.Observe(w, h) }

// Zoom：滚轮/捏合缩放，锚定屏幕点
func (e *Engine) Zoom(factor, x, y float64) { e.view.Zoom(factor, x, y) }

// Pan：拖拽平移
func (e *Engine) Pan(dx, dy float64) { e.view.Pan(dx, dy) }

func (e *Engine) ResetView() { e.view.Reset() }

// Click：屏幕坐标点击；命中时同步回调 OnRegionClick 并返回要素
func (e *Engine) Click(x, y float64) *geodata.Feature {
	f := e.scene.FeatureAt(e.view.Invert(x, y))
	if f != nil && e.OnRegionClick != nil {
		e.OnRegionClick(f)
	}
	return f
}

func (e *Engine) Loading() bool                   { return e.loading }
func (e *Engine) LoadErr() error                  { return e.loadErr }
func (e *Engine) Scene() *render.Scene            { return e.scene }
func (e *Engine) View() *viewport.Controller      { return e.view }
func (e *Engine) HintState() hint.State           { return e.hint.State() }
func (e *Engine) HintLit() bool                   { return e.hint.Lit() }
func (e *Engine) Collection() *geodata.Collection { return e.collection }

// Status：覆盖层文字；加载中以外为空
func (e *Engine) Status() string {
	if e.loading {
		return LoadingText
	}
	return ""
}

// Frame：当前可见输出
func (e *Engine) Frame() render.Frame {
	w, h := e.view.Size()
	return render.Frame{
		Width:     w,
		Height:    h,
		Scene:     e.scene,
		Transform: e.view.Transform(),
		Stroke:    e.view.StrokeWidth(),
		Status:    e.Status(),
	}
}

func (e *Engine) changed() {
	if e.OnChange != nil {
		e.OnChange()
	}
}

// 包 eventloop：单线程事件循环。地图引擎的所有状态变更（用户输入、定时回调、数据加载完成）
// 都投递到同一个协程串行执行，引擎内部因此无需加锁。
package eventloop

import (
	"context"
	"errors"
	"time"
)

// ErrClosed：循环已停止，投递被丢弃
var ErrClosed = errors.New("event loop closed")

// Timer：可取消的定时回调
type Timer interface {
	// Stop 阻止尚未执行的回调；已执行或已停止时返回 false
	Stop() bool
}

// Clock：时间来源与定时器；生产环境由 Loop 实现，测试使用 FakeClock
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// Scheduler：在循环协程上执行任务的能力
type Scheduler interface {
	Clock
	Post(f func()) bool
}

// Loop：基于通道的串行执行器
type Loop struct {
	ch   chan func()
	done chan struct{}
}

func New(buffer int) *Loop {
	if buffer <= 0 {
		buffer = 64
	}
	return &Loop{ch: make(chan func(), buffer), done: make(chan struct{})}
}

// Run：在当前协程处理任务直到 ctx 取消；只能调用一次
func (l *Loop) Run(ctx context.Context) {
	defer close(l.done)
	for {
		select {
		case <-ctx.Done():
			return
		case f := <-l.ch:
			f()
		}
	}
}

// Post：投递任务；循环已停止时返回 false
func (l *Loop) Post(f func()) bool {
	select {
	case <-l.done:
		return false
	default:
	}
	select {
	case l.ch <- f:
		return true
	case <-l.done:
		return false
	}
}

// Call：投递并等待执行完成
func (l *Loop) Call(ctx context.Context, f func()) error {
	fin := make(chan struct{})
	if !l.Post(func() { f(); close(fin) }) {
		return ErrClosed
	}
	select {
	case <-fin:
		return nil
	case <-l.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Loop) Now() time.Time { return time.Now() }

// AfterFunc：到期后把 f 投递回循环执行。
// 约束：Stop 须在循环协程上调用；停止标记在循环内检查，已到期但尚未执行的回调也会被丢弃。
func (l *Loop) AfterFunc(d time.Duration, f func()) Timer {
	lt := &loopTimer{}
	lt.t = time.AfterFunc(d, func() {
		l.Post(func() {
			if lt.stopped {
				return
			}
			lt.fired = true
			f()
		})
	})
	return lt
}

type loopTimer struct {
	t       *time.Timer
	stopped bool
	fired   bool
}

func (lt *loopTimer) Stop() bool {
	if lt.stopped || lt.fired {
		return false
	}
	lt.stopped = true
	lt.t.Stop()
	return true
}

package eventloop

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoopCallRunsOnLoop(t *testing.T) {
	l := New(8)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Run(ctx)

	var n int
	for i := 0; i < 10; i++ {
		require.NoError(t, l.Call(ctx, func() { n++ }))
	}
	assert.Equal(t, 10, n)
}

func TestLoopTimerStopPreventsCallback(t *testing.T) {
	l := New(8)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Run(ctx)

	var fired atomic.Int32
	var tm Timer
	require.NoError(t, l.Call(ctx, func() {
		tm = l.AfterFunc(20*time.Millisecond, func() { fired.Add(1) })
	}))
	require.NoError(t, l.Call(ctx, func() { assert.True(t, tm.Stop()) }))
	time.Sleep(60 * time.Millisecond)
	require.NoError(t, l.Call(ctx, func() {}))
	assert.Equal(t, int32(0), fired.Load())
}

func TestLoopPostAfterClose(t *testing.T) {
	l := New(1)
	ctx, cancel := context.WithCancel(context.Background())
	go l.Run(ctx)
	cancel()
	<-l.done
	assert.False(t, l.Post(func() {}))
	assert.ErrorIs(t, l.Call(context.Background(), func() {}), ErrClosed)
}

func TestFakeClockOrdering(t *testing.T) {
	c := NewFakeClock(time.Unix(0, 0))
	var got []string
	c.AfterFunc(200*time.Millisecond, func() { got = append(got, "b") })
	c.AfterFunc(100*time.Millisecond, func() {
		got = append(got, "a")
		c.AfterFunc(50*time.Millisecond, func() { got = append(got, "a2") })
	})
	stopped := c.AfterFunc(120*time.Millisecond, func() { got = append(got, "x") })
	assert.True(t, stopped.Stop())

	c.Advance(150 * time.Millisecond)
	assert.Equal(t, []string{"a", "a2"}, got)
	c.Advance(100 * time.Millisecond)
	assert.Equal(t, []string{"a", "a2", "b"}, got)
	assert.Equal(t, 0, c.Pending())
}

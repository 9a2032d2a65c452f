package cues

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain(ch <-chan Cue) []Cue {
	var out []Cue
	for {
		select {
		case c, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, c)
		default:
			return out
		}
	}
}

func TestCuesFollowLifecycle(t *testing.T) {
	s := NewService(4)
	ch, cancel := s.Subscribe("a")
	defer cancel()

	s.Speak("a", "dropped before start")
	assert.Empty(t, drain(ch))

	s.Start()
	p := s.For("a")
	p.Play(Pop)
	p.Speak("Kerala")
	p.Speak("")
	s.Speak("b", "other session")

	got := drain(ch)
	require.Len(t, got, 2)
	assert.Equal(t, Cue{Session: "a", Kind: KindSound, Sound: Pop, At: got[0].At}, got[0])
	assert.Equal(t, KindSpeech, got[1].Kind)
	assert.Equal(t, "Kerala", got[1].Text)
	assert.Equal(t, SpeechRate, got[1].Rate)
	assert.Equal(t, SpeechPitch, got[1].Pitch)

	s.Stop()
	_, ok := <-ch
	assert.False(t, ok, "stop closes subscriptions")
	assert.False(t, s.Running())
}

func TestSlowSubscriberDoesNotBlock(t *testing.T) {
	s := NewService(1)
	s.Start()
	ch, cancel := s.Subscribe("a")
	for i := 0; i < 10; i++ {
		s.Play("a", Wrong)
	}
	assert.Len(t, drain(ch), 1)
	cancel()
	cancel()
	_, ok := <-ch
	assert.False(t, ok)
}

func TestToggleMusic(t *testing.T) {
	s := NewService(4)
	s.Start()
	ch, cancel := s.Subscribe("a")
	defer cancel()

	assert.True(t, s.ToggleMusic("a"))
	assert.False(t, s.ToggleMusic("a"))
	got := drain(ch)
	require.Len(t, got, 2)
	assert.True(t, got[0].Music)
	assert.False(t, got[1].Music)

	s.ToggleMusic("a")
	s.Forget("a")
	assert.True(t, s.ToggleMusic("a"), "forgotten session starts silent")
}

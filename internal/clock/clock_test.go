package clock

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMock_StartsAtGivenTime(t *testing.T) {
	start := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	mock := NewMock(start)

	assert.True(t, mock.Now().Equal(start))

	mock.Add(5 * time.Second)
	assert.True(t, mock.Now().Equal(start.Add(5*time.Second)))
}

func TestMock_TimerFiresOnlyAtDeadline(t *testing.T) {
	mock := NewMock(time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC))

	var called atomic.Bool
	mock.AfterFunc(500*time.Millisecond, func() { called.Store(true) })

	mock.Add(499 * time.Millisecond)
	assert.False(t, called.Load())

	mock.Add(time.Millisecond)
	require.Eventually(t, called.Load, time.Second, time.Millisecond)
}

func TestMock_StoppedTimerNeverFires(t *testing.T) {
	mock := NewMock(time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC))

	var called atomic.Bool
	timer := mock.AfterFunc(time.Second, func() { called.Store(true) })

	assert.True(t, timer.Stop())

	mock.Add(time.Minute)
	assert.False(t, called.Load())
}

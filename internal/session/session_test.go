package session

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSessionLifecycle(t *testing.T) {
	s := New(nil)
	assert.NotEmpty(t, s.ID)
	assert.Equal(t, StateAwaitingJoin, s.GetState())
	assert.Empty(t, s.BoardID())

	assert.True(t, s.Join("b1"))
	assert.Equal(t, StateJoined, s.GetState())
	assert.Equal(t, "b1", s.BoardID())

	assert.True(t, s.Join("b2"))
	assert.Equal(t, "b2", s.BoardID())

	s.Close()
	assert.True(t, s.IsClosed())
	assert.Equal(t, "closed", s.GetState().String())
	assert.False(t, s.Join("b3"))
}

func TestCloseRunsCleanupOnce(t *testing.T) {
	var calls int32
	s := New(func(*Session) { atomic.AddInt32(&calls, 1) })

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Close()
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestSessionCounters(t *testing.T) {
	s := New(nil)
	s.IncrementReceived()
	s.IncrementReceived()
	s.IncrementDropped()

	received, dropped := s.GetStats()
	assert.Equal(t, uint64(2), received)
	assert.Equal(t, uint64(1), dropped)
	assert.Equal(t, "unknown", State(9).String())
}

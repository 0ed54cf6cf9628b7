package room

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"collabboard-backend/internal/protocol"
)

type fakeConn struct {
	id   string
	mu   sync.Mutex
	got  []protocol.Envelope
	full bool
}

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) Send(msg protocol.Envelope) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.full {
		return false
	}
	c.got = append(c.got, msg)
	return true
}

func (c *fakeConn) received() []protocol.Envelope {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]protocol.Envelope(nil), c.got...)
}

func TestBroadcastExcludesOrigin(t *testing.T) {
	r := NewRouter()
	a, b, c := &fakeConn{id: "a"}, &fakeConn{id: "b"}, &fakeConn{id: "c"}
	other := &fakeConn{id: "x"}

	r.Join(a, "b1")
	r.Join(b, "b1")
	r.Join(c, "b1")
	r.Join(other, "b2")

	msg := protocol.NewEnvelope(protocol.EventElementDrawn, map[string]string{"id": "e1"})
	n := r.BroadcastToBoard("b1", msg, "a")

	assert.Equal(t, 2, n)
	assert.Empty(t, a.received())
	assert.Len(t, b.received(), 1)
	assert.Len(t, c.received(), 1)
	assert.Empty(t, other.received())

	// exclude 없으면 전원
	assert.Equal(t, 3, r.BroadcastToBoard("b1", msg, ""))
	assert.Len(t, a.received(), 1)
}

func TestBroadcastSkipsFullQueues(t *testing.T) {
	r := NewRouter()
	slow := &fakeConn{id: "slow", full: true}
	fast := &fakeConn{id: "fast"}
	r.Join(slow, "b1")
	r.Join(fast, "b1")

	n := r.BroadcastToBoard("b1", protocol.NewEnvelope(protocol.EventActiveUsersCount, 2), "")
	assert.Equal(t, 1, n)
	assert.Len(t, fast.received(), 1)
}

func TestLeaveIsIdempotent(t *testing.T) {
	r := NewRouter()
	a := &fakeConn{id: "a"}
	r.Join(a, "b1")

	boardID, ok := r.Leave("a")
	assert.True(t, ok)
	assert.Equal(t, "b1", boardID)

	_, ok = r.Leave("a")
	assert.False(t, ok)
	assert.Equal(t, Stats{}, r.Stats())

	assert.Zero(t, r.BroadcastToBoard("b1", protocol.NewEnvelope(protocol.EventUserLeft, "a"), ""))
}

func TestJoinAnotherBoardMoves(t *testing.T) {
	r := NewRouter()
	a := &fakeConn{id: "a"}

	_, moved := r.Join(a, "b1")
	assert.False(t, moved)

	_, moved = r.Join(a, "b1")
	assert.False(t, moved)

	previous, moved := r.Join(a, "b2")
	require.True(t, moved)
	assert.Equal(t, "b1", previous)
	assert.Empty(t, r.Members("b1"))
	assert.Len(t, r.Members("b2"), 1)

	boardID, ok := r.BoardOf("a")
	assert.True(t, ok)
	assert.Equal(t, "b2", boardID)
}

func TestSendTo(t *testing.T) {
	r := NewRouter()
	a := &fakeConn{id: "a"}
	r.Join(a, "b1")

	assert.True(t, r.SendTo("b1", "a", protocol.NewEnvelope(protocol.EventChatHistory, []string{})))
	assert.False(t, r.SendTo("b2", "a", protocol.NewEnvelope(protocol.EventChatHistory, []string{})))
	assert.Len(t, a.received(), 1)
}

package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeFrame(t *testing.T) {
	t.Run("valid draw", func(t *testing.T) {
		f, err := DecodeFrame([]byte(`{"event":"draw-element","boardId":"b1","data":{"id":"e1","type":"rectangle"}}`))
		require.NoError(t, err)
		assert.Equal(t, EventDrawElement, f.Event)
		assert.Equal(t, "b1", f.BoardID)

		id, raw, err := f.Element()
		require.NoError(t, err)
		assert.Equal(t, "e1", id)
		assert.JSONEq(t, `{"id":"e1","type":"rectangle"}`, string(raw))
	})

	t.Run("malformed json", func(t *testing.T) {
		_, err := DecodeFrame([]byte(`{"event":`))
		assert.ErrorIs(t, err, ErrMalformedFrame)
	})

	t.Run("unknown event", func(t *testing.T) {
		_, err := DecodeFrame([]byte(`{"event":"user-joined","boardId":"b1"}`))
		assert.ErrorIs(t, err, ErrUnknownEvent)
	})

	t.Run("missing board", func(t *testing.T) {
		_, err := DecodeFrame([]byte(`{"event":"cursor-move","data":{"x":1,"y":2}}`))
		assert.ErrorIs(t, err, ErrMissingBoard)
	})

	t.Run("board inside data", func(t *testing.T) {
		f, err := DecodeFrame([]byte(`{"event":"zoom-changed","data":{"boardId":"b9","zoomLevel":1.5}}`))
		require.NoError(t, err)
		assert.Equal(t, "b9", f.BoardID)

		zoom, err := f.Zoom()
		require.NoError(t, err)
		assert.Equal(t, 1.5, zoom.ZoomLevel)
	})
}

func TestElementPayloadValidation(t *testing.T) {
	f := Frame{Event: EventDrawElement, BoardID: "b1", Data: json.RawMessage(`{"type":"pencil"}`)}
	_, _, err := f.Element()
	assert.ErrorIs(t, err, ErrMalformedFrame)

	f.Data = nil
	_, _, err = f.Element()
	assert.ErrorIs(t, err, ErrMissingPayload)
}

func TestElementID(t *testing.T) {
	f := Frame{Event: EventDeleteElement, BoardID: "b1", Data: json.RawMessage(`"e1"`)}
	id, err := f.ElementID()
	require.NoError(t, err)
	assert.Equal(t, "e1", id)

	f.Data = json.RawMessage(`{"id":"e2"}`)
	id, err = f.ElementID()
	require.NoError(t, err)
	assert.Equal(t, "e2", id)

	f.Data = json.RawMessage(`""`)
	_, err = f.ElementID()
	assert.Error(t, err)
}

func TestChatText(t *testing.T) {
	f := Frame{Event: EventSendMessage, BoardID: "b1", Data: json.RawMessage(`{"text":"hello"}`)}
	text, err := f.ChatText()
	require.NoError(t, err)
	assert.Equal(t, "hello", text)

	f.Data = json.RawMessage(`"plain"`)
	text, err = f.ChatText()
	require.NoError(t, err)
	assert.Equal(t, "plain", text)
}

func TestJoinWithoutPayload(t *testing.T) {
	f := Frame{Event: EventJoinBoard, BoardID: "b1", Data: json.RawMessage(`null`)}
	p, err := f.Join()
	require.NoError(t, err)
	assert.Empty(t, p.Name)
}

func TestEnvelopeShape(t *testing.T) {
	raw, err := json.Marshal(NewEnvelope(EventActiveUsersCount, 3))
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"active-users-count","data":3}`, string(raw))
}

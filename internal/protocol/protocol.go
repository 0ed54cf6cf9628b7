// Package protocol 보드 WebSocket 메시지 규약.
//
// 수신 프레임: {"event": "...", "boardId": "...", "data": <payload>}
// 송신 프레임: {"event": "...", "data": <payload>}
package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Event 이벤트 이름
type Event string

// 클라이언트 → 서버
const (
	EventJoinBoard        Event = "join-board"
	EventDrawElement      Event = "draw-element"
	EventUpdateElement    Event = "update-element"
	EventDeleteElement    Event = "delete-element"
	EventCursorMove       Event = "cursor-move"
	EventObjectSelected   Event = "object-selected"
	EventObjectDeselected Event = "object-deselected"
	EventToolChanged      Event = "tool-changed"
	EventGridToggled      Event = "grid-toggled"
	EventZoomChanged      Event = "zoom-changed"
	EventSendMessage      Event = "send-message"
)

// 서버 → 클라이언트
const (
	EventUserJoined       Event = "user-joined"
	EventUserLeft         Event = "user-left"
	EventCursorPositions  Event = "cursor-positions"
	EventActiveUsersCount Event = "active-users-count"
	EventElementDrawn     Event = "element-drawn"
	EventElementUpdated   Event = "element-updated"
	EventElementDeleted   Event = "element-deleted"
	EventChatHistory      Event = "chat-history"
	EventNewMessage       Event = "new-message"
	EventMessageError     Event = "message-error"
)

func (e Event) String() string {
	return string(e)
}

var inbound = map[Event]bool{
	EventJoinBoard:        true,
	EventDrawElement:      true,
	EventUpdateElement:    true,
	EventDeleteElement:    true,
	EventCursorMove:       true,
	EventObjectSelected:   true,
	EventObjectDeselected: true,
	EventToolChanged:      true,
	EventGridToggled:      true,
	EventZoomChanged:      true,
	EventSendMessage:      true,
}

// IsInbound 클라이언트가 보낼 수 있는 이벤트인지
func (e Event) IsInbound() bool {
	return inbound[e]
}

var (
	ErrMalformedFrame = errors.New("malformed frame")
	ErrUnknownEvent   = errors.New("unknown event")
	ErrMissingBoard   = errors.New("missing boardId")
	ErrMissingPayload = errors.New("missing payload")
)

// Frame 수신 프레임
type Frame struct {
	Event   Event           `json:"event"`
	BoardID string          `json:"boardId"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Envelope 송신 프레임
type Envelope struct {
	Event Event `json:"event"`
	Data  any   `json:"data"`
}

// NewEnvelope Envelope 생성
func NewEnvelope(event Event, data any) Envelope {
	return Envelope{Event: event, Data: data}
}

// DecodeFrame 프레임 파싱 및 기본 검증 (이벤트 종류, boardId)
func DecodeFrame(raw []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return Frame{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if !f.Event.IsInbound() {
		return Frame{}, fmt.Errorf("%w: %q", ErrUnknownEvent, f.Event)
	}

	// grid-toggled / zoom-changed는 boardId가 data 안에 올 수 있음
	if f.BoardID == "" && len(f.Data) > 0 {
		var inner struct {
			BoardID string `json:"boardId"`
		}
		if json.Unmarshal(f.Data, &inner) == nil {
			f.BoardID = inner.BoardID
		}
	}
	if f.BoardID == "" {
		return Frame{}, fmt.Errorf("%w: %s", ErrMissingBoard, f.Event)
	}
	return f, nil
}

// HasData payload 존재 여부 (null 제외)
func (f Frame) HasData() bool {
	trimmed := bytes.TrimSpace(f.Data)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}

// Decode payload를 v로 파싱
func (f Frame) Decode(v any) error {
	if !f.HasData() {
		return fmt.Errorf("%w: %s", ErrMissingPayload, f.Event)
	}
	if err := json.Unmarshal(f.Data, v); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformedFrame, f.Event, err)
	}
	return nil
}

package protocol

import (
	"encoding/json"
	"fmt"
	"strings"
)

// JoinPayload join-board 요청 (token이 있으면 검증 시도)
type JoinPayload struct {
	Name   string `json:"name"`
	Color  string `json:"color"`
	Token  string `json:"token,omitempty"`
	UserID string `json:"userId,omitempty"`
}

// Position 커서 좌표
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// GridPayload grid-toggled 송신 payload
type GridPayload struct {
	ShowGrid bool `json:"showGrid"`
}

// ZoomPayload zoom-changed 송신 payload
type ZoomPayload struct {
	ZoomLevel float64 `json:"zoomLevel"`
}

// MessageError 채팅 저장 실패 알림 (보낸 사람에게만)
type MessageError struct {
	Text  string `json:"text"`
	Error string `json:"error"`
}

// Element draw/update payload. id 외 필드는 그대로 중계
func (f Frame) Element() (string, json.RawMessage, error) {
	var el struct {
		ID string `json:"id"`
	}
	if err := f.Decode(&el); err != nil {
		return "", nil, err
	}
	if strings.TrimSpace(el.ID) == "" {
		return "", nil, fmt.Errorf("%w: %s: element id required", ErrMalformedFrame, f.Event)
	}
	return el.ID, f.Data, nil
}

// ElementID delete-element payload. "e1" 또는 {"id":"e1"} 모두 허용
func (f Frame) ElementID() (string, error) {
	var id string
	if err := f.Decode(&id); err != nil {
		var ref struct {
			ID string `json:"id"`
		}
		if err := f.Decode(&ref); err != nil {
			return "", err
		}
		id = ref.ID
	}
	if strings.TrimSpace(id) == "" {
		return "", fmt.Errorf("%w: %s: element id required", ErrMalformedFrame, f.Event)
	}
	return id, nil
}

// ChatText send-message payload. "hi" 또는 {"text":"hi"} 모두 허용
func (f Frame) ChatText() (string, error) {
	var text string
	if err := f.Decode(&text); err == nil {
		return text, nil
	}
	var msg struct {
		Text string `json:"text"`
	}
	if err := f.Decode(&msg); err != nil {
		return "", err
	}
	return msg.Text, nil
}

// Join join-board payload (없으면 빈 게스트)
func (f Frame) Join() (JoinPayload, error) {
	var p JoinPayload
	if !f.HasData() {
		return p, nil
	}
	if err := f.Decode(&p); err != nil {
		return JoinPayload{}, err
	}
	return p, nil
}

// Position cursor-move payload
func (f Frame) Position() (Position, error) {
	var p Position
	if err := f.Decode(&p); err != nil {
		return Position{}, err
	}
	return p, nil
}

// Grid grid-toggled payload
func (f Frame) Grid() (GridPayload, error) {
	var p GridPayload
	if err := f.Decode(&p); err != nil {
		return GridPayload{}, err
	}
	return p, nil
}

// Zoom zoom-changed payload
func (f Frame) Zoom() (ZoomPayload, error) {
	var p ZoomPayload
	if err := f.Decode(&p); err != nil {
		return ZoomPayload{}, err
	}
	return p, nil
}

package collab

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"collabboard-backend/internal/model"
)

// MutationKind 요소 변경 종류
type MutationKind string

const (
	MutationCreate MutationKind = "create"
	MutationUpdate MutationKind = "update"
	MutationDelete MutationKind = "delete"
)

// Mutation 요소 하나에 대한 변경. Payload는 create/update에서 요소 전체 JSON
type Mutation struct {
	Kind      MutationKind
	ElementID string
	Payload   json.RawMessage
}

// ElementState 요소 상태: 없음 → 존재 → 삭제(종료 상태)
type ElementState int

const (
	StateNonExistent ElementState = iota
	StateLive
	StateDeleted
)

func (s ElementState) String() string {
	switch s {
	case StateNonExistent:
		return "non_existent"
	case StateLive:
		return "live"
	case StateDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

type canvasEntry struct {
	element model.Element
	seq     int
}

// Canvas 클라이언트 측 보드 모델과 같은 규칙으로 변경을 적용.
// create는 upsert, 없는 요소의 update/delete는 무시, 삭제된 요소는 되살아나지 않음
type Canvas struct {
	live    map[string]*canvasEntry
	deleted map[string]struct{}
	seq     int

	// id 없는 요소. seq는 바로 앞 id 요소의 seq
	loose []canvasEntry
}

// NewCanvas 초기 요소로 Canvas 생성
func NewCanvas(elements []model.Element) *Canvas {
	c := &Canvas{
		live:    make(map[string]*canvasEntry),
		deleted: make(map[string]struct{}),
	}
	for _, el := range elements {
		c.put(el)
	}
	return c
}

// State 요소 상태
func (c *Canvas) State(id string) ElementState {
	if _, ok := c.deleted[id]; ok {
		return StateDeleted
	}
	if _, ok := c.live[id]; ok {
		return StateLive
	}
	return StateNonExistent
}

// Apply 변경 적용. 상태가 바뀌었거나 내용이 교체되면 true
func (c *Canvas) Apply(m Mutation) (bool, error) {
	switch m.Kind {
	case MutationCreate, MutationUpdate:
		var el model.Element
		if err := json.Unmarshal(m.Payload, &el); err != nil {
			return false, fmt.Errorf("decode element: %w", err)
		}
		if el.ID == "" {
			el.ID = m.ElementID
		}
		if el.ID == "" {
			return false, errors.New("element id is required")
		}
		switch c.State(el.ID) {
		case StateDeleted:
			return false, nil
		case StateNonExistent:
			if m.Kind == MutationUpdate {
				return false, nil
			}
		}
		c.put(el)
		return true, nil

	case MutationDelete:
		if c.State(m.ElementID) != StateLive {
			return false, nil
		}
		delete(c.live, m.ElementID)
		c.deleted[m.ElementID] = struct{}{}
		return true, nil
	}
	return false, fmt.Errorf("unknown mutation %q", m.Kind)
}

// Elements 살아있는 요소 (최초 생성 순). id 없는 요소는 들어온 자리 그대로
func (c *Canvas) Elements() []model.Element {
	ordered := make([]*canvasEntry, 0, len(c.live))
	for _, e := range c.live {
		ordered = append(ordered, e)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].seq < ordered[j].seq })

	out := make([]model.Element, 0, len(ordered)+len(c.loose))
	loose := c.loose
	for _, e := range ordered {
		for len(loose) > 0 && loose[0].seq < e.seq {
			out = append(out, loose[0].element)
			loose = loose[1:]
		}
		out = append(out, e.element)
	}
	for _, e := range loose {
		out = append(out, e.element)
	}
	return model.CloneElements(out)
}

// put 기존 위치 유지하며 내용만 교체
func (c *Canvas) put(el model.Element) {
	if el.ID == "" {
		c.loose = append(c.loose, canvasEntry{element: el, seq: c.seq})
		return
	}
	if existing, ok := c.live[el.ID]; ok {
		existing.element = el
		return
	}
	c.seq++
	c.live[el.ID] = &canvasEntry{element: el, seq: c.seq}
}

// Normalize 저장 직전 요소 배열 정리: Canvas에 순서대로 create한 결과.
// 같은 id는 마지막 내용이 첫 위치를 차지하고 id 없는 요소는 그대로 유지
func Normalize(elements []model.Element) []model.Element {
	return NewCanvas(elements).Elements()
}

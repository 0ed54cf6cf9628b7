package model

import (
	"time"

	"gorm.io/datatypes"
)

// ElementType 도형 종류 (클라이언트가 정의, 서버는 해석하지 않음)
type ElementType string

const (
	ElementPencil    ElementType = "pencil"
	ElementLine      ElementType = "line"
	ElementRectangle ElementType = "rectangle"
	ElementEllipse   ElementType = "ellipse"
	ElementText      ElementType = "text"
)

func (t ElementType) String() string {
	return string(t)
}

// Element 보드 위의 단일 요소. Data는 불투명한 JSON
type Element struct {
	ID        string         `json:"id"`
	Type      ElementType    `json:"type"`
	Data      datatypes.JSON `json:"data"`
	CreatedAt time.Time      `json:"createdAt"`
}

// CloneElements 요소 배열 깊은 복사 (nil이면 빈 배열)
func CloneElements(in []Element) []Element {
	out := make([]Element, len(in))
	for i, el := range in {
		out[i] = el
		if el.Data != nil {
			out[i].Data = append(datatypes.JSON(nil), el.Data...)
		}
	}
	return out
}

// DefaultCreatedAt createdAt이 비어있는 요소에 now 지정
func DefaultCreatedAt(elements []Element, now time.Time) {
	for i := range elements {
		if elements[i].CreatedAt.IsZero() {
			elements[i].CreatedAt = now
		}
	}
}

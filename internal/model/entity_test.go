package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"gorm.io/datatypes"
)

func TestBoardTouchAlwaysAdvances(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	b := &Board{UpdatedAt: now}

	b.Touch(now)
	assert.True(t, b.UpdatedAt.After(now))

	prev := b.UpdatedAt
	b.Touch(now.Add(-time.Hour))
	assert.True(t, b.UpdatedAt.After(prev))

	later := now.Add(time.Hour)
	b.Touch(later)
	assert.Equal(t, later, b.UpdatedAt)
}

func TestBoardCloneIsDeep(t *testing.T) {
	b := &Board{
		ID:       "b1",
		Elements: []Element{{ID: "e1", Type: ElementPencil, Data: datatypes.JSON(`{"x":1}`)}},
	}

	c := b.Clone()
	c.Elements[0].Data[2] = 'y'
	c.Elements = append(c.Elements, Element{ID: "e2"})

	assert.JSONEq(t, `{"x":1}`, string(b.Elements[0].Data))
	assert.Len(t, b.Elements, 1)
}

func TestCloneElementsNeverNil(t *testing.T) {
	assert.NotNil(t, CloneElements(nil))
	assert.Empty(t, CloneElements(nil))
}

func TestDefaultCreatedAt(t *testing.T) {
	now := time.Now()
	set := now.Add(-time.Minute)
	elements := []Element{{ID: "a"}, {ID: "b", CreatedAt: set}}

	DefaultCreatedAt(elements, now)

	assert.Equal(t, now, elements[0].CreatedAt)
	assert.Equal(t, set, elements[1].CreatedAt)
}

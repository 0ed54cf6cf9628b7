package collab

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"collabboard-backend/internal/model"
)

func payload(id, data string) json.RawMessage {
	return json.RawMessage(`{"id":"` + id + `","type":"rectangle","data":` + data + `}`)
}

func TestCreateIsUpsert(t *testing.T) {
	c := NewCanvas(nil)

	changed, err := c.Apply(Mutation{Kind: MutationCreate, ElementID: "e1", Payload: payload("e1", `{"w":1}`)})
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = c.Apply(Mutation{Kind: MutationCreate, ElementID: "e1", Payload: payload("e1", `{"w":2}`)})
	require.NoError(t, err)
	assert.True(t, changed)

	elements := c.Elements()
	require.Len(t, elements, 1)
	assert.JSONEq(t, `{"w":2}`, string(elements[0].Data))
}

func TestDeleteIsAbsorbing(t *testing.T) {
	c := NewCanvas([]model.Element{{ID: "e1", Type: model.ElementPencil}})
	assert.Equal(t, StateLive, c.State("e1"))

	changed, err := c.Apply(Mutation{Kind: MutationDelete, ElementID: "e1"})
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, StateDeleted, c.State("e1"))

	for _, m := range []Mutation{
		{Kind: MutationUpdate, ElementID: "e1", Payload: payload("e1", `{"late":true}`)},
		{Kind: MutationCreate, ElementID: "e1", Payload: payload("e1", `{"again":true}`)},
		{Kind: MutationDelete, ElementID: "e1"},
	} {
		changed, err := c.Apply(m)
		require.NoError(t, err)
		assert.False(t, changed, "%s after delete", m.Kind)
	}
	assert.Empty(t, c.Elements())
}

func TestMissingElementIsNoop(t *testing.T) {
	c := NewCanvas(nil)

	changed, err := c.Apply(Mutation{Kind: MutationUpdate, ElementID: "ghost", Payload: payload("ghost", `{}`)})
	require.NoError(t, err)
	assert.False(t, changed)

	changed, err = c.Apply(Mutation{Kind: MutationDelete, ElementID: "ghost"})
	require.NoError(t, err)
	assert.False(t, changed)

	assert.Equal(t, StateNonExistent, c.State("ghost"))
}

func TestUpdateKeepsPosition(t *testing.T) {
	c := NewCanvas([]model.Element{{ID: "a"}, {ID: "b"}, {ID: "c"}})

	_, err := c.Apply(Mutation{Kind: MutationUpdate, ElementID: "a", Payload: payload("a", `{"moved":true}`)})
	require.NoError(t, err)

	elements := c.Elements()
	require.Len(t, elements, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{elements[0].ID, elements[1].ID, elements[2].ID})
	assert.JSONEq(t, `{"moved":true}`, string(elements[0].Data))
}

func TestApplyErrors(t *testing.T) {
	c := NewCanvas(nil)

	_, err := c.Apply(Mutation{Kind: MutationCreate, ElementID: "x", Payload: json.RawMessage(`not json`)})
	assert.Error(t, err)

	_, err = c.Apply(Mutation{Kind: "resize", ElementID: "x"})
	assert.Error(t, err)
}

func TestNormalize(t *testing.T) {
	in := []model.Element{
		{ID: "a", Data: datatypes.JSON(`1`)},
		{ID: "b", Data: datatypes.JSON(`2`)},
		{ID: "", Data: datatypes.JSON(`"anon"`)},
		{ID: "a", Data: datatypes.JSON(`3`)},
	}

	out := Normalize(in)
	require.Len(t, out, 3)
	assert.Equal(t, "a", out[0].ID)
	assert.JSONEq(t, `3`, string(out[0].Data))
	assert.Equal(t, "b", out[1].ID)
	assert.Equal(t, "", out[2].ID)
}

func TestNormalizeKeepsLooseElementsInPlace(t *testing.T) {
	in := []model.Element{
		{ID: "", Data: datatypes.JSON(`"first"`)},
		{ID: "a", Data: datatypes.JSON(`1`)},
		{ID: "", Data: datatypes.JSON(`"middle"`)},
		{ID: "b", Data: datatypes.JSON(`2`)},
		{ID: "a", Data: datatypes.JSON(`3`)},
		{ID: "", Data: datatypes.JSON(`"last"`)},
	}

	out := Normalize(in)
	require.Len(t, out, 5)
	got := make([]string, 0, len(out))
	for _, el := range out {
		got = append(got, string(el.Data))
	}
	assert.Equal(t, []string{`"first"`, `3`, `"middle"`, `2`, `"last"`}, got)

	// 입력은 건드리지 않음
	assert.Equal(t, `1`, string(in[1].Data))
}

func TestNormalizeMatchesCanvasReplay(t *testing.T) {
	c := NewCanvas(nil)
	for _, m := range []Mutation{
		{Kind: MutationCreate, ElementID: "a", Payload: payload("a", `{"v":1}`)},
		{Kind: MutationCreate, ElementID: "b", Payload: payload("b", `{"v":1}`)},
		{Kind: MutationCreate, ElementID: "a", Payload: payload("a", `{"v":2}`)},
	} {
		_, err := c.Apply(m)
		require.NoError(t, err)
	}

	replayed := c.Elements()
	saved := Normalize([]model.Element{
		{ID: "a", Type: model.ElementRectangle, Data: datatypes.JSON(`{"v":1}`)},
		{ID: "b", Type: model.ElementRectangle, Data: datatypes.JSON(`{"v":1}`)},
		{ID: "a", Type: model.ElementRectangle, Data: datatypes.JSON(`{"v":2}`)},
	})
	require.Len(t, saved, len(replayed))
	for i := range saved {
		assert.Equal(t, replayed[i].ID, saved[i].ID)
		assert.JSONEq(t, string(replayed[i].Data), string(saved[i].Data))
	}
	assert.Empty(t, Normalize(nil))
}

func TestApplyRequiresElementID(t *testing.T) {
	c := NewCanvas(nil)
	_, err := c.Apply(Mutation{Kind: MutationCreate, Payload: json.RawMessage(`{"type":"pencil"}`)})
	assert.Error(t, err)
	assert.Empty(t, c.Elements())
}

package inventory

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContainer_TakeClampsAndClears(t *testing.T) {
	c := NewContainer(3, 3)
	c.Set(0, 0, &Item{Type: "dirt", Count: 3})

	taken := c.Take(0, 0, 5)
	require.NotNil(t, taken, "из непустого слота должен вернуться предмет")
	assert.Equal(t, "dirt", taken.Type)
	assert.Equal(t, 3, taken.Count, "количество должно ограничиваться наличием")
	assert.Nil(t, c.Get(0, 0), "слот должен опустеть")
}

func TestContainer_TakeEdgeCases(t *testing.T) {
	c := NewContainer(2, 2)
	assert.Nil(t, c.Take(0, 0, 1), "взятие из пустого слота ничего не возвращает")

	c.Set(1, 1, &Item{Type: "stone", Count: 4})
	assert.Nil(t, c.Take(1, 1, 0), "нулевое количество ничего не берёт")
	assert.Nil(t, c.Take(5, 5, 1), "координаты вне сетки")

	part := c.Take(1, 1, 1)
	require.NotNil(t, part)
	assert.Equal(t, 1, part.Count)
	assert.Equal(t, 3, c.Get(1, 1).Count)
}

func TestContainer_PutMergeAndReject(t *testing.T) {
	c := NewContainer(2, 1)
	var events []int
	c.OnChange = func(delta, x, y int, it *Item) { events = append(events, delta) }

	assert.True(t, c.Put(0, 0, &Item{Type: "dirt", Count: 2}))
	assert.True(t, c.Put(0, 0, &Item{Type: "dirt", Count: 5}))
	assert.Equal(t, 7, c.Get(0, 0).Count, "одинаковые типы сливаются")

	assert.False(t, c.Put(0, 0, &Item{Type: "stone", Count: 1}), "другой тип отклоняется")
	assert.Equal(t, "dirt", c.Get(0, 0).Type)
	assert.Equal(t, []int{1, 1}, events, "хук вызывается только для успешных добавлений")
}

func TestContainer_PutCopiesItem(t *testing.T) {
	c := NewContainer(1, 1)
	it := &Item{Type: "torch", Count: 2}
	c.Put(0, 0, it)
	it.Count = 100
	assert.Equal(t, 2, c.Get(0, 0).Count, "контейнер хранит собственную копию")
}

func TestContainer_AddPrefersMerge(t *testing.T) {
	c := NewContainer(3, 2)
	c.Set(2, 1, &Item{Type: "dirt", Count: 1})

	require.True(t, c.Add(&Item{Type: "dirt", Count: 4}))
	assert.Nil(t, c.Get(0, 0), "пустой слот не занимается, пока есть стопка того же типа")
	assert.Equal(t, 5, c.Get(2, 1).Count)

	require.True(t, c.Add(&Item{Type: "stone", Count: 1}))
	assert.Equal(t, "stone", c.Get(0, 0).Type, "новый тип занимает первый пустой слот по строкам")
}

func TestContainer_AddFull(t *testing.T) {
	c := NewContainer(1, 1)
	require.True(t, c.Add(&Item{Type: "dirt", Count: 1}))
	assert.False(t, c.Add(&Item{Type: "stone", Count: 1}), "в полный контейнер нельзя добавить новый тип")
}

func TestContainer_InvariantsUnderRandomOps(t *testing.T) {
	c := NewContainer(3, 3)
	types := []string{"dirt", "stone", "torch"}
	for i := 0; i < 500; i++ {
		x, y := i%3, (i/3)%3
		switch i % 4 {
		case 0, 1:
			c.Put(x, y, &Item{Type: types[i%len(types)], Count: i%5 + 1})
		case 2:
			c.Take(x, y, i%7)
		case 3:
			c.Add(&Item{Type: types[(i/2)%len(types)], Count: 2})
		}
		for yy := 0; yy < 3; yy++ {
			for xx := 0; xx < 3; xx++ {
				if it := c.Get(xx, yy); it != nil {
					require.Greater(t, it.Count, 0, "в слоте не может быть неположительного количества")
				}
			}
		}
	}
}

func TestContainer_RecordRoundTrip(t *testing.T) {
	c := NewContainer(2, 2)
	c.Set(1, 0, &Item{Type: "dirt", Count: 3})

	data, err := json.Marshal(c.Record())
	require.NoError(t, err)
	assert.JSONEq(t, `[["None", {"type": "dirt", "count": 3}], ["None", "None"]]`, string(data))

	var rec GridRecord
	require.NoError(t, json.Unmarshal(data, &rec))

	other := NewContainer(2, 2)
	require.NoError(t, other.Load(rec, nil))
	assert.Equal(t, 3, other.Get(1, 0).Count)
	assert.Nil(t, other.Get(0, 0))

	assert.ErrorIs(t, NewContainer(3, 3).Load(rec, nil), ErrShapeMismatch)
}

func TestContainer_LoadUnknownType(t *testing.T) {
	rec := GridRecord{{Slot{Item: &Item{Type: "unobtainium", Count: 1}}}}
	factory := func(tag string, count int) *Item { return nil }
	err := NewContainer(1, 1).Load(rec, factory)
	assert.ErrorIs(t, err, ErrUnknownItem)
}

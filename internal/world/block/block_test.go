package block

import (
	"encoding/json"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/annel0/tileworld/internal/vec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_DefaultsLoaded(t *testing.T) {
	for _, tag := range []string{Empty, Grass, Dirt, Stone, Bedrock, OrigWood, Leaves, GoldOre, IronOre, CoalOre, DiamondOre, RedstoneOre, "torch", "workbench"} {
		assert.True(t, IsValidType(tag), "встроенный тип %s должен быть зарегистрирован", tag)
	}
	assert.NotEmpty(t, Recipes(), "встроенные рецепты должны быть загружены")

	bedrock, _ := Lookup(Bedrock)
	assert.False(t, bedrock.Breakable(), "бедрок неразрушаем")
	torch, _ := Lookup("torch")
	assert.Greater(t, torch.Lighting, 0.0, "факел светится")
}

func TestNewState_FreshInstances(t *testing.T) {
	a := MustState(Grass, vec.Vec2{X: 1, Y: 2})
	b := MustState(Grass, vec.Vec2{X: 1, Y: 2})
	require.NotNil(t, a.Drop)
	a.Drop.MaxCount = 99
	a.HP = 1
	assert.Equal(t, 1, b.Drop.MaxCount, "экземпляры не разделяют drop")
	tmpl, _ := Lookup(Grass)
	assert.Equal(t, 1, tmpl.Drop.MaxCount, "шаблон не меняется")
	assert.NotEqual(t, a.HP, b.HP)

	_, err := NewState("unobtainium", vec.Vec2{})
	assert.ErrorIs(t, err, ErrUnknownType)
}

func TestDrop_JSONAndRoll(t *testing.T) {
	var d Drop
	require.NoError(t, json.Unmarshal([]byte(`["coal", 1, 2]`), &d))
	assert.Equal(t, Drop{DropType: "coal", MinCount: 1, MaxCount: 2}, d)

	data, err := json.Marshal(d)
	require.NoError(t, err)
	assert.JSONEq(t, `["coal", 1, 2]`, string(data))

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 100; i++ {
		tag, n := d.Roll(rng)
		assert.Equal(t, "coal", tag)
		assert.GreaterOrEqual(t, n, 1)
		assert.LessOrEqual(t, n, 2)
	}

	assert.Error(t, json.Unmarshal([]byte(`["coal", 1]`), &d))
}

func TestDrop_RollAtDeterministic(t *testing.T) {
	d := Drop{DropType: "redstone", MinCount: 2, MaxCount: 4}
	seen := map[int]bool{}
	for x := -20; x < 20; x++ {
		pos := vec.Vec2{X: x, Y: 70}
		tag, n := d.RollAt(42, pos)
		assert.Equal(t, "redstone", tag)
		assert.GreaterOrEqual(t, n, 2)
		assert.LessOrEqual(t, n, 4)

		_, again := d.RollAt(42, pos)
		assert.Equal(t, n, again, "одна клетка - одно количество (%d)", x)
		seen[n] = true
	}
	assert.Len(t, seen, 3, "по разным клеткам выпадает весь диапазон")
	assert.NotEqual(t, dropSeed(42, vec.Vec2{X: 1, Y: 2}), dropSeed(43, vec.Vec2{X: 1, Y: 2}))
	assert.NotEqual(t, dropSeed(42, vec.Vec2{X: 1, Y: 2}), dropSeed(42, vec.Vec2{X: 2, Y: 1}))
}

func TestState_RecordRoundTrip(t *testing.T) {
	s := MustState(Stone, vec.Vec2{X: -4, Y: 60})
	s.HP = 12.5

	data, err := json.Marshal(s.Record())
	require.NoError(t, err)
	assert.Contains(t, string(data), `"worldpos":[-4,60]`)
	assert.Contains(t, string(data), `"drop":["cobblestone",1,1]`)

	var rec Record
	require.NoError(t, json.Unmarshal(data, &rec))
	restored, err := FromRecord(rec)
	require.NoError(t, err)
	assert.Equal(t, s.Type, restored.Type)
	assert.Equal(t, 12.5, restored.HP)
	assert.Equal(t, s.WorldPos, restored.WorldPos)
	require.NotNil(t, restored.Drop)
	assert.Equal(t, *s.Drop, *restored.Drop)

	_, err = FromRecord(Record{Type: "nope"})
	assert.ErrorIs(t, err, ErrUnknownType)
}

func TestState_Damage(t *testing.T) {
	s := MustState(Dirt, vec.Vec2{})
	assert.False(t, s.Damage(10))
	assert.True(t, s.Damage(1000), "при нулевой прочности блок разрушен")

	b := MustState(Bedrock, vec.Vec2{})
	assert.False(t, b.Damage(1e9), "бедрок не разрушается")
}

func TestNewItem(t *testing.T) {
	it := NewItem("stick", 3)
	require.NotNil(t, it)
	assert.True(t, it.IsItem, "палка не ставится как блок")
	assert.False(t, NewItem(Dirt, 1).IsItem)
	assert.Nil(t, NewItem("unobtainium", 1))
}

func TestLoadJSONBlocks_Override(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "blocks"), 0755))
	tmpl := `{"name": "glowstone_test", "is_phys": true, "is_item": false, "transparent": false, "hp": 30, "lighting": 0.8, "drop": ["glowstone_test", 1, 1]}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "blocks", "glowstone_test.json"), []byte(tmpl), 0644))

	require.NoError(t, LoadJSONBlocks(dir))
	got, ok := Lookup("glowstone_test")
	require.True(t, ok)
	assert.Equal(t, 0.8, got.Lighting)

	assert.True(t, os.IsNotExist(LoadJSONBlocks(filepath.Join(dir, "missing"))))
}

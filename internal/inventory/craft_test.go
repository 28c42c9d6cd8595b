package inventory

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRecipes(t *testing.T) []Recipe {
	t.Helper()
	raw := `[
		{"recipe": [[["wood", 1]]], "result": ["planks", 4]},
		{"recipe": [[["planks", 1]], [["planks", 1]]], "result": ["stick", 4]},
		{"recipe": [[["planks", 1], ["planks", 1]], [["planks", 1], ["planks", 1]]], "result": ["workbench", 1]},
		{"recipe": [[["cobblestone", 1], ["cobblestone", 1], ["cobblestone", 1]], [["None", 0], ["stick", 1], ["None", 0]], [["None", 0], ["stick", 1], ["None", 0]]], "result": ["stone_pickaxe", 1]}
	]`
	var recipes []Recipe
	require.NoError(t, json.Unmarshal([]byte(raw), &recipes))
	return recipes
}

func TestMatchRecipe_AnchorsAnywhere(t *testing.T) {
	recipes := testRecipes(t)
	field := NewContainer(2, 2)
	field.Set(1, 1, &Item{Type: "wood", Count: 1})

	anchor, idx, ok := MatchRecipe(recipes, field)
	require.True(t, ok, "одиночный рецепт должен совпасть в любом слоте")
	assert.Equal(t, 0, idx)
	assert.Equal(t, Anchor{Row: 1, Col: 1}, anchor)
}

func TestMatchRecipe_ExtraItemsBreakMatch(t *testing.T) {
	recipes := testRecipes(t)
	field := NewContainer(2, 2)
	field.Set(0, 0, &Item{Type: "wood", Count: 1})
	field.Set(1, 1, &Item{Type: "dirt", Count: 1})

	_, _, ok := MatchRecipe(recipes, field)
	assert.False(t, ok, "лишние предметы на поле не допускаются")
}

func TestMatchRecipe_VerticalAndCounts(t *testing.T) {
	recipes := testRecipes(t)
	field := NewContainer(2, 2)
	field.Set(1, 0, &Item{Type: "planks", Count: 2})
	field.Set(1, 1, &Item{Type: "planks", Count: 1})

	anchor, idx, ok := MatchRecipe(recipes, field)
	require.True(t, ok)
	assert.Equal(t, 1, idx, "две доски по вертикали дают палки")
	assert.Equal(t, Anchor{Row: 0, Col: 1}, anchor)
}

func TestMatchRecipe_PatternTooWide(t *testing.T) {
	recipes := testRecipes(t)
	field := NewContainer(2, 2)
	field.Set(0, 0, &Item{Type: "cobblestone", Count: 1})
	field.Set(1, 0, &Item{Type: "cobblestone", Count: 1})

	_, _, ok := MatchRecipe(recipes, field)
	assert.False(t, ok, "шаблон 3×3 не помещается в поле 2×2")
}

func TestMatchRecipe_EmptyCellsRequired(t *testing.T) {
	recipes := testRecipes(t)
	field := NewContainer(3, 3)
	for x := 0; x < 3; x++ {
		field.Set(x, 0, &Item{Type: "cobblestone", Count: 1})
	}
	field.Set(1, 1, &Item{Type: "stick", Count: 1})
	field.Set(1, 2, &Item{Type: "stick", Count: 1})

	_, idx, ok := MatchRecipe(recipes, field)
	require.True(t, ok)
	assert.Equal(t, 3, idx)

	field.Set(0, 2, &Item{Type: "stick", Count: 1})
	_, _, ok = MatchRecipe(recipes, field)
	assert.False(t, ok, "ячейка None должна быть пустой")
}

func TestMatchRecipe_Idempotent(t *testing.T) {
	recipes := testRecipes(t)
	field := NewContainer(2, 2)
	for x := 0; x < 2; x++ {
		for y := 0; y < 2; y++ {
			field.Set(x, y, &Item{Type: "planks", Count: 1})
		}
	}
	a1, i1, ok1 := MatchRecipe(recipes, field)
	a2, i2, ok2 := MatchRecipe(recipes, field)
	assert.Equal(t, ok1, ok2)
	assert.Equal(t, a1, a2)
	assert.Equal(t, i1, i2)
	assert.Equal(t, 2, i1)
}

func TestCraftModel_ResultAndConsumption(t *testing.T) {
	cm := NewCraftModel(2, 2, testRecipes(t), nil)

	require.True(t, cm.Field.Put(0, 0, &Item{Type: "wood", Count: 2}))
	res := cm.Result.Get(0, 0)
	require.NotNil(t, res, "результат должен появиться после укладки ингредиентов")
	assert.Equal(t, "planks", res.Type)
	assert.Equal(t, 4, res.Count)

	taken := cm.Result.Take(0, 0, res.Count)
	require.NotNil(t, taken)
	assert.Equal(t, 4, taken.Count)
	assert.Equal(t, 1, cm.Field.Get(0, 0).Count, "одно бревно списано")
	require.NotNil(t, cm.Result.Get(0, 0), "оставшегося бревна хватает на ещё один крафт")

	cm.Result.Take(0, 0, 4)
	assert.Nil(t, cm.Field.Get(0, 0))
	assert.Nil(t, cm.Result.Get(0, 0), "ингредиенты закончились")
}

func TestCraftModel_LoadRecomputesResult(t *testing.T) {
	cm := NewCraftModel(2, 2, testRecipes(t), nil)
	rec := GridRecord{
		{Slot{Item: &Item{Type: "planks", Count: 1}}, Slot{Item: &Item{Type: "planks", Count: 1}}},
		{Slot{Item: &Item{Type: "planks", Count: 1}}, Slot{Item: &Item{Type: "planks", Count: 1}}},
	}
	require.NoError(t, cm.Load(rec))
	require.NotNil(t, cm.Result.Get(0, 0))
	assert.Equal(t, "workbench", cm.Result.Get(0, 0).Type)
}

func TestCraftModel_FactoryMarksItems(t *testing.T) {
	factory := func(tag string, count int) *Item {
		return &Item{Type: tag, Count: count, IsItem: tag == "stick"}
	}
	cm := NewCraftModel(2, 2, testRecipes(t), factory)
	cm.Field.Put(0, 0, &Item{Type: "planks", Count: 1})
	cm.Field.Put(0, 1, &Item{Type: "planks", Count: 1})
	require.NotNil(t, cm.Result.Get(0, 0))
	assert.True(t, cm.Result.Get(0, 0).IsItem)
}

package vec

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFloorDivMod(t *testing.T) {
	cases := []struct {
		a, b, div, mod int
	}{
		{7, 2, 3, 1},
		{-7, 2, -4, 1},
		{-1, 2, -1, 1},
		{0, 2, 0, 0},
		{-4, 2, -2, 0},
		{7, -2, -4, -1},
	}
	for _, c := range cases {
		assert.Equal(t, c.div, FloorDiv(c.a, c.b), "FloorDiv(%d, %d)", c.a, c.b)
		assert.Equal(t, c.mod, FloorMod(c.a, c.b), "FloorMod(%d, %d)", c.a, c.b)
	}
}

func TestVec2FloatToVec2(t *testing.T) {
	assert.Equal(t, Vec2{X: -1, Y: 2}, Vec2Float{X: -0.5, Y: 2.9}.ToVec2(), "отрицательные координаты округляются вниз")
}

// Package assets содержит встроенные описания блоков и рецептов.
package assets

import "embed"

// Files хранит каталоги blocks/ и recipes/
//
//go:embed blocks/*.json recipes/*.json
var Files embed.FS

const (
	BlocksDir  = "blocks"
	RecipesDir = "recipes"
)

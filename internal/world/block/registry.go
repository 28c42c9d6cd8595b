package block

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/annel0/tileworld/internal/assets"
	"github.com/annel0/tileworld/internal/inventory"
)

// Теги, на которые опирается генератор мира
const (
	Empty       = "empty"
	Grass       = "grass"
	Dirt        = "dirt"
	Stone       = "stone"
	Bedrock     = "bedrock"
	OrigWood    = "orig_wood"
	Leaves      = "leaves"
	GoldOre     = "gold_ore"
	IronOre     = "iron_ore"
	CoalOre     = "coal_ore"
	DiamondOre  = "diamond_ore"
	RedstoneOre = "redstone_ore"
)

// ErrUnknownType возвращается для тега, отсутствующего в реестре
var ErrUnknownType = errors.New("неизвестный тип блока")

var (
	mu        sync.RWMutex
	templates = make(map[string]*Template)
	behaviors = make(map[string]Behavior)
	recipes   []inventory.Recipe
)

func init() {
	if err := LoadFS(assets.Files, assets.BlocksDir, assets.RecipesDir); err != nil {
		panic(fmt.Sprintf("встроенные описания блоков повреждены: %v", err))
	}
}

// Register добавляет поведение для тега поведения
func Register(tag string, behavior Behavior) {
	mu.Lock()
	defer mu.Unlock()
	behaviors[tag] = behavior
}

// RegisterTemplate добавляет или заменяет шаблон типа
func RegisterTemplate(t *Template) {
	mu.Lock()
	defer mu.Unlock()
	templates[t.Name] = t
}

// Lookup возвращает шаблон по тегу
func Lookup(tag string) (*Template, bool) {
	mu.RLock()
	defer mu.RUnlock()
	t, ok := templates[tag]
	return t, ok
}

// IsValidType проверяет, зарегистрирован ли тег
func IsValidType(tag string) bool {
	_, ok := Lookup(tag)
	return ok
}

// Types возвращает отсортированный список зарегистрированных тегов
func Types() []string {
	mu.RLock()
	defer mu.RUnlock()
	res := make([]string, 0, len(templates))
	for name := range templates {
		res = append(res, name)
	}
	sort.Strings(res)
	return res
}

// BehaviorFor возвращает поведение типа; для типов без поведения BaseBehavior
func BehaviorFor(tag string) Behavior {
	mu.RLock()
	defer mu.RUnlock()
	key := tag
	if t, ok := templates[tag]; ok && t.Behavior != "" {
		key = t.Behavior
	}
	if b, ok := behaviors[key]; ok {
		return b
	}
	return BaseBehavior{}
}

// Recipes возвращает загруженные рецепты в порядке загрузки
func Recipes() []inventory.Recipe {
	mu.RLock()
	defer mu.RUnlock()
	return recipes
}

// SetRecipes заменяет список рецептов
func SetRecipes(list []inventory.Recipe) {
	mu.Lock()
	defer mu.Unlock()
	recipes = list
}

// LoadJSONBlocks загружает описания блоков из <dir>/blocks и рецепты из <dir>/recipes,
// дополняя встроенные. Отсутствующий каталог рецептов не считается ошибкой.
func LoadJSONBlocks(dir string) error {
	if _, err := os.Stat(dir); err != nil {
		return err
	}
	fsys := os.DirFS(dir)
	recipesDir := assets.RecipesDir
	if _, err := fs.Stat(fsys, recipesDir); err != nil {
		recipesDir = ""
	}
	return LoadFS(fsys, assets.BlocksDir, recipesDir)
}

// LoadFS загружает шаблоны и рецепты из файловой системы. Рецепты из
// recipesDir добавляются к уже загруженным; пустой recipesDir пропускается.
func LoadFS(fsys fs.FS, blocksDir, recipesDir string) error {
	loaded, err := readJSONDir[Template](fsys, blocksDir)
	if err != nil {
		return fmt.Errorf("ошибка загрузки блоков: %w", err)
	}
	for i := range loaded {
		t := loaded[i]
		if t.Name == "" {
			return fmt.Errorf("ошибка загрузки блоков: пустое имя шаблона")
		}
		RegisterTemplate(&t)
	}

	if recipesDir == "" {
		return nil
	}
	list, err := readJSONDir[inventory.Recipe](fsys, recipesDir)
	if err != nil {
		return fmt.Errorf("ошибка загрузки рецептов: %w", err)
	}
	mu.Lock()
	recipes = append(recipes, list...)
	mu.Unlock()
	return nil
}

func readJSONDir[T any](fsys fs.FS, dir string) ([]T, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, err
	}
	var res []T
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		data, err := fs.ReadFile(fsys, path.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		var v T
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, fmt.Errorf("%s: %w", e.Name(), err)
		}
		res = append(res, v)
	}
	return res, nil
}

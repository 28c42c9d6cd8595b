package inventory

import "fmt"

// Размеры инвентаря игрока по умолчанию
const (
	DefaultWidth  = 9
	DefaultHeight = 3
	CraftSize     = 2
)

// SelectHook вызывается при смене выбранного предмета панели
type SelectHook func(was, now *Item)

// Inventory основной контейнер, панель быстрого доступа, сетка крафта 2×2 и буфер.
// Строка YSize адресует панель, строки 0..YSize-1 основной контейнер.
type Inventory struct {
	XSize int
	YSize int

	Main   *Container
	Bar    *Container
	Craft  *CraftModel
	Buffer *Buffer

	OnSelect SelectHook

	selected int
	active   *Item // последний предмет, о выборе которого сообщили хуку
	factory  ItemFactory
}

// Record сериализованный инвентарь
type Record struct {
	XSize  int        `json:"x_size"`
	YSize  int        `json:"y_size"`
	Main   GridRecord `json:"main"`
	Bar    GridRecord `json:"bar"`
	Buffer Slot       `json:"buffer"`
	Craft  GridRecord `json:"craft"`
}

// NewInventory создаёт пустой инвентарь
func NewInventory(xSize, ySize int, recipes []Recipe, factory ItemFactory) *Inventory {
	inv := &Inventory{
		XSize:   xSize,
		YSize:   ySize,
		Main:    NewContainer(xSize, ySize),
		Bar:     NewContainer(xSize, 1),
		Craft:   NewCraftModel(CraftSize, CraftSize, recipes, factory),
		Buffer:  &Buffer{},
		factory: factory,
	}
	inv.Bar.OnChange = func(int, int, int, *Item) { inv.syncSelection() }
	return inv
}

// Get возвращает предмет; y == YSize адресует панель
func (inv *Inventory) Get(x, y int) *Item {
	if y == inv.YSize {
		return inv.Bar.Get(x, 0)
	}
	return inv.Main.Get(x, y)
}

// SelectedIndex колонка выбранного слота панели
func (inv *Inventory) SelectedIndex() int {
	return inv.selected
}

// Selected выбранный предмет панели или nil
func (inv *Inventory) Selected() *Item {
	return inv.Bar.Get(inv.selected, 0)
}

// SelectedType тип выбранного предмета или "None"
func (inv *Inventory) SelectedType() string {
	if it := inv.Selected(); it != nil {
		return it.Type
	}
	return EmptySlot
}

// SetSelected выбирает колонку панели и вызывает хук смены выбора
func (inv *Inventory) SetSelected(col int) {
	if col < 0 || col >= inv.XSize {
		return
	}
	inv.selected = col
	inv.syncSelection()
}

// Scroll сдвигает выбор по кругу
func (inv *Inventory) Scroll(delta int) {
	col := ((inv.selected+delta)%inv.XSize + inv.XSize) % inv.XSize
	inv.SetSelected(col)
}

// syncSelection сообщает хуку, если предмет в выбранном слоте сменился
func (inv *Inventory) syncSelection() {
	now := inv.Selected()
	if now == inv.active {
		return
	}
	was := inv.active
	inv.active = now
	if inv.OnSelect != nil {
		inv.OnSelect(was, now)
	}
}

// ConsumeSelected списывает один выбранный предмет (установка блока)
func (inv *Inventory) ConsumeSelected() *Item {
	return inv.Bar.Take(inv.selected, 0, 1)
}

// FindItem ищет стопку сначала в панели, затем в основном контейнере
func (inv *Inventory) FindItem(tag string) (x, y int, ok bool) {
	if x, _, ok := inv.Bar.Find(tag); ok {
		return x, inv.YSize, true
	}
	return inv.Main.Find(tag)
}

// AddItem добавляет стопку: сначала слияние с такой же стопкой в панели
// или основном контейнере, затем первый пустой слот панели, затем основного.
func (inv *Inventory) AddItem(it *Item) bool {
	if it == nil || it.Count <= 0 {
		return false
	}
	if x, _, ok := inv.Bar.Find(it.Type); ok {
		return inv.Bar.Put(x, 0, it)
	}
	if x, y, ok := inv.Main.Find(it.Type); ok {
		return inv.Main.Put(x, y, it)
	}
	if x, _, ok := inv.Bar.FirstEmpty(); ok {
		return inv.Bar.Put(x, 0, it)
	}
	if x, y, ok := inv.Main.FirstEmpty(); ok {
		return inv.Main.Put(x, y, it)
	}
	return false
}

// Total количество предметов типа tag во всём инвентаре (без буфера и крафта)
func (inv *Inventory) Total(tag string) int {
	return inv.Bar.Total(tag) + inv.Main.Total(tag)
}

// Record сохраняет инвентарь
func (inv *Inventory) Record() Record {
	return Record{
		XSize:  inv.XSize,
		YSize:  inv.YSize,
		Main:   inv.Main.Record(),
		Bar:    inv.Bar.Record(),
		Buffer: inv.Buffer.Record(),
		Craft:  inv.Craft.Record(),
	}
}

// Load заменяет содержимое инвентаря. Размеры должны совпадать.
func (inv *Inventory) Load(rec Record) error {
	if rec.XSize != inv.XSize || rec.YSize != inv.YSize {
		return fmt.Errorf("%w: %dx%d вместо %dx%d", ErrShapeMismatch, rec.XSize, rec.YSize, inv.XSize, inv.YSize)
	}
	if err := inv.Main.Load(rec.Main, inv.factory); err != nil {
		return fmt.Errorf("основной контейнер: %w", err)
	}
	if err := inv.Bar.Load(rec.Bar, inv.factory); err != nil {
		return fmt.Errorf("панель: %w", err)
	}
	if err := inv.Craft.Load(rec.Craft); err != nil {
		return fmt.Errorf("крафт: %w", err)
	}
	buf, err := rec.Buffer.materialize(inv.factory)
	if err != nil {
		return fmt.Errorf("буфер: %w", err)
	}
	inv.Buffer.Item = buf
	inv.syncSelection()
	return nil
}

package inventory

// ChangeHook вызывается после изменения слота: delta = -1 для взятия, +1 для добавления
type ChangeHook func(delta, x, y int, item *Item)

// Container фиксированная сетка слотов XSize × YSize.
// Инвариант: в слоте либо nil, либо предмет с Count > 0.
type Container struct {
	XSize    int
	YSize    int
	TakeOnly bool       // в контейнер нельзя класть руками (результат крафта)
	OnChange ChangeHook // хук после Take/Put/Add

	slots [][]*Item
}

// NewContainer создаёт пустой контейнер
func NewContainer(xSize, ySize int) *Container {
	slots := make([][]*Item, ySize)
	for i := range slots {
		slots[i] = make([]*Item, xSize)
	}
	return &Container{XSize: xSize, YSize: ySize, slots: slots}
}

func (c *Container) inBounds(x, y int) bool {
	return x >= 0 && x < c.XSize && y >= 0 && y < c.YSize
}

// Get возвращает предмет в слоте или nil
func (c *Container) Get(x, y int) *Item {
	if !c.inBounds(x, y) {
		return nil
	}
	return c.slots[y][x]
}

// Set записывает слот без вызова хуков. Пустые стопки превращаются в nil.
func (c *Container) Set(x, y int, it *Item) {
	if !c.inBounds(x, y) {
		return
	}
	if it != nil && it.Count <= 0 {
		it = nil
	}
	c.slots[y][x] = it
}

// Take забирает до count предметов из слота (с ограничением по наличию).
// Возвращает nil, если слот пуст или count <= 0.
func (c *Container) Take(x, y, count int) *Item {
	cur := c.Get(x, y)
	if cur == nil || count <= 0 {
		return nil
	}
	if count > cur.Count {
		count = cur.Count
	}
	res := cur.Copy()
	res.Count = count
	cur.Count -= count
	if cur.Count <= 0 {
		c.slots[y][x] = nil
	}
	if c.OnChange != nil {
		c.OnChange(-1, x, y, res)
	}
	return res
}

// Put кладёт стопку в конкретный слот: сливает с тем же типом или занимает пустой.
// Слот с другим типом не меняется, результат false.
func (c *Container) Put(x, y int, it *Item) bool {
	if it == nil || it.Count <= 0 || !c.inBounds(x, y) {
		return false
	}
	cur := c.slots[y][x]
	if cur != nil {
		if cur.Type != it.Type {
			return false
		}
		cur.Count += it.Count
	} else {
		c.slots[y][x] = it.Copy()
	}
	if c.OnChange != nil {
		c.OnChange(1, x, y, it)
	}
	return true
}

// Find ищет первую стопку типа tag в порядке строк
func (c *Container) Find(tag string) (x, y int, ok bool) {
	for y = 0; y < c.YSize; y++ {
		for x = 0; x < c.XSize; x++ {
			if it := c.slots[y][x]; it != nil && it.Type == tag {
				return x, y, true
			}
		}
	}
	return 0, 0, false
}

// FirstEmpty ищет первый пустой слот в порядке строк
func (c *Container) FirstEmpty() (x, y int, ok bool) {
	for y = 0; y < c.YSize; y++ {
		for x = 0; x < c.XSize; x++ {
			if c.slots[y][x] == nil {
				return x, y, true
			}
		}
	}
	return 0, 0, false
}

// Add кладёт стопку в контейнер целиком: сначала в существующую стопку
// того же типа, иначе в первый пустой слот.
func (c *Container) Add(it *Item) bool {
	if it == nil || it.Count <= 0 {
		return false
	}
	if x, y, ok := c.Find(it.Type); ok {
		return c.Put(x, y, it)
	}
	if x, y, ok := c.FirstEmpty(); ok {
		return c.Put(x, y, it)
	}
	return false
}

// Occupied возвращает число занятых слотов
func (c *Container) Occupied() int {
	n := 0
	for _, row := range c.slots {
		for _, it := range row {
			if it != nil {
				n++
			}
		}
	}
	return n
}

// Total считает общее количество предметов типа tag
func (c *Container) Total(tag string) int {
	n := 0
	for _, row := range c.slots {
		for _, it := range row {
			if it != nil && it.Type == tag {
				n += it.Count
			}
		}
	}
	return n
}

// Clear опустошает контейнер без вызова хуков
func (c *Container) Clear() {
	for _, row := range c.slots {
		for x := range row {
			row[x] = nil
		}
	}
}

// Record сохраняет содержимое контейнера
func (c *Container) Record() GridRecord {
	rec := make(GridRecord, c.YSize)
	for y := range rec {
		rec[y] = make([]Slot, c.XSize)
		for x := range rec[y] {
			rec[y][x] = Slot{Item: c.slots[y][x].Copy()}
		}
	}
	return rec
}

// Load заменяет содержимое контейнера сохранённой сеткой. Хуки не вызываются.
func (c *Container) Load(rec GridRecord, factory ItemFactory) error {
	if len(rec) != c.YSize {
		return ErrShapeMismatch
	}
	loaded := make([][]*Item, c.YSize)
	for y, row := range rec {
		if len(row) != c.XSize {
			return ErrShapeMismatch
		}
		loaded[y] = make([]*Item, c.XSize)
		for x, slot := range row {
			it, err := slot.materialize(factory)
			if err != nil {
				return err
			}
			loaded[y][x] = it
		}
	}
	c.slots = loaded
	return nil
}

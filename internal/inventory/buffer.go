package inventory

// Buffer предмет «в руке» при работе с контейнерами мышью
type Buffer struct {
	Item *Item
	// OnInteract вызывается после каждого клика, изменившего состояние
	OnInteract func(c *Container)
}

// LeftClick: взять стопку целиком, положить, слить или обменять
func (b *Buffer) LeftClick(c *Container, x, y int) {
	cur := c.Get(x, y)
	switch {
	case b.Item == nil:
		if cur == nil {
			return
		}
		b.Item = c.Take(x, y, cur.Count)
	case cur == nil:
		if c.TakeOnly {
			return
		}
		c.Put(x, y, b.Item)
		b.Item = nil
	case cur.Type == b.Item.Type:
		if c.TakeOnly {
			taken := c.Take(x, y, cur.Count)
			b.Item.Count += taken.Count
		} else {
			c.Put(x, y, b.Item)
			b.Item = nil
		}
	default:
		if c.TakeOnly {
			return
		}
		taken := c.Take(x, y, cur.Count)
		c.Put(x, y, b.Item)
		b.Item = taken
	}
	b.interacted(c)
}

// RightClick: взять половину стопки или положить один предмет
func (b *Buffer) RightClick(c *Container, x, y int) {
	if c.TakeOnly {
		return
	}
	cur := c.Get(x, y)
	if b.Item == nil {
		if cur == nil {
			return
		}
		b.Item = c.Take(x, y, (cur.Count+1)/2)
	} else {
		if cur != nil && cur.Type != b.Item.Type {
			return
		}
		one := b.Item.Copy()
		one.Count = 1
		c.Put(x, y, one)
		b.Item.Count--
		if b.Item.Count <= 0 {
			b.Item = nil
		}
	}
	b.interacted(c)
}

func (b *Buffer) interacted(c *Container) {
	if b.OnInteract != nil {
		b.OnInteract(c)
	}
}

// Record сохраняет предмет в руке
func (b *Buffer) Record() Slot {
	return Slot{Item: b.Item.Copy()}
}

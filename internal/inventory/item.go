// Package inventory реализует контейнеры предметов, крафт и инвентарь игрока.
package inventory

import (
	"encoding/json"
	"errors"
	"fmt"
)

// EmptySlot сериализованное значение пустого слота
const EmptySlot = "None"

var (
	// ErrUnknownItem возвращается при загрузке предмета неизвестного типа
	ErrUnknownItem = errors.New("неизвестный тип предмета")
	// ErrShapeMismatch возвращается, если размер сохранённой сетки не совпадает с контейнером
	ErrShapeMismatch = errors.New("размер сетки не совпадает с контейнером")
)

// Item стопка предметов одного типа
type Item struct {
	Type   string `json:"type"`
	Count  int    `json:"count"`
	IsItem bool   `json:"-"` // true для предметов, которые нельзя поставить как блок
}

// Copy возвращает независимую копию
func (it *Item) Copy() *Item {
	if it == nil {
		return nil
	}
	c := *it
	return &c
}

// ItemFactory создаёт предмет по тегу типа; nil для неизвестного типа
type ItemFactory func(tag string, count int) *Item

// Slot сериализуемая ячейка контейнера: строка "None" или {type, count}
type Slot struct {
	Item *Item
}

// MarshalJSON реализует json.Marshaler
func (s Slot) MarshalJSON() ([]byte, error) {
	if s.Item == nil {
		return json.Marshal(EmptySlot)
	}
	return json.Marshal(struct {
		Type  string `json:"type"`
		Count int    `json:"count"`
	}{s.Item.Type, s.Item.Count})
}

// UnmarshalJSON реализует json.Unmarshaler
func (s *Slot) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		if str != EmptySlot {
			return fmt.Errorf("неожиданное значение слота %q", str)
		}
		s.Item = nil
		return nil
	}

	var it Item
	if err := json.Unmarshal(data, &it); err != nil {
		return fmt.Errorf("ошибка разбора слота: %w", err)
	}
	s.Item = &it
	return nil
}

// GridRecord сохранённое содержимое контейнера, строки по Y
type GridRecord [][]Slot

func (s Slot) materialize(factory ItemFactory) (*Item, error) {
	if s.Item == nil || s.Item.Count <= 0 {
		return nil, nil
	}
	if factory == nil {
		return s.Item.Copy(), nil
	}
	it := factory(s.Item.Type, s.Item.Count)
	if it == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownItem, s.Item.Type)
	}
	return it, nil
}

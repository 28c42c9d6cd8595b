package storage

import (
	"context"
	"errors"

	"github.com/annel0/tileworld/internal/world/entity"
)

// ErrInvalidName имя игрока пустое
var ErrInvalidName = errors.New("пустое имя игрока")

// PlayerRepo хранит записи игроков между сессиями.
// Записи привязаны к имени: повторный вход с тем же именем продолжает игру.
type PlayerRepo interface {
	// Save сохраняет запись игрока.
	Save(ctx context.Context, name string, rec entity.Record) error

	// Load загружает запись игрока.
	// Возвращает:
	//   bool - false если игрок входит впервые
	Load(ctx context.Context, name string) (entity.Record, bool, error)

	// Delete удаляет запись игрока.
	Delete(ctx context.Context, name string) error

	// BatchSave сохраняет записи нескольких игроков (автосохранение, команда save).
	BatchSave(ctx context.Context, records map[string]entity.Record) error

	// Names возвращает имена всех сохранённых игроков по возрастанию.
	Names(ctx context.Context) ([]string, error)

	Close() error
}

package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/annel0/tileworld/internal/world/entity"
)

// MemoryPlayerRepo реализует PlayerRepo в памяти.
// Используется в тестах и когда постоянное хранилище не настроено.
// ВНИМАНИЕ: Данные теряются при перезапуске сервера!
type MemoryPlayerRepo struct {
	mu   sync.RWMutex
	data map[string]entity.Record
}

// NewMemoryPlayerRepo создает пустой репозиторий
func NewMemoryPlayerRepo() *MemoryPlayerRepo {
	return &MemoryPlayerRepo{
		data: make(map[string]entity.Record),
	}
}

// Save сохраняет запись игрока в памяти.
func (r *MemoryPlayerRepo) Save(ctx context.Context, name string, rec entity.Record) error {
	if name == "" {
		return ErrInvalidName
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.data[name] = rec
	return nil
}

// Load загружает запись игрока из памяти.
func (r *MemoryPlayerRepo) Load(ctx context.Context, name string) (entity.Record, bool, error) {
	if name == "" {
		return entity.Record{}, false, ErrInvalidName
	}
	if err := ctx.Err(); err != nil {
		return entity.Record{}, false, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.data[name]
	return rec, ok, nil
}

// Delete удаляет запись; отсутствие записи не ошибка.
func (r *MemoryPlayerRepo) Delete(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.data, name)
	return nil
}

// BatchSave сохраняет все записи под одной блокировкой.
func (r *MemoryPlayerRepo) BatchSave(ctx context.Context, records map[string]entity.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for name := range records {
		if name == "" {
			return ErrInvalidName
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for name, rec := range records {
		r.data[name] = rec
	}
	return nil
}

// Names возвращает имена сохранённых игроков
func (r *MemoryPlayerRepo) Names(ctx context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.data))
	for name := range r.data {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Count возвращает количество сохранённых игроков (для тестов и мониторинга).
func (r *MemoryPlayerRepo) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.data)
}

// Close ничего не освобождает
func (r *MemoryPlayerRepo) Close() error { return nil }

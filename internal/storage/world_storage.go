package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/dgraph-io/badger/v3"

	"github.com/annel0/tileworld/internal/logging"
	"github.com/annel0/tileworld/internal/world"
	"github.com/annel0/tileworld/internal/world/block"
	"github.com/annel0/tileworld/internal/world/entity"
)

// Префиксы ключей BadgerDB
const (
	metaKey      = "meta"
	changePrefix = "change:"
	playerPrefix = "player:"
)

// ErrNotReady хранилище закрыто
var ErrNotReady = errors.New("хранилище не готово")

// WorldStorage хранит мир сервера в BadgerDB: метаданные,
// по ключу на каждую изменённую клетку и по ключу на игрока.
// Реализует PlayerRepo.
type WorldStorage struct {
	db      *badger.DB
	dbPath  string
	mutex   sync.RWMutex
	isReady bool
}

// Meta метаданные мира
type Meta struct {
	Seed        int64   `json:"seed"`
	StartedTime float64 `json:"started_time"`
	LastID      int     `json:"last_id"`
}

// NewWorldStorage открывает хранилище в каталоге dataPath/world
func NewWorldStorage(dataPath string) (*WorldStorage, error) {
	dbPath := filepath.Join(dataPath, "world")
	opts := badger.DefaultOptions(dbPath)
	opts.Logger = nil // Отключаем логирование BadgerDB

	return openWorldStorage(opts, dbPath)
}

// NewMemoryWorldStorage открывает BadgerDB без диска (тесты, временные серверы)
func NewMemoryWorldStorage() (*WorldStorage, error) {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil

	return openWorldStorage(opts, "")
}

func openWorldStorage(opts badger.Options, dbPath string) (*WorldStorage, error) {
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть BadgerDB: %w", err)
	}

	return &WorldStorage{
		db:      db,
		dbPath:  dbPath,
		isReady: true,
	}, nil
}

// Close закрывает хранилище данных
func (ws *WorldStorage) Close() error {
	ws.mutex.Lock()
	defer ws.mutex.Unlock()

	if !ws.isReady {
		return nil
	}

	ws.isReady = false
	return ws.db.Close()
}

func changeKey(wx, wy int) []byte {
	return []byte(fmt.Sprintf("%s%d:%d", changePrefix, wx, wy))
}

func parseChangeKey(key []byte) (int, int, error) {
	parts := strings.Split(strings.TrimPrefix(string(key), changePrefix), ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("некорректный ключ %q", key)
	}
	wx, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("некорректный ключ %q: %w", key, err)
	}
	wy, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("некорректный ключ %q: %w", key, err)
	}
	return wx, wy, nil
}

// SaveWorld заменяет сохранённый мир: старые клетки удаляются,
// затем записываются метаданные и все клетки ChangeMap.
func (ws *WorldStorage) SaveWorld(data world.SaveData, meta Meta) error {
	ws.mutex.RLock()
	defer ws.mutex.RUnlock()

	if !ws.isReady {
		return ErrNotReady
	}

	meta.Seed = data.Seed
	metaData, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("ошибка сериализации метаданных: %w", err)
	}

	stale, err := ws.keysWithPrefix(changePrefix)
	if err != nil {
		return fmt.Errorf("ошибка чтения клеток: %w", err)
	}

	wb := ws.db.NewWriteBatch()
	defer wb.Cancel()

	for _, key := range stale {
		if err := wb.Delete(key); err != nil {
			return fmt.Errorf("ошибка очистки клеток: %w", err)
		}
	}

	if err := wb.Set([]byte(metaKey), metaData); err != nil {
		return fmt.Errorf("ошибка записи метаданных: %w", err)
	}

	cells := 0
	for wx, column := range data.Changes {
		for wy, rec := range column {
			value, err := json.Marshal(rec)
			if err != nil {
				return fmt.Errorf("ошибка сериализации клетки (%d, %d): %w", wx, wy, err)
			}
			if err := wb.Set(changeKey(wx, wy), value); err != nil {
				return fmt.Errorf("ошибка записи клетки (%d, %d): %w", wx, wy, err)
			}
			cells++
		}
	}

	if err := wb.Flush(); err != nil {
		return fmt.Errorf("ошибка сохранения в BadgerDB: %w", err)
	}

	logging.GetStorageLogger().Debug("💾 Мир сохранён: %d клеток, last_id=%d", cells, meta.LastID)
	return nil
}

// LoadWorld читает мир. false если мир ещё не сохранялся.
func (ws *WorldStorage) LoadWorld() (world.SaveData, Meta, bool, error) {
	ws.mutex.RLock()
	defer ws.mutex.RUnlock()

	data := world.SaveData{Changes: make(map[int]map[int]block.Record)}
	var meta Meta

	if !ws.isReady {
		return data, meta, false, ErrNotReady
	}

	found := true
	err := ws.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(metaKey))
		if err == badger.ErrKeyNotFound {
			found = false
			return nil
		}
		if err != nil {
			return err
		}
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &meta)
		}); err != nil {
			return fmt.Errorf("ошибка десериализации метаданных: %w", err)
		}

		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(changePrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			wx, wy, err := parseChangeKey(item.Key())
			if err != nil {
				return err
			}
			var rec block.Record
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				return fmt.Errorf("ошибка десериализации клетки (%d, %d): %w", wx, wy, err)
			}
			if data.Changes[wx] == nil {
				data.Changes[wx] = make(map[int]block.Record)
			}
			data.Changes[wx][wy] = rec
		}
		return nil
	})
	if err != nil {
		return data, meta, false, fmt.Errorf("ошибка чтения из BadgerDB: %w", err)
	}

	data.Seed = meta.Seed
	return data, meta, found, nil
}

// Save реализует PlayerRepo
func (ws *WorldStorage) Save(ctx context.Context, name string, rec entity.Record) error {
	return ws.BatchSave(ctx, map[string]entity.Record{name: rec})
}

// Load реализует PlayerRepo
func (ws *WorldStorage) Load(ctx context.Context, name string) (entity.Record, bool, error) {
	var rec entity.Record
	if name == "" {
		return rec, false, ErrInvalidName
	}
	if err := ctx.Err(); err != nil {
		return rec, false, err
	}

	ws.mutex.RLock()
	defer ws.mutex.RUnlock()
	if !ws.isReady {
		return rec, false, ErrNotReady
	}

	err := ws.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(playerPrefix + name))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	if err == badger.ErrKeyNotFound {
		return entity.Record{}, false, nil
	}
	if err != nil {
		return entity.Record{}, false, fmt.Errorf("ошибка загрузки игрока %s: %w", name, err)
	}
	return rec, true, nil
}

// Delete реализует PlayerRepo
func (ws *WorldStorage) Delete(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	ws.mutex.RLock()
	defer ws.mutex.RUnlock()
	if !ws.isReady {
		return ErrNotReady
	}

	return ws.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(playerPrefix + name))
	})
}

// BatchSave реализует PlayerRepo одной транзакцией
func (ws *WorldStorage) BatchSave(ctx context.Context, records map[string]entity.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	ws.mutex.RLock()
	defer ws.mutex.RUnlock()
	if !ws.isReady {
		return ErrNotReady
	}

	return ws.db.Update(func(txn *badger.Txn) error {
		for name, rec := range records {
			if name == "" {
				return ErrInvalidName
			}
			data, err := json.Marshal(rec)
			if err != nil {
				return fmt.Errorf("ошибка сериализации игрока %s: %w", name, err)
			}
			if err := txn.Set([]byte(playerPrefix+name), data); err != nil {
				return fmt.Errorf("ошибка сохранения игрока %s: %w", name, err)
			}
		}
		return nil
	})
}

// Names реализует PlayerRepo
func (ws *WorldStorage) Names(ctx context.Context) ([]string, error) {
	ws.mutex.RLock()
	defer ws.mutex.RUnlock()
	if !ws.isReady {
		return nil, ErrNotReady
	}

	keys, err := ws.keysWithPrefix(playerPrefix)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения игроков: %w", err)
	}
	names := make([]string, 0, len(keys))
	for _, key := range keys {
		names = append(names, strings.TrimPrefix(string(key), playerPrefix))
	}
	sort.Strings(names)
	return names, nil
}

// keysWithPrefix копирует ключи с префиксом без чтения значений
func (ws *WorldStorage) keysWithPrefix(prefix string) ([][]byte, error) {
	var keys [][]byte
	err := ws.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	return keys, err
}

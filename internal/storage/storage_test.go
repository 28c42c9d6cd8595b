package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/tileworld/internal/vec"
	"github.com/annel0/tileworld/internal/world"
	"github.com/annel0/tileworld/internal/world/block"
	"github.com/annel0/tileworld/internal/world/entity"
)

func sampleWorld(t *testing.T) *world.WorldManager {
	t.Helper()
	wm := world.NewWorldManager(42)
	wm.Apply(0, 48, block.MustState(block.Empty, vec.Vec2{X: 0, Y: 48}))
	wm.Apply(-3, 10, block.MustState(block.Stone, vec.Vec2{X: -3, Y: 10}))
	return wm
}

func samplePlayer() entity.Record {
	p := entity.NewPlayer("alice", 3.5, 40)
	p.GiveStarterKit()
	return p.Record()
}

func TestSaveFileRoundTrip(t *testing.T) {
	for _, name := range []string{"save.json", "save.json.zst"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "saves", name)
			rec := samplePlayer()
			doc := &SaveDocument{
				ChunkController: sampleWorld(t).Save(),
				Player:          &rec,
				StartedTime:     1234.5,
			}
			require.NoError(t, SaveFile(path, doc))

			got, err := LoadFile(path)
			require.NoError(t, err)
			assert.Equal(t, 1234.5, got.StartedTime)
			require.NotNil(t, got.Player)
			assert.Equal(t, 3.5, got.Player.X)

			wm := world.NewWorldManager(0)
			require.NoError(t, wm.Load(got.ChunkController))
			assert.Equal(t, int64(42), wm.Seed())
			assert.Equal(t, block.Empty, wm.Get(0, 48).Type)
			assert.Equal(t, block.Stone, wm.Get(-3, 10).Type)
		})
	}
}

func TestCompressedFileIsNotPlainJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "save.zst")
	require.NoError(t, SaveFile(path, &SaveDocument{ChunkController: sampleWorld(t).Save()}))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotEqual(t, byte('{'), raw[0], "файл .zst сжат")
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}

func setupTestStorage(t *testing.T) *WorldStorage {
	t.Helper()
	ws, err := NewWorldStorage(t.TempDir())
	require.NoError(t, err, "Не удалось создать хранилище")
	t.Cleanup(func() { ws.Close() })
	return ws
}

func TestWorldStorageRoundTrip(t *testing.T) {
	ws := setupTestStorage(t)

	_, _, found, err := ws.LoadWorld()
	require.NoError(t, err)
	assert.False(t, found, "пустое хранилище")

	wm := sampleWorld(t)
	require.NoError(t, ws.SaveWorld(wm.Save(), Meta{StartedTime: 99, LastID: 7}))

	data, meta, found, err := ws.LoadWorld()
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, int64(42), meta.Seed)
	assert.Equal(t, 7, meta.LastID)
	assert.Equal(t, 99.0, meta.StartedTime)

	restored := world.NewWorldManager(1)
	require.NoError(t, restored.Load(data))
	assert.Equal(t, 2, restored.Changes())
	assert.Equal(t, block.Stone, restored.Get(-3, 10).Type)
}

func TestWorldStorageSaveReplacesCells(t *testing.T) {
	ws := setupTestStorage(t)
	require.NoError(t, ws.SaveWorld(sampleWorld(t).Save(), Meta{}))

	fresh := world.NewWorldManager(42)
	fresh.Apply(5, 5, block.MustState(block.Dirt, vec.Vec2{X: 5, Y: 5}))
	require.NoError(t, ws.SaveWorld(fresh.Save(), Meta{LastID: 1}))

	data, _, _, err := ws.LoadWorld()
	require.NoError(t, err)
	require.Len(t, data.Changes, 1, "старые клетки удалены")
	assert.Equal(t, block.Dirt, data.Changes[5][5].Type)
}

func TestWorldStorageClosed(t *testing.T) {
	ws, err := NewMemoryWorldStorage()
	require.NoError(t, err)
	require.NoError(t, ws.Close())
	require.NoError(t, ws.Close(), "повторное закрытие")

	assert.ErrorIs(t, ws.SaveWorld(world.SaveData{}, Meta{}), ErrNotReady)
	_, _, err = ws.Load(context.Background(), "alice")
	assert.ErrorIs(t, err, ErrNotReady)
}

// testPlayerRepo общий набор проверок для всех реализаций PlayerRepo
func testPlayerRepo(t *testing.T, repo PlayerRepo) {
	ctx := context.Background()
	rec := samplePlayer()

	t.Run("Save and Load", func(t *testing.T) {
		require.NoError(t, repo.Save(ctx, "alice", rec))

		got, found, err := repo.Load(ctx, "alice")
		require.NoError(t, err)
		require.True(t, found, "Запись не найдена")
		assert.Equal(t, rec.X, got.X)
		assert.Equal(t, rec.Y, got.Y)

		p := entity.NewPlayer("alice", 0, 0)
		require.NoError(t, p.Load(got))
		assert.Equal(t, 120, p.Inventory.Total(block.Dirt))
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, found, err := repo.Load(ctx, "nobody")
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("Empty Name", func(t *testing.T) {
		assert.ErrorIs(t, repo.Save(ctx, "", rec), ErrInvalidName)
		_, _, err := repo.Load(ctx, "")
		assert.ErrorIs(t, err, ErrInvalidName)
	})

	t.Run("Batch Save", func(t *testing.T) {
		moved := rec
		moved.X = 77
		require.NoError(t, repo.BatchSave(ctx, map[string]entity.Record{
			"alice": moved,
			"bob":   rec,
		}))

		got, _, err := repo.Load(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, 77.0, got.X, "запись перезаписана")

		names, err := repo.Names(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"alice", "bob"}, names)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, repo.Delete(ctx, "bob"))
		_, found, err := repo.Load(ctx, "bob")
		require.NoError(t, err)
		assert.False(t, found)
	})
}

func TestMemoryPlayerRepo(t *testing.T) {
	repo := NewMemoryPlayerRepo()
	testPlayerRepo(t, repo)
	assert.Equal(t, 1, repo.Count())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, repo.Save(ctx, "x", entity.Record{}), context.Canceled)
}

func TestBadgerPlayerRepo(t *testing.T) {
	ws, err := NewMemoryWorldStorage()
	require.NoError(t, err)
	defer ws.Close()
	testPlayerRepo(t, ws)
}

func TestRedisPlayerRepo(t *testing.T) {
	addr := os.Getenv("TILEWORLD_TEST_REDIS")
	if addr == "" {
		t.Skip("TILEWORLD_TEST_REDIS не задан")
	}
	ctx := context.Background()
	repo, err := NewRedisPlayerRepo(ctx, &RedisConfig{Addr: addr, KeyPrefix: "tileworld:test:"})
	require.NoError(t, err)
	defer repo.Close()

	names, err := repo.Names(ctx)
	require.NoError(t, err)
	for _, name := range names {
		require.NoError(t, repo.Delete(ctx, name))
	}
	testPlayerRepo(t, repo)
}

func TestMariaPlayerRepo(t *testing.T) {
	dsn := os.Getenv("TILEWORLD_TEST_MARIA_DSN")
	if dsn == "" {
		t.Skip("TILEWORLD_TEST_MARIA_DSN не задан")
	}
	ctx := context.Background()
	repo, err := NewMariaPlayerRepo(ctx, dsn)
	require.NoError(t, err)
	defer repo.Close()

	_, err = repo.db.ExecContext(ctx, `DELETE FROM players`)
	require.NoError(t, err)
	testPlayerRepo(t, repo)
}

func TestOpenPlayerRepo(t *testing.T) {
	ctx := context.Background()
	ws, err := NewMemoryWorldStorage()
	require.NoError(t, err)
	defer ws.Close()

	repo, err := OpenPlayerRepo(ctx, RepoConfig{}, ws)
	require.NoError(t, err)
	assert.Same(t, ws, repo.(*WorldStorage), "по умолчанию badger")

	repo, err = OpenPlayerRepo(ctx, RepoConfig{Backend: BackendMemory}, nil)
	require.NoError(t, err)
	assert.IsType(t, &MemoryPlayerRepo{}, repo)

	_, err = OpenPlayerRepo(ctx, RepoConfig{Backend: "etcd"}, ws)
	assert.Error(t, err)
	_, err = OpenPlayerRepo(ctx, RepoConfig{}, nil)
	assert.Error(t, err)
}

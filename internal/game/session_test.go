package game

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/tileworld/internal/network"
	"github.com/annel0/tileworld/internal/protocol"
	"github.com/annel0/tileworld/internal/vec"
	"github.com/annel0/tileworld/internal/world"
	"github.com/annel0/tileworld/internal/world/block"
	"github.com/annel0/tileworld/internal/world/entity"
)

func setCell(s *Session, x, y int, tag string) {
	s.World.Apply(x, y, block.MustState(tag, vec.Vec2{X: x, Y: y}))
}

// skyCell клетка над игроком, заведомо не пересекающая аватар
func skyCell(s *Session) (int, int) {
	c := s.Player.Cell()
	return c.X + 3, c.Y - 3
}

func TestSinglePlayerPlaceAndDestroy(t *testing.T) {
	s := NewSinglePlayer(DefaultConfig(), 42, "solo")
	assert.False(t, s.Online())
	assert.Equal(t, 20, s.Player.Inventory.Total("torch"))

	x, y := skyCell(s)
	setCell(s, x, y, block.Empty)

	require.NoError(t, s.Place(x, y))
	assert.Equal(t, "torch", s.World.Get(x, y).Type)
	assert.Equal(t, 19, s.Player.Inventory.Total("torch"))
	assert.ErrorIs(t, s.Place(x, y), ErrOccupied)

	require.NoError(t, s.Destroy(x, y))
	assert.True(t, s.World.Get(x, y).IsEmpty())
	assert.Equal(t, 20, s.Player.Inventory.Total("torch"), "факел выпал обратно")
	assert.ErrorIs(t, s.Destroy(x, y), ErrEmpty)
}

func TestPlaceChecks(t *testing.T) {
	s := NewSinglePlayer(DefaultConfig(), 42, "solo")
	c := s.Player.Cell()
	setCell(s, c.X, c.Y, block.Empty)

	assert.ErrorIs(t, s.Place(c.X, c.Y), ErrAvatar, "нельзя ставить блок в себя")

	x, y := skyCell(s)
	setCell(s, x, y, block.Empty)

	s.Player.Inventory.SetSelected(5)
	assert.ErrorIs(t, s.Place(x, y), ErrNoItem)

	require.True(t, s.Player.Inventory.AddItem(block.NewItem("stick", 1)))
	s.Player.Inventory.SetSelected(2)
	assert.Equal(t, "stick", s.Player.SelectedType())
	assert.ErrorIs(t, s.Place(x, y), ErrNotPlaceable)

	assert.True(t, s.World.Get(x, y).IsEmpty(), "неудачная установка ничего не меняет")
}

func TestMineResetsPreviousTarget(t *testing.T) {
	s := NewSinglePlayer(DefaultConfig(), 42, "solo")
	x, y := skyCell(s)
	setCell(s, x, y, block.Stone)
	setCell(s, x+1, y, block.Stone)
	setCell(s, x+2, y, block.Bedrock)

	broken, err := s.Mine(x, y, 100)
	require.NoError(t, err)
	assert.False(t, broken)
	assert.Equal(t, 50.0, s.World.Get(x, y).HP)

	broken, err = s.Mine(x+1, y, 100)
	require.NoError(t, err)
	assert.False(t, broken)
	assert.Equal(t, 150.0, s.World.Get(x, y).HP, "урон по прежней цели сброшен")

	broken, err = s.Mine(x+1, y, 100)
	require.NoError(t, err)
	assert.True(t, broken)
	assert.True(t, s.World.Get(x+1, y).IsEmpty())
	assert.Equal(t, 1, s.Player.Inventory.Total("cobblestone"))

	_, err = s.Mine(x+2, y, 1000)
	assert.ErrorIs(t, err, ErrUnbreakable)
	assert.ErrorIs(t, s.Destroy(x+2, y), ErrUnbreakable)
}

func TestUseOpensWorkbench(t *testing.T) {
	s := NewSinglePlayer(DefaultConfig(), 42, "solo")
	x, y := skyCell(s)
	setCell(s, x, y, "workbench")

	_, _, open := s.OpenBlock()
	assert.False(t, open)
	assert.ErrorIs(t, s.SyncOpenBlock(), ErrNoContainer)

	s.Use(x, y)
	pos, craft, open := s.OpenBlock()
	require.True(t, open)
	require.NotNil(t, craft)
	assert.Equal(t, vec.Vec2{X: x, Y: y}, pos)
	assert.NoError(t, s.SyncOpenBlock(), "в одиночной игре отправка ничего не делает")

	require.NoError(t, s.Destroy(x, y))
	_, _, open = s.OpenBlock()
	assert.False(t, open, "разрушение закрывает контейнер")
}

func TestMoveBlockedBySolid(t *testing.T) {
	s := NewSinglePlayer(DefaultConfig(), 42, "solo")
	c := s.Player.Cell()
	setCell(s, c.X+1, c.Y, block.Stone)
	setCell(s, c.X+1, c.Y+1, block.Stone)
	s.Player.X = float64(c.X)

	assert.False(t, s.Move(0.5, 0), "стена справа")
	assert.Equal(t, float64(c.X), s.Player.X)
	assert.Equal(t, 1, s.Player.Direction)
	assert.True(t, s.Player.Moving)
}

func TestSaveAndLoadSinglePlayer(t *testing.T) {
	for _, name := range []string{"world.json", "world.json.zst"} {
		t.Run(name, func(t *testing.T) {
			s := NewSinglePlayer(DefaultConfig(), 42, "solo")
			x, y := skyCell(s)
			setCell(s, x, y, block.Empty)
			require.NoError(t, s.Place(x, y))

			path := filepath.Join(t.TempDir(), name)
			require.NoError(t, s.Save(path))

			loaded, err := LoadSinglePlayer(DefaultConfig(), path, "solo")
			require.NoError(t, err)
			assert.Equal(t, "torch", loaded.World.Get(x, y).Type)
			assert.Equal(t, 19, loaded.Player.Inventory.Total("torch"))
			assert.Equal(t, s.World.Seed(), loaded.World.Seed())
			assert.GreaterOrEqual(t, loaded.StartedTime(), 0.0)
		})
	}
}

func startServer(t *testing.T) *network.Server {
	t.Helper()
	cfg := network.DefaultServerConfig()
	cfg.Addr = "127.0.0.1:0"
	cfg.TickInterval = 0
	srv := network.NewServer(cfg, world.NewWorldManager(42))
	require.NoError(t, srv.Listen())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		srv.Serve(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return srv
}

func join(t *testing.T, srv *network.Server, name string) *Session {
	t.Helper()
	client := network.NewClient(network.DefaultClientConfig(srv.Addr().String()))
	s, err := Join(context.Background(), DefaultConfig(), client, name)
	require.NoError(t, err)
	t.Cleanup(s.Leave)
	return s
}

// Изменение одного клиента доходит до мира другого через сервер
func TestOnlinePlaceReachesPeer(t *testing.T) {
	srv := startServer(t)
	srv.World().Apply(5, 5, block.MustState(block.Empty, vec.Vec2{X: 5, Y: 5}))

	alice := join(t, srv, "alice")
	bob := join(t, srv, "bob")
	assert.True(t, alice.Online())
	assert.Equal(t, 1, bob.ID())
	assert.Equal(t, 1, bob.Peers.Len(), "bob знает alice из снимка")

	require.NoError(t, alice.Place(5, 5))
	assert.Equal(t, "torch", alice.World.Get(5, 5).Type, "автор применяет изменение сразу")

	require.Eventually(t, func() bool {
		bob.Update(time.Now())
		return bob.World.Get(5, 5).Type == "torch"
	}, 3*time.Second, 10*time.Millisecond, "bob получает block_update")

	require.Eventually(t, func() bool {
		alice.Update(time.Now())
		return alice.Peers.Len() == 1
	}, 3*time.Second, 10*time.Millisecond, "alice узнаёт о bob")
}

// Клиент начисляет выпадение сразу и получает то же количество, что и сервер
func TestOnlineDestroyDropMatchesServerRoll(t *testing.T) {
	srv := startServer(t)
	pos := vec.Vec2{X: 6, Y: 5}
	srv.World().Apply(pos.X, pos.Y, block.MustState(block.RedstoneOre, pos))

	tmpl, ok := block.Lookup(block.RedstoneOre)
	require.True(t, ok)
	_, want := tmpl.Drop.RollAt(srv.World().Seed(), pos)

	alice := join(t, srv, "alice")
	require.NoError(t, alice.Destroy(pos.X, pos.Y))
	assert.Equal(t, want, alice.Player.Inventory.Total("redstone"))
	assert.True(t, alice.World.Get(pos.X, pos.Y).IsEmpty())
}

// Содержимое верстака, изменённое одним клиентом, появляется у другого,
// в том числе в уже открытом окне
func TestOnlineSyncBlockUpdatesOpenContainer(t *testing.T) {
	srv := startServer(t)
	pos := vec.Vec2{X: 7, Y: 5}
	bench := block.MustState("workbench", pos)
	bench.Craft = block.NewCraftModel(3, 3)
	srv.World().Apply(pos.X, pos.Y, bench)

	alice := join(t, srv, "alice")
	bob := join(t, srv, "bob")

	bob.Use(pos.X, pos.Y)
	_, bobCraft, open := bob.OpenBlock()
	require.True(t, open, "bob открыл верстак из снимка")
	require.Nil(t, bobCraft.Field.Get(1, 1))

	alice.Use(pos.X, pos.Y)
	_, craft, open := alice.OpenBlock()
	require.True(t, open)
	require.True(t, craft.Field.Put(1, 1, block.NewItem("planks", 3)))
	require.NoError(t, alice.SyncOpenBlock())

	require.Eventually(t, func() bool {
		bob.Update(time.Now())
		it := bobCraft.Field.Get(1, 1)
		return it != nil && it.Count == 3
	}, 3*time.Second, 10*time.Millisecond, "bob получает sync_block")

	assert.Equal(t, "planks", bobCraft.Field.Get(1, 1).Type)
	st, ok := bob.World.Change(pos.X, pos.Y)
	require.True(t, ok)
	assert.Same(t, bobCraft, st.Craft, "окно показывает контейнер блока")

	assert.Error(t, bob.apply(syncBlockMessage(t, 100, 5)), "блок без изменений не принимает sync_block")
}

func syncBlockMessage(t *testing.T, x, y int) *protocol.Message {
	t.Helper()
	msg, err := protocol.NewMessage(protocol.SyncBlockTag, protocol.SyncBlock{X: x, Y: y, Block: block.NewCraftModel(3, 3).Record()})
	require.NoError(t, err)
	return msg
}

func TestOnlinePingMovesPeer(t *testing.T) {
	srv := startServer(t)
	alice := join(t, srv, "alice")
	bob := join(t, srv, "bob")

	alice.Player.X += 2
	require.NoError(t, alice.SendPing())

	var peer *entity.Peer
	require.Eventually(t, func() bool {
		bob.Poll()
		p, ok := bob.Peers.Get(alice.ID())
		if !ok {
			return false
		}
		peer = p
		return p.Target().X == alice.Player.X
	}, 3*time.Second, 10*time.Millisecond)
	assert.Equal(t, "torch", peer.Selected)
}

func TestOnlineLeaveRemovesPeer(t *testing.T) {
	srv := startServer(t)
	alice := join(t, srv, "alice")

	client := network.NewClient(network.DefaultClientConfig(srv.Addr().String()))
	bob, err := Join(context.Background(), DefaultConfig(), client, "bob")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		alice.Poll()
		return alice.Peers.Len() == 1
	}, 3*time.Second, 10*time.Millisecond)

	bob.Leave()
	assert.False(t, bob.Online())
	require.Eventually(t, func() bool {
		alice.Poll()
		return alice.Peers.Len() == 0
	}, 3*time.Second, 10*time.Millisecond, "leave убирает игрока")
}

func TestJoinRejectedSurfacesReason(t *testing.T) {
	srv := startServer(t)
	join(t, srv, "alice")

	client := network.NewClient(network.DefaultClientConfig(srv.Addr().String()))
	_, err := Join(context.Background(), DefaultConfig(), client, "alice")
	require.ErrorIs(t, err, network.ErrJoinRejected)
	assert.Contains(t, network.Reason(err), "already taken")
	assert.Equal(t, network.ClientConnectError, client.State())
}

package network

import (
	"context"

	"github.com/annel0/tileworld/internal/eventbus"
	"github.com/annel0/tileworld/internal/inventory"
	"github.com/annel0/tileworld/internal/physics"
	"github.com/annel0/tileworld/internal/protocol"
	"github.com/annel0/tileworld/internal/vec"
	"github.com/annel0/tileworld/internal/world/block"
)

// Обработчики вызываются под s.mu

func (s *Server) handlePing(_ context.Context, sess *session, e *playerEntry, msg *protocol.Message) {
	var p protocol.Ping
	if err := msg.Decode(&p); err != nil {
		s.drop(sess, msg.Request, "malformed")
		return
	}

	pl := e.player
	pl.X, pl.Y = p.X, p.Y
	pl.Moving = p.Moving
	pl.Direction = p.Dir
	pl.Inventory.SetSelected(p.Selected)

	s.broadcast(protocol.PingTag, protocol.PeerPing{
		ID:       e.id,
		X:        pl.X,
		Y:        pl.Y,
		Dir:      pl.Direction,
		Moving:   pl.Moving,
		Selected: pl.SelectedType(),
	}, sess)
}

// handlePlace ставит выбранный предмет игрока в пустую клетку.
// Предмет списывается только при успешной установке.
func (s *Server) handlePlace(ctx context.Context, sess *session, e *playerEntry, msg *protocol.Message) {
	var pos protocol.BlockPos
	if err := msg.Decode(&pos); err != nil {
		s.drop(sess, msg.Request, "malformed")
		return
	}

	if !s.world.Get(pos.X, pos.Y).IsEmpty() {
		s.drop(sess, msg.Request, "occupied")
		return
	}
	item := e.player.Inventory.Selected()
	if item == nil {
		s.drop(sess, msg.Request, "no_item")
		return
	}
	if t, ok := block.Lookup(item.Type); !ok || t.IsItem {
		s.drop(sess, msg.Request, "not_placeable")
		return
	}
	cell := vec.Vec2{X: pos.X, Y: pos.Y}
	if physics.CellRect(cell).Intersects(e.player.Box()) {
		s.drop(sess, msg.Request, "avatar")
		return
	}

	state, err := block.NewState(item.Type, cell)
	if err != nil {
		s.drop(sess, msg.Request, "not_placeable")
		return
	}
	e.player.Inventory.ConsumeSelected()
	s.world.Apply(pos.X, pos.Y, state)

	s.broadcast(protocol.BlockUpdateTag, protocol.BlockUpdate{X: pos.X, Y: pos.Y, Block: state.Record()}, nil)
	s.publish(eventbus.EventBlockChanged, eventbus.BlockChanged{X: pos.X, Y: pos.Y, Type: state.Type, Player: e.player.Name})
}

// handleDestroy разрушает клетку; выпавшие предметы попадают в инвентарь игрока.
// Количество выпадения зависит только от seed и клетки, как у клиента.
func (s *Server) handleDestroy(ctx context.Context, sess *session, e *playerEntry, msg *protocol.Message) {
	var pos protocol.BlockPos
	if err := msg.Decode(&pos); err != nil {
		s.drop(sess, msg.Request, "malformed")
		return
	}

	target := s.world.Get(pos.X, pos.Y)
	if target.IsEmpty() {
		s.drop(sess, msg.Request, "empty")
		return
	}
	if target.HP < 0 {
		s.drop(sess, msg.Request, "unbreakable")
		return
	}

	block.BehaviorFor(target.Type).OnDestroy(block.NopHost{Server: true}, target)

	cell := vec.Vec2{X: pos.X, Y: pos.Y}
	if target.Drop != nil {
		tag, n := target.Drop.RollAt(s.world.Seed(), cell)
		if n > 0 {
			if !e.player.Inventory.AddItem(block.NewItem(tag, n)) {
				s.logger.Debug("Инвентарь %s полон, %d x %s потеряно", e.player.Name, n, tag)
			}
		}
	}

	empty := block.MustState(block.Empty, cell)
	s.world.Apply(pos.X, pos.Y, empty)

	s.broadcast(protocol.BlockUpdateTag, protocol.BlockUpdate{X: pos.X, Y: pos.Y, Block: empty.Record()}, nil)
	s.publish(eventbus.EventBlockChanged, eventbus.BlockChanged{X: pos.X, Y: pos.Y, Type: block.Empty, Player: e.player.Name})
}

// handleSyncInventory заменяет инвентарь игрока присланным
func (s *Server) handleSyncInventory(sess *session, e *playerEntry, msg *protocol.Message) {
	var rec inventory.Record
	if err := msg.Decode(&rec); err != nil {
		s.drop(sess, msg.Request, "malformed")
		return
	}
	if err := e.player.Inventory.Load(rec); err != nil {
		s.drop(sess, msg.Request, "invalid")
		return
	}
}

// handleSyncBlock заменяет содержимое контейнера блока и пересылает его остальным
func (s *Server) handleSyncBlock(_ context.Context, sess *session, msg *protocol.Message) {
	var sb protocol.SyncBlock
	if err := msg.Decode(&sb); err != nil {
		s.drop(sess, msg.Request, "malformed")
		return
	}

	target, ok := s.world.Change(sb.X, sb.Y)
	if !ok || target.Craft == nil {
		s.drop(sess, msg.Request, "no_container")
		return
	}
	if err := target.Craft.Load(sb.Block); err != nil {
		s.drop(sess, msg.Request, "invalid")
		return
	}

	s.broadcast(protocol.SyncBlockTag, protocol.SyncBlock{X: sb.X, Y: sb.Y, Block: target.Craft.Record()}, sess)
}

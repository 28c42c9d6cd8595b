// Package game реализует клиентскую сессию: локальный мир с окном и светом,
// игрока, чужих игроков и применение сообщений сервера в игровом цикле.
package game

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/annel0/tileworld/internal/inventory"
	"github.com/annel0/tileworld/internal/logging"
	"github.com/annel0/tileworld/internal/network"
	"github.com/annel0/tileworld/internal/physics"
	"github.com/annel0/tileworld/internal/protocol"
	"github.com/annel0/tileworld/internal/storage"
	"github.com/annel0/tileworld/internal/vec"
	"github.com/annel0/tileworld/internal/world"
	"github.com/annel0/tileworld/internal/world/block"
	_ "github.com/annel0/tileworld/internal/world/block/implementations"
	"github.com/annel0/tileworld/internal/world/entity"
)

var (
	ErrOccupied     = errors.New("клетка занята")
	ErrNoItem       = errors.New("предмет не выбран")
	ErrNotPlaceable = errors.New("выбранный предмет нельзя поставить")
	ErrAvatar       = errors.New("блок пересекает игрока")
	ErrEmpty        = errors.New("клетка пуста")
	ErrUnbreakable  = errors.New("блок нельзя разрушить")
	ErrNoContainer  = errors.New("контейнер не открыт")
)

// Config параметры окна и сети сессии
type Config struct {
	ViewWidth    int
	ViewHeight   int
	Margin       int           // запас окна для физики и света
	PingInterval time.Duration // период ping серверу
}

// DefaultConfig окно 32×18 с запасом 20
func DefaultConfig() Config {
	return Config{
		ViewWidth:    32,
		ViewHeight:   18,
		Margin:       20,
		PingInterval: 100 * time.Millisecond,
	}
}

// Session клиент игры. Все методы вызываются из одного игрового цикла;
// сетевое чтение идёт в фоне и забирается через Update.
type Session struct {
	cfg    Config
	World  *world.WorldManager
	Player *entity.Player
	Peers  *entity.PeerManager

	client   *network.Client
	id       int
	epoch    time.Time
	lastPing time.Time
	mining   *vec.Vec2 // блок, который игрок сейчас ломает

	openPos   vec.Vec2
	openCraft *inventory.CraftModel

	logger *logging.Logger
}

func newSession(cfg Config, wm *world.WorldManager, p *entity.Player) *Session {
	s := &Session{
		cfg:    cfg,
		World:  wm,
		Player: p,
		Peers:  entity.NewPeerManager(),
		epoch:  time.Now(),
		logger: logging.GetClientLogger(),
	}
	wm.AttachViewport(cfg.ViewWidth, cfg.ViewHeight, cfg.Margin)
	wm.SetHost(s)
	return s
}

// NewSinglePlayer начинает одиночную игру на новом мире
func NewSinglePlayer(cfg Config, seed int64, name string) *Session {
	wm := world.NewWorldManager(seed)
	p := entity.NewPlayer(name, entity.SpawnX, float64(wm.PlayerStart(entity.SpawnX)))
	p.GiveStarterKit()

	s := newSession(cfg, wm, p)
	s.materialize()
	s.logger.Info("🌍 Одиночная игра: сид %d", seed)
	return s
}

// LoadSinglePlayer продолжает одиночную игру из файла сохранения
func LoadSinglePlayer(cfg Config, path, name string) (*Session, error) {
	doc, err := storage.LoadFile(path)
	if err != nil {
		return nil, err
	}

	wm := world.NewWorldManager(doc.ChunkController.Seed)
	if err := wm.Load(doc.ChunkController); err != nil {
		return nil, err
	}
	p := entity.NewPlayer(name, entity.SpawnX, float64(wm.PlayerStart(entity.SpawnX)))
	if doc.Player != nil {
		if err := p.Load(*doc.Player); err != nil {
			return nil, err
		}
	} else {
		p.GiveStarterKit()
	}

	s := newSession(cfg, wm, p)
	s.epoch = epochFrom(doc.StartedTime)
	s.materialize()
	s.logger.Info("📂 Сохранение %s загружено", path)
	return s, nil
}

// Join подключается к серверу и строит мир из снимка в ответе
func Join(ctx context.Context, cfg Config, client *network.Client, name string) (*Session, error) {
	resp, err := client.Connect(ctx, name)
	if err != nil {
		return nil, err
	}
	if resp.Level == nil || resp.PlayerData == nil {
		client.Leave()
		return nil, fmt.Errorf("%w: ответ на вход без снимка мира", protocol.ErrMalformed)
	}

	wm := world.NewWorldManager(resp.Level.ChunkController.Seed)
	if err := wm.Load(resp.Level.ChunkController); err != nil {
		client.Leave()
		return nil, err
	}
	p := entity.NewPlayer(name, resp.PlayerData.X, resp.PlayerData.Y)
	if err := p.Load(*resp.PlayerData); err != nil {
		client.Leave()
		return nil, err
	}
	p.ID = resp.ID

	s := newSession(cfg, wm, p)
	s.client = client
	s.id = resp.ID
	s.epoch = epochFrom(resp.StartedTime)
	for _, info := range resp.Players {
		s.Peers.Add(entity.NewPeer(info.ID, info.Name, info.X, info.Y, info.Selected))
	}
	s.materialize()
	s.logger.Info("🌐 Вход на сервер: id=%d, игроков рядом %d", resp.ID, s.Peers.Len())
	return s, nil
}

func epochFrom(startedTime float64) time.Time {
	return time.Now().Add(-time.Duration(startedTime * float64(time.Second)))
}

func (s *Session) materialize() {
	c := s.Player.Cell()
	s.World.Materialize(c.X, c.Y)
}

// Online сессия связана с сервером
func (s *Session) Online() bool {
	return s.client != nil && s.client.State() == network.ClientJoined
}

// ID идентификатор игрока на сервере
func (s *Session) ID() int { return s.id }

// StartedTime секунды с начала мира (для смены дня и ночи)
func (s *Session) StartedTime() float64 {
	return time.Since(s.epoch).Seconds()
}

// Client сетевой клиент; nil в одиночной игре
func (s *Session) Client() *network.Client { return s.client }

// OpenContainer реализует block.Host: блок просит показать своё поле крафта
func (s *Session) OpenContainer(pos vec.Vec2, craft *inventory.CraftModel) {
	s.openPos = pos
	s.openCraft = craft
}

// IsServer реализует block.Host
func (s *Session) IsServer() bool { return false }

// OpenBlock открытый контейнер блока и его координаты
func (s *Session) OpenBlock() (vec.Vec2, *inventory.CraftModel, bool) {
	return s.openPos, s.openCraft, s.openCraft != nil
}

// CloseBlock закрывает контейнер блока
func (s *Session) CloseBlock() {
	s.openCraft = nil
}

// Update шаг игрового цикла: сообщения сервера, ping, сглаживание чужих
// игроков и перестройка окна за игроком.
func (s *Session) Update(now time.Time) {
	s.Poll()
	if s.Online() && now.Sub(s.lastPing) >= s.cfg.PingInterval {
		s.SendPing()
		s.lastPing = now
	}
	s.Peers.InterpolateAll(now)
	c := s.Player.Cell()
	s.World.Recenter(c.X, c.Y)
}

// Poll применяет накопленные сообщения сервера; возвращает их число
func (s *Session) Poll() int {
	if s.client == nil {
		return 0
	}
	msgs := s.client.Poll()
	for _, m := range msgs {
		if err := s.apply(m); err != nil {
			s.logger.Warn("⚠️ Сообщение %s не применено: %v", m.Request, err)
		}
	}
	return len(msgs)
}

func (s *Session) apply(m *protocol.Message) error {
	switch m.Request {
	case protocol.PingTag:
		var p protocol.PeerPing
		if err := m.Decode(&p); err != nil {
			return err
		}
		peer, ok := s.Peers.Get(p.ID)
		if !ok {
			return fmt.Errorf("неизвестный игрок %d", p.ID)
		}
		peer.Observe(p.X, p.Y, time.Now())
		peer.Direction = p.Dir
		peer.Moving = p.Moving
		peer.Selected = p.Selected

	case protocol.JoinTag:
		var j protocol.Join
		if err := m.Decode(&j); err != nil {
			return err
		}
		s.Peers.Add(entity.NewPeer(j.ID, j.Name, j.X, j.Y, j.Selected))

	case protocol.LeaveTag:
		var l protocol.Leave
		if err := m.Decode(&l); err != nil {
			return err
		}
		s.Peers.Remove(l.ID)

	case protocol.BlockUpdateTag:
		var u protocol.BlockUpdate
		if err := m.Decode(&u); err != nil {
			return err
		}
		st, err := block.FromRecord(u.Block)
		if err != nil {
			return err
		}
		s.World.Apply(u.X, u.Y, st)
		if s.openCraft != nil && s.openPos == (vec.Vec2{X: u.X, Y: u.Y}) {
			s.openCraft = st.Craft
		}

	case protocol.SyncBlockTag:
		var sb protocol.SyncBlock
		if err := m.Decode(&sb); err != nil {
			return err
		}
		st, ok := s.World.Change(sb.X, sb.Y)
		if !ok {
			return fmt.Errorf("в (%d, %d) нет изменённого блока", sb.X, sb.Y)
		}
		if st.Craft == nil {
			rows, cols := len(sb.Block), 0
			if rows > 0 {
				cols = len(sb.Block[0])
			}
			st.Craft = block.NewCraftModel(cols, rows)
		}
		return st.Craft.Load(sb.Block)

	default:
		s.logger.Debug("Неизвестное сообщение %s пропущено", m.Request)
	}
	return nil
}

// Place ставит выбранный предмет в клетку. Локальные проверки повторяют
// серверные; онлайн изменение применяется сразу и отправляется серверу.
func (s *Session) Place(wx, wy int) error {
	if !s.World.Get(wx, wy).IsEmpty() {
		return ErrOccupied
	}
	item := s.Player.Inventory.Selected()
	if item == nil {
		return ErrNoItem
	}
	if t, ok := block.Lookup(item.Type); !ok || t.IsItem {
		return ErrNotPlaceable
	}
	pos := vec.Vec2{X: wx, Y: wy}
	if physics.CellRect(pos).Intersects(s.Player.Box()) {
		return ErrAvatar
	}

	st, err := block.NewState(item.Type, pos)
	if err != nil {
		return err
	}
	s.World.Apply(wx, wy, st)
	s.Player.Inventory.ConsumeSelected()
	return s.send(protocol.PlaceBlockTag, protocol.BlockPos{X: wx, Y: wy})
}

// Mine наносит блоку урон dmg; при разрушении вызывает Destroy.
// Урон по предыдущей цели сбрасывается при смене цели.
func (s *Session) Mine(wx, wy int, dmg float64) (bool, error) {
	st := s.World.Get(wx, wy)
	if st.IsEmpty() {
		return false, ErrEmpty
	}
	pos := vec.Vec2{X: wx, Y: wy}
	if s.mining != nil && *s.mining != pos {
		if prev := s.World.Get(s.mining.X, s.mining.Y); !prev.IsEmpty() {
			if t, ok := block.Lookup(prev.Type); ok {
				prev.HP = t.HP
			}
		}
		s.mining = nil
	}
	if !st.Damage(dmg) {
		if st.HP < 0 {
			return false, ErrUnbreakable
		}
		s.mining = &pos
		return false, nil
	}
	s.mining = nil
	return true, s.Destroy(wx, wy)
}

// Destroy разрушает блок: хук OnDestroy, выпадение в инвентарь, пустая клетка
func (s *Session) Destroy(wx, wy int) error {
	st := s.World.Get(wx, wy)
	if st.IsEmpty() {
		return ErrEmpty
	}
	if t, ok := block.Lookup(st.Type); ok && !t.Breakable() {
		return ErrUnbreakable
	}

	block.BehaviorFor(st.Type).OnDestroy(s, st)
	pos := vec.Vec2{X: wx, Y: wy}
	if st.Drop != nil {
		tag, n := st.Drop.RollAt(s.World.Seed(), pos)
		if n > 0 {
			s.Player.Inventory.AddItem(block.NewItem(tag, n))
		}
	}
	if s.openCraft != nil && s.openPos == pos {
		s.CloseBlock()
	}
	s.World.Apply(wx, wy, block.MustState(block.Empty, pos))
	return s.send(protocol.DestroyBlockTag, protocol.BlockPos{X: wx, Y: wy})
}

// Use вызывает OnUse блока (верстак открывает поле крафта)
func (s *Session) Use(wx, wy int) {
	st := s.World.Get(wx, wy)
	if st.IsEmpty() {
		return
	}
	block.BehaviorFor(st.Type).OnUse(s, st)
}

// Move сдвигает игрока, если новое положение не пересекает твёрдые блоки
func (s *Session) Move(dx, dy float64) bool {
	x, y := s.Player.X+dx, s.Player.Y+dy
	s.Player.Moving = dx != 0
	switch {
	case dx < 0:
		s.Player.Direction = -1
	case dx > 0:
		s.Player.Direction = 1
	}
	if !physics.CanMoveToPosition(x, y, s.World.IsSolid) {
		return false
	}
	s.Player.X, s.Player.Y = x, y
	return true
}

// SendPing отправляет серверу позицию, намерение и выбранный слот
func (s *Session) SendPing() error {
	return s.send(protocol.PingTag, protocol.Ping{
		X:        s.Player.X,
		Y:        s.Player.Y,
		Dir:      s.Player.Direction,
		Moving:   s.Player.Moving,
		Selected: s.Player.Inventory.SelectedIndex(),
	})
}

// SyncInventory отправляет серверу инвентарь целиком
func (s *Session) SyncInventory() error {
	return s.send(protocol.SyncInventoryTag, s.Player.Inventory.Record())
}

// SyncOpenBlock отправляет серверу содержимое открытого контейнера
func (s *Session) SyncOpenBlock() error {
	if s.openCraft == nil {
		return ErrNoContainer
	}
	return s.send(protocol.SyncBlockTag, protocol.SyncBlock{
		X:     s.openPos.X,
		Y:     s.openPos.Y,
		Block: s.openCraft.Record(),
	})
}

// send в одиночной игре ничего не делает
func (s *Session) send(tag string, payload interface{}) error {
	if s.client == nil {
		return nil
	}
	return s.client.Send(tag, payload)
}

// Save пишет файл сохранения (только одиночная игра)
func (s *Session) Save(path string) error {
	rec := s.Player.Record()
	return storage.SaveFile(path, &storage.SaveDocument{
		ChunkController: s.World.Save(),
		Player:          &rec,
		StartedTime:     s.StartedTime(),
	})
}

// Leave отключается от сервера и забывает чужих игроков
func (s *Session) Leave() {
	if s.client == nil {
		return
	}
	s.client.Leave()
	s.Peers.Clear()
	s.logger.Info("🚪 Сессия завершена")
}

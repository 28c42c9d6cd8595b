// Package network связывает процессы игры: авторитетный сервер, который
// принимает изменения мира и рассылает их, и клиент с фоновым чтением.
package network

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/annel0/tileworld/internal/eventbus"
	"github.com/annel0/tileworld/internal/logging"
	"github.com/annel0/tileworld/internal/protocol"
	"github.com/annel0/tileworld/internal/storage"
	"github.com/annel0/tileworld/internal/world"
	"github.com/annel0/tileworld/internal/world/block"
	_ "github.com/annel0/tileworld/internal/world/block/implementations"
	"github.com/annel0/tileworld/internal/world/entity"
)

var (
	ErrNoStorage      = errors.New("хранилище не настроено")
	ErrNothingToLoad  = errors.New("сохранённого мира нет")
	errEventQueueFull = errors.New("очередь событий переполнена")
)

// SessionState состояние соединения на сервере
type SessionState int

const (
	StateDisconnected SessionState = iota
	StateJoining
	StateJoined
	StateLeaving
)

func (s SessionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateJoining:
		return "joining"
	case StateJoined:
		return "joined"
	case StateLeaving:
		return "leaving"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ServerConfig параметры сервера синхронизации
type ServerConfig struct {
	Transport        string        // tcp или kcp
	Addr             string        // адрес прослушивания
	ReadTimeout      time.Duration // тишина от клиента, после которой он считается ушедшим
	WriteTimeout     time.Duration // предел отправки одного кадра
	MaxMessageSize   int           // предел размера кадра
	TickInterval     time.Duration // период OnTick для изменённых клеток, 0 - выключено
	AutosaveInterval time.Duration // период автосохранения, 0 - выключено
}

// DefaultServerConfig возвращает конфигурацию по умолчанию
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Transport:      TransportTCP,
		Addr:           ":7777",
		ReadTimeout:    20 * time.Second,
		WriteTimeout:   5 * time.Second,
		MaxMessageSize: protocol.DefaultMaxMessageSize,
		TickInterval:   time.Second,
	}
}

// session соединение клиента
type session struct {
	id    string
	addr  string
	conn  net.Conn
	state SessionState
	name  string
}

// playerEntry игрок сервера; запись остаётся после выхода,
// повторный вход с тем же именем продолжает игру
type playerEntry struct {
	id      int
	player  *entity.Player
	session *session
}

// PlayerStatus сводка по игроку для консоли и HTTP
type PlayerStatus struct {
	ID       int     `json:"id"`
	Name     string  `json:"name"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Online   bool    `json:"online"`
	Selected string  `json:"selected"`
}

// Server авторитетный сервер. Все запросы обрабатываются под одной
// общей блокировкой, включая рассылку.
type Server struct {
	cfg ServerConfig

	mu       sync.Mutex
	world    *world.WorldManager
	players  map[string]*playerEntry
	sessions map[*session]struct{}
	lastID   int
	epoch    time.Time
	closed   bool

	repo    storage.PlayerRepo
	store   *storage.WorldStorage
	bus     eventbus.EventBus
	events  chan *eventbus.Envelope
	metrics *Metrics
	tracer  trace.Tracer
	logger  *logging.Logger

	listener net.Listener
	wg       sync.WaitGroup
}

// NewServer создаёт сервер над миром wm
func NewServer(cfg ServerConfig, wm *world.WorldManager) *Server {
	def := DefaultServerConfig()
	if cfg.Transport == "" {
		cfg.Transport = def.Transport
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = def.MaxMessageSize
	}
	wm.SetHost(block.NopHost{Server: true})
	return &Server{
		cfg:      cfg,
		world:    wm,
		players:  make(map[string]*playerEntry),
		sessions: make(map[*session]struct{}),
		epoch:    time.Now(),
		events:   make(chan *eventbus.Envelope, 256),
		metrics:  NewMetrics(nil),
		tracer:   otel.Tracer("github.com/annel0/tileworld/internal/network"),
		logger:   logging.GetNetworkLogger(),
	}
}

// SetMetrics заменяет метрики (по умолчанию незарегистрированные)
func (s *Server) SetMetrics(m *Metrics) { s.metrics = m }

// SetPlayerRepo задаёт хранилище записей игроков
func (s *Server) SetPlayerRepo(repo storage.PlayerRepo) { s.repo = repo }

// SetWorldStorage задаёт хранилище мира для Save/Load
func (s *Server) SetWorldStorage(ws *storage.WorldStorage) { s.store = ws }

// SetEventBus задаёт шину, в которую публикуются события мира
func (s *Server) SetEventBus(bus eventbus.EventBus) { s.bus = bus }

// World мир сервера
func (s *Server) World() *world.WorldManager { return s.world }

// Listen открывает слушатель по конфигурации
func (s *Server) Listen() error {
	l, err := Listen(s.cfg.Transport, s.cfg.Addr)
	if err != nil {
		return err
	}
	s.listener = l
	return nil
}

// Addr адрес слушателя; nil до Listen
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Serve принимает соединения до отмены ctx или Close
func (s *Server) Serve(ctx context.Context) error {
	if s.listener == nil {
		if err := s.Listen(); err != nil {
			return err
		}
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.logger.Info("🚀 Сервер слушает %s (%s)", s.listener.Addr(), s.cfg.Transport)

	go s.background(ctx)
	go func() {
		<-ctx.Done()
		s.Close()
	}()

	for {
		nc, err := s.listener.Accept()
		if err != nil {
			if s.isClosed() {
				s.wg.Wait()
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				s.wg.Wait()
				return err
			}
			s.logger.Error("Ошибка принятия соединения: %v", err)
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.ServeConn(ctx, nc)
		}()
	}
}

// Close закрывает слушатель и все соединения
func (s *Server) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	for sess := range s.sessions {
		sess.conn.Close()
	}
	s.mu.Unlock()

	if s.listener != nil {
		return s.listener.Close()
	}
	return nil
}

func (s *Server) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// ServeConn обслуживает одно соединение до разрыва, таймаута или выхода
func (s *Server) ServeConn(ctx context.Context, nc net.Conn) {
	sess := &session{
		id:   uuid.NewString(),
		addr: nc.RemoteAddr().String(),
		conn: &deadlineConn{
			Conn:         nc,
			readTimeout:  s.cfg.ReadTimeout,
			writeTimeout: s.cfg.WriteTimeout,
		},
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		nc.Close()
		return
	}
	s.sessions[sess] = struct{}{}
	s.mu.Unlock()

	s.metrics.Connections.Inc()
	s.logger.Info("🔗 Новое соединение %s (%s)", sess.addr, sess.id)

	defer func() {
		s.disconnect(ctx, sess)
		s.metrics.Connections.Dec()
		s.logger.Info("👋 Соединение %s закрыто", sess.id)
	}()

	for {
		body, err := protocol.ReadFrame(sess.conn, s.cfg.MaxMessageSize)
		if err != nil {
			if errors.Is(err, protocol.ErrBadHeader) || errors.Is(err, protocol.ErrFrameTooLarge) {
				s.logger.LogProtocolError(sess.id, err, nil)
			}
			s.logger.Debug("Чтение из %s прекращено: %v", sess.id, err)
			return
		}
		// Границы кадра известны, поэтому испорченный конверт можно пропустить
		msg, err := protocol.Unmarshal(body)
		if err != nil {
			s.logger.LogProtocolError(sess.id, err, body)
			s.drop(sess, "", "malformed")
			continue
		}
		s.logger.LogMessage(sess.id, "IN", msg.Request, body)
		s.metrics.Messages.WithLabelValues(metricTag(msg.Request), "in").Inc()

		if msg.Request == protocol.LeaveRequestTag {
			return
		}
		s.handle(ctx, sess, msg)
	}
}

// metricTag ограничивает метку известными тегами
func metricTag(tag string) string {
	switch tag {
	case protocol.JoinRequestTag, protocol.JoinResponseTag, protocol.JoinTag,
		protocol.LeaveRequestTag, protocol.LeaveTag, protocol.PingTag,
		protocol.PlaceBlockTag, protocol.DestroyBlockTag, protocol.BlockUpdateTag,
		protocol.SyncInventoryTag, protocol.SyncBlockTag:
		return tag
	default:
		return "unknown"
	}
}

// handle обрабатывает запрос под общей блокировкой
func (s *Server) handle(ctx context.Context, sess *session, msg *protocol.Message) {
	ctx, span := s.tracer.Start(ctx, "sync."+metricTag(msg.Request), trace.WithAttributes(
		attribute.String("session.id", sess.id),
		attribute.String("session.addr", sess.addr),
	))
	defer span.End()

	start := time.Now()
	s.mu.Lock()
	defer func() {
		s.mu.Unlock()
		s.metrics.RequestDuration.WithLabelValues(metricTag(msg.Request)).Observe(time.Since(start).Seconds())
	}()

	if msg.Request == protocol.JoinRequestTag {
		s.handleJoin(ctx, sess, msg)
		return
	}
	if sess.state != StateJoined {
		s.drop(sess, msg.Request, "not_joined")
		return
	}
	entry := s.players[sess.name]
	span.SetAttributes(attribute.String("player.name", sess.name))

	switch msg.Request {
	case protocol.PingTag:
		s.handlePing(ctx, sess, entry, msg)
	case protocol.PlaceBlockTag:
		s.handlePlace(ctx, sess, entry, msg)
	case protocol.DestroyBlockTag:
		s.handleDestroy(ctx, sess, entry, msg)
	case protocol.SyncInventoryTag:
		s.handleSyncInventory(sess, entry, msg)
	case protocol.SyncBlockTag:
		s.handleSyncBlock(ctx, sess, msg)
	default:
		s.drop(sess, msg.Request, "unknown_tag")
	}
}

// drop молча отбрасывает запрос; трогает только метрики и лог, блокировка не нужна
func (s *Server) drop(sess *session, tag, reason string) {
	s.metrics.Dropped.WithLabelValues(metricTag(tag), reason).Inc()
	s.logger.Debug("Запрос %s от %s отброшен: %s", tag, sess.id, reason)
}

func (s *Server) reject(sess *session, reason string) {
	s.metrics.Rejected.Inc()
	s.logger.Info("⛔ Вход с %s отклонён: %s", sess.addr, reason)
	if err := s.send(sess, protocol.JoinResponseTag, protocol.JoinResponse{Success: false, Reason: reason}); err != nil {
		s.logger.Warn("⚠️ Не удалось отправить отказ %s: %v", sess.id, err)
	}
}

func (s *Server) handleJoin(ctx context.Context, sess *session, msg *protocol.Message) {
	if sess.state == StateJoined {
		s.reject(sess, "[server connection error]: Already connected")
		return
	}

	var req protocol.JoinRequest
	if err := msg.Decode(&req); err != nil {
		s.reject(sess, "[server connection error]: Bad request")
		return
	}

	sess.state = StateJoining
	if req.Name == "" {
		sess.state = StateDisconnected
		s.reject(sess, "[server connection error]: Empty name")
		return
	}
	entry := s.players[req.Name]
	if entry != nil && entry.session != nil {
		sess.state = StateDisconnected
		s.reject(sess, fmt.Sprintf("[server connection error]: Name %s already taken", req.Name))
		return
	}
	if entry == nil {
		entry = s.newPlayerEntry(ctx, req.Name)
	}

	entry.session = sess
	sess.name = req.Name
	sess.state = StateJoined
	s.metrics.Joined.Inc()

	s.broadcast(protocol.JoinTag, s.peerInfo(entry), sess)

	rec := entry.player.Record()
	started := s.startedTime()
	resp := protocol.JoinResponse{
		Success: true,
		ID:      entry.id,
		Level: &protocol.LevelSnapshot{
			ChunkController: s.world.Save(),
			StartedTime:     started,
		},
		Players:     s.roster(entry),
		PlayerData:  &rec,
		StartedTime: started,
	}
	if err := s.send(sess, protocol.JoinResponseTag, resp); err != nil {
		s.logger.Warn("⚠️ Не удалось отправить снимок мира %s: %v", req.Name, err)
		sess.conn.Close()
	}

	s.publish(eventbus.EventPlayerJoined, eventbus.PlayerEvent{ID: entry.id, Name: req.Name})
	s.logger.Info("👤 Игрок %s (id=%d) вошёл", req.Name, entry.id)
}

// newPlayerEntry создаёт игрока: из хранилища, если он там есть,
// иначе на точке появления со стартовым набором
func (s *Server) newPlayerEntry(ctx context.Context, name string) *playerEntry {
	p := entity.NewPlayer(name, entity.SpawnX, float64(s.world.PlayerStart(entity.SpawnX)))

	loaded := false
	if s.repo != nil {
		rec, found, err := s.repo.Load(ctx, name)
		switch {
		case err != nil:
			s.logger.Warn("⚠️ Не удалось загрузить игрока %s: %v", name, err)
		case found:
			if err := p.Load(rec); err != nil {
				s.logger.Warn("⚠️ Запись игрока %s повреждена: %v", name, err)
			} else {
				loaded = true
			}
		}
	}
	if !loaded {
		p = entity.NewPlayer(name, entity.SpawnX, float64(s.world.PlayerStart(entity.SpawnX)))
		p.GiveStarterKit()
	}

	entry := &playerEntry{id: s.lastID, player: p}
	p.ID = s.lastID
	s.lastID++
	s.players[name] = entry
	return entry
}

func (s *Server) peerInfo(e *playerEntry) protocol.PeerInfo {
	return protocol.PeerInfo{
		ID:       e.id,
		Name:     e.player.Name,
		X:        e.player.X,
		Y:        e.player.Y,
		Selected: e.player.SelectedType(),
	}
}

// roster вошедшие игроки, кроме self, по возрастанию ID
func (s *Server) roster(self *playerEntry) []protocol.PeerInfo {
	out := []protocol.PeerInfo{}
	for _, e := range s.players {
		if e == self || e.session == nil {
			continue
		}
		out = append(out, s.peerInfo(e))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// disconnect путь выхода: явный leave_request, ошибка чтения или таймаут
func (s *Server) disconnect(ctx context.Context, sess *session) {
	s.mu.Lock()
	if sess.state == StateJoined {
		s.leave(ctx, sess)
	}
	delete(s.sessions, sess)
	s.mu.Unlock()

	sess.conn.Close()
}

func (s *Server) leave(ctx context.Context, sess *session) {
	sess.state = StateLeaving
	s.metrics.Joined.Dec()

	if entry := s.players[sess.name]; entry != nil && entry.session == sess {
		entry.session = nil
		s.broadcast(protocol.LeaveTag, protocol.Leave{ID: entry.id}, sess)

		if s.repo != nil {
			if err := s.repo.Save(ctx, sess.name, entry.player.Record()); err != nil {
				s.logger.Warn("⚠️ Не удалось сохранить игрока %s: %v", sess.name, err)
			}
		}
		s.publish(eventbus.EventPlayerLeft, eventbus.PlayerEvent{ID: entry.id, Name: sess.name})
		s.logger.Info("🚪 Игрок %s (id=%d) вышел", sess.name, entry.id)
	}
	sess.state = StateDisconnected
}

// send отправляет сообщение одному клиенту
func (s *Server) send(sess *session, tag string, payload interface{}) error {
	body, err := protocol.Encode(tag, payload)
	if err != nil {
		return err
	}
	s.logger.LogMessage(sess.id, "OUT", tag, body)
	if err := protocol.WriteFrame(sess.conn, body); err != nil {
		return err
	}
	s.metrics.Messages.WithLabelValues(tag, "out").Inc()
	return nil
}

// broadcast рассылает сообщение всем вошедшим, кроме except (nil - всем).
// Ошибка отправки одному клиенту логируется, соединение закрывается,
// остальные получают сообщение. Изменение мира при этом не откатывается.
func (s *Server) broadcast(tag string, payload interface{}, except *session) {
	body, err := protocol.Encode(tag, payload)
	if err != nil {
		s.logger.Error("Ошибка сериализации %s: %v", tag, err)
		return
	}

	for sess := range s.sessions {
		if sess == except || sess.state != StateJoined {
			continue
		}
		s.logger.LogMessage(sess.id, "OUT", tag, body)
		if err := protocol.WriteFrame(sess.conn, body); err != nil {
			s.metrics.BroadcastFailures.Inc()
			s.logger.Warn("⚠️ Рассылка %s игроку %s не удалась: %v", tag, sess.name, err)
			sess.conn.Close()
			continue
		}
		s.metrics.Messages.WithLabelValues(tag, "out").Inc()
	}
}

// publish ставит событие в очередь шины; очередь не блокирует обработку запроса
func (s *Server) publish(eventType string, payload interface{}) {
	if s.bus == nil {
		return
	}
	ev, err := eventbus.NewEnvelope("tileworld-server", eventType, 1, payload)
	if err != nil {
		s.logger.Error("Ошибка события %s: %v", eventType, err)
		return
	}
	select {
	case s.events <- ev:
	default:
		s.logger.Warn("⚠️ %v: %s отброшено", errEventQueueFull, eventType)
	}
}

// background периодические задачи: OnTick, автосохранение, публикация событий
func (s *Server) background(ctx context.Context) {
	var tick, autosave <-chan time.Time
	if s.cfg.TickInterval > 0 {
		t := time.NewTicker(s.cfg.TickInterval)
		defer t.Stop()
		tick = t.C
	}
	if s.cfg.AutosaveInterval > 0 && (s.store != nil || s.repo != nil) {
		t := time.NewTicker(s.cfg.AutosaveInterval)
		defer t.Stop()
		autosave = t.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-tick:
			s.mu.Lock()
			s.world.Tick()
			s.mu.Unlock()
		case <-autosave:
			if err := s.Save(ctx); err != nil {
				s.logger.Error("❌ Автосохранение не удалось: %v", err)
			}
		case ev := <-s.events:
			if err := s.bus.Publish(ctx, ev); err != nil {
				s.logger.Warn("⚠️ Публикация %s не удалась: %v", ev.EventType, err)
			}
		}
	}
}

// startedTime секунды с начала мира
func (s *Server) startedTime() float64 {
	return time.Since(s.epoch).Seconds()
}

// StartedTime секунды с начала мира
func (s *Server) StartedTime() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startedTime()
}

// Save сохраняет мир и всех игроков
func (s *Server) Save(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.store == nil && s.repo == nil {
		return ErrNoStorage
	}
	if s.store != nil {
		meta := storage.Meta{StartedTime: s.startedTime(), LastID: s.lastID}
		if err := s.store.SaveWorld(s.world.Save(), meta); err != nil {
			return fmt.Errorf("сохранение мира: %w", err)
		}
	}
	if s.repo != nil && len(s.players) > 0 {
		records := make(map[string]entity.Record, len(s.players))
		for name, e := range s.players {
			records[name] = e.player.Record()
		}
		if err := s.repo.BatchSave(ctx, records); err != nil {
			return fmt.Errorf("сохранение игроков: %w", err)
		}
	}

	s.publish(eventbus.EventWorldSaved, map[string]int{"changes": s.world.Changes(), "players": len(s.players)})
	s.logger.Info("💾 Мир сохранён: %d изменений, %d игроков", s.world.Changes(), len(s.players))
	return nil
}

// Load заменяет мир сохранённым. Все соединения закрываются,
// игроки подгружаются из хранилища при следующем входе.
func (s *Server) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.store == nil {
		return ErrNoStorage
	}
	data, meta, found, err := s.store.LoadWorld()
	if err != nil {
		return fmt.Errorf("загрузка мира: %w", err)
	}
	if !found {
		return ErrNothingToLoad
	}
	if err := s.world.Load(data); err != nil {
		return fmt.Errorf("загрузка мира: %w", err)
	}

	for sess := range s.sessions {
		if sess.state == StateJoined {
			s.metrics.Joined.Dec()
		}
		sess.state = StateDisconnected
		sess.conn.Close()
	}
	s.players = make(map[string]*playerEntry)
	s.lastID = meta.LastID
	s.epoch = time.Now().Add(-time.Duration(meta.StartedTime * float64(time.Second)))

	s.logger.Info("📂 Мир загружен: seed=%d, %d изменений, last_id=%d", data.Seed, s.world.Changes(), meta.LastID)
	return nil
}

// Players список игроков сервера по возрастанию ID
func (s *Server) Players() []PlayerStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]PlayerStatus, 0, len(s.players))
	for _, e := range s.players {
		out = append(out, PlayerStatus{
			ID:       e.id,
			Name:     e.player.Name,
			X:        e.player.X,
			Y:        e.player.Y,
			Online:   e.session != nil,
			Selected: e.player.SelectedType(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Stats сводка состояния сервера
func (s *Server) Stats() map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	online := 0
	for _, e := range s.players {
		if e.session != nil {
			online++
		}
	}
	return map[string]interface{}{
		"connections":    len(s.sessions),
		"players_online": online,
		"players_total":  len(s.players),
		"last_id":        s.lastID,
		"seed":           s.world.Seed(),
		"changes":        s.world.Changes(),
		"started_time":   s.startedTime(),
	}
}

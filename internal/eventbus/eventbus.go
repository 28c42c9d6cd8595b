// Package eventbus публикует события мира (изменения блоков, вход и выход
// игроков) для внешних потребителей: in-memory или NATS JetStream.
package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Типы событий мира
const (
	EventBlockChanged = "BlockChanged"
	EventPlayerJoined = "PlayerJoined"
	EventPlayerLeft   = "PlayerLeft"
	EventWorldSaved   = "WorldSaved"
)

// Envelope описывает универсальный контейнер события.
type Envelope struct {
	ID        string            `json:"id"`                 // Глобально уникальный идентификатор (UUID).
	Timestamp time.Time         `json:"timestamp"`          // Время создания события (UTC).
	Source    string            `json:"source"`             // Имя сервиса-источника.
	EventType string            `json:"event_type"`         // Тип события (BlockChanged, PlayerJoined…).
	Priority  int               `json:"priority"`           // 0=Low … 9=Critical (для backpressure).
	Payload   json.RawMessage   `json:"payload"`            // JSON полезной нагрузки.
	Metadata  map[string]string `json:"metadata,omitempty"` // Произвольные метаданные.
}

// BlockChanged полезная нагрузка изменения клетки
type BlockChanged struct {
	X      int    `json:"x"`
	Y      int    `json:"y"`
	Type   string `json:"type"`
	Player string `json:"player,omitempty"`
}

// PlayerEvent полезная нагрузка входа и выхода
type PlayerEvent struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// NewEnvelope упаковывает payload в конверт с новым UUID
func NewEnvelope(source, eventType string, priority int, payload interface{}) (*Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("сериализация события %s: %w", eventType, err)
	}
	return &Envelope{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Source:    source,
		EventType: eventType,
		Priority:  priority,
		Payload:   data,
	}, nil
}

// Decode разбирает полезную нагрузку
func (ev *Envelope) Decode(v interface{}) error {
	return json.Unmarshal(ev.Payload, v)
}

// Filter позволяет подписаться только на нужные события.
type Filter struct {
	Types   []string // Если пусто - все типы.
	Sources []string // Если пусто - все источники.
}

// Subscription возвращается при подписке; позволяет отписаться.
type Subscription interface {
	Unsubscribe()
}

// Handler потребляет события.
type Handler func(ctx context.Context, ev *Envelope)

// Stats агрегированные метрики шины.
type Stats struct {
	Published uint64
	Consumed  uint64
	Dropped   uint64
	InFlight  int
}

// EventBus определяет абстракцию шины событий.
type EventBus interface {
	Publish(ctx context.Context, ev *Envelope) error
	Subscribe(ctx context.Context, f Filter, h Handler) (Subscription, error)
	Metrics() Stats
	Close() error
}

//================ In-Memory implementation =================//

// ErrClosed шина закрыта
var ErrClosed = errors.New("шина событий закрыта")

type memoryBus struct {
	subMu       sync.RWMutex
	subscribers map[int]subscriber
	nextID      int

	bufMu    sync.RWMutex // защищает закрытие buffer
	closed   bool
	buffer   chan *Envelope
	capacity int
	done     chan struct{}

	published uint64
	consumed  uint64
	dropped   uint64
}

type subscriber struct {
	filter  Filter
	handler Handler
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewMemoryBus создаёт in-memory Bus с указанным буфером.
func NewMemoryBus(capacity int) EventBus {
	mb := &memoryBus{
		subscribers: make(map[int]subscriber),
		buffer:      make(chan *Envelope, capacity),
		capacity:    capacity,
		done:        make(chan struct{}),
	}
	go mb.dispatchLoop()
	return mb
}

func (mb *memoryBus) Publish(ctx context.Context, ev *Envelope) error {
	mb.bufMu.RLock()
	defer mb.bufMu.RUnlock()
	if mb.closed {
		return ErrClosed
	}

	select {
	case mb.buffer <- ev:
		atomic.AddUint64(&mb.published, 1)
		return nil
	default:
	}

	// Буфер заполнен - дропаем низкий приоритет (<5)
	if ev.Priority < 5 {
		atomic.AddUint64(&mb.dropped, 1)
		return nil
	}
	// Для High-priority блокируем до освобождения места или отмены контекста
	select {
	case mb.buffer <- ev:
		atomic.AddUint64(&mb.published, 1)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (mb *memoryBus) Subscribe(ctx context.Context, f Filter, h Handler) (Subscription, error) {
	mb.subMu.Lock()
	defer mb.subMu.Unlock()

	id := mb.nextID
	mb.nextID++
	cctx, cancel := context.WithCancel(ctx)
	mb.subscribers[id] = subscriber{filter: f, handler: h, ctx: cctx, cancel: cancel}
	return &memSub{bus: mb, id: id}, nil
}

func (mb *memoryBus) Metrics() Stats {
	return Stats{
		Published: atomic.LoadUint64(&mb.published),
		Consumed:  atomic.LoadUint64(&mb.consumed),
		Dropped:   atomic.LoadUint64(&mb.dropped),
		InFlight:  len(mb.buffer),
	}
}

// Close закрывает буфер и ждёт, пока рассылка разберёт оставшиеся события.
func (mb *memoryBus) Close() error {
	mb.bufMu.Lock()
	if mb.closed {
		mb.bufMu.Unlock()
		return nil
	}
	mb.closed = true
	close(mb.buffer)
	mb.bufMu.Unlock()

	<-mb.done
	return nil
}

// dispatchLoop рассылает события подписчикам по порядку публикации.
func (mb *memoryBus) dispatchLoop() {
	defer close(mb.done)
	for ev := range mb.buffer {
		mb.subMu.RLock()
		subs := make([]subscriber, 0, len(mb.subscribers))
		for _, sub := range mb.subscribers {
			subs = append(subs, sub)
		}
		mb.subMu.RUnlock()

		for _, sub := range subs {
			if !matchFilter(ev, sub.filter) || sub.ctx.Err() != nil {
				continue
			}
			sub.handler(sub.ctx, ev)
			atomic.AddUint64(&mb.consumed, 1)
		}
	}
}

func matchFilter(ev *Envelope, f Filter) bool {
	match := func(val string, arr []string) bool {
		if len(arr) == 0 {
			return true
		}
		for _, v := range arr {
			if v == val {
				return true
			}
		}
		return false
	}
	return match(ev.EventType, f.Types) && match(ev.Source, f.Sources)
}

type memSub struct {
	bus *memoryBus
	id  int
}

func (s *memSub) Unsubscribe() {
	s.bus.subMu.Lock()
	defer s.bus.subMu.Unlock()
	if sub, ok := s.bus.subscribers[s.id]; ok {
		sub.cancel()
		delete(s.bus.subscribers, s.id)
	}
}

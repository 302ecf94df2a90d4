package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/annel0/pixel-canvas/internal/logging"
)

// Envelope описывает универсальный контейнер события.
type Envelope struct {
	ID            string            // Уникальный идентификатор (UUID)
	Timestamp     time.Time         // Время создания события (UTC)
	Source        string            // Компонент-источник (history, selection, editor...)
	EventType     string            // Тип события
	Version       int               // Версия схемы полезной нагрузки
	CorrelationID string            // Для связывания цепочек (команда -> последствия)
	Payload       []byte            // JSON
	Metadata      map[string]string // Произвольные метаданные
}

// NewEnvelope создаёт событие с JSON-полезной нагрузкой. payload может быть nil.
func NewEnvelope(source, eventType string, payload interface{}) (*Envelope, error) {
	ev := &Envelope{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Source:    source,
		EventType: eventType,
		Version:   1,
	}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal %s payload: %w", eventType, err)
		}
		ev.Payload = data
	}
	return ev, nil
}

// Decode разбирает полезную нагрузку в v
func (e *Envelope) Decode(v interface{}) error {
	if len(e.Payload) == 0 {
		return fmt.Errorf("событие %s без полезной нагрузки", e.EventType)
	}
	return json.Unmarshal(e.Payload, v)
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
	Dropped   uint64 // Доставки, прерванные паникой обработчика или отменой контекста
	InFlight  int    // Доставки, выполняющиеся прямо сейчас
}

// EventBus определяет абстракцию шины событий.
type EventBus interface {
	Publish(ctx context.Context, ev *Envelope) error
	Subscribe(ctx context.Context, f Filter, h Handler) (Subscription, error)
	Metrics() Stats
}

//================ In-Memory implementation =================//

// memoryBus доставляет события синхронно, в вызывающей горутине, в порядке подписки.
// Шина принадлежит движку редактора и передаётся компонентам явно.
type memoryBus struct {
	mu          sync.RWMutex
	subscribers map[int]subscriber
	nextID      int
	logger      *logging.Logger

	published atomic.Uint64
	consumed  atomic.Uint64
	dropped   atomic.Uint64
	inFlight  atomic.Int64
}

type subscriber struct {
	id      int
	filter  Filter
	handler Handler
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewMemoryBus создаёт синхронную in-memory шину. logger может быть nil.
func NewMemoryBus(logger *logging.Logger) EventBus {
	return &memoryBus{
		subscribers: make(map[int]subscriber),
		logger:      logging.OrNop(logger),
	}
}

func (mb *memoryBus) Publish(ctx context.Context, ev *Envelope) error {
	if ev == nil {
		return fmt.Errorf("nil envelope")
	}
	if err := ctx.Err(); err != nil {
		mb.dropped.Add(1)
		return err
	}
	mb.published.Add(1)

	mb.mu.RLock()
	subs := make([]subscriber, 0, len(mb.subscribers))
	for _, sub := range mb.subscribers {
		subs = append(subs, sub)
	}
	mb.mu.RUnlock()
	sort.Slice(subs, func(i, j int) bool { return subs[i].id < subs[j].id })

	for _, sub := range subs {
		if !matchFilter(ev, sub.filter) {
			continue
		}
		if sub.ctx.Err() != nil {
			mb.dropped.Add(1)
			continue
		}
		mb.deliver(sub, ev)
	}
	return nil
}

func (mb *memoryBus) deliver(sub subscriber, ev *Envelope) {
	mb.inFlight.Add(1)
	defer mb.inFlight.Add(-1)
	defer func() {
		if r := recover(); r != nil {
			mb.dropped.Add(1)
			mb.logger.Error("обработчик события %s упал: %v", ev.EventType, r)
		}
	}()
	sub.handler(sub.ctx, ev)
	mb.consumed.Add(1)
}

func (mb *memoryBus) Subscribe(ctx context.Context, f Filter, h Handler) (Subscription, error) {
	if h == nil {
		return nil, fmt.Errorf("nil handler")
	}
	mb.mu.Lock()
	id := mb.nextID
	mb.nextID++
	cctx, cancel := context.WithCancel(ctx)
	mb.subscribers[id] = subscriber{id: id, filter: f, handler: h, ctx: cctx, cancel: cancel}
	mb.mu.Unlock()

	return &memSub{bus: mb, id: id}, nil
}

func (mb *memoryBus) Metrics() Stats {
	return Stats{
		Published: mb.published.Load(),
		Consumed:  mb.consumed.Load(),
		Dropped:   mb.dropped.Load(),
		InFlight:  int(mb.inFlight.Load()),
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
	s.bus.mu.Lock()
	if sub, ok := s.bus.subscribers[s.id]; ok {
		sub.cancel()
		delete(s.bus.subscribers, s.id)
	}
	s.bus.mu.Unlock()
}

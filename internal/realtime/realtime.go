// Package realtime доставляет события пользователю в комнату user_<id>
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

const (
	EventDeliveryStatusUpdate = "delivery_status_update"
	EventCourierAssigned      = "courier_assigned"
)

type Event struct {
	Name    string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

type Broker interface {
	Publish(ctx context.Context, room, event string, payload any) error
	// Subscribe возвращает канал событий комнаты и функцию отписки
	Subscribe(ctx context.Context, room string) (<-chan Event, func(), error)
}

func UserRoom(userID uuid.UUID) string {
	return "user_" + userID.String()
}

func encode(event string, payload any) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("encode %s payload: %w", event, err)
	}
	return Event{Name: event, Payload: raw}, nil
}

const subscriberBuffer = 16

type subscriber struct {
	ch chan Event
}

// Hub брокер внутри процесса, для одного экземпляра сервиса
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*subscriber]struct{}
}

var _ Broker = (*Hub)(nil)

func NewHub() *Hub {
	return &Hub{rooms: make(map[string]map[*subscriber]struct{})}
}

// Publish не блокируется: медленный подписчик теряет событие
func (h *Hub) Publish(_ context.Context, room, event string, payload any) error {
	ev, err := encode(event, payload)
	if err != nil {
		return err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.rooms[room] {
		select {
		case s.ch <- ev:
		default:
		}
	}
	return nil
}

func (h *Hub) Subscribe(_ context.Context, room string) (<-chan Event, func(), error) {
	s := &subscriber{ch: make(chan Event, subscriberBuffer)}

	h.mu.Lock()
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[*subscriber]struct{})
	}
	h.rooms[room][s] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.rooms[room], s)
			if len(h.rooms[room]) == 0 {
				delete(h.rooms, room)
			}
			h.mu.Unlock()
			close(s.ch)
		})
	}
	return s.ch, unsubscribe, nil
}

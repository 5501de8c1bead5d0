package session

import "sync"

const tickBuffer = 64

// TickEvent is published once when a countdown is armed and after every
// step that does not reach zero.
type TickEvent struct {
	CandidateID   string
	QuestionIndex int
	Remaining     int
}

type tickHub struct {
	mu   sync.Mutex
	subs map[int]chan TickEvent
	next int
}

func (h *tickHub) subscribe() (<-chan TickEvent, func()) {
	ch := make(chan TickEvent, tickBuffer)

	h.mu.Lock()
	if h.subs == nil {
		h.subs = make(map[int]chan TickEvent)
	}
	id := h.next
	h.next++
	h.subs[id] = ch
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
			close(ch)
		})
	}
}

// publish never blocks; a slow subscriber misses ticks.
func (h *tickHub) publish(ev TickEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

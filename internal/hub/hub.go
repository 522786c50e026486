// Package hub fans out leaderboard events to connected viewers.
//
// Viewers subscribe to a topic and read events from a bounded queue.
// Publishing never blocks: a viewer whose queue is full is dropped and has
// to reconnect to get a fresh snapshot.
package hub

import (
	"encoding/json"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

// Message is a single event pushed to viewers.
type Message struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Subscriber is one connected viewer of a topic.
type Subscriber struct {
	ID    string
	topic string
	send  chan Message
	done  chan struct{}
	once  sync.Once
}

// Messages returns the channel the viewer's writer drains.
func (s *Subscriber) Messages() <-chan Message {
	return s.send
}

// Done is closed once the subscriber has been removed from the hub.
func (s *Subscriber) Done() <-chan struct{} {
	return s.done
}

func (s *Subscriber) close() {
	s.once.Do(func() { close(s.done) })
}

// Hub keeps the subscribers of every topic.
type Hub struct {
	mu        sync.Mutex
	topics    map[string]map[*Subscriber]struct{}
	queueSize int
	log       *log.Logger
}

// New creates a hub whose subscribers may lag behind by queueSize events.
func New(queueSize int) *Hub {
	if queueSize <= 0 {
		queueSize = 1
	}
	return &Hub{
		topics:    make(map[string]map[*Subscriber]struct{}),
		queueSize: queueSize,
		log:       log.Default().WithPrefix("hub"),
	}
}

// Subscribe registers a new viewer for topic.
func (h *Hub) Subscribe(topic string) *Subscriber {
	sub := &Subscriber{
		ID:    uuid.New().String(),
		topic: topic,
		send:  make(chan Message, h.queueSize),
		done:  make(chan struct{}),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.topics[topic] == nil {
		h.topics[topic] = make(map[*Subscriber]struct{})
	}
	h.topics[topic][sub] = struct{}{}
	h.log.Debug("viewer connected", "topic", topic, "id", sub.ID, "viewers", len(h.topics[topic]))
	return sub
}

// Unsubscribe removes a viewer. It is safe to call more than once.
func (h *Hub) Unsubscribe(sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.remove(sub)
}

// Publish queues msg for every viewer of topic and returns how many received it.
func (h *Hub) Publish(topic string, msg Message) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	delivered := 0
	for sub := range h.topics[topic] {
		if h.offer(sub, msg) {
			delivered++
		}
	}
	return delivered
}

// Send queues msg for a single viewer.
func (h *Hub) Send(sub *Subscriber, msg Message) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.topics[sub.topic][sub]; !ok {
		return false
	}
	return h.offer(sub, msg)
}

// Count returns the number of viewers of topic.
func (h *Hub) Count(topic string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.topics[topic])
}

// Close drops every viewer.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, subs := range h.topics {
		for sub := range subs {
			h.remove(sub)
		}
	}
}

// offer must be called with h.mu held.
func (h *Hub) offer(sub *Subscriber, msg Message) bool {
	select {
	case sub.send <- msg:
		return true
	default:
		h.log.Warn("viewer too slow, dropping", "topic", sub.topic, "id", sub.ID)
		h.remove(sub)
		return false
	}
}

// remove must be called with h.mu held.
func (h *Hub) remove(sub *Subscriber) {
	subs, ok := h.topics[sub.topic]
	if !ok {
		sub.close()
		return
	}
	if _, ok := subs[sub]; ok {
		delete(subs, sub)
		h.log.Debug("viewer disconnected", "topic", sub.topic, "id", sub.ID, "viewers", len(subs))
	}
	if len(subs) == 0 {
		delete(h.topics, sub.topic)
	}
	sub.close()
}

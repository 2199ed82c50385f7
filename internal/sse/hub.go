// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package sse

import (
	"sync"

	"github.com/samber/lo"
)

// bufferSize is how many events a slow subscriber may lag behind before
// further events are dropped for it.
const bufferSize = 10

// Hub fans events out to the subscribers of a topic. Poll tallies use the
// poll id as topic.
type Hub struct {
	topics map[string][]chan string
	mu     sync.RWMutex
	closed bool
}

// NewHub creates a new SSE hub.
func NewHub() *Hub {
	return &Hub{
		topics: make(map[string][]chan string),
	}
}

// Subscribe adds a subscriber to topic and returns its event channel.
// After Close the returned channel is already closed.
func (h *Hub) Subscribe(topic string) chan string {
	ch := make(chan string, bufferSize)

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		close(ch)
		return ch
	}
	h.topics[topic] = append(h.topics[topic], ch)
	return ch
}

// Unsubscribe removes ch from topic and closes it.
func (h *Hub) Unsubscribe(topic string, ch chan string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subscribers := h.topics[topic]
	if !lo.Contains(subscribers, ch) {
		return
	}
	h.topics[topic] = lo.Without(subscribers, ch)
	if len(h.topics[topic]) == 0 {
		delete(h.topics, topic)
	}

	close(ch)
}

// Publish sends message to every subscriber of topic. Subscribers with a
// full buffer miss the message; Publish never blocks.
func (h *Hub) Publish(topic, message string) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, ch := range h.topics[topic] {
		select {
		case ch <- message:
		default:
		}
	}
}

// Broadcast sends a message to all subscribers of all topics.
func (h *Hub) Broadcast(message string) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, subscribers := range h.topics {
		for _, ch := range subscribers {
			select {
			case ch <- message:
			default:
			}
		}
	}
}

// Close unsubscribes everyone, ending all open streams, and refuses
// later subscribers.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for topic, subscribers := range h.topics {
		for _, ch := range subscribers {
			close(ch)
		}
		delete(h.topics, topic)
	}
}

// ClientCount returns the total number of subscribers.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return lo.SumBy(lo.Values(h.topics), func(subscribers []chan string) int {
		return len(subscribers)
	})
}

// TopicCount returns the number of topics with at least one subscriber.
func (h *Hub) TopicCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.topics)
}

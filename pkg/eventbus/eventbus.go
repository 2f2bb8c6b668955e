// Copyright 2025 PackWatch Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package eventbus provides a lightweight publish-subscribe event bus that
// connects the intake, checker and handle plugins.
package eventbus

import (
	"sync"
	"sync/atomic"
)

// Event represents a message that can be published to the event bus
type Event struct {
	Payload any
}

// EventChan is a channel for delivering events to subscribers
type EventChan chan Event

// EventBus manages topic-based event subscriptions and publications.
// Subscriber channels are buffered; when a subscriber falls behind and its
// buffer fills up, events for that subscriber are dropped and counted.
type EventBus struct {
	mu          sync.RWMutex
	subscribers map[string][]EventChan
	bufferSize  int
	dropped     atomic.Int64
}

const defaultBufferSize = 1024

// NewEventBus creates a new event bus with the specified channel buffer size
func NewEventBus(bufferSize int) *EventBus {
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}
	return &EventBus{
		subscribers: make(map[string][]EventChan),
		bufferSize:  bufferSize,
	}
}

// Publish sends an event to all subscribers of the specified topic. Delivery
// is non-blocking; a subscriber with a full buffer misses the event.
func (eb *EventBus) Publish(topic string, event Event) {
	eb.mu.RLock()
	subscribers := eb.subscribers[topic]
	eb.mu.RUnlock()
	for _, subscriber := range subscribers {
		select {
		case subscriber <- event:
		default:
			eb.dropped.Add(1)
		}
	}
}

// Subscribe creates a new subscription to the specified topic and returns a
// channel for receiving events
func (eb *EventBus) Subscribe(topic string) EventChan {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	ch := make(EventChan, eb.bufferSize)
	eb.subscribers[topic] = append(eb.subscribers[topic], ch)
	return ch
}

// Unsubscribe removes a subscription from the specified topic and closes the
// channel
func (eb *EventBus) Unsubscribe(topic string, ch EventChan) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	subscribers, ok := eb.subscribers[topic]
	if !ok {
		return
	}
	for i, subscriber := range subscribers {
		if ch == subscriber {
			eb.subscribers[topic] = append(subscribers[:i], subscribers[i+1:]...)
			close(ch)
			return
		}
	}
}

// Dropped returns the number of events dropped due to full subscriber buffers
func (eb *EventBus) Dropped() int64 {
	return eb.dropped.Load()
}

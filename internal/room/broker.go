package room

import "sync"

// Broker is an in-process pub/sub for room snapshots, keyed by room name.
type Broker struct {
	mu   sync.RWMutex
	subs map[string]map[chan []byte]struct{}
}

func NewBroker() *Broker {
	return &Broker{
		subs: make(map[string]map[chan []byte]struct{}),
	}
}

// Subscribe returns a channel that receives JSON-encoded snapshots of the room.
func (b *Broker) Subscribe(room string) chan []byte {
	ch := make(chan []byte, 16)
	b.mu.Lock()
	if b.subs[room] == nil {
		b.subs[room] = make(map[chan []byte]struct{})
	}
	b.subs[room][ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes a channel from the room's subscribers.
func (b *Broker) Unsubscribe(room string, ch chan []byte) {
	b.mu.Lock()
	delete(b.subs[room], ch)
	if len(b.subs[room]) == 0 {
		delete(b.subs, room)
	}
	b.mu.Unlock()
}

// Publish sends data to all subscribers of the room.
func (b *Broker) Publish(room string, data []byte) {
	b.mu.RLock()
	for ch := range b.subs[room] {
		select {
		case ch <- data:
		default:
			// Drop if subscriber is slow; the next snapshot supersedes it.
		}
	}
	b.mu.RUnlock()
}

// Subscribers returns the number of live subscriptions to the room.
func (b *Broker) Subscribers(room string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[room])
}

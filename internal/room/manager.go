package room

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/playperu/buzzboard/internal/engine"
	"github.com/playperu/buzzboard/internal/store"
)

const leaseTimeout = 5 * time.Second

// Manager keeps the live rooms of this process. Rooms are loaded on first
// use by replaying their stored action log.
type Manager struct {
	store  Store
	broker *Broker
	pub    Publisher
	logger *slog.Logger
	opts   Options

	mu    sync.RWMutex
	rooms map[int64]*Room
	// evictions counts rooms removed from the map. A load that overlapped an
	// eviction may have read a log that has since grown, so it is retried.
	evictions uint64
	closed    bool
}

// NewManager creates a manager. pub may be nil.
func NewManager(st Store, broker *Broker, pub Publisher, logger *slog.Logger, opts Options) *Manager {
	return &Manager{
		store:  st,
		broker: broker,
		pub:    pub,
		logger: logger,
		opts:   opts,
		rooms:  make(map[int64]*Room),
	}
}

// Get returns the live room with the given name, loading it if needed.
func (m *Manager) Get(ctx context.Context, name string) (*Room, error) {
	info, err := m.store.GetRoom(ctx, name)
	if err != nil {
		return nil, err
	}

	for {
		m.mu.RLock()
		r, ok := m.rooms[info.ID]
		closed, evictions := m.closed, m.evictions
		m.mu.RUnlock()
		if ok {
			return r, nil
		}
		if closed {
			return nil, ErrClosed
		}

		loaded, err := m.load(ctx, info)
		if err != nil {
			return nil, err
		}

		m.mu.Lock()
		if r, ok := m.rooms[info.ID]; ok {
			m.mu.Unlock()
			return r, nil
		}
		if m.closed {
			m.mu.Unlock()
			return nil, ErrClosed
		}
		if m.evictions != evictions {
			m.mu.Unlock()
			continue
		}
		m.rooms[info.ID] = loaded
		loaded.start()
		m.mu.Unlock()

		m.logger.Info("room loaded", "room", info.Name, "seq", loaded.Current().Seq,
			"phase", loaded.State().Phase, "passive", loaded.passive)
		return loaded, nil
	}
}

// load rebuilds a room from its game and action log without registering it.
func (m *Manager) load(ctx context.Context, info store.Room) (*Room, error) {
	owner := true
	if m.opts.Leaser != nil {
		var err error
		if owner, err = m.opts.Leaser.Acquire(ctx, info.Name); err != nil {
			return nil, fmt.Errorf("room %s: %w", info.Name, err)
		}
	}

	g, err := m.store.GetGame(ctx, info.GameID)
	if err != nil {
		return nil, fmt.Errorf("loading game of room %s: %w", info.Name, err)
	}
	initial, err := engine.NewState(g)
	if err != nil {
		return nil, fmt.Errorf("room %s: %w", info.Name, err)
	}
	actions, err := m.store.Actions(ctx, info.ID)
	if err != nil {
		return nil, fmt.Errorf("loading actions of room %s: %w", info.Name, err)
	}
	s := engine.Replay(initial, actions)

	return newRoom(info, m.store, m.broker, m.pub, m.logger, m.opts, s, int64(len(actions)), !owner), nil
}

// Deliver hands a snapshot relayed from another instance to the passive copy
// of the room, if one is loaded, and to local subscribers.
func (m *Manager) Deliver(name string, data []byte) {
	m.mu.RLock()
	var target *Room
	for _, r := range m.rooms {
		if r.Name() == name {
			target = r
			break
		}
	}
	m.mu.RUnlock()

	if target != nil && target.passive {
		target.follow(data)
	}
	m.broker.Publish(name, data)
}

// Len returns the number of live rooms.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rooms)
}

// Reap stops rooms that have been idle for longer than idle and have no
// subscribers. It returns the number of rooms stopped. A reaped room is
// reloaded from its log on next use.
func (m *Manager) Reap(idle time.Duration) int {
	cutoff := time.Now().Add(-idle)

	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for id, r := range m.rooms {
		if r.LastActive().After(cutoff) || m.broker.Subscribers(r.Name()) > 0 {
			continue
		}
		m.evictLocked(id, r)
		n++
	}
	return n
}

// Maintain renews the leases of owned rooms and takes over passive rooms
// whose owner has let its lease lapse. It does nothing without a Leaser.
func (m *Manager) Maintain(ctx context.Context) {
	if m.opts.Leaser == nil {
		return
	}

	m.mu.RLock()
	rooms := make([]*Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		rooms = append(rooms, r)
	}
	m.mu.RUnlock()

	for _, r := range rooms {
		if !r.passive {
			err := m.opts.Leaser.Renew(ctx, r.Name())
			if errors.Is(err, ErrLeaseLost) {
				m.logger.Warn("room lease lost", "room", r.Name())
				m.evict(r)
			} else if err != nil {
				m.logger.Error("renewing room lease failed", "room", r.Name(), "error", err)
			}
			continue
		}

		ok, err := m.opts.Leaser.Acquire(ctx, r.Name())
		if err != nil {
			m.logger.Error("acquiring room lease failed", "room", r.Name(), "error", err)
			continue
		}
		if !ok {
			continue
		}
		m.evict(r)
		if _, err := m.Get(ctx, r.Name()); err != nil {
			m.logger.Error("taking over room failed", "room", r.Name(), "error", err)
			continue
		}
		m.logger.Info("room taken over", "room", r.Name())
	}
}

func (m *Manager) evict(r *Room) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.rooms[r.info.ID]; ok && cur == r {
		m.evictLocked(r.info.ID, r)
	}
}

// evictLocked stops r before removing it, so that Get cannot reload the room
// while an action is still being persisted.
func (m *Manager) evictLocked(id int64, r *Room) {
	r.Stop()
	delete(m.rooms, id)
	m.evictions++
	m.release(r)
	m.logger.Info("room stopped", "room", r.Name())
}

func (m *Manager) release(r *Room) {
	if r.passive || m.opts.Leaser == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), leaseTimeout)
	defer cancel()
	if err := m.opts.Leaser.Release(ctx, r.Name()); err != nil {
		m.logger.Error("releasing room lease failed", "room", r.Name(), "error", err)
	}
}

// Close stops every room and releases its lease. Further Get calls fail
// with ErrClosed.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	for id, r := range m.rooms {
		m.evictLocked(id, r)
	}
	return nil
}

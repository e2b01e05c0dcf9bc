// Package room runs the authoritative copy of each game room. Every room has
// a single dispatch goroutine that applies actions one at a time against the
// latest state, persists them, and fans the result out to subscribers.
package room

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/playperu/buzzboard/internal/engine"
	"github.com/playperu/buzzboard/internal/store"
)

var (
	ErrClosed   = errors.New("room closed")
	ErrNotHost  = errors.New("host token required")
	ErrNotOwner = errors.New("room is owned by another instance")
)

// Store is the persistence a room needs.
type Store interface {
	GetRoom(ctx context.Context, name string) (store.Room, error)
	GetGame(ctx context.Context, id string) (*engine.Game, error)
	Actions(ctx context.Context, roomID int64) ([]engine.Action, error)
	AppendAction(ctx context.Context, roomID, seq int64, a engine.Action) error
	CheckHostToken(ctx context.Context, roomID int64, token string) (bool, error)
}

// Publisher forwards snapshots beyond this process.
type Publisher interface {
	Publish(ctx context.Context, room string, data []byte) error
}

// Options tune room timing and ownership. Zero durations fall back to
// defaults.
type Options struct {
	// ClueReadGrace is added to the buzz window while a clue is read aloud.
	ClueReadGrace time.Duration
	// BuzzWindow is how long players may buzz once the clue is read.
	BuzzWindow time.Duration
	// LongFormDuration is how long players get to answer a long-form clue.
	LongFormDuration time.Duration
	// Leaser decides which instance owns each room. Nil means this instance
	// owns every room it loads.
	Leaser Leaser
}

const (
	defaultClueReadGrace    = 3 * time.Second
	defaultLongFormDuration = 60 * time.Second
)

func (o Options) withDefaults() Options {
	if o.ClueReadGrace <= 0 {
		o.ClueReadGrace = defaultClueReadGrace
	}
	if o.BuzzWindow <= 0 {
		o.BuzzWindow = engine.ClueTimeoutMs * time.Millisecond
	}
	if o.LongFormDuration <= 0 {
		o.LongFormDuration = defaultLongFormDuration
	}
	return o
}

// Result reports the outcome of a dispatched action.
type Result struct {
	Applied bool
	Seq     int64
	State   *engine.State
}

// Snapshot is the message published to subscribers after every applied action.
type Snapshot struct {
	Room  string        `json:"room"`
	Seq   int64         `json:"seq"`
	State *engine.State `json:"state"`
}

type request struct {
	action engine.Action
	reply  chan reply
}

type reply struct {
	res Result
	err error
}

// Room owns the canonical state of one game room.
type Room struct {
	info   store.Room
	store  Store
	broker *Broker
	pub    Publisher
	logger *slog.Logger
	opts   Options

	// A passive room mirrors a room owned by another instance. It has no
	// dispatch goroutine and takes its snapshots from fan-out.
	passive bool

	inbox    chan request
	timeouts chan uint64
	quit     chan struct{}
	stopped  chan struct{}
	stopOnce sync.Once

	current    atomic.Pointer[Snapshot]
	lastActive atomic.Int64

	// Owned by the dispatch goroutine.
	seq   int64
	timer *time.Timer
	epoch uint64
}

func newRoom(info store.Room, st Store, broker *Broker, pub Publisher, logger *slog.Logger, opts Options, s *engine.State, seq int64, passive bool) *Room {
	r := &Room{
		info:     info,
		store:    st,
		broker:   broker,
		pub:      pub,
		logger:   logger.With("room", info.Name),
		opts:     opts.withDefaults(),
		inbox:    make(chan request),
		timeouts: make(chan uint64, 1),
		quit:     make(chan struct{}),
		stopped:  make(chan struct{}),
		seq:      seq,
		passive:  passive,
	}
	r.current.Store(&Snapshot{Room: info.Name, Seq: seq, State: s})
	r.touch()
	return r
}

// Name returns the room's public name.
func (r *Room) Name() string { return r.info.Name }

// State returns the latest canonical state. It is safe for concurrent use.
func (r *Room) State() *engine.State { return r.current.Load().State }

// Current returns the latest snapshot. It is safe for concurrent use.
func (r *Room) Current() Snapshot { return *r.current.Load() }

// Passive reports whether the room mirrors another instance's room.
func (r *Room) Passive() bool { return r.passive }

// LastActive returns when the room last applied an action or was loaded.
func (r *Room) LastActive() time.Time { return time.Unix(0, r.lastActive.Load()) }

// Dispatch submits a for application and waits for the outcome. An action
// that is illegal in the current state is not an error: the result reports
// Applied false together with the unchanged state.
func (r *Room) Dispatch(ctx context.Context, a engine.Action) (Result, error) {
	if r.passive {
		return Result{}, ErrNotOwner
	}
	req := request{action: a, reply: make(chan reply, 1)}
	select {
	case r.inbox <- req:
	case <-r.quit:
		return Result{}, ErrClosed
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
	select {
	case rep := <-req.reply:
		return rep.res, rep.err
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// CheckHost returns ErrNotHost unless token is the room's host token.
func (r *Room) CheckHost(ctx context.Context, token string) error {
	if token == "" {
		return ErrNotHost
	}
	ok, err := r.store.CheckHostToken(ctx, r.info.ID, token)
	if err != nil {
		return fmt.Errorf("checking host token: %w", err)
	}
	if !ok {
		return ErrNotHost
	}
	return nil
}

// Subscribe returns a channel of JSON snapshots. The current state is
// delivered first.
func (r *Room) Subscribe() (chan []byte, error) {
	ch := r.broker.Subscribe(r.info.Name)
	data, err := json.Marshal(r.Current())
	if err != nil {
		r.broker.Unsubscribe(r.info.Name, ch)
		return nil, fmt.Errorf("encoding snapshot: %w", err)
	}
	select {
	case ch <- data:
	default:
	}
	return ch, nil
}

// Unsubscribe releases a channel returned by Subscribe.
func (r *Room) Unsubscribe(ch chan []byte) {
	r.broker.Unsubscribe(r.info.Name, ch)
}

// Stop ends the dispatch goroutine and waits for it to exit. An action that
// is being applied is persisted before Stop returns.
func (r *Room) Stop() {
	r.stopOnce.Do(func() { close(r.quit) })
	<-r.stopped
}

func (r *Room) start() {
	if r.passive {
		close(r.stopped)
		return
	}
	go r.run()
}

// follow adopts a snapshot published by the owning instance. Snapshots older
// than the current one are ignored.
func (r *Room) follow(data []byte) {
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil || snap.State == nil {
		r.logger.Warn("dropping undecodable snapshot", "error", err)
		return
	}
	for {
		cur := r.current.Load()
		if snap.Seq <= cur.Seq {
			return
		}
		snap.State.Game = cur.State.Game
		if r.current.CompareAndSwap(cur, &snap) {
			r.touch()
			return
		}
	}
}

func (r *Room) run() {
	defer close(r.stopped)
	r.schedule(nil, r.State())
	for {
		select {
		case <-r.quit:
			r.disarm()
			return
		case req := <-r.inbox:
			res, err := r.apply(req.action)
			req.reply <- reply{res: res, err: err}
		case epoch := <-r.timeouts:
			r.expire(epoch)
		}
	}
}

// apply runs one action through the engine. Only applied actions are
// persisted; the state is not advanced if persisting fails.
func (r *Room) apply(a engine.Action) (Result, error) {
	prev := r.State()
	next := engine.Apply(prev, a)
	if next == prev {
		r.logger.Debug("action ignored", "action", kindOf(a), "phase", prev.Phase)
		return Result{Seq: r.seq, State: prev}, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.store.AppendAction(ctx, r.info.ID, r.seq+1, a); err != nil {
		r.logger.Error("persisting action failed", "action", kindOf(a), "error", err)
		return Result{Seq: r.seq, State: prev}, fmt.Errorf("persisting action: %w", err)
	}
	r.seq++
	snap := &Snapshot{Room: r.info.Name, Seq: r.seq, State: next}
	r.current.Store(snap)
	r.touch()
	r.logger.Debug("action applied", "action", kindOf(a), "seq", r.seq, "phase", next.Phase)

	r.schedule(prev, next)
	r.publish(ctx, snap)
	return Result{Applied: true, Seq: r.seq, State: next}, nil
}

func (r *Room) publish(ctx context.Context, snap *Snapshot) {
	data, err := json.Marshal(snap)
	if err != nil {
		r.logger.Error("encoding snapshot failed", "error", err)
		return
	}
	r.broker.Publish(r.info.Name, data)
	if r.pub == nil {
		return
	}
	if err := r.pub.Publish(ctx, r.info.Name, data); err != nil {
		r.logger.Error("fan-out publish failed", "error", err)
	}
}

func (r *Room) touch() { r.lastActive.Store(time.Now().UnixNano()) }

func kindOf(a engine.Action) string {
	if a == nil {
		return "nil"
	}
	return string(a.Kind())
}

package room

import (
	"time"

	"github.com/playperu/buzzboard/internal/engine"
)

// The engine never looks at a clock. While a clue is open for buzzing the
// room arms a timer, and when it fires the room submits timeout buzzes on
// behalf of the players who stayed silent. Each armed timer carries an epoch;
// a tick from an older epoch is ignored.

// windowTimeout is the Buzz delta that closes a clue for the whole room.
const windowTimeout = engine.ClueTimeoutMs + 1

// schedule re-arms the timer when the phase or the active clue changed.
func (r *Room) schedule(prev, next *engine.State) {
	if prev != nil && prev.Phase == next.Phase && sameClue(prev.ActiveClue, next.ActiveClue) {
		return
	}
	r.disarm()
	switch next.Phase {
	case engine.PhaseReadClue:
		r.arm(r.opts.ClueReadGrace + r.opts.BuzzWindow)
	case engine.PhaseReadLongFormClue:
		r.arm(r.opts.LongFormDuration)
	}
}

func (r *Room) arm(d time.Duration) {
	r.epoch++
	epoch := r.epoch
	r.timer = time.AfterFunc(d, func() {
		select {
		case r.timeouts <- epoch:
		case <-r.quit:
		}
	})
}

func (r *Room) disarm() {
	r.epoch++
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
}

// expire submits timeout buzzes for the clue the timer was armed for.
func (r *Room) expire(epoch uint64) {
	if epoch != r.epoch {
		return
	}
	r.timer = nil

	s := r.State()
	if s.ActiveClue == nil {
		return
	}
	c := *s.ActiveClue
	switch s.Phase {
	case engine.PhaseReadClue:
		// One expired buzz resolves the race for everyone.
		for _, id := range s.Players.IDs() {
			if engine.CanBuzz(s, id) {
				r.timeout(id, c)
				return
			}
		}
	case engine.PhaseReadLongFormClue:
		for _, id := range s.Players.IDs() {
			if engine.CanBuzz(r.State(), id) {
				r.timeout(id, c)
			}
		}
	}
}

func (r *Room) timeout(userID string, c engine.Coord) {
	r.logger.Debug("buzz window expired", "user", userID, "i", c.I, "j", c.J)
	if _, err := r.apply(engine.Buzz{UserID: userID, I: c.I, J: c.J, DeltaMs: windowTimeout}); err != nil {
		r.logger.Error("applying timeout failed", "user", userID, "error", err)
	}
}

func sameClue(a, b *engine.Coord) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

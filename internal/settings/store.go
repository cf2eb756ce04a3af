package settings

import (
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"

	"github.com/coreman2200/spiraltree/internal/command"
)

// Listener observes every applied event. Listeners run on the dispatching
// goroutine, in subscription order, and must not call Dispatch.
type Listener func(prev, next Settings, ev Event, cmds []command.Command)

// Store is the single mutation entry point. Readers take a Snapshot per frame
// and never see a half-applied event.
type Store struct {
	mu        sync.Mutex
	cur       atomic.Pointer[Settings]
	listeners []Listener
}

func NewStore(initial Settings) *Store {
	s := &Store{}
	s.cur.Store(&initial)
	return s
}

func (s *Store) Snapshot() Settings { return *s.cur.Load() }

func (s *Store) Subscribe(fn Listener) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

// Dispatch reduces ev against the current snapshot, publishes the result and
// notifies listeners.
func (s *Store) Dispatch(ev Event) (Settings, []command.Command) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := *s.cur.Load()
	next, cmds := Reduce(prev, ev)
	s.cur.Store(&next)

	log.Debug().Str("event", string(ev.Kind)).Str("value", ev.Value).
		Strs("values", ev.Values).Int("cmds", len(cmds)).Msg("settings")

	for _, fn := range s.listeners {
		fn(prev, next, ev, cmds)
	}
	return next, cmds
}

// Replace swaps the whole snapshot, e.g. after a config reload. Listeners are
// not notified.
func (s *Store) Replace(v Settings) {
	s.mu.Lock()
	s.cur.Store(&v)
	s.mu.Unlock()
}

// Package identity holds who is standing in front of the kiosk.
//
// The Store is the single authoritative cell for the current member, the
// member list and the mirrored face level. Reads are synchronous; every
// write notifies subscribers afterwards.
package identity

import (
	"sync"

	"github.com/teslashibe/go-kiosk/pkg/facetrack"
	"github.com/teslashibe/go-kiosk/pkg/members"
)

// Field names the part of the store a change touched.
type Field string

const (
	FieldCurrent Field = "current"
	FieldMembers Field = "members"
	FieldLevel   Field = "level"
)

// Snapshot is a point-in-time copy of the store.
type Snapshot struct {
	Current *members.Member  `json:"current"`
	Members []members.Member `json:"members"`
	Level   facetrack.Level  `json:"level"`
}

// Change is delivered to subscribers after a write.
type Change struct {
	Field    Field
	Snapshot Snapshot
}

// Listener receives changes. It runs on the writer's goroutine.
type Listener func(Change)

// Store holds the current identity state.
type Store struct {
	mu      sync.RWMutex
	current *members.Member
	members []members.Member
	level   facetrack.Level

	subsMu sync.Mutex
	subs   map[int]Listener
	order  []int
	nextID int
}

// NewStore creates an empty store: nobody present, level NONE.
func NewStore() *Store {
	return &Store{subs: make(map[int]Listener)}
}

// Current returns a copy of the current member, or nil when nobody is
// recognized.
func (s *Store) Current() *members.Member {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneMember(s.current)
}

// CurrentID returns the current member id, or "".
func (s *Store) CurrentID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return ""
	}
	return s.current.ID
}

// SetCurrent replaces the current member. nil clears it.
func (s *Store) SetCurrent(m *members.Member) {
	s.mu.Lock()
	s.current = cloneMember(m)
	s.mu.Unlock()
	s.notify(FieldCurrent)
}

// Members returns a copy of the member list.
func (s *Store) Members() []members.Member {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]members.Member(nil), s.members...)
}

// SetMembers replaces the member list.
func (s *Store) SetMembers(list []members.Member) {
	s.mu.Lock()
	s.members = append([]members.Member(nil), list...)
	s.mu.Unlock()
	s.notify(FieldMembers)
}

// Level returns the mirrored face level.
func (s *Store) Level() facetrack.Level {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.level
}

// SetLevel mirrors the face level. It satisfies facetrack.LevelSink.
func (s *Store) SetLevel(level facetrack.Level) {
	s.mu.Lock()
	s.level = level
	s.mu.Unlock()
	s.notify(FieldLevel)
}

// Snapshot returns a copy of the whole store.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Current: cloneMember(s.current),
		Members: append([]members.Member(nil), s.members...),
		Level:   s.level,
	}
}

// Subscribe registers fn for every subsequent change. Listeners run in
// subscription order. The returned func removes the subscription.
func (s *Store) Subscribe(fn Listener) (cancel func()) {
	s.subsMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.order = append(s.order, id)
	s.subsMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subsMu.Lock()
			defer s.subsMu.Unlock()
			delete(s.subs, id)
			for i, v := range s.order {
				if v == id {
					s.order = append(s.order[:i:i], s.order[i+1:]...)
					break
				}
			}
		})
	}
}

func (s *Store) notify(field Field) {
	s.subsMu.Lock()
	listeners := make([]Listener, 0, len(s.order))
	for _, id := range s.order {
		listeners = append(listeners, s.subs[id])
	}
	s.subsMu.Unlock()

	if len(listeners) == 0 {
		return
	}

	change := Change{Field: field, Snapshot: s.Snapshot()}
	for _, fn := range listeners {
		fn(change)
	}
}

func cloneMember(m *members.Member) *members.Member {
	if m == nil {
		return nil
	}
	c := *m
	return &c
}

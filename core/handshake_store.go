package core

import (
	"container/list"
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

const (
	DefaultHandshakeTTL = 10 * time.Minute

	// DefaultHandshakeMaxEntries caps the memory store. Beyond it Create
	// evicts the oldest handshake even if it is still within its TTL, and a
	// later exchange for it fails with an invalid state error.
	DefaultHandshakeMaxEntries = 10000
)

// MemoryHandshakeStore keeps handshakes in process, ordered by CreatedAt.
// Expired records stay until PurgeExpired removes them, so an exchange for
// them still reports an expired state.
type MemoryHandshakeStore struct {
	mu         sync.Mutex
	maxEntries int
	now        Clock
	entries    map[string]*list.Element
	order      *list.List
}

func NewMemoryHandshakeStore() *MemoryHandshakeStore {
	return NewMemoryHandshakeStoreWithLimits(DefaultHandshakeMaxEntries)
}

// NewMemoryHandshakeStoreWithLimits builds a store holding at most
// maxEntries handshakes. Zero disables the cap.
func NewMemoryHandshakeStoreWithLimits(maxEntries int) *MemoryHandshakeStore {
	if maxEntries < 0 {
		maxEntries = 0
	}
	return &MemoryHandshakeStore{
		maxEntries: maxEntries,
		now:        utcNow,
		entries:    map[string]*list.Element{},
		order:      list.New(),
	}
}

func (s *MemoryHandshakeStore) WithClock(clock Clock) *MemoryHandshakeStore {
	if s != nil && clock != nil {
		s.mu.Lock()
		s.now = clock
		s.mu.Unlock()
	}
	return s
}

func (s *MemoryHandshakeStore) Create(_ context.Context, handshake Handshake) error {
	if s == nil {
		return fmt.Errorf("core: handshake store is not configured")
	}
	state := strings.TrimSpace(handshake.State)
	if state == "" {
		return fmt.Errorf("core: handshake state is required")
	}
	handshake.State = state

	s.mu.Lock()
	defer s.mu.Unlock()

	if handshake.CreatedAt.IsZero() {
		handshake.CreatedAt = s.now()
	}
	if _, exists := s.entries[state]; exists {
		return ErrHandshakeExists
	}
	s.entries[state] = s.insertLocked(handshake)
	if s.maxEntries > 0 {
		for len(s.entries) > s.maxEntries {
			s.removeLocked(s.order.Front())
		}
	}
	return nil
}

func (s *MemoryHandshakeStore) Consume(_ context.Context, state string) (Handshake, error) {
	if s == nil {
		return Handshake{}, fmt.Errorf("core: handshake store is not configured")
	}
	state = strings.TrimSpace(state)
	if state == "" {
		return Handshake{}, ErrHandshakeNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	element, ok := s.entries[state]
	if !ok {
		return Handshake{}, ErrHandshakeNotFound
	}
	return s.removeLocked(element), nil
}

func (s *MemoryHandshakeStore) PurgeExpired(_ context.Context, before time.Time) (int, error) {
	if s == nil {
		return 0, fmt.Errorf("core: handshake store is not configured")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	purged := 0
	for element := s.order.Front(); element != nil; {
		handshake := element.Value.(Handshake)
		if !handshake.CreatedAt.Before(before) {
			break
		}
		next := element.Next()
		s.removeLocked(element)
		purged++
		element = next
	}
	return purged, nil
}

func (s *MemoryHandshakeStore) ListPending(_ context.Context, ownerID string) ([]Handshake, error) {
	if s == nil {
		return nil, fmt.Errorf("core: handshake store is not configured")
	}
	ownerID = strings.TrimSpace(ownerID)
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Handshake, 0)
	for element := s.order.Front(); element != nil; element = element.Next() {
		handshake := element.Value.(Handshake)
		if ownerID != "" && handshake.OwnerID != ownerID {
			continue
		}
		out = append(out, handshake)
	}
	return out, nil
}

func (s *MemoryHandshakeStore) Len() int {
	if s == nil {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// insertLocked keeps the list ordered by CreatedAt, then State. New
// handshakes are normally the newest, so the scan starts at the back.
func (s *MemoryHandshakeStore) insertLocked(handshake Handshake) *list.Element {
	for element := s.order.Back(); element != nil; element = element.Prev() {
		if !handshakeBefore(handshake, element.Value.(Handshake)) {
			return s.order.InsertAfter(handshake, element)
		}
	}
	return s.order.PushFront(handshake)
}

func (s *MemoryHandshakeStore) removeLocked(element *list.Element) Handshake {
	handshake := s.order.Remove(element).(Handshake)
	delete(s.entries, handshake.State)
	return handshake
}

func handshakeBefore(a Handshake, b Handshake) bool {
	if a.CreatedAt.Equal(b.CreatedAt) {
		return a.State < b.State
	}
	return a.CreatedAt.Before(b.CreatedAt)
}

func utcNow() time.Time {
	return time.Now().UTC()
}

var (
	_ HandshakeStore  = (*MemoryHandshakeStore)(nil)
	_ HandshakePurger = (*MemoryHandshakeStore)(nil)
	_ HandshakeLister = (*MemoryHandshakeStore)(nil)
)

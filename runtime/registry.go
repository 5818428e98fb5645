package runtime

import (
	"sync"

	"kitbot/contract"
	"kitbot/domain"
)

// Registry resolves live sessions by room identity. Extensions receive it
// behind contract.ISessionRegistry so they can reply into the room an
// event came from.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

func (r *Registry) Register(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.Identity().Key()] = s
}

func (r *Registry) Session(room domain.RoomIdentity) (contract.ISession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[room.Key()]
	if !ok {
		return nil, false
	}
	return s, true
}

// All returns every registered session, for the status page.
func (r *Registry) All() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	all := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		all = append(all, s)
	}
	return all
}

package catalog

import (
	"sync"

	"github.com/google/uuid"
)

// Sessions is the registry of live catalog sessions, keyed by id.
type Sessions struct {
	fetcher *Fetcher
	parser  *Parser

	mu    sync.RWMutex
	byID  map[string]*Session
	limit int
}

const defaultSessionLimit = 32

func NewSessions(fetcher *Fetcher, parser *Parser) *Sessions {
	return &Sessions{
		fetcher: fetcher,
		parser:  parser,
		byID:    make(map[string]*Session),
		limit:   defaultSessionLimit,
	}
}

// Create registers a new, unopened session and returns it.
func (r *Sessions) Create() (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.byID) >= r.limit {
		return nil, ErrBusy
	}
	session := NewSession(uuid.NewString(), r.fetcher, r.parser)
	r.byID[session.ID] = session
	return session, nil
}

func (r *Sessions) Get(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	session, ok := r.byID[id]
	return session, ok
}

func (r *Sessions) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byID, id)
}

func (r *Sessions) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

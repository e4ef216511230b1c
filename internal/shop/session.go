package shop

import "sync"

// State is a position in the order flow.
type State int

const (
	StateChoosingGame State = iota
	StateChoosingPack
	StateEnteringNickname
	StateChoosingAsset
)

// Session is per-buyer transient flow data. It lives from the first
// interaction until commit or reset and is never shared between buyers.
type Session struct {
	BuyerID  int64
	Game     string
	Pack     string
	Nickname string
	State    State
}

// NewSessionStore constructs an empty session registry.
func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[int64]*Session)}
}

// SessionStore is a concurrency-safe registry of active sessions keyed by
// buyer id. The transport serializes delivery per buyer, so the mutex only
// guards cross-buyer map access.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[int64]*Session
}

// Ensure returns the buyer's session, creating one at the initial state on
// first interaction.
func (s *SessionStore) Ensure(buyerID int64) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[buyerID]
	if !ok {
		sess = &Session{BuyerID: buyerID, State: StateChoosingGame}
		s.sessions[buyerID] = sess
	}
	return sess
}

// Reset discards any existing session and starts a fresh one.
func (s *SessionStore) Reset(buyerID int64) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := &Session{BuyerID: buyerID, State: StateChoosingGame}
	s.sessions[buyerID] = sess
	return sess
}

// Clear destroys the buyer's session. A committed flow clears before the
// summary is presented so a duplicate trigger finds nothing to commit.
func (s *SessionStore) Clear(buyerID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, buyerID)
}

// Len reports the number of active sessions (for testing/inspection).
func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

package chatbot

import (
	"sync"
	"time"
)

// MaxExchanges is how many exchanges are kept per subject.
const MaxExchanges = 100

// Exchange is one user message and the bot's reply.
type Exchange struct {
	User string    `json:"user"`
	Bot  string    `json:"bot"`
	At   time.Time `json:"at"`
}

type conversation struct {
	mu        sync.Mutex
	location  string
	exchanges []Exchange
}

// ContextStore keeps per-subject conversation state in memory. Operations
// on one subject are serialized by its conversation lock; the store lock
// only guards the index.
type ContextStore struct {
	mu    sync.Mutex
	convs map[string]*conversation
}

// NewContextStore creates an empty store.
func NewContextStore() *ContextStore {
	return &ContextStore{convs: make(map[string]*conversation)}
}

// lock returns the subject's conversation with its lock held.
func (s *ContextStore) lock(subjectID string) *conversation {
	s.mu.Lock()
	c, ok := s.convs[subjectID]
	if !ok {
		c = &conversation{}
		s.convs[subjectID] = c
	}
	s.mu.Unlock()

	c.mu.Lock()
	return c
}

// Location returns the subject's chosen location, or "".
func (s *ContextStore) Location(subjectID string) string {
	c := s.lock(subjectID)
	defer c.mu.Unlock()
	return c.location
}

// SetLocation sets the subject's location.
func (s *ContextStore) SetLocation(subjectID, location string) {
	c := s.lock(subjectID)
	defer c.mu.Unlock()
	c.location = location
}

// Append records an exchange, dropping the oldest beyond MaxExchanges.
func (s *ContextStore) Append(subjectID string, e Exchange) {
	c := s.lock(subjectID)
	defer c.mu.Unlock()

	c.exchanges = append(c.exchanges, e)
	if over := len(c.exchanges) - MaxExchanges; over > 0 {
		c.exchanges = append([]Exchange(nil), c.exchanges[over:]...)
	}
}

// History returns a copy of the subject's exchanges, oldest first.
func (s *ContextStore) History(subjectID string) []Exchange {
	c := s.lock(subjectID)
	defer c.mu.Unlock()

	out := make([]Exchange, len(c.exchanges))
	copy(out, c.exchanges)
	return out
}

// Package conversation holds the process-wide, bounded conversation log.
package conversation

import (
	"sync"

	"realty-assistant/internal/domain"
)

const DefaultMaxHistoryLength = 10

// Store is an ordered log of turns capped at 2*maxHistory entries. It is safe
// for concurrent use.
type Store struct {
	mu         sync.Mutex
	turns      []domain.Turn
	maxHistory int
}

// New creates an empty store. A non-positive maxHistory selects
// DefaultMaxHistoryLength.
func New(maxHistory int) *Store {
	if maxHistory <= 0 {
		maxHistory = DefaultMaxHistoryLength
	}
	return &Store{maxHistory: maxHistory}
}

// MaxHistory is the number of turns the prompt window draws from.
func (s *Store) MaxHistory() int {
	return s.maxHistory
}

// Capacity is the maximum number of turns retained.
func (s *Store) Capacity() int {
	return 2 * s.maxHistory
}

// Snapshot returns a copy of all retained turns, oldest first.
func (s *Store) Snapshot() []domain.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Turn, len(s.turns))
	copy(out, s.turns)
	return out
}

// AppendExchange records one completed exchange and evicts the oldest turns
// beyond capacity. Both turns land under the same lock.
func (s *Store) AppendExchange(question, answer string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = append(s.turns, domain.UserTurn(question), domain.AssistantTurn(answer))
	if limit := s.Capacity(); len(s.turns) > limit {
		trimmed := make([]domain.Turn, limit)
		copy(trimmed, s.turns[len(s.turns)-limit:])
		s.turns = trimmed
	}
}

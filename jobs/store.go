package jobs

import (
	"errors"
	"sync"
)

var (
	ErrNotFound = errors.New("job not found")
	ErrConflict = errors.New("job id already in use")
)

// Store maps job ids to their records. Records are never removed; they
// live as long as the process.
type Store struct {
	mu   sync.RWMutex
	jobs map[string]*Job
}

func NewStore() *Store {
	return &Store{jobs: make(map[string]*Job)}
}

// Create registers a new QUEUED job.
func (s *Store) Create(id string, kind Kind) (*Job, error) {
	if id == "" {
		return nil, errors.New("job id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[id]; exists {
		return nil, ErrConflict
	}
	j := newJob(id, kind)
	s.jobs[id] = j
	return j, nil
}

func (s *Store) Get(id string) (*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	j, ok := s.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return j, nil
}

// Counts returns the number of jobs in each state.
func (s *Store) Counts() map[State]int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := map[State]int{Queued: 0, Running: 0, Completed: 0, Failed: 0}
	for _, j := range s.jobs {
		counts[j.State()]++
	}
	return counts
}

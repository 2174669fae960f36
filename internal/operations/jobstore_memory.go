package operations

import (
	"context"
	"sort"
	"sync"

	apperrors "cryptorecs/internal/errors"
	"cryptorecs/pkg/contracts/domain"
)

// DefaultRunHistory is how many runs MemoryRunStore keeps
const DefaultRunHistory = 100

// RunStore persists run records
type RunStore interface {
	// Save inserts or replaces the run with the same RunID
	Save(ctx context.Context, run domain.Run) error
	// Get returns the run with runID or a NoSuchRun error
	Get(ctx context.Context, runID int64) (domain.Run, error)
	// Latest returns the run with the highest RunID or a NoSuchRun error
	Latest(ctx context.Context) (domain.Run, error)
	// List returns runs matching filter, newest first
	List(ctx context.Context, filter RunFilter) ([]domain.Run, error)
}

// RunFilter narrows List
type RunFilter struct {
	Status domain.RunStatus
	Limit  int
}

// MemoryRunStore is an in-memory implementation of RunStore
type MemoryRunStore struct {
	mu      sync.RWMutex
	runs    map[int64]domain.Run
	order   []int64
	history int
}

// NewMemoryRunStore creates a store that keeps the newest history runs
func NewMemoryRunStore(history int) *MemoryRunStore {
	if history <= 0 {
		history = DefaultRunHistory
	}
	return &MemoryRunStore{
		runs:    make(map[int64]domain.Run),
		history: history,
	}
}

func (s *MemoryRunStore) Save(ctx context.Context, run domain.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.runs[run.RunID]; !exists {
		s.order = append(s.order, run.RunID)
		sort.Slice(s.order, func(i, j int) bool { return s.order[i] < s.order[j] })
		for len(s.order) > s.history {
			delete(s.runs, s.order[0])
			s.order = s.order[1:]
		}
	}
	// Store a copy to prevent external modification
	s.runs[run.RunID] = run.Clone()
	return nil
}

func (s *MemoryRunStore) Get(ctx context.Context, runID int64) (domain.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, exists := s.runs[runID]
	if !exists {
		return domain.Run{}, apperrors.NewAppError(apperrors.ErrTypeNoSuchRun, "run not found", nil).
			WithContext("run_id", runID)
	}
	return run.Clone(), nil
}

func (s *MemoryRunStore) Latest(ctx context.Context) (domain.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.order) == 0 {
		return domain.Run{}, apperrors.ErrNoSuchRun
	}
	return s.runs[s.order[len(s.order)-1]].Clone(), nil
}

func (s *MemoryRunStore) List(ctx context.Context, filter RunFilter) ([]domain.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.Run
	for i := len(s.order) - 1; i >= 0; i-- {
		run := s.runs[s.order[i]]
		if filter.Status != "" && run.Status != filter.Status {
			continue
		}
		result = append(result, run.Clone())
		if filter.Limit > 0 && len(result) >= filter.Limit {
			break
		}
	}
	return result, nil
}

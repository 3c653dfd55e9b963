package storage

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/eugenenazirov/parade-allocator/internal/allocation"
	"github.com/eugenenazirov/parade-allocator/internal/parade"
)

const defaultMaxRuns = 100

var (
	// ErrRunNotFound indicates no stored run matches the requested identifier.
	ErrRunNotFound = errors.New("allocation run not found")
)

// Storage provides access to the group roster used by the allocator.
type Storage interface {
	GetGroups() ([]parade.Group, error)
	SetGroups(groups []parade.Group) error
}

// MemoryStorage keeps the roster in-memory and guards access with a RWMutex.
type MemoryStorage struct {
	mu     sync.RWMutex
	groups []parade.Group
}

// NewMemoryStorage initialises storage with a copy of the given roster, which
// may be empty.
func NewMemoryStorage(initial []parade.Group) *MemoryStorage {
	return &MemoryStorage{
		groups: slices.Clone(initial),
	}
}

// GetGroups returns a copy of the current roster in insertion order.
func (s *MemoryStorage) GetGroups() ([]parade.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := slices.Clone(s.groups)
	if out == nil {
		out = []parade.Group{}
	}
	return out, nil
}

// SetGroups validates and stores the provided roster.
func (s *MemoryStorage) SetGroups(groups []parade.Group) error {
	if err := allocation.ValidateGroups(groups); err != nil {
		return err
	}

	s.mu.Lock()
	s.groups = slices.Clone(groups)
	s.mu.Unlock()

	return nil
}

// Run is one completed allocation together with the inputs that produced it.
type Run struct {
	ID         string             `json:"id"`
	Groups     []parade.Group     `json:"groups"`
	Params     allocation.Params  `json:"-"`
	Allocation *parade.Allocation `json:"allocation"`
	Elapsed    time.Duration      `json:"-"`
	CreatedAt  time.Time          `json:"createdAt"`
}

// RunStore keeps the most recent allocation runs keyed by a generated ID.
type RunStore interface {
	Save(run Run) (string, error)
	Get(id string) (Run, error)
}

// MemoryRunStore is a bounded in-memory RunStore. When full, the oldest run
// is evicted.
type MemoryRunStore struct {
	mu    sync.RWMutex
	max   int
	order []string
	runs  map[string]Run
	newID func() string
}

// NewMemoryRunStore creates a store holding at most maxRuns runs; a
// non-positive value selects the default.
func NewMemoryRunStore(maxRuns int) *MemoryRunStore {
	if maxRuns <= 0 {
		maxRuns = defaultMaxRuns
	}
	return &MemoryRunStore{
		max:   maxRuns,
		runs:  make(map[string]Run),
		newID: func() string { return uuid.NewString() },
	}
}

// Save assigns the run an ID and stores it.
func (s *MemoryRunStore) Save(run Run) (string, error) {
	if run.Allocation == nil {
		return "", fmt.Errorf("save run: allocation is required")
	}
	run.ID = s.newID()
	run.Groups = slices.Clone(run.Groups)

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.order) >= s.max {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.runs, oldest)
	}
	s.order = append(s.order, run.ID)
	s.runs[run.ID] = run
	return run.ID, nil
}

// Get returns the stored run with the given ID.
func (s *MemoryRunStore) Get(id string) (Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	if !ok {
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	run.Groups = slices.Clone(run.Groups)
	return run, nil
}

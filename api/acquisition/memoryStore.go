package acquisition

import (
	"sort"
	"sync"

	"github.com/slidescope/core/core/utils"
)

// In-memory Store for unit tests, so orchestration tests don't need a
// database running
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]AcquisitionSummary
}

func MakeMemoryStore() *MemoryStore {
	return &MemoryStore{records: map[string]AcquisitionSummary{}}
}

func (s *MemoryStore) Insert(summary AcquisitionSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[summary.Id] = summary
	return nil
}

func (s *MemoryStore) Update(summary AcquisitionSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[summary.Id] = summary
	return nil
}

func (s *MemoryStore) Get(id string) (AcquisitionSummary, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	summary, ok := s.records[id]
	return summary, ok, nil
}

func (s *MemoryStore) List(filter ListFilter) ([]AcquisitionSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := []AcquisitionSummary{}
	for _, summary := range s.records {
		if len(filter.MicroscopeId) > 0 && summary.MicroscopeId != filter.MicroscopeId {
			continue
		}
		if len(filter.SlideId) > 0 && summary.SlideId != filter.SlideId {
			continue
		}
		if len(filter.States) > 0 && !utils.ItemInSlice(summary.State, filter.States) {
			continue
		}
		result = append(result, summary)
	}

	sort.Slice(result, func(i, j int) bool { return result[i].StartUnixSec > result[j].StartUnixSec })
	return result, nil
}

func (s *MemoryStore) NonTerminal() ([]AcquisitionSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := []AcquisitionSummary{}
	for _, summary := range s.records {
		if !summary.State.IsTerminal() {
			result = append(result, summary)
		}
	}
	return result, nil
}

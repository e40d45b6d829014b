package analysis

import (
	"context"
	"fmt"
	"sync"
)

// MemoryRepository keeps reports in process memory. It is used when no
// database is configured.
type MemoryRepository struct {
	mu      sync.RWMutex
	reports map[string]*Report
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{reports: make(map[string]*Report)}
}

func (r *MemoryRepository) Save(_ context.Context, report *Report) error {
	if report == nil || report.ID == "" {
		return fmt.Errorf("nil analysis report payload")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.reports[report.ID]; ok {
		return nil
	}
	r.reports[report.ID] = report.clone()
	return nil
}

func (r *MemoryRepository) Get(_ context.Context, id string) (*Report, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	report, ok := r.reports[id]
	if !ok {
		return nil, ErrReportNotFound
	}
	return report.clone(), nil
}

// Package memory provides in-memory payroll repositories for tests and local runs.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/payroll"
)

// =============================================================================
// RUN STORE
// =============================================================================

type RunStore struct {
	mu         sync.RWMutex
	runs       map[string]payroll.PayrollRun
	lines      map[string][]payroll.PayrollRunLine
	exceptions map[string][]payroll.PayrollRunException
}

func NewRunStore() *RunStore {
	return &RunStore{
		runs:       make(map[string]payroll.PayrollRun),
		lines:      make(map[string][]payroll.PayrollRunLine),
		exceptions: make(map[string][]payroll.PayrollRunException),
	}
}

var _ payroll.RunRepository = (*RunStore)(nil)

func (s *RunStore) CreateRun(_ context.Context, run payroll.PayrollRun) (payroll.PayrollRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if run.ID == "" {
		return payroll.PayrollRun{}, fmt.Errorf("create payroll run: id is required")
	}
	if _, exists := s.runs[run.ID]; exists {
		return payroll.PayrollRun{}, fmt.Errorf("create payroll run: id %s already exists", run.ID)
	}
	s.runs[run.ID] = run
	return run, nil
}

func (s *RunStore) GetRunByID(_ context.Context, id string) (payroll.PayrollRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	if !ok {
		return payroll.PayrollRun{}, payroll.ErrPayrollRunNotFound
	}
	return run, nil
}

func (s *RunStore) ListRuns(_ context.Context, filter payroll.PayrollRunFilter) ([]payroll.PayrollRun, int64, error) {
	filter.Normalize()

	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []payroll.PayrollRun
	for _, r := range s.runs {
		if filter.Status != nil && string(r.Status) != *filter.Status {
			continue
		}
		matched = append(matched, r)
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID > matched[j].ID
	})

	total := int64(len(matched))
	offset := (filter.Page - 1) * filter.Limit
	if offset >= len(matched) {
		return []payroll.PayrollRun{}, total, nil
	}
	end := offset + filter.Limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], total, nil
}

func (s *RunStore) GetLines(_ context.Context, runID string) ([]payroll.PayrollRunLine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]payroll.PayrollRunLine, len(s.lines[runID]))
	copy(result, s.lines[runID])
	return result, nil
}

func (s *RunStore) GetExceptions(_ context.Context, runID string) ([]payroll.PayrollRunException, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]payroll.PayrollRunException, len(s.exceptions[runID]))
	copy(result, s.exceptions[runID])
	return result, nil
}

// ReplaceResults checks the whole result set before touching stored state,
// so a rejected set leaves the previous one in place.
func (s *RunStore) ReplaceResults(_ context.Context, run payroll.PayrollRun, result payroll.RunResult) (payroll.PayrollRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.runs[run.ID]
	if !ok {
		return payroll.PayrollRun{}, payroll.ErrPayrollRunNotFound
	}
	if current.Status == payroll.RunStatusFinalized {
		return payroll.PayrollRun{}, payroll.ErrRunFinalized
	}

	seen := make(map[string]struct{}, len(result.Lines)+len(result.Exceptions))
	for _, l := range result.Lines {
		if l.RunID != run.ID {
			return payroll.PayrollRun{}, fmt.Errorf("replace results: line %s belongs to run %s", l.ID, l.RunID)
		}
		if _, dup := seen[l.ID]; dup {
			return payroll.PayrollRun{}, fmt.Errorf("replace results: duplicate line id %s", l.ID)
		}
		seen[l.ID] = struct{}{}
	}
	for _, e := range result.Exceptions {
		if e.RunID != run.ID {
			return payroll.PayrollRun{}, fmt.Errorf("replace results: exception %s belongs to run %s", e.ID, e.RunID)
		}
		if _, dup := seen[e.ID]; dup {
			return payroll.PayrollRun{}, fmt.Errorf("replace results: duplicate exception id %s", e.ID)
		}
		seen[e.ID] = struct{}{}
	}

	lines := make([]payroll.PayrollRunLine, len(result.Lines))
	copy(lines, result.Lines)
	exceptions := make([]payroll.PayrollRunException, len(result.Exceptions))
	copy(exceptions, result.Exceptions)

	now := time.Now().UTC()
	current.Status = payroll.RunStatusCalculated
	current.CalculatedAt = &now
	current.UpdatedAt = now
	current.ToleranceHours = run.ToleranceHours
	current.ActivityThreshold = run.ActivityThreshold

	s.runs[run.ID] = current
	s.lines[run.ID] = lines
	s.exceptions[run.ID] = exceptions
	return current, nil
}

func (s *RunStore) FinalizeRun(_ context.Context, runID string, finalizedBy string, finalizedAt time.Time) (payroll.PayrollRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	run, ok := s.runs[runID]
	if !ok {
		return payroll.PayrollRun{}, payroll.ErrPayrollRunNotFound
	}
	switch run.Status {
	case payroll.RunStatusFinalized:
		return payroll.PayrollRun{}, payroll.ErrRunAlreadyFinalized
	case payroll.RunStatusDraft:
		return payroll.PayrollRun{}, payroll.ErrRunNotCalculated
	}

	run.Status = payroll.RunStatusFinalized
	run.FinalizedBy = &finalizedBy
	run.FinalizedAt = &finalizedAt
	run.UpdatedAt = finalizedAt
	s.runs[runID] = run
	return run, nil
}

func (s *RunStore) ResolveException(_ context.Context, runID, exceptionID, resolvedBy string, note *string, resolvedAt time.Time) (payroll.PayrollRunException, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	exceptions := s.exceptions[runID]
	for i := range exceptions {
		if exceptions[i].ID != exceptionID {
			continue
		}
		if exceptions[i].Resolved {
			return payroll.PayrollRunException{}, payroll.ErrExceptionResolved
		}
		exceptions[i].Resolved = true
		exceptions[i].ResolvedBy = &resolvedBy
		exceptions[i].ResolvedAt = &resolvedAt
		exceptions[i].ResolutionNote = note
		return exceptions[i], nil
	}
	return payroll.PayrollRunException{}, payroll.ErrExceptionNotFound
}

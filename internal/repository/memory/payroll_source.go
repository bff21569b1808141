package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/payroll"
)

// =============================================================================
// SOURCE STORE
// =============================================================================

// SourceStore holds collaborator data. The Add and Set methods seed it.
type SourceStore struct {
	mu           sync.RWMutex
	workers      map[string]payroll.Worker
	internalTime []payroll.InternalTimeRecord
	externalTime []payroll.ExternalTimeRecord
	adjustments  []payroll.Adjustment
	holidays     []payroll.Holiday
	clients      map[string]string // code -> id
}

func NewSourceStore() *SourceStore {
	return &SourceStore{
		workers: make(map[string]payroll.Worker),
		clients: make(map[string]string),
	}
}

var _ payroll.SourceRepository = (*SourceStore)(nil)

func (s *SourceStore) AddWorker(w payroll.Worker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workers[w.ID] = w
}

func (s *SourceStore) AddClient(id, code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[code] = id
}

func (s *SourceStore) AddInternalTime(records ...payroll.InternalTimeRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.internalTime = append(s.internalTime, records...)
}

func (s *SourceStore) AddExternalTime(records ...payroll.ExternalTimeRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.externalTime = append(s.externalTime, records...)
}

func (s *SourceStore) AddAdjustment(adjustments ...payroll.Adjustment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.adjustments = append(s.adjustments, adjustments...)
}

func (s *SourceStore) AddHoliday(holidays ...payroll.Holiday) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.holidays = append(s.holidays, holidays...)
}

// SetInternalTimeStatus changes the status of every row of a worker on a date.
// Returns the number of rows changed.
func (s *SourceStore) SetInternalTimeStatus(workerID string, workDate time.Time, status payroll.TimeEntryStatus) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	changed := 0
	for i := range s.internalTime {
		r := &s.internalTime[i]
		if r.WorkerID == workerID && sameDate(r.WorkDate, workDate) {
			r.Status = status
			changed++
		}
	}
	return changed
}

func (s *SourceStore) ListActiveWorkers(_ context.Context) ([]payroll.Worker, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []payroll.Worker
	for _, w := range s.workers {
		if w.IsActive {
			result = append(result, w)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (s *SourceStore) ListInternalTime(_ context.Context, start, end time.Time) ([]payroll.InternalTimeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []payroll.InternalTimeRecord
	for _, r := range s.internalTime {
		if withinDates(r.WorkDate, start, end) {
			result = append(result, r)
		}
	}
	return result, nil
}

func (s *SourceStore) ListExternalTime(_ context.Context, start, end time.Time) ([]payroll.ExternalTimeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []payroll.ExternalTimeRecord
	for _, r := range s.externalTime {
		if withinDates(r.WorkDate, start, end) {
			result = append(result, r)
		}
	}
	return result, nil
}

func (s *SourceStore) ListAdjustments(_ context.Context, start, end time.Time) ([]payroll.Adjustment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []payroll.Adjustment
	for _, a := range s.adjustments {
		if !truncate(a.PeriodStart).After(truncate(end)) && !truncate(a.PeriodEnd).Before(truncate(start)) {
			result = append(result, a)
		}
	}
	return result, nil
}

func (s *SourceStore) ListHolidays(_ context.Context, start, end time.Time) ([]payroll.Holiday, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []payroll.Holiday
	for _, h := range s.holidays {
		if withinDates(h.Date, start, end) {
			result = append(result, h)
		}
	}
	return result, nil
}

func (s *SourceStore) FindClientIDsByCode(_ context.Context, codes []string) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]string, len(codes))
	for _, code := range codes {
		if id, ok := s.clients[code]; ok {
			result[code] = id
		}
	}
	return result, nil
}

func truncate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func sameDate(a, b time.Time) bool {
	return truncate(a).Equal(truncate(b))
}

func withinDates(t, start, end time.Time) bool {
	d := truncate(t)
	return !d.Before(truncate(start)) && !d.After(truncate(end))
}

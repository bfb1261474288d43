package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"meterjob/internal/types"
)

// ============================================================
// In-memory stores
// ============================================================

type fakeScheduleStore struct {
	mu        sync.Mutex
	tasks     []types.ScheduledTask
	listErr   error
	updateErr error
	updates   map[int64]time.Time
}

func newFakeScheduleStore(tasks ...types.ScheduledTask) *fakeScheduleStore {
	return &fakeScheduleStore{tasks: tasks, updates: make(map[int64]time.Time)}
}

func (f *fakeScheduleStore) ListAll(context.Context) ([]types.ScheduledTask, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]types.ScheduledTask, len(f.tasks))
	copy(out, f.tasks)
	return out, nil
}

func (f *fakeScheduleStore) UpdateNextRunTime(_ context.Context, id int64, next time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	f.updates[id] = next
	for i := range f.tasks {
		if f.tasks[i].ID == id {
			n := next
			f.tasks[i].NextRunTime = &n
		}
	}
	return nil
}

type fakeAuditStore struct {
	mu        sync.Mutex
	records   []types.MeteredAuditLog
	appendErr error
	existsErr error
	nextID    int64
}

func (f *fakeAuditStore) Append(_ context.Context, rec *types.MeteredAuditLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.appendErr != nil {
		return f.appendErr
	}
	f.nextID++
	rec.ID = f.nextID
	rec.CreatedAt = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	f.records = append(f.records, *rec)
	return nil
}

func (f *fakeAuditStore) ExistsForSchedule(_ context.Context, scheduleID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.existsErr != nil {
		return false, f.existsErr
	}
	for _, r := range f.records {
		if r.ScheduleID == scheduleID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeAuditStore) forSchedule(id int64) []types.MeteredAuditLog {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []types.MeteredAuditLog
	for _, r := range f.records {
		if r.ScheduleID == id {
			out = append(out, r)
		}
	}
	return out
}

type fakeSubscriptionStore struct {
	subs map[string]types.Subscription
	err  error
}

func (f *fakeSubscriptionStore) GetByID(_ context.Context, id string) (*types.Subscription, error) {
	if f.err != nil {
		return nil, f.err
	}
	sub, ok := f.subs[id]
	if !ok {
		return nil, types.NewAppError(types.ErrCodeNotFoundSubscription, "subscription not found", nil)
	}
	return &sub, nil
}

type fakeSettings map[string]string

func (f fakeSettings) GetAll(context.Context) (map[string]string, error) {
	return f, nil
}

type failingSettings struct{}

func (failingSettings) GetAll(context.Context) (map[string]string, error) {
	return nil, errors.New("connection refused")
}

// ============================================================
// Remote service fakes
// ============================================================

type fakeDirectory struct {
	mu     sync.Mutex
	counts map[string]int64
	errs   map[string]error
	calls  []string
}

func (f *fakeDirectory) CountActivePrincipals(_ context.Context, tenantID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, tenantID)
	if err := f.errs[tenantID]; err != nil {
		return 0, err
	}
	return f.counts[tenantID], nil
}

type fakeBilling struct {
	mu       sync.Mutex
	requests []types.UsageRequest
	// respond decides the answer per request; nil accepts everything.
	respond func(types.UsageRequest) (*types.UsageResult, error)
}

func (f *fakeBilling) SubmitUsage(_ context.Context, req types.UsageRequest) (*types.UsageResult, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	respond := f.respond
	f.mu.Unlock()

	if respond != nil {
		return respond(req)
	}
	return &types.UsageResult{
		UsageEventID:       "evt-" + req.ResourceID,
		Status:             types.StatusAccepted,
		MessageTime:        req.EffectiveStartTime,
		ResourceID:         req.ResourceID,
		Quantity:           req.Quantity,
		Dimension:          req.Dimension,
		EffectiveStartTime: req.EffectiveStartTime,
		PlanID:             req.PlanID,
	}, nil
}

func (f *fakeBilling) callsFor(resourceID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, r := range f.requests {
		if r.ResourceID == resourceID {
			n++
		}
	}
	return n
}

type fakeEmail struct {
	mu   sync.Mutex
	sent []types.EmailMessage
	err  error
}

func (f *fakeEmail) Send(_ context.Context, msg types.EmailMessage) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.sent = append(f.sent, msg)
	return "msg-1", nil
}

func (f *fakeEmail) subjects() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.sent))
	for i, m := range f.sent {
		out[i] = m.Subject
	}
	return out
}

// ============================================================
// Fixtures
// ============================================================

func ptrTime(t time.Time) *time.Time { return &t }

func newTask(id int64, freq types.Frequency, start time.Time, next *time.Time) types.ScheduledTask {
	return types.ScheduledTask{
		ID:               id,
		Name:             "schedule",
		Frequency:        freq,
		StartDate:        start,
		NextRunTime:      next,
		SubscriptionID:   "sub-1",
		SubscriptionName: "Contoso",
		PlanID:           "gold",
		Dimension:        "seats",
		Quantity:         1,
	}
}

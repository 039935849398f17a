package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Brownie44l1/extension-admin/internal/models"
)

// ==============================================
// IN-MEMORY CODE STORE
// ==============================================

// memoryCodeStore is a CodeStore guarded by one mutex. The Func fields
// override individual operations to inject failures.
type memoryCodeStore struct {
	mu      sync.Mutex
	nextID  int64
	records []models.OTPRecord

	InsertFunc         func(ctx context.Context, rec *models.OTPRecord) error
	FindMostRecentFunc func(ctx context.Context, address string, purpose models.Purpose) (*models.OTPRecord, error)
	CountSinceFunc     func(ctx context.Context, address string, purpose models.Purpose, since time.Time) (int, error)
	MarkUsedFunc       func(ctx context.Context, id int64, at time.Time) (bool, error)

	GeneratedAtSinceFunc func(ctx context.Context, address string, purpose models.Purpose, since time.Time) ([]time.Time, error)
}

func newMemoryCodeStore() *memoryCodeStore {
	return &memoryCodeStore{}
}

func (m *memoryCodeStore) Insert(ctx context.Context, rec *models.OTPRecord) error {
	if m.InsertFunc != nil {
		return m.InsertFunc(ctx, rec)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	rec.ID = m.nextID
	m.records = append(m.records, *rec)
	return nil
}

func (m *memoryCodeStore) FindMostRecent(ctx context.Context, address string, purpose models.Purpose) (*models.OTPRecord, error) {
	if m.FindMostRecentFunc != nil {
		return m.FindMostRecentFunc(ctx, address, purpose)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.records) - 1; i >= 0; i-- {
		r := m.records[i]
		if r.Address == address && r.Purpose == purpose {
			return &r, nil
		}
	}
	return nil, models.ErrOTPNotFound
}

func (m *memoryCodeStore) CountSince(ctx context.Context, address string, purpose models.Purpose, since time.Time) (int, error) {
	if m.CountSinceFunc != nil {
		return m.CountSinceFunc(ctx, address, purpose, since)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, r := range m.records {
		if r.Address == address && r.Purpose == purpose && r.GeneratedAt.After(since) {
			n++
		}
	}
	return n, nil
}

func (m *memoryCodeStore) GeneratedAtSince(ctx context.Context, address string, purpose models.Purpose, since time.Time) ([]time.Time, error) {
	if m.GeneratedAtSinceFunc != nil {
		return m.GeneratedAtSinceFunc(ctx, address, purpose, since)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []time.Time
	for _, r := range m.records {
		if r.Address == address && r.Purpose == purpose && r.GeneratedAt.After(since) {
			out = append(out, r.GeneratedAt)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out, nil
}

func (m *memoryCodeStore) MarkUsed(ctx context.Context, id int64, at time.Time) (bool, error) {
	if m.MarkUsedFunc != nil {
		return m.MarkUsedFunc(ctx, id, at)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.records {
		if m.records[i].ID == id {
			if m.records[i].Used {
				return false, nil
			}
			m.records[i].Used = true
			usedAt := at
			m.records[i].UsedAt = &usedAt
			return true, nil
		}
	}
	return false, nil
}

func (m *memoryCodeStore) all() []models.OTPRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.OTPRecord, len(m.records))
	copy(out, m.records)
	return out
}

// ==============================================
// NOTIFIER / CLOCK / LOOKUP FAKES
// ==============================================

type sentMessage struct {
	Address string
	Subject string
	Body    string
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentMessage
	Err  error
}

func (n *recordingNotifier) Send(_ context.Context, address, subject, body string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentMessage{Address: address, Subject: subject, Body: body})
	return n.Err
}

func (n *recordingNotifier) last() sentMessage {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.sent[len(n.sent)-1]
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type MockPrincipalLookup struct {
	FindByAddressFunc func(ctx context.Context, address string) (*models.Principal, error)
}

func (m *MockPrincipalLookup) FindByAddress(ctx context.Context, address string) (*models.Principal, error) {
	if m.FindByAddressFunc != nil {
		return m.FindByAddressFunc(ctx, address)
	}
	return nil, models.ErrPrincipalNotFound
}

type MockCodeVerifier struct {
	VerifyFunc func(ctx context.Context, address string, purpose models.Purpose, code string) (bool, error)
}

func (m *MockCodeVerifier) Verify(ctx context.Context, address string, purpose models.Purpose, code string) (bool, error) {
	if m.VerifyFunc != nil {
		return m.VerifyFunc(ctx, address, purpose, code)
	}
	return false, nil
}

package temporal

import (
	"context"
	"fmt"
	"sync"
)

// MockScheduler is a mock implementation of Scheduler for testing.
type MockScheduler struct {
	mu         sync.Mutex
	cron       string
	exists     bool
	triggers   []string // triggeredBy of each TriggerSweep call
	createErr  error
	deleteErr  error
	triggerErr error
}

// NewMockScheduler creates a new MockScheduler.
func NewMockScheduler() *MockScheduler {
	return &MockScheduler{}
}

// CreateSweepSchedule records that the schedule was created.
func (m *MockScheduler) CreateSweepSchedule(ctx context.Context, cron string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.createErr != nil {
		return m.createErr
	}
	if m.exists {
		return fmt.Errorf("schedule %q already exists", SweepScheduleID)
	}
	m.cron = cron
	m.exists = true
	return nil
}

// UpsertSweepSchedule creates or updates the schedule.
func (m *MockScheduler) UpsertSweepSchedule(ctx context.Context, cron string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.createErr != nil {
		return m.createErr
	}
	m.cron = cron // Creates or updates
	m.exists = true
	return nil
}

// DeleteSweepSchedule records that the schedule was deleted.
func (m *MockScheduler) DeleteSweepSchedule(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.deleteErr != nil {
		return m.deleteErr
	}
	if !m.exists {
		return fmt.Errorf("schedule %q not found", SweepScheduleID)
	}
	m.exists = false
	m.cron = ""
	return nil
}

// TriggerSweep records an on-demand sweep.
func (m *MockScheduler) TriggerSweep(ctx context.Context, triggeredBy string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.triggerErr != nil {
		return "", m.triggerErr
	}
	m.triggers = append(m.triggers, triggeredBy)
	return fmt.Sprintf("sweep-balances-mock-%d", len(m.triggers)), nil
}

// SetCreateError makes CreateSweepSchedule and UpsertSweepSchedule return an error.
func (m *MockScheduler) SetCreateError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createErr = err
}

// SetDeleteError makes DeleteSweepSchedule return an error.
func (m *MockScheduler) SetDeleteError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteErr = err
}

// SetTriggerError makes TriggerSweep return an error.
func (m *MockScheduler) SetTriggerError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.triggerErr = err
}

// Schedule returns the current cron expression and whether the schedule exists.
func (m *MockScheduler) Schedule() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cron, m.exists
}

// Triggers returns the triggeredBy values of all TriggerSweep calls.
func (m *MockScheduler) Triggers() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.triggers))
	copy(out, m.triggers)
	return out
}

// Reset clears all state and errors.
func (m *MockScheduler) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	*m = MockScheduler{}
}

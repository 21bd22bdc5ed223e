package nats

import (
	"context"
	"sync"
)

// MockNotifier is an in-memory notifier for testing.
// It records every event it is asked to send, in call order.
type MockNotifier struct {
	mu          sync.RWMutex
	events      []*NotificationEvent
	sendError   error
	failWallets map[string]error
	explorerURL string
}

// NewMockNotifier creates a new mock notifier for testing.
func NewMockNotifier() *MockNotifier {
	return &MockNotifier{
		events:      make([]*NotificationEvent, 0),
		failWallets: make(map[string]error),
		explorerURL: DefaultExplorerURL,
	}
}

// SendLowBalance records a low balance event and returns any configured error.
func (m *MockNotifier) SendLowBalance(ctx context.Context, email, wallet string) error {
	return m.record(NewLowBalanceEvent(email, wallet))
}

// SendPaymentFailed records a payment failed event and returns any configured error.
func (m *MockNotifier) SendPaymentFailed(ctx context.Context, email, wallet string) error {
	return m.record(NewPaymentFailedEvent(email, wallet))
}

// SendReceipt records a receipt event and returns any configured error.
func (m *MockNotifier) SendReceipt(ctx context.Context, email, wallet string, usdcAmount uint64, txSignature string) error {
	return m.record(NewReceiptEvent(email, wallet, usdcAmount, txSignature, m.explorerURL))
}

func (m *MockNotifier) record(event *NotificationEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sendError != nil {
		return m.sendError
	}
	if err, ok := m.failWallets[event.Wallet]; ok {
		return err
	}

	m.events = append(m.events, event)
	return nil
}

// GetEvents returns all recorded events (for testing).
func (m *MockNotifier) GetEvents() []*NotificationEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()

	// Return a copy to avoid race conditions
	events := make([]*NotificationEvent, len(m.events))
	copy(events, m.events)
	return events
}

// GetEventsOfKind returns recorded events of one kind.
func (m *MockNotifier) GetEventsOfKind(kind Kind) []*NotificationEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()

	events := make([]*NotificationEvent, 0)
	for _, event := range m.events {
		if event.Kind == kind {
			events = append(events, event)
		}
	}
	return events
}

// GetEventCount returns the number of recorded events.
func (m *MockNotifier) GetEventCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.events)
}

// SetSendError configures the mock to fail every send.
func (m *MockNotifier) SetSendError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sendError = err
}

// FailForWallet configures the mock to fail sends for one wallet only.
func (m *MockNotifier) FailForWallet(wallet string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failWallets[wallet] = err
}

// Reset clears all recorded events and errors.
func (m *MockNotifier) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = make([]*NotificationEvent, 0)
	m.sendError = nil
	m.failWallets = make(map[string]error)
}

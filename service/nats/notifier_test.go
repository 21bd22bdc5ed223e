package nats

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brojonat/subpay/service/metrics"
)

type publishedMsg struct {
	subject string
	data    []byte
	opts    int
}

// fakeJetStream captures publishes instead of talking to a server.
type fakeJetStream struct {
	mu    sync.Mutex
	msgs  []publishedMsg
	err   error
	delay time.Duration
}

func (f *fakeJetStream) Publish(ctx context.Context, subject string, data []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, publishedMsg{subject: subject, data: data, opts: len(opts)})
	return &jetstream.PubAck{Stream: StreamName, Sequence: uint64(len(f.msgs))}, nil
}

func newTestNotifier(js publisher, cfg NotifierConfig) *JetStreamNotifier {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return newNotifier(js, cfg, metrics.NewMetrics(prometheus.NewRegistry()), logger)
}

func decodeEvent(t *testing.T, data []byte) NotificationEvent {
	t.Helper()
	var event NotificationEvent
	require.NoError(t, json.Unmarshal(data, &event))
	return event
}

func TestNotifierSubjects(t *testing.T) {
	ctx := context.Background()
	js := &fakeJetStream{}
	n := newTestNotifier(js, NotifierConfig{})

	require.NoError(t, n.SendLowBalance(ctx, "a@example.com", "wallet-a"))
	require.NoError(t, n.SendPaymentFailed(ctx, "b@example.com", "wallet-b"))
	require.NoError(t, n.SendReceipt(ctx, "c@example.com", "wallet-c", 1_000_000, "sig123"))

	require.Len(t, js.msgs, 3)
	assert.Equal(t, "notifications.low_balance", js.msgs[0].subject)
	assert.Equal(t, "notifications.payment_failed", js.msgs[1].subject)
	assert.Equal(t, "notifications.receipt", js.msgs[2].subject)

	for _, msg := range js.msgs {
		assert.Equal(t, 1, msg.opts, "message id option is set")
	}

	low := decodeEvent(t, js.msgs[0].data)
	assert.Equal(t, KindLowBalance, low.Kind)
	assert.Equal(t, "a@example.com", low.Email)
	assert.Equal(t, "wallet-a", low.Wallet)
	assert.NotEmpty(t, low.ID)
	assert.Empty(t, low.ExplorerURL)

	receipt := decodeEvent(t, js.msgs[2].data)
	assert.Equal(t, uint64(1_000_000), receipt.USDCAmount)
	assert.Equal(t, "1.00 USDC", receipt.AmountDisplay)
	assert.Equal(t, "https://solscan.io/tx/sig123", receipt.ExplorerURL)
	png, err := base64.StdEncoding.DecodeString(receipt.QRCode)
	require.NoError(t, err)
	assert.Equal(t, []byte("\x89PNG"), png[:4])
}

func TestNotifierUniqueEventIDs(t *testing.T) {
	js := &fakeJetStream{}
	n := newTestNotifier(js, NotifierConfig{})

	// No dedup across calls: identical requests publish distinct events.
	for i := 0; i < 3; i++ {
		require.NoError(t, n.SendLowBalance(context.Background(), "a@example.com", "wallet-a"))
	}
	require.Len(t, js.msgs, 3)

	ids := map[string]bool{}
	for _, msg := range js.msgs {
		ids[decodeEvent(t, msg.data).ID] = true
	}
	assert.Len(t, ids, 3)
}

func TestNotifierErrors(t *testing.T) {
	t.Run("publish error is returned", func(t *testing.T) {
		cause := errors.New("no responders")
		n := newTestNotifier(&fakeJetStream{err: cause}, NotifierConfig{})

		err := n.SendPaymentFailed(context.Background(), "a@example.com", "wallet-a")
		assert.ErrorIs(t, err, cause)
	})

	t.Run("publish times out", func(t *testing.T) {
		n := newTestNotifier(&fakeJetStream{delay: time.Second}, NotifierConfig{PublishTimeout: 20 * time.Millisecond})

		err := n.SendLowBalance(context.Background(), "a@example.com", "wallet-a")
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestCustomExplorerURL(t *testing.T) {
	js := &fakeJetStream{}
	n := newTestNotifier(js, NotifierConfig{ExplorerURL: "https://explorer.solana.com/tx/"})

	require.NoError(t, n.SendReceipt(context.Background(), "a@example.com", "w", 2_500_000, "abc"))
	event := decodeEvent(t, js.msgs[0].data)
	assert.Equal(t, "https://explorer.solana.com/tx/abc", event.ExplorerURL)
	assert.Equal(t, "2.50 USDC", event.AmountDisplay)
}

func TestFormatUSDC(t *testing.T) {
	tests := map[uint64]string{
		0:             "0.00 USDC",
		1:             "0.00 USDC",
		5_000:         "0.01 USDC",
		1_000_000:     "1.00 USDC",
		12_345_678:    "12.35 USDC",
		1_000_000_000: "1000.00 USDC",
	}
	for amount, want := range tests {
		assert.Equal(t, want, FormatUSDC(amount), "amount %d", amount)
	}
}

func TestMockNotifier(t *testing.T) {
	ctx := context.Background()
	m := NewMockNotifier()

	require.NoError(t, m.SendLowBalance(ctx, "a@example.com", "wallet-a"))
	m.FailForWallet("wallet-b", errors.New("boom"))
	assert.Error(t, m.SendLowBalance(ctx, "b@example.com", "wallet-b"))
	require.NoError(t, m.SendReceipt(ctx, "c@example.com", "wallet-c", 1, "sig"))

	assert.Equal(t, 2, m.GetEventCount())
	assert.Len(t, m.GetEventsOfKind(KindLowBalance), 1)
	assert.Len(t, m.GetEventsOfKind(KindReceipt), 1)

	m.Reset()
	assert.Zero(t, m.GetEventCount())
}

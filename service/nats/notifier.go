package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/brojonat/subpay/service/metrics"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

const (
	// StreamName is the name of the JetStream stream for notifications.
	StreamName = "NOTIFICATIONS"

	// StreamSubjects is the subject pattern for the stream.
	StreamSubjects = "notifications.*"

	// StreamRetention is how long messages are retained (7 days by default).
	StreamRetention = 7 * 24 * time.Hour

	// DefaultPublishTimeout bounds a single publish.
	DefaultPublishTimeout = 10 * time.Second

	// DefaultExplorerURL prefixes transaction signatures in receipts.
	DefaultExplorerURL = "https://solscan.io/tx/"
)

// publisher is the part of jetstream.JetStream the notifier uses.
type publisher interface {
	Publish(ctx context.Context, subject string, data []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// NotifierConfig configures a JetStreamNotifier.
type NotifierConfig struct {
	PublishTimeout time.Duration
	ExplorerURL    string
}

// JetStreamNotifier publishes notification events to NATS JetStream.
// Each call publishes exactly once; there is no internal retry.
type JetStreamNotifier struct {
	nc      *nats.Conn
	js      publisher
	cfg     NotifierConfig
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewNotifier connects to NATS and ensures the notification stream exists.
// If metrics is nil, no metrics will be recorded.
func NewNotifier(natsURL string, cfg NotifierConfig, m *metrics.Metrics, logger *slog.Logger) (*JetStreamNotifier, error) {
	// Connect to NATS
	nc, err := nats.Connect(natsURL,
		nats.Name("subpay-notifier"),
		nats.Timeout(10*time.Second),
		nats.ReconnectWait(1*time.Second),
		nats.MaxReconnects(-1), // Unlimited reconnects
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	// Create JetStream context
	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	if err := ensureStream(js, logger); err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to ensure stream exists: %w", err)
	}

	logger.Info("NATS notifier initialized",
		"url", natsURL,
		"stream", StreamName,
	)

	n := newNotifier(js, cfg, m, logger)
	n.nc = nc
	return n, nil
}

func newNotifier(js publisher, cfg NotifierConfig, m *metrics.Metrics, logger *slog.Logger) *JetStreamNotifier {
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = DefaultPublishTimeout
	}
	if cfg.ExplorerURL == "" {
		cfg.ExplorerURL = DefaultExplorerURL
	}
	return &JetStreamNotifier{
		js:      js,
		cfg:     cfg,
		metrics: m,
		logger:  logger,
	}
}

// ensureStream creates the JetStream stream if it doesn't exist.
func ensureStream(js jetstream.JetStream, logger *slog.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Try to get existing stream
	stream, err := js.Stream(ctx, StreamName)
	if err == nil {
		info, err := stream.Info(ctx)
		if err == nil {
			logger.Debug("JetStream stream already exists",
				"stream", StreamName,
				"messages", info.State.Msgs,
			)
		}
		return nil
	}

	logger.Info("creating JetStream stream", "stream", StreamName)

	_, err = js.CreateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName,
		Description: "Subscriber notifications awaiting email delivery",
		Subjects:    []string{StreamSubjects},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      StreamRetention,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}

	logger.Info("JetStream stream created successfully", "stream", StreamName)
	return nil
}

// SendLowBalance notifies a subscriber that their escrow will not cover the next payment.
func (n *JetStreamNotifier) SendLowBalance(ctx context.Context, email, wallet string) error {
	return n.publish(ctx, NewLowBalanceEvent(email, wallet))
}

// SendPaymentFailed notifies a subscriber that a payment failed for lack of SOL.
func (n *JetStreamNotifier) SendPaymentFailed(ctx context.Context, email, wallet string) error {
	return n.publish(ctx, NewPaymentFailedEvent(email, wallet))
}

// SendReceipt sends a subscriber the receipt for a settled payment.
func (n *JetStreamNotifier) SendReceipt(ctx context.Context, email, wallet string, usdcAmount uint64, txSignature string) error {
	return n.publish(ctx, NewReceiptEvent(email, wallet, usdcAmount, txSignature, n.cfg.ExplorerURL))
}

func (n *JetStreamNotifier) publish(ctx context.Context, event *NotificationEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal notification event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, n.cfg.PublishTimeout)
	defer cancel()

	start := time.Now()
	// The event id doubles as the message id so a redelivered publish is deduplicated by the stream.
	_, err = n.js.Publish(ctx, event.Subject(), data, jetstream.WithMsgID(event.ID))
	duration := time.Since(start).Seconds()

	status := "success"
	if err != nil {
		status = "error"
	}
	if n.metrics != nil {
		n.metrics.RecordNotification(string(event.Kind), status, duration)
	}

	if err != nil {
		return fmt.Errorf("failed to publish %s notification: %w", event.Kind, err)
	}

	n.logger.DebugContext(ctx, "published notification event",
		"subject", event.Subject(),
		"id", event.ID,
		"wallet", event.Wallet,
	)
	return nil
}

// Close closes the connection to NATS.
func (n *JetStreamNotifier) Close() error {
	if n.nc != nil {
		n.nc.Close()
		n.logger.Info("NATS notifier closed")
	}
	return nil
}

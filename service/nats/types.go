package nats

import (
	"encoding/base64"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/skip2/go-qrcode"
)

// Kind identifies the notification template a downstream mailer should render.
type Kind string

const (
	KindLowBalance    Kind = "low_balance"
	KindPaymentFailed Kind = "payment_failed"
	KindReceipt       Kind = "receipt"
)

// USDCDecimals is the smallest-unit exponent of USDC amounts.
const USDCDecimals = 6

// NotificationEvent is published to the subject "notifications.{kind}" in JetStream.
// Rendering and delivering the email is the subscriber's job.
type NotificationEvent struct {
	ID    string `json:"id"`
	Kind  Kind   `json:"kind"`
	Email string `json:"email"`

	// Subscription information
	Wallet string `json:"wallet"`

	// Receipt details, empty for other kinds
	USDCAmount    uint64 `json:"usdc_amount,omitempty"`
	AmountDisplay string `json:"amount_display,omitempty"`
	TxSignature   string `json:"tx_signature,omitempty"`
	ExplorerURL   string `json:"explorer_url,omitempty"`
	QRCode        string `json:"qr_code,omitempty"` // base64 PNG of ExplorerURL

	CreatedAt time.Time `json:"created_at"`
}

// Subject returns the JetStream subject the event is published to.
func (e *NotificationEvent) Subject() string {
	return fmt.Sprintf("notifications.%s", e.Kind)
}

func newEvent(kind Kind, email, wallet string) *NotificationEvent {
	return &NotificationEvent{
		ID:        uuid.New().String(),
		Kind:      kind,
		Email:     email,
		Wallet:    wallet,
		CreatedAt: time.Now().UTC(),
	}
}

// NewLowBalanceEvent builds an escrow shortfall warning.
func NewLowBalanceEvent(email, wallet string) *NotificationEvent {
	return newEvent(KindLowBalance, email, wallet)
}

// NewPaymentFailedEvent builds a failed-payment alert.
func NewPaymentFailedEvent(email, wallet string) *NotificationEvent {
	return newEvent(KindPaymentFailed, email, wallet)
}

// NewReceiptEvent builds a payment receipt linking the transaction on the explorer.
// A QR code failure leaves QRCode empty; the link alone is enough.
func NewReceiptEvent(email, wallet string, usdcAmount uint64, txSignature, explorerBaseURL string) *NotificationEvent {
	event := newEvent(KindReceipt, email, wallet)
	event.USDCAmount = usdcAmount
	event.AmountDisplay = FormatUSDC(usdcAmount)
	event.TxSignature = txSignature
	event.ExplorerURL = explorerBaseURL + txSignature

	if qr, err := generateQRCode(event.ExplorerURL); err == nil {
		event.QRCode = qr
	}
	return event
}

// FormatUSDC renders a smallest-unit USDC amount with two decimals, e.g. "1.00 USDC".
func FormatUSDC(amount uint64) string {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(amount), -USDCDecimals).StringFixed(2) + " USDC"
}

// generateQRCode creates a QR code image from a URL and returns it as base64-encoded PNG.
func generateQRCode(data string) (string, error) {
	// Generate QR code with medium error correction
	qr, err := qrcode.New(data, qrcode.Medium)
	if err != nil {
		return "", fmt.Errorf("failed to create QR code: %w", err)
	}

	// Encode as PNG (256x256 pixels)
	png, err := qr.PNG(256)
	if err != nil {
		return "", fmt.Errorf("failed to encode QR code as PNG: %w", err)
	}

	return base64.StdEncoding.EncodeToString(png), nil
}

package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuoteFee_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "GET", r.Method)
		assert.Equal(t, "/api/v1/fee-quote", r.URL.Path)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"sol_needed":     0.00066667,
			"sol_price_usdc": 150.0,
			"source":         "raydium",
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	quote, err := client.QuoteFee(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0.00066667, quote.SolNeeded)
	assert.Equal(t, 150.0, quote.SolPriceUSD)
	assert.Equal(t, "raydium", quote.Source)
}

func TestCreatePaymentTransaction_Success(t *testing.T) {
	req := PaymentRequest{
		UserPubkey:            "User1111111111111111111111111111111111111",
		SubscriptionPubkey:    "Sub11111111111111111111111111111111111111",
		SubscriptionSigner:    "Signer11111111111111111111111111111111111",
		EscrowTokenAccount:    "Escrow11111111111111111111111111111111111",
		RecipientTokenAccount: "Recip111111111111111111111111111111111111",
		MonthlyUSDCAmount:     1_000_000,
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "/api/v1/payments/transaction", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body PaymentRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, req, body)

		json.NewEncoder(w).Encode(map[string]interface{}{
			"transaction":             "AQID",
			"message":                 "Approve subscription and fee payment of ~0.000667 SOL",
			"fee_lamports":            666667,
			"blockhash":               "GHtXQBsoZHVnNFa9YevAzFr17DJjgHXk3ycTKD5xD3Zi",
			"last_valid_block_height": 4242,
			"monthly_usdc_amount":     1000000,
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	tx, err := client.CreatePaymentTransaction(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "AQID", tx.Transaction)
	assert.Equal(t, uint64(666667), tx.FeeLamports)
	assert.Equal(t, uint64(4242), tx.LastValidBlockHeight)
	assert.Equal(t, uint64(1_000_000), tx.MonthlyUSDCAmount)
}

func TestCreatePaymentTransaction_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{
			"error": "invalid account: user_pubkey is required",
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	_, err := client.CreatePaymentTransaction(context.Background(), PaymentRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "user_pubkey is required")

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
}

func TestSweepLowBalances_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "/api/v1/notifications/low-balance", r.URL.Path)

		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":   "completed",
			"checked":  3,
			"notified": 1,
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	result, err := client.SweepLowBalances(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "completed", result.Status)
	assert.Equal(t, 3, result.Checked)
	assert.Equal(t, 1, result.Notified)
}

func TestNotifyPaymentFailed(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/v1/notifications/payment-failed", r.URL.Path)

			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "wallet123", body["wallet"])

			json.NewEncoder(w).Encode(map[string]string{"status": "email sent", "wallet": "wallet123"})
		}))
		defer server.Close()

		client := NewClient(server.URL, nil, nil)
		assert.NoError(t, client.NotifyPaymentFailed(context.Background(), "wallet123"))
	})

	t.Run("not found", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(map[string]string{"error": "subscription not found"})
		}))
		defer server.Close()

		client := NewClient(server.URL, nil, nil)
		err := client.NotifyPaymentFailed(context.Background(), "wallet123")
		var apiErr *APIError
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
		assert.Equal(t, "subscription not found", apiErr.Message)
	})
}

func TestSendReceipt_Success(t *testing.T) {
	receipt := Receipt{Email: "a@b.co", Wallet: "W1", USDCAmount: 5_000_000, TxSignature: "sig"}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/notifications/receipt", r.URL.Path)

		var body Receipt
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, receipt, body)

		json.NewEncoder(w).Encode(map[string]string{"status": "sent"})
	}))
	defer server.Close()

	client := NewClient(server.URL+"/", nil, nil)
	assert.NoError(t, client.SendReceipt(context.Background(), receipt))
}

func TestNonJSONError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	_, err := client.Health(context.Background())
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.Equal(t, "bad gateway", apiErr.Message)
}

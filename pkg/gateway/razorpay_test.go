package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sign(secret, orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

func TestVerifySignature(t *testing.T) {
	secret := "test_secret"
	sig := sign(secret, "order_123", "pay_456")

	assert.True(t, VerifySignature(secret, "order_123", "pay_456", sig))
	assert.False(t, VerifySignature(secret, "order_123", "pay_456", sig+"00"))
	assert.False(t, VerifySignature(secret, "order_999", "pay_456", sig))
	assert.False(t, VerifySignature("wrong_secret", "order_123", "pay_456", sig))
	assert.False(t, VerifySignature(secret, "order_123", "pay_456", ""))
}

func TestCreateOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/orders", r.URL.Path)

		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "key_id", user)
		assert.Equal(t, "key_secret", pass)

		var req createOrderRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, int64(55000), req.Amount)
		assert.Equal(t, "INR", req.Currency)
		assert.Equal(t, 1, req.PaymentCapture)

		json.NewEncoder(w).Encode(Order{
			ID:       "order_abc",
			Amount:   req.Amount,
			Currency: req.Currency,
			Receipt:  req.Receipt,
			Status:   "created",
		})
	}))
	defer srv.Close()

	client := NewRazorpayClient(Config{
		KeyID:     "key_id",
		KeySecret: "key_secret",
		BaseURL:   srv.URL,
	})

	order, err := client.CreateOrder(context.Background(), 55000, "INR", "bk_12345678")
	require.NoError(t, err)
	assert.Equal(t, "order_abc", order.ID)
	assert.Equal(t, int64(55000), order.Amount)
}

func TestCreateOrderGatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	client := NewRazorpayClient(Config{KeyID: "k", KeySecret: "s", BaseURL: srv.URL})
	_, err := client.CreateOrder(context.Background(), 100, "INR", "r")
	assert.Error(t, err)
}

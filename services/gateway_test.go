package services

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGateway(t *testing.T, handler http.HandlerFunc) *GatewayService {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewGatewayService(GatewayConfig{
		MerchantEmail: "merchant@example.com",
		SecretKey:     "secret",
		VerifyURL:     server.URL + "/verify",
		CaptureURL:    server.URL + "/capture",
		WebhookSecret: "hook-secret",
	})
}

func TestGatewayVerify_AmountFormats(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"string amount", `{"order_id":"ORD-1-AB","transaction_id":"77","response_code":"100","result":"ok","amount":"25.50","currency":"SAR"}`},
		{"number amount", `{"order_id":"ORD-1-AB","transaction_id":"77","response_code":"100","result":"ok","amount":25.5,"currency":"SAR"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/verify", r.URL.Path)
				require.NoError(t, r.ParseForm())
				assert.Equal(t, "merchant@example.com", r.PostForm.Get("merchant_email"))
				assert.Equal(t, "secret", r.PostForm.Get("secret_key"))
				assert.Equal(t, "77", r.PostForm.Get("transaction_id"))
				w.Header().Set("Content-Type", "application/json")
				fmt.Fprint(w, tt.body)
			})

			result, err := gw.Verify(context.Background(), "77")
			require.NoError(t, err)
			assert.Equal(t, "ORD-1-AB", result.OrderID)
			assert.Equal(t, ResponseCodeSuccess, result.ResponseCode)
			amount, err := result.AmountDecimal()
			require.NoError(t, err)
			assert.True(t, decimal.RequireFromString("25.5").Equal(amount))
		})
	}
}

func TestGatewayVerify_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{"server error", http.StatusInternalServerError, `oops`, "status 500"},
		{"bad json", http.StatusOK, `{`, "unmarshaling"},
		{"missing order id", http.StatusOK, `{"response_code":"4003"}`, "no order_id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			})
			_, err := gw.Verify(context.Background(), "1")
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestGatewayCapture(t *testing.T) {
	var gotAmount string
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotAmount = r.PostForm.Get("amount")
		if r.PostForm.Get("transaction_id") == "declined" {
			fmt.Fprint(w, `{"response_code":"4012","result":"insufficient funds"}`)
			return
		}
		fmt.Fprint(w, `{"response_code":"100","result":"captured"}`)
	})

	require.NoError(t, gw.Capture(context.Background(), "77", decimal.RequireFromString("11")))
	assert.Equal(t, "11.000", gotAmount)

	err := gw.Capture(context.Background(), "declined", decimal.RequireFromString("1.5"))
	assert.ErrorContains(t, err, "insufficient funds")
}

func TestValidateWebhookSignature(t *testing.T) {
	body := []byte(`{"transaction_id":"77"}`)
	mac := hmac.New(sha256.New, []byte("hook-secret"))
	mac.Write(body)
	sig := hex.EncodeToString(mac.Sum(nil))

	gw := NewGatewayService(GatewayConfig{WebhookSecret: "hook-secret"})
	assert.True(t, gw.ValidateSignature(body, sig))
	assert.False(t, gw.ValidateSignature(body, "deadbeef"))
	assert.False(t, gw.ValidateSignature([]byte(`{}`), sig))
	assert.True(t, ValidateWebhookSignature("", body, ""))
}

func TestGatewayConfigValidate(t *testing.T) {
	cfg := GatewayConfig{MerchantEmail: "m", SecretKey: "s", VerifyURL: "v", CaptureURL: "c"}
	assert.NoError(t, cfg.Validate())
	cfg.SecretKey = ""
	assert.ErrorContains(t, cfg.Validate(), "GATEWAY_SECRET_KEY")
}

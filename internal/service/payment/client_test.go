package payment

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGatewayClient_CreatePaymentIntent(t *testing.T) {
	userID := uuid.New()

	t.Run("sends amount in minor units with user metadata", func(t *testing.T) {
		var gotForm map[string]string
		var gotAuth string

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "POST", r.Method)
			require.Equal(t, "/payment_intents", r.URL.Path)

			gotAuth = r.Header.Get("Authorization")
			require.NoError(t, r.ParseForm())
			gotForm = map[string]string{}
			for key := range r.PostForm {
				gotForm[key] = r.PostForm.Get(key)
			}

			_ = json.NewEncoder(w).Encode(map[string]string{
				"id":            "pi_123",
				"client_secret": "pi_123_secret_456",
			})
		}))
		t.Cleanup(server.Close)

		client := NewGatewayClient(GatewayConfig{
			BaseURL:   server.URL,
			SecretKey: "sk_test",
			Currency:  "nok",
		})

		secret, err := client.CreatePaymentIntent(t.Context(), userID, decimal.RequireFromString("150.00"))

		require.NoError(t, err)
		assert.Equal(t, "pi_123_secret_456", secret)
		assert.Equal(t, "Bearer sk_test", gotAuth)
		assert.Equal(t, "15000", gotForm["amount"], "150.00 is 15000 minor units")
		assert.Equal(t, "nok", gotForm["currency"])
		assert.Equal(t, userID.String(), gotForm["metadata[user_id]"])
	})

	t.Run("gateway rejection is an error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusPaymentRequired)
		}))
		t.Cleanup(server.Close)

		client := NewGatewayClient(GatewayConfig{BaseURL: server.URL, SecretKey: "sk_test", Currency: "nok"})

		_, err := client.CreatePaymentIntent(t.Context(), userID, decimal.RequireFromString("150.00"))

		require.Error(t, err)
	})
}

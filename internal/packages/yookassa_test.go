package packages

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestYooKassa_CreateAndStatus(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "shop" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")

		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/v3/payments":
			if r.Header.Get("Idempotence-Key") == "" {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			raw, _ := io.ReadAll(r.Body)
			_ = json.Unmarshal(raw, &gotBody)
			io.WriteString(w, `{"id":"pay-1","status":"pending","confirmation":{"type":"redirect","confirmation_url":"https://yoomoney.example/pay-1"}}`)
		case r.Method == http.MethodGet && r.URL.Path == "/v3/payments/pay-1":
			io.WriteString(w, `{"id":"pay-1","status":"succeeded"}`)
		default:
			w.WriteHeader(http.StatusNotFound)
			io.WriteString(w, `{"type":"error","code":"not_found"}`)
		}
	}))
	defer srv.Close()

	p := NewYooKassaProvider(YooKassaOptions{
		APIURL:    srv.URL + "/",
		ShopID:    "shop",
		SecretKey: "secret",
		ReturnURL: "https://t.me/speech_bot",
	})
	ctx := context.Background()

	url, id, err := p.CreatePayment(ctx, 7, &Package{ID: 3, Name: "basic", Credits: 50, Price: 149})
	require.NoError(t, err)
	assert.Equal(t, "https://yoomoney.example/pay-1", url)
	assert.Equal(t, "pay-1", id)

	amount := gotBody["amount"].(map[string]any)
	assert.Equal(t, "149.00", amount["value"])
	meta := gotBody["metadata"].(map[string]any)
	assert.Equal(t, "7", meta["telegram_id"])
	assert.Equal(t, "3", meta["package_id"])

	status, err := p.PaymentStatus(ctx, "pay-1")
	require.NoError(t, err)
	assert.Equal(t, PaymentSucceeded, status)

	_, err = p.PaymentStatus(ctx, "missing")
	assert.Error(t, err)
}

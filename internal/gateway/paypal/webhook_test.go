package paypal

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	gatewaydomain "github.com/shi0417/kongfuworld-champion/internal/gateway/domain"
	"github.com/stretchr/testify/require"
)

const testWebhookSecret = "paypal_secret"

func signPayload(t *testing.T, secret string, payload []byte) http.Header {
	t.Helper()
	mac := hmac.New(sha256.New, []byte(secret))
	_, err := mac.Write(payload)
	require.NoError(t, err)

	headers := http.Header{}
	headers.Set("Paypal-Transmission-Sig", hex.EncodeToString(mac.Sum(nil)))
	return headers
}

func TestVerify(t *testing.T) {
	adapter, err := NewAdapter(testWebhookSecret)
	require.NoError(t, err)
	ctx := context.Background()

	payload := []byte(`{"id":"WH-1"}`)
	require.NoError(t, adapter.Verify(ctx, payload, signPayload(t, testWebhookSecret, payload)))

	err = adapter.Verify(ctx, payload, signPayload(t, "wrong_secret", payload))
	require.ErrorIs(t, err, gatewaydomain.ErrInvalidSignature)

	err = adapter.Verify(ctx, payload, http.Header{})
	require.ErrorIs(t, err, gatewaydomain.ErrInvalidSignature)
}

func TestParseCaptureCompleted(t *testing.T) {
	adapter, err := NewAdapter(testWebhookSecret)
	require.NoError(t, err)

	payload := []byte(`{
		"id": "WH-2",
		"event_type": "PAYMENT.CAPTURE.COMPLETED",
		"create_time": "2026-03-01T12:00:00Z",
		"resource": {
			"id": "CAP-1",
			"custom_id": "42:7:2",
			"amount": {"value": "9.00", "currency_code": "usd"}
		}
	}`)

	event, err := adapter.Parse(context.Background(), payload)
	require.NoError(t, err)

	require.Equal(t, gatewaydomain.EventKindPayment, event.Kind)
	require.Equal(t, "paypal", event.Provider)
	require.Equal(t, snowflake.ID(42), event.ReaderID)
	require.Equal(t, snowflake.ID(7), event.NovelID)
	require.Equal(t, 2, event.TierLevel)
	require.Equal(t, int64(900), event.AmountMinor)
	require.Equal(t, "USD", event.Currency)
	require.Equal(t, "CAP-1", event.TransactionRef)
	require.True(t, event.OccurredAt.Equal(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)))
}

func TestParseCaptureWithoutTierLevel(t *testing.T) {
	adapter, err := NewAdapter(testWebhookSecret)
	require.NoError(t, err)

	payload := []byte(`{
		"id": "WH-3",
		"event_type": "PAYMENT.CAPTURE.COMPLETED",
		"resource": {
			"id": "CAP-2",
			"custom_id": "42:7",
			"amount": {"value": "15.00", "currency_code": "USD"}
		}
	}`)

	event, err := adapter.Parse(context.Background(), payload)
	require.NoError(t, err)
	require.Equal(t, 0, event.TierLevel)
	require.Equal(t, int64(1500), event.AmountMinor)
}

func TestParseCaptureBadCustomID(t *testing.T) {
	adapter, err := NewAdapter(testWebhookSecret)
	require.NoError(t, err)

	payload := []byte(`{
		"id": "WH-4",
		"event_type": "PAYMENT.CAPTURE.COMPLETED",
		"resource": {"id": "CAP-3", "custom_id": "order-55", "amount": {"value": "9.00", "currency_code": "USD"}}
	}`)

	_, err = adapter.Parse(context.Background(), payload)
	require.ErrorIs(t, err, gatewaydomain.ErrInvalidEvent)
}

func TestParseSubscriptionCancelled(t *testing.T) {
	adapter, err := NewAdapter(testWebhookSecret)
	require.NoError(t, err)

	payload := []byte(`{
		"id": "WH-5",
		"event_type": "BILLING.SUBSCRIPTION.CANCELLED",
		"create_time": "2026-03-01T12:00:00Z",
		"resource": {"id": "I-SUB1"}
	}`)

	event, err := adapter.Parse(context.Background(), payload)
	require.NoError(t, err)
	require.Equal(t, gatewaydomain.EventKindCancellation, event.Kind)
	require.Equal(t, "I-SUB1", event.SubscriptionRef)
}

func TestParseIgnoresUnhandledEvents(t *testing.T) {
	adapter, err := NewAdapter(testWebhookSecret)
	require.NoError(t, err)

	payload := []byte(`{"id": "WH-6", "event_type": "PAYMENT.CAPTURE.REFUNDED", "resource": {}}`)

	_, err = adapter.Parse(context.Background(), payload)
	require.ErrorIs(t, err, gatewaydomain.ErrEventIgnored)
}

func TestParseAmountMinor(t *testing.T) {
	tests := []struct {
		value   string
		want    int64
		wantErr bool
	}{
		{"9.00", 900, false},
		{"9", 900, false},
		{"9.5", 950, false},
		{"9.999", 999, false},
		{"0.01", 1, false},
		{"", 0, true},
		{"-1.00", 0, true},
		{"abc", 0, true},
	}
	for _, tc := range tests {
		got, err := parseAmountMinor(tc.value)
		if tc.wantErr {
			require.Error(t, err, tc.value)
			continue
		}
		require.NoError(t, err, tc.value)
		require.Equal(t, tc.want, got, tc.value)
	}
}

// Package paypal normalizes PayPal webhook payloads.
package paypal

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	entitlementdomain "github.com/shi0417/kongfuworld-champion/internal/entitlement/domain"
	gatewaydomain "github.com/shi0417/kongfuworld-champion/internal/gateway/domain"
)

// Adapter verifies and parses PayPal webhook events. Checkout flows put
// "reader:novel:tier" into the capture's custom_id.
type Adapter struct {
	webhookSecret string
}

func NewAdapter(webhookSecret string) (*Adapter, error) {
	webhookSecret = strings.TrimSpace(webhookSecret)
	if webhookSecret == "" {
		return nil, gatewaydomain.ErrInvalidConfig
	}
	return &Adapter{webhookSecret: webhookSecret}, nil
}

func (a *Adapter) Provider() string {
	return "paypal"
}

func (a *Adapter) Verify(ctx context.Context, payload []byte, headers http.Header) error {
	signature := strings.TrimSpace(headers.Get("Paypal-Transmission-Sig"))
	if signature == "" {
		return gatewaydomain.ErrInvalidSignature
	}

	mac := hmac.New(sha256.New, []byte(a.webhookSecret))
	_, _ = mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(signature), []byte(expected)) {
		return gatewaydomain.ErrInvalidSignature
	}
	return nil
}

func (a *Adapter) Parse(ctx context.Context, payload []byte) (*gatewaydomain.Event, error) {
	var event paypalEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, gatewaydomain.ErrInvalidPayload
	}
	if strings.TrimSpace(event.ID) == "" {
		return nil, gatewaydomain.ErrInvalidEvent
	}

	switch strings.TrimSpace(event.EventType) {
	case "PAYMENT.CAPTURE.COMPLETED":
		return a.parseCapture(event)
	case "BILLING.SUBSCRIPTION.CANCELLED":
		return a.parseCancellation(event)
	default:
		return nil, gatewaydomain.ErrEventIgnored
	}
}

func (a *Adapter) parseCapture(event paypalEvent) (*gatewaydomain.Event, error) {
	var capture paypalCapture
	if err := json.Unmarshal(event.Resource, &capture); err != nil {
		return nil, gatewaydomain.ErrInvalidPayload
	}
	if strings.TrimSpace(capture.ID) == "" {
		return nil, gatewaydomain.ErrInvalidEvent
	}

	readerID, novelID, tierLevel, err := parseCustomID(capture.CustomID)
	if err != nil {
		return nil, err
	}

	amountMinor, err := parseAmountMinor(capture.Amount.Value)
	if err != nil {
		return nil, gatewaydomain.ErrInvalidEvent
	}

	return &gatewaydomain.Event{
		Kind:            gatewaydomain.EventKindPayment,
		Provider:        "paypal",
		ProviderEventID: event.ID,
		ReaderID:        readerID,
		NovelID:         novelID,
		TierLevel:       tierLevel,
		AmountMinor:     amountMinor,
		Currency:        strings.ToUpper(strings.TrimSpace(capture.Amount.CurrencyCode)),
		TransactionRef:  capture.ID,
		PaymentMethod:   entitlementdomain.PaymentMethodPayPal,
		OccurredAt:      parseEventTime(event.CreateTime),
	}, nil
}

func (a *Adapter) parseCancellation(event paypalEvent) (*gatewaydomain.Event, error) {
	var sub paypalSubscription
	if err := json.Unmarshal(event.Resource, &sub); err != nil {
		return nil, gatewaydomain.ErrInvalidPayload
	}
	if strings.TrimSpace(sub.ID) == "" {
		return nil, gatewaydomain.ErrInvalidEvent
	}

	return &gatewaydomain.Event{
		Kind:            gatewaydomain.EventKindCancellation,
		Provider:        "paypal",
		ProviderEventID: event.ID,
		SubscriptionRef: sub.ID,
		OccurredAt:      parseEventTime(event.CreateTime),
	}, nil
}

type paypalEvent struct {
	ID         string          `json:"id"`
	EventType  string          `json:"event_type"`
	CreateTime string          `json:"create_time"`
	Resource   json.RawMessage `json:"resource"`
}

type paypalCapture struct {
	ID       string       `json:"id"`
	CustomID string       `json:"custom_id"`
	Amount   paypalAmount `json:"amount"`
}

type paypalAmount struct {
	Value        string `json:"value"`
	CurrencyCode string `json:"currency_code"`
}

type paypalSubscription struct {
	ID string `json:"id"`
}

func parseCustomID(customID string) (snowflake.ID, snowflake.ID, int, error) {
	parts := strings.Split(strings.TrimSpace(customID), ":")
	if len(parts) < 2 {
		return 0, 0, 0, gatewaydomain.ErrInvalidEvent
	}

	readerID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || readerID == 0 {
		return 0, 0, 0, gatewaydomain.ErrInvalidEvent
	}
	novelID, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || novelID == 0 {
		return 0, 0, 0, gatewaydomain.ErrInvalidEvent
	}

	tierLevel := 0
	if len(parts) > 2 && parts[2] != "" {
		tierLevel, err = strconv.Atoi(parts[2])
		if err != nil || tierLevel < 0 {
			return 0, 0, 0, gatewaydomain.ErrInvalidEvent
		}
	}

	return snowflake.ID(readerID), snowflake.ID(novelID), tierLevel, nil
}

// parseAmountMinor converts PayPal's decimal amount string ("5.00") to
// minor currency units.
func parseAmountMinor(value string) (int64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, gatewaydomain.ErrInvalidEvent
	}

	whole, frac, found := strings.Cut(value, ".")
	units, err := strconv.ParseInt(whole, 10, 64)
	if err != nil || units < 0 {
		return 0, gatewaydomain.ErrInvalidEvent
	}

	cents := int64(0)
	if found {
		if len(frac) > 2 {
			frac = frac[:2]
		}
		for len(frac) < 2 {
			frac += "0"
		}
		cents, err = strconv.ParseInt(frac, 10, 64)
		if err != nil {
			return 0, gatewaydomain.ErrInvalidEvent
		}
	}

	return units*100 + cents, nil
}

func parseEventTime(raw string) time.Time {
	parsed, err := time.Parse(time.RFC3339, strings.TrimSpace(raw))
	if err != nil {
		return time.Now().UTC()
	}
	return parsed.UTC()
}

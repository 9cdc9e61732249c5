package stripe

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	entitlementdomain "github.com/shi0417/kongfuworld-champion/internal/entitlement/domain"
	gatewaydomain "github.com/shi0417/kongfuworld-champion/internal/gateway/domain"
)

// Adapter normalizes Stripe webhook payloads.
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
	return "stripe"
}

func (a *Adapter) Verify(ctx context.Context, payload []byte, headers http.Header) error {
	sigHeader := strings.TrimSpace(headers.Get("Stripe-Signature"))
	if sigHeader == "" {
		return gatewaydomain.ErrInvalidSignature
	}

	timestamp, signatures, err := parseSignatureHeader(sigHeader)
	if err != nil {
		return gatewaydomain.ErrInvalidSignature
	}

	signedPayload := fmt.Sprintf("%s.%s", timestamp, string(payload))
	mac := hmac.New(sha256.New, []byte(a.webhookSecret))
	_, _ = mac.Write([]byte(signedPayload))
	expected := hex.EncodeToString(mac.Sum(nil))

	for _, signature := range signatures {
		if hmac.Equal([]byte(signature), []byte(expected)) {
			return nil
		}
	}

	return gatewaydomain.ErrInvalidSignature
}

func (a *Adapter) Parse(ctx context.Context, payload []byte) (*gatewaydomain.Event, error) {
	var event stripeEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, gatewaydomain.ErrInvalidPayload
	}
	if strings.TrimSpace(event.ID) == "" {
		return nil, gatewaydomain.ErrInvalidEvent
	}

	switch strings.TrimSpace(event.Type) {
	case "payment_intent.succeeded":
		return a.parsePaymentIntent(event, payload)
	case "invoice.payment_succeeded":
		return a.parseInvoice(event)
	case "customer.subscription.deleted":
		return a.parseSubscriptionDeleted(event)
	default:
		return nil, gatewaydomain.ErrEventIgnored
	}
}

func (a *Adapter) parsePaymentIntent(event stripeEvent, payload []byte) (*gatewaydomain.Event, error) {
	var intent stripePaymentIntent
	if err := json.Unmarshal(event.Data.Object, &intent); err != nil {
		return nil, gatewaydomain.ErrInvalidPayload
	}
	if strings.TrimSpace(intent.ID) == "" {
		return nil, gatewaydomain.ErrInvalidEvent
	}

	readerID, novelID, tierLevel, err := parseMetadata(intent.Metadata)
	if err != nil {
		return nil, err
	}

	amount := intent.AmountReceived
	if amount == 0 {
		amount = intent.Amount
	}

	return &gatewaydomain.Event{
		Kind:            gatewaydomain.EventKindPayment,
		Provider:        "stripe",
		ProviderEventID: event.ID,
		ReaderID:        readerID,
		NovelID:         novelID,
		TierLevel:       tierLevel,
		AmountMinor:     amount,
		Currency:        strings.ToUpper(strings.TrimSpace(intent.Currency)),
		TransactionRef:  intent.ID,
		CustomerRef:     intent.Customer,
		PaymentMethod:   entitlementdomain.PaymentMethodStripe,
		CardFingerprint: intent.cardFingerprint(),
		OccurredAt:      timestamp(intent.Created, event.Created),
	}, nil
}

func (a *Adapter) parseInvoice(event stripeEvent) (*gatewaydomain.Event, error) {
	var invoice stripeInvoice
	if err := json.Unmarshal(event.Data.Object, &invoice); err != nil {
		return nil, gatewaydomain.ErrInvalidPayload
	}
	if strings.TrimSpace(invoice.ID) == "" || strings.TrimSpace(invoice.Subscription) == "" {
		return nil, gatewaydomain.ErrInvalidEvent
	}

	return &gatewaydomain.Event{
		Kind:            gatewaydomain.EventKindRenewal,
		Provider:        "stripe",
		ProviderEventID: event.ID,
		AmountMinor:     invoice.AmountPaid,
		Currency:        strings.ToUpper(strings.TrimSpace(invoice.Currency)),
		TransactionRef:  invoice.ID,
		SubscriptionRef: invoice.Subscription,
		CustomerRef:     invoice.Customer,
		PaymentMethod:   entitlementdomain.PaymentMethodStripe,
		OccurredAt:      timestamp(invoice.Created, event.Created),
	}, nil
}

func (a *Adapter) parseSubscriptionDeleted(event stripeEvent) (*gatewaydomain.Event, error) {
	var sub stripeSubscription
	if err := json.Unmarshal(event.Data.Object, &sub); err != nil {
		return nil, gatewaydomain.ErrInvalidPayload
	}
	if strings.TrimSpace(sub.ID) == "" {
		return nil, gatewaydomain.ErrInvalidEvent
	}

	return &gatewaydomain.Event{
		Kind:            gatewaydomain.EventKindCancellation,
		Provider:        "stripe",
		ProviderEventID: event.ID,
		SubscriptionRef: sub.ID,
		CustomerRef:     sub.Customer,
		OccurredAt:      timestamp(0, event.Created),
	}, nil
}

type stripeEvent struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	Created int64           `json:"created"`
	Data    stripeEventData `json:"data"`
}

type stripeEventData struct {
	Object json.RawMessage `json:"object"`
}

type stripePaymentIntent struct {
	ID             string            `json:"id"`
	Amount         int64             `json:"amount"`
	AmountReceived int64             `json:"amount_received"`
	Currency       string            `json:"currency"`
	Customer       string            `json:"customer"`
	Created        int64             `json:"created"`
	Metadata       map[string]string `json:"metadata"`
	Charges        stripeChargeList  `json:"charges"`
}

type stripeChargeList struct {
	Data []stripeCharge `json:"data"`
}

type stripeCharge struct {
	PaymentMethodDetails stripePaymentMethodDetails `json:"payment_method_details"`
}

type stripePaymentMethodDetails struct {
	Card stripeCard `json:"card"`
}

type stripeCard struct {
	Fingerprint string `json:"fingerprint"`
}

// cardFingerprint returns the settled charge's card fingerprint, if the
// payload carried one.
func (p stripePaymentIntent) cardFingerprint() string {
	for _, charge := range p.Charges.Data {
		if f := strings.TrimSpace(charge.PaymentMethodDetails.Card.Fingerprint); f != "" {
			return f
		}
	}
	return ""
}

type stripeInvoice struct {
	ID           string `json:"id"`
	AmountPaid   int64  `json:"amount_paid"`
	Currency     string `json:"currency"`
	Customer     string `json:"customer"`
	Subscription string `json:"subscription"`
	Created      int64  `json:"created"`
}

type stripeSubscription struct {
	ID       string `json:"id"`
	Customer string `json:"customer"`
}

func parseSignatureHeader(header string) (string, []string, error) {
	var timestamp string
	var signatures []string

	for _, part := range strings.Split(header, ",") {
		pair := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(pair) != 2 {
			continue
		}
		switch pair[0] {
		case "t":
			timestamp = pair[1]
		case "v1":
			signatures = append(signatures, pair[1])
		}
	}

	if timestamp == "" || len(signatures) == 0 {
		return "", nil, gatewaydomain.ErrInvalidSignature
	}
	return timestamp, signatures, nil
}

func parseMetadata(metadata map[string]string) (snowflake.ID, snowflake.ID, int, error) {
	readerID, err := parseID(metadata["reader_id"])
	if err != nil || readerID == 0 {
		return 0, 0, 0, gatewaydomain.ErrInvalidEvent
	}
	novelID, err := parseID(metadata["novel_id"])
	if err != nil || novelID == 0 {
		return 0, 0, 0, gatewaydomain.ErrInvalidEvent
	}

	tierLevel := 0
	if raw := strings.TrimSpace(metadata["tier_level"]); raw != "" {
		tierLevel, err = strconv.Atoi(raw)
		if err != nil || tierLevel < 0 {
			return 0, 0, 0, gatewaydomain.ErrInvalidEvent
		}
	}

	return readerID, novelID, tierLevel, nil
}

func parseID(raw string) (snowflake.ID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	parsed, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, err
	}
	return snowflake.ID(parsed), nil
}

func timestamp(primary, fallback int64) time.Time {
	if primary > 0 {
		return time.Unix(primary, 0).UTC()
	}
	if fallback > 0 {
		return time.Unix(fallback, 0).UTC()
	}
	return time.Now().UTC()
}

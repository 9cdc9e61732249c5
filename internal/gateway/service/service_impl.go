package service

import (
	"context"
	"errors"
	"net/http"
	"strings"

	entitlementdomain "github.com/shi0417/kongfuworld-champion/internal/entitlement/domain"
	gatewaydomain "github.com/shi0417/kongfuworld-champion/internal/gateway/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Service struct {
	log      *zap.Logger
	adapters map[string]gatewaydomain.WebhookAdapter
	entsvc   entitlementdomain.Service
}

type Params struct {
	fx.In

	Log      *zap.Logger
	Adapters []gatewaydomain.WebhookAdapter `group:"webhook_adapters"`
	Entsvc   entitlementdomain.Service
}

func NewService(p Params) gatewaydomain.Dispatcher {
	adapters := make(map[string]gatewaydomain.WebhookAdapter, len(p.Adapters))
	for _, adapter := range p.Adapters {
		if adapter == nil {
			continue
		}
		adapters[adapter.Provider()] = adapter
	}
	return &Service{
		log:      p.Log.Named("gateway.service"),
		adapters: adapters,
		entsvc:   p.Entsvc,
	}
}

// Dispatch implements domain.Dispatcher.
func (s *Service) Dispatch(ctx context.Context, provider string, payload []byte, headers http.Header) (*gatewaydomain.Event, error) {
	adapter, ok := s.adapters[strings.ToLower(strings.TrimSpace(provider))]
	if !ok {
		return nil, gatewaydomain.ErrInvalidConfig
	}

	if err := adapter.Verify(ctx, payload, headers); err != nil {
		return nil, err
	}

	event, err := adapter.Parse(ctx, payload)
	if err != nil {
		if errors.Is(err, gatewaydomain.ErrEventIgnored) {
			return nil, err
		}
		s.log.Warn("webhook parse failed",
			zap.String("provider", provider),
			zap.Error(err),
		)
		return nil, err
	}

	switch event.Kind {
	case gatewaydomain.EventKindPayment:
		_, err = s.entsvc.Reconcile(ctx, entitlementdomain.PaymentOutcome{
			ReaderID:            event.ReaderID,
			NovelID:             event.NovelID,
			TierLevel:           event.TierLevel,
			AmountMinor:         event.AmountMinor,
			Currency:            event.Currency,
			PaymentMethod:       event.PaymentMethod,
			CardFingerprint:     event.CardFingerprint,
			GatewayKind:         entitlementdomain.GatewayKindOneShot,
			TransactionRef:      event.TransactionRef,
			ExternalCustomerRef: event.CustomerRef,
			OccurredAt:          event.OccurredAt,
		})
	case gatewaydomain.EventKindRenewal:
		_, err = s.entsvc.ReconcileRenewal(ctx, entitlementdomain.RenewalConfirmation{
			ExternalSubscriptionRef: event.SubscriptionRef,
			AmountMinor:             event.AmountMinor,
			Currency:                event.Currency,
			TransactionRef:          event.TransactionRef,
			OccurredAt:              event.OccurredAt,
		})
	case gatewaydomain.EventKindCancellation:
		err = s.entsvc.DisableAutoRenew(ctx, event.SubscriptionRef)
	default:
		return nil, gatewaydomain.ErrInvalidEvent
	}

	if err != nil {
		return nil, err
	}
	return event, nil
}

package gateway

import (
	"github.com/shi0417/kongfuworld-champion/internal/config"
	gatewaydomain "github.com/shi0417/kongfuworld-champion/internal/gateway/domain"
	"github.com/shi0417/kongfuworld-champion/internal/gateway/paypal"
	"github.com/shi0417/kongfuworld-champion/internal/gateway/service"
	stripegateway "github.com/shi0417/kongfuworld-champion/internal/gateway/stripe"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func newStripeGateway(cfg config.Config, log *zap.Logger) (*stripegateway.Gateway, error) {
	if cfg.Stripe.APIKey == "" {
		log.Warn("stripe api key not configured, gateway disabled")
		return nil, nil
	}
	return stripegateway.NewGateway(cfg.Stripe.APIKey, log)
}

func providePricing(gw *stripegateway.Gateway) gatewaydomain.PricingGateway {
	if gw == nil {
		return nil
	}
	return gw
}

func provideSyncer(gw *stripegateway.Gateway) gatewaydomain.SubscriptionSyncer {
	if gw == nil {
		return nil
	}
	return gw
}

func newStripeAdapter(cfg config.Config) (gatewaydomain.WebhookAdapter, error) {
	if cfg.Stripe.WebhookSecret == "" {
		return nil, nil
	}
	return stripegateway.NewAdapter(cfg.Stripe.WebhookSecret)
}

func newPayPalAdapter(cfg config.Config) (gatewaydomain.WebhookAdapter, error) {
	if cfg.PayPal.WebhookSecret == "" {
		return nil, nil
	}
	return paypal.NewAdapter(cfg.PayPal.WebhookSecret)
}

var Module = fx.Module("gateway",
	fx.Provide(newStripeGateway),
	fx.Provide(providePricing),
	fx.Provide(provideSyncer),
	fx.Provide(
		fx.Annotate(newStripeAdapter, fx.ResultTags(`group:"webhook_adapters"`)),
		fx.Annotate(newPayPalAdapter, fx.ResultTags(`group:"webhook_adapters"`)),
	),
	fx.Provide(service.NewService),
)

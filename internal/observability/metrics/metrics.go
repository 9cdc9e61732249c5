package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes application-level instruments.
type Metrics struct {
	reconciliations     metric.Int64Counter
	changeRecords       metric.Int64Counter
	syncFailures        metric.Int64Counter
	visibilityLookups   metric.Int64Counter
	visibilityCacheHits metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	if log != nil {
		log.Info("metrics initialized",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}

	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "kongfuworld"
	}
	meter := provider.Meter(name)

	reconciliations, err := meter.Int64Counter("champion_reconciliations_total")
	if err != nil {
		return nil, err
	}
	changeRecords, err := meter.Int64Counter("champion_change_records_total")
	if err != nil {
		return nil, err
	}
	syncFailures, err := meter.Int64Counter("champion_gateway_sync_failures_total")
	if err != nil {
		return nil, err
	}
	visibilityLookups, err := meter.Int64Counter("champion_visibility_lookups_total")
	if err != nil {
		return nil, err
	}
	visibilityCacheHits, err := meter.Int64Counter("champion_visibility_cache_hits_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		reconciliations:     reconciliations,
		changeRecords:       changeRecords,
		syncFailures:        syncFailures,
		visibilityLookups:   visibilityLookups,
		visibilityCacheHits: visibilityCacheHits,
	}, nil
}

// RecordReconciliation increments reconciliation counts per transition.
func (m *Metrics) RecordReconciliation(ctx context.Context, transition string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("transition", strings.TrimSpace(transition)))
	m.reconciliations.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordChangeRecord increments audit change record counts.
func (m *Metrics) RecordChangeRecord(ctx context.Context, transition string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("transition", strings.TrimSpace(transition)))
	m.changeRecords.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordSyncFailure increments gateway synchronization failure counts.
func (m *Metrics) RecordSyncFailure(ctx context.Context, provider string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("provider", strings.TrimSpace(provider)))
	m.syncFailures.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordVisibilityLookup increments visibility lookup counts.
func (m *Metrics) RecordVisibilityLookup(ctx context.Context, cacheHit bool) {
	if m == nil {
		return
	}
	m.visibilityLookups.Add(ctx, 1)
	if cacheHit {
		m.visibilityCacheHits.Add(ctx, 1)
	}
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

var allowedLabelKeys = map[attribute.Key]struct{}{
	"transition": {},
	"provider":   {},
	"reason":     {},
}

// FilterAttributes drops labels that could explode cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; ok {
			filtered = append(filtered, attr)
		}
	}
	return filtered
}

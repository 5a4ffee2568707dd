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
	lifecycleTransitions metric.Int64Counter
	renewalsProcessed    metric.Int64Counter
	invoicesGenerated    metric.Int64Counter
	dunningActions       metric.Int64Counter
	healthChecks         metric.Int64Counter
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
		name = "mspforge"
	}
	meter := provider.Meter(name)

	lifecycleTransitions, err := meter.Int64Counter("mspforge_service_lifecycle_transitions_total")
	if err != nil {
		return nil, err
	}
	renewalsProcessed, err := meter.Int64Counter("mspforge_renewals_processed_total")
	if err != nil {
		return nil, err
	}
	invoicesGenerated, err := meter.Int64Counter("mspforge_invoices_generated_total")
	if err != nil {
		return nil, err
	}
	dunningActions, err := meter.Int64Counter("mspforge_dunning_actions_total")
	if err != nil {
		return nil, err
	}
	healthChecks, err := meter.Int64Counter("mspforge_health_checks_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		lifecycleTransitions: lifecycleTransitions,
		renewalsProcessed:    renewalsProcessed,
		invoicesGenerated:    invoicesGenerated,
		dunningActions:       dunningActions,
		healthChecks:         healthChecks,
	}, nil
}

// RecordLifecycleTransition increments lifecycle transition counts.
func (m *Metrics) RecordLifecycleTransition(ctx context.Context, from, to string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("from", strings.TrimSpace(from)),
		attribute.String("to", strings.TrimSpace(to)),
	)
	m.lifecycleTransitions.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordRenewalProcessed increments renewal counts by outcome.
func (m *Metrics) RecordRenewalProcessed(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("outcome", strings.TrimSpace(outcome)))
	m.renewalsProcessed.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordInvoiceGenerated increments invoice generation counts.
func (m *Metrics) RecordInvoiceGenerated(ctx context.Context, source string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("source", strings.TrimSpace(source)))
	m.invoicesGenerated.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordDunningAction increments dunning action counts by type.
func (m *Metrics) RecordDunningAction(ctx context.Context, actionType string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("action_type", strings.TrimSpace(actionType)))
	m.dunningActions.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordHealthCheck increments health check counts by band.
func (m *Metrics) RecordHealthCheck(ctx context.Context, band string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("band", strings.TrimSpace(band)))
	m.healthChecks.Add(ctx, 1, metric.WithAttributes(attrs...))
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
	"from":        {},
	"to":          {},
	"outcome":     {},
	"source":      {},
	"action_type": {},
	"band":        {},
	"reason":      {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}

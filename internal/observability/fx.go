package observability

import (
	"context"

	"github.com/smallbiznis/entitlement/internal/config"
	"github.com/smallbiznis/entitlement/internal/observability/tracing"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"
)

var Module = fx.Module("observability",
	fx.Provide(provideTracingConfig),
	fx.Provide(newTracerProvider),
	fx.Invoke(registerHooks),
)

func provideTracingConfig(cfg config.Config) tracing.Config {
	return tracing.Config{
		Enabled:        cfg.OTelEnabled,
		ServiceName:    cfg.AppName,
		ServiceVersion: cfg.AppVersion,
		Environment:    cfg.Environment,
		Endpoint:       cfg.OTLPEndpoint,
	}
}

func newTracerProvider(cfg tracing.Config) (*sdktrace.TracerProvider, error) {
	return tracing.NewProvider(context.Background(), cfg)
}

func registerHooks(lc fx.Lifecycle, provider *sdktrace.TracerProvider) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return provider.Shutdown(ctx)
		},
	})
}

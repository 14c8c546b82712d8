package observability

import (
	"context"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/yungbote/skillquest-backend/internal/platform/logger"
)

type OtelConfig struct {
	ServiceName string
	Environment string
	Version     string
}

// traceSettings is the env surface read once at init: OTEL_ENABLED gates
// everything, OTEL_SAMPLER_RATIO tunes the head sampler, and the
// OTEL_EXPORTER_OTLP_* trio selects and configures the OTLP exporter.
type traceSettings struct {
	enabled  bool
	ratio    float64
	endpoint string
	insecure bool
	headers  map[string]string
}

var (
	setupOnce  sync.Once
	shutdownFn func(context.Context) error
)

// InitOTel installs the global tracer provider when OTEL_ENABLED is truthy.
// Every failure is non-fatal: tracing is an overlay, never a reason the
// sync engine refuses to boot. Returns the shutdown hook (nil when tracing
// is off).
func InitOTel(ctx context.Context, log *logger.Logger, cfg OtelConfig) func(context.Context) error {
	setupOnce.Do(func() {
		st := settingsFromEnv()
		if !st.enabled {
			return
		}

		name := strings.TrimSpace(cfg.ServiceName)
		if name == "" {
			name = "skillquest"
		}
		res, err := resource.New(ctx, resource.WithAttributes(
			semconv.ServiceNameKey.String(name),
			semconv.ServiceVersionKey.String(strings.TrimSpace(cfg.Version)),
			attribute.String("deployment.environment", strings.TrimSpace(cfg.Environment)),
			attribute.String("service.component", name),
		))
		if err != nil && log != nil {
			log.Warn("otel resource init failed (continuing)", "error", err)
		}

		opts := []sdktrace.TracerProviderOption{
			sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(st.ratio))),
			sdktrace.WithResource(res),
		}
		exporter, err := st.buildExporter(ctx, log)
		if err != nil {
			if log != nil {
				log.Warn("otel exporter init failed (continuing)", "error", err)
			}
		} else if exporter != nil {
			opts = append(opts, sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(5*time.Second)))
		}

		tp := sdktrace.NewTracerProvider(opts...)
		otel.SetTracerProvider(tp)
		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		))
		shutdownFn = tp.Shutdown
		if log != nil {
			log.Info("otel tracing initialized", "service", name, "endpoint", st.endpoint)
		}
	})
	return shutdownFn
}

func settingsFromEnv() traceSettings {
	return traceSettings{
		enabled:  truthyEnv("OTEL_ENABLED"),
		ratio:    sampleRatioEnv(),
		endpoint: strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")),
		insecure: truthyEnv("OTEL_EXPORTER_OTLP_INSECURE"),
		headers:  headerListEnv("OTEL_EXPORTER_OTLP_HEADERS"),
	}
}

// buildExporter prefers OTLP over HTTP when an endpoint is configured and
// falls back to a pretty-printed stdout exporter otherwise, which keeps
// local trace debugging possible without a collector.
func (st traceSettings) buildExporter(ctx context.Context, log *logger.Logger) (sdktrace.SpanExporter, error) {
	if st.endpoint == "" {
		if log != nil {
			log.Warn("otel using stdout exporter (no OTLP endpoint configured)")
		}
		return stdouttrace.New(stdouttrace.WithPrettyPrint())
	}
	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(st.endpoint)}
	if st.insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	if len(st.headers) > 0 {
		opts = append(opts, otlptracehttp.WithHeaders(st.headers))
	}
	return otlptracehttp.New(ctx, opts...)
}

func truthyEnv(key string) bool {
	switch strings.TrimSpace(strings.ToLower(os.Getenv(key))) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

func sampleRatioEnv() float64 {
	const fallback = 0.1
	raw := strings.TrimSpace(os.Getenv("OTEL_SAMPLER_RATIO"))
	if raw == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fallback
	}
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}

// headerListEnv parses "k1=v1,k2=v2"; malformed or empty entries are
// skipped rather than failing init.
func headerListEnv(key string) map[string]string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return nil
	}
	headers := map[string]string{}
	for _, part := range strings.Split(raw, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		k, v := strings.TrimSpace(kv[0]), strings.TrimSpace(kv[1])
		if k == "" || v == "" {
			continue
		}
		headers[k] = v
	}
	if len(headers) == 0 {
		return nil
	}
	return headers
}

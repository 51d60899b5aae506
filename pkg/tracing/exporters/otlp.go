package exporters

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const defaultTimeout = 10 * time.Second

type OTLPConfig struct {
	// Endpoint is host:port of the collector, 4317 for gRPC and 4318 for HTTP by convention
	Endpoint string
	// Protocol is "grpc" (default) or "http"
	Protocol string
	Insecure bool
	Timeout  time.Duration
}

// NewOTLPExporter builds a trace exporter for the configured protocol. The collector is
// not contacted until spans are exported.
func NewOTLPExporter(ctx context.Context, cfg OTLPConfig) (*otlptrace.Exporter, error) {
	client, err := newClient(cfg)
	if err != nil {
		return nil, err
	}
	return otlptrace.New(ctx, client)
}

func newClient(cfg OTLPConfig) (otlptrace.Client, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	switch strings.ToLower(cfg.Protocol) {
	case "", "grpc":
		opts := []otlptracegrpc.Option{
			otlptracegrpc.WithEndpoint(cfg.Endpoint),
			otlptracegrpc.WithTimeout(timeout),
		}
		if cfg.Insecure {
			opts = append(opts,
				otlptracegrpc.WithInsecure(),
				otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
			)
		}
		return otlptracegrpc.NewClient(opts...), nil
	case "http", "http/protobuf":
		opts := []otlptracehttp.Option{
			otlptracehttp.WithEndpoint(cfg.Endpoint),
			otlptracehttp.WithTimeout(timeout),
		}
		if cfg.Insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		return otlptracehttp.NewClient(opts...), nil
	}
	return nil, errors.Errorf("unsupported OTLP protocol %q: use grpc or http", cfg.Protocol)
}

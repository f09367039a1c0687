package observability

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// pushReader bridges OTel instruments into a private Prometheus registry that
// is pushed to a Pushgateway in one shot.
type pushReader struct {
	reader sdkmetric.Reader
	pusher *push.Pusher
}

// newPushReader creates the exporter reader and the pusher for url/job.
// instance groups pushes so concurrent CI jobs do not overwrite each other.
func newPushReader(url, job, instance string) (*pushReader, error) {
	registry := prometheus.NewRegistry()

	exporter, err := promexporter.New(promexporter.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("create prometheus exporter: %w", err)
	}

	pusher := push.New(url, job).Gatherer(registry)
	if instance != "" {
		pusher = pusher.Grouping("instance", instance)
	}

	return &pushReader{reader: exporter, pusher: pusher}, nil
}

// Push sends the current metric values. It must run before the meter
// provider shuts down, since collection goes through the reader.
func (p *pushReader) Push(ctx context.Context) error {
	err := p.pusher.AddContext(ctx)
	if err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}

	return nil
}

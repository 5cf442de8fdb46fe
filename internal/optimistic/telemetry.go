package optimistic

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var tracer = otel.Tracer("alcyxob/workout-sync/internal/optimistic")
var meter = otel.Meter("alcyxob/workout-sync/internal/optimistic")

const (
	// mutationName labels every record with the mutation that produced it.
	mutationName = "mutation"
	keyKind      = "cache.kind"
)

var (
	// remoteDuration measures the remote call of a dispatched mutation, success or not.
	remoteDuration metric.Float64Histogram
	// commits counts mutations whose remote call succeeded.
	commits metric.Int64Counter
	// rollbacks counts mutations restored to their pre-mutation snapshot.
	rollbacks metric.Int64Counter
)

func init() {
	var err error
	remoteDuration, err = meter.Float64Histogram(
		"optimistic.remote.duration",
		metric.WithDescription("The duration of the remote call behind an optimistic mutation."),
		metric.WithUnit("ms"),
	)
	if err != nil {
		panic("optimistic: failed to init 'optimistic.remote.duration' instrument")
	}

	commits, err = meter.Int64Counter(
		"optimistic.commits",
		metric.WithDescription("The number of optimistic mutations confirmed by the remote store."),
	)
	if err != nil {
		panic("optimistic: failed to init 'optimistic.commits' instrument")
	}

	rollbacks, err = meter.Int64Counter(
		"optimistic.rollbacks",
		metric.WithDescription("The number of optimistic mutations rolled back after a failed remote call."),
	)
	if err != nil {
		panic("optimistic: failed to init 'optimistic.rollbacks' instrument")
	}
}

// measureRemote records the remote call latency and bumps either the commit or
// the rollback counter.
func measureRemote(ctx context.Context, name string, key Key, succeeded bool, d time.Duration) {
	attrs := attribute.NewSet(
		attribute.String(mutationName, name),
		attribute.String(keyKind, key.Kind),
	)
	remoteDuration.Record(ctx, float64(d)/float64(time.Millisecond), metric.WithAttributeSet(attrs))
	if succeeded {
		commits.Add(ctx, 1, metric.WithAttributeSet(attrs))
	} else {
		rollbacks.Add(ctx, 1, metric.WithAttributeSet(attrs))
	}
}

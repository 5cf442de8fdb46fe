package reconcile

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var tracer = otel.Tracer("alcyxob/workout-sync/internal/reconcile")
var meter = otel.Meter("alcyxob/workout-sync/internal/reconcile")

var (
	// writes counts the individual writes issued by successful saves, labeled
	// by kind ("exercise.create", "set.delete", ...).
	writes metric.Int64Counter
	// conflicts counts saves rejected because of a stale version.
	conflicts metric.Int64Counter
)

func init() {
	var err error
	writes, err = meter.Int64Counter(
		"reconcile.writes",
		metric.WithDescription("The number of writes issued by workout saves."),
	)
	if err != nil {
		panic("reconcile: failed to init 'reconcile.writes' instrument")
	}

	conflicts, err = meter.Int64Counter(
		"reconcile.conflicts",
		metric.WithDescription("The number of workout saves rejected because of a version conflict."),
	)
	if err != nil {
		panic("reconcile: failed to init 'reconcile.conflicts' instrument")
	}
}

func measureSave(ctx context.Context, plan Plan, conflict bool) {
	if conflict {
		conflicts.Add(ctx, 1)
		return
	}
	counts := map[string]int{
		"exercise.delete": len(plan.ExerciseDeletes),
		"set.delete":      len(plan.SetDeletes),
		"exercise.create": len(plan.ExerciseCreates),
		"exercise.update": len(plan.ExerciseUpdates),
		"set.create":      len(plan.SetCreates),
		"set.update":      len(plan.SetUpdates),
	}
	for kind, n := range counts {
		if n == 0 {
			continue
		}
		attrs := attribute.NewSet(attribute.String("kind", kind))
		writes.Add(ctx, int64(n), metric.WithAttributeSet(attrs))
	}
}

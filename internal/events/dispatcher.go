package events

import (
	"context"
	"log/slog"

	"github.com/abhishekmaher6699/tech-assessment-sde/internal/models"
	"github.com/abhishekmaher6699/tech-assessment-sde/internal/observability"
	"github.com/abhishekmaher6699/tech-assessment-sde/internal/worker"
)

// Dispatcher publishes observations on a worker pool so request handlers
// never wait on the broker.
type Dispatcher struct {
	pool      *worker.Pool[models.Observation]
	publisher Publisher
	metrics   *observability.Metrics
	logger    *slog.Logger
}

func NewDispatcher(publisher Publisher, workers, buffer int, metrics *observability.Metrics, logger *slog.Logger) *Dispatcher {
	d := &Dispatcher{
		publisher: publisher,
		metrics:   metrics,
		logger:    logger,
	}
	d.pool = worker.NewPool("observation-events", workers, buffer, d.publish)
	return d
}

func (d *Dispatcher) Start(ctx context.Context) {
	d.pool.Start(ctx)
}

// Enqueue hands obs to the pool. A full queue drops the event.
func (d *Dispatcher) Enqueue(obs models.Observation) {
	if !d.pool.TrySubmit(obs) {
		d.metrics.Events.WithLabelValues("dropped").Inc()
		d.logger.Warn("observation event dropped", "id", obs.ID, "location", obs.Location)
	}
}

func (d *Dispatcher) publish(ctx context.Context, obs models.Observation) error {
	if err := d.publisher.Publish(ctx, obs); err != nil {
		d.metrics.Events.WithLabelValues("error").Inc()
		return err
	}
	d.metrics.Events.WithLabelValues("published").Inc()
	d.logger.Debug("observation event published", "id", obs.ID, "location", obs.Location)
	return nil
}

// Stop drains queued events, then closes the publisher.
func (d *Dispatcher) Stop() error {
	d.pool.Stop()
	return d.publisher.Close()
}

// Discard is used when no broker is configured.
type Discard struct{}

func (Discard) Enqueue(models.Observation) {}

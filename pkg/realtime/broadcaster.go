package realtime

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/multierr"

	"github.com/angelmondragon/mealshare-backend/pkg/logger"
	"github.com/angelmondragon/mealshare-backend/pkg/metrics"
)

// Publisher is what the unit of work hands committed changes to.
type Publisher interface {
	Broadcast(ctx context.Context, deliveries []Delivery) error
}

// Broadcaster publishes committed deliveries on the bus in order.
type Broadcaster struct {
	bus     Bus
	logg    *logger.Logger
	metrics *metrics.RealtimeMetrics
}

func NewBroadcaster(bus Bus, logg *logger.Logger, m *metrics.RealtimeMetrics) (*Broadcaster, error) {
	if bus == nil {
		return nil, errors.New("realtime bus required")
	}
	return &Broadcaster{bus: bus, logg: logg, metrics: m}, nil
}

// Broadcast publishes every delivery, continuing past failures. The returned
// error combines every failed publish.
func (b *Broadcaster) Broadcast(ctx context.Context, deliveries []Delivery) error {
	var errs error
	for _, d := range deliveries {
		if len(d.UserIDs) == 0 {
			continue
		}
		if err := b.bus.Publish(ctx, d); err != nil {
			b.metrics.IncBusFailure()
			errs = multierr.Append(errs, fmt.Errorf("publish %s/%s: %w", d.Envelope.EventName, d.Envelope.Type, err))
			continue
		}
		b.metrics.IncPublished(string(d.Envelope.EventName), string(d.Envelope.Type))
	}
	return errs
}

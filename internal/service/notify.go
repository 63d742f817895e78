package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/tudbom/counter-api/internal/events"
)

const publishTimeout = 5 * time.Second

// publishOrder sends an order event after its transaction committed.
// Failures are logged; the caller's result is already final.
func publishOrder(ctx context.Context, pub events.Publisher, eventType string, view *OrderView, at time.Time) {
	staff, err := json.Marshal(view.Payload(false))
	if err != nil {
		log.Error().Err(err).Int64("order_id", view.Order.ID).Msg("Failed to encode order event")
		return
	}
	public, err := json.Marshal(view.Payload(true))
	if err != nil {
		log.Error().Err(err).Int64("order_id", view.Order.ID).Msg("Failed to encode order event")
		return
	}

	// The request context may already be near its deadline.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	e := events.Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		OrderID:    view.Order.ID,
		OccurredAt: at,
		Staff:      staff,
		Public:     public,
	}
	if err := pub.Publish(ctx, e); err != nil {
		log.Warn().Err(err).
			Str("event", eventType).
			Int64("order_id", view.Order.ID).
			Msg("Order event not delivered")
	}
}

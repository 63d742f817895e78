// Package events carries order notifications out of the service layer to
// the realtime board and the message broker. Delivery is best effort and
// happens after the originating transaction has committed.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// Event is one order notification. Staff and Public hold the same order in
// its full and kiosk projections, already JSON encoded.
type Event struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	OrderID    int64           `json:"order_id"`
	OccurredAt time.Time       `json:"occurred_at"`
	Staff      json.RawMessage `json:"staff"`
	Public     json.RawMessage `json:"public"`
}

// Publisher delivers events to one destination.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// PublisherFunc adapts a plain function to Publisher.
type PublisherFunc func(ctx context.Context, e Event) error

func (f PublisherFunc) Publish(ctx context.Context, e Event) error { return f(ctx, e) }

// Discard drops every event.
var Discard Publisher = PublisherFunc(func(context.Context, Event) error { return nil })

// Fanout publishes to every destination, even when an earlier one fails.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, e Event) error {
	var errs []error
	for _, p := range f {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

package queue

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// KindOrderCreated is the task kind published after an order commits.
const KindOrderCreated = "order.created"

// OrderCreatedEvent is the payload of an order.created task.
type OrderCreatedEvent struct {
	OrderID     int64  `json:"order_id"`
	OrderNumber string `json:"order_number"`
	TotalAmount string `json:"total_amount"`
}

// OrderEvents publishes order lifecycle events onto the queue. It satisfies
// the order core's notifier contract: enqueue failures are logged, never
// propagated, since the order is already committed.
type OrderEvents struct {
	Enq Enqueuer
	Log zerolog.Logger
}

// OrderCreated enqueues an order.created task keyed by the order number, so
// an accidental double publish collapses into one delivery.
func (e *OrderEvents) OrderCreated(ctx context.Context, orderID int64, number string, total decimal.Decimal) {
	payload, err := json.Marshal(OrderCreatedEvent{
		OrderID:     orderID,
		OrderNumber: number,
		TotalAmount: total.String(),
	})
	if err != nil {
		e.Log.Error().Err(err).Str("order_number", number).Msg("order_event_encode_failed")
		return
	}
	if err := e.Enq.Enqueue(ctx, Task{Kind: KindOrderCreated, Key: number, Payload: payload}); err != nil {
		e.Log.Warn().Err(err).Str("order_number", number).Msg("order_event_enqueue_failed")
	}
}

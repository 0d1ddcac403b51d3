// Package payment confirms provider-side payment intents and moves the order
// into the paid state. Intent creation and settlement reconciliation live with
// the provider; this service only verifies outcomes.
package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/noah-isme/backend-apotek/internal/order"
)

// ErrIntentNotSucceeded indicates the provider reports the intent in a
// non-successful state.
var ErrIntentNotSucceeded = errors.New("payment intent has not succeeded")

// Service verifies a payment intent with the provider and transitions the
// order to paid.
type Service struct {
	Provider Provider
	Orders   *order.Service
	Log      zerolog.Logger
}

// Confirm checks the intent with the provider and, when it succeeded, moves
// the order from pending to paid. Confirming an already paid order fails the
// lifecycle check and is reported as a validation error by the order core.
func (s *Service) Confirm(ctx context.Context, orderID int64, intentID string) (order.Status, error) {
	if s == nil || s.Provider == nil || s.Orders == nil {
		return "", errors.New("payment service not configured")
	}
	ctx, span := otel.Tracer("payment.Service").Start(ctx, "PaymentService.Confirm")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("order.id", orderID),
		attribute.String("payment.intent_id", intentID),
	)

	intent, err := s.Provider.RetrieveIntent(ctx, intentID)
	if err != nil {
		if errors.Is(err, ErrIntentNotFound) {
			return "", fmt.Errorf("intent %s: %w", intentID, ErrIntentNotFound)
		}
		return "", fmt.Errorf("retrieving intent %s: %w", intentID, err)
	}
	span.SetAttributes(attribute.String("payment.intent_status", intent.Status))
	if intent.Status != IntentSucceeded {
		return "", fmt.Errorf("intent %s is %s: %w", intentID, intent.Status, ErrIntentNotSucceeded)
	}

	status, err := s.Orders.Transition(ctx, orderID, order.StatusPaid)
	if err != nil {
		return "", err
	}
	s.Log.Info().
		Int64("order_id", orderID).
		Str("intent_id", intentID).
		Msg("payment_confirmed")
	return status, nil
}

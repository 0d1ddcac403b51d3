package order

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	validator "github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/noah-isme/backend-apotek/internal/catalog"
	"github.com/noah-isme/backend-apotek/internal/geo"
	"github.com/noah-isme/backend-apotek/internal/obs"
	"github.com/noah-isme/backend-apotek/internal/pharmacy"
	"github.com/noah-isme/backend-apotek/internal/pricing"
)

// numberAttempts bounds retries when the generated order number is taken.
const numberAttempts = 5

// Notifier publishes post-commit order events. Implementations must not
// affect the outcome of the order operation.
type Notifier interface {
	OrderCreated(ctx context.Context, orderID int64, number string, total decimal.Decimal)
}

// Service is the order ledger: it validates a create request, prices every
// line, prices the delivery, reserves stock and persists the order as one
// atomic unit of work.
type Service struct {
	Store         Store
	Delivery      geo.SurchargePolicy
	ExpressCharge decimal.Decimal
	Validate      *validator.Validate
	Notifier      Notifier
	Log           zerolog.Logger
}

// Create runs the order creation flow. On any failure no state survives: the
// store transaction rolls back reservations and inserts together.
func (s *Service) Create(ctx context.Context, in Input) (*Confirmation, error) {
	if s == nil || s.Store == nil {
		return nil, persistenceError(errors.New("order service not configured"))
	}
	ctx, span := otel.Tracer("order.Service").Start(ctx, "OrderService.Create")
	defer span.End()

	start := time.Now()
	result := "error"
	defer func() {
		span.SetAttributes(attribute.String("order.create.result", result))
		if obs.OrdersCreatedTotal != nil {
			obs.OrdersCreatedTotal.WithLabelValues(result).Inc()
		}
		if obs.OrderCreateLatency != nil {
			obs.OrderCreateLatency.Observe(obs.DurationMillis(time.Since(start)))
		}
	}()

	if err := s.validateInput(&in); err != nil {
		result = "validation"
		return nil, err
	}

	var conf *Confirmation
	err := s.Store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		ph, err := tx.PharmacyByID(ctx, in.PharmacyID)
		if err != nil {
			if errors.Is(err, pharmacy.ErrNotFound) {
				return notFoundError("pharmacy %d not found", in.PharmacyID)
			}
			return persistenceError(err)
		}

		lines := make([]pricing.Line, 0, len(in.Items))
		items := make([]Item, 0, len(in.Items))
		for _, req := range in.Items {
			med, err := tx.MedicineForPharmacy(ctx, ph.ID, req.MedicineID)
			if err != nil {
				if errors.Is(err, catalog.ErrNotFound) {
					return notFoundError("medicine %d not found for pharmacy %d", req.MedicineID, ph.ID)
				}
				return persistenceError(err)
			}
			line := pricing.PriceLine(med.Price, req.Quantity)
			lines = append(lines, line)
			items = append(items, Item{
				MedicineID: med.ID,
				Quantity:   req.Quantity,
				UnitPrice:  line.UnitPrice,
			})
		}
		summary := pricing.Compute(lines)

		distanceKM := decimal.Zero
		surcharge := decimal.Zero
		if in.CustomerLat != nil && in.CustomerLng != nil {
			distanceKM = geo.Distance(*in.CustomerLat, *in.CustomerLng, ph.Lat, ph.Lng)
			surcharge = s.Delivery.Surcharge(distanceKM)
		}

		total := summary.Subtotal.Add(surcharge).Round(2)
		express := decimal.Zero
		if in.IsExpress {
			express = s.ExpressCharge
			total = total.Add(express).Round(2)
		}

		// Reserve in ascending medicine id order so concurrent multi-item
		// orders acquire row locks in a stable order.
		reservations := make([]Item, len(items))
		copy(reservations, items)
		sort.Slice(reservations, func(i, j int) bool { return reservations[i].MedicineID < reservations[j].MedicineID })
		for _, it := range reservations {
			if err := tx.ReserveStock(ctx, it.MedicineID, it.Quantity); err != nil {
				if errors.Is(err, catalog.ErrInsufficientStock) {
					if obs.ReservationConflictTotal != nil {
						obs.ReservationConflictTotal.Inc()
					}
					return insufficientStockError(it.MedicineID)
				}
				if errors.Is(err, catalog.ErrNotFound) {
					return notFoundError("medicine %d not found for pharmacy %d", it.MedicineID, ph.ID)
				}
				return persistenceError(err)
			}
		}

		o := Order{
			UserID:            in.UserID,
			PharmacyID:        ph.ID,
			Status:            StatusPending,
			TotalAmount:       total,
			SubtotalAmount:    summary.Subtotal,
			QuantityDiscount:  summary.QuantityDiscount,
			IsExpress:         in.IsExpress,
			DeliveryAddress:   in.DeliveryAddress,
			CustomerPhone:     in.CustomerPhone,
			CustomerLat:       in.CustomerLat,
			CustomerLng:       in.CustomerLng,
			DistanceKM:        distanceKM,
			DistanceSurcharge: surcharge,
		}
		if err := s.insertWithFreshNumber(ctx, tx, &o); err != nil {
			return err
		}
		if err := tx.InsertItems(ctx, o.ID, items); err != nil {
			return persistenceError(err)
		}

		conf = &Confirmation{
			OrderID:           o.ID,
			OrderNumber:       o.Number,
			Status:            o.Status,
			TotalAmount:       o.TotalAmount,
			SubtotalAmount:    o.SubtotalAmount,
			QuantityDiscount:  o.QuantityDiscount,
			DistanceKM:        o.DistanceKM,
			DistanceSurcharge: o.DistanceSurcharge,
			ExpressCharge:     express,
			IsExpress:         o.IsExpress,
		}
		return nil
	})
	if err != nil {
		var domainErr *Error
		if errors.As(err, &domainErr) {
			result = string(domainErr.Kind)
			return nil, domainErr
		}
		return nil, persistenceError(err)
	}

	result = "created"
	s.Log.Info().
		Int64("order_id", conf.OrderID).
		Str("order_number", conf.OrderNumber).
		Str("total", conf.TotalAmount.String()).
		Bool("is_express", conf.IsExpress).
		Msg("order_created")
	if s.Notifier != nil {
		s.Notifier.OrderCreated(ctx, conf.OrderID, conf.OrderNumber, conf.TotalAmount)
	}
	return conf, nil
}

func (s *Service) insertWithFreshNumber(ctx context.Context, tx Tx, o *Order) error {
	for attempt := 0; attempt < numberAttempts; attempt++ {
		number := NewNumber()
		taken, err := tx.OrderNumberExists(ctx, number)
		if err != nil {
			return persistenceError(err)
		}
		if taken {
			continue
		}
		o.Number = number
		if err := tx.InsertOrder(ctx, o); err != nil {
			// A racing insert can still win the number between check and
			// insert; the unique constraint aborts the transaction then.
			return persistenceError(err)
		}
		return nil
	}
	return persistenceError(fmt.Errorf("could not find a free order number after %d attempts", numberAttempts))
}

// Get returns the persisted order joined with items and pharmacy display info.
func (s *Service) Get(ctx context.Context, id int64) (*Detail, error) {
	detail, err := s.Store.GetOrder(ctx, id)
	if err != nil {
		var domainErr *Error
		if errors.As(err, &domainErr) {
			return nil, domainErr
		}
		return nil, persistenceError(err)
	}
	return detail, nil
}

// Transition moves the order to a new lifecycle status, rejecting anything
// the state machine forbids. The read and write happen under one row lock.
func (s *Service) Transition(ctx context.Context, id int64, to Status) (Status, error) {
	result := "error"
	defer func() {
		if obs.StatusTransitionTotal != nil {
			obs.StatusTransitionTotal.WithLabelValues(string(to), result).Inc()
		}
	}()
	err := s.Store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		current, err := tx.OrderStatusForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !CanTransition(current, to) {
			return &Error{
				Kind:    KindValidation,
				Message: fmt.Sprintf("cannot transition order from %s to %s", current, to),
				Err:     ErrInvalidTransition,
			}
		}
		return tx.SetOrderStatus(ctx, id, to)
	})
	if err != nil {
		var domainErr *Error
		if errors.As(err, &domainErr) {
			result = string(domainErr.Kind)
			return "", domainErr
		}
		return "", persistenceError(err)
	}
	result = "ok"
	return to, nil
}

func (s *Service) validateInput(in *Input) error {
	if s.Validate != nil {
		if err := s.Validate.Struct(in); err != nil {
			var fields validator.ValidationErrors
			if errors.As(err, &fields) && len(fields) > 0 {
				return validationError("invalid request: %s", describeFieldError(fields[0]))
			}
			return validationError("invalid request")
		}
	}
	in.DeliveryAddress = strings.TrimSpace(in.DeliveryAddress)
	in.CustomerPhone = strings.TrimSpace(in.CustomerPhone)
	if in.DeliveryAddress == "" {
		return validationError("delivery_address is required")
	}
	if in.CustomerPhone == "" {
		return validationError("customer_phone is required")
	}
	if len(in.Items) == 0 {
		return validationError("items are required")
	}
	for _, it := range in.Items {
		if it.MedicineID <= 0 || it.Quantity <= 0 {
			return validationError("each item requires medicine_id and positive quantity")
		}
	}
	if (in.CustomerLat == nil) != (in.CustomerLng == nil) {
		return validationError("customer_lat and customer_lng must be supplied together")
	}
	if in.CustomerLat != nil {
		if !isFinite(*in.CustomerLat) || !isFinite(*in.CustomerLng) {
			return validationError("invalid customer location coordinates")
		}
	}
	return nil
}

func describeFieldError(fe validator.FieldError) string {
	return fmt.Sprintf("field %s failed on %s", fe.Field(), fe.Tag())
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

package payment

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-apotek/internal/catalog"
	"github.com/noah-isme/backend-apotek/internal/order"
	"github.com/noah-isme/backend-apotek/internal/pharmacy"
)

// statusStore is an order.Store stub that only tracks order statuses, enough
// for exercising lifecycle transitions.
type statusStore struct {
	mu       sync.Mutex
	statuses map[int64]order.Status
}

func (s *statusStore) InTx(ctx context.Context, fn func(ctx context.Context, tx order.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := make(map[int64]order.Status, len(s.statuses))
	for k, v := range s.statuses {
		snapshot[k] = v
	}
	if err := fn(ctx, (*statusTx)(s)); err != nil {
		s.statuses = snapshot
		return err
	}
	return nil
}

func (s *statusStore) GetOrder(ctx context.Context, id int64) (*order.Detail, error) {
	return nil, &order.Error{Kind: order.KindNotFound, Message: "not implemented"}
}

type statusTx statusStore

func (s *statusTx) PharmacyByID(ctx context.Context, id int64) (pharmacy.Pharmacy, error) {
	return pharmacy.Pharmacy{}, pharmacy.ErrNotFound
}

func (s *statusTx) MedicineForPharmacy(ctx context.Context, pharmacyID, medicineID int64) (catalog.Medicine, error) {
	return catalog.Medicine{}, catalog.ErrNotFound
}

func (s *statusTx) ReserveStock(ctx context.Context, medicineID int64, quantity int) error {
	return catalog.ErrNotFound
}

func (s *statusTx) OrderNumberExists(ctx context.Context, number string) (bool, error) {
	return false, nil
}

func (s *statusTx) InsertOrder(ctx context.Context, o *order.Order) error {
	return errors.New("not implemented")
}

func (s *statusTx) InsertItems(ctx context.Context, orderID int64, items []order.Item) error {
	return errors.New("not implemented")
}

func (s *statusTx) OrderStatusForUpdate(ctx context.Context, id int64) (order.Status, error) {
	st, ok := s.statuses[id]
	if !ok {
		return "", &order.Error{Kind: order.KindNotFound, Message: "order not found"}
	}
	return st, nil
}

func (s *statusTx) SetOrderStatus(ctx context.Context, id int64, status order.Status) error {
	s.statuses[id] = status
	return nil
}

func newPaymentService(provider Provider, statuses map[int64]order.Status) (*Service, *statusStore) {
	store := &statusStore{statuses: statuses}
	orders := &order.Service{Store: store, Log: zerolog.Nop()}
	return &Service{Provider: provider, Orders: orders, Log: zerolog.Nop()}, store
}

func TestConfirmSucceededIntent(t *testing.T) {
	svc, store := newPaymentService(NewMockProvider(), map[int64]order.Status{1: order.StatusPending})

	status, err := svc.Confirm(context.Background(), 1, "pi_mock_123")
	require.NoError(t, err)
	require.Equal(t, order.StatusPaid, status)
	require.Equal(t, order.StatusPaid, store.statuses[1])
}

func TestConfirmPendingIntent(t *testing.T) {
	provider := NewMockProvider()
	provider.Stage(Intent{ID: "pi_wait", Status: IntentPending})
	svc, store := newPaymentService(provider, map[int64]order.Status{1: order.StatusPending})

	_, err := svc.Confirm(context.Background(), 1, "pi_wait")
	require.ErrorIs(t, err, ErrIntentNotSucceeded)
	require.Equal(t, order.StatusPending, store.statuses[1])
}

func TestConfirmUnknownIntent(t *testing.T) {
	svc, _ := newPaymentService(NewMockProvider(), map[int64]order.Status{1: order.StatusPending})
	_, err := svc.Confirm(context.Background(), 1, "pi_other")
	require.ErrorIs(t, err, ErrIntentNotFound)
}

func TestConfirmAlreadyPaid(t *testing.T) {
	svc, _ := newPaymentService(NewMockProvider(), map[int64]order.Status{1: order.StatusPaid})
	_, err := svc.Confirm(context.Background(), 1, "pi_mock_123")
	var domainErr *order.Error
	require.ErrorAs(t, err, &domainErr)
	require.Equal(t, order.KindValidation, domainErr.Kind)
}

func TestConfirmUnknownOrder(t *testing.T) {
	svc, _ := newPaymentService(NewMockProvider(), map[int64]order.Status{})
	_, err := svc.Confirm(context.Background(), 42, "pi_mock_123")
	var domainErr *order.Error
	require.ErrorAs(t, err, &domainErr)
	require.Equal(t, order.KindNotFound, domainErr.Kind)
}

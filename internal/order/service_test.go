package order

import (
	"context"
	"errors"
	"sync"
	"testing"

	validator "github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-apotek/internal/catalog"
	"github.com/noah-isme/backend-apotek/internal/geo"
	"github.com/noah-isme/backend-apotek/internal/pharmacy"
)

// memStore is an in-memory Store with real transaction semantics: InTx
// serializes transactions and restores the full state on error, the same
// contract the postgres store provides.
type memStore struct {
	mu         sync.Mutex
	pharmacies map[int64]pharmacy.Pharmacy
	medicines  map[int64]catalog.Medicine
	orders     map[int64]Order
	items      map[int64][]Item
	nextID     int64

	// numberBusy makes the first N number checks report a collision.
	numberBusy int
	insertErr  error
}

func newMemStore() *memStore {
	return &memStore{
		pharmacies: make(map[int64]pharmacy.Pharmacy),
		medicines:  make(map[int64]catalog.Medicine),
		orders:     make(map[int64]Order),
		items:      make(map[int64][]Item),
	}
}

func (m *memStore) InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	medSnap := make(map[int64]catalog.Medicine, len(m.medicines))
	for k, v := range m.medicines {
		medSnap[k] = v
	}
	orderSnap := make(map[int64]Order, len(m.orders))
	for k, v := range m.orders {
		orderSnap[k] = v
	}
	itemSnap := make(map[int64][]Item, len(m.items))
	for k, v := range m.items {
		itemSnap[k] = v
	}
	idSnap := m.nextID

	if err := fn(ctx, (*memTx)(m)); err != nil {
		m.medicines = medSnap
		m.orders = orderSnap
		m.items = itemSnap
		m.nextID = idSnap
		return err
	}
	return nil
}

func (m *memStore) GetOrder(ctx context.Context, id int64) (*Detail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, notFoundError("order %d not found", id)
	}
	ph := m.pharmacies[o.PharmacyID]
	d := &Detail{
		Order:        o,
		PharmacyName: ph.Name,
		PharmacyLat:  ph.Lat,
		PharmacyLng:  ph.Lng,
	}
	for _, it := range m.items[id] {
		med := m.medicines[it.MedicineID]
		d.Items = append(d.Items, ItemDetail{Item: it, MedicineName: med.Name})
	}
	return d, nil
}

type memTx memStore

func (m *memTx) PharmacyByID(ctx context.Context, id int64) (pharmacy.Pharmacy, error) {
	ph, ok := m.pharmacies[id]
	if !ok {
		return pharmacy.Pharmacy{}, pharmacy.ErrNotFound
	}
	return ph, nil
}

func (m *memTx) MedicineForPharmacy(ctx context.Context, pharmacyID, medicineID int64) (catalog.Medicine, error) {
	med, ok := m.medicines[medicineID]
	if !ok || med.PharmacyID != pharmacyID {
		return catalog.Medicine{}, catalog.ErrNotFound
	}
	return med, nil
}

func (m *memTx) ReserveStock(ctx context.Context, medicineID int64, quantity int) error {
	med, ok := m.medicines[medicineID]
	if !ok {
		return catalog.ErrNotFound
	}
	if med.StockQty < quantity {
		return catalog.ErrInsufficientStock
	}
	med.StockQty -= quantity
	m.medicines[medicineID] = med
	return nil
}

func (m *memTx) OrderNumberExists(ctx context.Context, number string) (bool, error) {
	if m.numberBusy > 0 {
		m.numberBusy--
		return true, nil
	}
	for _, o := range m.orders {
		if o.Number == number {
			return true, nil
		}
	}
	return false, nil
}

func (m *memTx) InsertOrder(ctx context.Context, o *Order) error {
	if m.insertErr != nil {
		return m.insertErr
	}
	m.nextID++
	o.ID = m.nextID
	m.orders[o.ID] = *o
	return nil
}

func (m *memTx) InsertItems(ctx context.Context, orderID int64, items []Item) error {
	m.items[orderID] = append([]Item(nil), items...)
	return nil
}

func (m *memTx) OrderStatusForUpdate(ctx context.Context, id int64) (Status, error) {
	o, ok := m.orders[id]
	if !ok {
		return "", notFoundError("order %d not found", id)
	}
	return o.Status, nil
}

func (m *memTx) SetOrderStatus(ctx context.Context, id int64, status Status) error {
	o := m.orders[id]
	o.Status = status
	m.orders[id] = o
	return nil
}

type recordingNotifier struct {
	mu    sync.Mutex
	calls []string
}

func (n *recordingNotifier) OrderCreated(ctx context.Context, orderID int64, number string, total decimal.Decimal) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, number)
}

func newTestService(store *memStore) (*Service, *recordingNotifier) {
	notifier := &recordingNotifier{}
	return &Service{
		Store: store,
		Delivery: geo.SurchargePolicy{
			FreeRadiusKM: decimal.NewFromFloat(2.5),
			PerKMCharge:  decimal.NewFromInt(5),
			MinSurcharge: decimal.NewFromInt(20),
		},
		ExpressCharge: decimal.NewFromInt(30),
		Validate:      validator.New(),
		Notifier:      notifier,
		Log:           zerolog.Nop(),
	}, notifier
}

func seedPharmacy(store *memStore) pharmacy.Pharmacy {
	ph := pharmacy.Pharmacy{ID: 1, Name: "Apotek Sehat", Lat: 28.6139, Lng: 77.2090, Approved: true}
	store.pharmacies[ph.ID] = ph
	return ph
}

func seedMedicine(store *memStore, id int64, price string, stock int) {
	store.medicines[id] = catalog.Medicine{
		ID:         id,
		PharmacyID: 1,
		Name:       "Med",
		Price:      decimal.RequireFromString(price),
		StockQty:   stock,
	}
}

func validInput() Input {
	return Input{
		PharmacyID:      1,
		Items:           []InputItem{{MedicineID: 10, Quantity: 1}},
		DeliveryAddress: "Jl. Melati 5",
		CustomerPhone:   "+62-811-111",
	}
}

func TestCreateBreakdown(t *testing.T) {
	store := newMemStore()
	ph := seedPharmacy(store)
	seedMedicine(store, 10, "100", 50)
	seedMedicine(store, 11, "9.99", 50)
	svc, notifier := newTestService(store)

	in := validInput()
	in.Items = []InputItem{
		{MedicineID: 10, Quantity: 5},
		{MedicineID: 11, Quantity: 3},
	}
	in.IsExpress = true
	in.CustomerLat = &ph.Lat
	in.CustomerLng = &ph.Lng

	conf, err := svc.Create(context.Background(), in)
	require.NoError(t, err)

	// 100 at qty 5 discounts 10% -> unit 90, line 450.
	// 9.99 at qty 3 discounts 5% -> unit 9.49, line 28.47.
	require.Equal(t, "478.47", conf.SubtotalAmount.String())
	require.Equal(t, "51.50", conf.QuantityDiscount.StringFixed(2))
	// Customer sits at the pharmacy: no distance surcharge.
	require.True(t, conf.DistanceKM.IsZero())
	require.True(t, conf.DistanceSurcharge.IsZero())
	require.Equal(t, "30", conf.ExpressCharge.String())
	require.Equal(t, "508.47", conf.TotalAmount.String())
	require.Equal(t, StatusPending, conf.Status)
	require.Regexp(t, `^ORD-[0-9A-F]{8}$`, conf.OrderNumber)

	require.Equal(t, 45, store.medicines[10].StockQty)
	require.Equal(t, 47, store.medicines[11].StockQty)

	detail, err := svc.Get(context.Background(), conf.OrderID)
	require.NoError(t, err)
	require.Equal(t, conf.OrderNumber, detail.Number)
	require.Len(t, detail.Items, 2)
	require.Equal(t, "90", detail.Items[0].UnitPrice.String())

	// Stored total can be recomputed from persisted parts.
	recomputed := detail.SubtotalAmount.Add(detail.DistanceSurcharge).Round(2).
		Add(decimal.NewFromInt(30)).Round(2)
	require.True(t, recomputed.Equal(detail.TotalAmount))

	require.Equal(t, []string{conf.OrderNumber}, notifier.calls)
}

func TestCreateDistanceSurcharge(t *testing.T) {
	store := newMemStore()
	seedPharmacy(store)
	seedMedicine(store, 10, "50", 10)
	svc, _ := newTestService(store)

	in := validInput()
	// Roughly 10 km north of the pharmacy.
	lat, lng := 28.7039, 77.2090
	in.CustomerLat = &lat
	in.CustomerLng = &lng

	conf, err := svc.Create(context.Background(), in)
	require.NoError(t, err)
	require.True(t, conf.DistanceKM.GreaterThan(decimal.NewFromFloat(2.5)))
	require.True(t, conf.DistanceSurcharge.GreaterThanOrEqual(decimal.NewFromInt(20)))
	want := conf.SubtotalAmount.Add(conf.DistanceSurcharge).Round(2)
	require.True(t, conf.TotalAmount.Equal(want))
}

func TestCreateWithoutCoordinates(t *testing.T) {
	store := newMemStore()
	seedPharmacy(store)
	seedMedicine(store, 10, "50", 10)
	svc, _ := newTestService(store)

	// validInput carries no customer coordinates, so delivery distance must
	// not factor into the total at all.
	conf, err := svc.Create(context.Background(), validInput())
	require.NoError(t, err)
	require.True(t, conf.DistanceKM.IsZero())
	require.True(t, conf.DistanceSurcharge.IsZero())
	require.True(t, conf.TotalAmount.Equal(conf.SubtotalAmount))
}

func TestCreateValidation(t *testing.T) {
	store := newMemStore()
	seedPharmacy(store)
	seedMedicine(store, 10, "50", 10)
	svc, notifier := newTestService(store)

	lat := 28.6
	cases := map[string]Input{
		"no items": func() Input {
			in := validInput()
			in.Items = nil
			return in
		}(),
		"zero quantity": func() Input {
			in := validInput()
			in.Items = []InputItem{{MedicineID: 10, Quantity: 0}}
			return in
		}(),
		"missing address": func() Input {
			in := validInput()
			in.DeliveryAddress = ""
			return in
		}(),
		"missing phone": func() Input {
			in := validInput()
			in.CustomerPhone = ""
			return in
		}(),
		"lat without lng": func() Input {
			in := validInput()
			in.CustomerLat = &lat
			return in
		}(),
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), in)
			var domainErr *Error
			require.ErrorAs(t, err, &domainErr)
			require.Equal(t, KindValidation, domainErr.Kind)
		})
	}
	require.Equal(t, 10, store.medicines[10].StockQty)
	require.Empty(t, notifier.calls)
}

func TestCreateNotFound(t *testing.T) {
	store := newMemStore()
	seedPharmacy(store)
	seedMedicine(store, 10, "50", 10)
	svc, _ := newTestService(store)

	in := validInput()
	in.PharmacyID = 99
	_, err := svc.Create(context.Background(), in)
	var domainErr *Error
	require.ErrorAs(t, err, &domainErr)
	require.Equal(t, KindNotFound, domainErr.Kind)

	in = validInput()
	in.Items = []InputItem{{MedicineID: 404, Quantity: 1}}
	_, err = svc.Create(context.Background(), in)
	require.ErrorAs(t, err, &domainErr)
	require.Equal(t, KindNotFound, domainErr.Kind)
}

func TestCreateInsufficientStock(t *testing.T) {
	store := newMemStore()
	seedPharmacy(store)
	seedMedicine(store, 10, "50", 3)
	svc, notifier := newTestService(store)

	in := validInput()
	in.Items = []InputItem{{MedicineID: 10, Quantity: 5}}
	_, err := svc.Create(context.Background(), in)

	var domainErr *Error
	require.ErrorAs(t, err, &domainErr)
	require.Equal(t, KindInsufficientStock, domainErr.Kind)
	require.Equal(t, int64(10), domainErr.MedicineID)

	require.Equal(t, 3, store.medicines[10].StockQty)
	require.Empty(t, store.orders)
	require.Empty(t, notifier.calls)
}

func TestCreateRollsBackPartialReservation(t *testing.T) {
	store := newMemStore()
	seedPharmacy(store)
	seedMedicine(store, 10, "50", 10)
	seedMedicine(store, 11, "50", 1)
	svc, _ := newTestService(store)

	in := validInput()
	in.Items = []InputItem{
		{MedicineID: 10, Quantity: 2},
		{MedicineID: 11, Quantity: 2},
	}
	_, err := svc.Create(context.Background(), in)

	var domainErr *Error
	require.ErrorAs(t, err, &domainErr)
	require.Equal(t, KindInsufficientStock, domainErr.Kind)
	require.Equal(t, int64(11), domainErr.MedicineID)

	// The first reservation must not survive the failed transaction.
	require.Equal(t, 10, store.medicines[10].StockQty)
	require.Equal(t, 1, store.medicines[11].StockQty)
	require.Empty(t, store.orders)
}

func TestCreateRetriesTakenNumbers(t *testing.T) {
	store := newMemStore()
	seedPharmacy(store)
	seedMedicine(store, 10, "50", 10)
	svc, _ := newTestService(store)

	store.numberBusy = numberAttempts - 1
	conf, err := svc.Create(context.Background(), validInput())
	require.NoError(t, err)
	require.Regexp(t, `^ORD-[0-9A-F]{8}$`, conf.OrderNumber)

	store.numberBusy = numberAttempts
	_, err = svc.Create(context.Background(), validInput())
	var domainErr *Error
	require.ErrorAs(t, err, &domainErr)
	require.Equal(t, KindPersistence, domainErr.Kind)
	// The exhausted attempt must also roll back its reservation.
	require.Equal(t, 9, store.medicines[10].StockQty)
}

func TestCreateConcurrentReservations(t *testing.T) {
	store := newMemStore()
	seedPharmacy(store)
	const stock = 5
	seedMedicine(store, 10, "50", stock)
	svc, _ := newTestService(store)

	const workers = 20
	var wg sync.WaitGroup
	results := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Create(context.Background(), validInput())
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	created, rejected := 0, 0
	for err := range results {
		if err == nil {
			created++
			continue
		}
		var domainErr *Error
		require.ErrorAs(t, err, &domainErr)
		require.Equal(t, KindInsufficientStock, domainErr.Kind)
		rejected++
	}
	require.Equal(t, stock, created)
	require.Equal(t, workers-stock, rejected)
	require.Equal(t, 0, store.medicines[10].StockQty)
	require.Len(t, store.orders, stock)
}

func TestTransition(t *testing.T) {
	store := newMemStore()
	seedPharmacy(store)
	seedMedicine(store, 10, "50", 10)
	svc, _ := newTestService(store)

	conf, err := svc.Create(context.Background(), validInput())
	require.NoError(t, err)

	status, err := svc.Transition(context.Background(), conf.OrderID, StatusPaid)
	require.NoError(t, err)
	require.Equal(t, StatusPaid, status)

	_, err = svc.Transition(context.Background(), conf.OrderID, StatusCancelled)
	var domainErr *Error
	require.ErrorAs(t, err, &domainErr)
	require.Equal(t, KindValidation, domainErr.Kind)
	require.ErrorIs(t, err, ErrInvalidTransition)

	_, err = svc.Transition(context.Background(), 9999, StatusPaid)
	require.ErrorAs(t, err, &domainErr)
	require.Equal(t, KindNotFound, domainErr.Kind)

	status, err = svc.Transition(context.Background(), conf.OrderID, StatusOutForDelivery)
	require.NoError(t, err)
	require.Equal(t, StatusOutForDelivery, status)
	status, err = svc.Transition(context.Background(), conf.OrderID, StatusDelivered)
	require.NoError(t, err)
	require.Equal(t, StatusDelivered, status)
}

func TestGetNotFound(t *testing.T) {
	store := newMemStore()
	svc, _ := newTestService(store)
	_, err := svc.Get(context.Background(), 42)
	var domainErr *Error
	require.ErrorAs(t, err, &domainErr)
	require.Equal(t, KindNotFound, domainErr.Kind)
}

func TestCreatePersistenceFailure(t *testing.T) {
	store := newMemStore()
	seedPharmacy(store)
	seedMedicine(store, 10, "50", 10)
	store.insertErr = errors.New("disk on fire")
	svc, notifier := newTestService(store)

	_, err := svc.Create(context.Background(), validInput())
	var domainErr *Error
	require.ErrorAs(t, err, &domainErr)
	require.Equal(t, KindPersistence, domainErr.Kind)
	require.Equal(t, 10, store.medicines[10].StockQty)
	require.Empty(t, notifier.calls)
}

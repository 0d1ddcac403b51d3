// Package repo implements the persistence boundaries on PostgreSQL via pgx.
// NUMERIC money columns travel as shopspring decimals; the pool must be
// created with NewPool so the decimal codec is registered.
package repo

import (
	"context"
	"errors"
	"fmt"

	pgxdecimal "github.com/jackc/pgx-shopspring-decimal"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/noah-isme/backend-apotek/internal/catalog"
	"github.com/noah-isme/backend-apotek/internal/order"
	"github.com/noah-isme/backend-apotek/internal/pharmacy"
)

// pgUniqueViolation is the SQLSTATE for a unique constraint violation.
const pgUniqueViolation = "23505"

var _ order.Store = (*OrderStore)(nil)

// OrderStore implements order.Store backed by PostgreSQL.
type OrderStore struct {
	Pool *pgxpool.Pool
}

// NewOrderStore returns an OrderStore that uses the given pool.
func NewOrderStore(pool *pgxpool.Pool) *OrderStore {
	return &OrderStore{Pool: pool}
}

// NewPool creates a pgxpool.Pool with the shopspring decimal codec registered
// for NUMERIC columns and the optional query tracer attached.
func NewPool(ctx context.Context, databaseURL, appName string, tracer pgx.QueryTracer) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing database config: %w", err)
	}
	if appName != "" {
		cfg.ConnConfig.RuntimeParams["application_name"] = appName
	}
	if tracer != nil {
		cfg.ConnConfig.Tracer = tracer
	}
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		pgxdecimal.Register(conn.TypeMap())
		return nil
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}
	return pool, nil
}

// InTx runs fn inside a single database transaction. Any error rolls the
// whole transaction back, including stock reservations already applied.
func (s *OrderStore) InTx(ctx context.Context, fn func(ctx context.Context, tx order.Tx) error) error {
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(ctx, &orderTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

type orderTx struct {
	tx pgx.Tx
}

const pharmacyByIDSQL = `SELECT id, name, lat, lng, approved
	FROM pharmacies WHERE id = $1`

func (t *orderTx) PharmacyByID(ctx context.Context, id int64) (pharmacy.Pharmacy, error) {
	var ph pharmacy.Pharmacy
	err := t.tx.QueryRow(ctx, pharmacyByIDSQL, id).
		Scan(&ph.ID, &ph.Name, &ph.Lat, &ph.Lng, &ph.Approved)
	if errors.Is(err, pgx.ErrNoRows) {
		return pharmacy.Pharmacy{}, pharmacy.ErrNotFound
	}
	if err != nil {
		return pharmacy.Pharmacy{}, fmt.Errorf("loading pharmacy %d: %w", id, err)
	}
	return ph, nil
}

const medicineForPharmacySQL = `SELECT id, pharmacy_id, name, price, stock_qty
	FROM medicines WHERE id = $1 AND pharmacy_id = $2`

func (t *orderTx) MedicineForPharmacy(ctx context.Context, pharmacyID, medicineID int64) (catalog.Medicine, error) {
	var m catalog.Medicine
	err := t.tx.QueryRow(ctx, medicineForPharmacySQL, medicineID, pharmacyID).
		Scan(&m.ID, &m.PharmacyID, &m.Name, &m.Price, &m.StockQty)
	if errors.Is(err, pgx.ErrNoRows) {
		return catalog.Medicine{}, catalog.ErrNotFound
	}
	if err != nil {
		return catalog.Medicine{}, fmt.Errorf("loading medicine %d: %w", medicineID, err)
	}
	return m, nil
}

// reserveStockSQL decrements stock only when enough units remain. The guard
// in the WHERE clause makes the check and the decrement one atomic statement;
// the CHECK constraint on stock_qty is the final backstop.
const reserveStockSQL = `UPDATE medicines
	SET stock_qty = stock_qty - $2
	WHERE id = $1 AND stock_qty >= $2`

func (t *orderTx) ReserveStock(ctx context.Context, medicineID int64, quantity int) error {
	tag, err := t.tx.Exec(ctx, reserveStockSQL, medicineID, quantity)
	if err != nil {
		return fmt.Errorf("reserving %d units of medicine %d: %w", quantity, medicineID, err)
	}
	if tag.RowsAffected() == 0 {
		// Either the row is missing or the stock is short; distinguish so
		// callers can answer with the right error kind.
		var exists bool
		if err := t.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM medicines WHERE id = $1)`, medicineID).Scan(&exists); err != nil {
			return fmt.Errorf("checking medicine %d: %w", medicineID, err)
		}
		if !exists {
			return catalog.ErrNotFound
		}
		return catalog.ErrInsufficientStock
	}
	return nil
}

func (t *orderTx) OrderNumberExists(ctx context.Context, number string) (bool, error) {
	var exists bool
	err := t.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE order_number = $1)`, number).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking order number %s: %w", number, err)
	}
	return exists, nil
}

const insertOrderSQL = `INSERT INTO orders (
		order_number, user_id, pharmacy_id, status,
		total_amount, subtotal_amount, quantity_discount,
		is_express, delivery_address, customer_phone,
		customer_lat, customer_lng, distance_km, distance_surcharge
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	RETURNING id, created_at`

func (t *orderTx) InsertOrder(ctx context.Context, o *order.Order) error {
	err := t.tx.QueryRow(ctx, insertOrderSQL,
		o.Number, o.UserID, o.PharmacyID, string(o.Status),
		o.TotalAmount, o.SubtotalAmount, o.QuantityDiscount,
		o.IsExpress, o.DeliveryAddress, o.CustomerPhone,
		o.CustomerLat, o.CustomerLng, o.DistanceKM, o.DistanceSurcharge,
	).Scan(&o.ID, &o.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return order.ErrNumberTaken
		}
		return fmt.Errorf("inserting order %s: %w", o.Number, err)
	}
	return nil
}

const insertItemSQL = `INSERT INTO order_items (order_id, medicine_id, quantity, unit_price)
	VALUES ($1, $2, $3, $4)`

func (t *orderTx) InsertItems(ctx context.Context, orderID int64, items []order.Item) error {
	batch := &pgx.Batch{}
	for _, it := range items {
		batch.Queue(insertItemSQL, orderID, it.MedicineID, it.Quantity, it.UnitPrice)
	}
	results := t.tx.SendBatch(ctx, batch)
	defer func() { _ = results.Close() }()
	for range items {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("inserting order items for order %d: %w", orderID, err)
		}
	}
	return results.Close()
}

func (t *orderTx) OrderStatusForUpdate(ctx context.Context, id int64) (order.Status, error) {
	var raw string
	err := t.tx.QueryRow(ctx, `SELECT status FROM orders WHERE id = $1 FOR UPDATE`, id).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", &order.Error{Kind: order.KindNotFound, Message: fmt.Sprintf("order %d not found", id)}
	}
	if err != nil {
		return "", fmt.Errorf("locking order %d: %w", id, err)
	}
	return order.Status(raw), nil
}

func (t *orderTx) SetOrderStatus(ctx context.Context, id int64, status order.Status) error {
	_, err := t.tx.Exec(ctx, `UPDATE orders SET status = $2 WHERE id = $1`, id, string(status))
	if err != nil {
		return fmt.Errorf("updating status of order %d: %w", id, err)
	}
	return nil
}

const getOrderSQL = `SELECT
		o.id, o.order_number, o.user_id, o.pharmacy_id, o.status,
		o.total_amount, o.subtotal_amount, o.quantity_discount,
		o.is_express, o.delivery_address, o.customer_phone,
		o.customer_lat, o.customer_lng, o.distance_km, o.distance_surcharge,
		o.created_at,
		p.name, p.lat, p.lng
	FROM orders o
	JOIN pharmacies p ON p.id = o.pharmacy_id
	WHERE o.id = $1`

const getOrderItemsSQL = `SELECT oi.medicine_id, oi.quantity, oi.unit_price, m.name
	FROM order_items oi
	JOIN medicines m ON m.id = oi.medicine_id
	WHERE oi.order_id = $1
	ORDER BY oi.id`

// GetOrder loads an order joined with its items and pharmacy display info.
func (s *OrderStore) GetOrder(ctx context.Context, id int64) (*order.Detail, error) {
	var d order.Detail
	var status string
	err := s.Pool.QueryRow(ctx, getOrderSQL, id).Scan(
		&d.ID, &d.Number, &d.UserID, &d.PharmacyID, &status,
		&d.TotalAmount, &d.SubtotalAmount, &d.QuantityDiscount,
		&d.IsExpress, &d.DeliveryAddress, &d.CustomerPhone,
		&d.CustomerLat, &d.CustomerLng, &d.DistanceKM, &d.DistanceSurcharge,
		&d.CreatedAt,
		&d.PharmacyName, &d.PharmacyLat, &d.PharmacyLng,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &order.Error{Kind: order.KindNotFound, Message: fmt.Sprintf("order %d not found", id)}
	}
	if err != nil {
		return nil, fmt.Errorf("loading order %d: %w", id, err)
	}
	d.Status = order.Status(status)

	rows, err := s.Pool.Query(ctx, getOrderItemsSQL, id)
	if err != nil {
		return nil, fmt.Errorf("loading items of order %d: %w", id, err)
	}
	defer rows.Close()
	for rows.Next() {
		var it order.ItemDetail
		if err := rows.Scan(&it.MedicineID, &it.Quantity, &it.UnitPrice, &it.MedicineName); err != nil {
			return nil, fmt.Errorf("scanning item of order %d: %w", id, err)
		}
		d.Items = append(d.Items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating items of order %d: %w", id, err)
	}
	return &d, nil
}

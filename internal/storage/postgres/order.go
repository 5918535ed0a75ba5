package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront-checkout/internal/domain/checkout"
)

const (
	orderColumns = `id, username, order_date, name, email, phone, address, city, state,
		postal_code, country, total, donated, donation_amount, status`

	insertOrderSQL = `INSERT INTO orders (username, order_date, name, email, phone, address, city, state,
		postal_code, country, total, donated, donation_amount, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id`

	insertOrderLineSQL = `INSERT INTO order_lines (order_id, product_id, quantity, unit_price)
		VALUES ($1, $2, $3, $4)`

	getOrderByIDSQL = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	listOrdersByUsernameSQL = `SELECT ` + orderColumns + ` FROM orders
		WHERE username = $1 ORDER BY order_date DESC, id DESC`

	listOrderLinesSQL = `SELECT order_id, product_id, quantity, unit_price
		FROM order_lines WHERE order_id = ANY($1) ORDER BY order_id, product_id`

	updateOrderStatusSQL = `UPDATE orders SET status = $2 WHERE id = $1`
)

var _ checkout.Repository = (*OrderRepository)(nil)

// OrderRepository implements checkout.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// CreateFromCart inserts the order and its lines and empties the cart of
// owner. Either all three happen or none does.
func (r *OrderRepository) CreateFromCart(ctx context.Context, o *checkout.Order, owner string) error {
	var id int64
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, insertOrderSQL,
			o.Username, o.OrderDate, o.Name, o.Email, o.Phone, o.Address, o.City, o.State,
			o.PostalCode, o.Country, o.Total, o.Donated, o.DonationAmount, string(o.Status),
		).Scan(&id)
		if err != nil {
			return fmt.Errorf("inserting order: %w", err)
		}

		batch := &pgx.Batch{}
		for _, l := range o.Lines {
			batch.Queue(insertOrderLineSQL, id, l.ProductID, l.Quantity, l.UnitPrice)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("inserting order lines: %w", err)
		}

		if _, err := tx.Exec(ctx, clearCartSQL, owner); err != nil {
			return fmt.Errorf("clearing cart of %q: %w", owner, err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	o.ID = id
	return nil
}

// FindByID returns the order with its lines.
func (r *OrderRepository) FindByID(ctx context.Context, id int64) (*checkout.Order, error) {
	rows, err := r.pool.Query(ctx, getOrderByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting order %d: %w", id, err)
	}
	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, checkout.ErrOrderNotFound
		}
		return nil, fmt.Errorf("getting order %d: %w", id, err)
	}

	orders := []checkout.Order{o}
	if err := r.attachLines(ctx, orders); err != nil {
		return nil, err
	}
	return &orders[0], nil
}

// ListByUsername returns the orders of username, newest first.
func (r *OrderRepository) ListByUsername(ctx context.Context, username string) ([]checkout.Order, error) {
	rows, err := r.pool.Query(ctx, listOrdersByUsernameSQL, username)
	if err != nil {
		return nil, fmt.Errorf("listing orders of %q: %w", username, err)
	}
	orders, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return nil, fmt.Errorf("listing orders of %q: %w", username, err)
	}
	if err := r.attachLines(ctx, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// UpdateStatus sets the status column of order id.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id int64, status checkout.Status) error {
	tag, err := r.pool.Exec(ctx, updateOrderStatusSQL, id, string(status))
	if err != nil {
		return fmt.Errorf("updating order %d status: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return checkout.ErrOrderNotFound
	}
	return nil
}

func (r *OrderRepository) attachLines(ctx context.Context, orders []checkout.Order) error {
	if len(orders) == 0 {
		return nil
	}
	ids := make([]int64, len(orders))
	index := make(map[int64]int, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
		index[o.ID] = i
	}

	rows, err := r.pool.Query(ctx, listOrderLinesSQL, ids)
	if err != nil {
		return fmt.Errorf("listing order lines: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			orderID int64
			l       checkout.Line
		)
		if err := rows.Scan(&orderID, &l.ProductID, &l.Quantity, &l.UnitPrice); err != nil {
			return fmt.Errorf("scanning order line: %w", err)
		}
		i := index[orderID]
		orders[i].Lines = append(orders[i].Lines, l)
	}
	return rows.Err()
}

func scanOrder(row pgx.CollectableRow) (checkout.Order, error) {
	var (
		o      checkout.Order
		status string
	)
	err := row.Scan(
		&o.ID, &o.Username, &o.OrderDate, &o.Name, &o.Email, &o.Phone, &o.Address, &o.City, &o.State,
		&o.PostalCode, &o.Country, &o.Total, &o.Donated, &o.DonationAmount, &status,
	)
	o.Status = checkout.Status(status)
	return o, err
}

package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kihuni/Hoodie-Hub/internal/domain"
)

// ---- products ----

func (r *PostgresRepo) GetProduct(ctx context.Context, id uuid.UUID) (*domain.Product, bool) {
	var p domain.Product
	err := r.db.QueryRowContext(ctx, `SELECT id,name,description,price,image_url,available_sizes,stock_quantity,active,created_at
		FROM products WHERE id=$1`, id).
		Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.ImageURL, &p.AvailableSizes, &p.StockQuantity, &p.Active, &p.CreatedAt)
	if err != nil {
		return nil, false
	}
	return &p, true
}

func (r *PostgresRepo) ListProducts(ctx context.Context, activeOnly bool) ([]domain.Product, error) {
	q := `SELECT id,name,description,price,image_url,available_sizes,stock_quantity,active,created_at FROM products ORDER BY created_at DESC`
	if activeOnly {
		q = `SELECT id,name,description,price,image_url,available_sizes,stock_quantity,active,created_at FROM products WHERE active ORDER BY created_at DESC`
	}
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.Product
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.ImageURL, &p.AvailableSizes, &p.StockQuantity, &p.Active, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) PutProduct(ctx context.Context, p *domain.Product) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO products (id,name,description,price,image_url,available_sizes,stock_quantity,active,created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (id) DO UPDATE SET name=$2,description=$3,price=$4,image_url=$5,available_sizes=$6,stock_quantity=$7,active=$8`,
		p.ID, p.Name, p.Description, p.Price, p.ImageURL, p.AvailableSizes, p.StockQuantity, p.Active, p.CreatedAt)
	return err
}

// ---- users ----

func (r *PostgresRepo) PutUser(ctx context.Context, u *domain.User) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO users (user_id,username,email,password_hash,phone_number,delivery_location,created_at,updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (user_id) DO UPDATE SET username=$2,email=$3,password_hash=$4,phone_number=$5,delivery_location=$6,updated_at=$8`,
		u.UserID, u.Username, u.Email, u.PasswordHash, u.PhoneNumber, u.DeliveryLocation, u.CreatedAt, u.UpdatedAt)
	return err
}

func (r *PostgresRepo) GetUser(ctx context.Context, id string) (*domain.User, bool) {
	return r.scanUser(r.db.QueryRowContext(ctx, `SELECT user_id,username,email,password_hash,phone_number,delivery_location,created_at,updated_at
		FROM users WHERE user_id=$1`, id))
}

func (r *PostgresRepo) GetUserByUsername(ctx context.Context, username string) (*domain.User, bool) {
	return r.scanUser(r.db.QueryRowContext(ctx, `SELECT user_id,username,email,password_hash,phone_number,delivery_location,created_at,updated_at
		FROM users WHERE username=$1`, username))
}

func (r *PostgresRepo) scanUser(row *sql.Row) (*domain.User, bool) {
	var u domain.User
	err := row.Scan(&u.UserID, &u.Username, &u.Email, &u.PasswordHash, &u.PhoneNumber, &u.DeliveryLocation, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, false
	}
	return &u, true
}

// ---- carts ----

func (r *PostgresRepo) GetCartByRef(ctx context.Context, ref domain.CartRef) (*domain.Cart, bool) {
	var row *sql.Row
	if ref.UserID != "" {
		row = r.db.QueryRowContext(ctx, `SELECT id,COALESCE(user_id,''),COALESCE(session_key,''),version,created_at,updated_at FROM carts WHERE user_id=$1`, ref.UserID)
	} else {
		row = r.db.QueryRowContext(ctx, `SELECT id,COALESCE(user_id,''),COALESCE(session_key,''),version,created_at,updated_at FROM carts WHERE session_key=$1`, ref.SessionKey)
	}
	var c domain.Cart
	if err := row.Scan(&c.ID, &c.UserID, &c.SessionKey, &c.Version, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, false
	}
	items, err := r.cartItems(ctx, c.ID)
	if err != nil {
		return nil, false
	}
	c.Items = items
	return &c, true
}

func (r *PostgresRepo) cartItems(ctx context.Context, cartID uuid.UUID) ([]domain.CartItem, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id,cart_id,product_id,size,quantity,created_at FROM cart_items WHERE cart_id=$1 ORDER BY created_at`, cartID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.CartItem
	for rows.Next() {
		var it domain.CartItem
		if err := rows.Scan(&it.ID, &it.CartID, &it.ProductID, &it.Size, &it.Quantity, &it.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) CreateCart(ctx context.Context, c *domain.Cart) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO carts (id,user_id,session_key,version,created_at,updated_at)
		VALUES ($1,NULLIF($2,''),NULLIF($3,''),$4,$5,$6)`,
		c.ID, c.UserID, c.SessionKey, c.Version, c.CreatedAt, c.UpdatedAt)
	return err
}

func (r *PostgresRepo) GetCartItem(ctx context.Context, itemID uuid.UUID) (*domain.CartItem, bool) {
	var it domain.CartItem
	err := r.db.QueryRowContext(ctx, `SELECT id,cart_id,product_id,size,quantity,created_at FROM cart_items WHERE id=$1`, itemID).
		Scan(&it.ID, &it.CartID, &it.ProductID, &it.Size, &it.Quantity, &it.CreatedAt)
	if err != nil {
		return nil, false
	}
	return &it, true
}

func (r *PostgresRepo) PutCartItem(ctx context.Context, it *domain.CartItem) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	_, err = tx.ExecContext(ctx, `INSERT INTO cart_items (id,cart_id,product_id,size,quantity,created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (cart_id,product_id,size) DO UPDATE SET quantity=$5`,
		it.ID, it.CartID, it.ProductID, it.Size, it.Quantity, it.CreatedAt)
	if err != nil {
		return err
	}
	if err := bumpCartVersion(ctx, tx, it.CartID); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *PostgresRepo) DeleteCartItem(ctx context.Context, itemID uuid.UUID) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	var cartID uuid.UUID
	err = tx.QueryRowContext(ctx, `DELETE FROM cart_items WHERE id=$1 RETURNING cart_id`, itemID).Scan(&cartID)
	if err == sql.ErrNoRows {
		return nil // idempotent delete
	}
	if err != nil {
		return err
	}
	if err := bumpCartVersion(ctx, tx, cartID); err != nil {
		return err
	}
	return tx.Commit()
}

// ClearCartItems removes all items only if the cart version still matches
// the checkout snapshot. A concurrent add bumps the version and wins.
func (r *PostgresRepo) ClearCartItems(ctx context.Context, cartID uuid.UUID, version int64) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()
	res, err := tx.ExecContext(ctx, `UPDATE carts SET version=version+1, updated_at=now() WHERE id=$1 AND version=$2`, cartID, version)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, nil
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM cart_items WHERE cart_id=$1`, cartID); err != nil {
		return false, err
	}
	return true, tx.Commit()
}

func (r *PostgresRepo) DeleteCart(ctx context.Context, cartID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM carts WHERE id=$1`, cartID)
	return err
}

func bumpCartVersion(ctx context.Context, tx *sql.Tx, cartID uuid.UUID) error {
	_, err := tx.ExecContext(ctx, `UPDATE carts SET version=version+1, updated_at=now() WHERE id=$1`, cartID)
	return err
}

// ---- orders ----

func (r *PostgresRepo) CreateOrder(ctx context.Context, o *domain.Order) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	_, err = tx.ExecContext(ctx, `INSERT INTO orders (id,user_id,customer_name,phone_number,delivery_location,total_amount,status,checkout_request_id,merchant_request_id,receipt_number,created_at,updated_at)
		VALUES ($1,NULLIF($2,''),$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		o.ID, o.UserID, o.CustomerName, o.PhoneNumber, o.DeliveryLocation, o.TotalAmount, string(o.Status),
		o.CheckoutRequestID, o.MerchantRequestID, o.ReceiptNumber, o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return err
	}
	for i := range o.Items {
		it := &o.Items[i]
		_, err = tx.ExecContext(ctx, `INSERT INTO order_items (id,order_id,product_name,size,quantity,unit_price) VALUES ($1,$2,$3,$4,$5,$6)`,
			it.ID, it.OrderID, it.ProductName, it.Size, it.Quantity, it.UnitPrice)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

const orderColumns = `id,COALESCE(user_id,''),customer_name,phone_number,delivery_location,total_amount,status,checkout_request_id,merchant_request_id,receipt_number,created_at,updated_at`

func (r *PostgresRepo) GetOrder(ctx context.Context, id uuid.UUID) (*domain.Order, bool) {
	return r.scanOrder(ctx, r.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1`, id))
}

func (r *PostgresRepo) GetOrderByCheckoutRequestID(ctx context.Context, checkoutRequestID string) (*domain.Order, bool) {
	if checkoutRequestID == "" {
		return nil, false
	}
	return r.scanOrder(ctx, r.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE checkout_request_id=$1`, checkoutRequestID))
}

func (r *PostgresRepo) scanOrder(ctx context.Context, row *sql.Row) (*domain.Order, bool) {
	var o domain.Order
	var status string
	err := row.Scan(&o.ID, &o.UserID, &o.CustomerName, &o.PhoneNumber, &o.DeliveryLocation, &o.TotalAmount, &status,
		&o.CheckoutRequestID, &o.MerchantRequestID, &o.ReceiptNumber, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, false
	}
	o.Status = domain.OrderStatus(status)
	items, err := r.orderItems(ctx, o.ID)
	if err != nil {
		return nil, false
	}
	o.Items = items
	return &o, true
}

func (r *PostgresRepo) orderItems(ctx context.Context, orderID uuid.UUID) ([]domain.OrderItem, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id,order_id,product_name,size,quantity,unit_price FROM order_items WHERE order_id=$1`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.OrderItem
	for rows.Next() {
		var it domain.OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductName, &it.Size, &it.Quantity, &it.UnitPrice); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) ListOrdersByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE user_id=$1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.Order
	for rows.Next() {
		var o domain.Order
		var status string
		if err := rows.Scan(&o.ID, &o.UserID, &o.CustomerName, &o.PhoneNumber, &o.DeliveryLocation, &o.TotalAmount, &status,
			&o.CheckoutRequestID, &o.MerchantRequestID, &o.ReceiptNumber, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, err
		}
		o.Status = domain.OrderStatus(status)
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		items, err := r.orderItems(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Items = items
	}
	return out, nil
}

func (r *PostgresRepo) SetPaymentRequest(ctx context.Context, orderID uuid.UUID, checkoutRequestID, merchantRequestID string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE orders SET checkout_request_id=$2, merchant_request_id=$3, updated_at=now() WHERE id=$1`,
		orderID, checkoutRequestID, merchantRequestID)
	return err
}

// TransitionOrder applies a status change as a single conditional update so
// that exactly one of any number of concurrent attempts wins. The winner
// also gets an outbox event in the same transaction. Pairs outside the
// state machine table never win.
func (r *PostgresRepo) TransitionOrder(ctx context.Context, orderID uuid.UUID, from, to domain.OrderStatus, receipt string) (bool, error) {
	if !domain.CanTransitionTo(from, to) {
		return false, nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()
	res, err := tx.ExecContext(ctx, `UPDATE orders
		SET status=$3, receipt_number=CASE WHEN $4 <> '' THEN $4 ELSE receipt_number END, updated_at=now()
		WHERE id=$1 AND status=$2`,
		orderID, string(from), string(to), receipt)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, nil
	}
	payload, err := json.Marshal(map[string]any{
		"order_id":       orderID.String(),
		"status":         string(to),
		"receipt_number": receipt,
	})
	if err != nil {
		return false, err
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO outbox_events (aggregate_id,event_type,payload) VALUES ($1,$2,$3)`,
		orderID.String(), orderEventType(to), payload)
	if err != nil {
		return false, err
	}
	return true, tx.Commit()
}

func orderEventType(s domain.OrderStatus) string {
	return "order." + string(s)
}

// ---- outbox ----

func (r *PostgresRepo) UnprocessedEvents(ctx context.Context, limit int) ([]*OutboxEvent, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id,aggregate_id,event_type,payload,created_at,processed_at
		FROM outbox_events WHERE processed_at IS NULL ORDER BY created_at LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch outbox events: %w", err)
	}
	defer rows.Close()
	var out []*OutboxEvent
	for rows.Next() {
		var e OutboxEvent
		if err := rows.Scan(&e.ID, &e.AggregateID, &e.EventType, &e.Payload, &e.CreatedAt, &e.ProcessedAt); err != nil {
			return nil, err
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) MarkEventProcessed(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `UPDATE outbox_events SET processed_at=$2 WHERE id=$1`, id, time.Now().UTC())
	return err
}

package order

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog/log"
)

var (
	ErrOrderNotFound   = errors.New("order not found")
	ErrReferenceExists = errors.New("order reference already exists")
)

const defaultListLimit = 100

type Repository interface {
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id uuid.UUID) (*Order, error)
	GetByReference(ctx context.Context, reference string) (*Order, error)
	List(ctx context.Context, f ListFilter) ([]Order, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status Status, at time.Time) error
	UpdatePaymentStatus(ctx context.Context, id uuid.UUID, status PaymentStatus) error
	UpdateTracking(ctx context.Context, id uuid.UUID, trackingNumber string) error
}

type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type postgresRepository struct {
	db DB
}

func NewRepository(db DB) Repository {
	return &postgresRepository{db: db}
}

const orderColumns = `
	id, reference, customer_name, customer_email, customer_phone,
	address_line1, address_line2, city, postal_code, country,
	subtotal, discount_amount, promotion_id, promotion_code, shipping_cost, total,
	status, payment_method, payment_status, checkout_id, tracking_number,
	shipped_at, delivered_at, notes, created_at, updated_at
`

func (r *postgresRepository) Create(ctx context.Context, o *Order) (err error) {
	if o.ID == uuid.Nil {
		id, genErr := uuid.NewV4()
		if genErr != nil {
			return fmt.Errorf("repository: failed to generate order ID: %w", genErr)
		}
		o.ID = id
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("repository: failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			log.Error().Interface("panic_value", p).Str("order_ref", o.Reference).Msg("Panic recovered during order create, rolling back")
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				log.Error().Err(rbErr).Str("order_ref", o.Reference).Msg("Failed to rollback transaction after panic")
			}
			panic(p)
		} else if err != nil {
			log.Warn().Err(err).Str("order_ref", o.Reference).Msg("Transaction for order create failed, rolling back")
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				log.Error().Err(rbErr).Str("order_ref", o.Reference).Msg("Failed to rollback transaction")
			}
		} else if commitErr := tx.Commit(ctx); commitErr != nil {
			log.Error().Err(commitErr).Stringer("order_id", o.ID).Msg("Failed to commit transaction")
			err = fmt.Errorf("repository: failed to commit transaction: %w", commitErr)
		}
	}()

	now := time.Now().UTC()
	_, err = tx.Exec(ctx, `INSERT INTO orders (`+orderColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16,
		        $17, $18, $19, $20, $21, $22, $23, $24, $25, $25)`,
		o.ID, o.Reference, o.Customer.Name, o.Customer.Email, o.Customer.Phone,
		o.ShippingAddress.Line1, o.ShippingAddress.Line2, o.ShippingAddress.City,
		o.ShippingAddress.PostalCode, o.ShippingAddress.Country,
		o.Subtotal, o.DiscountAmount, o.PromotionID, o.PromotionCode, o.ShippingCost, o.Total,
		string(o.Status), string(o.PaymentMethod), string(o.PaymentStatus), o.CheckoutID, o.TrackingNumber,
		o.ShippedAt, o.DeliveredAt, o.Notes, now,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return ErrReferenceExists
		}
		return fmt.Errorf("repository: failed to insert order: %w", err)
	}

	for i := range o.Items {
		item := &o.Items[i]
		itemID, genErr := uuid.NewV4()
		if genErr != nil {
			err = fmt.Errorf("repository: failed to generate order item ID: %w", genErr)
			return err
		}
		item.ID = itemID
		item.OrderID = o.ID

		_, err = tx.Exec(ctx, `
			INSERT INTO order_items (id, order_id, product_id, product_name, product_image,
			                         unit_price, quantity, line_total, color, size, position)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		`, item.ID, o.ID, item.ProductID, item.ProductName, item.ProductImage,
			item.UnitPrice, item.Quantity, item.LineTotal, item.Color, item.Size, i)
		if err != nil {
			return fmt.Errorf("repository: failed to insert order item for order %s: %w", o.Reference, err)
		}
	}

	o.CreatedAt = now
	o.UpdatedAt = now
	return nil
}

func (r *postgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*Order, error) {
	return r.getOne(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
}

func (r *postgresRepository) GetByReference(ctx context.Context, reference string) (*Order, error) {
	return r.getOne(ctx, `SELECT `+orderColumns+` FROM orders WHERE reference = $1`, reference)
}

func (r *postgresRepository) getOne(ctx context.Context, query string, arg any) (*Order, error) {
	o, err := scanOrder(r.db.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("repository: failed to select order: %w", err)
	}

	orders := []*Order{o}
	if err := r.attachItems(ctx, orders); err != nil {
		return nil, err
	}
	return o, nil
}

func (r *postgresRepository) List(ctx context.Context, f ListFilter) ([]Order, error) {
	query, args := buildListQuery(f)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query orders: %w", err)
	}
	defer rows.Close()

	ordered := make([]*Order, 0)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to scan order: %w", err)
		}
		ordered = append(ordered, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: failed iterating orders: %w", err)
	}
	rows.Close()

	if err := r.attachItems(ctx, ordered); err != nil {
		return nil, err
	}

	result := make([]Order, 0, len(ordered))
	for _, o := range ordered {
		result = append(result, *o)
	}
	return result, nil
}

func buildListQuery(f ListFilter) (string, []any) {
	var (
		conditions []string
		args       []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		conditions = append(conditions, fmt.Sprintf(cond, len(args)))
	}

	if f.Status != "" {
		add("status = $%d", string(f.Status))
	}
	if f.PaymentStatus != "" {
		add("payment_status = $%d", string(f.PaymentStatus))
	}
	if f.From != nil {
		add("created_at >= $%d", *f.From)
	}
	if f.To != nil {
		add("created_at < $%d", *f.To)
	}

	var sb strings.Builder
	sb.WriteString(`SELECT ` + orderColumns + ` FROM orders`)
	if len(conditions) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(conditions, " AND "))
	}

	limit := f.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	args = append(args, limit)
	sb.WriteString(fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args)))
	if f.Offset > 0 {
		args = append(args, f.Offset)
		sb.WriteString(fmt.Sprintf(" OFFSET $%d", len(args)))
	}

	return sb.String(), args
}

func (r *postgresRepository) attachItems(ctx context.Context, orders []*Order) error {
	if len(orders) == 0 {
		return nil
	}

	byID := make(map[uuid.UUID]*Order, len(orders))
	ids := make([]string, 0, len(orders))
	for _, o := range orders {
		o.Items = make([]Item, 0)
		byID[o.ID] = o
		ids = append(ids, o.ID.String())
	}

	rows, err := r.db.Query(ctx, `
		SELECT id, order_id, product_id, product_name, product_image, unit_price, quantity, line_total, color, size
		FROM order_items
		WHERE order_id = ANY($1::uuid[])
		ORDER BY order_id, position
	`, ids)
	if err != nil {
		return fmt.Errorf("repository: failed to query order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var it Item
		err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.ProductName, &it.ProductImage,
			&it.UnitPrice, &it.Quantity, &it.LineTotal, &it.Color, &it.Size)
		if err != nil {
			return fmt.Errorf("repository: failed to scan order item: %w", err)
		}
		if o, ok := byID[it.OrderID]; ok {
			o.Items = append(o.Items, it)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("repository: failed iterating order items: %w", err)
	}
	return nil
}

// UpdateStatus stamps shipped_at and delivered_at the first time the order
// reaches those states.
func (r *postgresRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status Status, at time.Time) error {
	query := `
		UPDATE orders
		SET status = $1,
		    shipped_at = CASE WHEN $1 = 'shipped' THEN COALESCE(shipped_at, $2) ELSE shipped_at END,
		    delivered_at = CASE WHEN $1 = 'delivered' THEN COALESCE(delivered_at, $2) ELSE delivered_at END,
		    updated_at = $2
		WHERE id = $3
	`
	return r.execOne(ctx, query, string(status), at.UTC(), id)
}

func (r *postgresRepository) UpdatePaymentStatus(ctx context.Context, id uuid.UUID, status PaymentStatus) error {
	query := `UPDATE orders SET payment_status = $1, updated_at = $2 WHERE id = $3`
	return r.execOne(ctx, query, string(status), time.Now().UTC(), id)
}

func (r *postgresRepository) UpdateTracking(ctx context.Context, id uuid.UUID, trackingNumber string) error {
	query := `UPDATE orders SET tracking_number = $1, updated_at = $2 WHERE id = $3`
	return r.execOne(ctx, query, trackingNumber, time.Now().UTC(), id)
}

func (r *postgresRepository) execOne(ctx context.Context, query string, args ...any) error {
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("repository: failed to update order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func scanOrder(row pgx.Row) (*Order, error) {
	var (
		o             Order
		status        string
		paymentMethod string
		paymentStatus string
	)
	err := row.Scan(
		&o.ID, &o.Reference, &o.Customer.Name, &o.Customer.Email, &o.Customer.Phone,
		&o.ShippingAddress.Line1, &o.ShippingAddress.Line2, &o.ShippingAddress.City,
		&o.ShippingAddress.PostalCode, &o.ShippingAddress.Country,
		&o.Subtotal, &o.DiscountAmount, &o.PromotionID, &o.PromotionCode, &o.ShippingCost, &o.Total,
		&status, &paymentMethod, &paymentStatus, &o.CheckoutID, &o.TrackingNumber,
		&o.ShippedAt, &o.DeliveredAt, &o.Notes, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	o.Status = Status(status)
	o.PaymentMethod = PaymentMethod(paymentMethod)
	o.PaymentStatus = PaymentStatus(paymentStatus)
	return &o, nil
}

package promotion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/vasiliy-maslov/modest-storefront/internal/catalog"
)

var (
	ErrNotFound   = errors.New("promotion not found")
	ErrCodeExists = errors.New("promotion code already exists")
)

type Repository interface {
	Create(ctx context.Context, p *Promotion) error
	Update(ctx context.Context, p *Promotion) error
	Delete(ctx context.Context, id uuid.UUID) error
	GetByID(ctx context.Context, id uuid.UUID) (*Promotion, error)
	GetByCode(ctx context.Context, code string) (*Promotion, error)
	List(ctx context.Context) ([]Promotion, error)
	ListActive(ctx context.Context, now time.Time) ([]Promotion, error)
	IncrementUsage(ctx context.Context, id uuid.UUID) error
}

type DB interface {
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

const selectColumns = `
	SELECT id, name, code, discount_type, discount_value, starts_at, ends_at, is_active,
	       min_purchase, max_discount, categories, product_ids::text[], usage_limit, usage_count,
	       created_at, updated_at
	FROM promotions
`

func (r *postgresRepository) Create(ctx context.Context, p *Promotion) error {
	if p.ID == uuid.Nil {
		id, err := uuid.NewV4()
		if err != nil {
			return fmt.Errorf("repository: failed to generate promotion ID: %w", err)
		}
		p.ID = id
	}
	now := time.Now().UTC()

	query := `
		INSERT INTO promotions (id, name, code, discount_type, discount_value, starts_at, ends_at, is_active,
		                        min_purchase, max_discount, categories, product_ids, usage_limit, usage_count,
		                        created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12::uuid[], $13, 0, $14, $14)
	`
	_, err := r.db.Exec(ctx, query,
		p.ID, p.Name, p.Code, string(p.DiscountType), p.DiscountValue, p.StartsAt, p.EndsAt, p.IsActive,
		nullDecimal(p.MinPurchase), nullDecimal(p.MaxDiscount), categoryStrings(p.Categories),
		uuidStrings(p.ProductIDs), p.UsageLimit, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrCodeExists
		}
		return fmt.Errorf("repository: failed to insert promotion: %w", err)
	}

	p.UsageCount = 0
	p.CreatedAt = now
	p.UpdatedAt = now
	return nil
}

// Update leaves usage_count alone: it only moves through IncrementUsage.
func (r *postgresRepository) Update(ctx context.Context, p *Promotion) error {
	now := time.Now().UTC()
	query := `
		UPDATE promotions
		SET name = $1, code = $2, discount_type = $3, discount_value = $4, starts_at = $5, ends_at = $6,
		    is_active = $7, min_purchase = $8, max_discount = $9, categories = $10, product_ids = $11::uuid[],
		    usage_limit = $12, updated_at = $13
		WHERE id = $14
	`
	tag, err := r.db.Exec(ctx, query,
		p.Name, p.Code, string(p.DiscountType), p.DiscountValue, p.StartsAt, p.EndsAt, p.IsActive,
		nullDecimal(p.MinPurchase), nullDecimal(p.MaxDiscount), categoryStrings(p.Categories),
		uuidStrings(p.ProductIDs), p.UsageLimit, now, p.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrCodeExists
		}
		return fmt.Errorf("repository: failed to update promotion %s: %w", p.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	p.UpdatedAt = now
	return nil
}

func (r *postgresRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM promotions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("repository: failed to delete promotion %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *postgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*Promotion, error) {
	p, err := scanPromotion(r.db.QueryRow(ctx, selectColumns+` WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("repository: failed to select promotion %s: %w", id, err)
	}
	return p, nil
}

func (r *postgresRepository) GetByCode(ctx context.Context, code string) (*Promotion, error) {
	p, err := scanPromotion(r.db.QueryRow(ctx, selectColumns+` WHERE upper(code) = upper($1)`, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("repository: failed to select promotion by code: %w", err)
	}
	return p, nil
}

func (r *postgresRepository) List(ctx context.Context) ([]Promotion, error) {
	return r.list(ctx, selectColumns+` ORDER BY created_at DESC`)
}

// ListActive returns the promotions whose active flag is set and whose window contains now,
// oldest first so BestAutomatic ties resolve to the earliest promotion.
func (r *postgresRepository) ListActive(ctx context.Context, now time.Time) ([]Promotion, error) {
	return r.list(ctx, selectColumns+`
		WHERE is_active AND starts_at <= $1 AND ends_at >= $1
		ORDER BY created_at ASC
	`, now)
}

func (r *postgresRepository) IncrementUsage(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE promotions SET usage_count = usage_count + 1, updated_at = $1 WHERE id = $2
	`, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("repository: failed to increment usage of promotion %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *postgresRepository) list(ctx context.Context, query string, args ...any) ([]Promotion, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query promotions: %w", err)
	}
	defer rows.Close()

	promotions := make([]Promotion, 0)
	for rows.Next() {
		p, err := scanPromotion(rows)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to scan promotion: %w", err)
		}
		promotions = append(promotions, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating promotions: %w", err)
	}
	return promotions, nil
}

func scanPromotion(row pgx.Row) (*Promotion, error) {
	var (
		p            Promotion
		discountType string
		minPurchase  decimal.NullDecimal
		maxDiscount  decimal.NullDecimal
		categories   []string
		productIDs   []string
	)
	err := row.Scan(
		&p.ID, &p.Name, &p.Code, &discountType, &p.DiscountValue, &p.StartsAt, &p.EndsAt, &p.IsActive,
		&minPurchase, &maxDiscount, &categories, &productIDs, &p.UsageLimit, &p.UsageCount,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	p.DiscountType = DiscountType(discountType)
	if minPurchase.Valid {
		p.MinPurchase = &minPurchase.Decimal
	}
	if maxDiscount.Valid {
		p.MaxDiscount = &maxDiscount.Decimal
	}
	p.Categories = make([]catalog.Category, 0, len(categories))
	for _, c := range categories {
		p.Categories = append(p.Categories, catalog.Category(c))
	}
	p.ProductIDs = make([]uuid.UUID, 0, len(productIDs))
	for _, raw := range productIDs {
		id, err := uuid.FromString(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid product id %q: %w", raw, err)
		}
		p.ProductIDs = append(p.ProductIDs, id)
	}
	return &p, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

func nullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}

func categoryStrings(categories []catalog.Category) []string {
	out := make([]string, 0, len(categories))
	for _, c := range categories {
		out = append(out, c.String())
	}
	return out
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.String())
	}
	return out
}

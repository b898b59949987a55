package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrCategoryExists = errors.New("category already exists")
	ErrInvalidProduct = errors.New("invalid product")
)

const defaultListLimit = 50

type Repository interface {
	ListProducts(ctx context.Context, f ProductFilter) ([]Product, error)
	GetProduct(ctx context.Context, id uuid.UUID) (*Product, error)
	CreateProduct(ctx context.Context, p *Product) error
	UpdateProduct(ctx context.Context, p *Product) error
	DeleteProduct(ctx context.Context, id uuid.UUID) error
	ListCategories(ctx context.Context) ([]CategoryInfo, error)
	CreateCategory(ctx context.Context, c *CategoryInfo) error
	ListSubcategories(ctx context.Context, category Category) ([]Subcategory, error)
}

// productRecord is the raw row shape; toProduct is the single place it is
// trusted and converted.
type productRecord struct {
	ID            uuid.UUID           `db:"id"`
	Name          string              `db:"name"`
	NameEN        string              `db:"name_en"`
	NameAR        string              `db:"name_ar"`
	Description   string              `db:"description"`
	DescriptionEN string              `db:"description_en"`
	DescriptionAR string              `db:"description_ar"`
	Price         decimal.Decimal     `db:"price"`
	OriginalPrice decimal.NullDecimal `db:"original_price"`
	Category      string              `db:"category"`
	Subcategory   string              `db:"subcategory"`
	Images        pq.StringArray      `db:"images"`
	Colors        pq.StringArray      `db:"colors"`
	Sizes         pq.StringArray      `db:"sizes"`
	InStock       bool                `db:"in_stock"`
	IsNew         bool                `db:"is_new"`
	IsBestSeller  bool                `db:"is_best_seller"`
	IsOnSale      bool                `db:"is_on_sale"`
	Rating        decimal.Decimal     `db:"rating"`
	ReviewCount   int                 `db:"review_count"`
	Tags          pq.StringArray      `db:"tags"`
	CreatedAt     time.Time           `db:"created_at"`
	UpdatedAt     time.Time           `db:"updated_at"`
}

func toProduct(r productRecord) (Product, error) {
	category := Category(r.Category)
	if !category.Valid() {
		return Product{}, fmt.Errorf("%w: product %s has unknown category %q", ErrInvalidProduct, r.ID, r.Category)
	}
	if r.Price.IsNegative() {
		return Product{}, fmt.Errorf("%w: product %s has negative price", ErrInvalidProduct, r.ID)
	}

	p := Product{
		ID:            r.ID,
		Name:          r.Name,
		NameEN:        r.NameEN,
		NameAR:        r.NameAR,
		Description:   r.Description,
		DescriptionEN: r.DescriptionEN,
		DescriptionAR: r.DescriptionAR,
		Price:         r.Price,
		Category:      category,
		Subcategory:   r.Subcategory,
		Images:        nonNil(r.Images),
		Colors:        nonNil(r.Colors),
		Sizes:         nonNil(r.Sizes),
		InStock:       r.InStock,
		IsNew:         r.IsNew,
		IsBestSeller:  r.IsBestSeller,
		IsOnSale:      r.IsOnSale,
		Rating:        r.Rating,
		ReviewCount:   r.ReviewCount,
		Tags:          nonNil(r.Tags),
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
	if r.OriginalPrice.Valid {
		original := r.OriginalPrice.Decimal
		p.OriginalPrice = &original
	}
	return p, nil
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

type sqlRepository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &sqlRepository{db: db}
}

const productColumns = `id, name, name_en, name_ar, description, description_en, description_ar,
	price, original_price, category, subcategory, images, colors, sizes, in_stock, is_new,
	is_best_seller, is_on_sale, rating, review_count, tags, created_at, updated_at`

func buildProductQuery(f ProductFilter) (string, []interface{}) {
	var (
		where []string
		args  []interface{}
	)
	add := func(clause string, arg interface{}) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}

	if f.Category != "" {
		add("category = $%d", string(f.Category))
	}
	if f.Subcategory != "" {
		add("subcategory = $%d", f.Subcategory)
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		add("(name ILIKE $%[1]d OR name_en ILIKE $%[1]d OR name_ar ILIKE $%[1]d)", "%"+s+"%")
	}
	if f.MinPrice != nil {
		add("price >= $%d", f.MinPrice.String())
	}
	if f.MaxPrice != nil {
		add("price <= $%d", f.MaxPrice.String())
	}
	if f.InStockOnly {
		where = append(where, "in_stock")
	}
	if f.NewOnly {
		where = append(where, "is_new")
	}
	if f.BestSeller {
		where = append(where, "is_best_seller")
	}
	if f.OnSaleOnly {
		where = append(where, "is_on_sale")
	}

	query := "SELECT " + productColumns + " FROM products"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}

	limit := f.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args))
	if f.Offset > 0 {
		args = append(args, f.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	return query, args
}

func (r *sqlRepository) ListProducts(ctx context.Context, f ProductFilter) ([]Product, error) {
	query, args := buildProductQuery(f)

	var records []productRecord
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, fmt.Errorf("repository: failed to list products: %w", err)
	}

	products := make([]Product, 0, len(records))
	for _, rec := range records {
		p, err := toProduct(rec)
		if err != nil {
			return nil, fmt.Errorf("repository: %w", err)
		}
		products = append(products, p)
	}
	return products, nil
}

func (r *sqlRepository) GetProduct(ctx context.Context, id uuid.UUID) (*Product, error) {
	var rec productRecord
	err := r.db.GetContext(ctx, &rec, "SELECT "+productColumns+" FROM products WHERE id = $1", id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("repository: failed to select product by id %s: %w", id, err)
	}

	p, err := toProduct(rec)
	if err != nil {
		return nil, fmt.Errorf("repository: %w", err)
	}
	return &p, nil
}

func (r *sqlRepository) CreateProduct(ctx context.Context, p *Product) error {
	if p.ID == uuid.Nil {
		id, err := uuid.NewV4()
		if err != nil {
			return fmt.Errorf("repository: failed to generate product ID: %w", err)
		}
		p.ID = id
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	query := `
		INSERT INTO products (id, name, name_en, name_ar, description, description_en, description_ar,
			price, original_price, category, subcategory, images, colors, sizes, in_stock, is_new,
			is_best_seller, is_on_sale, rating, review_count, tags, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23)
	`
	_, err := r.db.ExecContext(ctx, query,
		p.ID, p.Name, p.NameEN, p.NameAR, p.Description, p.DescriptionEN, p.DescriptionAR,
		p.Price, nullDecimal(p.OriginalPrice), string(p.Category), p.Subcategory,
		pq.Array(nonNil(p.Images)), pq.Array(nonNil(p.Colors)), pq.Array(nonNil(p.Sizes)),
		p.InStock, p.IsNew, p.IsBestSeller, p.IsOnSale, p.Rating, p.ReviewCount, pq.Array(nonNil(p.Tags)),
		p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("repository: failed to insert product: %w", err)
	}
	return nil
}

func (r *sqlRepository) UpdateProduct(ctx context.Context, p *Product) error {
	p.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE products SET name = $2, name_en = $3, name_ar = $4, description = $5,
			description_en = $6, description_ar = $7, price = $8, original_price = $9,
			category = $10, subcategory = $11, images = $12, colors = $13, sizes = $14,
			in_stock = $15, is_new = $16, is_best_seller = $17, is_on_sale = $18,
			rating = $19, review_count = $20, tags = $21, updated_at = $22
		WHERE id = $1
	`
	res, err := r.db.ExecContext(ctx, query,
		p.ID, p.Name, p.NameEN, p.NameAR, p.Description, p.DescriptionEN, p.DescriptionAR,
		p.Price, nullDecimal(p.OriginalPrice), string(p.Category), p.Subcategory,
		pq.Array(nonNil(p.Images)), pq.Array(nonNil(p.Colors)), pq.Array(nonNil(p.Sizes)),
		p.InStock, p.IsNew, p.IsBestSeller, p.IsOnSale, p.Rating, p.ReviewCount, pq.Array(nonNil(p.Tags)),
		p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("repository: failed to update product %s: %w", p.ID, err)
	}
	return requireAffected(res)
}

func (r *sqlRepository) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM products WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("repository: failed to delete product %s: %w", id, err)
	}
	return requireAffected(res)
}

func (r *sqlRepository) ListCategories(ctx context.Context) ([]CategoryInfo, error) {
	categories := make([]CategoryInfo, 0)
	err := r.db.SelectContext(ctx, &categories, `
		SELECT slug, name, name_en, name_ar, image_url, sort_order, created_at
		FROM categories
		ORDER BY sort_order, created_at
	`)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to list categories: %w", err)
	}
	return categories, nil
}

func (r *sqlRepository) CreateCategory(ctx context.Context, c *CategoryInfo) error {
	c.CreatedAt = time.Now().UTC()
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO categories (slug, name, name_en, name_ar, image_url, sort_order, created_at)
		VALUES (:slug, :name, :name_en, :name_ar, :image_url, :sort_order, :created_at)
	`, c)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == pgerrcode.UniqueViolation {
			return ErrCategoryExists
		}
		return fmt.Errorf("repository: failed to insert category %s: %w", c.Slug, err)
	}
	return nil
}

func (r *sqlRepository) ListSubcategories(ctx context.Context, category Category) ([]Subcategory, error) {
	subcategories := make([]Subcategory, 0)
	err := r.db.SelectContext(ctx, &subcategories, `
		SELECT id, category, name, name_en, name_ar, created_at
		FROM subcategories
		WHERE category = $1
		ORDER BY created_at
	`, string(category))
	if err != nil {
		return nil, fmt.Errorf("repository: failed to list subcategories of %s: %w", category, err)
	}
	return subcategories, nil
}

func nullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("repository: failed to read affected rows: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

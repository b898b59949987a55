package cart

import (
	"context"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog/log"
)

type Repository interface {
	Get(ctx context.Context, id uuid.UUID) (*Cart, error)
	Save(ctx context.Context, c *Cart) error
	Clear(ctx context.Context, id uuid.UUID) error
}

// DB is the subset of *pgxpool.Pool the repository needs.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

type postgresRepository struct {
	db DB
}

func NewRepository(db DB) Repository {
	return &postgresRepository{db: db}
}

// Get never reports a missing cart: an unknown id yields an empty cart that
// is persisted on its first Save.
func (r *postgresRepository) Get(ctx context.Context, id uuid.UUID) (*Cart, error) {
	query := `
		SELECT product_id, color, size, quantity
		FROM cart_items
		WHERE cart_id = $1
		ORDER BY position
	`

	rows, err := r.db.Query(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query cart %s: %w", id, err)
	}
	defer rows.Close()

	c := New(id)
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ProductID, &it.Color, &it.Size, &it.Quantity); err != nil {
			return nil, fmt.Errorf("repository: failed to scan cart item for cart %s: %w", id, err)
		}
		c.Items = append(c.Items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating cart items for cart %s: %w", id, err)
	}

	return c, nil
}

func (r *postgresRepository) Save(ctx context.Context, c *Cart) (err error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("repository: failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		} else if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				log.Error().Err(rbErr).Stringer("cart_id", c.ID).Msg("repository: failed to rollback cart save")
			}
		} else if commitErr := tx.Commit(ctx); commitErr != nil {
			err = fmt.Errorf("repository: failed to commit cart save: %w", commitErr)
		}
	}()

	now := time.Now().UTC()
	_, err = tx.Exec(ctx, `
		INSERT INTO carts (id, created_at, updated_at)
		VALUES ($1, $2, $2)
		ON CONFLICT (id) DO UPDATE SET updated_at = EXCLUDED.updated_at
	`, c.ID, now)
	if err != nil {
		return fmt.Errorf("repository: failed to upsert cart %s: %w", c.ID, err)
	}

	if _, err = tx.Exec(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, c.ID); err != nil {
		return fmt.Errorf("repository: failed to reset cart items for cart %s: %w", c.ID, err)
	}

	for i, it := range c.Items {
		_, err = tx.Exec(ctx, `
			INSERT INTO cart_items (cart_id, product_id, color, size, quantity, position)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, c.ID, it.ProductID, it.Color, it.Size, it.Quantity, i)
		if err != nil {
			return fmt.Errorf("repository: failed to insert cart item for cart %s: %w", c.ID, err)
		}
	}

	c.UpdatedAt = now
	return nil
}

func (r *postgresRepository) Clear(ctx context.Context, id uuid.UUID) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, id); err != nil {
		return fmt.Errorf("repository: failed to clear cart %s: %w", id, err)
	}
	if _, err := r.db.Exec(ctx, `UPDATE carts SET updated_at = $1 WHERE id = $2`, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("repository: failed to touch cart %s: %w", id, err)
	}
	return nil
}

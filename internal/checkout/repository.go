package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vasiliy-maslov/modest-storefront/internal/order"
)

var ErrSessionNotFound = errors.New("checkout session not found")

type SessionRepository interface {
	Create(ctx context.Context, s *Session) error
	GetByCheckoutID(ctx context.Context, checkoutID string) (*Session, error)
	UpdateState(ctx context.Context, checkoutID string, state State, orderID *uuid.UUID) error
}

type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type postgresSessionRepository struct {
	db DB
}

func NewSessionRepository(db DB) SessionRepository {
	return &postgresSessionRepository{db: db}
}

func (r *postgresSessionRepository) Create(ctx context.Context, s *Session) error {
	draft, err := json.Marshal(s.Draft)
	if err != nil {
		return fmt.Errorf("repository: failed to encode order draft: %w", err)
	}

	now := time.Now().UTC()
	_, err = r.db.Exec(ctx, `
		INSERT INTO checkout_sessions (checkout_id, reference, cart_id, state, draft, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
	`, s.CheckoutID, s.Reference, s.CartID, string(s.State), draft, now)
	if err != nil {
		return fmt.Errorf("repository: failed to insert checkout session %s: %w", s.CheckoutID, err)
	}

	s.CreatedAt = now
	s.UpdatedAt = now
	return nil
}

func (r *postgresSessionRepository) GetByCheckoutID(ctx context.Context, checkoutID string) (*Session, error) {
	var (
		s     Session
		state string
		draft []byte
	)
	err := r.db.QueryRow(ctx, `
		SELECT checkout_id, reference, cart_id, state, draft, order_id, created_at, updated_at
		FROM checkout_sessions
		WHERE checkout_id = $1
	`, checkoutID).Scan(&s.CheckoutID, &s.Reference, &s.CartID, &state, &draft, &s.OrderID, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("repository: failed to select checkout session %s: %w", checkoutID, err)
	}

	s.State = State(state)
	s.Draft = &order.Order{}
	if err := json.Unmarshal(draft, s.Draft); err != nil {
		return nil, fmt.Errorf("repository: failed to decode order draft of %s: %w", checkoutID, err)
	}
	return &s, nil
}

// UpdateState only moves sessions out of pending; terminal sessions are left
// untouched and reported as not found.
func (r *postgresSessionRepository) UpdateState(ctx context.Context, checkoutID string, state State, orderID *uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE checkout_sessions
		SET state = $1, order_id = COALESCE($2, order_id), updated_at = $3
		WHERE checkout_id = $4 AND state = 'pending'
	`, string(state), orderID, time.Now().UTC(), checkoutID)
	if err != nil {
		return fmt.Errorf("repository: failed to update checkout session %s: %w", checkoutID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSessionNotFound
	}
	return nil
}

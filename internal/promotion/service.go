package promotion

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/vasiliy-maslov/modest-storefront/internal/pricing"
)

var (
	ErrValidation  = errors.New("validation failed")
	ErrInvalidCode = errors.New("invalid promotion code")
)

// Applied is the single promotion retained for a cart.
type Applied struct {
	Promotion *Promotion      `json:"promotion"`
	Discount  decimal.Decimal `json:"discount"`
	Automatic bool            `json:"automatic"`
}

type Service interface {
	Create(ctx context.Context, p *Promotion) (*Promotion, error)
	Update(ctx context.Context, p *Promotion) error
	Delete(ctx context.Context, id uuid.UUID) error
	Get(ctx context.Context, id uuid.UUID) (*Promotion, error)
	List(ctx context.Context) ([]Promotion, error)
	Resolve(ctx context.Context, code string, subtotal decimal.Decimal, lines []pricing.Line) (*Applied, error)
	RecordUsage(ctx context.Context, id uuid.UUID) error
}

type service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) Service {
	return &service{repo: repo, now: time.Now}
}

func (s *service) Create(ctx context.Context, p *Promotion) (*Promotion, error) {
	normalize(p)
	if err := validate(p); err != nil {
		return nil, err
	}
	p.ID = uuid.Nil

	if err := s.repo.Create(ctx, p); err != nil {
		if errors.Is(err, ErrCodeExists) {
			return nil, ErrCodeExists
		}
		log.Error().Err(err).Msg("service: failed to create promotion in repository")
		return nil, fmt.Errorf("service: failed to create promotion: %w", err)
	}

	log.Info().Stringer("promotion_id", p.ID).Str("code", p.CodeValue()).Msg("service: promotion created")
	return p, nil
}

func (s *service) Update(ctx context.Context, p *Promotion) error {
	if p.ID == uuid.Nil {
		return fmt.Errorf("%w: promotion id is required", ErrValidation)
	}
	normalize(p)
	if err := validate(p); err != nil {
		return err
	}

	if err := s.repo.Update(ctx, p); err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrCodeExists) {
			return err
		}
		log.Error().Err(err).Stringer("promotion_id", p.ID).Msg("service: failed to update promotion")
		return fmt.Errorf("service: failed to update promotion: %w", err)
	}
	return nil
}

func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		log.Error().Err(err).Stringer("promotion_id", id).Msg("service: failed to delete promotion")
		return fmt.Errorf("service: failed to delete promotion: %w", err)
	}
	return nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*Promotion, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("service: failed to get promotion: %w", err)
	}
	return p, nil
}

func (s *service) List(ctx context.Context) ([]Promotion, error) {
	promotions, err := s.repo.List(ctx)
	if err != nil {
		log.Error().Err(err).Msg("service: failed to list promotions")
		return nil, fmt.Errorf("service: failed to list promotions: %w", err)
	}
	return promotions, nil
}

// Resolve returns the promotion that applies to a cart. A non-empty code
// takes precedence over automatic promotions and fails with the reason it
// cannot apply. Without a code the best automatic promotion is picked, and
// nil is returned when none gives a discount.
func (s *service) Resolve(ctx context.Context, code string, subtotal decimal.Decimal, lines []pricing.Line) (*Applied, error) {
	now := s.now()
	code = strings.TrimSpace(code)

	if code != "" {
		p, err := s.repo.GetByCode(ctx, code)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil, ErrInvalidCode
			}
			log.Error().Err(err).Str("code", code).Msg("service: failed to look up promotion code")
			return nil, fmt.Errorf("service: failed to look up promotion code: %w", err)
		}
		if err := Check(p, subtotal, now); err != nil {
			return nil, err
		}
		discount := Discount(p, subtotal, lines)
		if !discount.IsPositive() {
			return nil, ErrNotApplicable
		}
		return &Applied{Promotion: p, Discount: discount}, nil
	}

	active, err := s.repo.ListActive(ctx, now)
	if err != nil {
		log.Error().Err(err).Msg("service: failed to list active promotions, applying none")
		return nil, nil
	}

	best, discount := BestAutomatic(active, subtotal, lines, now)
	if best == nil {
		return nil, nil
	}
	return &Applied{Promotion: best, Discount: discount, Automatic: true}, nil
}

func (s *service) RecordUsage(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.IncrementUsage(ctx, id); err != nil {
		log.Error().Err(err).Stringer("promotion_id", id).Msg("service: failed to record promotion usage")
		return fmt.Errorf("service: failed to record promotion usage: %w", err)
	}
	return nil
}

func normalize(p *Promotion) {
	p.Name = strings.TrimSpace(p.Name)
	if p.Code != nil {
		code := strings.ToUpper(strings.TrimSpace(*p.Code))
		if code == "" {
			p.Code = nil
		} else {
			p.Code = &code
		}
	}
}

func validate(p *Promotion) error {
	if p.Name == "" {
		return fmt.Errorf("%w: promotion name is required", ErrValidation)
	}
	if !p.DiscountType.Valid() {
		return fmt.Errorf("%w: unknown discount type %q", ErrValidation, p.DiscountType)
	}
	if !p.DiscountValue.IsPositive() {
		return fmt.Errorf("%w: discount value must be positive", ErrValidation)
	}
	if p.DiscountType == DiscountPercentage && p.DiscountValue.GreaterThan(hundred) {
		return fmt.Errorf("%w: percentage cannot exceed 100", ErrValidation)
	}
	if !p.EndsAt.After(p.StartsAt) {
		return fmt.Errorf("%w: end date must be after start date", ErrValidation)
	}
	if p.MinPurchase != nil && p.MinPurchase.IsNegative() {
		return fmt.Errorf("%w: minimum purchase cannot be negative", ErrValidation)
	}
	if p.MaxDiscount != nil && !p.MaxDiscount.IsPositive() {
		return fmt.Errorf("%w: maximum discount must be positive", ErrValidation)
	}
	if p.UsageLimit != nil && *p.UsageLimit <= 0 {
		return fmt.Errorf("%w: usage limit must be positive", ErrValidation)
	}
	for _, c := range p.Categories {
		if !c.Valid() {
			return fmt.Errorf("%w: unknown category %q", ErrValidation, c)
		}
	}
	return nil
}

package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"

	"github.com/vasiliy-maslov/modest-storefront/internal/catalog"
	"github.com/vasiliy-maslov/modest-storefront/internal/promotion"
)

type PromotionRequest struct {
	Name          string                 `json:"name" validate:"required,max=200"`
	Code          *string                `json:"code,omitempty" validate:"omitempty,max=64"`
	DiscountType  promotion.DiscountType `json:"discount_type" validate:"required,oneof=percentage fixed"`
	DiscountValue decimal.Decimal        `json:"discount_value"`
	StartsAt      time.Time              `json:"starts_at" validate:"required"`
	EndsAt        time.Time              `json:"ends_at" validate:"required,gtfield=StartsAt"`
	IsActive      *bool                  `json:"is_active,omitempty"`
	MinPurchase   *decimal.Decimal       `json:"min_purchase,omitempty"`
	MaxDiscount   *decimal.Decimal       `json:"max_discount,omitempty"`
	Categories    []catalog.Category     `json:"categories" validate:"dive,oneof=hijab-wrapping robe-dress coordinated-set gift-box"`
	ProductIDs    []uuid.UUID            `json:"product_ids" validate:"dive,required"`
	UsageLimit    *int                   `json:"usage_limit,omitempty" validate:"omitempty,min=1"`
}

func (r PromotionRequest) toPromotion() promotion.Promotion {
	active := true
	if r.IsActive != nil {
		active = *r.IsActive
	}
	return promotion.Promotion{
		Name:          r.Name,
		Code:          r.Code,
		DiscountType:  r.DiscountType,
		DiscountValue: r.DiscountValue,
		StartsAt:      r.StartsAt,
		EndsAt:        r.EndsAt,
		IsActive:      active,
		MinPurchase:   r.MinPurchase,
		MaxDiscount:   r.MaxDiscount,
		Categories:    r.Categories,
		ProductIDs:    r.ProductIDs,
		UsageLimit:    r.UsageLimit,
	}
}

type PromotionHandler struct {
	service  promotion.Service
	validate *validator.Validate
}

func NewPromotionHandler(service promotion.Service) *PromotionHandler {
	return &PromotionHandler{
		service:  service,
		validate: newValidator(),
	}
}

func (h *PromotionHandler) RegisterAdminRoutes(router chi.Router) {
	router.Get("/promotions", h.handleListPromotions)
	router.Post("/promotions", h.handleCreatePromotion)
	router.Get("/promotions/{id}", h.handleGetPromotion)
	router.Put("/promotions/{id}", h.handleUpdatePromotion)
	router.Delete("/promotions/{id}", h.handleDeletePromotion)
}

func (h *PromotionHandler) handleListPromotions(w http.ResponseWriter, r *http.Request) {
	promotions, err := h.service.List(r.Context())
	if err != nil {
		respondWithServiceError(w, err, "Failed to list promotions")
		return
	}
	respondWithJSON(w, http.StatusOK, promotions)
}

func (h *PromotionHandler) handleCreatePromotion(w http.ResponseWriter, r *http.Request) {
	var req PromotionRequest
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}

	p := req.toPromotion()
	created, err := h.service.Create(r.Context(), &p)
	if err != nil {
		respondWithServiceError(w, err, "Failed to create promotion")
		return
	}
	respondWithJSON(w, http.StatusCreated, created)
}

func (h *PromotionHandler) handleGetPromotion(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	p, err := h.service.Get(r.Context(), id)
	if err != nil {
		respondWithServiceError(w, err, "Failed to get promotion")
		return
	}
	respondWithJSON(w, http.StatusOK, p)
}

func (h *PromotionHandler) handleUpdatePromotion(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	var req PromotionRequest
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}

	p := req.toPromotion()
	p.ID = id
	if err := h.service.Update(r.Context(), &p); err != nil {
		respondWithServiceError(w, err, "Failed to update promotion")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *PromotionHandler) handleDeletePromotion(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		respondWithServiceError(w, err, "Failed to delete promotion")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

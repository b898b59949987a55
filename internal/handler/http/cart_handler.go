package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid"

	"github.com/vasiliy-maslov/modest-storefront/internal/cart"
)

type CartItemRequest struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Color     string    `json:"color" validate:"required"`
	Size      string    `json:"size" validate:"required"`
	Quantity  int       `json:"quantity" validate:"required,min=1,max=99"`
}

type CartKeyRequest struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Color     string    `json:"color" validate:"required"`
	Size      string    `json:"size" validate:"required"`
}

type NewCartResponse struct {
	ID uuid.UUID `json:"id"`
}

type CartHandler struct {
	service  cart.Service
	validate *validator.Validate
}

func NewCartHandler(service cart.Service) *CartHandler {
	return &CartHandler{
		service:  service,
		validate: newValidator(),
	}
}

func (h *CartHandler) RegisterRoutes(router chi.Router) {
	router.Post("/carts", h.handleNewCart)
	router.Get("/carts/{cartID}", h.handleGetCart)
	router.Post("/carts/{cartID}/items", h.handleAddItem)
	router.Put("/carts/{cartID}/items", h.handleUpdateItem)
	router.Delete("/carts/{cartID}/items", h.handleRemoveItem)
	router.Delete("/carts/{cartID}", h.handleClearCart)
}

func (h *CartHandler) handleNewCart(w http.ResponseWriter, r *http.Request) {
	c, err := h.service.NewCart()
	if err != nil {
		respondWithServiceError(w, err, "Failed to create cart")
		return
	}
	respondWithJSON(w, http.StatusCreated, NewCartResponse{ID: c.ID})
}

func (h *CartHandler) handleGetCart(w http.ResponseWriter, r *http.Request) {
	cartID, ok := uuidParam(w, r, "cartID")
	if !ok {
		return
	}
	h.respondWithSummary(w, r, cartID)
}

func (h *CartHandler) handleAddItem(w http.ResponseWriter, r *http.Request) {
	cartID, ok := uuidParam(w, r, "cartID")
	if !ok {
		return
	}

	var req CartItemRequest
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}

	key := cart.Key{ProductID: req.ProductID, Color: req.Color, Size: req.Size}
	if _, err := h.service.AddItem(r.Context(), cartID, key, req.Quantity); err != nil {
		respondWithServiceError(w, err, "Failed to add item to cart")
		return
	}
	h.respondWithSummary(w, r, cartID)
}

func (h *CartHandler) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	cartID, ok := uuidParam(w, r, "cartID")
	if !ok {
		return
	}

	var req CartItemRequest
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}

	key := cart.Key{ProductID: req.ProductID, Color: req.Color, Size: req.Size}
	if _, err := h.service.UpdateItem(r.Context(), cartID, key, req.Quantity); err != nil {
		respondWithServiceError(w, err, "Failed to update cart item")
		return
	}
	h.respondWithSummary(w, r, cartID)
}

func (h *CartHandler) handleRemoveItem(w http.ResponseWriter, r *http.Request) {
	cartID, ok := uuidParam(w, r, "cartID")
	if !ok {
		return
	}

	var req CartKeyRequest
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}

	key := cart.Key{ProductID: req.ProductID, Color: req.Color, Size: req.Size}
	if _, err := h.service.RemoveItem(r.Context(), cartID, key); err != nil {
		respondWithServiceError(w, err, "Failed to remove cart item")
		return
	}
	h.respondWithSummary(w, r, cartID)
}

func (h *CartHandler) handleClearCart(w http.ResponseWriter, r *http.Request) {
	cartID, ok := uuidParam(w, r, "cartID")
	if !ok {
		return
	}

	if err := h.service.Clear(r.Context(), cartID); err != nil {
		respondWithServiceError(w, err, "Failed to clear cart")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CartHandler) respondWithSummary(w http.ResponseWriter, r *http.Request, cartID uuid.UUID) {
	summary, err := h.service.Summary(r.Context(), cartID)
	if err != nil {
		respondWithServiceError(w, err, "Failed to get cart")
		return
	}
	respondWithJSON(w, http.StatusOK, summary)
}

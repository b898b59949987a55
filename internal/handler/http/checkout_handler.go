package http

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"

	"github.com/vasiliy-maslov/modest-storefront/internal/checkout"
)

type QuoteRequest struct {
	CartID        uuid.UUID `json:"cart_id" validate:"required"`
	PromotionCode string    `json:"promotion_code,omitempty" validate:"omitempty,max=64"`
}

type WebhookRequest struct {
	ID string `json:"id" validate:"required"`
}

type FailedPaymentResponse struct {
	State checkout.State `json:"state"`
	Error string         `json:"error"`
}

type CheckoutHandler struct {
	service  checkout.Service
	validate *validator.Validate
}

func NewCheckoutHandler(service checkout.Service) *CheckoutHandler {
	return &CheckoutHandler{
		service:  service,
		validate: newValidator(),
	}
}

func (h *CheckoutHandler) RegisterRoutes(router chi.Router) {
	router.Post("/checkout/quote", h.handleQuote)
	router.Post("/checkout/card", h.handleStartCardPayment)
	router.Post("/checkout/card/webhook", h.handleWebhook)
	router.Post("/checkout/card/{checkoutID}/confirm", h.handleConfirmCardPayment)
	router.Post("/checkout/whatsapp", h.handleWhatsAppOrder)
}

func (h *CheckoutHandler) handleQuote(w http.ResponseWriter, r *http.Request) {
	var req QuoteRequest
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}

	quote, err := h.service.Quote(r.Context(), req.CartID, req.PromotionCode)
	if err != nil {
		respondWithServiceError(w, err, "Failed to quote cart")
		return
	}
	respondWithJSON(w, http.StatusOK, quote)
}

func (h *CheckoutHandler) handleStartCardPayment(w http.ResponseWriter, r *http.Request) {
	var req checkout.Request
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}

	started, err := h.service.StartCardPayment(r.Context(), req)
	if err != nil {
		respondWithServiceError(w, err, "Failed to start card payment")
		return
	}
	respondWithJSON(w, http.StatusCreated, started)
}

func (h *CheckoutHandler) handleConfirmCardPayment(w http.ResponseWriter, r *http.Request) {
	checkoutID := chi.URLParam(r, "checkoutID")
	if checkoutID == "" {
		respondWithError(w, http.StatusBadRequest, "checkoutID parameter cannot be empty")
		return
	}

	result, err := h.service.ConfirmCardPayment(r.Context(), checkoutID)
	if err != nil {
		if errors.Is(err, checkout.ErrPaymentDeclined) {
			respondWithJSON(w, http.StatusPaymentRequired, FailedPaymentResponse{
				State: checkout.StateFailed,
				Error: "Payment failed, your cart has been kept",
			})
			return
		}
		respondWithServiceError(w, err, "Failed to confirm card payment")
		return
	}

	if result.State == checkout.StatePending {
		respondWithJSON(w, http.StatusAccepted, result)
		return
	}
	respondWithJSON(w, http.StatusOK, result)
}

// handleWebhook settles a checkout on the provider's notification. Declines
// are acknowledged with 200 so the provider does not retry them.
func (h *CheckoutHandler) handleWebhook(w http.ResponseWriter, r *http.Request) {
	var req WebhookRequest
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}

	result, err := h.service.ConfirmCardPayment(r.Context(), req.ID)
	switch {
	case errors.Is(err, checkout.ErrPaymentDeclined):
		respondWithJSON(w, http.StatusOK, checkout.Result{State: checkout.StateFailed})
	case errors.Is(err, checkout.ErrSessionNotFound):
		log.Warn().Str("checkout_id", req.ID).Msg("Webhook for unknown checkout")
		respondWithError(w, http.StatusNotFound, "Unknown checkout")
	case err != nil:
		respondWithServiceError(w, err, "Failed to process payment webhook")
	default:
		respondWithJSON(w, http.StatusOK, checkout.Result{State: result.State})
	}
}

func (h *CheckoutHandler) handleWhatsAppOrder(w http.ResponseWriter, r *http.Request) {
	var req checkout.Request
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}

	result, err := h.service.PlaceWhatsAppOrder(r.Context(), req)
	if err != nil {
		respondWithServiceError(w, err, "Failed to place WhatsApp order")
		return
	}
	respondWithJSON(w, http.StatusCreated, result)
}

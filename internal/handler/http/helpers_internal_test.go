package http

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vasiliy-maslov/modest-storefront/internal/cart"
	"github.com/vasiliy-maslov/modest-storefront/internal/checkout"
	"github.com/vasiliy-maslov/modest-storefront/internal/order"
	"github.com/vasiliy-maslov/modest-storefront/internal/payment"
	"github.com/vasiliy-maslov/modest-storefront/internal/promotion"
)

func TestMapErrorToStatusCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{order.ErrOrderNotFound, http.StatusNotFound},
		{fmt.Errorf("service: failed: %w", checkout.ErrSessionNotFound), http.StatusNotFound},
		{promotion.ErrCodeExists, http.StatusConflict},
		{order.ErrInvalidStatusTransition, http.StatusConflict},
		{fmt.Errorf("%w: discount must be within [0, subtotal]", order.ErrValidation), http.StatusBadRequest},
		{cart.ErrInvalidQuantity, http.StatusBadRequest},
		{promotion.ErrMinimumNotMet, http.StatusUnprocessableEntity},
		{cart.ErrVariantUnavailable, http.StatusUnprocessableEntity},
		{fmt.Errorf("service: Abaya lin: %w", cart.ErrProductUnavailable), http.StatusUnprocessableEntity},
		{fmt.Errorf("service: Abaya lin (sable/M): %w", cart.ErrVariantUnavailable), http.StatusUnprocessableEntity},
		{checkout.ErrPaymentDeclined, http.StatusPaymentRequired},
		{fmt.Errorf("service: failed to create hosted checkout: %w", &payment.APIError{StatusCode: 401}), http.StatusBadGateway},
		{errors.New("connection reset"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, mapErrorToStatusCode(tt.err))
		})
	}
}

func TestFormatValidationErrors_UsesJSONPaths(t *testing.T) {
	err := newValidator().Struct(CartItemRequest{Color: "noir", Quantity: 120})

	var validationErrors validator.ValidationErrors
	require.ErrorAs(t, err, &validationErrors)

	details := formatValidationErrors(validationErrors)
	assert.Equal(t, "is required", details["product_id"])
	assert.Equal(t, "is required", details["size"])
	assert.Equal(t, "must be at most 99", details["quantity"])
	assert.NotContains(t, details, "color")
}

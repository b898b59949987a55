package http

import (
	"bytes"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/vasiliy-maslov/modest-storefront/internal/order"
)

const (
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	maxExportRows   = 10000
)

type UpdateStatusRequest struct {
	Status order.Status `json:"status" validate:"required,oneof=pending confirmed processing shipped delivered cancelled refunded"`
}

type UpdatePaymentStatusRequest struct {
	PaymentStatus order.PaymentStatus `json:"payment_status" validate:"required,oneof=pending paid failed refunded cancelled"`
}

type UpdateTrackingRequest struct {
	TrackingNumber string `json:"tracking_number" validate:"required,max=100"`
}

// OrderStatusResponse is what a customer sees when following an order by its
// reference. Contact details and the address stay out of it.
type OrderStatusResponse struct {
	Reference      string              `json:"reference"`
	Status         order.Status        `json:"status"`
	PaymentStatus  order.PaymentStatus `json:"payment_status"`
	PaymentMethod  order.PaymentMethod `json:"payment_method"`
	Items          []OrderItemResponse `json:"items"`
	Subtotal       decimal.Decimal     `json:"subtotal"`
	DiscountAmount decimal.Decimal     `json:"discount_amount"`
	ShippingCost   decimal.Decimal     `json:"shipping_cost"`
	Total          decimal.Decimal     `json:"total"`
	TrackingNumber string              `json:"tracking_number,omitempty"`
	ShippedAt      *time.Time          `json:"shipped_at,omitempty"`
	DeliveredAt    *time.Time          `json:"delivered_at,omitempty"`
	CreatedAt      time.Time           `json:"created_at"`
}

type OrderItemResponse struct {
	ProductName  string          `json:"product_name"`
	ProductImage string          `json:"product_image,omitempty"`
	Color        string          `json:"color,omitempty"`
	Size         string          `json:"size,omitempty"`
	Quantity     int             `json:"quantity"`
	LineTotal    decimal.Decimal `json:"line_total"`
}

func toOrderStatusResponse(o *order.Order) OrderStatusResponse {
	items := make([]OrderItemResponse, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, OrderItemResponse{
			ProductName:  it.ProductName,
			ProductImage: it.ProductImage,
			Color:        it.Color,
			Size:         it.Size,
			Quantity:     it.Quantity,
			LineTotal:    it.LineTotal,
		})
	}
	return OrderStatusResponse{
		Reference:      o.Reference,
		Status:         o.Status,
		PaymentStatus:  o.PaymentStatus,
		PaymentMethod:  o.PaymentMethod,
		Items:          items,
		Subtotal:       o.Subtotal,
		DiscountAmount: o.DiscountAmount,
		ShippingCost:   o.ShippingCost,
		Total:          o.Total,
		TrackingNumber: o.TrackingNumber,
		ShippedAt:      o.ShippedAt,
		DeliveredAt:    o.DeliveredAt,
		CreatedAt:      o.CreatedAt,
	}
}

type OrderHandler struct {
	service  order.Service
	validate *validator.Validate
	now      func() time.Time
}

func NewOrderHandler(service order.Service) *OrderHandler {
	return &OrderHandler{
		service:  service,
		validate: newValidator(),
		now:      time.Now,
	}
}

func (h *OrderHandler) RegisterRoutes(router chi.Router) {
	router.Get("/orders/{reference}", h.handleTrackOrder)
}

func (h *OrderHandler) RegisterAdminRoutes(router chi.Router) {
	router.Get("/orders", h.handleListOrders)
	router.Get("/orders/export.xlsx", h.handleExportOrders)
	router.Get("/orders/{id}", h.handleGetOrder)
	router.Patch("/orders/{id}/status", h.handleUpdateStatus)
	router.Patch("/orders/{id}/payment-status", h.handleUpdatePaymentStatus)
	router.Patch("/orders/{id}/tracking", h.handleUpdateTracking)
}

func (h *OrderHandler) handleTrackOrder(w http.ResponseWriter, r *http.Request) {
	reference := chi.URLParam(r, "reference")
	if strings.TrimSpace(reference) == "" {
		respondWithError(w, http.StatusBadRequest, "Reference parameter cannot be empty")
		return
	}

	o, err := h.service.GetOrderByReference(r.Context(), reference)
	if err != nil {
		respondWithServiceError(w, err, "Failed to get order")
		return
	}
	respondWithJSON(w, http.StatusOK, toOrderStatusResponse(o))
}

func (h *OrderHandler) handleListOrders(w http.ResponseWriter, r *http.Request) {
	filter, err := orderFilterFromQuery(r.URL.Query())
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	orders, err := h.service.ListOrders(r.Context(), filter)
	if err != nil {
		respondWithServiceError(w, err, "Failed to list orders")
		return
	}
	respondWithJSON(w, http.StatusOK, orders)
}

func (h *OrderHandler) handleExportOrders(w http.ResponseWriter, r *http.Request) {
	filter, err := orderFilterFromQuery(r.URL.Query())
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	filter.Limit, filter.Offset = maxExportRows, 0

	orders, err := h.service.ListOrders(r.Context(), filter)
	if err != nil {
		respondWithServiceError(w, err, "Failed to export orders")
		return
	}

	var buf bytes.Buffer
	if err := order.ExportXLSX(&buf, orders); err != nil {
		log.Error().Err(err).Int("orders", len(orders)).Msg("Failed to build orders spreadsheet")
		respondWithError(w, http.StatusInternalServerError, "Failed to export orders")
		return
	}

	filename := fmt.Sprintf("orders-%s.xlsx", h.now().Format("20060102"))
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		log.Error().Err(err).Msg("Failed to write orders spreadsheet")
	}
}

func (h *OrderHandler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	o, err := h.service.GetOrder(r.Context(), id)
	if err != nil {
		respondWithServiceError(w, err, "Failed to get order")
		return
	}
	respondWithJSON(w, http.StatusOK, o)
}

func (h *OrderHandler) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	var req UpdateStatusRequest
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}

	o, err := h.service.UpdateStatus(r.Context(), id, req.Status)
	if err != nil {
		respondWithServiceError(w, err, "Failed to update order status")
		return
	}
	respondWithJSON(w, http.StatusOK, o)
}

func (h *OrderHandler) handleUpdatePaymentStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	var req UpdatePaymentStatusRequest
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}

	o, err := h.service.UpdatePaymentStatus(r.Context(), id, req.PaymentStatus)
	if err != nil {
		respondWithServiceError(w, err, "Failed to update payment status")
		return
	}
	respondWithJSON(w, http.StatusOK, o)
}

func (h *OrderHandler) handleUpdateTracking(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	var req UpdateTrackingRequest
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}

	o, err := h.service.SetTracking(r.Context(), id, req.TrackingNumber)
	if err != nil {
		respondWithServiceError(w, err, "Failed to update tracking number")
		return
	}
	respondWithJSON(w, http.StatusOK, o)
}

func orderFilterFromQuery(q url.Values) (order.ListFilter, error) {
	f := order.ListFilter{
		Status:        order.Status(q.Get("status")),
		PaymentStatus: order.PaymentStatus(q.Get("payment_status")),
	}

	var err error
	if f.From, err = dateQuery(q, "from", false); err != nil {
		return f, err
	}
	if f.To, err = dateQuery(q, "to", true); err != nil {
		return f, err
	}
	if f.Limit, f.Offset, err = pageQuery(q); err != nil {
		return f, err
	}
	return f, nil
}

// dateQuery accepts RFC 3339 timestamps or plain dates. A plain "to" date
// covers the whole day.
func dateQuery(q url.Values, key string, endOfDay bool) (*time.Time, error) {
	raw := q.Get(key)
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return nil, errInvalidQuery(key)
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}

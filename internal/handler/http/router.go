package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/vasiliy-maslov/modest-storefront/internal/config"
)

type Handlers struct {
	Catalog    *CatalogHandler
	Cart       *CartHandler
	Checkout   *CheckoutHandler
	Orders     *OrderHandler
	Promotions *PromotionHandler
}

func NewRouter(h Handlers, admin config.AdminConfig) *chi.Mux {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	h.Catalog.RegisterRoutes(router)
	h.Cart.RegisterRoutes(router)
	h.Checkout.RegisterRoutes(router)
	h.Orders.RegisterRoutes(router)

	router.Route("/admin", func(r chi.Router) {
		r.Use(AdminAuth(admin))
		h.Catalog.RegisterAdminRoutes(r)
		h.Orders.RegisterAdminRoutes(r)
		h.Promotions.RegisterAdminRoutes(r)
	})

	return router
}

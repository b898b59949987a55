package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/vasiliy-maslov/modest-storefront/internal/cart"
	"github.com/vasiliy-maslov/modest-storefront/internal/catalog"
	"github.com/vasiliy-maslov/modest-storefront/internal/checkout"
	"github.com/vasiliy-maslov/modest-storefront/internal/config"
	"github.com/vasiliy-maslov/modest-storefront/internal/db"
	handler "github.com/vasiliy-maslov/modest-storefront/internal/handler/http"
	"github.com/vasiliy-maslov/modest-storefront/internal/order"
	"github.com/vasiliy-maslov/modest-storefront/internal/payment"
	"github.com/vasiliy-maslov/modest-storefront/internal/promotion"
)

func main() {
	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	setupLogger(cfg.App)
	log.Info().Msg("Storefront starting...")

	ctx := context.Background()

	pg, err := db.New(ctx, cfg.Postgres)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}

	gateway, err := payment.NewClient(cfg.Payment)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create payment client")
	}

	catalogSvc := catalog.NewService(catalog.NewRepository(pg.SQL))
	cartSvc := cart.NewService(cart.NewRepository(pg.Pool), catalogSvc)
	promotionSvc := promotion.NewService(promotion.NewRepository(pg.Pool))
	orderSvc := order.NewService(order.NewRepository(pg.Pool))
	checkoutSvc := checkout.NewService(
		cartSvc,
		promotionSvc,
		orderSvc,
		gateway,
		checkout.NewSessionRepository(pg.Pool),
		checkout.Options{
			Payment:   cfg.Payment,
			Messaging: cfg.Messaging,
			Shipping:  cfg.Shipping,
		},
	)

	router := handler.NewRouter(handler.Handlers{
		Catalog:    handler.NewCatalogHandler(catalogSvc),
		Cart:       handler.NewCartHandler(cartSvc),
		Checkout:   handler.NewCheckoutHandler(checkoutSvc),
		Orders:     handler.NewOrderHandler(orderSvc),
		Promotions: handler.NewPromotionHandler(promotionSvc),
	}, cfg.Admin)

	server := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.App.Port).Msg("Starting HTTP server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)
	<-stopCh

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown failed")
	}

	pg.Close()

	log.Info().Msg("Storefront stopped gracefully")
}

func setupLogger(cfg config.AppConfig) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || cfg.LogLevel == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	name := cfg.Name
	if name == "" {
		name = "storefront"
	}
	log.Logger = log.With().Str("service", name).Logger()
}

package checkout

import (
	"github.com/shopspring/decimal"

	"github.com/vasiliy-maslov/modest-storefront/internal/config"
	"github.com/vasiliy-maslov/modest-storefront/internal/pricing"
)

// ShippingCost is the flat rate, waived once the discounted amount reaches the
// free shipping threshold.
func ShippingCost(cfg config.ShippingConfig, discounted decimal.Decimal) decimal.Decimal {
	if cfg.FreeShippingThreshold != nil && discounted.GreaterThanOrEqual(*cfg.FreeShippingThreshold) {
		return decimal.Zero
	}
	if cfg.FlatRate.IsNegative() {
		return decimal.Zero
	}
	return pricing.Round(cfg.FlatRate)
}

// Package billing turns session energy into money.
package billing

import (
	"github.com/shopspring/decimal"

	"github.com/aslakhn/chargebill/internal/models"
)

// Cost computes what a session costs. The operator's VAT-inclusive
// price wins when it reported one; otherwise the configured price per
// kWh applies. The operator occasionally reports garbage price
// artifacts while finalizing a session, so the result clamps at zero
// instead of propagating a negative charge. Rounded to 2 decimals,
// half up, as money is displayed.
func Cost(session *models.Session, configuredPricePerKWh decimal.Decimal) decimal.Decimal {
	price := configuredPricePerKWh
	if session.PricePerKWh != nil {
		price = *session.PricePerKWh
	}

	cost := session.Energy.Mul(price)
	if cost.IsNegative() {
		return decimal.Zero
	}

	return cost.Round(2)
}

// Package fee computes the platform's application fee for completed orders.
package fee

import (
	"github.com/shopspring/decimal"

	"ticketpay/internal/domain"
)

var hundred = decimal.NewFromInt(100)

// Defaults are the system-wide fee components used when an account leaves them unset.
type Defaults struct {
	Percentage decimal.Decimal
	Fixed      decimal.Decimal
}

type Calculator struct {
	defaults Defaults
}

func NewCalculator(defaults Defaults) *Calculator {
	return &Calculator{defaults: defaults}
}

// Calculate returns the application fee owed on order, or nil when it is not positive.
// The net fee is the fixed component plus the percentage of the order's gross total,
// capped at that total. VAT, when configured, is reported on top of the net fee.
func (c *Calculator) Calculate(cfg *domain.AccountConfiguration, order *domain.Order) *domain.ApplicationFee {
	if order == nil {
		return nil
	}

	percentage := c.defaults.Percentage
	fixed := c.defaults.Fixed
	var vatRate *decimal.Decimal
	if cfg != nil {
		if cfg.FeePercentage != nil {
			percentage = *cfg.FeePercentage
		}
		if cfg.FeeFixed != nil {
			fixed = *cfg.FeeFixed
		}
		vatRate = cfg.ApplicationFeeVATRate
	}

	total := order.TotalGross
	places := domain.MinorUnitExponent(order.Currency)

	net := fixed.Add(total.Mul(percentage).Div(hundred))
	if net.GreaterThan(total) {
		net = total
	}
	net = net.Round(places)
	if !net.IsPositive() {
		return nil
	}

	vat := decimal.Zero
	if vatRate != nil && vatRate.IsPositive() {
		vat = net.Mul(*vatRate).Round(places)
	}

	return &domain.ApplicationFee{
		NetApplicationFee:   domain.NewMoney(net, order.Currency),
		VATAmount:           domain.NewMoney(vat, order.Currency),
		GrossApplicationFee: domain.NewMoney(net.Add(vat), order.Currency),
		VATRate:             vatRate,
	}
}

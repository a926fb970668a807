package usecase

import (
	"agro-booking/internal/data/entity"

	"github.com/shopspring/decimal"
)

var (
	defaultChildFactor  = decimal.RequireFromString("0.7")
	defaultSeniorFactor = decimal.RequireFromString("0.8")
)

// PricingCalculator prices activity lines. It is pure and safe for concurrent use.
type PricingCalculator struct {
	TaxRate   decimal.Decimal
	Precision int32
}

func NewPricingCalculator(taxRate float64, precision int32) PricingCalculator {
	return PricingCalculator{
		TaxRate:   decimal.NewFromFloat(taxRate),
		Precision: precision,
	}
}

// TierPrices resolves the per-person prices, applying the default child and senior discounts.
func (c PricingCalculator) TierPrices(activity *entity.Activity) (adult, child, senior decimal.Decimal) {
	adult = activity.AdultPrice.Round(c.Precision)

	child = activity.AdultPrice.Mul(defaultChildFactor).Round(c.Precision)
	if activity.ChildPrice.Valid {
		child = activity.ChildPrice.Decimal.Round(c.Precision)
	}

	senior = activity.AdultPrice.Mul(defaultSeniorFactor).Round(c.Precision)
	if activity.SeniorPrice.Valid {
		senior = activity.SeniorPrice.Decimal.Round(c.Precision)
	}
	return adult, child, senior
}

// PriceLine returns subtotal, taxes and total for one activity line.
func (c PricingCalculator) PriceLine(activity *entity.Activity, p entity.Participants) (entity.Pricing, error) {
	if p.Adults < 0 || p.Children < 0 || p.Seniors < 0 || p.Total() == 0 {
		return entity.Pricing{}, ErrInvalidParticipants
	}

	adult, child, senior := c.TierPrices(activity)
	subtotal := adult.Mul(decimal.NewFromInt(int64(p.Adults))).
		Add(child.Mul(decimal.NewFromInt(int64(p.Children)))).
		Add(senior.Mul(decimal.NewFromInt(int64(p.Seniors)))).
		Round(c.Precision)
	taxes := subtotal.Mul(c.TaxRate).Round(c.Precision)

	return entity.Pricing{
		Subtotal: subtotal,
		Taxes:    taxes,
		Total:    subtotal.Add(taxes),
	}, nil
}

// Sum aggregates line snapshots. Sums of already rounded values need no further rounding.
func (c PricingCalculator) Sum(lines []entity.BookingLine) entity.Pricing {
	total := entity.Pricing{
		Subtotal: decimal.Zero,
		Taxes:    decimal.Zero,
		Total:    decimal.Zero,
	}
	for _, l := range lines {
		total.Subtotal = total.Subtotal.Add(l.Pricing.Subtotal)
		total.Taxes = total.Taxes.Add(l.Pricing.Taxes)
		total.Total = total.Total.Add(l.Pricing.Total)
	}
	return total
}

// README: Pure split computation: store wholesale, driver fee+tip, platform markup-discount.
package payments

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var ErrSplitMismatch = errors.New("payment split does not reconcile with order total")

var hundred = decimal.NewFromInt(100)

// SplitInput carries everything the engine needs; monetary fields are the
// values fixed at checkout, never re-read from the catalog.
type SplitInput struct {
	Items       []LineItem
	DeliveryFee float64
	Tip         float64
	Discount    float64
	Total       float64
}

// ComputeSplit derives the store/driver/platform shares from an order's frozen
// totals. Every aggregation step rounds to 2 decimal places so the result
// reconciles with the total the customer was charged. The driver share is never
// reduced by discounts; the platform absorbs the full discount, going negative
// if the coupon exceeded the collected markup.
func ComputeSplit(in SplitInput) (Split, error) {
	store := decimal.Zero
	markup := decimal.Zero

	for _, it := range in.Items {
		qty := decimal.NewFromInt(int64(it.Quantity))
		unit := decimal.NewFromFloat(it.UnitPrice).Add(decimal.NewFromFloat(it.ModifierUnit))
		factor := decimal.NewFromInt(1).Add(decimal.NewFromFloat(it.MarkupPct).Div(hundred))

		wholesaleUnit := unit.Div(factor).Round(2)
		store = store.Add(wholesaleUnit.Mul(qty).Round(2))
		markup = markup.Add(unit.Sub(wholesaleUnit).Mul(qty).Round(2))
	}

	driver := decimal.NewFromFloat(in.DeliveryFee).Add(decimal.NewFromFloat(in.Tip)).Round(2)
	discount := decimal.NewFromFloat(in.Discount).Round(2)
	platform := markup.Sub(discount).Round(2)

	total := decimal.NewFromFloat(in.Total)
	diff := store.Add(driver).Add(platform).Sub(total).Abs()
	if diff.GreaterThanOrEqual(decimal.NewFromFloat(0.01)) {
		return Split{}, ErrSplitMismatch
	}

	sf, _ := store.Float64()
	df, _ := driver.Float64()
	pf, _ := platform.Float64()
	mf, _ := markup.Float64()
	cf, _ := discount.Float64()

	return Split{
		Store:    sf,
		Driver:   df,
		Platform: pf,
		Breakdown: Breakdown{
			Markup:   mf,
			Discount: cf,
			Net:      pf,
		},
		ComputedAt: time.Now().UTC(),
	}, nil
}

// SumsTo reports whether the three parts add up to amount within a cent.
// Used by the refund engine to validate reviewer-supplied distributions.
func SumsTo(a, b, c, amount float64) bool {
	sum := decimal.NewFromFloat(a).Add(decimal.NewFromFloat(b)).Add(decimal.NewFromFloat(c))
	return sum.Round(2).Equal(decimal.NewFromFloat(amount).Round(2))
}

// Round2 normalizes a monetary value to 2 decimal places.
func Round2(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return f
}

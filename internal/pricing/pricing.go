package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"pos-backend/internal/models"
)

// Price levels offered at the register.
const (
	LevelRetail    = 1
	LevelWholesale = 2
	LevelSpecial   = 3
)

func ValidLevel(level int) bool {
	return level >= LevelRetail && level <= LevelSpecial
}

func IsProductOnSale(p models.Product) bool {
	return SaleOf(p).Active()
}

func EffectiveRetailPrice(p models.Product) decimal.Decimal {
	if IsProductOnSale(p) {
		return p.SalePrice
	}
	return p.Price
}

func levelPrice(p models.Product, level int) decimal.Decimal {
	switch level {
	case LevelSpecial:
		return p.SpecialPrice
	case LevelWholesale:
		return p.WholesalePrice
	default:
		return EffectiveRetailPrice(p)
	}
}

// UnitPrice picks the unit price for a new line. Purchases are entered at
// cost. Sales start at the requested level and fall back to the next lower
// level whose price is set. A retail sale reaching the product's wholesale
// minimum quantity is priced at wholesale.
func UnitPrice(p models.Product, kind string, level, qty int) decimal.Decimal {
	if kind == models.DocumentPurchase {
		return p.Cost
	}
	if !ValidLevel(level) {
		level = LevelRetail
	}
	if level == LevelRetail && p.WholesaleMinQty > 0 && qty >= p.WholesaleMinQty && p.WholesalePrice.IsPositive() {
		level = LevelWholesale
	}

	for l := level; l > LevelRetail; l-- {
		if price := levelPrice(p, l); price.IsPositive() {
			return price
		}
	}
	return levelPrice(p, LevelRetail)
}

// LineSubtotal is quantity * unitPrice - discount.
func LineSubtotal(qty int, unitPrice, discount decimal.Decimal) decimal.Decimal {
	return decimal.NewFromInt(int64(qty)).Mul(unitPrice).Sub(discount)
}

func ValidateDiscount(qty int, unitPrice, discount decimal.Decimal) error {
	if discount.IsNegative() {
		return fmt.Errorf("discount must be zero or greater")
	}
	gross := decimal.NewFromInt(int64(qty)).Mul(unitPrice)
	if discount.GreaterThan(gross) {
		return fmt.Errorf("discount must not exceed %s", gross.StringFixed(2))
	}
	return nil
}

// Totals of a document. Combo component rows are a breakdown of the combo
// price and never add to them.
type Totals struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Discount decimal.Decimal `json:"discount"`
	Total    decimal.Decimal `json:"total"`
}

func DocumentTotals(lines []models.LineItem) Totals {
	t := Totals{Subtotal: decimal.Zero, Discount: decimal.Zero, Total: decimal.Zero}
	for _, line := range lines {
		gross := decimal.NewFromInt(int64(line.Quantity)).Mul(line.UnitPrice)
		t.Subtotal = t.Subtotal.Add(gross)
		t.Discount = t.Discount.Add(line.Discount)
		t.Total = t.Total.Add(LineSubtotal(line.Quantity, line.UnitPrice, line.Discount))
	}
	return t
}

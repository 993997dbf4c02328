package pricing

import (
	"errors"

	"github.com/shopspring/decimal"

	"pos-backend/internal/models"
)

var (
	ErrSalePriceRequired      = errors.New("salePrice is required when saleEnabled is true")
	ErrSalePriceNotPositive   = errors.New("salePrice must be greater than 0")
	ErrSalePriceNotBelowPrice = errors.New("salePrice must be less than price")
)

// Sale is the retail price of a product together with its promotion.
type Sale struct {
	Price     decimal.Decimal
	Enabled   bool
	SalePrice decimal.Decimal
}

// SaleOf reads the sale fields of p.
func SaleOf(p models.Product) Sale {
	return Sale{Price: p.Price, Enabled: p.SaleEnabled, SalePrice: p.SalePrice}
}

// Active reports whether the sale price replaces the retail price.
func (s Sale) Active() bool {
	return s.Enabled && s.SalePrice.IsPositive() && s.SalePrice.LessThan(s.Price)
}

// Validate checks an enabled sale. hasSalePrice is false when no sale price
// was ever given, which a zero SalePrice alone cannot tell apart.
func (s Sale) Validate(hasSalePrice bool) error {
	if !s.Enabled {
		return nil
	}
	switch {
	case !hasSalePrice:
		return ErrSalePriceRequired
	case !s.SalePrice.IsPositive():
		return ErrSalePriceNotPositive
	case s.SalePrice.GreaterThanOrEqual(s.Price):
		return ErrSalePriceNotBelowPrice
	}
	return nil
}

// SalePatch is a partial edit of the sale fields; nil leaves a field as is.
type SalePatch struct {
	Price     *decimal.Decimal
	Enabled   *bool
	SalePrice *decimal.Decimal
}

// SaleChange is the merged sale plus which stored fields must be written.
type SaleChange struct {
	Sale
	WriteEnabled   bool
	WriteSalePrice bool
}

// Apply merges patch into s and validates the result. Disabling the sale
// clears the sale price.
func (s Sale) Apply(patch SalePatch) (SaleChange, error) {
	change := SaleChange{Sale: s}
	hasSalePrice := s.SalePrice.IsPositive()

	if patch.Price != nil {
		change.Price = *patch.Price
	}
	if patch.Enabled != nil {
		change.Enabled = *patch.Enabled
		change.WriteEnabled = true
		if !change.Enabled {
			change.SalePrice = decimal.Zero
			change.WriteSalePrice = true
			hasSalePrice = false
		}
	}
	if patch.SalePrice != nil {
		change.SalePrice = *patch.SalePrice
		change.WriteSalePrice = true
		hasSalePrice = true
	}

	if err := change.Validate(hasSalePrice); err != nil {
		return SaleChange{}, err
	}
	return change, nil
}

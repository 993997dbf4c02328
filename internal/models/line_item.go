package models

import (
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// LineItem is one row of a sale or purchase document.
type LineItem struct {
	ID                      string             `bson:"id,omitempty" json:"id,omitempty"`
	ProductID               primitive.ObjectID `bson:"productId" json:"productId"`
	Quantity                int                `bson:"quantity" json:"quantity"`
	UnitPrice               decimal.Decimal    `bson:"unitPrice" json:"unitPrice"`
	Discount                decimal.Decimal    `bson:"discount" json:"discount"`
	Subtotal                decimal.Decimal    `bson:"subtotal" json:"subtotal"`
	Product                 ProductSnapshot    `bson:"product" json:"product"`
	ComboItemsSeleccionados []ComboItemState   `bson:"comboItemsSeleccionados,omitempty" json:"comboItemsSeleccionados,omitempty"`
}

// IsCombo reports whether the line sells a combo product.
func (l LineItem) IsCombo() bool {
	return l.Product.IsCombo
}

// ComboKey is the identity the combo selection state is keyed by.
func (l LineItem) ComboKey() string {
	return l.ProductID.Hex()
}

// ComboItemState is one component row of a combo selection.
type ComboItemState struct {
	Component ComboComponent  `bson:"component" json:"component"`
	Included  bool            `bson:"included" json:"included"`
	Quantity  decimal.Decimal `bson:"quantity" json:"quantity"`
}

// ComboSelection holds the component rows chosen for one combo product.
// ComboQuantity is the combo quantity the row quantities were last computed at.
type ComboSelection struct {
	ComboProductID string           `bson:"comboProductId" json:"comboProductId"`
	ComboQuantity  int              `bson:"comboQuantity" json:"comboQuantity"`
	Items          []ComboItemState `bson:"items" json:"items"`
}

// Clone returns a deep copy so callers can replace state wholesale.
func (s ComboSelection) Clone() ComboSelection {
	items := make([]ComboItemState, len(s.Items))
	copy(items, s.Items)
	s.Items = items
	return s
}

package models

import (
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ComboComponent is one product bundled inside a combo product.
// Stock figures are informational only.
type ComboComponent struct {
	ProductID      primitive.ObjectID `bson:"productId" json:"productId"`
	ProductName    string             `bson:"productName" json:"productName"`
	SKU            string             `bson:"sku,omitempty" json:"sku,omitempty"`
	BaseQuantity   decimal.Decimal    `bson:"baseQuantity" json:"baseQuantity"`
	IsMandatory    bool               `bson:"isMandatory" json:"isMandatory"`
	StockAvailable decimal.Decimal    `bson:"stockAvailable" json:"stockAvailable"`
	StockTotal     decimal.Decimal    `bson:"stockTotal" json:"stockTotal"`
}

type Product struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Code            string             `bson:"code,omitempty" json:"code"`
	Name            string             `bson:"name" json:"name"`
	Barcode         string             `bson:"barcode,omitempty" json:"barcode,omitempty"`
	Category        StringList         `bson:"category" json:"category"`
	Price           decimal.Decimal    `bson:"price" json:"price"`
	WholesalePrice  decimal.Decimal    `bson:"wholesalePrice" json:"wholesalePrice"`
	SpecialPrice    decimal.Decimal    `bson:"specialPrice" json:"specialPrice"`
	Cost            decimal.Decimal    `bson:"cost" json:"cost"`
	SaleEnabled     bool               `bson:"saleEnabled" json:"saleEnabled"`
	SalePrice       decimal.Decimal    `bson:"salePrice" json:"salePrice"`
	IsOnSale        bool               `bson:"-" json:"isOnSale"`
	WholesaleMinQty int                `bson:"wholesaleMinQty,omitempty" json:"wholesaleMinQty,omitempty"`
	Stock           int                `bson:"stock" json:"stock"`
	InStock         bool               `bson:"-" json:"inStock"`
	IsActive        bool               `bson:"isActive" json:"isActive"`
	IsDeleted       bool               `bson:"isDeleted" json:"isDeleted,omitempty"`
	IsCombo         bool               `bson:"isCombo" json:"isCombo"`
	ComboItems      []ComboComponent   `bson:"comboItems,omitempty" json:"comboItems,omitempty"`
	CreatedAt       time.Time          `bson:"createdAt" json:"createdAt"`
}

// ProductSnapshot is the denormalized copy of a product kept on a line item.
type ProductSnapshot struct {
	ID         primitive.ObjectID `bson:"id" json:"id"`
	Code       string             `bson:"code" json:"code"`
	Name       string             `bson:"name" json:"name"`
	IsCombo    bool               `bson:"isCombo" json:"isCombo"`
	ComboItems []ComboComponent   `bson:"comboItems,omitempty" json:"comboItems,omitempty"`
}

// Snapshot copies the fields a line item needs from the catalogue record.
func (p Product) Snapshot() ProductSnapshot {
	items := make([]ComboComponent, len(p.ComboItems))
	copy(items, p.ComboItems)
	return ProductSnapshot{
		ID:         p.ID,
		Code:       p.Code,
		Name:       p.Name,
		IsCombo:    p.IsCombo,
		ComboItems: items,
	}
}

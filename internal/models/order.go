package models

import (
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// OrderCustomer captures lightweight customer or supplier details for an order.
type OrderCustomer struct {
	Title  string `bson:"title" json:"title"`
	Detail string `bson:"detail,omitempty" json:"detail,omitempty"`
	Note   string `bson:"note,omitempty" json:"note,omitempty"`
}

// Order defines the persisted, submitted document.
type Order struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Kind          string             `bson:"kind" json:"kind"`
	Lines         []LineItem         `bson:"lines" json:"lines"`
	Subtotal      decimal.Decimal    `bson:"subtotal" json:"subtotal"`
	Discount      decimal.Decimal    `bson:"discount" json:"discount"`
	Total         decimal.Decimal    `bson:"total" json:"total"`
	Customer      OrderCustomer      `bson:"customer" json:"customer"`
	PaymentMethod string             `bson:"paymentMethod,omitempty" json:"paymentMethod,omitempty"`
	Status        string             `bson:"status" json:"status"`
	CreatedBy     string             `bson:"createdBy" json:"createdBy"`
	CreatedAt     time.Time          `bson:"createdAt" json:"createdAt"`
}

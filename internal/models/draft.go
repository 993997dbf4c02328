package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	DocumentSale     = "sale"
	DocumentPurchase = "purchase"
)

// Draft is a sale or purchase document still being edited at the register.
type Draft struct {
	ID            primitive.ObjectID        `bson:"_id,omitempty" json:"id"`
	Kind          string                    `bson:"kind" json:"kind"`
	PriceLevel    int                       `bson:"priceLevel" json:"priceLevel"`
	OperatorID    string                    `bson:"operatorId" json:"operatorId"`
	Lines         []LineItem                `bson:"lines" json:"lines"`
	Selections    map[string]ComboSelection `bson:"selections" json:"selections"`
	ExpandedLines []int                     `bson:"expandedLines" json:"expandedLines"`
	Version       int64                     `bson:"version" json:"version"`
	CreatedAt     time.Time                 `bson:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time                 `bson:"updatedAt" json:"updatedAt"`
}

package handlers

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"pos-backend/internal/database"
	"pos-backend/internal/models"
	"pos-backend/internal/pricing"
)

var errProductNotFound = errors.New("product not found")

// activeProductFilter matches products that can still be put on a document.
func activeProductFilter() bson.M {
	return bson.M{
		"isActive":  bson.M{"$ne": false},
		"isDeleted": bson.M{"$ne": true},
	}
}

func normalizeProductDocument(raw bson.M) (models.Product, error) {
	if val, ok := raw["stock"]; ok {
		switch typed := val.(type) {
		case int32:
			raw["stock"] = int(typed)
		case int64:
			raw["stock"] = int(typed)
		case float64:
			raw["stock"] = int(typed)
		case int:
			raw["stock"] = typed
		default:
			raw["stock"] = 0
		}
	} else {
		raw["stock"] = 0
	}

	if val, ok := raw["isCombo"]; ok {
		switch typed := val.(type) {
		case string:
			raw["isCombo"] = typed == "true"
		case bool:
		default:
			raw["isCombo"] = false
		}
	}

	data, err := bson.Marshal(raw)
	if err != nil {
		return models.Product{}, err
	}

	var p models.Product
	if err := bson.UnmarshalWithRegistry(database.Registry, data, &p); err != nil {
		return models.Product{}, err
	}

	p.InStock = p.Stock > 0
	p.IsOnSale = pricing.IsProductOnSale(p)

	return p, nil
}

func decodeProducts(ctx context.Context, cursor *mongo.Cursor) ([]models.Product, error) {
	products := make([]models.Product, 0)

	for cursor.Next(ctx) {
		var raw bson.M
		if err := cursor.Decode(&raw); err != nil {
			return nil, err
		}

		product, err := normalizeProductDocument(raw)
		if err != nil {
			return nil, err
		}

		products = append(products, product)
	}

	if err := cursor.Err(); err != nil {
		return nil, err
	}

	return products, nil
}

func findActiveProduct(ctx context.Context, db *mongo.Database, id primitive.ObjectID) (models.Product, error) {
	filter := activeProductFilter()
	filter["_id"] = id

	var raw bson.M
	err := db.Collection("products").FindOne(ctx, filter).Decode(&raw)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Product{}, errProductNotFound
	}
	if err != nil {
		return models.Product{}, err
	}
	return normalizeProductDocument(raw)
}

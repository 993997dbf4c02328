package handlers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"pos-backend/internal/models"
	"pos-backend/internal/pricing"
)

/* =======================
   REQUEST MODELS
======================= */

type comboComponentRequest struct {
	ProductID    string          `json:"productId" binding:"required"`
	BaseQuantity decimal.Decimal `json:"baseQuantity"`
	IsMandatory  bool            `json:"isMandatory"`
}

// productRequest is shared by create and update; nil fields are left alone
// on update.
type productRequest struct {
	Code            *string                  `json:"code"`
	Name            *string                  `json:"name"`
	Barcode         *string                  `json:"barcode"`
	Category        *[]string                `json:"category"`
	Price           *decimal.Decimal         `json:"price"`
	WholesalePrice  *decimal.Decimal         `json:"wholesalePrice"`
	SpecialPrice    *decimal.Decimal         `json:"specialPrice"`
	Cost            *decimal.Decimal         `json:"cost"`
	SaleEnabled     *bool                    `json:"saleEnabled"`
	SalePrice       *decimal.Decimal         `json:"salePrice"`
	WholesaleMinQty *int                     `json:"wholesaleMinQty" binding:"omitempty,gte=0"`
	Stock           *int                     `json:"stock" binding:"omitempty,gte=0"`
	IsActive        *bool                    `json:"isActive"`
	IsCombo         *bool                    `json:"isCombo"`
	ComboItems      *[]comboComponentRequest `json:"comboItems" binding:"omitempty,dive"`
}

/* =======================
   HELPERS
======================= */

func normalizeCategories(values []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0)

	for _, v := range values {
		name := strings.TrimSpace(v)
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}

func mapKeys(input bson.M) []string {
	keys := make([]string, 0, len(input))
	for key := range input {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// validatePrices rejects negative level prices and cost.
func validatePrices(req productRequest) error {
	fields := []struct {
		name  string
		value *decimal.Decimal
	}{
		{"price", req.Price},
		{"wholesalePrice", req.WholesalePrice},
		{"specialPrice", req.SpecialPrice},
		{"cost", req.Cost},
	}
	for _, f := range fields {
		if f.value != nil && f.value.IsNegative() {
			return fmt.Errorf("%s must be zero or greater", f.name)
		}
	}
	return nil
}

// parseComboComponents checks a combo definition before it is resolved
// against the catalogue.
func parseComboComponents(self primitive.ObjectID, reqs []comboComponentRequest) ([]primitive.ObjectID, error) {
	if len(reqs) == 0 {
		return nil, errors.New("a combo needs at least one component")
	}
	seen := map[primitive.ObjectID]struct{}{}
	ids := make([]primitive.ObjectID, 0, len(reqs))
	for _, req := range reqs {
		id, err := primitive.ObjectIDFromHex(strings.TrimSpace(req.ProductID))
		if err != nil {
			return nil, fmt.Errorf("invalid component productId: %s", req.ProductID)
		}
		if !self.IsZero() && id == self {
			return nil, errors.New("a combo cannot contain itself")
		}
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("component %s listed twice", id.Hex())
		}
		if !req.BaseQuantity.IsPositive() {
			return nil, fmt.Errorf("baseQuantity of %s must be greater than 0", id.Hex())
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids, nil
}

// resolveComboComponents snapshots the component products into the combo.
// Components must be simple, live products.
func resolveComboComponents(ctx context.Context, db *mongo.Database, self primitive.ObjectID, reqs []comboComponentRequest) ([]models.ComboComponent, error) {
	ids, err := parseComboComponents(self, reqs)
	if err != nil {
		return nil, err
	}

	filter := activeProductFilter()
	filter["_id"] = bson.M{"$in": ids}
	cursor, err := db.Collection("products").Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	products, err := decodeProducts(ctx, cursor)
	if err != nil {
		return nil, err
	}
	byID := make(map[primitive.ObjectID]models.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	components := make([]models.ComboComponent, 0, len(reqs))
	for i, id := range ids {
		p, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("component not found: %s", id.Hex())
		}
		if p.IsCombo {
			return nil, fmt.Errorf("component %s is itself a combo", p.Name)
		}
		stock := decimal.NewFromInt(int64(p.Stock))
		components = append(components, models.ComboComponent{
			ProductID:      p.ID,
			ProductName:    p.Name,
			SKU:            p.Code,
			BaseQuantity:   reqs[i].BaseQuantity,
			IsMandatory:    reqs[i].IsMandatory,
			StockAvailable: stock,
			StockTotal:     stock,
		})
	}
	return components, nil
}

/* =======================
   GET (ADMIN) – LIST
======================= */

func GetAllProducts(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /api/admin/products"
		defer handlePanic(c, route)

		page, limit, err := parsePaginationParams(c.Query("page"), c.Query("limit"))
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, err.Error())
			return
		}

		filter, err := productSearchFilter(c.Query("search"), c.Query("category"), c.Query("isCombo"))
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, "invalid isCombo")
			return
		}
		delete(filter, "isActive")
		if isActive := strings.TrimSpace(c.Query("isActive")); isActive != "" {
			filter["isActive"] = strings.EqualFold(isActive, "true")
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		total, err := db.Collection("products").CountDocuments(ctx, filter)
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		opts := options.Find().
			SetSkip((page - 1) * limit).
			SetLimit(limit).
			SetSort(bson.D{{Key: "createdAt", Value: -1}})

		cursor, err := db.Collection("products").Find(ctx, filter, opts)
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		defer cursor.Close(ctx)

		products, err := decodeProducts(ctx, cursor)
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "decode error")
			return
		}

		c.JSON(http.StatusOK, paginated(products, page, limit, total))
	}
}

/* =======================
   CREATE
======================= */

func CreateProduct(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /api/admin/products"
		defer handlePanic(c, route)

		var req productRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, route, err)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		product, err := productFromRequest(ctx, db, req, time.Now().UTC())
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, err.Error())
			return
		}

		res, err := db.Collection("products").InsertOne(ctx, product)
		if mongo.IsDuplicateKeyError(err) {
			respondWithError(c, http.StatusConflict, route, "product code already exists")
			return
		}
		if err != nil {
			log.Printf("[%s] insert error: %v", route, err)
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		product.ID = res.InsertedID.(primitive.ObjectID)
		log.Printf("[%s] product %s created combo=%t components=%d", route, product.ID.Hex(), product.IsCombo, len(product.ComboItems))
		c.JSON(http.StatusCreated, product)
	}
}

func productFromRequest(ctx context.Context, db *mongo.Database, req productRequest, now time.Time) (models.Product, error) {
	if req.Name == nil || strings.TrimSpace(*req.Name) == "" {
		return models.Product{}, errors.New("name required")
	}
	if req.Price == nil || !req.Price.IsPositive() {
		return models.Product{}, errors.New("invalid price")
	}
	if err := validatePrices(req); err != nil {
		return models.Product{}, err
	}

	product := models.Product{
		Name:      strings.TrimSpace(*req.Name),
		Price:     *req.Price,
		IsActive:  true,
		CreatedAt: now,
	}
	if req.Code != nil {
		product.Code = strings.TrimSpace(*req.Code)
	}
	if req.Barcode != nil {
		product.Barcode = strings.TrimSpace(*req.Barcode)
	}
	if req.Category != nil {
		product.Category = models.StringList(normalizeCategories(*req.Category))
	}
	if req.WholesalePrice != nil {
		product.WholesalePrice = *req.WholesalePrice
	}
	if req.SpecialPrice != nil {
		product.SpecialPrice = *req.SpecialPrice
	}
	if req.Cost != nil {
		product.Cost = *req.Cost
	}
	if req.WholesaleMinQty != nil {
		product.WholesaleMinQty = *req.WholesaleMinQty
	}
	if req.Stock != nil {
		product.Stock = *req.Stock
	}
	if req.IsActive != nil {
		product.IsActive = *req.IsActive
	}

	if req.SaleEnabled != nil {
		product.SaleEnabled = *req.SaleEnabled
	}
	if req.SalePrice != nil {
		product.SalePrice = *req.SalePrice
	}
	if err := pricing.SaleOf(product).Validate(req.SalePrice != nil); err != nil {
		return models.Product{}, err
	}

	if req.IsCombo != nil && *req.IsCombo {
		if req.ComboItems == nil {
			return models.Product{}, errors.New("comboItems required for a combo")
		}
		components, err := resolveComboComponents(ctx, db, primitive.NilObjectID, *req.ComboItems)
		if err != nil {
			return models.Product{}, err
		}
		product.IsCombo = true
		product.ComboItems = components
	}

	product.InStock = product.Stock > 0
	product.IsOnSale = pricing.IsProductOnSale(product)
	return product, nil
}

/* =======================
   UPDATE
======================= */

func UpdateProduct(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PUT /api/admin/products/:id"
		defer handlePanic(c, route)

		id, ok := objectIDParam(c, "id")
		if !ok {
			respondWithError(c, http.StatusBadRequest, route, "invalid id")
			return
		}

		var req productRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, route, err)
			return
		}
		if err := validatePrices(req); err != nil {
			respondWithError(c, http.StatusBadRequest, route, err.Error())
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		existing, err := findLiveProduct(ctx, db, id)
		if errors.Is(err, errProductNotFound) {
			respondWithError(c, http.StatusNotFound, route, "product not found")
			return
		}
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		updateSet, updateUnset, err := productUpdate(ctx, db, existing, req)
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, err.Error())
			return
		}
		if len(updateSet) == 0 && len(updateUnset) == 0 {
			respondWithError(c, http.StatusBadRequest, route, "no fields to update")
			return
		}

		update := bson.M{}
		if len(updateSet) > 0 {
			update["$set"] = updateSet
		}
		if len(updateUnset) > 0 {
			update["$unset"] = updateUnset
		}
		log.Printf("[%s] update fields: set=%v unset=%v", route, mapKeys(updateSet), mapKeys(updateUnset))

		result, err := db.Collection("products").UpdateOne(ctx,
			bson.M{"_id": id, "isDeleted": bson.M{"$ne": true}},
			update,
		)
		if mongo.IsDuplicateKeyError(err) {
			respondWithError(c, http.StatusConflict, route, "product code already exists")
			return
		}
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		if result.MatchedCount == 0 {
			respondWithError(c, http.StatusNotFound, route, "product not found")
			return
		}

		updated, err := findLiveProduct(ctx, db, id)
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		c.JSON(http.StatusOK, updated)
	}
}

// productUpdate turns a partial request into $set and $unset documents.
func productUpdate(ctx context.Context, db *mongo.Database, existing models.Product, req productRequest) (bson.M, bson.M, error) {
	updateSet := bson.M{}
	updateUnset := bson.M{}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, nil, errors.New("name required")
		}
		updateSet["name"] = name
	}
	if req.Code != nil {
		if code := strings.TrimSpace(*req.Code); code == "" {
			updateUnset["code"] = ""
		} else {
			updateSet["code"] = code
		}
	}
	if req.Barcode != nil {
		if barcode := strings.TrimSpace(*req.Barcode); barcode == "" {
			updateUnset["barcode"] = ""
		} else {
			updateSet["barcode"] = barcode
		}
	}
	if req.Category != nil {
		updateSet["category"] = models.StringList(normalizeCategories(*req.Category))
	}
	if req.Price != nil {
		if !req.Price.IsPositive() {
			return nil, nil, errors.New("invalid price")
		}
		updateSet["price"] = *req.Price
	}
	if req.WholesalePrice != nil {
		updateSet["wholesalePrice"] = *req.WholesalePrice
	}
	if req.SpecialPrice != nil {
		updateSet["specialPrice"] = *req.SpecialPrice
	}
	if req.Cost != nil {
		updateSet["cost"] = *req.Cost
	}
	if req.WholesaleMinQty != nil {
		updateSet["wholesaleMinQty"] = *req.WholesaleMinQty
	}
	if req.Stock != nil {
		updateSet["stock"] = *req.Stock
	}
	if req.IsActive != nil {
		updateSet["isActive"] = *req.IsActive
	}

	if req.Price != nil || req.SaleEnabled != nil || req.SalePrice != nil {
		sale, err := pricing.SaleOf(existing).Apply(pricing.SalePatch{
			Price:     req.Price,
			Enabled:   req.SaleEnabled,
			SalePrice: req.SalePrice,
		})
		if err != nil {
			return nil, nil, err
		}
		if sale.WriteEnabled {
			updateSet["saleEnabled"] = sale.Enabled
		}
		if sale.WriteSalePrice {
			updateSet["salePrice"] = sale.SalePrice
		}
	}

	isCombo := existing.IsCombo
	if req.IsCombo != nil {
		isCombo = *req.IsCombo
		updateSet["isCombo"] = isCombo
	}
	switch {
	case !isCombo:
		if existing.IsCombo {
			updateUnset["comboItems"] = ""
		}
	case req.ComboItems != nil:
		components, err := resolveComboComponents(ctx, db, existing.ID, *req.ComboItems)
		if err != nil {
			return nil, nil, err
		}
		updateSet["comboItems"] = components
	case !existing.IsCombo:
		return nil, nil, errors.New("comboItems required for a combo")
	}

	return updateSet, updateUnset, nil
}

func findLiveProduct(ctx context.Context, db *mongo.Database, id primitive.ObjectID) (models.Product, error) {
	var raw bson.M
	err := db.Collection("products").FindOne(ctx, bson.M{
		"_id":       id,
		"isDeleted": bson.M{"$ne": true},
	}).Decode(&raw)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Product{}, errProductNotFound
	}
	if err != nil {
		return models.Product{}, err
	}
	return normalizeProductDocument(raw)
}

/* =======================
   DELETE (SOFT)
======================= */

func DeleteProduct(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "DELETE /api/admin/products/:id"
		defer handlePanic(c, route)

		id, ok := objectIDParam(c, "id")
		if !ok {
			respondWithError(c, http.StatusBadRequest, route, "invalid id")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		res, err := db.Collection("products").UpdateOne(ctx,
			bson.M{
				"_id":       id,
				"isDeleted": bson.M{"$ne": true},
			},
			bson.M{"$set": bson.M{
				"isDeleted": true,
				"deletedAt": time.Now().UTC(),
				"isActive":  false,
			}},
		)
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		if res.MatchedCount == 0 {
			respondWithError(c, http.StatusNotFound, route, "product not found")
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "product deleted"})
	}
}

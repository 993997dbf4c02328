package handlers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"pos-backend/internal/metrics"
	"pos-backend/internal/middleware"
	"pos-backend/internal/models"
	"pos-backend/internal/notify"
	"pos-backend/internal/pricing"
)

/* =========================
   REQUEST DTOs
========================= */

type submitCustomerRequest struct {
	Title  string `json:"title"`
	Detail string `json:"detail"`
	Note   string `json:"note"`
}

type submitDraftRequest struct {
	Customer      submitCustomerRequest `json:"customer"`
	PaymentMethod string                `json:"paymentMethod"`
}

// stockMovement is the net stock change of one product caused by an order.
type stockMovement struct {
	ProductID primitive.ObjectID
	Name      string
	Quantity  int
}

type lowStockProduct struct {
	ProductID primitive.ObjectID
	Name      string
	Stock     int
}

/* =========================
   SUBMIT DRAFT
========================= */

func SubmitDraft(db *mongo.Database, notifier notify.Notifier, lowStockThreshold int) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /api/drafts/:id/submit"
		defer handlePanic(c, route)

		if err := ensureDBConnection(c.Request.Context(), db); err != nil {
			respondWithError(c, http.StatusServiceUnavailable, route, "database unavailable")
			return
		}

		draftID, ok := objectIDParam(c, "id")
		if !ok {
			respondWithError(c, http.StatusBadRequest, route, "invalid draft id")
			return
		}

		var req submitDraftRequest
		if c.Request.ContentLength != 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				respondValidationError(c, route, err)
				return
			}
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
		defer cancel()

		operatorID := middleware.OperatorID(c)
		draft, err := loadDraft(ctx, db, draftFilter(draftID, operatorID, middleware.Role(c)))
		if errors.Is(err, errDraftNotFound) {
			respondWithError(c, http.StatusNotFound, route, "draft not found")
			return
		}
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		order, err := buildOrderFromDraft(newDraftSession(draft), req, operatorID, time.Now().UTC())
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, err.Error())
			return
		}
		movements := stockMovements(order)

		session, err := db.Client().StartSession()
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		defer session.EndSession(ctx)

		var lowStock []lowStockProduct
		_, err = session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (interface{}, error) {
			lowStock = nil
			for _, move := range movements {
				remaining, err := applyStockMovement(sessCtx, db, order.Kind, move)
				if err != nil {
					return nil, err
				}
				if order.Kind == models.DocumentSale && remaining <= lowStockThreshold {
					lowStock = append(lowStock, lowStockProduct{ProductID: move.ProductID, Name: move.Name, Stock: remaining})
				}
			}

			res, err := db.Collection("orders").InsertOne(sessCtx, order)
			if err != nil {
				return nil, err
			}
			if id, ok := res.InsertedID.(primitive.ObjectID); ok {
				order.ID = id
			}

			del, err := db.Collection("drafts").DeleteOne(sessCtx, bson.M{"_id": draft.ID, "version": draft.Version})
			if err != nil {
				return nil, err
			}
			if del.DeletedCount == 0 {
				return nil, draftConflictError{DraftID: draft.ID, Version: draft.Version}
			}
			return nil, nil
		})
		if err != nil {
			respondSubmitError(c, route, err)
			return
		}

		metrics.RecordOrderSubmitted(order.Kind)
		log.Printf("[ORDER] [INFO] %s order %s submitted by %s total=%s", order.Kind, order.ID.Hex(), operatorID, order.Total.StringFixed(2))
		publishOrderEvents(ctx, notifier, order, lowStock)

		c.JSON(http.StatusCreated, gin.H{
			"orderId": order.ID.Hex(),
			"message": "order created",
			"order":   order,
		})
	}
}

func respondSubmitError(c *gin.Context, route string, err error) {
	var stockErr outOfStockError
	if errors.As(err, &stockErr) {
		log.Printf("[%s] out of stock product=%s available=%d requested=%d", route, stockErr.ProductID.Hex(), stockErr.Available, stockErr.Requested)
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error":     "outOfStock",
			"productId": stockErr.ProductID.Hex(),
			"name":      stockErr.Name,
			"available": stockErr.Available,
			"requested": stockErr.Requested,
		})
		return
	}
	var notFoundErr productNotFoundError
	if errors.As(err, &notFoundErr) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error":     "product not found",
			"productId": notFoundErr.ProductID.Hex(),
		})
		return
	}
	var conflict draftConflictError
	if errors.As(err, &conflict) {
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{
			"error":   "draft was modified, reload and retry",
			"draftId": conflict.DraftID.Hex(),
		})
		return
	}
	log.Printf("[%s] transaction failed: %v", route, err)
	respondWithError(c, http.StatusInternalServerError, route, "db error")
}

// applyStockMovement moves stock for one product and returns what is left.
// Sales never take stock below zero.
func applyStockMovement(ctx context.Context, db *mongo.Database, kind string, move stockMovement) (int, error) {
	products := db.Collection("products")

	var product models.Product
	err := products.FindOne(ctx, bson.M{
		"_id":       move.ProductID,
		"isDeleted": bson.M{"$ne": true},
	}).Decode(&product)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return 0, productNotFoundError{ProductID: move.ProductID}
	}
	if err != nil {
		return 0, err
	}

	if kind == models.DocumentPurchase {
		res, err := products.UpdateOne(ctx,
			bson.M{"_id": move.ProductID},
			bson.M{"$inc": bson.M{"stock": move.Quantity}},
		)
		if err != nil {
			return 0, err
		}
		if res.MatchedCount == 0 {
			return 0, productNotFoundError{ProductID: move.ProductID}
		}
		return product.Stock + move.Quantity, nil
	}

	shortage := outOfStockError{
		ProductID: move.ProductID,
		Name:      product.Name,
		Available: product.Stock,
		Requested: move.Quantity,
	}
	if product.Stock < move.Quantity {
		return 0, shortage
	}

	res, err := products.UpdateOne(ctx,
		bson.M{
			"_id":       move.ProductID,
			"isDeleted": bson.M{"$ne": true},
			"stock":     bson.M{"$gte": move.Quantity},
		},
		bson.M{"$inc": bson.M{"stock": -move.Quantity}},
	)
	if err != nil {
		return 0, err
	}
	if res.MatchedCount == 0 {
		return 0, shortage
	}
	return product.Stock - move.Quantity, nil
}

func publishOrderEvents(ctx context.Context, notifier notify.Notifier, order models.Order, lowStock []lowStockProduct) {
	if notifier == nil {
		return
	}
	events := make([]notify.Event, 0, len(lowStock)+1)
	events = append(events, notify.Event{
		Type:    notify.EventOrderSubmitted,
		Message: fmt.Sprintf("%s order %s submitted, total %s", order.Kind, order.ID.Hex(), order.Total.StringFixed(2)),
		Data: map[string]interface{}{
			"orderId": order.ID.Hex(),
			"kind":    order.Kind,
			"total":   order.Total.String(),
			"lines":   len(order.Lines),
		},
	})
	for _, p := range lowStock {
		events = append(events, notify.Event{
			Type:    notify.EventStockLow,
			Message: fmt.Sprintf("%s stock at %d", p.Name, p.Stock),
			Data: map[string]interface{}{
				"productId": p.ProductID.Hex(),
				"stock":     p.Stock,
			},
		})
	}
	for _, event := range events {
		if err := notifier.Notify(ctx, event); err != nil {
			log.Printf("[ORDER] [WARN] notification %s not delivered: %v", event.Type, err)
		}
	}
}

/* =========================
   BUILD ORDER
========================= */

func buildOrderFromDraft(s *draftSession, req submitDraftRequest, operatorID string, now time.Time) (models.Order, error) {
	draft := s.draft
	if len(draft.Lines) == 0 {
		return models.Order{}, errors.New("at least one line is required")
	}

	paymentMethod := strings.ToLower(strings.TrimSpace(req.PaymentMethod))
	if draft.Kind == models.DocumentSale {
		if paymentMethod != "cash" && paymentMethod != "card" {
			return models.Order{}, errors.New("invalid payment method")
		}
	} else {
		paymentMethod = ""
	}

	lines := make([]models.LineItem, 0, len(draft.Lines))
	for _, line := range draft.Lines {
		if line.Quantity <= 0 {
			return models.Order{}, fmt.Errorf("quantity of %s must be greater than zero", line.Product.Name)
		}
		line.ComboItemsSeleccionados = scaleToLine(s.includedItems(line), s.comboQuantity(line), line.Quantity)
		lines = append(lines, line)
	}

	totals := pricing.DocumentTotals(lines)
	return models.Order{
		Kind:     draft.Kind,
		Lines:    lines,
		Subtotal: totals.Subtotal,
		Discount: totals.Discount,
		Total:    totals.Total,
		Customer: models.OrderCustomer{
			Title:  strings.TrimSpace(req.Customer.Title),
			Detail: strings.TrimSpace(req.Customer.Detail),
			Note:   strings.TrimSpace(req.Customer.Note),
		},
		PaymentMethod: paymentMethod,
		Status:        "completed",
		CreatedBy:     operatorID,
		CreatedAt:     now,
	}, nil
}

// scaleToLine converts component quantities recorded for comboQty combos to
// a line of lineQty combos. Lines of the same combo share one selection; a
// selection recorded at zero combos falls back to the base quantities.
func scaleToLine(items []models.ComboItemState, comboQty, lineQty int) []models.ComboItemState {
	if len(items) == 0 {
		return nil
	}
	out := make([]models.ComboItemState, len(items))
	copy(out, items)
	if comboQty <= 0 {
		qty := decimal.NewFromInt(int64(lineQty))
		for i := range out {
			out[i].Quantity = qty.Mul(out[i].Component.BaseQuantity)
		}
		return out
	}
	if comboQty == lineQty {
		return out
	}
	ratio := decimal.NewFromInt(int64(lineQty))
	for i := range out {
		out[i].Quantity = out[i].Quantity.Mul(ratio).DivRound(decimal.NewFromInt(int64(comboQty)), 4)
	}
	return out
}

// stockMovements aggregates per product the stock an order moves: simple
// lines by their quantity, combo lines by their included components.
// Fractional component quantities round up.
func stockMovements(order models.Order) []stockMovement {
	var moves []stockMovement
	index := map[primitive.ObjectID]int{}
	add := func(id primitive.ObjectID, name string, qty int) {
		if qty <= 0 {
			return
		}
		if i, ok := index[id]; ok {
			moves[i].Quantity += qty
			return
		}
		index[id] = len(moves)
		moves = append(moves, stockMovement{ProductID: id, Name: name, Quantity: qty})
	}

	for _, line := range order.Lines {
		if !line.IsCombo() {
			add(line.ProductID, line.Product.Name, line.Quantity)
			continue
		}
		for _, item := range line.ComboItemsSeleccionados {
			if !item.Included {
				continue
			}
			add(item.Component.ProductID, item.Component.ProductName, int(item.Quantity.Ceil().IntPart()))
		}
	}
	return moves
}

/* =========================
   ORDERS
========================= */

func ListOrders(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /api/orders"
		defer handlePanic(c, route)

		page, limit, err := parsePaginationParams(c.Query("page"), c.Query("limit"))
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, err.Error())
			return
		}

		filter := bson.M{}
		if kind := strings.TrimSpace(c.Query("kind")); kind != "" {
			if kind != models.DocumentSale && kind != models.DocumentPurchase {
				respondWithError(c, http.StatusBadRequest, route, "invalid kind")
				return
			}
			filter["kind"] = kind
		}
		if middleware.Role(c) != models.RoleAdmin {
			filter["createdBy"] = middleware.OperatorID(c)
		}

		findOptions := options.Find().
			SetSkip((page - 1) * limit).
			SetLimit(limit).
			SetSort(bson.D{{Key: "createdAt", Value: -1}})

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		total, err := db.Collection("orders").CountDocuments(ctx, filter)
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "orders could not be fetched")
			return
		}

		cursor, err := db.Collection("orders").Find(ctx, filter, findOptions)
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "orders could not be fetched")
			return
		}
		defer cursor.Close(ctx)

		orders := make([]models.Order, 0)
		if err := cursor.All(ctx, &orders); err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "failed to parse orders")
			return
		}

		c.JSON(http.StatusOK, paginated(orders, page, limit, total))
	}
}

func GetOrder(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /api/orders/:id"
		defer handlePanic(c, route)

		orderID, ok := objectIDParam(c, "id")
		if !ok {
			respondWithError(c, http.StatusBadRequest, route, "invalid id")
			return
		}

		filter := bson.M{"_id": orderID}
		if middleware.Role(c) != models.RoleAdmin {
			filter["createdBy"] = middleware.OperatorID(c)
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		var order models.Order
		err := db.Collection("orders").FindOne(ctx, filter).Decode(&order)
		if errors.Is(err, mongo.ErrNoDocuments) {
			respondWithError(c, http.StatusNotFound, route, "order not found")
			return
		}
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		c.JSON(http.StatusOK, order)
	}
}

func DeleteOrder(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "DELETE /api/admin/orders/:id"
		defer handlePanic(c, route)

		orderID, ok := objectIDParam(c, "id")
		if !ok {
			respondWithError(c, http.StatusBadRequest, route, "invalid id")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		result, err := db.Collection("orders").DeleteOne(ctx, bson.M{"_id": orderID})
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		if result.DeletedCount == 0 {
			respondWithError(c, http.StatusNotFound, route, "order not found")
			return
		}

		log.Printf("[ORDER] [INFO] order %s deleted by %s", orderID.Hex(), middleware.OperatorID(c))
		c.JSON(http.StatusOK, gin.H{"message": "order deleted"})
	}
}

type outOfStockError struct {
	ProductID primitive.ObjectID
	Name      string
	Available int
	Requested int
}

func (e outOfStockError) Error() string {
	return "product out of stock"
}

type productNotFoundError struct {
	ProductID primitive.ObjectID
}

func (e productNotFoundError) Error() string {
	return "product not found"
}

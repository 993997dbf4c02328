package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"pos-backend/internal/combo"
	"pos-backend/internal/middleware"
	"pos-backend/internal/models"
	"pos-backend/internal/pricing"
)

type createDraftRequest struct {
	Kind       string `json:"kind" binding:"required,oneof=sale purchase"`
	PriceLevel int    `json:"priceLevel" binding:"omitempty,oneof=1 2 3"`
}

type addLineRequest struct {
	ProductID string           `json:"productId" binding:"required"`
	Quantity  int              `json:"quantity" binding:"required,gte=1"`
	Discount  *decimal.Decimal `json:"discount"`
}

type updateLineRequest struct {
	Quantity *int             `json:"quantity" binding:"omitempty,gte=0"`
	Discount *decimal.Decimal `json:"discount"`
}

// componentEditRequest carries the component row edits. Quantity is kept raw
// because the grid sends either the typed text or a number.
type componentEditRequest struct {
	Included *bool          `json:"included"`
	Quantity json.RawMessage `json:"quantity"`
}

// statusError is a mutation failure answered with its own status.
type statusError struct {
	Status  int
	Message string
}

func (e statusError) Error() string {
	return e.Message
}

// bindError wraps a body binding failure.
type bindError struct {
	Err error
}

func (e bindError) Error() string {
	return e.Err.Error()
}

func (e bindError) Unwrap() error {
	return e.Err
}

type draftMutation func(ctx context.Context, c *gin.Context, s *draftSession) error

// mutateDraft loads the caller's draft, applies mutate and saves the result
// when anything changed. The response is always the current draft view.
func mutateDraft(db *mongo.Database, route string, mutate draftMutation) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer handlePanic(c, route)

		id, ok := objectIDParam(c, "id")
		if !ok {
			respondWithError(c, http.StatusBadRequest, route, "invalid draft id")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		draft, err := loadDraft(ctx, db, draftFilter(id, middleware.OperatorID(c), middleware.Role(c)))
		if errors.Is(err, errDraftNotFound) {
			respondWithError(c, http.StatusNotFound, route, "draft not found")
			return
		}
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		s := newDraftSession(draft)
		if err := mutate(ctx, c, s); err != nil {
			respondMutationError(c, route, err)
			return
		}

		if s.changed {
			s.commit()
			if err := saveDraft(ctx, db, draft); err != nil {
				var conflict draftConflictError
				if errors.As(err, &conflict) {
					log.Printf("[%s] version conflict draft=%s version=%d", route, conflict.DraftID.Hex(), conflict.Version)
					c.AbortWithStatusJSON(http.StatusConflict, gin.H{
						"error":   "draft was modified, reload and retry",
						"draftId": conflict.DraftID.Hex(),
					})
					return
				}
				respondWithError(c, http.StatusInternalServerError, route, "db error")
				return
			}
		}

		c.JSON(http.StatusOK, buildDraftView(draft, s.rec.State()))
	}
}

func respondMutationError(c *gin.Context, route string, err error) {
	var bind bindError
	if errors.As(err, &bind) {
		respondValidationError(c, route, bind.Err)
		return
	}
	var status statusError
	if errors.As(err, &status) {
		respondWithError(c, status.Status, route, status.Message)
		return
	}
	log.Printf("[%s] mutation failed: %v", route, err)
	respondWithError(c, http.StatusInternalServerError, route, "db error")
}

func CreateDraft(db *mongo.Database, defaultPriceLevel int) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /api/drafts"
		defer handlePanic(c, route)

		var req createDraftRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, route, err)
			return
		}

		draft := newDraft(req, middleware.OperatorID(c), defaultPriceLevel, time.Now().UTC())

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		res, err := db.Collection("drafts").InsertOne(ctx, draft)
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		if id, ok := res.InsertedID.(primitive.ObjectID); ok {
			draft.ID = id
		}

		log.Printf("[%s] draft %s created kind=%s level=%d", route, draft.ID.Hex(), draft.Kind, draft.PriceLevel)
		c.JSON(http.StatusCreated, buildDraftView(&draft, combo.NewState()))
	}
}

func newDraft(req createDraftRequest, operatorID string, defaultPriceLevel int, now time.Time) models.Draft {
	level := req.PriceLevel
	if level == 0 {
		level = defaultPriceLevel
	}
	if !pricing.ValidLevel(level) {
		level = pricing.LevelRetail
	}
	return models.Draft{
		Kind:          req.Kind,
		PriceLevel:    level,
		OperatorID:    operatorID,
		Lines:         []models.LineItem{},
		Selections:    map[string]models.ComboSelection{},
		ExpandedLines: []int{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func GetDraft(db *mongo.Database) gin.HandlerFunc {
	return mutateDraft(db, "GET /api/drafts/:id", func(context.Context, *gin.Context, *draftSession) error {
		return nil
	})
}

func AddDraftLine(db *mongo.Database) gin.HandlerFunc {
	const route = "POST /api/drafts/:id/lines"
	return mutateDraft(db, route, func(ctx context.Context, c *gin.Context, s *draftSession) error {
		var req addLineRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			return bindError{Err: err}
		}

		productID, err := primitive.ObjectIDFromHex(req.ProductID)
		if err != nil {
			return statusError{Status: http.StatusBadRequest, Message: "invalid productId"}
		}

		product, err := findActiveProduct(ctx, db, productID)
		if errors.Is(err, errProductNotFound) {
			return statusError{Status: http.StatusNotFound, Message: "product not found"}
		}
		if err != nil {
			return err
		}

		unitPrice := pricing.UnitPrice(product, s.draft.Kind, s.draft.PriceLevel, req.Quantity)
		discount := decimal.Zero
		if req.Discount != nil {
			discount = *req.Discount
		}
		if err := pricing.ValidateDiscount(req.Quantity, unitPrice, discount); err != nil {
			return statusError{Status: http.StatusBadRequest, Message: err.Error()}
		}

		index := s.addLine(product, req.Quantity, unitPrice, discount)
		log.Printf("[%s] line %d added product=%s qty=%d combo=%t", route, index, product.ID.Hex(), req.Quantity, product.IsCombo)
		return nil
	})
}

func UpdateDraftLine(db *mongo.Database) gin.HandlerFunc {
	const route = "PATCH /api/drafts/:id/lines/:index"
	return mutateDraft(db, route, func(_ context.Context, c *gin.Context, s *draftSession) error {
		index, ok := indexParam(c, "index")
		if !ok {
			return statusError{Status: http.StatusBadRequest, Message: "invalid line index"}
		}

		var req updateLineRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			return bindError{Err: err}
		}
		if req.Quantity == nil && req.Discount == nil {
			return statusError{Status: http.StatusBadRequest, Message: "quantity or discount is required"}
		}

		line, ok := draftLines{draft: s.draft}.Line(index)
		if !ok {
			log.Printf("[%s] stale line index %d ignored", route, index)
			return nil
		}

		quantity := line.Quantity
		if req.Quantity != nil {
			quantity = *req.Quantity
		}
		discount := line.Discount
		if req.Discount != nil {
			discount = *req.Discount
		}
		if err := pricing.ValidateDiscount(quantity, line.UnitPrice, discount); err != nil {
			return statusError{Status: http.StatusBadRequest, Message: err.Error()}
		}

		s.setDiscount(index, discount)
		s.rec.OnQuantityChanged(index, quantity)
		return nil
	})
}

func RemoveDraftLine(db *mongo.Database) gin.HandlerFunc {
	const route = "DELETE /api/drafts/:id/lines/:index"
	return mutateDraft(db, route, func(_ context.Context, c *gin.Context, s *draftSession) error {
		index, ok := indexParam(c, "index")
		if !ok {
			return statusError{Status: http.StatusBadRequest, Message: "invalid line index"}
		}
		if !s.removeLine(index) {
			log.Printf("[%s] stale line index %d ignored", route, index)
		}
		return nil
	})
}

func ExpandDraftLine(db *mongo.Database) gin.HandlerFunc {
	return mutateDraft(db, "POST /api/drafts/:id/lines/:index/expand", func(_ context.Context, c *gin.Context, s *draftSession) error {
		index, ok := indexParam(c, "index")
		if !ok {
			return statusError{Status: http.StatusBadRequest, Message: "invalid line index"}
		}
		s.rec.ExpandCombo(index)
		return nil
	})
}

func CollapseDraftLine(db *mongo.Database) gin.HandlerFunc {
	return mutateDraft(db, "POST /api/drafts/:id/lines/:index/collapse", func(_ context.Context, c *gin.Context, s *draftSession) error {
		index, ok := indexParam(c, "index")
		if !ok {
			return statusError{Status: http.StatusBadRequest, Message: "invalid line index"}
		}
		s.rec.CollapseCombo(index)
		return nil
	})
}

// EditComboComponent toggles and/or retypes the quantity of one component
// row. A quantity that does not parse is dropped and the row keeps its
// previous value.
func EditComboComponent(db *mongo.Database) gin.HandlerFunc {
	const route = "PATCH /api/drafts/:id/combos/:productId/components/:component"
	return mutateDraft(db, route, func(_ context.Context, c *gin.Context, s *draftSession) error {
		comboID, ok := objectIDParam(c, "productId")
		if !ok {
			return statusError{Status: http.StatusBadRequest, Message: "invalid productId"}
		}
		component, ok := indexParam(c, "component")
		if !ok {
			return statusError{Status: http.StatusBadRequest, Message: "invalid component index"}
		}

		var req componentEditRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			return bindError{Err: err}
		}
		hasQuantity := len(bytes.TrimSpace(req.Quantity)) > 0
		if req.Included == nil && !hasQuantity {
			return statusError{Status: http.StatusBadRequest, Message: "included or quantity is required"}
		}

		key := comboID.Hex()
		if req.Included != nil {
			s.rec.OnComponentToggled(key, component, *req.Included)
		}
		if hasQuantity {
			raw, _ := quantityText(req.Quantity)
			if !s.rec.OnComponentQuantityEdited(key, component, raw) {
				log.Printf("[%s] quantity %s rejected for combo=%s component=%d", route, string(req.Quantity), key, component)
			}
		}
		return nil
	})
}

// quantityText turns a JSON string or number into the text the operator
// typed. Anything else yields an empty string, which never parses.
func quantityText(raw json.RawMessage) (string, bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return "", false
	}
	if trimmed[0] == '"' {
		var text string
		if err := json.Unmarshal(trimmed, &text); err != nil {
			return "", false
		}
		return text, true
	}
	var number json.Number
	if err := json.Unmarshal(trimmed, &number); err != nil {
		return "", false
	}
	return number.String(), true
}

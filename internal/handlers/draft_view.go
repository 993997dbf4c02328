package handlers

import (
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"pos-backend/internal/combo"
	"pos-backend/internal/models"
	"pos-backend/internal/pricing"
)

type componentView struct {
	Index          int                `json:"index"`
	ProductID      primitive.ObjectID `json:"productId"`
	ProductName    string             `json:"productName"`
	SKU            string             `json:"sku,omitempty"`
	BaseQuantity   decimal.Decimal    `json:"baseQuantity"`
	Quantity       decimal.Decimal    `json:"quantity"`
	Included       bool               `json:"included"`
	IsMandatory    bool               `json:"isMandatory"`
	StockAvailable decimal.Decimal    `json:"stockAvailable"`
	StockTotal     decimal.Decimal    `json:"stockTotal"`
	StockShort     bool               `json:"stockShort"`
}

type lineView struct {
	models.LineItem
	Index      int             `json:"index"`
	Expanded   bool            `json:"expanded"`
	Components []componentView `json:"components,omitempty"`
}

type draftView struct {
	ID         primitive.ObjectID `json:"id"`
	Kind       string             `json:"kind"`
	PriceLevel int                `json:"priceLevel"`
	Version    int64              `json:"version"`
	Lines      []lineView         `json:"lines"`
	Totals     pricing.Totals     `json:"totals"`
	UpdatedAt  time.Time          `json:"updatedAt"`
}

// buildDraftView renders a draft for the entry grid. Only expanded combo
// lines list their component rows.
func buildDraftView(draft *models.Draft, state combo.State) draftView {
	view := draftView{
		ID:         draft.ID,
		Kind:       draft.Kind,
		PriceLevel: draft.PriceLevel,
		Version:    draft.Version,
		Lines:      make([]lineView, 0, len(draft.Lines)),
		Totals:     pricing.DocumentTotals(draft.Lines),
		UpdatedAt:  draft.UpdatedAt,
	}

	for i, line := range draft.Lines {
		lv := lineView{LineItem: line, Index: i}
		if line.IsCombo() && state.Expanded[i] {
			lv.Expanded = true
			if sel, ok := state.Selection(line.ComboKey()); ok {
				lv.Components = componentRows(sel)
			}
		}
		view.Lines = append(view.Lines, lv)
	}
	return view
}

func componentRows(sel models.ComboSelection) []componentView {
	rows := make([]componentView, 0, len(sel.Items))
	for i, item := range sel.Items {
		c := item.Component
		rows = append(rows, componentView{
			Index:          i,
			ProductID:      c.ProductID,
			ProductName:    c.ProductName,
			SKU:            c.SKU,
			BaseQuantity:   c.BaseQuantity,
			Quantity:       item.Quantity,
			Included:       item.Included,
			IsMandatory:    c.IsMandatory,
			StockAvailable: c.StockAvailable,
			StockTotal:     c.StockTotal,
			StockShort:     item.Quantity.GreaterThan(c.StockAvailable),
		})
	}
	return rows
}

// Package combo keeps the component selection of combo line items consistent
// with the line quantities while a sale or purchase document is being edited.
//
// All transitions go through Reduce, a pure function over State. Selection
// state is keyed by combo product id; expansion flags are keyed by line index.
package combo

import (
	"sort"

	"github.com/shopspring/decimal"

	"pos-backend/internal/models"
)

// quantityScale bounds the decimals kept after proportional scaling.
const quantityScale = 4

// State is the whole reconciler state. Transitions never mutate a State in
// place; they return a replacement.
type State struct {
	Selections map[string]models.ComboSelection
	Expanded   map[int]bool
}

func NewState() State {
	return State{
		Selections: map[string]models.ComboSelection{},
		Expanded:   map[int]bool{},
	}
}

// StateFromDraft rebuilds the reconciler state persisted on a draft.
func StateFromDraft(selections map[string]models.ComboSelection, expanded []int) State {
	s := NewState()
	for key, sel := range selections {
		s.Selections[key] = sel.Clone()
	}
	for _, idx := range expanded {
		s.Expanded[idx] = true
	}
	return s
}

// ExpandedLines returns the expanded line indexes in ascending order.
func (s State) ExpandedLines() []int {
	out := make([]int, 0, len(s.Expanded))
	for idx, open := range s.Expanded {
		if open {
			out = append(out, idx)
		}
	}
	sort.Ints(out)
	return out
}

// Selection returns the selection for a combo product, if any.
func (s State) Selection(comboProductID string) (models.ComboSelection, bool) {
	sel, ok := s.Selections[comboProductID]
	return sel, ok
}

func (s State) copyMaps() State {
	next := State{
		Selections: make(map[string]models.ComboSelection, len(s.Selections)),
		Expanded:   make(map[int]bool, len(s.Expanded)),
	}
	for k, v := range s.Selections {
		next.Selections[k] = v
	}
	for k, v := range s.Expanded {
		next.Expanded[k] = v
	}
	return next
}

// Lines is the read side of the parent order-line collection.
type Lines interface {
	Len() int
	Line(index int) (models.LineItem, bool)
}

// seedSelection builds the first selection for a combo line. A selection
// already carried by the line (comboItemsSeleccionados) wins over defaults;
// mandatory components are always included.
func seedSelection(line models.LineItem) models.ComboSelection {
	sel := models.ComboSelection{
		ComboProductID: line.ComboKey(),
		ComboQuantity:  line.Quantity,
		Items:          make([]models.ComboItemState, 0, len(line.Product.ComboItems)),
	}

	carried := make(map[string]models.ComboItemState, len(line.ComboItemsSeleccionados))
	for _, item := range line.ComboItemsSeleccionados {
		carried[item.Component.ProductID.Hex()] = item
	}

	qty := decimal.NewFromInt(int64(line.Quantity))
	for _, component := range line.Product.ComboItems {
		item := models.ComboItemState{
			Component: component,
			Included:  component.IsMandatory,
			Quantity:  qty.Mul(component.BaseQuantity),
		}
		if prev, ok := carried[component.ProductID.Hex()]; ok {
			item.Included = prev.Included || component.IsMandatory
			if !prev.Quantity.IsNegative() {
				item.Quantity = prev.Quantity
			}
		}
		sel.Items = append(sel.Items, item)
	}
	return sel
}

// rescale returns the component quantity for a combo quantity change from
// oldQty to newQty. A quantity that no longer matches its natural value was
// edited by hand and keeps its ratio to the natural value.
func rescale(item models.ComboItemState, oldQty, newQty int) decimal.Decimal {
	base := item.Component.BaseQuantity
	natural := decimal.NewFromInt(int64(newQty)).Mul(base)
	previous := decimal.NewFromInt(int64(oldQty)).Mul(base)

	if previous.IsZero() || item.Quantity.Equal(previous) {
		return natural
	}
	return natural.Mul(item.Quantity).DivRound(previous, quantityScale)
}

package combo

import (
	"github.com/shopspring/decimal"

	"pos-backend/internal/pricing"
)

// Field names a line-item field the reconciler writes through the parent.
type Field string

const (
	FieldQuantity Field = "quantity"
	FieldSubtotal Field = "subtotal"
)

// LineChange is one write into the parent line collection.
type LineChange struct {
	Index int
	Field Field
	Value decimal.Decimal
}

// Action is an edit coming from the entry grid.
type Action interface {
	Name() string
}

// LineAdded seeds the selection of a freshly added combo line.
type LineAdded struct {
	Index int
}

// QuantityChanged sets the quantity of the line at Index.
type QuantityChanged struct {
	Index    int
	Quantity int
}

// ComponentToggled includes or excludes an optional component.
type ComponentToggled struct {
	ComboProductID string
	Component      int
	Included       bool
}

// ComponentQuantityEdited overrides a component quantity by hand.
type ComponentQuantityEdited struct {
	ComboProductID string
	Component      int
	Quantity       decimal.Decimal
}

// Expanded opens the component breakdown of the line at Index.
type Expanded struct {
	Index int
}

// Collapsed closes the component breakdown of the line at Index.
type Collapsed struct {
	Index int
}

// LineRemoved reports that the line at Index is gone. Lines handed to Reduce
// must already reflect the removal; ComboProductID is the removed line's
// combo key, empty for simple products.
type LineRemoved struct {
	Index          int
	ComboProductID string
}

func (LineAdded) Name() string               { return "line_added" }
func (QuantityChanged) Name() string         { return "quantity_changed" }
func (ComponentToggled) Name() string        { return "component_toggled" }
func (ComponentQuantityEdited) Name() string { return "component_quantity_edited" }
func (Expanded) Name() string                { return "expanded" }
func (Collapsed) Name() string               { return "collapsed" }
func (LineRemoved) Name() string             { return "line_removed" }

// Result is the outcome of one transition.
type Result struct {
	State   State
	Changes []LineChange
	// Touched lists combo product ids whose selection was written.
	Touched []string
	// Dropped lists combo product ids whose selection was discarded.
	Dropped []string
	// Expansion is set when expansion flags moved.
	Expansion bool
}

// Changed reports whether the transition did anything at all.
func (r Result) Changed() bool {
	return len(r.Changes) > 0 || len(r.Touched) > 0 || len(r.Dropped) > 0 || r.Expansion
}

// Reduce applies one action to state. It never mutates state; invalid or
// stale input (unknown index, mandatory toggle, negative quantity) returns the
// state unchanged.
func Reduce(state State, lines Lines, action Action) Result {
	switch a := action.(type) {
	case LineAdded:
		return reduceLineAdded(state, lines, a)
	case QuantityChanged:
		return reduceQuantityChanged(state, lines, a)
	case ComponentToggled:
		return reduceComponentToggled(state, a)
	case ComponentQuantityEdited:
		return reduceComponentQuantityEdited(state, a)
	case Expanded:
		return reduceExpanded(state, lines, a)
	case Collapsed:
		return reduceCollapsed(state, a)
	case LineRemoved:
		return reduceLineRemoved(state, lines, a)
	}
	return Result{State: state}
}

func reduceLineAdded(state State, lines Lines, a LineAdded) Result {
	line, ok := lines.Line(a.Index)
	if !ok || !line.IsCombo() {
		return Result{State: state}
	}
	key := line.ComboKey()
	if _, exists := state.Selections[key]; exists {
		return Result{State: state}
	}
	next := state.copyMaps()
	next.Selections[key] = seedSelection(line)
	return Result{State: next, Touched: []string{key}}
}

func reduceQuantityChanged(state State, lines Lines, a QuantityChanged) Result {
	line, ok := lines.Line(a.Index)
	if !ok || a.Quantity < 0 || a.Quantity == line.Quantity {
		return Result{State: state}
	}

	res := Result{
		State: state,
		Changes: []LineChange{
			{Index: a.Index, Field: FieldQuantity, Value: decimal.NewFromInt(int64(a.Quantity))},
			{Index: a.Index, Field: FieldSubtotal, Value: pricing.LineSubtotal(a.Quantity, line.UnitPrice, line.Discount)},
		},
	}
	if !line.IsCombo() {
		return res
	}

	key := line.ComboKey()
	sel, exists := state.Selections[key]
	if exists {
		sel = sel.Clone()
	} else {
		sel = seedSelection(line)
	}

	for i, item := range sel.Items {
		sel.Items[i].Quantity = rescale(item, sel.ComboQuantity, a.Quantity)
	}
	sel.ComboQuantity = a.Quantity

	next := state.copyMaps()
	next.Selections[key] = sel
	res.State = next
	res.Touched = []string{key}
	return res
}

func reduceComponentToggled(state State, a ComponentToggled) Result {
	sel, ok := state.Selections[a.ComboProductID]
	if !ok || a.Component < 0 || a.Component >= len(sel.Items) {
		return Result{State: state}
	}
	item := sel.Items[a.Component]
	if item.Component.IsMandatory || item.Included == a.Included {
		return Result{State: state}
	}

	sel = sel.Clone()
	sel.Items[a.Component].Included = a.Included

	next := state.copyMaps()
	next.Selections[a.ComboProductID] = sel
	return Result{State: next, Touched: []string{a.ComboProductID}}
}

func reduceComponentQuantityEdited(state State, a ComponentQuantityEdited) Result {
	sel, ok := state.Selections[a.ComboProductID]
	if !ok || a.Component < 0 || a.Component >= len(sel.Items) || a.Quantity.IsNegative() {
		return Result{State: state}
	}
	if sel.Items[a.Component].Quantity.Equal(a.Quantity) {
		return Result{State: state}
	}

	sel = sel.Clone()
	sel.Items[a.Component].Quantity = a.Quantity

	next := state.copyMaps()
	next.Selections[a.ComboProductID] = sel
	return Result{State: next, Touched: []string{a.ComboProductID}}
}

func reduceExpanded(state State, lines Lines, a Expanded) Result {
	line, ok := lines.Line(a.Index)
	if !ok || !line.IsCombo() {
		return Result{State: state}
	}

	key := line.ComboKey()
	_, seeded := state.Selections[key]
	if state.Expanded[a.Index] && seeded {
		return Result{State: state}
	}

	next := state.copyMaps()
	next.Expanded[a.Index] = true
	res := Result{State: next, Expansion: !state.Expanded[a.Index]}
	if !seeded {
		next.Selections[key] = seedSelection(line)
		res.Touched = []string{key}
	}
	return res
}

func reduceCollapsed(state State, a Collapsed) Result {
	if !state.Expanded[a.Index] {
		return Result{State: state}
	}
	next := state.copyMaps()
	delete(next.Expanded, a.Index)
	return Result{State: next, Expansion: true}
}

func reduceLineRemoved(state State, lines Lines, a LineRemoved) Result {
	if a.Index < 0 {
		return Result{State: state}
	}

	next := state.copyMaps()
	next.Expanded = make(map[int]bool, len(state.Expanded))
	moved := false
	for idx, open := range state.Expanded {
		switch {
		case idx < a.Index:
			next.Expanded[idx] = open
		case idx > a.Index:
			next.Expanded[idx-1] = open
			moved = true
		default:
			moved = true
		}
	}

	res := Result{State: next, Expansion: moved}
	if a.ComboProductID == "" {
		return res
	}
	if idx, ok := firstReference(lines, a.ComboProductID); ok {
		sel, exists := next.Selections[a.ComboProductID]
		if !exists || sel.ComboQuantity > 0 {
			return res
		}
		// A selection computed at quantity zero has no ratio left to keep;
		// rebase it on the surviving line.
		line, _ := lines.Line(idx)
		sel = sel.Clone()
		for i, item := range sel.Items {
			sel.Items[i].Quantity = rescale(item, 0, line.Quantity)
		}
		sel.ComboQuantity = line.Quantity
		next.Selections[a.ComboProductID] = sel
		res.Touched = []string{a.ComboProductID}
		return res
	}
	if _, ok := next.Selections[a.ComboProductID]; ok {
		delete(next.Selections, a.ComboProductID)
		res.Dropped = []string{a.ComboProductID}
	}
	return res
}

func firstReference(lines Lines, comboProductID string) (int, bool) {
	for i := 0; i < lines.Len(); i++ {
		line, ok := lines.Line(i)
		if ok && line.IsCombo() && line.ComboKey() == comboProductID {
			return i, true
		}
	}
	return -1, false
}

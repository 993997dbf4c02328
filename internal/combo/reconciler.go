package combo

import (
	"strings"

	"github.com/shopspring/decimal"

	"pos-backend/internal/models"
)

// LineStore is the parent order-line collection. The reconciler reads lines
// through it and writes quantity/subtotal changes back with UpdateLine; it
// never owns the collection.
type LineStore interface {
	Lines
	UpdateLine(index int, field Field, value decimal.Decimal)
}

// SelectionChange is handed to the listener whenever a selection is written
// or discarded.
type SelectionChange struct {
	ComboProductID string
	Selection      models.ComboSelection
	Removed        bool
}

type Listener func(SelectionChange)

type Option func(*Reconciler)

// WithState starts the reconciler from previously persisted state.
func WithState(s State) Option {
	return func(r *Reconciler) {
		r.state = s
	}
}

// WithListener registers the selection change callback.
func WithListener(l Listener) Option {
	return func(r *Reconciler) {
		r.listener = l
	}
}

// WithObserver registers a callback receiving the name of every applied
// action that changed something.
func WithObserver(fn func(action string)) Option {
	return func(r *Reconciler) {
		r.observer = fn
	}
}

// Reconciler applies entry-grid edits to combo selection state. It is not
// safe for concurrent use; callers serialize edits per document.
type Reconciler struct {
	state    State
	lines    LineStore
	listener Listener
	observer func(string)
}

func New(lines LineStore, opts ...Option) *Reconciler {
	r := &Reconciler{
		state: NewState(),
		lines: lines,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.state.Selections == nil || r.state.Expanded == nil {
		r.state = r.state.copyMaps()
	}
	return r
}

// State returns the current state. Treat it as read-only.
func (r *Reconciler) State() State {
	return r.state
}

func (r *Reconciler) IsExpanded(lineIndex int) bool {
	return r.state.Expanded[lineIndex]
}

// SelectedItems returns the included components of a combo, the shape sent
// as comboItemsSeleccionados with a submitted order.
func (r *Reconciler) SelectedItems(comboProductID string) []models.ComboItemState {
	sel, ok := r.state.Selections[comboProductID]
	if !ok {
		return nil
	}
	out := make([]models.ComboItemState, 0, len(sel.Items))
	for _, item := range sel.Items {
		if item.Included {
			out = append(out, item)
		}
	}
	return out
}

func (r *Reconciler) OnLineAdded(lineIndex int) {
	r.dispatch(LineAdded{Index: lineIndex})
}

func (r *Reconciler) OnQuantityChanged(lineIndex, newQuantity int) {
	r.dispatch(QuantityChanged{Index: lineIndex, Quantity: newQuantity})
}

// OnComponentToggled is ignored for mandatory components.
func (r *Reconciler) OnComponentToggled(comboProductID string, componentIndex int, included bool) {
	r.dispatch(ComponentToggled{ComboProductID: comboProductID, Component: componentIndex, Included: included})
}

// OnComponentQuantityEdited takes the raw text typed into the quantity field.
// It reports false when the input was rejected and the field should revert.
func (r *Reconciler) OnComponentQuantityEdited(comboProductID string, componentIndex int, raw string) bool {
	qty, ok := ParseQuantity(raw)
	if !ok {
		return false
	}
	r.dispatch(ComponentQuantityEdited{ComboProductID: comboProductID, Component: componentIndex, Quantity: qty})
	return true
}

func (r *Reconciler) ExpandCombo(lineIndex int) {
	r.dispatch(Expanded{Index: lineIndex})
}

func (r *Reconciler) CollapseCombo(lineIndex int) {
	r.dispatch(Collapsed{Index: lineIndex})
}

// OnLineRemoved must be called after the parent dropped removed from its
// collection.
func (r *Reconciler) OnLineRemoved(lineIndex int, removed models.LineItem) {
	key := ""
	if removed.IsCombo() {
		key = removed.ComboKey()
	}
	r.dispatch(LineRemoved{Index: lineIndex, ComboProductID: key})
}

func (r *Reconciler) dispatch(action Action) {
	res := Reduce(r.state, r.lines, action)
	r.state = res.State

	for _, change := range res.Changes {
		r.lines.UpdateLine(change.Index, change.Field, change.Value)
	}

	if r.listener != nil {
		for _, key := range res.Touched {
			r.listener(SelectionChange{ComboProductID: key, Selection: r.state.Selections[key].Clone()})
		}
		for _, key := range res.Dropped {
			r.listener(SelectionChange{ComboProductID: key, Removed: true})
		}
	}

	if r.observer != nil && res.Changed() {
		r.observer(action.Name())
	}
}

// ParseQuantity reads a component quantity typed by the operator. Both "."
// and "," are accepted as decimal separator; empty, non-numeric and negative
// input is rejected.
func ParseQuantity(raw string) (decimal.Decimal, bool) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return decimal.Zero, false
	}
	if !strings.Contains(value, ".") {
		value = strings.Replace(value, ",", ".", 1)
	}
	qty, err := decimal.NewFromString(value)
	if err != nil || qty.IsNegative() {
		return decimal.Zero, false
	}
	return qty, true
}

package handlers

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"pos-backend/internal/combo"
	"pos-backend/internal/metrics"
	"pos-backend/internal/models"
	"pos-backend/internal/pricing"
)

// draftLines exposes the lines of a draft to the combo reconciler.
type draftLines struct {
	draft *models.Draft
}

func (d draftLines) Len() int {
	return len(d.draft.Lines)
}

func (d draftLines) Line(index int) (models.LineItem, bool) {
	if index < 0 || index >= len(d.draft.Lines) {
		return models.LineItem{}, false
	}
	return d.draft.Lines[index], true
}

func (d draftLines) UpdateLine(index int, field combo.Field, value decimal.Decimal) {
	if index < 0 || index >= len(d.draft.Lines) {
		return
	}
	switch field {
	case combo.FieldQuantity:
		d.draft.Lines[index].Quantity = int(value.IntPart())
	case combo.FieldSubtotal:
		d.draft.Lines[index].Subtotal = value
	}
}

// draftSession is one edit of a draft: the reconciler rebuilt from the
// persisted state, plus whether anything needs saving.
type draftSession struct {
	draft   *models.Draft
	rec     *combo.Reconciler
	changed bool
}

func newDraftSession(draft *models.Draft) *draftSession {
	s := &draftSession{draft: draft}
	s.rec = combo.New(
		draftLines{draft: draft},
		combo.WithState(combo.StateFromDraft(draft.Selections, draft.ExpandedLines)),
		combo.WithListener(s.syncSelection),
		combo.WithObserver(s.observe),
	)
	return s
}

func (s *draftSession) observe(action string) {
	s.changed = true
	metrics.RecordComboOperation(action)
}

// syncSelection copies a selection onto every line of that combo product so
// the line carries it when the draft is reopened or submitted.
func (s *draftSession) syncSelection(change combo.SelectionChange) {
	for i := range s.draft.Lines {
		line := &s.draft.Lines[i]
		if !line.IsCombo() || line.ComboKey() != change.ComboProductID {
			continue
		}
		if change.Removed {
			line.ComboItemsSeleccionados = nil
			continue
		}
		line.ComboItemsSeleccionados = change.Selection.Clone().Items
	}
}

// commit writes the reconciler state back onto the draft.
func (s *draftSession) commit() {
	state := s.rec.State()
	selections := make(map[string]models.ComboSelection, len(state.Selections))
	for key, sel := range state.Selections {
		selections[key] = sel.Clone()
	}
	s.draft.Selections = selections
	s.draft.ExpandedLines = state.ExpandedLines()
}

func (s *draftSession) addLine(product models.Product, quantity int, unitPrice, discount decimal.Decimal) int {
	line := models.LineItem{
		ID:        uuid.NewString(),
		ProductID: product.ID,
		Quantity:  quantity,
		UnitPrice: unitPrice,
		Discount:  discount,
		Product:   product.Snapshot(),
	}
	line.Subtotal = lineSubtotal(line)
	s.draft.Lines = append(s.draft.Lines, line)
	s.changed = true

	index := len(s.draft.Lines) - 1
	s.rec.OnLineAdded(index)
	if line.IsCombo() {
		// a second line of an already selected combo shares its selection
		if sel, ok := s.rec.State().Selection(line.ComboKey()); ok {
			s.draft.Lines[index].ComboItemsSeleccionados = sel.Clone().Items
		}
	}
	return index
}

// setDiscount changes the discount of a line and refreshes its subtotal.
func (s *draftSession) setDiscount(index int, discount decimal.Decimal) {
	line := &s.draft.Lines[index]
	if line.Discount.Equal(discount) {
		return
	}
	line.Discount = discount
	line.Subtotal = lineSubtotal(*line)
	s.changed = true
}

func (s *draftSession) removeLine(index int) bool {
	if index < 0 || index >= len(s.draft.Lines) {
		return false
	}
	removed := s.draft.Lines[index]
	lines := make([]models.LineItem, 0, len(s.draft.Lines)-1)
	lines = append(lines, s.draft.Lines[:index]...)
	lines = append(lines, s.draft.Lines[index+1:]...)
	s.draft.Lines = lines
	s.changed = true

	s.rec.OnLineRemoved(index, removed)
	return true
}

// includedItems returns the components a submitted combo line carries.
func (s *draftSession) includedItems(line models.LineItem) []models.ComboItemState {
	if !line.IsCombo() {
		return nil
	}
	if _, ok := s.rec.State().Selection(line.ComboKey()); !ok {
		s.rec.OnLineAdded(indexOfLine(s.draft, line.ID))
	}
	return s.rec.SelectedItems(line.ComboKey())
}

func indexOfLine(draft *models.Draft, lineID string) int {
	for i, line := range draft.Lines {
		if line.ID == lineID {
			return i
		}
	}
	return -1
}

func lineSubtotal(line models.LineItem) decimal.Decimal {
	return pricing.LineSubtotal(line.Quantity, line.UnitPrice, line.Discount)
}

// comboQuantity is the combo quantity the selection of line was computed at.
func (s *draftSession) comboQuantity(line models.LineItem) int {
	if sel, ok := s.rec.State().Selection(line.ComboKey()); ok {
		return sel.ComboQuantity
	}
	return line.Quantity
}

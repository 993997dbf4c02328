package combo

import (
	"testing"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"pos-backend/internal/models"
)

type sliceLines struct {
	items   []models.LineItem
	updates []LineChange
}

func (s *sliceLines) Len() int { return len(s.items) }

func (s *sliceLines) Line(index int) (models.LineItem, bool) {
	if index < 0 || index >= len(s.items) {
		return models.LineItem{}, false
	}
	return s.items[index], true
}

func (s *sliceLines) UpdateLine(index int, field Field, value decimal.Decimal) {
	s.updates = append(s.updates, LineChange{Index: index, Field: field, Value: value})
	switch field {
	case FieldQuantity:
		s.items[index].Quantity = int(value.IntPart())
	case FieldSubtotal:
		s.items[index].Subtotal = value
	}
}

func (s *sliceLines) remove(index int) models.LineItem {
	removed := s.items[index]
	s.items = append(s.items[:index], s.items[index+1:]...)
	return removed
}

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

var (
	widgetID = primitive.NewObjectID()
	gadgetID = primitive.NewObjectID()
	packAID  = primitive.NewObjectID()
)

func packA() models.ProductSnapshot {
	return models.ProductSnapshot{
		ID:      packAID,
		Code:    "PACK-A",
		Name:    "Pack A",
		IsCombo: true,
		ComboItems: []models.ComboComponent{
			{ProductID: widgetID, ProductName: "Widget", BaseQuantity: d("1"), IsMandatory: true, StockAvailable: d("10")},
			{ProductID: gadgetID, ProductName: "Gadget", BaseQuantity: d("1"), IsMandatory: false, StockAvailable: d("10")},
		},
	}
}

func comboLine(product models.ProductSnapshot, qty int) models.LineItem {
	return models.LineItem{
		ProductID: product.ID,
		Quantity:  qty,
		UnitPrice: d("25"),
		Discount:  decimal.Zero,
		Subtotal:  d("25").Mul(decimal.NewFromInt(int64(qty))),
		Product:   product,
	}
}

func singleComponentCombo(base string) models.ProductSnapshot {
	return models.ProductSnapshot{
		ID:      primitive.NewObjectID(),
		Name:    "Duo",
		IsCombo: true,
		ComboItems: []models.ComboComponent{
			{ProductID: primitive.NewObjectID(), ProductName: "Part", BaseQuantity: d(base), IsMandatory: true},
		},
	}
}

func mustSelection(t *testing.T, r *Reconciler, key string) models.ComboSelection {
	t.Helper()
	sel, ok := r.State().Selection(key)
	if !ok {
		t.Fatalf("expected selection for %s", key)
	}
	return sel
}

func assertItem(t *testing.T, item models.ComboItemState, included bool, qty string) {
	t.Helper()
	if item.Included != included {
		t.Fatalf("%s: expected included=%v, got %v", item.Component.ProductName, included, item.Included)
	}
	if !item.Quantity.Equal(d(qty)) {
		t.Fatalf("%s: expected quantity %s, got %s", item.Component.ProductName, qty, item.Quantity)
	}
}

func TestScenarioExpandSeedsMandatoryOnly(t *testing.T) {
	lines := &sliceLines{items: []models.LineItem{comboLine(packA(), 1)}}
	r := New(lines)

	r.ExpandCombo(0)

	if !r.IsExpanded(0) {
		t.Fatal("expected line 0 to be expanded")
	}
	sel := mustSelection(t, r, packAID.Hex())
	if len(sel.Items) != 2 {
		t.Fatalf("expected 2 components, got %d", len(sel.Items))
	}
	assertItem(t, sel.Items[0], true, "1")
	assertItem(t, sel.Items[1], false, "1")
}

func TestScenarioToggleThenQuantityChange(t *testing.T) {
	lines := &sliceLines{items: []models.LineItem{comboLine(packA(), 1)}}
	r := New(lines)
	key := packAID.Hex()

	r.ExpandCombo(0)
	r.OnComponentToggled(key, 1, true)
	r.OnQuantityChanged(0, 4)

	sel := mustSelection(t, r, key)
	assertItem(t, sel.Items[0], true, "4")
	assertItem(t, sel.Items[1], true, "4")
	if lines.items[0].Quantity != 4 {
		t.Fatalf("expected line quantity 4, got %d", lines.items[0].Quantity)
	}
	if !lines.items[0].Subtotal.Equal(d("100")) {
		t.Fatalf("expected subtotal 100, got %s", lines.items[0].Subtotal)
	}
}

func TestScenarioManualEditScalesProportionally(t *testing.T) {
	lines := &sliceLines{items: []models.LineItem{comboLine(packA(), 1)}}
	r := New(lines)
	key := packAID.Hex()

	r.ExpandCombo(0)
	r.OnComponentToggled(key, 1, true)
	r.OnQuantityChanged(0, 4)
	if ok := r.OnComponentQuantityEdited(key, 1, "10"); !ok {
		t.Fatal("expected quantity 10 to be accepted")
	}
	r.OnQuantityChanged(0, 8)

	sel := mustSelection(t, r, key)
	assertItem(t, sel.Items[0], true, "8")
	assertItem(t, sel.Items[1], true, "20")
}

func TestQuantityChangeScalesNaturalQuantity(t *testing.T) {
	product := singleComponentCombo("2")
	lines := &sliceLines{items: []models.LineItem{comboLine(product, 1)}}
	r := New(lines)

	r.OnLineAdded(0)
	r.OnQuantityChanged(0, 3)

	sel := mustSelection(t, r, product.ID.Hex())
	assertItem(t, sel.Items[0], true, "6")
}

func TestQuantityChangeKeepsManualRatio(t *testing.T) {
	product := singleComponentCombo("2")
	lines := &sliceLines{items: []models.LineItem{comboLine(product, 1)}}
	r := New(lines)
	key := product.ID.Hex()

	r.OnLineAdded(0)
	r.OnComponentQuantityEdited(key, 0, "5")
	r.OnQuantityChanged(0, 2)

	sel := mustSelection(t, r, key)
	assertItem(t, sel.Items[0], true, "10")
}

func TestQuantityChangeNeverAltersIncludedFlags(t *testing.T) {
	lines := &sliceLines{items: []models.LineItem{comboLine(packA(), 1)}}
	r := New(lines)
	key := packAID.Hex()
	r.ExpandCombo(0)

	for _, toggled := range []bool{false, true} {
		r.OnComponentToggled(key, 1, toggled)
		before := mustSelection(t, r, key)
		for _, q := range []int{3, 0, 7, 7, 2} {
			r.OnQuantityChanged(0, q)
			after := mustSelection(t, r, key)
			for i := range before.Items {
				if before.Items[i].Included != after.Items[i].Included {
					t.Fatalf("component %d included flag changed on quantity %d", i, q)
				}
			}
		}
	}
}

func TestMandatoryComponentCannotBeExcluded(t *testing.T) {
	lines := &sliceLines{items: []models.LineItem{comboLine(packA(), 1)}}
	r := New(lines)
	key := packAID.Hex()
	r.ExpandCombo(0)

	r.OnComponentToggled(key, 0, false)

	sel := mustSelection(t, r, key)
	if !sel.Items[0].Included {
		t.Fatal("expected mandatory component to stay included")
	}
}

func TestCarriedSelectionSeedsStateAndKeepsMandatoryIncluded(t *testing.T) {
	line := comboLine(packA(), 2)
	line.ComboItemsSeleccionados = []models.ComboItemState{
		{Component: models.ComboComponent{ProductID: widgetID}, Included: false, Quantity: d("2")},
		{Component: models.ComboComponent{ProductID: gadgetID}, Included: true, Quantity: d("5")},
	}
	lines := &sliceLines{items: []models.LineItem{line}}
	r := New(lines)

	r.ExpandCombo(0)

	sel := mustSelection(t, r, packAID.Hex())
	assertItem(t, sel.Items[0], true, "2")
	assertItem(t, sel.Items[1], true, "5")
}

func TestSameComboOnTwoLinesSharesSelection(t *testing.T) {
	lines := &sliceLines{items: []models.LineItem{comboLine(packA(), 1), comboLine(packA(), 1)}}
	r := New(lines)
	key := packAID.Hex()

	r.ExpandCombo(0)
	r.OnComponentToggled(key, 1, true)
	r.ExpandCombo(1)

	if len(r.State().Selections) != 1 {
		t.Fatalf("expected one shared selection, got %d", len(r.State().Selections))
	}
	sel := mustSelection(t, r, key)
	if !sel.Items[1].Included {
		t.Fatal("expected edit through line 0 to be visible from line 1")
	}
	if !r.IsExpanded(0) || !r.IsExpanded(1) {
		t.Fatal("expected expansion to be tracked per line")
	}
}

func TestRepeatedQuantityChangeIsIdempotent(t *testing.T) {
	lines := &sliceLines{items: []models.LineItem{comboLine(packA(), 1)}}
	r := New(lines)
	key := packAID.Hex()
	r.ExpandCombo(0)
	r.OnComponentQuantityEdited(key, 1, "3")

	r.OnQuantityChanged(0, 5)
	once := mustSelection(t, r, key)
	updates := len(lines.updates)

	r.OnQuantityChanged(0, 5)
	twice := mustSelection(t, r, key)

	if len(lines.updates) != updates {
		t.Fatal("expected second call with the same quantity to be a no-op")
	}
	for i := range once.Items {
		if !once.Items[i].Quantity.Equal(twice.Items[i].Quantity) || once.Items[i].Included != twice.Items[i].Included {
			t.Fatalf("component %d differs after repeated call", i)
		}
	}
}

func TestQuantityWrittenOncePerChange(t *testing.T) {
	lines := &sliceLines{items: []models.LineItem{comboLine(packA(), 1)}}
	r := New(lines)
	r.ExpandCombo(0)

	r.OnQuantityChanged(0, 3)

	writes := 0
	for _, u := range lines.updates {
		if u.Field == FieldQuantity {
			writes++
		}
	}
	if writes != 1 {
		t.Fatalf("expected a single quantity write, got %d", writes)
	}
}

func TestQuantityBackFromZeroFallsBackToNatural(t *testing.T) {
	product := singleComponentCombo("2")
	lines := &sliceLines{items: []models.LineItem{comboLine(product, 1)}}
	r := New(lines)
	key := product.ID.Hex()
	r.OnLineAdded(0)
	r.OnComponentQuantityEdited(key, 0, "5")

	r.OnQuantityChanged(0, 0)
	r.OnQuantityChanged(0, 3)

	sel := mustSelection(t, r, key)
	assertItem(t, sel.Items[0], true, "6")
}

func TestSimpleLineQuantityChangeFallsThrough(t *testing.T) {
	simple := models.LineItem{ProductID: primitive.NewObjectID(), Quantity: 1, UnitPrice: d("3.5"), Discount: d("1")}
	lines := &sliceLines{items: []models.LineItem{simple}}
	r := New(lines)

	r.OnQuantityChanged(0, 4)

	if lines.items[0].Quantity != 4 {
		t.Fatalf("expected quantity 4, got %d", lines.items[0].Quantity)
	}
	if !lines.items[0].Subtotal.Equal(d("13")) {
		t.Fatalf("expected subtotal 13, got %s", lines.items[0].Subtotal)
	}
	if len(r.State().Selections) != 0 {
		t.Fatal("expected no selection for a simple product")
	}
}

func TestStaleInputIsIgnored(t *testing.T) {
	lines := &sliceLines{items: []models.LineItem{comboLine(packA(), 1)}}
	r := New(lines)
	key := packAID.Hex()
	r.ExpandCombo(0)
	before := mustSelection(t, r, key)

	r.OnQuantityChanged(5, 3)
	r.OnQuantityChanged(0, -1)
	r.OnComponentToggled(key, 9, true)
	r.OnComponentToggled("missing", 1, true)
	r.ExpandCombo(7)

	if len(lines.updates) != 0 {
		t.Fatalf("expected no line writes, got %d", len(lines.updates))
	}
	after := mustSelection(t, r, key)
	for i := range before.Items {
		if before.Items[i].Included != after.Items[i].Included || !before.Items[i].Quantity.Equal(after.Items[i].Quantity) {
			t.Fatalf("component %d changed on stale input", i)
		}
	}
}

func TestInvalidComponentQuantityReverts(t *testing.T) {
	lines := &sliceLines{items: []models.LineItem{comboLine(packA(), 2)}}
	r := New(lines)
	key := packAID.Hex()
	r.ExpandCombo(0)

	for _, raw := range []string{"", "abc", "-1", "1..2"} {
		if r.OnComponentQuantityEdited(key, 1, raw) {
			t.Fatalf("expected %q to be rejected", raw)
		}
	}
	sel := mustSelection(t, r, key)
	assertItem(t, sel.Items[1], false, "2")
}

func TestParseQuantity(t *testing.T) {
	tests := map[string]string{
		"2":     "2",
		" 2.5 ": "2.5",
		"2,5":   "2.5",
		"0":     "0",
	}
	for raw, want := range tests {
		got, ok := ParseQuantity(raw)
		if !ok {
			t.Fatalf("expected %q to parse", raw)
		}
		if !got.Equal(d(want)) {
			t.Fatalf("%q: expected %s, got %s", raw, want, got)
		}
	}
}

func TestLineRemovalKeepsSharedSelectionAndShiftsExpansion(t *testing.T) {
	simple := models.LineItem{ProductID: primitive.NewObjectID(), Quantity: 1, UnitPrice: d("1")}
	lines := &sliceLines{items: []models.LineItem{simple, comboLine(packA(), 1), comboLine(packA(), 2)}}
	var changes []SelectionChange
	r := New(lines, WithListener(func(c SelectionChange) { changes = append(changes, c) }))
	key := packAID.Hex()

	r.ExpandCombo(2)
	removed := lines.remove(1)
	r.OnLineRemoved(1, removed)

	if _, ok := r.State().Selection(key); !ok {
		t.Fatal("expected selection to survive while another line references the combo")
	}
	if !r.IsExpanded(1) || r.IsExpanded(2) {
		t.Fatalf("expected expansion to shift from 2 to 1, got %v", r.State().ExpandedLines())
	}

	removed = lines.remove(1)
	r.OnLineRemoved(1, removed)

	if _, ok := r.State().Selection(key); ok {
		t.Fatal("expected selection to be discarded with its last line")
	}
	if r.IsExpanded(1) {
		t.Fatal("expected expansion flag of the removed line to be dropped")
	}
	last := changes[len(changes)-1]
	if !last.Removed || last.ComboProductID != key {
		t.Fatalf("expected removal notification for %s, got %+v", key, last)
	}
}

func TestLineRemovalRebasesSelectionLeftAtZero(t *testing.T) {
	lines := &sliceLines{items: []models.LineItem{comboLine(packA(), 2), comboLine(packA(), 3)}}
	var changes []SelectionChange
	r := New(lines, WithListener(func(c SelectionChange) { changes = append(changes, c) }))
	key := packAID.Hex()

	r.OnLineAdded(0)
	r.OnComponentToggled(key, 1, true)
	r.OnQuantityChanged(1, 0)
	sel := mustSelection(t, r, key)
	if sel.ComboQuantity != 0 {
		t.Fatalf("expected selection at quantity 0, got %d", sel.ComboQuantity)
	}

	removed := lines.remove(1)
	r.OnLineRemoved(1, removed)

	sel = mustSelection(t, r, key)
	if sel.ComboQuantity != 2 {
		t.Fatalf("expected selection rebased to 2, got %d", sel.ComboQuantity)
	}
	assertItem(t, sel.Items[0], true, "2")
	assertItem(t, sel.Items[1], true, "2")

	last := changes[len(changes)-1]
	if last.Removed || last.ComboProductID != key || last.Selection.ComboQuantity != 2 {
		t.Fatalf("expected rebased selection to be published, got %+v", last)
	}
}

func TestListenerReceivesSelection(t *testing.T) {
	lines := &sliceLines{items: []models.LineItem{comboLine(packA(), 1)}}
	var got []SelectionChange
	r := New(lines, WithListener(func(c SelectionChange) { got = append(got, c) }))

	r.ExpandCombo(0)
	r.CollapseCombo(0)
	r.OnQuantityChanged(0, 2)

	if len(got) != 2 {
		t.Fatalf("expected 2 notifications (seed, quantity), got %d", len(got))
	}
	if got[1].Selection.ComboQuantity != 2 {
		t.Fatalf("expected combo quantity 2 in notification, got %d", got[1].Selection.ComboQuantity)
	}
	if r.IsExpanded(0) {
		t.Fatal("expected line 0 to be collapsed")
	}
}

func TestSelectedItemsListsIncludedOnly(t *testing.T) {
	lines := &sliceLines{items: []models.LineItem{comboLine(packA(), 1)}}
	r := New(lines)
	r.OnLineAdded(0)

	items := r.SelectedItems(packAID.Hex())
	if len(items) != 1 || items[0].Component.ProductID != widgetID {
		t.Fatalf("expected only the mandatory widget, got %+v", items)
	}
}

func TestReduceDoesNotMutateInputState(t *testing.T) {
	lines := &sliceLines{items: []models.LineItem{comboLine(packA(), 1)}}
	start := Reduce(NewState(), lines, Expanded{Index: 0}).State
	key := packAID.Hex()

	next := Reduce(start, lines, ComponentToggled{ComboProductID: key, Component: 1, Included: true}).State

	if start.Selections[key].Items[1].Included {
		t.Fatal("expected original state to be left untouched")
	}
	if !next.Selections[key].Items[1].Included {
		t.Fatal("expected new state to carry the toggle")
	}
}

func TestObserverSeesOnlyEffectiveActions(t *testing.T) {
	lines := &sliceLines{items: []models.LineItem{comboLine(packA(), 1)}}
	var seen []string
	r := New(lines, WithObserver(func(name string) { seen = append(seen, name) }))

	r.ExpandCombo(0)
	r.ExpandCombo(0)
	r.OnComponentToggled(packAID.Hex(), 0, false)

	if len(seen) != 1 || seen[0] != "expanded" {
		t.Fatalf("expected a single expanded observation, got %v", seen)
	}
}

func TestStateFromDraftRoundTrip(t *testing.T) {
	lines := &sliceLines{items: []models.LineItem{comboLine(packA(), 1), comboLine(packA(), 1)}}
	r := New(lines)
	r.ExpandCombo(1)

	restored := New(lines, WithState(StateFromDraft(r.State().Selections, r.State().ExpandedLines())))

	if !restored.IsExpanded(1) || restored.IsExpanded(0) {
		t.Fatalf("expected only line 1 expanded, got %v", restored.State().ExpandedLines())
	}
	if _, ok := restored.State().Selection(packAID.Hex()); !ok {
		t.Fatal("expected selection to be restored")
	}
}

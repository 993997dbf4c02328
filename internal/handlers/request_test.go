package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"pos-backend/internal/pricing"
)

func performRequest(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestCreateDraftRejectsUnknownKind(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/api/drafts", CreateDraft(nil, pricing.LevelRetail))

	rec := performRequest(r, http.MethodPost, "/api/drafts", `{"kind":"quote"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "kind must be one of sale purchase") {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}
}

func TestLoginRequiresEmailAndPassword(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/auth/login", Login(nil, "secret", time.Minute))

	rec := performRequest(r, http.MethodPost, "/auth/login", `{"email":"not-an-email"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "password is required") {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}
}

func TestDraftRoutesRejectInvalidIDs(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/api/drafts/:id", GetDraft(nil))
	r.GET("/api/products/:id", GetProduct(nil))

	for _, path := range []string{"/api/drafts/nope", "/api/products/123"} {
		if rec := performRequest(r, http.MethodGet, path, ""); rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", path, rec.Code)
		}
	}
}

func TestQuantityText(t *testing.T) {
	tests := []struct {
		raw  string
		want string
		ok   bool
	}{
		{`"2,5"`, "2,5", true},
		{`2.5`, "2.5", true},
		{`3`, "3", true},
		{`""`, "", true},
		{`null`, "", false},
		{`true`, "", false},
		{``, "", false},
	}
	for _, tt := range tests {
		got, ok := quantityText(json.RawMessage(tt.raw))
		if got != tt.want || ok != tt.ok {
			t.Fatalf("quantityText(%s) = %q,%v want %q,%v", tt.raw, got, ok, tt.want, tt.ok)
		}
	}
}

func TestNewDraftPriceLevelDefaults(t *testing.T) {
	if d := newDraft(createDraftRequest{Kind: "sale"}, "op", 2, fixedNow); d.PriceLevel != 2 {
		t.Fatalf("expected default level 2, got %d", d.PriceLevel)
	}
	if d := newDraft(createDraftRequest{Kind: "sale", PriceLevel: 3}, "op", 2, fixedNow); d.PriceLevel != 3 {
		t.Fatalf("expected requested level 3, got %d", d.PriceLevel)
	}
	if d := newDraft(createDraftRequest{Kind: "sale"}, "op", 9, fixedNow); d.PriceLevel != pricing.LevelRetail {
		t.Fatalf("expected retail fallback, got %d", d.PriceLevel)
	}
	d := newDraft(createDraftRequest{Kind: "purchase"}, "op", 1, fixedNow)
	if d.Version != 0 || d.Lines == nil || d.Selections == nil || d.OperatorID != "op" {
		t.Fatalf("unexpected draft %+v", d)
	}
}

func TestParsePaginationParams(t *testing.T) {
	page, limit, err := parsePaginationParams("", "")
	if err != nil || page != 1 || limit != defaultPageLimit {
		t.Fatalf("unexpected defaults %d %d %v", page, limit, err)
	}
	if _, limit, _ := parsePaginationParams("2", "500"); limit != maxPageLimit {
		t.Fatalf("expected limit capped at %d, got %d", maxPageLimit, limit)
	}
	if _, _, err := parsePaginationParams("0", "10"); err == nil {
		t.Fatal("expected error for page 0")
	}
}

func TestProductSearchFilter(t *testing.T) {
	filter, err := productSearchFilter(" 7790 ", "Bebidas", "true")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if filter["isCombo"] != true {
		t.Fatalf("expected isCombo filter, got %v", filter)
	}
	or, ok := filter["$or"].(bson.A)
	if !ok || len(or) != 3 {
		t.Fatalf("expected name/code/barcode search, got %v", filter["$or"])
	}
	if _, err := productSearchFilter("", "", "maybe"); err == nil {
		t.Fatal("expected error for invalid isCombo")
	}
}

func TestCategoryNamesDeduplicatesAndSorts(t *testing.T) {
	got := categoryNames([]interface{}{"bebidas", "Almacen", " ", "bebidas", 3})
	if len(got) != 2 || got[0] != "Almacen" || got[1] != "bebidas" {
		t.Fatalf("unexpected categories %v", got)
	}
}

func TestParseComboComponents(t *testing.T) {
	self := primitive.NewObjectID()
	other := primitive.NewObjectID()

	if _, err := parseComboComponents(self, nil); err == nil {
		t.Fatal("expected error for empty combo")
	}
	if _, err := parseComboComponents(self, []comboComponentRequest{{ProductID: self.Hex(), BaseQuantity: dec("1")}}); err == nil {
		t.Fatal("expected error for self reference")
	}
	if _, err := parseComboComponents(self, []comboComponentRequest{
		{ProductID: other.Hex(), BaseQuantity: dec("1")},
		{ProductID: other.Hex(), BaseQuantity: dec("2")},
	}); err == nil {
		t.Fatal("expected error for duplicate component")
	}
	if _, err := parseComboComponents(self, []comboComponentRequest{{ProductID: other.Hex(), BaseQuantity: dec("0")}}); err == nil {
		t.Fatal("expected error for zero base quantity")
	}
	ids, err := parseComboComponents(self, []comboComponentRequest{{ProductID: other.Hex(), BaseQuantity: dec("0.5")}})
	if err != nil || len(ids) != 1 || ids[0] != other {
		t.Fatalf("unexpected result %v %v", ids, err)
	}
}

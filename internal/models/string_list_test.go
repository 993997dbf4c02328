package models

import (
	"testing"

	"go.mongodb.org/mongo-driver/bson"
)

type categoryDoc struct {
	Category StringList `bson:"category"`
}

func decodeCategory(t *testing.T, value interface{}) StringList {
	t.Helper()
	data, err := bson.Marshal(bson.M{"category": value})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var doc categoryDoc
	if err := bson.Unmarshal(data, &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return doc.Category
}

func TestStringListDecodesLegacyString(t *testing.T) {
	got := decodeCategory(t, " Bebidas, Snacks ,bebidas,")
	if len(got) != 2 || got[0] != "Bebidas" || got[1] != "Snacks" {
		t.Fatalf("unexpected categories %v", got)
	}
	if got := decodeCategory(t, "   "); len(got) != 0 {
		t.Fatalf("expected empty list, got %v", got)
	}
}

func TestStringListDecodesArrayAndNull(t *testing.T) {
	got := decodeCategory(t, []string{"Almacen", "", "Almacen"})
	if len(got) != 1 || got[0] != "Almacen" {
		t.Fatalf("unexpected categories %v", got)
	}
	if got := decodeCategory(t, nil); got != nil {
		t.Fatalf("expected nil for null, got %v", got)
	}
}

func TestStringListRejectsNumbers(t *testing.T) {
	data, _ := bson.Marshal(bson.M{"category": 12})
	var doc categoryDoc
	if err := bson.Unmarshal(data, &doc); err == nil {
		t.Fatal("expected error for numeric category")
	}
}

func TestStringListMarshalsAsArray(t *testing.T) {
	data, err := bson.Marshal(categoryDoc{Category: StringList{"Limpieza", " limpieza "}})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var raw bson.M
	if err := bson.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	arr, ok := raw["category"].(bson.A)
	if !ok || len(arr) != 1 || arr[0] != "Limpieza" {
		t.Fatalf("expected single-element array, got %#v", raw["category"])
	}
}

package core

import (
	"encoding/json"
	"testing"
	"time"
)

func TestProcessRows_EndToEnd(t *testing.T) {
	rows := []*Row{
		RowOf("premiu turneu", "Premium Gold", "phone", "1234567890", "cash", 500, "tesla", "Model 3"),
		RowOf("premiu turneu", nil, "phone", nil, "cash", nil, "tesla", nil),
		RowOf("premiu turneu", "Basic Silver", "phone", "9876543210", "cash", 200, "tesla", "Model Y"),
	}

	got, err := json.Marshal(ProcessRows(rows, true, true))
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}

	want := `[{"id":0,"premiuTurneu":"Premium Gold","phone":"1234567890","cash":500,"tesla":"Model 3"},` +
		`{"id":1,"premiuTurneu":"Basic Silver","phone":"9876543210","cash":200,"tesla":"Model Y"}]`
	if string(got) != want {
		t.Errorf("ProcessRows =\n%s\nwant\n%s", got, want)
	}
}

func TestProcessRows_EmptyInput(t *testing.T) {
	got := ProcessRows(nil, true, true)
	if got == nil {
		t.Fatal("ProcessRows(nil) returned nil, want empty slice")
	}
	if len(got) != 0 {
		t.Errorf("len = %d, want 0", len(got))
	}

	b, _ := json.Marshal(got)
	if string(b) != "[]" {
		t.Errorf("Marshal = %s, want []", b)
	}
}

func TestProcessRows_FiltersEmptyRows(t *testing.T) {
	rows := []*Row{
		RowOf("a", "", "b", nil),
		RowOf("a", "x", "b", nil),
		RowOf(),
		RowOf("a", nil, "b", 0),
		nil,
		RowOf("a", "", "b", ""),
	}

	got := ProcessRows(rows, false, false)
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if v, _ := got[0].Get("a"); v.Str() != "x" {
		t.Errorf("row 0 a = %v, want x", v.Any())
	}
	if v, _ := got[1].Get("b"); v.Kind() != KindNumber || v.Num() != 0 {
		t.Errorf("row 1 b = %v, want 0", v.Any())
	}
}

func TestProcessRows_DenseIDs(t *testing.T) {
	var rows []*Row
	for i := 0; i < 20; i++ {
		if i%3 == 0 {
			rows = append(rows, RowOf("v", nil))
			continue
		}
		rows = append(rows, RowOf("v", i))
	}

	got := ProcessRows(rows, true, false)
	for i, row := range got {
		if row.Keys()[0] != IDKey {
			t.Fatalf("row %d first key = %q, want id", i, row.Keys()[0])
		}
		id, _ := row.Get(IDKey)
		if int(id.Num()) != i {
			t.Errorf("row %d id = %v, want %d", i, id.Num(), i)
		}
	}
	if len(got) != 13 {
		t.Errorf("len = %d, want 13", len(got))
	}
}

func TestProcessRows_NoIDWhenDisabled(t *testing.T) {
	got := ProcessRows([]*Row{RowOf("a", 1)}, false, true)
	if _, ok := got[0].Get(IDKey); ok {
		t.Error("id present with addID=false")
	}
}

func TestProcessRows_DropsEmptyKeys(t *testing.T) {
	rows := []*Row{
		RowOf("", "orphan", "  ", "blank", "name", "Ada"),
		RowOf("", "orphan2", "  ", "blank2", "name", "Grace"),
	}

	for _, camel := range []bool{true, false} {
		for i, row := range ProcessRows(rows, false, camel) {
			if _, ok := row.Get(""); ok {
				t.Errorf("camel=%v row %d has empty key", camel, i)
			}
			if row.Len() != 1 {
				t.Errorf("camel=%v row %d has %d keys, want 1", camel, i, row.Len())
			}
		}
	}

	// Separator-only headers collapse to "" only in camelCase mode.
	got := ProcessRows([]*Row{RowOf("__", "x", "k", "v")}, false, true)
	if got[0].Len() != 1 {
		t.Errorf("camelCase separator-only header kept: %v", got[0].Keys())
	}
}

func TestProcessRows_KeyCollisionLastWriteWins(t *testing.T) {
	rows := []*Row{RowOf("First Name", "Ada", "Age", 36, "first_name", "Grace")}

	got := ProcessRows(rows, false, true)
	row := got[0]

	keys := row.Keys()
	if len(keys) != 2 || keys[0] != "firstName" || keys[1] != "age" {
		t.Fatalf("Keys() = %v, want [firstName age]", keys)
	}
	if v, _ := row.Get("firstName"); v.Str() != "Grace" {
		t.Errorf("firstName = %v, want Grace", v.Any())
	}
}

func TestProcessRows_ColumnNamedIDOverwritesGeneratedID(t *testing.T) {
	got := ProcessRows([]*Row{RowOf("ID", "A-17", "x", 1)}, true, true)

	keys := got[0].Keys()
	if keys[0] != IDKey {
		t.Fatalf("first key = %q, want id", keys[0])
	}
	if v, _ := got[0].Get(IDKey); v.Str() != "A-17" {
		t.Errorf("id = %v, want A-17", v.Any())
	}
}

func TestProcessRows_CoercesValues(t *testing.T) {
	when := time.Date(2024, 3, 15, 17, 45, 0, 0, time.UTC)
	got := ProcessRows([]*Row{RowOf("d", when, "e", "", "b", true, "s", "text")}, false, false)

	b, err := json.Marshal(got[0])
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}
	want := `{"d":"2024-03-15","e":null,"b":true,"s":"text"}`
	if string(b) != want {
		t.Errorf("row = %s, want %s", b, want)
	}
}

func TestProcessRows_DoesNotMutateInput(t *testing.T) {
	raw := RowOf("Order Date", "", "Total", 10)
	ProcessRows([]*Row{raw}, true, true)

	if keys := raw.Keys(); len(keys) != 2 || keys[0] != "Order Date" {
		t.Errorf("raw keys changed: %v", keys)
	}
	if v, _ := raw.Get("Order Date"); v.Kind() != KindString {
		t.Errorf("raw value changed: %v", v.Kind())
	}
}

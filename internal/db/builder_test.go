package db

import (
	"strings"
	"testing"
)

func TestIndexBuilder_ProjectLayout(t *testing.T) {
	idx, err := NewIndex("propindex:real_estate_projects:idx").
		Prefix("propindex:real_estate_projects:").
		Tag("city", "department").
		Numeric("price_min", "total_units").
		VectorHNSW("__vector", "vector", 384, DistanceCosine, 16, 200).
		Build()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if idx.StorageType != StorageHash {
		t.Errorf("storage = %q, want HASH", idx.StorageType)
	}
	if len(idx.Fields) != 5 {
		t.Fatalf("fields count = %d, want 5", len(idx.Fields))
	}
	if idx.Fields[1].Name != "department" || idx.Fields[1].Type != IndexFieldTag {
		t.Errorf("field[1] = %+v, want department TAG", idx.Fields[1])
	}
	if idx.Fields[3].Name != "total_units" || idx.Fields[3].Type != IndexFieldNumeric {
		t.Errorf("field[3] = %+v, want total_units NUMERIC", idx.Fields[3])
	}
	v := idx.Fields[4]
	if v.Alias != "vector" || v.VectorAlgo != VectorHNSW || v.VectorDim != 384 {
		t.Errorf("vector field = %+v", v)
	}
	if v.VectorM != 16 || v.VectorEFConstruct != 200 {
		t.Errorf("HNSW params = %d/%d", v.VectorM, v.VectorEFConstruct)
	}
}

func TestIndexBuilder_BuildReturnsCopy(t *testing.T) {
	b := NewIndex("idx").Tag("a")
	first, err := b.Build()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b.Tag("b")
	if len(first.Fields) != 1 {
		t.Errorf("first definition mutated: %d fields", len(first.Fields))
	}
}

func TestIndexBuilder_Validation(t *testing.T) {
	tests := []struct {
		name string
		b    *IndexBuilder
		want string
	}{
		{"empty name", NewIndex("").Tag("a"), "index name is required"},
		{"bad name", NewIndex("bad name").Tag("a"), "invalid characters"},
		{"no fields", NewIndex("idx"), "at least one field"},
		{"duplicate", NewIndex("idx").Tag("a").Numeric("a"), "duplicate field name"},
		{"alias duplicate", NewIndex("idx").Tag("vector").VectorHNSW("__vector", "vector", 4, DistanceCosine, 0, 0), "duplicate field name"},
		{"zero dim", NewIndex("idx").VectorHNSW("__vector", "vector", 0, DistanceCosine, 0, 0), "positive DIM"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tc.b.Build()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Errorf("err = %v, want containing %q", err, tc.want)
			}
		})
	}
}

func TestIndexDefinition_String(t *testing.T) {
	idx, err := NewIndex("idx").Prefix("p:").Tag("city").VectorHNSW("__vector", "vector", 8, DistanceCosine, 0, 0).Build()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "FT.CREATE idx ON HASH PREFIX 1 p: SCHEMA city TAG __vector AS vector VECTOR HNSW DIM 8"
	if got := idx.String(); got != want {
		t.Errorf("String() = %q\nwant %q", got, want)
	}
}

func TestIsValidIdentifier(t *testing.T) {
	valid := []string{"a", "propindex:real_estate_projects:idx", "a-b_c"}
	invalid := []string{"", "a b", "a/b", "á"}
	for _, s := range valid {
		if !IsValidIdentifier(s) {
			t.Errorf("IsValidIdentifier(%q) = false", s)
		}
	}
	for _, s := range invalid {
		if IsValidIdentifier(s) {
			t.Errorf("IsValidIdentifier(%q) = true", s)
		}
	}
}

func TestError_Unwrap(t *testing.T) {
	e := &Error{Op: OpSearch, Err: ErrIndexNotFound}
	if e.Error() != "FT.SEARCH: db: index not found" {
		t.Errorf("Error() = %q", e.Error())
	}
	if e.Unwrap() != ErrIndexNotFound {
		t.Error("Unwrap mismatch")
	}
}

package patch

import (
	"errors"
	"reflect"
	"testing"
)

func mustDiff(t *testing.T, original, updated any, opts Options) []Op {
	t.Helper()
	ops, err := Diff(original, updated, opts)
	if err != nil {
		t.Fatalf("diff: %v", err)
	}
	return ops
}

func TestDiffIdenticalRecordsIsEmpty(t *testing.T) {
	records := []map[string]any{
		{},
		{"name": "A"},
		{"name": "A", "active": true, "count": float64(3)},
		{"name": map[string]any{"givenName": "Ann", "familyName": "Lee"}},
		{"emails": []any{map[string]any{"value": "a@example.com", "type": "work"}}},
	}
	for _, r := range records {
		if ops := mustDiff(t, r, r, Options{}); len(ops) != 0 {
			t.Fatalf("diff(x, x) = %+v, want empty", ops)
		}
	}
}

func TestDiffScalarTransitions(t *testing.T) {
	original := map[string]any{"displayName": "Ann", "title": "Dr"}
	updated := map[string]any{"displayName": "Anna", "locale": "ja"}

	ops := mustDiff(t, original, updated, Options{})
	want := []Op{
		{Op: OpReplace, Path: "displayName", Value: "Anna"},
		{Op: OpAdd, Path: "locale", Value: "ja"},
		{Op: OpRemove, Path: "title"},
	}
	if !reflect.DeepEqual(ops, want) {
		t.Fatalf("ops = %+v, want %+v", ops, want)
	}
}

func TestDiffNestedRecordExtendsPath(t *testing.T) {
	original := map[string]any{"name": map[string]any{"givenName": "Ann", "familyName": "Lee"}}
	updated := map[string]any{"name": map[string]any{"givenName": "Anna", "familyName": "Lee"}}

	ops := mustDiff(t, original, updated, Options{})
	want := []Op{{Op: OpReplace, Path: "name.givenName", Value: "Anna"}}
	if !reflect.DeepEqual(ops, want) {
		t.Fatalf("ops = %+v, want %+v", ops, want)
	}
}

func TestDiffKeyedListByValueAndType(t *testing.T) {
	original := map[string]any{
		"name": "A",
		"tags": []any{map[string]any{"value": "x", "type": "T"}},
	}
	updated := map[string]any{
		"name": "B",
		"tags": []any{map[string]any{"value": "y", "type": "T"}},
	}

	ops := mustDiff(t, original, updated, Options{})
	want := []Op{
		{Op: OpReplace, Path: "name", Value: "B"},
		{Op: OpRemove, Path: `tags[value eq "x" and type eq "T"]`},
		{Op: OpAdd, Path: "tags", Value: map[string]any{"value": "y", "type": "T"}},
	}
	if !reflect.DeepEqual(ops, want) {
		t.Fatalf("ops = %+v, want %+v", ops, want)
	}
}

func TestDiffKeyedElementOnBothSidesIsUnchanged(t *testing.T) {
	original := map[string]any{
		"emails": []any{map[string]any{"value": "a@example.com", "type": "work", "display": "old label"}},
	}
	updated := map[string]any{
		"emails": []any{map[string]any{"value": "a@example.com", "type": "work", "display": "new label", "primary": true}},
	}
	if ops := mustDiff(t, original, updated, Options{}); len(ops) != 0 {
		t.Fatalf("label churn on keyed element produced ops: %+v", ops)
	}
}

func TestDiffKeyedListWithoutType(t *testing.T) {
	original := map[string]any{"members": []any{map[string]any{"value": "u1"}, map[string]any{"value": "u2"}}}
	updated := map[string]any{"members": []any{map[string]any{"value": "u2"}, map[string]any{"value": "u3"}}}

	ops := mustDiff(t, original, updated, Options{})
	want := []Op{
		{Op: OpRemove, Path: `members[value eq "u1"]`},
		{Op: OpAdd, Path: "members", Value: map[string]any{"value": "u3"}},
	}
	if !reflect.DeepEqual(ops, want) {
		t.Fatalf("ops = %+v, want %+v", ops, want)
	}
}

func TestDiffWholeListAddAndRemove(t *testing.T) {
	original := map[string]any{}
	updated := map[string]any{"emails": []any{map[string]any{"value": "a@example.com"}}}

	ops := mustDiff(t, original, updated, Options{})
	want := []Op{{Op: OpAdd, Path: "emails", Value: []any{map[string]any{"value": "a@example.com"}}}}
	if !reflect.DeepEqual(ops, want) {
		t.Fatalf("ops = %+v, want %+v", ops, want)
	}

	ops = mustDiff(t, updated, original, Options{})
	want = []Op{{Op: OpRemove, Path: "emails"}}
	if !reflect.DeepEqual(ops, want) {
		t.Fatalf("ops = %+v, want %+v", ops, want)
	}
}

func TestDiffUnkeyedListReplacesAsValue(t *testing.T) {
	original := map[string]any{"schemas": []any{"urn:a"}}
	updated := map[string]any{"schemas": []any{"urn:a", "urn:b"}}

	ops := mustDiff(t, original, updated, Options{})
	want := []Op{{Op: OpReplace, Path: "schemas", Value: []any{"urn:a", "urn:b"}}}
	if !reflect.DeepEqual(ops, want) {
		t.Fatalf("ops = %+v, want %+v", ops, want)
	}
}

func TestDiffExcludeAppliesAtEveryLevel(t *testing.T) {
	original := map[string]any{
		"meta": map[string]any{"created": "2024-01-01"},
		"name": map[string]any{"givenName": "Ann", "meta": "x"},
	}
	updated := map[string]any{
		"meta": map[string]any{"created": "2024-06-01"},
		"name": map[string]any{"givenName": "Anna", "meta": "y"},
	}

	ops := mustDiff(t, original, updated, Options{Exclude: []string{"meta"}})
	want := []Op{{Op: OpReplace, Path: "name.givenName", Value: "Anna"}}
	if !reflect.DeepEqual(ops, want) {
		t.Fatalf("ops = %+v, want %+v", ops, want)
	}
}

func TestDiffIncludeLimitsTopLevelButCoversSubtrees(t *testing.T) {
	original := map[string]any{
		"displayName": "Ann",
		"name":        map[string]any{"givenName": "Ann"},
	}
	updated := map[string]any{
		"displayName": "Anna",
		"name":        map[string]any{"givenName": "Anna"},
	}

	ops := mustDiff(t, original, updated, Options{Include: []string{"name"}})
	want := []Op{{Op: OpReplace, Path: "name.givenName", Value: "Anna"}}
	if !reflect.DeepEqual(ops, want) {
		t.Fatalf("ops = %+v, want %+v", ops, want)
	}
}

func TestDiffIncludeExcludeUseNamingTransform(t *testing.T) {
	original := map[string]any{"displayName": "Ann"}
	updated := map[string]any{"displayName": "Anna"}

	ops := mustDiff(t, original, updated, Options{Exclude: []string{"display_name"}})
	if len(ops) != 0 {
		t.Fatalf("snake_case exclude did not match camelCase key: %+v", ops)
	}
}

func TestDiffTypedRecords(t *testing.T) {
	type name struct {
		GivenName  string `json:"givenName,omitempty"`
		FamilyName string `json:"familyName,omitempty"`
	}
	type user struct {
		UserName    string `json:"userName"`
		DisplayName string `json:"displayName,omitempty"`
		Name        *name  `json:"name,omitempty"`
	}

	original := user{UserName: "ann", DisplayName: "Ann", Name: &name{GivenName: "Ann", FamilyName: "Lee"}}
	updated := user{UserName: "ann", Name: &name{GivenName: "Anna", FamilyName: "Lee"}}

	ops := mustDiff(t, original, updated, Options{})
	want := []Op{
		{Op: OpRemove, Path: "displayName"},
		{Op: OpReplace, Path: "name.givenName", Value: "Anna"},
	}
	if !reflect.DeepEqual(ops, want) {
		t.Fatalf("ops = %+v, want %+v", ops, want)
	}
}

func TestDiffTypeMismatch(t *testing.T) {
	type a struct{ X string }
	type b struct{ X string }
	if _, err := Diff(a{}, b{}, Options{}); !errors.Is(err, ErrTypeMismatch) {
		t.Fatalf("expected ErrTypeMismatch, got %v", err)
	}
}

func TestDiffOperationCountTracksDifferences(t *testing.T) {
	original := map[string]any{
		"a":      "1",
		"b":      "2",
		"c":      map[string]any{"d": "3", "e": "4"},
		"emails": []any{map[string]any{"value": "a@x", "type": "work"}, map[string]any{"value": "b@x", "type": "home"}},
	}
	updated := map[string]any{
		"a":      "1",
		"b":      "changed",
		"c":      map[string]any{"d": "3", "e": "changed"},
		"emails": []any{map[string]any{"value": "a@x", "type": "work"}, map[string]any{"value": "c@x", "type": "home"}},
	}

	ops := mustDiff(t, original, updated, Options{})
	// two changed leaves plus one keyed-list key delta (one remove, one add)
	if len(ops) != 4 {
		t.Fatalf("expected 4 ops, got %d: %+v", len(ops), ops)
	}
}

package syncstore

import (
	"math"
	"reflect"
	"testing"

	"go.mongodb.org/mongo-driver/bson"
)

type record struct {
	Name    string          `bson:"name"`
	Count   int64           `bson:"count"`
	Skip    string          `bson:"-"`
	Members map[string]bool `bson:"members,omitempty"`
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want any
	}{
		{"nil", nil, nil},
		{"int", 5, int64(5)},
		{"int32", int32(-3), int64(-3)},
		{"uint8", uint8(7), int64(7)},
		{"float", 1.5, 1.5},
		{"empty map", map[string]any{}, nil},
		{"nil entries dropped", map[string]any{"a": nil, "b": 1}, map[string]any{"b": int64(1)}},
		{"bson.M", bson.M{"x": int32(2)}, map[string]any{"x": int64(2)}},
		{"bson.D", bson.D{{Key: "x", Value: true}}, map[string]any{"x": true}},
		{"typed map", map[string]bool{"p1": true}, map[string]any{"p1": true}},
		{"empty list", []any{}, nil},
		{"list", []int{1, 2}, []any{int64(1), int64(2)}},
		{
			"struct",
			record{Name: "N", Count: 3, Skip: "x", Members: map[string]bool{"p": true}},
			map[string]any{"name": "N", "count": int64(3), "members": map[string]any{"p": true}},
		},
		{"pointer", &record{Name: "N"}, map[string]any{"name": "N", "count": int64(0)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(tt.in)
			if err != nil {
				t.Fatalf("Normalize failed: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestNormalize_Rejects(t *testing.T) {
	bad := []any{math.NaN(), math.Inf(1), uint64(math.MaxUint64), map[int]string{1: "x"}, make(chan int)}
	for _, v := range bad {
		if _, err := Normalize(v); err == nil {
			t.Errorf("Normalize(%T) accepted", v)
		}
	}
}

func TestClone_IsDeep(t *testing.T) {
	orig := map[string]any{"m": map[string]any{"a": int64(1)}, "l": []any{int64(1)}}
	c := Clone(orig).(map[string]any)
	c["m"].(map[string]any)["a"] = int64(2)
	c["l"].([]any)[0] = int64(2)

	if orig["m"].(map[string]any)["a"] != int64(1) || orig["l"].([]any)[0] != int64(1) {
		t.Errorf("Clone shared state with the original: %#v", orig)
	}
}

func TestLookup(t *testing.T) {
	v := map[string]any{"g1": map[string]any{"count": int64(4)}}
	if got := Lookup(v, []string{"g1", "count"}); got != int64(4) {
		t.Errorf("Lookup: got %#v", got)
	}
	if got := Lookup(v, []string{"g1", "count", "deeper"}); got != nil {
		t.Errorf("Lookup past a leaf: got %#v", got)
	}
	if got := Lookup(v, nil); !reflect.DeepEqual(got, v) {
		t.Errorf("Lookup with no segments: got %#v", got)
	}
}

func TestAs(t *testing.T) {
	if n, ok := As[int64](3.0); !ok || n != 3 {
		t.Errorf("As[int64](3.0) = %v, %v", n, ok)
	}
	if _, ok := As[int64](3.5); ok {
		t.Error("As[int64](3.5) should fail")
	}
	if f, ok := As[float64](int64(2)); !ok || f != 2 {
		t.Errorf("As[float64](2) = %v, %v", f, ok)
	}
	if s, ok := As[string]("x"); !ok || s != "x" {
		t.Errorf("As[string] = %q, %v", s, ok)
	}
	if _, ok := As[string](int64(1)); ok {
		t.Error("As[string](1) should fail")
	}
	if _, ok := As[int64](nil); ok {
		t.Error("As of nil should fail")
	}
}

func TestSnapshotDecode(t *testing.T) {
	snap := Snapshot{Value: map[string]any{"name": "N", "count": int64(9), "members": map[string]any{"p": true}}}
	var r record
	if err := snap.Decode(&r); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if r.Name != "N" || r.Count != 9 || !r.Members["p"] {
		t.Errorf("decoded %+v", r)
	}

	if err := (Snapshot{Value: int64(1)}).Decode(&r); err == nil {
		t.Error("decoding a scalar into a struct should fail")
	}
}

package criteria

import (
	"errors"
	"io"
	"log/slog"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewConfigurationErrors(t *testing.T) {
	tests := []struct {
		name string
		raw  map[string]any
	}{
		{"entry is not a mapping", map[string]any{"foo": 5}},
		{"missing type", map[string]any{"foo": map[string]any{"value": []any{1}}}},
		{"missing value", map[string]any{"foo": map[string]any{"type": "list"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := New(tt.raw, 1, testLogger())
			if !errors.Is(err, ErrInvalidCriteria) {
				t.Errorf("New() error = %v, want ErrInvalidCriteria", err)
			}
			if f != nil {
				t.Errorf("New() = %v, want nil filter on configuration error", f)
			}
		})
	}
}

func TestNewDroppedRules(t *testing.T) {
	tests := []struct {
		name       string
		raw        map[string]any
		wantList   int
		wantRange  int
	}{
		{
			"list value is not a sequence",
			map[string]any{"color": map[string]any{"type": "list", "value": "red"}},
			0, 0,
		},
		{
			"range value is not a sequence",
			map[string]any{"size": map[string]any{"type": "range", "value": 10}},
			0, 0,
		},
		{
			"unknown filter type",
			map[string]any{"color": map[string]any{"type": "glob", "value": []any{"red"}}},
			0, 0,
		},
		{
			"valid list survives",
			map[string]any{"color": map[string]any{"type": "list", "value": []any{"red", "blue"}}},
			1, 0,
		},
		{
			"valid range survives",
			map[string]any{"size": map[string]any{"type": "range", "value": []any{10, 20}}},
			0, 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := New(tt.raw, 1, testLogger())
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			if len(f.listRules) != tt.wantList {
				t.Errorf("list rules = %d, want %d", len(f.listRules), tt.wantList)
			}
			if len(f.rangeRules) != tt.wantRange {
				t.Errorf("range rules = %d, want %d", len(f.rangeRules), tt.wantRange)
			}
		})
	}
}

func TestNewOddRangeTrimsLast(t *testing.T) {
	raw := map[string]any{
		"size": map[string]any{"type": "range", "value": []any{10, 20, 30}},
	}
	f, err := New(raw, 1, testLogger())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if len(f.rangeRules) != 1 {
		t.Fatalf("range rules = %d, want 1", len(f.rangeRules))
	}
	pairs := f.rangeRules[0].pairs
	if len(pairs) != 1 {
		t.Fatalf("pairs = %d, want 1", len(pairs))
	}
	if !pairs[0].start.Equal(Int(10)) || !pairs[0].end.Equal(Int(20)) {
		t.Errorf("pair = (%v, %v), want (10, 20)", pairs[0].start, pairs[0].end)
	}
}

func TestNewRangePairing(t *testing.T) {
	raw := map[string]any{
		"size": map[string]any{"type": "range", "value": []any{10, 20, 30, 40}},
	}
	f, err := New(raw, 1, testLogger())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	pairs := f.rangeRules[0].pairs
	if len(pairs) != 2 {
		t.Fatalf("pairs = %d, want 2", len(pairs))
	}
	want := []rangePair{
		{start: Int(10), end: Int(20)},
		{start: Int(30), end: Int(40)},
	}
	for i, p := range pairs {
		if !p.start.Equal(want[i].start) || !p.end.Equal(want[i].end) {
			t.Errorf("pair[%d] = (%v, %v), want (%v, %v)",
				i, p.start, p.end, want[i].start, want[i].end)
		}
	}
}

func TestNewTypeMapRecordedForDroppedRule(t *testing.T) {
	// data_type записывается даже если само правило отброшено
	raw := map[string]any{
		"color": map[string]any{"type": "glob", "data_type": "str", "value": []any{"red"}},
	}
	f, err := New(raw, 1, testLogger())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if got := f.typeMap["color"]; got != TypeStr {
		t.Errorf("typeMap[color] = %v, want str", got)
	}
}

func TestNewDeclaredTypes(t *testing.T) {
	tests := []struct {
		dataType string
		want     DeclaredType
	}{
		{"str", TypeStr},
		{"int", TypeInt},
		{"float", TypeFloat},
		{"numeric", TypeNumeric},
		{"datetime", TypeDatetime},
		{"", TypeUnspecified},
		{"bogus", TypeUnspecified},
	}
	for _, tt := range tests {
		t.Run("data_type="+tt.dataType, func(t *testing.T) {
			raw := map[string]any{
				"f": map[string]any{"type": "list", "data_type": tt.dataType, "value": []any{"x"}},
			}
			f, err := New(raw, 1, testLogger())
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			if got := f.typeMap["f"]; got != tt.want {
				t.Errorf("typeMap[f] = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewAcceptsYAMLStyleMaps(t *testing.T) {
	raw := map[string]any{
		"color": map[any]any{"type": "list", "value": []any{"red"}},
	}
	f, err := New(raw, 1, testLogger())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if len(f.listRules) != 1 {
		t.Errorf("list rules = %d, want 1", len(f.listRules))
	}
}

func TestNewEvaluationOrderIsSorted(t *testing.T) {
	raw := map[string]any{
		"zeta":  map[string]any{"type": "list", "value": []any{"x"}},
		"alpha": map[string]any{"type": "list", "value": []any{"y"}},
		"mid":   map[string]any{"type": "list", "value": []any{"z"}},
	}
	f, err := New(raw, 1, testLogger())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	want := []string{"alpha", "mid", "zeta"}
	for i, rule := range f.listRules {
		if rule.field != want[i] {
			t.Errorf("rule[%d] = %s, want %s", i, rule.field, want[i])
		}
	}
}

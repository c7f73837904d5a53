package criteria

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSummary(t *testing.T) {
	f := mustFilter(t, map[string]any{
		"color": map[string]any{"type": "list", "data_type": "str", "value": []any{"red", "blue"}},
		"size":  map[string]any{"type": "range", "data_type": "int", "value": []any{10, 20, 30, 40}},
	}, 1)

	summary := f.Summary()
	for _, want := range []string{
		"list_criteria", "range_criteria", "type_map",
		"color", "red", "blue",
		"size", "start: 10", "end: 20", "start: 30", "end: 40",
	} {
		if !strings.Contains(summary, want) {
			t.Errorf("Summary() missing %q:\n%s", want, summary)
		}
	}
}

func TestLoadCriteria(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "criteria.yaml")
	content := `
station:
  type: list
  data_type: str
  value: [STA01, STA02]
time:
  type: range
  data_type: datetime
  value:
    - 2023-01-01 00:00:00
    - 2023-01-02 00:00:00
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	raw, err := LoadCriteria(path)
	if err != nil {
		t.Fatalf("LoadCriteria() error = %v", err)
	}
	f, err := New(raw, 1, testLogger())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if len(f.listRules) != 1 || len(f.rangeRules) != 1 {
		t.Errorf("rules = (%d list, %d range), want (1, 1)",
			len(f.listRules), len(f.rangeRules))
	}
	if f.typeMap["time"] != TypeDatetime {
		t.Errorf("typeMap[time] = %v, want datetime", f.typeMap["time"])
	}
	// YAML-метки времени должны декодироваться в time.Time
	pair := f.rangeRules[0].pairs[0]
	if _, ok := pair.start.AsTime(); !ok {
		t.Errorf("range start decoded as %v, want a time value", pair.start.Kind())
	}
}

func TestLoadCriteriaEmptyPath(t *testing.T) {
	raw, err := LoadCriteria("")
	if err != nil {
		t.Fatalf("LoadCriteria(\"\") error = %v", err)
	}
	if len(raw) != 0 {
		t.Errorf("LoadCriteria(\"\") = %v, want empty map", raw)
	}
}

func TestLoadCriteriaMissingFile(t *testing.T) {
	if _, err := LoadCriteria("/nonexistent/criteria.yaml"); err == nil {
		t.Errorf("LoadCriteria() error = nil, want error")
	}
}

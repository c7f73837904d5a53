package organizer

import (
	"io"
	"log/slog"
	"reflect"
	"testing"

	"seis-filter/criteria"
)

func rec(station, component, path string) criteria.Record {
	return criteria.Record{
		"station":   criteria.Str(station),
		"component": criteria.Str(component),
		"path":      criteria.Str(path),
	}
}

func TestGroupBy(t *testing.T) {
	records := []criteria.Record{
		rec("STA02", "BHZ", "/d/b1"),
		rec("STA01", "BHZ", "/d/a1"),
		rec("STA01", "BHN", "/d/a2"),
		rec("STA02", "BHZ", "/d/b2"),
	}

	groups := GroupBy(records, []string{"station"}, []string{"component"})
	if len(groups) != 2 {
		t.Fatalf("GroupBy() = %d groups, want 2", len(groups))
	}
	if !reflect.DeepEqual(groups[0].Key, []string{"STA01"}) {
		t.Errorf("groups[0].Key = %v, want [STA01]", groups[0].Key)
	}
	if !reflect.DeepEqual(groups[1].Key, []string{"STA02"}) {
		t.Errorf("groups[1].Key = %v, want [STA02]", groups[1].Key)
	}
	// внутри группы — сортировка по component
	got := groups[0].Records
	if got[0]["component"].String() != "BHN" || got[1]["component"].String() != "BHZ" {
		t.Errorf("group records not sorted by component: %v, %v",
			got[0]["component"], got[1]["component"])
	}
}

func TestGroupByMultipleLabels(t *testing.T) {
	records := []criteria.Record{
		rec("STA01", "BHZ", "/d/1"),
		rec("STA01", "BHN", "/d/2"),
		rec("STA01", "BHZ", "/d/3"),
	}
	groups := GroupBy(records, []string{"station", "component"}, nil)
	if len(groups) != 2 {
		t.Fatalf("GroupBy() = %d groups, want 2", len(groups))
	}
	if !reflect.DeepEqual(groups[0].Key, []string{"STA01", "BHN"}) {
		t.Errorf("groups[0].Key = %v, want [STA01 BHN]", groups[0].Key)
	}
	if len(groups[1].Records) != 2 {
		t.Errorf("groups[1] has %d records, want 2", len(groups[1].Records))
	}
}

func TestGroupBySkipsRecordsWithoutLabel(t *testing.T) {
	records := []criteria.Record{
		rec("STA01", "BHZ", "/d/1"),
		{"path": criteria.Str("/d/orphan")},
	}
	groups := GroupBy(records, []string{"station"}, nil)
	if len(groups) != 1 {
		t.Fatalf("GroupBy() = %d groups, want 1", len(groups))
	}
	if len(groups[0].Records) != 1 {
		t.Errorf("group has %d records, want 1", len(groups[0].Records))
	}
}

func TestOrganizePaths(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	records := []criteria.Record{
		rec("STA01", "BHZ", "/d/a1"),
		rec("STA01", "BHN", "/d/a2"),
		rec("STA02", "BHZ", "/d/b1"),
	}

	got := Organize(records, []string{"station", "component"}, "path", logger)

	sta01, ok := got["STA01"].(map[string]any)
	if !ok {
		t.Fatalf("got[STA01] = %T, want nested map", got["STA01"])
	}
	paths, ok := sta01["BHZ"].([]string)
	if !ok {
		t.Fatalf("sta01[BHZ] = %T, want []string", sta01["BHZ"])
	}
	if !reflect.DeepEqual(paths, []string{"/d/a1"}) {
		t.Errorf("paths = %v, want [/d/a1]", paths)
	}
}

func TestOrganizeDict(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	records := []criteria.Record{rec("STA01", "BHZ", "/d/a1")}

	got := Organize(records, []string{"station"}, "dict", logger)
	recs, ok := got["STA01"].([]criteria.Record)
	if !ok {
		t.Fatalf("got[STA01] = %T, want []criteria.Record", got["STA01"])
	}
	if len(recs) != 1 {
		t.Errorf("records = %d, want 1", len(recs))
	}
}

func TestOrganizeUnknownOutputFallsBackToDict(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	records := []criteria.Record{rec("STA01", "BHZ", "/d/a1")}

	got := Organize(records, []string{"station"}, "bogus", logger)
	if _, ok := got["STA01"].([]criteria.Record); !ok {
		t.Errorf("got[STA01] = %T, want []criteria.Record (dict fallback)", got["STA01"])
	}
}

package facts

import "testing"

func TestFilterTablesByFiles(t *testing.T) {
	tables := Tables{
		Files: []FileRow{
			{Path: "a.c"},
			{Path: "b.c"},
		},
		Regions: []RegionRow{
			{File: "a.c", Kind: "function"},
			{File: "b.c", Kind: "function"},
		},
		Declarations: []DeclarationRow{
			{File: "a.c", Qualified: "f"},
			{File: "b.c", Qualified: "g"},
		},
		Anomalies: []AnomalyRow{
			{File: "b.c", Kind: "structural"},
		},
	}

	filtered := FilterTablesByFiles(tables, map[string]bool{"a.c": true})

	if len(filtered.Files) != 1 || filtered.Files[0].Path != "a.c" {
		t.Fatalf("expected only a.c file row, got %#v", filtered.Files)
	}
	if len(filtered.Regions) != 1 || filtered.Regions[0].File != "a.c" {
		t.Fatalf("expected only a.c region rows, got %#v", filtered.Regions)
	}
	if len(filtered.Declarations) != 1 || filtered.Declarations[0].Qualified != "f" {
		t.Fatalf("expected only a.c declaration rows, got %#v", filtered.Declarations)
	}
	if filtered.Anomalies == nil || len(filtered.Anomalies) != 0 {
		t.Fatalf("expected an empty, non-nil anomaly table, got %#v", filtered.Anomalies)
	}
}

func TestFilterDeltaByFilesEmpty(t *testing.T) {
	delta := Delta{
		Added: Tables{
			Files: []FileRow{{Path: "a.c"}},
		},
		Removed: Tables{
			Files: []FileRow{{Path: "b.c"}},
		},
	}

	filtered := FilterDeltaByFiles(delta, map[string]bool{})
	if !filtered.Empty() {
		t.Fatalf("expected empty delta, got %#v", filtered)
	}
}

package facts

import "strconv"

// Delta captures added and removed fact rows between two snapshots.
type Delta struct {
	Added   Tables `json:"added"`
	Removed Tables `json:"removed"`
}

// Empty reports whether the snapshots were identical.
func (d Delta) Empty() bool {
	return d.Added.Len() == 0 && d.Removed.Len() == 0
}

// Len returns the total number of rows.
func (t Tables) Len() int {
	return len(t.Files) + len(t.Regions) + len(t.Declarations) + len(t.Shadows) + len(t.Anomalies)
}

// ComputeDelta computes row-level additions and removals between two snapshots.
// Region ids are part of the row identity, so an edit that renumbers a
// tree reports every renumbered region of that file.
func ComputeDelta(prev, next Tables) Delta {
	return Delta{
		Added:   diffTables(prev, next),
		Removed: diffTables(next, prev),
	}
}

func diffTables(from, to Tables) Tables {
	return Tables{
		Files:        diffRows(from.Files, to.Files, fileKey),
		Regions:      diffRows(from.Regions, to.Regions, regionKey),
		Declarations: diffRows(from.Declarations, to.Declarations, declarationKey),
		Shadows:      diffRows(from.Shadows, to.Shadows, shadowKey),
		Anomalies:    diffRows(from.Anomalies, to.Anomalies, anomalyKey),
	}
}

// Apply returns base with the removed rows of d dropped and its added rows
// appended. Applying ComputeDelta(prev, next) to prev yields the rows of
// next when neither snapshot holds duplicate rows.
func Apply(base Tables, d Delta) Tables {
	return Tables{
		Files:        applyRows(base.Files, d.Added.Files, d.Removed.Files, fileKey),
		Regions:      applyRows(base.Regions, d.Added.Regions, d.Removed.Regions, regionKey),
		Declarations: applyRows(base.Declarations, d.Added.Declarations, d.Removed.Declarations, declarationKey),
		Shadows:      applyRows(base.Shadows, d.Added.Shadows, d.Removed.Shadows, shadowKey),
		Anomalies:    applyRows(base.Anomalies, d.Added.Anomalies, d.Removed.Anomalies, anomalyKey),
	}
}

func fileKey(r FileRow) string {
	return r.Path + "|" + r.Dialect + "|" + boolKey(r.Partial) + "|" + boolKey(r.IsThirdParty)
}

func regionKey(r RegionRow) string {
	return r.File + "|" + strconv.Itoa(r.ID) + "|" + strconv.Itoa(r.Parent) + "|" + r.Kind + "|" + r.Sub + "|" +
		r.Qualified + "|" + r.Name + "|" + posKey(r.Line, r.Column) + "|" + r.Visibility
}

func declarationKey(r DeclarationRow) string {
	return r.File + "|" + strconv.Itoa(r.Region) + "|" + strconv.Itoa(r.Scope) + "|" + r.Kind + "|" +
		r.Qualified + "|" + posKey(r.Line, r.Column) + "|" + r.Visibility
}

func shadowKey(r ShadowRow) string {
	return r.File + "|" + r.Inner + "|" + strconv.Itoa(r.InnerLine) + "|" + r.Outer + "|" + strconv.Itoa(r.OuterLine)
}

func anomalyKey(r AnomalyRow) string {
	return r.File + "|" + r.Kind + "|" + posKey(r.Line, r.Column) + "|" + r.Message
}

func emptyTables() Tables {
	return Tables{
		Files:        []FileRow{},
		Regions:      []RegionRow{},
		Declarations: []DeclarationRow{},
		Shadows:      []ShadowRow{},
		Anomalies:    []AnomalyRow{},
	}
}

func diffRows[T any](from, to []T, key func(T) string) []T {
	fromSet := make(map[string]struct{}, len(from))
	for _, row := range from {
		fromSet[key(row)] = struct{}{}
	}
	diff := []T{}
	for _, row := range to {
		if _, ok := fromSet[key(row)]; !ok {
			diff = append(diff, row)
		}
	}
	return diff
}

func applyRows[T any](base, added, removed []T, key func(T) string) []T {
	drop := make(map[string]int, len(removed))
	for _, row := range removed {
		drop[key(row)]++
	}
	out := make([]T, 0, len(base)+len(added))
	for _, row := range base {
		k := key(row)
		if drop[k] > 0 {
			drop[k]--
			continue
		}
		out = append(out, row)
	}
	return append(out, added...)
}

func boolKey(v bool) string {
	if v {
		return "1"
	}
	return "0"
}

func posKey(line, col int) string {
	return strconv.Itoa(line) + ":" + strconv.Itoa(col)
}

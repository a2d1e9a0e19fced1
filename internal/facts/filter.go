package facts

// FilterTablesByFiles returns a new Tables object containing only rows whose file
// or path is present in the provided file set.
func FilterTablesByFiles(tables Tables, files map[string]bool) Tables {
	out := emptyTables()
	if len(files) == 0 {
		return out
	}

	out.Files = filterRows(tables.Files, files, func(r FileRow) string { return r.Path })
	out.Regions = filterRows(tables.Regions, files, func(r RegionRow) string { return r.File })
	out.Declarations = filterRows(tables.Declarations, files, func(r DeclarationRow) string { return r.File })
	out.Shadows = filterRows(tables.Shadows, files, func(r ShadowRow) string { return r.File })
	out.Anomalies = filterRows(tables.Anomalies, files, func(r AnomalyRow) string { return r.File })

	return out
}

// WithoutThirdParty drops the rows of files marked third-party.
func WithoutThirdParty(tables Tables) Tables {
	keep := make(map[string]bool, len(tables.Files))
	for _, f := range tables.Files {
		if !f.IsThirdParty {
			keep[f.Path] = true
		}
	}
	return FilterTablesByFiles(tables, keep)
}

// FilterDeltaByFiles returns a new Delta containing only rows for the specified files.
func FilterDeltaByFiles(delta Delta, files map[string]bool) Delta {
	return Delta{
		Added:   FilterTablesByFiles(delta.Added, files),
		Removed: FilterTablesByFiles(delta.Removed, files),
	}
}

func filterRows[T any](rows []T, files map[string]bool, file func(T) string) []T {
	out := []T{}
	for _, row := range rows {
		if files[file(row)] {
			out = append(out, row)
		}
	}
	return out
}

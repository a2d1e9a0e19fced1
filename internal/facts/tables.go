package facts

import (
	"sort"

	"github.com/robert-at-pretension-io/cpp-shallow/internal/query"
	"github.com/robert-at-pretension-io/cpp-shallow/internal/region"
	"github.com/robert-at-pretension-io/cpp-shallow/internal/resolve"
	"github.com/robert-at-pretension-io/cpp-shallow/internal/shallow"
)

// Tables is the relational fact model handed to the contract check and
// the rego rules. Each slice is a relation (table) with flat rows.
type Tables struct {
	Files        []FileRow        `json:"files"`
	Regions      []RegionRow      `json:"regions"`
	Declarations []DeclarationRow `json:"declarations"`
	Shadows      []ShadowRow      `json:"shadows"`
	Anomalies    []AnomalyRow     `json:"anomalies"`
}

type FileRow struct {
	Path         string `json:"path"`
	Dialect      string `json:"dialect"`
	Partial      bool   `json:"partial"`
	IsThirdParty bool   `json:"is_third_party"`
}

// RegionRow is one node of a region tree. Parent is -1 for the root.
type RegionRow struct {
	File       string `json:"file"`
	ID         int    `json:"id"`
	Parent     int    `json:"parent"`
	Kind       string `json:"kind"`
	Sub        string `json:"sub"`
	Name       string `json:"name"`
	Qualified  string `json:"qualified"`
	Line       int    `json:"line"`
	Column     int    `json:"column"`
	Visibility string `json:"visibility"`
}

type DeclarationRow struct {
	File       string `json:"file"`
	Name       string `json:"name"`
	Qualified  string `json:"qualified"`
	Kind       string `json:"kind"`
	Region     int    `json:"region"`
	Scope      int    `json:"scope"`
	Line       int    `json:"line"`
	Column     int    `json:"column"`
	Visibility string `json:"visibility"`
}

type ShadowRow struct {
	File      string `json:"file"`
	Name      string `json:"name"`
	Inner     string `json:"inner"`
	InnerLine int    `json:"inner_line"`
	Outer     string `json:"outer"`
	OuterLine int    `json:"outer_line"`
}

type AnomalyRow struct {
	File    string `json:"file"`
	Kind    string `json:"kind"`
	Line    int    `json:"line"`
	Column  int    `json:"column"`
	Message string `json:"message"`
}

// BuildTables converts parse results into a normalized relational model.
// thirdParty marks files whose findings consumers usually ignore.
func BuildTables(results []*shallow.Result, thirdParty map[string]bool) Tables {
	tables := emptyTables()

	seenFiles := make(map[string]bool)
	for _, res := range results {
		if res == nil || seenFiles[res.Path] {
			continue
		}
		seenFiles[res.Path] = true
		appendResult(&tables, res, thirdParty[res.Path])
	}

	sort.Slice(tables.Files, func(i, j int) bool { return tables.Files[i].Path < tables.Files[j].Path })

	return tables
}

func appendResult(tables *Tables, res *shallow.Result, thirdParty bool) {
	v := res.View
	file := res.Path

	tables.Files = append(tables.Files, FileRow{
		Path:         file,
		Dialect:      res.Dialect.String(),
		Partial:      res.Partial(),
		IsThirdParty: thirdParty,
	})

	v.Walk(func(id region.ID, _ int) bool {
		r := v.Region(id)
		line, col := v.Position(id)
		qualified, _ := v.QualifiedName(id)
		tables.Regions = append(tables.Regions, RegionRow{
			File:       file,
			ID:         int(id),
			Parent:     int(r.Parent),
			Kind:       r.Kind.String(),
			Sub:        r.Sub,
			Name:       r.Name,
			Qualified:  qualified,
			Line:       line,
			Column:     col,
			Visibility: v.Visibility(id).String(),
		})
		return true
	})

	for _, d := range v.Declarations() {
		line, col := declPosition(v, d)
		tables.Declarations = append(tables.Declarations, DeclarationRow{
			File:       file,
			Name:       d.Simple(),
			Qualified:  d.Qualified(),
			Kind:       d.Kind.String(),
			Region:     int(d.Region),
			Scope:      int(d.Scope),
			Line:       line,
			Column:     col,
			Visibility: d.Visibility.String(),
		})
	}

	for _, s := range v.Shadows() {
		innerLine, _ := declPosition(v, s.Inner)
		outerLine, _ := declPosition(v, s.Outer)
		tables.Shadows = append(tables.Shadows, ShadowRow{
			File:      file,
			Name:      s.Inner.Simple(),
			Inner:     s.Inner.Qualified(),
			InnerLine: innerLine,
			Outer:     s.Outer.Qualified(),
			OuterLine: outerLine,
		})
	}

	for _, a := range res.Anomalies {
		tables.Anomalies = append(tables.Anomalies, AnomalyRow{
			File:    file,
			Kind:    a.Kind.String(),
			Line:    a.Line,
			Column:  a.Column,
			Message: a.Message,
		})
	}
}

func declPosition(v *query.View, d resolve.Declaration) (int, int) {
	if d.Token >= 0 {
		tok := v.Token(d.Token)
		return tok.Line, tok.Column
	}
	return v.Position(d.Region)
}

// Normalize replaces nil relations with empty ones so that every table
// encodes as a JSON array.
func Normalize(t Tables) Tables {
	if t.Files == nil {
		t.Files = []FileRow{}
	}
	if t.Regions == nil {
		t.Regions = []RegionRow{}
	}
	if t.Declarations == nil {
		t.Declarations = []DeclarationRow{}
	}
	if t.Shadows == nil {
		t.Shadows = []ShadowRow{}
	}
	if t.Anomalies == nil {
		t.Anomalies = []AnomalyRow{}
	}
	return t
}

// Merge concatenates the relations of several snapshots, keeping the file
// relation sorted by path.
func Merge(parts ...Tables) Tables {
	out := emptyTables()
	for _, p := range parts {
		out.Files = append(out.Files, p.Files...)
		out.Regions = append(out.Regions, p.Regions...)
		out.Declarations = append(out.Declarations, p.Declarations...)
		out.Shadows = append(out.Shadows, p.Shadows...)
		out.Anomalies = append(out.Anomalies, p.Anomalies...)
	}
	sort.SliceStable(out.Files, func(i, j int) bool { return out.Files[i].Path < out.Files[j].Path })
	return out
}

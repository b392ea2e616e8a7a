// Package schema defines the canonical relational layout the loader writes
// into: three tables, their typed columns, and the secondary indexes that are
// dropped and recreated around bulk loads.
//
// The layout is a fixed contract shared with the query layer. The loader
// conforms to it; it never infers columns from input files.
package schema

import "fmt"

// Kind is the logical type of a canonical column. Backends map each kind to
// a concrete SQL type and value encoding.
type Kind int

const (
	KindText Kind = iota
	KindInt
	KindFloat
	KindDate
	KindBool
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindDate:
		return "date"
	case KindBool:
		return "bool"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Column is one canonical column. Size is the maximum length in runes for
// text columns; zero means unbounded.
type Column struct {
	Name string
	Kind Kind
	Size int
}

// Index is a named secondary index over one or more columns.
type Index struct {
	Name    string
	Columns []string
}

// Table is a canonical target table.
type Table struct {
	Name    string
	Columns []Column
	Indexes []Index

	// Key is the required identifier column. Rows with an empty key are
	// malformed and never inserted.
	Key string

	// DateColumn is the primary date the derived year is taken from.
	DateColumn string

	// Dedupe marks tables whose Key is unique per load.
	Dedupe bool
}

// ColumnNames returns the column names in insert order.
func (t Table) ColumnNames() []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Name
	}
	return out
}

// ColumnIndex returns the position of name in Columns, or -1.
func (t Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// Column returns the named column.
func (t Table) Column(name string) (Column, bool) {
	if i := t.ColumnIndex(name); i >= 0 {
		return t.Columns[i], true
	}
	return Column{}, false
}

// Table identifiers.
const (
	Inspections = "inspections"
	Violations  = "violations"
	Accidents   = "accidents"
)

func text(name string, size int) Column { return Column{Name: name, Kind: KindText, Size: size} }
func date(name string) Column           { return Column{Name: name, Kind: KindDate} }
func money(name string) Column          { return Column{Name: name, Kind: KindFloat} }

var yearColumn = Column{Name: "year", Kind: KindInt}

var tables = []Table{
	{
		Name: Inspections,
		Columns: []Column{
			text("activity_nr", 50),
			text("estab_name", 500),
			text("site_state", 2),
			text("naics_code", 10),
			date("open_date"),
			date("close_case_date"),
			yearColumn,
			text("inspection_type", 100),
		},
		Indexes: []Index{
			{Name: "idx_inspection_activity", Columns: []string{"activity_nr"}},
			{Name: "idx_inspection_state_year", Columns: []string{"site_state", "year"}},
			{Name: "idx_inspection_naics", Columns: []string{"naics_code", "year"}},
		},
		Key:        "activity_nr",
		DateColumn: "open_date",
		Dedupe:     true,
	},
	{
		Name: Violations,
		Columns: []Column{
			text("agency", 20),
			text("company_name", 500),
			text("company_name_normalized", 500),
			text("activity_nr", 50),
			text("standard", 50),
			text("viol_type", 50),
			text("description", 10000),
			money("initial_penalty"),
			money("current_penalty"),
			money("fta_penalty"),
			text("site_state", 2),
			text("site_city", 100),
			text("naics_code", 10),
			text("sic_code", 10),
			date("violation_date"),
			yearColumn,
			text("facility_id", 50),
			text("violation_type", 100),
			text("enforcement_action", 100),
		},
		Indexes: []Index{
			{Name: "idx_violation_agency_company", Columns: []string{"agency", "company_name_normalized"}},
			{Name: "idx_violation_company_year", Columns: []string{"company_name_normalized", "year"}},
			{Name: "idx_violation_state_year", Columns: []string{"site_state", "year"}},
			{Name: "idx_violation_agency_year", Columns: []string{"agency", "year"}},
			{Name: "idx_violation_penalty", Columns: []string{"current_penalty"}},
			{Name: "idx_violation_standard_agency", Columns: []string{"standard", "agency"}},
			{Name: "idx_violation_naics_year", Columns: []string{"naics_code", "year"}},
		},
		Key:        "activity_nr",
		DateColumn: "violation_date",
	},
	{
		Name: Accidents,
		Columns: []Column{
			text("accident_key", 50),
			text("activity_nr", 50),
			text("estab_name", 500),
			text("site_state", 2),
			text("naics_code", 10),
			date("accident_date"),
			yearColumn,
			text("description", 10000),
			{Name: "fatality", Kind: KindBool},
			text("injury_type", 100),
		},
		Indexes: []Index{
			{Name: "idx_accident_key", Columns: []string{"accident_key"}},
			{Name: "idx_accident_state_year", Columns: []string{"site_state", "year"}},
			{Name: "idx_accident_date", Columns: []string{"accident_date"}},
		},
		Key:        "accident_key",
		DateColumn: "accident_date",
	},
}

// All returns every canonical table in load order. Inspections come first
// because violations are enriched from them after loading.
func All() []Table {
	out := make([]Table, len(tables))
	copy(out, tables)
	return out
}

// Names returns the table identifiers in load order.
func Names() []string {
	out := make([]string, len(tables))
	for i, t := range tables {
		out[i] = t.Name
	}
	return out
}

// Lookup returns the table with the given identifier.
func Lookup(name string) (Table, bool) {
	for _, t := range tables {
		if t.Name == name {
			return t, true
		}
	}
	return Table{}, false
}

// MustLookup is Lookup for identifiers known at compile time.
func MustLookup(name string) Table {
	t, ok := Lookup(name)
	if !ok {
		panic(fmt.Sprintf("schema: unknown table %q", name))
	}
	return t
}

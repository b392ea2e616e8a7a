package csv

import (
	"slices"

	"compliancedb/internal/loaderr"
	"compliancedb/internal/schema"
)

// Format identifies a known source layout.
type Format string

const (
	InspectionStandard Format = "inspection-standard"
	ViolationStandard  Format = "violation-standard"
	AccidentStandard   Format = "accident-standard"
	// AccidentFatality is the OSHA fatality report layout.
	AccidentFatality Format = "accident-fatality"
	// AccidentMSHA is the mine safety agency layout.
	AccidentMSHA Format = "accident-msha"
)

type signature struct {
	format Format
	table  string
	all    []string // every column must be present
	any    []string // at least one must be present, when non-empty
}

// signatures are checked in order; the more specific layouts come first.
var signatures = []signature{
	{format: AccidentMSHA, table: schema.Accidents, all: []string{"mine_id", "ai_dt"}},
	{format: AccidentFatality, table: schema.Accidents, all: []string{"summary_nr", "event_date"}},
	{format: AccidentStandard, table: schema.Accidents, all: []string{"accident_key"}},
	{
		format: ViolationStandard, table: schema.Violations,
		all: []string{"activity_nr"},
		any: []string{"standard", "citation_id", "current_penalty", "initial_penalty", "viol_type"},
	},
	{
		format: InspectionStandard, table: schema.Inspections,
		all: []string{"activity_nr"},
		any: []string{"open_date", "estab_name", "insp_type", "inspection_type"},
	},
}

// Table returns the canonical table the format loads into.
func (f Format) Table() string {
	for _, s := range signatures {
		if s.format == f {
			return s.table
		}
	}
	return ""
}

// Variant is the short layout family: standard, alternate-fatality or
// alternate-agency.
func (f Format) Variant() string {
	switch f {
	case AccidentFatality:
		return "alternate-fatality"
	case AccidentMSHA:
		return "alternate-agency"
	default:
		return "standard"
	}
}

// ParseFormat validates a format tag.
func ParseFormat(s string) (Format, bool) {
	for _, sig := range signatures {
		if string(sig.format) == s {
			return sig.format, true
		}
	}
	return "", false
}

func (s signature) matches(header []string) bool {
	for _, c := range s.all {
		if !slices.Contains(header, c) {
			return false
		}
	}
	if len(s.any) == 0 {
		return true
	}
	for _, c := range s.any {
		if slices.Contains(header, c) {
			return true
		}
	}
	return false
}

// Detect identifies the layout of a normalized header. When table is not
// empty only layouts for that table are considered. A header matching no
// signature yields a *loaderr.FormatError; the caller fills in Path.
func Detect(header []string, table string) (Format, error) {
	for _, s := range signatures {
		if table != "" && s.table != table {
			continue
		}
		if s.matches(header) {
			return s.format, nil
		}
	}
	return "", &loaderr.FormatError{Table: table, Header: slices.Clone(header)}
}

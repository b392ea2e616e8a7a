package transformer

import (
	"strings"

	"compliancedb/internal/parser/csv"
)

// source extracts one raw canonical value from a source row. It returns the
// trimmed string; "" means missing.
type source func(fields []string) string

// header maps normalized source column names to positions.
type header map[string]int

func newHeader(cols []string) header {
	h := make(header, len(cols))
	for i, c := range cols {
		if _, dup := h[c]; !dup {
			h[c] = i
		}
	}
	return h
}

// col returns a source for name, or nil when the file lacks the column.
func (h header) col(name string) source {
	i, ok := h[name]
	if !ok {
		return nil
	}
	return func(fields []string) string {
		if i >= len(fields) {
			return ""
		}
		return strings.TrimSpace(fields[i])
	}
}

// first yields the first non-empty value among the named columns.
func (h header) first(names ...string) source {
	var srcs []source
	for _, n := range names {
		if s := h.col(n); s != nil {
			srcs = append(srcs, s)
		}
	}
	switch len(srcs) {
	case 0:
		return nil
	case 1:
		return srcs[0]
	}
	return func(fields []string) string {
		for _, s := range srcs {
			if v := s(fields); v != "" {
				return v
			}
		}
		return ""
	}
}

// all returns the sources for every present column, in order.
func (h header) all(names ...string) []source {
	var out []source
	for _, n := range names {
		if s := h.col(n); s != nil {
			out = append(out, s)
		}
	}
	return out
}

func constant(v string) source { return func([]string) string { return v } }

func joined(sep string, srcs []source) source {
	if len(srcs) == 0 {
		return nil
	}
	return func(fields []string) string {
		parts := make([]string, 0, len(srcs))
		for _, s := range srcs {
			if v := s(fields); v != "" {
				parts = append(parts, v)
			}
		}
		return strings.Join(parts, sep)
	}
}

func flag(src source, pred func(string) bool) source {
	return func(fields []string) string {
		v := ""
		if src != nil {
			v = src(fields)
		}
		if pred(v) {
			return "1"
		}
		return "0"
	}
}

// mapping binds each canonical column to its source for one file. Columns
// missing from sources are always null. years lists the candidate year
// sources; the primary date is the last resort.
type mapping struct {
	sources map[string]source
	years   []source
}

// standardMapping maps same-named columns.
func standardMapping(h header, columns []string) mapping {
	m := mapping{sources: make(map[string]source, len(columns))}
	for _, c := range columns {
		if s := h.col(c); s != nil {
			m.sources[c] = s
		}
	}
	if s := h.col("year"); s != nil {
		m.years = []source{s}
	}
	delete(m.sources, "year")
	return m
}

func (m mapping) set(col string, s source) {
	if s == nil {
		delete(m.sources, col)
		return
	}
	m.sources[col] = s
}

func mappingFor(f csv.Format, h header, columns []string) mapping {
	m := standardMapping(h, columns)
	switch f {
	case csv.InspectionStandard:
		m.set("inspection_type", h.first("inspection_type", "insp_type"))

	case csv.ViolationStandard:
		company := h.first("estab_name", "company_name")
		m.set("agency", constant("OSHA"))
		m.set("company_name", company)
		if company != nil {
			m.set("company_name_normalized", func(fields []string) string {
				return NormalizeCompany(company(fields))
			})
		}
		m.set("violation_date", h.first("violation_date", "issuance_date", "open_date"))
		m.set("site_state", h.first("site_state", "state"))

	case csv.AccidentStandard:
		// same-named columns

	case csv.AccidentFatality:
		m.set("accident_key", h.col("summary_nr"))
		m.set("activity_nr", nil)
		m.set("estab_name", nil)
		m.set("naics_code", nil)
		m.set("site_state", h.col("state_flag"))
		m.set("accident_date", h.col("event_date"))
		m.set("description", joined(" | ", h.all("event_desc", "abstract_text")))
		m.set("fatality", flag(h.col("fatality"), func(v string) bool {
			return strings.EqualFold(v, "X")
		}))
		m.set("injury_type", h.col("event_keyword"))
		m.years = nil

	case csv.AccidentMSHA:
		mine, doc := h.col("mine_id"), h.col("document_no")
		m.set("accident_key", func(fields []string) string {
			id := mine(fields)
			if id == "" || doc == nil {
				return id
			}
			if d := doc(fields); d != "" {
				return id + "_" + d
			}
			return id
		})
		m.set("activity_nr", nil)
		m.set("naics_code", nil)
		m.set("estab_name", h.col("operator_name"))
		m.set("site_state", h.col("fips_state_cd"))
		m.set("accident_date", h.col("ai_dt"))
		m.set("description", h.col("ai_narr"))
		degree, code := h.col("inj_degr_desc"), h.col("degree_injury_cd")
		m.set("fatality", func(fields []string) string {
			if degree != nil && strings.Contains(strings.ToUpper(degree(fields)), "FATAL") {
				return "1"
			}
			if code != nil {
				if n, ok := ParseInt(code(fields)); ok && n == 1 {
					return "1"
				}
			}
			return "0"
		})
		m.set("injury_type", h.first("nature_injury", "inj_degr_desc"))
		m.years = h.all("ai_year", "cal_yr")
	}
	return m
}

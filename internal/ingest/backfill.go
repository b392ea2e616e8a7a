package ingest

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"

	"compliancedb/internal/metrics"
	"compliancedb/internal/schema"
	"compliancedb/internal/transformer"
)

// inspectionFills maps each violation column to the inspection column it is
// filled from when the violation extract leaves it empty.
var inspectionFills = []struct{ violation, inspection string }{
	{"company_name", "estab_name"},
	{"site_state", "site_state"},
	{"naics_code", "naics_code"},
	{"violation_date", "open_date"},
	{"year", "year"},
}

// normalizedColumn is derived in Go from company_name.
const normalizedColumn = "company_name_normalized"

// EnrichViolations fills violation columns the extract does not carry
// (company, state, NAICS, date, year) from the inspection with the same
// activity number, then derives company_name_normalized for rows that gained
// a company name. Only NULL columns are written. Indexes over the touched
// columns are dropped for the update and recreated afterwards. It returns the
// rows updated per column.
func (s *Service) EnrichViolations(ctx context.Context) (updated map[string]int64, err error) {
	start := time.Now()
	defer func() { metrics.RecordStep(schema.Violations, "enrich_violations", err, time.Since(start)) }()
	defer s.status.Purge()

	v := enrichedIndexes(schema.MustLookup(schema.Violations))
	if err := s.indexes.Drop(ctx, v); err != nil {
		return nil, err
	}
	defer func() {
		err = errors.Join(err, s.indexes.Create(context.WithoutCancel(ctx), v))
	}()

	q := s.db.Dialect().Quote
	updated = make(map[string]int64)
	for _, f := range inspectionFills {
		n, err := s.db.Exec(ctx, fillSQL(q, f.violation, f.inspection))
		if err != nil {
			return updated, fmt.Errorf("enrich violations.%s: %w", f.violation, err)
		}
		if n > 0 {
			updated[f.violation] = n
		}
	}

	n, err := s.normalizeCompanies(ctx)
	if n > 0 {
		updated[normalizedColumn] = n
	}
	if err != nil {
		return updated, err
	}
	s.log.Info("violations enriched from inspections", zap.Any("rows", updated), zap.Duration("took", time.Since(start)))
	return updated, nil
}

// normalizeCompanies sets company_name_normalized for every distinct
// company_name still missing it, in one transaction.
func (s *Service) normalizeCompanies(ctx context.Context) (int64, error) {
	d := s.db.Dialect()
	v, name, norm := d.Quote(schema.Violations), d.Quote("company_name"), d.Quote(normalizedColumn)
	names, err := s.db.QueryStrings(ctx, fmt.Sprintf(
		"SELECT DISTINCT %s FROM %s WHERE %s IS NULL AND %s IS NOT NULL", name, v, norm, name))
	if err != nil {
		return 0, fmt.Errorf("enrich violations.%s: %w", normalizedColumn, err)
	}
	if len(names) == 0 {
		return 0, nil
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return 0, err
	}
	update := fmt.Sprintf("UPDATE %s SET %s = %s WHERE %s = %s AND %s IS NULL",
		v, norm, d.Placeholder(1), name, d.Placeholder(2), norm)
	var total int64
	for _, company := range names {
		normalized := transformer.NormalizeCompany(company)
		if normalized == "" {
			continue
		}
		n, err := tx.Exec(ctx, update, normalized, company)
		if err != nil {
			_ = tx.Rollback(ctx)
			return 0, fmt.Errorf("enrich violations.%s: %w", normalizedColumn, err)
		}
		total += n
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return total, nil
}

// enrichedIndexes returns t restricted to the indexes over a column
// EnrichViolations may write.
func enrichedIndexes(t schema.Table) schema.Table {
	touched := []string{normalizedColumn}
	for _, f := range inspectionFills {
		touched = append(touched, f.violation)
	}
	var keep []schema.Index
	for _, idx := range t.Indexes {
		if slices.ContainsFunc(idx.Columns, func(c string) bool { return slices.Contains(touched, c) }) {
			keep = append(keep, idx)
		}
	}
	t.Indexes = keep
	return t
}

// fillSQL copies inspections.icol into violations.vcol where the violation
// column is NULL and a matching inspection has a value. MIN picks one value
// when an activity number repeats.
func fillSQL(q func(string) string, vcol, icol string) string {
	v, i := q(schema.Violations), q(schema.Inspections)
	vc, ic, act := q(vcol), q(icol), q("activity_nr")
	sub := fmt.Sprintf("SELECT MIN(ins.%s) FROM %s ins WHERE ins.%s = %s.%s AND ins.%s IS NOT NULL",
		ic, i, act, v, act, ic)
	return fmt.Sprintf("UPDATE %s SET %s = (%s) WHERE %s IS NULL AND EXISTS (%s)",
		v, vc, sub, vc, sub)
}

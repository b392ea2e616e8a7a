package loader

import (
	"time"

	"go.uber.org/zap"
)

// Progress is the state of a load after a chunk was inserted.
type Progress struct {
	Table    string        `json:"table"`
	Chunk    int           `json:"chunk"`
	Rows     int64         `json:"rows"`  // source rows consumed so far
	Total    int64         `json:"total"` // source rows expected
	Inserted int64         `json:"inserted"`
	Percent  float64       `json:"pct"`
	Rate     float64       `json:"rows_per_sec"`
	ETA      time.Duration `json:"eta"`
}

// tracker derives rate and ETA from elapsed wall time. ETA assumes the
// remaining rows cost what the consumed ones did.
type tracker struct {
	table string
	total int64
	start time.Time
	now   func() time.Time
}

func newTracker(table string, total int64, now func() time.Time) *tracker {
	return &tracker{table: table, total: total, start: now(), now: now}
}

func (t *tracker) at(chunk int, rows, inserted int64) Progress {
	p := Progress{Table: t.table, Chunk: chunk, Rows: rows, Total: t.total, Inserted: inserted}
	if t.total > 0 {
		p.Percent = min(100, float64(rows)*100/float64(t.total))
	}
	if secs := t.now().Sub(t.start).Seconds(); secs > 0 {
		p.Rate = float64(rows) / secs
	}
	if p.Rate > 0 && t.total > rows {
		p.ETA = time.Duration(float64(t.total-rows) / p.Rate * float64(time.Second))
	}
	return p
}

func (p Progress) fields() []zap.Field {
	return []zap.Field{
		zap.String("table", p.Table),
		zap.Int("chunk", p.Chunk),
		zap.Int64("rows", p.Rows),
		zap.Int64("total", p.Total),
		zap.Int64("inserted", p.Inserted),
		zap.Float64("pct", p.Percent),
		zap.Float64("rows_per_sec", p.Rate),
		zap.Duration("eta", p.ETA),
	}
}

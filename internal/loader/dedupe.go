package loader

import (
	"github.com/zeebo/xxh3"

	"compliancedb/internal/transformer"
)

// keySet remembers key hashes seen during one load.
type keySet struct {
	col  int
	seen map[uint64]struct{}
}

func newKeySet(col int) *keySet {
	return &keySet{col: col, seen: make(map[uint64]struct{})}
}

// filter drops rows whose key was already seen, in place, and returns the
// kept batch and the ordinals of the dropped rows.
func (k *keySet) filter(b transformer.Batch) (transformer.Batch, []int64) {
	var dups []int64
	n := 0
	for i, row := range b.Rows {
		key, _ := row[k.col].(string)
		h := xxh3.HashString(key)
		if _, ok := k.seen[h]; ok {
			dups = append(dups, b.Ordinals[i])
			continue
		}
		k.seen[h] = struct{}{}
		b.Rows[n] = row
		b.Ordinals[n] = b.Ordinals[i]
		n++
	}
	b.Rows = b.Rows[:n]
	b.Ordinals = b.Ordinals[:n]
	return b, dups
}

package metrics

import "sort"

// Bucket is one row of a count breakdown.
type Bucket struct {
	Label string
	Count int
}

// SortBuckets converts a label->count map into rows sorted by descending
// count, then by label for stability.
func SortBuckets(counts map[string]int) []Bucket {
	if len(counts) == 0 {
		return nil
	}
	rows := make([]Bucket, 0, len(counts))
	for label, count := range counts {
		rows = append(rows, Bucket{Label: label, Count: count})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Count == rows[j].Count {
			return rows[i].Label < rows[j].Label
		}
		return rows[i].Count > rows[j].Count
	})
	return rows
}

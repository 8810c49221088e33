package pipeline

import (
	"sort"

	"imgcluster/internal/palette"
)

// Table is the in-memory working table of histograms for the current run.
// It is immutable: Merge returns a new table and leaves the receiver as it
// was, sharing the older entries.
type Table struct {
	head *tableNode
}

type tableNode struct {
	result Result
	next   *tableNode
}

func NewTable(seed map[string]palette.Histogram) Table {
	paths := make([]string, 0, len(seed))
	for path := range seed {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	var table Table
	for _, path := range paths {
		table = table.Merge(Result{Path: path, Histogram: seed[path]})
	}

	return table
}

// Merge folds one completed result into the table. A later result for the
// same path replaces the earlier one.
func (t Table) Merge(result Result) Table {
	return Table{head: &tableNode{result: result, next: t.head}}
}

func (t Table) Len() int {
	return len(t.latest())
}

func (t Table) Lookup(path string) (palette.Histogram, bool) {
	for node := t.head; node != nil; node = node.next {
		if node.result.Path == path {
			return node.result.Histogram, true
		}
	}

	return nil, false
}

// Entries returns the table contents sorted by path.
func (t Table) Entries() []Result {
	latest := t.latest()
	entries := make([]Result, 0, len(latest))
	for _, result := range latest {
		entries = append(entries, result)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Path < entries[j].Path
	})

	return entries
}

func (t Table) latest() map[string]Result {
	latest := make(map[string]Result)
	for node := t.head; node != nil; node = node.next {
		if _, ok := latest[node.result.Path]; !ok {
			latest[node.result.Path] = node.result
		}
	}

	return latest
}

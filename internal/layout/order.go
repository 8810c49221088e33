package layout

import (
	"sort"

	"gonum.org/v1/gonum/floats"

	"imgcluster/internal/pipeline"
)

type Ranked struct {
	Path     string
	Rank     int
	Distance float64
}

// Order ranks members by ascending Euclidean distance to centroid. Members at
// equal distance keep their input order.
func Order(members []pipeline.Result, centroid []float64) []Ranked {
	ranked := make([]Ranked, len(members))
	for index, member := range members {
		ranked[index] = Ranked{
			Path:     member.Path,
			Distance: floats.Distance(member.Histogram, centroid, 2),
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Distance < ranked[j].Distance
	})

	for index := range ranked {
		ranked[index].Rank = index
	}

	return ranked
}

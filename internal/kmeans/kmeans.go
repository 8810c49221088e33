// Package kmeans partitions vectors into k groups with Lloyd's algorithm,
// seeded by k-means++.
package kmeans

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
)

// DefaultMaxIterations caps Lloyd iterations when Config.MaxIterations is
// not set.
const DefaultMaxIterations = 300

// ErrInvalidK is returned when k is not positive or exceeds the number of
// vectors.
var ErrInvalidK = errors.New("k must be between 1 and the number of vectors")

var ErrDimensionMismatch = errors.New("vectors differ in dimension")

type Config struct {
	K             int
	MaxIterations int
	Seed          uint64
}

// Assignment is the partition produced by Cluster. Members[i] holds indices
// into the clustered vectors; every index appears in exactly one cluster.
// Clusters may be empty.
type Assignment struct {
	Centroids  [][]float64
	Members    [][]int
	Iterations int
}

// Populated returns the indices of clusters with at least one member.
func (a Assignment) Populated() []int {
	populated := make([]int, 0, len(a.Members))
	for index, members := range a.Members {
		if len(members) > 0 {
			populated = append(populated, index)
		}
	}
	return populated
}

// Cluster runs k-means over vectors. Empty clusters are reseeded with the
// point farthest from its centroid once per iteration; a cluster that is
// still empty when the run converges is returned empty.
func Cluster(ctx context.Context, vectors [][]float64, cfg Config) (Assignment, error) {
	n := len(vectors)
	if cfg.K <= 0 || cfg.K > n {
		return Assignment{}, fmt.Errorf("cluster %d vectors into %d groups: %w", n, cfg.K, ErrInvalidK)
	}

	dim := len(vectors[0])
	for index, vector := range vectors {
		if len(vector) != dim {
			return Assignment{}, fmt.Errorf("vector %d has %d components, expected %d: %w", index, len(vector), dim, ErrDimensionMismatch)
		}
	}

	maxIterations := cfg.MaxIterations
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}

	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0xda3e39cb94b95bdb))
	centroids := seedCentroids(vectors, cfg.K, rng)

	assignments := make([]int, n)
	for i := range assignments {
		assignments[i] = -1
	}

	iterations := 0
	for iterations < maxIterations {
		if err := ctx.Err(); err != nil {
			return Assignment{}, err
		}
		iterations++

		changed := assign(vectors, centroids, assignments)
		if reseedEmpty(vectors, centroids, assignments) {
			changed = true
		}
		if !changed {
			break
		}

		updateCentroids(vectors, centroids, assignments)
	}

	members := make([][]int, cfg.K)
	for index, cluster := range assignments {
		members[cluster] = append(members[cluster], index)
	}

	return Assignment{Centroids: centroids, Members: members, Iterations: iterations}, nil
}

// Nearest returns the index of the centroid closest to vector and the
// distance to it. Ties resolve to the lowest index.
func Nearest(vector []float64, centroids [][]float64) (int, float64) {
	best := -1
	bestDistance := math.Inf(1)
	for index, centroid := range centroids {
		distance := floats.Distance(vector, centroid, 2)
		if distance < bestDistance {
			best = index
			bestDistance = distance
		}
	}

	return best, bestDistance
}

// seedCentroids picks k initial centroids with k-means++: each subsequent
// centroid is drawn with probability proportional to its squared distance
// from the nearest centroid chosen so far.
func seedCentroids(vectors [][]float64, k int, rng *rand.Rand) [][]float64 {
	centroids := make([][]float64, 0, k)
	centroids = append(centroids, clone(vectors[rng.IntN(len(vectors))]))

	weights := make([]float64, len(vectors))
	for len(centroids) < k {
		for index, vector := range vectors {
			_, distance := Nearest(vector, centroids)
			weights[index] = distance * distance
		}

		total := floats.Sum(weights)
		if total == 0 {
			centroids = append(centroids, clone(vectors[rng.IntN(len(vectors))]))
			continue
		}

		target := rng.Float64() * total
		chosen := len(vectors) - 1
		cumulative := 0.0
		for index, weight := range weights {
			cumulative += weight
			if cumulative > target {
				chosen = index
				break
			}
		}
		centroids = append(centroids, clone(vectors[chosen]))
	}

	return centroids
}

func assign(vectors [][]float64, centroids [][]float64, assignments []int) bool {
	changed := false
	for index, vector := range vectors {
		nearest, _ := Nearest(vector, centroids)
		if assignments[index] != nearest {
			assignments[index] = nearest
			changed = true
		}
	}
	return changed
}

// reseedEmpty moves the point farthest from its own centroid into each empty
// cluster, as long as that point's cluster keeps at least one member.
func reseedEmpty(vectors [][]float64, centroids [][]float64, assignments []int) bool {
	counts := make([]int, len(centroids))
	for _, cluster := range assignments {
		counts[cluster]++
	}

	reseeded := false
	for cluster, count := range counts {
		if count > 0 {
			continue
		}

		farthest := -1
		farthestDistance := -1.0
		for index, vector := range vectors {
			owner := assignments[index]
			if counts[owner] < 2 {
				continue
			}
			distance := floats.Distance(vector, centroids[owner], 2)
			if distance > farthestDistance {
				farthest = index
				farthestDistance = distance
			}
		}
		if farthest < 0 || farthestDistance == 0 {
			continue
		}

		counts[assignments[farthest]]--
		assignments[farthest] = cluster
		counts[cluster]++
		copy(centroids[cluster], vectors[farthest])
		reseeded = true
	}

	return reseeded
}

func updateCentroids(vectors [][]float64, centroids [][]float64, assignments []int) {
	counts := make([]int, len(centroids))
	sums := make([][]float64, len(centroids))
	for cluster := range sums {
		sums[cluster] = make([]float64, len(centroids[cluster]))
	}

	for index, vector := range vectors {
		cluster := assignments[index]
		floats.Add(sums[cluster], vector)
		counts[cluster]++
	}

	for cluster, count := range counts {
		if count == 0 {
			continue
		}
		floats.ScaleTo(centroids[cluster], 1/float64(count), sums[cluster])
	}
}

func clone(vector []float64) []float64 {
	out := make([]float64, len(vector))
	copy(out, vector)
	return out
}

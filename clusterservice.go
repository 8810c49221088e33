package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/samber/lo"

	"imgcluster/internal/config"
	"imgcluster/internal/histcache"
	"imgcluster/internal/kmeans"
	"imgcluster/internal/layout"
	"imgcluster/internal/palette"
	"imgcluster/internal/pipeline"
	"imgcluster/internal/progress"
)

var errNoInputs = errors.New("no input images")

type Summary struct {
	Inputs    int
	Pruned    int
	Hits      int
	Extracted int
	Skipped   int
	Clusters  int
	Linked    int
}

type ClusterService struct {
	cache     *histcache.Cache
	extract   pipeline.ExtractFunc
	dimension int
	options   config.Options
	writer    layout.Writer
	logger    *slog.Logger
}

func NewClusterService(
	cache *histcache.Cache,
	extract pipeline.ExtractFunc,
	dimension int,
	options config.Options,
	logger *slog.Logger,
) *ClusterService {
	return &ClusterService{
		cache:     cache,
		extract:   extract,
		dimension: dimension,
		options:   options,
		writer:    layout.Writer{Root: options.OutputDir, KeepExtension: options.KeepExtension},
		logger:    logger,
	}
}

// Run computes or loads a histogram for every path, clusters them and links
// the clusters into the output directory. Nothing is written to the output
// directory unless clustering succeeds.
func (s *ClusterService) Run(ctx context.Context, paths []string) (Summary, error) {
	workingSet := lo.Uniq(paths)
	if len(workingSet) == 0 {
		return Summary{}, errNoInputs
	}

	summary := Summary{Inputs: len(workingSet)}
	table, misses := s.loadCached(ctx, workingSet, &summary)

	if len(misses) > 0 {
		var err error
		table, err = s.extractMisses(ctx, table, misses, &summary)
		if err != nil {
			return summary, err
		}
	}

	entries := table.Entries()
	if len(entries) == 0 {
		return summary, errNoInputs
	}

	assignment, err := s.cluster(ctx, entries)
	if err != nil {
		return summary, err
	}

	for _, index := range assignment.Populated() {
		members := make([]pipeline.Result, 0, len(assignment.Members[index]))
		for _, member := range assignment.Members[index] {
			members = append(members, entries[member])
		}

		ranked := layout.Order(members, assignment.Centroids[index])
		linked, err := s.writer.Materialize(index, ranked)
		summary.Linked += linked
		if err != nil {
			return summary, fmt.Errorf("write cluster %d: %w", index, err)
		}
		summary.Clusters++

		s.logger.Debug("cluster written", "cluster", index, "members", linked)
	}

	return summary, nil
}

// loadCached prunes the cache to the working set and splits it into cached
// histograms and paths that still need extraction. Cache failures only cost
// recomputation.
func (s *ClusterService) loadCached(ctx context.Context, workingSet []string, summary *Summary) (pipeline.Table, []string) {
	pruned, err := s.cache.Prune(ctx, workingSet)
	if err != nil {
		s.logger.Warn("histogram cache prune failed", "error", err)
	} else if pruned > 0 {
		s.logger.Debug("pruned stale histograms", "count", pruned)
	}
	summary.Pruned = pruned

	cached, err := s.cache.All(ctx)
	if err != nil {
		s.logger.Warn("histogram cache read failed", "error", err)
		cached = nil
	}

	hits := make(map[string]palette.Histogram, len(cached))
	misses := lo.Filter(workingSet, func(path string, _ int) bool {
		histogram, ok := cached[path]
		if !ok || len(histogram) != s.dimension {
			return true
		}
		hits[path] = histogram
		return false
	})
	summary.Hits = len(hits)

	s.logger.Info("histogram cache checked",
		"enabled", s.cache.Enabled(),
		"hits", len(hits),
		"misses", len(misses),
	)

	return pipeline.NewTable(hits), misses
}

func (s *ClusterService) extractMisses(ctx context.Context, table pipeline.Table, misses []string, summary *Summary) (pipeline.Table, error) {
	reporter := progress.New(s.logger, "extracting histograms", len(misses), progress.DefaultInterval)

	p := pipeline.New(s.extract, pipeline.Options{
		Workers:      s.options.Workers,
		Seed:         s.options.Seed,
		SkipFailures: s.options.SkipFailures,
		OnSkip: func(path string, err error) {
			summary.Skipped++
			reporter.Step(path)
			s.logger.Warn("skipping image", "path", path, "error", err)
		},
	})

	s.logger.Info("extracting histograms", "files", len(misses), "workers", p.Workers())

	// Results drained after cancellation are still worth keeping.
	writeCtx := context.WithoutCancel(ctx)

	_, err := p.Run(ctx, misses, func(result pipeline.Result) {
		table = table.Merge(result)
		summary.Extracted++
		reporter.Step(result.Path)

		if err := s.cache.Put(writeCtx, result.Path, result.Histogram); err != nil {
			s.logger.Warn("histogram cache write failed", "path", result.Path, "error", err)
		}
	})
	if err != nil {
		return table, err
	}
	reporter.Finish()

	return table, nil
}

func (s *ClusterService) cluster(ctx context.Context, entries []pipeline.Result) (kmeans.Assignment, error) {
	vectors := lo.Map(entries, func(entry pipeline.Result, _ int) []float64 {
		return entry.Histogram
	})

	assignment, err := kmeans.Cluster(ctx, vectors, kmeans.Config{
		K:             s.options.Clusters,
		MaxIterations: s.options.MaxIterations,
		Seed:          s.options.Seed,
	})
	if err != nil {
		return kmeans.Assignment{}, fmt.Errorf("cluster histograms: %w", err)
	}

	s.logger.Info("clustered histograms",
		"images", len(vectors),
		"k", s.options.Clusters,
		"populated", len(assignment.Populated()),
		"iterations", assignment.Iterations,
	)

	return assignment, nil
}

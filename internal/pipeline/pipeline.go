package pipeline

import (
	"context"
	"math/rand/v2"
	"runtime"

	"golang.org/x/sync/errgroup"

	"imgcluster/internal/palette"
)

// Result pairs a file with its histogram. The pair travels together through
// every stage so the file is never recovered from the vector.
type Result struct {
	Path      string
	Histogram palette.Histogram
}

type ExtractFunc func(path string) (palette.Histogram, error)

type Options struct {
	// Workers is the number of concurrent extractions. Zero means
	// runtime.GOMAXPROCS(0).
	Workers int

	// Seed drives the dispatch shuffle.
	Seed uint64

	// SkipFailures keeps the run going when a file fails; the failure is
	// passed to OnSkip instead of aborting.
	SkipFailures bool
	OnSkip       func(path string, err error)
}

type Stats struct {
	Dispatched int
	Completed  int
	Failed     int
}

type Pipeline struct {
	extract ExtractFunc
	options Options
}

type outcome struct {
	path      string
	histogram palette.Histogram
	err       error
}

func New(extract ExtractFunc, options Options) *Pipeline {
	if options.Workers <= 0 {
		options.Workers = runtime.GOMAXPROCS(0)
	}

	return &Pipeline{extract: extract, options: options}
}

func (p *Pipeline) Workers() int {
	return p.options.Workers
}

// Run extracts a histogram for every path on the worker pool and calls handle
// for each success, in completion order, on the calling goroutine.
//
// Unless SkipFailures is set, the first failure stops dispatching. Work that
// was already dispatched still completes and its successes are handled before
// Run returns the failure.
func (p *Pipeline) Run(ctx context.Context, paths []string, handle func(Result)) (Stats, error) {
	queue := make([]string, len(paths))
	copy(queue, paths)
	shuffle(queue, p.options.Seed)

	dispatchCtx, stopDispatch := context.WithCancel(ctx)
	defer stopDispatch()

	results := make(chan outcome)
	dispatched := make(chan int, 1)

	go func() {
		var group errgroup.Group
		group.SetLimit(p.options.Workers)

		submitted := 0
		for _, path := range queue {
			if dispatchCtx.Err() != nil {
				break
			}

			group.Go(func() error {
				histogram, err := p.extract(path)
				results <- outcome{path: path, histogram: histogram, err: err}
				return nil
			})
			submitted++
		}

		group.Wait()
		dispatched <- submitted
		close(results)
	}()

	stats := Stats{}
	var firstErr error
	for result := range results {
		stats.Completed++

		if result.err != nil {
			stats.Failed++
			if p.options.SkipFailures {
				if p.options.OnSkip != nil {
					p.options.OnSkip(result.path, result.err)
				}
				continue
			}

			if firstErr == nil {
				firstErr = result.err
				stopDispatch()
			}
			continue
		}

		handle(Result{Path: result.path, Histogram: result.histogram})
	}
	stats.Dispatched = <-dispatched

	if firstErr != nil {
		return stats, firstErr
	}

	if err := ctx.Err(); err != nil && stats.Dispatched < len(queue) {
		return stats, err
	}

	return stats, nil
}

// shuffle randomizes dispatch order so that progress estimates see a
// representative mix of inputs early.
func shuffle(paths []string, seed uint64) {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	rng.Shuffle(len(paths), func(i, j int) {
		paths[i], paths[j] = paths[j], paths[i]
	})
}

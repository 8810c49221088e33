package main

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/bep/debounce"
	"github.com/fsnotify/fsnotify"

	"imgcluster/internal/histcache"
	"imgcluster/internal/pipeline"
	"imgcluster/internal/scanner"
)

const defaultWatchDelay = 750 * time.Millisecond

// WatchService keeps the histogram cache in step with an input directory
// after a run, so the next run finds fresh entries for rewritten files.
type WatchService struct {
	cache   *histcache.Cache
	extract pipeline.ExtractFunc
	workers int
	delay   time.Duration
	logger  *slog.Logger
	pending map[string]struct{}
	flushes chan struct{}
}

func NewWatchService(cache *histcache.Cache, extract pipeline.ExtractFunc, workers int, logger *slog.Logger) *WatchService {
	return &WatchService{
		cache:   cache,
		extract: extract,
		workers: workers,
		delay:   defaultWatchDelay,
		logger:  logger,
		pending: make(map[string]struct{}),
		flushes: make(chan struct{}, 1),
	}
}

// Run watches dir until ctx is done. Cache writes happen on the calling
// goroutine only.
func (s *WatchService) Run(ctx context.Context, dir string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	debounced := debounce.New(s.delay)
	s.logger.Info("watching input directory", "dir", dir)

	for {
		select {
		case <-ctx.Done():
			s.flush(context.WithoutCancel(ctx))
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if s.handleEvent(ctx, event) {
				debounced(s.requestFlush)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("watcher error", "error", err)
		case <-s.flushes:
			s.flush(ctx)
		}
	}
}

// handleEvent applies one filesystem event and reports whether a refresh is
// now pending.
func (s *WatchService) handleEvent(ctx context.Context, event fsnotify.Event) bool {
	if !scanner.IsSupported(event.Name) {
		return false
	}

	if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
		delete(s.pending, event.Name)
		if err := s.cache.Delete(ctx, event.Name); err != nil {
			s.logger.Warn("histogram cache delete failed", "path", event.Name, "error", err)
			return false
		}
		s.logger.Debug("dropped cached histogram", "path", event.Name)
		return false
	}

	if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) {
		s.pending[event.Name] = struct{}{}
		return true
	}

	return false
}

func (s *WatchService) requestFlush() {
	select {
	case s.flushes <- struct{}{}:
	default:
	}
}

// flush re-extracts every pending file into the cache. Files that fail to
// decode, for example because they are still being written, are skipped and
// picked up by their next write event.
func (s *WatchService) flush(ctx context.Context) int {
	if len(s.pending) == 0 {
		return 0
	}

	paths := make([]string, 0, len(s.pending))
	for path := range s.pending {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	clear(s.pending)

	p := pipeline.New(s.extract, pipeline.Options{
		Workers:      s.workers,
		SkipFailures: true,
		OnSkip: func(path string, err error) {
			s.logger.Debug("refresh skipped", "path", path, "error", err)
		},
	})

	writeCtx := context.WithoutCancel(ctx)
	refreshed := 0
	if _, err := p.Run(ctx, paths, func(result pipeline.Result) {
		if err := s.cache.Put(writeCtx, result.Path, result.Histogram); err != nil {
			s.logger.Warn("histogram cache write failed", "path", result.Path, "error", err)
			return
		}
		refreshed++
	}); err != nil {
		s.logger.Warn("refresh interrupted", "error", err)
	}

	s.logger.Info("refreshed cached histograms", "count", refreshed)
	return refreshed
}

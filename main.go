package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	"imgcluster/internal/config"
	"imgcluster/internal/histcache"
	"imgcluster/internal/logging"
	"imgcluster/internal/palette"
	"imgcluster/internal/scanner"
)

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdin, os.Stderr))
}

func run(ctx context.Context, args []string, stdin io.Reader, stderr io.Writer) int {
	options, err := parseArgs(args, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return exitOK
	}
	if err != nil {
		fmt.Fprintf(stderr, "imgcluster: %v\n", err)
		return exitUsage
	}

	level := slog.LevelInfo
	if options.Verbose {
		level = slog.LevelDebug
	}

	logger, err := logging.New(stderr, options.LogFormat, level)
	if err != nil {
		fmt.Fprintf(stderr, "imgcluster: %v\n", err)
		return exitUsage
	}
	logger = logger.With("run", uuid.NewString())

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := execute(ctx, options, stdin, logger); err != nil {
		logger.Error("imgcluster failed", "error", err)
		return exitError
	}

	return exitOK
}

func parseArgs(args []string, stderr io.Writer) (config.Options, error) {
	options := config.Default()

	flags := flag.NewFlagSet("imgcluster", flag.ContinueOnError)
	flags.SetOutput(stderr)
	flags.Usage = func() {
		fmt.Fprintf(flags.Output(), "usage: imgcluster [flags] INDIR|- OUTDIR\n\n")
		flags.PrintDefaults()
	}

	flags.StringVar(&options.CachePath, "cache", os.Getenv(config.CacheEnv), "histogram cache file, or \"auto\" for the user cache dir (env "+config.CacheEnv+")")
	flags.IntVar(&options.Clusters, "n", options.Clusters, "number of clusters")
	flags.IntVar(&options.Workers, "workers", 0, "concurrent extractions (default GOMAXPROCS)")
	flags.Uint64Var(&options.Seed, "seed", 1, "seed for dispatch order and cluster initialization")
	flags.IntVar(&options.MaxIterations, "max-iter", 0, "maximum k-means iterations (default 300)")
	flags.BoolVar(&options.KeepExtension, "keep-ext", false, "keep source extensions instead of naming every link .jpg")
	flags.BoolVar(&options.SkipFailures, "skip-failures", false, "skip images that fail to decode instead of aborting")
	flags.BoolVar(&options.Watch, "watch", false, "after clustering, keep the cache fresh for INDIR until interrupted")
	flags.StringVar(&options.LogFormat, "log-format", options.LogFormat, "log format: text or json")
	flags.BoolVar(&options.Verbose, "v", false, "verbose logging")

	if err := flags.Parse(args); err != nil {
		return config.Options{}, err
	}

	if flags.NArg() != 2 {
		flags.Usage()
		return config.Options{}, fmt.Errorf("expected INDIR and OUTDIR, got %d arguments", flags.NArg())
	}
	options.Input = flags.Arg(0)
	options.OutputDir = flags.Arg(1)

	options = options.Normalized()
	if err := options.Validate(); err != nil {
		return config.Options{}, err
	}

	return options, nil
}

func execute(ctx context.Context, options config.Options, stdin io.Reader, logger *slog.Logger) error {
	paths, err := loadInputs(options, stdin)
	if err != nil {
		return err
	}

	cachePath, err := config.ResolveCachePath(config.AppSlug, options.CachePath)
	if err != nil {
		return err
	}

	cache, err := histcache.Open(ctx, cachePath)
	if err != nil {
		return err
	}
	defer cache.Close()

	extractor := palette.NewExtractor(palette.Default)
	service := NewClusterService(cache, extractor.ExtractFromPath, len(extractor.Palette()), options, logger)

	summary, err := service.Run(ctx, paths)
	if err != nil {
		return err
	}

	logger.Info("clusters written",
		"output", options.OutputDir,
		"inputs", summary.Inputs,
		"cached", summary.Hits,
		"extracted", summary.Extracted,
		"skipped", summary.Skipped,
		"pruned", summary.Pruned,
		"clusters", summary.Clusters,
		"linked", summary.Linked,
	)

	if options.Watch {
		watcher := NewWatchService(cache, extractor.ExtractFromPath, options.Workers, logger)
		return watcher.Run(ctx, options.Input)
	}

	return nil
}

func loadInputs(options config.Options, stdin io.Reader) ([]string, error) {
	if options.ReadsStdin() {
		return scanner.ReadList(stdin)
	}

	return scanner.ListDirectory(options.Input)
}

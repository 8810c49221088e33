package config

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

const (
	AppSlug = "imgcluster"

	// CacheEnv supplies the cache location when no -cache flag is given.
	CacheEnv = "IMGCLUSTER_CACHE"

	// StdinInput selects a newline separated path list on stdin.
	StdinInput = "-"
)

const (
	defaultClusters = 10
	maxWorkerCap    = 256
)

type Options struct {
	CachePath     string
	Clusters      int
	Input         string
	OutputDir     string
	Workers       int
	Seed          uint64
	MaxIterations int
	KeepExtension bool
	SkipFailures  bool
	Watch         bool
	LogFormat     string
	Verbose       bool
}

func Default() Options {
	return Options{
		Clusters:  defaultClusters,
		LogFormat: "text",
	}
}

func (o Options) Normalized() Options {
	normalized := o

	normalized.Input = strings.TrimSpace(normalized.Input)
	normalized.OutputDir = strings.TrimSpace(normalized.OutputDir)
	normalized.CachePath = strings.TrimSpace(normalized.CachePath)

	if normalized.Workers <= 0 {
		normalized.Workers = runtime.GOMAXPROCS(0)
	}
	normalized.Workers = clampInt(normalized.Workers, 1, maxWorkerCap)

	if normalized.MaxIterations < 0 {
		normalized.MaxIterations = 0
	}

	if normalized.LogFormat == "" {
		normalized.LogFormat = "text"
	}

	return normalized
}

func (o Options) ReadsStdin() bool {
	return o.Input == StdinInput
}

func (o Options) Validate() error {
	if o.Clusters <= 0 {
		return fmt.Errorf("cluster count must be positive, got %d", o.Clusters)
	}
	if o.Input == "" {
		return errors.New("input directory is required")
	}
	if o.OutputDir == "" {
		return errors.New("output directory is required")
	}
	if o.Watch {
		if o.ReadsStdin() {
			return errors.New("watch mode needs an input directory, not stdin")
		}
		if o.CachePath == "" {
			return errors.New("watch mode needs a cache")
		}
	}

	return nil
}

func clampInt(value int, minValue int, maxValue int) int {
	if value < minValue {
		return minValue
	}
	if value > maxValue {
		return maxValue
	}
	return value
}

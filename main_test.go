package main

import (
	"bytes"
	"context"
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imgcluster/internal/config"
)

func TestParseArgs(t *testing.T) {
	t.Setenv(config.CacheEnv, "")

	var stderr bytes.Buffer
	options, err := parseArgs([]string{"-n", "4", "-workers", "3", "-seed", "9", "-keep-ext", "in", "out"}, &stderr)
	require.NoError(t, err)
	assert.Equal(t, 4, options.Clusters)
	assert.Equal(t, 3, options.Workers)
	assert.Equal(t, uint64(9), options.Seed)
	assert.True(t, options.KeepExtension)
	assert.Equal(t, "in", options.Input)
	assert.Equal(t, "out", options.OutputDir)
	assert.Empty(t, options.CachePath)
}

func TestParseArgsDefaults(t *testing.T) {
	t.Setenv(config.CacheEnv, "")

	options, err := parseArgs([]string{"-", "out"}, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, 10, options.Clusters)
	assert.Equal(t, uint64(1), options.Seed)
	assert.Positive(t, options.Workers)
	assert.True(t, options.ReadsStdin())
}

func TestParseArgsCacheFromEnvironment(t *testing.T) {
	t.Setenv(config.CacheEnv, "/tmp/from-env.db")

	options, err := parseArgs([]string{"in", "out"}, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, "/tmp/from-env.db", options.CachePath)

	options, err = parseArgs([]string{"-cache", "/tmp/flag.db", "in", "out"}, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, "/tmp/flag.db", options.CachePath)
}

func TestParseArgsRejectsBadUsage(t *testing.T) {
	t.Setenv(config.CacheEnv, "")

	cases := map[string][]string{
		"missing output": {"in"},
		"extra argument": {"in", "out", "more"},
		"zero clusters":  {"-n", "0", "in", "out"},
		"unknown flag":   {"-bogus", "in", "out"},
		"watch stdin":    {"-watch", "-cache", "c.db", "-", "out"},
	}

	for name, args := range cases {
		_, err := parseArgs(args, &bytes.Buffer{})
		assert.Error(t, err, name)
	}
}

func TestRunExitCodes(t *testing.T) {
	t.Setenv(config.CacheEnv, "")

	var stderr bytes.Buffer
	assert.Equal(t, exitOK, run(context.Background(), []string{"-h"}, strings.NewReader(""), &stderr))
	assert.Equal(t, exitUsage, run(context.Background(), []string{"only-one"}, strings.NewReader(""), &stderr))

	outputDir := filepath.Join(t.TempDir(), "out")
	assert.Equal(t, exitError, run(context.Background(), []string{"-", outputDir}, strings.NewReader("\n"), &stderr))

	_, err := os.Stat(outputDir)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestRunClustersStdinList(t *testing.T) {
	t.Setenv(config.CacheEnv, "")

	inputDir := t.TempDir()
	list := strings.Join([]string{
		writeSolidPNG(t, inputDir, "a.png", red),
		writeSolidPNG(t, inputDir, "b.png", blue),
		writeSolidPNG(t, inputDir, "c.png", red),
	}, "\n")

	outputDir := filepath.Join(t.TempDir(), "out")
	var stderr bytes.Buffer
	code := run(context.Background(), []string{"-n", "2", "-log-format", "json", "-", outputDir}, strings.NewReader(list), &stderr)
	require.Equal(t, exitOK, code, stderr.String())
	assert.Contains(t, stderr.String(), `"run":`)

	groups := readClusters(t, outputDir)
	assert.Len(t, groups, 2)
}

func TestHelpIsNotAnError(t *testing.T) {
	_, err := parseArgs([]string{"-h"}, &bytes.Buffer{})
	assert.ErrorIs(t, err, flag.ErrHelp)
}

package layout

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imgcluster/internal/palette"
	"imgcluster/internal/pipeline"
)

func TestNaming(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "00", ClusterDirName(0))
	assert.Equal(t, "07", ClusterDirName(7))
	assert.Equal(t, "123", ClusterDirName(123))

	assert.Equal(t, "000.jpg", MemberFileName(0, "/in/a.png", false))
	assert.Equal(t, "012.png", MemberFileName(12, "/in/a.PNG", true))
	assert.Equal(t, "003.jpg", MemberFileName(3, "/in/noext", true))
	assert.Equal(t, ".pef", NormalizeExtension("PEF"))
}

func TestOrderRanksByDistance(t *testing.T) {
	t.Parallel()

	members := []pipeline.Result{
		{Path: "far.jpg", Histogram: palette.Histogram{0, 1}},
		{Path: "near.jpg", Histogram: palette.Histogram{0.9, 0.1}},
		{Path: "mid.jpg", Histogram: palette.Histogram{0.5, 0.5}},
	}

	ranked := Order(members, []float64{1, 0})
	require.Len(t, ranked, 3)
	assert.Equal(t, "near.jpg", ranked[0].Path)
	assert.Equal(t, "mid.jpg", ranked[1].Path)
	assert.Equal(t, "far.jpg", ranked[2].Path)
	for index, member := range ranked {
		assert.Equal(t, index, member.Rank)
	}
	assert.Less(t, ranked[0].Distance, ranked[1].Distance)
}

func TestOrderKeepsInputOrderOnTies(t *testing.T) {
	t.Parallel()

	members := []pipeline.Result{
		{Path: "b.jpg", Histogram: palette.Histogram{0, 1}},
		{Path: "a.jpg", Histogram: palette.Histogram{1, 0}},
		{Path: "c.jpg", Histogram: palette.Histogram{0, 1}},
	}

	ranked := Order(members, []float64{0.5, 0.5})
	assert.Equal(t, []string{"b.jpg", "a.jpg", "c.jpg"}, paths(ranked))
	assert.Equal(t, paths(ranked), paths(Order(members, []float64{0.5, 0.5})))
}

func TestMaterializeLinksMembers(t *testing.T) {
	t.Parallel()

	inputDir := t.TempDir()
	outputDir := filepath.Join(t.TempDir(), "out")
	first := writeFile(t, inputDir, "first.png")
	second := writeFile(t, inputDir, "second.jpg")

	writer := Writer{Root: outputDir}
	linked, err := writer.Materialize(4, []Ranked{
		{Path: first, Rank: 0},
		{Path: second, Rank: 1},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, linked)

	assertSameFile(t, first, filepath.Join(outputDir, "04", "000.jpg"))
	assertSameFile(t, second, filepath.Join(outputDir, "04", "001.jpg"))
}

func TestMaterializeKeepsExtension(t *testing.T) {
	t.Parallel()

	inputDir := t.TempDir()
	outputDir := t.TempDir()
	source := writeFile(t, inputDir, "photo.PNG")

	linked, err := Writer{Root: outputDir, KeepExtension: true}.Materialize(0, []Ranked{{Path: source}})
	require.NoError(t, err)
	assert.Equal(t, 1, linked)
	assertSameFile(t, source, filepath.Join(outputDir, "00", "000.png"))
}

func TestMaterializeSkipsEmptyClusters(t *testing.T) {
	t.Parallel()

	outputDir := t.TempDir()
	linked, err := Writer{Root: outputDir}.Materialize(2, nil)
	require.NoError(t, err)
	assert.Zero(t, linked)

	_, err = os.Stat(filepath.Join(outputDir, "02"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestMaterializeReportsMissingSource(t *testing.T) {
	t.Parallel()

	missing := filepath.Join(t.TempDir(), "missing.jpg")
	_, err := Writer{Root: t.TempDir()}.Materialize(0, []Ranked{{Path: missing}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), missing)
}

func paths(ranked []Ranked) []string {
	out := make([]string, len(ranked))
	for index, member := range ranked {
		out[index] = member.Path
	}
	return out
}

func writeFile(t *testing.T, dir string, name string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(name), 0o644))
	return path
}

func assertSameFile(t *testing.T, expected string, actual string) {
	t.Helper()

	expectedInfo, err := os.Stat(expected)
	require.NoError(t, err)
	actualInfo, err := os.Stat(actual)
	require.NoError(t, err)
	assert.True(t, os.SameFile(expectedInfo, actualInfo), "%s is not a link to %s", actual, expected)
}

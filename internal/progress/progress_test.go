package progress

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestETAExtrapolatesFromCompletedItems(t *testing.T) {
	t.Parallel()

	started := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	reporter := New(slog.New(slog.DiscardHandler), "extract", 10, time.Hour)
	reporter.started = started
	reporter.now = func() time.Time { return started.Add(8 * time.Second) }

	assert.Zero(t, reporter.ETA())

	for i := 0; i < 4; i++ {
		reporter.Step("file.jpg")
	}

	assert.Equal(t, 4, reporter.Done())
	assert.Equal(t, 40, reporter.Percent())
	assert.Equal(t, 12*time.Second, reporter.ETA())
}

func TestStepLogsFirstCompletion(t *testing.T) {
	t.Parallel()

	var buffer bytes.Buffer
	reporter := New(slog.New(slog.NewTextHandler(&buffer, nil)), "extract", 1200, time.Hour)

	reporter.Step("a.jpg")
	reporter.Step("b.jpg")

	output := buffer.String()
	assert.Equal(t, 1, strings.Count(output, "msg=extract"))
	assert.Contains(t, output, "total=1,200")
	assert.Contains(t, output, "last=a.jpg")
}

func TestPercentWithoutItems(t *testing.T) {
	t.Parallel()

	reporter := New(slog.New(slog.DiscardHandler), "extract", 0, 0)
	assert.Equal(t, 100, reporter.Percent())
	assert.Zero(t, reporter.ETA())
}

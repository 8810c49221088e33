package progress

import (
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/time/rate"
)

const DefaultInterval = 2 * time.Second

// Reporter logs completion counts and an ETA for a known number of items,
// at most once per interval.
type Reporter struct {
	logger  *slog.Logger
	phase   string
	total   int
	done    int
	started time.Time
	now     func() time.Time
	every   rate.Sometimes
}

func New(logger *slog.Logger, phase string, total int, interval time.Duration) *Reporter {
	if interval <= 0 {
		interval = DefaultInterval
	}

	return &Reporter{
		logger:  logger,
		phase:   phase,
		total:   total,
		started: time.Now(),
		now:     time.Now,
		every:   rate.Sometimes{First: 1, Interval: interval},
	}
}

func (r *Reporter) Step(item string) {
	r.done++
	r.every.Do(func() {
		r.logger.Info(r.phase,
			"done", humanize.Comma(int64(r.done)),
			"total", humanize.Comma(int64(r.total)),
			"percent", r.Percent(),
			"eta", r.ETA().Round(time.Second).String(),
			"last", item,
		)
	})
}

func (r *Reporter) Finish() {
	r.logger.Info(r.phase+" finished",
		"done", humanize.Comma(int64(r.done)),
		"elapsed", r.now().Sub(r.started).Round(time.Millisecond).String(),
	)
}

func (r *Reporter) Done() int {
	return r.done
}

func (r *Reporter) Percent() int {
	if r.total <= 0 {
		return 100
	}

	return r.done * 100 / r.total
}

// ETA extrapolates the remaining time from the average time per completed
// item. It is zero until the first item completes.
func (r *Reporter) ETA() time.Duration {
	if r.done == 0 || r.done >= r.total {
		return 0
	}

	elapsed := r.now().Sub(r.started)
	perItem := elapsed / time.Duration(r.done)
	return perItem * time.Duration(r.total-r.done)
}

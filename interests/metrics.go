package interests

import "github.com/chronosync/go-chronosync/metrics"

const subsystem = "interests"

var (
	liveEntries = metrics.NewGauge(
		"entries",
		subsystem,
		"Number of pending interests",
		[]string{},
	).WithLabelValues()

	expiredEntries = metrics.NewCounter(
		"expired",
		subsystem,
		"Total interests removed by the expiry sweep",
		[]string{},
	).WithLabelValues()

	replacedEntries = metrics.NewCounter(
		"replaced",
		subsystem,
		"Total interests replaced by a newer one with the same key",
		[]string{},
	).WithLabelValues()
)

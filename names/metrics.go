package names

import "github.com/chronosync/go-chronosync/metrics"

const subsystem = "names"

var (
	internedNames = metrics.NewGauge(
		"interned",
		subsystem,
		"Number of names held by all registries",
		[]string{},
	).WithLabelValues()

	evictedNames = metrics.NewCounter(
		"evicted",
		subsystem,
		"Total names evicted after their last reference was released",
		[]string{},
	).WithLabelValues()
)

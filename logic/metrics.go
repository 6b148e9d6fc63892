package logic

import "github.com/chronosync/go-chronosync/metrics"

const subsystem = "logic"

var (
	diffLogLookups = metrics.NewCounter(
		"diff_log_lookups",
		subsystem,
		"Lookups of a digest in the recent diff log",
		[]string{"outcome"},
	)
	diffLogHit  = diffLogLookups.WithLabelValues("hit")
	diffLogMiss = diffLogLookups.WithLabelValues("miss")

	remoteChanges = metrics.NewCounter(
		"remote_changes",
		subsystem,
		"Producer changes applied from remote diffs",
		[]string{"op"},
	)
	remoteUpdates  = remoteChanges.WithLabelValues("update")
	remoteRemovals = remoteChanges.WithLabelValues("remove")

	answeredRequests = metrics.NewCounter(
		"answered_requests",
		subsystem,
		"Pending sync requests answered after a state change",
		[]string{},
	).WithLabelValues()

	recoveries = metrics.NewCounter(
		"recoveries",
		subsystem,
		"Requests for an unknown digest answered with the whole state",
		[]string{},
	).WithLabelValues()
)

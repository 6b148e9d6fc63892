package syncstate

import "github.com/chronosync/go-chronosync/metrics"

const (
	subsystem = "state"

	outcomeInserted = "inserted"
	outcomeUpdated  = "updated"
	outcomeStale    = "stale"
)

var (
	stateUpdates = metrics.NewCounter(
		"updates",
		subsystem,
		"Total state updates by outcome",
		[]string{"outcome"},
	)

	stateRemovals = metrics.NewCounter(
		"removals",
		subsystem,
		"Total leaves removed from the state",
		[]string{},
	).WithLabelValues()

	digestRecomputations = metrics.NewCounter(
		"digest_recomputations",
		subsystem,
		"Total aggregate digest recomputations",
		[]string{},
	).WithLabelValues()
)

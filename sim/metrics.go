package sim

import "github.com/chronosync/go-chronosync/metrics"

var droppedMessages = metrics.NewCounter(
	"dropped_messages",
	"sim",
	"Messages dropped because the receiving inbox was full",
	[]string{},
).WithLabelValues()

package logic

import "github.com/chronosync/go-chronosync/syncstate"

//go:generate mockgen -typed -package=logic -destination=./mocks.go -source=./interface.go

// Handler receives the changes the local replica learns from remote diffs.
type Handler interface {
	// OnUpdate is called with every producer that was inserted or advanced.
	OnUpdate(updates []MissingDataInfo)
	// OnRemove is called when a producer is retracted.
	OnRemove(prefix string)
}

// Responder answers pending sync requests once the local state moves past
// the digest they were waiting on.
type Responder interface {
	Respond(key string, diff *syncstate.DiffState)
}

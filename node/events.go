package node

import (
	"log"

	"github.com/tolelom/sequencer/events"
)

// wireLogging subscribes a component-tagged logger to every event type the
// engine, proposal handler, and synchronizer emit, grounded on the
// teacher's indexer-subscribes-to-emitter pattern (subscribe once at
// construction, log-don't-propagate-errors on the handler side).
func wireLogging(e *events.Emitter) {
	types := []events.EventType{
		events.EventBlockCommit,
		events.EventCommitmentReceived,
		events.EventLeaderElected,
		events.EventProposalSent,
		events.EventProposalRejected,
		events.EventSyncCaughtUp,
	}
	for _, t := range types {
		e.Subscribe(t, func(ev events.Event) {
			log.Printf("[node] %s height=%d %v", ev.Type, ev.Height, ev.Data)
		})
	}
}

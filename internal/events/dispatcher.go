package events

import (
	"log"

	"github.com/serantau/payflow/internal/domain"
)

// LogDispatcher is the default event sink: it writes each event to the
// process log and drops it. Delivery is fire-and-forget; downstream
// consumers (notification fan-out, ledger posting) hang their own
// dispatcher implementation off the same interface.
type LogDispatcher struct{}

func NewLogDispatcher() *LogDispatcher {
	return &LogDispatcher{}
}

func (*LogDispatcher) Dispatch(event domain.Event) {
	log.Printf("[events] %s %+v", event.EventName(), event)
}

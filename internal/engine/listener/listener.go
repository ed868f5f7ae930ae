// Package listener manages the external subscriptions of active workflows:
// webhook path bindings, chat channels and scheduled timers. Each fired
// event is handed to a callback that does only the minimal synchronous work
// (validate, seed, enqueue) before returning to the source.
package listener

import (
	"context"
	"time"

	"github.com/flowgrid-go/internal/domain/workflow"
)

// Event is one trigger firing, delivered to the registered callback.
type Event struct {
	UserID     string
	WorkflowID string
	Data       map[string]interface{}
	Format     string
	Details    workflow.TriggerDetails
}

// Callback receives fired events. Must be safe for concurrent calls from any
// listener goroutine.
type Callback func(ctx context.Context, ev Event) error

// StartParams describes the subscriptions of one workflow being activated.
type StartParams struct {
	UserID     string
	WorkflowID string
	Triggers   []workflow.Node
	Settings   workflow.GeneralSettings
	Callback   Callback
}

// scheduleEventData is the payload of a scheduled firing.
func scheduleEventData(now time.Time) map[string]interface{} {
	return map[string]interface{}{
		"scheduledTime": now.UTC().Format(time.RFC3339),
	}
}

package host

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/viant/tripmanager/model/instance"
)

// Workflow is the business logic executed by an instance. Run returns when
// the workflow completes, fails, or ctx is cancelled by terminate or shutdown.
type Workflow interface {
	Run(ctx context.Context, anInstance *instance.Instance, events <-chan instance.Event) (json.RawMessage, error)
}

// WorkflowFunc adapts a function to Workflow
type WorkflowFunc func(ctx context.Context, anInstance *instance.Instance, events <-chan instance.Event) (json.RawMessage, error)

// Run calls f
func (f WorkflowFunc) Run(ctx context.Context, anInstance *instance.Instance, events <-chan instance.Event) (json.RawMessage, error) {
	return f(ctx, anInstance, events)
}

// Acceptance is the output of AwaitDriverWorkflow
type Acceptance struct {
	Trip   string `json:"trip"`
	Driver string `json:"driver"`
	Events int    `json:"events"`
}

// AwaitDriverWorkflow waits until a driver accepts the trip
var AwaitDriverWorkflow = WorkflowFunc(func(ctx context.Context, anInstance *instance.Instance, events <-chan instance.Event) (json.RawMessage, error) {
	received := 0
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case evt, ok := <-events:
			if !ok {
				return nil, fmt.Errorf("event stream closed for %v", anInstance.Key)
			}
			received++
			if evt.Name != instance.EventDriverAccepted {
				continue
			}
			return json.Marshal(&Acceptance{Trip: anInstance.Key.String(), Driver: evt.Payload, Events: received})
		}
	}
})

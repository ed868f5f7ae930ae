package nodes

import "context"

// TriggerBehavior is the passthrough behavior shared by all trigger kinds:
// the trigger's own output was already seeded into the execution entry when
// the event fired, so re-execution (queue redelivery) just forwards it.
type TriggerBehavior struct{}

func NewTriggerBehavior() *TriggerBehavior {
	return &TriggerBehavior{}
}

func (t *TriggerBehavior) Execute(ctx context.Context, in Input) Output {
	return Success(in.Format, in.Data)
}

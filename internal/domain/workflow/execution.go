package workflow

// ConnectionMap is the forward adjacency of a parsed workflow graph: node id
// to ordered downstream node ids. Immutable per workflow version, rebuilt on
// every (re)activation.
type ConnectionMap map[string][]string

// NodeMap indexes nodes by id for O(1) lookup during traversal.
type NodeMap map[string]Node

// ActiveWorkflow is the per-live-workflow cache entry: the parsed graph plus
// the settings every execution and listener callback reads.
type ActiveWorkflow struct {
	WorkflowID  string          `json:"workflowId"`
	UserID      string          `json:"userId"`
	Connections ConnectionMap   `json:"connectionMap"`
	Nodes       NodeMap         `json:"nodeMap"`
	Settings    GeneralSettings `json:"generalSettings"`
}

// NodeResponse is one node's recorded output.
type NodeResponse struct {
	Format  string      `json:"format"`
	Content interface{} `json:"content"`
}

// ExecutionState is the per-execution cache entry. Created when a trigger
// fires, seeded with the trigger node's own output, extended as each
// downstream node completes.
type ExecutionState struct {
	ExecutionID string                  `json:"executionId"`
	WorkflowID  string                  `json:"workflowId"`
	UserID      string                  `json:"userId"`
	Trigger     TriggerDetails          `json:"triggerDetails"`
	Responses   map[string]NodeResponse `json:"allResponses"`
}

// Execution statuses. Held is non-terminal from the workflow's perspective:
// the branch waits for a later external event.
const (
	ExecutionQueued    = "queued"
	ExecutionRunning   = "running"
	ExecutionCompleted = "completed"
	ExecutionHeld      = "held"
	ExecutionFailed    = "failed"
)

// TriggerSource identifies the channel a firing originated from.
type TriggerSource string

const (
	TriggerSourceWebhook  TriggerSource = "webhook"
	TriggerSourceInteract TriggerSource = "interact"
	TriggerSourceSchedule TriggerSource = "schedule"
)

// TriggerDetails tells the responder how to reply. Webhook firings carry the
// request id of the pending HTTP exchange; interact firings carry the chat
// user.
type TriggerDetails struct {
	Source     TriggerSource `json:"source"`
	NodeID     string        `json:"nodeId"`
	UserID     string        `json:"userId"`
	WorkflowID string        `json:"workflowId,omitempty"`
	RequestID  string        `json:"requestId,omitempty"`
}

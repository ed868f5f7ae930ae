package workflow

import (
	"time"

	"github.com/google/uuid"
)

// Workflow is the persisted document the engine holds a read-mostly snapshot
// of while the workflow is live. Storage is owned by the repository adapter.
type Workflow struct {
	ID        string          `json:"id" gorm:"primaryKey"`
	Name      string          `json:"name" gorm:"not null"`
	UserID    string          `json:"userId" gorm:"not null;index"`
	Nodes     []Node          `json:"nodes" gorm:"serializer:json"`
	Edges     []Edge          `json:"edges" gorm:"serializer:json"`
	Settings  GeneralSettings `json:"generalSettings" gorm:"serializer:json"`
	Status    Status          `json:"status" gorm:"default:'draft'"`
	Report    *Report         `json:"report" gorm:"serializer:json"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// Node is one typed vertex of the workflow graph.
type Node struct {
	ID     string                 `json:"id"`
	Name   string                 `json:"name"`
	Type   string                 `json:"type"`
	Config map[string]interface{} `json:"config"`
}

// Edge is a directed connection between two nodes.
type Edge struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// GeneralSettings are the per-workflow execution settings.
type GeneralSettings struct {
	// ShowResultFromAllNodes surfaces every node's output, including holds
	// and failures, back to the origin channel.
	ShowResultFromAllNodes bool `json:"showResultFromAllNodes"`

	// ExclusiveExecution rejects a trigger firing while another execution
	// of the same workflow is still running.
	ExclusiveExecution bool `json:"exclusiveExecution"`
}

// Report records the outcome of the most recent execution.
type Report struct {
	ExecutionID     string `json:"executionId"`
	ExecutionTime   int64  `json:"executionTime"` // milliseconds
	ExecutionStatus string `json:"executionStatus"`
}

// Status is the workflow lifecycle state.
type Status string

const (
	StatusDraft    Status = "draft"
	StatusLive     Status = "live"
	StatusInactive Status = "inactive"
	StatusDeleted  Status = "deleted"
)

// Node type tags. Trigger kinds fire on external events; the rest run on
// upstream output.
const (
	NodeTypeWebhookTrigger  = "webhook-trigger"
	NodeTypeInteractTrigger = "interact-trigger"
	NodeTypeScheduleTrigger = "schedule-trigger"
	NodeTypeAgent           = "agent"
	NodeTypeAIModel         = "ai-model"
	NodeTypeHTTPRequest     = "http-request"
	NodeTypeResponder       = "responder"
)

var triggerTypes = map[string]bool{
	NodeTypeWebhookTrigger:  true,
	NodeTypeInteractTrigger: true,
	NodeTypeScheduleTrigger: true,
}

// IsTriggerType reports whether t is one of the trigger node kinds.
func IsTriggerType(t string) bool {
	return triggerTypes[t]
}

// CanActivate reports whether the current status permits a transition to live.
func (s Status) CanActivate() bool {
	return s == StatusDraft || s == StatusInactive
}

// NewWorkflow creates a draft workflow.
func NewWorkflow(name, userID string) *Workflow {
	return &Workflow{
		ID:        uuid.New().String(),
		Name:      name,
		UserID:    userID,
		Status:    StatusDraft,
		Nodes:     []Node{},
		Edges:     []Edge{},
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
}

// ConfigString reads a string value from the node config, empty when absent.
func (n Node) ConfigString(key string) string {
	if v, ok := n.Config[key].(string); ok {
		return v
	}
	return ""
}

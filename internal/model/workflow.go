package model

import "time"

// ActionKind is the closed set of workflow action types.
type ActionKind string

const (
	ActionNotifyReceptor ActionKind = "notify_receptor"
	ActionSMSToCustomer  ActionKind = "send_sms_to_customer"
	ActionSMSToAdmin     ActionKind = "send_sms_to_admin"
)

// Valid reports whether the kind is one of the known action types.
func (k ActionKind) Valid() bool {
	switch k {
	case ActionNotifyReceptor, ActionSMSToCustomer, ActionSMSToAdmin:
		return true
	}
	return false
}

// Workflow is the per-receptor post-ingestion pipeline. Each receptor owns
// at most one workflow; IsActive gates whether ingestion triggers execution.
type Workflow struct {
	ID         int64          `json:"-"`
	ReceptorID int64          `json:"-"`
	IsActive   bool           `json:"is_active"`
	Steps      []WorkflowStep `json:"steps"`
	CreatedAt  time.Time      `json:"-"`
	UpdatedAt  time.Time      `json:"-"`
}

// WorkflowStep is a named phase. Steps execute in ascending Order; ties
// break by insertion order. A step has no success state of its own.
type WorkflowStep struct {
	ID      int64                `json:"-"`
	Order   int                  `json:"order"`
	Name    string               `json:"name"`
	Actions []WorkflowStepAction `json:"actions"`
}

// WorkflowStepAction is a single typed side-effecting action within a step.
// Config is interpreted per kind (note, template, mobile).
type WorkflowStepAction struct {
	DBID   int64          `json:"-"`
	Order  int            `json:"-"`
	Kind   ActionKind     `json:"id"`
	Config map[string]any `json:"config"`
}

// ConfigString returns a string config value, or def when absent.
func (a *WorkflowStepAction) ConfigString(key, def string) string {
	if v, ok := a.Config[key].(string); ok && v != "" {
		return v
	}
	return def
}

package tools

// ActionType tags a side effect of a tool call.
type ActionType string

const (
	ActionTaskCreated   ActionType = "task_created"
	ActionTaskUpdated   ActionType = "task_updated"
	ActionTaskCompleted ActionType = "task_completed"
	ActionFileWritten   ActionType = "file_written"
	ActionSkillExecuted ActionType = "skill_executed"
)

// Action describes one observable mutation, for audit and UI.
type Action struct {
	Type   ActionType `json:"type"`
	TaskID string     `json:"taskId,omitempty"`
	Title  string     `json:"title,omitempty"`
	Path   string     `json:"path,omitempty"`
	Skill  string     `json:"skill,omitempty"`
}

// Result is what one dispatched call produced. Output is JSON-serializable;
// Action is nil for read-only calls.
type Result struct {
	Output any
	Action *Action
}

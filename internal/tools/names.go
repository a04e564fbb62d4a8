package tools

import "errors"

// ErrUnknownTool is returned for a tool name outside the catalog.
var ErrUnknownTool = errors.New("tools: unknown tool")

// Name is a tool of the closed catalog.
type Name string

const (
	CreateTask   Name = "create_task"
	ListTasks    Name = "list_tasks"
	CompleteTask Name = "complete_task"
	UpdateTask   Name = "update_task"
	ReadFile     Name = "read_file"
	WriteFile    Name = "write_file"
	SearchFiles  Name = "search_files"
	ExecuteSkill Name = "execute_skill"

	// Sub-tools of the task-planning code skill.
	PlanOverdueTasks   Name = "plan_overdue_tasks"
	PlanRescheduleTask Name = "plan_reschedule_task"
)

// Names lists the catalog in presentation order.
var Names = []Name{
	CreateTask,
	ListTasks,
	CompleteTask,
	UpdateTask,
	ReadFile,
	WriteFile,
	SearchFiles,
	ExecuteSkill,
	PlanOverdueTasks,
	PlanRescheduleTask,
}

// ParseName resolves a tool name requested by the model.
func ParseName(s string) (Name, bool) {
	for _, n := range Names {
		if string(n) == s {
			return n, true
		}
	}
	return "", false
}

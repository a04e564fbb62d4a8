package tools

var (
	priorityEnum = []string{"high", "medium", "low"}
	statusEnum   = []string{"active", "completed", "someday"}
	energyEnum   = []string{"high", "medium", "low"}
)

// taskFieldParams are the optional fields shared by create_task and update_task.
func taskFieldParams() map[string]ParamSpec {
	return map[string]ParamSpec{
		"priority": {
			Type:        "string",
			Description: "Task priority (default: medium)",
			Enum:        priorityEnum,
		},
		"category": {
			Type:        "string",
			Description: "Free-text category such as work, home or health (default: inbox)",
		},
		"energy": {
			Type:        "string",
			Description: "Energy level the task needs",
			Enum:        energyEnum,
		},
		"duration": {
			Type:        "string",
			Description: "Estimated duration, e.g. 15m or 2h",
		},
		"context": {
			Type:        "array",
			Description: "Context tags such as @phone or @errands",
			Items:       &ParamSpec{Type: "string"},
		},
		"due": {
			Type:        "string",
			Description: "Due date/time in ISO 8601 (YYYY-MM-DD or full timestamp)",
		},
		"project": {
			Type:        "string",
			Description: "Project label",
		},
		"notes": {
			Type:        "string",
			Description: "Free-text notes",
		},
		"subtasks": {
			Type:        "array",
			Description: "Checklist items, in order",
			Items:       &ParamSpec{Type: "string"},
		},
	}
}

func createTaskSpec() ToolSpec {
	params := taskFieldParams()
	params["title"] = ParamSpec{
		Type:        "string",
		Description: "Short, actionable task title",
		Required:    true,
	}
	return ToolSpec{
		Name:        CreateTask,
		Description: "Create a new active task. Returns the created task with its ID.",
		Parameters:  params,
	}
}

func listTasksSpec() ToolSpec {
	return ToolSpec{
		Name:        ListTasks,
		Description: "List tasks, high priority first. Without a status, tasks of every status are returned.",
		Parameters: map[string]ParamSpec{
			"status": {
				Type:        "string",
				Description: "Only tasks with this status",
				Enum:        statusEnum,
			},
			"category": {
				Type:        "string",
				Description: "Only tasks in this category",
			},
			"limit": {
				Type:        "integer",
				Description: "Maximum number of tasks to return",
			},
		},
	}
}

func completeTaskSpec() ToolSpec {
	return ToolSpec{
		Name:        CompleteTask,
		Description: "Mark a task as completed.",
		Parameters: map[string]ParamSpec{
			"task_id": {
				Type:        "string",
				Description: "ID of the task to complete",
				Required:    true,
			},
		},
	}
}

func updateTaskSpec() ToolSpec {
	params := taskFieldParams()
	params["task_id"] = ParamSpec{
		Type:        "string",
		Description: "ID of the task to update",
		Required:    true,
	}
	params["title"] = ParamSpec{
		Type:        "string",
		Description: "New title",
	}
	params["status"] = ParamSpec{
		Type:        "string",
		Description: "New status; changing it moves the task",
		Enum:        statusEnum,
	}
	return ToolSpec{
		Name:        UpdateTask,
		Description: "Update fields of an existing task. Only the given fields change.",
		Parameters:  params,
	}
}

func readFileSpec() ToolSpec {
	return ToolSpec{
		Name:        ReadFile,
		Description: "Read a workspace file, e.g. context/people.md.",
		Parameters: map[string]ParamSpec{
			"path": {
				Type:        "string",
				Description: "Workspace-relative path",
				Required:    true,
			},
		},
	}
}

func writeFileSpec() ToolSpec {
	return ToolSpec{
		Name:        WriteFile,
		Description: "Create or overwrite a workspace file.",
		Parameters: map[string]ParamSpec{
			"path": {
				Type:        "string",
				Description: "Workspace-relative path",
				Required:    true,
			},
			"content": {
				Type:        "string",
				Description: "Full file content",
				Required:    true,
			},
			"message": {
				Type:        "string",
				Description: "Commit message for the change",
			},
		},
	}
}

func searchFilesSpec() ToolSpec {
	return ToolSpec{
		Name:        SearchFiles,
		Description: "Case-insensitive text search over markdown and text files. Returns paths with a snippet around the first match.",
		Parameters: map[string]ParamSpec{
			"query": {
				Type:        "string",
				Description: "Text to look for",
				Required:    true,
			},
			"path": {
				Type:        "string",
				Description: "Directory to search (default: whole workspace)",
			},
			"glob": {
				Type:        "string",
				Description: "Only paths matching this pattern, e.g. context/**/*.md",
			},
		},
	}
}

func executeSkillSpec() ToolSpec {
	return ToolSpec{
		Name:        ExecuteSkill,
		Description: "Load a skill's instructions by name. Follow the returned instructions.",
		Parameters: map[string]ParamSpec{
			"skill_name": {
				Type:        "string",
				Description: "Skill name as listed in the system prompt",
				Required:    true,
			},
			"params": {
				Type:        "object",
				Description: "Optional parameters for the skill",
			},
		},
	}
}

package tool

const (
	AddTask      = "add_task"
	ListTasks    = "list_tasks"
	CompleteTask = "complete_task"
	DeleteTask   = "delete_task"
	UpdateTask   = "update_task"
)

// Schema describes a tool to the model as a JSON-schema function.
type Schema struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

func object(props map[string]any, required ...string) map[string]any {
	out := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		out["required"] = required
	}
	return out
}

func prop(typ, desc string) map[string]any {
	return map[string]any{"type": typ, "description": desc}
}

var (
	addTaskSchema = Schema{
		Name:        AddTask,
		Description: "Create a new task in the user's todo list",
		Parameters: object(map[string]any{
			"title":       prop("string", "The task title or description"),
			"description": prop("string", "Optional detailed description"),
		}, "title"),
	}

	listTasksSchema = Schema{
		Name:        ListTasks,
		Description: "Get the user's tasks, optionally filtered by status",
		Parameters: object(map[string]any{
			"status": map[string]any{
				"type":        "string",
				"enum":        []string{"all", "pending", "completed"},
				"description": "Filter tasks by status (default: all)",
			},
		}),
	}

	completeTaskSchema = Schema{
		Name:        CompleteTask,
		Description: "Toggle the completion status of a task",
		Parameters: object(map[string]any{
			"task_id": prop("integer", "The ID of the task to toggle"),
		}, "task_id"),
	}

	deleteTaskSchema = Schema{
		Name:        DeleteTask,
		Description: "Delete a task from the user's todo list",
		Parameters: object(map[string]any{
			"task_id": prop("integer", "The ID of the task to delete"),
		}, "task_id"),
	}

	updateTaskSchema = Schema{
		Name:        UpdateTask,
		Description: "Update a task's title or description",
		Parameters: object(map[string]any{
			"task_id":     prop("integer", "The ID of the task to update"),
			"title":       prop("string", "New title for the task"),
			"description": prop("string", "New description for the task"),
		}, "task_id"),
	}
)

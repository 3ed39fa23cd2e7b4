package chat

import (
	"fmt"
	"strings"

	"github.com/evotodo/todo-api/internal/modules/tool"
)

const maxListedTasks = 10

// confirmation turns a tool result into the sentence relayed to the user.
func confirmation(name string, res tool.Result) string {
	if e := res.Err(); e != nil {
		switch name {
		case tool.AddTask:
			return "Sorry, I couldn't add that task: " + e.Message
		case tool.ListTasks:
			return "Sorry, I couldn't list your tasks: " + e.Message
		case tool.CompleteTask:
			return "Sorry, I couldn't complete that task: " + e.Message
		case tool.DeleteTask:
			return "Sorry, I couldn't delete that task: " + e.Message
		case tool.UpdateTask:
			return "Sorry, I couldn't update that task: " + e.Message
		default:
			return "Sorry, I couldn't do that: " + e.Message
		}
	}

	switch v := res.Value().(type) {
	case []tool.TaskView:
		if len(v) == 0 {
			return "You don't have any tasks yet!"
		}
		var sb strings.Builder
		sb.WriteString("Here are your tasks:")
		for i, t := range v {
			if i == maxListedTasks {
				break
			}
			mark := "[ ]"
			if t.Completed {
				mark = "[x]"
			}
			fmt.Fprintf(&sb, "\n#%d - %s %s", t.ID, t.Title, mark)
		}
		return sb.String()
	case tool.Mutation:
		switch name {
		case tool.AddTask:
			return fmt.Sprintf("Added '%s' to your tasks!", v.Title)
		case tool.CompleteTask:
			return fmt.Sprintf("Marked '%s' as %s!", v.Title, v.Status)
		case tool.DeleteTask:
			return fmt.Sprintf("Deleted '%s'!", v.Title)
		case tool.UpdateTask:
			return fmt.Sprintf("Updated '%s'!", v.Title)
		}
	}
	return ""
}

// joinFragment prefixes frag with a newline when it would otherwise run
// into the preceding text.
func joinFragment(prev, frag string) string {
	if prev == "" || frag == "" {
		return frag
	}
	last := prev[len(prev)-1]
	if last == ' ' || last == '\n' || last == '\t' || last == '\r' {
		return frag
	}
	return "\n" + frag
}

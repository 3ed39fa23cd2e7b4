package chat

import (
	"context"
	"strconv"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/evotodo/todo-api/internal/modules/tool"
)

const mockHelp = "I can help you manage tasks! Try:\n• 'add buy milk'\n• 'show my tasks'\n• 'complete task 1'\n• 'delete task 2'"

// MockResponder answers with literal keyword matching on the latest message.
// The same message always yields the same reply.
type MockResponder struct{}

func (MockResponder) Name() string { return "mock" }

// Plan returns the reply text and, when a tool applies, the call to make.
func (MockResponder) Plan(message string) (string, *tool.Call) {
	msg := strings.ToLower(message)

	switch {
	case containsAny(msg, "add", "create"):
		title := msg
		for _, kw := range []string{"add", "create", "task"} {
			title = strings.ReplaceAll(title, kw, "")
		}
		title = strings.TrimSpace(title)
		if title == "" {
			return "What task would you like to add?", nil
		}
		return "", &tool.Call{Name: tool.AddTask, Arguments: map[string]any{"title": title}}

	case containsAny(msg, "show", "list", "what"):
		return "", &tool.Call{Name: tool.ListTasks, Arguments: map[string]any{"status": "all"}}

	case containsAny(msg, "complete", "done", "finish"):
		id, ok := firstNumber(msg)
		if !ok {
			return "Which task number would you like to complete?", nil
		}
		return "", &tool.Call{Name: tool.CompleteTask, Arguments: map[string]any{"task_id": id}}

	case containsAny(msg, "delete", "remove"):
		id, ok := firstNumber(msg)
		if !ok {
			return "Which task number would you like to delete?", nil
		}
		return "", &tool.Call{Name: tool.DeleteTask, Arguments: map[string]any{"task_id": id}}
	}
	return mockHelp, nil
}

func (m MockResponder) Stream(ctx context.Context, req Request) (Stream, error) {
	c, err := m.Complete(ctx, req)
	if err != nil {
		return nil, err
	}
	var deltas []Delta
	if c.Content != "" {
		deltas = append(deltas, Delta{Content: c.Content})
	}
	if len(c.ToolCalls) > 0 {
		deltas = append(deltas, Delta{ToolCalls: c.ToolCalls})
	}
	return newSliceStream(deltas...), nil
}

func (m MockResponder) Complete(_ context.Context, req Request) (*Completion, error) {
	content, call := m.Plan(req.Message)
	out := &Completion{Content: content}
	if call != nil {
		args, err := sonic.MarshalString(call.Arguments)
		if err != nil {
			return nil, err
		}
		out.ToolCalls = []ToolCallDelta{{Index: 0, ID: "mock-0", Name: call.Name, Arguments: args}}
	}
	return out, nil
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// firstNumber finds the first whitespace-separated token made only of ASCII
// digits. A zero id counts as no id.
func firstNumber(s string) (int64, bool) {
	for _, f := range strings.Fields(s) {
		if !allDigits(f) {
			continue
		}
		n, err := strconv.ParseInt(f, 10, 64)
		if err != nil || n == 0 {
			return 0, false
		}
		return n, true
	}
	return 0, false
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}

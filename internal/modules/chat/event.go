package chat

import (
	"github.com/bytedance/sonic"
	"github.com/evotodo/todo-api/internal/modules/model"
)

const (
	EventConversationID = "conversation_id"
	EventContent        = "content"
	EventToolCall       = "tool_call"
	EventToolResult     = "tool_result"
	EventDone           = "done"
	EventError          = "error"
)

// Event is one item of a streamed turn. Only the fields of its Type are
// serialised.
type Event struct {
	Type           string
	ConversationID int64
	Content        string
	Tool           string
	Parameters     map[string]any
	Result         any
	FullResponse   string
	ToolCalls      []model.ToolCallRecord
	Message        string
}

func (e Event) MarshalJSON() ([]byte, error) {
	out := map[string]any{"type": e.Type}
	switch e.Type {
	case EventConversationID:
		out["conversation_id"] = e.ConversationID
	case EventContent:
		out["content"] = e.Content
	case EventToolCall:
		params := e.Parameters
		if params == nil {
			params = map[string]any{}
		}
		out["tool"] = e.Tool
		out["parameters"] = params
	case EventToolResult:
		out["tool"] = e.Tool
		out["result"] = e.Result
	case EventDone:
		calls := e.ToolCalls
		if calls == nil {
			calls = []model.ToolCallRecord{}
		}
		out["conversation_id"] = e.ConversationID
		out["full_response"] = e.FullResponse
		out["tool_calls"] = calls
	case EventError:
		out["message"] = e.Message
	}
	return sonic.ConfigStd.Marshal(out)
}

// Sink receives events in production order. A non-nil error means the
// consumer is gone; no further events are delivered.
type Sink func(Event) error

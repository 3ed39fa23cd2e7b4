package editor

import (
	"fmt"

	"github.com/evotodo/todo-api/internal/modules/model"
)

// RemoveToolCallParamsStrategy removes parameters from old tool calls
type RemoveToolCallParamsStrategy struct {
	KeepRecentN int
}

func (s *RemoveToolCallParamsStrategy) Name() string {
	return "remove_tool_call_params"
}

// Apply empties the parameters of every tool call except the most recent N.
func (s *RemoveToolCallParamsStrategy) Apply(messages []model.Message) ([]model.Message, error) {
	if s.KeepRecentN < 0 {
		return nil, fmt.Errorf("keep_recent_n_tool_calls must be >= 0, got %d", s.KeepRecentN)
	}

	out := append([]model.Message(nil), messages...)
	copied := map[int]bool{}
	for _, pos := range oldToolCalls(out, s.KeepRecentN) {
		editCall(out, copied, pos, func(c *model.ToolCallRecord) {
			c.Parameters = map[string]any{}
		})
	}
	return out, nil
}

func createRemoveToolCallParamsStrategy(params map[string]interface{}) (EditStrategy, error) {
	n, err := keepRecentParam(params, "keep_recent_n_tool_calls", 3)
	if err != nil {
		return nil, err
	}
	return &RemoveToolCallParamsStrategy{KeepRecentN: n}, nil
}

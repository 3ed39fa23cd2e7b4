package editor

import (
	"fmt"

	"github.com/evotodo/todo-api/internal/modules/model"
)

// RemoveToolResultsStrategy drops the stored results of old tool calls,
// which for list_tasks can be large.
type RemoveToolResultsStrategy struct {
	KeepRecentN int
}

func (s *RemoveToolResultsStrategy) Name() string {
	return "remove_tool_results"
}

func (s *RemoveToolResultsStrategy) Apply(messages []model.Message) ([]model.Message, error) {
	if s.KeepRecentN < 0 {
		return nil, fmt.Errorf("keep_recent_n_tool_results must be >= 0, got %d", s.KeepRecentN)
	}

	out := append([]model.Message(nil), messages...)
	copied := map[int]bool{}
	for _, pos := range oldToolCalls(out, s.KeepRecentN) {
		editCall(out, copied, pos, func(c *model.ToolCallRecord) {
			c.Result = nil
		})
	}
	return out, nil
}

func createRemoveToolResultsStrategy(params map[string]interface{}) (EditStrategy, error) {
	n, err := keepRecentParam(params, "keep_recent_n_tool_results", 3)
	if err != nil {
		return nil, err
	}
	return &RemoveToolResultsStrategy{KeepRecentN: n}, nil
}

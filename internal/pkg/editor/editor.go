package editor

import (
	"fmt"

	"github.com/evotodo/todo-api/internal/modules/model"
)

// EditStrategy rewrites a transcript before it is returned to a client.
type EditStrategy interface {
	Name() string
	Apply(messages []model.Message) ([]model.Message, error)
}

type factory func(params map[string]interface{}) (EditStrategy, error)

var factories = map[string]factory{
	"remove_tool_call_params": createRemoveToolCallParamsStrategy,
	"remove_tool_results":     createRemoveToolResultsStrategy,
}

// NewStrategy builds the named strategy from its params.
func NewStrategy(name string, params map[string]interface{}) (EditStrategy, error) {
	f, ok := factories[name]
	if !ok {
		return nil, fmt.Errorf("unknown edit strategy: %s", name)
	}
	return f(params)
}

// Apply runs the strategies in order.
func Apply(messages []model.Message, strategies ...EditStrategy) ([]model.Message, error) {
	var err error
	for _, s := range strategies {
		if messages, err = s.Apply(messages); err != nil {
			return nil, fmt.Errorf("%s: %w", s.Name(), err)
		}
	}
	return messages, nil
}

type toolCallPosition struct {
	messageIdx int
	callIdx    int
}

// oldToolCalls returns the positions of all but the newest keep tool calls.
func oldToolCalls(messages []model.Message, keep int) []toolCallPosition {
	var positions []toolCallPosition
	for msgIdx, msg := range messages {
		for callIdx := range msg.ToolCalls {
			positions = append(positions, toolCallPosition{messageIdx: msgIdx, callIdx: callIdx})
		}
	}
	if len(positions) <= keep {
		return nil
	}
	return positions[:len(positions)-keep]
}

// editCall copies the message's tool calls before the first edit so the
// caller's slice is never written through.
func editCall(messages []model.Message, copied map[int]bool, pos toolCallPosition, edit func(*model.ToolCallRecord)) {
	msg := &messages[pos.messageIdx]
	if !copied[pos.messageIdx] {
		msg.ToolCalls = append([]model.ToolCallRecord(nil), msg.ToolCalls...)
		copied[pos.messageIdx] = true
	}
	edit(&msg.ToolCalls[pos.callIdx])
}

func keepRecentParam(params map[string]interface{}, key string, def int) (int, error) {
	raw, ok := params[key]
	if !ok {
		return def, nil
	}
	switch v := raw.(type) {
	case float64:
		return int(v), nil
	case int:
		return v, nil
	default:
		return 0, fmt.Errorf("%s must be an integer, got %T", key, raw)
	}
}

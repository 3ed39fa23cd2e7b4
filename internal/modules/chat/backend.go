package chat

import (
	"context"
	"errors"

	"github.com/evotodo/todo-api/internal/modules/tool"
)

var (
	// ErrBackendUnavailable means the model could not be reached or is not
	// configured. The orchestrator answers with the mock responder instead.
	ErrBackendUnavailable = errors.New("model backend unavailable")
	ErrModelTimeout       = errors.New("model response timed out")
)

type HistoryMessage struct {
	Role    string
	Content string
}

// Request is everything the model sees for one turn.
type Request struct {
	System  string
	Tools   []tool.Schema
	History []HistoryMessage
	Message string
}

// ToolCallDelta is a fragment of a tool call. Fragments sharing an Index
// belong to the same call; Arguments fragments concatenate in order.
type ToolCallDelta struct {
	Index     int
	ID        string
	Name      string
	Arguments string
}

type Delta struct {
	Content   string
	ToolCalls []ToolCallDelta
}

// Completion is a whole, non-streamed model answer.
type Completion struct {
	Content   string
	ToolCalls []ToolCallDelta
}

// Stream is a pull iterator over model deltas.
type Stream interface {
	Next() bool
	Current() Delta
	Err() error
	Close() error
}

type Backend interface {
	Name() string
	Stream(ctx context.Context, req Request) (Stream, error)
	Complete(ctx context.Context, req Request) (*Completion, error)
}

// sliceStream replays a fixed list of deltas.
type sliceStream struct {
	deltas []Delta
	pos    int
}

func newSliceStream(deltas ...Delta) *sliceStream {
	return &sliceStream{deltas: deltas, pos: -1}
}

func (s *sliceStream) Next() bool {
	if s.pos+1 >= len(s.deltas) {
		return false
	}
	s.pos++
	return true
}

func (s *sliceStream) Current() Delta { return s.deltas[s.pos] }

func (s *sliceStream) Err() error { return nil }

func (s *sliceStream) Close() error { return nil }

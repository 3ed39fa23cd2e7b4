package chat

import (
	"slices"
	"strings"
)

// AssembledCall is a tool call whose fragments have all arrived.
type AssembledCall struct {
	ID        string
	Name      string
	Arguments string
}

type pendingCall struct {
	id   string
	name string
	args strings.Builder
}

// Assembler accumulates streamed tool-call fragments keyed by index.
type Assembler struct {
	calls map[int]*pendingCall
}

func NewAssembler() *Assembler {
	return &Assembler{calls: map[int]*pendingCall{}}
}

func (a *Assembler) Add(deltas ...ToolCallDelta) {
	for _, d := range deltas {
		p, ok := a.calls[d.Index]
		if !ok {
			p = &pendingCall{}
			a.calls[d.Index] = p
		}
		if d.ID != "" {
			p.id = d.ID
		}
		if d.Name != "" {
			p.name = d.Name
		}
		p.args.WriteString(d.Arguments)
	}
}

func (a *Assembler) Len() int { return len(a.calls) }

// Calls returns the assembled calls ordered by index.
func (a *Assembler) Calls() []AssembledCall {
	idx := make([]int, 0, len(a.calls))
	for i := range a.calls {
		idx = append(idx, i)
	}
	slices.Sort(idx)

	out := make([]AssembledCall, 0, len(idx))
	for _, i := range idx {
		p := a.calls[i]
		out = append(out, AssembledCall{ID: p.id, Name: p.name, Arguments: p.args.String()})
	}
	return out
}

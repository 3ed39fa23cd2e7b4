package chat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/evotodo/todo-api/internal/modules/model"
	"github.com/evotodo/todo-api/internal/modules/service"
	"github.com/evotodo/todo-api/internal/modules/tool"
	"go.uber.org/zap"
)

// Turn states, logged at debug level as a turn advances.
const (
	StateResolvingConversation = "RESOLVING_CONVERSATION"
	StateLoadingHistory        = "LOADING_HISTORY"
	StateSavingUserMessage     = "SAVING_USER_MESSAGE"
	StateGeneratingResponse    = "GENERATING_RESPONSE"
	StateExecutingTools        = "EXECUTING_TOOLS"
	StateSavingAssistant       = "SAVING_ASSISTANT_MESSAGE"
	StateDone                  = "DONE"
	StateErrored               = "ERRORED"
)

// TurnLocker serialises turns of one conversation. cache.Locker satisfies it.
type TurnLocker interface {
	Acquire(ctx context.Context, key string) (func(), error)
}

type Options struct {
	// Backend may be nil, in which case every turn uses the mock responder.
	Backend       Backend
	Tools         *tool.Registry
	Conversations service.ConversationService
	Locker        TurnLocker
	Events        service.EventPublisher
	Exchange      string
	HistoryLimit  int
	ModelTimeout  time.Duration
	Log           *zap.Logger
}

// Orchestrator runs one chat turn at a time per call. It keeps no state
// between calls; everything is rebuilt from the conversation store.
type Orchestrator struct {
	backend      Backend
	mock         MockResponder
	tools        *tool.Registry
	convs        service.ConversationService
	locker       TurnLocker
	events       service.EventPublisher
	exchange     string
	historyLimit int
	modelTimeout time.Duration
	log          *zap.Logger
}

func NewOrchestrator(opts Options) *Orchestrator {
	o := &Orchestrator{
		backend:      opts.Backend,
		tools:        opts.Tools,
		convs:        opts.Conversations,
		locker:       opts.Locker,
		events:       opts.Events,
		exchange:     opts.Exchange,
		historyLimit: opts.HistoryLimit,
		modelTimeout: opts.ModelTimeout,
		log:          opts.Log,
	}
	if o.historyLimit <= 0 {
		o.historyLimit = service.DefaultHistoryLimit
	}
	if o.modelTimeout <= 0 {
		o.modelTimeout = 60 * time.Second
	}
	if o.log == nil {
		o.log = zap.NewNop()
	}
	return o
}

// BackendName reports which responder answers turns by default.
func (o *Orchestrator) BackendName() string {
	if o.backend == nil {
		return o.mock.Name()
	}
	return o.backend.Name()
}

type TurnRequest struct {
	UserID         string
	ConversationID *int64
	Message        string
}

type TurnResult struct {
	ConversationID int64                  `json:"conversation_id"`
	Response       string                 `json:"response"`
	ToolCalls      []model.ToolCallRecord `json:"tool_calls"`
}

// turn carries the per-request working state.
type turn struct {
	o        *Orchestrator
	req      TurnRequest
	sink     Sink
	convID   int64
	text     string
	records  []model.ToolCallRecord
	fallback bool
	gone     bool
}

func (t *turn) state(s string) {
	t.o.log.Debug("chat turn state",
		zap.String("state", s),
		zap.String("user_id", t.req.UserID),
		zap.Int64("conversation_id", t.convID),
	)
}

// emit forwards ev until the sink first fails, then drops everything.
func (t *turn) emit(ev Event) {
	if t.sink == nil || t.gone {
		return
	}
	if err := t.sink(ev); err != nil {
		t.gone = true
		t.o.log.Info("chat client went away", zap.String("user_id", t.req.UserID), zap.Int64("conversation_id", t.convID), zap.Error(err))
	}
}

func (t *turn) appendContent(frag string) {
	frag = joinFragment(t.text, frag)
	if frag == "" {
		return
	}
	t.text += frag
	t.emit(Event{Type: EventContent, Content: frag})
}

// Run executes one turn. With a nil sink the model is called in
// non-streaming mode and only the result is returned. With a sink, events
// are delivered as they are produced and a terminal done or error event is
// always the last one.
func (o *Orchestrator) Run(ctx context.Context, req TurnRequest, sink Sink) (*TurnResult, error) {
	t := &turn{o: o, req: req, sink: sink}
	res, err := t.run(ctx)
	if err != nil {
		t.state(StateErrored)
		msg := MsgTrouble
		if errors.Is(err, ErrModelTimeout) {
			msg = MsgTimeout
		}
		o.log.Error("chat turn failed", zap.String("user_id", req.UserID), zap.Int64("conversation_id", t.convID), zap.Error(err))
		t.emit(Event{Type: EventError, Message: msg})
		return nil, err
	}
	return res, nil
}

func (t *turn) run(ctx context.Context) (*TurnResult, error) {
	o := t.o

	t.state(StateResolvingConversation)
	conv, err := o.convs.GetOrCreate(ctx, t.req.UserID, t.req.ConversationID)
	if err != nil {
		return nil, fmt.Errorf("resolve conversation: %w", err)
	}
	t.convID = conv.ID

	if o.locker != nil {
		release, err := o.locker.Acquire(ctx, fmt.Sprintf("chat:lock:%d", conv.ID))
		if err != nil {
			return nil, fmt.Errorf("acquire turn lock: %w", err)
		}
		defer release()
	}

	t.emit(Event{Type: EventConversationID, ConversationID: conv.ID})

	t.state(StateLoadingHistory)
	past, err := o.convs.RecentMessages(ctx, conv.ID, o.historyLimit)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	history := make([]HistoryMessage, 0, len(past))
	for _, m := range past {
		history = append(history, HistoryMessage{Role: m.Role, Content: m.Content})
	}

	t.state(StateSavingUserMessage)
	if _, err := o.convs.AppendMessage(ctx, service.AppendMessageInput{
		ConversationID: conv.ID,
		UserID:         t.req.UserID,
		Role:           model.RoleUser,
		Content:        t.req.Message,
	}); err != nil {
		return nil, fmt.Errorf("save user message: %w", err)
	}

	t.state(StateGeneratingResponse)
	calls, err := t.generate(ctx, Request{
		System:  SystemPrompt,
		Tools:   o.tools.Schemas(),
		History: history,
		Message: t.req.Message,
	})
	if err != nil {
		return nil, err
	}

	// tools and the transcript outlive a disconnected client
	bg := context.WithoutCancel(ctx)

	for _, c := range calls {
		t.state(StateExecutingTools)
		t.execute(bg, c)
	}

	t.state(StateSavingAssistant)
	if t.records == nil {
		t.records = []model.ToolCallRecord{}
	}
	if _, err := o.convs.AppendMessage(bg, service.AppendMessageInput{
		ConversationID: conv.ID,
		UserID:         t.req.UserID,
		Role:           model.RoleAssistant,
		Content:        t.text,
		ToolCalls:      t.records,
	}); err != nil {
		return nil, fmt.Errorf("save assistant message: %w", err)
	}

	t.state(StateDone)
	t.emit(Event{Type: EventDone, ConversationID: conv.ID, FullResponse: t.text, ToolCalls: t.records})
	o.publishTurn(bg, t)

	o.log.Sugar().Infow("chat turn completed",
		"user_id", t.req.UserID,
		"conversation_id", conv.ID,
		"tools", len(t.records),
		"backend", t.backendName(),
	)
	return &TurnResult{ConversationID: conv.ID, Response: t.text, ToolCalls: t.records}, nil
}

func (t *turn) backendName() string {
	if t.fallback {
		return t.o.mock.Name()
	}
	return t.o.BackendName()
}

// generate asks the model for a reply, streaming content to the sink, and
// returns the completed tool calls. A backend that reports
// ErrBackendUnavailable before producing any output is replaced by the mock
// responder; other failures end the turn.
func (t *turn) generate(ctx context.Context, req Request) ([]AssembledCall, error) {
	o := t.o
	backend := o.backend
	if backend == nil {
		t.fallback = true
		return t.generateWith(ctx, o.mock, req)
	}

	genCtx, cancel := context.WithTimeout(ctx, o.modelTimeout)
	defer cancel()

	calls, produced, err := t.generateFrom(genCtx, backend, req)
	if err == nil {
		return calls, nil
	}
	if errors.Is(genCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return nil, fmt.Errorf("%w: %v", ErrModelTimeout, err)
	}
	if produced || ctx.Err() != nil || !errors.Is(err, ErrBackendUnavailable) {
		return nil, fmt.Errorf("generate response: %w", err)
	}

	o.log.Warn("model backend failed, using mock responder", zap.String("backend", backend.Name()), zap.Error(err))
	t.fallback = true
	return t.generateWith(ctx, o.mock, req)
}

func (t *turn) generateWith(ctx context.Context, b Backend, req Request) ([]AssembledCall, error) {
	calls, _, err := t.generateFrom(ctx, b, req)
	if err != nil {
		return nil, fmt.Errorf("generate response: %w", err)
	}
	return calls, nil
}

// generateFrom reports whether any output reached the turn before a failure.
func (t *turn) generateFrom(ctx context.Context, b Backend, req Request) ([]AssembledCall, bool, error) {
	asm := NewAssembler()

	if t.sink == nil {
		c, err := b.Complete(ctx, req)
		if err != nil {
			return nil, false, err
		}
		t.appendContent(c.Content)
		asm.Add(c.ToolCalls...)
		return asm.Calls(), true, nil
	}

	st, err := b.Stream(ctx, req)
	if err != nil {
		return nil, false, err
	}
	defer st.Close()

	produced := false
	for st.Next() {
		d := st.Current()
		if d.Content != "" {
			produced = true
			t.text += d.Content
			t.emit(Event{Type: EventContent, Content: d.Content})
		}
		if len(d.ToolCalls) > 0 {
			produced = true
			asm.Add(d.ToolCalls...)
		}
	}
	if err := st.Err(); err != nil {
		return nil, produced, err
	}
	return asm.Calls(), produced, nil
}

func (t *turn) execute(ctx context.Context, c AssembledCall) {
	args, err := tool.ParseArguments(c.Arguments)
	var res tool.Result
	if err != nil {
		t.o.log.Warn("malformed tool arguments", zap.String("tool", c.Name), zap.String("arguments", c.Arguments), zap.Error(err))
		args = map[string]any{}
		res = tool.Fail(tool.KindValidation, "Invalid arguments for "+c.Name)
	}

	t.emit(Event{Type: EventToolCall, Tool: c.Name, Parameters: args})
	if err == nil {
		res = t.o.tools.Execute(ctx, t.req.UserID, tool.Call{ID: c.ID, Name: c.Name, Arguments: args})
	}
	payload := res.Payload()
	t.emit(Event{Type: EventToolResult, Tool: c.Name, Result: payload})

	t.records = append(t.records, model.ToolCallRecord{Tool: c.Name, Parameters: args, Result: payload})
	t.appendContent(confirmation(c.Name, res))
}

func (o *Orchestrator) publishTurn(ctx context.Context, t *turn) {
	if o.events == nil {
		return
	}
	names := make([]string, 0, len(t.records))
	for _, r := range t.records {
		names = append(names, r.Tool)
	}
	evt := service.ChatTurnEvent{
		Type:           service.EventChatTurnCompleted,
		UserID:         t.req.UserID,
		ConversationID: t.convID,
		Tools:          names,
		Fallback:       t.fallback,
		At:             time.Now(),
	}
	if err := o.events.PublishJSON(ctx, o.exchange, service.EventChatTurnCompleted, evt); err != nil {
		o.log.Warn("publish event failed", zap.String("routing_key", service.EventChatTurnCompleted), zap.Error(err))
	}
}

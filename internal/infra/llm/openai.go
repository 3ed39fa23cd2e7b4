package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/evotodo/todo-api/internal/config"
	"github.com/evotodo/todo-api/internal/modules/chat"
	"github.com/evotodo/todo-api/internal/modules/model"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/packages/ssestream"
	"github.com/openai/openai-go/v3/shared"
)

// Backend talks to any chat-completions compatible endpoint.
type Backend struct {
	client      openai.Client
	model       string
	temperature float64
	maxTokens   int64
}

// New returns nil when no API key is configured.
func New(cfg *config.Config, httpClient *http.Client) *Backend {
	if cfg.LLM.APIKey == "" {
		return nil
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.LLM.APIKey),
		option.WithMaxRetries(cfg.LLM.MaxRetries),
	}
	if cfg.LLM.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.LLM.BaseURL))
	}
	if httpClient != nil {
		opts = append(opts, option.WithHTTPClient(httpClient))
	}
	return &Backend{
		client:      openai.NewClient(opts...),
		model:       cfg.LLM.Model,
		temperature: cfg.LLM.Temperature,
		maxTokens:   int64(cfg.LLM.MaxTokens),
	}
}

func (b *Backend) Name() string { return "openai:" + b.model }

func (b *Backend) Stream(ctx context.Context, req chat.Request) (chat.Stream, error) {
	s := b.client.Chat.Completions.NewStreaming(ctx, b.params(req))
	if err := s.Err(); err != nil {
		_ = s.Close()
		return nil, classify(err)
	}
	return &stream{s: s}, nil
}

func (b *Backend) Complete(ctx context.Context, req chat.Request) (*chat.Completion, error) {
	resp, err := b.client.Chat.Completions.New(ctx, b.params(req))
	if err != nil {
		return nil, classify(err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: empty completion", chat.ErrBackendUnavailable)
	}
	msg := resp.Choices[0].Message
	out := &chat.Completion{Content: msg.Content}
	for i, tc := range msg.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, chat.ToolCallDelta{
			Index:     i,
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	return out, nil
}

func (b *Backend) params(req chat.Request) openai.ChatCompletionNewParams {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.History)+2)
	msgs = append(msgs, openai.SystemMessage(req.System))
	for _, h := range req.History {
		if h.Role == model.RoleAssistant {
			msgs = append(msgs, openai.AssistantMessage(h.Content))
		} else {
			msgs = append(msgs, openai.UserMessage(h.Content))
		}
	}
	msgs = append(msgs, openai.UserMessage(req.Message))

	p := openai.ChatCompletionNewParams{
		Model:    b.model,
		Messages: msgs,
	}
	for _, s := range req.Tools {
		p.Tools = append(p.Tools, openai.ChatCompletionFunctionTool(shared.FunctionDefinitionParam{
			Name:        s.Name,
			Description: openai.String(s.Description),
			Parameters:  shared.FunctionParameters(s.Parameters),
		}))
	}
	if len(p.Tools) > 0 {
		p.ToolChoice = openai.ChatCompletionToolChoiceOptionUnionParam{OfAuto: openai.String("auto")}
	}
	if b.temperature > 0 {
		p.Temperature = openai.Float(b.temperature)
	}
	if b.maxTokens > 0 {
		p.MaxTokens = openai.Int(b.maxTokens)
	}
	return p
}

// classify marks transport and server-side failures as unavailability so the
// caller can fall back. Request errors and cancellation pass through.
func classify(err error) error {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusBadRequest {
		return err
	}
	return fmt.Errorf("%w: %v", chat.ErrBackendUnavailable, err)
}

type stream struct {
	s   *ssestream.Stream[openai.ChatCompletionChunk]
	cur chat.Delta
}

func (st *stream) Next() bool {
	for st.s.Next() {
		chunk := st.s.Current()
		if len(chunk.Choices) == 0 {
			continue
		}
		d := chunk.Choices[0].Delta
		cur := chat.Delta{Content: d.Content}
		for _, tc := range d.ToolCalls {
			cur.ToolCalls = append(cur.ToolCalls, chat.ToolCallDelta{
				Index:     int(tc.Index),
				ID:        tc.ID,
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			})
		}
		if cur.Content == "" && len(cur.ToolCalls) == 0 {
			continue
		}
		st.cur = cur
		return true
	}
	return false
}

func (st *stream) Current() chat.Delta { return st.cur }

func (st *stream) Err() error { return classify(st.s.Err()) }

func (st *stream) Close() error { return st.s.Close() }

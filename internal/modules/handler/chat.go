package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/evotodo/todo-api/internal/modules/chat"
	"github.com/evotodo/todo-api/internal/modules/serializer"
	"github.com/evotodo/todo-api/internal/modules/service"
	"github.com/evotodo/todo-api/internal/pkg/editor"
)

const msgMessageLength = "Message must be 1-2000 characters"

// TurnRunner is satisfied by *chat.Orchestrator.
type TurnRunner interface {
	Run(ctx context.Context, req chat.TurnRequest, sink chat.Sink) (*chat.TurnResult, error)
	BackendName() string
}

type ChatHandler struct {
	turns     TurnRunner
	convs     service.ConversationService
	toolNames []string
}

func NewChatHandler(turns TurnRunner, convs service.ConversationService, toolNames []string) *ChatHandler {
	return &ChatHandler{turns: turns, convs: convs, toolNames: toolNames}
}

type ChatReq struct {
	ConversationID *int64 `json:"conversation_id" example:"42"`
	Message        string `json:"message" binding:"required,max=2000" example:"add buy milk"`
}

func (h *ChatHandler) bindTurn(c *gin.Context) (chat.TurnRequest, bool) {
	req := ChatReq{}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, serializer.ParamErr(msgMessageLength, err))
		return chat.TurnRequest{}, false
	}
	if strings.TrimSpace(req.Message) == "" {
		c.JSON(http.StatusBadRequest, serializer.ParamErr(msgMessageLength, nil))
		return chat.TurnRequest{}, false
	}
	user, ok := currentUser(c)
	if !ok {
		return chat.TurnRequest{}, false
	}
	return chat.TurnRequest{UserID: user, ConversationID: req.ConversationID, Message: req.Message}, true
}

// Chat godoc
//
//	@Summary		Chat
//	@Description	Run one stateless chat turn and return the full reply. The model may add, list, complete, delete or update tasks on the user's behalf.
//	@Tags			chat
//	@Accept			json
//	@Produce		json
//	@Param			user_id	path	string			true	"User ID"
//	@Param			payload	body	handler.ChatReq	true	"Chat payload"
//	@Security		BearerAuth
//	@Success		200	{object}	chat.TurnResult
//	@Failure		500	{object}	serializer.Response
//	@Failure		504	{object}	serializer.Response
//	@Router			/{user_id}/chat [post]
func (h *ChatHandler) Chat(c *gin.Context) {
	req, ok := h.bindTurn(c)
	if !ok {
		return
	}

	res, err := h.turns.Run(c.Request.Context(), req, nil)
	if err != nil {
		if errors.Is(err, chat.ErrModelTimeout) {
			c.JSON(http.StatusGatewayTimeout, serializer.Err(http.StatusGatewayTimeout, chat.MsgTimeout, err))
			return
		}
		c.JSON(http.StatusInternalServerError, serializer.Err(http.StatusInternalServerError, chat.MsgTrouble, err))
		return
	}
	c.JSON(http.StatusOK, res)
}

// ChatStream godoc
//
//	@Summary		Chat (streaming)
//	@Description	Run one chat turn and stream it as Server-Sent Events. Each event is a `data: {json}` frame with type conversation_id, content, tool_call, tool_result, done or error. done or error is always last.
//	@Tags			chat
//	@Accept			json
//	@Produce		text/event-stream
//	@Param			user_id	path	string			true	"User ID"
//	@Param			payload	body	handler.ChatReq	true	"Chat payload"
//	@Security		BearerAuth
//	@Success		200	{string}	string	"event stream"
//	@Router			/{user_id}/chat/stream [post]
func (h *ChatHandler) ChatStream(c *gin.Context) {
	req, ok := h.bindTurn(c)
	if !ok {
		return
	}

	w := c.Writer
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	w.Flush()

	ctx := c.Request.Context()
	sink := func(ev chat.Event) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		payload, err := ev.MarshalJSON()
		if err != nil {
			return err
		}
		if _, err := w.WriteString("data: " + string(payload) + "\n\n"); err != nil {
			return err
		}
		w.Flush()
		return nil
	}

	// The orchestrator has already emitted the terminal error event and
	// logged the cause.
	_, _ = h.turns.Run(ctx, req, sink)
}

type ChatHealth struct {
	Status    string   `json:"status" example:"healthy"`
	Endpoint  string   `json:"endpoint" example:"chat"`
	Tools     []string `json:"tools"`
	Streaming bool     `json:"streaming"`
	Backend   string   `json:"backend" example:"openai:gpt-4o-mini"`
}

// Health godoc
//
//	@Summary		Chat health
//	@Tags			chat
//	@Produce		json
//	@Param			user_id	path	string	true	"User ID"
//	@Success		200	{object}	handler.ChatHealth
//	@Router			/{user_id}/chat/health [get]
func (h *ChatHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, ChatHealth{
		Status:    "healthy",
		Endpoint:  "chat",
		Tools:     h.toolNames,
		Streaming: true,
		Backend:   h.turns.BackendName(),
	})
}

type ListConversationsReq struct {
	Limit int `form:"limit,default=20" json:"limit" binding:"min=1,max=100" example:"20"`
}

// ListConversations godoc
//
//	@Summary		List conversations
//	@Description	List the user's conversations, most recently active first
//	@Tags			chat
//	@Produce		json
//	@Param			user_id	path	string	true	"User ID"
//	@Param			limit	query	integer	false	"Max conversations, default 20, max 100"
//	@Security		BearerAuth
//	@Success		200	{object}	serializer.Response{data=[]model.Conversation}
//	@Router			/{user_id}/chat/conversations [get]
func (h *ChatHandler) ListConversations(c *gin.Context) {
	req := ListConversationsReq{}
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("", err))
		return
	}
	user, ok := currentUser(c)
	if !ok {
		return
	}

	items, err := h.convs.List(c.Request.Context(), user, req.Limit)
	if err != nil {
		writeServiceErr(c, err, "")
		return
	}
	c.JSON(http.StatusOK, serializer.Response{Data: items})
}

type GetMessagesReq struct {
	Limit                 int  `form:"limit,default=200" json:"limit" binding:"min=1,max=200" example:"50"`
	KeepRecentToolCalls   *int `form:"keep_recent_tool_calls" json:"keep_recent_tool_calls" binding:"omitempty,min=0" example:"3"`
	KeepRecentToolResults *int `form:"keep_recent_tool_results" json:"keep_recent_tool_results" binding:"omitempty,min=0" example:"3"`
}

func (r GetMessagesReq) strategies() ([]editor.EditStrategy, error) {
	var out []editor.EditStrategy
	if r.KeepRecentToolCalls != nil {
		s, err := editor.NewStrategy("remove_tool_call_params", map[string]interface{}{"keep_recent_n_tool_calls": *r.KeepRecentToolCalls})
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if r.KeepRecentToolResults != nil {
		s, err := editor.NewStrategy("remove_tool_results", map[string]interface{}{"keep_recent_n_tool_results": *r.KeepRecentToolResults})
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// GetMessages godoc
//
//	@Summary		Get conversation transcript
//	@Description	Return the newest messages of a conversation, oldest first. keep_recent_tool_calls and keep_recent_tool_results blank the parameters or results of all but the newest N tool calls.
//	@Tags			chat
//	@Produce		json
//	@Param			user_id						path	string	true	"User ID"
//	@Param			conversation_id				path	integer	true	"Conversation ID"
//	@Param			limit						query	integer	false	"Max messages, default 200"
//	@Param			keep_recent_tool_calls		query	integer	false	"Keep parameters of the newest N tool calls"
//	@Param			keep_recent_tool_results	query	integer	false	"Keep results of the newest N tool calls"
//	@Security		BearerAuth
//	@Success		200	{object}	serializer.Response{data=[]model.Message}
//	@Failure		404	{object}	serializer.Response
//	@Router			/{user_id}/chat/conversations/{conversation_id}/messages [get]
func (h *ChatHandler) GetMessages(c *gin.Context) {
	id, ok := pathID(c, "conversation_id")
	if !ok {
		return
	}
	req := GetMessagesReq{}
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("", err))
		return
	}
	strategies, err := req.strategies()
	if err != nil {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("", err))
		return
	}
	user, ok := currentUser(c)
	if !ok {
		return
	}

	msgs, err := h.convs.Messages(c.Request.Context(), user, id, req.Limit)
	if err != nil {
		writeServiceErr(c, err, "Conversation "+strconv.FormatInt(id, 10)+" not found")
		return
	}
	msgs, err = editor.Apply(msgs, strategies...)
	if err != nil {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("", err))
		return
	}
	c.JSON(http.StatusOK, serializer.Response{Data: msgs})
}

// DeleteConversation godoc
//
//	@Summary		Delete conversation
//	@Description	Delete a conversation and all of its messages
//	@Tags			chat
//	@Produce		json
//	@Param			user_id			path	string	true	"User ID"
//	@Param			conversation_id	path	integer	true	"Conversation ID"
//	@Security		BearerAuth
//	@Success		200	{object}	serializer.Response
//	@Failure		404	{object}	serializer.Response
//	@Router			/{user_id}/chat/conversations/{conversation_id} [delete]
func (h *ChatHandler) DeleteConversation(c *gin.Context) {
	id, ok := pathID(c, "conversation_id")
	if !ok {
		return
	}
	user, ok := currentUser(c)
	if !ok {
		return
	}

	deleted, err := h.convs.Delete(c.Request.Context(), user, id)
	if err != nil {
		writeServiceErr(c, err, "")
		return
	}
	if !deleted {
		c.JSON(http.StatusNotFound, serializer.NotFoundErr("Conversation "+strconv.FormatInt(id, 10)+" not found"))
		return
	}
	c.JSON(http.StatusOK, serializer.Response{Msg: "Conversation deleted successfully", Data: gin.H{"conversation_id": id}})
}

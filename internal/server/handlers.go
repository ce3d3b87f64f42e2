package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/jamesnation/deepsearch/internal/research"
	"github.com/jamesnation/deepsearch/internal/store"
	"github.com/jamesnation/deepsearch/utils"
)

// Runner is the slice of the research controller the handlers need.
type Runner interface {
	Run(ctx context.Context, question string, history []research.Turn, sink research.Sink) research.Result
}

// ChatHandler serves the research endpoints. Store may be nil, in which case
// transcripts are neither loaded nor saved.
type ChatHandler struct {
	Runner Runner
	Store  *store.Store
	Logger *log.Logger
}

// Register mounts the chat routes on g.
func (h *ChatHandler) Register(g *echo.Group) {
	if h.Logger == nil {
		h.Logger = log.New(log.Writer(), "[CHAT] ", log.LstdFlags)
	}
	g.POST("/chat", h.chat)
	g.POST("/ask", h.ask)
	g.GET("/chats", h.listChats)
	g.GET("/chats/:id", h.getChat)
	g.DELETE("/chats/:id", h.deleteChat)
}

type chatRequest struct {
	ChatID   string          `json:"chat_id"`
	Question string          `json:"question"`
	Messages []research.Turn `json:"messages"`
}

func (r *chatRequest) validate() error {
	r.Question = strings.TrimSpace(r.Question)
	if r.Question == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "question is required")
	}
	return nil
}

// ask runs the research loop and returns the whole result as JSON. No
// streaming and no persistence; this is the endpoint the CLI uses.
func (h *ChatHandler) ask(c echo.Context) error {
	var req chatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := req.validate(); err != nil {
		return err
	}

	result := h.Runner.Run(c.Request().Context(), req.Question, req.Messages, nil)
	return c.JSON(http.StatusOK, result)
}

// chat streams progress events and the final answer over SSE, then saves the
// transcript. Event names: chat (id announcement), plan, sources,
// token_usage, answer, done.
func (h *ChatHandler) chat(c echo.Context) error {
	var req chatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := req.validate(); err != nil {
		return err
	}

	history := req.Messages
	if req.ChatID == "" {
		req.ChatID = uuid.NewString()
	} else if len(history) == 0 && h.Store != nil {
		_, msgs, err := h.Store.GetChat(c.Request().Context(), req.ChatID)
		if err == nil {
			for _, m := range msgs {
				history = append(history, research.Turn{Role: m.Role, Content: m.Content})
			}
		} else if err != store.ErrNotFound {
			h.Logger.Printf("loading chat %s failed: %v", req.ChatID, err)
		}
	}

	resp := c.Response()
	resp.Header().Set(echo.HeaderContentType, "text/event-stream")
	resp.Header().Set("Cache-Control", "no-cache")
	resp.Header().Set("Connection", "keep-alive")
	resp.WriteHeader(http.StatusOK)

	writeEvent(resp, "chat", map[string]string{"chat_id": req.ChatID})

	sink := research.NewChannelSink(64)
	done := make(chan research.Result, 1)
	go func() {
		defer sink.Close()
		done <- h.Runner.Run(c.Request().Context(), req.Question, history, sink)
	}()

	for event := range sink.Events() {
		writeEvent(resp, string(event.Type), event)
	}
	result := <-done

	writeEvent(resp, "answer", result)
	writeEvent(resp, "done", map[string]bool{"ok": !result.Degraded})

	h.persist(c.Request().Context(), req.ChatID, req.Question, history, result)
	return nil
}

// persist appends this exchange to the stored transcript. Failures are
// logged and swallowed; the user already has the answer.
func (h *ChatHandler) persist(ctx context.Context, chatID, question string, history []research.Turn, result research.Result) {
	if h.Store == nil {
		return
	}

	msgs := make([]store.Message, 0, len(history)+2)
	for _, turn := range history {
		msgs = append(msgs, store.Message{Role: turn.Role, Content: turn.Content})
	}
	msgs = append(msgs, store.Message{Role: "user", Content: question})

	payload, err := json.Marshal(map[string]interface{}{
		"sources":      result.Sources,
		"total_tokens": result.TotalTokens,
		"steps":        result.Steps,
		"degraded":     result.Degraded,
	})
	if err != nil {
		payload = nil
	}
	msgs = append(msgs, store.Message{Role: "assistant", Content: result.Answer, Payload: payload})

	title := utils.Truncate(question, 80)
	if err := h.Store.UpsertChat(ctx, chatID, title, msgs); err != nil {
		h.Logger.Printf("saving chat %s failed: %v", chatID, err)
	}
}

func (h *ChatHandler) listChats(c echo.Context) error {
	if h.Store == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "chat history not configured")
	}
	chats, err := h.Store.ListChats(c.Request().Context())
	if err != nil {
		return err
	}
	if chats == nil {
		chats = []store.Chat{}
	}
	return c.JSON(http.StatusOK, chats)
}

func (h *ChatHandler) getChat(c echo.Context) error {
	if h.Store == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "chat history not configured")
	}
	chat, msgs, err := h.Store.GetChat(c.Request().Context(), c.Param("id"))
	if err == store.ErrNotFound {
		return echo.NewHTTPError(http.StatusNotFound, "chat not found")
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"chat": chat, "messages": msgs})
}

func (h *ChatHandler) deleteChat(c echo.Context) error {
	if h.Store == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "chat history not configured")
	}
	err := h.Store.DeleteChat(c.Request().Context(), c.Param("id"))
	if err == store.ErrNotFound {
		return echo.NewHTTPError(http.StatusNotFound, "chat not found")
	}
	if err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// writeEvent emits one SSE frame and flushes it so clients see progress as
// it happens.
func writeEvent(resp *echo.Response, event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	fmt.Fprintf(resp, "event: %s\ndata: %s\n\n", event, data)
	resp.Flush()
}

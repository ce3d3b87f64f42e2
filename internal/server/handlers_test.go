package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/labstack/echo/v4"

	"github.com/jamesnation/deepsearch/internal/research"
	"github.com/jamesnation/deepsearch/internal/store"
)

type stubRunner struct {
	result   research.Result
	events   []research.Event
	question string
	history  []research.Turn
}

func (s *stubRunner) Run(ctx context.Context, question string, history []research.Turn, sink research.Sink) research.Result {
	s.question = question
	s.history = history
	for _, e := range s.events {
		if sink != nil {
			sink.Publish(e)
		}
	}
	return s.result
}

func newTestHandler(runner *stubRunner, st *store.Store) (*echo.Echo, *ChatHandler) {
	e := echo.New()
	h := &ChatHandler{Runner: runner, Store: st}
	h.Register(e.Group("/api"))
	return e, h
}

func TestAskReturnsResult(t *testing.T) {
	runner := &stubRunner{result: research.Result{
		Answer:  "Paris.",
		Steps:   1,
		Sources: []research.SourceRef{{Title: "Wiki", URL: "https://example.com"}},
	}}
	e, _ := newTestHandler(runner, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/ask",
		strings.NewReader(`{"question":"capital of France?","messages":[{"role":"user","content":"hi"}]}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"answer":"Paris."`) {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
	if runner.question != "capital of France?" {
		t.Fatalf("question not forwarded: %q", runner.question)
	}
	if len(runner.history) != 1 || runner.history[0].Content != "hi" {
		t.Fatalf("history not forwarded: %+v", runner.history)
	}
}

func TestAskRejectsEmptyQuestion(t *testing.T) {
	e, _ := newTestHandler(&stubRunner{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/ask", strings.NewReader(`{"question":"   "}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestChatStreamsEvents(t *testing.T) {
	runner := &stubRunner{
		result: research.Result{Answer: "done answer"},
		events: []research.Event{
			{Type: research.EventPlanReady, Plan: &research.PlanEvent{Step: 1, QueryCount: 3}},
			{Type: research.EventSourcesFound, Sources: &research.SourcesEvent{Count: 2}},
			{Type: research.EventTokenUsage, TokenUsage: &research.TokenUsageEvent{TotalTokens: 42}},
		},
	}
	e, _ := newTestHandler(runner, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"question":"q"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get(echo.HeaderContentType); ct != "text/event-stream" {
		t.Fatalf("expected SSE content type, got %q", ct)
	}
	body := rec.Body.String()
	for _, want := range []string{
		"event: chat",
		`"chat_id":"`,
		"event: plan",
		"event: sources",
		"event: token_usage",
		"event: answer",
		`"answer":"done answer"`,
		"event: done",
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("stream missing %q:\n%s", want, body)
		}
	}
}

func TestChatPersistsTranscript(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	// no stored history for this chat yet
	mock.ExpectQuery("SELECT id, title, created_at, updated_at FROM chats").
		WithArgs("chat-7").
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "created_at", "updated_at"}))

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO chats").
		WithArgs("chat-7", "q").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM messages").
		WithArgs("chat-7").
		WillReturnResult(sqlmock.NewResult(0, 0))
	// user question then assistant answer
	mock.ExpectExec("INSERT INTO messages").
		WithArgs(sqlmock.AnyArg(), "chat-7", "user", "q", nil, 0).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO messages").
		WithArgs(sqlmock.AnyArg(), "chat-7", "assistant", "a", sqlmock.AnyArg(), 1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	runner := &stubRunner{result: research.Result{Answer: "a"}}
	e, _ := newTestHandler(runner, &store.Store{DB: db})

	req := httptest.NewRequest(http.MethodPost, "/api/chat",
		strings.NewReader(`{"chat_id":"chat-7","question":"q","messages":[]}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestChatHistoryEndpointsRequireStore(t *testing.T) {
	e, _ := newTestHandler(&stubRunner{}, nil)

	for _, tc := range []struct {
		method, path string
	}{
		{http.MethodGet, "/api/chats"},
		{http.MethodGet, "/api/chats/x"},
		{http.MethodDelete, "/api/chats/x"},
	} {
		req := httptest.NewRequest(tc.method, tc.path, nil)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		if rec.Code != http.StatusServiceUnavailable {
			t.Fatalf("%s %s: expected 503, got %d", tc.method, tc.path, rec.Code)
		}
	}
}

func TestGetChatNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("SELECT id, title, created_at, updated_at FROM chats").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "created_at", "updated_at"}))

	e, _ := newTestHandler(&stubRunner{}, &store.Store{DB: db})
	req := httptest.NewRequest(http.MethodGet, "/api/chats/missing", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", rec.Code, rec.Body.String())
	}
}

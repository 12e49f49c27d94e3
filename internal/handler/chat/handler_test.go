package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/research-assistant/backend/internal/service/assistant"
)

type fakeChatter struct {
	inputs []assistant.ChatInput
	err    error
}

func (f *fakeChatter) Chat(_ context.Context, in assistant.ChatInput) (assistant.ChatResult, error) {
	f.inputs = append(f.inputs, in)
	if f.err != nil {
		return assistant.ChatResult{}, f.err
	}
	id := in.SessionID
	if id == "" {
		id = "fresh"
	}
	return assistant.ChatResult{SessionID: id, Answer: "echo: " + in.Question}, nil
}

func setupRouter() (*chi.Mux, *fakeChatter) {
	chatter := &fakeChatter{}
	handler := New(chatter)

	r := chi.NewRouter()
	handler.RegisterRoutes(r)
	return r, chatter
}

func post(r http.Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/chat", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func TestChatDefaults(t *testing.T) {
	r, chatter := setupRouter()

	resp := post(r, `{"question":"what is it?"}`)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}

	var body map[string]string
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["session_id"] != "fresh" || body["answer"] != "echo: what is it?" {
		t.Fatalf("unexpected body %v", body)
	}

	in := chatter.inputs[0]
	if in.Personality != "factual" || in.Research || in.SessionID != "" {
		t.Fatalf("unexpected defaults %+v", in)
	}
}

func TestChatPassesFields(t *testing.T) {
	r, chatter := setupRouter()

	resp := post(r, `{"question":"q","session_id":"abc","personality":"Humorous","research":true}`)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	want := assistant.ChatInput{Question: "q", SessionID: "abc", Personality: "Humorous", Research: true}
	if chatter.inputs[0] != want {
		t.Fatalf("got %+v, want %+v", chatter.inputs[0], want)
	}
}

func TestChatRejectsBlankQuestion(t *testing.T) {
	r, chatter := setupRouter()

	resp := post(r, `{"question":"   "}`)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
	if len(chatter.inputs) != 0 {
		t.Fatal("blank question must not reach the pipeline")
	}
}

func TestChatInvalidBody(t *testing.T) {
	r, _ := setupRouter()

	if resp := post(r, `{"question":`); resp.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.Code)
	}
}

func TestChatUpstreamFailure(t *testing.T) {
	r, chatter := setupRouter()
	chatter.err = fmt.Errorf("%w: %v", assistant.ErrUpstreamModel, errors.New("rate limited"))

	resp := post(r, `{"question":"q"}`)
	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.Code)
	}

	var body map[string]string
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !strings.HasPrefix(body["detail"], "LLM error") || !strings.Contains(body["detail"], "rate limited") {
		t.Fatalf("unexpected detail %q", body["detail"])
	}
}

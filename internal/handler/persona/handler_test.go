package persona

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/research-assistant/backend/internal/model/persona"
	"github.com/zhouzirui/research-assistant/backend/internal/service/assistant"
)

type fakeSeeder struct {
	labels []string
}

func (f *fakeSeeder) SetPersonality(_ context.Context, label string) assistant.PersonalityResult {
	f.labels = append(f.labels, label)
	return assistant.PersonalityResult{SessionID: "sess-1", Personality: persona.Normalize(label)}
}

func setupRouter() (*chi.Mux, *fakeSeeder) {
	seeder := &fakeSeeder{}
	handler := New(seeder, persona.NewMemoryStore(persona.Seed()))

	r := chi.NewRouter()
	handler.RegisterRoutes(r)
	return r, seeder
}

func TestSetPersonality(t *testing.T) {
	r, seeder := setupRouter()

	req := httptest.NewRequest(http.MethodPost, "/set_personality", bytes.NewBufferString(`{"personality":"Humorous"}`))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" || body["session_id"] != "sess-1" || body["personality"] != "humorous" {
		t.Fatalf("unexpected body %v", body)
	}
	if len(seeder.labels) != 1 || seeder.labels[0] != "Humorous" {
		t.Fatalf("label not passed verbatim: %v", seeder.labels)
	}
}

func TestSetPersonalityMissingField(t *testing.T) {
	r, seeder := setupRouter()

	for _, payload := range []string{`{}`, `not json`} {
		req := httptest.NewRequest(http.MethodPost, "/set_personality", bytes.NewBufferString(payload))
		resp := httptest.NewRecorder()
		r.ServeHTTP(resp, req)

		if resp.Code != http.StatusUnprocessableEntity {
			t.Fatalf("payload %q: expected 422, got %d", payload, resp.Code)
		}
	}
	if len(seeder.labels) != 0 {
		t.Fatal("no session should be created for invalid requests")
	}
}

func TestListPersonalities(t *testing.T) {
	r, _ := setupRouter()

	req := httptest.NewRequest(http.MethodGet, "/personalities", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}

	var body struct {
		Default       string            `json:"default"`
		Personalities []persona.Persona `json:"personalities"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Default != "factual" || len(body.Personalities) != 3 {
		t.Fatalf("unexpected body %+v", body)
	}
}

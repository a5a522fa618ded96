package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/rhuss/kontrakt/pkg/api"
	"github.com/rhuss/kontrakt/pkg/auth"
	"github.com/rhuss/kontrakt/pkg/auth/noop"
	"github.com/rhuss/kontrakt/pkg/transcript"
	"github.com/rhuss/kontrakt/pkg/transport"
)

// fakeAssistant records calls and answers with canned values.
type fakeAssistant struct {
	mu       sync.Mutex
	lastUser string
	lastMsg  string
	turnErr  error
	histErr  error
	cleared  []string
	messages []transcript.Message
}

func (f *fakeAssistant) HandleTurn(_ context.Context, userID string, req *api.TurnRequest) (*api.TurnResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastUser, f.lastMsg = userID, req.Message
	if f.turnErr != nil {
		return nil, f.turnErr
	}
	return &api.TurnResponse{ID: api.NewTurnID(), Object: "assistant.turn", Answer: "echo: " + req.Message, State: "done", Appended: 2}, nil
}

func (f *fakeAssistant) GetHistory(_ context.Context, userID string) (*api.HistoryResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastUser = userID
	if f.histErr != nil {
		return nil, f.histErr
	}
	return &api.HistoryResponse{Object: "assistant.history", UserID: userID, Messages: f.messages}, nil
}

func (f *fakeAssistant) ClearHistory(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.histErr != nil {
		return f.histErr
	}
	f.cleared = append(f.cleared, userID)
	return nil
}

// newTestServer serves the adapter behind the noop authenticator, so the
// X-Kontrakt-User header selects the user.
func newTestServer(t *testing.T, fa *fakeAssistant, history transport.HistoryHandler) *httptest.Server {
	t.Helper()
	a := NewAdapter(fa, history, DefaultConfig(), nil, transport.Recovery(), transport.RequestID())
	chain := &auth.Chain{Authenticators: []auth.Authenticator{&noop.Authenticator{}}}
	srv := httptest.NewServer(a.Handler(auth.Middleware(chain, nil, auth.DefaultBypassPaths, nil)))
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, srv *httptest.Server, method, path, user, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, srv.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if user != "" {
		req.Header.Set(noop.UserHeader, user)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeError(t *testing.T, resp *http.Response) *api.APIError {
	t.Helper()
	var body api.ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decoding error body: %v", err)
	}
	if body.Error == nil {
		t.Fatal("error body without error")
	}
	return body.Error
}

func TestPostTurn(t *testing.T) {
	fa := &fakeAssistant{}
	srv := newTestServer(t, fa, fa)

	resp := do(t, srv, http.MethodPost, "/v1/assistant/turns", "alice", `{"message":"Hello"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type = %q", ct)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID")
	}

	var out api.TurnResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.Answer != "echo: Hello" || out.Appended != 2 {
		t.Errorf("response = %+v", out)
	}
	if fa.lastUser != "alice" || fa.lastMsg != "Hello" {
		t.Errorf("handler saw user=%q msg=%q", fa.lastUser, fa.lastMsg)
	}
}

func TestRequestIDPropagated(t *testing.T) {
	fa := &fakeAssistant{}
	srv := newTestServer(t, fa, fa)

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/v1/assistant/turns", strings.NewReader(`{"message":"hi"}`))
	req.Header.Set("X-Request-ID", "req-from-client")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if got := resp.Header.Get("X-Request-ID"); got != "req-from-client" {
		t.Errorf("X-Request-ID = %q", got)
	}
}

func TestPostTurnRejections(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        string
		status      int
		param       string
	}{
		{"invalid json", "application/json", `{"message":`, http.StatusBadRequest, "body"},
		{"empty message", "application/json", `{"message":"   "}`, http.StatusBadRequest, "message"},
		{"message too long", "application/json", `{"message":"` + strings.Repeat("x", 40*1024) + `"}`, http.StatusBadRequest, "message"},
		{"body too large", "application/json", `{"message":"` + strings.Repeat("x", 2<<20) + `"}`, http.StatusRequestEntityTooLarge, "body"},
		{"wrong content type", "text/plain", `{"message":"hi"}`, http.StatusUnsupportedMediaType, "content_type"},
	}

	fa := &fakeAssistant{}
	srv := newTestServer(t, fa, fa)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, _ := http.NewRequest(http.MethodPost, srv.URL+"/v1/assistant/turns", bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", tt.contentType)
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				t.Fatal(err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != tt.status {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.status)
			}
			if e := decodeError(t, resp); e.Param != tt.param {
				t.Errorf("param = %q, want %q", e.Param, tt.param)
			}
		})
	}
}

func TestHandlerErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		typ    api.ErrorType
	}{
		{"api error", api.NewUnavailableError("session store unavailable"), http.StatusServiceUnavailable, api.ErrorTypeUnavailable},
		{"wrapped api error", errors.Join(errors.New("ctx"), api.NewModelError("bad gateway")), http.StatusBadGateway, api.ErrorTypeModelError},
		{"plain error", errors.New("db password is hunter2"), http.StatusInternalServerError, api.ErrorTypeServerError},
		{"deadline", context.DeadlineExceeded, http.StatusServiceUnavailable, api.ErrorTypeUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fa := &fakeAssistant{turnErr: tt.err}
			srv := newTestServer(t, fa, fa)

			resp := do(t, srv, http.MethodPost, "/v1/assistant/turns", "bob", `{"message":"hi"}`)
			if resp.StatusCode != tt.status {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.status)
			}
			e := decodeError(t, resp)
			if e.Type != tt.typ {
				t.Errorf("type = %q, want %q", e.Type, tt.typ)
			}
			if strings.Contains(e.Message, "hunter2") {
				t.Error("internal error detail leaked to client")
			}
		})
	}
}

func TestHistory(t *testing.T) {
	fa := &fakeAssistant{messages: []transcript.Message{
		transcript.UserText("Hello"),
		transcript.ModelText("Hi there"),
	}}
	srv := newTestServer(t, fa, fa)

	resp := do(t, srv, http.MethodGet, "/v1/assistant/history", "carol", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET status = %d", resp.StatusCode)
	}
	var hist api.HistoryResponse
	if err := json.NewDecoder(resp.Body).Decode(&hist); err != nil {
		t.Fatal(err)
	}
	if hist.UserID != "carol" || len(hist.Messages) != 2 || hist.Messages[1].Text() != "Hi there" {
		t.Errorf("history = %+v", hist)
	}

	resp = do(t, srv, http.MethodDelete, "/v1/assistant/history", "carol", "")
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("DELETE status = %d", resp.StatusCode)
	}
	if len(fa.cleared) != 1 || fa.cleared[0] != "carol" {
		t.Errorf("cleared = %v", fa.cleared)
	}
}

func TestHistoryStoreFailure(t *testing.T) {
	fa := &fakeAssistant{histErr: api.NewUnavailableError("session store unavailable")}
	srv := newTestServer(t, fa, fa)

	if resp := do(t, srv, http.MethodGet, "/v1/assistant/history", "dave", ""); resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("GET status = %d", resp.StatusCode)
	}
	if resp := do(t, srv, http.MethodDelete, "/v1/assistant/history", "dave", ""); resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("DELETE status = %d", resp.StatusCode)
	}
}

func TestHistoryNotConfigured(t *testing.T) {
	fa := &fakeAssistant{}
	srv := newTestServer(t, fa, nil)

	if resp := do(t, srv, http.MethodGet, "/v1/assistant/history", "erin", ""); resp.StatusCode != http.StatusNotImplemented {
		t.Errorf("status = %d, want 501", resp.StatusCode)
	}
}

func TestMissingUser(t *testing.T) {
	fa := &fakeAssistant{}
	cfg := DefaultConfig()
	cfg.UserID = func(*http.Request) string { return "" }
	srv := httptest.NewServer(NewAdapter(fa, fa, cfg, nil).Handler())
	defer srv.Close()

	resp := do(t, srv, http.MethodPost, "/v1/assistant/turns", "", `{"message":"hi"}`)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	panicky := transport.TurnHandlerFunc(func(context.Context, string, *api.TurnRequest) (*api.TurnResponse, error) {
		panic("boom")
	})
	cfg := DefaultConfig()
	cfg.UserID = func(*http.Request) string { return "frank" }
	srv := httptest.NewServer(NewAdapter(panicky, nil, cfg, nil, transport.Recovery()).Handler())
	defer srv.Close()

	resp := do(t, srv, http.MethodPost, "/v1/assistant/turns", "", `{"message":"hi"}`)
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", resp.StatusCode)
	}
}

func TestUnknownRoutes(t *testing.T) {
	fa := &fakeAssistant{}
	srv := newTestServer(t, fa, fa)

	if resp := do(t, srv, http.MethodGet, "/v1/responses", "alice", ""); resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown path: status = %d", resp.StatusCode)
	}
	if resp := do(t, srv, http.MethodPut, "/v1/assistant/turns", "alice", ""); resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("wrong method: status = %d", resp.StatusCode)
	}
}

func TestHealthEndpoints(t *testing.T) {
	fa := &fakeAssistant{}
	a := NewAdapter(fa, fa, DefaultConfig(), nil)
	var storeErr error
	a.AddHealthCheck("session_store", transport.HealthCheckFunc(func(context.Context) error { return storeErr }))

	chain := &auth.Chain{Default: auth.No}
	srv := httptest.NewServer(a.Handler(auth.Middleware(chain, nil, auth.DefaultBypassPaths, nil)))
	defer srv.Close()

	if resp := do(t, srv, http.MethodGet, "/healthz", "", ""); resp.StatusCode != http.StatusOK {
		t.Errorf("healthz = %d", resp.StatusCode)
	}
	if resp := do(t, srv, http.MethodGet, "/readyz", "", ""); resp.StatusCode != http.StatusOK {
		t.Errorf("readyz = %d", resp.StatusCode)
	}

	storeErr = errors.New("connection refused")
	resp := do(t, srv, http.MethodGet, "/readyz", "", "")
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("readyz with failing store = %d", resp.StatusCode)
	}
	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	json.NewDecoder(resp.Body).Decode(&body)
	if body.Checks["session_store"] != "unavailable" {
		t.Errorf("checks = %v", body.Checks)
	}

	resp = do(t, srv, http.MethodGet, "/metrics", "", "")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("metrics = %d", resp.StatusCode)
	}

	// Everything else still requires credentials.
	if resp := do(t, srv, http.MethodGet, "/v1/assistant/history", "", ""); resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("history without auth = %d", resp.StatusCode)
	}
}

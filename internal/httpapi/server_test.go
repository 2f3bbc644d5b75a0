package httpapi

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"essaylens/pkg/types"
)

type mockService struct {
	models  types.ModelsResponse
	status  types.StatusResponse
	ready   bool
	chatErr error
	reply   types.ChatResponse
	tokens  []string
	// streamErr is returned after tokens have been emitted.
	streamErr error
	jsonResp  types.JSONResponse

	lastChat types.ChatRequest
	lastJSON types.JSONRequest
}

func (m *mockService) Ready() bool                      { return m.ready }
func (m *mockService) Status() types.StatusResponse     { return m.status }
func (m *mockService) ListModels() types.ModelsResponse { return m.models }

func (m *mockService) Chat(_ context.Context, req types.ChatRequest) (types.ChatResponse, error) {
	m.lastChat = req
	if m.chatErr != nil {
		return types.ChatResponse{}, m.chatErr
	}
	return m.reply, nil
}

func (m *mockService) ChatStream(_ context.Context, req types.ChatRequest, emit func(string) error) (int, error) {
	m.lastChat = req
	if m.chatErr != nil {
		return 0, m.chatErr
	}
	n := 0
	for _, tok := range m.tokens {
		if err := emit(tok); err != nil {
			return n, err
		}
		n++
	}
	return n, m.streamErr
}

func (m *mockService) JSON(_ context.Context, req types.JSONRequest) (types.JSONResponse, error) {
	m.lastJSON = req
	if m.chatErr != nil {
		return types.JSONResponse{}, m.chatErr
	}
	return m.jsonResp, nil
}

func postJSON(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestModelsHandler(t *testing.T) {
	svc := &mockService{models: types.ModelsResponse{
		Models:  []types.Model{{ID: "a.gguf"}, {ID: "b.gguf"}},
		Catalog: []types.ModelSpec{{Key: "gemma-3-1b-it"}},
	}}
	w := httptest.NewRecorder()
	NewMux(svc).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/models", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.Contains(ct, "application/json") {
		t.Fatalf("content-type=%s", ct)
	}
	var body types.ModelsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("json: %v", err)
	}
	if diff := cmp.Diff(svc.models, body); diff != "" {
		t.Fatalf("(-want +got):\n%s", diff)
	}
}

func TestStatusHandler(t *testing.T) {
	svc := &mockService{status: types.StatusResponse{Backend: "kv", State: "ready", CacheTokens: 42}}
	w := httptest.NewRecorder()
	NewMux(svc).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/status", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	var body types.StatusResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("json: %v", err)
	}
	if body.CacheTokens != 42 || body.State != "ready" {
		t.Fatalf("unexpected body: %+v", body)
	}
	if w.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatalf("missing nosniff header")
	}
}

func TestHealthAndReady(t *testing.T) {
	svc := &mockService{}
	mux := NewMux(svc)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if w.Code != http.StatusOK || w.Body.String() != "ok" {
		t.Fatalf("healthz status=%d body=%q", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if w.Code != http.StatusServiceUnavailable || !strings.Contains(w.Body.String(), "loading") {
		t.Fatalf("readyz status=%d body=%q", w.Code, w.Body.String())
	}

	svc.ready = true
	w = httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("readyz status=%d", w.Code)
	}
}

func TestChat_Blocking(t *testing.T) {
	svc := &mockService{reply: types.ChatResponse{
		Message: types.Message{Role: "assistant", Content: "Hi!"},
		Task:    "answer",
		Backend: "server",
	}}
	w := postJSON(t, NewMux(svc), "/v1/chat", `{"user":"Hello","task":"answer","max_tokens":16,"temperature":0,"overrides":{"top_k":20}}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	var got types.ChatResponse
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(svc.reply, got); diff != "" {
		t.Fatalf("(-want +got):\n%s", diff)
	}
	req := svc.lastChat
	if req.MaxTokens != 16 || req.Temperature == nil || *req.Temperature != 0 || req.Overrides["top_k"] != float64(20) {
		t.Fatalf("request not passed through: %+v", req)
	}
}

func TestChat_BadRequests(t *testing.T) {
	mux := NewMux(&mockService{})

	req := httptest.NewRequest(http.MethodPost, "/v1/chat", strings.NewReader(`{"user":"x"}`))
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	if w.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("missing content type: status=%d", w.Code)
	}

	if w := postJSON(t, mux, "/v1/chat", `{"user":`); w.Code != http.StatusBadRequest {
		t.Fatalf("invalid json: status=%d", w.Code)
	}
	w = postJSON(t, mux, "/v1/chat", `{"user":"   "}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("empty user: status=%d", w.Code)
	}
	var e types.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &e); err != nil || e.Code != http.StatusBadRequest || e.Error != "user is required" {
		t.Fatalf("error body=%s", w.Body.String())
	}
}

func TestChat_BodyLimit(t *testing.T) {
	SetMaxBodyBytes(16)
	defer SetMaxBodyBytes(0)
	w := postJSON(t, NewMux(&mockService{}), "/v1/chat", `{"user":"`+strings.Repeat("x", 64)+`"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status=%d", w.Code)
	}
}

func readNDJSON(t *testing.T, body []byte) []types.StreamChunk {
	t.Helper()
	var out []types.StreamChunk
	sc := bufio.NewScanner(bytes.NewReader(body))
	for sc.Scan() {
		var c types.StreamChunk
		if err := json.Unmarshal(sc.Bytes(), &c); err != nil {
			t.Fatalf("line %q: %v", sc.Text(), err)
		}
		out = append(out, c)
	}
	return out
}

func TestChat_Stream(t *testing.T) {
	svc := &mockService{tokens: []string{"Hel", "lo"}}
	w := postJSON(t, NewMux(svc), "/v1/chat", `{"user":"Hi","stream":true}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/x-ndjson" {
		t.Fatalf("content-type=%s", ct)
	}
	want := []types.StreamChunk{{Token: "Hel"}, {Token: "lo"}, {Done: true, Chunks: 2}}
	if diff := cmp.Diff(want, readNDJSON(t, w.Body.Bytes())); diff != "" {
		t.Fatalf("(-want +got):\n%s", diff)
	}
}

func TestChat_StreamErrorAfterTokens(t *testing.T) {
	svc := &mockService{tokens: []string{"a"}, streamErr: errors.New("connection reset")}
	w := postJSON(t, NewMux(svc), "/v1/chat", `{"user":"Hi","stream":true}`)
	if w.Code != http.StatusOK {
		t.Fatalf("headers were already sent, status=%d", w.Code)
	}
	want := []types.StreamChunk{{Token: "a"}, {Done: true, Chunks: 1, Error: "connection reset"}}
	if diff := cmp.Diff(want, readNDJSON(t, w.Body.Bytes())); diff != "" {
		t.Fatalf("(-want +got):\n%s", diff)
	}
}

func TestChat_StreamErrorBeforeTokens(t *testing.T) {
	svc := &mockService{chatErr: errUnavailable}
	w := postJSON(t, NewMux(svc), "/v1/chat", `{"user":"Hi","stream":true}`)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content-type=%s", ct)
	}
}

func TestChat_StreamWithDebugLogging(t *testing.T) {
	svc := &mockService{tokens: []string{"x"}}
	w := postJSON(t, NewMux(svc), "/v1/chat?log=debug", `{"user":"Hi","stream":true}`)
	if got := readNDJSON(t, w.Body.Bytes()); len(got) != 2 {
		t.Fatalf("chunks=%+v", got)
	}
}

func TestJSONEndpoint(t *testing.T) {
	svc := &mockService{jsonResp: types.JSONResponse{Data: json.RawMessage(`{"name":"Ann"}`), Backend: "server"}}
	w := postJSON(t, NewMux(svc), "/v1/json", `{"user":"x","task":"metadata_extraction","schema":{"type":"object"}}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"data":{"name":"Ann"}`) {
		t.Fatalf("body=%s", w.Body.String())
	}
	if svc.lastJSON.Schema["type"] != "object" || svc.lastJSON.Task != "metadata_extraction" {
		t.Fatalf("request=%+v", svc.lastJSON)
	}
}

func TestCORS(t *testing.T) {
	SetCORSOptions(true, []string{"http://localhost:3000"}, nil, nil)
	defer SetCORSOptions(false, nil, nil, nil)
	mux := NewMux(&mockService{ready: true})
	req := httptest.NewRequest(http.MethodOptions, "/v1/chat", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Content-Type")
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Fatalf("allow-origin=%q status=%d", got, w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "http://evil.example")
	w = httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("unexpected allow-origin %q", got)
	}
}

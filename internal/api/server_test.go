package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/corvid-labs/ragline/internal/exchange"
	"github.com/corvid-labs/ragline/internal/log"
)

type stubChatter struct {
	reply   string
	prompts []string
	models  []string
}

func (s *stubChatter) Chat(ctx context.Context, prompt, model string) string {
	s.prompts = append(s.prompts, prompt)
	s.models = append(s.models, model)
	return s.reply
}

type stubIngestor struct {
	result string
	err    error
}

func (s *stubIngestor) Ingest(ctx context.Context, document, source string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.result, nil
}

type stubExchanges struct {
	recent []exchange.Exchange
	err    error
}

func (s *stubExchanges) Recent(ctx context.Context, limit int) ([]exchange.Exchange, error) {
	if s.err != nil {
		return nil, s.err
	}
	if limit < len(s.recent) {
		return s.recent[:limit], nil
	}
	return s.recent, nil
}

func (s *stubExchanges) Count(ctx context.Context) (int64, error) {
	if s.err != nil {
		return 0, s.err
	}
	return int64(len(s.recent)), nil
}

func newTestServer(t *testing.T, chatter *stubChatter, ingestor *stubIngestor, exchanges *stubExchanges) *Server {
	t.Helper()

	if chatter == nil {
		chatter = &stubChatter{reply: "ok"}
	}
	if ingestor == nil {
		ingestor = &stubIngestor{result: "Successfully added 1 chunks"}
	}
	if exchanges == nil {
		exchanges = &stubExchanges{}
	}

	srv, err := NewServer(ServerConfig{
		Logger:    log.NewNop(),
		Chatter:   chatter,
		Ingestor:  ingestor,
		Exchanges: exchanges,
	})
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}
	return srv
}

func TestNewServer_RequiredDependencies(t *testing.T) {
	tests := []struct {
		name string
		cfg  ServerConfig
	}{
		{name: "missing chatter", cfg: ServerConfig{Ingestor: &stubIngestor{}, Exchanges: &stubExchanges{}}},
		{name: "missing ingestor", cfg: ServerConfig{Chatter: &stubChatter{}, Exchanges: &stubExchanges{}}},
		{name: "missing exchanges", cfg: ServerConfig{Chatter: &stubChatter{}, Ingestor: &stubIngestor{}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewServer(tt.cfg); err == nil {
				t.Error("NewServer() accepted incomplete config")
			}
		})
	}
}

func TestChatEndpoint(t *testing.T) {
	chatter := &stubChatter{reply: "Go has goroutines."}
	srv := newTestServer(t, chatter, nil, nil)

	body := strings.NewReader(`{"prompt": "Tell me about Go", "model": "gemma3:latest"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/chat", body)
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp chatResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Reply != "Go has goroutines." {
		t.Errorf("reply = %q", resp.Reply)
	}
	if chatter.prompts[0] != "Tell me about Go" || chatter.models[0] != "gemma3:latest" {
		t.Errorf("chatter received (%q, %q)", chatter.prompts[0], chatter.models[0])
	}
}

func TestChatEndpoint_BadRequests(t *testing.T) {
	srv := newTestServer(t, nil, nil, nil)

	tests := []struct {
		name string
		body string
	}{
		{name: "empty body", body: ""},
		{name: "malformed JSON", body: "{"},
		{name: "blank prompt", body: `{"prompt": "   "}`},
		{name: "unknown field", body: `{"prompt": "hi", "temperature": 2}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()

			srv.Handler().ServeHTTP(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestIngestEndpoint(t *testing.T) {
	srv := newTestServer(t, nil, &stubIngestor{result: "Successfully added 3 chunks"}, nil)

	body := strings.NewReader(`{"document": "some text", "source": "notes"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/documents", body)
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp ingestResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Result != "Successfully added 3 chunks" {
		t.Errorf("result = %q", resp.Result)
	}
}

func TestIngestEndpoint_Failure(t *testing.T) {
	srv := newTestServer(t, nil, &stubIngestor{err: errors.New("vector store down")}, nil)

	body := strings.NewReader(`{"document": "some text", "source": "notes"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/documents", body)
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", rec.Code)
	}

	var resp ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if !strings.Contains(resp.Message, "vector store down") {
		t.Errorf("error message %q missing the cause", resp.Message)
	}
}

func TestIngestEndpoint_MissingSource(t *testing.T) {
	srv := newTestServer(t, nil, nil, nil)

	body := strings.NewReader(`{"document": "some text"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/documents", body)
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestExchangesEndpoint(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	exchanges := &stubExchanges{recent: []exchange.Exchange{
		{ID: 1, Prompt: "q1", Response: "a1", CreatedAt: now},
		{ID: 2, Prompt: "q2", Response: "a2", CreatedAt: now},
	}}
	srv := newTestServer(t, nil, nil, exchanges)

	req := httptest.NewRequest(http.MethodGet, "/api/exchanges", nil)
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp exchangesResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Total != 2 || len(resp.Exchanges) != 2 {
		t.Errorf("got %d/%d exchanges", len(resp.Exchanges), resp.Total)
	}
	if resp.Exchanges[0].Prompt != "q1" {
		t.Errorf("first exchange = %+v", resp.Exchanges[0])
	}
}

func TestExchangesEndpoint_InvalidLimit(t *testing.T) {
	srv := newTestServer(t, nil, nil, nil)

	for _, raw := range []string{"0", "-3", "2000", "abc"} {
		req := httptest.NewRequest(http.MethodGet, "/api/exchanges?limit="+raw, nil)
		rec := httptest.NewRecorder()

		srv.Handler().ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("limit=%s: status = %d, want 400", raw, rec.Code)
		}
	}
}

func TestHealthProbes(t *testing.T) {
	srv := newTestServer(t, nil, nil, nil)

	for _, path := range []string{"/health", "/ready"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()

		srv.Handler().ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("%s: status = %d, want 200", path, rec.Code)
		}
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	logger := log.NewNop()
	panicky := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})
	handler := recoveryMiddleware(logger)(panicky)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestRateLimiter(t *testing.T) {
	rl := newRateLimiter(1, 3)

	allowed := 0
	for range 10 {
		if rl.allow("10.0.0.1") {
			allowed++
		}
	}
	if allowed != 3 {
		t.Errorf("allowed %d requests, want burst of 3", allowed)
	}

	// A different IP has its own bucket.
	if !rl.allow("10.0.0.2") {
		t.Error("fresh IP was rejected")
	}
}

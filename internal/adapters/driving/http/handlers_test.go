package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/custodia-labs/lowkey/docs"
	"github.com/custodia-labs/lowkey/internal/core/domain"
	"github.com/custodia-labs/lowkey/internal/core/ports/driving"
)

// Mock services for testing

type mockAuthService struct {
	issueTokenFn    func(ctx context.Context, req domain.TokenRequest) (*domain.TokenResponse, error)
	validateTokenFn func(ctx context.Context, token string) (*domain.AuthContext, error)
}

func (m *mockAuthService) IssueToken(ctx context.Context, req domain.TokenRequest) (*domain.TokenResponse, error) {
	if m.issueTokenFn != nil {
		return m.issueTokenFn(ctx, req)
	}
	return nil, errors.New("not implemented")
}

func (m *mockAuthService) ValidateToken(ctx context.Context, token string) (*domain.AuthContext, error) {
	if m.validateTokenFn != nil {
		return m.validateTokenFn(ctx, token)
	}
	return nil, domain.ErrTokenInvalid
}

// adminAuth accepts the token "admin-token" only
func adminAuth() *mockAuthService {
	return &mockAuthService{
		validateTokenFn: func(ctx context.Context, token string) (*domain.AuthContext, error) {
			if token == "admin-token" {
				return &domain.AuthContext{Subject: "admin", Role: domain.RoleAdmin, TokenID: "t1"}, nil
			}
			return nil, domain.ErrTokenInvalid
		},
	}
}

type mockChatService struct {
	streamFn func(ctx context.Context, req domain.ChatRequest, emit func(string) error) error
}

func (m *mockChatService) Stream(ctx context.Context, req domain.ChatRequest, emit func(string) error) error {
	return m.streamFn(ctx, req, emit)
}

type mockHarvestJobs struct {
	submitFn  func(ctx context.Context, city string) (*domain.Task, error)
	getTaskFn func(ctx context.Context, taskID string) (*domain.Task, error)
}

func (m *mockHarvestJobs) Submit(ctx context.Context, city string) (*domain.Task, error) {
	return m.submitFn(ctx, city)
}

func (m *mockHarvestJobs) GetTask(ctx context.Context, taskID string) (*domain.Task, error) {
	return m.getTaskFn(ctx, taskID)
}

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func newTestServer(auth *mockAuthService, chat *mockChatService, jobs *mockHarvestJobs, deps map[string]Pinger) *Server {
	if auth == nil {
		auth = &mockAuthService{}
	}
	var chatSvc driving.ChatService
	if chat != nil {
		chatSvc = chat
	}
	var jobsSvc driving.HarvestJobs
	if jobs != nil {
		jobsSvc = jobs
	}

	cfg := DefaultConfig()
	cfg.Version = "1.2.3"
	return NewServer(cfg, auth, chatSvc, jobsSvc, deps)
}

func do(t *testing.T, s *Server, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

var bearer = map[string]string{"Authorization": "Bearer admin-token"}

func TestHandleRoot(t *testing.T) {
	s := newTestServer(nil, nil, nil, nil)

	rec := do(t, s, "GET", "/", "", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{"status": "Backend is running", "brain": "Gemini"}, decodeBody(t, rec))

	// Only the exact root path
	rec = do(t, s, "GET", "/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleHealthAndVersion(t *testing.T) {
	s := newTestServer(nil, nil, nil, nil)

	rec := do(t, s, "GET", "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decodeBody(t, rec)["status"])

	rec = do(t, s, "GET", "/version", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1.2.3", decodeBody(t, rec)["version"])
}

func TestHandleReady(t *testing.T) {
	healthy := pingerFunc(func(ctx context.Context) error { return nil })
	broken := pingerFunc(func(ctx context.Context) error { return errors.New("connection refused") })

	s := newTestServer(nil, nil, nil, map[string]Pinger{"queue": healthy, "lock": nil})
	rec := do(t, s, "GET", "/ready", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ready", decodeBody(t, rec)["status"])

	s = newTestServer(nil, nil, nil, map[string]Pinger{"queue": healthy, "archive": broken})
	rec = do(t, s, "GET", "/ready", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "not ready", body["status"])
	assert.Equal(t, "connection refused", body["archive"])
	assert.NotContains(t, body, "queue")
}

func TestHandleSwaggerDoc(t *testing.T) {
	s := newTestServer(nil, nil, nil, nil)

	rec := do(t, s, "GET", "/swagger/doc.json", "", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "2.0", body["swagger"])
	paths := body["paths"].(map[string]any)
	assert.Contains(t, paths, "/api/v1/harvest")
	assert.Contains(t, paths, "/api/chat")
}

func TestHandleChat_Streams(t *testing.T) {
	var got domain.ChatRequest
	chat := &mockChatService{
		streamFn: func(ctx context.Context, req domain.ChatRequest, emit func(string) error) error {
			got = req
			for _, c := range []string{"Try ", "Onibus Coffee", "\n\n---\n📍 **Sources:**"} {
				if err := emit(c); err != nil {
					return err
				}
			}
			return nil
		},
	}
	s := newTestServer(nil, chat, nil, nil)

	body := `{"messages":[{"id":"1","role":"user","parts":[{"type":"text","text":"coffee in Tokyo?"}]}]}`
	rec := do(t, s, "POST", "/api/chat", body, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "Try Onibus Coffee\n\n---\n📍 **Sources:**", rec.Body.String())
	assert.True(t, rec.Flushed)

	require.Len(t, got.Messages, 1)
	assert.Equal(t, "coffee in Tokyo?", got.Messages[0].Text())
}

func TestHandleChat_BadBody(t *testing.T) {
	s := newTestServer(nil, &mockChatService{}, nil, nil)

	rec := do(t, s, "POST", "/api/chat", "{", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleChat_NotConfigured(t *testing.T) {
	s := newTestServer(nil, nil, nil, nil)

	rec := do(t, s, "POST", "/api/chat", `{"messages":[]}`, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandleIssueToken(t *testing.T) {
	expires := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	auth := &mockAuthService{
		issueTokenFn: func(ctx context.Context, req domain.TokenRequest) (*domain.TokenResponse, error) {
			switch req.Key {
			case "":
				return nil, domain.ErrInvalidInput
			case "right":
				return &domain.TokenResponse{Token: "jwt", ExpiresAt: expires}, nil
			case "disabled":
				return nil, domain.ErrUnauthorized
			case "boom":
				return nil, errors.New("signing failed")
			default:
				return nil, domain.ErrInvalidCredentials
			}
		},
	}
	s := newTestServer(auth, nil, nil, nil)

	tests := []struct {
		body string
		want int
	}{
		{`{"key":"right"}`, http.StatusOK},
		{`{"key":""}`, http.StatusBadRequest},
		{`{"key":"wrong"}`, http.StatusUnauthorized},
		{`{"key":"disabled"}`, http.StatusUnauthorized},
		{`{"key":"boom"}`, http.StatusInternalServerError},
		{`not json`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.body, func(t *testing.T) {
			rec := do(t, s, "POST", "/api/v1/auth/token", tt.body, nil)
			assert.Equal(t, tt.want, rec.Code)
		})
	}

	rec := do(t, s, "POST", "/api/v1/auth/token", `{"key":"right"}`, nil)
	assert.Equal(t, "jwt", decodeBody(t, rec)["token"])
}

func TestHandleSubmitHarvest(t *testing.T) {
	var submitted []string
	jobs := &mockHarvestJobs{
		submitFn: func(ctx context.Context, city string) (*domain.Task, error) {
			submitted = append(submitted, city)
			if city == "Atlantis" {
				return nil, fmt.Errorf("%q: %w", city, domain.ErrUnknownCity)
			}
			if city == "" {
				return domain.NewHarvestAllTask(), nil
			}
			return domain.NewHarvestCityTask(city), nil
		},
	}
	s := newTestServer(adminAuth(), nil, jobs, nil)

	rec := do(t, s, "POST", "/api/v1/harvest", `{"city":"Paris"}`, bearer)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "harvest_city", body["type"])
	assert.Equal(t, "pending", body["status"])

	// Empty body harvests everything
	rec = do(t, s, "POST", "/api/v1/harvest", "", bearer)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "harvest_all", decodeBody(t, rec)["type"])

	rec = do(t, s, "POST", "/api/v1/harvest", `{"city":"Atlantis"}`, bearer)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeBody(t, rec)["error"], "unknown city")

	rec = do(t, s, "POST", "/api/v1/harvest", `{"city":`, bearer)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.Equal(t, []string{"Paris", "", "Atlantis"}, submitted)
}

func TestHandleSubmitHarvest_RequiresAdmin(t *testing.T) {
	jobs := &mockHarvestJobs{
		submitFn: func(ctx context.Context, city string) (*domain.Task, error) {
			t.Fatal("submit must not be reached")
			return nil, nil
		},
	}
	s := newTestServer(adminAuth(), nil, jobs, nil)

	rec := do(t, s, "POST", "/api/v1/harvest", `{}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, s, "POST", "/api/v1/harvest", `{}`, map[string]string{"Authorization": "Bearer forged"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandleSubmitHarvest_Errors(t *testing.T) {
	s := newTestServer(adminAuth(), nil, nil, nil)
	rec := do(t, s, "POST", "/api/v1/harvest", `{}`, bearer)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	jobs := &mockHarvestJobs{
		submitFn: func(ctx context.Context, city string) (*domain.Task, error) {
			return nil, errors.New("redis down")
		},
	}
	s = newTestServer(adminAuth(), nil, jobs, nil)
	rec = do(t, s, "POST", "/api/v1/harvest", `{}`, bearer)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHandleGetHarvestTask(t *testing.T) {
	task := domain.NewHarvestCityTask("Rome")
	jobs := &mockHarvestJobs{
		getTaskFn: func(ctx context.Context, id string) (*domain.Task, error) {
			switch id {
			case task.ID:
				return task, nil
			case "broken":
				return nil, errors.New("boom")
			}
			return nil, domain.ErrNotFound
		},
	}
	s := newTestServer(adminAuth(), nil, jobs, nil)

	rec := do(t, s, "GET", "/api/v1/harvest/tasks/"+task.ID, "", bearer)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, task.ID, body["id"])
	assert.Equal(t, "Rome", body["payload"].(map[string]any)["city"])

	rec = do(t, s, "GET", "/api/v1/harvest/tasks/missing", "", bearer)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, s, "GET", "/api/v1/harvest/tasks/broken", "", bearer)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestCORSPreflightThroughServer(t *testing.T) {
	s := newTestServer(nil, nil, nil, nil)

	rec := do(t, s, "OPTIONS", "/api/chat", "", map[string]string{"Origin": "http://localhost:3000"})

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.True(t, strings.Contains(rec.Header().Get("Access-Control-Allow-Methods"), "POST"))
}

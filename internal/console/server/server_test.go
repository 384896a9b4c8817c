package server

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xela07ax/helpdesk-agent-core/internal/audit"
	"github.com/xela07ax/helpdesk-agent-core/internal/authz"
	"github.com/xela07ax/helpdesk-agent-core/internal/bus"
	"github.com/xela07ax/helpdesk-agent-core/internal/console/handler"
	"github.com/xela07ax/helpdesk-agent-core/internal/console/service"
	"github.com/xela07ax/helpdesk-agent-core/internal/contexts"
	"github.com/xela07ax/helpdesk-agent-core/internal/domain"
	"github.com/xela07ax/helpdesk-agent-core/internal/infra"
	"github.com/xela07ax/helpdesk-agent-core/internal/infra/auth"
	"github.com/xela07ax/helpdesk-agent-core/internal/registry"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type testEnv struct {
	srv    *ConsoleServer
	engine *authz.Engine
	reg    *registry.Registry
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := zap.NewNop()
	metrics := infra.NewMetrics(nil)

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	hash, err := bcrypt.GenerateFromPassword([]byte("operator-pass"), bcrypt.MinCost)
	require.NoError(t, err)

	trail := audit.NewTrail(nil)
	engine := authz.New(trail, metrics, logger)
	reg := registry.New(logger, nil)
	messageBus := bus.New(16, time.Second, metrics, logger)
	store := contexts.NewStore(nil, metrics, logger)

	authService := service.NewAuthService(
		[]infra.OperatorConfig{{Username: "op", PasswordHash: string(hash), Scopes: []string{"admin"}}},
		auth.NewBaseValidator(&key.PublicKey),
		key,
		time.Hour,
	)
	kernelService := service.NewKernelService(reg, engine, messageBus, store, trail, logger)

	srv := NewConsoleServer(
		&infra.Config{},
		logger,
		authService,
		handler.NewAuthHandler(authService),
		handler.NewAgentHandler(kernelService),
		handler.NewPolicyHandler(kernelService),
		handler.NewApprovalHandler(kernelService),
		handler.NewDashboardHandler(kernelService),
		handler.NewAuditHandler(kernelService),
		handler.NewContextHandler(kernelService),
	)
	return &testEnv{srv: srv, engine: engine, reg: reg}
}

func (env *testEnv) login(t *testing.T) string {
	t.Helper()
	body, _ := json.Marshal(domain.LoginRequest{Username: "op", Password: "operator-pass"})
	rec := httptest.NewRecorder()
	env.srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth/token", bytes.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp domain.TokenResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.NotEmpty(t, resp.AccessToken)
	return resp.AccessToken
}

func (env *testEnv) do(t *testing.T, method, path, token string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	env.srv.ServeHTTP(rec, req)
	return rec
}

func TestHealthIsPublic(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	env := newTestEnv(t)

	body, _ := json.Marshal(domain.LoginRequest{Username: "op", Password: "wrong"})
	rec := env.do(t, http.MethodPost, "/auth/token", "", body)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/v1/agents", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodGet, "/v1/agents", "garbage-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAgentListAndStatus(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t)
	id := env.reg.Register(domain.Agent{Name: "triage", Role: "analyst"})

	rec := env.do(t, http.MethodGet, "/v1/agents", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var agents []domain.Agent
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&agents))
	require.Len(t, agents, 1)
	assert.Equal(t, "triage", agents[0].Name)

	body, _ := json.Marshal(map[string]string{"status": domain.AgentStatusBusy})
	rec = env.do(t, http.MethodPost, "/v1/agents/"+id+"/status", token, body)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	agent, _ := env.reg.Get(id)
	assert.Equal(t, domain.AgentStatusBusy, agent.Status)

	rec = env.do(t, http.MethodPost, "/v1/agents/ghost/status", token, body)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestApprovalDecisionFlow(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t)

	decided := make(chan bool, 1)
	id := env.engine.RequestApproval("agent-1", "analyst", domain.ActionAutonomous, nil,
		func(approved bool) { decided <- approved })

	rec := env.do(t, http.MethodGet, "/v1/approvals", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var pending []domain.PendingApproval
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&pending))
	require.Len(t, pending, 1)

	body, _ := json.Marshal(map[string]interface{}{"approved": true})
	rec = env.do(t, http.MethodPost, "/v1/approvals/"+id+"/decide", token, body)
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.True(t, <-decided)

	// Повторное решение по тому же ID — конфликт
	rec = env.do(t, http.MethodPost, "/v1/approvals/"+id+"/decide", token, body)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestPolicyCreateAndActivate(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t)

	body, _ := json.Marshal(map[string]interface{}{
		"name": "lockdown",
		"rules": []map[string]interface{}{
			{"role": "admin", "kind": "query", "level": "admin", "requires_approval": false},
		},
	})
	rec := env.do(t, http.MethodPost, "/v1/policies", token, body)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&created))
	require.NotEmpty(t, created["id"])

	rec = env.do(t, http.MethodPost, "/v1/policies/"+created["id"]+"/activate", token, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, created["id"], env.engine.ActivePolicyID())

	// Неизвестный вид действия отклоняется на входе
	bad, _ := json.Marshal(map[string]interface{}{
		"name":  "broken",
		"rules": []map[string]interface{}{{"role": "x", "kind": "fly", "level": "read"}},
	})
	rec = env.do(t, http.MethodPost, "/v1/policies", token, bad)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDashboardStats(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t)
	env.reg.Register(domain.Agent{Name: "a"})

	rec := env.do(t, http.MethodGet, "/api/v1/dashboard/stats", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var stats domain.KernelStats
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&stats))
	assert.Equal(t, 1, stats.Agents.Total)
}

func TestAuditEndpoint(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t)

	env.engine.CheckPermission("agent-1", "admin", domain.ActionQuery, domain.PermissionRead)

	rec := env.do(t, http.MethodGet, "/v1/audit?agent_id=agent-1", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var entries []domain.AuditEntry
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&entries))
	require.Len(t, entries, 1)
	assert.True(t, entries[0].Approved)

	rec = env.do(t, http.MethodGet, "/v1/audit?limit=abc", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestContextsEndpointRequiresOwner(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t)

	rec := env.do(t, http.MethodGet, "/v1/contexts", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, "/v1/contexts?owner=agent-1", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var records []domain.Context
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&records))
	assert.Empty(t, records)
}

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Priya8975/crm-automation-dispatch/internal/domain"
	"github.com/Priya8975/crm-automation-dispatch/internal/guard"
	"github.com/Priya8975/crm-automation-dispatch/internal/worker"
)

type memoryConfigs struct {
	mu     sync.Mutex
	values map[string]any
	err    error
}

func (m *memoryConfigs) GetConfig(ctx context.Context, code string) (*domain.Config, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	v, ok := m.values[code]
	if !ok {
		return nil, nil
	}
	return &domain.Config{Code: code, Value: v}, nil
}

func (m *memoryConfigs) SetConfig(ctx context.Context, code string, value any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.values == nil {
		m.values = map[string]any{}
	}
	m.values[code] = value
	return nil
}

type recordingJobs struct {
	jobs []worker.Job
	err  error
}

func (r *recordingJobs) Submit(ctx context.Context, job worker.Job) error {
	if r.err != nil {
		return r.err
	}
	r.jobs = append(r.jobs, job)
	return nil
}

type denyAll struct{}

func (denyAll) Allow(ctx context.Context, userID string) bool { return false }

type stubPinger struct{ err error }

func (p stubPinger) Ping(ctx context.Context) error { return p.err }

type stubCircuits struct{}

func (stubCircuits) State(ctx context.Context, integration string) guard.Circuit {
	if integration == domain.IntegrationN8N {
		return guard.Circuit{State: guard.StateOpen, Failures: 5}
	}
	return guard.Circuit{State: guard.StateClosed}
}

func setupTestRouter(t *testing.T, deps Deps) http.Handler {
	t.Helper()
	if deps.Configs == nil {
		deps.Configs = &memoryConfigs{}
	}
	if deps.Jobs == nil {
		deps.Jobs = &recordingJobs{}
	}
	deps.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	return NewRouter(deps)
}

func doRequest(h http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, reader)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

var (
	memberHeaders = map[string]string{HeaderUserID: "user-1", HeaderSessionCode: "sess-1", HeaderUserRole: "member"}
	adminHeaders  = map[string]string{HeaderUserID: "admin-1", HeaderUserRole: domain.RoleAdmin}
)

const dealStageChange = `{
	"type": "deal",
	"action": "update",
	"object": {"_id": "d1", "stageId": "s1"},
	"updatedDocument": {"_id": "d1", "stageId": "s2"}
}`

func TestPing(t *testing.T) {
	rec := doRequest(setupTestRouter(t, Deps{}), http.MethodGet, "/ping", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCreateEvent_QueuesRelevantChange(t *testing.T) {
	jobs := &recordingJobs{}
	h := setupTestRouter(t, Deps{Jobs: jobs})

	rec := doRequest(h, http.MethodPost, "/api/v1/automation/events", dealStageChange, memberHeaders)

	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	var resp EventResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Queued)
	assert.Equal(t, domain.KindChangeDeal, resp.Kind)

	require.Len(t, jobs.jobs, 1)
	job := jobs.jobs[0]
	assert.Equal(t, "s2", job.Decision.Body["destinationStageId"])
	assert.Equal(t, "user-1", job.User.ID)
	assert.Equal(t, "sess-1", job.User.SessionCode)
}

func TestCreateEvent_IrrelevantChange(t *testing.T) {
	jobs := &recordingJobs{}
	h := setupTestRouter(t, Deps{Jobs: jobs})

	rec := doRequest(h, http.MethodPost, "/api/v1/automation/events",
		`{"type":"ticket","action":"update","object":{}}`, memberHeaders)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"queued":false}`, rec.Body.String())
	assert.Empty(t, jobs.jobs)
}

func TestCreateEvent_Errors(t *testing.T) {
	tests := []struct {
		name    string
		deps    Deps
		body    string
		headers map[string]string
		want    int
	}{
		{"anonymous", Deps{}, dealStageChange, nil, http.StatusUnauthorized},
		{"invalid body", Deps{}, "{not json", memberHeaders, http.StatusBadRequest},
		{"queue full", Deps{Jobs: &recordingJobs{err: context.DeadlineExceeded}}, dealStageChange, memberHeaders, http.StatusServiceUnavailable},
		{"pool stopped", Deps{Jobs: &recordingJobs{err: worker.ErrPoolStopped}}, dealStageChange, memberHeaders, http.StatusServiceUnavailable},
		{"rate limited", Deps{Limiter: denyAll{}}, dealStageChange, memberHeaders, http.StatusTooManyRequests},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := setupTestRouter(t, tt.deps)
			rec := doRequest(h, http.MethodPost, "/api/v1/automation/events", tt.body, tt.headers)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
}

func TestConfigs_AdminOnly(t *testing.T) {
	h := setupTestRouter(t, Deps{})

	rec := doRequest(h, http.MethodGet, "/api/v1/configs/API_KEY", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doRequest(h, http.MethodGet, "/api/v1/configs/API_KEY", "", memberHeaders)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	owner := map[string]string{HeaderUserID: "owner-1", HeaderUserOwner: "true"}
	rec = doRequest(h, http.MethodGet, "/api/v1/configs/API_KEY", "", owner)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestConfigs_MemberCannotWrite(t *testing.T) {
	configs := &memoryConfigs{}
	h := setupTestRouter(t, Deps{Configs: configs})

	rec := doRequest(h, http.MethodPut, "/api/v1/configs/API_KEY", `{"value":"k"}`, memberHeaders)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.JSONEq(t, `{"error":"Permission required"}`, rec.Body.String())
	assert.Empty(t, configs.values)
}

func TestConfigs_SetThenGet(t *testing.T) {
	configs := &memoryConfigs{}
	h := setupTestRouter(t, Deps{Configs: configs})

	rec := doRequest(h, http.MethodPut, "/api/v1/configs/API_TOKENS", `{"value":{"n8n":"t1"}}`, adminHeaders)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doRequest(h, http.MethodGet, "/api/v1/configs/API_TOKENS", "", adminHeaders)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"code":"API_TOKENS","value":{"n8n":"t1"}}`, rec.Body.String())
}

func TestConfigs_StoreError(t *testing.T) {
	h := setupTestRouter(t, Deps{Configs: &memoryConfigs{err: errors.New("mongo down")}})

	rec := doRequest(h, http.MethodGet, "/api/v1/configs/API_KEY", "", adminHeaders)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHealth(t *testing.T) {
	h := setupTestRouter(t, Deps{
		Checks:   map[string]Pinger{"store": stubPinger{}},
		Circuits: stubCircuits{},
	})

	rec := doRequest(h, http.MethodGet, "/api/v1/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, "ok", resp.Checks["store"])
	assert.Equal(t, guard.StateOpen, resp.Circuits[domain.IntegrationN8N].State)
	assert.Equal(t, guard.StateClosed, resp.Circuits[domain.IntegrationExa].State)
}

func TestHealth_Degraded(t *testing.T) {
	h := setupTestRouter(t, Deps{
		Checks: map[string]Pinger{"redis": stubPinger{err: errors.New("connection refused")}},
	})

	rec := doRequest(h, http.MethodGet, "/api/v1/health", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "connection refused")
}

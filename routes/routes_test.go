package routes

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"clinic-crm-backend/config"
	"clinic-crm-backend/controllers"
	"clinic-crm-backend/metrics"
	"clinic-crm-backend/storage"
	"clinic-crm-backend/testutil"
	"clinic-crm-backend/utils"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	utils.PasswordCost = 4
	os.Exit(m.Run())
}

type testServer struct {
	t      *testing.T
	router *gin.Engine
	token  string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	cfg := &config.Config{
		Mode:               gin.TestMode,
		JWTSecret:          "test-secret",
		JWTExpiryHours:     1,
		DefaultPhoneRegion: "AE",
		Timezone:           "UTC",
		AllowedOrigins:     []string{"http://localhost:3000"},
	}
	logger := zap.NewNop()
	m := metrics.New()
	h := controllers.NewHandler(cfg, logger, m, testutil.SetupTestDB(t), nil, storage.NewMemoryStore())
	return &testServer{t: t, router: SetupRouter(h, cfg, logger, m)}
}

func (s *testServer) do(method, path string, body any) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func (s *testServer) register() {
	s.t.Helper()
	w := s.do(http.MethodPost, "/auth/register", map[string]any{
		"email":      "owner@example.com",
		"phone":      "+971509998877",
		"name":       "Owner",
		"password":   "correct-horse",
		"clinicName": "Palm Clinic",
	})
	require.Equal(s.t, http.StatusCreated, w.Code, w.Body.String())
	s.token = decode[struct {
		Token string `json:"token"`
	}](s.t, w).Token
	require.NotEmpty(s.t, s.token)
}

type leadBody struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	Version int    `json:"version"`
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	w = s.do(http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "http_requests_total")
}

func TestAPIRequiresToken(t *testing.T) {
	s := newTestServer(t)
	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/api/leads", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/auth/me", nil).Code)

	s.register()
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/auth/me", nil).Code)

	w := s.do(http.MethodPost, "/auth/login", map[string]any{"identifier": "owner@example.com", "password": "nope-nope"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLeadLifecycle(t *testing.T) {
	s := newTestServer(t)
	s.register()

	w := s.do(http.MethodPost, "/api/leads", map[string]any{
		"leadSource": "Instagram",
		"contact": map[string]any{
			"fullName":    "Huda Saeed",
			"phoneNumber": "050 123 4567",
			"email":       "huda@example.com",
		},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	lead := decode[leadBody](t, w)
	assert.Equal(t, "Fresh", lead.Status)

	// The same phone in another format is still a duplicate.
	w = s.do(http.MethodPost, "/api/leads", map[string]any{
		"leadSource": "Walk-in",
		"contact":    map[string]any{"fullName": "Someone Else", "phoneNumber": "+971501234567"},
	})
	assert.Equal(t, http.StatusConflict, w.Code, w.Body.String())

	w = s.do(http.MethodPut, "/api/leads/"+lead.ID, map[string]any{
		"status":        "Converted",
		"assignedAgent": "Owner",
		"date":          time.Now().UTC().Format(time.RFC3339),
		"version":       lead.Version,
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code, w.Body.String())

	w = s.do(http.MethodPost, "/api/leads/"+lead.ID+"/convert", map[string]any{
		"department": "Dermatology",
		"visitDate":  time.Now().Add(72 * time.Hour).UTC().Format(time.RFC3339),
		"version":    lead.Version,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	converted := decode[struct {
		CustomerID string `json:"customerId"`
	}](t, w)

	w = s.do(http.MethodGet, "/api/customers", nil)
	require.Equal(t, http.StatusOK, w.Code)
	customers := decode[struct {
		Total int `json:"total"`
	}](t, w)
	assert.Equal(t, 1, customers.Total)

	w = s.do(http.MethodPost, "/api/customers/"+converted.CustomerID+"/no-show", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	reconciled := decode[struct {
		Success bool   `json:"success"`
		LeadID  string `json:"leadId"`
	}](t, w)
	assert.True(t, reconciled.Success)

	w = s.do(http.MethodGet, "/api/leads?status=Re-follow", nil)
	require.Equal(t, http.StatusOK, w.Code)
	refollow := decode[struct {
		Data  []leadBody `json:"data"`
		Total int        `json:"total"`
	}](t, w)
	require.Equal(t, 1, refollow.Total)
	assert.Equal(t, reconciled.LeadID, refollow.Data[0].ID)

	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/api/customers/"+converted.CustomerID, nil).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodGet, "/api/leads/not-a-uuid", nil).Code)
}

func TestExportLeads(t *testing.T) {
	s := newTestServer(t)
	s.register()

	w := s.do(http.MethodGet, "/api/leads/export", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "leads-")
}

func TestCreateBranchReissuesToken(t *testing.T) {
	s := newTestServer(t)
	s.register()
	oldToken := s.token

	w := s.do(http.MethodPost, "/api/branches", map[string]any{"name": "Annex", "timezone": "Asia/Dubai"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[struct {
		Branch struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"branch"`
		Token string `json:"token"`
	}](t, w)
	assert.Equal(t, "Annex", created.Branch.Name)
	require.NotEmpty(t, created.Token)

	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/api/branches/"+created.Branch.ID, nil).Code)

	s.token = created.Token
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/branches/"+created.Branch.ID, nil).Code)
	branches := decode[[]struct {
		Name string `json:"name"`
	}](t, s.do(http.MethodGet, "/api/branches", nil))
	assert.Len(t, branches, 2)

	s.token = oldToken
	assert.Len(t, decode[[]struct {
		Name string `json:"name"`
	}](t, s.do(http.MethodGet, "/api/branches", nil)), 1)
}

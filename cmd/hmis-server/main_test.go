package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/DBEST-EZRA/HMIS/internal/config"
	"github.com/DBEST-EZRA/HMIS/internal/platform/auth"
	"github.com/DBEST-EZRA/HMIS/internal/platform/db"
	"github.com/DBEST-EZRA/HMIS/internal/platform/filter"
	"github.com/DBEST-EZRA/HMIS/internal/platform/store"
)

func testConfig() *config.Config {
	return &config.Config{
		Port:            "0",
		Env:             "test",
		StoreBackend:    config.BackendMemory,
		AuthIssuer:      "hmis-test",
		AuthSigningKey:  strings.Repeat("k", 32),
		SessionTTL:      time.Hour,
		CORSOrigins:     []string{"http://localhost:3000"},
		RateLimitRPS:    1000,
		RateLimitBurst:  1000,
		BodyLimit:       "1M",
		PageSize:        10,
		DefaultPassword: "12345678",
	}
}

func testBackend() (*backend, *store.MemoryStore) {
	mem := store.NewMemoryStore()
	return &backend{store: store.Validated(mem, store.Schemas), probe: mem, close: func() {}}, mem
}

func do(e http.Handler, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func signIn(t *testing.T, e http.Handler, email, password string) auth.Session {
	t.Helper()
	rec := do(e, http.MethodPost, "/api/v1/auth/signin", "", map[string]string{"email": email, "password": password})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var sess auth.Session
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sess))
	return sess
}

func TestServer_Health(t *testing.T) {
	be, _ := testBackend()
	e := newServer(testConfig(), be, zerolog.Nop())

	rec := do(e, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec = do(e, http.MethodGet, "/health/db", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"backend":"memory"`)
}

func TestServer_SignInAndList(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	be, mem := testBackend()
	e := newServer(cfg, be, zerolog.Nop())

	_, err := newIdentity(cfg, be.store, zerolog.Nop()).CreateAccount(ctx, auth.NewAccount{
		Email: "desk@hospital.test", Name: "Desk", Role: "Receptionist", Password: "correct-horse",
	})
	require.NoError(t, err)
	mem.Seed(store.Patients, store.Record{
		ID:        "p1",
		CreatedAt: store.FormatTime(time.Now()),
		Fields:    store.F("fullName", "Jane Wanjiru", "idNumber", "12345678"),
	})

	sess := signIn(t, e, "desk@hospital.test", "correct-horse")
	assert.Equal(t, auth.DashboardReception, sess.Dashboard)
	require.NotEmpty(t, sess.Token)

	rec := do(e, http.MethodGet, "/api/v1/patients", sess.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var page struct {
		Total int `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Equal(t, 1, page.Total)

	rec = do(e, http.MethodGet, "/api/v1/billing/bills", sess.Token, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code, "reception cannot open the accounts dashboard")
}

func TestServer_RejectsMissingToken(t *testing.T) {
	be, _ := testBackend()
	e := newServer(testConfig(), be, zerolog.Nop())

	rec := do(e, http.MethodGet, "/api/v1/patients", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(e, http.MethodPost, "/api/v1/auth/signin", "", map[string]string{"email": "nobody@hospital.test", "password": "whatever1"})
	assert.NotEqual(t, http.StatusOK, rec.Code)
}

func TestServer_DevModeRunsAsAdmin(t *testing.T) {
	cfg := testConfig()
	cfg.Env = "development"
	be, _ := testBackend()
	e := newServer(cfg, be, zerolog.Nop())

	rec := do(e, http.MethodGet, "/api/v1/auth/session", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"role":"admin"`)
}

func TestExportCollection(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()
	mem.Seed(store.Patients, store.Record{ID: "p1", CreatedAt: "2025-03-01T08:00:00.000Z", Fields: store.F("fullName", "Jane")})
	mem.Seed(store.Patients, store.Record{ID: "p2", CreatedAt: "2025-04-01T08:00:00.000Z", Fields: store.F("fullName", "John")})

	out := filepath.Join(t.TempDir(), "patients.xlsx")
	n, path, err := exportCollection(ctx, mem, store.Patients, filter.Spec{Month: "03"}, out, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, out, path)

	f, err := excelize.OpenFile(out)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(store.Patients)
	require.NoError(t, err)
	assert.Len(t, rows, 2, "header plus one record")

	_, _, err = exportCollection(ctx, mem, store.Patients, filter.Spec{Year: "1999"}, out, time.Now())
	assert.Error(t, err, "nothing to export")

	_, _, err = exportCollection(ctx, mem, store.Patients, filter.Spec{Month: "13"}, out, time.Now())
	assert.Error(t, err)
}

func TestPrintStatuses(t *testing.T) {
	at := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	var buf bytes.Buffer
	printStatuses(&buf, []db.MigrationStatus{
		{Version: 1, Name: "records", Applied: true, AppliedAt: &at},
		{Version: 2, Name: "audit_log"},
	})
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[0], "VERSION"))
	assert.Contains(t, lines[2], "applied")
	assert.Contains(t, lines[2], "2025-03-01 08:00:00")
	assert.Contains(t, lines[3], "pending")
}

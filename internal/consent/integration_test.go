package consent_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"consentlake/internal/consent/handler"
	"consentlake/internal/consent/models"
	"consentlake/internal/consent/service"
	"consentlake/internal/consent/store"
)

func newRouter() chi.Router {
	r := chi.NewRouter()
	handler.New(service.NewService(store.New(), nil), nil).Register(r)
	return r
}

func call(t *testing.T, r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	req.RemoteAddr = "203.0.113.77:40000"
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestConsentFlowOverHTTP(t *testing.T) {
	r := newRouter()

	rec := call(t, r, http.MethodGet, "/v1/consent/u1/check/ai_training", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"user_id":"u1","purpose":"ai_training","allowed":false}`, rec.Body.String())

	rec = call(t, r, http.MethodPut, "/v1/consent/u1", `{"consent_ai_training":true,"consent_analytics":true}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var stored models.UserConsent
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stored))
	assert.Equal(t, "203.0.113.0", stored.IPAddress, "addresses are stored truncated")
	assert.Contains(t, stored.UserAgent, "Chrome")

	rec = call(t, r, http.MethodGet, "/v1/consent/u1/check/consent_ai_training", "")
	assert.Contains(t, rec.Body.String(), `"allowed":true`)

	rec = call(t, r, http.MethodPost, "/v1/consent/u1/revoke", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = call(t, r, http.MethodGet, "/v1/consent/u1/check/analytics", "")
	assert.Contains(t, rec.Body.String(), `"allowed":false`)

	rec = call(t, r, http.MethodGet, "/v1/consent/u1/audit", "")
	var audit handler.AuditResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &audit))
	assert.Equal(t, 2, audit.Count)

	rec = call(t, r, http.MethodGet, "/v1/consent/report", "")
	var report models.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, 1, report.TotalUsers)
	assert.Zero(t, report.AITrainingConsent)
}

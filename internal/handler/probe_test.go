package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sistemaspreventiva/Pagina-radicacionFacturas/internal/auth"
	"github.com/sistemaspreventiva/Pagina-radicacionFacturas/internal/mailer"
	appmw "github.com/sistemaspreventiva/Pagina-radicacionFacturas/internal/middleware"
	"github.com/sistemaspreventiva/Pagina-radicacionFacturas/internal/model"
	"github.com/sistemaspreventiva/Pagina-radicacionFacturas/internal/submission"
)

type fakePinger struct{ err error }

func (f fakePinger) PingContext(ctx context.Context) error { return f.err }

func TestHealth(t *testing.T) {
	rr := httptest.NewRecorder()
	Health(fakePinger{})(rr, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, true, body["ok"])
	_, err := time.Parse(time.RFC3339, body["ts"].(string))
	assert.NoError(t, err)

	rr = httptest.NewRecorder()
	Health(fakePinger{err: errors.New("down")})(rr, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

type fakeProbe struct {
	err      error
	deadline time.Time
}

func (f *fakeProbe) Verify(ctx context.Context) error {
	f.deadline, _ = ctx.Deadline()
	return f.err
}

func (f *fakeProbe) Address() string { return "smtp.example.org:587" }

func TestDiagSMTP(t *testing.T) {
	probe := &fakeProbe{}
	h := NewDiagHandler(discardLogger(), probe, "smtp")

	rr := httptest.NewRecorder()
	h.SMTP(rr, httptest.NewRequest(http.MethodGet, "/api/diag/smtp", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"ok":true,"transport":"smtp","smtp":{"reachable":true,"address":"smtp.example.org:587"}}`, rr.Body.String())
	assert.WithinDuration(t, time.Now().Add(ProbeTimeout), probe.deadline, time.Second)

	probe.err = &mailer.Error{Message: "No se pudo conectar", Code: mailer.CodeConnection}
	rr = httptest.NewRecorder()
	h.SMTP(rr, httptest.NewRequest(http.MethodGet, "/api/diag/smtp", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"ok":true,"transport":"smtp","smtp":{"reachable":false,"address":"smtp.example.org:587","error":"No se pudo conectar","code":"ECONNECTION"}}`, rr.Body.String())
}

func TestWindowHandler(t *testing.T) {
	h := NewWindowHandler(discardLogger(), submission.Window{From: 1, To: 10, Location: time.UTC})
	h.now = func() time.Time { return time.Date(2026, 3, 5, 12, 0, 0, 0, time.UTC) }

	req := httptest.NewRequest(http.MethodGet, "/api/radicaciones/window", nil)
	req = req.WithContext(appmw.WithClaims(req.Context(), &auth.Claims{UserID: "u1", Role: model.RoleAsistencial, DNI: "12345678"}))
	rr := httptest.NewRecorder()
	h.Get(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, true, body["open"])
	assert.Equal(t, "DS0326-12345678", body["consecutivo"])
	assert.Equal(t, "2026-03-05", body["today"])

	rr = httptest.NewRecorder()
	h.Get(rr, httptest.NewRequest(http.MethodGet, "/api/radicaciones/window", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

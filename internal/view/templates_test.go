package view

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-school/odyssey-school/internal/access"
)

func TestNewEngine(t *testing.T) {
	engine, err := NewEngine()
	assert.NoError(t, err, "Templates should parse without error")
	assert.NotNil(t, engine)
}

func TestRenderDashboardShowsClaim(t *testing.T) {
	engine, err := NewEngine()
	require.NoError(t, err)

	claim := access.SessionClaim{UserID: "7", Role: access.RoleTeacher, ExpiresAt: time.Date(2026, 1, 2, 3, 4, 0, 0, time.UTC)}
	rr := httptest.NewRecorder()
	err = engine.Render(rr, http.StatusOK, "pages/dashboard.html", TemplateData{Title: "Teacher dashboard", Claim: &claim})
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "text/html; charset=utf-8", rr.Header().Get("Content-Type"))
	assert.Contains(t, rr.Body.String(), "Signed in as user 7 (TEACHER)")
	assert.Contains(t, rr.Body.String(), "02 Jan 2026 03:04")
}

func TestRenderSignInEscapesInput(t *testing.T) {
	engine, err := NewEngine()
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	err = engine.Render(rr, http.StatusBadRequest, "pages/sign-in.html", TemplateData{Title: "Sign in", Email: `"><script>`, Error: "Invalid email or password"})
	require.NoError(t, err)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.NotContains(t, rr.Body.String(), "<script>")
	assert.Contains(t, rr.Body.String(), "Invalid email or password")
}

func TestRenderUnknownTemplateFailsBeforeWriting(t *testing.T) {
	engine, err := NewEngine()
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	err = engine.Render(rr, http.StatusOK, "pages/missing.html", TemplateData{})
	require.Error(t, err)
	assert.Empty(t, rr.Body.String())
}

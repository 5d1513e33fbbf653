package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-school/odyssey-school/internal/access"
	"github.com/odyssey-school/odyssey-school/internal/audit"
	"github.com/odyssey-school/odyssey-school/internal/shared"
	"github.com/odyssey-school/odyssey-school/internal/view"
)

type handlerFixture struct {
	router http.Handler
	store  *audit.MemoryStore
	logger *audit.Logger
	issuer *Issuer
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()
	issuer, verifier := tokenPair(t, nil)
	templates, err := view.NewEngine()
	require.NoError(t, err)
	store := audit.NewMemoryStore()
	auditLogger, err := audit.NewLogger(store, audit.Options{Timeout: time.Second})
	require.NoError(t, err)

	h := NewHandler(nil, NewService(schoolUsers(t), issuer), shared.NewSessionCookies("session", time.Hour, false), verifier, auditLogger, templates)
	r := chi.NewRouter()
	h.MountRoutes(r)
	return &handlerFixture{router: r, store: store, logger: auditLogger, issuer: issuer}
}

func (f *handlerFixture) do(req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	f.logger.Wait()
	return rr
}

func jsonSignIn(body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/sign-in", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func formSignIn(email, password string) *http.Request {
	form := url.Values{"email": {email}, "password": {password}}
	req := httptest.NewRequest(http.MethodPost, "/sign-in", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func sessionCookie(t *testing.T, rr *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rr.Result().Cookies() {
		if c.Name == "session" {
			return c
		}
	}
	t.Fatal("session cookie not set")
	return nil
}

func TestShowSignIn(t *testing.T) {
	f := newHandlerFixture(t)

	rr := f.do(httptest.NewRequest(http.MethodGet, "/sign-in", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `action="/sign-in"`)
	assert.Empty(t, f.store.Entries())
}

func TestJSONSignInRecordsLogin(t *testing.T) {
	f := newHandlerFixture(t)

	rr := f.do(jsonSignIn(`{"email":"admin@odyssey.local","password":"admin12345"}`))
	require.Equal(t, http.StatusOK, rr.Code)

	var body signInResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "1", body.UserID)
	assert.Equal(t, "ADMIN", body.Role)
	assert.Equal(t, "/admin/dashboard", body.Home)

	cookie := sessionCookie(t, rr)
	assert.True(t, cookie.HttpOnly)
	assert.NotEmpty(t, cookie.Value)

	entries := f.store.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, audit.EventLogin, entries[0].EventType)
	assert.Equal(t, "1", entries[0].UserID)
	assert.Equal(t, "/sign-in", entries[0].RouteID)
}

func TestFormSignInRedirectsHome(t *testing.T) {
	f := newHandlerFixture(t)

	rr := f.do(formSignIn("teacher@odyssey.local", "teacher12345"))
	require.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/teacher/dashboard", rr.Header().Get("Location"))
	sessionCookie(t, rr)
}

func TestSignInFailureRecordsDenial(t *testing.T) {
	f := newHandlerFixture(t)

	rr := f.do(jsonSignIn(`{"email":"admin@odyssey.local","password":"not-the-password"}`))
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.JSONEq(t, `{"error":"Invalid email or password"}`, rr.Body.String())
	assert.Empty(t, rr.Result().Cookies())

	entries := f.store.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, audit.EventAccessDenied, entries[0].EventType)
	assert.Equal(t, audit.AnonymousUser, entries[0].UserID)
}

func TestFormSignInFailureRerendersForm(t *testing.T) {
	f := newHandlerFixture(t)

	rr := f.do(formSignIn("admin@odyssey.local", "not-the-password"))
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "Invalid email or password")
	assert.Contains(t, rr.Body.String(), `value="admin@odyssey.local"`)
}

func TestSignInValidation(t *testing.T) {
	f := newHandlerFixture(t)

	rr := f.do(jsonSignIn(`{"email":"not-an-email","password":"admin12345"}`))
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.JSONEq(t, `{"error":"Email is invalid"}`, rr.Body.String())

	rr = f.do(jsonSignIn(`{"email":"admin@odyssey.local","password":"x","extra":1}`))
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.JSONEq(t, `{"error":"Bad Request"}`, rr.Body.String())

	assert.Empty(t, f.store.Entries())
}

func TestSignOutRecordsLogout(t *testing.T) {
	f := newHandlerFixture(t)
	token, _, err := f.issuer.Issue("3", access.RoleParent, access.RoleParent)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/sign-out", nil)
	req.Header.Set("Accept", "application/json")
	req.AddCookie(&http.Cookie{Name: "session", Value: token})
	rr := f.do(req)
	require.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, -1, sessionCookie(t, rr).MaxAge)

	entries := f.store.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, audit.EventLogout, entries[0].EventType)
	assert.Equal(t, "3", entries[0].UserID)
}

func TestSignOutWithoutSession(t *testing.T) {
	f := newHandlerFixture(t)

	rr := f.do(httptest.NewRequest(http.MethodPost, "/sign-out", nil))
	require.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, access.SignInPath, rr.Header().Get("Location"))
	assert.Empty(t, f.store.Entries())
}

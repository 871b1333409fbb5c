package users

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campus/internal/auth"
	"campus/internal/domain"
)

type stubAccounts struct {
	user         *User
	verification *Verification
	pair         auth.TokenPair
	users        []User
	err          error
	gotID        int64
}

func (s *stubAccounts) Create(ctx context.Context, name, email, userType string) (*User, *Verification, error) {
	return s.user, s.verification, s.err
}

func (s *stubAccounts) Verify(ctx context.Context, token, password string) (*User, error) {
	return s.user, s.err
}

func (s *stubAccounts) Login(ctx context.Context, email, password string) (auth.TokenPair, error) {
	return s.pair, s.err
}

func (s *stubAccounts) Refresh(ctx context.Context, refreshToken string) (auth.TokenPair, error) {
	return s.pair, s.err
}

func (s *stubAccounts) Get(ctx context.Context, id int64) (*User, error) {
	s.gotID = id
	if s.err != nil {
		return nil, s.err
	}
	return s.user, nil
}

func (s *stubAccounts) List(ctx context.Context) ([]User, error) {
	return s.users, s.err
}

const (
	testSigningKey = "secret"
	testIssuer     = "campus-api"
)

func newTestRouter(accounts Accounts) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewHandler(accounts)
	h.Register(
		r.Group("/v1/auth"),
		r.Group("/v1/auth", auth.Require(testSigningKey, testIssuer)),
		r.Group("/v1/users"),
	)
	return r
}

func postJSON(t *testing.T, r *gin.Engine, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestLoginReturnsTokenPair(t *testing.T) {
	exp := time.Date(2026, 3, 1, 12, 15, 0, 0, time.UTC)
	r := newTestRouter(&stubAccounts{pair: auth.TokenPair{
		AccessToken: "access", RefreshToken: "refresh", AccessExp: exp,
	}})

	w := postJSON(t, r, "/v1/auth/login", gin.H{"email": "dean@campus.edu", "password": "hunter22"})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"access_token":"access"`)
	assert.Contains(t, w.Body.String(), `"refresh_token":"refresh"`)
}

func TestLoginBadCredentialsMapsTo422(t *testing.T) {
	r := newTestRouter(&stubAccounts{err: domain.Validation("email", "invalid credentials")})

	w := postJSON(t, r, "/v1/auth/login", gin.H{"email": "dean@campus.edu", "password": "wrong"})

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "invalid credentials")
}

func TestLoginRejectsBadEmail(t *testing.T) {
	r := newTestRouter(&stubAccounts{})

	w := postJSON(t, r, "/v1/auth/login", gin.H{"email": "not-an-email", "password": "x"})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateUserReturnsVerificationToken(t *testing.T) {
	r := newTestRouter(&stubAccounts{
		user:         &User{ID: 5, Name: "Ada", Email: "ada@campus.edu", Type: "professor", Status: StatusPending},
		verification: &Verification{Token: "tok-123", ExpiresAt: time.Now().Add(48 * time.Hour)},
	})

	w := postJSON(t, r, "/v1/users", gin.H{"name": "Ada", "email": "ada@campus.edu", "type": "professor"})

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"verification_token":"tok-123"`)
	// the hash never leaks even if set
	assert.NotContains(t, w.Body.String(), "password_hash")
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	r := newTestRouter(&stubAccounts{err: domain.Conflict("email already registered")})

	w := postJSON(t, r, "/v1/users", gin.H{"name": "Ada", "email": "ada@campus.edu", "type": "professor"})

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestMeReturnsAuthenticatedUser(t *testing.T) {
	stub := &stubAccounts{user: &User{ID: 5, Name: "Ada", Email: "ada@campus.edu", Type: "professor", Status: StatusActive}}
	r := newTestRouter(stub)
	pair, err := auth.Issue("5", auth.RoleProfessor, testIssuer, testSigningKey, time.Minute, time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/v1/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(5), stub.gotID)
	assert.Contains(t, w.Body.String(), `"email":"ada@campus.edu"`)
}

func TestMeWithoutToken(t *testing.T) {
	r := newTestRouter(&stubAccounts{})

	req := httptest.NewRequest(http.MethodGet, "/v1/auth/me", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestVerifyUnknownToken(t *testing.T) {
	r := newTestRouter(&stubAccounts{err: domain.NotFound("verification token not found or expired")})

	w := postJSON(t, r, "/v1/auth/verify", gin.H{"token": "nope", "password": "longenough"})

	assert.Equal(t, http.StatusNotFound, w.Code)
}

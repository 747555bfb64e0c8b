package middleware

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/mealshare-backend/pkg/errors"
)

func credentialRequest(path, body, remote string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.RemoteAddr = remote
	return req
}

func TestAuthRateLimitPreservesBodyUnderLimit(t *testing.T) {
	limiter := &fakeWindowLimiter{}
	policy := NewAuthRateLimitPolicy("login", time.Minute, 2, 2)
	var seen string
	handler := AuthRateLimit(policy, limiter, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		seen = string(body)
		w.WriteHeader(http.StatusOK)
	}))

	payload := `{"email":"cook@example.com","password":"secret"}`
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, credentialRequest("/api/v1/auth/login", payload, "1.2.3.4:5678"))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, payload, seen)
	assert.Contains(t, limiter.counts, "auth:login:ip:1.2.3.4")
	for scope := range limiter.counts {
		assert.NotContains(t, scope, "cook@example.com", "raw identities must not be used as keys")
	}
}

func TestAuthRateLimitIdentityLimitTriggers(t *testing.T) {
	limiter := &fakeWindowLimiter{}
	policy := NewAuthRateLimitPolicy("login", time.Minute, 0, 2)
	handler := AuthRateLimit(policy, limiter, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	codes := make([]int, 0, 3)
	var last *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		// rotating IPs do not help against the identity counter
		remote := "10.0.0." + string(rune('1'+i)) + ":1000"
		last = httptest.NewRecorder()
		handler.ServeHTTP(last, credentialRequest("/api/v1/auth/login", `{"email":"Blocked@Example.com"}`, remote))
		codes = append(codes, last.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
	assert.Equal(t, "60", last.Header().Get("Retry-After"))

	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(last.Body.Bytes(), &payload))
	assert.Equal(t, string(pkgerrors.CodeRateLimit), payload.Error.Code)
}

func TestAuthRateLimitIPLimitTriggers(t *testing.T) {
	limiter := &fakeWindowLimiter{}
	policy := NewAuthRateLimitPolicy("register", time.Minute, 1, 0)
	handler := AuthRateLimit(policy, limiter, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i, want := range []int{http.StatusOK, http.StatusTooManyRequests} {
		rec := httptest.NewRecorder()
		body := `{"username":"cook` + string(rune('a'+i)) + `"}`
		handler.ServeHTTP(rec, credentialRequest("/api/v1/auth/register", body, "5.6.7.8:1234"))
		assert.Equal(t, want, rec.Code, "request %d", i)
	}
}

func TestAuthRateLimitUsernameCountsAcrossCasing(t *testing.T) {
	limiter := &fakeWindowLimiter{}
	policy := NewAuthRateLimitPolicy("register", time.Minute, 0, 1)
	handler := AuthRateLimit(policy, limiter, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	var codes []int
	for _, body := range []string{`{"username":"Chef"}`, `{"username":" chef "}`} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, credentialRequest("/api/v1/auth/register", body, "1.1.1.1:1"))
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusTooManyRequests}, codes)
	assert.Contains(t, limiter.counts, policy.scope("identity", credentialIdentity([]byte(`{"username":"chef"}`))))
}

func TestAuthRateLimitRejectsOversizedBody(t *testing.T) {
	handler := AuthRateLimit(NewAuthRateLimitPolicy("login", time.Minute, 0, 5), &fakeWindowLimiter{}, nil)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { t.Fatal("handler must not run") }))

	rec := httptest.NewRecorder()
	body := `{"email":"` + strings.Repeat("a", maxCredentialBody) + `"}`
	handler.ServeHTTP(rec, credentialRequest("/api/v1/auth/login", body, "1.1.1.1:1"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuthRateLimitDisabledPolicyPassesThrough(t *testing.T) {
	limiter := &fakeWindowLimiter{}
	handler := AuthRateLimit(NewAuthRateLimitPolicy("", 0, 1, 1), limiter, nil)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) }))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, credentialRequest("/api/v1/auth/login", `{}`, "1.1.1.1:1"))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, limiter.counts)
}

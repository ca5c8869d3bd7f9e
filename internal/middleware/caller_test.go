package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/better-wallet/multisig/internal/logger"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func signToken(t *testing.T, secret string, claims jwt.RegisteredClaims, method jwt.SigningMethod) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func callerHandler(seen *uuid.UUID) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller, ok := GetCaller(r.Context())
		if !ok {
			w.WriteHeader(http.StatusTeapot)
			return
		}
		if logger.GetCallerID(r.Context()) != caller.String() {
			w.WriteHeader(http.StatusTeapot)
			return
		}
		*seen = caller
		w.WriteHeader(http.StatusOK)
	})
}

func TestCallerAuth_Header(t *testing.T) {
	var seen uuid.UUID
	h := NewCallerAuth("", "").Authenticate(callerHandler(&seen))
	user := uuid.New()

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{name: "valid", header: user.String(), want: http.StatusOK},
		{name: "missing", header: "", want: http.StatusUnauthorized},
		{name: "not a uuid", header: "alice", want: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set(CallerHeader, tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
			if tt.want == http.StatusOK {
				assert.Equal(t, user, seen)
			}
		})
	}
}

func TestCallerAuth_JWT(t *testing.T) {
	var seen uuid.UUID
	h := NewCallerAuth(testSecret, "multisig-test").Authenticate(callerHandler(&seen))
	user := uuid.New()
	now := time.Now()

	valid := jwt.RegisteredClaims{
		Subject:   user.String(),
		Issuer:    "multisig-test",
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	}

	tests := []struct {
		name  string
		token string
		want  int
	}{
		{name: "valid", token: signToken(t, testSecret, valid, jwt.SigningMethodHS256), want: http.StatusOK},
		{name: "wrong secret", token: signToken(t, "ffffffffffffffffffffffffffffffff", valid, jwt.SigningMethodHS256), want: http.StatusUnauthorized},
		{name: "wrong algorithm", token: signToken(t, testSecret, valid, jwt.SigningMethodHS512), want: http.StatusUnauthorized},
		{
			name: "expired",
			token: signToken(t, testSecret, jwt.RegisteredClaims{
				Subject: user.String(), Issuer: "multisig-test", ExpiresAt: jwt.NewNumericDate(now.Add(-time.Minute)),
			}, jwt.SigningMethodHS256),
			want: http.StatusUnauthorized,
		},
		{
			name: "no expiry",
			token: signToken(t, testSecret, jwt.RegisteredClaims{
				Subject: user.String(), Issuer: "multisig-test",
			}, jwt.SigningMethodHS256),
			want: http.StatusUnauthorized,
		},
		{
			name: "wrong issuer",
			token: signToken(t, testSecret, jwt.RegisteredClaims{
				Subject: user.String(), Issuer: "someone-else", ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
			}, jwt.SigningMethodHS256),
			want: http.StatusUnauthorized,
		},
		{
			name: "subject not a uuid",
			token: signToken(t, testSecret, jwt.RegisteredClaims{
				Subject: "alice", Issuer: "multisig-test", ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
			}, jwt.SigningMethodHS256),
			want: http.StatusUnauthorized,
		},
		{name: "no token", want: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
			if tt.want == http.StatusOK {
				assert.Equal(t, user, seen)
			}
		})
	}
}

func TestCallerAuth_JWTModeIgnoresHeader(t *testing.T) {
	var seen uuid.UUID
	h := NewCallerAuth(testSecret, "").Authenticate(callerHandler(&seen))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(CallerHeader, uuid.NewString())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

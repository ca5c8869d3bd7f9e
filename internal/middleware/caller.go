package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/better-wallet/multisig/internal/logger"
	apperrors "github.com/better-wallet/multisig/pkg/errors"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// CallerHeader carries the authenticated user ID set by the upstream identity provider
const CallerHeader = "X-User-ID"

type contextKey string

const callerKey contextKey = "caller"

// CallerAuth resolves the acting user for each request. With a secret configured it
// requires an HS256 bearer token whose subject is the user ID; otherwise it trusts
// CallerHeader, which the gateway in front of the service is expected to set.
type CallerAuth struct {
	secret []byte
	issuer string
}

// NewCallerAuth creates the caller identity middleware. An empty secret selects
// header mode.
func NewCallerAuth(secret, issuer string) *CallerAuth {
	a := &CallerAuth{issuer: issuer}
	if secret != "" {
		a.secret = []byte(secret)
	}
	return a
}

// Authenticate rejects requests without a valid caller with 401
func (a *CallerAuth) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller, err := a.resolve(r)
		if err != nil {
			writeError(w, apperrors.ErrUnauthorized.WithDetail(err.Error()))
			return
		}

		ctx := WithCaller(r.Context(), caller)
		ctx = logger.WithCallerID(ctx, caller.String())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *CallerAuth) resolve(r *http.Request) (uuid.UUID, error) {
	if a.secret == nil {
		raw := strings.TrimSpace(r.Header.Get(CallerHeader))
		if raw == "" {
			return uuid.Nil, errors.New("missing " + CallerHeader + " header")
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			return uuid.Nil, errors.New("invalid " + CallerHeader + " header")
		}
		return id, nil
	}

	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return uuid.Nil, errors.New("missing bearer token")
	}
	return a.parseToken(strings.TrimSpace(token))
}

func (a *CallerAuth) parseToken(token string) (uuid.UUID, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}

	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}, opts...)
	if err != nil {
		return uuid.Nil, errors.New("invalid bearer token")
	}

	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, errors.New("token subject is not a user ID")
	}
	return id, nil
}

// WithCaller stores the acting user ID in ctx
func WithCaller(ctx context.Context, caller uuid.UUID) context.Context {
	return context.WithValue(ctx, callerKey, caller)
}

// GetCaller returns the acting user ID from ctx
func GetCaller(ctx context.Context) (uuid.UUID, bool) {
	caller, ok := ctx.Value(callerKey).(uuid.UUID)
	return caller, ok
}

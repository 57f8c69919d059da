// Package auth resolves the budget owner of a request.
//
// With a secret configured the owner is the subject of an HS256 bearer token;
// without one the X-Owner-ID header is trusted as is, which is only suitable
// behind a gateway that authenticates callers.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey struct{}

const HeaderOwnerID = "X-Owner-ID"

var (
	ErrMissingCredentials = errors.New("missing credentials")
	ErrInvalidToken       = errors.New("invalid token")
	ErrInvalidOwner       = errors.New("invalid owner id")
)

var validOwnerID = regexp.MustCompile(`^[A-Za-z0-9._@+-]{1,128}$`)

// Authenticator extracts and validates owner identities.
type Authenticator struct {
	secret []byte
	issuer string
	now    func() time.Time
}

func New(secret, issuer string) *Authenticator {
	return &Authenticator{secret: []byte(secret), issuer: issuer, now: time.Now}
}

// UsesTokens reports whether bearer tokens are required.
func (a *Authenticator) UsesTokens() bool {
	return len(a.secret) > 0
}

// OwnerFromRequest returns the owner id carried by r.
func (a *Authenticator) OwnerFromRequest(r *http.Request) (string, error) {
	if !a.UsesTokens() {
		owner := strings.TrimSpace(r.Header.Get(HeaderOwnerID))
		if owner == "" {
			return "", ErrMissingCredentials
		}
		if !validOwnerID.MatchString(owner) {
			return "", ErrInvalidOwner
		}
		return owner, nil
	}

	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", ErrMissingCredentials
	}
	return a.ParseToken(strings.TrimSpace(token))
}

// ParseToken validates an HS256 token and returns its subject.
func (a *Authenticator) ParseToken(raw string) (string, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(a.now),
		jwt.WithExpirationRequired(),
	}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}

	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}, opts...)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !validOwnerID.MatchString(claims.Subject) {
		return "", ErrInvalidOwner
	}
	return claims.Subject, nil
}

// IssueToken signs a token for owner valid for ttl.
func (a *Authenticator) IssueToken(owner string, ttl time.Duration) (string, error) {
	if !a.UsesTokens() {
		return "", errors.New("no signing secret configured")
	}
	if !validOwnerID.MatchString(owner) {
		return "", ErrInvalidOwner
	}
	now := a.now()
	claims := jwt.RegisteredClaims{
		Subject:   owner,
		Issuer:    a.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Middleware rejects requests without a valid owner and stores it in the context.
// onError writes the rejection.
func (a *Authenticator) Middleware(onError func(http.ResponseWriter, *http.Request, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			owner, err := a.OwnerFromRequest(r)
			if err != nil {
				if onError != nil {
					onError(w, r, err)
				} else {
					http.Error(w, "unauthorized", http.StatusUnauthorized)
				}
				return
			}
			next.ServeHTTP(w, r.WithContext(WithOwner(r.Context(), owner)))
		})
	}
}

func WithOwner(ctx context.Context, owner string) context.Context {
	return context.WithValue(ctx, contextKey{}, owner)
}

// OwnerFromContext returns the owner stored by Middleware.
func OwnerFromContext(ctx context.Context) (string, bool) {
	owner, ok := ctx.Value(contextKey{}).(string)
	return owner, ok && owner != ""
}

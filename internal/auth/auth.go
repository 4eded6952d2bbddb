// Package auth verifies bearer credentials against a point-in-time snapshot
// of the user table. The snapshot is built before the listener starts and
// only changes through an explicit Reload; users created afterwards are not
// visible until then.
package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// Issuer is the iss claim stamped into every token.
const Issuer = "ghoststream"

// ErrUnauthorized covers every credential failure. Callers never learn
// whether the user or the secret was wrong.
var ErrUnauthorized = errors.New("unauthorized")

// SecretLoader fetches the full userID->secret map from persistence.
type SecretLoader func(ctx context.Context) (map[string]string, error)

type Service struct {
	secret []byte
	ttl    time.Duration
	load   SecretLoader
	creds  atomic.Pointer[map[string]string]
}

// NewService builds a Service signing with secret. A zero ttl issues tokens
// without an exp claim. Call Reload once before serving.
func NewService(secret string, ttl time.Duration, load SecretLoader) *Service {
	s := &Service{secret: []byte(secret), ttl: ttl, load: load}
	empty := map[string]string{}
	s.creds.Store(&empty)
	return s
}

// Reload swaps in a fresh credential snapshot. Readers keep whichever map
// they observed; there is no partial state.
func (s *Service) Reload(ctx context.Context) error {
	creds, err := s.load(ctx)
	if err != nil {
		return err
	}
	s.creds.Store(&creds)
	return nil
}

// Login checks the secret against the snapshot and issues a signed token.
func (s *Service) Login(ctx context.Context, userID, password string) (string, error) {
	stored, ok := (*s.creds.Load())[userID]
	if !ok || !secretMatches(stored, password) {
		return "", ErrUnauthorized
	}
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Issuer:   Issuer,
		Subject:  userID,
		IssuedAt: jwt.NewNumericDate(now),
	}
	if s.ttl != 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(s.ttl))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Verify checks the token's signature and issuer and returns the subject.
// Persistence is never consulted.
func (s *Service) Verify(tokenStr string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims,
		func(*jwt.Token) (interface{}, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
	)
	if err != nil || !token.Valid || claims.Subject == "" {
		return "", ErrUnauthorized
	}
	return claims.Subject, nil
}

// secretMatches compares the presented password against a stored secret,
// bcrypt when the row carries a bcrypt hash, constant-time verbatim
// otherwise (legacy plaintext rows).
func secretMatches(stored, password string) bool {
	if strings.HasPrefix(stored, "$2a$") || strings.HasPrefix(stored, "$2b$") || strings.HasPrefix(stored, "$2y$") {
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(password)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(password)) == 1
}

type ctxKey string

const userKey ctxKey = "user"

// UserFromContext returns the verified userID, or "" outside RequireAuth.
func UserFromContext(ctx context.Context) string {
	id, _ := ctx.Value(userKey).(string)
	return id
}

// TokenFromRequest extracts a bearer token, Authorization header first,
// then the token query parameter.
func TokenFromRequest(r *http.Request) string {
	authz := r.Header.Get("Authorization")
	if authz != "" {
		parts := strings.SplitN(authz, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return parts[1]
		}
	}
	return r.URL.Query().Get("token")
}

func (s *Service) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := TokenFromRequest(r)
		if token == "" {
			http.Error(w, "missing token", http.StatusUnauthorized)
			return
		}
		userID, err := s.Verify(token)
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
		ctx := context.WithValue(r.Context(), userKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

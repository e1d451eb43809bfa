package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	firebaseauth "firebase.google.com/go/v4/auth"
)

const (
	defaultRoleClaim     = "role"
	defaultVerifyTimeout = 5 * time.Second
)

// TokenVerifier verifies Firebase ID tokens.
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*firebaseauth.Token, error)
}

// Authenticator turns Firebase ID tokens into request identities.
type Authenticator struct {
	verifier  TokenVerifier
	roleClaim string
	timeout   time.Duration
}

// Option customises Authenticator behaviour.
type Option func(*Authenticator)

// WithRoleClaim overrides the custom claim used for role extraction.
func WithRoleClaim(claim string) Option {
	return func(a *Authenticator) {
		if claim = strings.TrimSpace(claim); claim != "" {
			a.roleClaim = claim
		}
	}
}

// WithVerificationTimeout bounds each token verification.
func WithVerificationTimeout(d time.Duration) Option {
	return func(a *Authenticator) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// NewAuthenticator constructs an Authenticator around verifier.
func NewAuthenticator(verifier TokenVerifier, opts ...Option) *Authenticator {
	a := &Authenticator{
		verifier:  verifier,
		roleClaim: defaultRoleClaim,
		timeout:   defaultVerifyTimeout,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a
}

// RequireFirebaseAuth rejects requests without a valid bearer token carrying one of allowedRoles.
// Tokens without a role claim never pass: the back-office has no anonymous role.
func (a *Authenticator) RequireFirebaseAuth(allowedRoles ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(allowedRoles))
	for _, role := range allowedRoles {
		if role = normaliseRole(role); role != "" {
			allowed[role] = struct{}{}
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				respondAuthError(w, http.StatusUnauthorized, "unauthenticated", "authorization header missing or invalid")
				return
			}
			if a == nil || a.verifier == nil {
				respondAuthError(w, http.StatusServiceUnavailable, "verification_unavailable", "authorization service unavailable")
				return
			}

			ctx, cancel := context.WithTimeout(r.Context(), a.timeout)
			token, err := a.verifier.VerifyIDToken(ctx, raw)
			cancel()
			if err != nil {
				switch {
				case firebaseauth.IsIDTokenExpired(err):
					respondAuthError(w, http.StatusUnauthorized, "token_expired", "firebase id token expired")
				case firebaseauth.IsIDTokenRevoked(err):
					respondAuthError(w, http.StatusUnauthorized, "token_revoked", "firebase id token revoked")
				default:
					respondAuthError(w, http.StatusUnauthorized, "invalid_token", "firebase id token verification failed")
				}
				return
			}

			identity := &Identity{
				UID:   token.UID,
				Email: stringClaim(token.Claims, "email"),
				Name:  stringClaim(token.Claims, "name"),
				Roles: rolesFromClaim(token.Claims[a.roleClaim]),
				token: token,
			}
			if len(identity.Roles) == 0 {
				respondAuthError(w, http.StatusForbidden, "missing_role", "no roles associated with identity")
				return
			}
			if len(allowed) > 0 && !identity.HasAnyRole(keys(allowed)...) {
				respondAuthError(w, http.StatusForbidden, "insufficient_role", "identity does not have required role")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}

func rolesFromClaim(raw any) []string {
	var candidates []string
	switch v := raw.(type) {
	case string:
		candidates = strings.Split(v, ",")
	case []string:
		candidates = v
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok {
				candidates = append(candidates, s)
			}
		}
	case map[string]any:
		for role, enabled := range v {
			if on, ok := enabled.(bool); ok && on {
				candidates = append(candidates, role)
			}
		}
	}

	seen := make(map[string]struct{}, len(candidates))
	roles := make([]string, 0, len(candidates))
	for _, candidate := range candidates {
		role := normaliseRole(candidate)
		if role == "" {
			continue
		}
		if _, dup := seen[role]; dup {
			continue
		}
		seen[role] = struct{}{}
		roles = append(roles, role)
	}
	return roles
}

func stringClaim(claims map[string]any, key string) string {
	value, _ := claims[key].(string)
	return strings.TrimSpace(value)
}

func keys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for key := range set {
		out = append(out, key)
	}
	return out
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func respondAuthError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error":   code,
		"message": message,
		"status":  status,
	})
}

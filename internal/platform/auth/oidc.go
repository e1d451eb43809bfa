package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	jose "github.com/go-jose/go-jose/v4"
	jwt "github.com/golang-jwt/jwt/v4"
)

var (
	// ErrJWKSKeyNotFound is returned when the requested key ID is absent from the key set.
	ErrJWKSKeyNotFound = errors.New("auth: jwks key not found")
	// ErrJWKSFetchFailed wraps transport or decoding errors while refreshing the key set.
	ErrJWKSFetchFailed = errors.New("auth: jwks fetch failed")
)

// Logger is the printf-style logger accepted by the OIDC helpers.
type Logger interface {
	Printf(format string, args ...any)
}

type discardLogger struct{}

func (discardLogger) Printf(string, ...any) {}

const defaultJWKSTTL = 15 * time.Minute

// JWKSCache fetches a JSON Web Key Set on demand and keeps it until the
// Cache-Control max-age of the response runs out.
type JWKSCache struct {
	url    string
	client *http.Client
	logger Logger
	now    func() time.Time

	mu     sync.Mutex
	keys   map[string]jose.JSONWebKey
	expiry time.Time
}

// JWKSOption customises JWKSCache behaviour.
type JWKSOption func(*JWKSCache)

// WithJWKSHTTPClient overrides the HTTP client used to fetch the key set.
func WithJWKSHTTPClient(client *http.Client) JWKSOption {
	return func(c *JWKSCache) {
		if client != nil {
			c.client = client
		}
	}
}

// WithJWKSLogger sets the logger used for refresh diagnostics.
func WithJWKSLogger(logger Logger) JWKSOption {
	return func(c *JWKSCache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithJWKSClock injects a custom time source.
func WithJWKSClock(now func() time.Time) JWKSOption {
	return func(c *JWKSCache) {
		if now != nil {
			c.now = now
		}
	}
}

// NewJWKSCache constructs a cache for the key set served at url.
func NewJWKSCache(url string, opts ...JWKSOption) *JWKSCache {
	c := &JWKSCache{
		url:    url,
		client: &http.Client{Timeout: 5 * time.Second},
		logger: discardLogger{},
		now:    time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Keyfunc adapts the cache to jwt.Keyfunc.
func (c *JWKSCache) Keyfunc(ctx context.Context) jwt.Keyfunc {
	return func(token *jwt.Token) (any, error) {
		kid, _ := token.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("auth: token missing kid header")
		}
		return c.Key(ctx, kid)
	}
}

// Key returns the public key for kid. An unknown kid forces one refresh to pick up rotations.
func (c *JWKSCache) Key(ctx context.Context, kid string) (any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.keys) == 0 || !c.now().Before(c.expiry) {
		if err := c.refreshLocked(ctx); err != nil {
			return nil, err
		}
	}
	if jwk, ok := c.keys[kid]; ok {
		return jwk.Key, nil
	}
	if err := c.refreshLocked(ctx); err != nil {
		return nil, err
	}
	if jwk, ok := c.keys[kid]; ok {
		return jwk.Key, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrJWKSKeyNotFound, kid)
}

func (c *JWKSCache) refreshLocked(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrJWKSFetchFailed, err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrJWKSFetchFailed, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: unexpected status %d", ErrJWKSFetchFailed, resp.StatusCode)
	}

	var set jose.JSONWebKeySet
	if err := json.NewDecoder(resp.Body).Decode(&set); err != nil {
		return fmt.Errorf("%w: decode jwks: %v", ErrJWKSFetchFailed, err)
	}
	keys := make(map[string]jose.JSONWebKey, len(set.Keys))
	for _, jwk := range set.Keys {
		if jwk.KeyID != "" && jwk.Valid() {
			keys[jwk.KeyID] = jwk
		}
	}
	if len(keys) == 0 {
		return fmt.Errorf("%w: empty key set", ErrJWKSFetchFailed)
	}

	ttl := maxAge(resp.Header.Get("Cache-Control"))
	if ttl <= 0 {
		ttl = defaultJWKSTTL
	}
	c.keys = keys
	c.expiry = c.now().Add(ttl)
	c.logger.Printf("auth: refreshed jwks (%d keys, valid for %s)", len(keys), ttl)
	return nil
}

func maxAge(header string) time.Duration {
	for _, directive := range strings.Split(header, ",") {
		name, value, found := strings.Cut(strings.TrimSpace(directive), "=")
		if !found || !strings.EqualFold(name, "max-age") {
			continue
		}
		if seconds, err := strconv.Atoi(strings.TrimSpace(value)); err == nil && seconds > 0 {
			return time.Duration(seconds) * time.Second
		}
	}
	return 0
}

// ServiceIdentity is the verified caller of an internal route.
type ServiceIdentity struct {
	Subject string
	Email   string
	Issuer  string
}

type serviceIdentityKey struct{}

// WithServiceIdentity attaches the verified service identity to ctx.
func WithServiceIdentity(ctx context.Context, identity *ServiceIdentity) context.Context {
	return context.WithValue(ctx, serviceIdentityKey{}, identity)
}

// ServiceIdentityFromContext retrieves the identity stored by RequireOIDC.
func ServiceIdentityFromContext(ctx context.Context) (*ServiceIdentity, bool) {
	identity, ok := ctx.Value(serviceIdentityKey{}).(*ServiceIdentity)
	return identity, ok && identity != nil
}

// OIDCValidator checks Google-signed OIDC tokens sent by Cloud Scheduler and Cloud Tasks.
type OIDCValidator struct {
	cache  *JWKSCache
	logger Logger
}

// OIDCOption customises the validator.
type OIDCOption func(*OIDCValidator)

// WithOIDCLogger overrides the validator logger.
func WithOIDCLogger(logger Logger) OIDCOption {
	return func(v *OIDCValidator) {
		if logger != nil {
			v.logger = logger
		}
	}
}

// NewOIDCValidator constructs an OIDCValidator.
func NewOIDCValidator(cache *JWKSCache, opts ...OIDCOption) *OIDCValidator {
	v := &OIDCValidator{cache: cache, logger: discardLogger{}}
	for _, opt := range opts {
		if opt != nil {
			opt(v)
		}
	}
	return v
}

// RequireOIDC enforces an RS256 bearer token issued by one of issuers for audience.
func (v *OIDCValidator) RequireOIDC(audience string, issuers []string) func(http.Handler) http.Handler {
	audience = strings.TrimSpace(audience)
	allowed := make(map[string]struct{}, len(issuers))
	for _, issuer := range issuers {
		if issuer = strings.TrimSpace(issuer); issuer != "" {
			allowed[issuer] = struct{}{}
		}
	}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if audience == "" || v == nil || v.cache == nil {
				respondAuthError(w, http.StatusServiceUnavailable, "verification_unavailable", "oidc verification unavailable")
				return
			}
			raw, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				respondAuthError(w, http.StatusUnauthorized, "unauthenticated", "oidc token missing")
				return
			}

			claims := jwt.MapClaims{}
			if _, err := parser.ParseWithClaims(raw, claims, v.cache.Keyfunc(r.Context())); err != nil {
				v.logger.Printf("auth: oidc verification failed: %v", err)
				if errors.Is(err, ErrJWKSFetchFailed) {
					respondAuthError(w, http.StatusServiceUnavailable, "verification_unavailable", "oidc keys unavailable")
					return
				}
				respondAuthError(w, http.StatusUnauthorized, "invalid_token", "oidc token verification failed")
				return
			}

			issuer, _ := claims["iss"].(string)
			if _, ok := allowed[issuer]; len(allowed) > 0 && !ok {
				v.logger.Printf("auth: oidc issuer mismatch, got %q", issuer)
				respondAuthError(w, http.StatusUnauthorized, "invalid_token", "oidc issuer mismatch")
				return
			}
			if !claims.VerifyAudience(audience, true) {
				v.logger.Printf("auth: oidc audience mismatch, expected %q", audience)
				respondAuthError(w, http.StatusUnauthorized, "invalid_token", "oidc audience mismatch")
				return
			}

			identity := &ServiceIdentity{Issuer: issuer}
			identity.Subject, _ = claims["sub"].(string)
			identity.Email, _ = claims["email"].(string)
			next.ServeHTTP(w, r.WithContext(WithServiceIdentity(r.Context(), identity)))
		})
	}
}

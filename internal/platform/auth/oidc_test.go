package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	jose "github.com/go-jose/go-jose/v4"
	jwt "github.com/golang-jwt/jwt/v4"
)

type oidcFixture struct {
	validator *OIDCValidator
	key       *rsa.PrivateKey
	fetches   *atomic.Int32
	now       time.Time
}

func newOIDCFixture(t *testing.T) *oidcFixture {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	jwk := jose.JSONWebKey{Key: &key.PublicKey, KeyID: "svc-key", Algorithm: jwt.SigningMethodRS256.Alg(), Use: "sig"}

	var fetches atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fetches.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "public, max-age=600")
		_ = json.NewEncoder(w).Encode(jose.JSONWebKeySet{Keys: []jose.JSONWebKey{jwk}})
	}))
	t.Cleanup(server.Close)

	now := time.Unix(1_700_000_000, 0)
	original := jwt.TimeFunc
	jwt.TimeFunc = func() time.Time { return now }
	t.Cleanup(func() { jwt.TimeFunc = original })

	cache := NewJWKSCache(server.URL, WithJWKSClock(func() time.Time { return now }))
	return &oidcFixture{validator: NewOIDCValidator(cache), key: key, fetches: &fetches, now: now}
}

func (f *oidcFixture) token(t *testing.T, mutate func(jwt.MapClaims)) string {
	t.Helper()
	claims := jwt.MapClaims{
		"aud":   "https://api.example.com",
		"iss":   "https://accounts.google.com",
		"sub":   "1234567890",
		"email": "scheduler@example.iam.gserviceaccount.com",
		"exp":   float64(f.now.Add(time.Hour).Unix()),
		"iat":   float64(f.now.Unix()),
	}
	if mutate != nil {
		mutate(claims)
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = "svc-key"
	signed, err := token.SignedString(f.key)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func serveOIDC(f *oidcFixture, audience, token string, next http.Handler) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/internal/stats/snapshot", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	f.validator.RequireOIDC(audience, []string{"https://accounts.google.com"})(next).ServeHTTP(rr, req)
	return rr
}

func TestJWKSCacheReusesKeys(t *testing.T) {
	f := newOIDCFixture(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		key, err := f.validator.cache.Key(ctx, "svc-key")
		if err != nil {
			t.Fatalf("Key: %v", err)
		}
		if _, ok := key.(*rsa.PublicKey); !ok {
			t.Fatalf("expected *rsa.PublicKey, got %T", key)
		}
	}
	if got := f.fetches.Load(); got != 1 {
		t.Fatalf("expected single fetch, got %d", got)
	}
	if _, err := f.validator.cache.Key(ctx, "unknown"); err == nil {
		t.Fatalf("expected unknown kid to fail")
	}
	if got := f.fetches.Load(); got != 2 {
		t.Fatalf("expected unknown kid to force a refresh, got %d fetches", got)
	}
}

func TestRequireOIDCAcceptsValidToken(t *testing.T) {
	f := newOIDCFixture(t)
	rr := serveOIDC(f, "https://api.example.com", f.token(t, nil), http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := ServiceIdentityFromContext(r.Context())
		if !ok || identity.Email != "scheduler@example.iam.gserviceaccount.com" {
			t.Fatalf("expected service identity, got %+v", identity)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rr.Code)
	}
}

func TestRequireOIDCRejects(t *testing.T) {
	f := newOIDCFixture(t)
	fail := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatalf("handler should not be called")
	})

	tests := []struct {
		name     string
		audience string
		token    string
		status   int
	}{
		{name: "missing token", audience: "https://api.example.com", status: http.StatusUnauthorized},
		{name: "audience mismatch", audience: "https://other.example.com", token: f.token(t, nil), status: http.StatusUnauthorized},
		{name: "issuer mismatch", audience: "https://api.example.com", token: f.token(t, func(c jwt.MapClaims) { c["iss"] = "https://evil.example.com" }), status: http.StatusUnauthorized},
		{name: "expired", audience: "https://api.example.com", token: f.token(t, func(c jwt.MapClaims) { c["exp"] = float64(f.now.Add(-time.Minute).Unix()) }), status: http.StatusUnauthorized},
		{name: "audience not configured", audience: "", token: f.token(t, nil), status: http.StatusServiceUnavailable},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := serveOIDC(f, tc.audience, tc.token, fail)
			if rr.Code != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, rr.Code)
			}
		})
	}
}

func TestRequireOIDCKeysUnavailable(t *testing.T) {
	f := newOIDCFixture(t)
	f.validator.cache.url = "http://127.0.0.1:1/unreachable"
	rr := serveOIDC(f, "https://api.example.com", f.token(t, nil), http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatalf("handler should not be called")
	}))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
}

func TestMaxAge(t *testing.T) {
	if got := maxAge("public, max-age=120, must-revalidate"); got != 2*time.Minute {
		t.Fatalf("expected 2m, got %s", got)
	}
	if got := maxAge("no-store"); got != 0 {
		t.Fatalf("expected 0, got %s", got)
	}
}

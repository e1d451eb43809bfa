package main

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"

	"github.com/templatemart/api/internal/platform/config"
)

func TestRequiredSecretNames(t *testing.T) {
	got := requiredSecretNames(map[string]string{
		"API_STORAGE_SIGNER_KEY": "secret://storage/signer",
		"API_SESSION_BLOCK_KEY":  " ",
	})
	want := []string{"Session.HashKey", "Storage.SignerKey"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("required secrets mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"Session.HashKey"}, requiredSecretNames(nil)); diff != "" {
		t.Fatalf("nil env mismatch (-want +got):\n%s", diff)
	}
}

func TestSecretVersionPinsFromEnv(t *testing.T) {
	got := secretVersionPinsFromEnv(map[string]string{
		"API_SECRET_VERSION_PINS": "prod:session/hash=3, sm://storage/signer=7,secret://plain=2,broken",
	})
	want := map[string]string{
		"prod:secret://session/hash": "3",
		"secret://storage/signer":    "7",
		"secret://plain":             "2",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("pins mismatch (-want +got):\n%s", diff)
	}
}

func TestSecretProjectMapFromEnv(t *testing.T) {
	got := secretProjectMapFromEnv(map[string]string{
		"API_SECRET_PROJECT_IDS": "PROD=tm-prod, stg = tm-stg ,=nope",
	})
	want := map[string]string{"prod": "tm-prod", "stg": "tm-stg"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("project map mismatch (-want +got):\n%s", diff)
	}
}

func TestOpenRegistryMemory(t *testing.T) {
	cfg := config.Config{Datastore: config.DatastoreConfig{Backend: config.DatastoreMemory}}
	reg, check, err := openRegistry(cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("openRegistry: %v", err)
	}
	if check != nil {
		t.Fatal("memory backend should not register a health check")
	}
	if reg.Templates() == nil {
		t.Fatal("expected template repository")
	}

	cfg.Datastore.Backend = "postgres"
	if _, _, err := openRegistry(cfg, zap.NewNop()); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}

func TestBuildOIDCMiddlewareDisabledWithoutJWKS(t *testing.T) {
	if mw := buildOIDCMiddleware(zap.NewNop(), config.Config{}); mw != nil {
		t.Fatal("expected nil middleware without JWKS url")
	}
}

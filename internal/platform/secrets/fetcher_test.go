package secrets

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const hashKeyRef = "secret://session_hash_key"

func TestResolveCachesRemoteSecret(t *testing.T) {
	ctx := context.Background()

	client := newFakeSecretClient()
	resource := "projects/test/secrets/session_hash_key/versions/latest"
	client.values[resource] = "remote-secret"

	fetcher, err := NewFetcher(ctx,
		WithSecretManagerClient(client),
		WithDefaultProject("test"),
		WithLogger(zap.NewNop()),
		WithMeter(noop.NewMeterProvider().Meter("test")),
	)
	if err != nil {
		t.Fatalf("NewFetcher returned error: %v", err)
	}
	defer fetcher.Close()

	for i := 0; i < 2; i++ {
		got, err := fetcher.Resolve(ctx, hashKeyRef)
		if err != nil {
			t.Fatalf("Resolve returned error: %v", err)
		}
		if got != "remote-secret" {
			t.Fatalf("expected remote-secret, got %s", got)
		}
	}

	if calls := client.callCount(resource); calls != 1 {
		t.Fatalf("expected remote fetch once, got %d", calls)
	}
}

func TestInvalidateForcesRefetch(t *testing.T) {
	ctx := context.Background()

	client := newFakeSecretClient()
	resource := "projects/test/secrets/session_hash_key/versions/latest"
	client.values[resource] = "v1"

	fetcher, err := NewFetcher(ctx, WithSecretManagerClient(client), WithDefaultProject("test"))
	if err != nil {
		t.Fatalf("NewFetcher error: %v", err)
	}

	if _, err := fetcher.Resolve(ctx, hashKeyRef); err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	client.set(resource, "v2")
	fetcher.Invalidate(hashKeyRef)

	got, err := fetcher.Resolve(ctx, hashKeyRef)
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if got != "v2" {
		t.Fatalf("expected refreshed value v2, got %s", got)
	}
	if calls := client.callCount(resource); calls != 2 {
		t.Fatalf("expected two fetches, got %d", calls)
	}
}

func TestResolveFallsBackWhenSecretManagerUnavailable(t *testing.T) {
	ctx := context.Background()
	fallbackPath := writeFallback(t, hashKeyRef+"=local-secret\n")

	client := newFakeSecretClient()
	client.errors["projects/test/secrets/session_hash_key/versions/latest"] = status.Error(codes.PermissionDenied, "denied")

	fetcher, err := NewFetcher(ctx,
		WithSecretManagerClient(client),
		WithDefaultProject("test"),
		WithFallbackFile(fallbackPath),
	)
	if err != nil {
		t.Fatalf("NewFetcher returned error: %v", err)
	}

	got, err := fetcher.Resolve(ctx, hashKeyRef)
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if got != "local-secret" {
		t.Fatalf("expected fallback secret local-secret, got %s", got)
	}
}

func TestResolveDoesNotFallbackOnNotFound(t *testing.T) {
	ctx := context.Background()
	fallbackPath := writeFallback(t, hashKeyRef+"=local-secret\n")

	client := newFakeSecretClient()
	client.errors["projects/test/secrets/session_hash_key/versions/latest"] = status.Error(codes.NotFound, "missing")

	fetcher, err := NewFetcher(ctx,
		WithSecretManagerClient(client),
		WithDefaultProject("test"),
		WithFallbackFile(fallbackPath),
	)
	if err != nil {
		t.Fatalf("NewFetcher returned error: %v", err)
	}

	_, err = fetcher.Resolve(ctx, hashKeyRef)
	if !errors.Is(err, ErrSecretNotFound) {
		t.Fatalf("expected ErrSecretNotFound, got %v", err)
	}
}

func TestResolveUsesVersionPinsAndProjectMap(t *testing.T) {
	ctx := context.Background()

	client := newFakeSecretClient()
	resource := "projects/tm-prod/secrets/session_hash_key/versions/5"
	client.values[resource] = "version-5"

	fetcher, err := NewFetcher(ctx,
		WithSecretManagerClient(client),
		WithDefaultProject("test"),
		WithEnvironment("PROD"),
		WithProjectMap(map[string]string{"prod": "tm-prod"}),
		WithVersionPins(map[string]string{hashKeyRef: "5"}),
	)
	if err != nil {
		t.Fatalf("NewFetcher error: %v", err)
	}

	got, err := fetcher.Resolve(ctx, hashKeyRef)
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if got != "version-5" {
		t.Fatalf("expected version-5, got %s", got)
	}
}

func TestResolveRejectsInvalidReference(t *testing.T) {
	fetcher, err := NewFetcher(context.Background(), WithSecretManagerClient(newFakeSecretClient()))
	if err != nil {
		t.Fatalf("NewFetcher error: %v", err)
	}
	for _, ref := range []string{"", "plain-value", "https://example.com/x", "secret://"} {
		if _, err := fetcher.Resolve(context.Background(), ref); !errors.Is(err, ErrInvalidReference) {
			t.Fatalf("ref %q: expected ErrInvalidReference, got %v", ref, err)
		}
	}
}

func TestNewFetcherWithoutCredentialsUsesFallback(t *testing.T) {
	ctx := context.Background()

	originalFactory := secretManagerClientFactory
	secretManagerClientFactory = func(context.Context, ...option.ClientOption) (*secretmanager.Client, error) {
		return nil, errors.New("no credentials")
	}
	t.Cleanup(func() {
		secretManagerClientFactory = originalFactory
	})

	fallbackPath := writeFallback(t, "# local secrets\n"+hashKeyRef+"=\"local-secret\"\n")

	fetcher, err := NewFetcher(ctx, WithFallbackFile(fallbackPath))
	if err != nil {
		t.Fatalf("NewFetcher returned error: %v", err)
	}
	defer fetcher.Close()

	value, err := fetcher.Resolve(ctx, hashKeyRef)
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if value != "local-secret" {
		t.Fatalf("expected local secret, got %s", value)
	}
}

func writeFallback(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".secrets.local")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed writing fallback file: %v", err)
	}
	return path
}

type fakeSecretClient struct {
	mu      sync.Mutex
	values  map[string]string
	errors  map[string]error
	counter map[string]int
}

func newFakeSecretClient() *fakeSecretClient {
	return &fakeSecretClient{
		values:  make(map[string]string),
		errors:  make(map[string]error),
		counter: make(map[string]int),
	}
}

func (f *fakeSecretClient) AccessSecretVersion(_ context.Context, req *secretmanagerpb.AccessSecretVersionRequest, _ ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	name := req.GetName()
	f.counter[name]++

	if err, ok := f.errors[name]; ok && err != nil {
		return nil, err
	}
	if value, ok := f.values[name]; ok {
		return &secretmanagerpb.AccessSecretVersionResponse{
			Payload: &secretmanagerpb.SecretPayload{Data: []byte(value)},
		}, nil
	}
	return nil, status.Error(codes.NotFound, "not found")
}

func (f *fakeSecretClient) Close() error { return nil }

func (f *fakeSecretClient) set(name, value string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[name] = value
}

func (f *fakeSecretClient) callCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counter[name]
}

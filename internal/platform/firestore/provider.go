package firestore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/templatemart/api/internal/platform/config"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const (
	defaultDialTimeout = 10 * time.Second
	envEmulatorHost    = "FIRESTORE_EMULATOR_HOST"
	envGoogleProjectID = "GOOGLE_CLOUD_PROJECT"
)

// ErrProviderClosed is returned by Client after Close.
var ErrProviderClosed = errors.New("firestore: provider is closed")

// Provider lazily creates one Firestore client shared by every repository.
type Provider struct {
	cfg         config.FirestoreConfig
	dialTimeout time.Duration
	clientOpts  []option.ClientOption

	mu     sync.Mutex
	client *firestore.Client
	closed bool
}

// ProviderOption customises the Provider.
type ProviderOption func(*Provider)

// WithDialTimeout bounds client creation.
func WithDialTimeout(timeout time.Duration) ProviderOption {
	return func(p *Provider) {
		if timeout > 0 {
			p.dialTimeout = timeout
		}
	}
}

// WithClientOptions appends options passed to firestore.NewClient.
func WithClientOptions(opts ...option.ClientOption) ProviderOption {
	return func(p *Provider) {
		p.clientOpts = append(p.clientOpts, opts...)
	}
}

// NewProvider constructs a Provider. No connection is made until Client is called.
func NewProvider(cfg config.FirestoreConfig, opts ...ProviderOption) *Provider {
	p := &Provider{cfg: cfg, dialTimeout: defaultDialTimeout}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p
}

// Client returns the shared client, creating it on first use. Creation is serialised so
// concurrent callers never build two clients.
func (p *Provider) Client(ctx context.Context) (*firestore.Client, error) {
	if p == nil {
		return nil, errors.New("firestore: provider is nil")
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, ErrProviderClosed
	}
	if p.client != nil {
		return p.client, nil
	}
	client, err := p.createClient(ctx)
	if err != nil {
		return nil, err
	}
	p.client = client
	return client, nil
}

// ProjectID reports the project the provider connects to.
func (p *Provider) ProjectID() string {
	if id := strings.TrimSpace(p.cfg.ProjectID); id != "" {
		return id
	}
	return strings.TrimSpace(os.Getenv(envGoogleProjectID))
}

func (p *Provider) createClient(ctx context.Context) (*firestore.Client, error) {
	if p.dialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.dialTimeout)
		defer cancel()
	}

	projectID := p.ProjectID()
	if projectID == "" {
		return nil, errors.New("firestore: project id is required")
	}

	opts := append([]option.ClientOption(nil), p.clientOpts...)
	if host := p.emulatorHost(); host != "" {
		opts = append(opts,
			option.WithoutAuthentication(),
			option.WithEndpoint(host),
			option.WithGRPCDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
		)
	}

	client, err := firestore.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("firestore: create client: %w", err)
	}
	return client, nil
}

// Close releases the client. The provider cannot be reused afterwards.
func (p *Provider) Close() error {
	if p == nil {
		return nil
	}
	p.mu.Lock()
	client := p.client
	p.client = nil
	p.closed = true
	p.mu.Unlock()

	if client == nil {
		return nil
	}
	return client.Close()
}

// RunTransaction executes fn inside a transaction on the shared client.
func (p *Provider) RunTransaction(ctx context.Context, fn TxFunc, opts ...TxOption) error {
	client, err := p.Client(ctx)
	if err != nil {
		return err
	}
	return RunTransaction(ctx, client, fn, opts...)
}

func (p *Provider) emulatorHost() string {
	if host := strings.TrimSpace(p.cfg.EmulatorHost); host != "" {
		return host
	}
	return strings.TrimSpace(os.Getenv(envEmulatorHost))
}

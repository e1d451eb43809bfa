package secrets

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	referenceScheme     = "secret"
	defaultFallbackFile = ".secrets.local"
	defaultVersion      = "latest"
	metricNamespace     = "github.com/templatemart/api/internal/platform/secrets"
)

var (
	// ErrInvalidReference is returned when a reference is not a secret:// URL.
	ErrInvalidReference = errors.New("secrets: invalid reference")
	// ErrSecretNotFound is returned when neither Secret Manager nor the fallback file has the secret.
	ErrSecretNotFound = errors.New("secrets: secret not found")
)

var secretManagerClientFactory = secretmanager.NewClient

type secretManagerClient interface {
	AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest, opts ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error)
	Close() error
}

// Option configures a Fetcher.
type Option func(*fetcherOptions)

type fetcherOptions struct {
	logger         *zap.Logger
	environment    string
	defaultProject string
	projectMap     map[string]string
	fallbackFile   string
	client         secretManagerClient
	clientOptions  []option.ClientOption
	versionPins    map[string]string
	meter          metric.Meter
}

// WithMeter overrides the meter used for fetch latency and cache hit metrics.
func WithMeter(m metric.Meter) Option {
	return func(o *fetcherOptions) { o.meter = m }
}

// WithLogger sets the logger used for fallback and cache diagnostics.
func WithLogger(logger *zap.Logger) Option {
	return func(o *fetcherOptions) { o.logger = logger }
}

// WithEnvironment selects the project from the project map.
func WithEnvironment(env string) Option {
	return func(o *fetcherOptions) { o.environment = strings.ToLower(strings.TrimSpace(env)) }
}

// WithDefaultProject sets the project used when the reference carries none.
func WithDefaultProject(projectID string) Option {
	return func(o *fetcherOptions) { o.defaultProject = strings.TrimSpace(projectID) }
}

// WithProjectMap maps environment names (dev, stg, prod) to Secret Manager projects.
func WithProjectMap(projects map[string]string) Option {
	return func(o *fetcherOptions) {
		o.projectMap = make(map[string]string, len(projects))
		for env, project := range projects {
			o.projectMap[strings.ToLower(strings.TrimSpace(env))] = strings.TrimSpace(project)
		}
	}
}

// WithFallbackFile overrides the local fallback file path.
func WithFallbackFile(path string) Option {
	return func(o *fetcherOptions) { o.fallbackFile = path }
}

// WithSecretManagerClient injects a client, mainly for tests.
func WithSecretManagerClient(client secretManagerClient) Option {
	return func(o *fetcherOptions) { o.client = client }
}

// WithClientOptions passes options to the Secret Manager client constructor.
func WithClientOptions(opts ...option.ClientOption) Option {
	return func(o *fetcherOptions) { o.clientOptions = append(o.clientOptions, opts...) }
}

// WithVersionPins pins references to explicit secret versions.
func WithVersionPins(pins map[string]string) Option {
	return func(o *fetcherOptions) {
		o.versionPins = make(map[string]string, len(pins))
		for ref, version := range pins {
			o.versionPins[strings.TrimSpace(ref)] = strings.TrimSpace(version)
		}
	}
}

// Fetcher resolves secret:// references against Secret Manager, caching values in memory and
// falling back to a local file when Secret Manager cannot be reached.
type Fetcher struct {
	logger         *zap.Logger
	client         secretManagerClient
	ownsClient     bool
	project        string
	versionPins    map[string]string
	fallbackFile   string
	fallbackOnce   sync.Once
	fallbackValues map[string]string
	fallbackErr    error
	callOptions    []gax.CallOption
	latency        metric.Float64Histogram
	cacheHits      metric.Int64Counter

	mu    sync.RWMutex
	cache map[string]string
}

// NewFetcher constructs a Fetcher. A missing client (no credentials locally) leaves the fetcher
// serving the fallback file only.
func NewFetcher(ctx context.Context, opts ...Option) (*Fetcher, error) {
	options := fetcherOptions{fallbackFile: defaultFallbackFile}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}
	logger := options.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	project := options.defaultProject
	if mapped, ok := options.projectMap[options.environment]; ok && mapped != "" {
		project = mapped
	}

	meter := options.meter
	if meter == nil {
		meter = otel.GetMeterProvider().Meter(metricNamespace)
	}
	latency, err := meter.Float64Histogram("secrets.fetch.latency",
		metric.WithUnit("ms"),
		metric.WithDescription("Latency in milliseconds for secret fetch attempts"),
	)
	if err != nil {
		logger.Warn("secrets: unable to register latency metric", zap.Error(err))
	}
	cacheHits, err := meter.Int64Counter("secrets.fetch.cache_hits",
		metric.WithDescription("Count of cache hits when resolving secrets"),
	)
	if err != nil {
		logger.Warn("secrets: unable to register cache hit metric", zap.Error(err))
	}

	f := &Fetcher{
		logger:       logger.Named("secrets"),
		latency:      latency,
		cacheHits:    cacheHits,
		client:       options.client,
		project:      project,
		versionPins:  options.versionPins,
		fallbackFile: options.fallbackFile,
		cache:        make(map[string]string),
		callOptions: []gax.CallOption{
			gax.WithRetry(func() gax.Retryer {
				return gax.OnCodes([]codes.Code{codes.Unavailable, codes.DeadlineExceeded}, gax.Backoff{
					Initial:    100 * time.Millisecond,
					Max:        2 * time.Second,
					Multiplier: 2,
				})
			}),
		},
	}

	if f.client == nil {
		client, err := secretManagerClientFactory(ctx, options.clientOptions...)
		if err != nil {
			f.logger.Warn("secret manager unavailable, using fallback file only", zap.Error(err))
		} else {
			f.client = client
			f.ownsClient = true
		}
	}
	return f, nil
}

// Resolve returns the plaintext value for ref.
func (f *Fetcher) Resolve(ctx context.Context, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	parsed, err := parseReference(ref)
	if err != nil {
		return "", err
	}
	if pin, ok := f.versionPins[parsed.key]; ok && pin != "" {
		parsed.version = pin
	}
	cacheKey := parsed.cacheKey()

	f.mu.RLock()
	value, ok := f.cache[cacheKey]
	f.mu.RUnlock()
	if ok {
		f.recordCacheHit(ctx, parsed)
		return value, nil
	}

	started := time.Now()
	value, err = f.fetch(ctx, parsed)
	f.recordLatency(ctx, time.Since(started), err)
	if err != nil {
		return "", err
	}

	f.mu.Lock()
	f.cache[cacheKey] = value
	f.mu.Unlock()
	return value, nil
}

// Invalidate drops cached values for ref (all versions).
func (f *Fetcher) Invalidate(ref string) {
	parsed, err := parseReference(strings.TrimSpace(ref))
	if err != nil {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for key := range f.cache {
		if strings.HasPrefix(key, parsed.key+"@") {
			delete(f.cache, key)
		}
	}
}

// Close releases the underlying client when the fetcher created it.
func (f *Fetcher) Close() error {
	if f == nil || f.client == nil || !f.ownsClient {
		return nil
	}
	return f.client.Close()
}

func (f *Fetcher) recordLatency(ctx context.Context, d time.Duration, err error) {
	if f.latency == nil {
		return
	}
	attrs := []attribute.KeyValue{attribute.Bool("error", err != nil)}
	if f.client == nil {
		attrs = append(attrs, attribute.String("source", "fallback"))
	} else {
		attrs = append(attrs, attribute.String("source", "secret_manager"))
	}
	f.latency.Record(ctx, float64(d)/float64(time.Millisecond), metric.WithAttributes(attrs...))
}

func (f *Fetcher) recordCacheHit(ctx context.Context, ref reference) {
	if f.cacheHits == nil {
		return
	}
	f.cacheHits.Add(ctx, 1, metric.WithAttributes(attribute.String("secret", ref.name)))
}

func (f *Fetcher) fetch(ctx context.Context, ref reference) (string, error) {
	if f.client == nil {
		return f.fromFallback(ref)
	}
	project := ref.project
	if project == "" {
		project = f.project
	}
	if project == "" {
		return f.fromFallback(ref)
	}

	resource := fmt.Sprintf("projects/%s/secrets/%s/versions/%s", project, ref.name, ref.version)
	resp, err := f.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{Name: resource}, f.callOptions...)
	if err == nil {
		return string(resp.GetPayload().GetData()), nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return "", ctxErr
	}
	switch status.Code(err) {
	case codes.PermissionDenied, codes.Unauthenticated, codes.Unavailable, codes.DeadlineExceeded:
		f.logger.Warn("secret manager access failed, trying fallback",
			zap.String("secret", ref.name),
			zap.String("code", status.Code(err).String()),
		)
		return f.fromFallback(ref)
	case codes.NotFound:
		return "", fmt.Errorf("%w: %s", ErrSecretNotFound, ref.key)
	default:
		return "", fmt.Errorf("secrets: access %s: %w", ref.name, err)
	}
}

func (f *Fetcher) fromFallback(ref reference) (string, error) {
	f.fallbackOnce.Do(func() {
		f.fallbackValues, f.fallbackErr = loadFallbackFile(f.fallbackFile)
	})
	if f.fallbackErr != nil {
		if errors.Is(f.fallbackErr, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrSecretNotFound, ref.key)
		}
		return "", fmt.Errorf("secrets: read fallback file: %w", f.fallbackErr)
	}
	if value, ok := f.fallbackValues[ref.key]; ok {
		return value, nil
	}
	return "", fmt.Errorf("%w: %s", ErrSecretNotFound, ref.key)
}

type reference struct {
	key     string
	name    string
	project string
	version string
}

func (r reference) cacheKey() string {
	return r.key + "@" + r.project + "/" + r.version
}

func parseReference(raw string) (reference, error) {
	u, err := url.Parse(raw)
	if err != nil || !strings.EqualFold(u.Scheme, referenceScheme) {
		return reference{}, fmt.Errorf("%w: %q", ErrInvalidReference, raw)
	}
	name := strings.Trim(u.Host+u.Path, "/")
	if name == "" {
		return reference{}, fmt.Errorf("%w: %q", ErrInvalidReference, raw)
	}
	query := u.Query()
	version := strings.TrimSpace(query.Get("version"))
	if version == "" {
		version = defaultVersion
	}
	return reference{
		key:     referenceScheme + "://" + name,
		name:    strings.ReplaceAll(name, "/", "_"),
		project: strings.TrimSpace(query.Get("project")),
		version: version,
	}, nil
}

// loadFallbackFile reads "secret://name=value" lines, ignoring blanks and # comments.
func loadFallbackFile(path string) (map[string]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	values := make(map[string]string)
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		ref, err := parseReference(strings.TrimSpace(key))
		if err != nil {
			continue
		}
		values[ref.key] = strings.Trim(strings.TrimSpace(value), `"`)
	}
	return values, scanner.Err()
}

package config

import (
	"bufio"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
)

// SecretResolver resolves secret:// references.
type SecretResolver interface {
	ResolveSecret(ctx context.Context, ref string) (string, error)
}

// SecretResolverFunc adapts ordinary functions to SecretResolver.
type SecretResolverFunc func(context.Context, string) (string, error)

// ResolveSecret resolves the secret using the wrapped function.
func (f SecretResolverFunc) ResolveSecret(ctx context.Context, ref string) (string, error) {
	return f(ctx, ref)
}

// ValidationError is returned when required configuration fields are missing or invalid.
type ValidationError struct {
	fields []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: missing or invalid fields [%s]", strings.Join(e.fields, ", "))
}

// Fields returns a copy of the missing/invalid field list.
func (e *ValidationError) Fields() []string {
	return append([]string(nil), e.fields...)
}

// SecretError describes failures while resolving a secret reference.
type SecretError struct {
	Ref string
	Err error
}

func (e *SecretError) Error() string {
	return fmt.Sprintf("secret resolution failed for ref %q: %v", e.Ref, e.Err)
}

func (e *SecretError) Unwrap() error { return e.Err }

// MissingSecretsError lists required secrets that resolved to empty values.
type MissingSecretsError struct {
	names []string
}

func (e *MissingSecretsError) Error() string {
	return fmt.Sprintf("missing required secrets [%s]", strings.Join(e.RedactedNames(), ", "))
}

// Names returns the config field names of the missing secrets.
func (e *MissingSecretsError) Names() []string {
	return append([]string(nil), e.names...)
}

// RedactedNames returns hashed identifiers safe to log.
func (e *MissingSecretsError) RedactedNames() []string {
	out := make([]string, len(e.names))
	for i, name := range e.names {
		sum := sha256.Sum256([]byte(name))
		out[i] = hex.EncodeToString(sum[:8])
	}
	sort.Strings(out)
	return out
}

var errSecretResolverNotConfigured = errors.New("secret resolver not configured")

// Option customises Load behaviour.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile         string
	envMap          map[string]string
	useSystemEnv    bool
	secret          SecretResolver
	requiredSecrets []string
}

func newLoaderOptions(opts []Option) loaderOptions {
	options := loaderOptions{envFile: defaultEnvFile, useSystemEnv: true}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}
	return options
}

// lookup resolves keys with precedence explicit map > process environment > .env file.
func (o loaderOptions) lookup() (func(string) (string, bool), error) {
	dotenv, err := loadDotEnv(o.envFile)
	if err != nil {
		return nil, err
	}
	return func(key string) (string, bool) {
		if value, ok := o.envMap[key]; ok {
			return value, true
		}
		if o.useSystemEnv {
			if value, ok := os.LookupEnv(key); ok {
				return value, true
			}
		}
		value, ok := dotenv[key]
		return value, ok
	}, nil
}

// WithEnvFile overrides the .env file path. An empty path disables it.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) { o.envFile = path }
}

// WithEnvMap injects values that take precedence over the process environment.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) { o.envMap = values }
}

// WithoutSystemEnv disables reading the process environment.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) { o.useSystemEnv = false }
}

// WithSecretResolver sets the resolver used for secret:// and sm:// references.
func WithSecretResolver(resolver SecretResolver) Option {
	return func(o *loaderOptions) { o.secret = resolver }
}

// WithRequiredSecrets marks config fields (e.g. "Session.HashKey") that must resolve to a value.
func WithRequiredSecrets(names ...string) Option {
	return func(o *loaderOptions) { o.requiredSecrets = append(o.requiredSecrets, names...) }
}

// EnvironmentValues returns the merged environment using the same precedence as Load.
func EnvironmentValues(opts ...Option) (map[string]string, error) {
	options := newLoaderOptions(opts)
	values, err := loadDotEnv(options.envFile)
	if err != nil {
		return nil, err
	}
	if values == nil {
		values = make(map[string]string)
	}
	if options.useSystemEnv {
		for _, entry := range os.Environ() {
			if key, value, ok := strings.Cut(entry, "="); ok && strings.TrimSpace(key) != "" {
				values[strings.TrimSpace(key)] = value
			}
		}
	}
	for key, value := range options.envMap {
		values[key] = value
	}
	return values, nil
}

func resolveSecret(ctx context.Context, value string, resolver SecretResolver) (string, error) {
	trimmed := strings.TrimSpace(value)
	if !strings.HasPrefix(trimmed, "secret://") && !strings.HasPrefix(trimmed, "sm://") {
		return value, nil
	}
	ref := "secret://" + strings.TrimPrefix(strings.TrimPrefix(trimmed, "sm://"), "secret://")
	if resolver == nil {
		return "", &SecretError{Ref: ref, Err: errSecretResolverNotConfigured}
	}
	secret, err := resolver.ResolveSecret(ctx, ref)
	if err != nil {
		return "", &SecretError{Ref: ref, Err: err}
	}
	return secret, nil
}

func findMissingSecrets(required []string, resolved map[string]string) *MissingSecretsError {
	seen := make(map[string]struct{}, len(required))
	var missing []string
	for _, name := range required {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		if resolved[name] == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	sort.Strings(missing)
	return &MissingSecretsError{names: missing}
}

func loadDotEnv(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}
	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: unable to read %s: %w", path, err)
	}
	defer file.Close()

	values := make(map[string]string)
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
		key, value, ok := strings.Cut(line, "=")
		if !ok || strings.TrimSpace(key) == "" {
			continue
		}
		values[strings.TrimSpace(key)] = strings.Trim(strings.TrimSpace(value), "\"'")
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("config: failed parsing %s: %w", path, err)
	}
	return values, nil
}

func stringWithDefault(lookup func(string) (string, bool), key, fallback string) string {
	if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func durationWithDefault(lookup func(string) (string, bool), key string, fallback time.Duration) time.Duration {
	if value, ok := lookup(key); ok {
		if d, err := time.ParseDuration(strings.TrimSpace(value)); err == nil {
			return d
		}
	}
	return fallback
}

func intWithDefault(lookup func(string) (string, bool), key string, fallback int) int {
	if value, ok := lookup(key); ok {
		if parsed, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return parsed
		}
	}
	return fallback
}

func boolWithDefault(lookup func(string) (string, bool), key string, fallback bool) bool {
	value, ok := lookup(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true", "1", "yes", "on":
		return true
	case "false", "0", "no", "off":
		return false
	default:
		return fallback
	}
}

func csvWithDefault(lookup func(string) (string, bool), key, fallback string) []string {
	raw, ok := lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		raw = fallback
	}
	out := []string{}
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

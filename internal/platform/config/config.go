package config

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const (
	defaultEnvFile             = ".env"
	defaultPort                = "8080"
	defaultReadTimeout         = 15 * time.Second
	defaultWriteTimeout        = 30 * time.Second
	defaultIdleTimeout         = 120 * time.Second
	defaultShutdownTimeout     = 10 * time.Second
	defaultVerifyTimeout       = 5 * time.Second
	defaultDatastore           = DatastoreFirestore
	defaultSignedURLTTL        = 15 * time.Minute
	defaultSessionCookie       = "tm_session"
	defaultSessionIdle         = 30 * time.Minute
	defaultSessionLifetime     = 12 * time.Hour
	defaultAccessSequence      = "a,d,m,n"
	defaultAccessChord         = "ctrl+shift+a"
	defaultAccessThreshold     = 5
	defaultAccessTarget        = "logo"
	defaultContactLimit        = 5
	defaultContactWindow       = 10 * time.Minute
	defaultAccessLimit         = 120
	defaultEventsTopic         = "marketplace-events"
	defaultSecurityEnvironment = "local"
	defaultOIDCJWKSURL         = "https://www.googleapis.com/oauth2/v3/certs"
	defaultSecurityIssuer      = "https://accounts.google.com"
	defaultSecurityIAPIssuer   = "https://cloud.google.com/iap"
	minSessionKeyLength        = 32
)

// Datastore backends.
const (
	DatastoreFirestore = "firestore"
	DatastoreMemory    = "memory"
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Server     ServerConfig
	Firebase   FirebaseConfig
	Firestore  FirestoreConfig
	Datastore  DatastoreConfig
	Storage    StorageConfig
	Session    SessionConfig
	Access     AccessConfig
	Events     EventsConfig
	RateLimits RateLimitConfig
	Security   SecurityConfig
}

// ServerConfig configures HTTP server parameters.
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// FirebaseConfig stores Firebase project settings used for admin sign-in.
type FirebaseConfig struct {
	ProjectID       string
	CredentialsFile string
	VerifyTimeout   time.Duration
}

// FirestoreConfig stores database parameters.
type FirestoreConfig struct {
	ProjectID    string
	EmulatorHost string
}

// DatastoreConfig selects the repository backend. The memory backend loads SeedFile.
type DatastoreConfig struct {
	Backend  string
	SeedFile string
}

// StorageConfig configures template asset downloads.
type StorageConfig struct {
	AssetsBucket string
	SignerKey    string
	SignedURLTTL time.Duration
}

// SessionConfig configures the signed browser session cookie.
type SessionConfig struct {
	CookieName  string
	HashKey     string
	BlockKey    string
	IdleTimeout time.Duration
	Lifetime    time.Duration
	Secure      bool
}

// AccessConfig configures the hidden admin entry gestures.
type AccessConfig struct {
	Sequence       []string
	Chord          string
	ClickThreshold int
	ClickTarget    string
}

// EventsConfig configures Pub/Sub publishing. An empty Topic disables events.
type EventsConfig struct {
	ProjectID string
	Topic     string
}

// RateLimitConfig controls request throttling on public write endpoints.
type RateLimitConfig struct {
	ContactPerWindow int
	ContactWindow    time.Duration
	AccessPerMinute  int
}

// SecurityConfig groups server-to-server authentication settings.
type SecurityConfig struct {
	Environment string
	OIDC        OIDCConfig
}

// OIDCConfig controls Google-signed token verification on internal routes.
type OIDCConfig struct {
	JWKSURL  string
	Audience string
	Issuers  []string
}

// Load assembles the application configuration from defaults, the .env file,
// environment variables and Secret Manager references.
func Load(ctx context.Context, opts ...Option) (Config, error) {
	options := newLoaderOptions(opts)
	lookup, err := options.lookup()
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Server: ServerConfig{
			Port:            stringWithDefault(lookup, "API_SERVER_PORT", defaultPort),
			ReadTimeout:     durationWithDefault(lookup, "API_SERVER_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout:    durationWithDefault(lookup, "API_SERVER_WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:     durationWithDefault(lookup, "API_SERVER_IDLE_TIMEOUT", defaultIdleTimeout),
			ShutdownTimeout: durationWithDefault(lookup, "API_SERVER_SHUTDOWN_TIMEOUT", defaultShutdownTimeout),
		},
		Firebase: FirebaseConfig{
			ProjectID:       stringWithDefault(lookup, "API_FIREBASE_PROJECT_ID", ""),
			CredentialsFile: stringWithDefault(lookup, "API_FIREBASE_CREDENTIALS_FILE", ""),
			VerifyTimeout:   durationWithDefault(lookup, "API_FIREBASE_VERIFY_TIMEOUT", defaultVerifyTimeout),
		},
		Firestore: FirestoreConfig{
			ProjectID:    stringWithDefault(lookup, "API_FIRESTORE_PROJECT_ID", ""),
			EmulatorHost: stringWithDefault(lookup, "API_FIRESTORE_EMULATOR_HOST", ""),
		},
		Datastore: DatastoreConfig{
			Backend:  strings.ToLower(stringWithDefault(lookup, "API_DATASTORE", defaultDatastore)),
			SeedFile: stringWithDefault(lookup, "API_DATASTORE_SEED_FILE", ""),
		},
		Storage: StorageConfig{
			AssetsBucket: stringWithDefault(lookup, "API_STORAGE_ASSETS_BUCKET", ""),
			SignerKey:    stringWithDefault(lookup, "API_STORAGE_SIGNER_KEY", ""),
			SignedURLTTL: durationWithDefault(lookup, "API_STORAGE_SIGNED_URL_TTL", defaultSignedURLTTL),
		},
		Session: SessionConfig{
			CookieName:  stringWithDefault(lookup, "API_SESSION_COOKIE_NAME", defaultSessionCookie),
			HashKey:     stringWithDefault(lookup, "API_SESSION_HASH_KEY", ""),
			BlockKey:    stringWithDefault(lookup, "API_SESSION_BLOCK_KEY", ""),
			IdleTimeout: durationWithDefault(lookup, "API_SESSION_IDLE_TIMEOUT", defaultSessionIdle),
			Lifetime:    durationWithDefault(lookup, "API_SESSION_LIFETIME", defaultSessionLifetime),
			Secure:      boolWithDefault(lookup, "API_SESSION_SECURE", true),
		},
		Access: AccessConfig{
			Sequence:       csvWithDefault(lookup, "API_ACCESS_SEQUENCE", defaultAccessSequence),
			Chord:          stringWithDefault(lookup, "API_ACCESS_CHORD", defaultAccessChord),
			ClickThreshold: intWithDefault(lookup, "API_ACCESS_CLICK_THRESHOLD", defaultAccessThreshold),
			ClickTarget:    stringWithDefault(lookup, "API_ACCESS_CLICK_TARGET", defaultAccessTarget),
		},
		Events: EventsConfig{
			ProjectID: stringWithDefault(lookup, "API_EVENTS_PROJECT_ID", ""),
			Topic:     stringWithDefault(lookup, "API_EVENTS_TOPIC", defaultEventsTopic),
		},
		RateLimits: RateLimitConfig{
			ContactPerWindow: intWithDefault(lookup, "API_RATELIMIT_CONTACT", defaultContactLimit),
			ContactWindow:    durationWithDefault(lookup, "API_RATELIMIT_CONTACT_WINDOW", defaultContactWindow),
			AccessPerMinute:  intWithDefault(lookup, "API_RATELIMIT_ACCESS_PER_MIN", defaultAccessLimit),
		},
		Security: SecurityConfig{
			Environment: strings.ToLower(stringWithDefault(lookup, "API_SECURITY_ENVIRONMENT", defaultSecurityEnvironment)),
			OIDC: OIDCConfig{
				JWKSURL:  stringWithDefault(lookup, "API_SECURITY_OIDC_JWKS_URL", defaultOIDCJWKSURL),
				Audience: stringWithDefault(lookup, "API_SECURITY_OIDC_AUDIENCE", ""),
				Issuers:  csvWithDefault(lookup, "API_SECURITY_OIDC_ISSUERS", ""),
			},
		},
	}

	if cfg.Firestore.ProjectID == "" {
		cfg.Firestore.ProjectID = cfg.Firebase.ProjectID
	}
	if cfg.Events.ProjectID == "" {
		cfg.Events.ProjectID = cfg.Firestore.ProjectID
	}
	if len(cfg.Security.OIDC.Issuers) == 0 {
		cfg.Security.OIDC.Issuers = []string{defaultSecurityIssuer, defaultSecurityIAPIssuer}
	}

	resolved := make(map[string]string)
	secretFields := []struct {
		name  string
		field *string
	}{
		{"Session.HashKey", &cfg.Session.HashKey},
		{"Session.BlockKey", &cfg.Session.BlockKey},
		{"Storage.SignerKey", &cfg.Storage.SignerKey},
	}
	for _, target := range secretFields {
		value, err := resolveSecret(ctx, *target.field, options.secret)
		if err != nil {
			return Config{}, err
		}
		*target.field = value
		resolved[target.name] = strings.TrimSpace(value)
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}
	if missing := findMissingSecrets(options.requiredSecrets, resolved); missing != nil {
		return Config{}, missing
	}
	return cfg, nil
}

func validateConfig(cfg Config) error {
	var invalid []string

	if cfg.Server.Port == "" {
		invalid = append(invalid, "Server.Port")
	}
	if cfg.Firebase.ProjectID == "" {
		invalid = append(invalid, "Firebase.ProjectID")
	}
	switch cfg.Datastore.Backend {
	case DatastoreFirestore:
		if cfg.Firestore.ProjectID == "" {
			invalid = append(invalid, "Firestore.ProjectID")
		}
	case DatastoreMemory:
	default:
		invalid = append(invalid, fmt.Sprintf("Datastore.Backend(%s)", cfg.Datastore.Backend))
	}
	if len(cfg.Session.HashKey) < minSessionKeyLength {
		invalid = append(invalid, "Session.HashKey")
	}
	if n := len(cfg.Session.BlockKey); n != 0 && n != 16 && n != 24 && n != 32 {
		invalid = append(invalid, "Session.BlockKey")
	}
	if cfg.Session.IdleTimeout <= 0 || cfg.Session.Lifetime <= 0 {
		invalid = append(invalid, "Session.Timeouts")
	}
	if len(cfg.Access.Sequence) == 0 {
		invalid = append(invalid, "Access.Sequence")
	}
	if cfg.Access.ClickThreshold <= 0 {
		invalid = append(invalid, "Access.ClickThreshold")
	}
	if cfg.RateLimits.ContactPerWindow <= 0 || cfg.RateLimits.ContactWindow <= 0 {
		invalid = append(invalid, "RateLimits.Contact")
	}

	if len(invalid) > 0 {
		return &ValidationError{fields: invalid}
	}
	return nil
}

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/templatemart/api/internal/di"
	"github.com/templatemart/api/internal/handlers"
	"github.com/templatemart/api/internal/platform/auth"
	"github.com/templatemart/api/internal/platform/config"
	"github.com/templatemart/api/internal/platform/events"
	pfirestore "github.com/templatemart/api/internal/platform/firestore"
	"github.com/templatemart/api/internal/platform/observability"
	"github.com/templatemart/api/internal/platform/secrets"
	"github.com/templatemart/api/internal/platform/session"
	platformstorage "github.com/templatemart/api/internal/platform/storage"
	"github.com/templatemart/api/internal/repositories"
	firestoreRepo "github.com/templatemart/api/internal/repositories/firestore"
	"github.com/templatemart/api/internal/repositories/memory"
	"github.com/templatemart/api/internal/services"
)

func main() {
	ctx := context.Background()
	startedAt := time.Now().UTC()

	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("api")
	ctx = observability.WithLogger(ctx, logger)

	envValues, err := config.EnvironmentValues()
	if err != nil {
		logger.Fatal("failed to read environment values", zap.Error(err))
	}

	fetcher, err := newSecretFetcher(ctx, logger, envValues)
	if err != nil {
		logger.Fatal("failed to initialise secret fetcher", zap.Error(err))
	}
	defer func() {
		if err := fetcher.Close(); err != nil {
			logger.Warn("secret fetcher close error", zap.Error(err))
		}
	}()

	cfg, err := config.Load(ctx,
		config.WithSecretResolver(config.SecretResolverFunc(fetcher.Resolve)),
		config.WithRequiredSecrets(requiredSecretNames(envValues)...),
	)
	if err != nil {
		var missing *config.MissingSecretsError
		if errors.As(err, &missing) {
			logger.Fatal("missing required secrets", zap.Strings("secrets", missing.RedactedNames()))
		}
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	buildInfo := buildInfoFromEnv(envValues, cfg, startedAt)
	checks := make([]repositories.DependencyCheck, 0, 4)

	registry, firestoreCheck, err := openRegistry(cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialise datastore", zap.Error(err))
	}
	if firestoreCheck != nil {
		checks = append(checks, *firestoreCheck)
	}

	publisher, pubsubCheck, closeEvents, err := openPublisher(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialise event publisher", zap.Error(err))
	}
	defer closeEvents()
	if pubsubCheck != nil {
		checks = append(checks, *pubsubCheck)
	}

	var urlSigner services.URLSigner
	if signerKey := strings.TrimSpace(cfg.Storage.SignerKey); signerKey != "" {
		signer, err := platformstorage.NewServiceAccountSigner([]byte(signerKey))
		if err != nil {
			logger.Fatal("failed to parse storage signer key", zap.Error(err))
		}
		storageClient, err := platformstorage.NewClient(signer)
		if err != nil {
			logger.Fatal("failed to initialise storage client", zap.Error(err))
		}
		urlSigner = storageClient
	} else {
		logger.Warn("storage signer key not configured; only public download links are served")
	}

	container, err := di.NewContainer(ctx, cfg, registry, di.Infrastructure{
		Events: publisher,
		Signer: urlSigner,
	})
	if err != nil {
		logger.Fatal("failed to initialise services", zap.Error(err))
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := container.Close(closeCtx); err != nil {
			logger.Warn("datastore close error", zap.Error(err))
		}
	}()
	svc := container.Services

	sessions, err := session.NewManager(session.Config{
		CookieName:   cfg.Session.CookieName,
		HashKey:      []byte(cfg.Session.HashKey),
		BlockKey:     []byte(cfg.Session.BlockKey),
		CookieSecure: cfg.Session.Secure,
		IdleTimeout:  cfg.Session.IdleTimeout,
		Lifetime:     cfg.Session.Lifetime,
	})
	if err != nil {
		logger.Fatal("failed to initialise session manager", zap.Error(err))
	}

	authenticator := buildAuthenticator(ctx, logger, cfg)
	oidcMiddleware := buildOIDCMiddleware(logger, cfg)

	if fetcher != nil {
		checks = append(checks, secretManagerCheck(fetcher))
	}
	systemService, err := newSystemService(checks, buildInfo)
	if err != nil {
		logger.Fatal("failed to initialise system service", zap.Error(err))
	}

	publicHandlers := handlers.NewPublicHandlers(
		handlers.WithPublicCatalogService(svc.Catalog),
		handlers.WithPublicAssetService(svc.Assets),
		handlers.WithPublicSettingsService(svc.Settings),
	)
	contactHandlers := handlers.NewContactHandlers(svc.Messages,
		handlers.WithContactRateLimit(cfg.RateLimits.ContactPerWindow, cfg.RateLimits.ContactWindow),
	)
	accessHandlers := handlers.NewAccessHandlers(svc.Access,
		handlers.WithAccessRateLimit(cfg.RateLimits.AccessPerMinute),
		handlers.WithAccessSessions(sessions),
	)
	adminHandlers := handlers.NewAdminHandlers(
		handlers.WithAdminAuthenticator(authenticator),
		handlers.WithAdminCatalogService(svc.AdminCatalog),
		handlers.WithAdminMessageService(svc.Messages),
		handlers.WithAdminDashboardService(svc.Dashboard),
		handlers.WithAdminSettingsService(svc.Settings),
	)
	internalHandlers := handlers.NewInternalHandlers(svc.Dashboard)

	projectID := traceProjectID(cfg)
	middlewares := []func(http.Handler) http.Handler{
		observability.InjectLoggerMiddleware(logger.Named("http")),
		observability.TraceMiddleware(projectID),
		observability.RecoveryMiddleware(logger.Named("http")),
		observability.RequestLoggerMiddleware(projectID),
	}

	healthHandlers := handlers.NewHealthHandlers(handlers.WithHealthSystemService(systemService))

	opts := []handlers.Option{
		handlers.WithMiddlewares(middlewares...),
		handlers.WithHealthHandlers(healthHandlers),
		handlers.WithPublicRoutes(handlers.CombineRoutes(
			publicHandlers.Routes,
			contactHandlers.Routes,
			accessHandlers.Routes,
		)),
		handlers.WithAdminRoutes(adminHandlers.Routes),
	}
	if oidcMiddleware != nil {
		opts = append(opts,
			handlers.WithInternalMiddlewares(oidcMiddleware),
			handlers.WithInternalRoutes(internalHandlers.Routes),
		)
	} else {
		logger.Warn("internal routes disabled: OIDC JWKS url not configured")
	}

	router := handlers.NewRouter(opts...)
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("templatemart api listening", zap.String("datastore", cfg.Datastore.Backend))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

// openRegistry selects the repository backend. The returned check is nil for the memory backend.
func openRegistry(cfg config.Config, logger *zap.Logger) (repositories.Registry, *repositories.DependencyCheck, error) {
	switch cfg.Datastore.Backend {
	case config.DatastoreMemory:
		seed, err := loadSeed(cfg.Datastore.SeedFile)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("using in-memory datastore", zap.String("seed", seedLabel(cfg.Datastore.SeedFile)))
		return memory.NewRegistry(&seed), nil, nil
	case config.DatastoreFirestore, "":
		provider := pfirestore.NewProvider(cfg.Firestore)
		registry, err := firestoreRepo.NewRegistry(provider)
		if err != nil {
			_ = provider.Close()
			return nil, nil, err
		}
		check := repositories.DependencyCheck{
			Name:    "firestore",
			Timeout: 1500 * time.Millisecond,
			Check: func(ctx context.Context) error {
				client, err := provider.Client(ctx)
				if err != nil {
					return err
				}
				_, err = client.Collections(ctx).Next()
				if errors.Is(err, iterator.Done) {
					return nil
				}
				return err
			},
		}
		return registry, &check, nil
	default:
		return nil, nil, fmt.Errorf("unknown datastore backend %q", cfg.Datastore.Backend)
	}
}

func loadSeed(path string) (memory.Seed, error) {
	if strings.TrimSpace(path) == "" {
		return memory.DefaultSeed()
	}
	return memory.LoadSeedFile(path)
}

func seedLabel(path string) string {
	if strings.TrimSpace(path) == "" {
		return "embedded"
	}
	return path
}

// openPublisher connects to the configured Pub/Sub topic, or logs events when none is set.
func openPublisher(ctx context.Context, cfg config.Config, logger *zap.Logger) (events.Publisher, *repositories.DependencyCheck, func(), error) {
	topicName := strings.TrimSpace(cfg.Events.Topic)
	projectID := strings.TrimSpace(cfg.Events.ProjectID)
	if projectID == "" {
		projectID = traceProjectID(cfg)
	}
	if topicName == "" || projectID == "" {
		logger.Info("event topic not configured; events are logged only")
		return events.LogPublisher{Logger: logger.Named("events")}, nil, func() {}, nil
	}

	var opts []option.ClientOption
	if credentials := strings.TrimSpace(cfg.Firebase.CredentialsFile); credentials != "" {
		opts = append(opts, option.WithCredentialsFile(credentials))
	}
	client, err := pubsub.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("pubsub client: %w", err)
	}
	topic := client.Topic(topicName)
	publisher, err := events.NewPubSubPublisher(topic)
	if err != nil {
		_ = client.Close()
		return nil, nil, nil, err
	}

	check := repositories.DependencyCheck{
		Name:    "pubsub",
		Timeout: time.Second,
		Check: func(ctx context.Context) error {
			ok, err := topic.Exists(ctx)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("topic %s not found", topicName)
			}
			return nil
		},
	}
	closer := func() {
		topic.Stop()
		if err := client.Close(); err != nil {
			logger.Warn("pubsub close error", zap.Error(err))
		}
	}
	return publisher, &check, closer, nil
}

// buildAuthenticator returns an authenticator that rejects every admin request when Firebase
// cannot be initialised, so the admin surface never runs open.
func buildAuthenticator(ctx context.Context, logger *zap.Logger, cfg config.Config) *auth.Authenticator {
	if strings.TrimSpace(cfg.Firebase.ProjectID) == "" {
		logger.Warn("auth: firebase project not configured; admin routes will reject requests")
		return auth.NewAuthenticator(nil)
	}
	verifier, err := auth.NewFirebaseVerifier(ctx, cfg.Firebase)
	if err != nil {
		logger.Fatal("failed to initialise firebase verifier", zap.Error(err))
	}
	return auth.NewAuthenticator(verifier, auth.WithVerificationTimeout(cfg.Firebase.VerifyTimeout))
}

func buildInfoFromEnv(env map[string]string, cfg config.Config, started time.Time) services.BuildInfo {
	version := strings.TrimSpace(env["API_BUILD_VERSION"])
	if version == "" {
		version = "dev"
	}
	commit := strings.TrimSpace(env["API_BUILD_COMMIT_SHA"])
	if commit == "" {
		commit = "unknown"
	}
	environment := strings.TrimSpace(cfg.Security.Environment)
	if environment == "" {
		environment = "local"
	}
	return services.BuildInfo{
		Version:     version,
		CommitSHA:   commit,
		Environment: environment,
		Datastore:   cfg.Datastore.Backend,
		StartedAt:   started,
	}
}

func secretManagerCheck(fetcher *secrets.Fetcher) repositories.DependencyCheck {
	const secretHealthReference = "secret://system/healthz?version=latest"
	return repositories.DependencyCheck{
		Name:    "secretManager",
		Timeout: time.Second,
		Check: func(ctx context.Context) error {
			_, err := fetcher.Resolve(ctx, secretHealthReference)
			if err == nil {
				return nil
			}
			if st, ok := status.FromError(err); ok && st.Code() == codes.NotFound {
				return nil
			}
			return err
		},
	}
}

func newSystemService(checks []repositories.DependencyCheck, build services.BuildInfo) (services.SystemService, error) {
	if len(checks) == 0 {
		return nil, errors.New("health: no dependency checks configured")
	}
	repo, err := repositories.NewDependencyHealthRepository(checks)
	if err != nil {
		return nil, err
	}
	return services.NewSystemService(services.SystemServiceDeps{
		HealthRepository: repo,
		Clock:            time.Now,
		Build:            build,
		Optional:         []string{"pubsub", "secretManager"},
	})
}

func buildOIDCMiddleware(logger *zap.Logger, cfg config.Config) func(http.Handler) http.Handler {
	if strings.TrimSpace(cfg.Security.OIDC.JWKSURL) == "" {
		return nil
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	adapter := observability.NewPrintfAdapter(logger)
	cache := auth.NewJWKSCache(cfg.Security.OIDC.JWKSURL, auth.WithJWKSLogger(adapter))
	validator := auth.NewOIDCValidator(cache, auth.WithOIDCLogger(adapter))

	audience := strings.TrimSpace(cfg.Security.OIDC.Audience)
	if audience == "" {
		logger.Warn("auth: OIDC audience not configured; internal routes will reject requests")
	}
	issuers := cfg.Security.OIDC.Issuers
	if len(issuers) == 0 {
		logger.Warn("auth: OIDC issuers not configured; internal routes will reject requests")
	}

	return validator.RequireOIDC(audience, issuers)
}

func traceProjectID(cfg config.Config) string {
	if id := strings.TrimSpace(cfg.Firebase.ProjectID); id != "" {
		return id
	}
	return strings.TrimSpace(cfg.Firestore.ProjectID)
}

func newSecretFetcher(ctx context.Context, logger *zap.Logger, env map[string]string) (*secrets.Fetcher, error) {
	lookup := func(key string) string {
		if env == nil {
			return ""
		}
		return strings.TrimSpace(env[key])
	}

	envLabel := strings.ToLower(lookup("API_SECURITY_ENVIRONMENT"))
	if envLabel == "" {
		envLabel = "local"
	}
	defaultProject := lookup("API_SECRET_DEFAULT_PROJECT_ID")
	if defaultProject == "" {
		defaultProject = lookup("API_FIREBASE_PROJECT_ID")
	}
	fallbackPath := lookup("API_SECRET_FALLBACK_FILE")
	if fallbackPath == "" {
		fallbackPath = ".secrets.local"
	}

	opts := []secrets.Option{
		secrets.WithEnvironment(envLabel),
		secrets.WithLogger(logger.Named("secrets")),
		secrets.WithFallbackFile(fallbackPath),
	}
	if projectMap := secretProjectMapFromEnv(env); len(projectMap) > 0 {
		opts = append(opts, secrets.WithProjectMap(projectMap))
	}
	if defaultProject != "" {
		opts = append(opts, secrets.WithDefaultProject(defaultProject))
	}
	if pins := secretVersionPinsFromEnv(env); len(pins) > 0 {
		opts = append(opts, secrets.WithVersionPins(pins))
	}
	if credentialsFile := lookup("API_FIREBASE_CREDENTIALS_FILE"); credentialsFile != "" {
		opts = append(opts, secrets.WithClientOptions(option.WithCredentialsFile(credentialsFile)))
	}

	return secrets.NewFetcher(ctx, opts...)
}

// requiredSecretNames lists config fields that must resolve from secret references.
func requiredSecretNames(env map[string]string) []string {
	required := []string{"Session.HashKey"}
	if env != nil {
		if strings.TrimSpace(env["API_STORAGE_SIGNER_KEY"]) != "" {
			required = append(required, "Storage.SignerKey")
		}
		if strings.TrimSpace(env["API_SESSION_BLOCK_KEY"]) != "" {
			required = append(required, "Session.BlockKey")
		}
	}
	return uniqueStrings(required)
}

func secretProjectMapFromEnv(env map[string]string) map[string]string {
	projects := make(map[string]string)
	for label, project := range parseKeyValueList(env["API_SECRET_PROJECT_IDS"]) {
		projects[strings.ToLower(label)] = project
	}
	return projects
}

// secretVersionPinsFromEnv parses API_SECRET_VERSION_PINS entries such as
// "prod:secret://session/hash=3". Bare names and sm:// references are normalised to secret://.
func secretVersionPinsFromEnv(env map[string]string) map[string]string {
	pins := make(map[string]string)
	for ref, version := range parseKeyValueList(env["API_SECRET_VERSION_PINS"]) {
		var prefix string
		if idx := strings.Index(ref, ":"); idx > 0 {
			schemeSplit := strings.Index(ref, "://")
			if schemeSplit == -1 || idx < schemeSplit {
				prefix = strings.ToLower(strings.TrimSpace(ref[:idx])) + ":"
				ref = strings.TrimSpace(ref[idx+1:])
			}
		}
		if strings.HasPrefix(ref, "sm://") {
			ref = "secret://" + strings.TrimPrefix(ref, "sm://")
		} else if !strings.HasPrefix(ref, "secret://") {
			ref = "secret://" + ref
		}
		pins[prefix+ref] = version
	}
	return pins
}

func parseKeyValueList(raw string) map[string]string {
	result := make(map[string]string)
	if strings.TrimSpace(raw) == "" {
		return result
	}
	for _, entry := range strings.Split(raw, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(entry), "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if key == "" || value == "" {
			continue
		}
		result[key] = value
	}
	return result
}

func uniqueStrings(values []string) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0, len(values))
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		out = append(out, trimmed)
	}
	sort.Strings(out)
	return out
}

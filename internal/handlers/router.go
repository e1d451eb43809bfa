package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/templatemart/api/internal/platform/httpx"
)

// RouteRegistrar registers a set of routes against the provided router.
type RouteRegistrar func(r chi.Router)

type middlewareFunc = func(http.Handler) http.Handler

// Route groups mounted under the API prefix, in mount order.
const (
	groupPublic   = "public"
	groupAdmin    = "admin"
	groupInternal = "internal"
)

var groupOrder = []string{groupPublic, groupAdmin, groupInternal}

type routeGroup struct {
	routes      RouteRegistrar
	middlewares []middlewareFunc
}

type routerConfig struct {
	prefix  string
	timeout time.Duration
	global  []middlewareFunc
	health  *HealthHandlers
	groups  map[string]*routeGroup
}

// Option customises the router configuration before construction.
type Option func(*routerConfig)

const (
	defaultAPIPrefix      = "/api/v1"
	defaultRequestTimeout = 60 * time.Second
)

// NewRouter builds the chi router: probes at the root and the public, admin and internal
// groups under /api/v1. A group without routes answers 501.
func NewRouter(opts ...Option) chi.Router {
	cfg := &routerConfig{
		prefix:  defaultAPIPrefix,
		timeout: defaultRequestTimeout,
		groups:  make(map[string]*routeGroup, len(groupOrder)),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(cfg)
		}
	}
	if cfg.health == nil {
		cfg.health = NewHealthHandlers()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Timeout(cfg.timeout))
	for _, mw := range cfg.global {
		if mw != nil {
			r.Use(mw)
		}
	}

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		httpx.WriteError(req.Context(), w, httpx.NewError("route_not_found", "no route for "+req.URL.Path, http.StatusNotFound))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		msg := fmt.Sprintf("method %s not allowed on %s", req.Method, req.URL.Path)
		httpx.WriteError(req.Context(), w, httpx.NewError("method_not_allowed", msg, http.StatusMethodNotAllowed))
	})

	r.Get("/healthz", cfg.health.Healthz)
	r.Get("/readyz", cfg.health.Readyz)

	r.Route(cfg.prefix, func(api chi.Router) {
		for _, name := range groupOrder {
			group := cfg.groups[name]
			if group == nil {
				group = &routeGroup{}
			}
			api.Route("/"+name, group.mount(name))
		}
	})
	return r
}

func (g *routeGroup) mount(name string) func(chi.Router) {
	return func(r chi.Router) {
		for _, mw := range g.middlewares {
			if mw != nil {
				r.Use(mw)
			}
		}
		if g.routes == nil {
			notImplemented(r, name)
			return
		}
		g.routes(r)
	}
}

func (cfg *routerConfig) group(name string) *routeGroup {
	g, ok := cfg.groups[name]
	if !ok {
		g = &routeGroup{}
		cfg.groups[name] = g
	}
	return g
}

// CombineRoutes registers several registrars against the same group.
func CombineRoutes(regs ...RouteRegistrar) RouteRegistrar {
	return func(r chi.Router) {
		for _, reg := range regs {
			if reg != nil {
				reg(r)
			}
		}
	}
}

// WithMiddlewares appends global middleware, applied after request ID, real IP and timeout.
func WithMiddlewares(mw ...func(http.Handler) http.Handler) Option {
	return func(cfg *routerConfig) { cfg.global = append(cfg.global, mw...) }
}

// WithRequestTimeout overrides the per-request deadline.
func WithRequestTimeout(d time.Duration) Option {
	return func(cfg *routerConfig) {
		if d > 0 {
			cfg.timeout = d
		}
	}
}

// WithHealthHandlers overrides the handlers used for /healthz and /readyz.
func WithHealthHandlers(h *HealthHandlers) Option {
	return func(cfg *routerConfig) { cfg.health = h }
}

// WithPublicRoutes sets the storefront routes.
func WithPublicRoutes(reg RouteRegistrar) Option {
	return func(cfg *routerConfig) { cfg.group(groupPublic).routes = reg }
}

// WithPublicMiddlewares adds middleware to the public group.
func WithPublicMiddlewares(mw ...func(http.Handler) http.Handler) Option {
	return func(cfg *routerConfig) {
		g := cfg.group(groupPublic)
		g.middlewares = append(g.middlewares, mw...)
	}
}

// WithAdminRoutes sets the back-office routes.
func WithAdminRoutes(reg RouteRegistrar) Option {
	return func(cfg *routerConfig) { cfg.group(groupAdmin).routes = reg }
}

// WithAdminMiddlewares adds middleware to the admin group.
func WithAdminMiddlewares(mw ...func(http.Handler) http.Handler) Option {
	return func(cfg *routerConfig) {
		g := cfg.group(groupAdmin)
		g.middlewares = append(g.middlewares, mw...)
	}
}

// WithInternalRoutes sets the scheduler-facing routes.
func WithInternalRoutes(reg RouteRegistrar) Option {
	return func(cfg *routerConfig) { cfg.group(groupInternal).routes = reg }
}

// WithInternalMiddlewares adds middleware to the internal group, typically OIDC.
func WithInternalMiddlewares(mw ...func(http.Handler) http.Handler) Option {
	return func(cfg *routerConfig) {
		g := cfg.group(groupInternal)
		g.middlewares = append(g.middlewares, mw...)
	}
}

func notImplemented(r chi.Router, name string) {
	handler := func(w http.ResponseWriter, req *http.Request) {
		httpx.WriteError(req.Context(), w, httpx.NewError("not_implemented", name+" routes not implemented", http.StatusNotImplemented))
	}
	r.HandleFunc("/*", handler)
	r.HandleFunc("/", handler)
	r.NotFound(handler)
	r.MethodNotAllowed(handler)
}

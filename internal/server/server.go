package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/ssc-dashboards/portal/internal/backend"
	"github.com/ssc-dashboards/portal/internal/content"
	"github.com/ssc-dashboards/portal/internal/handler"
	"github.com/ssc-dashboards/portal/internal/metrics"
	"github.com/ssc-dashboards/portal/internal/middleware"
	"github.com/ssc-dashboards/portal/internal/nav"
	"github.com/ssc-dashboards/portal/internal/session"
	ws "github.com/ssc-dashboards/portal/internal/websocket"
	"github.com/ssc-dashboards/portal/web"
)

type Config struct {
	Backend        *backend.Client
	Cookies        *session.Cookies
	Content        *content.Store
	Origins        middleware.Origins
	WebsiteURL     string
	RegisterURL    string
	StatusInterval time.Duration
	TrustProxy     bool
}

type Server struct {
	cookies     *session.Cookies
	hub         *ws.Hub
	watcher     *ws.Watcher
	authH       *handler.AuthHandler
	pageH       *handler.PageHandler
	proxyH      *handler.ProxyHandler
	contentH    *handler.ContentHandler
	origins     middleware.Origins
	websiteURL  string
	rateLimiter *middleware.RateLimiter
	clientIP    func(*http.Request) string
	logger      *slog.Logger
}

func New(cfg Config, logger *slog.Logger) (*Server, error) {
	templates, err := handler.LoadTemplates(web.Templates())
	if err != nil {
		return nil, fmt.Errorf("load templates: %w", err)
	}
	catalog, err := web.Catalog()
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}

	metrics.Init()

	hub := ws.NewHub(logger.With("component", "websocket"))
	watcher := ws.NewWatcher(hub, cfg.Backend, cfg.StatusInterval, logger.With("component", "watcher"))

	pageCfg := handler.PageConfig{
		Catalog:     catalog,
		Nudger:      hub,
		Interval:    cfg.StatusInterval,
		RegisterURL: cfg.RegisterURL,
	}

	return &Server{
		cookies:     cfg.Cookies,
		hub:         hub,
		watcher:     watcher,
		authH:       handler.NewAuthHandler(cfg.Backend, cfg.Cookies, templates, logger.With("component", "auth")),
		pageH:       handler.NewPageHandler(cfg.Backend, cfg.Cookies, pageCfg, templates, logger.With("component", "page")),
		proxyH:      handler.NewProxyHandler(cfg.Backend, logger.With("component", "proxy")),
		contentH:    handler.NewContentHandler(cfg.Content, logger.With("component", "content")),
		origins:     cfg.Origins,
		websiteURL:  cfg.WebsiteURL,
		rateLimiter: middleware.NewRateLimiter(),
		clientIP:    middleware.ClientIP(cfg.TrustProxy),
		logger:      logger,
	}, nil
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

// Hub returns the websocket hub.
func (s *Server) Hub() *ws.Hub {
	return s.hub
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	// Public routes
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(web.Static())))
	mux.HandleFunc("GET /health", s.healthHandler)
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET /{$}", s.pageH.Home)
	mux.HandleFunc("/", s.pageH.NotFound)

	mux.HandleFunc("GET /auth/login", s.authH.LoginPage)
	mux.HandleFunc("POST /auth/login", s.rateLimitedHandler(s.authH.Login))
	mux.HandleFunc("GET /auth/logout", s.authH.Logout)
	mux.HandleFunc("POST /auth/logout", s.authH.Logout)

	// Pending accounts
	mux.Handle("GET /waiting", gated(s.pageH.Waiting))
	mux.Handle("POST /waiting/refresh", gated(s.authH.Refresh))
	mux.Handle("GET /waiting/status", gated(s.watcher.Handler()))

	// Admin area
	mux.Handle("GET /admin/dashboard", admin(s.pageH.AdminDashboard))
	mux.Handle("GET /admin/{section}", admin(s.pageH.Section(nav.AreaAdmin)))
	mux.Handle("POST /admin/{section}/{id}/{action}", admin(s.pageH.SectionAction(nav.AreaAdmin)))
	mux.Handle("POST /admin/{section}/{form}", admin(s.pageH.SectionForm(nav.AreaAdmin)))

	// User area
	mux.Handle("GET /user/dashboard", gated(s.pageH.UserDashboard))
	mux.Handle("GET /user/{section}", gated(s.pageH.Section(nav.AreaUser)))
	mux.Handle("POST /user/{section}/{form}", gated(s.pageH.SectionForm(nav.AreaUser)))

	// JSON API
	cors := middleware.CORS(s.websiteURL)
	mux.Handle("GET /api/auth/session", cors(http.HandlerFunc(s.authH.Session)))

	contentCORS := middleware.ContentCORS(s.origins)
	files := contentCORS(http.HandlerFunc(s.contentH.Get))
	mux.Handle("GET /api/admin/content/{path...}", files)
	mux.Handle("OPTIONS /api/admin/content/{path...}", files)

	proxy := cors(s.proxyH)
	mux.Handle("/api/admin/", proxy)
	mux.Handle("/api/user/", proxy)
	mux.Handle("/api/conferences", proxy)
	mux.Handle("/api/conferences/", proxy)

	// Instrument sits directly on the mux so it sees the matched pattern.
	var h http.Handler = metrics.Instrument(mux)
	h = middleware.LoadSession(s.cookies)(h)
	h = middleware.RequestLogger(s.logger.With("component", "http"))(h)
	return middleware.RequestID(h)
}

func gated(h http.HandlerFunc) http.Handler {
	return middleware.RequireRoute(h)
}

func admin(h http.HandlerFunc) http.Handler {
	return middleware.RequireRoute(middleware.RequireAdmin(h))
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) rateLimitedHandler(h http.HandlerFunc) http.HandlerFunc {
	rl := middleware.RateLimit(s.rateLimiter, s.clientIP, 10, time.Minute)
	return func(w http.ResponseWriter, r *http.Request) {
		rl(http.HandlerFunc(h)).ServeHTTP(w, r)
	}
}

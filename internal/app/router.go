package app

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/odyssey-school/odyssey-school/internal/access"
	audithttp "github.com/odyssey-school/odyssey-school/internal/audit/http"
	"github.com/odyssey-school/odyssey-school/internal/auth"
	"github.com/odyssey-school/odyssey-school/internal/observability"
	"github.com/odyssey-school/odyssey-school/internal/platform/httpx"
	"github.com/odyssey-school/odyssey-school/internal/roles"
	"github.com/odyssey-school/odyssey-school/internal/view"
	"github.com/odyssey-school/odyssey-school/jobs"
	"github.com/odyssey-school/odyssey-school/web"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger       *slog.Logger
	Config       *Config
	Templates    *view.Engine
	Gate         *access.Gate
	AuthHandler  *auth.Handler
	RolesHandler *roles.Handler
	AuditHandler *audithttp.Handler
	JobHandler   *jobs.Handler
	Metrics      *observability.Metrics
}

// NewRouter constructs the chi.Router with Odyssey defaults. Every request
// passes the access gate; routes the classifier marks public go straight through.
func NewRouter(params RouterParams) http.Handler {
	logger := params.Logger
	if logger == nil {
		logger = slog.Default()
	}
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)
	if params.Gate != nil {
		r.Use(params.Gate.Middleware)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	pages := pageHandler{logger: logger, templates: params.Templates}
	r.Get("/", pages.render("pages/home.html", "Welcome"))
	r.Get("/sign-up", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, access.SignInPath, http.StatusSeeOther)
	})
	r.Get(access.UnauthorizedPath, pages.unauthorized)

	if params.AuthHandler != nil {
		params.AuthHandler.MountRoutes(r)
	}

	r.Get("/dashboard", pages.dashboard)
	r.Route("/admin", func(r chi.Router) {
		r.Use(access.RequireRoles(access.RoleAdmin))
		r.Get("/dashboard", pages.render("pages/dashboard.html", "Admin dashboard"))
	})
	r.Route("/teacher", func(r chi.Router) {
		r.Use(access.RequireRoles(access.RoleTeacher, access.RoleAdmin))
		r.Get("/dashboard", pages.render("pages/dashboard.html", "Teacher dashboard"))
		r.Get("/observations", pages.render("pages/dashboard.html", "Observations"))
	})
	r.Route("/parent", func(r chi.Router) {
		r.Use(access.RequireRoles(access.RoleParent, access.RoleAdmin))
		r.Get("/dashboard", pages.render("pages/dashboard.html", "Parent dashboard"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/me", me)
		r.Route("/admin", func(r chi.Router) {
			if params.RolesHandler != nil {
				r.Route("/users", params.RolesHandler.MountRoutes)
			}
			if params.AuditHandler != nil {
				r.Route("/access-logs", params.AuditHandler.MountRoutes)
			}
			if params.JobHandler != nil {
				r.Route("/jobs", func(r chi.Router) {
					r.Use(access.RequireRoles(access.RoleAdmin))
					params.JobHandler.MountRoutes(r)
				})
			}
		})
	})

	fileServer := http.StripPrefix("/static/", http.FileServer(http.FS(web.Static())))
	r.Handle("/static/*", staticCacheHandler(fileServer))

	return r
}

type meResponse struct {
	UserID    string    `json:"user_id"`
	Role      string    `json:"role"`
	Home      string    `json:"home"`
	ExpiresAt time.Time `json:"expires_at"`
}

func me(w http.ResponseWriter, r *http.Request) {
	claim, ok := access.ClaimFromContext(r.Context())
	if !ok {
		httpx.Error(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	httpx.JSON(w, http.StatusOK, meResponse{
		UserID:    claim.UserID,
		Role:      string(claim.Role),
		Home:      auth.HomePath(claim.Role),
		ExpiresAt: claim.ExpiresAt.UTC(),
	})
}

type pageHandler struct {
	logger    *slog.Logger
	templates *view.Engine
}

func (p pageHandler) render(name, title string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p.write(w, r, http.StatusOK, name, title)
	}
}

// dashboard sends each role to its own landing page.
func (p pageHandler) dashboard(w http.ResponseWriter, r *http.Request) {
	if claim, ok := access.ClaimFromContext(r.Context()); ok {
		if home := auth.HomePath(claim.Role); home != r.URL.Path {
			http.Redirect(w, r, home, http.StatusFound)
			return
		}
	}
	p.write(w, r, http.StatusOK, "pages/dashboard.html", "Dashboard")
}

func (p pageHandler) unauthorized(w http.ResponseWriter, r *http.Request) {
	p.write(w, r, http.StatusForbidden, "pages/unauthorized.html", "Access denied")
}

func (p pageHandler) write(w http.ResponseWriter, r *http.Request, status int, name, title string) {
	data := view.TemplateData{Title: title, CurrentPath: r.URL.Path}
	if claim, ok := access.ClaimFromContext(r.Context()); ok {
		data.Claim = &claim
		data.Home = auth.HomePath(claim.Role)
	}
	if err := p.templates.Render(w, status, name, data); err != nil {
		p.logger.Error("render page", slog.String("template", name), slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

// staticCacheHandler wraps a file server with Cache-Control headers.
func staticCacheHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=3600")
		next.ServeHTTP(w, r)
	})
}

package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"

	"github.com/odyssey-school/odyssey-school/internal/access"
	"github.com/odyssey-school/odyssey-school/internal/platform/httpx"
	"github.com/odyssey-school/odyssey-school/internal/shared"
	"github.com/odyssey-school/odyssey-school/internal/view"
)

// Handler wires HTTP endpoints for sign-in and sign-out.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	cookies   *shared.SessionCookies
	verifier  access.TokenVerifier
	auditor   access.Auditor
	templates *view.Engine
	validator *validator.Validate
	now       func() time.Time
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, cookies *shared.SessionCookies, verifier access.TokenVerifier, auditor access.Auditor, templates *view.Engine) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:    logger,
		service:   service,
		cookies:   cookies,
		verifier:  verifier,
		auditor:   auditor,
		templates: templates,
		validator: validator.New(),
		now:       time.Now,
	}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/sign-in", h.showSignIn)
	r.With(httprate.LimitByIP(10, time.Minute)).Post("/sign-in", h.handleSignIn)
	r.Post("/sign-out", h.handleSignOut)
}

type signInForm struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type signInResponse struct {
	UserID    string    `json:"user_id"`
	Role      string    `json:"role"`
	ExpiresAt time.Time `json:"expires_at"`
	Home      string    `json:"home"`
}

func (h *Handler) showSignIn(w http.ResponseWriter, r *http.Request) {
	h.renderSignIn(w, http.StatusOK, "", "")
}

func (h *Handler) renderSignIn(w http.ResponseWriter, status int, email, msg string) {
	data := view.TemplateData{Title: "Sign in", CurrentPath: access.SignInPath, Email: email, Error: msg}
	if err := h.templates.Render(w, status, "pages/sign-in.html", data); err != nil {
		h.logger.Error("render sign-in", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func (h *Handler) handleSignIn(w http.ResponseWriter, r *http.Request) {
	api := httpx.WantsJSON(r)
	var form signInForm
	if api {
		if err := httpx.DecodeJSON(r, &form); err != nil {
			httpx.Error(w, http.StatusBadRequest, "Bad Request")
			return
		}
	} else {
		if err := r.ParseForm(); err != nil {
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}
		form = signInForm{Email: r.PostFormValue("email"), Password: r.PostFormValue("password")}
	}

	if err := h.validator.Struct(form); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			h.rejectSignIn(w, r, api, form.Email, http.StatusBadRequest, verrs[0].Field()+" is invalid")
			return
		}
		h.rejectSignIn(w, r, api, form.Email, http.StatusBadRequest, "Invalid input")
		return
	}

	token, claim, err := h.service.SignIn(r.Context(), form.Email, form.Password)
	if err != nil {
		if !errors.Is(err, shared.ErrInvalidCredentials) {
			h.logger.Error("sign in", slog.Any("error", err))
		}
		h.record(r, access.Decision{Outcome: access.OutcomeDenyInvalidSession}, access.TriggerSignIn)
		h.rejectSignIn(w, r, api, form.Email, http.StatusUnauthorized, "Invalid email or password")
		return
	}

	h.cookies.Write(w, token, claim.ExpiresAt)
	h.record(r, access.Decision{Outcome: access.OutcomeAllow, UserID: claim.UserID, Claim: &claim}, access.TriggerSignIn)

	home := HomePath(claim.Role)
	if api {
		httpx.JSON(w, http.StatusOK, signInResponse{
			UserID:    claim.UserID,
			Role:      string(claim.Role),
			ExpiresAt: claim.ExpiresAt,
			Home:      home,
		})
		return
	}
	http.Redirect(w, r, home, http.StatusSeeOther)
}

func (h *Handler) rejectSignIn(w http.ResponseWriter, r *http.Request, api bool, email string, status int, msg string) {
	if api {
		httpx.Error(w, status, msg)
		return
	}
	if status == http.StatusUnauthorized {
		status = http.StatusBadRequest
	}
	h.renderSignIn(w, status, email, msg)
}

func (h *Handler) handleSignOut(w http.ResponseWriter, r *http.Request) {
	token := h.cookies.Token(r)
	h.cookies.Clear(w)
	if token != "" && h.verifier != nil {
		if claim, failure := h.verifier.Verify(r.Context(), token); failure == nil {
			h.record(r, access.Decision{Outcome: access.OutcomeAllow, UserID: claim.UserID, Claim: &claim}, access.TriggerSignOut)
		}
	}
	if httpx.WantsJSON(r) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	http.Redirect(w, r, access.SignInPath, http.StatusSeeOther)
}

func (h *Handler) record(r *http.Request, d access.Decision, trigger access.Trigger) {
	if h.auditor == nil {
		return
	}
	d.RouteID = r.URL.Path
	d.Protected = true
	d.Timestamp = h.now()
	h.auditor.Record(r.Context(), d, access.MetaFromRequest(r, trigger))
}

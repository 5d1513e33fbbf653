package roles

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/odyssey-school/odyssey-school/internal/access"
	"github.com/odyssey-school/odyssey-school/internal/platform/httpx"
	"github.com/odyssey-school/odyssey-school/internal/shared"
)

// Handler manages role management endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers role routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(access.RequireRoles(access.RoleAdmin))
		r.Get("/{id}/role", h.getRole)
		r.Put("/{id}/role", h.changeRole)
	})
}

type roleResponse struct {
	UserID       string `json:"user_id"`
	Role         string `json:"role"`
	PreviousRole string `json:"previous_role,omitempty"`
}

type changeRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=ADMIN TEACHER PARENT admin teacher parent"`
}

func (h *Handler) getRole(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	role, err := h.service.CurrentRole(r.Context(), userID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, roleResponse{UserID: userID, Role: string(role)})
}

func (h *Handler) changeRole(w http.ResponseWriter, r *http.Request) {
	var req changeRoleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "Bad Request")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "role must be one of ADMIN, TEACHER, PARENT")
		return
	}
	role, err := access.ParseRole(req.Role)
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, "role must be one of ADMIN, TEACHER, PARENT")
		return
	}
	userID := chi.URLParam(r, "id")
	previous, err := h.service.ChangeRole(r.Context(), userID, role)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, roleResponse{UserID: userID, Role: string(role), PreviousRole: string(previous)})
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidUserID):
		httpx.Error(w, http.StatusBadRequest, "invalid user id")
	case errors.Is(err, shared.ErrNotFound):
		httpx.RespondError(w, httpx.ErrNotFound)
	default:
		h.logger.Error("roles handler", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}

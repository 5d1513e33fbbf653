package audithttp

import (
	"context"
	"encoding/csv"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/odyssey-school/odyssey-school/internal/access"
	"github.com/odyssey-school/odyssey-school/internal/audit"
	"github.com/odyssey-school/odyssey-school/internal/platform/httpx"
)

const (
	rateLimit        = 10
	rateWindow       = time.Minute
	defaultDateRange = 7 * 24 * time.Hour
	maxDateRange     = 90 * 24 * time.Hour
	exportPageSize   = 100
	maxExportPages   = 50
)

// TimelineService reads the access log.
type TimelineService interface {
	Timeline(ctx context.Context, filters audit.TimelineFilters) (audit.Result, error)
}

// Handler serves the access log to administrators.
type Handler struct {
	logger  *slog.Logger
	service TimelineService
	now     func() time.Time
}

// NewHandler builds a Handler.
func NewHandler(logger *slog.Logger, service TimelineService) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, now: time.Now}
}

// MountRoutes registers the timeline and CSV export endpoints. Callers mount it
// under an admin-only prefix; the handler repeats the role check.
func (h *Handler) MountRoutes(r chi.Router) {
	if h == nil {
		return
	}
	limiter := httprate.Limit(rateLimit, rateWindow,
		httprate.WithKeyFuncs(rateLimitKey),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			httpx.Error(w, http.StatusTooManyRequests, http.StatusText(http.StatusTooManyRequests))
		}),
	)
	r.Group(func(gr chi.Router) {
		gr.Use(access.RequireRoles(access.RoleAdmin))
		gr.Get("/", h.handleTimeline)
		gr.With(limiter).Get("/export.csv", h.handleExport)
	})
}

func rateLimitKey(r *http.Request) (string, error) {
	if claim, ok := access.ClaimFromContext(r.Context()); ok {
		return "user:" + claim.UserID, nil
	}
	key, err := httprate.KeyByIP(r)
	if err != nil {
		return "", err
	}
	return "ip:" + key, nil
}

func (h *Handler) handleTimeline(w http.ResponseWriter, r *http.Request) {
	filters, err := h.parseFilters(r)
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	result, err := h.service.Timeline(r.Context(), filters)
	if err != nil {
		h.logger.Error("access log timeline", slog.Any("error", err))
		httpx.Error(w, http.StatusInternalServerError, "Internal Error")
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	filters, err := h.parseFilters(r)
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	filters.PageSize = exportPageSize
	var rows []audit.Entry
	for page := 1; page <= maxExportPages; page++ {
		filters.Page = page
		result, err := h.service.Timeline(r.Context(), filters)
		if err != nil {
			h.logger.Error("access log export", slog.Any("error", err))
			httpx.Error(w, http.StatusInternalServerError, "Internal Error")
			return
		}
		rows = append(rows, result.Entries...)
		if !result.Paging.HasNext {
			break
		}
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="access-log.csv"`)
	writer := csv.NewWriter(w)
	_ = writer.Write([]string{"timestamp", "user_id", "route_id", "event_type", "ip_address", "user_agent"})
	for _, e := range rows {
		_ = writer.Write([]string{
			e.Timestamp.UTC().Format(time.RFC3339),
			csvCell(e.UserID),
			csvCell(e.RouteID),
			string(e.EventType),
			csvCell(e.IPAddress),
			csvCell(e.UserAgent),
		})
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		h.logger.Warn("write access log csv", slog.Any("error", err))
	}
}

// csvCell stops spreadsheets from evaluating client-controlled values.
func csvCell(v string) string {
	if v != "" && strings.ContainsRune("=+-@\t\r", rune(v[0])) {
		return "'" + v
	}
	return v
}

func (h *Handler) parseFilters(r *http.Request) (audit.TimelineFilters, error) {
	q := r.URL.Query()
	now := h.now()
	filters := audit.TimelineFilters{
		From:        now.Add(-defaultDateRange),
		To:          now,
		UserID:      strings.TrimSpace(q.Get("user")),
		RoutePrefix: strings.TrimSpace(q.Get("route")),
	}
	if raw := strings.TrimSpace(q.Get("from")); raw != "" {
		t, err := time.Parse(time.DateOnly, raw)
		if err != nil {
			return filters, errors.New("invalid from date")
		}
		filters.From = t
	}
	if raw := strings.TrimSpace(q.Get("to")); raw != "" {
		t, err := time.Parse(time.DateOnly, raw)
		if err != nil {
			return filters, errors.New("invalid to date")
		}
		filters.To = t.Add(24 * time.Hour)
	}
	if !filters.To.After(filters.From) {
		return filters, errors.New("to must be after from")
	}
	if filters.To.Sub(filters.From) > maxDateRange {
		return filters, errors.New("date range too large")
	}
	if raw := strings.TrimSpace(q.Get("event")); raw != "" {
		et := audit.EventType(strings.ToLower(raw))
		switch et {
		case audit.EventLogin, audit.EventLogout, audit.EventAccessGranted, audit.EventAccessDenied, audit.EventSessionInvalidated:
			filters.EventType = et
		default:
			return filters, errors.New("unknown event type")
		}
	}
	if raw := q.Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n > audit.MaxPage {
			return filters, errors.New("invalid page")
		}
		filters.Page = n
	}
	if raw := q.Get("page_size"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			filters.PageSize = n
		}
	}
	return filters, nil
}

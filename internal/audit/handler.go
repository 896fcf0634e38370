package audit

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	dErrors "tenantplane/pkg/domain-errors"
	"tenantplane/pkg/platform/httputil"
	adminmw "tenantplane/pkg/platform/middleware/admin"
	"tenantplane/pkg/requestcontext"
)

type Handler struct {
	publisher *Publisher
	logger    *slog.Logger
}

func NewHandler(publisher *Publisher, logger *slog.Logger) *Handler {
	return &Handler{publisher: publisher, logger: logger}
}

// TrailResponse is the audit trail of one tenant, newest first.
type TrailResponse struct {
	Tenant string  `json:"tenant"`
	Events []Event `json:"events"`
}

// RegisterAdmin mounts the trail under the admin tenant routes. Callers put
// it behind the admin token middleware.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Get("/api/admin/tenants/{slug}/audit", h.HandleTrail)
}

func (h *Handler) HandleTrail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	slug := chi.URLParam(r, "slug")

	limit := DefaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 1000 {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "limit must be between 1 and 1000"))
			return
		}
		limit = n
	}

	trail, err := h.publisher.List(ctx, slug, limit)
	if err != nil {
		h.logger.ErrorContext(ctx, "list audit trail failed",
			"error", err,
			"tenant", slug,
			"actor", adminmw.ActorID(ctx),
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, TrailResponse{Tenant: slug, Events: trail})
}

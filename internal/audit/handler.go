package audit

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tillpoint/tillpoint/internal/platform/httpx"
)

// Handler wires the audit listing endpoint.
type Handler struct {
	logger *slog.Logger
	reader *Reader
}

// NewHandler constructs the audit handler.
func NewHandler(logger *slog.Logger, reader *Reader) *Handler {
	return &Handler{logger: logger, reader: reader}
}

// MountRoutes registers audit routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/audit", h.handleList)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	_, _, limit, offset := httpx.Page(r, 100)
	records, err := h.reader.List(r.Context(), Filter{
		Entity:   r.URL.Query().Get("entity"),
		EntityID: r.URL.Query().Get("entity_id"),
		ActorID:  httpx.QueryInt64(r, "actor_id"),
		From:     httpx.QueryDate(r, "from"),
		To:       httpx.QueryDate(r, "to"),
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		h.logger.Error("list audit logs failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": records})
}

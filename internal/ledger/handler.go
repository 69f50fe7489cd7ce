package ledger

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/tillpoint/tillpoint/internal/platform/httpx"
	"github.com/tillpoint/tillpoint/internal/shared"
)

// Handler wires HTTP endpoints for stock adjustments, ledger history and
// alerts.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs the ledger handler.
func NewHandler(logger *slog.Logger, service *Service, validate *validator.Validate) *Handler {
	return &Handler{logger: logger, service: service, validate: validate}
}

// MountRoutes registers stock routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/stock/adjust", h.handleAdjust)
	r.Get("/stock/ledger", h.handleListEntries)
	r.Get("/stock/alerts", h.handleListAlerts)
}

type adjustRequest struct {
	ProductID int64  `json:"product_id" validate:"required,gt=0"`
	Quantity  int64  `json:"quantity"`
	Mode      string `json:"mode" validate:"required,oneof=ADD REMOVE SET WASTE"`
	Notes     string `json:"notes" validate:"required,max=500"`
}

func (h *Handler) handleAdjust(w http.ResponseWriter, r *http.Request) {
	var req adjustRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "malformed JSON")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	entry, err := h.service.Adjust(r.Context(), AdjustmentInput{
		ProductID: req.ProductID,
		Quantity:  req.Quantity,
		Mode:      AdjustMode(req.Mode),
		Notes:     req.Notes,
		ActorID:   actor.ID,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, entry)
}

func (h *Handler) handleListEntries(w http.ResponseWriter, r *http.Request) {
	_, _, limit, offset := httpx.Page(r, 100)
	filter := EntryFilter{
		ProductID: httpx.QueryInt64(r, "product_id"),
		Type:      MovementType(r.URL.Query().Get("type")),
		From:      httpx.QueryDate(r, "from"),
		To:        httpx.QueryDate(r, "to"),
		Limit:     limit,
		Offset:    offset,
	}
	entries, err := h.service.ListEntries(r.Context(), filter)
	if err != nil {
		h.logger.Error("list ledger entries failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": entries})
}

func (h *Handler) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	status := AlertStatus(r.URL.Query().Get("status"))
	alerts, err := h.service.ListAlerts(r.Context(), status)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": alerts})
}

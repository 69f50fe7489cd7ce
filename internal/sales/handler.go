package sales

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/tillpoint/tillpoint/internal/platform/httpx"
	"github.com/tillpoint/tillpoint/internal/printing"
	"github.com/tillpoint/tillpoint/internal/shared"
)

// Handler wires HTTP endpoints for sales.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	printer  printing.ReceiptPrinter
	validate *validator.Validate
}

// NewHandler constructs the sales handler.
func NewHandler(logger *slog.Logger, service *Service, printer printing.ReceiptPrinter, validate *validator.Validate) *Handler {
	return &Handler{logger: logger, service: service, printer: printer, validate: validate}
}

// MountRoutes registers sales routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/sales", h.handleList)
	r.Post("/sales", h.handleCreate)
	r.Get("/sales/{id}", h.handleGet)
	r.Get("/sales/invoice/{invoiceNo}", h.handleGetByInvoice)
	r.Post("/sales/{id}/void", h.handleVoid)
	r.Get("/sales/{id}/receipt", h.handleReceipt)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	page, perPage, limit, offset := httpx.Page(r, 50)
	filter := ListFilter{
		Status:     SaleStatus(r.URL.Query().Get("status")),
		CustomerID: httpx.QueryInt64(r, "customer_id"),
		From:       httpx.QueryDate(r, "from"),
		To:         httpx.QueryDate(r, "to"),
		Limit:      limit,
		Offset:     offset,
	}
	sales, total, err := h.service.ListSales(r.Context(), filter)
	if err != nil {
		h.logger.Error("list sales failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"data":       sales,
		"pagination": shared.NewPagination(page, perPage, total),
	})
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req CreateSaleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "malformed JSON")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	sale, err := h.service.CreateSale(r.Context(), req, actor.ID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, sale)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLParamInt64(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "sale id must be numeric")
		return
	}
	sale, err := h.service.GetSale(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sale)
}

func (h *Handler) handleGetByInvoice(w http.ResponseWriter, r *http.Request) {
	sale, err := h.service.GetSaleByInvoice(r.Context(), chi.URLParam(r, "invoiceNo"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sale)
}

func (h *Handler) handleVoid(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLParamInt64(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "sale id must be numeric")
		return
	}
	var req VoidSaleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "malformed JSON")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	if err := h.service.VoidSale(r.Context(), id, req.Reason, actor.ID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	sale, err := h.service.GetSale(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sale)
}

// handleReceipt renders the sale as a printable receipt. Printing is
// read-only; it never mutates the sale.
func (h *Handler) handleReceipt(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLParamInt64(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "sale id must be numeric")
		return
	}
	sale, err := h.service.GetSale(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	receipt, err := h.printer.Render(r.Context(), receiptFromSale(sale))
	if err != nil {
		h.logger.Error("receipt render failed", slog.Int64("sale_id", id), slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(receipt))
}

func receiptFromSale(sale Sale) printing.Receipt {
	receipt := printing.Receipt{
		InvoiceNo:     sale.InvoiceNo,
		IssuedAt:      sale.CreatedAt,
		Subtotal:      sale.Subtotal,
		Discount:      sale.Discount,
		Tax:           sale.Tax,
		Total:         sale.Total,
		PaymentMethod: sale.PaymentMethod,
		Cancelled:     sale.Status == SaleStatusCancelled,
	}
	for _, item := range sale.Items {
		receipt.Lines = append(receipt.Lines, printing.ReceiptLine{
			Name:           item.ProductName,
			Quantity:       item.Quantity,
			UnitPrice:      item.UnitPrice,
			LineTotal:      item.LineTotal,
			MeasuredWeight: item.MeasuredWeight,
		})
	}
	return receipt
}

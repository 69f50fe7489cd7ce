package httpx

import (
	"errors"
	"net/http"

	"github.com/tillpoint/tillpoint/internal/shared"
)

// RespondError maps domain errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	if ise, ok := shared.AsInsufficientStock(err); ok {
		ProblemWithFields(w, http.StatusConflict, "Insufficient Stock", ise.Error(), map[string]any{
			"product_id": ise.ProductID,
			"sku":        ise.SKU,
			"available":  ise.Available,
			"requested":  ise.Requested,
		})
		return
	}

	switch {
	case errors.Is(err, shared.ErrValidation):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, shared.ErrConflict):
		Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, shared.ErrUnauthorized), errors.Is(err, shared.ErrInvalidCredentials):
		Problem(w, http.StatusUnauthorized, "Unauthorized", "")
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

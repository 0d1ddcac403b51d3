package payment

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/backend-apotek/internal/common"
	"github.com/noah-isme/backend-apotek/internal/order"
)

// Handler exposes the payment confirmation endpoint.
type Handler struct {
	Svc *Service
}

// Confirm handles POST /payments/{orderId}/confirm.
func (h *Handler) Confirm(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, string(order.KindPersistence), "payment service not configured", nil)
		return
	}
	orderID, err := strconv.ParseInt(chi.URLParam(r, "orderId"), 10, 64)
	if err != nil || orderID <= 0 {
		common.JSONError(w, http.StatusBadRequest, string(order.KindValidation), "invalid order id", nil)
		return
	}
	var body struct {
		IntentID string `json:"intent_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.IntentID == "" {
		common.JSONError(w, http.StatusBadRequest, string(order.KindValidation), "intent_id is required", nil)
		return
	}

	status, err := h.Svc.Confirm(r.Context(), orderID, body.IntentID)
	if err != nil {
		switch {
		case errors.Is(err, ErrIntentNotFound):
			common.JSONError(w, http.StatusNotFound, string(order.KindNotFound), err.Error(), nil)
		case errors.Is(err, ErrIntentNotSucceeded):
			common.JSONError(w, http.StatusConflict, string(order.KindValidation), err.Error(), nil)
		default:
			writePaymentOrderError(w, err)
		}
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"order_id": orderID,
		"status":   string(status),
	})
}

func writePaymentOrderError(w http.ResponseWriter, err error) {
	var domainErr *order.Error
	if !errors.As(err, &domainErr) {
		common.JSONError(w, http.StatusInternalServerError, string(order.KindPersistence), "internal error", nil)
		return
	}
	status := http.StatusInternalServerError
	switch domainErr.Kind {
	case order.KindValidation:
		status = http.StatusBadRequest
	case order.KindNotFound:
		status = http.StatusNotFound
	}
	common.JSONError(w, status, string(domainErr.Kind), domainErr.Message, nil)
}

package order

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-apotek/internal/common"
)

// Handler exposes the order API.
type Handler struct {
	Svc *Service
}

// Create handles POST /orders.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, string(KindPersistence), "order service not configured", nil)
		return
	}
	var in Input
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		common.JSONError(w, http.StatusBadRequest, string(KindValidation), "invalid JSON body", nil)
		return
	}
	conf, err := h.Svc.Create(r.Context(), in)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{
		"order_number": conf.OrderNumber,
		"order": map[string]any{
			"id":                       conf.OrderID,
			"order_number":             conf.OrderNumber,
			"status":                   string(conf.Status),
			"total_amount":             jsonNumber(conf.TotalAmount),
			"subtotal_amount":          jsonNumber(conf.SubtotalAmount),
			"quantity_discount_amount": jsonNumber(conf.QuantityDiscount),
			"distance_km":              jsonNumber(conf.DistanceKM),
			"distance_surcharge":       jsonNumber(conf.DistanceSurcharge),
			"express_charge":           jsonNumber(conf.ExpressCharge),
			"is_express":               conf.IsExpress,
		},
	})
}

// Get handles GET /orders/{orderId}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, string(KindPersistence), "order service not configured", nil)
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "orderId"), 10, 64)
	if err != nil || id <= 0 {
		common.JSONError(w, http.StatusBadRequest, string(KindValidation), "invalid order id", nil)
		return
	}
	detail, err := h.Svc.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	items := make([]map[string]any, 0, len(detail.Items))
	for _, it := range detail.Items {
		items = append(items, map[string]any{
			"medicine_id": it.MedicineID,
			"name":        it.MedicineName,
			"quantity":    it.Quantity,
			"unit_price":  jsonNumber(it.UnitPrice),
		})
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"order": map[string]any{
			"id":                 detail.ID,
			"order_number":       detail.Number,
			"status":             string(detail.Status),
			"total_amount":       jsonNumber(detail.TotalAmount),
			"is_express":         detail.IsExpress,
			"delivery_address":   detail.DeliveryAddress,
			"customer_phone":     detail.CustomerPhone,
			"customer_lat":       detail.CustomerLat,
			"customer_lng":       detail.CustomerLng,
			"distance_km":        jsonNumber(detail.DistanceKM),
			"distance_surcharge": jsonNumber(detail.DistanceSurcharge),
			"created_at":         detail.CreatedAt,
			"pharmacy_name":      detail.PharmacyName,
			"pharmacy_lat":       detail.PharmacyLat,
			"pharmacy_lng":       detail.PharmacyLng,
			"items":              items,
		},
	})
}

// PatchStatus handles PATCH /orders/{orderId}/status, the transition
// interface used by the payment and delivery collaborators.
func (h *Handler) PatchStatus(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, string(KindPersistence), "order service not configured", nil)
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "orderId"), 10, 64)
	if err != nil || id <= 0 {
		common.JSONError(w, http.StatusBadRequest, string(KindValidation), "invalid order id", nil)
		return
	}
	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		common.JSONError(w, http.StatusBadRequest, string(KindValidation), "invalid JSON body", nil)
		return
	}
	to, err := ParseStatus(body.Status)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, string(KindValidation), err.Error(), nil)
		return
	}
	status, err := h.Svc.Transition(r.Context(), id, to)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"order_id": id,
		"status":   string(status),
	})
}

func writeDomainError(w http.ResponseWriter, err error) {
	var domainErr *Error
	if !errors.As(err, &domainErr) {
		common.JSONError(w, http.StatusInternalServerError, string(KindPersistence), "internal error", nil)
		return
	}
	var details any
	if domainErr.Kind == KindInsufficientStock && domainErr.MedicineID != 0 {
		details = map[string]any{"medicine_id": domainErr.MedicineID}
	}
	common.JSONError(w, httpStatusFor(domainErr.Kind), string(domainErr.Kind), domainErr.Message, details)
}

func httpStatusFor(kind Kind) int {
	switch kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindInsufficientStock:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func jsonNumber(d decimal.Decimal) json.Number {
	return json.Number(d.String())
}

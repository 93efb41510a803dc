package checkout

import (
	"encoding/json"
	"errors"
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"
	validator "github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/storelane/backoffice/internal/audit"
	"github.com/storelane/backoffice/internal/common"
	"github.com/storelane/backoffice/internal/gate"
)

type Handler struct {
	Svc      *Service
	Validate *validator.Validate
	Logger   zerolog.Logger
}

// CreateOrder handles POST /orders.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "checkout service not configured", nil)
		return
	}
	var payload Input
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if h.Validate != nil {
		if err := h.Validate.Struct(payload); err != nil {
			common.JSONError(w, http.StatusBadRequest, "VALIDATION_FAILED", "invalid checkout payload", validationDetails(err))
			return
		}
	}

	meta := audit.FromRequest(r)
	out, err := h.Svc.CreateOrder(r.Context(), payload, meta)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": out})
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var cartErr *CartInvalidError
	if errors.As(err, &cartErr) {
		common.JSONError(w, http.StatusUnprocessableEntity, "CART_INVALID", "cart failed validation", cartErr.Errors)
		return
	}
	var stockErr *InsufficientStockError
	if errors.As(err, &stockErr) {
		common.JSONError(w, http.StatusConflict, "INSUFFICIENT_STOCK", "stock changed while placing the order, please re-check your cart", map[string]any{
			"itemId": stockErr.OwnerID,
		})
		return
	}
	if errors.Is(err, gate.ErrTenantMissing) {
		h.Logger.Error().
			Str("request_id", chimw.GetReqID(r.Context())).
			Msg("checkout reached storage without tenant context")
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "could not complete your order", correlationDetails(r))
		return
	}
	if errors.Is(err, ErrOrderNumberConflict) {
		common.JSONError(w, http.StatusServiceUnavailable, "TRY_AGAIN", "could not allocate an order number, please retry", nil)
		return
	}
	var appErr *common.AppError
	if errors.As(err, &appErr) {
		status := appErr.HTTPStatus
		if status == 0 {
			status = http.StatusBadRequest
		}
		code := appErr.Code
		if code == "" {
			code = "BAD_REQUEST"
		}
		common.JSONError(w, status, code, appErr.Message, appErr.Details)
		return
	}
	h.Logger.Error().Err(err).
		Str("request_id", chimw.GetReqID(r.Context())).
		Msg("checkout failed")
	common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "could not complete your order", correlationDetails(r))
}

// correlationDetails surfaces the request id so support can find the logged
// failure without the response leaking anything else.
func correlationDetails(r *http.Request) map[string]any {
	reqID := chimw.GetReqID(r.Context())
	if reqID == "" {
		return nil
	}
	return map[string]any{"correlationId": reqID}
}

func validationDetails(err error) any {
	var invalid validator.ValidationErrors
	if !errors.As(err, &invalid) {
		return nil
	}
	details := make([]map[string]string, 0, len(invalid))
	for _, f := range invalid {
		details = append(details, map[string]string{
			"field": f.Namespace(),
			"rule":  f.Tag(),
		})
	}
	return details
}

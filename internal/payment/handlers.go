package payment

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rs/zerolog"

	"github.com/storelane/backoffice/internal/audit"
	"github.com/storelane/backoffice/internal/common"
	"github.com/storelane/backoffice/internal/pricing"
)

type Handler struct {
	Svc      *Service
	Validate *validator.Validate
	Logger   zerolog.Logger
}

type settleRequest struct {
	Provider    string        `json:"provider" validate:"required"`
	Reference   string        `json:"reference" validate:"required"`
	AmountCents pricing.Money `json:"amountCents" validate:"required,gt=0"`
}

// Settle handles POST /orders/{id}/settle.
func (h *Handler) Settle(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "payment service not configured", nil)
		return
	}
	parsed, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid order id", nil)
		return
	}
	var payload settleRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if h.Validate != nil {
		if err := h.Validate.Struct(payload); err != nil {
			common.JSONError(w, http.StatusBadRequest, "VALIDATION_FAILED", "invalid settlement payload", nil)
			return
		}
	}

	err = h.Svc.Settle(r.Context(), Settlement{
		OrderID:     pgtype.UUID{Bytes: parsed, Valid: true},
		Provider:    payload.Provider,
		Reference:   payload.Reference,
		AmountCents: payload.AmountCents,
	}, audit.FromRequest(r))
	switch {
	case err == nil:
		common.JSON(w, http.StatusOK, map[string]any{"data": map[string]string{"status": "PAID"}})
	case errors.Is(err, ErrOrderNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "order not found", nil)
	case errors.Is(err, ErrAlreadySettled):
		common.JSONError(w, http.StatusConflict, "ALREADY_SETTLED", "order is not awaiting payment", nil)
	default:
		h.Logger.Error().Err(err).Msg("settle failed")
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
	}
}

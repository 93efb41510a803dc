package shipping

import (
	"encoding/json"
	"errors"
	"net/http"

	validator "github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/storelane/backoffice/internal/common"
	"github.com/storelane/backoffice/internal/pricing"
)

// Handler exposes shipping quotes over HTTP.
type Handler struct {
	Provider Provider
	Validate *validator.Validate
	Logger   zerolog.Logger
}

type quoteRequest struct {
	Method        string        `json:"method"`
	Country       string        `json:"country" validate:"required"`
	Region        string        `json:"region"`
	SubtotalCents pricing.Money `json:"subtotalCents" validate:"gte=0"`
	ItemCount     int32         `json:"itemCount" validate:"gte=0"`
}

type quoteResponse struct {
	Method        string        `json:"method"`
	CostCents     pricing.Money `json:"costCents"`
	EstimatedDays int32         `json:"estimatedDays,omitempty"`
}

// Quote handles POST /shipping/quote.
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	if h.Provider == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "shipping provider not configured", nil)
		return
	}
	var req quoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_BODY", "invalid JSON body", nil)
		return
	}
	if h.Validate != nil {
		if err := h.Validate.Struct(req); err != nil {
			common.JSONError(w, http.StatusBadRequest, "VALIDATION_FAILED", "invalid quote request", err.Error())
			return
		}
	}

	quote, err := h.Provider.Quote(r.Context(), QuoteReq{
		Method:        req.Method,
		Country:       req.Country,
		Region:        req.Region,
		SubtotalCents: req.SubtotalCents,
		ItemCount:     req.ItemCount,
	})
	if err != nil {
		if errors.Is(err, ErrMethodUnavailable) {
			common.JSONError(w, http.StatusUnprocessableEntity, "SHIPPING_UNAVAILABLE", "no rate for the requested method and destination", nil)
			return
		}
		h.Logger.Error().Err(err).Str("method", req.Method).Msg("shipping quote failed")
		common.JSONError(w, http.StatusBadGateway, "SHIPPING_PROVIDER_ERROR", "could not obtain a shipping quote", nil)
		return
	}

	common.JSONData(w, http.StatusOK, quoteResponse{
		Method:        quote.Method,
		CostCents:     quote.CostCents,
		EstimatedDays: quote.EstimatedDays,
	})
}

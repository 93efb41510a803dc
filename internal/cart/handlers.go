package cart

import (
	"encoding/json"
	"net/http"

	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rs/zerolog"

	"github.com/storelane/backoffice/internal/common"
	"github.com/storelane/backoffice/internal/pricing"
)

type Handler struct {
	Catalog  CatalogStore
	Validate *validator.Validate
	Logger   zerolog.Logger
}

type validateRequest struct {
	Lines []Line `json:"lines" validate:"required,min=1,dive"`
}

type validateResponse struct {
	Valid    bool           `json:"valid"`
	Subtotal pricing.Money  `json:"subtotalCents"`
	Lines    []responseLine `json:"lines"`
	Errors   []LineError    `json:"errors,omitempty"`
}

type responseLine struct {
	ProductID      string        `json:"productId"`
	VariantID      *string       `json:"variantId,omitempty"`
	Name           string        `json:"name"`
	SKU            string        `json:"sku"`
	UnitPrice      pricing.Money `json:"unitPriceCents"`
	Quantity       int32         `json:"quantity"`
	AvailableStock int32         `json:"availableStock"`
	Subtotal       pricing.Money `json:"subtotalCents"`
}

// ValidateCart handles POST /cart/validate. It reports every problem in the
// cart at once; a valid response here is advisory only, checkout re-validates.
func (h *Handler) ValidateCart(w http.ResponseWriter, r *http.Request) {
	if h.Catalog == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart validator not configured", nil)
		return
	}
	var payload validateRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if h.Validate != nil {
		if err := h.Validate.Struct(payload); err != nil {
			common.JSONError(w, http.StatusBadRequest, "VALIDATION_FAILED", "invalid cart payload", nil)
			return
		}
	}

	out, err := Validator{Catalog: h.Catalog}.Validate(r.Context(), payload.Lines)
	if err != nil {
		h.Logger.Error().Err(err).Msg("cart validation failed")
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
		return
	}

	resp := validateResponse{
		Valid:    out.Valid(),
		Subtotal: out.Subtotal,
		Lines:    make([]responseLine, 0, len(out.Lines)),
		Errors:   out.Errors,
	}
	for _, line := range out.Lines {
		resp.Lines = append(resp.Lines, toResponseLine(line))
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": resp})
}

func toResponseLine(line ValidatedLine) responseLine {
	out := responseLine{
		ProductID:      uuidString(line.ProductID),
		Name:           line.Name,
		SKU:            line.SKU,
		UnitPrice:      line.UnitPrice,
		Quantity:       line.Quantity,
		AvailableStock: line.AvailableStock,
		Subtotal:       line.Subtotal,
	}
	if line.VariantID.Valid {
		v := uuidString(line.VariantID)
		out.VariantID = &v
	}
	return out
}

func uuidString(id pgtype.UUID) string {
	return uuid.UUID(id.Bytes).String()
}

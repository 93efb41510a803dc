package order

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rs/zerolog"

	"github.com/storelane/backoffice/internal/common"
)

type Handler struct {
	Store  Store
	Logger zerolog.Logger
}

type orderView struct {
	ID            string     `json:"id"`
	TenantID      string     `json:"tenantId,omitempty"`
	OrderNumber   int64      `json:"orderNumber"`
	CustomerID    *string    `json:"customerId,omitempty"`
	Status        string     `json:"status"`
	PaymentStatus string     `json:"paymentStatus"`
	Subtotal      int64      `json:"subtotalCents"`
	Tax           int64      `json:"taxCents"`
	Shipping      int64      `json:"shippingCents"`
	Discount      int64      `json:"discountCents"`
	Total         int64      `json:"totalCents"`
	CreatedAt     time.Time  `json:"createdAt"`
	Items         []itemView `json:"items,omitempty"`
}

type itemView struct {
	ProductID   string  `json:"productId"`
	VariantID   *string `json:"variantId,omitempty"`
	ProductName string  `json:"productName"`
	SKU         string  `json:"sku"`
	UnitPrice   int64   `json:"unitPriceCents"`
	Quantity    int32   `json:"quantity"`
	Subtotal    int64   `json:"subtotalCents"`
}

// List handles GET /orders with optional status and customer_id filters.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page, perPage := common.ParsePagination(r, 20)
	filter := ListFilter{Status: r.URL.Query().Get("status")}
	if raw := r.URL.Query().Get("customer_id"); raw != "" {
		parsed, err := uuid.Parse(raw)
		if err != nil {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid customer_id", nil)
			return
		}
		filter.CustomerID = pgtype.UUID{Bytes: parsed, Valid: true}
	}

	rows, err := h.Store.List(r.Context(), filter, int32(perPage), int32((page-1)*perPage))
	if err != nil {
		h.Logger.Error().Err(err).Msg("list orders failed")
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
		return
	}
	views := make([]orderView, 0, len(rows))
	for _, row := range rows {
		views = append(views, toView(row, nil, false))
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data": views,
		"meta": common.Pagination{Page: page, PerPage: perPage, TotalItems: len(views)},
	})
}

// Get handles GET /orders/{id}, including line items.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	parsed, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid order id", nil)
		return
	}
	id := pgtype.UUID{Bytes: parsed, Valid: true}

	row, err := h.Store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "order not found", nil)
			return
		}
		h.Logger.Error().Err(err).Msg("get order failed")
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
		return
	}
	items, err := h.Store.Items(r.Context(), id)
	if err != nil {
		h.Logger.Error().Err(err).Msg("get order items failed")
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": toView(row, items, false)})
}

func toView(row Row, items []ItemRow, includeTenant bool) orderView {
	out := orderView{
		ID:            uuid.UUID(row.ID.Bytes).String(),
		OrderNumber:   row.OrderNumber,
		Status:        row.Status,
		PaymentStatus: row.PaymentStatus,
		Subtotal:      row.SubtotalCents,
		Tax:           row.TaxCents,
		Shipping:      row.ShippingCents,
		Discount:      row.DiscountCents,
		Total:         row.TotalCents,
		CreatedAt:     row.CreatedAt,
	}
	if includeTenant && row.TenantID.Valid {
		out.TenantID = uuid.UUID(row.TenantID.Bytes).String()
	}
	if row.CustomerID.Valid {
		v := uuid.UUID(row.CustomerID.Bytes).String()
		out.CustomerID = &v
	}
	for _, item := range items {
		view := itemView{
			ProductID:   uuid.UUID(item.ProductID.Bytes).String(),
			ProductName: item.ProductName,
			SKU:         item.SKU,
			UnitPrice:   item.UnitPriceCents,
			Quantity:    item.Quantity,
			Subtotal:    item.SubtotalCents,
		}
		if item.VariantID.Valid {
			v := uuid.UUID(item.VariantID.Bytes).String()
			view.VariantID = &v
		}
		out.Items = append(out.Items, view)
	}
	return out
}

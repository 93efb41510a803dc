package order

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/storelane/backoffice/internal/common"
)

// AdminHandler serves the support surface. Its store reads across tenants,
// so responses include the owning tenant id on each order.
type AdminHandler struct {
	Store  Store
	Logger zerolog.Logger
}

// List handles GET /admin/orders across all tenants.
func (h *AdminHandler) List(w http.ResponseWriter, r *http.Request) {
	page, perPage := common.ParsePagination(r, 20)
	filter := ListFilter{Status: r.URL.Query().Get("status")}

	rows, err := h.Store.List(r.Context(), filter, int32(perPage), int32((page-1)*perPage))
	if err != nil {
		h.Logger.Error().Err(err).Msg("admin list orders failed")
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
		return
	}
	views := make([]orderView, 0, len(rows))
	for _, row := range rows {
		views = append(views, toView(row, nil, true))
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data": views,
		"meta": common.Pagination{Page: page, PerPage: perPage, TotalItems: len(views)},
	})
}

package catalog

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/noah-isme/backend-promo/internal/common"
	"github.com/noah-isme/backend-promo/internal/promotion"
)

// Handler exposes read-only promotion listing endpoints.
type Handler struct {
	service      *Service
	defaultLimit int
	maxLimit     int
}

// HandlerConfig configures the Handler dependencies.
type HandlerConfig struct {
	Service      *Service
	DefaultLimit int
	MaxLimit     int
}

// NewHandler constructs a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	h := &Handler{service: cfg.Service, defaultLimit: cfg.DefaultLimit, maxLimit: cfg.MaxLimit}
	if h.defaultLimit <= 0 {
		h.defaultLimit = 20
	}
	if h.maxLimit <= 0 {
		h.maxLimit = 100
	}
	return h
}

// Promotions handles GET /api/v1/promotions.
func (h *Handler) Promotions(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "catalog service not configured", nil)
		return
	}
	filter, err := parseFilter(r.URL.Query())
	if err != nil {
		h.writeError(w, err)
		return
	}
	page, err := common.ParsePage(r.URL.Query(), h.defaultLimit, h.maxLimit)
	if err != nil {
		h.writeError(w, err)
		return
	}
	filter.Limit = page.Limit + 1
	filter.Offset = page.Offset()

	items, err := h.service.ListPromotions(r.Context(), filter)
	if err != nil {
		h.writeError(w, err)
		return
	}
	items, meta := common.Paginate(items, page)
	common.JSON(w, http.StatusOK, map[string]any{
		"data":       items,
		"pagination": meta,
	})
}

func parseFilter(q url.Values) (Filter, error) {
	f := Filter{
		Code:     strings.TrimSpace(q.Get("code")),
		ShopCode: strings.TrimSpace(q.Get("shopCode")),
		Currency: strings.ToUpper(strings.TrimSpace(q.Get("currency"))),
		Tag:      strings.TrimSpace(q.Get("tag")),
	}
	if raw := q.Get("scope"); raw != "" {
		scope, err := promotion.ParseScope(raw)
		if err != nil {
			return Filter{}, common.NewAppError("BAD_REQUEST", "invalid scope", http.StatusBadRequest, err)
		}
		f.Scope = scope
	}
	if raw := q.Get("action"); raw != "" {
		action, err := promotion.ParseActionType(raw)
		if err != nil {
			return Filter{}, common.NewAppError("BAD_REQUEST", "invalid action", http.StatusBadRequest, err)
		}
		f.Action = action
	}
	if raw := q.Get("enabled"); raw != "" {
		enabled, err := strconv.ParseBool(raw)
		if err != nil {
			return Filter{}, common.NewAppError("BAD_REQUEST", "enabled must be a boolean", http.StatusBadRequest, err)
		}
		f.Enabled = &enabled
	}
	return f, nil
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	common.WriteError(w, err,
		common.ErrorMapping{Err: ErrInvalidFilter, Status: http.StatusBadRequest, Code: "BAD_REQUEST"},
		common.ErrorMapping{Err: ErrCatalogUnavailable, Status: http.StatusServiceUnavailable, Code: "CATALOG_UNAVAILABLE", Message: "promotion catalog unavailable"},
	)
}

package cart

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-promo/internal/catalog"
	"github.com/noah-isme/backend-promo/internal/common"
)

// Handler wires cart services to HTTP.
type Handler struct {
	Svc      *Service
	Validate *validator.Validate
	// Scale is the number of fractional digits rendered for money fields.
	Scale int32
}

type createRequest struct {
	ShopCode string `json:"shopCode" validate:"required,max=64"`
	Currency string `json:"currency" validate:"required,len=3,alpha"`
}

type shopRequest struct {
	ShopCode string `json:"shopCode" validate:"required,max=64"`
}

type currencyRequest struct {
	Currency string `json:"currency" validate:"required,len=3,alpha"`
}

type qtyRequest struct {
	Qty decimal.Decimal `json:"qty"`
}

type addItemRequest struct {
	SKU string          `json:"sku" validate:"required,max=128"`
	Qty decimal.Decimal `json:"qty"`
}

type deliveryRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type itemView struct {
	SKU               string   `json:"sku"`
	Qty               string   `json:"qty"`
	ListPrice         string   `json:"listPrice"`
	SalePrice         string   `json:"salePrice"`
	Price             string   `json:"price"`
	LineTotal         string   `json:"lineTotal"`
	AppliedPromotions []string `json:"appliedPromotions"`
	PromoApplied      bool     `json:"promoApplied"`
}

type cartView struct {
	ID                 string     `json:"id"`
	ShopCode           string     `json:"shopCode"`
	Currency           string     `json:"currency"`
	State              State      `json:"state"`
	Version            int64      `json:"version"`
	Items              []itemView `json:"items"`
	ListSubTotal       string     `json:"listSubTotal"`
	SubTotal           string     `json:"subTotal"`
	OrderDiscount      string     `json:"orderDiscount"`
	OrderPromotions    []string   `json:"orderPromotions"`
	DeliveryListCost   string     `json:"deliveryListCost"`
	DeliveryCost       string     `json:"deliveryCost"`
	ShippingPromotions []string   `json:"shippingPromotions"`
	Total              string     `json:"total"`
	UpdatedAt          string     `json:"updatedAt"`
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func (h *Handler) view(c *Cart) cartView {
	money := func(d decimal.Decimal) string { return d.StringFixed(h.Scale) }
	items := make([]itemView, 0, len(c.Items))
	for _, it := range c.Items {
		items = append(items, itemView{
			SKU:               it.SKU,
			Qty:               it.Qty.String(),
			ListPrice:         money(it.ListPrice),
			SalePrice:         money(it.SalePrice),
			Price:             money(it.Price),
			LineTotal:         money(it.Price.Mul(it.Qty).Round(h.Scale)),
			AppliedPromotions: nonNil(it.AppliedPromotions),
			PromoApplied:      it.PromoApplied,
		})
	}
	return cartView{
		ID:                 c.ID,
		ShopCode:           c.ShopCode,
		Currency:           c.Currency,
		State:              c.State,
		Version:            c.Version,
		Items:              items,
		ListSubTotal:       money(c.ListSubTotal),
		SubTotal:           money(c.SubTotal),
		OrderDiscount:      money(c.OrderDiscount),
		OrderPromotions:    nonNil(c.OrderPromotions),
		DeliveryListCost:   money(c.DeliveryListCost),
		DeliveryCost:       money(c.DeliveryCost),
		ShippingPromotions: nonNil(c.ShippingPromotions),
		Total:              money(c.Total),
		UpdatedAt:          c.UpdatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
}

func (h *Handler) ready(w http.ResponseWriter) bool {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart service not configured", nil)
		return false
	}
	return true
}

// decode reads the JSON body into dst and runs struct validation.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return false
	}
	if h.Validate == nil {
		return true
	}
	if err := h.Validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make(map[string]string, len(verrs))
			for _, fe := range verrs {
				fields[fe.Field()] = fe.Tag()
			}
			common.JSONError(w, http.StatusBadRequest, "VALIDATION_FAILED", "invalid payload", fields)
			return false
		}
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return false
	}
	return true
}

func (h *Handler) respond(w http.ResponseWriter, status int, c *Cart, err error) {
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, status, h.view(c))
}

// Create handles POST /carts.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	var payload createRequest
	if !h.decode(w, r, &payload) {
		return
	}
	c, err := h.Svc.Create(r.Context(), payload.ShopCode, payload.Currency)
	h.respond(w, http.StatusCreated, c, err)
}

// Get handles GET /carts/{id}. It never reprices.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	c, err := h.Svc.Get(r.Context(), chi.URLParam(r, "id"))
	h.respond(w, http.StatusOK, c, err)
}

// SetShop handles PUT /carts/{id}/shop.
func (h *Handler) SetShop(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	var payload shopRequest
	if !h.decode(w, r, &payload) {
		return
	}
	c, err := h.Svc.SetShop(r.Context(), chi.URLParam(r, "id"), payload.ShopCode)
	h.respond(w, http.StatusOK, c, err)
}

// ChangeCurrency handles PUT /carts/{id}/currency.
func (h *Handler) ChangeCurrency(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	var payload currencyRequest
	if !h.decode(w, r, &payload) {
		return
	}
	c, err := h.Svc.ChangeCurrency(r.Context(), chi.URLParam(r, "id"), payload.Currency)
	h.respond(w, http.StatusOK, c, err)
}

// SetQty handles PUT /carts/{id}/items/{sku}.
func (h *Handler) SetQty(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	var payload qtyRequest
	if !h.decode(w, r, &payload) {
		return
	}
	c, err := h.Svc.SetQty(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "sku"), payload.Qty)
	h.respond(w, http.StatusOK, c, err)
}

// AddItem handles POST /carts/{id}/items.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	var payload addItemRequest
	if !h.decode(w, r, &payload) {
		return
	}
	c, err := h.Svc.AddQty(r.Context(), chi.URLParam(r, "id"), strings.TrimSpace(payload.SKU), payload.Qty)
	h.respond(w, http.StatusOK, c, err)
}

// RemoveItem handles DELETE /carts/{id}/items/{sku}.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	c, err := h.Svc.RemoveSku(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "sku"))
	h.respond(w, http.StatusOK, c, err)
}

// Clear handles DELETE /carts/{id}/items.
func (h *Handler) Clear(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	c, err := h.Svc.Clear(r.Context(), chi.URLParam(r, "id"))
	h.respond(w, http.StatusOK, c, err)
}

// SetDelivery handles PUT /carts/{id}/delivery.
func (h *Handler) SetDelivery(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	var payload deliveryRequest
	if !h.decode(w, r, &payload) {
		return
	}
	c, err := h.Svc.SetDeliveryCost(r.Context(), chi.URLParam(r, "id"), payload.Amount)
	h.respond(w, http.StatusOK, c, err)
}

// Recalculate handles POST /carts/{id}/recalculate.
func (h *Handler) Recalculate(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	c, err := h.Svc.Recalculate(r.Context(), chi.URLParam(r, "id"))
	h.respond(w, http.StatusOK, c, err)
}

var errorMappings = []common.ErrorMapping{
	{Err: ErrInvalidInput, Status: http.StatusBadRequest, Code: "BAD_REQUEST"},
	{Err: ErrSkuNotPriced, Status: http.StatusBadRequest, Code: "SKU_NOT_PRICED"},
	{Err: ErrNotFound, Status: http.StatusNotFound, Code: "NOT_FOUND"},
	{Err: ErrBusy, Status: http.StatusConflict, Code: "CART_BUSY", Message: "cart is being modified by another request"},
	{Err: catalog.ErrCatalogUnavailable, Status: http.StatusServiceUnavailable, Code: "CATALOG_UNAVAILABLE", Message: "prices or promotions unavailable, cart unchanged"},
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	common.WriteError(w, err, errorMappings...)
}

// Routes registers the cart endpoints on r. Write routes go through the
// supplied middlewares (idempotency, rate limiting).
func (h *Handler) Routes(r chi.Router, write ...func(http.Handler) http.Handler) {
	r.Get("/{id}", h.Get)
	r.Group(func(g chi.Router) {
		g.Use(write...)
		g.Post("/", h.Create)
		g.Put("/{id}/shop", h.SetShop)
		g.Put("/{id}/currency", h.ChangeCurrency)
		g.Post("/{id}/items", h.AddItem)
		g.Delete("/{id}/items", h.Clear)
		g.Put("/{id}/items/{sku}", h.SetQty)
		g.Delete("/{id}/items/{sku}", h.RemoveItem)
		g.Put("/{id}/delivery", h.SetDelivery)
		g.Post("/{id}/recalculate", h.Recalculate)
	})
}

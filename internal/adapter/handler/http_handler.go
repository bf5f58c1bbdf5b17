package handler

import (
	"cmp"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/shopspring/decimal"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/core/service"
	"github.com/rl1809/storefront/internal/port"
)

const (
	fallbackPath      = "/"
	maxRequestBody    = 1 << 20
	supportMessage    = "we could not complete your order, please contact support"
	minimumQtyMessage = "this product has a minimum order quantity, contact support for smaller orders"
)

type HTTPHandler struct {
	orderService *service.OrderService
	inventory    port.InventoryLookup
	rules        domain.Rules
	log          *slog.Logger
}

type APIResponse struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
	Data    any               `json:"data,omitempty"`
}

type StockRequest struct {
	ProductIDs []int64 `json:"product_ids"`
}

type ShippingQuoteRequest struct {
	Items              []domain.CartLineItem `json:"items"`
	SelectedProductIDs []int64               `json:"selected_product_ids"`
	DeliveryOption     domain.DeliveryOption `json:"delivery_option"`
}

type ShippingQuoteResponse struct {
	domain.SelectionSummary
	ShippingFee decimal.Decimal `json:"shipping_fee"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

type CheckoutHTTPRequest struct {
	Reference          string                `json:"reference"`
	DeliveryOption     domain.DeliveryOption `json:"delivery_option"`
	ShippingAddress    domain.AddressForm    `json:"shipping_address"`
	BillingAddress     domain.AddressForm    `json:"billing_address"`
	SameAsShipping     bool                  `json:"same_as_shipping"`
	Items              []domain.CartLineItem `json:"items"`
	SelectedProductIDs []int64               `json:"selected_product_ids"`
}

// QuantityRequest changes one variant of a posted cart. Exactly one of Delta,
// Value or Remove is set.
type QuantityRequest struct {
	Items              []domain.CartLineItem `json:"items"`
	SelectedProductIDs []int64               `json:"selected_product_ids"`
	ProductID          int64                 `json:"product_id"`
	VariantID          *string               `json:"variant_id"`
	Delta              *int                  `json:"delta"`
	Value              *string               `json:"value"`
	Remove             bool                  `json:"remove"`
}

type QuantityResponse struct {
	Item    *domain.CartLineItem    `json:"item,omitempty"`
	Summary domain.SelectionSummary `json:"summary"`
}

type OrderView struct {
	OrderNumber   string               `json:"order_number"`
	Reference     string               `json:"reference"`
	PaymentStatus domain.PaymentStatus `json:"payment_status"`
	TotalAmount   decimal.Decimal      `json:"total_amount"`
	Currency      string               `json:"currency"`
}

func NewHTTPHandler(orderService *service.OrderService, inventory port.InventoryLookup, rules domain.Rules, log *slog.Logger) *HTTPHandler {
	return &HTTPHandler{
		orderService: orderService,
		inventory:    inventory,
		rules:        rules,
		log:          log,
	}
}

// Routes builds the router for the storefront API.
func (h *HTTPHandler) Routes(requestTimeout time.Duration) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))

	r.Get("/health", h.HealthCheck)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/stock", h.Stock)
		r.Post("/shipping-quote", h.ShippingQuote)
		r.Post("/cart/quantity", h.CartQuantity)
		r.Post("/checkout", h.Checkout)
		r.Get("/checkout/{reference}/attempts", h.Attempts)
		r.Get("/payments/return", h.PaymentReturn)
		r.Get("/payments/cancel", h.PaymentCancel)
	})

	return r
}

func (h *HTTPHandler) Stock(w http.ResponseWriter, r *http.Request) {
	var req StockRequest
	if !decode(w, r, &req) {
		return
	}
	if len(req.ProductIDs) == 0 {
		writeJSON(w, http.StatusBadRequest, APIResponse{Message: "product_ids is required"})
		return
	}

	levels, err := h.inventory.Lookup(r.Context(), req.ProductIDs)
	if err != nil {
		h.log.Error("stock lookup failed", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, APIResponse{Message: "internal error"})
		return
	}

	snaps := make([]domain.StockSnapshot, 0, len(levels))
	for _, s := range levels {
		snaps = append(snaps, s)
	}
	slices.SortFunc(snaps, func(a, b domain.StockSnapshot) int {
		return cmp.Compare(a.ProductID, b.ProductID)
	})
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Message: "ok", Data: snaps})
}

func (h *HTTPHandler) ShippingQuote(w http.ResponseWriter, r *http.Request) {
	var req ShippingQuoteRequest
	if !decode(w, r, &req) {
		return
	}

	cart, msg := h.buildCart(req.Items, nil)
	if msg != "" {
		writeJSON(w, http.StatusBadRequest, APIResponse{Message: msg})
		return
	}

	sel := domain.SelectProducts(req.SelectedProductIDs...)
	if err := cart.CheckMinimums(sel); err != nil {
		h.writeError(w, err)
		return
	}

	summary := cart.ComputeSelection(sel)
	fee := cart.ComputeShippingFee(summary.Subtotal, req.DeliveryOption)
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Message: "ok",
		Data: ShippingQuoteResponse{
			SelectionSummary: summary,
			ShippingFee:      fee,
			TotalAmount:      summary.Subtotal.Add(fee),
		},
	})
}

func (h *HTTPHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req CheckoutHTTPRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Reference == "" {
		writeJSON(w, http.StatusBadRequest, APIResponse{Message: "reference is required"})
		return
	}

	cart, msg := h.buildCart(req.Items, nil)
	if msg != "" {
		writeJSON(w, http.StatusBadRequest, APIResponse{Message: msg})
		return
	}
	sel := domain.SelectProducts(req.SelectedProductIDs...)
	if err := cart.CheckMinimums(sel); err != nil {
		h.writeError(w, err)
		return
	}

	levels, err := h.inventory.Lookup(r.Context(), cart.ProductIDs())
	if err != nil {
		h.log.Error("stock lookup failed", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, APIResponse{Message: "internal error"})
		return
	}
	for _, li := range cart.Items() {
		if available, ok := levels.StockFor(li.ProductID); ok && sel.Includes(li.ProductID) && li.TotalQuantity > available {
			h.writeError(w, &domain.StockInsufficientError{ProductID: li.ProductID, Requested: li.TotalQuantity, Available: available})
			return
		}
	}

	co := service.NewCheckout(req.Reference)
	if err := co.ChooseDelivery(req.DeliveryOption); err != nil {
		h.writeError(w, err)
		return
	}
	co.SetShippingAddress(req.ShippingAddress)
	co.SetBillingAddress(req.BillingAddress)
	co.SetSameAsShipping(req.SameAsShipping)

	if err := co.AdvanceTo(domain.StepOrderReview); err != nil {
		h.writeError(w, err)
		return
	}

	result, err := h.orderService.Submit(r.Context(), co, cart, sel)
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, APIResponse{
		Success: true,
		Message: "order placed successfully",
		Data:    result,
	})
}

func (h *HTTPHandler) CartQuantity(w http.ResponseWriter, r *http.Request) {
	var req QuantityRequest
	if !decode(w, r, &req) {
		return
	}

	ops := 0
	for _, set := range []bool{req.Delta != nil, req.Value != nil, req.Remove} {
		if set {
			ops++
		}
	}
	if ops != 1 {
		writeJSON(w, http.StatusBadRequest, APIResponse{Message: "exactly one of delta, value or remove is required"})
		return
	}

	ids := make([]int64, 0, len(req.Items))
	for _, li := range req.Items {
		ids = append(ids, li.ProductID)
	}
	levels, err := h.inventory.Lookup(r.Context(), ids)
	if err != nil {
		h.log.Error("stock lookup failed", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, APIResponse{Message: "internal error"})
		return
	}

	cart, msg := h.buildCart(req.Items, levels)
	if msg != "" {
		writeJSON(w, http.StatusBadRequest, APIResponse{Message: msg})
		return
	}

	var resp QuantityResponse
	switch {
	case req.Remove:
		err = cart.RemoveItem(req.ProductID)
	case req.Delta != nil:
		var li domain.CartLineItem
		li, err = cart.ChangeQuantity(req.ProductID, req.VariantID, *req.Delta)
		resp.Item = &li
	default:
		var li domain.CartLineItem
		li, err = cart.SetQuantityInput(req.ProductID, req.VariantID, *req.Value)
		resp.Item = &li
	}
	if err != nil {
		h.writeError(w, err)
		return
	}

	resp.Summary = cart.ComputeSelection(domain.SelectProducts(req.SelectedProductIDs...))
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Message: "ok", Data: resp})
}

func (h *HTTPHandler) Attempts(w http.ResponseWriter, r *http.Request) {
	ref := chi.URLParam(r, "reference")
	remaining, err := h.orderService.RemainingAttempts(r.Context(), ref)
	if err != nil {
		h.log.Error("read attempts failed", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, APIResponse{Message: "internal error"})
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Message: "ok",
		Data:    map[string]int{"remaining_attempts": remaining},
	})
}

func (h *HTTPHandler) PaymentReturn(w http.ResponseWriter, r *http.Request) {
	ref := r.URL.Query().Get("reference")
	if ref == "" {
		h.writeError(w, domain.ErrNotFound)
		return
	}

	order, err := h.orderService.HandlePaymentReturn(r.Context(), ref, r.URL.Query().Get("status"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	msg := "payment pending"
	if order.PaymentStatus == domain.PaymentStatusPaid {
		msg = "payment confirmed"
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Message: msg, Data: toOrderView(order)})
}

func (h *HTTPHandler) PaymentCancel(w http.ResponseWriter, r *http.Request) {
	ref := r.URL.Query().Get("reference")
	if ref == "" {
		h.writeError(w, domain.ErrNotFound)
		return
	}

	order, err := h.orderService.HandlePaymentCancel(r.Context(), ref)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: false, Message: "payment was not completed", Data: toOrderView(order)})
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HTTPHandler) buildCart(items []domain.CartLineItem, stock service.StockSource) (*service.Cart, string) {
	cart := service.NewCart(h.rules, stock)
	for _, li := range items {
		if li.ProductID <= 0 {
			return nil, "product_id is required"
		}
		if len(li.Variants) == 0 {
			return nil, "each item needs at least one variant"
		}
		for _, v := range li.Variants {
			if v.Quantity < 0 || v.UnitPrice.IsNegative() {
				return nil, "quantity and unit_price must not be negative"
			}
		}
		cart.Add(li)
	}
	return cart, ""
}

func toOrderView(o domain.Order) OrderView {
	return OrderView{
		OrderNumber:   o.OrderNumber,
		Reference:     o.Reference,
		PaymentStatus: o.PaymentStatus,
		TotalAmount:   o.TotalAmount,
		Currency:      o.Currency,
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, APIResponse{Message: "invalid request body"})
		return false
	}
	return true
}

func (h *HTTPHandler) writeError(w http.ResponseWriter, err error) {
	var (
		validation *domain.ValidationError
		stock      *domain.StockInsufficientError
		minimum    *domain.MinimumQuantityError
		external   *domain.ExternalServiceError
	)

	switch {
	case errors.As(err, &validation):
		writeJSON(w, http.StatusUnprocessableEntity, APIResponse{Message: "please correct the highlighted fields", Fields: validation.Fields})
	case errors.As(err, &stock):
		writeJSON(w, http.StatusConflict, APIResponse{Message: "not enough stock", Data: stock})
	case errors.As(err, &minimum):
		writeJSON(w, http.StatusUnprocessableEntity, APIResponse{Message: minimumQtyMessage, Data: minimum})
	case errors.Is(err, domain.ErrRetryLimitReached):
		writeJSON(w, http.StatusTooManyRequests, APIResponse{Message: supportMessage})
	case errors.As(err, &external):
		writeJSON(w, http.StatusBadGateway, APIResponse{
			Message: "order could not be completed, please try again",
			Data:    map[string]int{"attempt": external.Attempt},
		})
	case errors.Is(err, domain.ErrDuplicateRequest):
		writeJSON(w, http.StatusConflict, APIResponse{Message: "duplicate request"})
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, APIResponse{Message: "order not found", Data: map[string]string{"fallback": fallbackPath}})
	case errors.Is(err, domain.ErrEmptyCart):
		writeJSON(w, http.StatusBadRequest, APIResponse{Message: "cart is empty"})
	case errors.Is(err, domain.ErrBranchLocked), errors.Is(err, domain.ErrNotInReview), errors.Is(err, domain.ErrInvalidTarget):
		writeJSON(w, http.StatusConflict, APIResponse{Message: err.Error()})
	default:
		h.log.Error("request failed", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, APIResponse{Message: "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

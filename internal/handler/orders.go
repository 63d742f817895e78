package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/tudbom/counter-api/internal/enum"
	"github.com/tudbom/counter-api/internal/middleware"
	"github.com/tudbom/counter-api/internal/service"
)

// OrderSubmitter takes new orders.
// Satisfied by *service.OrderService; narrow interface for testability.
type OrderSubmitter interface {
	Submit(ctx context.Context, req service.SubmitOrderRequest) (*service.OrderReceipt, error)
}

// OrderLifecycle reads orders and moves them between statuses.
// Satisfied by *service.LifecycleService.
type OrderLifecycle interface {
	List(ctx context.Context, req service.ListOrdersRequest) ([]service.OrderView, error)
	Get(ctx context.Context, id int64) (*service.OrderView, error)
	SetStatus(ctx context.Context, id int64, status string) (*service.OrderView, error)
}

// OrderHandler handles order endpoints.
type OrderHandler struct {
	orders    OrderSubmitter
	lifecycle OrderLifecycle
	validate  *validator.Validate
	intake    []func(http.Handler) http.Handler
}

// NewOrderHandler creates a new OrderHandler. intake middlewares wrap only
// order submission (rate limiting).
func NewOrderHandler(orders OrderSubmitter, lifecycle OrderLifecycle, intake ...func(http.Handler) http.Handler) *OrderHandler {
	return &OrderHandler{
		orders:    orders,
		lifecycle: lifecycle,
		validate:  newValidator(),
		intake:    intake,
	}
}

// RegisterRoutes registers order endpoints on the given Chi router.
// Expected to be mounted at /orders behind middleware.Identify.
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.With(h.intake...).Post("/", h.Create)
	r.Get("/", h.List)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireRole(enum.UserRoleStaff, enum.UserRoleAdmin))
		r.Get("/{id}", h.Get)
		r.Patch("/{id}/status", h.UpdateStatus)
		// Older kiosks post status changes.
		r.Post("/{id}/status", h.UpdateStatus)
	})
}

// --- Request / Response types ---

type submitOrderRequest struct {
	CustomerName    *string           `json:"customer_name" validate:"omitempty,max=100"`
	FulfillmentType string            `json:"fulfillment_type" validate:"omitempty,oneof=agora agendado"`
	Items           []submitOrderItem `json:"items" validate:"required,min=1,dive"`
}

type submitOrderItem struct {
	ProductID int64              `json:"product_id" validate:"gte=0"`
	Product   string             `json:"product" validate:"max=200"`
	Quantity  *int32             `json:"quantity" validate:"omitempty,min=1,max=1000"`
	Addons    []submitOrderAddon `json:"addons" validate:"dive"`
}

type submitOrderAddon struct {
	Name     string `json:"nome" validate:"required,max=200"`
	Quantity *int32 `json:"quantidade" validate:"omitempty,min=1,max=1000"`
}

type orderReceiptResponse struct {
	OrderID int64       `json:"order_id"`
	Total   json.Number `json:"total"`
}

type updateStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// toSubmitRequest applies the kiosk defaults: a missing customer_name
// becomes "Cliente", fulfilment defaults to now, and missing quantities to 1.
// A name that is present but blank is kept so the service rejects it.
func (req submitOrderRequest) toSubmitRequest() service.SubmitOrderRequest {
	out := service.SubmitOrderRequest{
		CustomerName:    enum.DefaultCustomerName,
		FulfillmentType: req.FulfillmentType,
		Items:           make([]service.CartLine, len(req.Items)),
	}
	if req.CustomerName != nil {
		out.CustomerName = strings.TrimSpace(*req.CustomerName)
	}
	if out.FulfillmentType == "" {
		out.FulfillmentType = enum.FulfillmentNow
	}
	for i, item := range req.Items {
		line := service.CartLine{
			ProductID: item.ProductID,
			Product:   strings.TrimSpace(item.Product),
			Quantity:  quantityOrOne(item.Quantity),
		}
		for _, a := range item.Addons {
			line.Addons = append(line.Addons, service.CartAddon{
				Name:     strings.TrimSpace(a.Name),
				Quantity: quantityOrOne(a.Quantity),
			})
		}
		out.Items[i] = line
	}
	return out
}

func quantityOrOne(q *int32) int32 {
	if q == nil {
		return 1
	}
	return *q
}

// --- Handlers ---

// Create handles POST /orders.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req submitOrderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return
	}
	if req.CustomerName != nil && strings.TrimSpace(*req.CustomerName) == "" {
		writeError(w, http.StatusBadRequest, service.ErrInvalidCustomerName.Error())
		return
	}

	receipt, err := h.orders.Submit(r.Context(), req.toSubmitRequest())
	if err != nil {
		writeServiceError(w, r, "submit order", err)
		return
	}

	writeJSON(w, http.StatusCreated, orderReceiptResponse{
		OrderID: receipt.OrderID,
		Total:   json.Number(receipt.Total.StringFixed(2)),
	})
}

// List handles GET /orders. Without public=true the caller must be staff.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	public := false
	if s := q.Get("public"); s != "" {
		v, err := strconv.ParseBool(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid public flag")
			return
		}
		public = v
	}
	if !public {
		claims := middleware.ClaimsFromContext(r.Context())
		if claims == nil {
			writeError(w, http.StatusUnauthorized, "not authenticated")
			return
		}
		if !claims.IsStaff() {
			writeError(w, http.StatusForbidden, "insufficient permissions")
			return
		}
	}

	limit, err := intParam(q.Get("limit"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid limit")
		return
	}
	offset, err := intParam(q.Get("offset"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid offset")
		return
	}

	var statuses []string
	for _, s := range q["status"] {
		for _, v := range strings.Split(s, ",") {
			statuses = append(statuses, strings.TrimSpace(v))
		}
	}

	views, err := h.lifecycle.List(r.Context(), service.ListOrdersRequest{
		Statuses: statuses,
		Public:   public,
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		writeServiceError(w, r, "list orders", err)
		return
	}

	resp := make([]service.OrderPayload, len(views))
	for i, v := range views {
		resp[i] = v.Payload(public)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Get handles GET /orders/{id}.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}

	view, err := h.lifecycle.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, "get order", err)
		return
	}
	writeJSON(w, http.StatusOK, view.Payload(false))
}

// UpdateStatus handles PATCH /orders/{id}/status.
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}

	var req updateStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	view, err := h.lifecycle.SetStatus(r.Context(), id, strings.TrimSpace(req.Status))
	if err != nil {
		writeServiceError(w, r, "update order status", err)
		return
	}
	writeJSON(w, http.StatusOK, view.Payload(false))
}

func orderID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid order ID")
		return 0, false
	}
	return id, true
}

// intParam parses an optional integer query parameter. Empty means 0.
func intParam(s string) (int32, error) {
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(s, 10, 32)
	return int32(v), err
}

package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/mvribeiro/zapstore/internal/core/domain"
	"github.com/mvribeiro/zapstore/internal/core/inventory"
	"github.com/mvribeiro/zapstore/internal/core/service"
	"github.com/mvribeiro/zapstore/internal/port"
)

type HTTPHandler struct {
	orderService *service.OrderService
}

func NewHTTPHandler(orderService *service.OrderService) *HTTPHandler {
	return &HTTPHandler{orderService: orderService}
}

// Register wires the order routes onto the mux.
func (h *HTTPHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.HealthCheck)
	mux.HandleFunc("POST /api/orders", h.PlaceOrder)
	mux.HandleFunc("GET /api/orders/{id}", h.GetOrder)
	mux.HandleFunc("PATCH /api/orders/{id}/status", h.UpdateStatus)
	mux.HandleFunc("GET /api/stores/{storeID}/orders", h.ListOrders)
}

type placeOrderRequest struct {
	StoreID        string           `json:"store_id"`
	CustomerName   string           `json:"customer_name"`
	CustomerPhone  string           `json:"customer_phone"`
	CustomerEmail  string           `json:"customer_email,omitempty"`
	Notes          string           `json:"notes,omitempty"`
	IdempotencyKey string           `json:"idempotency_key,omitempty"`
	Items          []placeOrderItem `json:"items"`
}

type placeOrderItem struct {
	ProductVariationID string `json:"product_variation_id"`
	Quantity           int    `json:"quantity"`
}

type orderItemResponse struct {
	ID                 string `json:"id"`
	ProductVariationID string `json:"product_variation_id"`
	Quantity           int    `json:"quantity"`
	UnitPrice          int64  `json:"unit_price"`
}

type orderResponse struct {
	ID            string              `json:"id"`
	StoreID       string              `json:"store_id"`
	CustomerName  string              `json:"customer_name"`
	CustomerPhone string              `json:"customer_phone"`
	CustomerEmail string              `json:"customer_email,omitempty"`
	Status        string              `json:"status"`
	Total         int64               `json:"total"`
	Notes         string              `json:"notes,omitempty"`
	Items         []orderItemResponse `json:"items,omitempty"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

type shortageResponse struct {
	ProductVariationID string `json:"product_variation_id"`
	Requested          int    `json:"requested"`
	Available          int    `json:"available"`
}

type errorResponse struct {
	Error     string             `json:"error"`
	Shortages []shortageResponse `json:"shortages,omitempty"`
}

func (h *HTTPHandler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req placeOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	if req.StoreID == "" || req.CustomerName == "" || req.CustomerPhone == "" || len(req.Items) == 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing required fields"})
		return
	}
	for _, item := range req.Items {
		if item.ProductVariationID == "" || item.Quantity < 1 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "each item needs a variation id and quantity >= 1"})
			return
		}
	}

	lines := make([]domain.Line, len(req.Items))
	for i, item := range req.Items {
		lines[i] = domain.Line{VariationID: item.ProductVariationID, Quantity: item.Quantity}
	}

	order, err := h.orderService.PlaceOrder(r.Context(), service.PlaceOrderInput{
		StoreID:        req.StoreID,
		CustomerName:   req.CustomerName,
		CustomerPhone:  req.CustomerPhone,
		CustomerEmail:  req.CustomerEmail,
		Notes:          req.Notes,
		IdempotencyKey: req.IdempotencyKey,
		Items:          lines,
	})
	if err != nil {
		writePlaceOrderError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toOrderResponse(order))
}

func writePlaceOrderError(w http.ResponseWriter, err error) {
	var stockErr *domain.InsufficientStockError
	if errors.As(err, &stockErr) {
		resp := errorResponse{Error: "insufficient stock"}
		for _, s := range stockErr.Shortages {
			resp.Shortages = append(resp.Shortages, shortageResponse{
				ProductVariationID: s.VariationID,
				Requested:          s.Requested,
				Available:          s.Available,
			})
		}
		writeJSON(w, http.StatusConflict, resp)
		return
	}

	var varErr *domain.VariationNotFoundError
	switch {
	case errors.Is(err, domain.ErrStoreNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "store not found"})
	case errors.As(err, &varErr):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: varErr.Error()})
	case errors.Is(err, service.ErrDuplicateRequest):
		writeJSON(w, http.StatusConflict, errorResponse{Error: "duplicate request"})
	case errors.Is(err, service.ErrEmptyOrder), errors.Is(err, inventory.ErrInvalidQuantity):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func (h *HTTPHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.orderService.GetOrder(r.Context(), r.PathValue("id"))
	if errors.Is(err, domain.ErrOrderNotFound) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "order not found"})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

func (h *HTTPHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	status, ok := domain.ParseStatus(req.Status)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "unknown status: " + req.Status})
		return
	}

	order, err := h.orderService.UpdateOrderStatus(r.Context(), r.PathValue("id"), status)
	if err != nil {
		var transErr *domain.InvalidTransitionError
		switch {
		case errors.Is(err, domain.ErrOrderNotFound):
			writeJSON(w, http.StatusNotFound, errorResponse{Error: "order not found"})
		case errors.As(err, &transErr):
			writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: transErr.Error()})
		default:
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
		}
		return
	}

	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

type listOrdersResponse struct {
	Orders []orderResponse `json:"orders"`
	Total  int             `json:"total"`
	Page   int             `json:"page"`
	Limit  int             `json:"limit"`
}

func (h *HTTPHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := port.ListFilter{
		CustomerName:  q.Get("customer_name"),
		CustomerPhone: q.Get("customer_phone"),
	}
	filter.Page, _ = strconv.Atoi(q.Get("page"))
	filter.Limit, _ = strconv.Atoi(q.Get("limit"))

	if s := q.Get("status"); s != "" {
		status, ok := domain.ParseStatus(s)
		if !ok {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "unknown status: " + s})
			return
		}
		filter.Status = status
	}

	orders, total, err := h.orderService.ListOrders(r.Context(), r.PathValue("storeID"), filter)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}

	resp := listOrdersResponse{
		Orders: make([]orderResponse, 0, len(orders)),
		Total:  total,
		Page:   filter.Page,
		Limit:  filter.Limit,
	}
	if resp.Page < 1 {
		resp.Page = 1
	}
	if resp.Limit < 1 {
		resp.Limit = 20
	}
	for _, order := range orders {
		resp.Orders = append(resp.Orders, toOrderResponse(order))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func toOrderResponse(order domain.Order) orderResponse {
	resp := orderResponse{
		ID:            order.ID,
		StoreID:       order.StoreID,
		CustomerName:  order.CustomerName,
		CustomerPhone: order.CustomerPhone,
		CustomerEmail: order.CustomerEmail,
		Status:        string(order.Status),
		Total:         order.Total,
		Notes:         order.Notes,
		CreatedAt:     order.CreatedAt,
		UpdatedAt:     order.UpdatedAt,
	}
	for _, item := range order.Items {
		resp.Items = append(resp.Items, orderItemResponse{
			ID:                 item.ID,
			ProductVariationID: item.ProductVariationID,
			Quantity:           item.Quantity,
			UnitPrice:          item.UnitPrice,
		})
	}
	return resp
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

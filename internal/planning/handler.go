package planning

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/foundry-erp/foundry-erp/internal/platform/httpx"
)

// Handler wires HTTP endpoints for production orders and planning.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs the planning handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers planning routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/orders", h.handleListOrders)
	r.Post("/orders", h.handleCreateOrder)
	r.Get("/orders/{id}", h.handleGetOrder)
	r.Post("/orders/{id}/status", h.handleUpdateStatus)
	r.Get("/orders/{id}/plan", h.handlePlan)
	r.Get("/requirements", h.handleConsolidate)
	r.Get("/suggestions/purchase", h.handleSuggestions(h.service.PurchaseSuggestions))
	r.Get("/suggestions/production", h.handleSuggestions(h.service.ProductionSuggestions))
}

// OrderForm carries a production order creation payload.
type OrderForm struct {
	Number         string          `json:"number"`
	ProductID      int64           `json:"product_id" validate:"required,gt=0"`
	Quantity       decimal.Decimal `json:"quantity"`
	ScheduledStart time.Time       `json:"scheduled_start" validate:"required"`
	ActorID        int64           `json:"actor_id"`
}

// StatusForm carries a status transition payload.
type StatusForm struct {
	Status  string `json:"status" validate:"required,oneof=PLANNED RELEASED IN_PROGRESS COMPLETED CANCELLED"`
	ActorID int64  `json:"actor_id"`
}

func (h *Handler) handleListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.service.ListOpenOrders(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": orders})
}

func (h *Handler) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var form OrderForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", err.Error())
		return
	}
	if err := h.validate.Struct(form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	created, err := h.service.CreateOrder(r.Context(), OrderInput{
		Number:         form.Number,
		ProductID:      form.ProductID,
		Quantity:       form.Quantity,
		ScheduledStart: form.ScheduledStart,
		ActorID:        form.ActorID,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	order, err := h.service.GetOrder(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func (h *Handler) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var form StatusForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", err.Error())
		return
	}
	if err := h.validate.Struct(form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	order, err := h.service.UpdateOrderStatus(r.Context(), id, OrderStatus(form.Status), form.ActorID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func (h *Handler) handlePlan(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	plan, err := h.service.PlanForOrder(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, plan)
}

func (h *Handler) handleConsolidate(w http.ResponseWriter, r *http.Request) {
	ids, err := httpx.ParseIDList(r.URL.Query().Get("order_ids"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid IDs", "order_ids must be a comma separated list of order ids")
		return
	}
	requirements, err := h.service.Consolidate(r.Context(), ids)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": requirements})
}

func (h *Handler) handleSuggestions(fn func(ctx context.Context, orderIDs []int64) ([]Suggestion, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ids, err := httpx.ParseIDList(r.URL.Query().Get("order_ids"))
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid IDs", "order_ids must be a comma separated list of order ids")
			return
		}
		suggestions, err := fn(r.Context(), ids)
		if err != nil {
			h.respondError(w, err)
			return
		}
		httpx.JSON(w, http.StatusOK, map[string]any{"items": suggestions})
	}
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "order id must be numeric")
		return 0, false
	}
	return id, true
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrOrderNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrInvalidOrder):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrInvalidTransition):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, ErrComponentMissing):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Data Integrity", err.Error())
	default:
		h.logger.Error("planning request failed", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}

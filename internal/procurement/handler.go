package procurement

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

// Handler wires HTTP endpoints for purchase orders.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs the procurement handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers procurement routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.handleList)
	r.Post("/", h.handleCreate)
	r.Get("/{id}", h.handleGet)
	r.Post("/{id}/submit", h.transition(h.service.Submit))
	r.Post("/{id}/approve", h.transition(h.service.Approve))
	r.Post("/{id}/confirm", h.transition(h.service.Confirm))
	r.Post("/{id}/cancel", h.transition(h.service.Cancel))
	r.Post("/{id}/receipts", h.handleReceive)
	r.Get("/on-order", h.handleOnOrder)
}

// LineForm carries one position of a purchase order payload.
type LineForm struct {
	ProductID  int64           `json:"product_id" validate:"required,gt=0"`
	OrderedQty decimal.Decimal `json:"ordered_qty"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
}

// CreateForm carries a purchase order creation payload.
type CreateForm struct {
	Number       string     `json:"number"`
	SupplierName string     `json:"supplier_name" validate:"required"`
	ExpectedDate time.Time  `json:"expected_date"`
	Lines        []LineForm `json:"lines" validate:"required,min=1,dive"`
	ActorID      int64      `json:"actor_id"`
}

// ReceiptForm carries a goods receipt payload.
type ReceiptForm struct {
	Lines []struct {
		LineID   int64           `json:"line_id" validate:"required,gt=0"`
		Quantity decimal.Decimal `json:"quantity"`
	} `json:"lines" validate:"required,min=1,dive"`
	ActorID int64 `json:"actor_id"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	orders, err := h.service.List(r.Context(), POStatus(r.URL.Query().Get("status")), limit)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSONList(w, orders, httpx.NewListMeta(1, limit, len(orders)))
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var form CreateForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", err.Error())
		return
	}
	if err := h.validate.Struct(form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	input := CreateInput{
		Number:       form.Number,
		SupplierName: form.SupplierName,
		ExpectedDate: form.ExpectedDate,
		ActorID:      form.ActorID,
	}
	for _, line := range form.Lines {
		input.Lines = append(input.Lines, LineInput{ProductID: line.ProductID, OrderedQty: line.OrderedQty, UnitPrice: line.UnitPrice})
	}
	created, err := h.service.Create(r.Context(), input)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	po, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, po)
}

func (h *Handler) transition(fn func(ctx context.Context, poID, actorID int64) (PurchaseOrder, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := h.pathID(w, r)
		if !ok {
			return
		}
		po, err := fn(r.Context(), id, 0)
		if err != nil {
			h.respondError(w, err)
			return
		}
		httpx.JSON(w, http.StatusOK, po)
	}
}

func (h *Handler) handleReceive(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var form ReceiptForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", err.Error())
		return
	}
	if err := h.validate.Struct(form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	input := ReceiptInput{POID: id, ActorID: form.ActorID}
	for _, line := range form.Lines {
		input.Lines = append(input.Lines, ReceiptLine{LineID: line.LineID, Quantity: line.Quantity})
	}
	po, err := h.service.ReceiveGoods(r.Context(), input)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, po)
}

func (h *Handler) handleOnOrder(w http.ResponseWriter, r *http.Request) {
	ids, err := httpx.ParseIDList(r.URL.Query().Get("ids"))
	if err != nil || len(ids) == 0 {
		httpx.Problem(w, http.StatusBadRequest, "Invalid IDs", "ids must be a comma separated list of product ids")
		return
	}
	sums, err := h.service.OnOrderQuantities(r.Context(), ids)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sums)
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "purchase order id must be numeric")
		return 0, false
	}
	return id, true
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrLineNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrInvalidLine):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrReceiptExceedsOrdered):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	default:
		h.logger.Error("procurement request failed", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}

package ledger

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/foundry-erp/foundry-erp/internal/platform/httpx"
	"github.com/foundry-erp/foundry-erp/internal/shared"
)

// Handler wires HTTP endpoints for the movement ledger.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs the ledger handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers ledger routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/movements/entries", h.handlePost(h.service.PostEntry))
	r.Post("/movements/exits", h.handlePost(h.service.PostExit))
	r.Post("/movements/adjustments", h.handlePost(h.service.PostAdjustment))
	r.Get("/products/{id}/balance", h.handleBalance)
	r.Get("/products/{id}/movements", h.handleMovements)
	r.Get("/balances", h.handleBalances)
}

// MovementForm carries a movement posting payload.
type MovementForm struct {
	ProductID     int64           `json:"product_id" validate:"required,gt=0"`
	Quantity      decimal.Decimal `json:"quantity"`
	Reference     string          `json:"reference"`
	ReferenceKind string          `json:"reference_kind" validate:"omitempty,oneof=MANUAL RECEIPT CONSUMPTION CORRECTION"`
	ActorID       int64           `json:"actor_id"`
}

func (h *Handler) handlePost(post func(ctx context.Context, input MovementInput) (Movement, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var form MovementForm
		if err := httpx.DecodeJSON(r, &form); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", err.Error())
			return
		}
		if err := h.validate.Struct(form); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
			return
		}
		movement, err := post(r.Context(), MovementInput{
			ProductID:     form.ProductID,
			Quantity:      form.Quantity,
			Reference:     form.Reference,
			ReferenceKind: ReferenceKind(form.ReferenceKind),
			ActorID:       form.ActorID,
		})
		if err != nil {
			h.respondError(w, err)
			return
		}
		httpx.JSON(w, http.StatusCreated, movement)
	}
}

func (h *Handler) handleBalance(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "product id must be numeric")
		return
	}
	balance, err := h.service.Balance(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, balance)
}

func (h *Handler) handleMovements(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "product id must be numeric")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	movements, err := h.service.Movements(r.Context(), id, MovementFilter{Limit: limit})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSONList(w, movements, httpx.NewListMeta(1, limit, len(movements)))
}

func (h *Handler) handleBalances(w http.ResponseWriter, r *http.Request) {
	ids, err := httpx.ParseIDList(r.URL.Query().Get("ids"))
	if err != nil || len(ids) == 0 {
		httpx.Problem(w, http.StatusBadRequest, "Invalid IDs", "ids must be a comma separated list of product ids")
		return
	}
	balances, err := h.service.BalancesFor(r.Context(), ids)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, balances)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrProductNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrInvalidQuantity):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrNegativeStock):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, shared.ErrIdempotencyConflict):
		httpx.Problem(w, http.StatusConflict, "Duplicate", err.Error())
	default:
		h.logger.Error("ledger request failed", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}

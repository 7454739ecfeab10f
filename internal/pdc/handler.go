package pdc

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/rentledger/rentledger/internal/platform/httpx"
)

// Handler manages PDC endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers PDC routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.register)
	r.Get("/{id}", h.get)
	r.Get("/lease/{leaseID}", h.listByLease)
	r.Post("/{id}/clear", h.markCleared)
	r.Post("/{id}/bounce", h.markBounced)
}

type registerRequest struct {
	LeaseID   int64   `json:"lease_id" validate:"required"`
	Number    string  `json:"number" validate:"required"`
	Amount    float64 `json:"amount" validate:"required,gt=0"`
	CheckDate string  `json:"check_date" validate:"required"`
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	checkDate, err := time.Parse("2006-01-02", req.CheckDate)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "check_date must be YYYY-MM-DD")
		return
	}
	created, err := h.service.Register(r.Context(), CreatePDCInput{
		LeaseID:   req.LeaseID,
		Number:    req.Number,
		Amount:    req.Amount,
		CheckDate: checkDate,
	})
	if err != nil {
		h.logger.Error("register pdc", slog.Any("error", err))
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "pdc id must be numeric")
		return
	}
	p, err := h.service.repo.GetPDC(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", "pdc not found")
			return
		}
		h.logger.Error("get pdc", slog.Any("error", err), slog.Int64("id", id))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) listByLease(w http.ResponseWriter, r *http.Request) {
	leaseID, err := strconv.ParseInt(chi.URLParam(r, "leaseID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "lease id must be numeric")
		return
	}
	pdcs, err := h.service.repo.ListByLease(r.Context(), leaseID)
	if err != nil {
		h.logger.Error("list pdcs", slog.Any("error", err), slog.Int64("lease_id", leaseID))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, pdcs)
}

func (h *Handler) markCleared(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.MarkCleared)
}

func (h *Handler) markBounced(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.MarkBounced)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, id int64) (*PDC, error)) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "pdc id must be numeric")
		return
	}
	updated, err := fn(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			httpx.Problem(w, http.StatusNotFound, "Not Found", "pdc not found")
		case errors.Is(err, ErrInvalidStatus):
			httpx.Problem(w, http.StatusConflict, "Invalid Transition", "only pending checks can change status")
		default:
			h.logger.Error("pdc transition", slog.Any("error", err), slog.Int64("id", id))
			httpx.RespondError(w, err)
		}
		return
	}
	httpx.JSON(w, http.StatusOK, updated)
}

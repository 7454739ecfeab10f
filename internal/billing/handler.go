package billing

import (
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"

	"github.com/rentledger/rentledger/internal/platform/httpx"
	"github.com/rentledger/rentledger/internal/property"
	"github.com/rentledger/rentledger/internal/shared"
)

// Handler manages billing endpoints.
type Handler struct {
	logger      *slog.Logger
	service     *Service
	statement   *StatementRenderer
	validator   *validator.Validate
	rateLimit   func(http.Handler) http.Handler
	saveCounter func(outcome string)
}

// NewHandler builds Handler instance. statement may be nil when no PDF
// backend is configured.
func NewHandler(logger *slog.Logger, service *Service, statement *StatementRenderer) *Handler {
	limiter := httprate.Limit(10, time.Minute, httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			return "ip:" + r.RemoteAddr, nil
		}
		return "ip:" + host, nil
	}))
	return &Handler{
		logger:    logger,
		service:   service,
		statement: statement,
		validator: validator.New(),
		rateLimit: limiter,
	}
}

// WithSaveCounter installs a per-outcome save counter.
func (h *Handler) WithSaveCounter(counter func(outcome string)) *Handler {
	h.saveCounter = counter
	return h
}

func (h *Handler) countSave(outcome string) {
	if h.saveCounter != nil {
		h.saveCounter(outcome)
	}
}

// MountRoutes registers billing routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.save)
	r.Post("/preview", h.preview)
	r.Post("/next-unit", h.nextUnit)
	r.Get("/{id}", h.redisplay)
	r.Delete("/{id}/charges/{chargeID}", h.deleteCharge)
	r.Get("/property/{propertyID}", h.listByProperty)
	r.Group(func(r chi.Router) {
		r.Use(h.rateLimit)
		r.Get("/{id}/statement.pdf", h.renderStatement)
	})
}

type chargeRequest struct {
	ID       int64   `json:"id"`
	Category string  `json:"category" validate:"required,oneof=additional discount"`
	Type     string  `json:"type"`
	Amount   float64 `json:"amount"`
}

type saveRequest struct {
	UnitID      int64  `json:"unit_id" validate:"required"`
	Period      string `json:"period"`
	BillingDate string `json:"billing_date" validate:"required"`
	ReadingDate string `json:"reading_date" validate:"required"`
	DueDate     string `json:"due_date" validate:"required"`

	// Meter readings arrive exactly as typed; blank and junk count as zero.
	WaterPrev string `json:"water_prev"`
	WaterCurr string `json:"water_curr"`
	ElecPrev  string `json:"elec_prev"`
	ElecCurr  string `json:"elec_curr"`

	Charges        []chargeRequest `json:"charges"`
	IncludeLateFee bool            `json:"include_late_fee"`
}

func (h *Handler) decodeSave(w http.ResponseWriter, r *http.Request) (SaveBillingInput, bool) {
	var req saveRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return SaveBillingInput{}, false
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return SaveBillingInput{}, false
	}
	parseDate := func(field, raw string) (time.Time, bool) {
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", field+" must be a YYYY-MM-DD date")
			return time.Time{}, false
		}
		return t, true
	}
	billingDate, ok := parseDate("billing_date", req.BillingDate)
	if !ok {
		return SaveBillingInput{}, false
	}
	readingDate, ok := parseDate("reading_date", req.ReadingDate)
	if !ok {
		return SaveBillingInput{}, false
	}
	dueDate, ok := parseDate("due_date", req.DueDate)
	if !ok {
		return SaveBillingInput{}, false
	}
	in := SaveBillingInput{
		UnitID:         req.UnitID,
		Period:         req.Period,
		BillingDate:    billingDate,
		ReadingDate:    readingDate,
		DueDate:        dueDate,
		WaterPrev:      ParseReading(req.WaterPrev),
		WaterCurr:      ParseReading(req.WaterCurr),
		ElecPrev:       ParseReading(req.ElecPrev),
		ElecCurr:       ParseReading(req.ElecCurr),
		IncludeLateFee: req.IncludeLateFee,
	}
	for _, c := range req.Charges {
		in.Charges = append(in.Charges, ChargeInput{
			ID:       c.ID,
			Category: ChargeCategory(c.Category),
			Type:     c.Type,
			Amount:   c.Amount,
		})
	}
	return in, true
}

func (h *Handler) save(w http.ResponseWriter, r *http.Request) {
	in, ok := h.decodeSave(w, r)
	if !ok {
		return
	}
	rec, err := h.service.Save(r.Context(), in)
	if err != nil {
		h.countSave("error")
		h.respondServiceError(w, "save billing", err)
		return
	}
	h.countSave("ok")
	httpx.JSON(w, http.StatusOK, rec)
}

func (h *Handler) preview(w http.ResponseWriter, r *http.Request) {
	in, ok := h.decodeSave(w, r)
	if !ok {
		return
	}
	result, err := h.service.Preview(r.Context(), in)
	if err != nil {
		h.respondServiceError(w, "preview billing", err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

type nextUnitRequest struct {
	PropertyID int64  `json:"property_id" validate:"required"`
	UnitID     int64  `json:"unit_id" validate:"required"`
	Period     string `json:"period"`

	WaterRate       float64 `json:"water_rate"`
	ElecRate        float64 `json:"elec_rate"`
	Dues            float64 `json:"dues"`
	LateFeePerDay   float64 `json:"late_fee_per_day"`
	GracePeriodDays int     `json:"grace_period_days"`
}

func (h *Handler) nextUnit(w http.ResponseWriter, r *http.Request) {
	var req nextUnitRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	result, err := h.service.NextUnit(r.Context(), BillingDraft{
		PropertyID:      req.PropertyID,
		UnitID:          req.UnitID,
		Period:          req.Period,
		WaterRate:       req.WaterRate,
		ElecRate:        req.ElecRate,
		Dues:            req.Dues,
		LateFeePerDay:   req.LateFeePerDay,
		GracePeriodDays: req.GracePeriodDays,
	})
	if err != nil {
		h.respondServiceError(w, "next unit", err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) redisplay(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "billing id must be numeric")
		return
	}
	rec, result, err := h.service.Redisplay(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, "redisplay billing", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"record":    rec,
		"breakdown": result,
	})
}

func (h *Handler) deleteCharge(w http.ResponseWriter, r *http.Request) {
	billingID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "billing id must be numeric")
		return
	}
	chargeID, err := strconv.ParseInt(chi.URLParam(r, "chargeID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "charge id must be numeric")
		return
	}
	if err := h.service.DeleteCharge(r.Context(), billingID, chargeID); err != nil {
		h.respondServiceError(w, "delete charge", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"status": "deleted"})
}

func (h *Handler) listByProperty(w http.ResponseWriter, r *http.Request) {
	propertyID, err := strconv.ParseInt(chi.URLParam(r, "propertyID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "property id must be numeric")
		return
	}
	records, err := h.service.ListByProperty(r.Context(), propertyID, r.URL.Query().Get("period"))
	if err != nil {
		h.respondServiceError(w, "list billings", err)
		return
	}
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	if perPage <= 0 {
		perPage = 50
	}
	meta := shared.NewPagination(page, perPage, len(records))
	start := (meta.Page - 1) * meta.PerPage
	if start > len(records) {
		start = len(records)
	}
	end := start + meta.PerPage
	if end > len(records) {
		end = len(records)
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"items":      records[start:end],
		"pagination": meta,
	})
}

func (h *Handler) renderStatement(w http.ResponseWriter, r *http.Request) {
	if h.statement == nil {
		httpx.Problem(w, http.StatusServiceUnavailable, "Unavailable", "statement rendering is not configured")
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "billing id must be numeric")
		return
	}
	rec, result, err := h.service.Redisplay(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, "statement billing", err)
		return
	}
	pdf, err := h.statement.Render(r.Context(), rec, result)
	if err != nil {
		h.logger.Error("render statement", slog.Any("error", err), slog.Int64("id", id))
		httpx.Problem(w, http.StatusBadGateway, "Render Failed", "the statement could not be rendered")
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="statement-`+rec.Period+`.pdf"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}

func (h *Handler) respondServiceError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, shared.ErrValidation):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", shared.UserSafeMessage(err))
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "billing record not found")
	case errors.Is(err, property.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "unit or property not found")
	case errors.Is(err, shared.ErrLocked):
		httpx.Problem(w, http.StatusConflict, "Locked", shared.UserSafeMessage(err))
	case errors.Is(err, shared.ErrPersistence):
		h.logger.Error(op, slog.Any("error", err))
		httpx.Problem(w, http.StatusServiceUnavailable, "Persistence Failed", shared.UserSafeMessage(err))
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}

package property

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/rentledger/rentledger/internal/platform/httpx"
)

// Handler manages property and unit endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers property routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.listProperties)
	r.Post("/", h.createProperty)
	r.Get("/{id}", h.getProperty)
	r.Get("/{id}/units", h.listUnits)
	r.Post("/{id}/units", h.createUnit)
	r.Get("/units/{unitID}", h.getUnit)
	r.Put("/units/{unitID}/rent", h.setUnitRent)
}

type createPropertyRequest struct {
	Name            string  `json:"name"`
	Address         string  `json:"address"`
	AssociationDues float64 `json:"association_dues"`
	LateFeePerDay   float64 `json:"late_fee_per_day"`
	GracePeriodDays int     `json:"grace_period_days"`
	WaterMode       string  `json:"water_mode"`
	ElecMode        string  `json:"elec_mode"`
}

func (h *Handler) createProperty(w http.ResponseWriter, r *http.Request) {
	var req createPropertyRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	prop, err := h.service.CreateProperty(r.Context(), CreatePropertyInput{
		Name:            req.Name,
		Address:         req.Address,
		AssociationDues: req.AssociationDues,
		LateFeePerDay:   req.LateFeePerDay,
		GracePeriodDays: req.GracePeriodDays,
		WaterMode:       BillingMode(req.WaterMode),
		ElecMode:        BillingMode(req.ElecMode),
	})
	if err != nil {
		h.logger.Error("create property", slog.Any("error", err))
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	httpx.JSON(w, http.StatusCreated, prop)
}

func (h *Handler) listProperties(w http.ResponseWriter, r *http.Request) {
	props, err := h.service.ListProperties(r.Context())
	if err != nil {
		h.logger.Error("list properties", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, props)
}

func (h *Handler) getProperty(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "property id must be numeric")
		return
	}
	prop, err := h.service.GetProperty(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", "property not found")
			return
		}
		h.logger.Error("get property", slog.Any("error", err), slog.Int64("id", id))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, prop)
}

type createUnitRequest struct {
	Name        string  `json:"name"`
	MonthlyRent float64 `json:"monthly_rent"`
	LeaseID     int64   `json:"lease_id"`
}

func (h *Handler) createUnit(w http.ResponseWriter, r *http.Request) {
	propertyID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "property id must be numeric")
		return
	}
	var req createUnitRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	unit, err := h.service.CreateUnit(r.Context(), CreateUnitInput{
		PropertyID:  propertyID,
		Name:        req.Name,
		MonthlyRent: req.MonthlyRent,
		LeaseID:     req.LeaseID,
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", "property not found")
			return
		}
		h.logger.Error("create unit", slog.Any("error", err))
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	httpx.JSON(w, http.StatusCreated, unit)
}

func (h *Handler) listUnits(w http.ResponseWriter, r *http.Request) {
	propertyID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "property id must be numeric")
		return
	}
	units, err := h.service.ListUnits(r.Context(), propertyID)
	if err != nil {
		h.logger.Error("list units", slog.Any("error", err), slog.Int64("property_id", propertyID))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, units)
}

func (h *Handler) getUnit(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "unitID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "unit id must be numeric")
		return
	}
	unit, err := h.service.GetUnit(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", "unit not found")
			return
		}
		h.logger.Error("get unit", slog.Any("error", err), slog.Int64("id", id))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, unit)
}

type setRentRequest struct {
	MonthlyRent float64 `json:"monthly_rent"`
}

func (h *Handler) setUnitRent(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "unitID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "unit id must be numeric")
		return
	}
	var req setRentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.service.SetUnitRent(r.Context(), id, req.MonthlyRent); err != nil {
		if errors.Is(err, ErrNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", "unit not found")
			return
		}
		h.logger.Error("set unit rent", slog.Any("error", err), slog.Int64("id", id))
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

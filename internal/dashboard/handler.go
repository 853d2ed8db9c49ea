// Package dashboard exposes the stored clinical record as a read-only JSON
// API. The rendering layer lives elsewhere; nothing here mutates data.
package dashboard

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/ccdstore/ccdstore/internal/domain/allergy"
	"github.com/ccdstore/ccdstore/internal/domain/condition"
	"github.com/ccdstore/ccdstore/internal/domain/encounter"
	"github.com/ccdstore/ccdstore/internal/domain/immunization"
	"github.com/ccdstore/ccdstore/internal/domain/insurance"
	"github.com/ccdstore/ccdstore/internal/domain/labresult"
	"github.com/ccdstore/ccdstore/internal/domain/medication"
	"github.com/ccdstore/ccdstore/internal/domain/patient"
	"github.com/ccdstore/ccdstore/internal/domain/procedure"
	"github.com/ccdstore/ccdstore/internal/domain/progressnote"
	"github.com/ccdstore/ccdstore/internal/domain/provider"
	"github.com/ccdstore/ccdstore/internal/domain/vital"
	"github.com/ccdstore/ccdstore/pkg/pagination"
)

// Services bundles the domain services the dashboard reads from.
type Services struct {
	Patients      *patient.Service
	Encounters    *encounter.Service
	Providers     *provider.Service
	Conditions    *condition.Service
	Procedures    *procedure.Service
	Medications   *medication.Service
	Labs          *labresult.Service
	Vitals        *vital.Service
	Immunizations *immunization.Service
	Allergies     *allergy.Service
	Insurance     *insurance.Service
	Notes         *progressnote.Service
}

type Handler struct {
	svc Services
}

func NewHandler(svc Services) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/patients", h.ListPatients)
	api.GET("/patients/:id", h.GetPatient)
	api.GET("/patients/:id/chart", h.GetPatientChart)
	api.GET("/patients/:id/encounters", h.ListPatientEncounters)
	api.GET("/patients/:id/conditions", h.ListPatientConditions)
	api.GET("/patients/:id/procedures", h.ListPatientProcedures)
	api.GET("/patients/:id/medications", h.ListPatientMedications)
	api.GET("/patients/:id/labs", h.ListPatientLabs)
	api.GET("/patients/:id/labs/series", h.GetLabSeries)
	api.GET("/patients/:id/vitals", h.ListPatientVitals)
	api.GET("/patients/:id/vitals/series", h.GetVitalSeries)
	api.GET("/patients/:id/immunizations", h.ListPatientImmunizations)
	api.GET("/patients/:id/allergies", h.ListPatientAllergies)
	api.GET("/patients/:id/insurance", h.ListPatientInsurance)
	api.GET("/patients/:id/notes", h.ListPatientNotes)
	api.GET("/encounters/:id", h.GetEncounter)
	api.GET("/providers", h.ListProviders)
	api.GET("/providers/:id", h.GetProvider)
}

func idParam(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func (h *Handler) ListPatients(c echo.Context) error {
	pg := pagination.FromContext(c)
	patients, total, err := h.svc.Patients.List(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(patients, total, pg.Limit, pg.Offset))
}

// PatientDetail is a patient row with its encounters attached.
type PatientDetail struct {
	*patient.Patient
	Encounters []*encounter.Encounter `json:"encounters"`
}

func (h *Handler) GetPatient(c echo.Context) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	p, err := h.svc.Patients.Get(ctx, id)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if p == nil {
		return echo.NewHTTPError(http.StatusNotFound, "patient not found")
	}
	encounters, err := h.svc.Encounters.ListByPatient(ctx, id)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, &PatientDetail{Patient: p, Encounters: encounters})
}

func (h *Handler) ListPatientEncounters(c echo.Context) error {
	return h.listForPatient(c, func(ctx echo.Context, id int64) (interface{}, error) {
		return h.svc.Encounters.ListByPatient(ctx.Request().Context(), id)
	})
}

func (h *Handler) ListPatientConditions(c echo.Context) error {
	return h.listForPatient(c, func(ctx echo.Context, id int64) (interface{}, error) {
		return h.svc.Conditions.ListByPatient(ctx.Request().Context(), id)
	})
}

func (h *Handler) ListPatientProcedures(c echo.Context) error {
	return h.listForPatient(c, func(ctx echo.Context, id int64) (interface{}, error) {
		return h.svc.Procedures.ListByPatient(ctx.Request().Context(), id)
	})
}

func (h *Handler) ListPatientMedications(c echo.Context) error {
	return h.listForPatient(c, func(ctx echo.Context, id int64) (interface{}, error) {
		return h.svc.Medications.ListByPatient(ctx.Request().Context(), id)
	})
}

func (h *Handler) ListPatientLabs(c echo.Context) error {
	return h.listForPatient(c, func(ctx echo.Context, id int64) (interface{}, error) {
		return h.svc.Labs.ListByPatient(ctx.Request().Context(), id)
	})
}

func (h *Handler) ListPatientVitals(c echo.Context) error {
	return h.listForPatient(c, func(ctx echo.Context, id int64) (interface{}, error) {
		return h.svc.Vitals.ListByPatient(ctx.Request().Context(), id)
	})
}

func (h *Handler) ListPatientImmunizations(c echo.Context) error {
	return h.listForPatient(c, func(ctx echo.Context, id int64) (interface{}, error) {
		return h.svc.Immunizations.ListByPatient(ctx.Request().Context(), id)
	})
}

func (h *Handler) ListPatientAllergies(c echo.Context) error {
	return h.listForPatient(c, func(ctx echo.Context, id int64) (interface{}, error) {
		return h.svc.Allergies.ListByPatient(ctx.Request().Context(), id)
	})
}

func (h *Handler) ListPatientInsurance(c echo.Context) error {
	return h.listForPatient(c, func(ctx echo.Context, id int64) (interface{}, error) {
		return h.svc.Insurance.ListByPatient(ctx.Request().Context(), id)
	})
}

func (h *Handler) ListPatientNotes(c echo.Context) error {
	return h.listForPatient(c, func(ctx echo.Context, id int64) (interface{}, error) {
		return h.svc.Notes.ListByPatient(ctx.Request().Context(), id)
	})
}

func (h *Handler) listForPatient(c echo.Context, list func(echo.Context, int64) (interface{}, error)) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	rows, err := list(c, id)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, rows)
}

// GetLabSeries returns one patient's results for a single LOINC code in
// date order, for trend charts.
func (h *Handler) GetLabSeries(c echo.Context) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	code := c.QueryParam("code")
	if code == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "missing code parameter")
	}
	series, err := h.svc.Labs.Series(c.Request().Context(), id, code)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, series)
}

// GetVitalSeries returns one patient's measurements of a single vital type
// in date order.
func (h *Handler) GetVitalSeries(c echo.Context) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	vitalType := c.QueryParam("type")
	if vitalType == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "missing type parameter")
	}
	series, err := h.svc.Vitals.Series(c.Request().Context(), id, vitalType)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, series)
}

func (h *Handler) GetEncounter(c echo.Context) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	e, err := h.svc.Encounters.Get(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if e == nil {
		return echo.NewHTTPError(http.StatusNotFound, "encounter not found")
	}
	return c.JSON(http.StatusOK, e)
}

func (h *Handler) ListProviders(c echo.Context) error {
	pg := pagination.FromContext(c)
	providers, total, err := h.svc.Providers.List(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(providers, total, pg.Limit, pg.Offset))
}

func (h *Handler) GetProvider(c echo.Context) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	p, err := h.svc.Providers.Get(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if p == nil {
		return echo.NewHTTPError(http.StatusNotFound, "provider not found")
	}
	return c.JSON(http.StatusOK, p)
}

package dashboard

import (
	"net/http"

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
	"github.com/ccdstore/ccdstore/internal/domain/vital"
)

// EncounterBundle groups the facts attached to one encounter. The bundle
// with a nil Encounter collects facts whose encounter could not be resolved
// at ingest time.
type EncounterBundle struct {
	Encounter   *encounter.Encounter     `json:"encounter,omitempty"`
	Conditions  []*condition.Condition   `json:"conditions,omitempty"`
	Procedures  []*procedure.Procedure   `json:"procedures,omitempty"`
	Medications []*medication.Medication `json:"medications,omitempty"`
	Labs        []*labresult.LabResult   `json:"labs,omitempty"`
	Vitals      []*vital.Vital           `json:"vitals,omitempty"`
	Notes       []*progressnote.Note     `json:"notes,omitempty"`
}

// Chart is the full per-patient view: facts grouped under their encounters,
// an unattached bucket for the rest, and patient-level records.
type Chart struct {
	Patient       *patient.Patient             `json:"patient"`
	Encounters    []*EncounterBundle           `json:"encounters"`
	Unattached    *EncounterBundle             `json:"unattached,omitempty"`
	Immunizations []*immunization.Immunization `json:"immunizations,omitempty"`
	Allergies     []*allergy.Allergy           `json:"allergies,omitempty"`
	Insurance     []*insurance.Policy          `json:"insurance,omitempty"`
}

func (h *Handler) GetPatientChart(c echo.Context) error {
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

	chart := &Chart{Patient: p}
	bundles := make(map[int64]*EncounterBundle, len(encounters))
	for _, e := range encounters {
		b := &EncounterBundle{Encounter: e}
		bundles[e.ID] = b
		chart.Encounters = append(chart.Encounters, b)
	}
	unattached := &EncounterBundle{}
	pick := func(encounterID *int64) *EncounterBundle {
		if encounterID != nil {
			if b, ok := bundles[*encounterID]; ok {
				return b
			}
		}
		return unattached
	}

	conditions, err := h.svc.Conditions.ListByPatient(ctx, id)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	for _, row := range conditions {
		b := pick(row.EncounterID)
		b.Conditions = append(b.Conditions, row)
	}

	procedures, err := h.svc.Procedures.ListByPatient(ctx, id)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	for _, row := range procedures {
		b := pick(row.EncounterID)
		b.Procedures = append(b.Procedures, row)
	}

	medications, err := h.svc.Medications.ListByPatient(ctx, id)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	for _, row := range medications {
		b := pick(row.EncounterID)
		b.Medications = append(b.Medications, row)
	}

	labs, err := h.svc.Labs.ListByPatient(ctx, id)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	for _, row := range labs {
		b := pick(row.EncounterID)
		b.Labs = append(b.Labs, row)
	}

	vitals, err := h.svc.Vitals.ListByPatient(ctx, id)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	for _, row := range vitals {
		b := pick(row.EncounterID)
		b.Vitals = append(b.Vitals, row)
	}

	notes, err := h.svc.Notes.ListByPatient(ctx, id)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	for _, row := range notes {
		b := pick(row.EncounterID)
		b.Notes = append(b.Notes, row)
	}

	if len(unattached.Conditions) > 0 || len(unattached.Procedures) > 0 ||
		len(unattached.Medications) > 0 || len(unattached.Labs) > 0 ||
		len(unattached.Vitals) > 0 || len(unattached.Notes) > 0 {
		chart.Unattached = unattached
	}

	chart.Immunizations, err = h.svc.Immunizations.ListByPatient(ctx, id)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	chart.Allergies, err = h.svc.Allergies.ListByPatient(ctx, id)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	chart.Insurance, err = h.svc.Insurance.ListByPatient(ctx, id)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, chart)
}

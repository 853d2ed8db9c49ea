package immunization

import (
	"context"
	"sort"
	"strings"

	"github.com/ccdstore/ccdstore/internal/platform/ccd"
)

// Service stores parsed immunizations.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Insert stores parsed immunizations, suppressing duplicates on the
// (cvx_code, date) key against both stored rows and the current batch. CVX
// codes are deduplicated, sorted and joined; the product name is folded into
// the notes.
func (s *Service) Insert(ctx context.Context, patientID int64, dataSourceID *int64, records []ccd.ImmunizationRecord) (inserted, duplicates int, err error) {
	if len(records) == 0 {
		return 0, 0, nil
	}

	seen, err := s.repo.ExistingKeys(ctx, patientID)
	if err != nil {
		return 0, 0, err
	}

	for _, rec := range records {
		date := clean(rec.Date)
		cvx := joinCVX(rec.CVXCodes)
		productName := clean(rec.ProductName)

		vaccineName := clean(rec.VaccineName)
		if vaccineName == "" {
			vaccineName = productName
		}
		if vaccineName == "" {
			vaccineName = cvx
		}
		if vaccineName == "" && cvx == "" && date == "" {
			continue
		}

		k := Key{CVXCode: cvx, DateAdministered: date}
		if seen[k] {
			duplicates++
			continue
		}
		seen[k] = true

		notes := ""
		if productName != "" {
			notes = "Product: " + productName
		}

		err := s.repo.Create(ctx, &Immunization{
			PatientID:        patientID,
			VaccineName:      vaccineName,
			CVXCode:          cvx,
			DateAdministered: date,
			Status:           clean(rec.Status),
			LotNumber:        clean(rec.LotNumber),
			Notes:            notes,
			DataSourceID:     dataSourceID,
		})
		if err != nil {
			return inserted, duplicates, err
		}
		inserted++
	}
	return inserted, duplicates, nil
}

// ListByPatient returns a patient's immunizations, most recent first.
func (s *Service) ListByPatient(ctx context.Context, patientID int64) ([]*Immunization, error) {
	return s.repo.ListByPatient(ctx, patientID)
}

// joinCVX deduplicates, sorts and joins the CVX codes carried by one
// administration.
func joinCVX(codes []string) string {
	set := make(map[string]bool)
	for _, code := range codes {
		if cleaned := clean(code); cleaned != "" {
			set[cleaned] = true
		}
	}
	if len(set) == 0 {
		return ""
	}
	unique := make([]string, 0, len(set))
	for code := range set {
		unique = append(unique, code)
	}
	sort.Strings(unique)
	return strings.Join(unique, ", ")
}

func clean(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

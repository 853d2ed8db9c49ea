package insurance

import (
	"context"
	"strings"

	"github.com/ccdstore/ccdstore/internal/platform/ccd"
)

// Service reconciles parsed coverage policies with stored rows.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Upsert stores parsed policies. A policy naming neither a payer, plan,
// member nor group is dropped; rows sharing the natural key pick up the
// fields the new document supplies.
func (s *Service) Upsert(ctx context.Context, patientID int64, dataSourceID *int64, records []ccd.InsuranceRecord) (inserted, updated int, err error) {
	for _, rec := range records {
		payerName := clean(rec.PayerName)
		planName := clean(rec.PlanName)
		memberID := clean(rec.MemberID)
		groupNumber := clean(rec.GroupNumber)
		if payerName == "" && planName == "" && memberID == "" && groupNumber == "" {
			continue
		}

		existing, err := s.repo.GetByNaturalKey(ctx, patientID, payerName, planName, memberID, groupNumber)
		if err != nil {
			return inserted, updated, err
		}

		if existing != nil {
			u := Updates{}
			set := func(target *string, newValue, oldValue string) {
				if newValue != "" && oldValue != newValue {
					*target = newValue
				}
			}
			set(&u.CoverageType, clean(rec.CoverageType), existing.CoverageType)
			set(&u.PolicyType, clean(rec.PolicyType), existing.PolicyType)
			set(&u.SubscriberID, clean(rec.SubscriberID), existing.SubscriberID)
			set(&u.SubscriberName, clean(rec.SubscriberName), existing.SubscriberName)
			set(&u.Relationship, clean(rec.Relationship), existing.Relationship)
			set(&u.EffectiveDate, clean(rec.EffectiveDate), existing.EffectiveDate)
			set(&u.ExpirationDate, clean(rec.ExpirationDate), existing.ExpirationDate)
			set(&u.Status, clean(rec.Status), existing.Status)
			set(&u.PayerIdentifier, clean(rec.PayerIdentifier), existing.PayerIdentifier)
			set(&u.SourcePolicyID, clean(rec.SourcePolicyID), existing.SourcePolicyID)
			set(&u.Notes, clean(rec.Notes), existing.Notes)
			if dataSourceID != nil && (existing.DataSourceID == nil || *existing.DataSourceID != *dataSourceID) {
				u.DataSourceID = dataSourceID
			}
			if !u.IsZero() {
				if err := s.repo.Update(ctx, existing.ID, u); err != nil {
					return inserted, updated, err
				}
				updated++
			}
			continue
		}

		p := &Policy{
			PatientID:       patientID,
			PayerName:       payerName,
			PlanName:        planName,
			CoverageType:    clean(rec.CoverageType),
			PolicyType:      clean(rec.PolicyType),
			MemberID:        memberID,
			GroupNumber:     groupNumber,
			SubscriberID:    clean(rec.SubscriberID),
			SubscriberName:  clean(rec.SubscriberName),
			Relationship:    clean(rec.Relationship),
			EffectiveDate:   clean(rec.EffectiveDate),
			ExpirationDate:  clean(rec.ExpirationDate),
			Status:          clean(rec.Status),
			PayerIdentifier: clean(rec.PayerIdentifier),
			SourcePolicyID:  clean(rec.SourcePolicyID),
			Notes:           clean(rec.Notes),
			DataSourceID:    dataSourceID,
		}
		if err := s.repo.Create(ctx, p); err != nil {
			return inserted, updated, err
		}
		inserted++
	}
	return inserted, updated, nil
}

// ListByPatient returns a patient's policies ordered by payer and plan.
func (s *Service) ListByPatient(ctx context.Context, patientID int64) ([]*Policy, error) {
	return s.repo.ListByPatient(ctx, patientID)
}

func clean(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

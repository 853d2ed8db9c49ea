package insurance

import (
	"context"
	"testing"

	"github.com/ccdstore/ccdstore/internal/platform/ccd"
)

type mockRepo struct {
	policies []*Policy
	nextID   int64
}

func newMockRepo() *mockRepo { return &mockRepo{nextID: 1} }

func (m *mockRepo) GetByNaturalKey(_ context.Context, patientID int64, payerName, planName, memberID, groupNumber string) (*Policy, error) {
	for _, p := range m.policies {
		if p.PatientID == patientID && p.PayerName == payerName &&
			p.PlanName == planName && p.MemberID == memberID && p.GroupNumber == groupNumber {
			return p, nil
		}
	}
	return nil, nil
}

func (m *mockRepo) Create(_ context.Context, p *Policy) error {
	p.ID = m.nextID
	m.nextID++
	m.policies = append(m.policies, p)
	return nil
}

func (m *mockRepo) Update(_ context.Context, id int64, u Updates) error {
	for _, p := range m.policies {
		if p.ID != id {
			continue
		}
		if u.Status != "" {
			p.Status = u.Status
		}
		if u.SubscriberName != "" {
			p.SubscriberName = u.SubscriberName
		}
		if u.ExpirationDate != "" {
			p.ExpirationDate = u.ExpirationDate
		}
	}
	return nil
}

func (m *mockRepo) ListByPatient(_ context.Context, patientID int64) ([]*Policy, error) {
	var out []*Policy
	for _, p := range m.policies {
		if p.PatientID == patientID {
			out = append(out, p)
		}
	}
	return out, nil
}

func TestUpsertCreatesPolicy(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)

	records := []ccd.InsuranceRecord{
		{
			PayerName:   "Acme Health",
			PlanName:    "Gold PPO",
			MemberID:    "M12345",
			GroupNumber: "G777",
			Status:      "Active",
		},
		{}, // no identifying fields: dropped
	}
	inserted, updated, err := svc.Upsert(context.Background(), 1, nil, records)
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if inserted != 1 || updated != 0 {
		t.Fatalf("inserted=%d updated=%d", inserted, updated)
	}
}

func TestUpsertMergesFields(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)
	ctx := context.Background()

	rec := ccd.InsuranceRecord{PayerName: "Acme Health", MemberID: "M12345"}
	if _, _, err := svc.Upsert(ctx, 1, nil, []ccd.InsuranceRecord{rec}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	rec.Status = "Active"
	rec.SubscriberName = "Jane Smith"
	inserted, updated, err := svc.Upsert(ctx, 1, nil, []ccd.InsuranceRecord{rec})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if inserted != 0 || updated != 1 || len(repo.policies) != 1 {
		t.Fatalf("inserted=%d updated=%d rows=%d", inserted, updated, len(repo.policies))
	}
	if repo.policies[0].Status != "Active" || repo.policies[0].SubscriberName != "Jane Smith" {
		t.Errorf("fields not merged: %+v", repo.policies[0])
	}
}

func TestUpsertUnchangedPolicyIsNoop(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)
	ctx := context.Background()

	rec := ccd.InsuranceRecord{PayerName: "Acme Health", PlanName: "Gold PPO", Status: "Active"}
	if _, _, err := svc.Upsert(ctx, 1, nil, []ccd.InsuranceRecord{rec}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	inserted, updated, err := svc.Upsert(ctx, 1, nil, []ccd.InsuranceRecord{rec})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if inserted != 0 || updated != 0 {
		t.Errorf("re-ingest changed rows: inserted=%d updated=%d", inserted, updated)
	}
}

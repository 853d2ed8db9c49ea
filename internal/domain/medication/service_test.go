package medication

import (
	"context"
	"testing"

	"github.com/ccdstore/ccdstore/internal/domain/encounter"
	"github.com/ccdstore/ccdstore/internal/domain/provider"
	"github.com/ccdstore/ccdstore/internal/platform/ccd"
)

type key struct {
	patientID   int64
	encounterID int64
	name        string
	dose        string
	start       string
}

type mockRepo struct {
	meds    []*Medication
	byKey   map[key]bool
	creates int
	nextID  int64
}

func newMockRepo() *mockRepo {
	return &mockRepo{byKey: make(map[key]bool), nextID: 1}
}

func (m *mockRepo) ExistingKeys(_ context.Context, patientID int64) (map[Key]bool, error) {
	keys := make(map[Key]bool)
	for _, med := range m.meds {
		if med.PatientID == patientID {
			keys[med.naturalKey()] = true
		}
	}
	return keys, nil
}

func (m *mockRepo) Create(_ context.Context, med *Medication) error {
	m.creates++
	k := key{patientID: med.PatientID, encounterID: -1, name: med.Name, dose: med.Dose, start: med.StartDate}
	if med.EncounterID != nil {
		k.encounterID = *med.EncounterID
	}
	if m.byKey[k] {
		return ErrDuplicate
	}
	m.byKey[k] = true
	med.ID = m.nextID
	m.nextID++
	m.meds = append(m.meds, med)
	return nil
}

func (m *mockRepo) BackfillSource(_ context.Context, med *Medication) error {
	if med.DataSourceID == nil {
		return nil
	}
	for _, existing := range m.meds {
		if existing.PatientID == med.PatientID && existing.Name == med.Name &&
			existing.Dose == med.Dose && existing.StartDate == med.StartDate &&
			existing.DataSourceID == nil {
			existing.DataSourceID = med.DataSourceID
		}
	}
	return nil
}

func (m *mockRepo) ListByPatient(_ context.Context, patientID int64) ([]*Medication, error) {
	var out []*Medication
	for _, med := range m.meds {
		if med.PatientID == patientID {
			out = append(out, med)
		}
	}
	return out, nil
}

type mockProviderRepo struct {
	byKey  map[string]*provider.Provider
	nextID int64
}

func (m *mockProviderRepo) GetByNormalizedKey(_ context.Context, key string) (*provider.Provider, error) {
	return m.byKey[key], nil
}

func (m *mockProviderRepo) Create(_ context.Context, p *provider.Provider) error {
	p.ID = m.nextID
	m.nextID++
	m.byKey[p.NormalizedKey] = p
	return nil
}

func (m *mockProviderRepo) GetByID(_ context.Context, _ int64) (*provider.Provider, error) {
	return nil, nil
}

func (m *mockProviderRepo) List(_ context.Context, _, _ int) ([]*provider.Provider, int, error) {
	return nil, 0, nil
}

type mockEncounterRepo struct {
	findID   int64
	lastDate string
}

func (m *mockEncounterRepo) FindID(_ context.Context, _ int64, encounterDate string, _ *int64, _ string) (int64, error) {
	m.lastDate = encounterDate
	return m.findID, nil
}

func (m *mockEncounterRepo) GetByNaturalKey(_ context.Context, _ int64, _ string, _ *int64, _ string) (*encounter.Encounter, error) {
	return nil, nil
}

func (m *mockEncounterRepo) Create(_ context.Context, _ *encounter.Encounter) error { return nil }

func (m *mockEncounterRepo) UpdateDetails(_ context.Context, _ int64, _, _, _ string) error {
	return nil
}

func (m *mockEncounterRepo) GetByID(_ context.Context, _ int64) (*encounter.Encounter, error) {
	return nil, nil
}

func (m *mockEncounterRepo) ListByPatient(_ context.Context, _ int64) ([]*encounter.Encounter, error) {
	return nil, nil
}

func newService(repo *mockRepo, encRepo *mockEncounterRepo) *Service {
	providers := provider.NewService(&mockProviderRepo{byKey: make(map[string]*provider.Provider), nextID: 1})
	return NewService(repo, encounter.NewService(encRepo, providers))
}

func TestInsertAppendsRxNormToNotes(t *testing.T) {
	repo := newMockRepo()
	svc := newService(repo, &mockEncounterRepo{})

	records := []ccd.MedicationRecord{
		{Name: "Lisinopril 10mg", RxNorm: "314076", Notes: "Take with food"},
		{Name: "Metformin 500mg", RxNorm: "861007"},
	}
	inserted, duplicates, err := svc.Insert(context.Background(), 1, nil, records)
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if inserted != 2 || duplicates != 0 {
		t.Fatalf("inserted=%d duplicates=%d", inserted, duplicates)
	}
	if got := repo.meds[0].Notes; got != "Take with food (RxNorm: 314076)" {
		t.Errorf("notes = %q", got)
	}
	if got := repo.meds[1].Notes; got != "RxNorm: 861007" {
		t.Errorf("notes = %q", got)
	}
}

func TestInsertCountsDuplicates(t *testing.T) {
	repo := newMockRepo()
	svc := newService(repo, &mockEncounterRepo{})
	ctx := context.Background()

	records := []ccd.MedicationRecord{{Name: "Aspirin 81mg", Dose: "81 mg", Start: "20230101"}}
	if _, _, err := svc.Insert(ctx, 1, nil, records); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	ds := int64(7)
	inserted, duplicates, err := svc.Insert(ctx, 1, &ds, records)
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if inserted != 0 || duplicates != 1 {
		t.Errorf("inserted=%d duplicates=%d", inserted, duplicates)
	}
	// The duplicate still backfills provenance on the stored row.
	if got := repo.meds[0].DataSourceID; got == nil || *got != 7 {
		t.Errorf("data source not backfilled: %v", got)
	}
}

func TestInsertFiltersBatchAgainstPreloadedKeys(t *testing.T) {
	repo := newMockRepo()
	svc := newService(repo, &mockEncounterRepo{})
	ctx := context.Background()

	records := []ccd.MedicationRecord{{Name: "Atorvastatin 20mg", Dose: "20 mg", Start: "20230501"}}
	if _, _, err := svc.Insert(ctx, 1, nil, records); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if repo.creates != 1 {
		t.Fatalf("creates = %d, want 1", repo.creates)
	}

	// Re-ingest with the record repeated in the batch: both copies are caught
	// by the preloaded key set, so no further insert statements run.
	records = append(records, records[0])
	inserted, duplicates, err := svc.Insert(ctx, 1, nil, records)
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if inserted != 0 || duplicates != 2 {
		t.Errorf("inserted=%d duplicates=%d", inserted, duplicates)
	}
	if repo.creates != 1 {
		t.Errorf("creates = %d, want 1", repo.creates)
	}
}

func TestInsertCountsInBatchDuplicates(t *testing.T) {
	repo := newMockRepo()
	svc := newService(repo, &mockEncounterRepo{})

	records := []ccd.MedicationRecord{
		{Name: "Aspirin 81mg", Dose: "81 mg", Start: "20230101"},
		{Name: "Aspirin 81mg", Dose: "81 mg", Start: "20230101"},
	}
	inserted, duplicates, err := svc.Insert(context.Background(), 1, nil, records)
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if inserted != 1 || duplicates != 1 || len(repo.meds) != 1 {
		t.Errorf("inserted=%d duplicates=%d rows=%d", inserted, duplicates, len(repo.meds))
	}
}

func TestInsertEncounterDateCascade(t *testing.T) {
	encRepo := &mockEncounterRepo{findID: 5}
	svc := newService(newMockRepo(), encRepo)

	records := []ccd.MedicationRecord{{Name: "Insulin", End: "20230301", AuthorTime: "20230401"}}
	if _, _, err := svc.Insert(context.Background(), 1, nil, records); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	// No start date: end date wins over author time.
	if encRepo.lastDate != "20230301" {
		t.Errorf("encounter lookup used %q, want end date", encRepo.lastDate)
	}
}

func TestInsertSkipsNamelessRecords(t *testing.T) {
	repo := newMockRepo()
	svc := newService(repo, &mockEncounterRepo{})

	inserted, duplicates, err := svc.Insert(context.Background(), 1, nil, []ccd.MedicationRecord{{Dose: "10 mg"}})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if inserted != 0 || duplicates != 0 || len(repo.meds) != 0 {
		t.Errorf("nameless record was stored")
	}
}

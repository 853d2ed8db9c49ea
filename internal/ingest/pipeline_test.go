package ingest

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

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
	"github.com/ccdstore/ccdstore/internal/domain/provenance"
	"github.com/ccdstore/ccdstore/internal/domain/provider"
	"github.com/ccdstore/ccdstore/internal/domain/vital"
)

// fakeStore is a shared in-memory backing store for the per-interface fakes
// below, standing in for the database in end-to-end pipeline tests.
type fakeStore struct {
	nextID int64

	providers   map[string]*provider.Provider
	patients    []*patient.Patient
	encounters  []*encounter.Encounter
	meds        []*medication.Medication
	sources     map[string]*provenance.DataSource
	attachments []*provenance.Attachment
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		providers: make(map[string]*provider.Provider),
		sources:   make(map[string]*provenance.DataSource),
	}
}

func (s *fakeStore) id() int64 {
	s.nextID++
	return s.nextID
}

type fakeProviderRepo struct{ s *fakeStore }

func (f *fakeProviderRepo) GetByNormalizedKey(_ context.Context, key string) (*provider.Provider, error) {
	return f.s.providers[key], nil
}

func (f *fakeProviderRepo) Create(_ context.Context, p *provider.Provider) error {
	p.ID = f.s.id()
	f.s.providers[p.NormalizedKey] = p
	return nil
}

func (f *fakeProviderRepo) GetByID(_ context.Context, id int64) (*provider.Provider, error) {
	for _, p := range f.s.providers {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, nil
}

func (f *fakeProviderRepo) List(_ context.Context, _, _ int) ([]*provider.Provider, int, error) {
	return nil, 0, nil
}

type fakePatientRepo struct{ s *fakeStore }

func (f *fakePatientRepo) GetByIdentity(_ context.Context, given, family, birthDate string) (*patient.Patient, error) {
	for _, p := range f.s.patients {
		if p.GivenName == given && p.FamilyName == family && p.BirthDate == birthDate {
			return p, nil
		}
	}
	return nil, nil
}

func (f *fakePatientRepo) Create(_ context.Context, p *patient.Patient) error {
	p.ID = f.s.id()
	f.s.patients = append(f.s.patients, p)
	return nil
}

func (f *fakePatientRepo) UpdateDetails(_ context.Context, id int64, gender, sourceFile string, dataSourceID *int64) error {
	for _, p := range f.s.patients {
		if p.ID != id {
			continue
		}
		if gender != "" {
			p.Gender = gender
		}
		if sourceFile != "" {
			p.SourceFile = sourceFile
		}
		if dataSourceID != nil {
			p.DataSourceID = dataSourceID
		}
	}
	return nil
}

func (f *fakePatientRepo) GetByID(_ context.Context, id int64) (*patient.Patient, error) {
	for _, p := range f.s.patients {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, nil
}

func (f *fakePatientRepo) List(_ context.Context, _, _ int) ([]*patient.Patient, int, error) {
	return f.s.patients, len(f.s.patients), nil
}

type fakeEncounterRepo struct{ s *fakeStore }

func sameProvider(a, b *int64) bool {
	if (a == nil) != (b == nil) {
		return false
	}
	return a == nil || *a == *b
}

func (f *fakeEncounterRepo) FindID(_ context.Context, patientID int64, encounterDate string, providerID *int64, sourceEncounterID string) (int64, error) {
	if sourceEncounterID != "" {
		for _, e := range f.s.encounters {
			if e.PatientID == patientID && e.SourceEncounterID == sourceEncounterID {
				return e.ID, nil
			}
		}
	}
	if encounterDate != "" {
		for _, e := range f.s.encounters {
			if e.PatientID == patientID && e.EncounterDate == encounterDate {
				return e.ID, nil
			}
		}
		if len(encounterDate) >= 8 {
			day := encounterDate[:8]
			for _, e := range f.s.encounters {
				if e.PatientID == patientID && len(e.EncounterDate) >= 8 && e.EncounterDate[:8] == day {
					return e.ID, nil
				}
			}
		}
	}
	if providerID != nil {
		for i := len(f.s.encounters) - 1; i >= 0; i-- {
			e := f.s.encounters[i]
			if e.PatientID == patientID && sameProvider(e.ProviderID, providerID) {
				return e.ID, nil
			}
		}
	}
	return 0, nil
}

func (f *fakeEncounterRepo) GetByNaturalKey(_ context.Context, patientID int64, encounterDate string, providerID *int64, sourceEncounterID string) (*encounter.Encounter, error) {
	for _, e := range f.s.encounters {
		if e.PatientID == patientID && e.EncounterDate == encounterDate &&
			sameProvider(e.ProviderID, providerID) && e.SourceEncounterID == sourceEncounterID {
			return e, nil
		}
	}
	return nil, nil
}

func (f *fakeEncounterRepo) Create(_ context.Context, e *encounter.Encounter) error {
	e.ID = f.s.id()
	f.s.encounters = append(f.s.encounters, e)
	return nil
}

func (f *fakeEncounterRepo) UpdateDetails(_ context.Context, id int64, encounterType, notes, reasonForVisit string) error {
	for _, e := range f.s.encounters {
		if e.ID != id {
			continue
		}
		if encounterType != "" {
			e.EncounterType = encounterType
		}
		if notes != "" {
			e.Notes = notes
		}
		if reasonForVisit != "" {
			e.ReasonForVisit = reasonForVisit
		}
	}
	return nil
}

func (f *fakeEncounterRepo) GetByID(_ context.Context, id int64) (*encounter.Encounter, error) {
	for _, e := range f.s.encounters {
		if e.ID == id {
			return e, nil
		}
	}
	return nil, nil
}

func (f *fakeEncounterRepo) ListByPatient(_ context.Context, patientID int64) ([]*encounter.Encounter, error) {
	return f.s.encounters, nil
}

type fakeMedicationRepo struct{ s *fakeStore }

func (f *fakeMedicationRepo) ExistingKeys(_ context.Context, patientID int64) (map[medication.Key]bool, error) {
	keys := make(map[medication.Key]bool)
	for _, m := range f.s.meds {
		if m.PatientID != patientID {
			continue
		}
		k := medication.Key{EncounterID: -1, Name: m.Name, Dose: m.Dose, StartDate: m.StartDate}
		if m.EncounterID != nil {
			k.EncounterID = *m.EncounterID
		}
		keys[k] = true
	}
	return keys, nil
}

func (f *fakeMedicationRepo) Create(_ context.Context, m *medication.Medication) error {
	for _, existing := range f.s.meds {
		if existing.PatientID == m.PatientID && existing.Name == m.Name &&
			existing.Dose == m.Dose && existing.StartDate == m.StartDate &&
			sameProvider(existing.EncounterID, m.EncounterID) {
			return medication.ErrDuplicate
		}
	}
	m.ID = f.s.id()
	f.s.meds = append(f.s.meds, m)
	return nil
}

func (f *fakeMedicationRepo) BackfillSource(_ context.Context, m *medication.Medication) error {
	if m.DataSourceID == nil {
		return nil
	}
	for _, existing := range f.s.meds {
		if existing.PatientID == m.PatientID && existing.Name == m.Name && existing.DataSourceID == nil {
			existing.DataSourceID = m.DataSourceID
		}
	}
	return nil
}

func (f *fakeMedicationRepo) ListByPatient(_ context.Context, _ int64) ([]*medication.Medication, error) {
	return f.s.meds, nil
}

type fakeProvenanceRepo struct{ s *fakeStore }

func coalesce(existing, incoming string) string {
	if incoming != "" {
		return incoming
	}
	return existing
}

func (f *fakeProvenanceRepo) UpsertDataSource(_ context.Context, ds *provenance.DataSource) (int64, error) {
	if existing, ok := f.s.sources[ds.FileSHA256]; ok {
		existing.OriginalFilename = ds.OriginalFilename
		existing.SourceArchive = coalesce(existing.SourceArchive, ds.SourceArchive)
		existing.DocumentCreated = coalesce(existing.DocumentCreated, ds.DocumentCreated)
		existing.RepositoryUniqueID = coalesce(existing.RepositoryUniqueID, ds.RepositoryUniqueID)
		existing.DocumentHash = coalesce(existing.DocumentHash, ds.DocumentHash)
		existing.AuthorInstitution = coalesce(existing.AuthorInstitution, ds.AuthorInstitution)
		if existing.DocumentSize == nil {
			existing.DocumentSize = ds.DocumentSize
		}
		return existing.ID, nil
	}
	ds.ID = f.s.id()
	f.s.sources[ds.FileSHA256] = ds
	return ds.ID, nil
}

func (f *fakeProvenanceRepo) GetDataSourceByHash(_ context.Context, fileSHA256 string) (*provenance.DataSource, error) {
	return f.s.sources[fileSHA256], nil
}

func (f *fakeProvenanceRepo) GetAttachmentByPath(_ context.Context, patientID int64, filePath string) (*provenance.Attachment, error) {
	for _, a := range f.s.attachments {
		if a.PatientID != nil && *a.PatientID == patientID && a.FilePath == filePath {
			return a, nil
		}
	}
	return nil, nil
}

func (f *fakeProvenanceRepo) CreateAttachment(_ context.Context, a *provenance.Attachment) error {
	a.ID = f.s.id()
	f.s.attachments = append(f.s.attachments, a)
	return nil
}

func (f *fakeProvenanceRepo) UpdateAttachment(_ context.Context, id int64, mimeType, description string, dataSourceID *int64) error {
	for _, a := range f.s.attachments {
		if a.ID != id {
			continue
		}
		if mimeType != "" {
			a.MimeType = mimeType
		}
		if description != "" {
			a.Description = description
		}
		if dataSourceID != nil {
			a.DataSourceID = dataSourceID
		}
	}
	return nil
}

func (f *fakeProvenanceRepo) LinkAttachment(_ context.Context, dataSourceID, attachmentID int64) error {
	for _, ds := range f.s.sources {
		if ds.ID == dataSourceID {
			ds.AttachmentID = &attachmentID
		}
	}
	return nil
}

// The remaining fact repos are exercised with empty record sets in the
// fixture; they only need to satisfy their interfaces.

type fakeConditionRepo struct{}

func (fakeConditionRepo) GetByNaturalKey(_ context.Context, _ int64, _, _, _ string) (*condition.Condition, error) {
	return nil, nil
}
func (fakeConditionRepo) Create(_ context.Context, _ *condition.Condition) error { return nil }
func (fakeConditionRepo) UpdateDetails(_ context.Context, _ int64, _, _ string, _, _ *int64) error {
	return nil
}
func (fakeConditionRepo) AddCode(_ context.Context, _ *condition.Code) error { return nil }
func (fakeConditionRepo) ListByPatient(_ context.Context, _ int64) ([]*condition.Condition, error) {
	return nil, nil
}
func (fakeConditionRepo) ListCodes(_ context.Context, _ int64) ([]*condition.Code, error) {
	return nil, nil
}

type fakeProcedureRepo struct{}

func (fakeProcedureRepo) GetByNaturalKey(_ context.Context, _ int64, _, _, _ string) (*procedure.Procedure, error) {
	return nil, nil
}
func (fakeProcedureRepo) Create(_ context.Context, _ *procedure.Procedure) error { return nil }
func (fakeProcedureRepo) UpdateDetails(_ context.Context, _ int64, _, _ string, _, _ *int64) error {
	return nil
}
func (fakeProcedureRepo) AddCode(_ context.Context, _ *procedure.Code) error { return nil }
func (fakeProcedureRepo) ListByPatient(_ context.Context, _ int64) ([]*procedure.Procedure, error) {
	return nil, nil
}
func (fakeProcedureRepo) ListCodes(_ context.Context, _ int64) ([]*procedure.Code, error) {
	return nil, nil
}

type fakeLabRepo struct{}

func (fakeLabRepo) ExistingKeys(_ context.Context, _ int64) (map[labresult.Key]bool, error) {
	return map[labresult.Key]bool{}, nil
}

func (fakeLabRepo) Create(_ context.Context, _ *labresult.LabResult) error         { return nil }
func (fakeLabRepo) BackfillSource(_ context.Context, _ *labresult.LabResult) error { return nil }
func (fakeLabRepo) ListByPatient(_ context.Context, _ int64) ([]*labresult.LabResult, error) {
	return nil, nil
}
func (fakeLabRepo) Series(_ context.Context, _ int64, _ string) ([]*labresult.LabResult, error) {
	return nil, nil
}

type fakeVitalRepo struct{}

func (fakeVitalRepo) Create(_ context.Context, _ *vital.Vital) error         { return nil }
func (fakeVitalRepo) BackfillSource(_ context.Context, _ *vital.Vital) error { return nil }
func (fakeVitalRepo) ListByPatient(_ context.Context, _ int64) ([]*vital.Vital, error) {
	return nil, nil
}
func (fakeVitalRepo) Series(_ context.Context, _ int64, _ string) ([]*vital.Vital, error) {
	return nil, nil
}

type fakeImmunizationRepo struct{}

func (fakeImmunizationRepo) ExistingKeys(_ context.Context, _ int64) (map[immunization.Key]bool, error) {
	return map[immunization.Key]bool{}, nil
}
func (fakeImmunizationRepo) Create(_ context.Context, _ *immunization.Immunization) error {
	return nil
}
func (fakeImmunizationRepo) ListByPatient(_ context.Context, _ int64) ([]*immunization.Immunization, error) {
	return nil, nil
}

type fakeAllergyRepo struct{}

func (fakeAllergyRepo) GetByNaturalKey(_ context.Context, _ int64, _, _, _, _ string) (*allergy.Allergy, error) {
	return nil, nil
}
func (fakeAllergyRepo) Create(_ context.Context, _ *allergy.Allergy) error         { return nil }
func (fakeAllergyRepo) Update(_ context.Context, _ int64, _ allergy.Updates) error { return nil }
func (fakeAllergyRepo) ListByPatient(_ context.Context, _ int64) ([]*allergy.Allergy, error) {
	return nil, nil
}

type fakeInsuranceRepo struct{}

func (fakeInsuranceRepo) GetByNaturalKey(_ context.Context, _ int64, _, _, _, _ string) (*insurance.Policy, error) {
	return nil, nil
}
func (fakeInsuranceRepo) Create(_ context.Context, _ *insurance.Policy) error { return nil }
func (fakeInsuranceRepo) Update(_ context.Context, _ int64, _ insurance.Updates) error {
	return nil
}
func (fakeInsuranceRepo) ListByPatient(_ context.Context, _ int64) ([]*insurance.Policy, error) {
	return nil, nil
}

type fakeNoteRepo struct{}

func (fakeNoteRepo) Create(_ context.Context, _ *progressnote.Note) error         { return nil }
func (fakeNoteRepo) BackfillSource(_ context.Context, _ *progressnote.Note) error { return nil }
func (fakeNoteRepo) ListByPatient(_ context.Context, _ int64) ([]*progressnote.Note, error) {
	return nil, nil
}

const fixtureCCD = `<?xml version="1.0"?>
<ClinicalDocument xmlns="urn:hl7-org:v3">
  <recordTarget>
    <patientRole>
      <patient>
        <name><given>Maria</given><family>Gonzalez</family></name>
        <administrativeGenderCode code="F"/>
        <birthTime value="19850301"/>
      </patient>
    </patientRole>
  </recordTarget>
  <component>
    <structuredBody>
      <component>
        <section>
          <code code="46240-8"/>
          <entry>
            <encounter moodCode="EVN">
              <id extension="ENC-100"/>
              <code code="99213" displayName="Office outpatient visit"/>
              <statusCode code="completed"/>
              <effectiveTime>
                <low value="20240115103000"/>
                <high value="20240115110000"/>
              </effectiveTime>
              <performer>
                <assignedEntity>
                  <assignedPerson><name>Sarah Chen MD</name></assignedPerson>
                </assignedEntity>
              </performer>
            </encounter>
          </entry>
        </section>
      </component>
      <component>
        <section>
          <code code="10160-0"/>
          <entry>
            <substanceAdministration classCode="SBADM" moodCode="EVN">
              <templateId root="2.16.840.1.113883.10.20.22.4.16"/>
              <statusCode code="active"/>
              <effectiveTime>
                <low value="20240115103000"/>
              </effectiveTime>
              <doseQuantity value="10" unit="mg"/>
              <consumable>
                <manufacturedProduct>
                  <manufacturedMaterial>
                    <code code="314076" displayName="Lisinopril 10 MG Oral Tablet"/>
                  </manufacturedMaterial>
                </manufacturedProduct>
              </consumable>
            </substanceAdministration>
          </entry>
        </section>
      </component>
    </structuredBody>
  </component>
</ClinicalDocument>`

const fixtureMetadata = `<?xml version="1.0"?>
<rim:RegistryObjectList xmlns:rim="urn:oasis:names:tc:ebxml-regrep:xsd:rim:3.0">
  <rim:ExtrinsicObject id="doc1" mimeType="text/xml">
    <rim:Slot name="creationTime">
      <rim:ValueList><rim:Value>20240110120000</rim:Value></rim:ValueList>
    </rim:Slot>
    <rim:Slot name="repositoryUniqueId">
      <rim:ValueList><rim:Value>1.2.840.113619.6.197</rim:Value></rim:ValueList>
    </rim:Slot>
    <rim:Slot name="URI">
      <rim:ValueList><rim:Value>SUBSET01/DOC0001.XML</rim:Value></rim:ValueList>
    </rim:Slot>
    <rim:Classification classificationScheme="urn:uuid:93606bcf-9494-43ec-9b4e-a7748d1a838d">
      <rim:Slot name="authorInstitution">
        <rim:ValueList><rim:Value>General Hospital^^^^^&amp;1.2.3.4&amp;ISO</rim:Value></rim:ValueList>
      </rim:Slot>
    </rim:Classification>
  </rim:ExtrinsicObject>
</rim:RegistryObjectList>`

func writeArchive(t *testing.T, rawDir string) {
	t.Helper()
	f, err := os.Create(filepath.Join(rawDir, "export.zip"))
	if err != nil {
		t.Fatal(err)
	}
	zw := zip.NewWriter(f)
	for name, body := range map[string]string{
		"IHE_XDM/SUBSET01/DOC0001.XML":  fixtureCCD,
		"IHE_XDM/SUBSET01/METADATA.XML": fixtureMetadata,
	} {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(body)); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
}

func newTestPipeline(t *testing.T, store *fakeStore) *Pipeline {
	t.Helper()
	dir := t.TempDir()
	rawDir := filepath.Join(dir, "raw")
	if err := os.MkdirAll(rawDir, 0o755); err != nil {
		t.Fatal(err)
	}
	writeArchive(t, rawDir)

	providers := provider.NewService(&fakeProviderRepo{store})
	encounters := encounter.NewService(&fakeEncounterRepo{store}, providers)
	svc := Services{
		Provenance:    provenance.NewService(&fakeProvenanceRepo{store}),
		Patients:      patient.NewService(&fakePatientRepo{store}),
		Encounters:    encounters,
		Conditions:    condition.NewService(fakeConditionRepo{}, providers, encounters),
		Procedures:    procedure.NewService(fakeProcedureRepo{}, providers, encounters),
		Medications:   medication.NewService(&fakeMedicationRepo{store}, encounters),
		Labs:          labresult.NewService(fakeLabRepo{}, providers, encounters),
		Vitals:        vital.NewService(fakeVitalRepo{}, encounters),
		Immunizations: immunization.NewService(fakeImmunizationRepo{}),
		Allergies:     allergy.NewService(fakeAllergyRepo{}, providers, encounters),
		Insurance:     insurance.NewService(fakeInsuranceRepo{}),
		Notes:         progressnote.NewService(fakeNoteRepo{}, providers, encounters),
	}

	p := New(nil, svc, Options{
		RawDir:        rawDir,
		ParsedDir:     filepath.Join(dir, "parsed"),
		AttachmentDir: filepath.Join(dir, "attachments"),
	}, zerolog.Nop())
	p.inTx = func(ctx context.Context, fn func(ctx context.Context) error) error {
		return fn(ctx)
	}
	return p
}

func TestRunIngestsArchive(t *testing.T) {
	store := newFakeStore()
	p := newTestPipeline(t, store)

	summary, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Archives != 1 || summary.Documents != 1 || summary.Failed != 0 || summary.Skipped != 0 {
		t.Fatalf("summary = %+v", summary)
	}
	// One encounter plus one medication.
	if summary.Inserted != 2 || summary.Duplicates != 0 {
		t.Errorf("inserted=%d duplicates=%d", summary.Inserted, summary.Duplicates)
	}

	if len(store.patients) != 1 {
		t.Fatalf("patients = %d", len(store.patients))
	}
	pat := store.patients[0]
	if pat.GivenName != "Maria" || pat.FamilyName != "Gonzalez" || pat.Gender != "F" {
		t.Errorf("patient = %+v", pat)
	}

	if len(store.encounters) != 1 {
		t.Fatalf("encounters = %d", len(store.encounters))
	}
	enc := store.encounters[0]
	if enc.EncounterDate != "20240115103000" || enc.SourceEncounterID != "ENC-100" {
		t.Errorf("encounter = %+v", enc)
	}
	if enc.ProviderID == nil {
		t.Error("encounter has no provider")
	}

	if len(store.meds) != 1 {
		t.Fatalf("medications = %d", len(store.meds))
	}
	med := store.meds[0]
	if med.Name != "Lisinopril 10 MG Oral Tablet" || med.Dose != "10 mg" {
		t.Errorf("medication = %+v", med)
	}
	if med.Notes != "RxNorm: 314076" {
		t.Errorf("medication notes = %q", med.Notes)
	}
	// The medication's start timestamp resolves it to the parsed encounter.
	if med.EncounterID == nil || *med.EncounterID != enc.ID {
		t.Errorf("medication encounter = %v, want %d", med.EncounterID, enc.ID)
	}
}

func TestRunRecordsProvenanceFromRegistryMetadata(t *testing.T) {
	store := newFakeStore()
	p := newTestPipeline(t, store)

	if _, err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(store.sources) != 1 {
		t.Fatalf("data sources = %d", len(store.sources))
	}
	var ds *provenance.DataSource
	for _, v := range store.sources {
		ds = v
	}
	if ds.SourceArchive != "export.zip" || ds.OriginalFilename != "DOC0001.XML" {
		t.Errorf("data source = %+v", ds)
	}
	if ds.DocumentCreated != "20240110120000" || ds.AuthorInstitution != "General Hospital" {
		t.Errorf("registry metadata not carried: %+v", ds)
	}

	if len(store.attachments) != 1 {
		t.Fatalf("attachments = %d", len(store.attachments))
	}
	att := store.attachments[0]
	if ds.AttachmentID == nil || *ds.AttachmentID != att.ID {
		t.Errorf("data source not linked to attachment: %+v", ds)
	}
	// The preserved copy exists on disk.
	if _, err := os.Stat(att.FilePath); err != nil {
		t.Errorf("attachment copy missing: %v", err)
	}
}

func TestRunIsIdempotent(t *testing.T) {
	store := newFakeStore()
	p := newTestPipeline(t, store)
	ctx := context.Background()

	if _, err := p.Run(ctx); err != nil {
		t.Fatalf("first run: %v", err)
	}
	summary, err := p.Run(ctx)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}

	if summary.Documents != 1 || summary.Failed != 0 {
		t.Fatalf("summary = %+v", summary)
	}
	if summary.Inserted != 0 || summary.Updated != 0 {
		t.Errorf("second run wrote rows: %+v", summary)
	}
	if summary.Duplicates != 1 {
		t.Errorf("duplicates = %d, want the re-inserted medication", summary.Duplicates)
	}
	if len(store.patients) != 1 || len(store.encounters) != 1 || len(store.meds) != 1 {
		t.Errorf("row counts changed: patients=%d encounters=%d meds=%d",
			len(store.patients), len(store.encounters), len(store.meds))
	}
	if len(store.sources) != 1 || len(store.attachments) != 1 {
		t.Errorf("provenance duplicated: sources=%d attachments=%d",
			len(store.sources), len(store.attachments))
	}
}

func TestRunSkipsDocumentsWithoutPatientName(t *testing.T) {
	store := newFakeStore()
	p := newTestPipeline(t, store)

	// Replace the archive with one whose document has no patient name.
	anon := `<?xml version="1.0"?>
<ClinicalDocument xmlns="urn:hl7-org:v3">
  <recordTarget><patientRole><patient><name/></patient></patientRole></recordTarget>
</ClinicalDocument>`
	f, err := os.Create(filepath.Join(p.opts.RawDir, "export.zip"))
	if err != nil {
		t.Fatal(err)
	}
	zw := zip.NewWriter(f)
	w, err := zw.Create("IHE_XDM/SUBSET01/DOC0001.XML")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write([]byte(anon)); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	summary, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Skipped != 1 || summary.Documents != 0 {
		t.Errorf("summary = %+v", summary)
	}
	if len(store.patients) != 0 {
		t.Errorf("anonymous patient was stored")
	}
}

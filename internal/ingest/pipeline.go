// Package ingest drives the end-to-end document pipeline: archives are
// extracted, each CCD is parsed, and its facts are reconciled into the store
// inside one transaction per document.
package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
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
	"github.com/ccdstore/ccdstore/internal/domain/vital"
	"github.com/ccdstore/ccdstore/internal/platform/ccd"
	"github.com/ccdstore/ccdstore/internal/platform/db"
	"github.com/ccdstore/ccdstore/internal/platform/xdm"
)

// Services bundles the domain services the pipeline writes through.
type Services struct {
	Provenance    *provenance.Service
	Patients      *patient.Service
	Encounters    *encounter.Service
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

// Options configures the directories the pipeline reads and writes.
type Options struct {
	// RawDir holds incoming *.zip archives.
	RawDir string
	// ParsedDir receives one extracted directory per archive.
	ParsedDir string
	// AttachmentDir receives a preserved copy of each ingested document.
	// Empty disables attachment copies; the original path is linked instead.
	AttachmentDir string
}

// Summary reports what one pipeline run did.
type Summary struct {
	Archives   int
	Documents  int
	Skipped    int
	Failed     int
	Inserted   int
	Updated    int
	Duplicates int
}

// Pipeline ingests CCD archives. One document is one transaction: a failure
// rolls back every fact from that document and the run moves on.
type Pipeline struct {
	svc  Services
	opts Options
	log  zerolog.Logger

	inTx func(ctx context.Context, fn func(ctx context.Context) error) error
}

func New(pool *pgxpool.Pool, svc Services, opts Options, log zerolog.Logger) *Pipeline {
	return &Pipeline{
		svc:  svc,
		opts: opts,
		log:  log,
		inTx: func(ctx context.Context, fn func(ctx context.Context) error) error {
			return db.RunInTx(ctx, pool, fn)
		},
	}
}

// Run extracts every archive under RawDir and ingests the documents inside.
// Per-document failures are logged and counted; only setup failures (an
// unreadable raw directory) abort the run.
func (p *Pipeline) Run(ctx context.Context) (*Summary, error) {
	runID := uuid.New().String()
	log := p.log.With().Str("run_id", runID).Logger()

	archives, err := filepath.Glob(filepath.Join(p.opts.RawDir, "*.zip"))
	if err != nil {
		return nil, fmt.Errorf("ingest: list archives: %w", err)
	}
	sort.Strings(archives)

	summary := &Summary{}
	for _, archive := range archives {
		summary.Archives++
		p.runArchive(ctx, log, archive, summary)
	}

	log.Info().
		Int("archives", summary.Archives).
		Int("documents", summary.Documents).
		Int("skipped", summary.Skipped).
		Int("failed", summary.Failed).
		Int("inserted", summary.Inserted).
		Int("updated", summary.Updated).
		Int("duplicates", summary.Duplicates).
		Msg("ingest run complete")
	return summary, nil
}

func (p *Pipeline) runArchive(ctx context.Context, log zerolog.Logger, archive string, summary *Summary) {
	log = log.With().Str("archive", filepath.Base(archive)).Logger()

	stem := strings.TrimSuffix(filepath.Base(archive), filepath.Ext(archive))
	dest := filepath.Join(p.opts.ParsedDir, stem)
	extracted, err := xdm.Extract(archive, dest)
	if err != nil {
		log.Warn().Err(err).Msg("extraction failed, archive skipped")
		summary.Failed++
		return
	}
	if extracted {
		log.Info().Str("dest", dest).Msg("archive extracted")
	}

	metaIndex, err := xdm.LoadMetadata(dest)
	if err != nil {
		log.Warn().Err(err).Msg("registry metadata unreadable, continuing without it")
		metaIndex = map[string]xdm.DocumentEntry{}
	}

	docs, err := findDocuments(dest)
	if err != nil {
		log.Warn().Err(err).Msg("walking extracted archive failed")
		summary.Failed++
		return
	}

	for _, doc := range docs {
		p.ingestDocument(ctx, log, archive, doc, metaIndex, summary)
	}
}

// findDocuments returns every XML document under dir, skipping registry
// metadata files.
func findDocuments(dir string) ([]string, error) {
	var docs []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		name := d.Name()
		if !strings.EqualFold(filepath.Ext(name), ".xml") || strings.EqualFold(name, "METADATA.XML") {
			return nil
		}
		docs = append(docs, path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(docs)
	return docs, nil
}

func (p *Pipeline) ingestDocument(ctx context.Context, log zerolog.Logger, archive, path string, metaIndex map[string]xdm.DocumentEntry, summary *Summary) {
	log = log.With().Str("document", filepath.Base(path)).Logger()

	data, err := os.ReadFile(path)
	if err != nil {
		log.Warn().Err(err).Msg("document unreadable, skipped")
		summary.Failed++
		return
	}

	doc, err := ccd.Parse(data)
	if err != nil {
		log.Warn().Err(err).Msg("document unparseable, skipped")
		summary.Skipped++
		return
	}

	patientRec := ccd.ParsePatient(doc)
	if !patientRec.HasName() {
		log.Warn().Msg("document has no patient name, skipped")
		summary.Skipped++
		return
	}

	meta := sourceMetadata(metaIndex[filepath.Base(path)])
	var counts docCounts
	err = p.inTx(ctx, func(ctx context.Context) error {
		dsID, err := p.svc.Provenance.RecordSource(ctx, path, data, filepath.Base(archive), meta)
		if err != nil {
			return fmt.Errorf("record source: %w", err)
		}

		patientID, err := p.svc.Patients.Upsert(ctx, patientRec, filepath.Base(archive), &dsID)
		if err != nil {
			return fmt.Errorf("upsert patient: %w", err)
		}

		if err := p.attachDocument(ctx, patientID, dsID, path, data); err != nil {
			return fmt.Errorf("attach document: %w", err)
		}

		return p.ingestFacts(ctx, doc, patientID, &dsID, &counts)
	})
	if err != nil {
		log.Warn().Err(err).Msg("document ingestion failed, rolled back")
		summary.Failed++
		return
	}

	summary.Documents++
	summary.Inserted += counts.inserted
	summary.Updated += counts.updated
	summary.Duplicates += counts.duplicates
	log.Info().
		Str("patient", strings.TrimSpace(patientRec.Given+" "+patientRec.Family)).
		Int("encounters", counts.encounters).
		Int("conditions", counts.conditions).
		Int("procedures", counts.procedures).
		Int("medications", counts.medications).
		Int("labs", counts.labs).
		Int("vitals", counts.vitals).
		Int("immunizations", counts.immunizations).
		Int("allergies", counts.allergies).
		Int("insurance", counts.insurance).
		Int("notes", counts.notes).
		Int("duplicates", counts.duplicates).
		Msg("document ingested")
}

type docCounts struct {
	encounters, conditions, procedures, medications, labs int
	vitals, immunizations, allergies, insurance, notes    int

	inserted, updated, duplicates int
}

func (c *docCounts) add(section *int, inserted, merged int, mergedAreDuplicates bool) {
	*section += inserted
	c.inserted += inserted
	if mergedAreDuplicates {
		c.duplicates += merged
	} else {
		c.updated += merged
	}
}

func (p *Pipeline) ingestFacts(ctx context.Context, doc *ccd.Document, patientID int64, dsID *int64, counts *docCounts) error {
	ins, upd, err := p.svc.Encounters.Upsert(ctx, patientID, dsID, ccd.ParseEncounters(doc))
	if err != nil {
		return fmt.Errorf("encounters: %w", err)
	}
	counts.add(&counts.encounters, ins, upd, false)

	ins, upd, err = p.svc.Conditions.Upsert(ctx, patientID, dsID, ccd.ParseConditions(doc))
	if err != nil {
		return fmt.Errorf("conditions: %w", err)
	}
	counts.add(&counts.conditions, ins, upd, false)

	ins, upd, err = p.svc.Procedures.Upsert(ctx, patientID, dsID, ccd.ParseProcedures(doc))
	if err != nil {
		return fmt.Errorf("procedures: %w", err)
	}
	counts.add(&counts.procedures, ins, upd, false)

	ins, dup, err := p.svc.Medications.Insert(ctx, patientID, dsID, ccd.ParseMedications(doc))
	if err != nil {
		return fmt.Errorf("medications: %w", err)
	}
	counts.add(&counts.medications, ins, dup, true)

	ins, dup, err = p.svc.Labs.Insert(ctx, patientID, dsID, ccd.ParseLabs(doc))
	if err != nil {
		return fmt.Errorf("labs: %w", err)
	}
	counts.add(&counts.labs, ins, dup, true)

	ins, dup, err = p.svc.Vitals.Insert(ctx, patientID, dsID, ccd.ParseVitals(doc))
	if err != nil {
		return fmt.Errorf("vitals: %w", err)
	}
	counts.add(&counts.vitals, ins, dup, true)

	ins, dup, err = p.svc.Immunizations.Insert(ctx, patientID, dsID, ccd.ParseImmunizations(doc))
	if err != nil {
		return fmt.Errorf("immunizations: %w", err)
	}
	counts.add(&counts.immunizations, ins, dup, true)

	ins, upd, err = p.svc.Allergies.Upsert(ctx, patientID, dsID, ccd.ParseAllergies(doc))
	if err != nil {
		return fmt.Errorf("allergies: %w", err)
	}
	counts.add(&counts.allergies, ins, upd, false)

	ins, upd, err = p.svc.Insurance.Upsert(ctx, patientID, dsID, ccd.ParseInsurance(doc))
	if err != nil {
		return fmt.Errorf("insurance: %w", err)
	}
	counts.add(&counts.insurance, ins, upd, false)

	ins, dup, err = p.svc.Notes.Insert(ctx, patientID, dsID, ccd.ParseProgressNotes(doc))
	if err != nil {
		return fmt.Errorf("progress notes: %w", err)
	}
	counts.add(&counts.notes, ins, dup, true)

	return nil
}

// attachDocument preserves the raw document and links it to its data source.
// With an attachment directory configured the file is copied there first so
// the stored path survives re-extraction of the parsed tree.
func (p *Pipeline) attachDocument(ctx context.Context, patientID, dsID int64, path string, data []byte) error {
	stored := path
	if p.opts.AttachmentDir != "" {
		rel, err := filepath.Rel(p.opts.ParsedDir, path)
		if err != nil || strings.HasPrefix(rel, "..") {
			rel = filepath.Base(path)
		}
		stored = filepath.Join(p.opts.AttachmentDir, rel)
		if err := os.MkdirAll(filepath.Dir(stored), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(stored, data, 0o644); err != nil {
			return err
		}
	}
	_, err := p.svc.Provenance.AttachDocument(ctx, patientID, dsID, stored, "text/xml", "Ingested CCD document")
	return err
}

func sourceMetadata(entry xdm.DocumentEntry) provenance.Metadata {
	return provenance.Metadata{
		DocumentCreated:    entry.CreationTime,
		RepositoryUniqueID: entry.RepositoryUniqueID,
		DocumentHash:       entry.Hash,
		DocumentSize:       entry.Size,
		AuthorInstitution:  entry.AuthorInstitution,
	}
}

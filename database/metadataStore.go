package database

import (
	"github.com/go-pg/pg"

	"dicom-scp-server/ingest"
	"dicom-scp-server/models"
)

// MetadataStore persists batches of received-object metadata. It
// implements ingest.BatchExecutor: the whole batch commits in one
// transaction with inserts ordered parent before child, so no row can
// reference a parent that is not yet visible.
type MetadataStore struct {
	db *pg.DB
}

// NewMetadataStore returns a MetadataStore implementation.
func NewMetadataStore(db *pg.DB) *MetadataStore {
	return &MetadataStore{
		db: db,
	}
}

// ExecBatch inserts the batch as Patients, then Studies, then Series,
// then Instances, each insert-if-absent on the entity's unique
// identifier. Re-ingesting the same object is a no-op at every level.
func (store *MetadataStore) ExecBatch(sets []*ingest.RecordSet) error {
	if len(sets) == 0 {
		return nil
	}

	patients, studies, series, instances := groupRecords(sets)

	return store.db.RunInTransaction(func(tx *pg.Tx) error {
		if _, err := tx.Model(&patients).
			OnConflict("(patient_id) DO NOTHING").
			Insert(); err != nil {
			return err
		}
		if _, err := tx.Model(&studies).
			OnConflict("(study_instance_uid) DO NOTHING").
			Insert(); err != nil {
			return err
		}
		if _, err := tx.Model(&series).
			OnConflict("(series_instance_uid) DO NOTHING").
			Insert(); err != nil {
			return err
		}
		if _, err := tx.Model(&instances).
			OnConflict("(sop_instance_uid) DO NOTHING").
			Insert(); err != nil {
			return err
		}
		return nil
	})
}

// groupRecords splits the batch by entity kind, deduplicating on the
// identity key so one multi-row INSERT never carries the same key twice.
func groupRecords(sets []*ingest.RecordSet) ([]*models.Patient, []*models.Study, []*models.Series, []*models.Instance) {
	var (
		patients  []*models.Patient
		studies   []*models.Study
		series    []*models.Series
		instances []*models.Instance

		seenPatients  = map[string]bool{}
		seenStudies   = map[string]bool{}
		seenSeries    = map[string]bool{}
		seenInstances = map[string]bool{}
	)

	for _, rs := range sets {
		if !seenPatients[rs.Patient.PatientID] {
			seenPatients[rs.Patient.PatientID] = true
			patients = append(patients, rs.Patient)
		}
		if !seenStudies[rs.Study.StudyInstanceUID] {
			seenStudies[rs.Study.StudyInstanceUID] = true
			studies = append(studies, rs.Study)
		}
		if !seenSeries[rs.Series.SeriesInstanceUID] {
			seenSeries[rs.Series.SeriesInstanceUID] = true
			series = append(series, rs.Series)
		}
		if !seenInstances[rs.Instance.SOPInstanceUID] {
			seenInstances[rs.Instance.SOPInstanceUID] = true
			instances = append(instances, rs.Instance)
		}
	}

	return patients, studies, series, instances
}

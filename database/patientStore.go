package database

import (
	"github.com/go-pg/pg"
	"github.com/go-pg/pg/orm"

	"dicom-scp-server/models"
)

// PatientStore implements database operations for patient management.
type PatientStore struct {
	db *pg.DB
}

// NewPatientStore returns a PatientStore implementation.
func NewPatientStore(db *pg.DB) *PatientStore {
	return &PatientStore{
		db: db,
	}
}

func (store *PatientStore) FindBy(fields map[string]interface{}, options *SelectQueryOptions, tx *pg.Tx) ([]*models.Patient, error) {
	var result []*models.Patient
	query := store.GetOrm(tx).Model(&result)

	query, err := applyFieldFilters(query, &models.Patient{}, fields)
	if err != nil {
		return nil, err
	}
	if options != nil {
		query = options.Apply(query)
	}

	err = query.Select()
	return result, err
}

// CountBy counts patients matching the given fields.
func (store *PatientStore) CountBy(fields map[string]interface{}, tx *pg.Tx) (int, error) {
	query := store.GetOrm(tx).Model(&models.Patient{})
	query, err := applyFieldFilters(query, &models.Patient{}, fields)
	if err != nil {
		return 0, err
	}
	return query.Count()
}

func (store *PatientStore) GetOrm(tx *pg.Tx) orm.DB {
	if tx != nil {
		return tx
	}
	return store.db
}

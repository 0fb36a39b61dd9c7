package database

import (
	"github.com/go-pg/pg"
	"github.com/go-pg/pg/orm"

	"dicom-scp-server/models"
)

// StudyStore implements database operations for study management.
type StudyStore struct {
	db *pg.DB
}

// NewStudyStore returns a StudyStore implementation.
func NewStudyStore(db *pg.DB) *StudyStore {
	return &StudyStore{
		db: db,
	}
}

func (store *StudyStore) FindBy(fields map[string]interface{}, options *SelectQueryOptions, tx *pg.Tx) ([]*models.Study, error) {
	var result []*models.Study
	query := store.GetOrm(tx).Model(&result)

	query, err := applyFieldFilters(query, &models.Study{}, fields)
	if err != nil {
		return nil, err
	}
	if options != nil {
		query = options.Apply(query)
	}

	err = query.Select()
	return result, err
}

// CountBy counts studies matching the given fields.
func (store *StudyStore) CountBy(fields map[string]interface{}, tx *pg.Tx) (int, error) {
	query := store.GetOrm(tx).Model(&models.Study{})
	query, err := applyFieldFilters(query, &models.Study{}, fields)
	if err != nil {
		return 0, err
	}
	return query.Count()
}

func (store *StudyStore) GetOrm(tx *pg.Tx) orm.DB {
	if tx != nil {
		return tx
	}
	return store.db
}

package database

import (
	"github.com/go-pg/pg"
	"github.com/go-pg/pg/orm"

	"dicom-scp-server/models"
)

// SeriesStore implements database operations for series management.
type SeriesStore struct {
	db *pg.DB
}

// NewSeriesStore returns a SeriesStore implementation.
func NewSeriesStore(db *pg.DB) *SeriesStore {
	return &SeriesStore{
		db: db,
	}
}

func (store *SeriesStore) FindBy(fields map[string]interface{}, options *SelectQueryOptions, tx *pg.Tx) ([]*models.Series, error) {
	var result []*models.Series
	query := store.GetOrm(tx).Model(&result)

	query, err := applyFieldFilters(query, &models.Series{}, fields)
	if err != nil {
		return nil, err
	}
	if options != nil {
		query = options.Apply(query)
	}

	err = query.Select()
	return result, err
}

// CountBy counts series matching the given fields.
func (store *SeriesStore) CountBy(fields map[string]interface{}, tx *pg.Tx) (int, error) {
	query := store.GetOrm(tx).Model(&models.Series{})
	query, err := applyFieldFilters(query, &models.Series{}, fields)
	if err != nil {
		return 0, err
	}
	return query.Count()
}

func (store *SeriesStore) GetOrm(tx *pg.Tx) orm.DB {
	if tx != nil {
		return tx
	}
	return store.db
}

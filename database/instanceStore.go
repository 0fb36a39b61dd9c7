package database

import (
	"github.com/go-pg/pg"
	"github.com/go-pg/pg/orm"

	"dicom-scp-server/models"
)

// InstanceStore implements database operations for instance management.
type InstanceStore struct {
	db *pg.DB
}

// NewInstanceStore returns a InstanceStore implementation.
func NewInstanceStore(db *pg.DB) *InstanceStore {
	return &InstanceStore{
		db: db,
	}
}

func (store *InstanceStore) FindBy(fields map[string]interface{}, options *SelectQueryOptions, tx *pg.Tx) ([]*models.Instance, error) {
	var result []*models.Instance
	query := store.GetOrm(tx).Model(&result)

	query, err := applyFieldFilters(query, &models.Instance{}, fields)
	if err != nil {
		return nil, err
	}
	if options != nil {
		query = options.Apply(query)
	}

	err = query.Select()
	return result, err
}

// CountBy counts instances matching the given fields.
func (store *InstanceStore) CountBy(fields map[string]interface{}, tx *pg.Tx) (int, error) {
	query := store.GetOrm(tx).Model(&models.Instance{})
	query, err := applyFieldFilters(query, &models.Instance{}, fields)
	if err != nil {
		return 0, err
	}
	return query.Count()
}

func (store *InstanceStore) GetOrm(tx *pg.Tx) orm.DB {
	if tx != nil {
		return tx
	}
	return store.db
}

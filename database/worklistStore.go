package database

import (
	"github.com/go-pg/pg"
	"github.com/go-pg/pg/orm"

	"dicom-scp-server/models"
)

// WorklistStore implements database operations for worklist management.
type WorklistStore struct {
	db *pg.DB
}

// NewWorklistStore returns a WorklistStore implementation.
func NewWorklistStore(db *pg.DB) *WorklistStore {
	return &WorklistStore{
		db: db,
	}
}

func (store *WorklistStore) FindBy(fields map[string]interface{}, options *SelectQueryOptions, tx *pg.Tx) ([]*models.WorklistEntry, error) {
	var result []*models.WorklistEntry
	query := store.GetOrm(tx).Model(&result)

	query, err := applyFieldFilters(query, &models.WorklistEntry{}, fields)
	if err != nil {
		return nil, err
	}
	if options != nil {
		query = options.Apply(query)
	}

	err = query.Select()
	return result, err
}

// Get gets a worklist entry by ID.
func (store *WorklistStore) Get(id int) (*models.WorklistEntry, error) {
	entry := models.WorklistEntry{ID: id}
	err := store.db.Model(&entry).
		Where("id = ?", id).
		Select()

	return &entry, err
}

// Create creates a new worklist entry.
func (store *WorklistStore) Create(entry *models.WorklistEntry) error {
	_, err := store.db.Model(entry).Insert()
	return err
}

// Update updates a worklist entry.
func (store *WorklistStore) Update(entry *models.WorklistEntry) error {
	_, err := store.db.Model(entry).WherePK().Update()
	return err
}

// Delete deletes a worklist entry.
func (store *WorklistStore) Delete(entry *models.WorklistEntry) error {
	_, err := store.db.Model(entry).WherePK().Delete()
	return err
}

func (store *WorklistStore) GetOrm(tx *pg.Tx) orm.DB {
	if tx != nil {
		return tx
	}
	return store.db
}

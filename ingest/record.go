// Package ingest buffers metadata for received objects and drains it
// into the database in transactional batches.
package ingest

import "dicom-scp-server/models"

// RecordSet is the metadata captured for one received object: one row
// candidate per hierarchy level. The four records are persisted together
// in a single transaction or not at all.
type RecordSet struct {
	Patient  *models.Patient
	Study    *models.Study
	Series   *models.Series
	Instance *models.Instance
}

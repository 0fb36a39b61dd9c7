package models

import (
	"time"

	"github.com/go-pg/pg/orm"
	"github.com/suyashkumar/dicom/pkg/tag"
)

// Study groups the series acquired during one visit. PatientID references
// the owning patient by its DICOM identifier, not by the serial id, so
// that batched insert-if-absent writes never have to resolve parent rows
// first.
type Study struct {
	TableName struct{} `sql:"study"`

	ID        int       `json:"-"`
	CreatedAt time.Time `json:"created_at"`

	StudyInstanceUID string `json:"study_instance_uid" dicom:"StudyInstanceUID"`
	PatientID        string `json:"patient_id" dicom:"PatientID"`
	StudyDate        string `json:"study_date" dicom:"StudyDate"`
	StudyTime        string `json:"study_time" dicom:"StudyTime"`
	StudyDescription string `json:"study_description" dicom:"StudyDescription"`
	AccessionNumber  string `json:"accession_number" dicom:"AccessionNumber"`
}

func (s Study) GetObjectIdFieldTag() tag.Tag {
	return tag.StudyInstanceUID
}

// BeforeInsert hook executed before database insert operation.
func (s *Study) BeforeInsert(db orm.DB) error {
	s.CreatedAt = time.Now()
	return nil
}

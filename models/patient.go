package models

import (
	"time"

	"github.com/go-pg/pg/orm"
	"github.com/suyashkumar/dicom/pkg/tag"
)

// Patient is the top level of the DICOM hierarchy. A row is created the
// first time an object referencing the patient is ingested and is never
// updated afterwards.
type Patient struct {
	TableName struct{} `sql:"patient"`

	ID        int       `json:"-"`
	CreatedAt time.Time `json:"created_at"`

	PatientID        string `json:"patient_id" dicom:"PatientID"`
	PatientName      string `json:"patient_name" dicom:"PatientName"`
	PatientBirthDate string `json:"patient_birth_date" dicom:"PatientBirthDate"`
	PatientSex       string `json:"patient_sex" dicom:"PatientSex"`
}

func (p Patient) GetObjectIdFieldTag() tag.Tag {
	return tag.PatientID
}

// BeforeInsert hook executed before database insert operation.
func (p *Patient) BeforeInsert(db orm.DB) error {
	p.CreatedAt = time.Now()
	return nil
}

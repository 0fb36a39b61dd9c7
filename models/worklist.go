package models

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-pg/pg/orm"
)

// WorklistEntry is a scheduled procedure step served to modalities.
// Unlike the hierarchy tables this entity family is administered over
// the REST API and may be updated in place.
type WorklistEntry struct {
	TableName struct{} `sql:"worklist"`

	ID        int       `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	PatientID               string `json:"patient_id"`
	PatientName             string `json:"patient_name"`
	Modality                string `json:"modality"`
	AccessionNumber         string `json:"accession_number"`
	ScheduledDate           string `json:"scheduled_date"`
	ScheduledTime           string `json:"scheduled_time"`
	ScheduledStationAETitle string `json:"scheduled_station_ae_title"`
	Status                  string `json:"status"`
}

// BeforeInsert hook executed before database insert operation.
func (w *WorklistEntry) BeforeInsert(db orm.DB) error {
	now := time.Now()
	w.CreatedAt = now
	w.UpdatedAt = now
	if w.Status == "" {
		w.Status = "SCHEDULED"
	}
	return w.Validate()
}

// BeforeUpdate hook executed before database update operation.
func (w *WorklistEntry) BeforeUpdate(db orm.DB) error {
	w.UpdatedAt = time.Now()
	return w.Validate()
}

// Validate validates WorklistEntry struct and returns validation errors.
func (w *WorklistEntry) Validate() error {
	return validation.ValidateStruct(w,
		validation.Field(&w.PatientID, validation.Required, validation.Length(1, 64)),
		validation.Field(&w.Modality, validation.Required, validation.Length(2, 16)),
		validation.Field(&w.ScheduledDate, validation.Required, validation.Date("20060102")),
		validation.Field(&w.Status, validation.In("SCHEDULED", "IN_PROGRESS", "COMPLETED", "CANCELLED")),
	)
}

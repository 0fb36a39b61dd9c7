package models

import (
	"time"

	"github.com/go-pg/pg/orm"
	"github.com/suyashkumar/dicom/pkg/tag"
)

type Series struct {
	TableName struct{} `sql:"series"`

	ID        int       `json:"-"`
	CreatedAt time.Time `json:"created_at"`

	SeriesInstanceUID string `json:"series_instance_uid" dicom:"SeriesInstanceUID"`
	StudyInstanceUID  string `json:"study_instance_uid" dicom:"StudyInstanceUID"`
	Modality          string `json:"modality" dicom:"Modality"`
	SeriesNumber      string `json:"series_number" dicom:"SeriesNumber"`
	SeriesDescription string `json:"series_description" dicom:"SeriesDescription"`
}

func (s Series) GetObjectIdFieldTag() tag.Tag {
	return tag.SeriesInstanceUID
}

// BeforeInsert hook executed before database insert operation.
func (s *Series) BeforeInsert(db orm.DB) error {
	s.CreatedAt = time.Now()
	return nil
}

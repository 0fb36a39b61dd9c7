package models

import (
	"time"

	"github.com/go-pg/pg/orm"
	"github.com/suyashkumar/dicom/pkg/tag"
)

// Instance is one stored SOP instance. FilePath points at the Part 10
// file in the object store; it is captured at receive time, not derived.
type Instance struct {
	TableName struct{} `sql:"instance"`

	ID        int       `json:"-"`
	CreatedAt time.Time `json:"created_at"`

	SOPInstanceUID    string `json:"sop_instance_uid" dicom:"SOPInstanceUID"`
	SeriesInstanceUID string `json:"series_instance_uid" dicom:"SeriesInstanceUID"`
	SOPClassUID       string `json:"sop_class_uid" dicom:"SOPClassUID"`
	InstanceNumber    string `json:"instance_number" dicom:"InstanceNumber"`
	FilePath          string `json:"file_path"`
}

func (i Instance) GetObjectIdFieldTag() tag.Tag {
	return tag.SOPInstanceUID
}

// BeforeInsert hook executed before database insert operation.
func (i *Instance) BeforeInsert(db orm.DB) error {
	i.CreatedAt = time.Now()
	return nil
}

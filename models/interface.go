package models

import "github.com/suyashkumar/dicom/pkg/tag"

// DicomObject is implemented by every model that maps to one level of
// the patient/study/series/instance hierarchy.
type DicomObject interface {
	GetObjectIdFieldTag() tag.Tag
}

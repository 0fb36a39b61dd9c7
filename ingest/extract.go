package ingest

import (
	"errors"
	"fmt"

	"github.com/suyashkumar/dicom"

	"dicom-scp-server/dicomutil"
	"dicom-scp-server/models"
)

// ErrMissingUID indicates a received object lacks one of the identifiers
// the hierarchy is keyed on. The affected request fails; the association
// survives.
var ErrMissingUID = errors.New("ingest: required identifier missing")

// ExtractRecordSet maps a parsed dataset to the four hierarchy records.
// Pure apart from reflection: no I/O, no mutation of the dataset. Study,
// series and SOP instance UIDs are required; every other attribute
// defaults to the empty string.
func ExtractRecordSet(dataset dicom.Dataset) (*RecordSet, error) {
	patient := &models.Patient{}
	dicomutil.ExtractDicomObject(dataset, patient)

	study := &models.Study{}
	dicomutil.ExtractDicomObject(dataset, study)

	series := &models.Series{}
	dicomutil.ExtractDicomObject(dataset, series)

	instance := &models.Instance{}
	dicomutil.ExtractDicomObject(dataset, instance)

	switch {
	case study.StudyInstanceUID == "":
		return nil, fmt.Errorf("%w: StudyInstanceUID", ErrMissingUID)
	case series.SeriesInstanceUID == "":
		return nil, fmt.Errorf("%w: SeriesInstanceUID", ErrMissingUID)
	case instance.SOPInstanceUID == "":
		return nil, fmt.Errorf("%w: SOPInstanceUID", ErrMissingUID)
	}

	// Parent references travel with the child so batch inserts never
	// need a lookup.
	study.PatientID = patient.PatientID
	series.StudyInstanceUID = study.StudyInstanceUID
	instance.SeriesInstanceUID = series.SeriesInstanceUID

	return &RecordSet{
		Patient:  patient,
		Study:    study,
		Series:   series,
		Instance: instance,
	}, nil
}

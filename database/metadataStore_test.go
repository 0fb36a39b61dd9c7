package database

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dicom-scp-server/ingest"
	"dicom-scp-server/models"
)

func seriesRecordSet(studyUID, seriesUID string, instance int) *ingest.RecordSet {
	return &ingest.RecordSet{
		Patient:  &models.Patient{PatientID: "PAT001"},
		Study:    &models.Study{StudyInstanceUID: studyUID, PatientID: "PAT001"},
		Series:   &models.Series{SeriesInstanceUID: seriesUID, StudyInstanceUID: studyUID},
		Instance: &models.Instance{SOPInstanceUID: fmt.Sprintf("%s.%d", seriesUID, instance), SeriesInstanceUID: seriesUID},
	}
}

func TestGroupRecordsDeduplicates(t *testing.T) {
	// 4 instances over 2 series of the same study and patient.
	sets := []*ingest.RecordSet{
		seriesRecordSet("1.2.3", "1.2.3.1", 1),
		seriesRecordSet("1.2.3", "1.2.3.1", 2),
		seriesRecordSet("1.2.3", "1.2.3.2", 1),
		seriesRecordSet("1.2.3", "1.2.3.2", 2),
	}

	patients, studies, series, instances := groupRecords(sets)

	assert.Len(t, patients, 1)
	assert.Len(t, studies, 1)
	assert.Len(t, series, 2)
	require.Len(t, instances, 4)

	seen := map[string]bool{}
	for _, instance := range instances {
		assert.False(t, seen[instance.SOPInstanceUID])
		seen[instance.SOPInstanceUID] = true
	}
}

func TestGroupRecordsKeepsDistinctPatients(t *testing.T) {
	a := seriesRecordSet("1.2.3", "1.2.3.1", 1)
	b := seriesRecordSet("9.8.7", "9.8.7.1", 1)
	b.Patient.PatientID = "PAT002"
	b.Study.PatientID = "PAT002"

	patients, studies, _, _ := groupRecords([]*ingest.RecordSet{a, b})

	assert.Len(t, patients, 2)
	assert.Len(t, studies, 2)
}

func TestGroupRecordsIdenticalInstance(t *testing.T) {
	a := seriesRecordSet("1.2.3", "1.2.3.1", 1)
	b := seriesRecordSet("1.2.3", "1.2.3.1", 1)

	_, _, _, instances := groupRecords([]*ingest.RecordSet{a, b})
	assert.Len(t, instances, 1)
}

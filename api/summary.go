package api

import (
	"net/http"
	"time"

	"github.com/go-chi/render"
	"github.com/go-pg/pg"

	"dicom-scp-server/fs"
	"dicom-scp-server/ingest"
)

// PatientStore defines the database operations the summary needs.
type PatientStore interface {
	CountBy(fields map[string]interface{}, tx *pg.Tx) (int, error)
}

type SummaryResource struct {
	PatientStore  PatientStore
	StudyStore    StudyStore
	SeriesStore   SeriesStore
	InstanceStore InstanceStore
	ObjectStore   *fs.ObjectStore
	Writer        *ingest.BatchWriter
}

func NewSummaryResource(patientStore PatientStore, studyStore StudyStore, seriesStore SeriesStore, instanceStore InstanceStore, objectStore *fs.ObjectStore, writer *ingest.BatchWriter) *SummaryResource {
	return &SummaryResource{
		PatientStore:  patientStore,
		StudyStore:    studyStore,
		SeriesStore:   seriesStore,
		InstanceStore: instanceStore,
		ObjectStore:   objectStore,
		Writer:        writer,
	}
}

type SummaryResponse struct {
	PatientCount     int    `json:"patientCount"`
	StudyCount       int    `json:"studyCount"`
	SeriesCount      int    `json:"seriesCount"`
	InstanceCount    int    `json:"instanceCount"`
	StorageBytes     int64  `json:"storageBytes"`
	RecordsProcessed int64  `json:"recordsProcessed"`
	LastFlush        string `json:"lastFlush,omitempty"`
}

func (rs *SummaryResource) get(w http.ResponseWriter, r *http.Request) {
	patientCount, err := rs.PatientStore.CountBy(nil, nil)
	if err != nil {
		render.Render(w, r, ErrInternalServerError)
		return
	}
	studyCount, err := rs.StudyStore.CountBy(nil, nil)
	if err != nil {
		render.Render(w, r, ErrInternalServerError)
		return
	}
	seriesCount, err := rs.SeriesStore.CountBy(nil, nil)
	if err != nil {
		render.Render(w, r, ErrInternalServerError)
		return
	}
	instanceCount, err := rs.InstanceStore.CountBy(nil, nil)
	if err != nil {
		render.Render(w, r, ErrInternalServerError)
		return
	}

	storageBytes, err := rs.ObjectStore.TotalBytes()
	if err != nil {
		log(r).WithError(err).Error("storage walk failed")
		render.Render(w, r, ErrInternalServerError)
		return
	}

	summary := SummaryResponse{
		PatientCount:  patientCount,
		StudyCount:    studyCount,
		SeriesCount:   seriesCount,
		InstanceCount: instanceCount,
		StorageBytes:  storageBytes,
	}
	if rs.Writer != nil {
		summary.RecordsProcessed = rs.Writer.Processed()
		if flush := rs.Writer.LastFlush(); !flush.IsZero() {
			summary.LastFlush = flush.UTC().Format(time.RFC3339)
		}
	}

	render.JSON(w, r, summary)
}

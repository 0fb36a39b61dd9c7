package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-pg/pg"
	"github.com/suyashkumar/dicom/pkg/tag"

	"dicom-scp-server/database"
	"dicom-scp-server/models"
)

type ctxKey int

const (
	ctxStudy ctxKey = iota
)

// StudyStore defines database operations on the study level.
type StudyStore interface {
	FindBy(fields map[string]interface{}, options *database.SelectQueryOptions, tx *pg.Tx) ([]*models.Study, error)
	CountBy(fields map[string]interface{}, tx *pg.Tx) (int, error)
}

// SeriesStore defines database operations on the series level.
type SeriesStore interface {
	FindBy(fields map[string]interface{}, options *database.SelectQueryOptions, tx *pg.Tx) ([]*models.Series, error)
	CountBy(fields map[string]interface{}, tx *pg.Tx) (int, error)
}

// InstanceStore defines database operations on the instance level.
type InstanceStore interface {
	FindBy(fields map[string]interface{}, options *database.SelectQueryOptions, tx *pg.Tx) ([]*models.Instance, error)
	CountBy(fields map[string]interface{}, tx *pg.Tx) (int, error)
}

type StudyResource struct {
	StudyStore    StudyStore
	SeriesStore   SeriesStore
	InstanceStore InstanceStore
}

func NewStudyResource(studyStore StudyStore, seriesStore SeriesStore, instanceStore InstanceStore) *StudyResource {
	return &StudyResource{
		StudyStore:    studyStore,
		SeriesStore:   seriesStore,
		InstanceStore: instanceStore,
	}
}

func (rs *StudyResource) router() *chi.Mux {
	r := chi.NewRouter()
	r.Get("/", rs.list)
	r.Route("/{studyUID}", func(r chi.Router) {
		r.Use(rs.ctx)
		r.Get("/", rs.get)
		r.Get("/series", rs.listSeries)
		r.Get("/series/{seriesUID}/instances", rs.listInstances)
	})
	return r
}

func (rs *StudyResource) ctx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		studyUID := chi.URLParam(r, "studyUID")
		if studyUID != "" {
			studyUIDTagInfo, _ := tag.Find((&models.Study{}).GetObjectIdFieldTag())
			fields := map[string]interface{}{studyUIDTagInfo.Name: studyUID}

			studyList, err := rs.StudyStore.FindBy(fields, &database.SelectQueryOptions{Limit: 1}, nil)
			if err != nil || len(studyList) != 1 {
				render.Render(w, r, ErrNotFound)
				return
			}
			ctx = context.WithValue(ctx, ctxStudy, studyList[0])
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type listResponse struct {
	Total int         `json:"total"`
	Items interface{} `json:"items"`
}

func (rs *StudyResource) list(w http.ResponseWriter, r *http.Request) {
	fields := map[string]interface{}{}
	if patientID := r.URL.Query().Get("patientID"); patientID != "" {
		fields["PatientID"] = patientID
	}
	if accessionNumber := r.URL.Query().Get("accessionNumber"); accessionNumber != "" {
		fields["AccessionNumber"] = accessionNumber
	}
	if studyDate := r.URL.Query().Get("studyDate"); studyDate != "" {
		fields["StudyDate"] = studyDate
	}

	studies, err := rs.StudyStore.FindBy(fields, queryOptions(r), nil)
	if err != nil {
		log(r).WithError(err).Error("study listing failed")
		render.Render(w, r, ErrInternalServerError)
		return
	}
	total, err := rs.StudyStore.CountBy(fields, nil)
	if err != nil {
		render.Render(w, r, ErrInternalServerError)
		return
	}

	render.JSON(w, r, listResponse{Total: total, Items: studies})
}

func (rs *StudyResource) get(w http.ResponseWriter, r *http.Request) {
	study, ok := r.Context().Value(ctxStudy).(*models.Study)
	if !ok {
		render.Render(w, r, ErrNotFound)
		return
	}
	render.JSON(w, r, study)
}

func (rs *StudyResource) listSeries(w http.ResponseWriter, r *http.Request) {
	study, ok := r.Context().Value(ctxStudy).(*models.Study)
	if !ok {
		render.Render(w, r, ErrNotFound)
		return
	}

	fields := map[string]interface{}{"StudyInstanceUID": study.StudyInstanceUID}
	series, err := rs.SeriesStore.FindBy(fields, queryOptions(r), nil)
	if err != nil {
		log(r).WithError(err).Error("series listing failed")
		render.Render(w, r, ErrInternalServerError)
		return
	}
	total, err := rs.SeriesStore.CountBy(fields, nil)
	if err != nil {
		render.Render(w, r, ErrInternalServerError)
		return
	}

	render.JSON(w, r, listResponse{Total: total, Items: series})
}

func (rs *StudyResource) listInstances(w http.ResponseWriter, r *http.Request) {
	if _, ok := r.Context().Value(ctxStudy).(*models.Study); !ok {
		render.Render(w, r, ErrNotFound)
		return
	}

	fields := map[string]interface{}{"SeriesInstanceUID": chi.URLParam(r, "seriesUID")}
	instances, err := rs.InstanceStore.FindBy(fields, queryOptions(r), nil)
	if err != nil {
		log(r).WithError(err).Error("instance listing failed")
		render.Render(w, r, ErrInternalServerError)
		return
	}
	total, err := rs.InstanceStore.CountBy(fields, nil)
	if err != nil {
		render.Render(w, r, ErrInternalServerError)
		return
	}

	render.JSON(w, r, listResponse{Total: total, Items: instances})
}

// queryOptions reads pagination from the request. The limit is capped so
// a single call cannot drag the whole archive into memory.
func queryOptions(r *http.Request) *database.SelectQueryOptions {
	options := &database.SelectQueryOptions{Limit: 50}

	if limit, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && limit > 0 {
		if limit > 500 {
			limit = 500
		}
		options.Limit = limit
	}
	if offset, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && offset > 0 {
		options.Offset = offset
	}
	if orderBy := r.URL.Query().Get("orderBy"); orderBy != "" {
		options.OrderBy = orderBy
		if r.URL.Query().Get("orderDirection") == "desc" {
			options.OrderDirection = "DESC"
		}
	}

	return options
}

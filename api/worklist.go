package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-pg/pg"

	"dicom-scp-server/database"
	"dicom-scp-server/models"
)

const ctxWorklistEntry ctxKey = iota + 10

// ErrWorklistValidation is returned when the worklist entry payload
// fails field validation.
var ErrWorklistValidation = errors.New("worklist entry validation error")

// WorklistStore defines database operations for worklist management.
type WorklistStore interface {
	FindBy(fields map[string]interface{}, options *database.SelectQueryOptions, tx *pg.Tx) ([]*models.WorklistEntry, error)
	Get(id int) (*models.WorklistEntry, error)
	Create(entry *models.WorklistEntry) error
	Update(entry *models.WorklistEntry) error
	Delete(entry *models.WorklistEntry) error
}

type WorklistResource struct {
	Store WorklistStore
}

func NewWorklistResource(store WorklistStore) *WorklistResource {
	return &WorklistResource{Store: store}
}

func (rs *WorklistResource) router() *chi.Mux {
	r := chi.NewRouter()
	r.Get("/", rs.list)
	r.Post("/", rs.create)
	r.Route("/{entryID}", func(r chi.Router) {
		r.Use(rs.ctx)
		r.Get("/", rs.get)
		r.Put("/", rs.update)
		r.Delete("/", rs.delete)
	})
	return r
}

func (rs *WorklistResource) ctx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.Atoi(chi.URLParam(r, "entryID"))
		if err != nil {
			render.Render(w, r, ErrNotFound)
			return
		}

		entry, err := rs.Store.Get(id)
		if err != nil {
			render.Render(w, r, ErrNotFound)
			return
		}

		ctx := context.WithValue(r.Context(), ctxWorklistEntry, entry)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type worklistRequest struct {
	*models.WorklistEntry
}

func (req *worklistRequest) Bind(r *http.Request) error {
	return nil
}

func (rs *WorklistResource) list(w http.ResponseWriter, r *http.Request) {
	fields := map[string]interface{}{}
	if modality := r.URL.Query().Get("modality"); modality != "" {
		fields["Modality"] = modality
	}
	if status := r.URL.Query().Get("status"); status != "" {
		fields["Status"] = status
	}
	if date := r.URL.Query().Get("scheduledDate"); date != "" {
		fields["ScheduledDate"] = date
	}

	entries, err := rs.Store.FindBy(fields, queryOptions(r), nil)
	if err != nil {
		log(r).WithError(err).Error("worklist listing failed")
		render.Render(w, r, ErrInternalServerError)
		return
	}

	render.JSON(w, r, entries)
}

func (rs *WorklistResource) get(w http.ResponseWriter, r *http.Request) {
	entry, ok := r.Context().Value(ctxWorklistEntry).(*models.WorklistEntry)
	if !ok {
		render.Render(w, r, ErrNotFound)
		return
	}
	render.JSON(w, r, entry)
}

func (rs *WorklistResource) create(w http.ResponseWriter, r *http.Request) {
	data := &worklistRequest{WorklistEntry: &models.WorklistEntry{}}
	if err := render.Bind(r, data); err != nil {
		render.Render(w, r, ErrInvalidRequest(err))
		return
	}

	entry := data.WorklistEntry
	entry.ID = 0
	if err := rs.Store.Create(entry); err != nil {
		var valErr validation.Errors
		if errors.As(err, &valErr) {
			render.Render(w, r, ErrValidation(ErrWorklistValidation, valErr))
			return
		}
		log(r).WithError(err).Error("worklist create failed")
		render.Render(w, r, ErrInternalServerError)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, entry)
}

func (rs *WorklistResource) update(w http.ResponseWriter, r *http.Request) {
	entry, ok := r.Context().Value(ctxWorklistEntry).(*models.WorklistEntry)
	if !ok {
		render.Render(w, r, ErrNotFound)
		return
	}

	data := &worklistRequest{WorklistEntry: entry}
	if err := render.Bind(r, data); err != nil {
		render.Render(w, r, ErrInvalidRequest(err))
		return
	}

	if err := rs.Store.Update(entry); err != nil {
		var valErr validation.Errors
		if errors.As(err, &valErr) {
			render.Render(w, r, ErrValidation(ErrWorklistValidation, valErr))
			return
		}
		log(r).WithError(err).Error("worklist update failed")
		render.Render(w, r, ErrInternalServerError)
		return
	}

	render.JSON(w, r, entry)
}

func (rs *WorklistResource) delete(w http.ResponseWriter, r *http.Request) {
	entry, ok := r.Context().Value(ctxWorklistEntry).(*models.WorklistEntry)
	if !ok {
		render.Render(w, r, ErrNotFound)
		return
	}

	if err := rs.Store.Delete(entry); err != nil {
		log(r).WithError(err).Error("worklist delete failed")
		render.Render(w, r, ErrInternalServerError)
		return
	}

	render.NoContent(w, r)
}

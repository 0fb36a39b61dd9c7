// Package api configures an http server for administration of the archive.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"
	"github.com/go-pg/pg"
	"github.com/sirupsen/logrus"

	"dicom-scp-server/database"
	"dicom-scp-server/fs"
	"dicom-scp-server/ingest"
	"dicom-scp-server/logging"
)

// New configures application resources and routes. The object store and
// batch writer are the live instances serving the SCP, so the summary
// endpoint reports what is actually happening, not a second opinion.
func New(db *pg.DB, store *fs.ObjectStore, writer *ingest.BatchWriter, enableCORS bool) (*chi.Mux, error) {
	logger := logging.NewLogger()

	summaryResource := NewSummaryResource(
		database.NewPatientStore(db),
		database.NewStudyStore(db),
		database.NewSeriesStore(db),
		database.NewInstanceStore(db),
		store,
		writer,
	)
	studyResource := NewStudyResource(
		database.NewStudyStore(db),
		database.NewSeriesStore(db),
		database.NewInstanceStore(db),
	)
	worklistResource := NewWorklistResource(database.NewWorklistStore(db))

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.Timeout(15 * time.Second))

	r.Use(logging.NewStructuredLogger(logger))
	r.Use(render.SetContentType(render.ContentTypeJSON))

	// use CORS middleware if client is not served by this api, e.g. from other domain or CDN
	if enableCORS {
		r.Use(corsConfig().Handler)
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/summary", summaryResource.get)
		r.Mount("/studies", studyResource.router())
		r.Mount("/worklist", worklistResource.router())
	})

	return r, nil
}

func corsConfig() *cors.Cors {
	return cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           86400,
	})
}

func log(r *http.Request) logrus.FieldLogger {
	return logging.GetLogEntry(r)
}

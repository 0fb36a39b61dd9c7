package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-pg/pg"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dicom-scp-server/database"
	"dicom-scp-server/fs"
	"dicom-scp-server/logging"
	"dicom-scp-server/models"
)

type fakeStudyStore struct {
	studies     []*models.Study
	lastOptions *database.SelectQueryOptions
	lastFields  map[string]interface{}
}

func (f *fakeStudyStore) FindBy(fields map[string]interface{}, options *database.SelectQueryOptions, tx *pg.Tx) ([]*models.Study, error) {
	f.lastFields = fields
	f.lastOptions = options
	return f.studies, nil
}

func (f *fakeStudyStore) CountBy(fields map[string]interface{}, tx *pg.Tx) (int, error) {
	return len(f.studies), nil
}

type fakeSeriesStore struct {
	series []*models.Series
}

func (f *fakeSeriesStore) FindBy(fields map[string]interface{}, options *database.SelectQueryOptions, tx *pg.Tx) ([]*models.Series, error) {
	return f.series, nil
}

func (f *fakeSeriesStore) CountBy(fields map[string]interface{}, tx *pg.Tx) (int, error) {
	return len(f.series), nil
}

type fakeInstanceStore struct {
	instances []*models.Instance
}

func (f *fakeInstanceStore) FindBy(fields map[string]interface{}, options *database.SelectQueryOptions, tx *pg.Tx) ([]*models.Instance, error) {
	return f.instances, nil
}

func (f *fakeInstanceStore) CountBy(fields map[string]interface{}, tx *pg.Tx) (int, error) {
	return len(f.instances), nil
}

type fakePatientStore struct {
	count int
}

func (f *fakePatientStore) CountBy(fields map[string]interface{}, tx *pg.Tx) (int, error) {
	return f.count, nil
}

type fakeWorklistStore struct {
	nextID  int
	entries map[int]*models.WorklistEntry
}

func newFakeWorklistStore() *fakeWorklistStore {
	return &fakeWorklistStore{nextID: 1, entries: map[int]*models.WorklistEntry{}}
}

func (f *fakeWorklistStore) FindBy(fields map[string]interface{}, options *database.SelectQueryOptions, tx *pg.Tx) ([]*models.WorklistEntry, error) {
	var out []*models.WorklistEntry
	for _, entry := range f.entries {
		out = append(out, entry)
	}
	return out, nil
}

func (f *fakeWorklistStore) Get(id int) (*models.WorklistEntry, error) {
	entry, ok := f.entries[id]
	if !ok {
		return nil, pg.ErrNoRows
	}
	return entry, nil
}

func (f *fakeWorklistStore) Create(entry *models.WorklistEntry) error {
	if entry.Status == "" {
		entry.Status = "SCHEDULED"
	}
	if err := entry.Validate(); err != nil {
		return err
	}
	entry.ID = f.nextID
	f.nextID++
	f.entries[entry.ID] = entry
	return nil
}

func (f *fakeWorklistStore) Update(entry *models.WorklistEntry) error {
	if err := entry.Validate(); err != nil {
		return err
	}
	f.entries[entry.ID] = entry
	return nil
}

func (f *fakeWorklistStore) Delete(entry *models.WorklistEntry) error {
	delete(f.entries, entry.ID)
	return nil
}

func jsonRequest(method, target, payload string) *http.Request {
	req := httptest.NewRequest(method, target, bytes.NewBufferString(payload))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func testRouter(mount string, handler http.Handler) *chi.Mux {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(logging.NewStructuredLogger(logger))
	r.Mount(mount, handler)
	return r
}

func TestSummaryEndpoint(t *testing.T) {
	store := fs.NewObjectStore(t.TempDir())
	_, err := store.Put("1.2.3", "1.2.3.1", "1.2.3.1.1", []byte("DICMDATA"))
	require.NoError(t, err)

	rs := NewSummaryResource(
		&fakePatientStore{count: 2},
		&fakeStudyStore{studies: make([]*models.Study, 3)},
		&fakeSeriesStore{series: make([]*models.Series, 4)},
		&fakeInstanceStore{instances: make([]*models.Instance, 9)},
		store,
		nil,
	)

	r := chi.NewRouter()
	r.Get("/summary", rs.get)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/summary", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var summary SummaryResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &summary))
	assert.Equal(t, 2, summary.PatientCount)
	assert.Equal(t, 3, summary.StudyCount)
	assert.Equal(t, 4, summary.SeriesCount)
	assert.Equal(t, 9, summary.InstanceCount)
	assert.Equal(t, int64(8), summary.StorageBytes)
	assert.Empty(t, summary.LastFlush)
}

func TestStudyListPagination(t *testing.T) {
	studyStore := &fakeStudyStore{studies: []*models.Study{{StudyInstanceUID: "1.2.3"}}}
	rs := NewStudyResource(studyStore, &fakeSeriesStore{}, &fakeInstanceStore{})
	r := testRouter("/studies", rs.router())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/studies?limit=5&offset=10&patientID=PAT001", nil))
	require.Equal(t, http.StatusOK, w.Code)

	require.NotNil(t, studyStore.lastOptions)
	assert.Equal(t, 5, studyStore.lastOptions.Limit)
	assert.Equal(t, 10, studyStore.lastOptions.Offset)
	assert.Equal(t, map[string]interface{}{"PatientID": "PAT001"}, studyStore.lastFields)
}

func TestStudyListLimitCap(t *testing.T) {
	studyStore := &fakeStudyStore{}
	rs := NewStudyResource(studyStore, &fakeSeriesStore{}, &fakeInstanceStore{})
	r := testRouter("/studies", rs.router())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/studies?limit=100000", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 500, studyStore.lastOptions.Limit)
}

func TestStudySeriesListing(t *testing.T) {
	studyStore := &fakeStudyStore{studies: []*models.Study{{StudyInstanceUID: "1.2.3"}}}
	seriesStore := &fakeSeriesStore{series: []*models.Series{{SeriesInstanceUID: "1.2.3.1"}}}
	rs := NewStudyResource(studyStore, seriesStore, &fakeInstanceStore{})
	r := testRouter("/studies", rs.router())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/studies/1.2.3/series", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Total int                      `json:"total"`
		Items []map[string]interface{} `json:"items"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Total)
	require.Len(t, resp.Items, 1)
}

func TestWorklistCreateAndFetch(t *testing.T) {
	store := newFakeWorklistStore()
	rs := NewWorklistResource(store)
	r := testRouter("/worklist", rs.router())

	payload := `{"patient_id":"PAT001","patient_name":"DOE^JANE","modality":"CT","scheduled_date":"20260901"}`
	w := httptest.NewRecorder()
	r.ServeHTTP(w, jsonRequest("POST", "/worklist", payload))
	require.Equal(t, http.StatusCreated, w.Code)

	var created models.WorklistEntry
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, 1, created.ID)
	assert.Equal(t, "SCHEDULED", created.Status)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/worklist/1", nil))
	require.Equal(t, http.StatusOK, w.Code)
}

func TestWorklistCreateValidation(t *testing.T) {
	rs := NewWorklistResource(newFakeWorklistStore())
	r := testRouter("/worklist", rs.router())

	// modality missing
	payload := `{"patient_id":"PAT001","scheduled_date":"20260901"}`
	w := httptest.NewRecorder()
	r.ServeHTTP(w, jsonRequest("POST", "/worklist", payload))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "validationErrors")
}

func TestWorklistUpdateAndDelete(t *testing.T) {
	store := newFakeWorklistStore()
	require.NoError(t, store.Create(&models.WorklistEntry{
		PatientID:     "PAT001",
		Modality:      "MR",
		ScheduledDate: "20260901",
	}))

	rs := NewWorklistResource(store)
	r := testRouter("/worklist", rs.router())

	payload := `{"status":"COMPLETED"}`
	w := httptest.NewRecorder()
	r.ServeHTTP(w, jsonRequest("PUT", "/worklist/1", payload))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "COMPLETED", store.entries[1].Status)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("DELETE", "/worklist/1", nil))
	require.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, store.entries)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/worklist/1", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

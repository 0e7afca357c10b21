package api

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhishekmaher6699/tech-assessment-sde/internal/config"
	"github.com/abhishekmaher6699/tech-assessment-sde/internal/models"
	"github.com/abhishekmaher6699/tech-assessment-sde/internal/observability"
	"github.com/abhishekmaher6699/tech-assessment-sde/internal/repository"
	"github.com/abhishekmaher6699/tech-assessment-sde/internal/weatherapi"
)

// failingRepo implements repository.ObservationRepository with every call failing.
type failingRepo struct {
	err error
}

func (f *failingRepo) EnsureSchema(ctx context.Context) error { return f.err }
func (f *failingRepo) InsertIfNew(ctx context.Context, obs *models.Observation) (repository.InsertOutcome, error) {
	return 0, f.err
}
func (f *failingRepo) Exists(ctx context.Context, location string, date models.LocalTime) (bool, error) {
	return false, f.err
}
func (f *failingRepo) ListAll(ctx context.Context) ([]models.Observation, error) { return nil, f.err }
func (f *failingRepo) DeleteByID(ctx context.Context, id int64) error            { return f.err }
func (f *failingRepo) UpdateCondition(ctx context.Context, id int64, condition string) error {
	return f.err
}
func (f *failingRepo) Export(ctx context.Context, w io.Writer, format repository.ExportFormat) error {
	return f.err
}
func (f *failingRepo) Ping(ctx context.Context) error { return f.err }

type stubWeather struct {
	obs models.Observation
	err error
}

func (s stubWeather) Current(ctx context.Context, location string) (models.Observation, error) {
	return s.obs, s.err
}

type stubVideos struct {
	videos []models.Video
	err    error
}

func (s stubVideos) Search(ctx context.Context, query string) ([]models.Video, error) {
	return s.videos, s.err
}

type recordingQueue struct {
	mu  sync.Mutex
	got []models.Observation
}

func (q *recordingQueue) Enqueue(obs models.Observation) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.got = append(q.got, obs)
}

const londonPayload = `{
	"location": {"name": "London", "region": "City of London, Greater London", "country": "United Kingdom", "localtime": "2024-01-15 14:30"},
	"current": {"temp_c": 8.0, "wind_kph": 11.2, "precip_mm": 0.0, "condition": {"text": "Partly cloudy"}}
}`

// weatherServer answers London and rejects every other location.
func weatherServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("q") == "London" {
			io.WriteString(w, londonPayload)
			return
		}
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"error": {"code": 1006, "message": "No matching location found."}}`)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestDB(t *testing.T) *repository.SQLDB {
	t.Helper()
	db, err := repository.NewSQLiteDB(":memory:")
	if err != nil {
		t.Fatalf("failed to create test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func setupTestRouter(repo repository.ObservationRepository, weather WeatherSource, videos VideoSearcher, events EventQueue) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	handler := NewHandler(repo, weather, videos, events, observability.NewMetricsForTesting())
	handler.RegisterRoutes(router)
	return router
}

// setupE2E wires the real weather client and a SQLite store.
func setupE2E(t *testing.T) (*gin.Engine, *repository.SQLDB, *recordingQueue) {
	t.Helper()
	srv := weatherServer(t)
	client := weatherapi.NewClient(config.WeatherConfig{
		APIKey:  "k",
		BaseURL: srv.URL,
		Timeout: 2 * time.Second,
		RPS:     1000,
	}, observability.NewMetricsForTesting(), slog.New(slog.NewTextHandler(io.Discard, nil)))

	db := newTestDB(t)
	queue := &recordingQueue{}
	return setupTestRouter(db, client, stubVideos{}, queue), db, queue
}

func do(router *gin.Engine, method, target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(method, target, nil)
	router.ServeHTTP(w, req)
	return w
}

func detail(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body["detail"]
}

func seed(t *testing.T, db *repository.SQLDB, location, date, condition string) *models.Observation {
	t.Helper()
	d, err := models.ParseLocalTime(date)
	require.NoError(t, err)
	obs := &models.Observation{
		Location:        location,
		Region:          "Region",
		Country:         "Country",
		Condition:       condition,
		TemperatureC:    20,
		WindSpeedKph:    5,
		PrecipitationMm: 0,
		Date:            d,
	}
	_, err = db.InsertIfNew(context.Background(), obs)
	require.NoError(t, err)
	return obs
}

func TestWelcome(t *testing.T) {
	router := setupTestRouter(&failingRepo{}, stubWeather{}, stubVideos{}, &recordingQueue{})

	w := do(router, http.MethodGet, "/")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message": "Welcome to the Weather API"}`, w.Body.String())
}

func TestGetWeather_StoresOnce(t *testing.T) {
	router, db, queue := setupE2E(t)

	first := do(router, http.MethodGet, "/get_weather/?location=London")
	second := do(router, http.MethodGet, "/get_weather/?location=London")

	require.Equal(t, http.StatusOK, first.Code, first.Body.String())
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, first.Body.String(), second.Body.String())

	var payload map[string]any
	require.NoError(t, json.Unmarshal(first.Body.Bytes(), &payload))
	assert.NotContains(t, payload, "id")
	assert.Equal(t, "London", payload["location"])
	assert.Equal(t, "Partly cloudy", payload["condition"])
	assert.Equal(t, 8.0, payload["temperature_c"])
	assert.Equal(t, "2024-01-15 14:30:00", payload["date"])

	all, err := db.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "London", all[0].Location)

	// only the insert is published
	require.Len(t, queue.got, 1)
	assert.Equal(t, all[0].ID, queue.got[0].ID)
}

func TestGetWeather_UnknownLocation(t *testing.T) {
	router, db, queue := setupE2E(t)

	w := do(router, http.MethodGet, "/get_weather/?location=Qwertyxyz123")

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Location 'Qwertyxyz123' not found. Please provide a valid location.", detail(t, w))

	all, _ := db.ListAll(context.Background())
	assert.Empty(t, all)
	assert.Empty(t, queue.got)
}

func TestGetWeather_MissingLocation(t *testing.T) {
	router := setupTestRouter(newTestDB(t), stubWeather{}, stubVideos{}, &recordingQueue{})

	w := do(router, http.MethodGet, "/get_weather/")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.NotEmpty(t, detail(t, w))
}

func TestGetWeather_TransportError(t *testing.T) {
	weather := stubWeather{err: fmt.Errorf("%w: dial tcp: connection refused", weatherapi.ErrTransport)}
	router := setupTestRouter(newTestDB(t), weather, stubVideos{}, &recordingQueue{})

	w := do(router, http.MethodGet, "/get_weather/?location=London")

	assert.Equal(t, http.StatusNotImplemented, w.Code)
	assert.Equal(t, "An error occurred while fetching weather data. Please try again later.", detail(t, w))
}

func TestGetWeather_UnexpectedError(t *testing.T) {
	weather := stubWeather{err: errors.New("error decoding weather response: unexpected EOF")}
	router := setupTestRouter(newTestDB(t), weather, stubVideos{}, &recordingQueue{})

	w := do(router, http.MethodGet, "/get_weather/?location=London")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, detail(t, w), "unexpected EOF")
}

func TestGetWeather_StoreFailure(t *testing.T) {
	d, _ := models.ParseLocalTime("2024-01-15 14:30")
	weather := stubWeather{obs: models.Observation{Location: "London", Date: d}}
	router := setupTestRouter(&failingRepo{err: errors.New("connection reset")}, weather, stubVideos{}, &recordingQueue{})

	w := do(router, http.MethodGet, "/get_weather/?location=London")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, detail(t, w), "connection reset")
}

func TestReadRecords(t *testing.T) {
	db := newTestDB(t)
	router := setupTestRouter(db, stubWeather{}, stubVideos{}, &recordingQueue{})

	w := do(router, http.MethodGet, "/read_records/")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())

	seed(t, db, "London", "2024-01-15 14:30", "Sunny")
	seed(t, db, "Paris", "2024-01-15 15:30", "Rain")

	w = do(router, http.MethodGet, "/read_records/")
	require.Equal(t, http.StatusOK, w.Code)

	var records []models.Observation
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &records))
	require.Len(t, records, 2)
	assert.Less(t, records[0].ID, records[1].ID)
	assert.Equal(t, "London", records[0].Location)
	assert.Equal(t, "2024-01-15 15:30:00", records[1].Date.String())
}

func TestReadRecords_StoreFailure(t *testing.T) {
	router := setupTestRouter(&failingRepo{err: errors.New("database is locked")}, stubWeather{}, stubVideos{}, &recordingQueue{})

	w := do(router, http.MethodGet, "/read_records/")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "database is locked", detail(t, w))
}

func TestDeleteRecord(t *testing.T) {
	db := newTestDB(t)
	router := setupTestRouter(db, stubWeather{}, stubVideos{}, &recordingQueue{})
	a := seed(t, db, "London", "2024-01-15 14:30", "Sunny")
	b := seed(t, db, "Paris", "2024-01-15 15:30", "Rain")

	w := do(router, http.MethodGet, fmt.Sprintf("/delete_record/?record_id=%d", a.ID))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message": "Record deleted successfully"}`, w.Body.String())

	// missing ids succeed too
	w = do(router, http.MethodGet, "/delete_record/?record_id=9999")
	assert.Equal(t, http.StatusOK, w.Code)

	all, _ := db.ListAll(context.Background())
	require.Len(t, all, 1)
	assert.Equal(t, b.ID, all[0].ID)
}

func TestDeleteRecord_BadID(t *testing.T) {
	router := setupTestRouter(newTestDB(t), stubWeather{}, stubVideos{}, &recordingQueue{})

	for _, target := range []string{"/delete_record/", "/delete_record/?record_id=abc"} {
		w := do(router, http.MethodGet, target)
		assert.Equal(t, http.StatusBadRequest, w.Code, target)
	}
}

func TestUpdateCondition(t *testing.T) {
	db := newTestDB(t)
	router := setupTestRouter(db, stubWeather{}, stubVideos{}, &recordingQueue{})
	obs := seed(t, db, "London", "2024-01-15 14:30", "Partly cloudy")

	w := do(router, http.MethodPut, fmt.Sprintf("/update_condition/%d?condition=Overcast", obs.ID))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"message": "Condition updated successfully"}`, w.Body.String())

	w = do(router, http.MethodGet, "/read_records/")
	var records []models.Observation
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &records))
	require.Len(t, records, 1)
	assert.Equal(t, "Overcast", records[0].Condition)
	assert.Equal(t, obs.TemperatureC, records[0].TemperatureC)
}

func TestUpdateCondition_Errors(t *testing.T) {
	db := newTestDB(t)
	router := setupTestRouter(db, stubWeather{}, stubVideos{}, &recordingQueue{})

	w := do(router, http.MethodPut, "/update_condition/9999?condition=Sunny")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Record not found", detail(t, w))

	w = do(router, http.MethodPut, "/update_condition/abc?condition=Sunny")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(router, http.MethodPut, "/update_condition/1")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	failing := setupTestRouter(&failingRepo{err: errors.New("boom")}, stubWeather{}, stubVideos{}, &recordingQueue{})
	w = do(failing, http.MethodPut, "/update_condition/1?condition=Sunny")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestDownloadData_CSV(t *testing.T) {
	db := newTestDB(t)
	router := setupTestRouter(db, stubWeather{}, stubVideos{}, &recordingQueue{})
	seed(t, db, "London", "2024-01-15 14:30", "Sunny")

	w := do(router, http.MethodGet, "/download_data/?format=CSV")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Equal(t, "attachment; filename=weather_data.csv", w.Header().Get("Content-Disposition"))

	records, err := csv.NewReader(bytes.NewReader(w.Body.Bytes())).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "id", records[0][0])
	assert.Equal(t, "London", records[1][1])
	assert.Equal(t, "2024-01-15 14:30:00", records[1][8])
}

func TestDownloadData_JSON(t *testing.T) {
	db := newTestDB(t)
	router := setupTestRouter(db, stubWeather{}, stubVideos{}, &recordingQueue{})
	seed(t, db, "London", "2024-01-15 14:30", "Sunny")

	w := do(router, http.MethodGet, "/download_data/?format=json")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Equal(t, "attachment; filename=weather_data.json", w.Header().Get("Content-Disposition"))

	var records []models.Observation
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &records))
	require.Len(t, records, 1)
	assert.Equal(t, "Sunny", records[0].Condition)
}

func TestDownloadData_InvalidFormat(t *testing.T) {
	router := setupTestRouter(newTestDB(t), stubWeather{}, stubVideos{}, &recordingQueue{})

	w := do(router, http.MethodGet, "/download_data/?format=xml")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid format. Use 'csv' or 'json'.", detail(t, w))
	assert.Empty(t, w.Header().Get("Content-Disposition"))
}

func TestDownloadData_StoreFailure(t *testing.T) {
	router := setupTestRouter(&failingRepo{err: errors.New("no such table")}, stubWeather{}, stubVideos{}, &recordingQueue{})

	w := do(router, http.MethodGet, "/download_data/?format=csv")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, detail(t, w), "no such table")
}

func TestSearchVideos(t *testing.T) {
	videos := stubVideos{videos: []models.Video{{Title: "Tokyo forecast", VideoID: "abc", ThumbnailURL: "https://i.ytimg.com/vi/abc/mqdefault.jpg"}}}
	router := setupTestRouter(newTestDB(t), stubWeather{}, videos, &recordingQueue{})

	w := do(router, http.MethodGet, "/search_videos/?query=Tokyo")

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"videos": [{"title": "Tokyo forecast", "video_id": "abc", "thumbnail_url": "https://i.ytimg.com/vi/abc/mqdefault.jpg"}]}`, w.Body.String())
}

func TestSearchVideos_Failure(t *testing.T) {
	videos := stubVideos{videos: []models.Video{}, err: errors.New("youtube API error: status 403")}
	router := setupTestRouter(newTestDB(t), stubWeather{}, videos, &recordingQueue{})

	w := do(router, http.MethodGet, "/search_videos/?query=Tokyo")

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"videos": [], "error": "youtube API error: status 403"}`, w.Body.String())

	w = do(router, http.MethodGet, "/search_videos/")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHealth(t *testing.T) {
	router := setupTestRouter(newTestDB(t), stubWeather{}, stubVideos{}, &recordingQueue{})

	w := do(router, http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status": "ok"}`, w.Body.String())

	down := setupTestRouter(&failingRepo{err: errors.New("sql: database is closed")}, stubWeather{}, stubVideos{}, &recordingQueue{})
	w = do(down, http.MethodGet, "/health")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"csv_stream_backend/models"
	"csv_stream_backend/platform/cache"
	"csv_stream_backend/platform/events"
	"csv_stream_backend/platform/storage"
	"csv_stream_backend/repository"
	"csv_stream_backend/services"
)

type fakeRemote struct{}

func (fakeRemote) Save(context.Context, string, []byte) (string, error) {
	return "", nil
}

func (fakeRemote) Exists(context.Context, string) (bool, error) {
	return true, nil
}

func (fakeRemote) Kind() string {
	return storage.TypeS3
}

func (fakeRemote) URLFor(_ context.Context, p string) (string, error) {
	return "https://bucket.example.com/" + p, nil
}

func newTestApp(t *testing.T, cfg JobHandlerConfig) (*fiber.App, repository.JobRepository) {
	t.Helper()
	repo := repository.NewJobRepository(cache.NewCacheService(cache.InitL1Cache(time.Hour), nil), nil, time.Hour)
	jobs := services.NewJobService(repo, events.NewLocalBroker(), nil, services.JobServiceConfig{})
	h := NewJobHandler(jobs, cfg)

	app := fiber.New()
	app.Get("/", h.Health)
	app.Post("/upload", h.Upload)
	app.Get("/status/:job_id", h.Status)
	app.Get("/download/:filename", h.Download)
	return app, repo
}

func errorBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body.Error
}

func TestHealth(t *testing.T) {
	app, _ := newTestApp(t, JobHandlerConfig{})
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	data, _ := io.ReadAll(resp.Body)
	assert.JSONEq(t, `{"message":"gRPC CSV Processor Gateway is running."}`, string(data))
}

func TestUpload_Rejections(t *testing.T) {
	app, _ := newTestApp(t, JobHandlerConfig{MaxUploadSize: 8})

	tests := []struct {
		name     string
		file     string
		content  string
		status   int
		errorMsg string
	}{
		{"not csv", "data.txt", "a", fiber.StatusBadRequest, "Only CSV files are allowed."},
		{"too large", "data.csv", "0123456789", fiber.StatusRequestEntityTooLarge, "File too large."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body bytes.Buffer
			w := multipart.NewWriter(&body)
			part, err := w.CreateFormFile("file", tt.file)
			require.NoError(t, err)
			_, _ = io.WriteString(part, tt.content)
			require.NoError(t, w.Close())

			req := httptest.NewRequest(http.MethodPost, "/upload", &body)
			req.Header.Set(fiber.HeaderContentType, w.FormDataContentType())
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Equal(t, tt.errorMsg, errorBody(t, resp))
		})
	}

	t.Run("missing file", func(t *testing.T) {
		var body bytes.Buffer
		w := multipart.NewWriter(&body)
		require.NoError(t, w.WriteField("file_size_bytes", "10"))
		require.NoError(t, w.Close())
		req := httptest.NewRequest(http.MethodPost, "/upload", &body)
		req.Header.Set(fiber.HeaderContentType, w.FormDataContentType())
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "Missing file in upload.", errorBody(t, resp))
	})
}

func TestStatus_NotFound(t *testing.T) {
	app, _ := newTestApp(t, JobHandlerConfig{})
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/status/abc", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "Job ID abc not found.", errorBody(t, resp))
}

func TestStatus_HeaderOnlyJobKeepsZeroTotals(t *testing.T) {
	app, repo := newTestApp(t, JobHandlerConfig{})
	job := &models.Job{JobID: "header-only", Status: models.StatusUploading, OriginalFileName: "empty.csv"}
	require.NoError(t, repo.Create(context.Background(), job))
	job.ApplySummary(&models.Summary{ProcessedPercentage: 100, ResultFileName: "r.csv"})
	require.NoError(t, repo.Update(context.Background(), job))

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/status/header-only", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "complete", body["status"])
	for _, key := range []string{"rows_processed", "malformed_rows", "total_sales", "unique_departments", "processing_time_seconds"} {
		v, ok := body[key]
		require.True(t, ok, "missing %s", key)
		assert.Equal(t, float64(0), v, key)
	}
	assert.Equal(t, float64(100), body["processed_percentage"])
	assert.Equal(t, "r.csv", body["result_file_name"])
	assert.Equal(t, "/download/r.csv", body["result_file_url"])
}

func TestDownload_Validation(t *testing.T) {
	app, _ := newTestApp(t, JobHandlerConfig{ResultsDir: t.TempDir()})
	tests := []struct {
		name   string
		file   string
		status int
		msg    string
	}{
		{"not csv", "report.txt", fiber.StatusBadRequest, "Only CSV files are available for download."},
		{"bad chars", "a%20b.csv", fiber.StatusBadRequest, "Invalid filename format."},
		{"tilde", "~root.csv", fiber.StatusBadRequest, "Invalid filename."},
		{"missing", "nothing.csv", fiber.StatusNotFound, "Result file not found."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/download/"+tt.file, nil))
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Equal(t, tt.msg, errorBody(t, resp))
		})
	}
}

func TestDownload_LocalFileWithoutKnownJob(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "result.csv"), []byte("Department Name,Total Number of Sales\n"), 0o644))
	app, _ := newTestApp(t, JobHandlerConfig{ResultsDir: dir})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/download/result.csv", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, `attachment; filename="Processed_results.csv"`, resp.Header.Get(fiber.HeaderContentDisposition))
	assert.Equal(t, "no-cache", resp.Header.Get(fiber.HeaderCacheControl))
}

func TestDownload_RemoteRedirects(t *testing.T) {
	app, _ := newTestApp(t, JobHandlerConfig{Storage: fakeRemote{}})
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/download/result.csv", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusTemporaryRedirect, resp.StatusCode)
	assert.Equal(t, "https://bucket.example.com/result.csv", resp.Header.Get(fiber.HeaderLocation))
}

func TestParseFileSize(t *testing.T) {
	assert.Equal(t, uint64(0), parseFileSize(""))
	assert.Equal(t, uint64(0), parseFileSize("abc"))
	assert.Equal(t, uint64(0), parseFileSize("-3"))
	assert.Equal(t, uint64(1024), parseFileSize(" 1024 "))
}

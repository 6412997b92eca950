package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"csv_stream_backend/pkg/errs"
	"csv_stream_backend/pkg/logging"
	"csv_stream_backend/platform/storage"
	"csv_stream_backend/services"
	"csv_stream_backend/utils"
)

const healthMessage = "gRPC CSV Processor Gateway is running."

type JobHandler struct {
	jobs *services.JobService
	// resultsDir holds results written by the processor without a remote backend.
	resultsDir    string
	storage       storage.Backend
	uploadDir     string
	maxUploadSize int64
}

type JobHandlerConfig struct {
	ResultsDir    string
	UploadDir     string
	MaxUploadSize int64
	Storage       storage.Backend
}

func NewJobHandler(jobs *services.JobService, cfg JobHandlerConfig) *JobHandler {
	return &JobHandler{
		jobs:          jobs,
		resultsDir:    cfg.ResultsDir,
		storage:       cfg.Storage,
		uploadDir:     cfg.UploadDir,
		maxUploadSize: cfg.MaxUploadSize,
	}
}

func (h *JobHandler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"message": healthMessage})
}

// Upload spools the multipart file to disk, registers a job and hands the
// file to the JobService. It answers 202 before processing starts.
func (h *JobHandler) Upload(c *fiber.Ctx) error {
	fh, err := c.FormFile("file")
	if err != nil || fh.Filename == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Missing file in upload."})
	}
	if !utils.IsCSVUpload(fh.Filename) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Only CSV files are allowed."})
	}
	if h.maxUploadSize > 0 && fh.Size > h.maxUploadSize {
		return c.Status(fiber.StatusRequestEntityTooLarge).JSON(fiber.Map{"error": "File too large."})
	}
	declared := parseFileSize(c.FormValue("file_size_bytes"))
	if declared == 0 && fh.Size > 0 {
		declared = uint64(fh.Size)
	}

	src, err := h.spool(fh.Open)
	if err != nil {
		logging.Logger.Error("fail spooling upload", "file", fh.Filename, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal server error during upload processing"})
	}

	job, err := h.jobs.CreateJob(c.UserContext(), fh.Filename, declared)
	if err != nil {
		src.Close()
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal server error during upload processing"})
	}
	h.jobs.Submit(job, src)

	logging.Logger.Info("job created", "job_id", job.JobID, "file", fh.Filename, "declared_bytes", declared)
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"job_id": job.JobID})
}

func (h *JobHandler) Status(c *fiber.Ctx) error {
	jobID := c.Params("job_id")
	job, err := h.jobs.GetJob(c.UserContext(), jobID)
	if errors.Is(err, errs.ErrJobNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": fmt.Sprintf("Job ID %s not found.", jobID)})
	}
	if err != nil {
		logging.Logger.Error("fail GetJob", "job_id", jobID, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal server error"})
	}
	return c.JSON(job)
}

func (h *JobHandler) Download(c *fiber.Ctx) error {
	name := c.Params("filename")
	if err := utils.ValidateResultFileName(name); err != nil {
		var e *errs.Error
		msg := "Invalid filename."
		if errors.As(err, &e) {
			msg = e.Message
		}
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
	}

	job, err := h.jobs.FindByResultFile(c.UserContext(), name)
	if err != nil && !errors.Is(err, errs.ErrJobNotFound) {
		logging.Logger.Warn("fail looking up result owner", "file", name, "error", err)
	}
	original := ""
	if job != nil {
		original = job.OriginalFileName
	}

	// remote results are fetched straight from the bucket
	if h.storage != nil && h.storage.Kind() != storage.TypeLocal {
		url, err := h.storage.URLFor(c.UserContext(), name)
		if err != nil {
			logging.Logger.Error("fail resolving result url", "file", name, "error", err)
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Result file not found."})
		}
		return c.Redirect(url, fiber.StatusTemporaryRedirect)
	}

	if h.resultsDir == "" {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Results directory not available."})
	}
	path := filepath.Join(h.resultsDir, name)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Result file not found."})
	}

	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s"`, utils.DownloadFileName(original, time.Now())))
	c.Set(fiber.HeaderCacheControl, "no-cache")
	if err := c.SendFile(path); err != nil {
		return err
	}
	c.Set(fiber.HeaderContentType, "text/csv")
	return nil
}

// spool copies the upload into a temp file that is removed once closed; the
// multipart body does not outlive the request.
func (h *JobHandler) spool(open func() (multipart.File, error)) (io.ReadCloser, error) {
	in, err := open()
	if err != nil {
		return nil, err
	}
	defer in.Close()

	if h.uploadDir != "" {
		if err := os.MkdirAll(h.uploadDir, 0o755); err != nil {
			return nil, err
		}
	}
	tmp, err := os.CreateTemp(h.uploadDir, "upload-*.csv")
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return nil, err
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return nil, err
	}
	return &removeOnClose{File: tmp}, nil
}

type removeOnClose struct {
	*os.File
}

func (f *removeOnClose) Close() error {
	err := f.File.Close()
	if rmErr := os.Remove(f.Name()); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
		logging.Logger.Warn("fail removing spooled upload", "path", f.Name(), "error", rmErr)
	}
	return err
}

// parseFileSize returns 0 for a missing or unparsable size.
func parseFileSize(v string) uint64 {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		logging.Logger.Warn("invalid file size format", "value", v)
		return 0
	}
	return n
}

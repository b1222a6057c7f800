// Package handlers exposes the converter over HTTP.
package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"media-converter/converter"
	"media-converter/jobs"
	"media-converter/media"
)

// Converter is the part of converter.Service the handlers use.
type Converter interface {
	SubmitFile(ctx context.Context, r io.Reader, filename string) (jobs.Snapshot, error)
	SubmitURL(ctx context.Context, raw string) (jobs.Snapshot, error)
	Status(id string) (jobs.Snapshot, error)
	Output(id string) (string, error)
	Counts() map[jobs.State]int
	Pool() converter.PoolStats
}

// VersionSource reports the version of an external tool.
type VersionSource interface {
	Version(ctx context.Context) (string, error)
}

type Handler struct {
	conv    Converter
	dataDir string
	tools   map[string]VersionSource

	// how often the events stream re-reads a job
	EventInterval time.Duration
}

func New(conv Converter, dataDir string, tools map[string]VersionSource) *Handler {
	return &Handler{
		conv:          conv,
		dataDir:       dataDir,
		tools:         tools,
		EventInterval: 500 * time.Millisecond,
	}
}

func (h *Handler) Register(e *echo.Echo) {
	api := e.Group("/api")
	api.POST("/convert", h.Convert)
	api.GET("/download", h.DownloadURL)
	api.GET("/download/:id", h.DownloadOutput)
	api.GET("/status", h.AppStatus)
	api.GET("/status/:id", h.JobStatus)
	api.GET("/status/:id/events", h.JobEvents)
}

// Convert accepts a multipart upload in the "file" field.
func (h *Handler) Convert(c echo.Context) error {
	fh, err := c.FormFile("file")
	if err != nil || fh.Size == 0 {
		return c.String(http.StatusBadRequest, "No file uploaded")
	}
	if !media.AllowedUpload(fh.Filename) {
		return c.String(http.StatusBadRequest, "Unsupported file type.")
	}

	f, err := fh.Open()
	if err != nil {
		log.Errorf("open upload %s: %v", fh.Filename, err)
		return c.String(http.StatusInternalServerError, "Failed: "+err.Error())
	}
	defer f.Close()

	snap, err := h.conv.SubmitFile(c.Request().Context(), f, fh.Filename)
	if err != nil {
		log.Errorf("submit upload %s: %v", fh.Filename, err)
		return c.String(http.StatusInternalServerError, "Failed: "+err.Error())
	}
	return c.JSON(http.StatusAccepted, snap)
}

// DownloadURL queues the conversion of the media at ?url=.
func (h *Handler) DownloadURL(c echo.Context) error {
	raw := strings.TrimSpace(c.QueryParam("url"))
	if raw == "" {
		return c.String(http.StatusBadRequest, "Missing url")
	}

	snap, err := h.conv.SubmitURL(c.Request().Context(), raw)
	if errors.Is(err, converter.ErrInvalidInput) {
		log.Infof("rejected %s: %v", raw, err)
		return c.String(http.StatusBadRequest, err.Error())
	} else if err != nil {
		log.Errorf("submit %s: %v", raw, err)
		return c.String(http.StatusInternalServerError, "Failed: "+err.Error())
	}
	return c.JSON(http.StatusAccepted, snap)
}

func (h *Handler) JobStatus(c echo.Context) error {
	snap, err := h.conv.Status(c.Param("id"))
	if errors.Is(err, jobs.ErrNotFound) {
		return c.String(http.StatusNotFound, "Job not found")
	} else if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, snap)
}

// DownloadOutput serves the converted file of a completed job.
func (h *Handler) DownloadOutput(c echo.Context) error {
	path, err := h.conv.Output(c.Param("id"))
	if err != nil {
		return c.String(http.StatusNotFound, "File not available")
	}
	return c.Attachment(path, filepath.Base(path))
}

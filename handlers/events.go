package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"media-converter/jobs"
)

// JobEvents streams the job's snapshot as server-sent events whenever it
// changes, and ends after the terminal snapshot.
func (h *Handler) JobEvents(c echo.Context) error {
	id := c.Param("id")
	snap, err := h.conv.Status(id)
	if errors.Is(err, jobs.ErrNotFound) {
		return c.String(http.StatusNotFound, "Job not found")
	} else if err != nil {
		return err
	}

	res := c.Response()

	// Set headers for SSE
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set("Cache-Control", "no-cache")
	res.Header().Set("Connection", "keep-alive")
	res.WriteHeader(http.StatusOK)

	done := c.Request().Context().Done()
	ticker := time.NewTicker(h.EventInterval)
	defer ticker.Stop()

	var last jobs.Snapshot
	for {
		if snap != last {
			jsonData, err := json.Marshal(snap)
			if err != nil {
				return err
			}
			if _, err := fmt.Fprintf(res, "data: %s\n\n", jsonData); err != nil {
				return err
			}
			res.Flush()
			last = snap
		}
		if snap.State.Terminal() {
			return nil
		}

		select {
		case <-done:
			return nil
		case <-ticker.C:
		}
		if snap, err = h.conv.Status(id); err != nil {
			return nil
		}
	}
}

package handlers

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/sys/unix"

	"media-converter/config"
	"media-converter/converter"
)

// GetFreeSpace returns the free space in bytes for the filesystem containing the given directory
func getFreeSpace(dir string) (uint64, error) {
	var stat unix.Statfs_t
	err := unix.Statfs(dir, &stat)
	if err != nil {
		return 0, fmt.Errorf("error getting filesystem stats: %v", err)
	}

	freeSpace := stat.Bavail * uint64(stat.Bsize)
	return freeSpace, nil
}

// GetDirectorySize calculates the total size of a directory in bytes
func getDirectorySize(dir string) (int64, error) {
	var size int64
	err := filepath.Walk(dir, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			size += info.Size()
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("error walking directory: %v", err)
	}
	return size, nil
}

type Build struct {
	Date    string `json:"date"`
	ID      string `json:"id"`
	IDShort string `json:"idShort"`
}

func MakeBuild() Build {
	sha := config.GetGitSHA()
	short := sha
	if len(short) > 7 {
		short = short[:7]
	}
	return Build{
		Date:    config.GetBuildDate(),
		ID:      sha,
		IDShort: short,
	}
}

type AppStatus struct {
	Tools   map[string]string   `json:"tools"`
	FreeMiB string              `json:"freeMiB"`
	UsedMiB string              `json:"usedMiB"`
	Jobs    map[string]int      `json:"jobs"`
	Pool    converter.PoolStats `json:"pool"`
	Build   Build               `json:"build"`
}

// AppStatus reports tool versions, storage use, job counts and the worker pool.
func (h *Handler) AppStatus(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	tools := make(map[string]string, len(h.tools))
	for name, src := range h.tools {
		version, err := src.Version(ctx)
		if err != nil {
			log.Errorln(err)
			version = "unavailable"
		}
		tools[name] = version
	}

	free, err := getFreeSpace(h.dataDir)
	if err != nil {
		log.Errorln(err)
	}
	used, err := getDirectorySize(h.dataDir)
	if err != nil {
		log.Errorln(err)
	}

	counts := map[string]int{}
	for state, n := range h.conv.Counts() {
		counts[state.String()] = n
	}

	return c.JSON(http.StatusOK, AppStatus{
		Tools:   tools,
		FreeMiB: fmt.Sprintf("%.2f", float64(free)/1024/1024),
		UsedMiB: fmt.Sprintf("%.2f", float64(used)/1024/1024),
		Jobs:    counts,
		Pool:    h.conv.Pool(),
		Build:   MakeBuild(),
	})
}

// Package proc runs external tools and streams their combined output.
package proc

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
)

// keep this many trailing output lines for error reports
const tailLines = 20

// ExitError is returned when a tool runs but exits non-zero.
type ExitError struct {
	Tool     string
	Args     []string
	ExitCode int
	Output   string // last lines of combined stdout/stderr
	Err      error
}

func (e *ExitError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s exited with code %d", e.Tool, e.ExitCode)
}

func (e *ExitError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Stream starts name with args, hands every line of its interleaved stdout
// and stderr to onLine, and waits for it to exit. Both "\n" and "\r" end a
// line, since ffmpeg and yt-dlp redraw their progress with carriage returns.
//
// A failure to start is returned as-is; a non-zero exit as *ExitError.
func Stream(ctx context.Context, name string, args []string, onLine func(line string)) error {
	pr, pw, err := os.Pipe()
	if err != nil {
		return fmt.Errorf("pipe for %s: %w", name, err)
	}
	defer pr.Close()

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = pw
	cmd.Stderr = pw
	if err := cmd.Start(); err != nil {
		pw.Close()
		return fmt.Errorf("start %s: %w", name, err)
	}
	// the child holds its own copy; ours must go so the reader sees EOF
	pw.Close()

	var tail []string
	scanner := bufio.NewScanner(pr)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	scanner.Split(ScanLines)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), " \t")
		if line == "" {
			continue
		}
		tail = append(tail, line)
		if len(tail) > tailLines {
			tail = tail[1:]
		}
		if onLine != nil {
			onLine(line)
		}
	}
	scanErr := scanner.Err()
	if scanErr != nil {
		// keep the pipe moving so the child can finish writing and exit
		io.Copy(io.Discard, pr)
	}

	err = cmd.Wait()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return &ExitError{
				Tool:     name,
				Args:     args,
				ExitCode: exitErr.ExitCode(),
				Output:   strings.Join(tail, "\n"),
				Err:      err,
			}
		}
		return fmt.Errorf("wait %s: %w", name, err)
	}
	if scanErr != nil {
		return fmt.Errorf("read %s output: %w", name, scanErr)
	}
	return nil
}

// ScanLines is a bufio.SplitFunc that ends lines at "\n", "\r" or "\r\n".
func ScanLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		if data[i] == '\r' {
			if i+1 < len(data) {
				if data[i+1] == '\n' {
					return i + 2, data[:i], nil
				}
			} else if !atEOF {
				// need one more byte to know whether this is "\r\n"
				return 0, nil, nil
			}
		}
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// ExitCode extracts the tool's exit code from an error returned by Stream,
// or -1 when the tool never ran to completion.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode
	}
	return -1
}

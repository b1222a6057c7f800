package proc

import (
	"bufio"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tool.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))
	return path
}

func TestScanLines(t *testing.T) {
	input := "one\ntwo\r\nthree\rfour\r\rfive"
	scanner := bufio.NewScanner(strings.NewReader(input))
	scanner.Split(ScanLines)

	var got []string
	for scanner.Scan() {
		got = append(got, scanner.Text())
	}
	require.NoError(t, scanner.Err())
	require.Equal(t, []string{"one", "two", "three", "four", "", "five"}, got)
}

func TestStreamInterleavesStdoutAndStderr(t *testing.T) {
	script := writeScript(t, `
echo "to stdout"
echo "to stderr" 1>&2
printf 'frame=1 time=00:00:01.00\rframe=2 time=00:00:02.00\r\n'
`)

	var lines []string
	err := Stream(context.Background(), script, nil, func(line string) {
		lines = append(lines, line)
	})
	require.NoError(t, err)
	require.Equal(t, []string{
		"to stdout",
		"to stderr",
		"frame=1 time=00:00:01.00",
		"frame=2 time=00:00:02.00",
	}, lines)
}

func TestStreamNonZeroExit(t *testing.T) {
	script := writeScript(t, `
echo "ERROR: unsupported URL"
exit 3
`)

	err := Stream(context.Background(), script, []string{"x"}, nil)
	require.Error(t, err)

	var exitErr *ExitError
	require.True(t, errors.As(err, &exitErr))
	require.Equal(t, 3, exitErr.ExitCode)
	require.Equal(t, []string{"x"}, exitErr.Args)
	require.Contains(t, exitErr.Output, "unsupported URL")
	require.Contains(t, err.Error(), "exited with code 3")
	require.Equal(t, 3, ExitCode(err))
}

func TestStreamMissingTool(t *testing.T) {
	err := Stream(context.Background(), filepath.Join(t.TempDir(), "nope"), nil, nil)
	require.Error(t, err)

	var exitErr *ExitError
	require.False(t, errors.As(err, &exitErr))
	require.Equal(t, -1, ExitCode(err))
	require.Equal(t, 0, ExitCode(nil))
}

func TestStreamKeepsOnlyTail(t *testing.T) {
	script := writeScript(t, `
i=0
while [ $i -lt 50 ]; do echo "line $i"; i=$((i+1)); done
exit 1
`)

	err := Stream(context.Background(), script, nil, nil)
	var exitErr *ExitError
	require.True(t, errors.As(err, &exitErr))
	lines := strings.Split(exitErr.Output, "\n")
	require.Len(t, lines, tailLines)
	require.Equal(t, "line 49", lines[len(lines)-1])
}

func TestStreamOverlongLineDoesNotBlock(t *testing.T) {
	// a single 3 MB line, larger than the scanner accepts, then more output
	script := writeScript(t, `
head -c 3000000 /dev/zero | tr '\0' a
echo
echo "after"
`)

	done := make(chan error, 1)
	go func() {
		done <- Stream(context.Background(), script, nil, nil)
	}()

	select {
	case err := <-done:
		require.ErrorIs(t, err, bufio.ErrTooLong)
		require.Contains(t, err.Error(), "read ")
	case <-time.After(10 * time.Second):
		t.Fatal("Stream did not return after an overlong line")
	}
}

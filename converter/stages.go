package converter

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/time/rate"

	"media-converter/acquire"
	"media-converter/jobs"
	"media-converter/media"
	"media-converter/proc"
	"media-converter/progress"
)

// acquireDirect downloads a plain http(s) URL, then converts it on the
// same worker.
func (s *Service) acquireDirect(ctx context.Context, job *jobs.Job, src acquire.Source) {
	jobLog := s.log.WithField("job", job.ID())
	if !job.Start("Starting download...") {
		return
	}

	dl, err := s.fetcher.Download(ctx, src.URL, s.dataDir, job.ID(), job)
	if err != nil {
		jobLog.Errorf("download %s: %v", src.URL, err)
		s.finish(job, job.Fail("Download failed: "+err.Error()))
		return
	}
	jobLog.Infof("downloaded %s (%s)", dl.Path, media.HumanSize(dl.Bytes))

	job.SetProgress(0)
	job.SetMessage("Download complete. Queueing conversion.")
	s.transcode(ctx, job, dl.Path, dl.Name)
}

// acquireProvider has yt-dlp fetch and extract the audio; its output is
// the job's final file.
func (s *Service) acquireProvider(ctx context.Context, job *jobs.Job, src acquire.Source) {
	jobLog := s.log.WithField("job", job.ID())
	if !job.Start("Downloading from YouTube...") {
		return
	}

	path, err := s.delegate.Fetch(ctx, src.URL, s.dataDir, job.ID(), job)
	if err != nil {
		var exitErr *proc.ExitError
		if errors.As(err, &exitErr) {
			msg := fmt.Sprintf("Download failed: yt-dlp exited with code %d", exitErr.ExitCode)
			if last := lastLine(exitErr.Output); last != "" {
				msg += ": " + last
			}
			s.finish(job, job.Fail(msg))
			return
		}
		jobLog.Errorf("yt-dlp: %v", err)
		s.finish(job, job.Fail("Download failed: "+err.Error()))
		return
	}
	s.finish(job, job.Complete(path, "YouTube conversion completed!"))
}

// transcode converts input to audio. The job must already be running.
// The input is deleted once the output exists; on failure it is kept.
func (s *Service) transcode(ctx context.Context, job *jobs.Job, input, name string) {
	jobLog := s.log.WithField("job", job.ID())
	output := media.OutputPath(s.dataDir, job.ID(), name, s.format)
	job.SetMessage("Starting conversion...")

	// a source already named like its output (song.mp3 -> song.mp3) is
	// moved aside; ffmpeg cannot write over its input
	if input == output {
		moved := media.SourcePath(s.dataDir, job.ID(), name)
		if err := os.Rename(input, moved); err != nil {
			jobLog.Errorf("move source aside: %v", err)
			s.finish(job, job.Fail("Conversion failed: "+err.Error()))
			return
		}
		input = moved
	}

	tracker := progress.Tracker{
		Probe: func() float64 {
			d, err := s.encoder.Duration(ctx, input)
			if err != nil {
				jobLog.Warnf("probe duration: %v", err)
				return 0
			}
			return d
		},
	}
	every := rate.Sometimes{Interval: s.progressInterval}

	err := s.encoder.ToAudio(ctx, input, output, func(line string) {
		jobLog.Debugf("[ffmpeg] %s", line)
		percent, ok := tracker.Observe(line)
		if !ok {
			return
		}
		every.Do(func() {
			job.SetProgress(percent)
			job.SetMessage(fmt.Sprintf("Converting... %d%%", percent))
		})
	})

	var exitErr *proc.ExitError
	switch {
	case errors.As(err, &exitErr):
		rc := proc.ExitCode(err)
		jobLog.Errorf("ffmpeg exited with code %d. Output:\n%s", rc, exitErr.Output)
		s.finish(job, job.Fail(fmt.Sprintf("Conversion failed (ffmpeg rc: %d)", rc)))
		return
	case err != nil:
		jobLog.Errorf("conversion failed: %v", err)
		s.finish(job, job.Fail("Conversion failed: "+err.Error()))
		return
	}

	if fi, err := os.Stat(output); err != nil || !fi.Mode().IsRegular() {
		jobLog.Errorf("ffmpeg exited 0 but %s is missing", output)
		s.finish(job, job.Fail("Conversion failed (ffmpeg rc: 0)"))
		return
	}

	if !job.Complete(output, "Completed") {
		return
	}
	jobLog.Infof("converted %.1fs of media into %s", tracker.Total(), output)
	if err := os.Remove(input); err != nil {
		jobLog.Warnf("remove input %s: %v", input, err)
	}
	s.finish(job, true)
}

func lastLine(output string) string {
	output = strings.TrimSpace(output)
	return output[strings.LastIndexByte(output, '\n')+1:]
}

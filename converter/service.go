// Package converter accepts media for conversion to audio and runs each
// conversion as a job on a bounded worker pool.
package converter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"media-converter/acquire"
	"media-converter/events"
	"media-converter/jobs"
	"media-converter/media"
)

var (
	// ErrInvalidInput is returned synchronously for submissions that are
	// rejected before any job exists.
	ErrInvalidInput = acquire.ErrInvalidInput

	// ErrNotAvailable is returned by Output for jobs without a finished file.
	ErrNotAvailable = errors.New("output not available")
)

// Transcoder is the encoder the transcode stage drives.
type Transcoder interface {
	ToAudio(ctx context.Context, src, dst string, onLine func(string)) error
	Duration(ctx context.Context, path string) (float64, error)
}

type Options struct {
	DataDir          string
	AudioFormat      string // extension of every output, and the codec asked of yt-dlp
	MaxDownloadBytes int64
	Workers          int

	Encoder   Transcoder
	Extractor acquire.AudioExtractor
	Publisher events.Publisher // optional
	Logger    logrus.FieldLogger
}

// Service owns the job store and the worker pool.
type Service struct {
	dataDir string
	format  string

	store     *jobs.Store
	scheduler *Scheduler
	fetcher   *acquire.Fetcher
	delegate  *acquire.Delegate
	encoder   Transcoder
	publisher events.Publisher
	log       logrus.FieldLogger

	// minimum spacing of conversion progress updates
	progressInterval time.Duration
	newID            func() string

	// held for reading while a submission creates and queues its job
	admitMu sync.RWMutex
	closed  bool
}

// PoolStats describes the worker pool.
type PoolStats struct {
	Workers int `json:"workers"`
	Waiting int `json:"waiting"`
}

func New(store *jobs.Store, opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	publisher := opts.Publisher
	if publisher == nil {
		publisher = events.Nop{}
	}

	s := &Service{
		dataDir:          opts.DataDir,
		format:           opts.AudioFormat,
		store:            store,
		scheduler:        NewScheduler(opts.Workers, logger),
		fetcher:          acquire.NewFetcher(opts.MaxDownloadBytes),
		delegate:         acquire.NewDelegate(opts.Extractor, opts.AudioFormat),
		encoder:          opts.Encoder,
		publisher:        publisher,
		log:              logger,
		progressInterval: time.Second,
		newID: func() string {
			return uuid.Must(uuid.NewV7()).String()
		},
	}
	s.scheduler.OnDrop = func(id string) {
		if job, err := s.store.Get(id); err == nil {
			s.finish(job, job.Fail("Conversion failed: server shutting down"))
		}
	}
	return s
}

// SubmitFile stores an uploaded file and queues its conversion. Only the
// base of filename is kept, sanitized. The returned snapshot is taken
// before the job is handed to a worker, so it is always QUEUED.
func (s *Service) SubmitFile(ctx context.Context, r io.Reader, filename string) (jobs.Snapshot, error) {
	if s.isClosed() {
		return jobs.Snapshot{}, ErrShuttingDown
	}

	name := media.SanitizeFilename(media.BaseName(filename))
	id := s.newID()
	input := media.InputPath(s.dataDir, id, name)

	if err := writeFile(input, r); err != nil {
		return jobs.Snapshot{}, fmt.Errorf("store upload: %w", err)
	}

	var snap jobs.Snapshot
	err := s.admit(func() error {
		job, err := s.store.Create(id, jobs.KindFile)
		if err != nil {
			return err
		}
		s.log.WithField("job", id).Infof("accepted upload %q as %s", filename, input)

		snap = job.Snapshot()
		return s.enqueue(job, func(ctx context.Context) {
			if !job.Start("Starting conversion...") {
				return
			}
			s.transcode(ctx, job, input, name)
		})
	})
	if err != nil {
		os.Remove(input)
		return jobs.Snapshot{}, err
	}
	return snap, nil
}

// SubmitURL validates raw and queues its acquisition. For direct URLs the
// HEAD probe runs here, so a URL that is plainly not media, or too large,
// is rejected with ErrInvalidInput before any job exists.
func (s *Service) SubmitURL(ctx context.Context, raw string) (jobs.Snapshot, error) {
	src, err := acquire.ParseSource(raw)
	if err != nil {
		return jobs.Snapshot{}, err
	}
	if s.isClosed() {
		return jobs.Snapshot{}, ErrShuttingDown
	}

	kind := jobs.KindProvider
	if src.Strategy == acquire.DirectHTTP {
		kind = jobs.KindURL
		head := s.fetcher.Probe(ctx, src.URL)
		if err := s.fetcher.Check(head, src.Strategy); err != nil {
			return jobs.Snapshot{}, err
		}
	}

	var snap jobs.Snapshot
	err = s.admit(func() error {
		id := s.newID()
		job, err := s.store.Create(id, kind)
		if err != nil {
			return err
		}
		s.log.WithFields(logrus.Fields{
			"job":      id,
			"strategy": src.Strategy,
		}).Infof("accepted url %s", src.URL)

		task := func(ctx context.Context) { s.acquireDirect(ctx, job, src) }
		if src.Strategy == acquire.ProviderDelegated {
			task = func(ctx context.Context) { s.acquireProvider(ctx, job, src) }
		}
		snap = job.Snapshot()
		return s.enqueue(job, task)
	})
	if err != nil {
		return jobs.Snapshot{}, err
	}
	return snap, nil
}

// Status returns a snapshot of job id.
func (s *Service) Status(id string) (jobs.Snapshot, error) {
	job, err := s.store.Get(id)
	if err != nil {
		return jobs.Snapshot{}, err
	}
	return job.Snapshot(), nil
}

// Output returns the path of the converted file of a completed job.
func (s *Service) Output(id string) (string, error) {
	job, err := s.store.Get(id)
	if err != nil {
		return "", err
	}
	if job.State() != jobs.Completed {
		return "", ErrNotAvailable
	}
	path := job.Output()
	if fi, err := os.Stat(path); err != nil || !fi.Mode().IsRegular() {
		return "", ErrNotAvailable
	}
	return path, nil
}

// Counts returns the number of jobs in each state.
func (s *Service) Counts() map[jobs.State]int {
	return s.store.Counts()
}

// Pool reports the worker count and how many jobs wait for a worker.
func (s *Service) Pool() PoolStats {
	return PoolStats{Workers: s.scheduler.Workers(), Waiting: s.scheduler.Pending()}
}

// Shutdown stops taking submissions and waits for queued and running jobs.
func (s *Service) Shutdown(ctx context.Context) error {
	s.admitMu.Lock()
	s.closed = true
	s.admitMu.Unlock()

	err := s.scheduler.Shutdown(ctx)
	if cerr := s.publisher.Close(); cerr != nil {
		s.log.Errorf("close publisher: %v", cerr)
	}
	return err
}

func (s *Service) isClosed() bool {
	s.admitMu.RLock()
	defer s.admitMu.RUnlock()
	return s.closed
}

// admit runs create unless Shutdown has begun. Shutdown waits for running
// admissions, so a job created by create is always accepted by the
// scheduler.
func (s *Service) admit(create func() error) error {
	s.admitMu.RLock()
	defer s.admitMu.RUnlock()
	if s.closed {
		return ErrShuttingDown
	}
	return create()
}

// enqueue hands task to the scheduler. Whatever the task does, the job is
// terminal when it returns: a panic or a task that leaves the job open
// fails it.
func (s *Service) enqueue(job *jobs.Job, task Task) error {
	err := s.scheduler.Submit(job.ID(), func(ctx context.Context) {
		jobLog := s.log.WithField("job", job.ID())
		defer func() {
			if r := recover(); r != nil {
				jobLog.Errorf("panic: %v", r)
				s.finish(job, job.Fail(fmt.Sprintf("Conversion failed: %v", r)))
				return
			}
			if !job.State().Terminal() {
				jobLog.Errorf("task returned with job %s", job.State())
				s.finish(job, job.Fail("Conversion failed: job abandoned"))
			}
		}()
		task(ctx)
	})
	if err != nil {
		job.Fail("Conversion failed: " + err.Error())
		return err
	}
	return nil
}

// finish publishes the terminal snapshot of job when changed is true,
// i.e. when the caller's transition is the one that ended the job.
func (s *Service) finish(job *jobs.Job, changed bool) {
	if !changed {
		return
	}
	snap := job.Snapshot()
	s.log.WithField("job", job.ID()).Infof("%s after %s: %s",
		snap.State, time.Since(job.CreatedAt()).Round(time.Millisecond), snap.Message)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := s.publisher.Publish(ctx, snap); err != nil {
		s.log.WithField("job", job.ID()).Warnf("publish event: %v", err)
	}
}

func writeFile(path string, r io.Reader) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	_, err = io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
	}
	return err
}

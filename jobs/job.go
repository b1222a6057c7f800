package jobs

import (
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"
)

type State int32

const (
	Queued State = iota
	Running
	Completed
	Failed
)

func (s State) String() string {
	switch s {
	case Queued:
		return "QUEUED"
	case Running:
		return "RUNNING"
	case Completed:
		return "COMPLETED"
	case Failed:
		return "FAILED"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s State) Terminal() bool {
	return s == Completed || s == Failed
}

// CanTransition reports whether a job may move from one state to another.
// Only forward edges exist; terminal states have none.
func CanTransition(from, to State) bool {
	switch from {
	case Queued:
		return to == Running || to == Failed
	case Running:
		return to == Completed || to == Failed
	default:
		return false
	}
}

// Kind records how a job's source media reached the server.
type Kind string

const (
	KindFile     Kind = "file"
	KindURL      Kind = "url"
	KindProvider Kind = "provider"
)

// Job is the status record of one conversion. Every field is stored
// atomically so status readers never take a lock; there is no
// consistency between fields.
//
// A job is written only by the worker running it. Once the job is terminal
// all mutators become no-ops.
type Job struct {
	id        string
	kind      Kind
	createdAt time.Time

	state    atomic.Int32
	message  atomic.Pointer[string]
	progress atomic.Int32
	output   atomic.Pointer[string]
}

func newJob(id string, kind Kind) *Job {
	j := &Job{id: id, kind: kind, createdAt: time.Now().UTC()}
	j.state.Store(int32(Queued))
	j.SetMessage("Queued")
	return j
}

func (j *Job) ID() string           { return j.id }
func (j *Job) Kind() Kind           { return j.kind }
func (j *Job) CreatedAt() time.Time { return j.createdAt }
func (j *Job) State() State         { return State(j.state.Load()) }
func (j *Job) Progress() int        { return int(j.progress.Load()) }

func (j *Job) Message() string {
	if m := j.message.Load(); m != nil {
		return *m
	}
	return ""
}

func (j *Job) Output() string {
	if o := j.output.Load(); o != nil {
		return *o
	}
	return ""
}

// SetState moves the job along a forward edge and reports whether it did.
func (j *Job) SetState(to State) bool {
	for {
		from := State(j.state.Load())
		if !CanTransition(from, to) {
			return false
		}
		if j.state.CompareAndSwap(int32(from), int32(to)) {
			return true
		}
	}
}

func (j *Job) SetMessage(msg string) {
	if j.State().Terminal() {
		return
	}
	j.message.Store(&msg)
}

// SetProgress stores percent clamped to [0, 100].
func (j *Job) SetProgress(percent int) {
	if j.State().Terminal() {
		return
	}
	j.progress.Store(int32(min(100, max(0, percent))))
}

func (j *Job) SetOutput(path string) {
	if j.State().Terminal() {
		return
	}
	j.output.Store(&path)
}

// Start marks a queued job as running.
func (j *Job) Start(msg string) bool {
	if !j.SetState(Running) {
		return false
	}
	j.SetMessage(msg)
	return true
}

// Complete publishes the output and then the terminal state, so a reader
// that sees COMPLETED also sees the output path.
func (j *Job) Complete(path, msg string) bool {
	if path == "" || !CanTransition(j.State(), Completed) {
		return false
	}
	j.SetProgress(100)
	j.SetOutput(path)
	j.SetMessage(msg)
	return j.SetState(Completed)
}

func (j *Job) Fail(msg string) bool {
	if !CanTransition(j.State(), Failed) {
		return false
	}
	j.SetMessage(msg)
	return j.SetState(Failed)
}

// Snapshot is a point-in-time copy of a job, shaped for the status API.
type Snapshot struct {
	ID              string    `json:"id"`
	Kind            Kind      `json:"kind"`
	State           State     `json:"state"`
	Message         string    `json:"message"`
	ProgressPercent int       `json:"progressPercent"`
	OutputFilename  string    `json:"outputFilename,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
}

func (j *Job) Snapshot() Snapshot {
	state := j.State()
	s := Snapshot{
		ID:              j.id,
		Kind:            j.kind,
		State:           state,
		Message:         j.Message(),
		ProgressPercent: j.Progress(),
		CreatedAt:       j.createdAt,
	}
	if state == Completed {
		s.OutputFilename = j.Output()
	}
	return s
}

func (j *Job) MarshalJSON() ([]byte, error) {
	return json.Marshal(j.Snapshot())
}

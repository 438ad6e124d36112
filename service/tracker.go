package service

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/AnTengye/invoicedesk/config"
	"github.com/AnTengye/invoicedesk/model"
	"github.com/google/uuid"
)

var (
	ErrTaskNotFound  = errors.New("upload task not found")
	ErrTrackerClosed = errors.New("upload tracker closed")
)

// processingFailedMsg is the only error text a client sees for a failed task
const processingFailedMsg = "failed to process file"

// subscriberBuffer is how many snapshots a subscriber channel holds before
// further ones wait in its backlog
const subscriberBuffer = 64

// TrackerOptions configures an UploadTracker
type TrackerOptions struct {
	Policy          AdmissionPolicy
	StepPercent     int
	StepDelay       time.Duration
	ProcessingDelay time.Duration
	Scheduler       Scheduler
	Extractor       Extractor
	// OnFinish is called outside the tracker lock with a copy of every
	// task that reaches completed or error.
	OnFinish func(task *model.UploadTask)
}

// TrackerOptionsFromConfig builds options from the upload config section
func TrackerOptionsFromConfig(cfg *config.UploadConfig) TrackerOptions {
	return TrackerOptions{
		Policy: AdmissionPolicy{
			MaxFileSize:  cfg.MaxFileSize,
			MaxFiles:     cfg.MaxFiles,
			AllowedTypes: cfg.AllowedTypes,
		},
		StepPercent:     cfg.StepPercent,
		StepDelay:       cfg.StepDelay,
		ProcessingDelay: cfg.ProcessingDelay,
	}
}

type trackedTask struct {
	task     *model.UploadTask
	timer    Timer
	canceled bool
}

// UploadTracker drives every accepted file through
// pending -> uploading -> processing -> completed|error.
// Each task advances on its own scheduled continuations; removing a task
// cancels whatever continuation it still has pending.
type UploadTracker struct {
	mu     sync.Mutex
	tasks  map[string]*trackedTask
	opts   TrackerOptions
	subs   map[int]*subscriber
	nextID int
	closed bool

	ctx    context.Context
	cancel context.CancelFunc
}

// NewUploadTracker creates a tracker. A nil Scheduler means real timers and
// a nil Extractor means the synthetic one.
func NewUploadTracker(opts TrackerOptions) *UploadTracker {
	if opts.Scheduler == nil {
		opts.Scheduler = NewRealScheduler()
	}
	if opts.Extractor == nil {
		opts.Extractor = &SyntheticExtractor{Now: opts.Scheduler.Now}
	}
	if opts.StepPercent <= 0 {
		opts.StepPercent = 10
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &UploadTracker{
		tasks:  make(map[string]*trackedTask),
		opts:   opts,
		subs:   make(map[int]*subscriber),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Accept admits a batch of files for owner. Rejected files create no task.
func (t *UploadTracker) Accept(owner string, files []FileInfo) (*model.UploadBatch, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil, ErrTrackerClosed
	}

	result := &model.UploadBatch{
		Accepted: []*model.UploadTask{},
		Rejected: []model.Rejection{},
	}
	active := t.activeCountLocked(owner)

	for _, f := range files {
		contentType, err := t.opts.Policy.Check(f)
		if err == nil && t.opts.Policy.MaxFiles > 0 && active >= t.opts.Policy.MaxFiles {
			err = ErrTooManyFiles
		}
		if err != nil {
			uploadsRejectedTotal.WithLabelValues(rejectReason(err)).Inc()
			slog.Debug("upload rejected", "file", f.Name, "owner", owner, "reason", err.Error())
			result.Rejected = append(result.Rejected, model.Rejection{FileName: f.Name, Reason: err.Error()})
			continue
		}

		now := t.opts.Scheduler.Now()
		task := &model.UploadTask{
			ID:          uuid.New().String(),
			Owner:       owner,
			FileName:    f.Name,
			FileSize:    f.Size,
			ContentType: contentType,
			Status:      model.StatusPending,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		tt := &trackedTask{task: task}
		t.tasks[task.ID] = tt
		active++

		// pending is only observable for the instant before the first move
		t.transitionLocked(tt, model.StatusUploading, 0)
		t.scheduleStepLocked(tt)

		uploadsAcceptedTotal.Inc()
		uploadsInFlight.Inc()
		slog.Info("upload accepted",
			"task_id", task.ID,
			"owner", owner,
			"file", f.Name,
			"size", f.Size,
		)
		result.Accepted = append(result.Accepted, task.Clone())
	}

	return result, nil
}

// Get returns a copy of the task.
func (t *UploadTracker) Get(id string) (*model.UploadTask, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	tt, ok := t.tasks[id]
	if !ok {
		return nil, ErrTaskNotFound
	}
	return tt.task.Clone(), nil
}

// List returns copies of the tasks owned by owner, or all tasks when owner
// is empty, oldest first.
func (t *UploadTracker) List(owner string) []*model.UploadTask {
	t.mu.Lock()
	result := make([]*model.UploadTask, 0, len(t.tasks))
	for _, tt := range t.tasks {
		if owner == "" || tt.task.Owner == owner {
			result = append(result, tt.task.Clone())
		}
	}
	t.mu.Unlock()

	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result
}

// ActiveCount returns how many tasks of owner are not finished yet, across all
// owners when owner is empty.
func (t *UploadTracker) ActiveCount(owner string) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := 0
	for _, tt := range t.tasks {
		if (owner == "" || tt.task.Owner == owner) && !tt.task.Status.IsTerminal() {
			n++
		}
	}
	return n
}

// Remove drops a task from the collection and cancels its pending
// continuation, so a late tick can never bring it back. Subscribers get one
// last snapshot of the task with Removed set.
func (t *UploadTracker) Remove(id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	tt, ok := t.tasks[id]
	if !ok {
		return ErrTaskNotFound
	}
	t.cancelLocked(tt)
	delete(t.tasks, id)

	tt.task.Removed = true
	tt.task.UpdatedAt = t.opts.Scheduler.Now()
	t.publishLocked(tt.task)

	slog.Info("upload removed", "task_id", id, "status", tt.task.Status)
	return nil
}

// Subscribe returns a channel that receives a snapshot on every task change,
// in order. A subscriber that falls behind may skip intermediate snapshots of
// a task but always receives its latest one.
func (t *UploadTracker) Subscribe() (<-chan *model.UploadTask, func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	sub := newSubscriber()
	if t.closed {
		sub.close()
		return sub.ch, func() {}
	}

	id := t.nextID
	t.nextID++
	t.subs[id] = sub

	var once sync.Once
	return sub.ch, func() {
		once.Do(func() {
			t.mu.Lock()
			defer t.mu.Unlock()
			if sub, ok := t.subs[id]; ok {
				delete(t.subs, id)
				sub.close()
			}
		})
	}
}

// Close cancels all pending continuations and ends every subscription.
func (t *UploadTracker) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return
	}
	t.closed = true
	t.cancel()

	for _, tt := range t.tasks {
		t.cancelLocked(tt)
	}
	for id, sub := range t.subs {
		delete(t.subs, id)
		sub.close()
	}
}

// advance is one progress step of a task.
func (t *UploadTracker) advance(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	tt, ok := t.tasks[id]
	if !ok || tt.canceled || tt.task.Status != model.StatusUploading {
		return
	}
	tt.timer = nil

	progress := tt.task.Progress + t.opts.StepPercent
	if progress >= 100 {
		t.transitionLocked(tt, model.StatusUploading, 100)
		t.transitionLocked(tt, model.StatusProcessing, 100)
		tt.timer = t.opts.Scheduler.AfterFunc(t.opts.ProcessingDelay, func() { t.finalize(id) })
		return
	}

	t.transitionLocked(tt, model.StatusUploading, progress)
	t.scheduleStepLocked(tt)
}

// finalize runs extraction and moves the task to a terminal status.
func (t *UploadTracker) finalize(id string) {
	t.mu.Lock()
	tt, ok := t.tasks[id]
	if !ok || tt.canceled || tt.task.Status != model.StatusProcessing {
		t.mu.Unlock()
		return
	}
	tt.timer = nil
	snapshot := tt.task.Clone()
	t.mu.Unlock()

	result, err := t.opts.Extractor.Extract(t.ctx, snapshot)

	t.mu.Lock()
	// Removed or shut down while extracting
	if tt.canceled {
		t.mu.Unlock()
		return
	}

	if err != nil {
		slog.Error("upload processing failed", "task_id", id, "error", err)
		tt.task.ErrorMsg = processingFailedMsg
		t.transitionLocked(tt, model.StatusError, tt.task.Progress)
	} else {
		tt.task.Result = result
		t.transitionLocked(tt, model.StatusCompleted, tt.task.Progress)
		slog.Info("upload completed", "task_id", id, "document_id", result.DocumentID)
	}
	finished := tt.task.Clone()
	t.mu.Unlock()

	if t.opts.OnFinish != nil {
		t.opts.OnFinish(finished)
	}
}

func (t *UploadTracker) scheduleStepLocked(tt *trackedTask) {
	id := tt.task.ID
	tt.timer = t.opts.Scheduler.AfterFunc(t.opts.StepDelay, func() { t.advance(id) })
}

// transitionLocked applies a status/progress change and publishes it.
// Illegal moves and progress regressions are dropped.
func (t *UploadTracker) transitionLocked(tt *trackedTask, to model.Status, progress int) {
	task := tt.task
	if task.Status != to && !task.Status.CanTransition(to) {
		slog.Warn("illegal upload transition ignored", "task_id", task.ID, "from", task.Status, "to", to)
		return
	}
	if to == model.StatusUploading && task.Status == model.StatusUploading && progress < task.Progress {
		return
	}

	task.Status = to
	task.Progress = progress
	task.UpdatedAt = t.opts.Scheduler.Now()

	if to.IsTerminal() {
		uploadsFinishedTotal.WithLabelValues(string(to)).Inc()
		uploadsInFlight.Dec()
	}
	t.publishLocked(task)
}

func (t *UploadTracker) cancelLocked(tt *trackedTask) {
	if tt.canceled {
		return
	}
	tt.canceled = true
	if tt.timer != nil {
		tt.timer.Stop()
		tt.timer = nil
	}
	if !tt.task.Status.IsTerminal() {
		uploadsInFlight.Dec()
	}
}

func (t *UploadTracker) publishLocked(task *model.UploadTask) {
	for _, sub := range t.subs {
		sub.send(task.Clone())
	}
}

func (t *UploadTracker) activeCountLocked(owner string) int {
	n := 0
	for _, tt := range t.tasks {
		if tt.task.Owner == owner && !tt.task.Status.IsTerminal() {
			n++
		}
	}
	return n
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, ErrFileTooLarge):
		return "too_large"
	case errors.Is(err, ErrUnsupportedType):
		return "unsupported_type"
	case errors.Is(err, ErrEmptyFile):
		return "empty"
	case errors.Is(err, ErrTooManyFiles):
		return "too_many_files"
	default:
		return "other"
	}
}

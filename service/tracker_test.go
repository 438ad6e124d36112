package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/AnTengye/invoicedesk/internal/testutil"
	"github.com/AnTengye/invoicedesk/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testStep       = 200 * time.Millisecond
	testProcessing = 2 * time.Second
)

var pdfHead = []byte("%PDF-1.4\n%\xe2\xe3\xcf\xd3\n")

type failingExtractor struct{}

func (failingExtractor) Extract(ctx context.Context, task *model.UploadTask) (*model.ExtractionResult, error) {
	return nil, errors.New("engine unavailable")
}

func newTestTracker(t *testing.T, mutate func(*TrackerOptions)) (*UploadTracker, *testutil.ManualScheduler) {
	t.Helper()
	sched := testutil.NewManualScheduler(time.Date(2024, 11, 10, 9, 0, 0, 0, time.UTC))
	opts := TrackerOptions{
		Policy: AdmissionPolicy{
			MaxFileSize:  10 << 20,
			MaxFiles:     10,
			AllowedTypes: []string{"image/*", "application/pdf"},
		},
		StepPercent:     10,
		StepDelay:       testStep,
		ProcessingDelay: testProcessing,
		Scheduler:       sched,
	}
	if mutate != nil {
		mutate(&opts)
	}
	tracker := NewUploadTracker(opts)
	t.Cleanup(tracker.Close)
	return tracker, sched
}

func pdfFile(name string) FileInfo {
	return FileInfo{Name: name, Size: 2048, ContentType: "application/pdf", Head: pdfHead}
}

func drain(ch <-chan *model.UploadTask) []*model.UploadTask {
	var out []*model.UploadTask
	for {
		select {
		case task, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, task)
		default:
			return out
		}
	}
}

func TestTrackerAcceptStartsUploading(t *testing.T) {
	tracker, sched := newTestTracker(t, nil)

	res, err := tracker.Accept("user-1", []FileInfo{pdfFile("invoice.pdf")})
	require.NoError(t, err)
	require.Len(t, res.Accepted, 1)
	assert.Empty(t, res.Rejected)

	task := res.Accepted[0]
	assert.NotEmpty(t, task.ID)
	assert.Equal(t, "user-1", task.Owner)
	assert.Equal(t, model.StatusUploading, task.Status)
	assert.Equal(t, 0, task.Progress)
	assert.Equal(t, "application/pdf", task.ContentType)
	assert.Nil(t, task.Result)
	assert.Equal(t, 1, sched.Pending())
}

func TestTrackerLifecycle(t *testing.T) {
	tracker, sched := newTestTracker(t, nil)
	updates, unsubscribe := tracker.Subscribe()
	defer unsubscribe()

	res, err := tracker.Accept("user-1", []FileInfo{pdfFile("invoice.pdf")})
	require.NoError(t, err)
	id := res.Accepted[0].ID

	// Ten steps take the upload to 100 and into processing
	for i := 1; i <= 10; i++ {
		sched.Advance(testStep)
		task, err := tracker.Get(id)
		require.NoError(t, err)
		if i < 10 {
			assert.Equal(t, model.StatusUploading, task.Status)
			assert.Equal(t, i*10, task.Progress)
		} else {
			assert.Equal(t, model.StatusProcessing, task.Status)
			assert.Equal(t, 100, task.Progress)
		}
		assert.Nil(t, task.Result)
	}

	sched.Advance(testProcessing - time.Millisecond)
	task, _ := tracker.Get(id)
	assert.Equal(t, model.StatusProcessing, task.Status)

	sched.Advance(time.Millisecond)
	task, _ = tracker.Get(id)
	require.Equal(t, model.StatusCompleted, task.Status)
	require.NotNil(t, task.Result)
	assert.Equal(t, "2024-11-10", task.Result.IssueDate)
	assert.Equal(t, 2500.0, task.Result.TotalAmount)
	assert.Equal(t, 0, sched.Pending())

	// Published history: monotonic progress, exactly 100 before processing
	events := drain(updates)
	require.NotEmpty(t, events)
	last := -1
	sawProcessing := false
	for _, ev := range events {
		switch ev.Status {
		case model.StatusUploading:
			assert.False(t, sawProcessing, "uploading after processing")
			assert.GreaterOrEqual(t, ev.Progress, last)
			last = ev.Progress
		case model.StatusProcessing:
			assert.Equal(t, 100, last, "processing before progress reached 100")
			sawProcessing = true
		}
		assert.Equal(t, ev.Status == model.StatusCompleted, ev.Result != nil)
	}
	assert.Equal(t, model.StatusCompleted, events[len(events)-1].Status)
}

func TestTrackerTerminalStatesAreFinal(t *testing.T) {
	tracker, sched := newTestTracker(t, nil)

	res, err := tracker.Accept("user-1", []FileInfo{pdfFile("invoice.pdf")})
	require.NoError(t, err)
	id := res.Accepted[0].ID

	sched.Advance(10*testStep + testProcessing)
	before, _ := tracker.Get(id)
	require.Equal(t, model.StatusCompleted, before.Status)

	sched.Advance(time.Hour)
	after, _ := tracker.Get(id)
	assert.Equal(t, model.StatusCompleted, after.Status)
	assert.Equal(t, before.UpdatedAt, after.UpdatedAt)
}

func TestTrackerExtractionFailure(t *testing.T) {
	var finished []*model.UploadTask
	tracker, sched := newTestTracker(t, func(o *TrackerOptions) {
		o.Extractor = failingExtractor{}
		o.OnFinish = func(task *model.UploadTask) { finished = append(finished, task) }
	})

	res, err := tracker.Accept("user-1", []FileInfo{pdfFile("broken.pdf")})
	require.NoError(t, err)
	id := res.Accepted[0].ID

	sched.Advance(10*testStep + testProcessing)

	task, err := tracker.Get(id)
	require.NoError(t, err)
	assert.Equal(t, model.StatusError, task.Status)
	assert.Equal(t, "failed to process file", task.ErrorMsg)
	assert.Nil(t, task.Result)
	assert.Equal(t, 0, sched.Pending())

	require.Len(t, finished, 1)
	assert.Equal(t, model.StatusError, finished[0].Status)
}

func TestTrackerRejectsBeforeCreatingTask(t *testing.T) {
	tracker, sched := newTestTracker(t, nil)

	tests := []struct {
		name string
		file FileInfo
		want error
	}{
		{"too large", FileInfo{Name: "big.pdf", Size: 10<<20 + 1, ContentType: "application/pdf"}, ErrFileTooLarge},
		{"unsupported extension", FileInfo{Name: "notes.txt", Size: 10, ContentType: "text/plain"}, ErrUnsupportedType},
		{"gif is not accepted", FileInfo{Name: "scan.gif", Size: 10, ContentType: "image/gif"}, ErrUnsupportedType},
		{"declared type mismatch", FileInfo{Name: "scan.png", Size: 10, ContentType: "application/pdf"}, ErrUnsupportedType},
		{"content mismatch", FileInfo{Name: "fake.pdf", Size: 10, Head: []byte("just some text")}, ErrUnsupportedType},
		{"empty", FileInfo{Name: "empty.pdf", Size: 0}, ErrEmptyFile},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := tracker.Accept("user-1", []FileInfo{tt.file})
			require.NoError(t, err)
			assert.Empty(t, res.Accepted)
			require.Len(t, res.Rejected, 1)
			assert.Equal(t, tt.file.Name, res.Rejected[0].FileName)
			assert.Equal(t, tt.want.Error(), res.Rejected[0].Reason)
		})
	}

	assert.Empty(t, tracker.List(""))
	assert.Equal(t, 0, sched.Pending())
}

func TestTrackerFileAtSizeLimitIsAccepted(t *testing.T) {
	tracker, _ := newTestTracker(t, nil)

	res, err := tracker.Accept("user-1", []FileInfo{{Name: "exact.jpg", Size: 10 << 20, ContentType: "image/jpeg"}})
	require.NoError(t, err)
	assert.Len(t, res.Accepted, 1)
}

func TestTrackerCountCeiling(t *testing.T) {
	tracker, sched := newTestTracker(t, nil)

	files := make([]FileInfo, 12)
	for i := range files {
		files[i] = pdfFile(fmt.Sprintf("invoice-%02d.pdf", i))
	}

	res, err := tracker.Accept("user-1", files)
	require.NoError(t, err)
	assert.Len(t, res.Accepted, 10)
	require.Len(t, res.Rejected, 2)
	assert.Equal(t, ErrTooManyFiles.Error(), res.Rejected[0].Reason)
	assert.Len(t, tracker.List("user-1"), 10)

	// The ceiling is per owner
	res, err = tracker.Accept("user-2", []FileInfo{pdfFile("other.pdf")})
	require.NoError(t, err)
	assert.Len(t, res.Accepted, 1)

	// Finished tasks free their slot
	sched.Advance(10*testStep + testProcessing)
	res, err = tracker.Accept("user-1", []FileInfo{pdfFile("later.pdf")})
	require.NoError(t, err)
	assert.Len(t, res.Accepted, 1)
}

func TestTrackerRemoveCancelsContinuation(t *testing.T) {
	tracker, sched := newTestTracker(t, nil)
	updates, unsubscribe := tracker.Subscribe()
	defer unsubscribe()

	res, err := tracker.Accept("user-1", []FileInfo{pdfFile("invoice.pdf")})
	require.NoError(t, err)
	id := res.Accepted[0].ID

	sched.Advance(3 * testStep)
	drain(updates)

	require.NoError(t, tracker.Remove(id))
	assert.Equal(t, 0, sched.Pending())

	removed := drain(updates)
	require.Len(t, removed, 1)
	assert.Equal(t, id, removed[0].ID)
	assert.True(t, removed[0].Removed)
	assert.Equal(t, model.StatusUploading, removed[0].Status)

	sched.Advance(time.Minute)

	_, err = tracker.Get(id)
	assert.ErrorIs(t, err, ErrTaskNotFound)
	assert.Empty(t, tracker.List(""))
	assert.Empty(t, drain(updates), "removed task published after removal")

	assert.ErrorIs(t, tracker.Remove(id), ErrTaskNotFound)
}

func TestTrackerRemoveDuringProcessing(t *testing.T) {
	completed := 0
	tracker, sched := newTestTracker(t, func(o *TrackerOptions) {
		o.OnFinish = func(*model.UploadTask) { completed++ }
	})

	res, err := tracker.Accept("user-1", []FileInfo{pdfFile("invoice.pdf")})
	require.NoError(t, err)
	id := res.Accepted[0].ID

	sched.Advance(10 * testStep)
	task, _ := tracker.Get(id)
	require.Equal(t, model.StatusProcessing, task.Status)

	require.NoError(t, tracker.Remove(id))
	sched.Advance(testProcessing)

	assert.Empty(t, tracker.List(""))
	assert.Equal(t, 0, completed)
}

func TestTrackerOnFinish(t *testing.T) {
	var got []*model.UploadTask
	tracker, sched := newTestTracker(t, func(o *TrackerOptions) {
		o.OnFinish = func(task *model.UploadTask) { got = append(got, task) }
	})

	_, err := tracker.Accept("user-1", []FileInfo{pdfFile("a.pdf"), {Name: "b.png", Size: 100, ContentType: "image/png"}})
	require.NoError(t, err)

	sched.Advance(10*testStep + testProcessing)

	require.Len(t, got, 2)
	for _, task := range got {
		assert.Equal(t, model.StatusCompleted, task.Status)
		assert.NotNil(t, task.Result)
	}
}

func TestTrackerTasksAdvanceIndependently(t *testing.T) {
	tracker, sched := newTestTracker(t, nil)

	// first reaches processing at 2s and completes at 4s
	first, err := tracker.Accept("user-1", []FileInfo{pdfFile("first.pdf")})
	require.NoError(t, err)
	sched.Advance(15 * testStep)
	second, err := tracker.Accept("user-1", []FileInfo{pdfFile("second.pdf")})
	require.NoError(t, err)

	sched.Advance(5 * testStep)

	a, _ := tracker.Get(first.Accepted[0].ID)
	b, _ := tracker.Get(second.Accepted[0].ID)
	assert.Equal(t, model.StatusCompleted, a.Status)
	assert.Equal(t, model.StatusUploading, b.Status)
	assert.Equal(t, 50, b.Progress)
}

func TestTrackerSlowSubscriberKeepsLatestSnapshot(t *testing.T) {
	tracker, sched := newTestTracker(t, nil)
	updates, unsubscribe := tracker.Subscribe()
	defer unsubscribe()

	files := make([]FileInfo, 10)
	for i := range files {
		files[i] = pdfFile(fmt.Sprintf("invoice-%d.pdf", i))
	}
	res, err := tracker.Accept("user-1", files)
	require.NoError(t, err)
	require.Len(t, res.Accepted, 10)

	// far more snapshots than the channel buffers, none read yet
	sched.Advance(10*testStep + testProcessing)

	completed := map[string]bool{}
	timeout := time.After(2 * time.Second)
	for len(completed) < len(res.Accepted) {
		select {
		case task, ok := <-updates:
			require.True(t, ok, "subscription closed early")
			if task.Status == model.StatusCompleted {
				completed[task.ID] = true
			}
		case <-timeout:
			t.Fatalf("saw %d of %d completed snapshots", len(completed), len(res.Accepted))
		}
	}
}

func TestTrackerSubscriberOrderPerTask(t *testing.T) {
	tracker, sched := newTestTracker(t, nil)
	updates, unsubscribe := tracker.Subscribe()
	defer unsubscribe()

	files := make([]FileInfo, 8)
	for i := range files {
		files[i] = pdfFile(fmt.Sprintf("invoice-%d.pdf", i))
	}
	_, err := tracker.Accept("user-1", files)
	require.NoError(t, err)
	sched.Advance(10*testStep + testProcessing)

	last := map[string]*model.UploadTask{}
	timeout := time.After(2 * time.Second)
	for done := 0; done < len(files); {
		select {
		case task := <-updates:
			if prev, ok := last[task.ID]; ok {
				assert.True(t, prev.Status.CanTransition(task.Status) || prev.Status == task.Status,
					"%s went %s -> %s", task.ID, prev.Status, task.Status)
				if task.Status == prev.Status {
					assert.GreaterOrEqual(t, task.Progress, prev.Progress)
				}
			}
			last[task.ID] = task
			if task.Status == model.StatusCompleted {
				done++
			}
		case <-timeout:
			t.Fatal("timed out waiting for completed snapshots")
		}
	}
}

func TestTrackerListByOwner(t *testing.T) {
	tracker, sched := newTestTracker(t, nil)

	_, err := tracker.Accept("user-1", []FileInfo{pdfFile("a.pdf")})
	require.NoError(t, err)
	sched.Advance(time.Millisecond)
	_, err = tracker.Accept("user-2", []FileInfo{pdfFile("b.pdf"), pdfFile("c.pdf")})
	require.NoError(t, err)

	assert.Len(t, tracker.List("user-1"), 1)
	assert.Len(t, tracker.List("user-2"), 2)

	all := tracker.List("")
	require.Len(t, all, 3)
	assert.Equal(t, "a.pdf", all[0].FileName)
}

func TestTrackerReturnsCopies(t *testing.T) {
	tracker, _ := newTestTracker(t, nil)

	res, err := tracker.Accept("user-1", []FileInfo{pdfFile("a.pdf")})
	require.NoError(t, err)

	res.Accepted[0].Progress = 90
	res.Accepted[0].Status = model.StatusCompleted

	task, _ := tracker.Get(res.Accepted[0].ID)
	assert.Equal(t, 0, task.Progress)
	assert.Equal(t, model.StatusUploading, task.Status)
}

func TestTrackerClose(t *testing.T) {
	tracker, sched := newTestTracker(t, nil)
	updates, unsubscribe := tracker.Subscribe()

	_, err := tracker.Accept("user-1", []FileInfo{pdfFile("a.pdf")})
	require.NoError(t, err)

	tracker.Close()
	assert.Equal(t, 0, sched.Pending())

	_, err = tracker.Accept("user-1", []FileInfo{pdfFile("b.pdf")})
	assert.ErrorIs(t, err, ErrTrackerClosed)

	drain(updates)
	_, ok := <-updates
	assert.False(t, ok, "subscription should be closed")

	// Safe after close
	unsubscribe()
	tracker.Close()
}

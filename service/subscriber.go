package service

import (
	"sync"

	"github.com/AnTengye/invoicedesk/model"
)

// subscriber feeds one Subscribe channel. Snapshots that do not fit the
// channel buffer wait in a backlog holding at most one snapshot per task,
// drained by a single flush goroutine so delivery order is kept.
type subscriber struct {
	ch   chan *model.UploadTask
	done chan struct{}

	mu       sync.Mutex
	backlog  []*model.UploadTask
	flushing bool
	closed   bool
}

func newSubscriber() *subscriber {
	return &subscriber{
		ch:   make(chan *model.UploadTask, subscriberBuffer),
		done: make(chan struct{}),
	}
}

// send never blocks.
func (s *subscriber) send(task *model.UploadTask) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	if !s.flushing {
		select {
		case s.ch <- task:
			return
		default:
		}
	}

	// an older pending snapshot of the same task is superseded
	for i, pending := range s.backlog {
		if pending.ID == task.ID {
			s.backlog = append(s.backlog[:i], s.backlog[i+1:]...)
			break
		}
	}
	s.backlog = append(s.backlog, task)

	if !s.flushing {
		s.flushing = true
		go s.flush()
	}
}

func (s *subscriber) flush() {
	for {
		s.mu.Lock()
		if s.closed || len(s.backlog) == 0 {
			s.flushing = false
			if s.closed {
				close(s.ch)
			}
			s.mu.Unlock()
			return
		}
		next := s.backlog[0]
		s.backlog[0] = nil
		s.backlog = s.backlog[1:]
		s.mu.Unlock()

		select {
		case s.ch <- next:
		case <-s.done:
		}
	}
}

// close drops the backlog and closes the channel once no flush is sending.
func (s *subscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	s.backlog = nil
	close(s.done)
	if !s.flushing {
		close(s.ch)
	}
}

package web

import (
	"sync"
	"time"
)

// pollTracker remembers when each task was last polled. A nil tracker tracks
// nothing, which is what backends without cancellation get.
type pollTracker struct {
	mu     sync.Mutex
	polled map[string]time.Time
	idle   time.Duration
	now    func() time.Time
}

func newPollTracker(idle time.Duration) *pollTracker {
	return &pollTracker{
		polled: make(map[string]time.Time),
		idle:   idle,
		now:    time.Now,
	}
}

func (p *pollTracker) touch(taskID string) {
	if p == nil {
		return
	}
	p.mu.Lock()
	p.polled[taskID] = p.now()
	p.mu.Unlock()
}

func (p *pollTracker) forget(taskID string) {
	if p == nil {
		return
	}
	p.mu.Lock()
	delete(p.polled, taskID)
	p.mu.Unlock()
}

// abandoned lists tasks idle for longer than the configured timeout.
func (p *pollTracker) abandoned() []string {
	if p == nil {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	cutoff := p.now().Add(-p.idle)
	var ids []string
	for id, at := range p.polled {
		if at.Before(cutoff) {
			ids = append(ids, id)
		}
	}
	return ids
}

func (p *pollTracker) size() int {
	if p == nil {
		return 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.polled)
}

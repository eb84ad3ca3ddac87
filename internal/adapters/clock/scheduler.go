// Package clock provides domain.Scheduler implementations.
package clock

import (
	"sort"
	"sync"
	"time"

	"github.com/PabloGalante/lexcite/internal/domain"
)

var (
	_ domain.Scheduler = Real{}
	_ domain.Scheduler = Immediate{}
	_ domain.Scheduler = (*Manual)(nil)
)

// Real runs f on its own goroutine after d.
type Real struct{}

func (Real) Schedule(d time.Duration, f func()) {
	time.AfterFunc(d, f)
}

// Immediate runs f synchronously, ignoring d.
type Immediate struct{}

func (Immediate) Schedule(_ time.Duration, f func()) {
	f()
}

// Manual holds scheduled funcs until the test advances its clock.
type Manual struct {
	mu      sync.Mutex
	now     time.Duration
	seq     int
	pending []task
}

type task struct {
	at  time.Duration
	seq int
	f   func()
}

func NewManual() *Manual {
	return &Manual{}
}

func (m *Manual) Schedule(d time.Duration, f func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.seq++
	m.pending = append(m.pending, task{at: m.now + d, seq: m.seq, f: f})
}

// Pending reports how many funcs are waiting to run.
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

// Advance moves the clock forward by d and runs every func that became due,
// in due order, on the calling goroutine.
func (m *Manual) Advance(d time.Duration) int {
	m.mu.Lock()
	m.now += d
	var due, rest []task
	for _, t := range m.pending {
		if t.at <= m.now {
			due = append(due, t)
		} else {
			rest = append(rest, t)
		}
	}
	m.pending = rest
	m.mu.Unlock()

	sort.Slice(due, func(i, j int) bool {
		if due[i].at == due[j].at {
			return due[i].seq < due[j].seq
		}
		return due[i].at < due[j].at
	})

	// funcs may schedule more work, so they run without the lock held
	for _, t := range due {
		t.f()
	}
	return len(due)
}

// RunAll runs everything pending regardless of its delay.
func (m *Manual) RunAll() int {
	n := 0
	for m.Pending() > 0 {
		m.mu.Lock()
		var furthest time.Duration
		for _, t := range m.pending {
			if t.at-m.now > furthest {
				furthest = t.at - m.now
			}
		}
		m.mu.Unlock()
		n += m.Advance(furthest)
	}
	return n
}

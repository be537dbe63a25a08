// Package progress drives the cosmetic progress bar shown while a merge
// request is outstanding. The value it produces has no relation to real
// transfer or processing progress.
package progress

import (
	"errors"
	"math/rand/v2"
	"sync"
	"time"
)

const DefaultInterval = 300 * time.Millisecond

var ErrAlreadyStarted = errors.New("progress: simulator already started")

// State of a Simulator. It only ever moves forward.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateSettled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateSettled:
		return "settled"
	default:
		return "unknown"
	}
}

// Tick is delivered to the callback on every interval.
type Tick struct {
	Seq       int
	Value     float64 // internal value, may pass Ceiling
	Displayed float64
	Phase     Phase
}

type Option func(*Simulator)

// WithInterval sets the tick period. Non-positive values are ignored.
func WithInterval(d time.Duration) Option {
	return func(s *Simulator) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithRand replaces the uniform [0, 1) source.
func WithRand(fn func() float64) Option {
	return func(s *Simulator) {
		if fn != nil {
			s.rand = fn
		}
	}
}

// Simulator is a one-shot ticker for a single submission.
type Simulator struct {
	interval time.Duration
	rand     func() float64

	mu        sync.Mutex
	state     State
	value     float64
	displayed float64

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func New(opts ...Option) *Simulator {
	s := &Simulator{
		interval: DefaultInterval,
		rand:     rand.Float64,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start moves idle -> running and calls onTick every interval from its own
// goroutine until Stop. onTick must not call Stop.
func (s *Simulator) Start(onTick func(Tick)) error {
	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.state = StateRunning
	s.mu.Unlock()

	go s.run(onTick)
	return nil
}

func (s *Simulator) run(onTick func(Tick)) {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	seq := 0
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
		}

		// Stop may have raced the tick
		select {
		case <-s.stop:
			return
		default:
		}

		seq++
		tick := s.advance(seq)
		if onTick != nil {
			onTick(tick)
		}
	}
}

func (s *Simulator) advance(seq int) Tick {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.value = Advance(s.value, s.rand())
	// the internal value never goes down, so neither does this
	s.displayed = Displayed(s.value)

	return Tick{
		Seq:       seq,
		Value:     s.value,
		Displayed: s.displayed,
		Phase:     PhaseFor(s.value),
	}
}

// Stop settles the simulator and waits for the tick goroutine to exit, so no
// tick is delivered once it returns. Only the first call does anything; it
// reports whether this call was the one that stopped it.
func (s *Simulator) Stop() bool {
	stopped := false
	s.stopOnce.Do(func() {
		stopped = true

		s.mu.Lock()
		wasRunning := s.state == StateRunning
		s.state = StateSettled
		s.mu.Unlock()

		close(s.stop)
		if wasRunning {
			<-s.done
		}
	})
	return stopped
}

func (s *Simulator) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Value is the last displayed value.
func (s *Simulator) Value() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.displayed
}

package playback

import (
	"errors"
	"log/slog"
	"math"
	"sync"

	"github.com/eleven-am/careervoice/internal/audio"
	"github.com/eleven-am/careervoice/internal/shared"
)

// OutputChannels is the channel layout of assistant audio.
const OutputChannels = 1

var ErrTornDown = errors.New("playback: scheduler torn down")

// Clock reports the position of the output timeline, in seconds.
type Clock interface {
	Now() float64
}

// Source is one scheduled buffer. Stop cancels it immediately and must be
// safe to call after natural completion.
type Source interface {
	Stop()
}

// Output is the audio-output capability: schedule a decoded buffer to
// begin at an exact timeline position. onEnded must be invoked from a
// separate goroutine when playback completes naturally.
type Output interface {
	Play(buf *audio.Buffer, startAt float64, onEnded func()) (Source, error)
	Close() error
}

// Scheduler decodes inbound frames and schedules them back to back on the
// output clock. The cursor only moves forward, except on interruption,
// when it resets to zero. Only the conversation event loop mutates the
// scheduler; no other component touches its state.
type Scheduler struct {
	out   Output
	clock Clock
	log   *slog.Logger

	mu        sync.Mutex
	nextStart float64
	active    map[string]Source
	closed    bool

	teardownOnce sync.Once
}

func NewScheduler(out Output, clock Clock, log *slog.Logger) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{
		out:    out,
		clock:  clock,
		log:    log,
		active: make(map[string]Source),
	}
}

// Schedule decodes one frame and queues it at
// max(cursor, clock.Now()), guaranteeing no overlap with previously
// scheduled buffers and no start in the past. A malformed frame returns
// the DecodeError and leaves the schedule untouched; callers drop the
// frame and continue.
func (s *Scheduler) Schedule(data string, sampleRate int) error {
	buf, err := audio.DecodeFrame(data, sampleRate, OutputChannels)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrTornDown
	}

	startAt := math.Max(s.nextStart, s.clock.Now())

	id := shared.NewID("src_")
	src, err := s.out.Play(buf, startAt, func() { s.remove(id) })
	if err != nil {
		return err
	}

	s.active[id] = src
	s.nextStart = startAt + buf.Duration().Seconds()
	return nil
}

func (s *Scheduler) remove(id string) {
	s.mu.Lock()
	delete(s.active, id)
	s.mu.Unlock()
}

// Interrupt stops every scheduled and playing source and resets the
// cursor. Callable at any time; with nothing active it is a no-op.
func (s *Scheduler) Interrupt() {
	s.mu.Lock()
	sources := make([]Source, 0, len(s.active))
	for _, src := range s.active {
		sources = append(sources, src)
	}
	s.active = make(map[string]Source)
	s.nextStart = 0
	s.mu.Unlock()

	for _, src := range sources {
		src.Stop()
	}
}

// Teardown interrupts and releases the underlying output. Idempotent.
func (s *Scheduler) Teardown() {
	s.teardownOnce.Do(func() {
		s.Interrupt()

		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()

		if err := s.out.Close(); err != nil {
			s.log.Debug("playback output close failed", "error", err)
		}
	})
}

func (s *Scheduler) ActiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}

func (s *Scheduler) Cursor() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextStart
}

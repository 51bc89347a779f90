package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/eleven-am/careervoice/internal/audio"
)

// ErrPermissionDenied reports that the input device was refused or is
// unavailable. Device implementations return it from Open.
var ErrPermissionDenied = errors.New("capture: microphone permission denied")

// Device is the audio-input capability the pipeline consumes. The
// production implementation is the gateway websocket carrying browser
// microphone PCM; tests supply in-memory devices.
type Device interface {
	Open(ctx context.Context, sampleRate int) (Stream, error)
}

// Stream delivers raw float samples. Read blocks until samples are
// available and returns io.EOF when the device ends.
type Stream interface {
	Read(p []float32) (int, error)
	Close() error
}

type FrameFunc func(audio.Frame)

// Pipeline owns the input device and pushes fixed-size encoded frames to
// its callback until stopped. Frame delivery is a push stream; the caller
// never blocks waiting for a frame.
type Pipeline struct {
	stream   Stream
	log      *slog.Logger
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// Start acquires the device and begins producing FrameSamples-sized
// chunks at the fixed input rate, encoding each and invoking onFrame.
func Start(ctx context.Context, device Device, onFrame FrameFunc, log *slog.Logger) (*Pipeline, error) {
	if log == nil {
		log = slog.Default()
	}

	stream, err := device.Open(ctx, audio.InputSampleRate)
	if err != nil {
		if errors.Is(err, ErrPermissionDenied) {
			return nil, err
		}
		return nil, fmt.Errorf("capture: open device: %w", err)
	}

	p := &Pipeline{
		stream: stream,
		log:    log,
		done:   make(chan struct{}),
	}

	p.wg.Add(1)
	go p.run(onFrame)

	return p, nil
}

func (p *Pipeline) run(onFrame FrameFunc) {
	defer p.wg.Done()

	chunk := make([]float32, audio.FrameSamples)
	filled := 0

	for {
		select {
		case <-p.done:
			return
		default:
		}

		n, err := p.stream.Read(chunk[filled:])
		filled += n

		if filled == len(chunk) {
			frame, encErr := audio.EncodeFrame(chunk)
			if encErr == nil {
				onFrame(frame)
			}
			chunk = make([]float32, audio.FrameSamples)
			filled = 0
		}

		if err != nil {
			if !errors.Is(err, io.EOF) {
				p.log.Error("capture read failed", "error", err)
			}
			return
		}
	}
}

// Stop releases the device and halts frame production. Safe to call more
// than once.
func (p *Pipeline) Stop() {
	p.stopOnce.Do(func() {
		close(p.done)
		if err := p.stream.Close(); err != nil {
			p.log.Debug("capture stream close failed", "error", err)
		}
	})
	p.wg.Wait()
}

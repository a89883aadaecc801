package audio

import (
	"errors"
	"math"
	"time"

	"github.com/gordonklaus/portaudio"
)

const SampleRate = 16000

var ErrNoAudio = errors.New("no audio recorded")

// VAD holds the energy gate used to find the end of an utterance.
type VAD struct {
	FrameSize   int           // samples per read
	Threshold   float64       // RMS above this counts as speech
	TrailSilent time.Duration // silence that ends the utterance
	MaxLength   time.Duration
}

var DefaultVAD = VAD{
	FrameSize:   320, // 20ms
	Threshold:   0.015,
	TrailSilent: 600 * time.Millisecond,
	MaxLength:   10 * time.Second,
}

type Recorder struct {
	vad VAD
}

func NewRecorder(vad VAD) *Recorder {
	if vad.FrameSize <= 0 {
		vad = DefaultVAD
	}
	return &Recorder{vad: vad}
}

func (r *Recorder) Init() error {
	return portaudio.Initialize()
}

func (r *Recorder) Close() {
	portaudio.Terminate()
}

// RecordAuto records from the default input until speech is followed by
// TrailSilent of quiet, or MaxLength passes. Leading silence is dropped.
func (r *Recorder) RecordAuto() ([]float32, error) {
	buf := make([]float32, r.vad.FrameSize)
	stream, err := openInput(buf)
	if err != nil {
		return nil, err
	}
	defer stream.Close()
	defer stream.Stop()

	gate := newGate(r.vad)
	for !gate.done() {
		if err := stream.Read(); err != nil {
			return nil, err
		}
		gate.feed(buf)
	}

	if len(gate.out) == 0 {
		return nil, ErrNoAudio
	}
	return gate.out, nil
}

// RecordUntil records everything until stop is closed or maxDur passes.
func (r *Recorder) RecordUntil(stop <-chan struct{}, maxDur time.Duration) ([]float32, error) {
	if maxDur <= 0 {
		maxDur = 15 * time.Second
	}

	buf := make([]float32, 1024)
	stream, err := openInput(buf)
	if err != nil {
		return nil, err
	}
	defer stream.Close()
	defer stream.Stop()

	deadline := time.Now().Add(maxDur)
	out := make([]float32, 0, int(SampleRate*maxDur.Seconds()))

	for time.Now().Before(deadline) {
		select {
		case <-stop:
			return out, nil
		default:
		}

		if err := stream.Read(); err != nil {
			return nil, err
		}
		out = append(out, buf...)
	}

	if len(out) == 0 {
		return nil, ErrNoAudio
	}
	return out, nil
}

func openInput(buf []float32) (*portaudio.Stream, error) {
	stream, err := portaudio.OpenDefaultStream(1, 0, SampleRate, len(buf), buf)
	if err != nil {
		return nil, err
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return nil, err
	}
	return stream, nil
}

// gate is the RecordAuto state machine, fed one frame at a time.
type gate struct {
	vad          VAD
	out          []float32
	speaking     bool
	silentFrames int
	frames       int
	finished     bool
}

func newGate(vad VAD) *gate {
	return &gate{vad: vad, out: make([]float32, 0, SampleRate*3)}
}

func (g *gate) frameDuration() time.Duration {
	return time.Duration(g.vad.FrameSize) * time.Second / SampleRate
}

func (g *gate) done() bool {
	return g.finished || time.Duration(g.frames)*g.frameDuration() >= g.vad.MaxLength
}

func (g *gate) feed(frame []float32) {
	g.frames++

	if frameRMS(frame) > g.vad.Threshold {
		g.speaking = true
		g.silentFrames = 0
		g.out = append(g.out, frame...)
		return
	}
	if !g.speaking {
		return
	}

	g.silentFrames++
	if time.Duration(g.silentFrames)*g.frameDuration() >= g.vad.TrailSilent {
		g.finished = true
		return
	}
	g.out = append(g.out, frame...)
}

func frameRMS(f []float32) float64 {
	if len(f) == 0 {
		return 0
	}
	var s float64
	for _, x := range f {
		s += float64(x * x)
	}
	return math.Sqrt(s / float64(len(f)))
}

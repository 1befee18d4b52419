package audio

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"
)

type voice struct {
	src      *Source
	pos      int
	gain     Ramp
	stopping bool
}

// Pipeline mixes the currently playing loops and outputs PCM frames at real-time rate.
// Every voice loops forever until stopped; gain changes ramp over the fade length.
type Pipeline struct {
	frameCh    chan []int16
	fadeFrames int

	mu       sync.Mutex
	voices   map[string]*voice
	rendered int64 // frames emitted since start
}

// NewPipeline creates a live pipeline whose gain changes take fade to complete.
func NewPipeline(fade time.Duration) *Pipeline {
	return &Pipeline{
		frameCh:    make(chan []int16, 100),
		fadeFrames: FramesFor(fade, SampleRate),
		voices:     make(map[string]*voice),
	}
}

// Frames returns the channel of outgoing PCM frames (20ms each).
func (p *Pipeline) Frames() <-chan []int16 {
	return p.frameCh
}

// Play starts looping src under name, fading in to gain. src must be at SampleRate.
// A voice already playing under name is replaced.
func (p *Pipeline) Play(name string, src *Source, gain float64) {
	v := &voice{src: src, gain: NewRamp(0, p.fadeFrames)}
	v.gain.Set(gain)

	p.mu.Lock()
	p.voices[name] = v
	p.mu.Unlock()
}

// SetGain ramps the voice to gain. Returns false if name is not playing.
func (p *Pipeline) SetGain(name string, gain float64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	v, ok := p.voices[name]
	if !ok || v.stopping {
		return false
	}
	v.gain.Set(gain)
	return true
}

// Stop fades the voice out and drops it.
func (p *Pipeline) Stop(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if v, ok := p.voices[name]; ok {
		v.stopping = true
		v.gain.Set(0)
	}
}

// StopAll fades every voice out.
func (p *Pipeline) StopAll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, v := range p.voices {
		v.stopping = true
		v.gain.Set(0)
	}
}

// Playing returns the names of voices that are not fading out, sorted.
func (p *Pipeline) Playing() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	names := make([]string, 0, len(p.voices))
	for name, v := range p.voices {
		if !v.stopping {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Position returns how much audio the pipeline has produced.
func (p *Pipeline) Position() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	secs, rest := p.rendered/SampleRate, p.rendered%SampleRate
	return time.Duration(secs)*time.Second + time.Duration(rest)*time.Second/SampleRate
}

// Run starts the pipeline. Blocks until ctx is cancelled.
func (p *Pipeline) Run(ctx context.Context) {
	defer close(p.frameCh)

	ticker := time.NewTicker(FrameDuration)
	defer ticker.Stop()

	log.Printf("Live pipeline running (%d Hz, %d channels)", SampleRate, Channels)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		select {
		case p.frameCh <- p.mixFrame():
		case <-ctx.Done():
			return
		}
	}
}

// mixFrame sums all voices into one 20ms interleaved frame.
func (p *Pipeline) mixFrame() []int16 {
	p.mu.Lock()
	defer p.mu.Unlock()

	frame := make([]int16, FrameSamples)
	for i := 0; i < FrameSize; i++ {
		var left, right float64
		for _, v := range p.voices {
			g := v.gain.Next()
			n := v.src.Frames()
			if n == 0 {
				continue
			}
			left += g * v.src.Looped(0, v.pos)
			right += g * v.src.Looped(1, v.pos)
			v.pos = (v.pos + 1) % n
		}
		frame[i*2] = Quantize(left)
		frame[i*2+1] = Quantize(right)
	}

	for name, v := range p.voices {
		if v.stopping && v.gain.Done() {
			delete(p.voices, name)
		}
	}
	p.rendered += FrameSize
	return frame
}

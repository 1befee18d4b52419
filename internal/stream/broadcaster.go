// Package stream delivers the live board mix to listeners over HTTP and WebRTC.
package stream

import (
	"context"
	"sync"
	"sync/atomic"
)

// DefaultBuffer is the per-listener queue length: about 3s of 20ms frames.
const DefaultBuffer = 150

// Broadcaster fans out live PCM frames from the pipeline to N listeners.
type Broadcaster struct {
	buffer int

	mu        sync.RWMutex
	listeners map[*Listener]struct{}

	frames atomic.Int64 // frames received from the source
}

// Listener receives PCM frames from the broadcaster.
type Listener struct {
	C       chan []int16 // buffered channel of 20ms PCM frames
	done    chan struct{}
	dropped atomic.Int64
}

// Done is closed when the listener is unsubscribed.
func (l *Listener) Done() <-chan struct{} {
	return l.done
}

// Dropped returns how many frames were skipped because the listener lagged.
func (l *Listener) Dropped() int64 {
	return l.dropped.Load()
}

// NewBroadcaster creates a broadcaster whose listeners queue buffer frames.
// buffer <= 0 uses DefaultBuffer.
func NewBroadcaster(buffer int) *Broadcaster {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Broadcaster{
		buffer:    buffer,
		listeners: make(map[*Listener]struct{}),
	}
}

// Subscribe registers a new listener.
func (b *Broadcaster) Subscribe() *Listener {
	l := &Listener{
		C:    make(chan []int16, b.buffer),
		done: make(chan struct{}),
	}
	b.mu.Lock()
	b.listeners[l] = struct{}{}
	b.mu.Unlock()
	return l
}

// Unsubscribe removes a listener and signals it to stop. Safe to call twice.
func (b *Broadcaster) Unsubscribe(l *Listener) {
	b.mu.Lock()
	_, ok := b.listeners[l]
	delete(b.listeners, l)
	b.mu.Unlock()
	if ok {
		close(l.done)
	}
}

// ListenerCount returns the number of active listeners.
func (b *Broadcaster) ListenerCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners)
}

// Frames returns how many frames have been broadcast.
func (b *Broadcaster) Frames() int64 {
	return b.frames.Load()
}

// Run reads frames from source and fans out to all listeners.
// Slow listeners get frames dropped rather than blocking the broadcast.
func (b *Broadcaster) Run(ctx context.Context, source <-chan []int16) {
	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-source:
			if !ok {
				return
			}
			b.frames.Add(1)
			b.mu.RLock()
			for l := range b.listeners {
				select {
				case l.C <- frame:
				default:
					l.dropped.Add(1)
				}
			}
			b.mu.RUnlock()
		}
	}
}
